package transport

import "net"

// SessionHandler serves one control connection and closes it when done.
type SessionHandler interface {
	ServeSession(conn net.Conn)
}

type TransportHandler interface {
	ListenAndAccept() error // listen and accept control connections
	Addr() net.Addr         // bound listen address
	Close() error           // wait for the accept loop and sessions
}
