package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	logs "github.com/danmuck/smplog"
	"golang.org/x/net/netutil"
)

// Dial opens a TCP connection to host:port. The port is validated before
// any network I/O. There is no retry.
func Dial(ctx context.Context, host string, port int) (net.Conn, error) {
	if _, err := ValidatePort(port); err != nil {
		return nil, err
	}
	address := net.JoinHostPort(host, strconv.Itoa(port))
	logs.Debugf("Dial(%s)", address)

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %w", ErrConnection, address, err)
	}
	return conn, nil
}

// ListenData opens the responder side of a data channel on host:port.
// host may be empty to listen on all interfaces.
func ListenData(host string, port int) (*net.TCPListener, error) {
	if _, err := ValidatePort(port); err != nil {
		return nil, err
	}
	address := net.JoinHostPort(host, strconv.Itoa(port))
	ln, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("%w: listen %s: %w", ErrConnection, address, err)
	}
	return ln.(*net.TCPListener), nil
}

type TCPHandler struct {
	address     string
	listener    net.Listener
	handler     SessionHandler
	maxSessions int
	exit        chan any
	sessions    sync.WaitGroup
	done        chan struct{}
}

// TCPHandler generator function. maxSessions <= 0 means unbounded.
func NewTCPHandler(address string, handler SessionHandler, maxSessions int, exit chan any) *TCPHandler {
	logs.Debugf("NewTCPHandler(%s)", address)
	return &TCPHandler{
		address:     address,
		handler:     handler,
		maxSessions: maxSessions,
		exit:        exit,
		done:        make(chan struct{}),
	}
}

// interface

// Listen and accept control connections via TCPHandler.listener
func (h *TCPHandler) ListenAndAccept() error {
	logs.Debugf("ListenAndAccept(%s)", h.address)
	ln, err := net.Listen("tcp", h.address)
	if err != nil {
		return fmt.Errorf("%w: listen %s: %w", ErrConnection, h.address, err)
	}
	if h.maxSessions > 0 {
		ln = netutil.LimitListener(ln, h.maxSessions)
	}
	h.listener = ln

	go func() {
		<-h.exit
		h.listener.Close()
	}()
	go h.acceptConnections()

	return nil
}

// Addr reports the bound control address, useful with port 0.
func (h *TCPHandler) Addr() net.Addr {
	if h.listener == nil {
		return nil
	}
	return h.listener.Addr()
}

// Close waits for the accept loop and every in-flight session to finish.
// The exit channel must already be closed.
func (h *TCPHandler) Close() error {
	logs.Debugf("Close(start)")
	if h.listener != nil {
		<-h.done
	}
	h.sessions.Wait()
	logs.Debugf("Close(done)")
	return nil
}

// private

// listener accept loop. Accept errors other than a closed listener (EMFILE
// and friends) back off and retry.
func (h *TCPHandler) acceptConnections() {
	logs.Debugf("acceptConnections(): start")
	defer close(h.done)
	var delay time.Duration
	for {
		conn, err := h.listener.Accept()
		if err != nil {
			select {
			case <-h.exit:
				logs.Debugf("acceptConnections(): exit")
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				logs.Warnf("acceptConnections: listener closed: %s", err)
				return
			}
			delay = acceptBackoff(delay)
			logs.Warnf("acceptConnections error: %s; retrying in %v", err, delay)
			select {
			case <-h.exit:
				logs.Debugf("acceptConnections(): exit")
				return
			case <-time.After(delay):
			}
			continue
		}
		delay = 0
		h.sessions.Add(1)
		go h.handleConnection(conn)
	}
}

const (
	minAcceptDelay = 5 * time.Millisecond
	maxAcceptDelay = time.Second
)

func acceptBackoff(prev time.Duration) time.Duration {
	if prev == 0 {
		return minAcceptDelay
	}
	return min(prev*2, maxAcceptDelay)
}

// one goroutine per control connection, no state shared between them
func (h *TCPHandler) handleConnection(conn net.Conn) {
	defer h.sessions.Done()
	clientAddr := conn.RemoteAddr().String()
	logs.Debugf("handleConnection(%s): start", clientAddr)
	h.handler.ServeSession(conn)
	logs.Debugf("handleConnection(%s): connection released", clientAddr)
}
