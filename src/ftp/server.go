package ftp

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/danmuck/dps_ftp/src/api/transport"
	logs "github.com/danmuck/smplog"
)

// Server is the responder. It serves one request per control connection
// out of Root and keeps no state between sessions, so a single Server can
// be shared by every session goroutine.
type Server struct {
	Root           string        // directory that is listed and served
	DataHost       string        // data channel listen host, "" for all interfaces
	AcceptTimeout  time.Duration // how long to wait for the client's data dial
	SessionTimeout time.Duration // deadline on control and data I/O, 0 = none
	MaxFrameSize   uint32        // largest payload served, 0 = transport.DefaultMaxFrameSize
}

func NewServer(root string) *Server {
	return &Server{
		Root:           root,
		AcceptTimeout:  DefaultAcceptTimeout,
		SessionTimeout: DefaultSessionTimeout,
		MaxFrameSize:   transport.DefaultMaxFrameSize,
	}
}

// ServeSession runs the dispatcher for one control connection and closes it.
func (s *Server) ServeSession(conn net.Conn) {
	defer conn.Close()
	peer := conn.RemoteAddr().String()
	logs.Debugf("ServeSession(%s): start", peer)

	if s.SessionTimeout > 0 {
		conn.SetDeadline(time.Now().Add(s.SessionTimeout))
	}
	if err := s.dispatch(conn); err != nil {
		logs.Warnf("session %s: %v", peer, err)
		return
	}
	logs.Debugf("ServeSession(%s): done", peer)
}

// dispatch reads one logical request and moves through
// AwaitCommand -> (Listing | AwaitFilename -> SendFile) -> Closed.
// The whole request is consumed before any reply so a refusal never races
// unread client bytes. Refusals are a normal end of session and return nil.
func (s *Server) dispatch(conn net.Conn) error {
	cmd, port, err := transport.ReadMessage(conn, transport.MaxRequestSize)
	if err != nil {
		return fmt.Errorf("read command: %w", err)
	}

	var name string
	if cmd == transport.CmdGet {
		var filePort uint32
		name, filePort, err = transport.ReadMessage(conn, transport.MaxRequestSize)
		if err != nil {
			return fmt.Errorf("read filename: %w", err)
		}
		if filePort != port {
			return s.refuse(conn, StatusPortMismatch,
				fmt.Errorf("%w: filename sent with port %d, command with %d", transport.ErrProtocol, filePort, port))
		}
	}

	dataPort, err := transport.ValidatePort(int(port))
	if err != nil {
		return s.refuse(conn, StatusInvalidPort, err)
	}

	switch cmd {
	case transport.CmdList:
		listing, err := ListDirectory(s.Root)
		if err != nil {
			return s.refuse(conn, StatusListingFailed, err)
		}
		if uint64(len(listing)) > uint64(s.maxFrame()) {
			return s.refuse(conn, StatusListingTooLarge,
				fmt.Errorf("%w: listing is %d bytes, limit %d", transport.ErrIO, len(listing), s.maxFrame()))
		}
		logs.Infof("%s: list %s", conn.RemoteAddr(), s.Root)
		return s.sendData(conn, dataPort, []byte(listing))

	case transport.CmdGet:
		content, status, err := s.readFile(name)
		if err != nil {
			return s.refuse(conn, status, err)
		}
		logs.Infof("%s: get %q (%d bytes)", conn.RemoteAddr(), name, len(content))
		return s.sendData(conn, dataPort, content)

	default:
		return s.refuse(conn, StatusInvalidCommand,
			fmt.Errorf("%w: unknown command %q", transport.ErrProtocol, cmd))
	}
}

// refuse sends a terminal status. No data listener is ever opened on this path.
func (s *Server) refuse(conn net.Conn, status string, cause error) error {
	logs.Infof("%s: refused (%s): %v", conn.RemoteAddr(), status, cause)
	return transport.WriteFrame(conn, []byte(status))
}

// sendData opens the data listener before replying DATA, so the client's
// dial can never race ahead of it, then writes the payload as one frame.
func (s *Server) sendData(ctrl net.Conn, port int, payload []byte) error {
	ln, err := transport.ListenData(s.DataHost, port)
	if err != nil {
		return s.refuse(ctrl, StatusPortUnavailable, err)
	}
	defer ln.Close()

	if err := transport.WriteFrame(ctrl, []byte(StatusData)); err != nil {
		return err
	}

	if s.AcceptTimeout > 0 {
		ln.SetDeadline(time.Now().Add(s.AcceptTimeout))
	}
	data, err := ln.Accept()
	if err != nil {
		return fmt.Errorf("%w: accept data channel on port %d: %w", transport.ErrConnection, port, err)
	}
	defer data.Close()
	logs.Debugf("data channel %s -> %s", data.LocalAddr(), data.RemoteAddr())

	if s.SessionTimeout > 0 {
		data.SetDeadline(time.Now().Add(s.SessionTimeout))
	}
	return transport.WriteFrame(data, payload)
}

// readFile loads a file that sits directly in Root. On failure it returns
// the status to send back.
func (s *Server) readFile(name string) ([]byte, string, error) {
	if !isPlainName(name) {
		return nil, StatusFileNotFound, fmt.Errorf("%w: rejected filename %q", transport.ErrIO, name)
	}
	path := filepath.Join(s.Root, name)

	info, err := os.Stat(path)
	if err != nil {
		return nil, StatusFileNotFound, fmt.Errorf("%w: stat %s: %w", transport.ErrIO, path, err)
	}
	if !info.Mode().IsRegular() {
		return nil, StatusFileNotFound, fmt.Errorf("%w: %s is not a regular file", transport.ErrIO, path)
	}
	if uint64(info.Size()) > uint64(s.maxFrame()) {
		return nil, StatusFileTooLarge, fmt.Errorf("%w: %s is %d bytes, limit %d", transport.ErrIO, path, info.Size(), s.maxFrame())
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, StatusFileNotFound, fmt.Errorf("%w: read %s: %w", transport.ErrIO, path, err)
	}
	return content, "", nil
}

func (s *Server) maxFrame() uint32 {
	if s.MaxFrameSize == 0 {
		return transport.DefaultMaxFrameSize
	}
	return s.MaxFrameSize
}

// isPlainName reports whether name refers to an entry directly under the
// served root and nothing above or below it.
func isPlainName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	if strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) {
		return false
	}
	return filepath.Base(name) == name
}
