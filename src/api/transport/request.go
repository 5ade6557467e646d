package transport

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strings"
)

// Command tokens carried in the first frame of every request.
const (
	CmdList = "-l"
	CmdGet  = "-g"
)

type RequestKind int

const (
	RequestList RequestKind = iota
	RequestGet
)

func (k RequestKind) String() string {
	switch k {
	case RequestList:
		return "list"
	case RequestGet:
		return "get"
	default:
		return fmt.Sprintf("RequestKind(%d)", int(k))
	}
}

// Request is one logical client request. A Get is sent on the wire as two
// (frame, port) pairs: the command token, then the filename.
type Request struct {
	Kind     RequestKind
	Filename string // Get only
	DataPort int
}

func ListRequest(dataPort int) Request {
	return Request{Kind: RequestList, DataPort: dataPort}
}

func GetRequest(filename string, dataPort int) Request {
	return Request{Kind: RequestGet, Filename: filename, DataPort: dataPort}
}

// ParseRequest builds a Request from a command token as typed on the command
// line. filename must be empty for -l and non-empty for -g.
func ParseRequest(command string, dataPort int, filename string) (Request, error) {
	switch command {
	case CmdList:
		if filename != "" {
			return Request{}, fmt.Errorf("%w: %s takes no filename", ErrProtocol, CmdList)
		}
		return ListRequest(dataPort), nil
	case CmdGet:
		return GetRequest(filename, dataPort), nil
	default:
		return Request{}, fmt.Errorf("%w: unknown command %q (want %s or %s)", ErrProtocol, command, CmdList, CmdGet)
	}
}

func (r Request) Validate() error {
	if _, err := ValidatePort(r.DataPort); err != nil {
		return err
	}
	switch r.Kind {
	case RequestList:
		return nil
	case RequestGet:
		if strings.TrimSpace(r.Filename) == "" {
			return fmt.Errorf("%w: %s requires a filename", ErrProtocol, CmdGet)
		}
		if len(r.Filename) > MaxRequestSize {
			return fmt.Errorf("%w: filename of %d bytes exceeds %d", ErrProtocol, len(r.Filename), MaxRequestSize)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown request kind %v", ErrProtocol, r.Kind)
	}
}

// Encode returns the complete wire form of the request:
//
//	list: [4B len]["-l"][4B port]
//	get:  [4B len]["-g"][4B port][4B len][filename][4B port]
func (r Request) Encode() ([]byte, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	switch r.Kind {
	case RequestList:
		appendMessage(&buf, CmdList, uint32(r.DataPort))
	case RequestGet:
		appendMessage(&buf, CmdGet, uint32(r.DataPort))
		appendMessage(&buf, r.Filename, uint32(r.DataPort))
	}
	return buf.Bytes(), nil
}

func appendMessage(buf *bytes.Buffer, body string, port uint32) {
	var n [4]byte
	binary.BigEndian.PutUint32(n[:], uint32(len(body)))
	buf.Write(n[:])
	buf.WriteString(body)
	binary.BigEndian.PutUint32(n[:], port)
	buf.Write(n[:])
}

// SendRequest writes the whole request to the control channel in one write.
func SendRequest(w io.Writer, req Request) error {
	data, err := req.Encode()
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("%w: write %s request: %w", ErrIO, req.Kind, err)
	}
	return nil
}

// ReadMessage reads one (frame, port) pair from the control channel. The
// port is returned as sent; range checks are up to the caller.
func ReadMessage(r io.Reader, limit uint32) (string, uint32, error) {
	body, err := ReadFrameLimit(r, limit)
	if err != nil {
		return "", 0, err
	}
	port, err := ReadPort(r)
	if err != nil {
		return "", 0, err
	}
	return string(body), port, nil
}
