package ftp

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/danmuck/dps_ftp/src/api/transport"
	logs "github.com/danmuck/smplog"
)

// Client is the initiator. Each call to List or Get is one complete session:
// a fresh control connection and at most one data connection.
type Client struct {
	Host         string
	ControlPort  int
	DataPort     int
	Timeout      time.Duration // deadline on each channel once open, 0 = none
	MaxFrameSize uint32        // largest listing accepted, 0 = transport.DefaultMaxFrameSize
}

// NewClient validates both ports before anything touches the network.
func NewClient(host string, controlPort, dataPort int) (*Client, error) {
	if _, err := transport.ValidatePort(controlPort); err != nil {
		return nil, fmt.Errorf("control port: %w", err)
	}
	if _, err := transport.ValidatePort(dataPort); err != nil {
		return nil, fmt.Errorf("data port: %w", err)
	}
	return &Client{
		Host:         host,
		ControlPort:  controlPort,
		DataPort:     dataPort,
		Timeout:      DefaultSessionTimeout,
		MaxFrameSize: transport.DefaultMaxFrameSize,
	}, nil
}

// List fetches the responder's directory listing.
func (c *Client) List(ctx context.Context) (string, error) {
	var listing string
	err := c.exchange(ctx, transport.ListRequest(c.DataPort), func(data net.Conn) error {
		payload, err := transport.ReadFrameLimit(data, c.maxFrame())
		if err != nil {
			return fmt.Errorf("read listing: %w", err)
		}
		listing = string(payload)
		return nil
	})
	return listing, err
}

// Get fetches filename and hands the data channel to recv.
func (c *Client) Get(ctx context.Context, filename string, recv *FileReceiver) (*Receipt, error) {
	if recv == nil {
		recv = &FileReceiver{}
	}
	var receipt *Receipt
	err := c.exchange(ctx, transport.GetRequest(filename, c.DataPort), func(data net.Conn) error {
		var err error
		receipt, err = recv.ReceiveFile(data, filename)
		return err
	})
	return receipt, err
}

// exchange runs one session. The data channel is dialed only after the
// control reply reads exactly DATA; any other reply comes back as a
// *transport.StatusError and nothing further is dialed.
func (c *Client) exchange(ctx context.Context, req transport.Request, consume func(net.Conn) error) error {
	if err := req.Validate(); err != nil {
		return err
	}

	ctrl, err := transport.Dial(ctx, c.Host, c.ControlPort)
	if err != nil {
		return fmt.Errorf("control channel: %w", err)
	}
	defer ctrl.Close()
	c.setDeadline(ctrl)

	logs.Debugf("exchange(%s): sending %s request, data port %d", ctrl.RemoteAddr(), req.Kind, req.DataPort)
	if err := transport.SendRequest(ctrl, req); err != nil {
		return err
	}

	reply, err := transport.ReadFrameLimit(ctrl, transport.MaxRequestSize)
	if err != nil {
		return fmt.Errorf("read reply: %w", err)
	}
	if string(reply) != StatusData {
		return &transport.StatusError{Status: string(reply)}
	}

	data, err := transport.Dial(ctx, c.Host, req.DataPort)
	if err != nil {
		return fmt.Errorf("data channel: %w", err)
	}
	defer data.Close()
	c.setDeadline(data)

	return consume(data)
}

func (c *Client) setDeadline(conn net.Conn) {
	if c.Timeout > 0 {
		conn.SetDeadline(time.Now().Add(c.Timeout))
	}
}

func (c *Client) maxFrame() uint32 {
	if c.MaxFrameSize == 0 {
		return transport.DefaultMaxFrameSize
	}
	return c.MaxFrameSize
}
