package ftp

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/danmuck/dps_ftp/src/api/transport"
)

// fakeResponder answers every control session with reply. When reply is
// DATA it also serves payload on the data listener it owns.
type fakeResponder struct {
	controlPort int
	dataPort    int
	dataDials   atomic.Int32
}

func startFakeResponder(t *testing.T, reply string, payload []byte) *fakeResponder {
	t.Helper()
	ctrl, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen control: %v", err)
	}
	data, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen data: %v", err)
	}
	t.Cleanup(func() {
		ctrl.Close()
		data.Close()
	})

	f := &fakeResponder{
		controlPort: ctrl.Addr().(*net.TCPAddr).Port,
		dataPort:    data.Addr().(*net.TCPAddr).Port,
	}

	go func() {
		for {
			conn, err := data.Accept()
			if err != nil {
				return
			}
			f.dataDials.Add(1)
			transport.WriteFrame(conn, payload)
			conn.Close()
		}
	}()

	go func() {
		for {
			conn, err := ctrl.Accept()
			if err != nil {
				return
			}
			conn.SetDeadline(time.Now().Add(5 * time.Second))
			cmd, _, err := transport.ReadMessage(conn, transport.MaxRequestSize)
			if err == nil && cmd == transport.CmdGet {
				transport.ReadMessage(conn, transport.MaxRequestSize)
			}
			transport.WriteFrame(conn, []byte(reply))
			conn.Close()
		}
	}()
	return f
}

func (f *fakeResponder) client(t *testing.T) *Client {
	t.Helper()
	c, err := NewClient("127.0.0.1", f.controlPort, f.dataPort)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	c.Timeout = 5 * time.Second
	return c
}

func garbageReplies() []string {
	replies := []string{
		"",
		"data",
		"Data",
		"DATA ",
		" DATA",
		"DATA\n",
		"DATA\x00",
		"DAT",
		"DATADATA",
		StatusFileNotFound,
		StatusInvalidCommand,
		"Requested file does not exist.",
	}
	rng := rand.New(rand.NewSource(372))
	for len(replies) < 80 {
		b := make([]byte, rng.Intn(12))
		for i := range b {
			b[i] = byte(rng.Intn(256))
		}
		if string(b) == StatusData {
			continue
		}
		replies = append(replies, string(b))
	}
	return replies
}

func TestDataChannelGatedOnDataReply(t *testing.T) {
	for _, reply := range garbageReplies() {
		f := startFakeResponder(t, reply, []byte("should never be read"))
		c := f.client(t)

		_, err := c.List(context.Background())
		var statusErr *transport.StatusError
		if !errors.As(err, &statusErr) {
			t.Fatalf("reply %q: List error = %v, want *StatusError", reply, err)
		}
		if statusErr.Status != reply {
			t.Fatalf("reply %q surfaced as %q", reply, statusErr.Status)
		}
		if !errors.Is(err, transport.ErrApplication) {
			t.Fatalf("reply %q: error does not match ErrApplication", reply)
		}

		_, err = c.Get(context.Background(), "report.txt", &FileReceiver{Dir: t.TempDir()})
		if !errors.Is(err, transport.ErrApplication) {
			t.Fatalf("reply %q: Get error = %v, want ErrApplication", reply, err)
		}

		if n := f.dataDials.Load(); n != 0 {
			t.Fatalf("reply %q: data channel dialed %d times", reply, n)
		}
	}
}

func TestDataReplyOpensDataChannel(t *testing.T) {
	f := startFakeResponder(t, StatusData, []byte("a.txt\n"))
	listing, err := f.client(t).List(context.Background())
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if listing != "a.txt\n" {
		t.Fatalf("listing = %q", listing)
	}
	if n := f.dataDials.Load(); n != 1 {
		t.Fatalf("data channel dialed %d times, want 1", n)
	}
}

func TestClientListingLimit(t *testing.T) {
	f := startFakeResponder(t, StatusData, make([]byte, 64))
	c := f.client(t)
	c.MaxFrameSize = 32
	if _, err := c.List(context.Background()); !errors.Is(err, transport.ErrProtocol) {
		t.Fatalf("List error = %v, want ErrProtocol", err)
	}
}

func TestNewClientValidatesPorts(t *testing.T) {
	tests := []struct {
		control, data int
	}{
		{control: 1023, data: 2000},
		{control: 2000, data: 65536},
		{control: 0, data: 0},
	}
	for _, tc := range tests {
		if _, err := NewClient("localhost", tc.control, tc.data); !errors.Is(err, transport.ErrInvalidPort) {
			t.Errorf("NewClient(%d, %d) error = %v, want ErrInvalidPort", tc.control, tc.data, err)
		}
	}
}

func TestClientConnectionRefused(t *testing.T) {
	c, err := NewClient("127.0.0.1", freePort(t), freePort(t))
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	_, err = c.List(context.Background())
	if !errors.Is(err, transport.ErrConnection) {
		t.Fatalf("List error = %v, want ErrConnection", err)
	}
}

func TestClientRejectsRequestBeforeDial(t *testing.T) {
	f := startFakeResponder(t, StatusData, nil)
	c := f.client(t)
	if _, err := c.Get(context.Background(), "", nil); !errors.Is(err, transport.ErrProtocol) {
		t.Fatalf("Get(\"\") error = %v, want ErrProtocol", err)
	}
	if n := f.dataDials.Load(); n != 0 {
		t.Fatalf("data channel dialed %d times", n)
	}
}
