package transport

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestListRequestEncoding(t *testing.T) {
	var buf bytes.Buffer
	if err := SendRequest(&buf, ListRequest(30020)); err != nil {
		t.Fatalf("SendRequest failed: %v", err)
	}

	body, port, err := ReadMessage(&buf, MaxRequestSize)
	if err != nil {
		t.Fatalf("ReadMessage failed: %v", err)
	}
	if body != CmdList || port != 30020 {
		t.Fatalf("got (%q, %d), want (%q, 30020)", body, port, CmdList)
	}
	if buf.Len() != 0 {
		t.Fatalf("list request left %d extra bytes", buf.Len())
	}
}

func TestGetRequestIsCommandThenFilename(t *testing.T) {
	var buf bytes.Buffer
	if err := SendRequest(&buf, GetRequest("report.txt", 40000)); err != nil {
		t.Fatalf("SendRequest failed: %v", err)
	}

	want := []struct {
		body string
		port uint32
	}{
		{body: CmdGet, port: 40000},
		{body: "report.txt", port: 40000},
	}
	for i, w := range want {
		body, port, err := ReadMessage(&buf, MaxRequestSize)
		if err != nil {
			t.Fatalf("message %d: ReadMessage failed: %v", i, err)
		}
		if body != w.body || port != w.port {
			t.Fatalf("message %d: got (%q, %d), want (%q, %d)", i, body, port, w.body, w.port)
		}
	}
	if buf.Len() != 0 {
		t.Fatalf("get request left %d extra bytes", buf.Len())
	}
}

type countingWriter struct {
	writes int
	bytes.Buffer
}

func (w *countingWriter) Write(p []byte) (int, error) {
	w.writes++
	return w.Buffer.Write(p)
}

func TestSendRequestWritesOnce(t *testing.T) {
	w := &countingWriter{}
	if err := SendRequest(w, GetRequest("a.bin", 2048)); err != nil {
		t.Fatalf("SendRequest failed: %v", err)
	}
	if w.writes != 1 {
		t.Fatalf("SendRequest issued %d writes, want 1", w.writes)
	}
}

func TestRequestValidation(t *testing.T) {
	tests := []struct {
		name string
		req  Request
		want error
	}{
		{name: "list port too low", req: ListRequest(1023), want: ErrInvalidPort},
		{name: "get port too high", req: GetRequest("x", 65536), want: ErrInvalidPort},
		{name: "get without filename", req: GetRequest("  ", 2000), want: ErrProtocol},
		{name: "get filename too long", req: GetRequest(strings.Repeat("f", MaxRequestSize+1), 2000), want: ErrProtocol},
		{name: "unknown kind", req: Request{Kind: RequestKind(9), DataPort: 2000}, want: ErrProtocol},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			err := SendRequest(&buf, tc.req)
			if !errors.Is(err, tc.want) {
				t.Fatalf("SendRequest error = %v, want %v", err, tc.want)
			}
			if buf.Len() != 0 {
				t.Fatalf("invalid request wrote %d bytes", buf.Len())
			}
		})
	}
}

func TestParseRequest(t *testing.T) {
	req, err := ParseRequest("-g", 3000, "notes.md")
	if err != nil {
		t.Fatalf("ParseRequest(-g) failed: %v", err)
	}
	if req.Kind != RequestGet || req.Filename != "notes.md" || req.DataPort != 3000 {
		t.Fatalf("ParseRequest(-g) = %+v", req)
	}

	req, err = ParseRequest("-l", 3000, "")
	if err != nil {
		t.Fatalf("ParseRequest(-l) failed: %v", err)
	}
	if req.Kind != RequestList {
		t.Fatalf("ParseRequest(-l) kind = %v", req.Kind)
	}

	if _, err := ParseRequest("-x", 3000, ""); !errors.Is(err, ErrProtocol) {
		t.Fatalf("ParseRequest(-x) error = %v, want ErrProtocol", err)
	}
	if _, err := ParseRequest("-l", 3000, "extra"); !errors.Is(err, ErrProtocol) {
		t.Fatalf("ParseRequest(-l extra) error = %v, want ErrProtocol", err)
	}
}
