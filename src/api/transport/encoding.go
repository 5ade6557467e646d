package transport

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

const (
	DefaultMaxFrameSize = 64 << 20 // 64mb, bounds a single listing or file
	MaxRequestSize      = 4096     // command tokens and filenames
	headerSize          = 4
)

// WriteFrame writes a 4-byte big-endian length prefix followed by the payload.
func WriteFrame(w io.Writer, data []byte) error {
	if uint64(len(data)) > math.MaxUint32 {
		return fmt.Errorf("%w: frame of %d bytes exceeds uint32 length", ErrProtocol, len(data))
	}
	buf := make([]byte, headerSize, headerSize+len(data))
	binary.BigEndian.PutUint32(buf, uint32(len(data)))
	buf = append(buf, data...)
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("%w: write frame: %w", ErrIO, err)
	}
	return nil
}

// ReadFrame reads one frame bounded by DefaultMaxFrameSize.
func ReadFrame(r io.Reader) ([]byte, error) {
	return ReadFrameLimit(r, DefaultMaxFrameSize)
}

// ReadFrameLimit reads a 4-byte big-endian length prefix then exactly that
// many payload bytes. A declared length above limit fails before the payload
// is allocated.
func ReadFrameLimit(r io.Reader, limit uint32) ([]byte, error) {
	var hdr [headerSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, readErr("frame length", err)
	}
	length := binary.BigEndian.Uint32(hdr[:])
	if length > limit {
		return nil, fmt.Errorf("%w: frame length %d exceeds limit %d", ErrProtocol, length, limit)
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, readErr("frame body", err)
	}
	return buf, nil
}

// WritePort writes the 4-byte big-endian data port field of a request.
func WritePort(w io.Writer, port uint32) error {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], port)
	if _, err := w.Write(buf[:]); err != nil {
		return fmt.Errorf("%w: write port: %w", ErrIO, err)
	}
	return nil
}

// ReadPort reads the 4-byte big-endian data port field of a request.
func ReadPort(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, readErr("port", err)
	}
	return binary.BigEndian.Uint32(buf[:]), nil
}

// a peer closing before or inside a field is a framing violation; anything
// else (reset, deadline) is a transport failure
func readErr(field string, err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: connection closed reading %s: %w", ErrProtocol, field, err)
	}
	return fmt.Errorf("%w: read %s: %w", ErrIO, field, err)
}
