// Package history keeps an append-only journal of files received by the
// client. Each record is a protobuf wire-format message prefixed by its
// varint length, so the file can be appended to without rewriting it.
package history

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"google.golang.org/protobuf/encoding/protowire"
)

var ErrCorruptJournal = errors.New("corrupt history journal")

// field numbers of an Entry record
const (
	fieldName     protowire.Number = 1
	fieldPath     protowire.Number = 2
	fieldRemote   protowire.Number = 3
	fieldSize     protowire.Number = 4
	fieldDigest   protowire.Number = 5
	fieldReceived protowire.Number = 6
)

// Entry records one completed download.
type Entry struct {
	Name     string // as requested from the server
	Path     string // local path written
	Remote   string // host:port of the control channel
	Size     uint64
	Digest   [sha256.Size]byte
	Received time.Time
}

func (e Entry) marshal() []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldName, protowire.BytesType)
	b = protowire.AppendString(b, e.Name)
	b = protowire.AppendTag(b, fieldPath, protowire.BytesType)
	b = protowire.AppendString(b, e.Path)
	b = protowire.AppendTag(b, fieldRemote, protowire.BytesType)
	b = protowire.AppendString(b, e.Remote)
	b = protowire.AppendTag(b, fieldSize, protowire.VarintType)
	b = protowire.AppendVarint(b, e.Size)
	b = protowire.AppendTag(b, fieldDigest, protowire.BytesType)
	b = protowire.AppendBytes(b, e.Digest[:])
	b = protowire.AppendTag(b, fieldReceived, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(e.Received.UnixNano()))
	return b
}

func unmarshalEntry(b []byte) (Entry, error) {
	var e Entry
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return e, protowire.ParseError(n)
		}
		b = b[n:]

		switch {
		case num == fieldName && typ == protowire.BytesType:
			e.Name, n = protowire.ConsumeString(b)
		case num == fieldPath && typ == protowire.BytesType:
			e.Path, n = protowire.ConsumeString(b)
		case num == fieldRemote && typ == protowire.BytesType:
			e.Remote, n = protowire.ConsumeString(b)
		case num == fieldSize && typ == protowire.VarintType:
			e.Size, n = protowire.ConsumeVarint(b)
		case num == fieldDigest && typ == protowire.BytesType:
			var digest []byte
			digest, n = protowire.ConsumeBytes(b)
			if n >= 0 && len(digest) != sha256.Size {
				return e, fmt.Errorf("digest is %d bytes, want %d", len(digest), sha256.Size)
			}
			copy(e.Digest[:], digest)
		case num == fieldReceived && typ == protowire.VarintType:
			var nanos uint64
			nanos, n = protowire.ConsumeVarint(b)
			e.Received = time.Unix(0, int64(nanos))
		default:
			// skip fields written by a newer client
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return e, protowire.ParseError(n)
		}
		b = b[n:]
	}
	return e, nil
}

// Append adds e to the journal at path, creating it and its directory.
func Append(path string, e Entry) error {
	if e.Received.IsZero() {
		e.Received = time.Now()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create history directory: %w", err)
	}

	record := protowire.AppendBytes(nil, e.marshal())

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open history journal: %w", err)
	}
	if _, err := f.Write(record); err != nil {
		f.Close()
		return fmt.Errorf("failed to append history entry: %w", err)
	}
	return f.Close()
}

// Load returns every entry in the journal, oldest first. A missing journal
// is empty.
func Load(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read history journal: %w", err)
	}

	var entries []Entry
	for offset := 0; len(data) > 0; {
		record, n := protowire.ConsumeBytes(data)
		if n < 0 {
			return entries, fmt.Errorf("%w: record at byte %d: %w", ErrCorruptJournal, offset, protowire.ParseError(n))
		}
		e, err := unmarshalEntry(record)
		if err != nil {
			return entries, fmt.Errorf("%w: record at byte %d: %w", ErrCorruptJournal, offset, err)
		}
		entries = append(entries, e)
		data = data[n:]
		offset += n
	}
	return entries, nil
}
