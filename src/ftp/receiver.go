package ftp

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/danmuck/dps_ftp/src/api/transport"
	logs "github.com/danmuck/smplog"
)

// maxCopies bounds the <stem>_copy_N<ext> search.
const maxCopies = 1000

type OverwritePolicy int

const (
	OverwritePrompt OverwritePolicy = iota // ask Confirm, decline derives a copy name
	OverwriteAlways
	OverwriteNever
)

func (p OverwritePolicy) String() string {
	switch p {
	case OverwritePrompt:
		return "prompt"
	case OverwriteAlways:
		return "always"
	case OverwriteNever:
		return "never"
	default:
		return fmt.Sprintf("OverwritePolicy(%d)", int(p))
	}
}

func ParseOverwritePolicy(s string) (OverwritePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "prompt":
		return OverwritePrompt, nil
	case "always", "yes":
		return OverwriteAlways, nil
	case "never", "no":
		return OverwriteNever, nil
	default:
		return OverwritePrompt, fmt.Errorf("unknown overwrite policy %q (want prompt, always or never)", s)
	}
}

// Confirmer is asked whether an existing file at path may be overwritten.
type Confirmer func(path string) (bool, error)

// FileReceiver writes a received file into Dir.
type FileReceiver struct {
	Dir          string
	Policy       OverwritePolicy
	Confirm      Confirmer // nil declines every overwrite
	MaxFrameSize uint32
}

// Receipt describes a file written by ReceiveFile.
type Receipt struct {
	Name      string // as requested
	Path      string // where it was written
	Size      uint64
	Digest    [sha256.Size]byte
	Overwrote bool
}

// ReceiveFile reads one frame from the data channel as the whole file and
// stores it under the requested name.
func (r *FileReceiver) ReceiveFile(data io.Reader, requested string) (*Receipt, error) {
	limit := r.MaxFrameSize
	if limit == 0 {
		limit = transport.DefaultMaxFrameSize
	}
	payload, err := transport.ReadFrameLimit(data, limit)
	if err != nil {
		return nil, fmt.Errorf("read file %q: %w", requested, err)
	}
	return r.Store(payload, requested)
}

// Store writes payload to Dir/base(requested), resolving a collision with an
// existing file by policy. Declined overwrites go to the first free
// <stem>_copy<ext>, <stem>_copy_2<ext>, ... name; the original is untouched.
func (r *FileReceiver) Store(payload []byte, requested string) (*Receipt, error) {
	name := filepath.Base(filepath.Clean(requested))
	if name == "." || name == ".." || name == string(filepath.Separator) {
		return nil, fmt.Errorf("%w: cannot store file named %q", transport.ErrIO, requested)
	}
	dir := r.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("%w: create %s: %w", transport.ErrIO, dir, err)
	}

	receipt := &Receipt{
		Name:   requested,
		Size:   uint64(len(payload)),
		Digest: sha256.Sum256(payload),
	}
	target := filepath.Join(dir, name)

	err := writeFile(target, payload)
	if err == nil {
		receipt.Path = target
		return receipt, nil
	}
	if !errors.Is(err, os.ErrExist) {
		return nil, err
	}

	overwrite, err := r.shouldOverwrite(target)
	if err != nil {
		return nil, err
	}
	if overwrite {
		if err := replaceFile(target, payload); err != nil {
			return nil, err
		}
		receipt.Path = target
		receipt.Overwrote = true
		logs.Infof("overwrote %s", target)
		return receipt, nil
	}

	for n := 1; n <= maxCopies; n++ {
		candidate := CopyName(target, n)
		err := writeFile(candidate, payload)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		receipt.Path = candidate
		logs.Infof("%s exists, wrote %s", target, candidate)
		return receipt, nil
	}
	return nil, fmt.Errorf("%w: no free copy name for %s after %d attempts", transport.ErrIO, target, maxCopies)
}

func (r *FileReceiver) shouldOverwrite(path string) (bool, error) {
	switch r.Policy {
	case OverwriteAlways:
		return true, nil
	case OverwriteNever:
		return false, nil
	}
	if r.Confirm == nil {
		return false, nil
	}
	ok, err := r.Confirm(path)
	if err != nil {
		return false, fmt.Errorf("%w: confirm overwrite of %s: %w", transport.ErrIO, path, err)
	}
	return ok, nil
}

// CopyName derives the n-th collision name for path: report.txt becomes
// report_copy.txt for n == 1 and report_copy_<n>.txt after that.
func CopyName(path string, n int) string {
	dir, base := filepath.Split(path)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	if stem == "" {
		// dotfile such as .env has no extension
		stem, ext = base, ""
	}
	suffix := "_copy"
	if n > 1 {
		suffix += "_" + strconv.Itoa(n)
	}
	return filepath.Join(dir, stem+suffix+ext)
}

// writeFile creates path exclusively. The os.ErrExist is returned unwrapped
// so callers can keep searching.
func writeFile(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return err
		}
		return fmt.Errorf("%w: open %s: %w", transport.ErrIO, path, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("%w: write %s: %w", transport.ErrIO, path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %w", transport.ErrIO, path, err)
	}
	return nil
}

// replaceFile writes data to a temp file next to path and renames it over
// path, so a failed write leaves the existing file intact.
func replaceFile(path string, data []byte) error {
	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	tmp, err := os.CreateTemp(dir, "."+base+".*.part")
	if err != nil {
		return fmt.Errorf("%w: create temp for %s: %w", transport.ErrIO, path, err)
	}
	tmpName := tmp.Name()
	fail := func(op string, err error) error {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: %s %s: %w", transport.ErrIO, op, tmpName, err)
	}

	if _, err := tmp.Write(data); err != nil {
		return fail("write", err)
	}
	if err := tmp.Chmod(0644); err != nil {
		return fail("chmod", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: close %s: %w", transport.ErrIO, tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: rename %s: %w", transport.ErrIO, tmpName, err)
	}
	return nil
}
