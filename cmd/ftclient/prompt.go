package main

import (
	"bufio"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/danmuck/dps_ftp/src/ftp"
	logs "github.com/danmuck/smplog"
)

func isInteractiveInput(r *os.File) bool {
	info, err := r.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}

// promptOverwrite asks on input before clobbering a local file. Piped or
// redirected input never confirms, so the download lands on a copy name.
func promptOverwrite(input *os.File) ftp.Confirmer {
	interactive := isInteractiveInput(input)
	reader := bufio.NewReader(input)
	return func(path string) (bool, error) {
		if !interactive {
			logs.StatusWarn(path + " exists and input is not interactive; keeping it.")
			return false, nil
		}
		return confirm(reader, path)
	}
}

func confirm(reader *bufio.Reader, path string) (bool, error) {
	logs.Promptf("%s already exists. Overwrite? (y/N): ", path)
	line, err := reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
