package ftp

import (
	"fmt"
	"os"
	"strings"

	"github.com/danmuck/dps_ftp/src/api/transport"
)

// ListDirectory returns the names directly under root, sorted, one per line.
// Subdirectories are listed by name; nothing is recursed into.
func ListDirectory(root string) (string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return "", fmt.Errorf("%w: read directory %s: %w", transport.ErrIO, root, err)
	}
	var b strings.Builder
	for _, entry := range entries {
		b.WriteString(entry.Name())
		b.WriteByte('\n')
	}
	return b.String(), nil
}
