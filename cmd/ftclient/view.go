package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/danmuck/dps_ftp/src/history"
	logs "github.com/danmuck/smplog"
)

func printHistory(path string) error {
	if path == "" {
		return errors.New("history is disabled (client.history_path is empty)")
	}
	entries, err := history.Load(path)
	if err != nil && len(entries) == 0 {
		return err
	}

	logs.Titlef("\nTransfer history (%d):\n", len(entries))
	logs.DataKV("Journal", path)
	for i, e := range entries {
		logs.Dataf("  %3d  %s  %-24s %10s  sha256:%x...  from %s\n",
			i, e.Received.Format("2006-01-02 15:04:05"), e.Name, formatBytes(e.Size), e.Digest[:6], e.Remote)
		logs.Dataf("       -> %s\n", e.Path)
	}
	if err != nil {
		logs.StatusWarn(fmt.Sprintf("journal damaged after entry %d: %v", len(entries), err))
	}
	return nil
}

func formatBytes(value uint64) string {
	if value == 0 {
		return "0 B"
	}

	units := []string{"B", "KiB", "MiB", "GiB", "TiB"}
	size := float64(value)
	unitIdx := 0
	for size >= 1024 && unitIdx < len(units)-1 {
		size /= 1024
		unitIdx++
	}

	if unitIdx == 0 {
		return fmt.Sprintf("%d %s", value, units[unitIdx])
	}

	formatted := fmt.Sprintf("%.2f", size)
	formatted = strings.TrimRight(strings.TrimRight(formatted, "0"), ".")
	return fmt.Sprintf("%s %s", formatted, units[unitIdx])
}
