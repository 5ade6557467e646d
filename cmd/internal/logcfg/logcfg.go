package logcfg

import (
	"os"

	logs "github.com/danmuck/smplog"
)

const envConfigPath = "SMPLOG_CONFIG"

// Load returns file-backed logging configuration when available, otherwise
// defaults. preferred paths (such as log_config from ftp.config.toml) are
// tried after SMPLOG_CONFIG and before the local candidates.
func Load(preferred ...string) logs.Config {
	if path := os.Getenv(envConfigPath); path != "" {
		if cfg, err := logs.ConfigFromFile(path); err == nil {
			return cfg
		}
	}

	candidates := append([]string{}, preferred...)
	candidates = append(candidates,
		"./smplog.config.toml",
		"./local/smplog.config.toml",
	)

	for _, path := range candidates {
		if path == "" {
			continue
		}
		if cfg, err := logs.ConfigFromFile(path); err == nil {
			return cfg
		}
	}

	return logs.DefaultConfig()
}
