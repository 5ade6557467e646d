package ftcfg

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/dps_ftp/src/api/transport"
	"github.com/danmuck/dps_ftp/src/ftp"
)

const envConfigPath = "FTP_CONFIG"

var candidates = []string{
	"./ftp.config.toml",
	"./local/ftp.config.toml",
}

// Config is the on-disk configuration shared by ftserver and ftclient.
type Config struct {
	LogConfig string       `toml:"log_config"` // smplog config file, tried before smplog's own defaults
	Server    ServerConfig `toml:"server"`
	Client    ClientConfig `toml:"client"`
}

type ServerConfig struct {
	Root                  string `toml:"root"`
	DataHost              string `toml:"data_host"`
	MaxSessions           int    `toml:"max_sessions"`
	AcceptTimeoutSeconds  uint64 `toml:"accept_timeout_seconds"`
	SessionTimeoutSeconds uint64 `toml:"session_timeout_seconds"`
	MaxFrameBytes         uint32 `toml:"max_frame_bytes"`
}

type ClientConfig struct {
	DownloadDir    string `toml:"download_dir"`
	TimeoutSeconds uint64 `toml:"timeout_seconds"`
	Overwrite      string `toml:"overwrite"`
	HistoryPath    string `toml:"history_path"` // "" disables the journal
	MaxFrameBytes  uint32 `toml:"max_frame_bytes"`
}

func Default() Config {
	return Config{
		Server: ServerConfig{
			Root:                  ".",
			DataHost:              "",
			MaxSessions:           16,
			AcceptTimeoutSeconds:  uint64(ftp.DefaultAcceptTimeout / time.Second),
			SessionTimeoutSeconds: uint64(ftp.DefaultSessionTimeout / time.Second),
			MaxFrameBytes:         transport.DefaultMaxFrameSize,
		},
		Client: ClientConfig{
			DownloadDir:    ".",
			TimeoutSeconds: uint64(ftp.DefaultSessionTimeout / time.Second),
			Overwrite:      ftp.OverwritePrompt.String(),
			HistoryPath:    "",
			MaxFrameBytes:  transport.DefaultMaxFrameSize,
		},
	}
}

// Load decodes the config file over Default(). An explicit path must exist;
// otherwise FTP_CONFIG and then the local candidates are tried, and finding
// none yields the defaults. The second return is the file used, if any.
func Load(path string) (Config, string, error) {
	cfg := Default()

	if path != "" {
		if err := decode(path, &cfg); err != nil {
			return cfg, "", err
		}
		return cfg, path, cfg.Validate()
	}

	search := candidates
	if env := os.Getenv(envConfigPath); env != "" {
		search = append([]string{env}, candidates...)
	}
	for _, candidate := range search {
		if _, err := os.Stat(candidate); err != nil {
			continue
		}
		if err := decode(candidate, &cfg); err != nil {
			return cfg, "", err
		}
		return cfg, candidate, cfg.Validate()
	}
	return cfg, "", nil
}

func decode(path string, cfg *Config) error {
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("failed to decode config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("config %s: unknown keys %v", path, undecoded)
	}
	return nil
}

func (c Config) Validate() error {
	var errs []error
	if c.Server.MaxSessions < 0 {
		errs = append(errs, fmt.Errorf("server.max_sessions must be >= 0"))
	}
	if c.Server.MaxFrameBytes == 0 {
		errs = append(errs, fmt.Errorf("server.max_frame_bytes must be >= 1"))
	}
	if c.Client.MaxFrameBytes == 0 {
		errs = append(errs, fmt.Errorf("client.max_frame_bytes must be >= 1"))
	}
	if _, err := ftp.ParseOverwritePolicy(c.Client.Overwrite); err != nil {
		errs = append(errs, fmt.Errorf("client.overwrite: %w", err))
	}
	return errors.Join(errs...)
}

func (s ServerConfig) AcceptTimeout() time.Duration {
	return time.Duration(s.AcceptTimeoutSeconds) * time.Second
}

func (s ServerConfig) SessionTimeout() time.Duration {
	return time.Duration(s.SessionTimeoutSeconds) * time.Second
}

func (c ClientConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// NewServer builds a responder from the server section.
func (s ServerConfig) NewServer() *ftp.Server {
	srv := ftp.NewServer(s.Root)
	srv.DataHost = s.DataHost
	srv.AcceptTimeout = s.AcceptTimeout()
	srv.SessionTimeout = s.SessionTimeout()
	srv.MaxFrameSize = s.MaxFrameBytes
	return srv
}
