package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/danmuck/dps_ftp/cmd/internal/ftcfg"
	"github.com/danmuck/dps_ftp/cmd/internal/logcfg"
	"github.com/danmuck/dps_ftp/src/api/transport"
	logs "github.com/danmuck/smplog"
)

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), "Usage: ftserver [flags] PORT\n\n")
	flag.PrintDefaults()
}

func main() {
	configPath := flag.String("config", "", "path to ftp.config.toml")
	root := flag.String("root", "", "directory to list and serve (overrides config)")
	dataHost := flag.String("data-host", "", "data channel listen host (overrides config)")
	maxSessions := flag.Int("max-sessions", -1, "concurrent control sessions, 0 = unbounded (overrides config)")
	flag.Usage = usage
	flag.Parse()

	cfg, used, cfgErr := ftcfg.Load(*configPath)
	logs.Configure(logcfg.Load(cfg.LogConfig))
	if cfgErr != nil {
		logs.Fatalf(cfgErr, "failed to load config")
	}
	if used != "" {
		logs.Debugf("config: %s", used)
	}

	if flag.NArg() != 1 {
		usage()
		os.Exit(2)
	}
	port, err := transport.ParsePort(flag.Arg(0))
	if err != nil {
		logs.Fatalf(err, "invalid control port")
	}

	if *root != "" {
		cfg.Server.Root = *root
	}
	if *dataHost != "" {
		cfg.Server.DataHost = *dataHost
	}
	if *maxSessions >= 0 {
		cfg.Server.MaxSessions = *maxSessions
	}
	if info, err := os.Stat(cfg.Server.Root); err != nil || !info.IsDir() {
		logs.Fatalf(fmt.Errorf("%s is not a directory", cfg.Server.Root), "invalid root")
	}

	srv := cfg.Server.NewServer()
	exit := make(chan any)
	handler := transport.NewTCPHandler(net.JoinHostPort("", strconv.Itoa(port)), srv, cfg.Server.MaxSessions, exit)
	if err := handler.ListenAndAccept(); err != nil {
		logs.Fatalf(err, "failed to listen")
	}
	logs.Infof("ftserver listening on %s (root: %s, max sessions: %d)", handler.Addr(), srv.Root, cfg.Server.MaxSessions)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	logs.Infof("ftserver shutting down, waiting for open sessions")
	close(exit)
	handler.Close()
}
