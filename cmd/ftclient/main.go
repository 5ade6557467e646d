package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/danmuck/dps_ftp/cmd/internal/ftcfg"
	"github.com/danmuck/dps_ftp/cmd/internal/logcfg"
	"github.com/danmuck/dps_ftp/src/api/transport"
	"github.com/danmuck/dps_ftp/src/ftp"
	"github.com/danmuck/dps_ftp/src/history"
	logs "github.com/danmuck/smplog"
)

func usage() {
	out := flag.CommandLine.Output()
	fmt.Fprintf(out, "Usage: ftclient [flags] HOST CONTROL_PORT (-l|-g) DATA_PORT [FILENAME]\n")
	fmt.Fprintf(out, "       ftclient -history\n\n")
	fmt.Fprintf(out, "-l lists the server directory, -g FILENAME downloads one file.\n")
	fmt.Fprintf(out, "Ports must be in [%d, %d].\n\n", transport.MinPort, transport.MaxPort)
	flag.PrintDefaults()
}

// invocation is the validated positional part of the command line.
type invocation struct {
	host        string
	controlPort int
	request     transport.Request
}

// parseArgs validates everything before any connection is made.
func parseArgs(args []string) (invocation, error) {
	if len(args) < 4 || len(args) > 5 {
		return invocation{}, fmt.Errorf("expected 4 or 5 arguments, got %d", len(args))
	}
	inv := invocation{host: args[0]}

	var err error
	if inv.controlPort, err = transport.ParsePort(args[1]); err != nil {
		return invocation{}, fmt.Errorf("control port: %w", err)
	}
	dataPort, err := transport.ParsePort(args[3])
	if err != nil {
		return invocation{}, fmt.Errorf("data port: %w", err)
	}

	command := args[2]
	filename := ""
	if len(args) == 5 {
		filename = args[4]
	}
	if command == transport.CmdGet && filename == "" {
		return invocation{}, fmt.Errorf("%s requires a FILENAME", transport.CmdGet)
	}
	if inv.request, err = transport.ParseRequest(command, dataPort, filename); err != nil {
		return invocation{}, err
	}
	return inv, inv.request.Validate()
}

func main() {
	configPath := flag.String("config", "", "path to ftp.config.toml")
	dir := flag.String("dir", "", "download directory (overrides config)")
	overwrite := flag.String("overwrite", "", "existing file policy: prompt, always or never (overrides config)")
	timeout := flag.Duration("timeout", 0, "per-channel I/O deadline, e.g. 30s (overrides config)")
	showHistory := flag.Bool("history", false, "print the transfer history and exit")
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

	if *showHistory {
		if err := printHistory(cfg.Client.HistoryPath); err != nil {
			logs.Fatalf(err, "failed to read history")
		}
		return
	}

	inv, err := parseArgs(flag.Args())
	if err != nil {
		logs.Errorf(err, "invalid arguments")
		usage()
		os.Exit(2)
	}

	if *dir != "" {
		cfg.Client.DownloadDir = *dir
	}
	if *overwrite != "" {
		cfg.Client.Overwrite = *overwrite
	}
	policy, err := ftp.ParseOverwritePolicy(cfg.Client.Overwrite)
	if err != nil {
		logs.Fatalf(err, "invalid overwrite policy")
	}

	client, err := ftp.NewClient(inv.host, inv.controlPort, inv.request.DataPort)
	if err != nil {
		logs.Fatalf(err, "invalid ports")
	}
	client.Timeout = cfg.Client.Timeout()
	if *timeout > 0 {
		client.Timeout = *timeout
	}
	client.MaxFrameSize = cfg.Client.MaxFrameBytes

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch inv.request.Kind {
	case transport.RequestList:
		listing, err := client.List(ctx)
		if err != nil {
			exitOnError(err)
		}
		fmt.Print(listing)

	case transport.RequestGet:
		recv := &ftp.FileReceiver{
			Dir:          cfg.Client.DownloadDir,
			Policy:       policy,
			Confirm:      promptOverwrite(os.Stdin),
			MaxFrameSize: cfg.Client.MaxFrameBytes,
		}
		receipt, err := client.Get(ctx, inv.request.Filename, recv)
		if err != nil {
			exitOnError(err)
		}
		logs.Infof("received %q (%s) -> %s", receipt.Name, formatBytes(receipt.Size), receipt.Path)

		if cfg.Client.HistoryPath != "" {
			entry := history.Entry{
				Name:     receipt.Name,
				Path:     receipt.Path,
				Remote:   net.JoinHostPort(inv.host, strconv.Itoa(inv.controlPort)),
				Size:     receipt.Size,
				Digest:   receipt.Digest,
				Received: time.Now(),
			}
			if err := history.Append(cfg.Client.HistoryPath, entry); err != nil {
				logs.Warnf("history not recorded: %v", err)
			}
		}
	}
}

// exitOnError reports a failed session. Refusals from the server are shown
// as the server's own status text.
func exitOnError(err error) {
	var statusErr *transport.StatusError
	if errors.As(err, &statusErr) {
		logs.Errorf(err, "server refused request")
		os.Exit(1)
	}
	switch {
	case errors.Is(err, transport.ErrConnection):
		logs.Fatalf(err, "could not connect")
	case errors.Is(err, transport.ErrProtocol):
		logs.Fatalf(err, "protocol violation")
	default:
		logs.Fatalf(err, "transfer failed")
	}
}
