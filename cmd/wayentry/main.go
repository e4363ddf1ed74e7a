// wayentry - Native Wayland PIN entry for gpg-agent
//
// Speaks the Assuan pinentry protocol on stdin/stdout and shows a
// minimal fixed-size entry window directly against the compositor.
// Typical use is via gpg-agent.conf:
//
//	pinentry-program /usr/local/bin/wayentry
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"wayentry/internal/assuan"
	"wayentry/internal/config"
	"wayentry/internal/dialog"
	"wayentry/internal/logging"
)

func main() {
	configPath := flag.String("config", "", "config file (default: $XDG_CONFIG_HOME/wayentry/config.toml)")
	debug := flag.Bool("debug", false, "enable debug logging")
	version := flag.Bool("version", false, "print version and exit")
	timeout := flag.Duration("timeout", 0, "give up on an open dialog after this long (0 = never)")
	// Accepted so agents configured for other pinentries can launch us;
	// the compositor is found through WAYLAND_DISPLAY regardless.
	flag.String("display", "", "ignored, for pinentry compatibility")
	flag.Parse()

	if *version {
		fmt.Println("wayentry " + assuan.Version)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "wayentry: %v\n", err)
		os.Exit(1)
	}

	logCfg := &logging.Config{
		Level:     logging.ParseLevel(cfg.Logging.Level),
		JSON:      cfg.Logging.JSON,
		Component: "wayentry",
	}
	if *debug {
		logCfg.Level = logging.LevelDebug
	}
	logger := logging.New(logCfg)

	// SIGINT/SIGTERM dismiss any open dialog and end the session; the
	// agent sees a cancelled operation, never a half-written reply.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	prompt := func(ctx context.Context, p dialog.Params) dialog.Result {
		if *timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, *timeout)
			defer cancel()
		}
		return dialog.Run(ctx, cfg, logger, p)
	}

	srv := assuan.NewServer(os.Stdin, os.Stdout, logger, prompt)
	if err := srv.Serve(ctx); err != nil {
		logger.Error("session failed", "error", err)
		os.Exit(1)
	}
}
