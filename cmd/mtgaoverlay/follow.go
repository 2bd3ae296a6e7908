package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mdib1/mtgaoverlay/internal/catalog"
	"github.com/mdib1/mtgaoverlay/internal/config"
	"github.com/mdib1/mtgaoverlay/internal/overlay"
	"github.com/mdib1/mtgaoverlay/internal/sink"
	"github.com/mdib1/mtgaoverlay/pkg/arena"
)

var (
	// follow flags
	followLogFile string
	followHost    string
	followToken   string
	noOverlay     bool
	dryRun        bool
)

var followCmd = &cobra.Command{
	Use:   "follow",
	Short: "Follow the Arena log and submit events",
	Long: `Follow the Arena player log in real time, submitting draft, deck and
game events to the stats service and showing draft win rates.

The log file is auto-detected from the standard install locations; use
--log-file or MTGAOVERLAY_LOGFILE to override.

Examples:
  # Follow with saved configuration
  mtgaoverlay follow

  # Follow a specific log file without submitting anything
  mtgaoverlay follow --log-file /path/to/Player.log --dry-run

  # Headless operation
  mtgaoverlay follow --no-overlay`,
	RunE: runFollow,
}

func init() {
	followCmd.Flags().StringVarP(&followLogFile, "log-file", "l", "",
		"Arena Player.log path (auto-detected if not specified)")
	followCmd.Flags().StringVar(&followHost, "host", "",
		"Stats API host (defaults to configured host)")
	followCmd.Flags().StringVar(&followToken, "token", "",
		"Client token (defaults to configured token)")
	followCmd.Flags().BoolVar(&noOverlay, "no-overlay", false,
		"Disable the draft overlay")
	followCmd.Flags().BoolVar(&dryRun, "dry-run", false,
		"Log events instead of submitting them")
}

func runFollow(cmd *cobra.Command, args []string) error {
	log := newLogger()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if followHost != "" {
		cfg.Host = followHost
	}
	if followToken != "" {
		cfg.Token = followToken
	}
	if followLogFile != "" {
		cfg.LogFile = followLogFile
	}
	if noOverlay {
		cfg.Overlay = false
	}

	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer stop()

	var out sink.Sink
	if dryRun {
		out = sink.NewLogSink(log)
	} else {
		if err := cfg.ValidateToken(); err != nil {
			if errors.Is(err, config.ErrNoToken) {
				return fmt.Errorf("no client token configured; run 'mtgaoverlay token' first")
			}
			return err
		}
		client := sink.NewAPIClient(cfg.Host, cfg.Token, log)
		defer client.Close()
		checkVersion(ctx, client, log)
		out = client
	}

	opts := []arena.Option{
		arena.WithLogger(log),
		arena.WithLogFile(cfg.LogFile),
		arena.WithSink(out),
	}

	g, ctx := errgroup.WithContext(ctx)

	if cfg.Overlay {
		cards := catalog.NewHTTPSource(cfg.CardDataURL, log)
		coord := overlay.New(log, overlay.NopLocator{},
			overlay.NewTerminalPresenter(os.Stdout), cards)
		opts = append(opts, arena.WithPackObserver(coord))
		g.Go(func() error {
			err := coord.Run(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	follower, err := arena.New(opts...)
	if err != nil {
		return err
	}
	g.Go(func() error {
		err := follower.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	return g.Wait()
}

// checkVersion warns when the server no longer supports this client.
// Transient failures are not fatal; following works offline.
func checkVersion(ctx context.Context, client *sink.APIClient, log *slog.Logger) {
	vctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	info, err := client.GetVersionInfo(vctx)
	if err != nil {
		log.Warn("could not check client version", "error", err)
		return
	}
	if info.MinVersion > sink.ClientVersion {
		log.Warn("client version below minimum supported",
			"client", sink.ClientVersion, "minimum", info.MinVersion,
			"instructions", info.UpgradeInstructions)
		return
	}
	log.Info("client version ok", "client", sink.ClientVersion)
}
