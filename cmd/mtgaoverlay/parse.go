package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mdib1/mtgaoverlay/internal/config"
	"github.com/mdib1/mtgaoverlay/internal/logfinder"
	"github.com/mdib1/mtgaoverlay/internal/sink"
	"github.com/mdib1/mtgaoverlay/pkg/arena"
	"github.com/mdib1/mtgaoverlay/pkg/arena/event"
)

var (
	// parse flags
	parsePrevious bool
	parseSubmit   bool
	parseTypes    []string
)

var parseCmd = &cobra.Command{
	Use:   "parse [file...]",
	Short: "Parse Arena log files (batch mode)",
	Long: `Parse Arena log files once, without following.

With no arguments the current Player.log is parsed. Events are logged
rather than submitted unless --submit is given; note that the staleness
filter applies either way, so replaying an old file submits nothing.

Examples:
  # Parse the current log
  mtgaoverlay parse

  # Include the rotated previous log
  mtgaoverlay parse --previous

  # Parse specific files
  mtgaoverlay parse Player-prev.log Player.log

  # Only report draft events
  mtgaoverlay parse --types draft_pack,draft_pick`,
	RunE: runParse,
}

func init() {
	parseCmd.Flags().BoolVar(&parsePrevious, "previous", false,
		"Also parse the rotated Player-prev.log")
	parseCmd.Flags().BoolVar(&parseSubmit, "submit", false,
		"Submit events to the stats service instead of logging them")
	parseCmd.Flags().StringSliceVar(&parseTypes, "types", nil,
		"Only emit these event types (comma-separated)")
}

func runParse(cmd *cobra.Command, args []string) error {
	log := newLogger()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer stop()

	var out sink.Sink = sink.NewLogSink(log)
	if parseSubmit {
		if err := cfg.ValidateToken(); err != nil {
			return err
		}
		client := sink.NewAPIClient(cfg.Host, cfg.Token, log)
		defer client.Close()
		out = client
	}
	if len(parseTypes) > 0 {
		types := make([]event.Type, 0, len(parseTypes))
		for _, name := range parseTypes {
			typ, ok := event.ParseType(name)
			if !ok {
				return fmt.Errorf("unknown event type %q (valid: %s)",
					name, strings.Join(event.TypeNames(), ", "))
			}
			types = append(types, typ)
		}
		out = sink.NewFilter(out, types)
	}

	files := args
	if len(files) == 0 {
		if parsePrevious {
			for _, p := range logfinder.PreviousLogPaths() {
				if _, err := os.Stat(p); err == nil {
					files = append(files, p)
				}
			}
		}
		current, err := logfinder.FindLogFile(cfg.LogFile)
		if err != nil {
			return err
		}
		files = append(files, current)
	}

	for _, file := range files {
		if err := arena.ParseFile(ctx, file,
			arena.WithLogger(log), arena.WithSink(out)); err != nil {
			return err
		}
	}
	return nil
}
