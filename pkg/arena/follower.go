// Package arena follows an MTG Arena player log, reconstructs the logical
// messages the client writes and emits typed domain events for drafts,
// decks, games, ranks and collections.
//
// Typical use:
//
//	f, err := arena.New(arena.WithSink(apiClient))
//	if err != nil { ... }
//	err = f.Run(ctx)
package arena

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/mdib1/mtgaoverlay/internal/blob"
	"github.com/mdib1/mtgaoverlay/internal/entry"
	"github.com/mdib1/mtgaoverlay/internal/logfinder"
	"github.com/mdib1/mtgaoverlay/internal/router"
	"github.com/mdib1/mtgaoverlay/internal/session"
	"github.com/mdib1/mtgaoverlay/internal/sink"
	"github.com/mdib1/mtgaoverlay/internal/tailer"
)

// flushIdle is how long the parse loop waits with no new lines before
// completing the buffered entry; the final message of a burst would
// otherwise sit unparsed until the client logs again.
const flushIdle = time.Second

// Follower tails one Arena log and drives the parse pipeline.
type Follower struct {
	log     *slog.Logger
	path    string
	follow  bool
	state   *session.State
	routes  *router.Router
	acc     *entry.Accumulator
	running sync.Mutex
}

// New builds a follower. The log file is resolved immediately so a bad
// path fails fast; goroutines start in Run.
func New(opts ...Option) (*Follower, error) {
	cfg := applyOptions(opts)

	log := cfg.logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(127)}))
	}

	path, err := logfinder.FindLogFile(cfg.logFile)
	if err != nil {
		return nil, err
	}

	out := cfg.sink
	if out == nil {
		out = sink.NewLogSink(log)
	}

	sessionOpts := []session.Option{session.WithClock(cfg.clock)}
	if cfg.observer != nil {
		sessionOpts = append(sessionOpts, session.WithPackObserver(cfg.observer))
	}
	state := session.New(log, out, sessionOpts...)

	return &Follower{
		log:    log,
		path:   path,
		follow: cfg.follow,
		state:  state,
		routes: router.New(log, state.Routes()),
		acc:    entry.NewAccumulator(log),
	}, nil
}

// Path returns the resolved log file.
func (f *Follower) Path() string { return f.path }

// Run tails the log until ctx is cancelled or, in non-follow mode, the
// file is exhausted. It may be called again after it returns, but never
// concurrently.
func (f *Follower) Run(ctx context.Context) error {
	f.running.Lock()
	defer f.running.Unlock()

	cfg := tailer.DefaultConfig()
	cfg.Follow = f.follow

	f.log.Info("following log", "path", f.path, "follow", f.follow)
	t := tailer.New(f.path, cfg, f.log)
	defer t.Stop()

	idle := time.NewTimer(flushIdle)
	defer idle.Stop()

	for {
		select {
		case <-ctx.Done():
			f.finish()
			return ctx.Err()

		case line, ok := <-t.Lines():
			if !ok {
				f.finish()
				return t.Err()
			}
			// A reset signaled before this line was sent means the line
			// belongs to a fresh pass over the file: drop accumulated
			// state first. Checking at the receive keeps the ordering
			// deterministic relative to the line stream.
			select {
			case <-t.Resets():
				f.acc.Reset()
				f.state.Reinitialize()
			default:
			}
			f.consumeLine(line)
			resetTimer(idle, flushIdle)

		case err := <-t.Errors():
			if err != nil {
				f.log.Warn("tail error", "error", err)
			}

		case <-idle.C:
			f.processEntry(f.acc.Flush())
			idle.Reset(flushIdle)
		}
	}
}

// consumeLine feeds one raw line through the accumulator and processes
// any entry it completes.
func (f *Follower) consumeLine(line string) {
	f.state.ObserveLine(line)
	e, err := f.acc.Add(line)
	if err != nil {
		f.log.Debug("unparseable log timestamp", "error", err)
	}
	f.processEntry(e)
}

// processEntry decodes and dispatches one completed entry. A nil entry is
// a no-op so flush results can be passed through unconditionally.
func (f *Follower) processEntry(e *entry.Entry) {
	if e == nil {
		return
	}
	f.state.SetEntryTime(e.LogTime, e.RawTime)

	b, ok := blob.Extract(e.Text)
	if !ok {
		return
	}
	ts, ok := f.state.Admit(b)
	if !ok {
		return
	}
	f.routes.Dispatch(router.Message{Raw: e.Text, Blob: b, Time: ts})
}

// finish flushes the trailing entry before the loop exits.
func (f *Follower) finish() {
	f.processEntry(f.acc.Flush())
}

// resetTimer restarts a timer that may or may not have fired.
func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}

// ParseFile parses path once, without following, and reports how far it
// got. It is the engine behind the parse subcommand.
func ParseFile(ctx context.Context, path string, opts ...Option) error {
	f, err := New(append(opts, WithLogFile(path), WithFollow(false))...)
	if err != nil {
		return err
	}
	if err := f.Run(ctx); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}
