package arena

import (
	"log/slog"
	"time"

	"github.com/mdib1/mtgaoverlay/internal/session"
	"github.com/mdib1/mtgaoverlay/internal/sink"
)

// Option configures a Follower using the functional options pattern.
type Option func(*followerConfig)

type followerConfig struct {
	logFile  string
	follow   bool
	logger   *slog.Logger
	sink     sink.Sink
	observer session.PackObserver
	clock    func() time.Time
}

func defaultFollowerConfig() *followerConfig {
	return &followerConfig{
		follow: true,
		clock:  time.Now,
	}
}

func applyOptions(opts []Option) *followerConfig {
	cfg := defaultFollowerConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}
	return cfg
}

// WithLogFile sets the Arena log file explicitly.
// If not set, the standard install locations are searched and the
// MTGAOVERLAY_LOGFILE environment variable is honored.
func WithLogFile(path string) Option {
	return func(c *followerConfig) { c.logFile = path }
}

// WithFollow controls whether the follower keeps reading as the file
// grows. Default: true. Set false to parse the file once and stop.
func WithFollow(follow bool) Option {
	return func(c *followerConfig) { c.follow = follow }
}

// WithLogger sets the slog logger for diagnostic output.
// If nil (default), logging is disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(c *followerConfig) { c.logger = logger }
}

// WithSink sets the destination for completed domain events.
// Default: a sink that logs each event.
func WithSink(s sink.Sink) Option {
	return func(c *followerConfig) { c.sink = s }
}

// WithPackObserver registers an observer for draft pack snapshots,
// typically the overlay coordinator.
func WithPackObserver(o session.PackObserver) Option {
	return func(c *followerConfig) { c.observer = o }
}

// WithClock overrides the wall clock used for entry staleness checks.
// Intended for tests and replays.
func WithClock(now func() time.Time) Option {
	return func(c *followerConfig) { c.clock = now }
}
