// Package tailer reads the Arena log line by line, restarting from the
// beginning when the file shrinks or is replaced out from under us.
package tailer

import (
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/nxadm/tail"
)

// tailerErrBuffer is the buffer size for the error channel. A small buffer
// prevents error loss during brief moments when the consumer is busy.
const tailerErrBuffer = 16

// Config holds tailing behavior.
type Config struct {
	// Follow keeps reading as the file grows. When false, one full pass
	// over the file is made and the tailer stops.
	Follow bool

	// IdleInterval is how often the file is re-examined while no new
	// lines arrive. Default 500ms.
	IdleInterval time.Duration

	// StaleThreshold triggers a restart from offset 0 when the file's
	// modification time runs this far ahead of the last successful read,
	// which means the log was replaced externally. Default 60s.
	StaleThreshold time.Duration
}

// DefaultConfig returns the configuration used for live Arena logs.
func DefaultConfig() Config {
	return Config{
		Follow:         true,
		IdleInterval:   500 * time.Millisecond,
		StaleThreshold: 60 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	if c.IdleInterval <= 0 {
		c.IdleInterval = 500 * time.Millisecond
	}
	if c.StaleThreshold <= 0 {
		c.StaleThreshold = 60 * time.Second
	}
	return c
}

// Tailer follows one log file through truncations and replacements.
//
// Lines are delivered on Lines(). Whenever reading restarts from offset 0
// (initial open included) a signal is delivered on Resets() first, so the
// consumer can clear any state accumulated from the previous pass.
type Tailer struct {
	path string
	cfg  Config
	log  *slog.Logger

	lines  chan string
	resets chan struct{}
	errs   chan error

	stop     chan struct{}
	stopOnce sync.Once
	doneCh   chan struct{}

	// err holds the open failure that ended a non-follow run. Written by
	// the run goroutine before the channels close.
	err error
}

// New starts tailing path. A nil logger discards output.
func New(path string, cfg Config, log *slog.Logger) *Tailer {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(127)}))
	}
	t := &Tailer{
		path:   path,
		cfg:    cfg.withDefaults(),
		log:    log,
		lines:  make(chan string),
		resets: make(chan struct{}, 1),
		errs:   make(chan error, tailerErrBuffer),
		stop:   make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	go t.run()
	return t
}

// Lines returns the channel of raw log lines. It is closed when the tailer
// finishes (non-follow mode) or is stopped.
func (t *Tailer) Lines() <-chan string { return t.lines }

// Resets signals that reading restarted from the beginning of the file.
func (t *Tailer) Resets() <-chan struct{} { return t.resets }

// Errors returns non-fatal tailing errors. Sent non-blocking; if the buffer
// is full, errors are dropped.
func (t *Tailer) Errors() <-chan error { return t.errs }

// Err reports the error that terminated a non-follow run, such as the file
// not existing. It is valid once Lines() has been closed.
func (t *Tailer) Err() error { return t.err }

// Stop halts tailing and waits for the run goroutine to exit.
// Safe to call multiple times.
func (t *Tailer) Stop() {
	t.stopOnce.Do(func() { close(t.stop) })
	<-t.doneCh
}

func (t *Tailer) run() {
	defer close(t.doneCh)
	defer close(t.lines)
	defer close(t.errs)

	for {
		restart := t.pass()
		if !restart {
			return
		}
		select {
		case <-t.stop:
			return
		case <-time.After(t.cfg.IdleInterval):
		}
	}
}

// pass reads the file once from the beginning until a restart condition or
// completion. It reports whether another pass should run.
func (t *Tailer) pass() bool {
	tl, err := tail.TailFile(t.path, tail.Config{
		Follow:    t.cfg.Follow,
		ReOpen:    false,
		Poll:      true,
		MustExist: true,
		Location:  &tail.SeekInfo{Offset: 0, Whence: io.SeekStart},
		Logger:    tail.DiscardingLogger,
	})
	if err != nil {
		if os.IsNotExist(err) && t.cfg.Follow {
			// The client may simply not have started yet.
			return true
		}
		t.sendError(err)
		if !t.cfg.Follow {
			t.err = err
		}
		return t.cfg.Follow
	}
	defer func() { _ = tl.Stop() }()

	t.signalReset()

	lastRead := time.Now()
	var lastSize int64

	ticker := time.NewTicker(t.cfg.IdleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.stop:
			return false

		case line, ok := <-tl.Lines:
			if !ok {
				if !t.cfg.Follow {
					return false
				}
				// Underlying tail died; reopen from scratch.
				if werr := tl.Err(); werr != nil {
					t.sendError(werr)
				}
				return true
			}
			if line.Err != nil {
				t.sendError(line.Err)
				continue
			}
			lastRead = time.Now()
			select {
			case t.lines <- line.Text:
			case <-t.stop:
				return false
			}

		case <-ticker.C:
			info, serr := os.Stat(t.path)
			if serr != nil {
				if os.IsNotExist(serr) {
					t.log.Info("log file disappeared, waiting for it to return", "path", t.path)
					return true
				}
				t.sendError(serr)
				return true
			}
			if info.Size() < lastSize {
				t.log.Info("log file shrank, restarting from beginning",
					"previous", lastSize, "current", info.Size())
				return true
			}
			if info.ModTime().After(lastRead.Add(t.cfg.StaleThreshold)) {
				t.log.Info("log file modified long after last read, restarting from beginning",
					"modified", info.ModTime(), "last_read", lastRead)
				return true
			}
			lastSize = info.Size()
		}
	}
}

func (t *Tailer) signalReset() {
	select {
	case t.resets <- struct{}{}:
	default:
	}
}

func (t *Tailer) sendError(err error) {
	select {
	case t.errs <- err:
	default:
	}
}
