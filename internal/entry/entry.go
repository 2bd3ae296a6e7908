// Package entry groups raw log lines into logical entries.
//
// The Arena client writes one logical message across one or more lines. A
// new entry starts at a logger-tag marker ("[UnityCrossThreadLogger]" or
// "[Client GRE]"), optionally followed by a timestamp; untagged lines
// continue the current entry. Consecutive entries with identical text are
// duplicates and are dropped.
package entry

import (
	"io"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/mdib1/mtgaoverlay/internal/logtime"
)

var (
	startTimed   = regexp.MustCompile(`^\[(UnityCrossThreadLogger|Client GRE)\](\d[\d:/ .-]+(AM|PM)?)`)
	startUntimed = regexp.MustCompile(`^\[(UnityCrossThreadLogger|Client GRE)\]`)
	leadingStamp = regexp.MustCompile(`^([\d/.-]+[ T][\d]+:[\d]+:[\d]+( AM| PM)?)`)
)

// Entry is one complete logical log message.
type Entry struct {
	// Text is the concatenated body of the entry, marker stripped.
	Text string

	// LogTime is the local timestamp in effect when the entry started,
	// inherited from the previous entry when the marker carried none.
	LogTime time.Time

	// RawTime is the unparsed timestamp text.
	RawTime string
}

// Accumulator buffers lines until the next entry boundary.
// It is not safe for concurrent use; the parse loop owns it.
type Accumulator struct {
	log *slog.Logger

	buf        []string
	curLogTime time.Time
	rawTime    string
	lastText   string
}

// NewAccumulator returns an empty accumulator. A nil logger discards output.
func NewAccumulator(log *slog.Logger) *Accumulator {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(127)}))
	}
	return &Accumulator{log: log}
}

// Add consumes one raw line. When the line starts a new entry, the
// previously buffered entry is flushed and returned. A non-nil error
// reports a timestamp that matched no accepted format; the entry's timing
// is dropped but accumulation continues.
func (a *Accumulator) Add(line string) (*Entry, error) {
	var tsErr error

	// Standalone timestamps (e.g. match-service trace lines) advance the
	// current log time even without an entry marker.
	if m := leadingStamp.FindStringSubmatch(line); m != nil {
		tsErr = a.setTime(m[1])
	}

	loc := startUntimed.FindStringIndex(line)
	if loc == nil {
		a.buf = append(a.buf, line)
		return nil, tsErr
	}

	flushed := a.Flush()

	if m := startTimed.FindStringSubmatchIndex(line); m != nil {
		if err := a.setTime(line[m[4]:m[5]]); err != nil {
			tsErr = err
		}
		a.buf = append(a.buf, line[m[1]:])
	} else {
		a.buf = append(a.buf, line[loc[1]:])
	}
	return flushed, tsErr
}

// Flush completes the buffered entry, if any. Call when the reader idles so
// the final message of a burst is not held back waiting for the next marker.
// Returns nil for an empty buffer or a consecutive duplicate.
func (a *Accumulator) Flush() *Entry {
	if len(a.buf) == 0 {
		return nil
	}
	text := strings.Join(a.buf, "\n")
	a.buf = a.buf[:0]

	if text == a.lastText {
		a.log.Debug("skipping repeated log entry", "text", text)
		return nil
	}
	a.lastText = text

	return &Entry{Text: text, LogTime: a.curLogTime, RawTime: a.rawTime}
}

// Reset discards buffered lines and timing, for use when the underlying
// file restarts from the beginning.
func (a *Accumulator) Reset() {
	a.buf = a.buf[:0]
	a.curLogTime = time.Time{}
	a.rawTime = ""
	a.lastText = ""
}

func (a *Accumulator) setTime(raw string) error {
	a.rawTime = raw
	t, err := logtime.ParseLocal(raw)
	if err != nil {
		return err
	}
	a.curLogTime = t
	return nil
}
