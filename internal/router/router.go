// Package router classifies decoded log payloads and dispatches them.
//
// Classification is an ordered table of (predicate, handler) pairs: the
// first route whose predicate matches fires, later routes are not
// consulted, and an unmatched message is a no-op. Handler faults never
// escape past Dispatch; the pipeline always continues with the next entry.
package router

import (
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/mdib1/mtgaoverlay/internal/blob"
)

// Message is one decoded log entry ready for classification.
type Message struct {
	// Raw is the full entry text, used for marker-substring signatures.
	Raw string

	// Blob is the decoded, envelope-unwrapped payload.
	Blob blob.Object

	// Time is the UTC timestamp resolved for the entry; zero when the
	// payload carried none.
	Time time.Time
}

// Predicate reports whether a message matches a route's signature.
type Predicate func(m Message) bool

// HandlerFunc processes a matched message. A returned error is logged with
// the offending payload and otherwise ignored.
type HandlerFunc func(m Message) error

// Route pairs a structural signature with its handler.
type Route struct {
	Name   string
	Match  Predicate
	Handle HandlerFunc
}

// Router dispatches messages against an ordered route table.
type Router struct {
	log    *slog.Logger
	routes []Route
}

// New builds a router over the given routes, evaluated in order.
// A nil logger discards output.
func New(log *slog.Logger, routes []Route) *Router {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(127)}))
	}
	return &Router{log: log, routes: routes}
}

// Dispatch routes a message to the first matching handler. Errors and
// panics from the handler are logged and swallowed.
func (r *Router) Dispatch(m Message) {
	for i := range r.routes {
		rt := &r.routes[i]
		if !rt.Match(m) {
			continue
		}
		r.invoke(rt, m)
		return
	}
}

func (r *Router) invoke(rt *Route, m Message) {
	defer func() {
		if p := recover(); p != nil {
			r.log.Error("handler panicked",
				"route", rt.Name, "panic", p, "entry", m.Raw)
		}
	}()
	if err := rt.Handle(m); err != nil {
		r.log.Error("handler failed",
			"route", rt.Name, "error", err, "entry", m.Raw)
	}
}

// RawContains matches entries whose raw text contains marker.
func RawContains(marker string) Predicate {
	return func(m Message) bool {
		return strings.Contains(m.Raw, marker)
	}
}

// HasKey matches payloads carrying the given top-level key.
func HasKey(key string) Predicate {
	return func(m Message) bool { return m.Blob.Has(key) }
}

// KeyEquals matches payloads whose value at path equals expect.
func KeyEquals(expect any, path ...string) Predicate {
	return func(m Message) bool { return m.Blob.Matches(expect, path...) }
}

// All matches when every predicate matches.
func All(preds ...Predicate) Predicate {
	return func(m Message) bool {
		for _, p := range preds {
			if !p(m) {
				return false
			}
		}
		return true
	}
}

// Not inverts a predicate.
func Not(p Predicate) Predicate {
	return func(m Message) bool { return !p(m) }
}
