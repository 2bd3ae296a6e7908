package router

import (
	"errors"
	"testing"

	"github.com/mdib1/mtgaoverlay/internal/blob"
)

func msg(raw string, b blob.Object) Message {
	return Message{Raw: raw, Blob: b}
}

func TestDispatchFirstMatchWins(t *testing.T) {
	var fired []string
	mark := func(name string) HandlerFunc {
		return func(m Message) error {
			fired = append(fired, name)
			return nil
		}
	}

	r := New(nil, []Route{
		{Name: "first", Match: HasKey("shared"), Handle: mark("first")},
		{Name: "second", Match: HasKey("shared"), Handle: mark("second")},
	})

	r.Dispatch(msg("", blob.Object{"shared": true}))

	if len(fired) != 1 || fired[0] != "first" {
		t.Errorf("fired = %v, want [first]", fired)
	}
}

func TestDispatchUnmatchedIsNoop(t *testing.T) {
	r := New(nil, []Route{
		{Name: "only", Match: HasKey("x"), Handle: func(m Message) error {
			t.Error("handler fired for unmatched message")
			return nil
		}},
	})
	r.Dispatch(msg("", blob.Object{"y": 1}))
}

func TestDispatchSwallowsErrors(t *testing.T) {
	r := New(nil, []Route{
		{Name: "failing", Match: HasKey("x"), Handle: func(m Message) error {
			return errors.New("boom")
		}},
	})
	// Must not panic or halt.
	r.Dispatch(msg("", blob.Object{"x": 1}))
}

func TestDispatchRecoversPanics(t *testing.T) {
	calls := 0
	r := New(nil, []Route{
		{Name: "panicking", Match: HasKey("x"), Handle: func(m Message) error {
			calls++
			panic("handler bug")
		}},
	})
	r.Dispatch(msg("", blob.Object{"x": 1}))
	r.Dispatch(msg("", blob.Object{"x": 1}))
	if calls != 2 {
		t.Errorf("handler ran %d times, want 2", calls)
	}
}

func TestPredicates(t *testing.T) {
	m := msg("==> Event_Join {...}", blob.Object{
		"EventName": "QuickDraft_BLB",
		"nested":    map[string]any{"k": "v"},
	})

	tests := []struct {
		name string
		pred Predicate
		want bool
	}{
		{"raw contains hit", RawContains("Event_Join"), true},
		{"raw contains miss", RawContains("Event_SetDeck"), false},
		{"has key hit", HasKey("EventName"), true},
		{"has key miss", HasKey("Deck"), false},
		{"key equals hit", KeyEquals("v", "nested", "k"), true},
		{"key equals miss", KeyEquals("w", "nested", "k"), false},
		{"all hit", All(RawContains("Event_Join"), HasKey("EventName")), true},
		{"all miss", All(RawContains("Event_Join"), HasKey("Deck")), false},
		{"not", Not(HasKey("Deck")), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.pred(m); got != tt.want {
				t.Errorf("predicate = %v, want %v", got, tt.want)
			}
		})
	}
}
