package event

import (
	"sort"
	"testing"
)

func TestParseType(t *testing.T) {
	tests := []struct {
		in   string
		want Type
		ok   bool
	}{
		{"draft_pack", DraftPack, true},
		{"GAME_RESULT", GameResult, true},
		{"  user_updated  ", UserUpdated, true},
		{"Deck_Submitted", DeckSubmitted, true},
		{"nope", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseType(tt.in)
			if ok != tt.ok || got != tt.want {
				t.Errorf("ParseType(%q) = %q, %v, want %q, %v",
					tt.in, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestTypeNames(t *testing.T) {
	names := TypeNames()
	if len(names) != len(allTypes) {
		t.Fatalf("names = %d, want %d", len(names), len(allTypes))
	}
	if !sort.StringsAreSorted(names) {
		t.Errorf("names not sorted: %v", names)
	}
	for _, name := range names {
		if _, ok := ParseType(name); !ok {
			t.Errorf("TypeNames entry %q does not parse", name)
		}
	}
}
