package sink

import (
	"testing"

	"github.com/mdib1/mtgaoverlay/pkg/arena/event"
)

// countSink tallies calls per method family.
type countSink struct {
	counts map[string]int
}

func newCountSink() *countSink {
	return &countSink{counts: make(map[string]int)}
}

func (c *countSink) SubmitUser(event.User)             { c.counts["user"]++ }
func (c *countSink) SubmitDraftPack(event.Pack)        { c.counts["pack"]++ }
func (c *countSink) SubmitDraftPick(event.Pick)        { c.counts["pick"]++ }
func (c *countSink) SubmitHumanDraftPack(event.Pack)   { c.counts["human_pack"]++ }
func (c *countSink) SubmitHumanDraftPick(event.Pick)   { c.counts["human_pick"]++ }
func (c *countSink) SubmitDeck(event.Deck)             { c.counts["deck"]++ }
func (c *countSink) SubmitGameResult(event.Game)       { c.counts["game"]++ }
func (c *countSink) SubmitRank(event.Rank)             { c.counts["rank"]++ }
func (c *countSink) SubmitInventory(event.Inventory)   { c.counts["inventory"]++ }
func (c *countSink) SubmitCollection(event.Collection) { c.counts["collection"]++ }
func (c *countSink) SubmitEventCourse(event.Course)    { c.counts["course"]++ }
func (c *countSink) SubmitEventEnded(event.Ended)      { c.counts["ended"]++ }

func TestFilterForwardsOnlyEnabledTypes(t *testing.T) {
	next := newCountSink()
	f := NewFilter(next, []event.Type{event.DraftPack, event.DraftPick})

	f.SubmitDraftPack(event.Pack{})
	f.SubmitHumanDraftPack(event.Pack{})
	f.SubmitDraftPick(event.Pick{})
	f.SubmitHumanDraftPick(event.Pick{})
	f.SubmitDeck(event.Deck{})
	f.SubmitGameResult(event.Game{})
	f.SubmitUser(event.User{})

	if next.counts["pack"] != 1 || next.counts["human_pack"] != 1 {
		t.Errorf("pack counts = %v", next.counts)
	}
	if next.counts["pick"] != 1 || next.counts["human_pick"] != 1 {
		t.Errorf("pick counts = %v", next.counts)
	}
	if next.counts["deck"] != 0 || next.counts["game"] != 0 || next.counts["user"] != 0 {
		t.Errorf("filtered events leaked: %v", next.counts)
	}
}

func TestFilterEmptyDropsEverything(t *testing.T) {
	next := newCountSink()
	f := NewFilter(next, nil)

	f.SubmitGameResult(event.Game{})
	f.SubmitRank(event.Rank{})

	if len(next.counts) != 0 {
		t.Errorf("counts = %v, want empty", next.counts)
	}
}
