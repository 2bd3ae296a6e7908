package sink

import "github.com/mdib1/mtgaoverlay/pkg/arena/event"

// Filter forwards only events whose type is enabled and silently drops the
// rest. Bot and human draft messages both count as draft_pack/draft_pick.
type Filter struct {
	next  Sink
	allow map[event.Type]bool
}

// NewFilter wraps next, forwarding only the given event types.
func NewFilter(next Sink, types []event.Type) *Filter {
	allow := make(map[event.Type]bool, len(types))
	for _, t := range types {
		allow[t] = true
	}
	return &Filter{next: next, allow: allow}
}

func (f *Filter) SubmitUser(ev event.User) {
	if f.allow[event.UserUpdated] {
		f.next.SubmitUser(ev)
	}
}

func (f *Filter) SubmitDraftPack(ev event.Pack) {
	if f.allow[event.DraftPack] {
		f.next.SubmitDraftPack(ev)
	}
}

func (f *Filter) SubmitDraftPick(ev event.Pick) {
	if f.allow[event.DraftPick] {
		f.next.SubmitDraftPick(ev)
	}
}

func (f *Filter) SubmitHumanDraftPack(ev event.Pack) {
	if f.allow[event.DraftPack] {
		f.next.SubmitHumanDraftPack(ev)
	}
}

func (f *Filter) SubmitHumanDraftPick(ev event.Pick) {
	if f.allow[event.DraftPick] {
		f.next.SubmitHumanDraftPick(ev)
	}
}

func (f *Filter) SubmitDeck(ev event.Deck) {
	if f.allow[event.DeckSubmitted] {
		f.next.SubmitDeck(ev)
	}
}

func (f *Filter) SubmitGameResult(ev event.Game) {
	if f.allow[event.GameResult] {
		f.next.SubmitGameResult(ev)
	}
}

func (f *Filter) SubmitRank(ev event.Rank) {
	if f.allow[event.RankUpdated] {
		f.next.SubmitRank(ev)
	}
}

func (f *Filter) SubmitInventory(ev event.Inventory) {
	if f.allow[event.InventoryUpdated] {
		f.next.SubmitInventory(ev)
	}
}

func (f *Filter) SubmitCollection(ev event.Collection) {
	if f.allow[event.CollectionSnapshot] {
		f.next.SubmitCollection(ev)
	}
}

func (f *Filter) SubmitEventCourse(ev event.Course) {
	if f.allow[event.EventCourse] {
		f.next.SubmitEventCourse(ev)
	}
}

func (f *Filter) SubmitEventEnded(ev event.Ended) {
	if f.allow[event.EventEnded] {
		f.next.SubmitEventEnded(ev)
	}
}
