// Package sink defines the outbound boundary for completed domain events.
package sink

import (
	"io"
	"log/slog"

	"github.com/mdib1/mtgaoverlay/pkg/arena/event"
)

// Sink receives one call per completed domain event. Calls are
// fire-and-forget from the parser's perspective: implementations must not
// block log consumption, and retry policy is theirs alone. The core
// guarantees at most one call per logical game result and per logical
// (pack, pick) pair under normal operation.
type Sink interface {
	SubmitUser(ev event.User)
	SubmitDraftPack(ev event.Pack)
	SubmitDraftPick(ev event.Pick)
	SubmitHumanDraftPack(ev event.Pack)
	SubmitHumanDraftPick(ev event.Pick)
	SubmitDeck(ev event.Deck)
	SubmitGameResult(ev event.Game)
	SubmitRank(ev event.Rank)
	SubmitInventory(ev event.Inventory)
	SubmitCollection(ev event.Collection)
	SubmitEventCourse(ev event.Course)
	SubmitEventEnded(ev event.Ended)
}

// LogSink writes every event to a structured logger. Useful for dry runs
// and as the default sink for the parse-once command.
type LogSink struct {
	log *slog.Logger
}

// NewLogSink returns a sink writing to log. A nil logger discards output.
func NewLogSink(log *slog.Logger) *LogSink {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(127)}))
	}
	return &LogSink{log: log}
}

func (s *LogSink) SubmitUser(ev event.User) {
	s.log.Info("user updated", "player_id", ev.PlayerID, "screen_name", ev.ScreenName)
}

func (s *LogSink) SubmitDraftPack(ev event.Pack) {
	s.log.Info("draft pack", "event", ev.EventName,
		"pack", ev.PackNumber, "pick", ev.PickNumber, "cards", ev.CardIDs)
}

func (s *LogSink) SubmitDraftPick(ev event.Pick) {
	s.log.Info("draft pick", "event", ev.EventName,
		"pack", ev.PackNumber, "pick", ev.PickNumber, "card", ev.CardID)
}

func (s *LogSink) SubmitHumanDraftPack(ev event.Pack) {
	s.log.Info("human draft pack", "draft_id", ev.DraftID, "event", ev.EventName,
		"pack", ev.PackNumber, "pick", ev.PickNumber, "cards", ev.CardIDs, "method", ev.Method)
}

func (s *LogSink) SubmitHumanDraftPick(ev event.Pick) {
	s.log.Info("human draft pick", "draft_id", ev.DraftID, "event", ev.EventName,
		"pack", ev.PackNumber, "pick", ev.PickNumber, "card", ev.CardID)
}

func (s *LogSink) SubmitDeck(ev event.Deck) {
	s.log.Info("deck submitted", "event", ev.EventName,
		"maindeck", len(ev.MaindeckCardIDs), "sideboard", len(ev.SideboardCardIDs))
}

func (s *LogSink) SubmitGameResult(ev event.Game) {
	s.log.Info("game result", "match_id", ev.MatchID, "event", ev.EventName,
		"game", ev.GameNumber, "won", ev.Won, "turns", ev.Turns,
		"history_events", len(ev.History.Events))
}

func (s *LogSink) SubmitRank(ev event.Rank) {
	s.log.Info("rank updated", "player_id", ev.PlayerID)
}

func (s *LogSink) SubmitInventory(ev event.Inventory) {
	s.log.Info("inventory updated", "player_id", ev.PlayerID)
}

func (s *LogSink) SubmitCollection(ev event.Collection) {
	s.log.Info("collection snapshot", "player_id", ev.PlayerID, "cards", len(ev.CardCounts))
}

func (s *LogSink) SubmitEventCourse(ev event.Course) {
	s.log.Info("event course", "event", ev.EventName, "draft_id", ev.DraftID)
}

func (s *LogSink) SubmitEventEnded(ev event.Ended) {
	s.log.Info("event ended", "event", ev.EventName)
}
