// Package event defines the typed domain events produced by following an
// MTG Arena log.
//
// This package is separated from the main arena package to avoid import
// cycles between pkg/arena and the internal pipeline packages.
package event

import (
	"sort"
	"strings"
	"time"
)

// Type identifies the kind of a domain event.
type Type string

const (
	// UserUpdated indicates the active player identity or screen name changed.
	UserUpdated Type = "user_updated"

	// DraftPack indicates a booster pack was presented to the player.
	DraftPack Type = "draft_pack"

	// DraftPick indicates the player picked a card from a pack.
	DraftPick Type = "draft_pick"

	// DeckSubmitted indicates a maindeck/sideboard submission.
	DeckSubmitted Type = "deck_submitted"

	// GameResult indicates a completed game with accumulated history.
	GameResult Type = "game_result"

	// RankUpdated indicates new combined rank information.
	RankUpdated Type = "rank_updated"

	// InventoryUpdated indicates a wallet/inventory snapshot.
	InventoryUpdated Type = "inventory_updated"

	// CollectionSnapshot indicates a full card-collection snapshot.
	CollectionSnapshot Type = "collection_snapshot"

	// EventCourse links a draft id to its event and card pool.
	EventCourse Type = "event_course"

	// EventEnded indicates an event's prizes were claimed.
	EventEnded Type = "event_ended"
)

// allTypes is the canonical list of all event types.
// Add new event types here when extending the router.
var allTypes = []Type{
	UserUpdated, DraftPack, DraftPick, DeckSubmitted, GameResult,
	RankUpdated, InventoryUpdated, CollectionSnapshot, EventCourse, EventEnded,
}

// TypeNames returns a sorted list of all valid event type names.
func TypeNames() []string {
	names := make([]string, len(allTypes))
	for i, t := range allTypes {
		names[i] = string(t)
	}
	sort.Strings(names)
	return names
}

var typeByName = func() map[string]Type {
	m := make(map[string]Type, len(allTypes))
	for _, t := range allTypes {
		m[string(t)] = t
	}
	return m
}()

// ParseType converts a string to Type if valid.
// It is case-insensitive and trims leading/trailing whitespace.
func ParseType(name string) (Type, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	t, ok := typeByName[name]
	return t, ok
}

// Meta carries the identity and timing context attached to every submission.
type Meta struct {
	// PlayerID is the Arena account id of the active user, if known.
	PlayerID string `json:"player_id"`

	// Time is the local timestamp parsed from the log entry marker.
	Time time.Time `json:"time"`

	// UTCTime is the last UTC timestamp resolved from an entry payload.
	UTCTime time.Time `json:"utc_time"`

	// RawTime is the unparsed timestamp text from the log.
	RawTime string `json:"raw_time"`
}

// User is an identity update for the active player.
type User struct {
	Meta
	ScreenName string `json:"screen_name"`
}

// Pack is a booster pack presented during a draft.
type Pack struct {
	Meta
	DraftID    string `json:"draft_id,omitempty"`
	EventName  string `json:"event_name"`
	PackNumber int    `json:"pack_number"`
	PickNumber int    `json:"pick_number"`
	CardIDs    []int  `json:"card_ids"`

	// Method records which log message shape produced the pack
	// (e.g. "LogBusiness", "Draft.Notify"). Empty for bot drafts.
	Method string `json:"method,omitempty"`
}

// Pick is a card chosen from a pack.
type Pick struct {
	Meta
	DraftID       string  `json:"draft_id,omitempty"`
	EventName     string  `json:"event_name"`
	PackNumber    int     `json:"pack_number"`
	PickNumber    int     `json:"pick_number"`
	CardID        int     `json:"card_id"`
	AutoPick      bool    `json:"auto_pick,omitempty"`
	TimeRemaining float64 `json:"time_remaining,omitempty"`
}

// Deck is a submitted maindeck/sideboard.
type Deck struct {
	Meta
	EventName        string `json:"event_name"`
	MaindeckCardIDs  []int  `json:"maindeck_card_ids"`
	SideboardCardIDs []int  `json:"sideboard_card_ids"`
	Companion        int    `json:"companion"`
	IsDuringMatch    bool   `json:"is_during_match"`
}

// History is the ordered per-game message history included with a result.
type History struct {
	SeatID             int              `json:"seat_id"`
	OpponentSeatID     int              `json:"opponent_seat_id"`
	ScreenName         string           `json:"screen_name"`
	OpponentScreenName string           `json:"opponent_screen_name"`
	Events             []map[string]any `json:"events"`
}

// Game is a completed game result with the captured deck, hands and history.
type Game struct {
	Meta

	// Game outcome fragment.
	GameNumber    int    `json:"game_number"`
	Won           bool   `json:"won"`
	WinType       string `json:"win_type"`
	GameEndReason string `json:"game_end_reason"`

	// Match outcome fragment, present only when the match also concluded.
	WonMatch        *bool  `json:"won_match,omitempty"`
	MatchResultType string `json:"match_result_type,omitempty"`
	MatchEndReason  string `json:"match_end_reason,omitempty"`

	EventName             string         `json:"event_name"`
	MatchID               string         `json:"match_id"`
	OnPlay                bool           `json:"on_play"`
	OpeningHand           []int          `json:"opening_hand"`
	Mulligans             [][]int        `json:"mulligans"`
	DrawnHands            [][]int        `json:"drawn_hands"`
	DrawnCards            []int          `json:"drawn_cards"`
	MulliganCount         int            `json:"mulligan_count"`
	OpponentMulliganCount int            `json:"opponent_mulligan_count"`
	Turns                 int            `json:"turns"`
	Duration              int            `json:"duration"`
	OpponentCardIDs       []int          `json:"opponent_card_ids"`
	RankData              map[string]any `json:"rank_data"`
	OpponentRank          string         `json:"opponent_rank,omitempty"`
	MaindeckCardIDs       []int          `json:"maindeck_card_ids"`
	SideboardCardIDs      []int          `json:"sideboard_card_ids"`
	AdditionalDeckInfo    map[string]any `json:"additional_deck_info,omitempty"`
	ServiceMetadata       map[string]any `json:"service_metadata,omitempty"`
	ClientMetadata        map[string]any `json:"client_metadata,omitempty"`
	History               History        `json:"history"`
}

// Rank is a combined rank info snapshot.
type Rank struct {
	Meta
	RankData        map[string]any `json:"rank_data"`
	LimitedRank     string         `json:"limited_rank,omitempty"`
	ConstructedRank string         `json:"constructed_rank,omitempty"`
}

// Inventory is a filtered wallet snapshot (gems, gold, wildcards, tokens).
type Inventory struct {
	Meta
	Inventory map[string]any `json:"inventory"`
}

// Collection is a full card-count snapshot keyed by card id.
type Collection struct {
	Meta
	CardCounts map[string]any `json:"card_counts"`
}

// Course links a completed draft to its event and card pool.
type Course struct {
	Meta
	EventName string `json:"event_name"`
	DraftID   string `json:"draft_id"`
	CourseID  string `json:"course_id"`
	CardPool  []int  `json:"card_pool"`
}

// Ended marks an event whose prize was claimed.
type Ended struct {
	Meta
	EventName string `json:"event_name"`
}
