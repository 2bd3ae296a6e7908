// Package session holds the cross-entry state machine: the active user
// identity, the draft session, the match/game session and the pending game
// submission. It is mutated only by router-dispatched handlers running on
// the single parse goroutine.
package session

import (
	"io"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/mdib1/mtgaoverlay/internal/blob"
	"github.com/mdib1/mtgaoverlay/internal/logtime"
	"github.com/mdib1/mtgaoverlay/internal/sink"
	"github.com/mdib1/mtgaoverlay/pkg/arena/event"
)

const (
	// stalenessWindow rejects entries whose payload timestamp is older
	// than this relative to wall clock; replayed history would otherwise
	// be resubmitted on every client restart.
	stalenessWindow = 10 * time.Second

	// minHistoryEvents is the history length a game must exceed before
	// its result is considered submittable.
	minHistoryEvents = 5
)

var (
	accountInfoRe  = regexp.MustCompile(`.*Updated account\. DisplayName:(.*), AccountID:(.*), Token:.*`)
	matchAccountRe = regexp.MustCompile(`.*: ((\w+) to Match|Match to (\w+)):`)
)

// PackObserver receives draft state snapshots on the parse goroutine.
// Implementations must copy what they keep; the overlay coordinator is the
// intended consumer.
type PackObserver interface {
	ObservePack(pack event.Pack, missingCardIDs []int)
	ObserveScene(scene string)
}

// Option configures a State.
type Option func(*State)

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *State) { s.now = now }
}

// WithPackObserver registers the draft pack observer.
func WithPackObserver(o PackObserver) Option {
	return func(s *State) { s.observer = o }
}

// gameOutcome is a pending per-game result fragment.
type gameOutcome struct {
	GameNumber int
	Won        bool
	WinType    string
	EndReason  string
}

// matchOutcome is a pending per-match result fragment.
type matchOutcome struct {
	Won        bool
	ResultType string
	EndReason  string
}

// State is the session state machine.
type State struct {
	log      *slog.Logger
	out      sink.Sink
	now      func() time.Time
	observer PackObserver

	// Timing context for submissions.
	curLogTime time.Time
	lastUTC    time.Time
	rawTime    string

	// Identity.
	curUser        string
	screenName     string
	rankData       map[string]any
	discUser       string
	discScreenName string
	discRank       map[string]any

	// Draft session.
	curDraftEvent string
	opens         *draftOpens
	scene         string

	// Match session.
	curOpponentLevel   string
	curOpponentMatchID string
	matchID            string
	eventID            string
	startingTeamID     int
	seatID             int
	turnCount          int
	maindeck           []int
	sideboard          []int
	deckExtra          map[string]any
	serviceMeta        map[string]any
	clientMeta         map[string]any
	objectsByOwner     map[int]map[int]int
	openingHandCount   map[int]int
	openingHand        map[int][]int
	drawnHands         map[int][][]int
	drawnByInstance    map[int]map[int]int
	cardsInHand        map[int][]int
	screenNames        map[int]string
	history            []map[string]any
	pendingGame        *event.Game
	pendingResult      *gameOutcome
	pendingMatch       *matchOutcome
}

// New builds a session feeding out. A nil logger discards output.
func New(log *slog.Logger, out sink.Sink, opts ...Option) *State {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(127)}))
	}
	s := &State{
		log: log,
		out: out,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Reinitialize()
	return s
}

// Reinitialize fully resets the session: draft, match, identity and timing.
// The disconnect-recovery stash survives so a reconnect after a file
// restart can still restore the prior user.
func (s *State) Reinitialize() {
	s.curLogTime = time.Time{}
	s.lastUTC = time.Time{}
	s.rawTime = ""

	s.curUser = ""
	s.screenName = ""
	s.rankData = nil

	s.curDraftEvent = ""
	s.opens = newDraftOpens()
	s.scene = ""

	s.curOpponentLevel = ""
	s.curOpponentMatchID = ""
	s.pendingGame = nil

	s.clearMatchData(false)

	if s.observer != nil {
		s.observer.ObserveScene(s.scene)
	}
}

// SetEntryTime records the local timestamp of the entry being processed.
func (s *State) SetEntryTime(t time.Time, raw string) {
	if !t.IsZero() {
		s.curLogTime = t
		s.rawTime = raw
	}
}

// ObserveLine inspects one raw line for side-channel information that
// never comes wrapped in a JSON payload: account identity, connection
// state and the detailed-logs client setting.
func (s *State) ObserveLine(line string) {
	if strings.HasPrefix(line, "DETAILED LOGS: DISABLED") {
		s.log.Warn("detailed logs are disabled in the Arena client; " +
			"enable Detailed Logs under View Account and restart the client")
	} else if strings.HasPrefix(line, "DETAILED LOGS: ENABLED") {
		s.log.Info("detailed logs enabled in the Arena client")
	}

	if strings.Contains(line, "FrontDoorConnection.Close ") {
		s.handleDisconnect()
		return
	}
	if strings.Contains(line, "Reconnect result : Connected") {
		s.handleReconnect()
		return
	}

	if m := accountInfoRe.FindStringSubmatch(line); m != nil {
		s.curUser = m[2]
		s.updateScreenName(m[1])
		return
	}
	if m := matchAccountRe.FindStringSubmatch(line); m != nil {
		if m[2] != "" {
			s.curUser = m[2]
		} else {
			s.curUser = m[3]
		}
	}
}

// Admit resolves a payload's UTC timestamp and applies the staleness
// filter. The resolved time is recorded as last-seen even when the entry
// is rejected; a rejected entry must cause no other state change.
func (s *State) Admit(b blob.Object) (time.Time, bool) {
	raw, ok := blob.TimestampValue(b)
	if !ok {
		return time.Time{}, true
	}
	t, err := logtime.ResolveUTC(raw)
	if err != nil {
		s.log.Error("failed to resolve payload timestamp", "error", err)
		return time.Time{}, false
	}
	s.lastUTC = t
	if s.now().Sub(t) > stalenessWindow {
		s.log.Debug("skipping old log entry", "timestamp", t)
		return t, false
	}
	return t, true
}

// meta snapshots the identity/timing context attached to every submission.
func (s *State) meta() event.Meta {
	return event.Meta{
		PlayerID: s.curUser,
		Time:     s.curLogTime,
		UTCTime:  s.lastUTC,
		RawTime:  s.rawTime,
	}
}

func (s *State) updateScreenName(name string) {
	if name == "" || s.screenName == name {
		return
	}
	s.screenName = name
	s.log.Info("updating user info", "player_id", s.curUser, "screen_name", name)
	s.out.SubmitUser(event.User{Meta: s.meta(), ScreenName: name})
}

// clearGameData resets per-game accumulation. When submit is set, an
// eligible pending submission is emitted first. The pending game snapshot
// itself survives an unsubmitted clear so a late result fragment can still
// claim it.
func (s *State) clearGameData(submit bool) {
	if submit {
		s.maybeSubmitPending()
	}
	s.turnCount = 0
	s.startingTeamID = 0
	s.objectsByOwner = make(map[int]map[int]int)
	s.openingHandCount = make(map[int]int)
	s.openingHand = make(map[int][]int)
	s.drawnHands = make(map[int][][]int)
	s.drawnByInstance = make(map[int]map[int]int)
	s.cardsInHand = make(map[int][]int)
	s.history = nil
	s.maindeck = nil
	s.sideboard = nil
	s.deckExtra = nil
	s.serviceMeta = nil
	s.clientMeta = nil
	s.pendingResult = nil
	s.pendingMatch = nil
}

func (s *State) clearMatchData(submit bool) {
	s.screenNames = make(map[int]string)
	s.matchID = ""
	s.eventID = ""
	s.seatID = 0
	s.clearGameData(submit)
}

// maybeSubmitPending emits the pending game exactly once: the snapshot is
// consumed on submission, so a structurally identical result arriving
// later finds nothing to claim.
func (s *State) maybeSubmitPending() {
	if s.pendingGame == nil || s.pendingResult == nil {
		return
	}
	g := *s.pendingGame
	g.GameNumber = s.pendingResult.GameNumber
	g.Won = s.pendingResult.Won
	g.WinType = s.pendingResult.WinType
	g.GameEndReason = s.pendingResult.EndReason
	if s.pendingMatch != nil {
		won := s.pendingMatch.Won
		g.WonMatch = &won
		g.MatchResultType = s.pendingMatch.ResultType
		g.MatchEndReason = s.pendingMatch.EndReason
	}
	s.log.Info("submitting queued game result",
		"match_id", g.MatchID, "game", g.GameNumber, "won", g.Won)
	s.out.SubmitGameResult(g)
	s.pendingGame = nil
	s.clearGameData(false)
}

// rankString serializes rank components for recording
// (e.g. "Gold-3-0.0-0-2"). Absent components render as "None", the shape
// the stats service has always received.
func rankString(class, level, percentile, place, step any) string {
	parts := []any{class, level, percentile, place, step}
	strs := make([]string, len(parts))
	for i, p := range parts {
		strs[i] = scalarText(p)
	}
	return strings.Join(strs, "-")
}
