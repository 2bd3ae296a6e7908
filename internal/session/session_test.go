package session

import (
	"reflect"
	"testing"
	"time"

	"github.com/mdib1/mtgaoverlay/internal/blob"
	"github.com/mdib1/mtgaoverlay/internal/router"
	"github.com/mdib1/mtgaoverlay/pkg/arena/event"
)

// recorder captures every submission for assertions.
type recorder struct {
	users       []event.User
	packs       []event.Pack
	picks       []event.Pick
	humanPacks  []event.Pack
	humanPicks  []event.Pick
	decks       []event.Deck
	games       []event.Game
	ranks       []event.Rank
	inventories []event.Inventory
	collections []event.Collection
	courses     []event.Course
	ended       []event.Ended
}

func (r *recorder) SubmitUser(ev event.User)             { r.users = append(r.users, ev) }
func (r *recorder) SubmitDraftPack(ev event.Pack)        { r.packs = append(r.packs, ev) }
func (r *recorder) SubmitDraftPick(ev event.Pick)        { r.picks = append(r.picks, ev) }
func (r *recorder) SubmitHumanDraftPack(ev event.Pack)   { r.humanPacks = append(r.humanPacks, ev) }
func (r *recorder) SubmitHumanDraftPick(ev event.Pick)   { r.humanPicks = append(r.humanPicks, ev) }
func (r *recorder) SubmitDeck(ev event.Deck)             { r.decks = append(r.decks, ev) }
func (r *recorder) SubmitGameResult(ev event.Game)       { r.games = append(r.games, ev) }
func (r *recorder) SubmitRank(ev event.Rank)             { r.ranks = append(r.ranks, ev) }
func (r *recorder) SubmitInventory(ev event.Inventory)   { r.inventories = append(r.inventories, ev) }
func (r *recorder) SubmitCollection(ev event.Collection) { r.collections = append(r.collections, ev) }
func (r *recorder) SubmitEventCourse(ev event.Course)    { r.courses = append(r.courses, ev) }
func (r *recorder) SubmitEventEnded(ev event.Ended)      { r.ended = append(r.ended, ev) }

var testNow = time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC)

func newTestState(t *testing.T) (*State, *recorder) {
	t.Helper()
	rec := &recorder{}
	s := New(nil, rec, WithClock(func() time.Time { return testNow }))
	return s, rec
}

func dispatch(t *testing.T, s *State, raw string) {
	t.Helper()
	b, ok := blob.Extract(raw)
	if !ok {
		t.Fatalf("no blob in %q", raw)
	}
	router.New(nil, s.Routes()).Dispatch(router.Message{Raw: raw, Blob: b})
}

func TestListDifference(t *testing.T) {
	tests := []struct {
		name string
		a, b []int
		want []int
	}{
		{"single taken", []int{10, 11, 12, 13}, []int{10, 12, 13}, []int{11}},
		{"multiset respected", []int{5, 5, 6}, []int{5, 6}, []int{5}},
		{"nothing taken", []int{1, 2}, []int{1, 2}, nil},
		{"order follows original", []int{3, 1, 2}, []int{2}, []int{3, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := listDifference(tt.a, tt.b); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("listDifference(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestDraftOpensTracksBoosterPositions(t *testing.T) {
	d := newDraftOpens()

	// First sighting of the booster records it.
	if missing := d.observe(1, 1, []int{10, 11, 12, 13}); missing != nil {
		t.Errorf("first observe = %v, want nil", missing)
	}
	// The same booster comes back one table lap later with cards gone.
	if missing := d.observe(1, 15, []int{10, 12}); !reflect.DeepEqual(missing, []int{11, 13}) {
		t.Errorf("second observe = %v, want [11 13]", missing)
	}
	// A different position is independent.
	if missing := d.observe(1, 2, []int{20, 21}); missing != nil {
		t.Errorf("other position = %v, want nil", missing)
	}
	// Out-of-range pack numbers are ignored.
	if missing := d.observe(9, 1, []int{1}); missing != nil {
		t.Errorf("bad pack number = %v, want nil", missing)
	}
}

func TestAdmitStaleness(t *testing.T) {
	s, _ := newTestState(t)

	fresh := testNow.Add(-2 * time.Second).UnixMilli()
	if _, ok := s.Admit(blob.Object{"timestamp": float64(fresh)}); !ok {
		t.Error("fresh entry rejected")
	}

	stale := testNow.Add(-30 * time.Second).UnixMilli()
	ts, ok := s.Admit(blob.Object{"timestamp": float64(stale)})
	if ok {
		t.Error("stale entry admitted")
	}
	// The rejected entry still advances the last-seen UTC time.
	if !s.lastUTC.Equal(ts) || !ts.Equal(time.UnixMilli(stale).UTC()) {
		t.Errorf("lastUTC = %v, want %v", s.lastUTC, time.UnixMilli(stale).UTC())
	}

	// No timestamp means nothing to judge; the entry passes.
	if _, ok := s.Admit(blob.Object{"other": 1}); !ok {
		t.Error("timestampless entry rejected")
	}
}

func TestBotDraftPackRoute(t *testing.T) {
	s, rec := newTestState(t)

	dispatch(t, s, `BotDraft_DraftStatus {"DraftStatus":"PickNext","EventName":"QuickDraft_BLB","PackNumber":1,"PickNumber":2,"DraftPack":["101","102","103"]}`)

	if len(rec.packs) != 1 {
		t.Fatalf("packs = %d, want 1", len(rec.packs))
	}
	p := rec.packs[0]
	if p.EventName != "QuickDraft_BLB" || p.PackNumber != 1 || p.PickNumber != 2 {
		t.Errorf("pack = %+v", p)
	}
	if !reflect.DeepEqual(p.CardIDs, []int{101, 102, 103}) {
		t.Errorf("card ids = %v", p.CardIDs)
	}

	// Any other status is not a pack presentation.
	dispatch(t, s, `BotDraft_DraftStatus {"DraftStatus":"Completed","EventName":"QuickDraft_BLB"}`)
	if len(rec.packs) != 1 {
		t.Errorf("packs after completed status = %d, want 1", len(rec.packs))
	}
}

func TestBotDraftPickRoute(t *testing.T) {
	s, rec := newTestState(t)

	dispatch(t, s, `==> BotDraft_DraftPick {"PickInfo":{"EventName":"QuickDraft_BLB","PackNumber":2,"PickNumber":3,"CardId":"205"}}`)

	if len(rec.picks) != 1 {
		t.Fatalf("picks = %d, want 1", len(rec.picks))
	}
	p := rec.picks[0]
	if p.EventName != "QuickDraft_BLB" || p.PackNumber != 2 || p.PickNumber != 3 || p.CardID != 205 {
		t.Errorf("pick = %+v", p)
	}
}

func TestHumanDraftCombinedRoute(t *testing.T) {
	s, rec := newTestState(t)

	dispatch(t, s, `LogBusinessEvents {"EventId":"PremierDraft_BLB","DraftId":"d-123","PackNumber":1,"PickNumber":3,"PickGrpId":301,"CardsInPack":[301,302,303],"AutoPick":false,"TimeRemainingOnPick":22.5}`)

	if len(rec.humanPacks) != 1 || len(rec.humanPicks) != 1 {
		t.Fatalf("humanPacks=%d humanPicks=%d, want 1 each",
			len(rec.humanPacks), len(rec.humanPicks))
	}
	pack := rec.humanPacks[0]
	if pack.DraftID != "d-123" || pack.Method != "LogBusiness" {
		t.Errorf("pack = %+v", pack)
	}
	pick := rec.humanPicks[0]
	if pick.CardID != 301 || pick.TimeRemaining != 22.5 {
		t.Errorf("pick = %+v", pick)
	}
}

func TestHumanDraftPackRoute(t *testing.T) {
	s, rec := newTestState(t)

	dispatch(t, s, `Draft.Notify {"draftId":"d-456","SelfPack":2,"SelfPick":4,"PackCards":"401,402, 403"}`)

	if len(rec.humanPacks) != 1 {
		t.Fatalf("humanPacks = %d, want 1", len(rec.humanPacks))
	}
	p := rec.humanPacks[0]
	if p.Method != "Draft.Notify" || p.DraftID != "d-456" {
		t.Errorf("pack = %+v", p)
	}
	if !reflect.DeepEqual(p.CardIDs, []int{401, 402, 403}) {
		t.Errorf("card ids = %v", p.CardIDs)
	}
}

func TestDeckSubmissionRoute(t *testing.T) {
	s, rec := newTestState(t)

	dispatch(t, s, `==> Event_SetDeck {"EventName":"QuickDraft_BLB","Deck":{"MainDeck":[{"cardId":100,"quantity":2},{"cardId":101,"quantity":1}],"Sideboard":[{"cardId":200,"quantity":1}],"Companions":[{"cardId":300}]}}`)

	if len(rec.decks) != 1 {
		t.Fatalf("decks = %d, want 1", len(rec.decks))
	}
	d := rec.decks[0]
	if !reflect.DeepEqual(d.MaindeckCardIDs, []int{100, 100, 101}) {
		t.Errorf("maindeck = %v", d.MaindeckCardIDs)
	}
	if !reflect.DeepEqual(d.SideboardCardIDs, []int{200}) {
		t.Errorf("sideboard = %v", d.SideboardCardIDs)
	}
	if d.Companion != 300 {
		t.Errorf("companion = %d", d.Companion)
	}
}

func TestRankInfoRoute(t *testing.T) {
	s, rec := newTestState(t)

	dispatch(t, s, `<== Rank_GetCombinedRankInfo {"playerId":"P1","limitedSeasonOrdinal":5,"limitedClass":"Gold","limitedLevel":3,"constructedClass":"Silver","constructedLevel":2}`)

	if len(rec.ranks) != 1 {
		t.Fatalf("ranks = %d, want 1", len(rec.ranks))
	}
	r := rec.ranks[0]
	if r.LimitedRank != "Gold-3-None-None-None" {
		t.Errorf("limited rank = %q", r.LimitedRank)
	}
	if r.ConstructedRank != "Silver-2-None-None-None" {
		t.Errorf("constructed rank = %q", r.ConstructedRank)
	}
	if s.curUser != "P1" {
		t.Errorf("curUser = %q", s.curUser)
	}
}

func TestInventoryRouteFiltersKeys(t *testing.T) {
	s, rec := newTestState(t)

	dispatch(t, s, `{"DTO_InventoryInfo":{"Gems":1200,"Gold":5400,"WildCardRares":3,"Changes":[{"GemsDelta":100}],"CustomTokens":{"noise":1},"Cosmetics":["x"]}}`)

	if len(rec.inventories) != 1 {
		t.Fatalf("inventories = %d, want 1", len(rec.inventories))
	}
	inv := rec.inventories[0].Inventory
	if inv["Gems"] != float64(1200) || inv["Gold"] != float64(5400) {
		t.Errorf("inventory = %v", inv)
	}
	if _, ok := inv["Changes"]; !ok {
		t.Error("Changes missing from inventory")
	}
	if _, ok := inv["Cosmetics"]; ok {
		t.Error("unfiltered key leaked into inventory")
	}
}

func TestCollectionRequiresUser(t *testing.T) {
	s, rec := newTestState(t)

	raw := `<== PlayerInventory.GetPlayerCardsV3 {"12345":4,"67890":2}`
	dispatch(t, s, raw)
	if len(rec.collections) != 0 {
		t.Fatal("collection submitted without a known user")
	}

	s.curUser = "P1"
	dispatch(t, s, raw)
	if len(rec.collections) != 1 {
		t.Fatalf("collections = %d, want 1", len(rec.collections))
	}
	if rec.collections[0].CardCounts["12345"] != float64(4) {
		t.Errorf("card counts = %v", rec.collections[0].CardCounts)
	}
}

func TestDisconnectReconnectRestoresUser(t *testing.T) {
	s, _ := newTestState(t)

	s.curUser = "P1"
	s.screenName = "Player#12345"
	s.rankData = map[string]any{"limitedClass": "Gold"}

	s.ObserveLine("[UnityCrossThreadLogger]FrontDoorConnection.Close ")
	if s.curUser != "" {
		t.Fatalf("curUser after disconnect = %q", s.curUser)
	}

	// A file restart resets the session but keeps the recovery stash.
	s.Reinitialize()

	s.ObserveLine("[UnityCrossThreadLogger]Reconnect result : Connected")
	if s.curUser != "P1" || s.screenName != "Player#12345" {
		t.Errorf("restored user = %q/%q", s.curUser, s.screenName)
	}
	if s.rankData["limitedClass"] != "Gold" {
		t.Errorf("rank data not restored: %v", s.rankData)
	}
}

func TestObserveLineAccountInfo(t *testing.T) {
	s, rec := newTestState(t)

	s.ObserveLine("[Accounts - Login] Updated account. DisplayName:Player#12345, AccountID:ABCDEF, Token:xyz")

	if s.curUser != "ABCDEF" {
		t.Errorf("curUser = %q", s.curUser)
	}
	if len(rec.users) != 1 || rec.users[0].ScreenName != "Player#12345" {
		t.Errorf("users = %+v", rec.users)
	}

	// Same name again does not resubmit.
	s.ObserveLine("[Accounts - Login] Updated account. DisplayName:Player#12345, AccountID:ABCDEF, Token:xyz")
	if len(rec.users) != 1 {
		t.Errorf("users after repeat = %d, want 1", len(rec.users))
	}
}

// gameState builds one GRE game state message for seat 1 holding the given
// hand, with matching game objects.
func gameState(hand []int, extra map[string]any) blob.Object {
	instances := make([]any, len(hand))
	objects := make([]any, len(hand))
	for i, cardID := range hand {
		instance := i + 1
		instances[i] = float64(instance)
		objects[i] = map[string]any{
			"type":         "GameObjectType_Card",
			"ownerSeatId":  float64(1),
			"instanceId":   float64(instance),
			"overlayGrpId": float64(cardID),
		}
	}
	state := map[string]any{
		"gameObjects": objects,
		"zones": []any{map[string]any{
			"type":              "ZoneType_Hand",
			"ownerSeatId":       float64(1),
			"objectInstanceIds": instances,
		}},
	}
	for k, v := range extra {
		state[k] = v
	}
	return blob.Object{
		"type":             "GREMessageType_GameStateMessage",
		"systemSeatIds":    []any{float64(1)},
		"gameStateMessage": state,
	}
}

func gameOverState(winningTeam int) blob.Object {
	return gameState(nil, map[string]any{
		"gameInfo": map[string]any{
			"stage": "GameStage_GameOver",
			"results": []any{map[string]any{
				"scope":         "MatchScope_Game",
				"winningTeamId": float64(winningTeam),
				"result":        "ResultType_WinLoss",
				"reason":        "ResultReason_Game",
			}},
		},
	})
}

func TestGameResultSubmittedExactlyOnce(t *testing.T) {
	s, rec := newTestState(t)
	s.matchID = "match-1"
	s.eventID = "PremierDraft_BLB"

	// Enough state messages to make the game submittable.
	for i := 0; i < 7; i++ {
		s.handleGreMessage(gameState([]int{100, 101, 102}, nil))
	}

	s.handleGreMessage(gameOverState(1))
	if len(rec.games) != 1 {
		t.Fatalf("games = %d, want 1", len(rec.games))
	}
	g := rec.games[0]
	if !g.Won || g.GameNumber != 1 || g.WinType != "ResultType_WinLoss" {
		t.Errorf("game = %+v", g)
	}
	if g.MatchID != "match-1" || g.EventName != "PremierDraft_BLB" {
		t.Errorf("game identity = %q/%q", g.MatchID, g.EventName)
	}

	// A structurally identical result later finds nothing to claim.
	s.handleGreMessage(gameOverState(1))
	if len(rec.games) != 1 {
		t.Errorf("games after duplicate result = %d, want 1", len(rec.games))
	}
}

func TestGameResultRequiresSubstance(t *testing.T) {
	s, rec := newTestState(t)

	// Only two state messages: too thin to record.
	s.handleGreMessage(gameState([]int{100}, nil))
	s.handleGreMessage(gameOverState(1))

	if len(rec.games) != 0 {
		t.Errorf("games = %d, want 0 for thin history", len(rec.games))
	}
}

func TestOpeningHandAndMulligans(t *testing.T) {
	s, rec := newTestState(t)
	s.matchID = "match-2"
	s.eventID = "PremierDraft_BLB"

	firstHand := []int{100, 101, 102, 103, 104, 105, 106}
	keptHand := []int{100, 101, 102, 103, 104, 105}

	// Seat 1 deciding on its first hand.
	s.handleGreMessage(gameState(firstHand, map[string]any{
		"players": []any{map[string]any{
			"systemSeatNumber":   float64(1),
			"mulliganCount":      float64(0),
			"pendingMessageType": "ClientMessageType_MulliganResp",
		}},
	}))
	// Mulligan taken; deciding on the second hand.
	s.handleGreMessage(gameState(keptHand, map[string]any{
		"players": []any{map[string]any{
			"systemSeatNumber":   float64(1),
			"mulliganCount":      float64(1),
			"pendingMessageType": "ClientMessageType_MulliganResp",
		}},
	}))
	// Turn 1 upkeep freezes the opening hand.
	s.handleGreMessage(gameState(keptHand, map[string]any{
		"turnInfo": map[string]any{
			"phase":      "Phase_Beginning",
			"step":       "Step_Upkeep",
			"turnNumber": float64(1),
		},
	}))
	// Pad history and finish.
	for i := 0; i < 5; i++ {
		s.handleGreMessage(gameState(keptHand, nil))
	}
	s.handleGreMessage(gameOverState(2))

	if len(rec.games) != 1 {
		t.Fatalf("games = %d, want 1", len(rec.games))
	}
	g := rec.games[0]
	if g.Won {
		t.Error("seat 1 recorded as winner of a seat-2 result")
	}
	if !reflect.DeepEqual(g.OpeningHand, keptHand) {
		t.Errorf("opening hand = %v, want %v", g.OpeningHand, keptHand)
	}
	if g.MulliganCount != 1 {
		t.Errorf("mulligan count = %d, want 1", g.MulliganCount)
	}
	if len(g.DrawnHands) != 2 || !reflect.DeepEqual(g.DrawnHands[0], firstHand) {
		t.Errorf("drawn hands = %v", g.DrawnHands)
	}
	if len(g.Mulligans) != 1 || !reflect.DeepEqual(g.Mulligans[0], firstHand) {
		t.Errorf("mulligans = %v", g.Mulligans)
	}
}

func TestStartingTeamPinnedAtMulligan(t *testing.T) {
	s, rec := newTestState(t)
	s.matchID = "match-3"
	s.eventID = "PremierDraft_BLB"

	hand := []int{100, 101, 102, 103, 104, 105, 106}

	// Seat 1 is the active player while deciding its first hand.
	s.handleGreMessage(gameState(hand, map[string]any{
		"turnInfo": map[string]any{"activePlayer": float64(1)},
		"players": []any{map[string]any{
			"systemSeatNumber":   float64(1),
			"mulliganCount":      float64(0),
			"pendingMessageType": "ClientMessageType_MulliganResp",
		}},
	}))
	for i := 0; i < 6; i++ {
		s.handleGreMessage(gameState(hand, nil))
	}
	// Conceded before turn one; no turn-1 state ever arrives.
	s.handleGreMessage(gameOverState(2))

	if len(rec.games) != 1 {
		t.Fatalf("games = %d, want 1", len(rec.games))
	}
	if !rec.games[0].OnPlay {
		t.Error("seat 1 decided first under its own active turn but OnPlay is false")
	}
}

func TestTurnCountFallsBackToPlayerSum(t *testing.T) {
	s, rec := newTestState(t)
	s.matchID = "match-4"
	s.eventID = "PremierDraft_BLB"

	for i := 0; i < 7; i++ {
		s.handleGreMessage(gameState([]int{100, 101}, nil))
	}
	// A zero top-level turn number defers to the per-player counts.
	s.handleGreMessage(gameState(nil, map[string]any{
		"turnInfo": map[string]any{"turnNumber": float64(0)},
		"players": []any{
			map[string]any{"systemSeatNumber": float64(1), "turnNumber": float64(3)},
			map[string]any{"systemSeatNumber": float64(2), "turnNumber": float64(2)},
		},
	}))
	s.handleGreMessage(gameOverState(1))

	if len(rec.games) != 1 {
		t.Fatalf("games = %d, want 1", len(rec.games))
	}
	if rec.games[0].Turns != 5 {
		t.Errorf("turns = %d, want 5", rec.games[0].Turns)
	}
}

func TestSceneChangeLeavingDraftResets(t *testing.T) {
	s, _ := newTestState(t)
	s.curDraftEvent = "QuickDraft_BLB"
	s.opens.observe(1, 1, []int{10, 11})

	dispatch(t, s, `SceneChange {"fromSceneName":"Draft","toSceneName":"Home"}`)

	if s.curDraftEvent != "" {
		t.Errorf("curDraftEvent = %q, want cleared", s.curDraftEvent)
	}
	// The opens table is fresh: the same booster is first-seen again.
	if missing := s.opens.observe(1, 1, []int{10}); missing != nil {
		t.Errorf("opens survived reset: %v", missing)
	}
}

func TestRankString(t *testing.T) {
	tests := []struct {
		name string
		in   []any
		want string
	}{
		{"all present", []any{"Gold", float64(3), float64(12.5), float64(0), float64(2)}, "Gold-3-12.5-0-2"},
		{"absent renders none", []any{"Gold", float64(3), nil, nil, nil}, "Gold-3-None-None-None"},
		{"all absent", []any{nil, nil, nil, nil, nil}, "None-None-None-None-None"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := rankString(tt.in[0], tt.in[1], tt.in[2], tt.in[3], tt.in[4])
			if got != tt.want {
				t.Errorf("rankString = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMatchStateFinalResultClearsMatch(t *testing.T) {
	s, rec := newTestState(t)

	for i := 0; i < 7; i++ {
		s.handleGreMessage(gameState([]int{100, 101}, nil))
	}

	b, ok := blob.Extract(`{"matchGameRoomStateChangedEvent":{"gameRoomInfo":{"gameRoomConfig":{"matchId":"m-9","eventId":"PremierDraft_BLB"},"finalMatchResult":{"resultList":[{"scope":"MatchScope_Game","winningTeamId":1,"result":"ResultType_WinLoss","reason":"ResultReason_Game"},{"scope":"MatchScope_Match","winningTeamId":1,"result":"ResultType_WinLoss","reason":"ResultReason_Game"}]}}}}`)
	if !ok {
		t.Fatal("bad fixture")
	}
	router.New(nil, s.Routes()).Dispatch(router.Message{Raw: "", Blob: b})

	if len(rec.games) != 1 {
		t.Fatalf("games = %d, want 1", len(rec.games))
	}
	g := rec.games[0]
	if g.WonMatch == nil || !*g.WonMatch {
		t.Errorf("match fragment = %+v", g)
	}
	if s.matchID != "" || s.seatID != 0 {
		t.Errorf("match state not cleared: %q seat %d", s.matchID, s.seatID)
	}
}
