package session

import (
	"sort"
	"strconv"
	"strings"

	"github.com/mdib1/mtgaoverlay/internal/blob"
	"github.com/mdib1/mtgaoverlay/internal/router"
	"github.com/mdib1/mtgaoverlay/pkg/arena/event"
)

const (
	draftRounds      = 3
	boosterPositions = 14
)

// draftOpens remembers the first-seen contents of each booster position so
// that a returning booster can be compared against its original contents.
// Position is pick number modulo the table width; a fresh table starts per
// draft event.
type draftOpens struct {
	seen [draftRounds][boosterPositions][]int
}

func newDraftOpens() *draftOpens {
	return &draftOpens{}
}

// observe records or compares one presented pack. For a booster seen for
// the first time it returns nil; for a returning booster it returns the
// cards missing relative to the original contents, with multiplicity.
func (d *draftOpens) observe(packNumber, pickNumber int, cardIDs []int) []int {
	round := packNumber - 1
	if round < 0 || round >= draftRounds {
		return nil
	}
	pos := pickNumber % boosterPositions
	if pos < 0 {
		pos += boosterPositions
	}
	if d.seen[round][pos] == nil {
		d.seen[round][pos] = append([]int{}, cardIDs...)
		return nil
	}
	return listDifference(d.seen[round][pos], cardIDs)
}

// listDifference returns the elements of a not matched by an element of b,
// respecting multiplicity. Order follows a.
func listDifference(a, b []int) []int {
	counts := make(map[int]int, len(b))
	for _, v := range b {
		counts[v]++
	}
	var out []int
	for _, v := range a {
		if counts[v] > 0 {
			counts[v]--
			continue
		}
		out = append(out, v)
	}
	return out
}

// observePack updates the opens table and notifies the overlay observer.
func (s *State) observePack(p event.Pack) {
	missing := s.opens.observe(p.PackNumber, p.PickNumber, p.CardIDs)
	if s.observer != nil {
		s.observer.ObservePack(p, missing)
	}
}

func (s *State) handleLogin(m router.Message) error {
	s.clearGameData(false)
	payload := m.Blob.Object("params", "payloadObject")
	s.curUser = payload.Str("playerId")
	s.updateScreenName(payload.Str("screenName"))
	return nil
}

func (s *State) handleSceneChange(m router.Message) error {
	from := m.Blob.Str("fromSceneName")
	to := m.Blob.Str("toSceneName")
	s.log.Debug("scene change", "from", from, "to", to)
	switch {
	case from == "Draft":
		s.Reinitialize()
	case to == "Draft":
		s.scene = "Draft"
		if s.observer != nil {
			s.observer.ObserveScene(s.scene)
		}
	}
	return nil
}

func (s *State) handleJoinPod(m router.Message) error {
	s.clearGameData(true)
	s.curDraftEvent = m.Blob.Str("EventName")
	s.opens = newDraftOpens()
	s.log.Info("joined draft pod", "event", s.curDraftEvent)
	return nil
}

func (s *State) handleBotDraftPack(m router.Message) error {
	if m.Blob.Str("DraftStatus") != "PickNext" {
		return nil
	}
	s.clearGameData(true)
	s.curDraftEvent = m.Blob.Str("EventName")
	packNumber, _ := m.Blob.Int("PackNumber")
	pickNumber, _ := m.Blob.Int("PickNumber")
	pack := event.Pack{
		Meta:       s.meta(),
		EventName:  s.curDraftEvent,
		PackNumber: packNumber,
		PickNumber: pickNumber,
		CardIDs:    blob.IntList(m.Blob.List("DraftPack")),
	}
	s.observePack(pack)
	s.out.SubmitDraftPack(pack)
	return nil
}

func (s *State) handleBotDraftPick(m router.Message) error {
	s.clearGameData(true)
	info := m.Blob.Object("PickInfo")
	s.curDraftEvent = info.Str("EventName")
	packNumber, _ := info.Int("PackNumber")
	pickNumber, _ := info.Int("PickNumber")
	cardID, _ := info.Int("CardId")
	s.out.SubmitDraftPick(event.Pick{
		Meta:       s.meta(),
		EventName:  s.curDraftEvent,
		PackNumber: packNumber,
		PickNumber: pickNumber,
		CardID:     cardID,
	})
	return nil
}

// handleHumanDraftCombined covers the business-log message that reports a
// premier draft pick together with the pack it was made from.
func (s *State) handleHumanDraftCombined(m router.Message) error {
	s.clearGameData(true)
	s.curDraftEvent = m.Blob.Str("EventId")
	draftID := m.Blob.Str("DraftId")
	packNumber, _ := m.Blob.Int("PackNumber")
	pickNumber, _ := m.Blob.Int("PickNumber")

	pack := event.Pack{
		Meta:       s.meta(),
		DraftID:    draftID,
		EventName:  s.curDraftEvent,
		PackNumber: packNumber,
		PickNumber: pickNumber,
		CardIDs:    blob.IntList(m.Blob.List("CardsInPack")),
		Method:     "LogBusiness",
	}
	s.observePack(pack)
	s.out.SubmitHumanDraftPack(pack)

	cardID, _ := m.Blob.Int("PickGrpId")
	auto, _ := m.Blob["AutoPick"].(bool)
	timeRemaining, _ := m.Blob["TimeRemainingOnPick"].(float64)
	s.out.SubmitHumanDraftPick(event.Pick{
		Meta:          s.meta(),
		DraftID:       draftID,
		EventName:     s.curDraftEvent,
		PackNumber:    packNumber,
		PickNumber:    pickNumber,
		CardID:        cardID,
		AutoPick:      auto,
		TimeRemaining: timeRemaining,
	})
	return nil
}

// handleHumanDraftPack covers the Draft.Notify push that presents a pack in
// a human draft without an accompanying pick.
func (s *State) handleHumanDraftPack(m router.Message) error {
	s.clearGameData(true)
	packNumber, _ := m.Blob.Int("SelfPack")
	pickNumber, _ := m.Blob.Int("SelfPick")
	pack := event.Pack{
		Meta:       s.meta(),
		DraftID:    m.Blob.Str("draftId"),
		EventName:  s.curDraftEvent,
		PackNumber: packNumber,
		PickNumber: pickNumber,
		CardIDs:    splitCardList(m.Blob.Str("PackCards")),
		Method:     "Draft.Notify",
	}
	s.observePack(pack)
	s.out.SubmitHumanDraftPack(pack)
	return nil
}

// splitCardList parses the comma-separated card id list used by
// Draft.Notify messages.
func splitCardList(s string) []int {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		if n, err := strconv.Atoi(strings.TrimSpace(p)); err == nil {
			out = append(out, n)
		}
	}
	return out
}

func (s *State) handleDeckSubmission(m router.Message) error {
	s.clearGameData(true)
	deck := m.Blob.Object("Deck")
	s.out.SubmitDeck(event.Deck{
		Meta:             s.meta(),
		EventName:        m.Blob.Str("EventName"),
		MaindeckCardIDs:  flattenDeck(deck.List("MainDeck")),
		SideboardCardIDs: flattenDeck(deck.List("Sideboard")),
		Companion:        firstCompanion(deck.List("Companions")),
		IsDuringMatch:    false,
	})
	return nil
}

// flattenDeck expands a list of {cardId, quantity} pairs into repeated ids.
func flattenDeck(entries []any) []int {
	var out []int
	for _, e := range entries {
		obj, ok := e.(map[string]any)
		if !ok {
			continue
		}
		o := blob.Object(obj)
		id, ok := o.Int("cardId")
		if !ok {
			continue
		}
		qty, ok := o.Int("quantity")
		if !ok {
			qty = 1
		}
		for i := 0; i < qty; i++ {
			out = append(out, id)
		}
	}
	return out
}

func firstCompanion(companions []any) int {
	if len(companions) == 0 {
		return 0
	}
	obj, ok := companions[0].(map[string]any)
	if !ok {
		return 0
	}
	id, _ := blob.Object(obj).Int("cardId")
	return id
}

func (s *State) handleEventCourse(m router.Message) error {
	s.out.SubmitEventCourse(event.Course{
		Meta:      s.meta(),
		EventName: m.Blob.Str("InternalEventName"),
		DraftID:   m.Blob.Str("DraftId"),
		CourseID:  m.Blob.Str("CourseId"),
		CardPool:  blob.IntList(m.Blob.List("CardPool")),
	})
	return nil
}

func (s *State) handleClaimPrize(m router.Message) error {
	s.out.SubmitEventEnded(event.Ended{
		Meta:      s.meta(),
		EventName: m.Blob.Str("EventName"),
	})
	return nil
}

func (s *State) handleAuthenticate(m router.Message) error {
	s.updateScreenName(m.Blob.Object("authenticateResponse").Str("screenName"))
	return nil
}

func (s *State) handleRankInfo(m router.Message) error {
	s.rankData = map[string]any(m.Blob)
	if id := m.Blob.Str("playerId"); id != "" {
		s.curUser = id
	}
	s.out.SubmitRank(event.Rank{
		Meta:     s.meta(),
		RankData: s.rankData,
		LimitedRank: rankString(
			m.Blob["limitedClass"], m.Blob["limitedLevel"],
			m.Blob["limitedPercentile"], m.Blob["limitedLeaderboardPlace"],
			m.Blob["limitedStep"]),
		ConstructedRank: rankString(
			m.Blob["constructedClass"], m.Blob["constructedLevel"],
			m.Blob["constructedPercentile"], m.Blob["constructedLeaderboardPlace"],
			m.Blob["constructedStep"]),
	})
	return nil
}

func (s *State) handleCollection(m router.Message) error {
	if s.curUser == "" {
		s.log.Debug("skipping collection snapshot, user unknown")
		return nil
	}
	counts := make(map[string]any, len(m.Blob))
	for k, v := range m.Blob {
		counts[k] = v
	}
	s.out.SubmitCollection(event.Collection{Meta: s.meta(), CardCounts: counts})
	return nil
}

// inventoryKeys is the wallet subset worth recording; the full DTO carries
// per-cosmetic noise.
var inventoryKeys = []string{
	"Gems", "Gold", "TotalVaultProgress", "wcTrackPosition",
	"WildCardCommons", "WildCardUnCommons", "WildCardRares", "WildCardMythics",
	"DraftTokens", "SealedTokens", "Boosters", "Changes",
}

func (s *State) handleInventory(m router.Message) error {
	dto := m.Blob.Object("DTO_InventoryInfo")
	if len(dto) == 0 {
		return nil
	}
	inv := make(map[string]any, len(inventoryKeys))
	for _, k := range inventoryKeys {
		if v, ok := dto[k]; ok {
			inv[k] = v
		}
	}
	s.out.SubmitInventory(event.Inventory{Meta: s.meta(), Inventory: inv})
	return nil
}

// handlePlayerProgress recognizes mastery-pass reward messages so they are
// not misrouted; progress tracking itself is not recorded.
func (s *State) handlePlayerProgress(m router.Message) error {
	s.log.Debug("player progress update observed")
	return nil
}

func (s *State) handleDisconnect() {
	if s.curUser != "" {
		s.discUser = s.curUser
		s.discScreenName = s.screenName
		s.discRank = s.rankData
	}
	s.curUser = ""
	s.screenName = ""
	s.rankData = nil
	s.log.Info("front door connection closed, user cleared")
}

func (s *State) handleReconnect() {
	if s.discUser == "" {
		return
	}
	s.curUser = s.discUser
	s.screenName = s.discScreenName
	s.rankData = s.discRank
	s.log.Info("reconnected, restored user", "player_id", s.curUser)
}

// scalarText renders a decoded JSON scalar the way the wire format always
// carried it, with nil as "None".
func scalarText(v any) string {
	switch n := v.(type) {
	case nil:
		return "None"
	case string:
		return n
	case bool:
		if n {
			return "True"
		}
		return "False"
	case float64:
		if n == float64(int64(n)) {
			return strconv.FormatInt(int64(n), 10)
		}
		return strconv.FormatFloat(n, 'f', -1, 64)
	default:
		return ""
	}
}

// sortedInts returns a sorted copy, used to keep emitted card lists stable
// across map iteration order.
func sortedInts(m map[int]int) []int {
	out := make([]int, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	sort.Ints(out)
	return out
}
