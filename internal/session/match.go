package session

import (
	"strings"

	"github.com/mdib1/mtgaoverlay/internal/blob"
	"github.com/mdib1/mtgaoverlay/internal/router"
	"github.com/mdib1/mtgaoverlay/pkg/arena/event"
)

// GRE message type markers.
const (
	greGameState       = "GREMessageType_GameStateMessage"
	greQueuedGameState = "GREMessageType_QueuedGameStateMessage"
	greUIMessage       = "GREMessageType_UIMessage"
	greConnectResp     = "GREMessageType_ConnectResp"
	greEdictal         = "GREMessageType_EdictalMessage"
	clientSelectNResp  = "ClientMessageType_SelectNResp"
	clientSubmitDeck   = "ClientMessageType_SubmitDeckResp"
)

func (s *State) handleMatchStateChanged(m router.Message) error {
	info := m.Blob.Object("matchGameRoomStateChangedEvent", "gameRoomInfo")
	cfg := info.Object("gameRoomConfig")
	matchID := cfg.Str("matchId")
	eventID := cfg.Str("eventId")

	if players := cfg.List("reservedPlayers"); len(players) > 0 {
		opponentID := ""
		for _, p := range players {
			obj, ok := p.(map[string]any)
			if !ok {
				continue
			}
			player := blob.Object(obj)
			seat, _ := player.Int("systemSeatId")
			name := player.Str("playerName")
			s.screenNames[seat] = strings.SplitN(name, "#", 2)[0]
			if player.Str("userId") == s.curUser {
				s.updateScreenName(name)
				if eid := player.Str("eventId"); eid != "" {
					eventID = eid
				}
			} else {
				opponentID = player.Str("userId")
			}
		}
		if opponentID != "" && cfg.Has("clientMetadata") {
			md := cfg.Object("clientMetadata")
			s.curOpponentLevel = rankString(
				md[opponentID+"_RankClass"], md[opponentID+"_RankTier"],
				md[opponentID+"_LeaderboardPercentile"],
				md[opponentID+"_LeaderboardPlacement"], nil)
			s.curOpponentMatchID = matchID
			s.log.Info("parsed opponent rank", "rank", s.curOpponentLevel)
		}
	}

	if matchID != "" && eventID != "" {
		s.matchID = matchID
		s.eventID = eventID
	}
	if cfg.Has("serviceMetadata") {
		s.serviceMeta = map[string]any(cfg.Object("serviceMetadata"))
	}
	if cfg.Has("clientMetadata") {
		s.clientMeta = map[string]any(cfg.Object("clientMetadata"))
	}

	if info.Has("finalMatchResult") {
		results := info.Object("finalMatchResult").List("resultList")
		if len(results) > 0 && s.enqueueGameData() {
			s.enqueueResults(results)
		}
		s.clearMatchData(true)
	}
	return nil
}

func (s *State) handleGreToClient(m router.Message) error {
	for _, raw := range m.Blob.Object("greToClientEvent").List("greToClientMessages") {
		obj, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		s.handleGreMessage(blob.Object(obj))
	}
	return nil
}

func (s *State) handleGreMessage(msg blob.Object) {
	msgType := msg.Str("type")
	switch msgType {
	case greGameState, greQueuedGameState:
		s.addHistory(msg)
	case greUIMessage:
		if msg.Object("uiMessage").Has("onChat") {
			s.addHistory(msg)
		}
	}

	switch msgType {
	case greConnectResp:
		s.handleConnectResp(msg)
	case greEdictal:
		s.handleClientPayload(msg.Object("edictalMessage", "edictMessage"))
	case greGameState:
		s.handleGameState(msg)
	}
}

// handleConnectResp picks up the deck the server acknowledged at game
// start; a mid-match submit overrides it later.
func (s *State) handleConnectResp(msg blob.Object) {
	deckMessage := msg.Object("connectResp", "deckMessage")
	s.maindeck = blob.IntList(deckMessage.List("deckCards"))
	s.sideboard = blob.IntList(deckMessage.List("sideboardCards"))
}

func (s *State) handleClientToGre(m router.Message) error {
	s.handleClientPayload(m.Blob.Object("payload"))
	return nil
}

func (s *State) handleClientToGreUI(m router.Message) error {
	payload := m.Blob.Object("payload")
	if payload.Object("uiMessage").Has("onChat") {
		s.addHistory(payload)
	}
	return nil
}

// handleClientPayload processes one client-to-GRE message: mulligan
// decisions go to history, deck submits replace the captured deck.
func (s *State) handleClientPayload(payload blob.Object) {
	if len(payload) == 0 {
		return
	}
	switch payload.Str("type") {
	case clientSelectNResp:
		s.addHistory(payload)
	case clientSubmitDeck:
		s.clearGameData(true)
		deck := payload.Object("submitDeckResp", "deck")
		s.maindeck = blob.IntList(deck.List("deckCards"))
		s.sideboard = blob.IntList(deck.List("sideboardCards"))
		extra := make(map[string]any)
		for k, v := range deck {
			if k == "deckCards" || k == "sideboardCards" {
				continue
			}
			extra[k] = v
		}
		s.deckExtra = extra
	}
}

func (s *State) addHistory(msg blob.Object) {
	s.history = append(s.history, map[string]any(msg))
}

// handleGameState folds one game state message into the per-game
// accumulation: seat, owned objects, hands, mulligans and turn count.
func (s *State) handleGameState(msg blob.Object) {
	if seats := blob.IntList(msg.List("systemSeatIds")); len(seats) > 0 {
		s.seatID = seats[0]
	}
	state := msg.Object("gameStateMessage")

	gameInfo := state.Object("gameInfo")
	if id := gameInfo.Str("matchID"); id != "" && id != s.matchID {
		s.matchID = id
		s.eventID = ""
	}

	for _, raw := range state.List("gameObjects") {
		obj, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		o := blob.Object(obj)
		if t := o.Str("type"); t != "GameObjectType_Card" && t != "GameObjectType_SplitCard" {
			continue
		}
		owner, _ := o.Int("ownerSeatId")
		instanceID, _ := o.Int("instanceId")
		cardID, _ := o.Int("overlayGrpId")
		if s.objectsByOwner[owner] == nil {
			s.objectsByOwner[owner] = make(map[int]int)
		}
		s.objectsByOwner[owner][instanceID] = cardID
	}

	for _, raw := range state.List("zones") {
		obj, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		zone := blob.Object(obj)
		if zone.Str("type") != "ZoneType_Hand" {
			continue
		}
		owner, _ := zone.Int("ownerSeatId")
		playerObjects := s.objectsByOwner[owner]
		hand := make([]int, 0)
		for _, instance := range blob.IntList(zone.List("objectInstanceIds")) {
			cardID, known := playerObjects[instance]
			if !known {
				continue
			}
			hand = append(hand, cardID)
			if s.drawnByInstance[owner] == nil {
				s.drawnByInstance[owner] = make(map[int]int)
			}
			s.drawnByInstance[owner][instance] = cardID
		}
		s.cardsInHand[owner] = hand
	}

	s.recordMulliganHands(state)
	s.recordOpeningHand(state)

	// A zero turn number means the game is still in mulligans; the
	// per-player turn numbers carry the count then.
	if n, ok := state.Object("turnInfo").Int("turnNumber"); ok && n > 0 {
		s.turnCount = n
	} else if players := state.List("players"); len(players) > 0 {
		total := 0
		for _, raw := range players {
			if obj, ok := raw.(map[string]any); ok {
				n, _ := blob.Object(obj).Int("turnNumber")
				total += n
			}
		}
		if total > s.turnCount {
			s.turnCount = total
		}
	}

	if gameInfo.Str("stage") == "GameStage_GameOver" {
		results := gameInfo.List("results")
		if len(results) > 0 && s.enqueueGameData() {
			s.enqueueResults(results)
			s.maybeSubmitPending()
		}
	}
}

// recordMulliganHands snapshots each seat's hand the first time that seat
// is seen deciding a mulligan at a given count, building the sequence of
// hands kept or thrown. The first mulligan decision also pins the starting
// team: the active player while hands are decided is the one on the play,
// which covers games conceded before turn one.
func (s *State) recordMulliganHands(state blob.Object) {
	for _, raw := range state.List("players") {
		obj, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		player := blob.Object(obj)
		if player.Str("pendingMessageType") != "ClientMessageType_MulliganResp" {
			continue
		}
		if s.startingTeamID == 0 {
			if active, ok := state.Object("turnInfo").Int("activePlayer"); ok {
				s.startingTeamID = active
			}
		}
		seat, _ := player.Int("systemSeatNumber")
		count, _ := player.Int("mulliganCount")
		if count == len(s.drawnHands[seat]) {
			hand := append([]int{}, s.cardsInHand[seat]...)
			s.drawnHands[seat] = append(s.drawnHands[seat], hand)
		}
		s.openingHandCount[seat] = count + 1
	}
}

// recordOpeningHand captures every seat's hand once, at the upkeep of
// turn one; by then mulligan decisions are final.
func (s *State) recordOpeningHand(state blob.Object) {
	if len(s.openingHand) > 0 {
		return
	}
	turnInfo := state.Object("turnInfo")
	n, _ := turnInfo.Int("turnNumber")
	if turnInfo.Str("phase") != "Phase_Beginning" ||
		turnInfo.Str("step") != "Step_Upkeep" || n != 1 {
		return
	}
	for seat, hand := range s.cardsInHand {
		s.openingHand[seat] = append([]int{}, hand...)
	}
}

// hasPendingGameData reports whether enough of a game was observed for its
// result to be worth recording: a real history and at least one drawn card.
func (s *State) hasPendingGameData() bool {
	return len(s.drawnByInstance) > 0 && len(s.history) > minHistoryEvents
}

// enqueueGameData snapshots the accumulated game into the pending
// submission slot. It returns false when the accumulation is too thin,
// which keeps conceded-before-draw games out of the record.
func (s *State) enqueueGameData() bool {
	if !s.hasPendingGameData() {
		return false
	}
	opponent := 1
	if s.seatID == 1 {
		opponent = 2
	}
	if s.matchID != s.curOpponentMatchID {
		s.curOpponentLevel = ""
	}

	drawn := s.drawnHands[s.seatID]
	var mulligans [][]int
	if len(drawn) > 1 {
		mulligans = append([][]int{}, drawn[:len(drawn)-1]...)
	}

	historyEvents := make([]map[string]any, len(s.history))
	copy(historyEvents, s.history)

	g := event.Game{
		Meta:                  s.meta(),
		EventName:             s.eventID,
		MatchID:               s.matchID,
		OnPlay:                s.startingTeamID != 0 && s.seatID == s.startingTeamID,
		OpeningHand:           append([]int{}, s.openingHand[s.seatID]...),
		Mulligans:             mulligans,
		DrawnHands:            append([][]int{}, drawn...),
		DrawnCards:            sortedInts(s.drawnByInstance[s.seatID]),
		MulliganCount:         s.openingHandCount[s.seatID] - 1,
		OpponentMulliganCount: s.openingHandCount[opponent] - 1,
		Turns:                 s.turnCount,
		Duration:              -1,
		OpponentCardIDs:       sortedInts(s.objectsByOwner[opponent]),
		RankData:              s.rankData,
		OpponentRank:          s.curOpponentLevel,
		MaindeckCardIDs:       append([]int{}, s.maindeck...),
		SideboardCardIDs:      append([]int{}, s.sideboard...),
		AdditionalDeckInfo:    s.deckExtra,
		ServiceMetadata:       s.serviceMeta,
		ClientMetadata:        s.clientMeta,
		History: event.History{
			SeatID:             s.seatID,
			OpponentSeatID:     opponent,
			ScreenName:         s.screenNames[s.seatID],
			OpponentScreenName: s.screenNames[opponent],
			Events:             historyEvents,
		},
	}
	s.pendingGame = &g
	return true
}

// enqueueResults records game and match outcome fragments from a result
// list; the last game-scoped result is the one for the game just ended.
func (s *State) enqueueResults(results []any) {
	var gameResults []blob.Object
	for _, raw := range results {
		obj, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		result := blob.Object(obj)
		switch result.Str("scope") {
		case "MatchScope_Game":
			gameResults = append(gameResults, result)
		case "MatchScope_Match":
			if s.pendingMatch == nil {
				winner, _ := result.Int("winningTeamId")
				s.pendingMatch = &matchOutcome{
					Won:        winner == s.seatID,
					ResultType: result.Str("result"),
					EndReason:  result.Str("reason"),
				}
			}
		}
	}
	if len(gameResults) == 0 {
		return
	}
	last := gameResults[len(gameResults)-1]
	winner, _ := last.Int("winningTeamId")
	s.pendingResult = &gameOutcome{
		GameNumber: len(gameResults),
		Won:        winner == s.seatID,
		WinType:    last.Str("result"),
		EndReason:  last.Str("reason"),
	}
}

// handleBusinessGameEnd covers the business-log end-of-game message, which
// arrives even when the GRE game-over state is missed (e.g. conceding from
// the settings menu).
func (s *State) handleBusinessGameEnd(m router.Message) error {
	if s.startingTeamID == 0 {
		s.startingTeamID, _ = m.Blob.Int("StartingTeamId")
	}
	if !s.enqueueGameData() {
		return nil
	}
	winner, _ := m.Blob.Int("WinningTeamId")
	gameNumber, _ := m.Blob.Int("GameNumber")
	if gameNumber < 1 {
		gameNumber = 1
	}
	s.pendingResult = &gameOutcome{
		GameNumber: gameNumber,
		Won:        winner == s.seatID,
		WinType:    m.Blob.Str("WinningType"),
		EndReason:  m.Blob.Str("WinningReason"),
	}
	s.maybeSubmitPending()
	return nil
}

// handleOngoingEvents recognizes the course listing sent at login; the
// payload duplicates what per-event messages already provide.
func (s *State) handleOngoingEvents(m router.Message) error {
	s.log.Debug("ongoing events listing observed",
		"courses", len(m.Blob.List("Courses")))
	return nil
}
