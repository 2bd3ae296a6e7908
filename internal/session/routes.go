package session

import (
	"github.com/mdib1/mtgaoverlay/internal/blob"
	"github.com/mdib1/mtgaoverlay/internal/router"
)

// Routes returns the session's dispatch table. Order is significant:
// signatures overlap (several business-log messages share markers) and the
// first match wins.
func (s *State) Routes() []router.Route {
	return []router.Route{
		{
			Name:   "login",
			Match:  router.KeyEquals("Client.Connected", "params", "messageName"),
			Handle: s.handleLogin,
		},
		{
			Name: "scene_change",
			Match: router.All(
				router.RawContains("SceneChange"),
				router.HasKey("fromSceneName")),
			Handle: s.handleSceneChange,
		},
		{
			Name: "join_pod",
			Match: router.All(
				router.RawContains("Event_Join"),
				router.HasKey("EventName")),
			Handle: s.handleJoinPod,
		},
		{
			Name:   "bot_draft_pack",
			Match:  router.HasKey("DraftStatus"),
			Handle: s.handleBotDraftPack,
		},
		{
			Name: "bot_draft_pick",
			Match: router.All(
				router.RawContains("BotDraft_DraftPick"),
				router.HasKey("PickInfo")),
			Handle: s.handleBotDraftPick,
		},
		{
			Name: "human_draft_combined",
			Match: router.All(
				router.RawContains("LogBusinessEvents"),
				router.HasKey("PickGrpId")),
			Handle: s.handleHumanDraftCombined,
		},
		{
			Name: "business_game_end",
			Match: router.All(
				router.RawContains("LogBusinessEvents"),
				router.HasKey("WinningType")),
			Handle: s.handleBusinessGameEnd,
		},
		{
			Name: "human_draft_pack",
			Match: router.All(
				router.RawContains("Draft.Notify "),
				router.Not(router.HasKey("method"))),
			Handle: s.handleHumanDraftPack,
		},
		{
			Name: "deck_submission",
			Match: router.All(
				router.RawContains("Event_SetDeck"),
				router.HasKey("EventName")),
			Handle: s.handleDeckSubmission,
		},
		{
			Name: "ongoing_events",
			Match: router.All(
				router.RawContains("Event_GetCourses"),
				router.HasKey("Courses")),
			Handle: s.handleOngoingEvents,
		},
		{
			Name: "claim_prize",
			Match: router.All(
				router.RawContains("Event_ClaimPrize"),
				router.HasKey("EventName")),
			Handle: s.handleClaimPrize,
		},
		{
			Name: "draft_complete",
			Match: router.All(
				router.RawContains("Draft_CompleteDraft"),
				router.HasKey("DraftId")),
			Handle: s.handleEventCourse,
		},
		{
			Name:   "authenticate",
			Match:  router.HasKey("authenticateResponse"),
			Handle: s.handleAuthenticate,
		},
		{
			Name:   "match_state",
			Match:  router.HasKey("matchGameRoomStateChangedEvent"),
			Handle: s.handleMatchStateChanged,
		},
		{
			Name:   "gre_to_client",
			Match:  router.HasKey("greToClientEvent"),
			Handle: s.handleGreToClient,
		},
		{
			Name: "client_to_gre",
			Match: router.KeyEquals(
				"ClientToMatchServiceMessageType_ClientToGREMessage",
				"clientToMatchServiceMessageType"),
			Handle: s.handleClientToGre,
		},
		{
			Name: "client_to_gre_ui",
			Match: router.KeyEquals(
				"ClientToMatchServiceMessageType_ClientToGREUIMessage",
				"clientToMatchServiceMessageType"),
			Handle: s.handleClientToGreUI,
		},
		{
			Name: "rank_info",
			Match: router.All(
				router.RawContains("Rank_GetCombinedRankInfo"),
				router.HasKey("limitedSeasonOrdinal")),
			Handle: s.handleRankInfo,
		},
		{
			Name: "collection",
			Match: router.All(
				router.RawContains(" PlayerInventory.GetPlayerCardsV3 "),
				router.Not(router.HasKey("method"))),
			Handle: s.handleCollection,
		},
		{
			Name:   "inventory",
			Match:  router.HasKey("DTO_InventoryInfo"),
			Handle: s.handleInventory,
		},
		{
			Name:   "player_progress",
			Match:  matchRewardTierUpgrade,
			Handle: s.handlePlayerProgress,
		},
	}
}

// matchRewardTierUpgrade identifies mastery-pass progress payloads, which
// carry node states with a reward tier upgrade marker.
func matchRewardTierUpgrade(m router.Message) bool {
	nodes := m.Blob.List("NodeStates")
	if nodes == nil {
		return false
	}
	for _, raw := range nodes {
		obj, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		if blob.Object(obj).Has("RewardTierUpgrade") {
			return true
		}
	}
	return false
}
