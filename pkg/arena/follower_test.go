package arena

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/mdib1/mtgaoverlay/pkg/arena/event"
)

// recorder captures submissions for assertions. It is safe for use from
// the follower's parse goroutine while the test polls it.
type recorder struct {
	mu         sync.Mutex
	users      []event.User
	packs      []event.Pack
	picks      []event.Pick
	humanPacks []event.Pack
	humanPicks []event.Pick
	decks      []event.Deck
	games      []event.Game
	ranks      []event.Rank
}

func (r *recorder) SubmitUser(ev event.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users = append(r.users, ev)
}

func (r *recorder) SubmitDraftPack(ev event.Pack) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.packs = append(r.packs, ev)
}

func (r *recorder) SubmitDraftPick(ev event.Pick) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.picks = append(r.picks, ev)
}

func (r *recorder) SubmitHumanDraftPack(ev event.Pack) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.humanPacks = append(r.humanPacks, ev)
}

func (r *recorder) SubmitHumanDraftPick(ev event.Pick) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.humanPicks = append(r.humanPicks, ev)
}

func (r *recorder) SubmitDeck(ev event.Deck) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decks = append(r.decks, ev)
}

func (r *recorder) SubmitGameResult(ev event.Game) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.games = append(r.games, ev)
}

func (r *recorder) SubmitRank(ev event.Rank) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ranks = append(r.ranks, ev)
}

func (r *recorder) SubmitInventory(event.Inventory)   {}
func (r *recorder) SubmitCollection(event.Collection) {}
func (r *recorder) SubmitEventCourse(event.Course)    {}
func (r *recorder) SubmitEventEnded(event.Ended)      {}

func (r *recorder) packCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.packs)
}

func (r *recorder) packAt(i int) event.Pack {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.packs[i]
}

func (r *recorder) hasPackFrom(playerID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.packs {
		if p.PlayerID == playerID {
			return true
		}
	}
	return false
}

const sampleLog = `[Accounts - Login] Updated account. DisplayName:Player#12345, AccountID:WXYZ, Token:abc
[UnityCrossThreadLogger]2023-11-14 15:05:09: ==> Event_Join {"EventName":"QuickDraft_BLB"}
[UnityCrossThreadLogger]BotDraft_DraftStatus {"DraftStatus":"PickNext","EventName":"QuickDraft_BLB","PackNumber":1,"PickNumber":1,"DraftPack":["101","102","103"]}
[UnityCrossThreadLogger]==> BotDraft_DraftPick {"PickInfo":
{"EventName":"QuickDraft_BLB","PackNumber":1,"PickNumber":1,"CardId":"102"}}
[UnityCrossThreadLogger]==> Event_SetDeck {"EventName":"QuickDraft_BLB","Deck":{"MainDeck":[{"cardId":101,"quantity":2}],"Sideboard":[]}}
`

func writeLog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "Player.log")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestParseFilePipeline(t *testing.T) {
	rec := &recorder{}
	path := writeLog(t, sampleLog)

	if err := ParseFile(context.Background(), path, WithSink(rec)); err != nil {
		t.Fatal(err)
	}

	if len(rec.users) != 1 || rec.users[0].ScreenName != "Player#12345" {
		t.Errorf("users = %+v", rec.users)
	}
	if len(rec.packs) != 1 {
		t.Fatalf("packs = %d, want 1", len(rec.packs))
	}
	if !reflect.DeepEqual(rec.packs[0].CardIDs, []int{101, 102, 103}) {
		t.Errorf("pack cards = %v", rec.packs[0].CardIDs)
	}
	if rec.packs[0].PlayerID != "WXYZ" {
		t.Errorf("pack player id = %q", rec.packs[0].PlayerID)
	}

	// The multi-line pick entry was reassembled.
	if len(rec.picks) != 1 || rec.picks[0].CardID != 102 {
		t.Errorf("picks = %+v", rec.picks)
	}
	if len(rec.decks) != 1 || !reflect.DeepEqual(rec.decks[0].MaindeckCardIDs, []int{101, 101}) {
		t.Errorf("decks = %+v", rec.decks)
	}
}

func TestParseFileFinalEntryFlushed(t *testing.T) {
	rec := &recorder{}
	// Single entry, never followed by another marker.
	path := writeLog(t, `[UnityCrossThreadLogger]BotDraft_DraftStatus {"DraftStatus":"PickNext","EventName":"QuickDraft_BLB","PackNumber":3,"PickNumber":14,"DraftPack":["900"]}`)

	if err := ParseFile(context.Background(), path, WithSink(rec)); err != nil {
		t.Fatal(err)
	}
	if len(rec.packs) != 1 || rec.packs[0].PickNumber != 14 {
		t.Errorf("packs = %+v", rec.packs)
	}
}

func TestParseFileMissingFileFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.log")
	if err := ParseFile(context.Background(), path, WithSink(&recorder{})); err == nil {
		t.Error("ParseFile succeeded on a missing file")
	}
}

func TestNewKeepsExplicitPath(t *testing.T) {
	// An explicit path is honored even before the client creates it.
	path := filepath.Join(t.TempDir(), "absent.log")
	f, err := New(WithLogFile(path))
	if err != nil {
		t.Fatal(err)
	}
	if f.Path() != path {
		t.Errorf("Path = %q, want %q", f.Path(), path)
	}
}

func TestFollowerShrinkClearsSession(t *testing.T) {
	rec := &recorder{}
	path := writeLog(t, sampleLog)

	f, err := New(WithLogFile(path), WithSink(rec), WithFollow(true))
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.Run(ctx) }()

	deadline := time.Now().Add(10 * time.Second)
	for rec.packCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("pipeline never produced a pack")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if got := rec.packAt(0); got.PlayerID != "WXYZ" {
		t.Fatalf("first pack player id = %q, want WXYZ", got.PlayerID)
	}

	// Let the shrink detector record the current file size.
	time.Sleep(1200 * time.Millisecond)

	// The client restarted: a shorter log with no account line.
	short := `[UnityCrossThreadLogger]BotDraft_DraftStatus {"DraftStatus":"PickNext","EventName":"QuickDraft_BLB","PackNumber":1,"PickNumber":2,"DraftPack":["104"]}` + "\n"
	if err := os.WriteFile(path, []byte(short), 0o644); err != nil {
		t.Fatal(err)
	}

	// The restarted pass reinitializes the session before its lines are
	// processed, so the identity from the old pass is gone.
	deadline = time.Now().Add(15 * time.Second)
	for !rec.hasPackFrom("") {
		if time.Now().After(deadline) {
			t.Fatal("no pack from the reinitialized session")
		}
		time.Sleep(20 * time.Millisecond)
	}

	cancel()
	<-done
}

func TestFollowerRunCancel(t *testing.T) {
	rec := &recorder{}
	path := writeLog(t, sampleLog)

	f, err := New(WithLogFile(path), WithSink(rec), WithFollow(true))
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.Run(ctx) }()

	// Wait for the pipeline to reach the pack entry, then stop it.
	deadline := time.Now().Add(10 * time.Second)
	for rec.packCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("pipeline never produced a pack")
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()

	if err := <-done; err != context.Canceled {
		t.Errorf("Run returned %v, want context.Canceled", err)
	}
}
