// Package overlay keeps an on-screen card annotation display in sync with
// the draft state observed by the log pipeline.
//
// Refreshes are debounced: a periodic tick redraws at a steady rate, user
// clicks trigger an extra redraw once the interface has settled, and
// redraws whose screen layout no longer matches the pack are skipped
// rather than drawn wrong.
package overlay

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/mdib1/mtgaoverlay/internal/catalog"
	"github.com/mdib1/mtgaoverlay/pkg/arena/event"
)

const (
	// defaultRefreshInterval is the steady redraw cadence.
	defaultRefreshInterval = 5 * time.Second

	// clickGuard suppresses clicks arriving in a burst; only the first
	// one schedules a redraw.
	clickGuard = time.Second

	// settleDelay is how long after a relevant click the interface is
	// given to settle before the redraw fires.
	settleDelay = 300 * time.Millisecond
)

// Point is a screen coordinate.
type Point struct {
	X, Y int
}

// Rect is a screen-space rectangle.
type Rect struct {
	X, Y, W, H int
}

// Contains reports whether p falls inside the rectangle.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X < r.X+r.W && p.Y >= r.Y && p.Y < r.Y+r.H
}

// Polygon is a closed screen region.
type Polygon []Point

// Contains reports whether p falls inside the polygon, by ray casting.
// Vertices may wind in either direction.
func (poly Polygon) Contains(p Point) bool {
	inside := false
	n := len(poly)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		a, b := poly[i], poly[j]
		if (a.Y > p.Y) == (b.Y > p.Y) {
			continue
		}
		crossX := float64(b.X-a.X)*float64(p.Y-a.Y)/float64(b.Y-a.Y) + float64(a.X)
		if float64(p.X) < crossX {
			inside = !inside
		}
	}
	return inside
}

// Annotation is one card's rendered overlay content and position.
type Annotation struct {
	CardID int
	Text   string
	Bounds Rect
}

// LayoutLocator finds the current on-screen positions of the cards in a
// pack. Implementations may fail transiently (window occluded, scene
// animating); the coordinator skips that redraw and tries again later.
type LayoutLocator interface {
	Locate(ctx context.Context, cardCount int) ([]Rect, error)
}

// Presenter renders annotations, replacing whatever was shown before.
// missingText is a side-channel block naming the cards taken from a
// returning booster; empty when there is nothing to report.
type Presenter interface {
	Present(annotations []Annotation, missingText string) error
	Clear() error
}

// NopLocator reports no layout, which keeps the overlay blank. Used when
// screen integration is disabled.
type NopLocator struct{}

func (NopLocator) Locate(ctx context.Context, cardCount int) ([]Rect, error) {
	return nil, nil
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithRefreshInterval overrides the periodic redraw cadence.
func WithRefreshInterval(d time.Duration) Option {
	return func(c *Coordinator) { c.refreshInterval = d }
}

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// WithClickRegion restricts click handling to a screen region; clicks
// outside it never trigger a redraw.
func WithClickRegion(region Polygon) Option {
	return func(c *Coordinator) { c.region = region }
}

// Coordinator owns the overlay refresh loop. It consumes draft snapshots
// on the parse goroutine, click events on the input goroutine and redraws
// from its own Run loop; the snapshot is the only shared state.
type Coordinator struct {
	log       *slog.Logger
	locator   LayoutLocator
	presenter Presenter
	cards     catalog.Catalog
	region    Polygon

	refreshInterval time.Duration
	now             func() time.Time

	refreshCh chan struct{}

	mu          sync.Mutex
	inDraft     bool
	cardIDs     []int
	missingText string
	lastClick   time.Time
	settle      *time.Timer
	lastDrawn   []Annotation
	lastMissing string
}

// New builds a coordinator. A nil logger discards output; a nil locator
// behaves like NopLocator.
func New(log *slog.Logger, locator LayoutLocator, presenter Presenter, cards catalog.Catalog, opts ...Option) *Coordinator {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(127)}))
	}
	if locator == nil {
		locator = NopLocator{}
	}
	c := &Coordinator{
		log:             log,
		locator:         locator,
		presenter:       presenter,
		cards:           cards,
		refreshInterval: defaultRefreshInterval,
		now:             time.Now,
		refreshCh:       make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ObservePack records the pack currently on screen. Cards are ordered the
// way the client lays the pack out so annotations line up positionally.
func (c *Coordinator) ObservePack(pack event.Pack, missingCardIDs []int) {
	sorted := catalog.SortPack(c.cards, pack.CardIDs)
	missing := missingCardsText(c.cards, missingCardIDs)

	c.mu.Lock()
	c.inDraft = true
	c.cardIDs = sorted
	c.missingText = missing
	c.mu.Unlock()

	if len(missingCardIDs) > 0 {
		c.log.Debug("pack returned with cards taken", "missing", missingCardIDs)
	}
	c.requestRefresh()
}

// missingCardsText names the cards taken from a returning booster, one per
// line under a header. Empty when nothing is missing.
func missingCardsText(c catalog.Catalog, ids []int) string {
	if len(ids) == 0 {
		return ""
	}
	lines := make([]string, 0, len(ids)+1)
	lines = append(lines, "Cards that are missing:")
	for _, id := range ids {
		name := fmt.Sprintf("Card %d", id)
		if card, err := c.Lookup(id); err == nil && card.Name != "" {
			name = card.Name
		}
		lines = append(lines, name)
	}
	return strings.Join(lines, "\n")
}

// ObserveScene tracks draft entry and exit; leaving the draft clears the
// display immediately.
func (c *Coordinator) ObserveScene(scene string) {
	inDraft := scene == "Draft"

	c.mu.Lock()
	c.inDraft = inDraft
	if !inDraft {
		c.cardIDs = nil
		c.missingText = ""
	}
	c.mu.Unlock()

	c.requestRefresh()
}

// Click handles one pointer press. A click inside the configured region
// schedules a redraw for when the interface settles; scheduling again
// before the delay elapses replaces the earlier redraw rather than
// stacking a second one.
func (c *Coordinator) Click(p Point) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.inDraft {
		return
	}
	if len(c.region) > 0 && !c.region.Contains(p) {
		return
	}
	now := c.now()
	if now.Sub(c.lastClick) < clickGuard {
		return
	}
	c.lastClick = now

	if c.settle != nil {
		c.settle.Stop()
	}
	c.settle = time.AfterFunc(settleDelay, c.requestRefresh)
}

// requestRefresh nudges the Run loop; a refresh already pending absorbs
// the request.
func (c *Coordinator) requestRefresh() {
	select {
	case c.refreshCh <- struct{}{}:
	default:
	}
}

// Run redraws on the periodic tick and on demand until ctx is cancelled,
// clearing the display on the way out.
func (c *Coordinator) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.mu.Lock()
			if c.settle != nil {
				c.settle.Stop()
			}
			c.mu.Unlock()
			if err := c.presenter.Clear(); err != nil {
				c.log.Warn("failed to clear overlay", "error", err)
			}
			return ctx.Err()
		case <-ticker.C:
			c.refresh(ctx)
		case <-c.refreshCh:
			c.refresh(ctx)
		}
	}
}

// refresh performs one redraw attempt against the current snapshot.
func (c *Coordinator) refresh(ctx context.Context) {
	c.mu.Lock()
	inDraft := c.inDraft
	cardIDs := append([]int{}, c.cardIDs...)
	missing := c.missingText
	c.mu.Unlock()

	if !inDraft || len(cardIDs) == 0 {
		c.clearIfDrawn()
		return
	}

	rects, err := c.locator.Locate(ctx, len(cardIDs))
	if err != nil {
		c.log.Debug("layout unavailable, skipping redraw", "error", err)
		return
	}
	if len(rects) != len(cardIDs) {
		// The screen is mid-transition; annotating now would label the
		// wrong cards.
		c.log.Debug("layout mismatch, skipping redraw",
			"cards", len(cardIDs), "positions", len(rects))
		return
	}

	annotations := make([]Annotation, len(cardIDs))
	for i, id := range cardIDs {
		annotations[i] = Annotation{
			CardID: id,
			Text:   catalog.DisplayText(c.cards, id),
			Bounds: rects[i],
		}
	}

	c.mu.Lock()
	unchanged := annotationsEqual(c.lastDrawn, annotations) && missing == c.lastMissing
	if !unchanged {
		c.lastDrawn = annotations
		c.lastMissing = missing
	}
	c.mu.Unlock()
	if unchanged {
		return
	}

	if err := c.presenter.Present(annotations, missing); err != nil {
		c.log.Warn("failed to draw overlay", "error", err)
	}
}

func (c *Coordinator) clearIfDrawn() {
	c.mu.Lock()
	drawn := c.lastDrawn != nil
	c.lastDrawn = nil
	c.lastMissing = ""
	c.mu.Unlock()
	if !drawn {
		return
	}
	if err := c.presenter.Clear(); err != nil {
		c.log.Warn("failed to clear overlay", "error", err)
	}
}

func annotationsEqual(a, b []Annotation) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
