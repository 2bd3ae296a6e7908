// Package catalog resolves Arena card ids to names, rarity, collector
// numbers and draft win-rate statistics.
//
// The data source is the public per-card CSV published by the stats
// service. The catalog degrades gracefully: when the data is unavailable,
// lookups fail with ErrNotFound and callers fall back to bare card ids.
package catalog

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// DefaultCardDataURL is the public per-card analysis CSV.
const DefaultCardDataURL = "https://17lands-public.s3.amazonaws.com/analysis_data/cards/cards.csv"

// ErrNotFound is returned when a card id is unknown to the catalog.
var ErrNotFound = errors.New("catalog: card not found")

// WinRates holds draft win-rate statistics for one card.
type WinRates struct {
	// GDWR is games-drawn win rate.
	GDWR float64
	// OHWR is opening-hand win rate.
	OHWR float64
	// GIHWR is games-in-hand win rate.
	GIHWR float64
}

// Card is one resolved catalog entry.
type Card struct {
	ID     int
	Name   string
	Rarity string

	// Number is the collector number; kept as a string because promo
	// numbers carry suffixes.
	Number string

	// Stats is nil when no win-rate data is known for the card.
	Stats *WinRates
}

// Catalog answers card lookups.
type Catalog interface {
	Lookup(cardID int) (Card, error)
}

// Static is an in-memory catalog, used directly in tests and as the cache
// layer behind HTTPSource.
type Static map[int]Card

func (s Static) Lookup(cardID int) (Card, error) {
	c, ok := s[cardID]
	if !ok {
		return Card{}, fmt.Errorf("%w: %d", ErrNotFound, cardID)
	}
	return c, nil
}

// HTTPSource fetches the card CSV once on first use and serves lookups
// from memory afterwards. Fetch failures are remembered so an unavailable
// service is not hammered on every lookup.
type HTTPSource struct {
	url   string
	httpc *http.Client
	log   *slog.Logger

	mu          sync.Mutex
	cards       Static
	unavailable bool
}

// NewHTTPSource builds a catalog over url (DefaultCardDataURL when empty).
// A nil logger discards output.
func NewHTTPSource(url string, log *slog.Logger) *HTTPSource {
	if url == "" {
		url = DefaultCardDataURL
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(127)}))
	}
	return &HTTPSource{
		url:   url,
		httpc: &http.Client{Timeout: 60 * time.Second},
		log:   log,
	}
}

func (s *HTTPSource) Lookup(cardID int) (Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cards == nil && !s.unavailable {
		if err := s.loadLocked(context.Background()); err != nil {
			s.log.Warn("card data unavailable, falling back to bare ids", "error", err)
			s.unavailable = true
		}
	}
	if s.cards == nil {
		return Card{}, fmt.Errorf("%w: %d", ErrNotFound, cardID)
	}
	return s.cards.Lookup(cardID)
}

func (s *HTTPSource) loadLocked(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return err
	}
	resp, err := s.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetching card data: unexpected status %s", resp.Status)
	}

	cards, err := ParseCSV(resp.Body)
	if err != nil {
		return fmt.Errorf("parsing card data: %w", err)
	}
	s.cards = cards
	s.log.Info("loaded card data", "cards", len(cards), "url", s.url)
	return nil
}

// ParseCSV reads the card data CSV. Columns are matched by header name;
// win-rate columns are optional. Rows with an unusable id are skipped.
func ParseCSV(r io.Reader) (Static, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, err
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[name] = i
	}
	if _, ok := col["id"]; !ok {
		return nil, errors.New("card data has no id column")
	}

	field := func(rec []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return rec[i]
	}

	cards := make(Static)
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		id, err := strconv.Atoi(field(rec, "id"))
		if err != nil {
			continue
		}
		card := Card{
			ID:     id,
			Name:   field(rec, "name"),
			Rarity: field(rec, "rarity"),
			Number: field(rec, "number"),
		}
		var rates WinRates
		var haveStats bool
		if v, err := strconv.ParseFloat(field(rec, "GDWR"), 64); err == nil {
			rates.GDWR, haveStats = v, true
		}
		if v, err := strconv.ParseFloat(field(rec, "OHWR"), 64); err == nil {
			rates.OHWR, haveStats = v, true
		}
		if v, err := strconv.ParseFloat(field(rec, "GIHWR"), 64); err == nil {
			rates.GIHWR, haveStats = v, true
		}
		if haveStats {
			card.Stats = &rates
		}
		cards[id] = card
	}
	return cards, nil
}

// DisplayText formats the overlay text for one card: its win rates when
// known, otherwise the name, otherwise the bare id.
func DisplayText(c Catalog, cardID int) string {
	card, err := c.Lookup(cardID)
	if err != nil {
		return fmt.Sprintf("Card %d", cardID)
	}
	if card.Stats == nil {
		if card.Name != "" {
			return card.Name
		}
		return fmt.Sprintf("Card %d", cardID)
	}
	return fmt.Sprintf("GDWR: %.2f\nOHWR: %.2f\nGIHWR: %.2f",
		card.Stats.GDWR, card.Stats.OHWR, card.Stats.GIHWR)
}

// rarityRank orders rarities the way a pack lays out.
var rarityRank = map[string]int{
	"mythic":   0,
	"rare":     1,
	"uncommon": 2,
	"common":   3,
}

// SortPack orders card ids by (rarity, collector number) so overlay texts
// line up with the on-screen pack layout. Unknown cards sort last and the
// input is not modified.
func SortPack(c Catalog, ids []int) []int {
	type keyed struct {
		id     int
		rarity int
		number int
		known  bool
	}
	out := make([]keyed, len(ids))
	for i, id := range ids {
		k := keyed{id: id, rarity: 4}
		if card, err := c.Lookup(id); err == nil {
			k.known = true
			if r, ok := rarityRank[strings.ToLower(card.Rarity)]; ok {
				k.rarity = r
			}
			if n, err := strconv.Atoi(card.Number); err == nil {
				k.number = n
			}
		}
		out[i] = k
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].known != out[j].known {
			return out[i].known
		}
		if out[i].rarity != out[j].rarity {
			return out[i].rarity < out[j].rarity
		}
		return out[i].number < out[j].number
	})
	sorted := make([]int, len(out))
	for i, k := range out {
		sorted[i] = k.id
	}
	return sorted
}
