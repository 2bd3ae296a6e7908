package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/mdib1/mtgaoverlay/pkg/arena/event"
)

// ClientVersion identifies this client to the stats API.
const ClientVersion = "0.2.0"

// Endpoint paths, one per event kind.
const (
	pathUser           = "/api/v1/user"
	pathDraftPack      = "/api/v1/draft_pack"
	pathDraftPick      = "/api/v1/draft_pick"
	pathHumanDraftPack = "/api/v1/human_draft_pack"
	pathHumanDraftPick = "/api/v1/human_draft_pick"
	pathDeck           = "/api/v1/deck"
	pathGame           = "/api/v1/game"
	pathRank           = "/api/v1/rank"
	pathInventory      = "/api/v1/inventory"
	pathCollection     = "/api/v1/collection"
	pathEventCourse    = "/api/v1/event_course"
	pathEventEnded     = "/api/v1/event_ended"
	pathVersionInfo    = "/api/v1/client_version"
)

const (
	apiQueueSize   = 256
	apiMaxAttempts = 3
	apiRetryDelay  = 2 * time.Second
	apiTimeout     = 30 * time.Second
)

type apiRequest struct {
	path    string
	payload any
}

// APIClient submits events to the stats API over HTTP. Submissions are
// queued and posted from a background worker so the parse loop never waits
// on the network; when the queue is full the event is dropped with a log
// line rather than stalling log consumption.
type APIClient struct {
	host  string
	token string
	log   *slog.Logger

	httpc   *http.Client
	limiter *rate.Limiter

	queue chan apiRequest

	closeOnce sync.Once
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewAPIClient builds a client for host and starts its worker.
// A nil logger discards output.
func NewAPIClient(host, token string, log *slog.Logger) *APIClient {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(127)}))
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &APIClient{
		host:    host,
		token:   token,
		log:     log,
		httpc:   &http.Client{Timeout: apiTimeout},
		limiter: rate.NewLimiter(rate.Every(time.Second), 5),
		queue:   make(chan apiRequest, apiQueueSize),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go c.worker(ctx)
	return c
}

// Close stops the worker; pending submissions not yet posted are
// abandoned. Safe to call multiple times.
func (c *APIClient) Close() {
	c.closeOnce.Do(c.cancel)
	<-c.done
}

func (c *APIClient) worker(ctx context.Context) {
	defer close(c.done)
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-c.queue:
			if err := c.limiter.Wait(ctx); err != nil {
				return
			}
			c.post(ctx, req)
		}
	}
}

func (c *APIClient) post(ctx context.Context, req apiRequest) {
	body, err := c.encode(req.payload)
	if err != nil {
		c.log.Error("failed to encode submission", "path", req.path, "error", err)
		return
	}

	url := c.host + req.path
	for attempt := 1; attempt <= apiMaxAttempts; attempt++ {
		if err = c.postOnce(ctx, url, body); err == nil {
			c.log.Debug("submitted", "path", req.path)
			return
		}
		if ctx.Err() != nil {
			return
		}
		c.log.Warn("submission failed", "path", req.path, "attempt", attempt, "error", err)
		select {
		case <-ctx.Done():
			return
		case <-time.After(apiRetryDelay * time.Duration(attempt)):
		}
	}
	c.log.Error("giving up on submission", "path", req.path, "error", err)
}

func (c *APIClient) postOnce(ctx context.Context, url string, body []byte) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	return nil
}

// encode marshals the event and grafts on the token and client version the
// API expects with every submission.
func (c *APIClient) encode(payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	m["token"] = c.token
	m["client_version"] = ClientVersion
	return json.Marshal(m)
}

func (c *APIClient) enqueue(path string, payload any) {
	select {
	case c.queue <- apiRequest{path: path, payload: payload}:
	default:
		c.log.Warn("submission queue full, dropping event", "path", path)
	}
}

func (c *APIClient) SubmitUser(ev event.User)           { c.enqueue(pathUser, ev) }
func (c *APIClient) SubmitDraftPack(ev event.Pack)      { c.enqueue(pathDraftPack, ev) }
func (c *APIClient) SubmitDraftPick(ev event.Pick)      { c.enqueue(pathDraftPick, ev) }
func (c *APIClient) SubmitHumanDraftPack(ev event.Pack) { c.enqueue(pathHumanDraftPack, ev) }
func (c *APIClient) SubmitHumanDraftPick(ev event.Pick) { c.enqueue(pathHumanDraftPick, ev) }
func (c *APIClient) SubmitDeck(ev event.Deck)           { c.enqueue(pathDeck, ev) }
func (c *APIClient) SubmitGameResult(ev event.Game)     { c.enqueue(pathGame, ev) }
func (c *APIClient) SubmitRank(ev event.Rank)           { c.enqueue(pathRank, ev) }
func (c *APIClient) SubmitInventory(ev event.Inventory) { c.enqueue(pathInventory, ev) }
func (c *APIClient) SubmitCollection(ev event.Collection) {
	c.enqueue(pathCollection, ev)
}
func (c *APIClient) SubmitEventCourse(ev event.Course) { c.enqueue(pathEventCourse, ev) }
func (c *APIClient) SubmitEventEnded(ev event.Ended)   { c.enqueue(pathEventEnded, ev) }

// VersionInfo is the server's minimum supported client version response.
type VersionInfo struct {
	MinVersion          string `json:"min_version"`
	UpgradeInstructions string `json:"upgrade_instructions,omitempty"`
}

// GetVersionInfo fetches the minimum supported client version. It is the
// only synchronous call the client makes, used once at startup.
func (c *APIClient) GetVersionInfo(ctx context.Context) (VersionInfo, error) {
	url := fmt.Sprintf("%s%s?client=go&version=%s", c.host, pathVersionInfo, ClientVersion)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return VersionInfo{}, err
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return VersionInfo{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return VersionInfo{}, fmt.Errorf("unexpected status %s", resp.Status)
	}
	var info VersionInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return VersionInfo{}, err
	}
	return info, nil
}
