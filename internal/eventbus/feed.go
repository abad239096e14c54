package eventbus

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/matthewbaird/assetdesk/internal/event"
)

const (
	feedBuffer       = 32
	feedWriteTimeout = 5 * time.Second
)

// FeedHub streams domain events to websocket clients. A client that falls
// behind by more than its buffer is disconnected.
type FeedHub struct {
	mu      sync.Mutex
	clients map[*feedClient]struct{}
	log     *slog.Logger
}

type feedClient struct {
	events     chan event.DomainEvent
	categories []string
	slow       chan struct{}
	slowOnce   sync.Once
}

func (c *feedClient) wants(evt event.DomainEvent) bool {
	return len(c.categories) == 0 || slices.Contains(c.categories, evt.Category)
}

// NewFeedHub creates an empty hub.
func NewFeedHub(logger *slog.Logger) *FeedHub {
	if logger == nil {
		logger = slog.Default()
	}
	return &FeedHub{clients: make(map[*feedClient]struct{}), log: logger}
}

// HandleEvent fans evt out to every connected client.
func (h *FeedHub) HandleEvent(_ context.Context, evt event.DomainEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if !c.wants(evt) {
			continue
		}
		select {
		case c.events <- evt:
		default:
			c.slowOnce.Do(func() { close(c.slow) })
		}
	}
	return nil
}

// Clients reports the number of connected clients.
func (h *FeedHub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *FeedHub) add(categories []string) *feedClient {
	c := &feedClient{
		events:     make(chan event.DomainEvent, feedBuffer),
		categories: categories,
		slow:       make(chan struct{}),
	}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	return c
}

func (h *FeedHub) remove(c *feedClient) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

// ServeHTTP upgrades to a websocket and streams events until the client
// goes away. The optional "category" query parameter may repeat.
func (h *FeedHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.log.Warn("feed: websocket accept", "error", err)
		return
	}
	defer conn.CloseNow()

	c := h.add(r.URL.Query()["category"])
	defer h.remove(c)

	// The feed is write-only; CloseRead handles pings and notices the close.
	ctx := conn.CloseRead(r.Context())
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.slow:
			conn.Close(websocket.StatusPolicyViolation, "feed consumer too slow")
			return
		case evt := <-c.events:
			wctx, cancel := context.WithTimeout(ctx, feedWriteTimeout)
			err := wsjson.Write(wctx, conn, evt)
			cancel()
			if err != nil {
				h.log.Debug("feed: write error", "error", err)
				return
			}
		}
	}
}
