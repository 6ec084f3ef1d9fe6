package routes

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"nhooyr.io/websocket"

	"github.com/onda-protocol/onda-program-library-sub000/core/events"
	"github.com/onda-protocol/onda-program-library-sub000/core/types"
	"github.com/onda-protocol/onda-program-library-sub000/crypto"
)

const (
	wsWriteTimeout   = 10 * time.Second
	subscriberBuffer = 64
)

// Hub fans committed events out to websocket subscribers. It implements
// events.Emitter so it can sit in the ledger's emitter fanout. Emit never
// blocks; a subscriber whose buffer is full is disconnected.
type Hub struct {
	mu     sync.Mutex
	subs   map[*subscriber]struct{}
	logger *slog.Logger
}

type subscriber struct {
	asset string
	ch    chan *types.Event
	// dropped is closed when the hub gives up on a slow subscriber.
	dropped chan struct{}
	once    sync.Once
}

func (s *subscriber) drop() { s.once.Do(func() { close(s.dropped) }) }

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{subs: make(map[*subscriber]struct{}), logger: logger}
}

// Emit delivers evt to every matching subscriber.
func (h *Hub) Emit(evt events.Event) {
	typed, ok := evt.(events.Typed)
	if !ok || typed.Evt == nil {
		return
	}
	asset := strings.ToLower(typed.Evt.Attributes["asset"])
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs {
		if sub.asset != "" && sub.asset != asset {
			continue
		}
		select {
		case sub.ch <- typed.Evt:
		default:
			delete(h.subs, sub)
			sub.drop()
		}
	}
}

// subscribe registers a subscriber for asset, or for every asset when asset
// is empty. The returned func unregisters it.
func (h *Hub) subscribe(asset string) (*subscriber, func()) {
	sub := &subscriber{
		asset:   strings.ToLower(strings.TrimSpace(asset)),
		ch:      make(chan *types.Event, subscriberBuffer),
		dropped: make(chan struct{}),
	}
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()
	return sub, func() {
		h.mu.Lock()
		delete(h.subs, sub)
		h.mu.Unlock()
	}
}

// Len reports the number of live subscribers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// ServeHTTP upgrades the request and streams events. The optional asset
// query parameter narrows the stream to one asset.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	filter := strings.TrimSpace(r.URL.Query().Get("asset"))
	if filter != "" {
		id, err := crypto.ParseAssetID(filter)
		if err != nil {
			writeBadRequest(w, err)
			return
		}
		filter = id.String()
	}
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "stream closed")

	sub, cancel := h.subscribe(filter)
	defer cancel()
	// Clients only read; CloseRead handles control frames and cancels ctx
	// when the peer goes away.
	ctx := conn.CloseRead(r.Context())
	if err := h.stream(ctx, conn, sub); err != nil {
		if status := websocket.CloseStatus(err); status == -1 {
			h.logger.Debug("event stream ended", slog.Any("error", err))
		}
	}
}

func (h *Hub) stream(ctx context.Context, conn *websocket.Conn, sub *subscriber) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-sub.dropped:
			return conn.Close(websocket.StatusPolicyViolation, "subscriber too slow")
		case evt := <-sub.ch:
			if err := writeEvent(ctx, conn, evt); err != nil {
				return err
			}
		}
	}
}

func writeEvent(ctx context.Context, conn *websocket.Conn, evt *types.Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}
