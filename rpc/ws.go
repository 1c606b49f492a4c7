package rpc

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"nhooyr.io/websocket"

	"memepod/core/types"
	"memepod/observability"
)

const (
	wsWriteTimeout    = 10 * time.Second
	subscriberBacklog = 64
)

// StreamEvent is the websocket frame for one committed event.
type StreamEvent struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

type subscriber struct {
	pod       string
	eventType string
	ch        chan *types.Event
}

func (sub *subscriber) wants(evt *types.Event) bool {
	if sub.eventType != "" && sub.eventType != evt.Type {
		return false
	}
	if sub.pod != "" && evt.Attributes["pod"] != sub.pod {
		return false
	}
	return true
}

// Hub fans committed events out to websocket subscribers. Subscribers that
// fall behind are disconnected rather than allowed to stall the node.
type Hub struct {
	mu     sync.Mutex
	subs   map[*subscriber]struct{}
	closed bool
	logger *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{subs: make(map[*subscriber]struct{}), logger: logger}
}

// Publish implements core.EventSink.
func (h *Hub) Publish(_ context.Context, batch []*types.Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs {
		for _, evt := range batch {
			if !sub.wants(evt) {
				continue
			}
			select {
			case sub.ch <- evt:
			default:
				observability.ModuleMetrics().RecordThrottle("ws", "slow_subscriber")
				h.dropLocked(sub)
			}
			if _, ok := h.subs[sub]; !ok {
				break
			}
		}
	}
	return nil
}

func (h *Hub) subscribe(pod, eventType string) (*subscriber, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, false
	}
	sub := &subscriber{pod: pod, eventType: eventType, ch: make(chan *types.Event, subscriberBacklog)}
	h.subs[sub] = struct{}{}
	return sub, true
}

func (h *Hub) unsubscribe(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropLocked(sub)
}

func (h *Hub) dropLocked(sub *subscriber) {
	if _, ok := h.subs[sub]; !ok {
		return
	}
	delete(h.subs, sub)
	close(sub.ch)
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for sub := range h.subs {
		h.dropLocked(sub)
	}
}

// Subscribers reports the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (s *Server) handleEventsWS(w http.ResponseWriter, r *http.Request) {
	source := s.clientSource(r)
	if !s.limiter.allow(source, s.nowFn()) {
		observability.ModuleMetrics().RecordThrottle("ws", "rate_limit")
		http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		return
	}
	query := r.URL.Query()
	sub, ok := s.hub.subscribe(strings.TrimSpace(query.Get("pod")), strings.TrimSpace(query.Get("type")))
	if !ok {
		http.Error(w, "event stream closed", http.StatusServiceUnavailable)
		return
	}
	defer s.hub.unsubscribe(sub)

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "stream closed")

	// Reads are only used to notice the client going away.
	ctx := conn.CloseRead(r.Context())
	if err := streamEvents(ctx, conn, sub); err != nil {
		if status := websocket.CloseStatus(err); status == -1 {
			_ = conn.Close(websocket.StatusInternalError, "stream error")
		}
	}
}

func streamEvents(ctx context.Context, conn *websocket.Conn, sub *subscriber) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-sub.ch:
			if !ok {
				return conn.Close(websocket.StatusTryAgainLater, "subscriber dropped")
			}
			if err := writeEvent(ctx, conn, evt); err != nil {
				return err
			}
		}
	}
}

func writeEvent(ctx context.Context, conn *websocket.Conn, evt *types.Event) error {
	data, err := json.Marshal(StreamEvent{Type: evt.Type, Attributes: evt.Attributes})
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}
