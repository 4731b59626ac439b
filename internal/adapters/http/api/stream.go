package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/okian/biggame/internal/adapters/broker"
	"github.com/okian/biggame/pkg/logger"
)

const (
	sseEvent       = "scoreboard"
	wsWriteTimeout = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// StreamHandler pushes scoreboard snapshots to display clients over SSE and
// WebSocket. Each stream starts with the current snapshot.
type StreamHandler struct {
	deps         Dependencies
	pingInterval time.Duration
	logger       logger.Logger
}

// NewStreamHandler creates a new stream handler.
func NewStreamHandler(deps Dependencies, pingInterval time.Duration, l logger.Logger) *StreamHandler {
	return &StreamHandler{deps: deps, pingInterval: pingInterval, logger: l}
}

// snapshot subscribes and returns the current scoreboard encoded as an event.
// Events already covered by the snapshot are skipped by the caller using
// its Seq.
func (h *StreamHandler) snapshot(ctx context.Context, transport string) (chan broker.Event, broker.Event, error) {
	ch := h.deps.Subscribe(transport)
	sb, err := h.deps.Scoreboard(ctx)
	if err != nil {
		h.deps.Unsubscribe(ch)
		return nil, broker.Event{}, err
	}
	data, err := json.Marshal(sb)
	if err != nil {
		h.deps.Unsubscribe(ch)
		return nil, broker.Event{}, err
	}
	return ch, broker.Event{Seq: sb.Seq, Kind: "snapshot", Data: data}, nil
}

// HandleSSE handles GET /api/v1/events.
func (h *StreamHandler) HandleSSE(w http.ResponseWriter, r *http.Request) {
	const op = "api.sse"
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "internal", NewKind(op, ErrStreaming))
		return
	}

	ch, first, err := h.snapshot(r.Context(), "sse")
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	defer h.deps.Unsubscribe(ch)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	writeSSE(w, first)
	flusher.Flush()
	last := first.Seq

	ping := time.NewTicker(h.pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev := <-ch:
			if ev.Seq <= last {
				continue
			}
			last = ev.Seq
			writeSSE(w, ev)
			flusher.Flush()
		case <-ping.C:
			fmt.Fprintf(w, ": ping\n\n")
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, ev broker.Event) {
	fmt.Fprintf(w, "event: %s\nid: %d\ndata: %s\n\n", sseEvent, ev.Seq, ev.Data)
}

// wsMessage is the envelope of every WebSocket frame.
type wsMessage struct {
	Kind       string          `json:"kind"`
	Seq        uint64          `json:"seq"`
	Scoreboard json.RawMessage `json:"scoreboard"`
}

// HandleWS handles GET /ws.
func (h *StreamHandler) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	ch, first, err := h.snapshot(ctx, "ws")
	if err != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, err.Error()),
			time.Now().Add(wsWriteTimeout))
		return
	}
	defer h.deps.Unsubscribe(ch)

	// Clients only listen; reading detects when they go away.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := h.writeWS(conn, first); err != nil {
		return
	}
	last := first.Seq

	ping := time.NewTicker(h.pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-ch:
			if ev.Seq <= last {
				continue
			}
			last = ev.Seq
			if err := h.writeWS(conn, ev); err != nil {
				h.logger.Debug(ctx, "websocket write failed", logger.Error(err))
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout)); err != nil {
				return
			}
		}
	}
}

func (h *StreamHandler) writeWS(conn *websocket.Conn, ev broker.Event) error {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return conn.WriteJSON(wsMessage{Kind: ev.Kind, Seq: ev.Seq, Scoreboard: ev.Data})
}
