package stream

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	maxReadMessage = 512
)

// Handler upgrades requests to websocket connections and streams every
// matching alert event to them as a JSON text frame.
type Handler struct {
	broadcaster  *Broadcaster
	upgrader     websocket.Upgrader
	pingInterval time.Duration
	logger       *slog.Logger
}

func NewHandler(b *Broadcaster, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		broadcaster: b,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		pingInterval: pongWait * 9 / 10,
		logger:       logger.With("component", "alert-stream"),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	filter, err := ParseFilter(r.URL.Query())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("failed to upgrade websocket", "error", err)
		return
	}
	defer conn.Close()

	id, ch := h.broadcaster.Subscribe()
	defer h.broadcaster.Unsubscribe(id)

	h.logger.Info("client subscribed to alert stream", "subscriber_id", id, "remote", r.RemoteAddr,
		"type", filter.Type, "min_severity", filter.MinSeverity, "country", filter.Country)

	done := make(chan struct{})
	go h.readLoop(conn, id, done)

	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			h.logger.Info("client disconnected from alert stream", "subscriber_id", id)
			return
		case e, ok := <-ch:
			if !ok {
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "stream closed"))
				return
			}
			if !filter.Match(e) {
				continue
			}

			data, err := json.Marshal(e)
			if err != nil {
				h.logger.Error("failed to encode alert event", "error", err, "disaster_id", e.Disaster.DisasterID)
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.logger.Error("failed to send alert to stream", "error", err, "subscriber_id", id)
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readLoop drains client frames so pongs and close frames are processed. It
// closes done when the connection is gone.
func (h *Handler) readLoop(conn *websocket.Conn, id uint64, done chan<- struct{}) {
	defer close(done)

	conn.SetReadLimit(maxReadMessage)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("alert stream read error", "error", err, "subscriber_id", id)
			}
			return
		}
	}
}
