// -----------------------------------------------------------------------
// WebSocket Handler - streams per-job progress events to clients
// -----------------------------------------------------------------------

package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/seligo/internal/common"
	"github.com/ternarybob/seligo/internal/interfaces"
	"github.com/ternarybob/seligo/internal/models"
	"golang.org/x/time/rate"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // local tool, all origins allowed
	},
}

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 45 * time.Second
)

// WebSocketHandler bridges the progress hub to websocket clients. Each
// connection subscribes to exactly one job. Terminal events always go out;
// intermediate progress frames are throttled per connection.
type WebSocketHandler struct {
	progress interfaces.ProgressPublisher
	throttle time.Duration
	logger   arbor.ILogger
}

func NewWebSocketHandler(progress interfaces.ProgressPublisher, config *common.WebSocketConfig, logger arbor.ILogger) *WebSocketHandler {
	throttle := common.MustDuration(config.ThrottleInterval, 250*time.Millisecond)
	return &WebSocketHandler{
		progress: progress,
		throttle: throttle,
		logger:   logger,
	}
}

// HandleWebSocket upgrades the connection and streams the job's progress
// GET /ws?job_id={id}
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	jobID := r.URL.Query().Get("job_id")
	if jobID == "" {
		http.Error(w, "job_id is required", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	sub := h.progress.Subscribe(jobID)
	h.logger.Info().
		Str("job_id", jobID).
		Str("subscriber_id", sub.ID).
		Str("remote", r.RemoteAddr).
		Msg("WebSocket client connected")

	done := make(chan struct{})
	go h.readLoop(conn, done)
	h.writeLoop(conn, sub, done)

	h.progress.Unsubscribe(jobID, sub.ID)
	conn.Close()
	h.logger.Info().
		Str("job_id", jobID).
		Str("subscriber_id", sub.ID).
		Msg("WebSocket client disconnected")
}

// readLoop drains client frames so pongs and close frames are processed.
func (h *WebSocketHandler) readLoop(conn *websocket.Conn, done chan struct{}) {
	defer close(done)

	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writeLoop forwards hub events to the client. Progress frames pass through
// a rate limiter; terminal frames (complete/failed/cancelled) bypass it so
// the final state is never dropped.
func (h *WebSocketHandler) writeLoop(conn *websocket.Conn, sub *interfaces.ProgressSubscription, done chan struct{}) {
	limiter := rate.NewLimiter(rate.Every(h.throttle), 1)
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case event, ok := <-sub.Events:
			if !ok {
				return
			}
			if event.Type == models.ProgressTypeProgress && !limiter.Allow() {
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		}
	}
}
