package handlers

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"tatsoft-analytics/internal/config"
	"tatsoft-analytics/internal/errors"
	"tatsoft-analytics/internal/middleware"
	"tatsoft-analytics/internal/models"
	"tatsoft-analytics/internal/observability"
	"tatsoft-analytics/internal/services"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// dashboardMessage is pushed to websocket clients on connect and after every
// dataset reload.
type dashboardMessage struct {
	Type    string         `json:"type"`
	Version uint64         `json:"version"`
	Data    *models.Result `json:"data"`
}

type WSHandlers struct {
	analytics *services.Analytics
	logger    *slog.Logger
	upgrader  websocket.Upgrader
	now       func() time.Time

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

func NewWSHandlers(analytics *services.Analytics, logger *slog.Logger, security config.SecurityConfig, limits config.AnalyticsConfig) *WSHandlers {
	return &WSHandlers{
		analytics: analytics,
		logger:    logger,
		now:       clock(limits),
		conns:     make(map[*websocket.Conn]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return middleware.AllowedOrigin(r.Header.Get("Origin"), security)
			},
		},
	}
}

// HandleDashboard streams the dashboard for the requested period. The period
// is fixed for the lifetime of the connection.
func (h *WSHandlers) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	requestID := observability.GetRequestID(r.Context())

	p, err := parsePeriod(queryParams(r), h.now())
	if err != nil {
		errors.WriteError(w, h.logger, err, requestID)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err, "request_id", requestID)
		return
	}
	h.track(conn)
	defer h.untrack(conn)

	updates, unsubscribe := h.analytics.Subscribe()
	defer unsubscribe()

	closed := make(chan struct{})
	go h.readLoop(conn, closed)

	if err := h.push(conn, p); err != nil {
		h.logger.Debug("websocket push failed", "error", err, "request_id", requestID)
		return
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case <-updates:
			if err := h.push(conn, p); err != nil {
				h.logger.Debug("websocket push failed", "error", err, "request_id", requestID)
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

// readLoop drains client frames so control messages are processed, and
// signals when the peer goes away.
func (h *WSHandlers) readLoop(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)

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

func (h *WSHandlers) push(conn *websocket.Conn, p models.Period) error {
	res, err := h.analytics.Dashboard(p)
	if err != nil {
		return err
	}

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(dashboardMessage{
		Type:    "dashboard",
		Version: h.analytics.Version(),
		Data:    res,
	})
}

func (h *WSHandlers) track(conn *websocket.Conn) {
	h.mu.Lock()
	h.conns[conn] = struct{}{}
	h.mu.Unlock()
}

func (h *WSHandlers) untrack(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.conns, conn)
	h.mu.Unlock()
	conn.Close()
}

// Close sends a going-away frame to every open connection. Hijacked
// connections are not closed by http.Server.Shutdown.
func (h *WSHandlers) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
	for conn := range h.conns {
		conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		conn.Close()
	}
}

func (h *WSHandlers) Connections() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}
