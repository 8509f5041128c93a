package handler

import (
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"lumina/internal/app"
	"lumina/internal/render"
	"lumina/internal/transport/http/middleware"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

// EventsHandler pushes a snapshot over a websocket after every state
// change of the client instance.
type EventsHandler struct {
	upgrader websocket.Upgrader
	markdown *render.Markdown
	logger   *zap.Logger
}

func NewEventsHandler(markdown *render.Markdown, logger *zap.Logger) *EventsHandler {
	return &EventsHandler{
		markdown: markdown,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     sameOrigin,
		},
	}
}

func (h *EventsHandler) Stream(c *gin.Context) {
	sess := middleware.SessionFrom(c)
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	var (
		mu      sync.Mutex
		latest  app.State
		pending = make(chan struct{}, 1)
	)
	stop := sess.Watch(func(s app.State) {
		mu.Lock()
		latest = s
		mu.Unlock()
		select {
		case pending <- struct{}{}:
		default:
		}
	})
	defer stop()

	// Seed after watching so no dispatch falls between the two.
	mu.Lock()
	latest = sess.State()
	mu.Unlock()
	select {
	case pending <- struct{}{}:
	default:
	}

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-closed:
			return
		case <-c.Request.Context().Done():
			return
		case <-pending:
			mu.Lock()
			snap := newSnapshot(latest, h.markdown)
			mu.Unlock()
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(snap); err != nil {
				return
			}
		case <-ticker.C:
			sess.Touch(time.Now())
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

// sameOrigin allows clients without an Origin header and browsers on the
// serving host.
func sameOrigin(r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}
