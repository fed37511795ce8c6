// Package ws serves chat sessions over WebSocket.
package ws

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/moodcine/backend/internal/logging"
	"github.com/moodcine/backend/internal/model/chat"
	chatservice "github.com/moodcine/backend/internal/service/chat"
)

const (
	readTimeout  = 60 * time.Second
	writeTimeout = 10 * time.Second
	pingInterval = 54 * time.Second
	maxFrameSize = 16 << 10
)

// Frame types sent besides the sink events.
const (
	FrameConnected = "connected"
	FrameResult    = "result"
	FrameError     = "error"
)

type inboundMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type outgoingMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
	Data      any    `json:"data,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// Handler WebSocket聊天处理器
type Handler struct {
	chatSvc     *chatservice.Service
	upgrader    websocket.Upgrader
	readTimeout time.Duration
}

// New 创建WebSocket处理器
func New(chatSvc *chatservice.Service) *Handler {
	return &Handler{
		chatSvc:     chatSvc,
		readTimeout: readTimeout,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes 注册WebSocket路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws/{sessionID}", h.handleWebSocket)
}

type connection struct {
	conn      *websocket.Conn
	sessionID string
	mu        sync.Mutex
}

func (c *connection) send(frameType string, data any) {
	payload, err := json.Marshal(outgoingMessage{
		Type:      frameType,
		SessionID: c.sessionID,
		Data:      data,
		Timestamp: time.Now().Unix(),
	})
	if err != nil {
		logging.Warn().Err(err).Msg("[websocket] marshal frame failed")
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		logging.Debug().Err(err).Str("session", c.sessionID).Msg("[websocket] write failed")
	}
}

// Sink events travel as frames whose type is the event type.
func (c *connection) sink() chatservice.Sink {
	return chatservice.EventFunc(func(e chat.Event) {
		c.send(string(e.Type), e)
	})
}

func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	session, err := h.chatSvc.GetSession(r.Context(), sessionID)
	if err != nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn().Err(err).Msg("[websocket] upgrade failed")
		return
	}
	defer conn.Close()

	logging.Info().Str("session", sessionID).Msg("[websocket] new connection")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conn.SetReadLimit(maxFrameSize)
	_ = conn.SetReadDeadline(time.Now().Add(h.readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.readTimeout))
	})

	go pingLoop(ctx, conn)

	c := &connection{conn: conn, sessionID: sessionID}
	c.send(FrameConnected, session.Snapshot())

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.Warn().Err(err).Str("session", sessionID).Msg("[websocket] read error")
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(h.readTimeout))

		var msg inboundMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.send(FrameError, map[string]string{"message": "invalid payload"})
			continue
		}

		switch msg.Type {
		case "message":
			result, err := h.chatSvc.Submit(ctx, sessionID, msg.Text, c.sink())
			// Nothing is read while a turn runs, so pongs could not extend the deadline.
			_ = conn.SetReadDeadline(time.Now().Add(h.readTimeout))
			if err != nil {
				c.send(FrameError, map[string]string{"message": err.Error()})
				return
			}
			c.send(FrameResult, result)
		default:
			c.send(FrameError, map[string]string{"message": "unsupported message type: " + msg.Type})
		}
	}
}

// pingLoop 定期发送ping消息
func pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}
