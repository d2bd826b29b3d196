package api

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ojparkinson/massbalance/internal/massbalance"
	"github.com/ojparkinson/massbalance/internal/processing"
	"go.uber.org/zap"
)

const (
	writeWait   = 10 * time.Second
	sendBufSize = 16
)

type ResultEvent struct {
	Type      string  `json:"type"`
	ResultID  string  `json:"result_id"`
	FileID    string  `json:"file_id"`
	TotalCut  float64 `json:"total_cut"`
	TotalFill float64 `json:"total_fill"`
}

// Hub pushes a ResultEvent to every connected browser when a calculation
// finishes. Clients that fall behind are dropped.
type Hub struct {
	mu       sync.Mutex
	conns    map[*websocket.Conn]chan []byte
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

func NewHub(corsOrigins []string, logger *zap.Logger) *Hub {
	allowAll := slices.Contains(corsOrigins, "*")
	return &Hub{
		conns: make(map[*websocket.Conn]chan []byte),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowAll || slices.Contains(corsOrigins, origin)
			},
		},
		logger: logger.With(zap.String("component", "websocket")),
	}
}

func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("Websocket upgrade failed", zap.Error(err))
		return
	}

	send := make(chan []byte, sendBufSize)
	h.mu.Lock()
	h.conns[conn] = send
	h.mu.Unlock()
	h.logger.Debug("Websocket client connected", zap.String("remote", conn.RemoteAddr().String()))

	go h.writeLoop(conn, send)
	h.readLoop(conn)
}

// readLoop discards client messages; it only notices the close.
func (h *Hub) readLoop(conn *websocket.Conn) {
	defer h.remove(conn)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(conn *websocket.Conn, send chan []byte) {
	defer conn.Close()
	for msg := range send {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.remove(conn)
			return
		}
	}
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if send, ok := h.conns[conn]; ok {
		delete(h.conns, conn)
		close(send)
	}
}

func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

func (h *Hub) Broadcast(msg []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn, send := range h.conns {
		select {
		case send <- msg:
		default:
			h.logger.Warn("Dropping slow websocket client", zap.String("remote", conn.RemoteAddr().String()))
			delete(h.conns, conn)
			close(send)
		}
	}
}

func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn, send := range h.conns {
		delete(h.conns, conn)
		close(send)
	}
}

func (h *Hub) Name() string { return "websocket" }

func (h *Hub) Write(ctx context.Context, result *processing.FileResult) error {
	msg, err := json.Marshal(ResultEvent{
		Type:      "result",
		ResultID:  result.ResultID,
		FileID:    result.FileID,
		TotalCut:  massbalance.Round(result.TotalCut),
		TotalFill: massbalance.Round(result.TotalFill),
	})
	if err != nil {
		return err
	}
	h.Broadcast(msg)
	return nil
}
