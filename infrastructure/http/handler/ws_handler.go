package handler

import (
	"context"
	"encoding/json"
	"groupchat/auth"
	"groupchat/domain/event"
	"groupchat/errors"
	"groupchat/services"
	"groupchat/sink"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxInboundSize = 4096
)

// WSHandler serves the live channel. The token middleware already rejected
// unauthenticated handshakes, so no connection is upgraded without an identity.
type WSHandler struct {
	log         *slog.Logger
	chatService services.IChatService
	upgrader    websocket.Upgrader
}

func NewWSHandler(log *slog.Logger, chatService services.IChatService, allowedOrigin string) *WSHandler {
	return &WSHandler{
		log:         log,
		chatService: chatService,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return allowedOrigin == "*" || origin == "" || origin == allowedOrigin
			},
		},
	}
}

func (h *WSHandler) Serve(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFrom(r.Context())
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already answered the client
		h.log.Debug("Websocket upgrade failed", "error", err)
		return
	}

	s := h.chatService.Connect(identity)
	h.log.Info("Live connection opened", "connection", s.ID(), "user", identity.UserID)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		h.writePump(conn, s)
	}()

	h.readPump(r.Context(), conn, s)

	// teardown: stop deliveries, drop subscriptions, then wait for the writer
	h.chatService.Disconnect(s)
	<-writerDone
	h.log.Info("Live connection closed", "connection", s.ID(), "user", identity.UserID)
}

// readPump handles client frames until the socket fails or closes.
func (h *WSHandler) readPump(ctx context.Context, conn *websocket.Conn, s *sink.ConnectionSink) {
	conn.SetReadLimit(maxInboundSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var frame inboundFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug("Live connection read failed", "connection", s.ID(), "error", err)
			}
			return
		}
		if s.Closed() {
			return
		}
		h.handleFrame(ctx, s, frame)
	}
}

func (h *WSHandler) handleFrame(ctx context.Context, s *sink.ConnectionSink, frame inboundFrame) {
	var ref groupRef
	if len(frame.Data) > 0 {
		if err := json.Unmarshal(frame.Data, &ref); err != nil {
			h.reject(ctx, s, errors.Invalid(err))
			return
		}
	}

	switch frame.Event {
	case inJoinGroup:
		if err := h.chatService.JoinGroup(ctx, s, ref.GroupID); err != nil {
			h.reject(ctx, s, err)
		}
	case inLeaveGroup:
		if err := h.chatService.LeaveGroup(ctx, s, ref.GroupID); err != nil {
			h.reject(ctx, s, err)
		}
	default:
		h.reject(ctx, s, errors.New(errors.KindInvalidInput, "unknown event "+frame.Event))
	}
}

func (h *WSHandler) reject(ctx context.Context, s *sink.ConnectionSink, err error) {
	_ = s.Consume(ctx, event.Failure{Kind: string(errors.KindOf(err)), Message: errors.PublicMessage(err)})
}

// writePump is the only goroutine writing to conn.
// It stops when the sink is closed, whatever the reason.
func (h *WSHandler) writePump(conn *websocket.Conn, s *sink.ConnectionSink) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case <-s.Done():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case e := <-s.Events():
			if s.Closed() {
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(encodeEvent(e)); err != nil {
				h.log.Debug("Live connection write failed", "connection", s.ID(), "error", err)
				s.Close()
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.Close()
				return
			}
		}
	}
}
