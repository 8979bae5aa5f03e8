package realtime

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/parlour-dev/parlour/backend/internal/auth"
)

// httpHandshake 在升级为 websocket 之前完成身份验证
type httpHandshake struct {
	w http.ResponseWriter
	r *http.Request
}

func (h *httpHandshake) HandshakeCredential() string {
	if token := auth.BearerToken(h.r); token != "" {
		return token
	}
	// 浏览器的 WebSocket 无法设置请求头，允许通过查询参数传递令牌
	return h.r.URL.Query().Get("token")
}

func (h *httpHandshake) RejectWith(reason string) {
	h.respond(http.StatusUnauthorized, reason)
}

func (h *httpHandshake) respond(status int, msg string) {
	h.w.Header().Set("Content-Type", "application/json")
	h.w.WriteHeader(status)
	_ = json.NewEncoder(h.w).Encode(map[string]string{"message": msg})
}

type Server struct {
	broadcaster *Broadcaster
	verifier    *auth.Verifier
	upgrader    websocket.Upgrader
}

// NewServer 中 checkOrigin 为 nil 时只允许同源连接
func NewServer(b *Broadcaster, v *auth.Verifier, checkOrigin func(r *http.Request) bool) *Server {
	return &Server{
		broadcaster: b,
		verifier:    v,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	hs := &httpHandshake{w: w, r: r}
	identity, err := s.verifier.VerifyHandshake(r.Context(), hs)
	if err != nil {
		// 身份验证失败时 RejectWith 已经写出了 401
		if !auth.IsAuthError(err) {
			slog.Error("实时连接身份验证失败", "error", err)
			hs.respond(http.StatusInternalServerError, "Server error")
		}
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade 失败时已经向客户端写入了错误响应
		slog.Warn("无法升级为 websocket 连接", "error", err)
		return
	}

	session := s.broadcaster.Register(conn, *identity)
	defer s.broadcaster.Unregister(session)

	// 不处理客户端发来的消息，读循环只用于感知断开
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
