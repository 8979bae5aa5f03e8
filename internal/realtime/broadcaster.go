package realtime

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/m-mizutani/goerr/v2"
	"github.com/parlour-dev/parlour/backend/internal/auth"
)

const EventAttendanceUpdate = "attendance_update"

// Conn 是 Session 依赖的连接能力，*websocket.Conn 满足该接口
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
}

type Event struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Session 是一条已通过身份验证的实时连接，生命周期与连接一致
type Session struct {
	ID          uuid.UUID
	Identity    auth.Identity
	ConnectedAt time.Time

	conn      Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func (s *Session) Done() <-chan struct{} {
	return s.done
}

type Broadcaster struct {
	mu           sync.RWMutex
	sessions     map[uuid.UUID]*Session
	sendBuffer   int
	writeTimeout time.Duration
}

func NewBroadcaster(sendBuffer int, writeTimeout time.Duration) *Broadcaster {
	if sendBuffer <= 0 {
		sendBuffer = 1
	}
	return &Broadcaster{
		sessions:     make(map[uuid.UUID]*Session),
		sendBuffer:   sendBuffer,
		writeTimeout: writeTimeout,
	}
}

// Register 把连接加入在线集合，并启动该连接的写协程
func (b *Broadcaster) Register(conn Conn, identity auth.Identity) *Session {
	s := &Session{
		ID:          uuid.New(),
		Identity:    identity,
		ConnectedAt: time.Now(),
		conn:        conn,
		send:        make(chan []byte, b.sendBuffer),
		done:        make(chan struct{}),
	}

	b.mu.Lock()
	b.sessions[s.ID] = s
	b.mu.Unlock()

	go b.writePump(s)

	slog.Info("实时连接已建立", "session", s.ID, "user", identity.ID, "role", identity.Role)
	return s
}

// Unregister 立即把连接移出在线集合，可以重复调用
func (b *Broadcaster) Unregister(s *Session) {
	b.mu.Lock()
	_, ok := b.sessions[s.ID]
	delete(b.sessions, s.ID)
	b.mu.Unlock()

	s.closeOnce.Do(func() {
		close(s.done)
	})

	if ok {
		slog.Info("实时连接已断开", "session", s.ID, "user", s.Identity.ID)
	}
}

func (b *Broadcaster) Lookup(id uuid.UUID) (*Session, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	s, ok := b.sessions[id]
	return s, ok
}

func (b *Broadcaster) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.sessions)
}

// Broadcast 把事件投递给当前所有在线连接，不等待确认也不重试。
// 返回成功放入发送队列的连接数，发送队列已满的连接会被断开。
func (b *Broadcaster) Broadcast(event string, payload any) (int, error) {
	msg, err := json.Marshal(Event{Event: event, Data: payload})
	if err != nil {
		return 0, goerr.Wrap(err, "failed to encode event", goerr.V("event", event))
	}

	b.mu.RLock()
	targets := make([]*Session, 0, len(b.sessions))
	for _, s := range b.sessions {
		targets = append(targets, s)
	}
	b.mu.RUnlock()

	delivered := 0
	for _, s := range targets {
		select {
		case <-s.done:
		case s.send <- msg:
			delivered++
		default:
			slog.Warn("实时连接发送队列已满，断开连接", "session", s.ID)
			b.Unregister(s)
		}
	}

	return delivered, nil
}

// Close 断开所有连接，用于服务器关闭时
func (b *Broadcaster) Close() {
	b.mu.RLock()
	targets := make([]*Session, 0, len(b.sessions))
	for _, s := range b.sessions {
		targets = append(targets, s)
	}
	b.mu.RUnlock()

	for _, s := range targets {
		b.Unregister(s)
	}
}

func (b *Broadcaster) writePump(s *Session) {
	defer s.conn.Close()

	for {
		select {
		case <-s.done:
			return
		case msg := <-s.send:
			if b.writeTimeout > 0 {
				_ = s.conn.SetWriteDeadline(time.Now().Add(b.writeTimeout))
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				// 连接正在关闭时的写失败直接忽略
				slog.Debug("实时消息发送失败", "session", s.ID, "error", err)
				b.Unregister(s)
				return
			}
		}
	}
}
