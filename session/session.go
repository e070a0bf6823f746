// session/session.go
package session

import (
	"encoding/json"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/wfunc/boardroom/broadcast"
	"github.com/wfunc/boardroom/network"
)

// 客户端请求限速：每秒 10 个，突发 20 个
const (
	RequestRate  = 10
	RequestBurst = 20
)

// Session 一个网关连接，至多同时处于一个房间
type Session struct {
	ID        string
	Conn      network.Connection
	PlayerID  string
	CreatedAt time.Time

	mutex         sync.RWMutex
	roomID        string
	lastActive    time.Time
	watcher       *broadcast.Observer
	stopHeartbeat func()
	data          map[string]interface{}
	limiter       *rate.Limiter
}

func NewSession(id, playerID string, conn network.Connection) *Session {
	now := time.Now()
	return &Session{
		ID:         id,
		Conn:       conn,
		PlayerID:   playerID,
		CreatedAt:  now,
		lastActive: now,
		data:       make(map[string]interface{}),
		limiter:    rate.NewLimiter(RequestRate, RequestBurst),
	}
}

// Allow reports whether the client may issue another request now.
func (s *Session) Allow() bool {
	return s.limiter.Allow()
}

// Attach sets the observer used to follow the session's room.
func (s *Session) Attach(watcher *broadcast.Observer) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.watcher = watcher
}

func (s *Session) Set(key string, value interface{}) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.data[key] = value
}

func (s *Session) Get(key string) interface{} {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.data[key]
}

func (s *Session) Send(msgID uint16, data []byte) error {
	s.Touch()
	return s.Conn.Send(msgID, data)
}

// SendJSON encodes v as the packet payload.
func (s *Session) SendJSON(msgID uint16, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.Send(msgID, data)
}

// Touch records client activity.
func (s *Session) Touch() {
	s.mutex.Lock()
	s.lastActive = time.Now()
	s.mutex.Unlock()
}

func (s *Session) LastActive() time.Time {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.lastActive
}

func (s *Session) GetID() string {
	return s.ID
}

// RoomID returns the room the session is in, or "".
func (s *Session) RoomID() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.roomID
}

// Enter leaves the current room, then watches roomID and keeps the player's
// presence alive with heartbeat until the session leaves.
func (s *Session) Enter(roomID string, heartbeat func() (stop func())) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.leaveLocked()
	if s.watcher != nil {
		if err := s.watcher.Watch(roomID); err != nil {
			return err
		}
	}
	s.roomID = roomID
	if heartbeat != nil {
		s.stopHeartbeat = heartbeat()
	}
	return nil
}

// Leave stops watching and heartbeating. It returns the room left, or "".
func (s *Session) Leave() string {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.leaveLocked()
}

func (s *Session) leaveLocked() string {
	left := s.roomID
	if s.stopHeartbeat != nil {
		s.stopHeartbeat()
		s.stopHeartbeat = nil
	}
	if s.watcher != nil {
		s.watcher.Close()
	}
	s.roomID = ""
	return left
}

func (s *Session) Close() error {
	s.Leave()
	return s.Conn.Close()
}

// Session管理器
type Manager struct {
	sessions map[string]*Session
	mutex    sync.RWMutex
}

func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
	}
}

func (m *Manager) Add(session *Session) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.sessions[session.ID] = session
}

func (m *Manager) Remove(sessionID string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.sessions, sessionID)
}

func (m *Manager) Get(sessionID string) (*Session, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	session, exists := m.sessions[sessionID]
	return session, exists
}

func (m *Manager) GetByPlayerID(playerID string) []*Session {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	var result []*Session
	for _, session := range m.sessions {
		if session.PlayerID == playerID {
			result = append(result, session)
		}
	}
	return result
}

// RoomCount returns how many distinct rooms the sessions are in.
func (m *Manager) RoomCount() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	rooms := make(map[string]struct{})
	for _, session := range m.sessions {
		if id := session.RoomID(); id != "" {
			rooms[id] = struct{}{}
		}
	}
	return len(rooms)
}

func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.sessions)
}

// CloseAll closes every session's connection.
func (m *Manager) CloseAll() {
	m.mutex.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, session := range m.sessions {
		sessions = append(sessions, session)
	}
	m.mutex.RUnlock()

	for _, session := range sessions {
		session.Close()
	}
}
