// persistence/memory.go
package persistence

import (
	"context"
	"sync"
	"time"

	"github.com/wfunc/boardroom/broadcast"
	"github.com/wfunc/boardroom/models"
)

// MemoryStore 内存实现，进程内共享，适合单实例部署与测试
type MemoryStore struct {
	mu          sync.Mutex
	docs        map[string]*models.Room
	hub         *broadcast.Hub
	maxAttempts int
	clock       func() time.Time
	last        time.Time
	observer    TxObserver
	closed      bool
}

type MemoryOption func(*MemoryStore)

// WithMaxAttempts bounds conflict retries per transaction.
func WithMaxAttempts(n int) MemoryOption {
	return func(s *MemoryStore) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithClock replaces the commit clock.
func WithClock(clock func() time.Time) MemoryOption {
	return func(s *MemoryStore) { s.clock = clock }
}

// WithTxObserver reports conflicts, e.g. to metrics.
func WithTxObserver(o TxObserver) MemoryOption {
	return func(s *MemoryStore) { s.observer = o }
}

func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		docs:        make(map[string]*models.Room),
		hub:         broadcast.NewHub(),
		maxAttempts: DefaultMaxAttempts,
		clock:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// tick returns the next commit time, never earlier than the previous one.
// Callers hold s.mu.
func (s *MemoryStore) tick() time.Time {
	now := s.clock()
	if now.Before(s.last) {
		now = s.last
	}
	s.last = now
	return now
}

func (s *MemoryStore) Get(ctx context.Context, roomID string) (*models.Room, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[roomID]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return doc.Clone(), nil
}

func (s *MemoryStore) Set(ctx context.Context, roomID string, room *models.Room) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	doc := room.Clone()
	now := s.tick()
	doc.CreatedAt = now
	doc.UpdatedAt = now
	s.docs[roomID] = doc
	s.hub.Publish(roomID, doc)
	return nil
}

func (s *MemoryStore) Transact(ctx context.Context, roomID string, fn TxFunc) (*models.Room, error) {
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		s.mu.Lock()
		current := s.docs[roomID].Clone()
		pre := preImageOf(current)
		now := s.tick()
		s.mu.Unlock()

		next, err := fn(current, now)
		if err != nil {
			return nil, err
		}
		if next == nil {
			return nil, nil
		}
		if err := pre.check(next); err != nil {
			return nil, err
		}
		next = next.Clone()
		next.UpdatedAt = now
		if !pre.exists {
			next.CreatedAt = now
		}

		s.mu.Lock()
		if !pre.matches(s.docs[roomID]) {
			s.mu.Unlock()
			if s.observer != nil {
				s.observer.ObserveConflict()
			}
			continue
		}
		s.docs[roomID] = next
		s.hub.Publish(roomID, next)
		s.mu.Unlock()
		return next.Clone(), nil
	}
	return nil, ErrTooMuchContention
}

// Delete removes a room. The engine never deletes; this stands in for
// external expiry and notifies subscribers with nil.
func (s *MemoryStore) Delete(ctx context.Context, roomID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[roomID]; !ok {
		return ErrRecordNotFound
	}
	delete(s.docs, roomID)
	s.hub.Publish(roomID, nil)
	return nil
}

func (s *MemoryStore) Subscribe(roomID string, fn func(*models.Room)) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	return s.hub.Subscribe(roomID, s.docs[roomID], fn), nil
}

// Len returns the number of stored rooms.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.docs)
}

// Subscribers returns the number of live subscriptions.
func (s *MemoryStore) Subscribers() int {
	return s.hub.Subscribers()
}

// Close stops every subscription. Later Subscribe calls fail with ErrStoreClosed.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.hub.Close()
	return nil
}
