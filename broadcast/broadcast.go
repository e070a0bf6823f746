// broadcast/broadcast.go
package broadcast

import (
	"sync"

	"github.com/wfunc/boardroom/models"
)

// Hub fans committed room snapshots out to subscribers. Each subscriber has
// its own ordered queue and delivery goroutine, so a slow consumer never
// reorders or drops another subscriber's snapshots.
type Hub struct {
	mu    sync.Mutex
	rooms map[string]map[*subscriber]struct{}
}

func NewHub() *Hub {
	return &Hub{
		rooms: make(map[string]map[*subscriber]struct{}),
	}
}

type delivery struct {
	room *models.Room // nil means the document is absent
}

type subscriber struct {
	fn     func(*models.Room)
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []delivery
	closed bool
}

func newSubscriber(fn func(*models.Room)) *subscriber {
	s := &subscriber{fn: fn}
	s.cond = sync.NewCond(&s.mu)
	go s.run()
	return s
}

func (s *subscriber) push(room *models.Room) {
	s.mu.Lock()
	if !s.closed {
		s.queue = append(s.queue, delivery{room: room})
		s.cond.Signal()
	}
	s.mu.Unlock()
}

func (s *subscriber) close() {
	s.mu.Lock()
	s.closed = true
	s.queue = nil
	s.cond.Signal()
	s.mu.Unlock()
}

func (s *subscriber) run() {
	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.closed {
			s.cond.Wait()
		}
		if s.closed {
			s.mu.Unlock()
			return
		}
		d := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		s.fn(d.room)
	}
}

// Subscribe registers fn for roomID and queues initial as its first delivery.
// Callers that need the initial value ordered against Publish must hold
// whatever lock serializes their commits while calling Subscribe.
func (h *Hub) Subscribe(roomID string, initial *models.Room, fn func(*models.Room)) (unsubscribe func()) {
	sub := newSubscriber(fn)
	sub.push(initial.Clone())

	h.mu.Lock()
	subs, ok := h.rooms[roomID]
	if !ok {
		subs = make(map[*subscriber]struct{})
		h.rooms[roomID] = subs
	}
	subs[sub] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			if subs, ok := h.rooms[roomID]; ok {
				delete(subs, sub)
				if len(subs) == 0 {
					delete(h.rooms, roomID)
				}
			}
			h.mu.Unlock()
			sub.close()
		})
	}
}

// Publish queues a snapshot for every subscriber of roomID. A nil room
// signals that the document no longer exists.
func (h *Hub) Publish(roomID string, room *models.Room) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.rooms[roomID] {
		sub.push(room.Clone())
	}
}

// Subscribers returns the number of live subscriptions across all rooms.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, subs := range h.rooms {
		n += len(subs)
	}
	return n
}

// Rooms returns the ids of rooms that currently have subscribers.
func (h *Hub) Rooms() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	ids := make([]string, 0, len(h.rooms))
	for id := range h.rooms {
		ids = append(ids, id)
	}
	return ids
}

// Close drops every subscription.
func (h *Hub) Close() {
	h.mu.Lock()
	rooms := h.rooms
	h.rooms = make(map[string]map[*subscriber]struct{})
	h.mu.Unlock()

	for _, subs := range rooms {
		for sub := range subs {
			sub.close()
		}
	}
}
