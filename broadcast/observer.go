package broadcast

import (
	"sync"

	"github.com/wfunc/boardroom/models"
)

// Source is anything that can stream snapshots of one room.
type Source interface {
	Subscribe(roomID string, fn func(*models.Room)) (unsubscribe func(), err error)
}

// Observer follows a single room at a time. Watching a new id tears the
// previous subscription down first; snapshots still in flight from an old
// subscription are discarded.
type Observer struct {
	src Source
	fn  func(roomID string, room *models.Room)

	mu     sync.Mutex
	roomID string
	gen    uint64
	cancel func()
}

func NewObserver(src Source, fn func(roomID string, room *models.Room)) *Observer {
	return &Observer{src: src, fn: fn}
}

// Watch switches the observer to roomID.
func (o *Observer) Watch(roomID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.stopLocked()
	o.gen++
	gen := o.gen

	cancel, err := o.src.Subscribe(roomID, func(room *models.Room) {
		o.mu.Lock()
		current := o.gen == gen
		o.mu.Unlock()
		if current {
			o.fn(roomID, room)
		}
	})
	if err != nil {
		return err
	}
	o.roomID = roomID
	o.cancel = cancel
	return nil
}

// RoomID returns the room currently watched, or "".
func (o *Observer) RoomID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.roomID
}

// Close stops watching.
func (o *Observer) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stopLocked()
	o.gen++
}

func (o *Observer) stopLocked() {
	if o.cancel != nil {
		o.cancel()
		o.cancel = nil
	}
	o.roomID = ""
}
