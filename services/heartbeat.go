package services

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/wfunc/boardroom/logger"
)

// Heartbeat marks playerID as present in roomID right away and then every
// heartbeat interval until stop is called. Ticks are best effort: failures
// are logged, counted and dropped. stop is idempotent and lets a tick that
// is already running finish.
func (s *RoomService) Heartbeat(roomID, playerID string) (stop func()) {
	var stopped atomic.Bool

	tick := func() {
		if stopped.Load() {
			return
		}
		defer func() {
			if r := recover(); r != nil {
				s.monitor.IncHeartbeatFailures()
				logger.Log.Errorf("heartbeat %s/%s panicked: %v", roomID, playerID, r)
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), s.heartbeatInterval)
		defer cancel()
		if _, err := s.Touch(ctx, roomID, playerID); err != nil {
			s.monitor.IncHeartbeatFailures()
			logger.Log.Debugf("heartbeat %s/%s dropped: %v", roomID, playerID, err)
		}
	}

	go tick()
	id := s.timers.AddTimer(s.heartbeatInterval, s.heartbeatInterval, tick)

	var once sync.Once
	return func() {
		once.Do(func() {
			stopped.Store(true)
			s.timers.RemoveTimer(id)
		})
	}
}
