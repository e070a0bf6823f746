// persistence/postgresql.go
package persistence

import (
	"sync"
	"time"

	"github.com/lib/pq"

	applog "github.com/wfunc/boardroom/logger"
)

// PQNotifier 基于 lib/pq 的 LISTEN/NOTIFY 监听器，把每个通知的负载（房间号）交给 handle
type PQNotifier struct {
	listener  *pq.Listener
	handle    func(payload string)
	reconnect func()
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewPQNotifier listens on channel. reconnect runs after the connection is
// re-established, because notifications sent meanwhile are lost.
func NewPQNotifier(dsn, channel string, handle func(payload string), reconnect func()) (*PQNotifier, error) {
	eventCallback := func(ev pq.ListenerEventType, err error) {
		if err != nil {
			applog.Log.Warnf("pq listener event %d: %v", ev, err)
		}
	}
	listener := pq.NewListener(dsn, 10*time.Second, time.Minute, eventCallback)
	if err := listener.Listen(channel); err != nil {
		_ = listener.Close()
		return nil, err
	}

	n := &PQNotifier{
		listener:  listener,
		handle:    handle,
		reconnect: reconnect,
		done:      make(chan struct{}),
	}
	n.wg.Add(1)
	go n.loop()
	return n, nil
}

func (n *PQNotifier) loop() {
	defer n.wg.Done()
	// 定期 ping，及时发现断开的连接
	ticker := time.NewTicker(90 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case notification := <-n.listener.Notify:
			if notification == nil {
				// nil is sent after a reconnect
				if n.reconnect != nil {
					n.reconnect()
				}
				continue
			}
			n.handle(notification.Extra)
		case <-ticker.C:
			go func() {
				if err := n.listener.Ping(); err != nil {
					applog.Log.Warnf("pq listener ping failed: %v", err)
				}
			}()
		case <-n.done:
			return
		}
	}
}

// Close stops the loop and the underlying listener connection.
func (n *PQNotifier) Close() error {
	var err error
	n.closeOnce.Do(func() {
		close(n.done)
		n.wg.Wait()
		err = n.listener.Close()
	})
	return err
}
