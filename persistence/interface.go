// persistence/interface.go
package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/wfunc/boardroom/models"
)

// TxFunc computes the next document from the current one. current is a
// private copy, or nil when the room does not exist; now is the
// store-assigned commit time. Returning (nil, nil) commits nothing. A
// returned error aborts the transaction and is passed through unchanged.
// A TxFunc may run several times against different pre-images.
type TxFunc func(current *models.Room, now time.Time) (*models.Room, error)

// Store 房间文档存储，按房间号读写，带条件事务与变更订阅
type Store interface {
	// Get returns ErrRecordNotFound when the room does not exist.
	Get(ctx context.Context, roomID string) (*models.Room, error)
	// Set writes room unconditionally, assigning createdAt/updatedAt.
	Set(ctx context.Context, roomID string, room *models.Room) error
	// Transact commits fn's result only if the stored version is unchanged
	// since fn read it, re-running fn on conflict. It returns the committed
	// document, or nil for a no-op.
	Transact(ctx context.Context, roomID string, fn TxFunc) (*models.Room, error)
	// Subscribe delivers the current document, then every committed one,
	// in commit order. nil means absent.
	Subscribe(roomID string, fn func(*models.Room)) (unsubscribe func(), err error)
	Close() error
}

// 错误定义
var (
	ErrRecordNotFound     = errors.New("record not found")
	ErrTooMuchContention  = errors.New("transaction aborted after too many conflicting commits")
	ErrVersionNotAdvanced = errors.New("transaction must advance version by exactly one")
	ErrStoreClosed        = errors.New("store closed")
)

// DefaultMaxAttempts bounds how often a conflicting transaction is re-run.
const DefaultMaxAttempts = 5

// TxObserver receives the outcome of every transaction attempt. monitor.Monitor implements it.
type TxObserver interface {
	ObserveConflict()
}

// preImage is what a TxFunc was handed, recorded before it runs. A TxFunc
// may edit current in place, so the version check and the compare-and-swap
// read from here.
type preImage struct {
	exists  bool
	version int64
}

func preImageOf(doc *models.Room) preImage {
	if doc == nil {
		return preImage{}
	}
	return preImage{exists: true, version: doc.Version}
}

// check requires next to advance the version by exactly one, starting at 1.
func (p preImage) check(next *models.Room) error {
	if next.Version != p.version+1 {
		return ErrVersionNotAdvanced
	}
	return nil
}

// matches reports whether doc is still the document fn read.
func (p preImage) matches(doc *models.Room) bool {
	if doc == nil {
		return !p.exists
	}
	return p.exists && doc.Version == p.version
}
