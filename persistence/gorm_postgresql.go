// persistence/gorm_postgresql.go
package persistence

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/wfunc/boardroom/broadcast"
	"github.com/wfunc/boardroom/models"
	applog "github.com/wfunc/boardroom/logger"
)

// RoomChangesChannel is the NOTIFY channel carrying the ids of committed rooms.
const RoomChangesChannel = "room_changes"

var errConflict = errors.New("concurrent commit")

// GormPostgreSQL 使用GORM的PostgreSQL实现。version 列作为比较并交换的令牌，
// 每次提交后通过 NOTIFY 广播房间号
type GormPostgreSQL struct {
	db          *gorm.DB
	hub         *broadcast.Hub
	notifier    *PQNotifier
	maxAttempts int
	observer    TxObserver
	// feedMu orders initial snapshots against change-feed deliveries.
	feedMu sync.Mutex
	closed bool
}

// PostgresDSN builds a key/value connection string understood by both pgx and lib/pq.
func PostgresDSN(host string, port int, user, password, dbname string) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)
}

// NewGormPostgreSQL 创建GORM PostgreSQL数据库连接并启动变更监听
func NewGormPostgreSQL(dsn string, maxAttempts int, observer TxObserver) (*GormPostgreSQL, error) {
	// 配置GORM日志
	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold: time.Second,
			LogLevel:      logger.Silent,
			Colorful:      false,
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         gormLogger,
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// 设置连接池
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := autoMigrate(db); err != nil {
		return nil, err
	}

	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	s := &GormPostgreSQL{
		db:          db,
		hub:         broadcast.NewHub(),
		maxAttempts: maxAttempts,
		observer:    observer,
	}

	notifier, err := NewPQNotifier(dsn, RoomChangesChannel, s.dispatch, s.resync)
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	s.notifier = notifier
	return s, nil
}

func autoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&models.GormRoom{})
}

func (p *GormPostgreSQL) Get(ctx context.Context, roomID string) (*models.Room, error) {
	var row models.GormRoom
	if err := p.db.WithContext(ctx).Where("room_id = ?", roomID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return row.Room()
}

func (p *GormPostgreSQL) Set(ctx context.Context, roomID string, room *models.Room) error {
	return p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now, err := serverNow(tx)
		if err != nil {
			return err
		}
		doc := room.Clone()
		doc.CreatedAt = now
		doc.UpdatedAt = now
		row, err := models.NewGormRoom(roomID, doc)
		if err != nil {
			return err
		}
		// 使用UPSERT操作，房间号碰撞时覆盖旧文档
		err = tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "room_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"version", "status", "document", "created_at", "updated_at"}),
		}).Create(row).Error
		if err != nil {
			return err
		}
		return notify(tx, roomID)
	})
}

func (p *GormPostgreSQL) Transact(ctx context.Context, roomID string, fn TxFunc) (*models.Room, error) {
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var committed *models.Room
		err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var current *models.Room
			var row models.GormRoom
			err := tx.Where("room_id = ?", roomID).Take(&row).Error
			switch {
			case errors.Is(err, gorm.ErrRecordNotFound):
			case err != nil:
				return err
			default:
				if current, err = row.Room(); err != nil {
					return err
				}
			}
			pre := preImageOf(current)

			now, err := serverNow(tx)
			if err != nil {
				return err
			}
			next, err := fn(current, now)
			if err != nil || next == nil {
				return err
			}
			if err := pre.check(next); err != nil {
				return err
			}
			next = next.Clone()
			next.UpdatedAt = now
			if !pre.exists {
				next.CreatedAt = now
			}
			doc, err := models.NewGormRoom(roomID, next)
			if err != nil {
				return err
			}

			if !pre.exists {
				if err := tx.Create(doc).Error; err != nil {
					if errors.Is(err, gorm.ErrDuplicatedKey) {
						return errConflict
					}
					return err
				}
			} else {
				res := tx.Model(&models.GormRoom{}).
					Where("room_id = ? AND version = ?", roomID, pre.version).
					Updates(map[string]interface{}{
						"version":    doc.Version,
						"status":     doc.Status,
						"document":   doc.Document,
						"updated_at": doc.UpdatedAt,
					})
				if res.Error != nil {
					return res.Error
				}
				if res.RowsAffected == 0 {
					return errConflict
				}
			}
			committed = next
			return notify(tx, roomID)
		})
		if errors.Is(err, errConflict) {
			if p.observer != nil {
				p.observer.ObserveConflict()
			}
			continue
		}
		if err != nil {
			return nil, err
		}
		return committed, nil
	}
	return nil, ErrTooMuchContention
}

// Delete removes a room row, standing in for external expiry.
func (p *GormPostgreSQL) Delete(ctx context.Context, roomID string) error {
	return p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("room_id = ?", roomID).Delete(&models.GormRoom{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrRecordNotFound
		}
		return notify(tx, roomID)
	})
}

func (p *GormPostgreSQL) Subscribe(roomID string, fn func(*models.Room)) (func(), error) {
	p.feedMu.Lock()
	defer p.feedMu.Unlock()
	if p.closed {
		return nil, ErrStoreClosed
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	initial, err := p.Get(ctx, roomID)
	if err != nil && !errors.Is(err, ErrRecordNotFound) {
		return nil, err
	}

	// The feed re-reads the latest row per notification, so a subscriber
	// may see the same version twice; drop anything not newer.
	var last int64 = -1
	return p.hub.Subscribe(roomID, initial, func(room *models.Room) {
		if room == nil {
			last = -1
			fn(nil)
			return
		}
		if room.Version <= last {
			return
		}
		last = room.Version
		fn(room)
	}), nil
}

// dispatch is called by the notifier for every committed room id.
func (p *GormPostgreSQL) dispatch(roomID string) {
	p.feedMu.Lock()
	defer p.feedMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	room, err := p.Get(ctx, roomID)
	switch {
	case errors.Is(err, ErrRecordNotFound):
		p.hub.Publish(roomID, nil)
	case err != nil:
		applog.Log.Warnf("room feed: reload %s failed: %v", roomID, err)
	default:
		p.hub.Publish(roomID, room)
	}
}

// resync reloads every watched room after the listener reconnects, since
// notifications sent while disconnected are lost.
func (p *GormPostgreSQL) resync() {
	for _, roomID := range p.hub.Rooms() {
		p.dispatch(roomID)
	}
}

// Ping checks database connectivity.
func (p *GormPostgreSQL) Ping(ctx context.Context) error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close 关闭监听与数据库连接
func (p *GormPostgreSQL) Close() error {
	p.feedMu.Lock()
	p.closed = true
	p.feedMu.Unlock()
	p.hub.Close()
	if p.notifier != nil {
		_ = p.notifier.Close()
	}
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func serverNow(tx *gorm.DB) (time.Time, error) {
	var now time.Time
	if err := tx.Raw("SELECT now()").Scan(&now).Error; err != nil {
		return time.Time{}, err
	}
	return now.UTC(), nil
}

func notify(tx *gorm.DB, roomID string) error {
	return tx.Exec("SELECT pg_notify(?, ?)", RoomChangesChannel, roomID).Error
}
