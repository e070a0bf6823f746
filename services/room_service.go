// services/room_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/wfunc/boardroom/logger"
	"github.com/wfunc/boardroom/models"
	"github.com/wfunc/boardroom/monitor"
	"github.com/wfunc/boardroom/persistence"
	"github.com/wfunc/boardroom/room"
	"github.com/wfunc/boardroom/timer"
)

// DefaultHeartbeatInterval 心跳间隔
const DefaultHeartbeatInterval = 15 * time.Second

// RoomService runs every room mutation as an optimistic transaction against
// the document store. It holds no room state of its own.
type RoomService struct {
	store             persistence.Store
	monitor           *monitor.Monitor
	timers            *timer.TimerManager
	ownsTimers        bool
	boardSize         int
	heartbeatInterval time.Duration
	dice              func() int
	newID             func() (string, error)
	clock             func() time.Time
}

type Option func(*RoomService)

func WithMonitor(m *monitor.Monitor) Option {
	return func(s *RoomService) { s.monitor = m }
}

// WithBoardSize sets the board length for newly created rooms.
func WithBoardSize(n int) Option {
	return func(s *RoomService) {
		if n > 0 {
			s.boardSize = n
		}
	}
}

func WithHeartbeatInterval(d time.Duration) Option {
	return func(s *RoomService) {
		if d > 0 {
			s.heartbeatInterval = d
		}
	}
}

// WithDice replaces the die. It must return a value in [1, 6].
func WithDice(dice func() int) Option {
	return func(s *RoomService) { s.dice = dice }
}

func WithIDGenerator(newID func() (string, error)) Option {
	return func(s *RoomService) { s.newID = newID }
}

// WithClock sets the clock used for the creator's join time.
func WithClock(clock func() time.Time) Option {
	return func(s *RoomService) { s.clock = clock }
}

// WithTimerManager shares a timer manager; the service will not stop it.
func WithTimerManager(m *timer.TimerManager) Option {
	return func(s *RoomService) { s.timers = m }
}

func NewRoomService(store persistence.Store, opts ...Option) *RoomService {
	s := &RoomService{
		store:             store,
		boardSize:         models.DefaultBoardSize,
		heartbeatInterval: DefaultHeartbeatInterval,
		dice:              func() int { return rand.IntN(6) + 1 },
		newID:             room.NewID,
		clock:             func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.timers == nil {
		resolution := timer.DefaultResolution
		if q := s.heartbeatInterval / 4; q < resolution {
			resolution = q
		}
		s.timers = timer.NewTimerManager(resolution)
		s.ownsTimers = true
	}
	return s
}

// Close stops heartbeat scheduling.
func (s *RoomService) Close() {
	if s.ownsTimers {
		s.timers.Stop()
	}
}

// Get reads the current room document.
func (s *RoomService) Get(ctx context.Context, roomID string) (*models.Room, error) {
	doc, err := s.store.Get(ctx, room.NormalizeID(roomID))
	if errors.Is(err, persistence.ErrRecordNotFound) {
		return nil, room.ErrRoomNotFound
	}
	return doc, err
}

// Subscribe streams snapshots of a room; nil means the room does not exist.
func (s *RoomService) Subscribe(roomID string, fn func(*models.Room)) (func(), error) {
	return s.store.Subscribe(room.NormalizeID(roomID), fn)
}

// Create opens a new lobby hosted by playerID and returns its code.
func (s *RoomService) Create(ctx context.Context, playerID, name string) (string, error) {
	start := time.Now()
	roomID, err := s.create(ctx, playerID, name)
	s.observe("create", err, start)
	return roomID, err
}

func (s *RoomService) create(ctx context.Context, playerID, name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", room.ErrEmptyName
	}
	roomID, err := s.newID()
	if err != nil {
		return "", fmt.Errorf("generate room id: %w", err)
	}

	now := s.clock()
	doc := &models.Room{
		Status:  models.StatusLobby,
		HostUID: playerID,
		Version: 1,
		Players: map[string]*models.Player{
			playerID: {
				UID:        playerID,
				Name:       trimmed,
				Ready:      false,
				JoinedAt:   now,
				LastSeenAt: now,
			},
		},
		Turn: models.Turn{
			Order: []string{playerID},
			Index: 0,
		},
		Game: models.Game{
			BoardSize: s.boardSize,
			Positions: map[string]int{playerID: 0},
		},
	}
	if err := s.store.Set(ctx, roomID, doc); err != nil {
		return "", fmt.Errorf("create room %s: %w", roomID, err)
	}
	logger.Log.Infof("Player %s created room %s", playerID, roomID)
	return roomID, nil
}

// Join adds playerID to the room, or only refreshes its last-seen time if it
// is already a member. The room status is not checked, so players may join a
// game in progress and start at position 0.
func (s *RoomService) Join(ctx context.Context, roomID, playerID, name string) (*models.Room, error) {
	trimmed := strings.TrimSpace(name)
	return s.transact(ctx, "join", roomID, func(doc *models.Room, now time.Time) (*models.Room, error) {
		if trimmed == "" {
			return nil, room.ErrEmptyName
		}
		if doc.Players == nil {
			doc.Players = make(map[string]*models.Player)
		}
		if existing, ok := doc.Players[playerID]; ok && existing != nil {
			existing.LastSeenAt = now
		} else {
			doc.Players[playerID] = &models.Player{
				UID:        playerID,
				Name:       trimmed,
				Ready:      false,
				JoinedAt:   now,
				LastSeenAt: now,
			}
			doc.Turn.Order = append(doc.Turn.Order, playerID)
		}
		if doc.Game.Positions == nil {
			doc.Game.Positions = make(map[string]int)
		}
		if _, ok := doc.Game.Positions[playerID]; !ok {
			doc.Game.Positions[playerID] = 0
		}
		doc.Version++
		return doc, nil
	})
}

// SetReady records a player's readiness. Setting the same value still commits.
func (s *RoomService) SetReady(ctx context.Context, roomID, playerID string, ready bool) (*models.Room, error) {
	return s.transact(ctx, "set_ready", roomID, func(doc *models.Room, now time.Time) (*models.Room, error) {
		player, ok := doc.Players[playerID]
		if !ok || player == nil {
			return nil, room.ErrPlayerNotInRoom
		}
		player.Ready = ready
		player.LastSeenAt = now
		doc.Version++
		return doc, nil
	})
}

// Start moves the room from lobby to playing once every player is ready.
// Existing positions are kept.
func (s *RoomService) Start(ctx context.Context, roomID, callerID string) (*models.Room, error) {
	doc, err := s.transact(ctx, "start", roomID, func(doc *models.Room, now time.Time) (*models.Room, error) {
		if doc.HostUID != callerID {
			return nil, room.ErrOnlyHostCanStart
		}
		if len(doc.Players) == 0 {
			return nil, room.ErrNotAllReady
		}
		for _, p := range doc.Players {
			if p == nil || !p.Ready {
				return nil, room.ErrNotAllReady
			}
		}

		order := room.NormalizeOrder(doc.Turn.Order, doc.Players)
		index := 0
		if len(order) > 0 {
			index = room.WrapIndex(doc.Turn.Index, len(order))
		}
		positions := make(map[string]int, len(doc.Players))
		for uid := range doc.Players {
			positions[uid] = doc.Game.Positions[uid]
		}

		doc.Status = models.StatusPlaying
		doc.Turn = models.Turn{Order: order, Index: index}
		doc.Game = models.Game{
			BoardSize: doc.Game.EffectiveBoardSize(),
			Positions: positions,
		}
		doc.Version++
		return doc, nil
	})
	if err == nil {
		logger.Log.Infof("Room %s started by %s with %d players", room.NormalizeID(roomID), callerID, len(doc.Players))
	}
	return doc, err
}

// Roll moves the current player by one die throw and passes the turn on.
// The die is thrown once per call, before the transaction, so a retried
// transaction reuses the same value.
func (s *RoomService) Roll(ctx context.Context, roomID, playerID string) (int, *models.Room, error) {
	dice := s.dice()
	doc, err := s.transact(ctx, "roll", roomID, func(doc *models.Room, now time.Time) (*models.Room, error) {
		if doc.Status != models.StatusPlaying {
			return nil, room.ErrRoomNotPlaying
		}
		player, ok := doc.Players[playerID]
		if !ok || player == nil {
			return nil, room.ErrPlayerNotInRoom
		}
		order := room.NormalizeOrder(doc.Turn.Order, doc.Players)
		if len(order) == 0 {
			return nil, room.ErrNoActivePlayers
		}
		current := room.WrapIndex(doc.Turn.Index, len(order))
		if order[current] != playerID {
			return nil, room.ErrNotYourTurn
		}

		boardSize := doc.Game.EffectiveBoardSize()
		if doc.Game.Positions == nil {
			doc.Game.Positions = make(map[string]int)
		}
		doc.Game.BoardSize = boardSize
		doc.Game.Positions[playerID] = (doc.Game.Positions[playerID] + dice) % boardSize
		doc.Game.LastRoll = &models.LastRoll{UID: playerID, Dice: dice, At: now}
		doc.Turn = models.Turn{Order: order, Index: (current + 1) % len(order)}
		player.LastSeenAt = now
		doc.Version++
		return doc, nil
	})
	if err != nil {
		return 0, nil, err
	}
	return dice, doc, nil
}

// Touch refreshes a member's last-seen time. A missing room or non-member is
// a no-op and returns (nil, nil).
func (s *RoomService) Touch(ctx context.Context, roomID, playerID string) (*models.Room, error) {
	start := time.Now()
	doc, err := s.store.Transact(ctx, room.NormalizeID(roomID), func(doc *models.Room, now time.Time) (*models.Room, error) {
		if doc == nil {
			return nil, nil
		}
		player, ok := doc.Players[playerID]
		if !ok || player == nil {
			return nil, nil
		}
		player.LastSeenAt = now
		doc.Version++
		return doc, nil
	})
	s.observe("heartbeat", err, start)
	return doc, err
}

func (s *RoomService) transact(ctx context.Context, op, roomID string, fn persistence.TxFunc) (*models.Room, error) {
	start := time.Now()
	roomID = room.NormalizeID(roomID)
	doc, err := s.store.Transact(ctx, roomID, func(doc *models.Room, now time.Time) (*models.Room, error) {
		if doc == nil {
			return nil, room.ErrRoomNotFound
		}
		return fn(doc, now)
	})
	s.observe(op, err, start)
	if err != nil {
		if _, ok := room.CodeOf(err); ok {
			return nil, err
		}
		return nil, fmt.Errorf("%s room %s: %w", op, roomID, err)
	}
	return doc, nil
}

func (s *RoomService) observe(op string, err error, start time.Time) {
	result := "ok"
	if err != nil {
		result = "error"
		if code, ok := room.CodeOf(err); ok {
			result = string(code)
		}
	}
	s.monitor.ObserveTransaction(op, result, time.Since(start))
}
