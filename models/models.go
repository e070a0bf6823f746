// models/models.go
package models

import (
	"time"
)

// Status 房间的生命周期状态
type Status string

const (
	StatusLobby   Status = "lobby"
	StatusPlaying Status = "playing"
	StatusEnded   Status = "ended"
)

// DefaultBoardSize is the board length used when none is configured.
const DefaultBoardSize = 24

// Room 房间文档，每个房间一份，按 version 做乐观并发控制
type Room struct {
	CreatedAt time.Time          `json:"createdAt"`
	UpdatedAt time.Time          `json:"updatedAt"`
	Status    Status             `json:"status"`
	HostUID   string             `json:"hostUid"`
	Version   int64              `json:"version"`
	Players   map[string]*Player `json:"players"`
	Turn      Turn               `json:"turn"`
	Game      Game               `json:"game"`
}

// Player 房间内的一名玩家
type Player struct {
	UID        string    `json:"uid"`
	Name       string    `json:"name"`
	Ready      bool      `json:"ready"`
	JoinedAt   time.Time `json:"joinedAt"`
	LastSeenAt time.Time `json:"lastSeenAt"`
}

// Turn is the rotation. Index is always read modulo len(Order).
type Turn struct {
	Order []string `json:"order"`
	Index int      `json:"index"`
}

// Game 棋盘数据
type Game struct {
	BoardSize int            `json:"boardSize"`
	Positions map[string]int `json:"positions"`
	LastRoll  *LastRoll      `json:"lastRoll,omitempty"`
}

// LastRoll records the most recent committed die roll.
type LastRoll struct {
	UID  string    `json:"uid"`
	Dice int       `json:"dice"`
	At   time.Time `json:"at"`
}

// HasPlayer reports whether uid is a member of the room.
func (r *Room) HasPlayer(uid string) bool {
	if r == nil || r.Players == nil {
		return false
	}
	_, ok := r.Players[uid]
	return ok
}

// Clone returns a deep copy so transaction bodies never share maps or slices
// with the stored document.
func (r *Room) Clone() *Room {
	if r == nil {
		return nil
	}
	out := *r
	if r.Players != nil {
		out.Players = make(map[string]*Player, len(r.Players))
		for uid, p := range r.Players {
			if p == nil {
				out.Players[uid] = nil
				continue
			}
			cp := *p
			out.Players[uid] = &cp
		}
	}
	if r.Turn.Order != nil {
		out.Turn.Order = append([]string(nil), r.Turn.Order...)
	}
	if r.Game.Positions != nil {
		out.Game.Positions = make(map[string]int, len(r.Game.Positions))
		for uid, pos := range r.Game.Positions {
			out.Game.Positions[uid] = pos
		}
	}
	if r.Game.LastRoll != nil {
		lr := *r.Game.LastRoll
		out.Game.LastRoll = &lr
	}
	return &out
}

// EffectiveBoardSize falls back to DefaultBoardSize for documents written
// without a board size.
func (g *Game) EffectiveBoardSize() int {
	if g.BoardSize <= 0 {
		return DefaultBoardSize
	}
	return g.BoardSize
}
