// models/gorm_models.go
package models

import (
	"encoding/json"
	"time"
)

// GormRoom 房间文档在 PostgreSQL 中的行，Version 单独成列以便做条件更新
type GormRoom struct {
	ID        uint   `gorm:"primaryKey"`
	RoomID    string `gorm:"uniqueIndex;size:16;not null"`
	Version   int64  `gorm:"not null"`
	Status    string `gorm:"size:16;not null"`
	Document  string `gorm:"type:jsonb;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (GormRoom) TableName() string {
	return "rooms"
}

// NewGormRoom encodes a room document into its row form.
func NewGormRoom(roomID string, room *Room) (*GormRoom, error) {
	doc, err := json.Marshal(room)
	if err != nil {
		return nil, err
	}
	return &GormRoom{
		RoomID:    roomID,
		Version:   room.Version,
		Status:    string(room.Status),
		Document:  string(doc),
		CreatedAt: room.CreatedAt,
		UpdatedAt: room.UpdatedAt,
	}, nil
}

// Room decodes the stored document.
func (g *GormRoom) Room() (*Room, error) {
	var room Room
	if err := json.Unmarshal([]byte(g.Document), &room); err != nil {
		return nil, err
	}
	return &room, nil
}
