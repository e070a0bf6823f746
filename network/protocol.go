package network

import "github.com/wfunc/boardroom/models"

const (
	MsgTypeHeartbeat  = 1
	MsgTypeSession    = 2
	MsgTypeJoinRoom   = 101
	MsgTypeLeaveRoom  = 102
	MsgTypeCreateRoom = 103
	MsgTypeSetReady   = 201
	MsgTypeStartGame  = 202
	MsgTypeRollDice   = 203
	MsgTypeRoomState  = 301
	MsgTypeError      = 500
)

// SessionInfo tells a client which player id the gateway bound it to.
type SessionInfo struct {
	PlayerID string `json:"player_id"`
}

// CreateRoomRequest 创建房间
type CreateRoomRequest struct {
	Name string `json:"name"`
}

type CreateRoomResponse struct {
	RoomID     string `json:"room_id"`
	InviteLink string `json:"invite_link"`
}

// JoinRoomRequest accepts either a bare room code or an invite link in RoomID.
type JoinRoomRequest struct {
	RoomID string `json:"room_id"`
	Name   string `json:"name"`
}

type SetReadyRequest struct {
	Ready bool `json:"ready"`
}

type RollDiceResponse struct {
	Dice int `json:"dice"`
}

// RoomState pushes a room snapshot. Room is null once the room is gone.
type RoomState struct {
	RoomID string       `json:"room_id"`
	Room   *models.Room `json:"room"`
}

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
