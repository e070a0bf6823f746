package rpc

import (
	"context"
	"time"

	"github.com/wfunc/boardroom/models"
	"github.com/wfunc/boardroom/services"
)

const callTimeout = 5 * time.Second

// RoomService exposes the room engine over net/rpc. Methods follow the
// net/rpc shape: exported args, pointer reply, error result. Room failures
// travel as their code string, e.g. "NOT_YOUR_TURN".
type RoomService struct {
	rooms *services.RoomService
}

func NewRoomService(rooms *services.RoomService) *RoomService {
	return &RoomService{rooms: rooms}
}

type GetArgs struct {
	RoomID string
}

type CreateArgs struct {
	PlayerID string
	Name     string
}

type CreateReply struct {
	RoomID string
}

type JoinArgs struct {
	RoomID   string
	PlayerID string
	Name     string
}

type SetReadyArgs struct {
	RoomID   string
	PlayerID string
	Ready    bool
}

// PlayerArgs identifies a player acting in a room.
type PlayerArgs struct {
	RoomID   string
	PlayerID string
}

type RoomReply struct {
	Room *models.Room
}

type RollReply struct {
	Dice int
	Room *models.Room
}

func (rs *RoomService) Get(args *GetArgs, reply *RoomReply) error {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	doc, err := rs.rooms.Get(ctx, args.RoomID)
	if err != nil {
		return err
	}
	reply.Room = doc
	return nil
}

func (rs *RoomService) Create(args *CreateArgs, reply *CreateReply) error {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	roomID, err := rs.rooms.Create(ctx, args.PlayerID, args.Name)
	if err != nil {
		return err
	}
	reply.RoomID = roomID
	return nil
}

func (rs *RoomService) Join(args *JoinArgs, reply *RoomReply) error {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	doc, err := rs.rooms.Join(ctx, args.RoomID, args.PlayerID, args.Name)
	if err != nil {
		return err
	}
	reply.Room = doc
	return nil
}

func (rs *RoomService) SetReady(args *SetReadyArgs, reply *RoomReply) error {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	doc, err := rs.rooms.SetReady(ctx, args.RoomID, args.PlayerID, args.Ready)
	if err != nil {
		return err
	}
	reply.Room = doc
	return nil
}

func (rs *RoomService) Start(args *PlayerArgs, reply *RoomReply) error {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	doc, err := rs.rooms.Start(ctx, args.RoomID, args.PlayerID)
	if err != nil {
		return err
	}
	reply.Room = doc
	return nil
}

func (rs *RoomService) Roll(args *PlayerArgs, reply *RollReply) error {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	dice, doc, err := rs.rooms.Roll(ctx, args.RoomID, args.PlayerID)
	if err != nil {
		return err
	}
	reply.Dice = dice
	reply.Room = doc
	return nil
}
