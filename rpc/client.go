package rpc

import (
	"errors"
	"net/rpc"

	"github.com/wfunc/boardroom/models"
	"github.com/wfunc/boardroom/room"
)

var knownCodes = map[string]*room.Error{
	string(room.CodeRoomNotFound):     room.ErrRoomNotFound,
	string(room.CodeEmptyName):        room.ErrEmptyName,
	string(room.CodePlayerNotInRoom):  room.ErrPlayerNotInRoom,
	string(room.CodeOnlyHostCanStart): room.ErrOnlyHostCanStart,
	string(room.CodeNotAllReady):      room.ErrNotAllReady,
	string(room.CodeRoomNotPlaying):   room.ErrRoomNotPlaying,
	string(room.CodeNotYourTurn):      room.ErrNotYourTurn,
	string(room.CodeNoActivePlayers):  room.ErrNoActivePlayers,
}

// Client calls a remote RoomService and turns coded failures back into
// room errors.
type Client struct {
	c *rpc.Client
}

func Dial(addr string) (*Client, error) {
	c, err := rpc.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Client{c: c}, nil
}

func (c *Client) Close() error {
	return c.c.Close()
}

func (c *Client) Get(roomID string) (*models.Room, error) {
	var reply RoomReply
	if err := c.call("Get", &GetArgs{RoomID: roomID}, &reply); err != nil {
		return nil, err
	}
	return reply.Room, nil
}

func (c *Client) Create(playerID, name string) (string, error) {
	var reply CreateReply
	if err := c.call("Create", &CreateArgs{PlayerID: playerID, Name: name}, &reply); err != nil {
		return "", err
	}
	return reply.RoomID, nil
}

func (c *Client) Join(roomID, playerID, name string) (*models.Room, error) {
	var reply RoomReply
	if err := c.call("Join", &JoinArgs{RoomID: roomID, PlayerID: playerID, Name: name}, &reply); err != nil {
		return nil, err
	}
	return reply.Room, nil
}

func (c *Client) SetReady(roomID, playerID string, ready bool) (*models.Room, error) {
	var reply RoomReply
	if err := c.call("SetReady", &SetReadyArgs{RoomID: roomID, PlayerID: playerID, Ready: ready}, &reply); err != nil {
		return nil, err
	}
	return reply.Room, nil
}

func (c *Client) Start(roomID, playerID string) (*models.Room, error) {
	var reply RoomReply
	if err := c.call("Start", &PlayerArgs{RoomID: roomID, PlayerID: playerID}, &reply); err != nil {
		return nil, err
	}
	return reply.Room, nil
}

func (c *Client) Roll(roomID, playerID string) (int, *models.Room, error) {
	var reply RollReply
	if err := c.call("Roll", &PlayerArgs{RoomID: roomID, PlayerID: playerID}, &reply); err != nil {
		return 0, nil, err
	}
	return reply.Dice, reply.Room, nil
}

func (c *Client) call(method string, args, reply interface{}) error {
	err := c.c.Call(ServiceName+"."+method, args, reply)
	var serverErr rpc.ServerError
	if errors.As(err, &serverErr) {
		if coded, ok := knownCodes[string(serverErr)]; ok {
			return coded
		}
	}
	return err
}
