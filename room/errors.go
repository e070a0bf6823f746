package room

import "errors"

// Code is a stable, machine-readable failure kind for room transactions.
type Code string

const (
	CodeRoomNotFound     Code = "ROOM_NOT_FOUND"
	CodeEmptyName        Code = "EMPTY_NAME"
	CodePlayerNotInRoom  Code = "PLAYER_NOT_IN_ROOM"
	CodeOnlyHostCanStart Code = "ONLY_HOST_CAN_START"
	CodeNotAllReady      Code = "NOT_ALL_READY"
	CodeRoomNotPlaying   Code = "ROOM_NOT_PLAYING"
	CodeNotYourTurn      Code = "NOT_YOUR_TURN"
	CodeNoActivePlayers  Code = "NO_ACTIVE_PLAYERS"
)

// Error carries a Code. Two errors match under errors.Is when codes are equal.
type Error struct {
	Code Code
}

func (e *Error) Error() string {
	return string(e.Code)
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

var (
	ErrRoomNotFound     = &Error{Code: CodeRoomNotFound}
	ErrEmptyName        = &Error{Code: CodeEmptyName}
	ErrPlayerNotInRoom  = &Error{Code: CodePlayerNotInRoom}
	ErrOnlyHostCanStart = &Error{Code: CodeOnlyHostCanStart}
	ErrNotAllReady      = &Error{Code: CodeNotAllReady}
	ErrRoomNotPlaying   = &Error{Code: CodeRoomNotPlaying}
	ErrNotYourTurn      = &Error{Code: CodeNotYourTurn}
	ErrNoActivePlayers  = &Error{Code: CodeNoActivePlayers}
)

// CodeOf extracts the room code from err, if any.
func CodeOf(err error) (Code, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Code, true
	}
	return "", false
}
