package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/wfunc/boardroom/broadcast"
	"github.com/wfunc/boardroom/logger"
	"github.com/wfunc/boardroom/models"
	"github.com/wfunc/boardroom/monitor"
	"github.com/wfunc/boardroom/network"
	"github.com/wfunc/boardroom/room"
	"github.com/wfunc/boardroom/services"
	"github.com/wfunc/boardroom/session"
)

const (
	requestTimeout = 5 * time.Second
	idleTimeout    = 60 * time.Second

	codeBadRequest  = "BAD_REQUEST"
	codeRateLimited = "RATE_LIMITED"
	codeInternal    = "INTERNAL"
)

var (
	errBadRequest  = errors.New("malformed request")
	errRateLimited = errors.New("too many requests")
)

// GameServer 网关：WebSocket 会话转发到房间事务引擎
type GameServer struct {
	addr           string
	publicURL      string
	upgrader       websocket.Upgrader
	httpServer     *http.Server
	rooms          *services.RoomService
	sessionManager *session.Manager
	monitor        *monitor.Monitor
	shutdownChan   chan struct{}
	shutdownOnce   sync.Once
}

func NewGameServer(addr, publicURL string, rooms *services.RoomService, m *monitor.Monitor) *GameServer {
	s := &GameServer{
		addr:           addr,
		publicURL:      publicURL,
		rooms:          rooms,
		sessionManager: session.NewManager(),
		monitor:        m,
		shutdownChan:   make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 允许所有跨域请求
			},
		},
	}
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler serves the gateway at /ws.
func (s *GameServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	return mux
}

// Sessions returns the live session registry.
func (s *GameServer) Sessions() *session.Manager {
	return s.sessionManager
}

func (s *GameServer) Start() error {
	logger.Log.Infof("Game server listening on %s", s.addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *GameServer) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() { close(s.shutdownChan) })
	err := s.httpServer.Shutdown(ctx)
	s.sessionManager.CloseAll()
	return err
}

func (s *GameServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Infof("Failed to upgrade connection: %v", err)
		return
	}
	playerID := r.URL.Query().Get("uid")
	if playerID == "" {
		playerID = uuid.New().String()
	}
	s.handleConnection(network.NewWSConnection(conn), playerID)
}

func (s *GameServer) handleConnection(wsConn network.Connection, playerID string) {
	sess := session.NewSession(uuid.New().String(), playerID, wsConn)
	sess.Attach(broadcast.NewObserver(s.rooms, func(roomID string, doc *models.Room) {
		if err := sess.SendJSON(network.MsgTypeRoomState, network.RoomState{RoomID: roomID, Room: doc}); err != nil {
			logger.Log.Debugf("Push room %s to session %s failed: %v", roomID, sess.GetID(), err)
		}
	}))
	s.sessionManager.Add(sess)
	s.monitor.IncOnlinePlayers()
	wsConn.SetHeartbeat(idleTimeout)

	logger.Log.Infof("New connection from %s, session ID: %s, player: %s", wsConn.RemoteAddr(), sess.GetID(), playerID)

	defer func() {
		logger.Log.Infof("Connection closed from %s, session ID: %s", wsConn.RemoteAddr(), sess.GetID())
		s.sessionManager.Remove(sess.GetID())
		sess.Close()
		s.monitor.DecOnlinePlayers()
		s.monitor.SetWatchedRooms(s.sessionManager.RoomCount())
	}()

	if err := sess.SendJSON(network.MsgTypeSession, network.SessionInfo{PlayerID: playerID}); err != nil {
		return
	}

	for {
		select {
		case <-s.shutdownChan:
			return
		default:
			packet, err := wsConn.ReadPacket()
			if err != nil {
				return
			}
			s.monitor.IncMessagesReceived()
			start := time.Now()
			if err := s.handlePacket(sess, packet); err != nil {
				s.sendError(sess, err)
			}
			s.monitor.ObserveMessageLatency(time.Since(start))
		}
	}
}

func (s *GameServer) handlePacket(sess *session.Session, packet *network.Packet) error {
	sess.Touch()
	if packet.MsgID != network.MsgTypeHeartbeat && !sess.Allow() {
		return errRateLimited
	}
	switch packet.MsgID {
	case network.MsgTypeHeartbeat:
		return sess.Send(network.MsgTypeHeartbeat, nil)
	case network.MsgTypeCreateRoom:
		return s.handleCreateRoom(sess, packet)
	case network.MsgTypeJoinRoom:
		return s.handleJoinRoom(sess, packet)
	case network.MsgTypeLeaveRoom:
		return s.handleLeaveRoom(sess)
	case network.MsgTypeSetReady:
		return s.handleSetReady(sess, packet)
	case network.MsgTypeStartGame:
		return s.handleStartGame(sess)
	case network.MsgTypeRollDice:
		return s.handleRollDice(sess)
	default:
		logger.Log.Infof("Unknown message type: %d", packet.MsgID)
		return errBadRequest
	}
}

func (s *GameServer) handleCreateRoom(sess *session.Session, packet *network.Packet) error {
	var req network.CreateRoomRequest
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		return errBadRequest
	}
	ctx, cancel := s.requestContext()
	defer cancel()

	roomID, err := s.rooms.Create(ctx, sess.PlayerID, req.Name)
	if err != nil {
		return err
	}
	logger.Log.Infof("Session %s created room %s", sess.GetID(), roomID)

	if err := sess.SendJSON(network.MsgTypeCreateRoom, network.CreateRoomResponse{
		RoomID:     roomID,
		InviteLink: room.InviteLink(s.publicURL, roomID),
	}); err != nil {
		return err
	}
	return s.enter(sess, roomID)
}

func (s *GameServer) handleJoinRoom(sess *session.Session, packet *network.Packet) error {
	var req network.JoinRoomRequest
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		return errBadRequest
	}
	roomID := room.ParseID(req.RoomID)
	if roomID == "" {
		return room.ErrRoomNotFound
	}
	ctx, cancel := s.requestContext()
	defer cancel()

	if _, err := s.rooms.Join(ctx, roomID, sess.PlayerID, req.Name); err != nil {
		return err
	}
	logger.Log.Infof("Session %s joined room %s", sess.GetID(), roomID)
	return s.enter(sess, roomID)
}

func (s *GameServer) handleLeaveRoom(sess *session.Session) error {
	if left := sess.Leave(); left != "" {
		logger.Log.Infof("Session %s left room %s", sess.GetID(), left)
	}
	s.monitor.SetWatchedRooms(s.sessionManager.RoomCount())
	return nil
}

func (s *GameServer) handleSetReady(sess *session.Session, packet *network.Packet) error {
	var req network.SetReadyRequest
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		return errBadRequest
	}
	roomID, err := currentRoom(sess)
	if err != nil {
		return err
	}
	ctx, cancel := s.requestContext()
	defer cancel()
	_, err = s.rooms.SetReady(ctx, roomID, sess.PlayerID, req.Ready)
	return err
}

func (s *GameServer) handleStartGame(sess *session.Session) error {
	roomID, err := currentRoom(sess)
	if err != nil {
		return err
	}
	ctx, cancel := s.requestContext()
	defer cancel()
	_, err = s.rooms.Start(ctx, roomID, sess.PlayerID)
	return err
}

func (s *GameServer) handleRollDice(sess *session.Session) error {
	roomID, err := currentRoom(sess)
	if err != nil {
		return err
	}
	ctx, cancel := s.requestContext()
	defer cancel()
	dice, _, err := s.rooms.Roll(ctx, roomID, sess.PlayerID)
	if err != nil {
		return err
	}
	return sess.SendJSON(network.MsgTypeRollDice, network.RollDiceResponse{Dice: dice})
}

func (s *GameServer) enter(sess *session.Session, roomID string) error {
	err := sess.Enter(roomID, func() func() {
		return s.rooms.Heartbeat(roomID, sess.PlayerID)
	})
	s.monitor.SetWatchedRooms(s.sessionManager.RoomCount())
	return err
}

func (s *GameServer) sendError(sess *session.Session, err error) {
	code := codeInternal
	if c, ok := room.CodeOf(err); ok {
		code = string(c)
	} else if errors.Is(err, errBadRequest) {
		code = codeBadRequest
	} else if errors.Is(err, errRateLimited) {
		code = codeRateLimited
	} else {
		logger.Log.Errorf("Session %s request failed: %v", sess.GetID(), err)
	}
	if sendErr := sess.SendJSON(network.MsgTypeError, network.ErrorResponse{Code: code, Message: err.Error()}); sendErr != nil {
		logger.Log.Warnf("Send error to session %s failed: %v", sess.GetID(), sendErr)
	}
}

func (s *GameServer) requestContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	go func() {
		select {
		case <-s.shutdownChan:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

func currentRoom(sess *session.Session) (string, error) {
	roomID := sess.RoomID()
	if roomID == "" {
		return "", room.ErrPlayerNotInRoom
	}
	return roomID, nil
}
