package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wfunc/boardroom/logger"
	"github.com/wfunc/boardroom/network"
)

const usage = "commands: create | join <code or link> | ready | unready | start | roll | leave | quit"

// send formats and sends a message to the WebSocket server.
func send(c *websocket.Conn, msgID uint16, v interface{}) error {
	var data []byte
	if v != nil {
		var err error
		if data, err = json.Marshal(v); err != nil {
			return err
		}
	}
	packet, err := network.Encode(msgID, data)
	if err != nil {
		return err
	}
	return c.WriteMessage(websocket.BinaryMessage, packet)
}

func main() {
	addr := flag.String("addr", "localhost:8080", "gateway address")
	uid := flag.String("uid", "", "player id; the gateway issues one when empty")
	name := flag.String("name", "player", "display name used for create and join")
	flag.Parse()

	logger.InitDevelopment()
	defer logger.Sync()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	u := url.URL{Scheme: "ws", Host: *addr, Path: "/ws"}
	if *uid != "" {
		u.RawQuery = url.Values{"uid": {*uid}}.Encode()
	}
	logger.Log.Infof("Connecting to %s", u.String())

	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		logger.Log.Fatalf("Dial failed: %v", err)
	}
	defer c.Close()

	done := make(chan struct{})

	// Read loop
	go func() {
		defer close(done)
		for {
			_, message, err := c.ReadMessage()
			if err != nil {
				logger.Log.Infof("Read error: %v", err)
				return
			}
			packet, err := network.Decode(message)
			if err != nil {
				logger.Log.Warnf("Received invalid packet of size %d", len(message))
				continue
			}
			logger.Log.Infof("<- RECV (ID: %d): %s", packet.MsgID, string(packet.Data))
		}
	}()

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- strings.TrimSpace(scanner.Text())
		}
		close(lines)
	}()

	heartbeat := time.NewTicker(20 * time.Second)
	defer heartbeat.Stop()

	logger.Log.Info(usage)

	// Write loop
	for {
		select {
		case <-done:
			return
		case <-interrupt:
			logger.Log.Info("Interrupt received, closing connection.")
			err := c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			if err != nil {
				logger.Log.Infof("Write close error: %v", err)
			}
			select {
			case <-done:
			case <-time.After(time.Second):
			}
			return
		case <-heartbeat.C:
			if err := send(c, network.MsgTypeHeartbeat, nil); err != nil {
				logger.Log.Infof("Write error: %v", err)
				return
			}
		case line, ok := <-lines:
			if !ok {
				return
			}
			if err := command(c, line, *name); err != nil {
				logger.Log.Infof("Write error: %v", err)
				return
			}
		}
	}
}

func command(c *websocket.Conn, line, name string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	switch fields[0] {
	case "create":
		return send(c, network.MsgTypeCreateRoom, network.CreateRoomRequest{Name: name})
	case "join":
		if len(fields) < 2 {
			logger.Log.Info("usage: join <code or link>")
			return nil
		}
		return send(c, network.MsgTypeJoinRoom, network.JoinRoomRequest{RoomID: fields[1], Name: name})
	case "ready":
		return send(c, network.MsgTypeSetReady, network.SetReadyRequest{Ready: true})
	case "unready":
		return send(c, network.MsgTypeSetReady, network.SetReadyRequest{Ready: false})
	case "start":
		return send(c, network.MsgTypeStartGame, nil)
	case "roll":
		return send(c, network.MsgTypeRollDice, nil)
	case "leave":
		return send(c, network.MsgTypeLeaveRoom, nil)
	case "quit":
		return c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	default:
		logger.Log.Info(usage)
		return nil
	}
}
