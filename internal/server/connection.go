package server

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/lox/bingobot/internal/bingo"
	"github.com/lox/bingobot/internal/game"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 8192

	// How many of the most recent calls the last-five view shows
	lastFiveCount = 5
)

var ErrConnectionClosed = websocket.ErrCloseSent

// Connection represents one websocket chat session.
type Connection struct {
	conn      *websocket.Conn
	send      chan *Message
	server    *Server
	logger    *log.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	mu        sync.RWMutex
	closeOnce sync.Once

	// identity from the hello message; chatID doubles as the player id
	chatID int64
	name   string
}

// NewConnection creates a new connection wrapper.
func NewConnection(conn *websocket.Conn, server *Server, logger *log.Logger) *Connection {
	ctx, cancel := context.WithCancel(context.Background())

	return &Connection{
		conn:   conn,
		send:   make(chan *Message, 256),
		server: server,
		logger: logger.WithPrefix("conn"),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start begins handling the connection.
func (c *Connection) Start() {
	go c.writePump()
	go c.readPump()
}

// Close closes the connection.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		close(c.send)
		err = c.conn.Close()
	})
	return err
}

// SendMessage queues a message for delivery to this chat.
func (c *Connection) SendMessage(msg *Message) error {
	defer func() {
		if r := recover(); r != nil {
			// Channel was closed during shutdown
			c.logger.Debug("Attempted to send message on closed connection", "error", r)
		}
	}()

	select {
	case c.send <- msg:
		return nil
	case <-c.ctx.Done():
		return c.ctx.Err()
	default:
		c.logger.Warn("Connection send buffer full, closing connection")
		_ = c.Close()
		return ErrConnectionClosed
	}
}

// ChatID returns the identified chat, 0 before hello.
func (c *Connection) ChatID() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.chatID
}

// Name returns the display name from hello.
func (c *Connection) Name() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.name
}

func (c *Connection) setIdentity(chatID int64, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.chatID = chatID
	c.name = name
}

// readPump handles incoming messages from the client.
func (c *Connection) readPump() {
	defer func() { _ = c.Close() }()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		var msg Message
		err := c.conn.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", "error", err)
			}
			break
		}

		c.handleMessage(&msg)
	}
}

// writePump handles outgoing messages to the client.
func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(message); err != nil {
				c.logger.Error("Failed to write message", "error", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}

// handleMessage processes one client action.
func (c *Connection) handleMessage(msg *Message) {
	c.logger.Debug("Received message", "type", msg.Type, "chat", c.ChatID())

	if msg.Type == MessageTypeHello {
		c.handleHello(msg)
		return
	}

	id := game.PlayerID(c.ChatID())
	if id == 0 {
		c.sendError("not_identified", "Send hello before any other action")
		return
	}

	switch msg.Type {
	case MessageTypeJoin:
		c.handleJoin(id)
	case MessageTypeMark:
		c.handleMark(id, msg)
	case MessageTypeShowCard:
		c.handleShowCard(id)
	case MessageTypeCalledNumbers:
		c.sendCalledList(c.server.engine.CalledNumbers(),
			"⏳ No numbers have been called yet.")
	case MessageTypeLastFive:
		c.sendCalledList(c.server.engine.LastN(lastFiveCount),
			"⏳ Not enough numbers have been called yet.")
	case MessageTypeStartGame:
		c.handleStartGame(id)
	case MessageTypeCall:
		c.handleCall(id)
	case MessageTypeReset:
		c.handleReset(id)
	case MessageTypeAutoCall:
		c.handleAutoCall(id, msg)
	default:
		c.sendError("unknown_action", fmt.Sprintf("Unknown action %q", msg.Type))
	}
}

func (c *Connection) handleHello(msg *Message) {
	var data HelloData
	if err := json.Unmarshal(msg.Data, &data); err != nil || data.PlayerID == 0 {
		c.sendError("invalid_message", "Failed to parse hello data")
		return
	}

	name := data.Name
	if name == "" {
		name = fmt.Sprintf("%d", data.PlayerID)
	}
	c.setIdentity(data.PlayerID, name)

	admin := c.server.engine.IsAdmin(game.PlayerID(data.PlayerID))
	c.reply(MessageTypeWelcome, WelcomeData{
		Admin: admin,
		Text:  "🎉 Welcome to Bingo! Join or manage the game.",
	})
}

func (c *Connection) handleJoin(id game.PlayerID) {
	err := c.server.engine.Join(c.ctx, id, int64(id), c.Name())
	if err != nil {
		c.reject(err)
		return
	}
	c.sendNotice("🎟️ You've joined the game!")
}

func (c *Connection) handleMark(id game.PlayerID, msg *Message) {
	var data MarkData
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		c.sendError("invalid_message", "Failed to parse mark data")
		return
	}

	if _, err := c.server.engine.Mark(c.ctx, id, data.Row, data.Col); err != nil {
		c.reject(err)
	}
}

func (c *Connection) handleShowCard(id game.PlayerID) {
	view, err := c.server.engine.CardView(id)
	if err != nil {
		c.reject(err)
		return
	}
	if _, err := c.server.Send(c.ctx, int64(id), view); err != nil {
		c.logger.Warn("Failed to re-send card", "chat", id, "error", err)
	}
}

func (c *Connection) handleStartGame(id game.PlayerID) {
	if err := c.server.engine.StartGame(c.ctx, id); err != nil {
		c.reject(err)
		return
	}
	c.sendNotice("🎮 New Bingo game started! Join using the menu.")
}

func (c *Connection) handleCall(id game.PlayerID) {
	result, err := c.server.engine.CallNext(c.ctx, id)
	if err != nil {
		c.reject(err)
		return
	}
	c.sendNotice(fmt.Sprintf("📢 Called %s", bingo.Call(result.Number)))
}

func (c *Connection) handleReset(id game.PlayerID) {
	if err := c.server.engine.Reset(c.ctx, id); err != nil {
		c.reject(err)
		return
	}
	c.sendNotice("🔁 Game reset.")
}

func (c *Connection) handleAutoCall(id game.PlayerID, msg *Message) {
	var data AutoCallData
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		c.sendError("invalid_message", "Failed to parse autocall data")
		return
	}

	if !c.server.engine.IsAdmin(id) {
		c.reject(game.ErrNotAdmin)
		return
	}

	if data.Enable {
		// Bound to the server lifetime, not this connection: auto-calling
		// keeps going if the admin disconnects.
		if err := c.server.autoCaller.Start(c.server.ctx); err != nil {
			c.reject(err)
			return
		}
		c.sendNotice("⏱️ Auto-call enabled.")
		return
	}

	if err := c.server.autoCaller.Stop(); err != nil {
		c.reject(err)
		return
	}
	c.sendNotice("⏹️ Auto-call disabled.")
}

func (c *Connection) sendCalledList(numbers []int, emptyNotice string) {
	if len(numbers) == 0 {
		c.sendNotice(emptyNotice)
		return
	}

	formatted := make([]string, len(numbers))
	for i, n := range numbers {
		formatted[i] = bingo.Call(n)
	}
	c.reply(MessageTypeCalledList, CalledListData{
		Numbers:   numbers,
		Formatted: strings.Join(formatted, ", "),
	})
}

// reject reports a user-facing rejection; anything else is an internal error.
func (c *Connection) reject(err error) {
	if game.IsRejection(err) {
		c.reply(MessageTypeRejection, RejectionData{Reason: err.Error()})
		return
	}
	c.logger.Error("Action failed", "chat", c.ChatID(), "error", err)
	c.sendError("internal", "Something went wrong, try again")
}

func (c *Connection) sendNotice(text string) {
	c.reply(MessageTypeNotice, NoticeData{Text: text})
}

func (c *Connection) sendError(code, message string) {
	c.reply(MessageTypeError, ErrorData{Code: code, Message: message})
}

func (c *Connection) reply(messageType MessageType, data interface{}) {
	msg, err := NewMessage(messageType, data)
	if err != nil {
		c.logger.Error("Failed to create message", "type", messageType, "error", err)
		return
	}
	if err := c.SendMessage(msg); err != nil {
		c.logger.Debug("Failed to send reply", "type", messageType, "error", err)
	}
}
