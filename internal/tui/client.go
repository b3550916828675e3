package tui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/lox/bingobot/internal/server"
)

// ServerMsg wraps a message received from the game server for the update loop.
type ServerMsg struct {
	Message *server.Message
}

// DisconnectedMsg signals that the websocket connection dropped.
type DisconnectedMsg struct {
	Err error
}

// Client is a thin websocket wrapper that speaks the game server's protocol.
type Client struct {
	conn   *websocket.Conn
	logger *log.Logger
}

// Dial connects to the game server at the given websocket URL.
func Dial(url string, logger *log.Logger) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", url, err)
	}
	return &Client{conn: conn, logger: logger}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// ReadLoop pumps server messages into the bubbletea program until the
// connection drops.
func (c *Client) ReadLoop(p *tea.Program) {
	for {
		var msg server.Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			c.logger.Debug("Connection closed", "error", err)
			p.Send(DisconnectedMsg{Err: err})
			return
		}
		p.Send(ServerMsg{Message: &msg})
	}
}

func (c *Client) send(messageType server.MessageType, data interface{}) error {
	msg, err := server.NewMessage(messageType, data)
	if err != nil {
		return err
	}
	return c.conn.WriteJSON(msg)
}

// Hello identifies the player to the server.
func (c *Client) Hello(id int64, name string) error {
	return c.send(server.MessageTypeHello, server.HelloData{PlayerID: id, Name: name})
}

// Join enters the current game.
func (c *Client) Join() error {
	return c.send(server.MessageTypeJoin, nil)
}

// Mark daubs the cell at the given position on the player's card.
func (c *Client) Mark(row, col int) error {
	return c.send(server.MessageTypeMark, server.MarkData{Row: row, Col: col})
}

// ShowCard requests a fresh copy of the player's card.
func (c *Client) ShowCard() error {
	return c.send(server.MessageTypeShowCard, nil)
}

// CalledNumbers requests the full call history.
func (c *Client) CalledNumbers() error {
	return c.send(server.MessageTypeCalledNumbers, nil)
}

// LastFive requests the most recent calls.
func (c *Client) LastFive() error {
	return c.send(server.MessageTypeLastFive, nil)
}

// StartGame begins a new round. Admin only.
func (c *Client) StartGame() error {
	return c.send(server.MessageTypeStartGame, nil)
}

// CallNext draws the next number. Admin only.
func (c *Client) CallNext() error {
	return c.send(server.MessageTypeCall, nil)
}

// Reset wipes the game state. Admin only.
func (c *Client) Reset() error {
	return c.send(server.MessageTypeReset, nil)
}

// AutoCall toggles the automatic caller. Admin only.
func (c *Client) AutoCall(enable bool) error {
	return c.send(server.MessageTypeAutoCall, server.AutoCallData{Enable: enable})
}
