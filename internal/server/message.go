// Package server is the websocket chat transport: it carries player and
// admin actions to the game engine and delivers card views, notices and
// winner announcements back to connected chats.
package server

import (
	"encoding/json"
	"time"
)

// MessageType represents a websocket message type with type safety.
type MessageType string

const (
	// Client → Server
	MessageTypeHello         MessageType = "hello"
	MessageTypeJoin          MessageType = "join"
	MessageTypeMark          MessageType = "mark"
	MessageTypeShowCard      MessageType = "show_card"
	MessageTypeCalledNumbers MessageType = "called_numbers"
	MessageTypeLastFive      MessageType = "last_five"
	MessageTypeStartGame     MessageType = "start_game"
	MessageTypeCall          MessageType = "call"
	MessageTypeReset         MessageType = "reset"
	MessageTypeAutoCall      MessageType = "autocall"

	// Server → Client
	MessageTypeWelcome     MessageType = "welcome"
	MessageTypeChatMessage MessageType = "chat_message"
	MessageTypeChatEdit    MessageType = "chat_edit"
	MessageTypeCalledList  MessageType = "called_list"
	MessageTypeRejection   MessageType = "rejection"
	MessageTypeNotice      MessageType = "notice"
	MessageTypeError       MessageType = "error"
)

// Message is the websocket envelope.
type Message struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewMessage creates a message with the current timestamp.
func NewMessage(messageType MessageType, data interface{}) (*Message, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return &Message{
		Type:      messageType,
		Data:      dataBytes,
		Timestamp: time.Now(),
	}, nil
}

// Client → Server payloads

// HelloData identifies the chat session. There is no authentication beyond
// the administrator allow-list; the ID doubles as the chat handle.
type HelloData struct {
	PlayerID int64  `json:"playerId"`
	Name     string `json:"name"`
}

type MarkData struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

type AutoCallData struct {
	Enable bool `json:"enable"`
}

// Server → Client payloads

type WelcomeData struct {
	Admin bool   `json:"admin"`
	Text  string `json:"text"`
}

// ChatMessageData is a new chat message; MessageID is the handle later
// chat_edit messages refer to.
type ChatMessageData struct {
	MessageID int64  `json:"messageId"`
	Text      string `json:"text"`
}

type ChatEditData struct {
	MessageID int64  `json:"messageId"`
	Text      string `json:"text"`
}

type CalledListData struct {
	Numbers   []int  `json:"numbers"`
	Formatted string `json:"formatted"`
}

type RejectionData struct {
	Reason string `json:"reason"`
}

type NoticeData struct {
	Text string `json:"text"`
}

type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
