package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/lox/bingobot/internal/game"
)

// Server is the websocket chat transport. It routes client actions to the
// game engine and implements game.Courier so the engine can deliver card
// views and announcements to connected chats.
type Server struct {
	cfg         *Config
	upgrader    websocket.Upgrader
	engine      *game.Engine
	autoCaller  *game.AutoCaller
	connections map[*Connection]bool
	register    chan *Connection
	unregister  chan *Connection
	logger      *log.Logger
	mu          sync.RWMutex
	ctx         context.Context
	cancel      context.CancelFunc

	// messageIDs hands out chat message handles for edit targeting
	messageIDs atomic.Int64
}

// NewServer creates a websocket server. The engine is attached afterwards
// with SetEngine: the engine needs the server as its courier, so the server
// is constructed first.
func NewServer(cfg *Config, logger *log.Logger) *Server {
	ctx, cancel := context.WithCancel(context.Background())

	return &Server{
		cfg: cfg,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Chat clients connect from anywhere; identity is the hello
				// payload plus the admin allow-list.
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		connections: make(map[*Connection]bool),
		register:    make(chan *Connection),
		unregister:  make(chan *Connection),
		logger:      logger.WithPrefix("server"),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// SetEngine attaches the game engine once it has been constructed with this
// server as its courier.
func (s *Server) SetEngine(engine *game.Engine) {
	s.engine = engine
}

// SetAutoCaller attaches the auto-caller controlled by the autocall action.
func (s *Server) SetAutoCaller(ac *game.AutoCaller) {
	s.autoCaller = ac
}

// Handler returns the HTTP handler serving /ws and /health.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	return mux
}

// Start runs the connection loop and serves until the listener fails.
func (s *Server) Start() error {
	go s.run()

	s.logger.Info("Starting websocket server", "addr", s.cfg.Server.Addr())
	return http.ListenAndServe(s.cfg.Server.Addr(), s.Handler())
}

// Stop closes all connections.
func (s *Server) Stop() error {
	s.cancel()

	s.mu.Lock()
	for conn := range s.connections {
		_ = conn.Close()
	}
	s.mu.Unlock()

	return nil
}

// run handles connection lifecycle.
func (s *Server) run() {
	for {
		select {
		case conn := <-s.register:
			s.mu.Lock()
			s.connections[conn] = true
			total := len(s.connections)
			s.mu.Unlock()
			s.logger.Info("Client connected", "total", total)

		case conn := <-s.unregister:
			s.mu.Lock()
			if _, ok := s.connections[conn]; ok {
				delete(s.connections, conn)
				_ = conn.Close()
			}
			total := len(s.connections)
			s.mu.Unlock()
			s.logger.Info("Client disconnected", "total", total)

		case <-s.ctx.Done():
			return
		}
	}
}

// handleWebSocket handles websocket upgrade requests.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection", "error", err)
		return
	}

	client := NewConnection(conn, s, s.logger)
	s.register <- client
	client.Start()

	go func() {
		<-client.ctx.Done()
		select {
		case s.unregister <- client:
		case <-s.ctx.Done():
		}
	}()
}

// handleHealth handles health check requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "OK")
}

// findChat returns the connection identified as the given chat.
func (s *Server) findChat(chatID int64) (*Connection, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for conn := range s.connections {
		if conn.ChatID() == chatID {
			return conn, true
		}
	}
	return nil, false
}

// Send delivers a new chat message and returns its handle.
// Implements game.Courier.
func (s *Server) Send(ctx context.Context, chatID int64, text string) (int64, error) {
	conn, ok := s.findChat(chatID)
	if !ok {
		return 0, fmt.Errorf("chat %d not connected", chatID)
	}

	messageID := s.messageIDs.Add(1)
	msg, err := NewMessage(MessageTypeChatMessage, ChatMessageData{MessageID: messageID, Text: text})
	if err != nil {
		return 0, err
	}
	if err := conn.SendMessage(msg); err != nil {
		return 0, err
	}
	return messageID, nil
}

// Edit replaces the content of a previously delivered chat message.
// Implements game.Courier.
func (s *Server) Edit(ctx context.Context, chatID, messageID int64, text string) error {
	conn, ok := s.findChat(chatID)
	if !ok {
		return fmt.Errorf("chat %d not connected", chatID)
	}

	msg, err := NewMessage(MessageTypeChatEdit, ChatEditData{MessageID: messageID, Text: text})
	if err != nil {
		return err
	}
	return conn.SendMessage(msg)
}
