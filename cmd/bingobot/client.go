package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/lox/bingobot/cmd/bingobot/shared"
	"github.com/lox/bingobot/internal/randutil"
	"github.com/lox/bingobot/internal/tui"
)

// ClientCmd runs the interactive terminal chat client.
type ClientCmd struct {
	Server   string `short:"s" default:"ws://localhost:8080/ws" help:"Server websocket URL"`
	ID       int64  `help:"Chat ID to identify as (random if unset)"`
	Name     string `short:"n" help:"Player name (prompted if unset)"`
	LogFile  string `default:"bingobot-client.log" help:"Log file path"`
	LogLevel string `short:"l" default:"info" help:"Log level"`
}

func (c *ClientCmd) Run() error {
	// The TUI owns the terminal, so logs go to a file.
	logFile, err := os.OpenFile(c.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	defer func() { _ = logFile.Close() }()
	logger := shared.NewLogger(logFile, c.LogLevel)

	chatID := c.ID
	if chatID == 0 {
		rng, _ := randutil.NewFromTime()
		chatID = rng.Int64N(1_000_000_000)
	}
	logger.Info("Starting bingo client", "server", c.Server, "chatId", chatID)

	client, err := tui.Dial(c.Server, logger)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	p := tea.NewProgram(tui.NewModel(client, logger, chatID, c.Name), tea.WithAltScreen())
	go client.ReadLoop(p)

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running client: %w", err)
	}
	return nil
}
