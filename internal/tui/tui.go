// Package tui is an interactive terminal chat client for the bingo server.
// It renders the player's card, keeps a scrollback of notices and
// announcements, and maps key presses onto the game menu.
package tui

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/lox/bingobot/internal/bingo"
	"github.com/lox/bingobot/internal/server"
)

const maxNotices = 8

// Model is the bubbletea model for the bingo client.
type Model struct {
	client *Client
	logger *log.Logger

	playerID int64
	name     string
	admin    bool

	nameInput  textinput.Model
	identified bool

	card          string
	cardMessageID int64
	cursorRow     int
	cursorCol     int

	autoCall bool
	notices  []string
	quitting bool
	err      error
}

// NewModel creates the client model. If name is empty the player is prompted
// for one before the session is identified.
func NewModel(client *Client, logger *log.Logger, playerID int64, name string) Model {
	input := textinput.New()
	input.Placeholder = "Your name"
	input.CharLimit = 32
	input.Focus()

	return Model{
		client:    client,
		logger:    logger,
		playerID:  playerID,
		name:      name,
		nameInput: input,
		cursorRow: bingo.CenterCell,
		cursorCol: bingo.CenterCell,
	}
}

func (m Model) Init() tea.Cmd {
	if m.name != "" {
		return m.identify(m.name)
	}
	return textinput.Blink
}

func (m Model) identify(name string) tea.Cmd {
	return func() tea.Msg {
		if err := m.client.Hello(m.playerID, name); err != nil {
			return DisconnectedMsg{Err: err}
		}
		return nil
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case ServerMsg:
		return m.handleServer(msg.Message), nil
	case DisconnectedMsg:
		m.err = msg.Err
		m.quitting = true
		return m, tea.Quit
	}

	if !m.identified {
		var cmd tea.Cmd
		m.nameInput, cmd = m.nameInput.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		m.quitting = true
		return m, tea.Quit
	}

	if !m.identified {
		if msg.Type == tea.KeyEnter {
			name := strings.TrimSpace(m.nameInput.Value())
			if name == "" {
				return m, nil
			}
			m.name = name
			return m, m.identify(name)
		}
		var cmd tea.Cmd
		m.nameInput, cmd = m.nameInput.Update(msg)
		return m, cmd
	}

	switch msg.String() {
	case "q":
		m.quitting = true
		return m, tea.Quit
	case "up":
		if m.cursorRow > 0 {
			m.cursorRow--
		}
	case "down":
		if m.cursorRow < bingo.Size-1 {
			m.cursorRow++
		}
	case "left":
		if m.cursorCol > 0 {
			m.cursorCol--
		}
	case "right":
		if m.cursorCol < bingo.Size-1 {
			m.cursorCol++
		}
	case "enter", " ":
		return m, m.action(func() error { return m.client.Mark(m.cursorRow, m.cursorCol) })
	case "j":
		return m, m.action(m.client.Join)
	case "v":
		return m, m.action(m.client.ShowCard)
	case "n":
		return m, m.action(m.client.CalledNumbers)
	case "5":
		return m, m.action(m.client.LastFive)
	case "s":
		return m, m.action(m.client.StartGame)
	case "c":
		return m, m.action(m.client.CallNext)
	case "r":
		return m, m.action(m.client.Reset)
	case "a":
		enable := !m.autoCall
		return m, m.action(func() error { return m.client.AutoCall(enable) })
	}
	return m, nil
}

func (m Model) action(fn func() error) tea.Cmd {
	return func() tea.Msg {
		if err := fn(); err != nil {
			return DisconnectedMsg{Err: err}
		}
		return nil
	}
}

func (m Model) handleServer(msg *server.Message) Model {
	switch msg.Type {
	case server.MessageTypeWelcome:
		var data server.WelcomeData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			m.logger.Warn("Bad welcome payload", "error", err)
			return m
		}
		m.identified = true
		m.admin = data.Admin
		m.pushNotice(NoticeStyle.Render(data.Text))

	case server.MessageTypeChatMessage:
		var data server.ChatMessageData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			return m
		}
		if strings.Contains(data.Text, bingo.Header) {
			m.card = data.Text
			m.cardMessageID = data.MessageID
		} else {
			m.pushNotice(data.Text)
		}

	case server.MessageTypeChatEdit:
		var data server.ChatEditData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			return m
		}
		if data.MessageID == m.cardMessageID {
			m.card = data.Text
		} else {
			m.pushNotice(data.Text)
		}

	case server.MessageTypeCalledList:
		var data server.CalledListData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			return m
		}
		m.pushNotice("🔢 " + data.Formatted)

	case server.MessageTypeRejection:
		var data server.RejectionData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			return m
		}
		m.pushNotice(RejectionStyle.Render("❌ " + data.Reason))

	case server.MessageTypeNotice:
		var data server.NoticeData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			return m
		}
		switch data.Text {
		case "⏱️ Auto-call enabled.":
			m.autoCall = true
		case "⏹️ Auto-call disabled.":
			m.autoCall = false
		}
		m.pushNotice(NoticeStyle.Render(data.Text))

	case server.MessageTypeError:
		var data server.ErrorData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			return m
		}
		m.pushNotice(RejectionStyle.Render("⚠️ " + data.Message))
	}
	return m
}

func (m *Model) pushNotice(text string) {
	m.notices = append(m.notices, text)
	if len(m.notices) > maxNotices {
		m.notices = m.notices[len(m.notices)-maxNotices:]
	}
}

func (m Model) View() string {
	if m.quitting {
		if m.err != nil {
			return fmt.Sprintf("Disconnected: %v\n", m.err)
		}
		return "Goodbye!\n"
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("🎱 Bingo"))
	b.WriteString("\n\n")

	if !m.identified {
		b.WriteString("Who's playing?\n\n")
		b.WriteString(m.nameInput.View())
		b.WriteString("\n\n")
		b.WriteString(HelpStyle.Render("enter: connect • ctrl+c: quit"))
		b.WriteString("\n")
		return b.String()
	}

	if m.card != "" {
		b.WriteString(CardStyle.Render(m.card))
		b.WriteString("\n")
		b.WriteString(CursorStyle.Render(fmt.Sprintf("▸ cursor: row %d, col %d", m.cursorRow+1, m.cursorCol+1)))
		b.WriteString("\n\n")
	} else {
		b.WriteString(HelpStyle.Render("No card yet. Press j to join the game."))
		b.WriteString("\n\n")
	}

	for _, notice := range m.notices {
		b.WriteString(notice)
		b.WriteString("\n")
	}
	b.WriteString("\n")

	help := "arrows: move • enter: mark • j: join • v: card • n: numbers • 5: last five • q: quit"
	if m.admin {
		help += "\ns: start • c: call • r: reset • a: auto-call"
	}
	b.WriteString(HelpStyle.Render(help))
	b.WriteString("\n")
	return b.String()
}
