package game

import (
	"context"
	"fmt"
	rand "math/rand/v2"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/lox/bingobot/internal/bingo"
)

// Winner is one player satisfying the win rule at a broadcast boundary.
type Winner struct {
	ID   PlayerID
	Name string
}

// CallResult reports the outcome of drawing a number.
type CallResult struct {
	Number  int
	Winners []Winner
}

// MarkResult reports the outcome of an accepted mark.
type MarkResult struct {
	Won     bool
	Winners []Winner
}

// Engine owns the game state and serializes every mutation. The two
// state-mutating entry points, CallNext and Mark, hold the engine lock for
// their full read-evaluate-write sequence; outbound deliveries begin only
// after the mutation has committed.
type Engine struct {
	mu      sync.Mutex
	state   *state
	courier Courier
	store   Store
	logger  *log.Logger
	rng     *rand.Rand
	admins  map[PlayerID]bool
}

// NewEngine creates an engine with an empty state. Call Restore to pick up a
// persisted snapshot.
func NewEngine(logger *log.Logger, courier Courier, store Store, rng *rand.Rand, admins []PlayerID) *Engine {
	adminSet := make(map[PlayerID]bool, len(admins))
	for _, id := range admins {
		adminSet[id] = true
	}
	return &Engine{
		state:   newState(),
		courier: courier,
		store:   store,
		logger:  logger.WithPrefix("engine"),
		rng:     rng,
		admins:  adminSet,
	}
}

// Restore loads the persisted snapshot, if any. A missing snapshot starts an
// empty game; an unreadable one is logged and the engine starts empty.
func (e *Engine) Restore() {
	snap, ok, err := e.store.Load()
	if err != nil {
		e.logger.Warn("Failed to load saved state, starting fresh", "error", err)
		return
	}
	if !ok {
		e.logger.Info("No saved state found, starting fresh")
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.state.restore(snap); err != nil {
		e.logger.Warn("Saved state is corrupt, starting fresh", "error", err)
		e.state.clear()
		return
	}
	e.logger.Info("Restored saved state",
		"players", len(e.state.players),
		"called", len(e.state.called),
		"active", e.state.active)
}

// IsAdmin reports whether id is on the administrator allow-list.
func (e *Engine) IsAdmin(id PlayerID) bool {
	return e.admins[id]
}

// Active reports whether a game is in progress.
func (e *Engine) Active() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.active
}

// persist writes a snapshot at a mutation boundary. A write failure leaves
// the in-memory state authoritative and play continues.
func (e *Engine) persist() {
	if err := e.store.Save(e.state.snapshot()); err != nil {
		e.logger.Warn("Failed to save state", "error", err)
	}
}

// StartGame clears all players and call history and activates a fresh round.
func (e *Engine) StartGame(ctx context.Context, caller PlayerID) error {
	if !e.IsAdmin(caller) {
		return ErrNotAdmin
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.clear()
	e.state.active = true
	e.persist()
	e.logger.Info("New game started", "admin", caller)
	return nil
}

// Reset clears all state unconditionally.
func (e *Engine) Reset(ctx context.Context, caller PlayerID) error {
	if !e.IsAdmin(caller) {
		return ErrNotAdmin
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.clear()
	e.persist()
	e.logger.Info("Game state reset", "admin", caller)
	return nil
}

// Join adds a player to the active game, deals them a card and delivers
// their card message. The card starts fully unmarked regardless of any calls
// made before the player joined.
func (e *Engine) Join(ctx context.Context, id PlayerID, chatID int64, name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.state.active {
		return ErrGameInactive
	}
	if _, ok := e.state.players[id]; ok {
		return ErrAlreadyJoined
	}

	card := bingo.NewCard(e.rng)
	messageID, err := e.courier.Send(ctx, chatID, bingo.Render(card, e.state.last))
	if err != nil {
		return fmt.Errorf("deliver card: %w", err)
	}

	e.state.players[id] = &Player{
		ID:   id,
		Name: name,
		Card: card,
		Dest: Destination{ChatID: chatID, MessageID: messageID},
	}
	e.persist()
	e.logger.Info("Player joined", "player", id, "name", name)
	return nil
}

// CallNext draws the next uncalled number, auto-marks every matching cell on
// every card, and ends the round with a single winner broadcast if any player
// now satisfies the win rule.
func (e *Engine) CallNext(ctx context.Context, caller PlayerID) (CallResult, error) {
	if !e.IsAdmin(caller) {
		return CallResult{}, ErrNotAdmin
	}

	e.mu.Lock()

	if !e.state.active {
		e.mu.Unlock()
		return CallResult{}, ErrGameInactive
	}
	remaining := e.state.remaining()
	if len(remaining) == 0 {
		e.mu.Unlock()
		return CallResult{}, ErrNoNumbersLeft
	}

	number := remaining[e.rng.IntN(len(remaining))]
	e.state.called = append(e.state.called, number)
	e.state.last = number

	// Calling is authoritative confirmation the number occurred, so matching
	// cells are marked directly. A player claiming a cell ahead of the call
	// is rejected in Mark instead.
	for _, p := range e.state.players {
		for row := 0; row < bingo.Size; row++ {
			for col := 0; col < bingo.Size; col++ {
				if p.Card[row][col] == bingo.Cell(number) {
					p.Card[row][col] = bingo.Marked
				}
			}
		}
	}

	winners := e.currentWinners()
	if len(winners) > 0 {
		e.state.active = false
	}
	e.persist()

	refreshes := e.cardRefreshes()
	var announcement string
	var recipients []int64
	if len(winners) > 0 {
		announcement = fmt.Sprintf("🎉 BINGO!\nLast number: %s\n\nWinners:\n%s",
			bingo.Call(number), winnerList(winners))
		recipients = e.broadcastRecipients()
	}
	e.mu.Unlock()

	e.refreshCards(ctx, refreshes)
	if announcement != "" {
		e.broadcast(ctx, recipients, announcement)
	}

	e.logger.Info("Called number", "number", bingo.Call(number), "winners", len(winners))
	return CallResult{Number: number, Winners: winners}, nil
}

// Mark applies a player's cell press. The cell must be free or hold a number
// that has already been called; anything else is rejected without mutation.
// A non-winning mark refreshes only that player's view and writes nothing to
// the store; this is the high-frequency path.
func (e *Engine) Mark(ctx context.Context, id PlayerID, row, col int) (MarkResult, error) {
	if row < 0 || row >= bingo.Size || col < 0 || col >= bingo.Size {
		return MarkResult{}, ErrInvalidCell
	}

	e.mu.Lock()

	p, ok := e.state.players[id]
	if !ok {
		e.mu.Unlock()
		return MarkResult{}, ErrNotJoined
	}

	cell := p.Card[row][col]
	if cell != bingo.Free && !(cell > 0 && e.state.hasCalled(int(cell))) {
		e.mu.Unlock()
		return MarkResult{}, ErrNotYetCalled
	}

	p.Card[row][col] = bingo.Marked

	if !bingo.HasBingo(p.Card) {
		refresh := cardRefresh{dest: p.Dest, text: bingo.Render(p.Card, e.state.last)}
		e.mu.Unlock()

		e.refreshCards(ctx, []cardRefresh{refresh})
		return MarkResult{}, nil
	}

	// Rescan every player so simultaneous winners share one broadcast.
	winners := e.currentWinners()
	e.state.active = false
	e.persist()

	winnerChat := p.Dest.ChatID
	refresh := cardRefresh{dest: p.Dest, text: bingo.Render(p.Card, e.state.last)}
	announcement := fmt.Sprintf("🎉 BINGO!\nWinners for number %s:\n%s",
		e.lastCallText(), winnerList(winners))
	recipients := e.broadcastRecipients()
	e.mu.Unlock()

	e.refreshCards(ctx, []cardRefresh{refresh})
	if _, err := e.courier.Send(ctx, winnerChat, "🏆 You got BINGO! (2 lines)"); err != nil {
		e.logger.Warn("Failed to send private winner message", "player", id, "error", err)
	}
	e.broadcast(ctx, recipients, announcement)

	e.logger.Info("Mark ended the round", "player", id, "winners", len(winners))
	return MarkResult{Won: true, Winners: winners}, nil
}

// lastCallText names the last called number, or "N/A" before the first call.
// Caller must hold the engine lock.
func (e *Engine) lastCallText() string {
	if e.state.last == 0 {
		return "N/A"
	}
	return bingo.Call(e.state.last)
}

// currentWinners collects every player currently satisfying the win rule.
// Caller must hold the engine lock.
func (e *Engine) currentWinners() []Winner {
	var winners []Winner
	for _, p := range e.state.players {
		if bingo.HasBingo(p.Card) {
			winners = append(winners, Winner{ID: p.ID, Name: p.Name})
		}
	}
	return winners
}

func winnerList(winners []Winner) string {
	names := make([]string, len(winners))
	for i, w := range winners {
		names[i] = "- " + w.Name
	}
	return strings.Join(names, "\n")
}

// CalledNumbers returns a copy of the call history in call order.
func (e *Engine) CalledNumbers() []int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]int(nil), e.state.called...)
}

// LastCalled returns the most recent call, ok=false before the first call.
func (e *Engine) LastCalled() (int, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.last, e.state.last != 0
}

// LastN returns up to n of the most recent calls in call order.
func (e *Engine) LastN(n int) []int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if n > len(e.state.called) {
		n = len(e.state.called)
	}
	return append([]int(nil), e.state.called[len(e.state.called)-n:]...)
}

// CardView renders a player's current card for re-display.
func (e *Engine) CardView(id PlayerID) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.state.players[id]
	if !ok {
		return "", ErrNotJoined
	}
	return bingo.Render(p.Card, e.state.last), nil
}
