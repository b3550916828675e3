package game

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/bingobot/internal/bingo"
	"github.com/lox/bingobot/internal/randutil"
)

const (
	adminID  PlayerID = 1000
	aliceID  PlayerID = 1
	bobID    PlayerID = 2
	adminTwo PlayerID = 1001
)

func testLogger() *log.Logger {
	return log.New(io.Discard)
}

type sentMessage struct {
	chat int64
	text string
}

// fakeCourier records deliveries and can simulate per-chat failures.
type fakeCourier struct {
	mu        sync.Mutex
	nextID    int64
	sends     []sentMessage
	edits     []sentMessage
	failChats map[int64]bool
}

func newFakeCourier() *fakeCourier {
	return &fakeCourier{failChats: make(map[int64]bool)}
}

func (c *fakeCourier) Send(ctx context.Context, chatID int64, text string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failChats[chatID] {
		return 0, fmt.Errorf("chat %d unreachable", chatID)
	}
	c.nextID++
	c.sends = append(c.sends, sentMessage{chat: chatID, text: text})
	return c.nextID, nil
}

func (c *fakeCourier) Edit(ctx context.Context, chatID, messageID int64, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failChats[chatID] {
		return fmt.Errorf("chat %d unreachable", chatID)
	}
	c.edits = append(c.edits, sentMessage{chat: chatID, text: text})
	return nil
}

func (c *fakeCourier) sendsTo(chatID int64) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, m := range c.sends {
		if m.chat == chatID {
			out = append(out, m.text)
		}
	}
	return out
}

func (c *fakeCourier) editsTo(chatID int64) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, m := range c.edits {
		if m.chat == chatID {
			out = append(out, m.text)
		}
	}
	return out
}

// memStore keeps the latest snapshot in memory and counts writes.
type memStore struct {
	mu       sync.Mutex
	snap     Snapshot
	has      bool
	saves    int
	failSave bool
	loadErr  error
}

func (s *memStore) Load() (Snapshot, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return Snapshot{}, false, s.loadErr
	}
	return s.snap, s.has, nil
}

func (s *memStore) Save(snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSave {
		return errors.New("disk full")
	}
	s.snap = snap
	s.has = true
	s.saves++
	return nil
}

func (s *memStore) saveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

func newTestEngine(seed int64) (*Engine, *fakeCourier, *memStore) {
	courier := newFakeCourier()
	store := &memStore{}
	engine := NewEngine(testLogger(), courier, store, randutil.New(seed), []PlayerID{adminID, adminTwo})
	return engine, courier, store
}

// cardCompletingLines returns a realistic card with the given rows fully
// marked. The center stays free.
func cardCompletingLines(seed int64, rows ...int) bingo.Card {
	card := bingo.NewCard(randutil.New(seed))
	for _, row := range rows {
		for col := 0; col < bingo.Size; col++ {
			if card[row][col] != bingo.Free {
				card[row][col] = bingo.Marked
			}
		}
	}
	return card
}

func restoredEngine(t *testing.T, snap Snapshot) (*Engine, *fakeCourier, *memStore) {
	t.Helper()
	courier := newFakeCourier()
	store := &memStore{snap: snap, has: true}
	engine := NewEngine(testLogger(), courier, store, randutil.New(1), []PlayerID{adminID})
	engine.Restore()
	return engine, courier, store
}

func playerSnapshot(card bingo.Card, chat int64, name string) PlayerSnapshot {
	return PlayerSnapshot{Card: card, Dest: Destination{ChatID: chat, MessageID: chat * 10}, Name: name}
}

func TestStartGameRequiresAdmin(t *testing.T) {
	t.Parallel()
	engine, _, store := newTestEngine(42)

	require.ErrorIs(t, engine.StartGame(context.Background(), aliceID), ErrNotAdmin)
	assert.False(t, engine.Active())
	assert.Equal(t, 0, store.saveCount())

	require.NoError(t, engine.StartGame(context.Background(), adminID))
	assert.True(t, engine.Active())
	assert.Equal(t, 1, store.saveCount())
}

func TestJoinRequiresActiveGame(t *testing.T) {
	t.Parallel()
	engine, _, _ := newTestEngine(42)

	err := engine.Join(context.Background(), aliceID, int64(aliceID), "alice")
	require.ErrorIs(t, err, ErrGameInactive)
}

func TestJoinTwiceRejected(t *testing.T) {
	t.Parallel()
	engine, courier, store := newTestEngine(42)
	ctx := context.Background()

	require.NoError(t, engine.StartGame(ctx, adminID))
	require.NoError(t, engine.Join(ctx, aliceID, int64(aliceID), "alice"))
	require.ErrorIs(t, engine.Join(ctx, aliceID, int64(aliceID), "alice"), ErrAlreadyJoined)

	// One card message delivered, one persistence write per boundary
	// (start + join).
	assert.Len(t, courier.sendsTo(int64(aliceID)), 1)
	assert.Equal(t, 2, store.saveCount())
}

func TestJoinDeliveryFailureLeavesPlayerOut(t *testing.T) {
	t.Parallel()
	engine, courier, _ := newTestEngine(42)
	ctx := context.Background()
	courier.failChats[int64(aliceID)] = true

	require.NoError(t, engine.StartGame(ctx, adminID))
	err := engine.Join(ctx, aliceID, int64(aliceID), "alice")
	require.Error(t, err)
	assert.False(t, IsRejection(err))

	_, viewErr := engine.CardView(aliceID)
	assert.ErrorIs(t, viewErr, ErrNotJoined)
}

func TestCallNextRejections(t *testing.T) {
	t.Parallel()
	engine, _, _ := newTestEngine(42)
	ctx := context.Background()

	_, err := engine.CallNext(ctx, aliceID)
	require.ErrorIs(t, err, ErrNotAdmin)

	_, err = engine.CallNext(ctx, adminID)
	require.ErrorIs(t, err, ErrGameInactive)
}

func TestCallNeverRepeatsAndExhausts(t *testing.T) {
	t.Parallel()
	engine, _, _ := newTestEngine(42)
	ctx := context.Background()

	require.NoError(t, engine.StartGame(ctx, adminID))

	seen := make(map[int]bool)
	for i := 0; i < bingo.MaxNumber; i++ {
		result, err := engine.CallNext(ctx, adminID)
		require.NoError(t, err)
		assert.False(t, seen[result.Number], "number %d called twice", result.Number)
		seen[result.Number] = true
	}
	assert.Len(t, engine.CalledNumbers(), bingo.MaxNumber)

	_, err := engine.CallNext(ctx, adminID)
	require.ErrorIs(t, err, ErrNoNumbersLeft)
	assert.Len(t, engine.CalledNumbers(), bingo.MaxNumber)
}

func TestCalledNumberViews(t *testing.T) {
	t.Parallel()
	engine, _, _ := newTestEngine(42)
	ctx := context.Background()

	require.NoError(t, engine.StartGame(ctx, adminID))
	assert.Empty(t, engine.LastN(5))
	_, ok := engine.LastCalled()
	assert.False(t, ok)

	for i := 0; i < 8; i++ {
		_, err := engine.CallNext(ctx, adminID)
		require.NoError(t, err)
	}

	called := engine.CalledNumbers()
	require.Len(t, called, 8)
	assert.Equal(t, called[3:], engine.LastN(5))

	last, ok := engine.LastCalled()
	require.True(t, ok)
	assert.Equal(t, called[7], last)
}

func TestMarkRejectsUncalledNumber(t *testing.T) {
	t.Parallel()
	card := bingo.NewCard(randutil.New(5))
	snap := Snapshot{
		Players: map[string]PlayerSnapshot{
			aliceID.String(): playerSnapshot(card, int64(aliceID), "alice"),
		},
		Active: true,
	}
	engine, courier, store := restoredEngine(t, snap)

	before, err := engine.CardView(aliceID)
	require.NoError(t, err)

	_, err = engine.Mark(context.Background(), aliceID, 0, 0)
	require.ErrorIs(t, err, ErrNotYetCalled)

	after, err := engine.CardView(aliceID)
	require.NoError(t, err)
	assert.Equal(t, before, after, "rejected mark must leave the cell unchanged")
	assert.Equal(t, 0, store.saveCount())
	assert.Empty(t, courier.edits)
}

func TestMarkRejectsUnknownPlayer(t *testing.T) {
	t.Parallel()
	engine, _, _ := newTestEngine(42)
	_, err := engine.Mark(context.Background(), bobID, 0, 0)
	require.ErrorIs(t, err, ErrNotJoined)

	_, err = engine.Mark(context.Background(), bobID, 9, 0)
	require.ErrorIs(t, err, ErrInvalidCell)
}

func TestMarkAcceptsCalledNumberWithoutPersisting(t *testing.T) {
	t.Parallel()
	card := bingo.NewCard(randutil.New(5))
	number := int(card[0][0])
	snap := Snapshot{
		Players: map[string]PlayerSnapshot{
			aliceID.String(): playerSnapshot(card, int64(aliceID), "alice"),
		},
		Called: []int{number},
		Active: true,
	}
	engine, courier, store := restoredEngine(t, snap)

	result, err := engine.Mark(context.Background(), aliceID, 0, 0)
	require.NoError(t, err)
	assert.False(t, result.Won)

	// Cheap path: the player's own view refreshes, nothing is persisted and
	// nothing is broadcast.
	assert.Len(t, courier.editsTo(int64(aliceID)), 1)
	assert.Empty(t, courier.sends)
	assert.Equal(t, 0, store.saveCount())
}

func TestMarkFreeCellAlwaysEligible(t *testing.T) {
	t.Parallel()
	card := bingo.NewCard(randutil.New(5))
	snap := Snapshot{
		Players: map[string]PlayerSnapshot{
			aliceID.String(): playerSnapshot(card, int64(aliceID), "alice"),
		},
		Active: true,
	}
	engine, _, _ := restoredEngine(t, snap)

	_, err := engine.Mark(context.Background(), aliceID, bingo.CenterCell, bingo.CenterCell)
	require.NoError(t, err)
}

func TestMarkCompletingSecondLineBroadcastsOnce(t *testing.T) {
	t.Parallel()

	// Alice is one cell short of her second line; Bob already satisfies the
	// win rule, so the broadcast must name them both.
	base := bingo.NewCard(randutil.New(5))
	missing := int(base[0][0])
	aliceCard := cardCompletingLines(5, 0, 1)
	aliceCard[0][0] = base[0][0]

	bobCard := cardCompletingLines(6, 3, 4)

	snap := Snapshot{
		Players: map[string]PlayerSnapshot{
			aliceID.String(): playerSnapshot(aliceCard, int64(aliceID), "alice"),
			bobID.String():   playerSnapshot(bobCard, int64(bobID), "bob"),
		},
		Called: []int{missing},
		Active: true,
	}
	last := missing
	snap.Last = &last

	engine, courier, store := restoredEngine(t, snap)

	result, err := engine.Mark(context.Background(), aliceID, 0, 0)
	require.NoError(t, err)
	require.True(t, result.Won)
	require.Len(t, result.Winners, 2)

	assert.False(t, engine.Active(), "winning mark ends the round")
	assert.Equal(t, 1, store.saveCount())

	// Exactly one announcement per recipient: both players and the admin,
	// each naming every winner and the triggering number.
	for _, chat := range []int64{int64(aliceID), int64(bobID), int64(adminID)} {
		var announcements []string
		for _, text := range courier.sendsTo(chat) {
			if strings.Contains(text, "BINGO!") && strings.Contains(text, "Winners") {
				announcements = append(announcements, text)
			}
		}
		require.Len(t, announcements, 1, "chat %d", chat)
		assert.Contains(t, announcements[0], "alice")
		assert.Contains(t, announcements[0], "bob")
		assert.Contains(t, announcements[0], bingo.Call(missing))
	}

	// The triggering player also gets the private acknowledgment.
	var private int
	for _, text := range courier.sendsTo(int64(aliceID)) {
		if strings.Contains(text, "You got BINGO") {
			private++
		}
	}
	assert.Equal(t, 1, private)
}

func TestCallCollectsExistingWinners(t *testing.T) {
	t.Parallel()

	// Bob already has two complete lines; any call must end the round and
	// announce him even though this call changed nothing on his card.
	snap := Snapshot{
		Players: map[string]PlayerSnapshot{
			bobID.String(): playerSnapshot(cardCompletingLines(6, 3, 4), int64(bobID), "bob"),
		},
		Active: true,
	}
	engine, courier, _ := restoredEngine(t, snap)

	result, err := engine.CallNext(context.Background(), adminID)
	require.NoError(t, err)
	require.Len(t, result.Winners, 1)
	assert.Equal(t, "bob", result.Winners[0].Name)
	assert.False(t, engine.Active())

	_, err = engine.CallNext(context.Background(), adminID)
	require.ErrorIs(t, err, ErrGameInactive)

	var announcements int
	for _, text := range courier.sendsTo(int64(bobID)) {
		if strings.Contains(text, "BINGO!") {
			announcements++
		}
	}
	assert.Equal(t, 1, announcements)
}

func TestBroadcastIsBestEffort(t *testing.T) {
	t.Parallel()

	snap := Snapshot{
		Players: map[string]PlayerSnapshot{
			aliceID.String(): playerSnapshot(cardCompletingLines(5, 0, 1), int64(aliceID), "alice"),
			bobID.String():   playerSnapshot(bingo.NewCard(randutil.New(9)), int64(bobID), "bob"),
		},
		Active: true,
	}
	engine, courier, _ := restoredEngine(t, snap)
	courier.failChats[int64(bobID)] = true

	result, err := engine.CallNext(context.Background(), adminID)
	require.NoError(t, err)
	require.NotEmpty(t, result.Winners)

	// Bob's delivery fails; alice and the admin still hear about it.
	assert.NotEmpty(t, courier.sendsTo(int64(aliceID)))
	assert.NotEmpty(t, courier.sendsTo(int64(adminID)))
}

func TestCallRefreshesAllPlayerViews(t *testing.T) {
	t.Parallel()
	engine, courier, _ := newTestEngine(42)
	ctx := context.Background()

	require.NoError(t, engine.StartGame(ctx, adminID))
	require.NoError(t, engine.Join(ctx, aliceID, int64(aliceID), "alice"))
	require.NoError(t, engine.Join(ctx, bobID, int64(bobID), "bob"))

	result, err := engine.CallNext(ctx, adminID)
	require.NoError(t, err)

	for _, chat := range []int64{int64(aliceID), int64(bobID)} {
		edits := courier.editsTo(chat)
		require.Len(t, edits, 1)
		assert.Contains(t, edits[0], bingo.Call(result.Number))
	}
}

func TestPersistWriteFailureIsNotFatal(t *testing.T) {
	t.Parallel()
	engine, _, store := newTestEngine(42)
	store.failSave = true
	ctx := context.Background()

	require.NoError(t, engine.StartGame(ctx, adminID))
	_, err := engine.CallNext(ctx, adminID)
	require.NoError(t, err)
	assert.Len(t, engine.CalledNumbers(), 1, "in-memory state stays authoritative")
}

func TestPersistenceRoundTrip(t *testing.T) {
	t.Parallel()
	engine, _, store := newTestEngine(42)
	ctx := context.Background()

	require.NoError(t, engine.StartGame(ctx, adminID))
	require.NoError(t, engine.Join(ctx, aliceID, int64(aliceID), "alice"))
	require.NoError(t, engine.Join(ctx, bobID, int64(bobID), "bob"))
	for i := 0; i < 3; i++ {
		_, err := engine.CallNext(ctx, adminID)
		require.NoError(t, err)
	}

	restored, _, _ := restoredEngine(t, store.snap)

	assert.Equal(t, engine.CalledNumbers(), restored.CalledNumbers())
	assert.Equal(t, engine.Active(), restored.Active())

	wantLast, _ := engine.LastCalled()
	gotLast, ok := restored.LastCalled()
	require.True(t, ok)
	assert.Equal(t, wantLast, gotLast)

	for _, id := range []PlayerID{aliceID, bobID} {
		want, err := engine.CardView(id)
		require.NoError(t, err)
		got, err := restored.CardView(id)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestRestoreCorruptSnapshotStartsEmpty(t *testing.T) {
	t.Parallel()
	snap := Snapshot{
		Players: map[string]PlayerSnapshot{
			"not-a-number": playerSnapshot(bingo.NewCard(randutil.New(1)), 9, "ghost"),
		},
		Active: true,
	}
	engine, _, _ := restoredEngine(t, snap)
	assert.False(t, engine.Active())
	assert.Empty(t, engine.CalledNumbers())
}

func TestIsRejection(t *testing.T) {
	t.Parallel()
	for _, err := range []error{ErrNotAdmin, ErrGameInactive, ErrNotJoined,
		ErrAlreadyJoined, ErrNoNumbersLeft, ErrNotYetCalled, ErrInvalidCell,
		ErrAutoCallOn, ErrAutoCallOff} {
		assert.True(t, IsRejection(err), err.Error())
	}
	assert.False(t, IsRejection(errors.New("disk full")))
}
