// Package game implements the bingo game state engine: the state store,
// the call engine, the mark handler and the winner announcement dispatcher.
package game

import (
	"strconv"

	"github.com/lox/bingobot/internal/bingo"
)

// PlayerID identifies a participant. IDs are only represented as text at the
// serialization boundary.
type PlayerID int64

// String formats the ID for snapshot keys and log fields.
func (id PlayerID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// ParsePlayerID parses a snapshot key back into a PlayerID.
func ParsePlayerID(s string) (PlayerID, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	return PlayerID(n), err
}

// Destination is the delivery target for a player's card view: the chat the
// card message lives in and the handle of that message.
type Destination struct {
	ChatID    int64 `json:"chat_id"`
	MessageID int64 `json:"message_id"`
}

// Player is one joined participant. Created on join, destroyed on reset.
type Player struct {
	ID   PlayerID
	Name string
	Card bingo.Card
	Dest Destination
}

// state holds everything a round needs: the joined players, the ordered call
// history, the active flag and the most recent call. It is owned exclusively
// by the Engine, which serializes all mutation.
type state struct {
	players map[PlayerID]*Player
	called  []int
	active  bool
	last    int // 0 = nothing called yet
}

func newState() *state {
	return &state{players: make(map[PlayerID]*Player)}
}

// clear drops all players and call history. Everything reachable only from
// the old round becomes collectable.
func (s *state) clear() {
	s.players = make(map[PlayerID]*Player)
	s.called = nil
	s.active = false
	s.last = 0
}

func (s *state) hasCalled(n int) bool {
	for _, c := range s.called {
		if c == n {
			return true
		}
	}
	return false
}

// remaining returns the uncalled numbers in ascending order.
func (s *state) remaining() []int {
	called := make(map[int]bool, len(s.called))
	for _, n := range s.called {
		called[n] = true
	}
	var out []int
	for n := 1; n <= bingo.MaxNumber; n++ {
		if !called[n] {
			out = append(out, n)
		}
	}
	return out
}

// PlayerSnapshot is the serialized form of one player.
type PlayerSnapshot struct {
	Card bingo.Card  `json:"card"`
	Dest Destination `json:"destination"`
	Name string      `json:"name"`
}

// Snapshot is the whole-record serialized form of the game state, written to
// and read from the snapshot store as a single unit.
type Snapshot struct {
	Players map[string]PlayerSnapshot `json:"players"`
	Called  []int                     `json:"called_numbers"`
	Active  bool                      `json:"current_game_active"`
	Last    *int                      `json:"last_called_number"`
}

// snapshot serializes the full state with no field loss.
func (s *state) snapshot() Snapshot {
	snap := Snapshot{
		Players: make(map[string]PlayerSnapshot, len(s.players)),
		Called:  append([]int(nil), s.called...),
		Active:  s.active,
	}
	for id, p := range s.players {
		snap.Players[id.String()] = PlayerSnapshot{
			Card: p.Card,
			Dest: p.Dest,
			Name: p.Name,
		}
	}
	if s.last != 0 {
		last := s.last
		snap.Last = &last
	}
	return snap
}

// restore replaces the state with the snapshot contents.
func (s *state) restore(snap Snapshot) error {
	s.clear()
	s.called = append([]int(nil), snap.Called...)
	s.active = snap.Active
	if snap.Last != nil {
		s.last = *snap.Last
	}
	for key, ps := range snap.Players {
		id, err := ParsePlayerID(key)
		if err != nil {
			return err
		}
		s.players[id] = &Player{ID: id, Name: ps.Name, Card: ps.Card, Dest: ps.Dest}
	}
	return nil
}
