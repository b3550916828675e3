package game

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/lox/bingobot/internal/bingo"
)

// cardRefresh is one pending card view update, captured while the engine
// lock is held and delivered after the mutation commits.
type cardRefresh struct {
	dest Destination
	text string
}

// cardRefreshes captures a refresh for every player's card view. Caller must
// hold the engine lock.
func (e *Engine) cardRefreshes() []cardRefresh {
	refreshes := make([]cardRefresh, 0, len(e.state.players))
	for _, p := range e.state.players {
		refreshes = append(refreshes, cardRefresh{
			dest: p.Dest,
			text: bingo.Render(p.Card, e.state.last),
		})
	}
	return refreshes
}

// broadcastRecipients lists every player chat plus the administrator
// allow-list, in stable order. Caller must hold the engine lock.
func (e *Engine) broadcastRecipients() []int64 {
	seen := make(map[int64]bool, len(e.state.players)+len(e.admins))
	chats := make([]int64, 0, len(e.state.players)+len(e.admins))
	for _, p := range e.state.players {
		if !seen[p.Dest.ChatID] {
			seen[p.Dest.ChatID] = true
			chats = append(chats, p.Dest.ChatID)
		}
	}
	for id := range e.admins {
		if !seen[int64(id)] {
			seen[int64(id)] = true
			chats = append(chats, int64(id))
		}
	}
	sort.Slice(chats, func(i, j int) bool { return chats[i] < chats[j] })
	return chats
}

// refreshCards edits each player's card message. Deliveries are independent
// per recipient; a failure is logged and the rest continue.
func (e *Engine) refreshCards(ctx context.Context, refreshes []cardRefresh) {
	g := new(errgroup.Group)
	for _, r := range refreshes {
		g.Go(func() error {
			if err := e.courier.Edit(ctx, r.dest.ChatID, r.dest.MessageID, r.text); err != nil {
				e.logger.Warn("Failed to update card view", "chat", r.dest.ChatID, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// broadcast fans one announcement out to every recipient. This is a
// fan-out, not a transaction: no retries, no rollback, failures logged.
func (e *Engine) broadcast(ctx context.Context, chats []int64, text string) {
	g := new(errgroup.Group)
	for _, chat := range chats {
		g.Go(func() error {
			if _, err := e.courier.Send(ctx, chat, text); err != nil {
				e.logger.Warn("Failed to announce", "chat", chat, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()
}
