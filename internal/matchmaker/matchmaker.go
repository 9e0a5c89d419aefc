// Package matchmaker keeps the per-variant waiting queues and turns a full
// queue into a room. Admission and quorum detection happen under one lock so
// two concurrent admissions can never both claim the same participants; the
// room launch itself runs outside the lock.
package matchmaker

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/cosmic-arcade/arena-backend/internal/engine"
	"github.com/cosmic-arcade/arena-backend/internal/hub"
	"github.com/cosmic-arcade/arena-backend/internal/messenger"
	"github.com/cosmic-arcade/arena-backend/internal/payout"
	"github.com/cosmic-arcade/arena-backend/internal/room"
	"github.com/cosmic-arcade/arena-backend/pkg/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrInsufficientFunds = errors.New("insufficient funds for entry stake")
var ErrAlreadyQueued = errors.New("already waiting in another queue")
var ErrUnknownVariant = errors.New("unknown game variant")

// Participant is one connected, authenticated session waiting for a game.
// Coins is the balance cached at authentication time.
type Participant struct {
	ConnID     string
	TelegramID int64
	Username   string
	Coins      int64
}

type QueueStatus struct {
	Position int
	Quorum   int
}

// QuorumSize is the party size a variant needs before a room forms.
func QuorumSize(variant engine.Variant) int {
	switch variant {
	case engine.VariantMafia:
		return 4
	case engine.VariantRoulette:
		return 2
	default:
		return 0
	}
}

type Matchmaker struct {
	hub     *hub.Hub
	msgr    messenger.Messenger
	payouts *payout.Service
	rules   engine.Rules
	log     *zap.Logger

	mu     sync.Mutex
	queues map[engine.Variant][]Participant
	rng    *rand.Rand // guarded by mu
}

func New(h *hub.Hub, msgr messenger.Messenger, payouts *payout.Service, rules engine.Rules, log *zap.Logger) *Matchmaker {
	return &Matchmaker{
		hub:     h,
		msgr:    msgr,
		payouts: payouts,
		rules:   rules,
		log:     log,
		queues:  make(map[engine.Variant][]Participant),
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Seed fixes the matchmaker's randomness. Tests only.
func (m *Matchmaker) Seed(seed int64) {
	m.mu.Lock()
	m.rng = rand.New(rand.NewSource(seed))
	m.mu.Unlock()
}

// Stake is the duel entry stake participants are checked against.
func (m *Matchmaker) Stake() int64 { return m.payouts.Stake() }

// Admit queues a participant for a variant. Re-admitting someone already in
// the same queue is idempotent; queueing for a second variant is rejected.
// When the queue reaches quorum the earliest-waiting participants are removed
// atomically and handed to room creation.
func (m *Matchmaker) Admit(ctx context.Context, p Participant, variant engine.Variant) (QueueStatus, error) {
	quorum := QuorumSize(variant)
	if quorum == 0 {
		return QueueStatus{}, ErrUnknownVariant
	}
	if variant == engine.VariantRoulette && p.Coins < m.payouts.Stake() {
		return QueueStatus{}, ErrInsufficientFunds
	}

	m.mu.Lock()
	for v, q := range m.queues {
		for i, queued := range q {
			if queued.ConnID != p.ConnID {
				continue
			}
			m.mu.Unlock()
			if v == variant {
				return QueueStatus{Position: i + 1, Quorum: quorum}, nil
			}
			return QueueStatus{}, ErrAlreadyQueued
		}
	}

	m.queues[variant] = append(m.queues[variant], p)
	status := QueueStatus{Position: len(m.queues[variant]), Quorum: quorum}

	var group []Participant
	if len(m.queues[variant]) >= quorum {
		group = m.queues[variant][:quorum:quorum]
		m.queues[variant] = append([]Participant(nil), m.queues[variant][quorum:]...)
	}
	m.mu.Unlock()

	m.msgr.SendToParticipant(p.ConnID, "queue_update", types.QueueUpdate{Count: status.Position, Max: quorum})

	if group != nil {
		m.launch(ctx, variant, group)
	}
	return status, nil
}

// Remove drops a participant from whichever queue holds them, if any.
func (m *Matchmaker) Remove(connID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for v, q := range m.queues {
		for i, queued := range q {
			if queued.ConnID == connID {
				m.queues[v] = append(q[:i:i], q[i+1:]...)
				return
			}
		}
	}
}

// Queued reports how many participants wait for a variant. Tests only.
func (m *Matchmaker) Queued(variant engine.Variant) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queues[variant])
}

func (m *Matchmaker) launch(ctx context.Context, variant engine.Variant, group []Participant) *room.Room {
	roomID := uuid.NewString()

	players := make([]engine.Player, len(group))
	for i, p := range group {
		players[i] = engine.Player{
			ID:         p.ConnID,
			ExternalID: p.TelegramID,
			Name:       p.Username,
			Alive:      true,
			Coins:      p.Coins,
		}
	}

	if variant == engine.VariantRoulette {
		// Entry stakes come out before the duel starts. A failed debit is
		// logged and retried by the ledger layer; it never blocks the game.
		if err := m.payouts.CollectStakes(ctx, players); err != nil {
			m.log.Error("stake collection incomplete", zap.String("room_id", roomID), zap.Error(err))
		}
	}

	m.mu.Lock()
	var st engine.State
	if variant == engine.VariantRoulette {
		st = engine.NewRouletteState(players, m.rules, m.rng)
	} else {
		st = engine.NewMafiaState(players, m.rules, m.rng)
	}
	m.mu.Unlock()

	// Members must be in the channel before the room's start broadcasts.
	for _, p := range group {
		m.msgr.JoinRoomChannel(p.ConnID, roomID)
	}

	reply := make(chan *room.Room, 1)
	m.hub.Inbox() <- hub.CreateRoom{ID: roomID, State: st, Reply: reply}
	return <-reply
}
