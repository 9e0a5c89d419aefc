package ledger

import (
	"context"
	"sync"

	"github.com/cosmic-arcade/arena-backend/internal/engine"
)

// Memory is an in-process Ledger for local development and tests.
type Memory struct {
	mu       sync.Mutex
	profiles map[int64]*Profile
}

func NewMemory() *Memory {
	return &Memory{profiles: make(map[int64]*Profile)}
}

func (m *Memory) FindOrCreateProfile(_ context.Context, telegramID int64, username string) (*Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[telegramID]
	if !ok {
		p = &Profile{
			TelegramID: telegramID,
			Username:   username,
			Coins:      StartingCoins,
			Inventory:  []string{},
		}
		m.profiles[telegramID] = p
	}
	cp := *p
	return &cp, nil
}

func (m *Memory) AdjustBalance(_ context.Context, telegramID int64, delta int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[telegramID]
	if !ok {
		return ErrProfileNotFound
	}
	p.Coins += delta
	return nil
}

func (m *Memory) IncrementWins(_ context.Context, telegramID int64, variant engine.Variant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[telegramID]
	if !ok {
		return ErrProfileNotFound
	}
	if variant == engine.VariantRoulette {
		p.RouletteWins++
	} else {
		p.MafiaWins++
	}
	return nil
}

// Balance is a test/diagnostic helper.
func (m *Memory) Balance(telegramID int64) (int64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[telegramID]
	if !ok {
		return 0, false
	}
	return p.Coins, true
}
