// Package ledger is the persisted balance/profile capability. Game code only
// sees the Ledger interface; storage is postgres via gorm, with an in-memory
// implementation for local runs and tests.
package ledger

import (
	"context"
	"errors"

	"github.com/cosmic-arcade/arena-backend/internal/engine"
)

var ErrProfileNotFound = errors.New("profile not found")

// StartingCoins is the signup bonus credited to a fresh profile.
const StartingCoins = 1000

type Profile struct {
	ID           uint     `gorm:"primaryKey" json:"-"`
	TelegramID   int64    `gorm:"uniqueIndex" json:"tgId"`
	Username     string   `json:"username"`
	Coins        int64    `json:"coins"`
	Inventory    []string `gorm:"serializer:json" json:"inventory"`
	MafiaWins    int      `json:"mafiaWins"`
	RouletteWins int      `json:"rouletteWins"`
	IsAdmin      bool     `json:"isAdmin"`
}

type Ledger interface {
	// FindOrCreateProfile loads a profile by external id, creating it with
	// the signup bonus on first sight.
	FindOrCreateProfile(ctx context.Context, telegramID int64, username string) (*Profile, error)
	// AdjustBalance credits (or debits, for negative deltas) a profile.
	AdjustBalance(ctx context.Context, telegramID int64, delta int64) error
	// IncrementWins bumps the per-variant win counter.
	IncrementWins(ctx context.Context, telegramID int64, variant engine.Variant) error
}
