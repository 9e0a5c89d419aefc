package ledger

import (
	"context"
	"fmt"

	"github.com/cosmic-arcade/arena-backend/internal/engine"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Store is the postgres-backed Ledger.
type Store struct {
	db  *gorm.DB
	log *zap.Logger
}

func Open(dsn string, log *zap.Logger) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open ledger db: %w", err)
	}
	if err := db.AutoMigrate(&Profile{}); err != nil {
		return nil, fmt.Errorf("migrate profiles: %w", err)
	}
	return &Store{db: db, log: log}, nil
}

func (s *Store) FindOrCreateProfile(ctx context.Context, telegramID int64, username string) (*Profile, error) {
	var p Profile
	err := s.db.WithContext(ctx).
		Where(Profile{TelegramID: telegramID}).
		Attrs(Profile{Username: username, Coins: StartingCoins, Inventory: []string{}}).
		FirstOrCreate(&p).Error
	if err != nil {
		return nil, fmt.Errorf("find or create profile %d: %w", telegramID, err)
	}
	return &p, nil
}

func (s *Store) AdjustBalance(ctx context.Context, telegramID int64, delta int64) error {
	res := s.db.WithContext(ctx).Model(&Profile{}).
		Where("telegram_id = ?", telegramID).
		UpdateColumn("coins", gorm.Expr("coins + ?", delta))
	if res.Error != nil {
		return fmt.Errorf("adjust balance %d: %w", telegramID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrProfileNotFound
	}
	return nil
}

func (s *Store) IncrementWins(ctx context.Context, telegramID int64, variant engine.Variant) error {
	column := "mafia_wins"
	if variant == engine.VariantRoulette {
		column = "roulette_wins"
	}
	res := s.db.WithContext(ctx).Model(&Profile{}).
		Where("telegram_id = ?", telegramID).
		UpdateColumn(column, gorm.Expr(column+" + 1"))
	if res.Error != nil {
		return fmt.Errorf("increment wins %d: %w", telegramID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrProfileNotFound
	}
	return nil
}
