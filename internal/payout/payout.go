// Package payout turns a finished game into ledger adjustments. Every credit
// is an independent operation: one participant's failure never blocks the
// rest, and failures are reported back aggregated.
package payout

import (
	"context"

	"github.com/cosmic-arcade/arena-backend/internal/engine"
	"github.com/cosmic-arcade/arena-backend/internal/ledger"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

type Service struct {
	ledger ledger.Ledger
	stake  int64 // roulette entry stake per player
	reward int64 // mafia reward per surviving winner
	log    *zap.Logger
}

func NewService(l ledger.Ledger, stake, reward int64, log *zap.Logger) *Service {
	return &Service{ledger: l, stake: stake, reward: reward, log: log}
}

func (s *Service) Stake() int64 { return s.stake }

// CollectStakes debits each duel entrant's stake at room creation.
func (s *Service) CollectStakes(ctx context.Context, players []engine.Player) error {
	var errs error
	for _, p := range players {
		if err := s.ledger.AdjustBalance(ctx, p.ExternalID, -s.stake); err != nil {
			s.log.Error("stake debit failed", zap.Int64("tg_id", p.ExternalID), zap.Error(err))
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

// Settle pays out a completed game according to its variant.
func (s *Service) Settle(ctx context.Context, st engine.State) error {
	switch st.Variant {
	case engine.VariantRoulette:
		return s.settleRoulette(ctx, st)
	default:
		return s.settleMafia(ctx, st)
	}
}

// settleRoulette credits the whole stake pool to the sole survivor.
func (s *Service) settleRoulette(ctx context.Context, st engine.State) error {
	pool := s.stake * int64(len(st.Players))
	var errs error
	for _, p := range st.Players {
		if p.ID != st.Winner {
			continue
		}
		if err := s.ledger.AdjustBalance(ctx, p.ExternalID, pool); err != nil {
			errs = multierr.Append(errs, err)
		}
		if err := s.ledger.IncrementWins(ctx, p.ExternalID, engine.VariantRoulette); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

// settleMafia bumps the win counter for every member of the winning alignment
// and pays the fixed reward to those of them still alive.
func (s *Service) settleMafia(ctx context.Context, st engine.State) error {
	var errs error
	for _, p := range st.Players {
		if p.Alignment() != st.Winner {
			continue
		}
		if err := s.ledger.IncrementWins(ctx, p.ExternalID, engine.VariantMafia); err != nil {
			errs = multierr.Append(errs, err)
		}
		if !p.Alive {
			continue
		}
		if err := s.ledger.AdjustBalance(ctx, p.ExternalID, s.reward); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}
