package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/cosmic-arcade/arena-backend/internal/engine"
	"go.uber.org/zap"
)

// Retrying decorates a Ledger so a flaky store never stalls game progress:
// failed writes are queued and replayed in the background, and profile reads
// fall back to the last value seen for that participant.
type Retrying struct {
	next     Ledger
	log      *zap.Logger
	interval time.Duration

	mu      sync.Mutex
	cache   map[int64]Profile
	pending []retryOp

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

type retryOp struct {
	desc string
	fn   func(context.Context) error
}

func NewRetrying(parent context.Context, next Ledger, interval time.Duration, log *zap.Logger) *Retrying {
	ctx, cancel := context.WithCancel(parent)
	r := &Retrying{
		next:     next,
		log:      log,
		interval: interval,
		cache:    make(map[int64]Profile),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go r.flushLoop()
	return r
}

func (r *Retrying) Close() {
	r.cancel()
	<-r.done
}

func (r *Retrying) FindOrCreateProfile(ctx context.Context, telegramID int64, username string) (*Profile, error) {
	p, err := r.next.FindOrCreateProfile(ctx, telegramID, username)
	if err == nil {
		r.mu.Lock()
		r.cache[telegramID] = *p
		r.mu.Unlock()
		return p, nil
	}

	r.mu.Lock()
	cached, ok := r.cache[telegramID]
	r.mu.Unlock()
	if !ok {
		return nil, err
	}
	r.log.Warn("ledger read failed, serving cached profile",
		zap.Int64("tg_id", telegramID), zap.Error(err))
	cp := cached
	return &cp, nil
}

func (r *Retrying) AdjustBalance(ctx context.Context, telegramID int64, delta int64) error {
	err := r.next.AdjustBalance(ctx, telegramID, delta)
	if err == nil {
		return nil
	}
	r.enqueue("adjust balance", func(ctx context.Context) error {
		return r.next.AdjustBalance(ctx, telegramID, delta)
	})
	return err
}

func (r *Retrying) IncrementWins(ctx context.Context, telegramID int64, variant engine.Variant) error {
	err := r.next.IncrementWins(ctx, telegramID, variant)
	if err == nil {
		return nil
	}
	r.enqueue("increment wins", func(ctx context.Context) error {
		return r.next.IncrementWins(ctx, telegramID, variant)
	})
	return err
}

func (r *Retrying) enqueue(desc string, fn func(context.Context) error) {
	r.mu.Lock()
	r.pending = append(r.pending, retryOp{desc: desc, fn: fn})
	n := len(r.pending)
	r.mu.Unlock()
	r.log.Warn("ledger write failed, queued for retry",
		zap.String("op", desc), zap.Int("pending", n))
}

func (r *Retrying) flushLoop() {
	defer close(r.done)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.flush()
		}
	}
}

func (r *Retrying) flush() {
	r.mu.Lock()
	ops := r.pending
	r.pending = nil
	r.mu.Unlock()

	var failed []retryOp
	for _, op := range ops {
		if err := op.fn(r.ctx); err != nil {
			failed = append(failed, op)
		}
	}

	if len(failed) > 0 {
		r.mu.Lock()
		r.pending = append(failed, r.pending...)
		r.mu.Unlock()
		r.log.Warn("ledger retries still failing", zap.Int("pending", len(failed)))
	}
}
