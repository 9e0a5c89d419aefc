package matchmaker

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/cosmic-arcade/arena-backend/internal/engine"
	"github.com/cosmic-arcade/arena-backend/internal/hub"
	"github.com/cosmic-arcade/arena-backend/internal/ledger"
	"github.com/cosmic-arcade/arena-backend/internal/messenger"
	"github.com/cosmic-arcade/arena-backend/internal/payout"
	"github.com/cosmic-arcade/arena-backend/pkg/types"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixture struct {
	mm  *Matchmaker
	rec *messenger.Recorder
	mem *ledger.Memory
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	rec := messenger.NewRecorder()
	mem := ledger.NewMemory()
	payouts := payout.NewService(mem, 100, 50, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	h := hub.NewHub(ctx, rec, payouts, zap.NewNop())

	rules := engine.Rules{DaySeconds: 60, VoteSeconds: 60, NightSeconds: 60}
	mm := New(h, rec, payouts, rules, zap.NewNop())
	mm.Seed(7)
	return &fixture{mm: mm, rec: rec, mem: mem}
}

func (f *fixture) participant(t *testing.T, i int) Participant {
	t.Helper()
	tgID := int64(i)
	name := fmt.Sprintf("player%d", i)
	profile, err := f.mem.FindOrCreateProfile(context.Background(), tgID, name)
	require.NoError(t, err)
	return Participant{
		ConnID:     fmt.Sprintf("conn%d", i),
		TelegramID: profile.TelegramID,
		Username:   profile.Username,
		Coins:      profile.Coins,
	}
}

func TestAdmit_MafiaQuorumFormsOneRoomInFIFOOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		status, err := f.mm.Admit(ctx, f.participant(t, i), engine.VariantMafia)
		require.NoError(t, err)
		require.Equal(t, QueueStatus{Position: i, Quorum: 4}, status)
	}
	require.Equal(t, 3, f.mm.Queued(engine.VariantMafia))

	_, err := f.mm.Admit(ctx, f.participant(t, 4), engine.VariantMafia)
	require.NoError(t, err)
	require.Equal(t, 0, f.mm.Queued(engine.VariantMafia), "quorum must empty the queue")

	evt, ok := f.rec.WaitFor("game_start", time.Second)
	require.True(t, ok, "expected game_start broadcast")

	roster := evt.Data.(types.GameStart).Players
	require.Len(t, roster, 4)
	for i, p := range roster {
		require.Equal(t, fmt.Sprintf("conn%d", i+1), p.ID, "roster must keep admission order")
		require.True(t, p.IsAlive)
	}

	// Each player learns only their own role; the tier for 4 players is one
	// mafia, one sheriff, two civilians.
	deadline := time.Now().Add(time.Second)
	for len(f.rec.ByEvent("your_role")) < 4 && time.Now().Before(deadline) {
		time.Sleep(2 * time.Millisecond)
	}
	roles := f.rec.ByEvent("your_role")
	require.Len(t, roles, 4)
	counts := map[string]int{}
	for _, r := range roles {
		counts[r.Data.(types.YourRole).Role]++
	}
	require.Equal(t, map[string]int{"MAFIA": 1, "SHERIFF": 1, "CIVILIAN": 2}, counts)
}

func TestAdmit_RouletteDebitsStakesAndStartsWithFirstAdmitted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.mm.Admit(ctx, f.participant(t, 1), engine.VariantRoulette)
	require.NoError(t, err)
	_, err = f.mm.Admit(ctx, f.participant(t, 2), engine.VariantRoulette)
	require.NoError(t, err)

	evt, ok := f.rec.WaitFor("roulette_start", time.Second)
	require.True(t, ok, "expected roulette_start broadcast")
	require.Equal(t, "conn1", evt.Data.(types.RouletteStart).Turn)

	for tgID := int64(1); tgID <= 2; tgID++ {
		coins, ok := f.mem.Balance(tgID)
		require.True(t, ok)
		require.Equal(t, int64(900), coins, "entry stake must be debited exactly once")
	}
}

func TestAdmit_InsufficientFundsLeavesParticipantUnqueued(t *testing.T) {
	f := newFixture(t)
	p := f.participant(t, 1)
	p.Coins = 50

	_, err := f.mm.Admit(context.Background(), p, engine.VariantRoulette)
	require.ErrorIs(t, err, ErrInsufficientFunds)
	require.Equal(t, 0, f.mm.Queued(engine.VariantRoulette))
}

func TestAdmit_IsIdempotentForQueuedParticipant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.participant(t, 1)

	first, err := f.mm.Admit(ctx, p, engine.VariantMafia)
	require.NoError(t, err)
	again, err := f.mm.Admit(ctx, p, engine.VariantMafia)
	require.NoError(t, err)

	require.Equal(t, first, again)
	require.Equal(t, 1, f.mm.Queued(engine.VariantMafia))
}

func TestAdmit_RejectsSecondQueue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.participant(t, 1)

	_, err := f.mm.Admit(ctx, p, engine.VariantMafia)
	require.NoError(t, err)
	_, err = f.mm.Admit(ctx, p, engine.VariantRoulette)
	require.ErrorIs(t, err, ErrAlreadyQueued)
}

func TestAdmit_UnknownVariant(t *testing.T) {
	f := newFixture(t)
	_, err := f.mm.Admit(context.Background(), f.participant(t, 1), engine.Variant("chess"))
	require.ErrorIs(t, err, ErrUnknownVariant)
}

func TestRemove_DropsQueuedParticipant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.mm.Admit(ctx, f.participant(t, 1), engine.VariantMafia)
	require.NoError(t, err)
	_, err = f.mm.Admit(ctx, f.participant(t, 2), engine.VariantMafia)
	require.NoError(t, err)

	f.mm.Remove("conn1")
	require.Equal(t, 1, f.mm.Queued(engine.VariantMafia))

	// The remaining participant keeps their slot; the leaver is gone.
	status, err := f.mm.Admit(ctx, f.participant(t, 3), engine.VariantMafia)
	require.NoError(t, err)
	require.Equal(t, 2, status.Position)
}

func TestAdmit_SendsQueueUpdates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.mm.Admit(ctx, f.participant(t, 1), engine.VariantMafia)
	require.NoError(t, err)

	evt, ok := f.rec.WaitFor("queue_update", time.Second)
	require.True(t, ok)
	require.Equal(t, "conn1", evt.ConnID)
	require.Equal(t, types.QueueUpdate{Count: 1, Max: 4}, evt.Data)
}
