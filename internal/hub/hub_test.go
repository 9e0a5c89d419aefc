package hub

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/cosmic-arcade/arena-backend/internal/engine"
	"github.com/cosmic-arcade/arena-backend/internal/ledger"
	"github.com/cosmic-arcade/arena-backend/internal/messenger"
	"github.com/cosmic-arcade/arena-backend/internal/payout"
	"github.com/cosmic-arcade/arena-backend/internal/room"
	"go.uber.org/zap"
)

func duelState() engine.State {
	players := []engine.Player{
		{ID: "ann", ExternalID: 1, Name: "ann", Alive: true},
		{ID: "bob", ExternalID: 2, Name: "bob", Alive: true},
	}
	return engine.NewRouletteState(players, engine.Rules{}, rand.New(rand.NewSource(1)))
}

func newHub(t *testing.T) *Hub {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	payouts := payout.NewService(ledger.NewMemory(), 100, 50, zap.NewNop())
	return NewHub(ctx, messenger.NewRecorder(), payouts, zap.NewNop())
}

func getRoom(t *testing.T, h *Hub, id string) *room.Room {
	t.Helper()
	reply := make(chan *room.Room, 1)
	h.Inbox() <- GetRoom{ID: id, Reply: reply}
	select {
	case rm := <-reply:
		return rm
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for hub reply")
		return nil // unreachable
	}
}

func TestHub_Create_Get_SamePointer(t *testing.T) {
	h := newHub(t)

	reply := make(chan *room.Room, 1)
	h.Inbox() <- CreateRoom{ID: "r1", State: duelState(), Reply: reply}
	rm1 := <-reply

	rm2 := getRoom(t, h, "r1")
	if rm1 == nil || rm2 == nil || rm1 != rm2 {
		t.Fatalf("expected same room pointer")
	}
}

func TestHub_CreateTwice_KeepsFirstRoom(t *testing.T) {
	h := newHub(t)

	reply := make(chan *room.Room, 1)
	h.Inbox() <- CreateRoom{ID: "r1", State: duelState(), Reply: reply}
	rm1 := <-reply
	h.Inbox() <- CreateRoom{ID: "r1", State: duelState(), Reply: reply}
	rm2 := <-reply

	if rm1 != rm2 {
		t.Fatalf("duplicate create must return the existing room")
	}
}

func TestHub_RemoveRoom(t *testing.T) {
	h := newHub(t)

	reply := make(chan *room.Room, 1)
	h.Inbox() <- CreateRoom{ID: "r1", State: duelState(), Reply: reply}
	<-reply

	h.Inbox() <- RemoveRoom{ID: "r1"}
	if rm := getRoom(t, h, "r1"); rm != nil {
		t.Fatalf("expected room to be gone after removal")
	}
}
