// Package room owns one in-progress game. A Room is a single-goroutine actor:
// player actions, timer expirations and disconnects all arrive through one
// inbox, so phase transitions never race.
package room

import (
	"context"
	"time"

	"github.com/cosmic-arcade/arena-backend/internal/engine"
	"github.com/cosmic-arcade/arena-backend/internal/messenger"
	"github.com/cosmic-arcade/arena-backend/internal/payout"
	"github.com/cosmic-arcade/arena-backend/pkg/types"
	"go.uber.org/zap"
)

type Msg interface{ isRoomMsg() }

type FromPlayer struct {
	Cmd engine.Command
}

func (FromPlayer) isRoomMsg() {}

// TimerFired carries the generation the timer was armed with. A fire whose
// generation no longer matches is stale and gets dropped.
type TimerFired struct{ Gen int }

func (TimerFired) isRoomMsg() {}

type Disconnected struct{ PlayerID string }

func (Disconnected) isRoomMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isRoomMsg() {}

type Shutdown struct{}

func (Shutdown) isRoomMsg() {}

type start struct{}

func (start) isRoomMsg() {}

type rearm struct{}

func (rearm) isRoomMsg() {}

type View struct {
	State    engine.State
	TimerGen int
}

type Room struct {
	ID string

	inbox    chan Msg
	state    engine.State
	timer    *time.Timer
	timerGen int

	msgr    messenger.Messenger
	payouts *payout.Service
	onClose func(roomID string)
	log     *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// New starts a room actor and kicks off the game (role deals and the first
// phase happen immediately).
func New(parent context.Context, id string, initial engine.State, msgr messenger.Messenger, payouts *payout.Service, onClose func(string), log *zap.Logger) *Room {
	r := newRoom(parent, id, initial, msgr, payouts, onClose, log)
	go r.loop()
	r.inbox <- start{}
	return r
}

// Resume starts a room actor from a snapshot, re-arming the current phase's
// timer instead of replaying the start sequence.
func Resume(parent context.Context, id string, snapshot engine.State, msgr messenger.Messenger, payouts *payout.Service, onClose func(string), log *zap.Logger) *Room {
	r := newRoom(parent, id, snapshot, msgr, payouts, onClose, log)
	go r.loop()
	r.inbox <- rearm{}
	return r
}

func newRoom(parent context.Context, id string, st engine.State, msgr messenger.Messenger, payouts *payout.Service, onClose func(string), log *zap.Logger) *Room {
	ctx, cancel := context.WithCancel(parent)
	return &Room{
		ID:      id,
		inbox:   make(chan Msg, 64),
		state:   st,
		msgr:    msgr,
		payouts: payouts,
		onClose: onClose,
		log:     log.With(zap.String("room_id", id), zap.String("variant", string(st.Variant))),
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (r *Room) Inbox() chan<- Msg { return r.inbox }

func (r *Room) loop() {
	for {
		select {
		case <-r.ctx.Done():
			r.stopTimer()
			return

		case m := <-r.inbox:
			switch msg := m.(type) {
			case start:
				r.apply(engine.Command{Type: engine.CmdStartGame})

			case rearm:
				r.armPhaseTimer()

			case FromPlayer:
				r.apply(msg.Cmd)

			case TimerFired:
				if msg.Gen != r.timerGen {
					r.log.Debug("dropping stale timer", zap.Int("gen", msg.Gen))
					break
				}
				r.apply(engine.Command{Type: engine.CmdTimeoutAdvance, FromPhase: r.state.Phase})

			case Disconnected:
				r.apply(engine.Command{Type: engine.CmdMarkDisconnected, Actor: msg.PlayerID})

			case GetState:
				msg.Reply <- View{State: r.state, TimerGen: r.timerGen}

			case Shutdown:
				r.stopTimer()
				r.cancel()
				return
			}
		}
	}
}

func (r *Room) apply(cmd engine.Command) {
	events, newState, err := engine.Apply(r.state, cmd)
	if err != nil {
		// Actions invalid for the current phase are dropped, not surfaced.
		r.log.Debug("command rejected",
			zap.String("cmd", string(cmd.Type)), zap.Error(err))
		return
	}
	r.state = newState
	r.route(events)
}

func (r *Room) route(events []engine.Event) {
	for _, evt := range events {
		switch evt.Type {
		case engine.EvtRolesDealt:
			r.msgr.BroadcastToRoom(r.ID, "game_start", types.GameStart{Players: r.roster()})
			for _, p := range r.state.Players {
				r.msgr.SendToParticipant(p.ID, "your_role", types.YourRole{Role: string(p.Role)})
			}

		case engine.EvtDuelStarted:
			r.msgr.BroadcastToRoom(r.ID, "roulette_start", types.RouletteStart{
				Players: r.roster(),
				Turn:    evt.Turn,
			})
			r.armPhaseTimer()

		case engine.EvtPhaseChanged:
			r.msgr.BroadcastToRoom(r.ID, "phase_change", types.PhaseChange{
				Phase: string(evt.Phase),
				Msg:   evt.Msg,
			})
			r.armPhaseTimer()

		case engine.EvtSheriffResult:
			r.msgr.SendToParticipant(evt.Actor, "sheriff_result", types.SheriffResult{IsMafia: evt.IsMafia})

		case engine.EvtNightResolved:
			var deadID *string
			if evt.DeadID != "" {
				deadID = &evt.DeadID
			}
			r.msgr.BroadcastToRoom(r.ID, "night_result", types.NightResult{Msg: evt.Msg, DeadID: deadID})

		case engine.EvtPlayerEliminated, engine.EvtPlayerDied:
			r.msgr.BroadcastToRoom(r.ID, "death", types.Death{PlayerID: evt.Target})

		case engine.EvtShotFired:
			r.msgr.BroadcastToRoom(r.ID, "anim_shoot", types.AnimShoot{From: evt.Actor, To: evt.Target})

		case engine.EvtTurnAdvanced:
			r.msgr.BroadcastToRoom(r.ID, "turn_change", types.TurnChange{Turn: evt.Turn})
			r.armPhaseTimer()

		case engine.EvtGameCompleted:
			r.finish(evt)
			return
		}
	}
}

// finish broadcasts the result, settles payouts and tears the room down.
func (r *Room) finish(evt engine.Event) {
	r.msgr.BroadcastToRoom(r.ID, "game_over", types.GameOver{Winner: evt.Winner, Msg: evt.Msg})
	r.log.Info("game over",
		zap.String("winner", evt.Winner),
		zap.Int("living", engine.Living(r.state)))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.payouts.Settle(ctx, r.state); err != nil {
		r.log.Error("payout settlement incomplete", zap.Error(err))
	}

	r.stopTimer()
	r.msgr.CloseRoomChannel(r.ID)
	if r.onClose != nil {
		r.onClose(r.ID)
	}
	r.cancel()
}

// armPhaseTimer replaces the running timer with one for the current phase or
// duel turn, or stops it if nothing is waiting on a deadline (game over).
func (r *Room) armPhaseTimer() {
	r.stopTimer()

	var secs int
	switch r.state.Phase {
	case engine.PhaseDay:
		secs = r.state.Rules.DaySeconds
	case engine.PhaseVoting:
		secs = r.state.Rules.VoteSeconds
	case engine.PhaseNight:
		secs = r.state.Rules.NightSeconds
	case engine.PhaseDuel:
		if r.state.Rules.TurnSeconds <= 0 {
			return
		}
		secs = r.state.Rules.TurnSeconds
	default:
		return
	}

	r.timerGen++
	gen := r.timerGen
	r.timer = time.AfterFunc(time.Duration(secs)*time.Second, func() {
		select {
		case r.inbox <- TimerFired{Gen: gen}:
		case <-r.ctx.Done():
		}
	})
}

func (r *Room) stopTimer() {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}

func (r *Room) roster() []types.PublicPlayer {
	roster := make([]types.PublicPlayer, 0, len(r.state.Players))
	for _, p := range r.state.Players {
		roster = append(roster, types.PublicPlayer{ID: p.ID, Name: p.Name, IsAlive: p.Alive})
	}
	return roster
}
