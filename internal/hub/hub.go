// Package hub is the process-wide room registry. Like the rooms it owns, the
// hub is an actor: creation, lookup and removal are serialized through one
// inbox, so no two callers can race on the registry map.
package hub

import (
	"context"

	"github.com/cosmic-arcade/arena-backend/internal/engine"
	"github.com/cosmic-arcade/arena-backend/internal/messenger"
	"github.com/cosmic-arcade/arena-backend/internal/payout"
	"github.com/cosmic-arcade/arena-backend/internal/room"
	"go.uber.org/zap"
)

type HubMsg interface{ isHubMsg() }

type CreateRoom struct {
	ID    string
	State engine.State
	Reply chan *room.Room
}

type GetRoom struct {
	ID    string
	Reply chan *room.Room
}

type RemoveRoom struct {
	ID string
}

type ShutdownHub struct{}

func (CreateRoom) isHubMsg()  {}
func (GetRoom) isHubMsg()     {}
func (RemoveRoom) isHubMsg()  {}
func (ShutdownHub) isHubMsg() {}

type Hub struct {
	inbox   chan HubMsg
	rooms   map[string]*room.Room
	msgr    messenger.Messenger
	payouts *payout.Service
	log     *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewHub(parent context.Context, msgr messenger.Messenger, payouts *payout.Service, log *zap.Logger) *Hub {
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:   make(chan HubMsg, 64),
		rooms:   make(map[string]*room.Room),
		msgr:    msgr,
		payouts: payouts,
		log:     log,
		ctx:     ctx,
		cancel:  cancel,
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case CreateRoom:
				if rm := h.rooms[msg.ID]; rm != nil {
					msg.Reply <- rm
					break
				}
				onClose := func(id string) { h.inbox <- RemoveRoom{ID: id} }
				rm := room.New(h.ctx, msg.ID, msg.State, h.msgr, h.payouts, onClose, h.log)
				h.rooms[msg.ID] = rm
				h.log.Info("room created",
					zap.String("room_id", msg.ID),
					zap.String("variant", string(msg.State.Variant)))
				msg.Reply <- rm

			case GetRoom:
				msg.Reply <- h.rooms[msg.ID] // may be nil

			case RemoveRoom:
				delete(h.rooms, msg.ID)

			case ShutdownHub:
				for _, rm := range h.rooms {
					rm.Inbox() <- room.Shutdown{}
				}
				clear(h.rooms)
				h.cancel()
				return
			}
		}
	}
}
