// Package ws binds a websocket connection to a session: authenticate against
// the ledger, queue through the matchmaker, forward game actions to the
// session's room, and report the disconnect when the socket goes away.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/cosmic-arcade/arena-backend/internal/engine"
	"github.com/cosmic-arcade/arena-backend/internal/hub"
	"github.com/cosmic-arcade/arena-backend/internal/ledger"
	"github.com/cosmic-arcade/arena-backend/internal/matchmaker"
	"github.com/cosmic-arcade/arena-backend/internal/messenger"
	"github.com/cosmic-arcade/arena-backend/internal/room"
	"github.com/cosmic-arcade/arena-backend/pkg/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const writeTimeout = 3 * time.Second

type Server struct {
	Hub        *hub.Hub
	Matchmaker *matchmaker.Matchmaker
	Messenger  *messenger.Registry
	Ledger     ledger.Ledger
	Log        *zap.Logger
}

func (s *Server) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		connID := uuid.NewString()
		out := s.Messenger.Register(connID)
		log := s.Log.With(zap.String("conn_id", connID))
		log.Info("participant connected")

		defer s.disconnect(connID, log)

		// Writer goroutine: drains the outbox until the messenger closes it.
		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for msg := range out {
				payload, err := json.Marshal(msg)
				if err != nil {
					continue
				}
				ctx, cancel := context.WithTimeout(writeCtx, writeTimeout)
				_ = conn.Write(ctx, websocket.MessageText, payload)
				cancel()
			}
		}()

		// Session state lives on this goroutine only.
		var participant *matchmaker.Participant

		for {
			_, data, err := conn.Read(r.Context())
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
					return
				}
				return
			}

			var cm types.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				s.Messenger.SendToParticipant(connID, "error", types.ErrorNotice{Message: "bad json"})
				continue
			}

			switch cm.Event {
			case "auth":
				profile, err := s.Ledger.FindOrCreateProfile(r.Context(), cm.TgID, cm.Username)
				if err != nil {
					log.Error("auth failed", zap.Error(err))
					s.Messenger.SendToParticipant(connID, "error", types.ErrorNotice{Message: "authentication failed"})
					continue
				}
				participant = &matchmaker.Participant{
					ConnID:     connID,
					TelegramID: profile.TelegramID,
					Username:   profile.Username,
					Coins:      profile.Coins,
				}
				s.Messenger.SendToParticipant(connID, "auth_success", types.AuthSuccess{
					Coins:     profile.Coins,
					Inventory: profile.Inventory,
					Stats:     types.Stats{MafiaWins: profile.MafiaWins, RouletteWins: profile.RouletteWins},
				})

			case "find_game":
				if participant == nil {
					s.Messenger.SendToParticipant(connID, "error", types.ErrorNotice{Message: "authenticate first"})
					continue
				}
				if _, inRoom := s.Messenger.RoomOf(connID); inRoom {
					s.Messenger.SendToParticipant(connID, "error", types.ErrorNotice{Message: "finish your current game first"})
					continue
				}
				s.findGame(r.Context(), *participant, engine.Variant(cm.Game))

			case "game_action":
				if roomID, ok := s.Messenger.RoomOf(connID); ok {
					s.forward(roomID, engine.Command{
						Type:   engine.CmdGameAction,
						Actor:  connID,
						Target: cm.TargetID,
						Action: cm.Action,
					})
				}

			default:
				s.Messenger.SendToParticipant(connID, "error", types.ErrorNotice{Message: "unknown event"})
			}
		}
	}
}

func (s *Server) findGame(ctx context.Context, p matchmaker.Participant, variant engine.Variant) {
	_, err := s.Matchmaker.Admit(ctx, p, variant)
	switch {
	case errors.Is(err, matchmaker.ErrInsufficientFunds):
		s.Messenger.SendToParticipant(p.ConnID, "error", types.ErrorNotice{
			Message: fmt.Sprintf("Not enough coins! Need %d.", s.Matchmaker.Stake()),
		})
	case errors.Is(err, matchmaker.ErrAlreadyQueued), errors.Is(err, matchmaker.ErrUnknownVariant):
		s.Messenger.SendToParticipant(p.ConnID, "error", types.ErrorNotice{Message: err.Error()})
	}
}

func (s *Server) forward(roomID string, cmd engine.Command) {
	reply := make(chan *room.Room, 1)
	s.Hub.Inbox() <- hub.GetRoom{ID: roomID, Reply: reply}
	rm := <-reply
	if rm == nil {
		// Room already torn down; the action is dropped by design.
		return
	}
	rm.Inbox() <- room.FromPlayer{Cmd: cmd}
}

// disconnect marks the connection invalid everywhere it might be known: the
// waiting queues, the active room, and the messenger registry.
func (s *Server) disconnect(connID string, log *zap.Logger) {
	s.Matchmaker.Remove(connID)
	if roomID, ok := s.Messenger.RoomOf(connID); ok {
		reply := make(chan *room.Room, 1)
		s.Hub.Inbox() <- hub.GetRoom{ID: roomID, Reply: reply}
		if rm := <-reply; rm != nil {
			rm.Inbox() <- room.Disconnected{PlayerID: connID}
		}
	}
	s.Messenger.Unregister(connID)
	log.Info("participant disconnected")
}
