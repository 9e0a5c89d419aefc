// Package messenger delivers events to participants and manages room channel
// membership. The core treats it as an external capability; the Registry here
// backs it with in-process outbox channels feeding websocket writers.
package messenger

import (
	"sync"

	"github.com/cosmic-arcade/arena-backend/pkg/types"
	"go.uber.org/zap"
)

type Messenger interface {
	SendToParticipant(connID, event string, data any)
	BroadcastToRoom(roomID, event string, data any)
	JoinRoomChannel(connID, roomID string)
	CloseRoomChannel(roomID string)
	// RoomOf reports the room a connection currently belongs to, if any.
	RoomOf(connID string) (string, bool)
}

type Registry struct {
	mu       sync.Mutex
	outboxes map[string]chan types.ServerMessage
	rooms    map[string]map[string]struct{}
	roomOf   map[string]string
	log      *zap.Logger
}

func NewRegistry(log *zap.Logger) *Registry {
	return &Registry{
		outboxes: make(map[string]chan types.ServerMessage),
		rooms:    make(map[string]map[string]struct{}),
		roomOf:   make(map[string]string),
		log:      log,
	}
}

// Register creates the outbox for a new connection. The returned channel is
// closed when the connection is unregistered or falls too far behind.
func (r *Registry) Register(connID string) <-chan types.ServerMessage {
	out := make(chan types.ServerMessage, 16)
	r.mu.Lock()
	r.outboxes[connID] = out
	r.mu.Unlock()
	return out
}

func (r *Registry) Unregister(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dropLocked(connID)
}

func (r *Registry) SendToParticipant(connID, event string, data any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deliverLocked(connID, types.ServerMessage{Event: event, Data: data})
}

func (r *Registry) BroadcastToRoom(roomID, event string, data any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for connID := range r.rooms[roomID] {
		r.deliverLocked(connID, types.ServerMessage{Event: event, Data: data})
	}
}

// JoinRoomChannel moves a connection into a room channel. A connection belongs
// to at most one room: joining a new one evicts it from the old one first.
func (r *Registry) JoinRoomChannel(connID, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.roomOf[connID]; ok && prev != roomID {
		delete(r.rooms[prev], connID)
	}
	members, ok := r.rooms[roomID]
	if !ok {
		members = make(map[string]struct{})
		r.rooms[roomID] = members
	}
	members[connID] = struct{}{}
	r.roomOf[connID] = roomID
}

// CloseRoomChannel removes every member from the room channel. Connections
// stay registered; only the membership goes away.
func (r *Registry) CloseRoomChannel(roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for connID := range r.rooms[roomID] {
		if r.roomOf[connID] == roomID {
			delete(r.roomOf, connID)
		}
	}
	delete(r.rooms, roomID)
}

func (r *Registry) RoomOf(connID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	roomID, ok := r.roomOf[connID]
	return roomID, ok
}

// deliverLocked writes without blocking. A full outbox means the reader is
// gone or hopelessly slow; the connection gets dropped.
func (r *Registry) deliverLocked(connID string, msg types.ServerMessage) {
	out, ok := r.outboxes[connID]
	if !ok {
		return
	}
	select {
	case out <- msg:
	default:
		r.log.Warn("dropping slow participant", zap.String("conn_id", connID))
		r.dropLocked(connID)
	}
}

func (r *Registry) dropLocked(connID string) {
	out, ok := r.outboxes[connID]
	if !ok {
		return
	}
	close(out)
	delete(r.outboxes, connID)
	if roomID, ok := r.roomOf[connID]; ok {
		delete(r.rooms[roomID], connID)
		delete(r.roomOf, connID)
	}
}
