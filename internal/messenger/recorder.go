package messenger

import (
	"sync"
	"time"
)

// Recorded is one captured delivery. ConnID is set for direct sends, RoomID
// for broadcasts.
type Recorded struct {
	ConnID string
	RoomID string
	Event  string
	Data   any
}

// Recorder is an in-memory Messenger that captures every delivery. It backs
// the test suites of the room, hub and matchmaker packages.
type Recorder struct {
	mu     sync.Mutex
	events []Recorded
	roomOf map[string]string
	rooms  map[string]map[string]struct{}
}

func NewRecorder() *Recorder {
	return &Recorder{
		roomOf: make(map[string]string),
		rooms:  make(map[string]map[string]struct{}),
	}
}

func (r *Recorder) SendToParticipant(connID, event string, data any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Recorded{ConnID: connID, Event: event, Data: data})
}

func (r *Recorder) BroadcastToRoom(roomID, event string, data any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Recorded{RoomID: roomID, Event: event, Data: data})
}

func (r *Recorder) JoinRoomChannel(connID, roomID string) {
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

func (r *Recorder) CloseRoomChannel(roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for connID := range r.rooms[roomID] {
		if r.roomOf[connID] == roomID {
			delete(r.roomOf, connID)
		}
	}
	delete(r.rooms, roomID)
}

func (r *Recorder) RoomOf(connID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	roomID, ok := r.roomOf[connID]
	return roomID, ok
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Recorded {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Recorded, len(r.events))
	copy(out, r.events)
	return out
}

// ByEvent returns recorded deliveries with a matching event name.
func (r *Recorder) ByEvent(event string) []Recorded {
	var out []Recorded
	for _, e := range r.Events() {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

// WaitFor polls until a delivery with the event name shows up or the timeout
// passes.
func (r *Recorder) WaitFor(event string, within time.Duration) (Recorded, bool) {
	deadline := time.Now().Add(within)
	for {
		if got := r.ByEvent(event); len(got) > 0 {
			return got[0], true
		}
		if time.Now().After(deadline) {
			return Recorded{}, false
		}
		time.Sleep(2 * time.Millisecond)
	}
}
