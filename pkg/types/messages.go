// Package types carries the wire contract between clients and the arena
// backend. Event names and payload shapes are frozen; existing clients depend
// on them.
package types

// ClientMessage is any inbound socket frame.
type ClientMessage struct {
	Event    string `json:"event"` // "auth" | "find_game" | "game_action"
	TgID     int64  `json:"tgId,omitempty"`
	Username string `json:"username,omitempty"`
	Game     string `json:"game,omitempty"` // "mafia" | "roulette"
	TargetID string `json:"targetId,omitempty"`
	Action   string `json:"action,omitempty"`
}

// ServerMessage wraps every outbound event.
type ServerMessage struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

type Stats struct {
	MafiaWins    int `json:"mafiaWins"`
	RouletteWins int `json:"rouletteWins"`
}

type AuthSuccess struct {
	Coins     int64    `json:"coins"`
	Inventory []string `json:"inventory"`
	Stats     Stats    `json:"stats"`
}

type QueueUpdate struct {
	Count int `json:"count"`
	Max   int `json:"max"`
}

// PublicPlayer is the roster entry broadcast to a room. Roles are withheld.
type PublicPlayer struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	IsAlive bool   `json:"isAlive"`
}

type GameStart struct {
	Players []PublicPlayer `json:"players"`
}

type YourRole struct {
	Role string `json:"role"`
}

type PhaseChange struct {
	Phase string `json:"phase"`
	Msg   string `json:"msg"`
}

type SheriffResult struct {
	IsMafia bool `json:"isMafia"`
}

type NightResult struct {
	Msg    string  `json:"msg"`
	DeadID *string `json:"deadId"`
}

type RouletteStart struct {
	Players []PublicPlayer `json:"players"`
	Turn    string         `json:"turn"`
}

type AnimShoot struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type TurnChange struct {
	Turn string `json:"turn"`
}

type Death struct {
	PlayerID string `json:"playerId"`
}

type GameOver struct {
	Winner string `json:"winner"`
	Msg    string `json:"msg"`
}

type ErrorNotice struct {
	Message string `json:"message"`
}
