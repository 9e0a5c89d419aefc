package engine

import (
	"errors"
	"fmt"
)

var ErrWrongPhase = errors.New("action not valid in current phase")
var ErrNotYourTurn = errors.New("not your turn")
var ErrUnknownPlayer = errors.New("unknown player")
var ErrUnknownTarget = errors.New("unknown or dead target")
var ErrDeadActor = errors.New("actor is not alive")
var ErrNoNightAction = errors.New("role has no night action")
var ErrUnsupportedCommand = errors.New("unsupported command")
var ErrGameAlreadyCompleted = errors.New("game already completed")

type Variant string

const (
	VariantMafia    Variant = "mafia"
	VariantRoulette Variant = "roulette"
)

type Phase string

const (
	PhaseStarting Phase = "STARTING"
	PhaseDay      Phase = "DAY"
	PhaseVoting   Phase = "VOTING"
	PhaseNight    Phase = "NIGHT"
	PhaseDuel     Phase = "DUEL"
	PhaseGameOver Phase = "GAME_OVER"
)

type Role string

const (
	RoleMafia    Role = "MAFIA"
	RoleSheriff  Role = "SHERIFF"
	RoleDoctor   Role = "DOCTOR"
	RoleCivilian Role = "CIVILIAN"
)

// ActionKind keys the night-action map. Last write per kind wins; that is the
// documented merge policy for simultaneous submissions, not an accident.
type ActionKind string

const (
	ActionKill ActionKind = "mafiaKill"
	ActionHeal ActionKind = "doctorHeal"
)

// ActionShoot is the only action a duel turn accepts.
const ActionShoot = "shoot_opponent"

// Winner values for the mafia variant. For roulette the winner is the
// surviving player's id.
const (
	WinnerMafia = "mafia"
	WinnerTown  = "town"
)

// ChamberCount is the cylinder size for the roulette duel. One chamber holds
// the bullet; its position is fixed at room creation so resolution is a pure
// function of state.
const ChamberCount = 6

type Player struct {
	ID         string `json:"id"`
	ExternalID int64  `json:"tgId"`
	Name       string `json:"name"`
	Role       Role   `json:"role,omitempty"`
	Alive      bool   `json:"isAlive"`
	Coins      int64  `json:"coins"`
}

// Alignment groups roles into the two mafia-variant camps.
func (p Player) Alignment() string {
	if p.Role == RoleMafia {
		return WinnerMafia
	}
	return WinnerTown
}

type Rules struct {
	DaySeconds   int `json:"daySeconds"`
	VoteSeconds  int `json:"voteSeconds"`
	NightSeconds int `json:"nightSeconds"`
	// TurnSeconds bounds one duel turn. Zero disables the turn timer.
	TurnSeconds int `json:"turnSeconds"`
}

type State struct {
	Variant  Variant               `json:"variant"`
	Phase    Phase                 `json:"phase"`
	Players  []Player              `json:"players"`
	Votes    map[string]string     `json:"votes"`   // voter id -> target id
	Actions  map[ActionKind]string `json:"actions"` // night action -> target id
	Turn     int                   `json:"turn"`    // roulette only: index into Players
	Chamber  int                   `json:"chamber"` // roulette only
	BulletAt int                   `json:"bulletAt"`
	Winner   string                `json:"winner,omitempty"`
	Rules    Rules                 `json:"rules"`
}

type CommandType string

const (
	CmdStartGame        CommandType = "StartGame"
	CmdGameAction       CommandType = "GameAction"
	CmdTimeoutAdvance   CommandType = "TimeoutAdvance"
	CmdMarkDisconnected CommandType = "MarkDisconnected"
)

type Command struct {
	Type   CommandType
	Actor  string
	Target string
	Action string
	// FromPhase is the phase a timeout believes it is advancing. A stale
	// timer that outlived its phase fails the match and becomes a no-op.
	FromPhase Phase
}

type EventType string

const (
	EvtRolesDealt       EventType = "RolesDealt"
	EvtDuelStarted      EventType = "DuelStarted"
	EvtPhaseChanged     EventType = "PhaseChanged"
	EvtPlayerEliminated EventType = "PlayerEliminated"
	EvtSheriffResult    EventType = "SheriffResult"
	EvtNightResolved    EventType = "NightResolved"
	EvtShotFired        EventType = "ShotFired"
	EvtPlayerDied       EventType = "PlayerDied"
	EvtTurnAdvanced     EventType = "TurnAdvanced"
	EvtGameCompleted    EventType = "GameCompleted"
)

type Event struct {
	Type    EventType
	Actor   string
	Target  string
	Phase   Phase
	Msg     string
	DeadID  string // empty means nobody died
	IsMafia bool
	Winner  string
	Turn    string // player id holding the next turn
}

// Apply runs one command against the state and returns the events it produced
// plus the successor state. The state is never mutated on error.
func Apply(s State, cmd Command) ([]Event, State, error) {
	if s.Phase == PhaseGameOver {
		return nil, s, ErrGameAlreadyCompleted
	}

	switch cmd.Type {
	case CmdStartGame:
		return applyStart(s)
	case CmdGameAction:
		return applyAction(s, cmd)
	case CmdTimeoutAdvance:
		return applyTimeout(s, cmd)
	case CmdMarkDisconnected:
		return applyDisconnect(s, cmd)
	default:
		return nil, s, ErrUnsupportedCommand
	}
}

func applyStart(s State) ([]Event, State, error) {
	if s.Phase != PhaseStarting {
		return nil, s, ErrWrongPhase
	}

	newState := s
	switch s.Variant {
	case VariantRoulette:
		newState.Phase = PhaseDuel
		newState.Turn = 0
		return []Event{
			{Type: EvtDuelStarted, Turn: s.Players[0].ID},
		}, newState, nil
	default:
		events := []Event{{Type: EvtRolesDealt}}
		events = append(events, enterDay(&newState))
		return events, newState, nil
	}
}

func applyTimeout(s State, cmd Command) ([]Event, State, error) {
	if cmd.FromPhase != s.Phase {
		return nil, s, ErrWrongPhase
	}

	newState := s
	switch s.Phase {
	case PhaseDay:
		newState.Votes = map[string]string{}
		newState.Phase = PhaseVoting
		return []Event{{Type: EvtPhaseChanged, Phase: PhaseVoting, Msg: "Vote out the suspects!"}}, newState, nil

	case PhaseVoting:
		events := []Event{}
		if target, ok := tallyVotes(s); ok {
			killPlayer(&newState, target)
			events = append(events, Event{Type: EvtPlayerEliminated, Target: target})
		}
		newState.Actions = map[ActionKind]string{}
		newState.Phase = PhaseNight
		events = append(events, Event{Type: EvtPhaseChanged, Phase: PhaseNight, Msg: "The town falls asleep..."})
		return events, newState, nil

	case PhaseNight:
		events := resolveNight(&newState)
		if done, winEvt := checkWin(&newState); done {
			events = append(events, winEvt)
			return events, newState, nil
		}
		events = append(events, enterDay(&newState))
		return events, newState, nil

	case PhaseDuel:
		// An expired turn is a forfeit: the idle turn holder dies and the
		// usual win check runs, so a duel can never wait forever.
		idler := s.Players[s.Turn].ID
		killPlayer(&newState, idler)
		events := []Event{{Type: EvtPlayerDied, Target: idler}}
		if done, winEvt := checkWin(&newState); done {
			events = append(events, winEvt)
			return events, newState, nil
		}
		next := nextLivingTurn(newState)
		newState.Turn = next
		events = append(events, Event{Type: EvtTurnAdvanced, Turn: newState.Players[next].ID})
		return events, newState, nil

	default:
		return nil, s, ErrWrongPhase
	}
}

func applyAction(s State, cmd Command) ([]Event, State, error) {
	actor, ok := findPlayer(s, cmd.Actor)
	if !ok {
		return nil, s, ErrUnknownPlayer
	}
	if !actor.Alive {
		return nil, s, ErrDeadActor
	}

	if s.Variant == VariantRoulette {
		return applyShot(s, cmd)
	}

	target, ok := findPlayer(s, cmd.Target)
	if !ok || !target.Alive {
		return nil, s, ErrUnknownTarget
	}

	newState := s
	switch s.Phase {
	case PhaseVoting:
		// Overwrites any earlier vote by the same player.
		newState.Votes[cmd.Actor] = cmd.Target
		return nil, newState, nil

	case PhaseNight:
		switch actor.Role {
		case RoleMafia:
			newState.Actions[ActionKill] = cmd.Target
			return nil, newState, nil
		case RoleDoctor:
			newState.Actions[ActionHeal] = cmd.Target
			return nil, newState, nil
		case RoleSheriff:
			// Answered immediately and privately; no shared state changes.
			return []Event{{
				Type:    EvtSheriffResult,
				Actor:   cmd.Actor,
				Target:  cmd.Target,
				IsMafia: target.Role == RoleMafia,
			}}, s, nil
		default:
			return nil, s, ErrNoNightAction
		}

	default:
		return nil, s, ErrWrongPhase
	}
}

func applyShot(s State, cmd Command) ([]Event, State, error) {
	if s.Phase != PhaseDuel {
		return nil, s, ErrWrongPhase
	}
	if s.Players[s.Turn].ID != cmd.Actor {
		return nil, s, ErrNotYourTurn
	}
	if cmd.Action != ActionShoot {
		return nil, s, ErrUnsupportedCommand
	}
	target, ok := findPlayer(s, cmd.Target)
	if !ok || !target.Alive || target.ID == cmd.Actor {
		return nil, s, ErrUnknownTarget
	}

	newState := s
	events := []Event{{Type: EvtShotFired, Actor: cmd.Actor, Target: cmd.Target}}

	lethal := newState.Chamber == newState.BulletAt
	newState.Chamber = (newState.Chamber + 1) % ChamberCount

	if lethal {
		killPlayer(&newState, cmd.Target)
		events = append(events, Event{Type: EvtPlayerDied, Target: cmd.Target})
		if done, winEvt := checkWin(&newState); done {
			events = append(events, winEvt)
			return events, newState, nil
		}
	}

	next := nextLivingTurn(newState)
	newState.Turn = next
	events = append(events, Event{Type: EvtTurnAdvanced, Turn: newState.Players[next].ID})
	return events, newState, nil
}

func applyDisconnect(s State, cmd Command) ([]Event, State, error) {
	player, ok := findPlayer(s, cmd.Actor)
	if !ok {
		return nil, s, ErrUnknownPlayer
	}
	if !player.Alive {
		return nil, s, nil
	}

	// A dropped connection is an automatic loss: the player dies on the spot
	// and the usual win check runs.
	newState := s
	killPlayer(&newState, cmd.Actor)
	events := []Event{{Type: EvtPlayerDied, Target: cmd.Actor}}

	if done, winEvt := checkWin(&newState); done {
		events = append(events, winEvt)
		return events, newState, nil
	}

	if s.Variant == VariantRoulette && newState.Players[newState.Turn].ID == cmd.Actor {
		next := nextLivingTurn(newState)
		newState.Turn = next
		events = append(events, Event{Type: EvtTurnAdvanced, Turn: newState.Players[next].ID})
	}
	return events, newState, nil
}

func enterDay(s *State) Event {
	s.Phase = PhaseDay
	return Event{Type: EvtPhaseChanged, Phase: PhaseDay, Msg: "Day has come. Discuss!"}
}

// resolveNight applies the recorded kill and heal targets. A healed victim
// survives; an unhealed victim dies.
func resolveNight(s *State) []Event {
	victim := s.Actions[ActionKill]
	healed := s.Actions[ActionHeal]

	msg := "The night passed quietly."
	deadID := ""

	if victim != "" {
		if victim == healed {
			msg = "The Mafia struck, but the Doctor saved the victim!"
		} else if p, ok := findPlayer(*s, victim); ok && p.Alive {
			killPlayer(s, victim)
			msg = fmt.Sprintf("%s was killed in the night.", p.Name)
			deadID = victim
		}
	}

	return []Event{{Type: EvtNightResolved, Msg: msg, DeadID: deadID}}
}

// checkWin evaluates the terminal condition for the state's variant and, when
// met, moves the state to GAME_OVER.
func checkWin(s *State) (bool, Event) {
	switch s.Variant {
	case VariantRoulette:
		var survivor *Player
		living := 0
		for i := range s.Players {
			if s.Players[i].Alive {
				living++
				survivor = &s.Players[i]
			}
		}
		if living != 1 {
			return false, Event{}
		}
		s.Phase = PhaseGameOver
		s.Winner = survivor.ID
		return true, Event{
			Type:   EvtGameCompleted,
			Winner: survivor.ID,
			Msg:    fmt.Sprintf("%s survives the duel.", survivor.Name),
		}

	default:
		mafia, town := 0, 0
		for _, p := range s.Players {
			if !p.Alive {
				continue
			}
			if p.Role == RoleMafia {
				mafia++
			} else {
				town++
			}
		}
		switch {
		case mafia == 0:
			s.Phase = PhaseGameOver
			s.Winner = WinnerTown
			return true, Event{Type: EvtGameCompleted, Winner: WinnerTown, Msg: "The town is safe again."}
		case mafia >= town:
			s.Phase = PhaseGameOver
			s.Winner = WinnerMafia
			return true, Event{Type: EvtGameCompleted, Winner: WinnerMafia, Msg: "The Mafia has taken the town."}
		default:
			return false, Event{}
		}
	}
}

// tallyVotes picks the most-voted living target. Any tie for the top count,
// including no votes at all, eliminates nobody.
func tallyVotes(s State) (string, bool) {
	counts := map[string]int{}
	for voter, target := range s.Votes {
		v, ok := findPlayer(s, voter)
		if !ok || !v.Alive {
			continue
		}
		t, ok := findPlayer(s, target)
		if !ok || !t.Alive {
			continue
		}
		counts[target]++
	}

	best, bestCount, tied := "", 0, false
	for target, n := range counts {
		switch {
		case n > bestCount:
			best, bestCount, tied = target, n, false
		case n == bestCount:
			tied = true
		}
	}
	if bestCount == 0 || tied {
		return "", false
	}
	return best, true
}

func findPlayer(s State, id string) (Player, bool) {
	for _, p := range s.Players {
		if p.ID == id {
			return p, true
		}
	}
	return Player{}, false
}

func killPlayer(s *State, id string) {
	for i := range s.Players {
		if s.Players[i].ID == id {
			s.Players[i].Alive = false
			return
		}
	}
}

func nextLivingTurn(s State) int {
	n := len(s.Players)
	for step := 1; step <= n; step++ {
		idx := (s.Turn + step) % n
		if s.Players[idx].Alive {
			return idx
		}
	}
	return s.Turn
}
