package engine

import "math/rand"

// NewMafiaState builds the initial state for a mafia room. Roles are dealt
// here so the rest of the engine stays deterministic.
func NewMafiaState(players []Player, rules Rules, rng *rand.Rand) State {
	AssignRoles(players, rng)
	return State{
		Variant: VariantMafia,
		Phase:   PhaseStarting,
		Players: players,
		Votes:   map[string]string{},
		Actions: map[ActionKind]string{},
		Rules:   rules,
	}
}

// NewRouletteState builds the initial state for a duel. The bullet position
// is drawn once here; every later shot is a pure function of state.
func NewRouletteState(players []Player, rules Rules, rng *rand.Rand) State {
	return State{
		Variant:  VariantRoulette,
		Phase:    PhaseStarting,
		Players:  players,
		Votes:    map[string]string{},
		Actions:  map[ActionKind]string{},
		BulletAt: rng.Intn(ChamberCount),
		Rules:    rules,
	}
}

// Living returns how many players are still alive.
func Living(s State) int {
	n := 0
	for _, p := range s.Players {
		if p.Alive {
			n++
		}
	}
	return n
}
