package engine

import "math/rand"

// RolePool returns the role multiset for a player count. Four and five
// players share the small pool; six or more get the large one. Any index past
// the pool pads with CIVILIAN.
func RolePool(playerCount int) []Role {
	if playerCount >= 6 {
		return []Role{RoleMafia, RoleMafia, RoleSheriff, RoleDoctor, RoleCivilian, RoleCivilian}
	}
	return []Role{RoleMafia, RoleSheriff, RoleCivilian, RoleCivilian}
}

// AssignRoles deals a uniformly shuffled role pool to the players, one role
// each, positionally after the shuffle.
func AssignRoles(players []Player, rng *rand.Rand) {
	pool := RolePool(len(players))
	rng.Shuffle(len(pool), func(i, j int) {
		pool[i], pool[j] = pool[j], pool[i]
	})

	for i := range players {
		if i < len(pool) {
			players[i].Role = pool[i]
		} else {
			players[i].Role = RoleCivilian
		}
	}
}
