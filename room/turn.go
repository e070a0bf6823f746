package room

import (
	"sort"

	"github.com/wfunc/boardroom/models"
)

// NormalizeOrder returns the rotation to schedule against: entries of order
// that are still players, in their existing relative order, followed by any
// players missing from order. Missing players are appended by join time,
// ties broken by uid. The result covers exactly the keys of players once.
func NormalizeOrder(order []string, players map[string]*models.Player) []string {
	out := make([]string, 0, len(players))
	known := make(map[string]struct{}, len(players))
	for _, uid := range order {
		if _, ok := players[uid]; !ok {
			continue
		}
		if _, dup := known[uid]; dup {
			continue
		}
		known[uid] = struct{}{}
		out = append(out, uid)
	}

	var missing []string
	for uid := range players {
		if _, ok := known[uid]; !ok {
			missing = append(missing, uid)
		}
	}
	sort.Slice(missing, func(i, j int) bool {
		a, b := players[missing[i]], players[missing[j]]
		if a != nil && b != nil && !a.JoinedAt.Equal(b.JoinedAt) {
			return a.JoinedAt.Before(b.JoinedAt)
		}
		return missing[i] < missing[j]
	})
	return append(out, missing...)
}

// WrapIndex maps index into [0, n). n must be positive.
func WrapIndex(index, n int) int {
	i := index % n
	if i < 0 {
		i += n
	}
	return i
}

// CurrentPlayer returns whose turn it is. It reports false for an empty rotation.
func CurrentPlayer(order []string, index int) (string, bool) {
	if len(order) == 0 {
		return "", false
	}
	return order[WrapIndex(index, len(order))], true
}
