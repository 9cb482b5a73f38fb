package modes

import (
	"math/rand"

	"sprinklerprep/internal/models"
)

// RapidCount is the length of a Rapid 10 round.
const RapidCount = 10

// Shuffled returns a uniformly shuffled copy of pool.
func Shuffled(pool []models.Question, rng *rand.Rand) []models.Question {
	out := make([]models.Question, len(pool))
	copy(out, pool)
	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

// DrawRapid samples up to RapidCount questions without replacement.
func DrawRapid(pool []models.Question, rng *rand.Rand) []models.Question {
	out := Shuffled(pool, rng)
	if len(out) > RapidCount {
		out = out[:RapidCount]
	}
	return out
}

// DrawGauntlet returns every question of pool whose id is in missed, in pool
// order. Ids no longer in the bank are skipped.
func DrawGauntlet(pool []models.Question, missed []string) []models.Question {
	want := make(map[string]struct{}, len(missed))
	for _, id := range missed {
		want[id] = struct{}{}
	}
	out := make([]models.Question, 0, len(missed))
	for _, q := range pool {
		if _, ok := want[q.ID]; ok {
			out = append(out, q)
		}
	}
	return out
}
