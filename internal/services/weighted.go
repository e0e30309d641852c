package services

import "github.com/tbourn/go-group-bot/internal/domain"

// PickWeighted returns the name of one category drawn with probability
// weight/total. A uniform value in [0, total) is walked down the table in
// order until it drops to zero or below; the last category absorbs any
// floating point remainder.
func PickWeighted(weights []domain.FortuneWeight, rng Rand) (string, error) {
	total := 0
	for _, w := range weights {
		if w.Weight > 0 {
			total += w.Weight
		}
	}
	if len(weights) == 0 || total <= 0 {
		return "", ErrNoWeights
	}

	r := rng.Float64() * float64(total)
	last := ""
	for _, w := range weights {
		if w.Weight <= 0 {
			continue
		}
		last = w.Name
		r -= float64(w.Weight)
		if r <= 0 {
			return w.Name, nil
		}
	}
	return last, nil
}
