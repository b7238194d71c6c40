package domain

type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
	PriorityUrgent Priority = "URGENT"
)

// PriorityFor ranks a pending quantity against the pending quantities of
// every open task. The ranking is relative to the current snapshot and
// is meaningless outside it; it must be recomputed after every
// quantity-affecting mutation.
func PriorityFor(pending int, all []int) Priority {
	if len(all) == 0 {
		return PriorityMedium
	}

	minQ, maxQ := all[0], all[0]
	for _, q := range all[1:] {
		if q < minQ {
			minQ = q
		}
		if q > maxQ {
			maxQ = q
		}
	}

	rng := maxQ - minQ
	if rng == 0 {
		return PriorityMedium
	}

	position := float64(pending-minQ) / float64(rng)
	switch {
	case position >= 0.8:
		return PriorityUrgent
	case position >= 0.5:
		return PriorityHigh
	case position >= 0.2:
		return PriorityMedium
	default:
		return PriorityLow
	}
}
