// Package momentum computes recency-decayed activity scores for storylines
// and assigns their lifecycle status. Scoring is a deterministic function of
// the member dates and the evaluation time; it is recomputed from scratch on
// every cycle, so no transition history is kept.
package momentum

import (
	"fmt"
	"time"

	"github.com/newsloom/newsloom/internal/storage"
)

// Weights controls the recency decay bands and the status cutoffs.
type Weights struct {
	// Recency bands, in days from the evaluation time. A member aged
	// within FullDays contributes 1.0, within HalfDays 0.5, within
	// QuarterDays 0.25, and nothing beyond that. Boundaries are inclusive.
	FullDays    int
	HalfDays    int
	QuarterDays int

	// ActiveMomentum is the score above which a storyline with activity in
	// the last FullDays is active. DormantDays is the inactivity horizon
	// beyond which a storyline goes dormant.
	ActiveMomentum float64
	DormantDays    int
}

// DefaultWeights returns the calibrated production decay bands.
func DefaultWeights() Weights {
	return Weights{
		FullDays:       7,
		HalfDays:       14,
		QuarterDays:    30,
		ActiveMomentum: 0.5,
		DormantDays:    14,
	}
}

// Validate rejects weight sets whose band ordering is inconsistent.
func (w Weights) Validate() error {
	if w.FullDays <= 0 || w.HalfDays <= w.FullDays || w.QuarterDays <= w.HalfDays {
		return fmt.Errorf("decay bands must be increasing: full %d, half %d, quarter %d",
			w.FullDays, w.HalfDays, w.QuarterDays)
	}
	if w.ActiveMomentum < 0 {
		return fmt.Errorf("active momentum cutoff %v must be non-negative", w.ActiveMomentum)
	}
	if w.DormantDays <= 0 {
		return fmt.Errorf("dormant horizon %d days must be positive", w.DormantDays)
	}
	return nil
}

// Score computes the momentum score and status for one storyline from its
// member dates at the given evaluation time. Momentum is the sum of recency
// weights normalized by the storyline's duration in days; a single-day
// storyline keeps the raw sum.
func (w Weights) Score(memberDates []time.Time, now time.Time) (float64, string) {
	if len(memberDates) == 0 {
		return 0, storage.StatusConcluded
	}

	first, last := memberDates[0], memberDates[0]
	sum := 0.0
	for _, d := range memberDates {
		if d.Before(first) {
			first = d
		}
		if d.After(last) {
			last = d
		}
		switch age := daysSince(d, now); {
		case age <= w.FullDays:
			sum += 1.0
		case age <= w.HalfDays:
			sum += 0.5
		case age <= w.QuarterDays:
			sum += 0.25
		}
	}

	momentum := sum
	if duration := daysSince(first, last); duration > 0 {
		momentum = sum / float64(duration)
	}

	sinceLast := daysSince(last, now)
	var status string
	switch {
	case momentum > w.ActiveMomentum && sinceLast <= w.FullDays:
		status = storage.StatusActive
	case momentum > 0 && sinceLast <= w.HalfDays:
		status = storage.StatusActive
	case sinceLast > w.DormantDays:
		status = storage.StatusDormant
	default:
		status = storage.StatusConcluded
	}
	return momentum, status
}

// daysSince returns whole days from a to b (negative if b precedes a).
func daysSince(a, b time.Time) int {
	return int(b.Sub(a).Hours() / 24)
}
