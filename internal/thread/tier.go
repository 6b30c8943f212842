// Package thread groups articles into storylines by classifying similarity
// edges into relationship tiers and merging them with a tier-priority
// union-find pass.
package thread

import "fmt"

// Tier is the relationship strength class assigned to a similarity edge.
type Tier int

const (
	// TierNone marks an edge with no storyline relationship.
	TierNone Tier = iota
	// Tier1 is a near-duplicate: high similarity within a short window.
	Tier1
	// Tier2 is a continuation: moderate similarity within a week.
	Tier2
	// Tier3 is related coverage: lower similarity backed by shared entities.
	Tier3
)

func (t Tier) String() string {
	switch t {
	case Tier1:
		return "tier1"
	case Tier2:
		return "tier2"
	case Tier3:
		return "tier3"
	default:
		return "none"
	}
}

// Thresholds are the tier classification boundaries. All fields are exposed
// so deployments can tune them; DefaultThresholds matches the calibrated
// production values.
type Thresholds struct {
	Tier1MinSim  float64
	Tier1MaxDays int

	Tier2MinSim  float64
	Tier2MaxSim  float64
	Tier2MaxDays int

	Tier3MinSim            float64
	Tier3MaxSim            float64
	Tier3MinSharedEntities int
}

// DefaultThresholds returns the standard tier boundaries.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Tier1MinSim:  0.85,
		Tier1MaxDays: 3,

		Tier2MinSim:  0.65,
		Tier2MaxSim:  0.85,
		Tier2MaxDays: 7,

		Tier3MinSim:            0.50,
		Tier3MaxSim:            0.65,
		Tier3MinSharedEntities: 2,
	}
}

// Validate rejects threshold sets whose ordering is inconsistent. Called at
// engine startup; a failure here refuses to run rather than producing a
// nonsense partition.
func (t Thresholds) Validate() error {
	if t.Tier1MinSim <= 0 || t.Tier1MinSim > 1 {
		return fmt.Errorf("tier1_min_sim %v out of (0,1]", t.Tier1MinSim)
	}
	if t.Tier2MinSim >= t.Tier2MaxSim {
		return fmt.Errorf("tier2_min_sim %v must be below tier2_max_sim %v", t.Tier2MinSim, t.Tier2MaxSim)
	}
	if t.Tier3MinSim >= t.Tier3MaxSim {
		return fmt.Errorf("tier3_min_sim %v must be below tier3_max_sim %v", t.Tier3MinSim, t.Tier3MaxSim)
	}
	if t.Tier2MaxSim > t.Tier1MinSim {
		return fmt.Errorf("tier2_max_sim %v must not exceed tier1_min_sim %v", t.Tier2MaxSim, t.Tier1MinSim)
	}
	if t.Tier3MaxSim > t.Tier2MinSim {
		return fmt.Errorf("tier3_max_sim %v must not exceed tier2_min_sim %v", t.Tier3MaxSim, t.Tier2MinSim)
	}
	if t.Tier1MaxDays <= 0 || t.Tier2MaxDays <= 0 {
		return fmt.Errorf("tier windows must be positive (tier1 %d days, tier2 %d days)", t.Tier1MaxDays, t.Tier2MaxDays)
	}
	if t.Tier3MinSharedEntities < 1 {
		return fmt.Errorf("tier3_min_shared_entities %d must be at least 1", t.Tier3MinSharedEntities)
	}
	return nil
}

// Edge is one candidate relationship between two articles, resolved against
// article dates and shared-entity counts.
type Edge struct {
	Src            int64
	Dst            int64
	Similarity     float64
	DaysApart      int
	SharedEntities int
}

// Classify assigns an edge to a relationship tier. Pure function of one edge:
// the same edge always classifies identically.
func (t Thresholds) Classify(e Edge) Tier {
	switch {
	case e.Similarity >= t.Tier1MinSim && e.DaysApart <= t.Tier1MaxDays:
		return Tier1
	case e.Similarity >= t.Tier2MinSim && e.Similarity < t.Tier2MaxSim && e.DaysApart <= t.Tier2MaxDays:
		return Tier2
	case e.Similarity >= t.Tier3MinSim && e.Similarity < t.Tier3MaxSim && e.SharedEntities >= t.Tier3MinSharedEntities:
		return Tier3
	default:
		return TierNone
	}
}
