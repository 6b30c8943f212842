// Package detect scans the corpus for topic surges, dormant storyline
// reactivations, and newly emergent actors, emitting alerts. The three checks
// are independent and run over immutable views of the same "now" snapshot, so
// items evaluated at different instants within one run agree on window
// boundaries.
package detect

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/newsloom/newsloom/internal/storage"
)

// Config holds the detection windows and thresholds.
type Config struct {
	// WindowDays is the trailing comparison window for all three checks.
	WindowDays int

	// SurgeRatio is the minimum recent/previous growth to flag a surge;
	// SurgeMediumRatio and SurgeHighRatio scale the severity. With the
	// defaults every triggered surge is at least medium.
	SurgeRatio       float64
	SurgeMediumRatio float64
	SurgeHighRatio   float64

	// ReactivationDormantDays is how long a storyline's pre-window
	// activity must predate now for a reactivation to count.
	ReactivationDormantDays int

	// NewActorMinMentions is the minimum distinct-article mentions inside
	// the window for an entity with no prior history to be flagged.
	NewActorMinMentions int
}

// DefaultConfig returns the standard detection thresholds.
func DefaultConfig() Config {
	return Config{
		WindowDays:              7,
		SurgeRatio:              1.5,
		SurgeMediumRatio:        1.5,
		SurgeHighRatio:          3.0,
		ReactivationDormantDays: 14,
		NewActorMinMentions:     5,
	}
}

// Validate rejects inconsistent threshold orderings.
func (c Config) Validate() error {
	if c.WindowDays <= 0 {
		return fmt.Errorf("window %d days must be positive", c.WindowDays)
	}
	if c.SurgeRatio <= 1 {
		return fmt.Errorf("surge ratio %v must exceed 1", c.SurgeRatio)
	}
	if c.SurgeMediumRatio < c.SurgeRatio || c.SurgeHighRatio < c.SurgeMediumRatio {
		return fmt.Errorf("surge severity ratios must be ordered: %v <= %v <= %v",
			c.SurgeRatio, c.SurgeMediumRatio, c.SurgeHighRatio)
	}
	if c.ReactivationDormantDays < c.WindowDays {
		return fmt.Errorf("dormant horizon %d days must be at least the window (%d days)",
			c.ReactivationDormantDays, c.WindowDays)
	}
	if c.NewActorMinMentions < 1 {
		return fmt.Errorf("new actor mention floor %d must be at least 1", c.NewActorMinMentions)
	}
	return nil
}

// Store is the storage surface the detector reads and appends to.
type Store interface {
	ClusterIDs() ([]int64, error)
	CountClusterArticles(clusterID int64, from, to time.Time) (int, error)
	ListStorylines(f storage.StorylineFilter) ([]storage.Storyline, error)
	ListStorylineMembers(storylineID int64) ([]storage.StorylineMember, error)
	EntityMentionsSince(since time.Time) ([]storage.RecentEntityMention, error)
	CountEntityMentionsBefore(entityID int64, before time.Time) (int, error)
	HasOpenAlert(kind, contextKey string) (bool, error)
	SaveAlert(a storage.Alert) error
}

// Summary reports how many alerts a detection run created, per kind.
type Summary struct {
	Surges        int `json:"surges"`
	Reactivations int `json:"reactivations"`
	NewActors     int `json:"new_actors"`
	AlertsCreated int `json:"alerts_created"`
}

// Detector runs the anomaly checks and appends resulting alerts.
type Detector struct {
	store  Store
	cfg    Config
	logger *slog.Logger
}

// New validates the config and returns a Detector.
func New(store Store, cfg Config) (*Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid detection config: %w", err)
	}
	return &Detector{store: store, cfg: cfg, logger: slog.Default()}, nil
}

// Run executes all checks against a single snapshot of now. Each alert is
// committed independently; alerts whose kind and context key already have an
// open unacknowledged alert are suppressed, so re-running on unchanged data
// creates nothing new.
func (d *Detector) Run(ctx context.Context, now time.Time) (Summary, error) {
	var summary Summary

	surges, err := d.checkTopicSurges(ctx, now)
	if err != nil {
		return summary, fmt.Errorf("checking topic surges: %w", err)
	}
	summary.Surges, err = d.emit(surges)
	if err != nil {
		return summary, err
	}

	reactivations, err := d.checkReactivations(ctx, now)
	if err != nil {
		return summary, fmt.Errorf("checking story reactivations: %w", err)
	}
	summary.Reactivations, err = d.emit(reactivations)
	if err != nil {
		return summary, err
	}

	actors, err := d.checkNewActors(ctx, now)
	if err != nil {
		return summary, fmt.Errorf("checking new actors: %w", err)
	}
	summary.NewActors, err = d.emit(actors)
	if err != nil {
		return summary, err
	}

	summary.AlertsCreated = summary.Surges + summary.Reactivations + summary.NewActors
	d.logger.Info("detection run complete",
		"surges", summary.Surges,
		"reactivations", summary.Reactivations,
		"new_actors", summary.NewActors,
	)
	return summary, nil
}

// emit saves alerts, skipping any with a matching open alert. Returns the
// number actually created.
func (d *Detector) emit(alerts []storage.Alert) (int, error) {
	created := 0
	for _, a := range alerts {
		open, err := d.store.HasOpenAlert(a.Kind, a.ContextKey)
		if err != nil {
			return created, fmt.Errorf("checking open alerts for %s: %w", a.ContextKey, err)
		}
		if open {
			d.logger.Debug("suppressing duplicate alert", "kind", a.Kind, "context_key", a.ContextKey)
			continue
		}
		if err := d.store.SaveAlert(a); err != nil {
			return created, fmt.Errorf("saving alert %s: %w", a.ID, err)
		}
		created++
	}
	return created, nil
}
