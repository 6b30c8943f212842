package momentum

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// StorylineStore is the storage surface the engine needs.
type StorylineStore interface {
	AllMemberDates() (map[int64][]time.Time, error)
	UpdateStorylineScore(id int64, momentum float64, status string) error
}

// Engine rescores every storyline against a single evaluation time. Each
// storyline is committed independently, so an aborted pass leaves previously
// updated storylines consistent and a restarted pass converges to the same
// result.
type Engine struct {
	store   StorylineStore
	weights Weights
	logger  *slog.Logger
}

// NewEngine validates the weights and returns an Engine.
func NewEngine(store StorylineStore, w Weights) (*Engine, error) {
	if err := w.Validate(); err != nil {
		return nil, fmt.Errorf("invalid momentum weights: %w", err)
	}
	return &Engine{store: store, weights: w, logger: slog.Default()}, nil
}

// Rescore recomputes momentum and status for all storylines as of now.
// Returns the number of storylines updated.
func (e *Engine) Rescore(ctx context.Context, now time.Time) (int, error) {
	dates, err := e.store.AllMemberDates()
	if err != nil {
		return 0, fmt.Errorf("loading member dates: %w", err)
	}

	updated := 0
	for id, memberDates := range dates {
		if err := ctx.Err(); err != nil {
			return updated, err
		}
		score, status := e.weights.Score(memberDates, now)
		if err := e.store.UpdateStorylineScore(id, score, status); err != nil {
			return updated, fmt.Errorf("updating storyline %d: %w", id, err)
		}
		updated++
	}

	e.logger.Info("momentum rescore complete", "storylines", updated)
	return updated, nil
}
