// Package pipeline sequences the batch passes: storyline build, momentum
// rescore, and anomaly detection. Passes run as background jobs, never inline
// with request handling.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/newsloom/newsloom/internal/detect"
	"github.com/newsloom/newsloom/internal/momentum"
	"github.com/newsloom/newsloom/internal/storage"
	"github.com/newsloom/newsloom/internal/thread"
)

// Runner wires the engine stages against one store.
type Runner struct {
	store    *storage.Store
	builder  *thread.Builder
	scorer   *momentum.Engine
	detector *detect.Detector
	logger   *slog.Logger
}

// NewRunner builds a Runner from validated components.
func NewRunner(store *storage.Store, builder *thread.Builder, scorer *momentum.Engine, detector *detect.Detector) *Runner {
	return &Runner{
		store:    store,
		builder:  builder,
		scorer:   scorer,
		detector: detector,
		logger:   slog.Default(),
	}
}

// BuildSummary reports a completed rebuild pass.
type BuildSummary struct {
	Storylines      int `json:"storylines"`
	ArticlesGrouped int `json:"articles_grouped"`
	EdgesProcessed  int `json:"edges_processed"`
	EdgesSkipped    int `json:"edges_skipped"`
	Rescored        int `json:"rescored"`
}

// Rebuild runs the storyline builder over the full similarity graph and then
// rescores momentum. In incremental mode existing groups are preserved and
// only unassigned articles are attached; otherwise the partition is rebuilt
// from scratch.
func (r *Runner) Rebuild(ctx context.Context, incremental bool) (BuildSummary, error) {
	edges, err := r.store.ListSimilarities()
	if err != nil {
		return BuildSummary{}, fmt.Errorf("loading similarity edges: %w", err)
	}
	articles, err := r.store.ListArticles()
	if err != nil {
		return BuildSummary{}, fmt.Errorf("loading articles: %w", err)
	}

	var result *thread.Result
	if incremental {
		assignment, err := r.store.ExistingAssignment()
		if err != nil {
			return BuildSummary{}, fmt.Errorf("loading existing assignment: %w", err)
		}
		tiers, err := r.store.ExistingMemberTiers()
		if err != nil {
			return BuildSummary{}, fmt.Errorf("loading existing tiers: %w", err)
		}
		result, err = r.builder.BuildIncremental(ctx, edges, articles, assignment, tiers)
		if err != nil {
			return BuildSummary{}, fmt.Errorf("incremental build: %w", err)
		}
	} else {
		if err := r.store.ClearStorylines(); err != nil {
			return BuildSummary{}, fmt.Errorf("clearing storylines: %w", err)
		}
		result, err = r.builder.Build(ctx, edges, articles)
		if err != nil {
			return BuildSummary{}, fmt.Errorf("full build: %w", err)
		}
	}

	for _, g := range result.Groups {
		if err := ctx.Err(); err != nil {
			return BuildSummary{}, err
		}
		st := storage.Storyline{
			ID:           g.ID,
			Label:        g.Label,
			Status:       storage.StatusActive,
			FirstDate:    g.FirstDate,
			LastDate:     g.LastDate,
			ArticleCount: len(g.Members),
		}
		members := make([]storage.StorylineArticle, len(g.Members))
		for i, m := range g.Members {
			members[i] = storage.StorylineArticle{
				StorylineID:   g.ID,
				ArticleID:     m.ArticleID,
				Tier:          m.Tier.String(),
				SequenceOrder: m.SequenceOrder,
			}
		}
		if err := r.store.SaveStoryline(st, members); err != nil {
			return BuildSummary{}, fmt.Errorf("saving storyline %d: %w", g.ID, err)
		}
	}

	rescored, err := r.scorer.Rescore(ctx, time.Now().UTC())
	if err != nil {
		return BuildSummary{}, fmt.Errorf("rescoring momentum: %w", err)
	}

	return BuildSummary{
		Storylines:      result.Stats.Groups,
		ArticlesGrouped: result.Stats.ArticlesGrouped,
		EdgesProcessed:  result.Stats.EdgesProcessed,
		EdgesSkipped:    result.Stats.EdgesSkipped,
		Rescored:        rescored,
	}, nil
}

// RunDetections rescores momentum so statuses are current, then runs the
// anomaly checks.
func (r *Runner) RunDetections(ctx context.Context) (detect.Summary, error) {
	now := time.Now().UTC()
	if _, err := r.scorer.Rescore(ctx, now); err != nil {
		return detect.Summary{}, fmt.Errorf("rescoring before detection: %w", err)
	}
	return r.detector.Run(ctx, now)
}
