package detect

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/newsloom/newsloom/internal/storage"
)

// checkTopicSurges compares each cluster's article count in the trailing
// window against the preceding window of the same length.
func (d *Detector) checkTopicSurges(ctx context.Context, now time.Time) ([]storage.Alert, error) {
	clusters, err := d.store.ClusterIDs()
	if err != nil {
		return nil, fmt.Errorf("listing clusters: %w", err)
	}

	window := time.Duration(d.cfg.WindowDays) * 24 * time.Hour
	recentStart := now.Add(-window)
	previousStart := now.Add(-2 * window)
	// Article dates are day-granular; extend the recent window through the
	// end of today.
	recentEnd := now.Add(24 * time.Hour)

	var alerts []storage.Alert
	for _, clusterID := range clusters {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		recent, err := d.store.CountClusterArticles(clusterID, recentStart, recentEnd)
		if err != nil {
			return nil, fmt.Errorf("counting recent articles for cluster %d: %w", clusterID, err)
		}
		if recent == 0 {
			continue
		}
		previous, err := d.store.CountClusterArticles(clusterID, previousStart, recentStart)
		if err != nil {
			return nil, fmt.Errorf("counting previous articles for cluster %d: %w", clusterID, err)
		}

		baseline := previous
		if baseline < 1 {
			baseline = 1
		}
		ratio := float64(recent) / float64(baseline)
		if ratio < d.cfg.SurgeRatio {
			continue
		}

		severity := storage.SeverityLow
		switch {
		case ratio >= d.cfg.SurgeHighRatio:
			severity = storage.SeverityHigh
		case ratio >= d.cfg.SurgeMediumRatio:
			severity = storage.SeverityMedium
		}

		contextJSON, err := json.Marshal(map[string]any{
			"cluster_id":     clusterID,
			"current_count":  recent,
			"previous_count": previous,
			"ratio":          ratio,
		})
		if err != nil {
			return nil, fmt.Errorf("marshaling surge context: %w", err)
		}

		alerts = append(alerts, storage.Alert{
			ID:          uuid.New().String(),
			Kind:        storage.AlertTopicSurge,
			ContextJSON: string(contextJSON),
			ContextKey:  fmt.Sprintf("cluster:%d", clusterID),
			TriggeredAt: now,
			Description: fmt.Sprintf("Cluster %d: %d articles in the last %d days vs %d in the previous period (%.1fx growth)",
				clusterID, recent, d.cfg.WindowDays, previous, ratio),
			Severity: severity,
		})
	}
	return alerts, nil
}
