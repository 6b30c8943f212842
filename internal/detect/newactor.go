package detect

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/newsloom/newsloom/internal/storage"
)

// checkNewActors flags entities prominent in the trailing window with no
// mentions at all before it.
func (d *Detector) checkNewActors(ctx context.Context, now time.Time) ([]storage.Alert, error) {
	windowStart := now.Add(-time.Duration(d.cfg.WindowDays) * 24 * time.Hour)

	recent, err := d.store.EntityMentionsSince(windowStart)
	if err != nil {
		return nil, fmt.Errorf("listing recent entity mentions: %w", err)
	}

	var alerts []storage.Alert
	for _, m := range recent {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if m.Articles < d.cfg.NewActorMinMentions {
			continue
		}

		historical, err := d.store.CountEntityMentionsBefore(m.EntityID, windowStart)
		if err != nil {
			return nil, fmt.Errorf("counting history for entity %d: %w", m.EntityID, err)
		}
		if historical > 0 {
			continue
		}

		severity := storage.SeverityLow
		if m.Articles > d.cfg.NewActorMinMentions {
			severity = storage.SeverityMedium
		}

		contextJSON, err := json.Marshal(map[string]any{
			"entity_id":   m.EntityID,
			"name":        m.Name,
			"mentions_7d": m.Articles,
		})
		if err != nil {
			return nil, fmt.Errorf("marshaling new actor context: %w", err)
		}

		desc := fmt.Sprintf("New actor: %s appeared in %d article(s) this week", m.Name, m.Articles)
		if m.Type != "" {
			desc = fmt.Sprintf("New actor: %s (%s) appeared in %d article(s) this week", m.Name, m.Type, m.Articles)
		}

		alerts = append(alerts, storage.Alert{
			ID:          uuid.New().String(),
			Kind:        storage.AlertNewActor,
			ContextJSON: string(contextJSON),
			ContextKey:  fmt.Sprintf("entity:%d", m.EntityID),
			TriggeredAt: now,
			Description: desc,
			Severity:    severity,
		})
	}
	return alerts, nil
}
