package detect

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/newsloom/newsloom/internal/storage"
)

// checkReactivations finds storylines that picked up new member articles
// inside the trailing window after a quiet stretch longer than the dormant
// horizon. Dormancy is derived from the member dates rather than the stored
// status, so the check gives the same answer whether it runs before or after
// the momentum pass flips a reactivated storyline back to active.
func (d *Detector) checkReactivations(ctx context.Context, now time.Time) ([]storage.Alert, error) {
	storylines, err := d.store.ListStorylines(storage.StorylineFilter{})
	if err != nil {
		return nil, fmt.Errorf("listing storylines: %w", err)
	}

	windowStart := now.Add(-time.Duration(d.cfg.WindowDays) * 24 * time.Hour)

	var alerts []storage.Alert
	for _, st := range storylines {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		// Skip storylines with no window activity without loading members.
		if st.LastDate.Before(windowStart) {
			continue
		}

		members, err := d.store.ListStorylineMembers(st.ID)
		if err != nil {
			return nil, fmt.Errorf("listing members of storyline %d: %w", st.ID, err)
		}

		var newArticleIDs []int64
		var lastQuiet time.Time
		for _, m := range members {
			if !m.Date.Before(windowStart) {
				newArticleIDs = append(newArticleIDs, m.ArticleID)
			} else if m.Date.After(lastQuiet) {
				lastQuiet = m.Date
			}
		}
		if len(newArticleIDs) == 0 || lastQuiet.IsZero() {
			continue
		}

		dormantDays := int(now.Sub(lastQuiet).Hours() / 24)
		if dormantDays <= d.cfg.ReactivationDormantDays {
			continue
		}

		contextJSON, err := json.Marshal(map[string]any{
			"storyline_id":    st.ID,
			"label":           st.Label,
			"dormant_days":    dormantDays,
			"new_article_ids": newArticleIDs,
		})
		if err != nil {
			return nil, fmt.Errorf("marshaling reactivation context: %w", err)
		}

		alerts = append(alerts, storage.Alert{
			ID:          uuid.New().String(),
			Kind:        storage.AlertStoryReactivation,
			ContextJSON: string(contextJSON),
			ContextKey:  fmt.Sprintf("storyline:%d", st.ID),
			TriggeredAt: now,
			Description: fmt.Sprintf("Storyline %q (quiet for %d days) has %d new article(s)",
				st.Label, dormantDays, len(newArticleIDs)),
			Severity: storage.SeverityMedium,
		})
	}
	return alerts, nil
}
