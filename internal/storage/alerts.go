package storage

import (
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

// SaveAlert appends a new alert to the log.
func (s *Store) SaveAlert(a Alert) error {
	severity := a.Severity
	if severity == "" {
		severity = SeverityMedium
	}
	_, err := s.db.Exec(`
		INSERT INTO alerts (id, kind, context_json, context_key, triggered_at, description, severity, acknowledged)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Kind, a.ContextJSON, a.ContextKey,
		a.TriggeredAt.UTC().Format(time.RFC3339), a.Description, severity, boolToInt(a.Acknowledged),
	)
	return err
}

// HasOpenAlert reports whether an unacknowledged alert with the same kind and
// context key already exists. Detection passes use this to stay idempotent
// across re-runs on unchanged data.
func (s *Store) HasOpenAlert(kind, contextKey string) (bool, error) {
	var count int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM alerts
		WHERE kind = ? AND context_key = ? AND acknowledged = 0`,
		kind, contextKey,
	).Scan(&count)
	return count > 0, err
}

// AlertFilter narrows ListAlerts results. Zero values mean "no constraint".
type AlertFilter struct {
	Kind     string
	Severity string
	Since    time.Time
	Limit    int
}

// DefaultAlertLimit and MaxAlertLimit bound the alert listing page size.
const (
	DefaultAlertLimit = 50
	MaxAlertLimit     = 200
)

// ListAlerts returns alerts matching the filter, most recent first.
func (s *Store) ListAlerts(f AlertFilter) ([]Alert, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultAlertLimit
	}
	if limit > MaxAlertLimit {
		limit = MaxAlertLimit
	}

	q := sq.Select("id", "kind", "context_json", "context_key", "triggered_at", "description", "severity", "acknowledged").
		From("alerts").
		OrderBy("triggered_at DESC").
		Limit(uint64(limit))

	if f.Kind != "" {
		q = q.Where(sq.Eq{"kind": f.Kind})
	}
	if f.Severity != "" {
		q = q.Where(sq.Eq{"severity": f.Severity})
	}
	if !f.Since.IsZero() {
		q = q.Where(sq.GtOrEq{"triggered_at": f.Since.UTC().Format(time.RFC3339)})
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building alert query: %w", err)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var alerts []Alert
	for rows.Next() {
		var a Alert
		var triggeredAt string
		var acked int
		if err := rows.Scan(&a.ID, &a.Kind, &a.ContextJSON, &a.ContextKey, &triggeredAt, &a.Description, &a.Severity, &acked); err != nil {
			return nil, err
		}
		if a.TriggeredAt, err = time.Parse(time.RFC3339, triggeredAt); err != nil {
			return nil, fmt.Errorf("parsing triggered_at for alert %s: %w", a.ID, err)
		}
		a.Acknowledged = acked != 0
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// GetAlert returns one alert by id.
func (s *Store) GetAlert(id string) (Alert, error) {
	var a Alert
	var triggeredAt string
	var acked int
	err := s.db.QueryRow(`
		SELECT id, kind, context_json, context_key, triggered_at, description, severity, acknowledged
		FROM alerts WHERE id = ?`, id,
	).Scan(&a.ID, &a.Kind, &a.ContextJSON, &a.ContextKey, &triggeredAt, &a.Description, &a.Severity, &acked)
	if err == sql.ErrNoRows {
		return Alert{}, ErrNotFound
	}
	if err != nil {
		return Alert{}, err
	}
	if a.TriggeredAt, err = time.Parse(time.RFC3339, triggeredAt); err != nil {
		return Alert{}, fmt.Errorf("parsing triggered_at for alert %s: %w", a.ID, err)
	}
	a.Acknowledged = acked != 0
	return a, nil
}

// AcknowledgeAlert sets the acknowledged flag and returns the number of
// rows that actually changed. Acknowledging an already acknowledged alert is
// a no-op (returns 0), not an error.
func (s *Store) AcknowledgeAlert(id string) (int, error) {
	res, err := s.db.Exec(`UPDATE alerts SET acknowledged = 1 WHERE id = ? AND acknowledged = 0`, id)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n == 0 {
		// Distinguish "already acknowledged" from "does not exist".
		var exists int
		if err := s.db.QueryRow(`SELECT COUNT(*) FROM alerts WHERE id = ?`, id).Scan(&exists); err != nil {
			return 0, err
		}
		if exists == 0 {
			return 0, ErrNotFound
		}
	}
	return int(n), nil
}

// AlertStats summarizes the alert log.
type AlertStats struct {
	Total          int
	Unacknowledged int
	Recent24h      int
}

// GetAlertStats returns alert totals relative to now.
func (s *Store) GetAlertStats(now time.Time) (AlertStats, error) {
	var stats AlertStats
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM alerts`).Scan(&stats.Total); err != nil {
		return AlertStats{}, err
	}
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM alerts WHERE acknowledged = 0`).Scan(&stats.Unacknowledged); err != nil {
		return AlertStats{}, err
	}
	cutoff := now.UTC().Add(-24 * time.Hour).Format(time.RFC3339)
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM alerts WHERE triggered_at >= ?`, cutoff).Scan(&stats.Recent24h); err != nil {
		return AlertStats{}, err
	}
	return stats, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
