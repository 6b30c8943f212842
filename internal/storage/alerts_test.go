package storage

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func testAlert(kind, contextKey string, triggeredAt time.Time) Alert {
	return Alert{
		ID:          uuid.New().String(),
		Kind:        kind,
		ContextJSON: `{"cluster_id": 1}`,
		ContextKey:  contextKey,
		TriggeredAt: triggeredAt,
		Description: "test alert",
		Severity:    SeverityMedium,
	}
}

func TestSaveAndListAlerts(t *testing.T) {
	s := openTestStore(t)

	now := time.Now().UTC()
	older := testAlert(AlertTopicSurge, "cluster:1", now.Add(-2*time.Hour))
	newer := testAlert(AlertNewActor, "entity:7", now)
	for _, a := range []Alert{older, newer} {
		if err := s.SaveAlert(a); err != nil {
			t.Fatalf("SaveAlert: %v", err)
		}
	}

	all, err := s.ListAlerts(AlertFilter{})
	if err != nil {
		t.Fatalf("ListAlerts: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 alerts, got %d", len(all))
	}
	// Most recent first.
	if all[0].ID != newer.ID {
		t.Errorf("expected newest alert first, got %s", all[0].Kind)
	}

	surges, err := s.ListAlerts(AlertFilter{Kind: AlertTopicSurge})
	if err != nil {
		t.Fatalf("ListAlerts(kind): %v", err)
	}
	if len(surges) != 1 || surges[0].ID != older.ID {
		t.Errorf("kind filter failed: %+v", surges)
	}

	recent, err := s.ListAlerts(AlertFilter{Since: now.Add(-time.Hour)})
	if err != nil {
		t.Fatalf("ListAlerts(since): %v", err)
	}
	if len(recent) != 1 || recent[0].ID != newer.ID {
		t.Errorf("since filter failed: %+v", recent)
	}
}

func TestListAlertsLimit(t *testing.T) {
	s := openTestStore(t)

	now := time.Now().UTC()
	for i := 0; i < 5; i++ {
		if err := s.SaveAlert(testAlert(AlertTopicSurge, "cluster:1", now.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("SaveAlert: %v", err)
		}
	}

	limited, err := s.ListAlerts(AlertFilter{Limit: 3})
	if err != nil {
		t.Fatalf("ListAlerts: %v", err)
	}
	if len(limited) != 3 {
		t.Errorf("expected 3 alerts with limit, got %d", len(limited))
	}
}

func TestHasOpenAlert(t *testing.T) {
	s := openTestStore(t)

	a := testAlert(AlertTopicSurge, "cluster:3", time.Now().UTC())
	if err := s.SaveAlert(a); err != nil {
		t.Fatalf("SaveAlert: %v", err)
	}

	open, err := s.HasOpenAlert(AlertTopicSurge, "cluster:3")
	if err != nil {
		t.Fatalf("HasOpenAlert: %v", err)
	}
	if !open {
		t.Error("expected open alert for cluster:3")
	}

	// A different kind with the same key is not a match.
	open, err = s.HasOpenAlert(AlertNewActor, "cluster:3")
	if err != nil {
		t.Fatalf("HasOpenAlert: %v", err)
	}
	if open {
		t.Error("kind should be part of the suppression key")
	}

	// Acknowledging closes the suppression window.
	if _, err := s.AcknowledgeAlert(a.ID); err != nil {
		t.Fatalf("AcknowledgeAlert: %v", err)
	}
	open, err = s.HasOpenAlert(AlertTopicSurge, "cluster:3")
	if err != nil {
		t.Fatalf("HasOpenAlert: %v", err)
	}
	if open {
		t.Error("acknowledged alert should no longer suppress")
	}
}

func TestAcknowledgeAlertIdempotent(t *testing.T) {
	s := openTestStore(t)

	a := testAlert(AlertStoryReactivation, "storyline:1", time.Now().UTC())
	if err := s.SaveAlert(a); err != nil {
		t.Fatalf("SaveAlert: %v", err)
	}

	n, err := s.AcknowledgeAlert(a.ID)
	if err != nil {
		t.Fatalf("first AcknowledgeAlert: %v", err)
	}
	if n != 1 {
		t.Errorf("first acknowledge should change 1 row, got %d", n)
	}

	// Second acknowledge succeeds without changing anything.
	n, err = s.AcknowledgeAlert(a.ID)
	if err != nil {
		t.Fatalf("second AcknowledgeAlert: %v", err)
	}
	if n != 0 {
		t.Errorf("second acknowledge should change 0 rows, got %d", n)
	}

	got, err := s.GetAlert(a.ID)
	if err != nil {
		t.Fatalf("GetAlert: %v", err)
	}
	if !got.Acknowledged {
		t.Error("alert should be acknowledged")
	}
}

func TestAcknowledgeAlertNotFound(t *testing.T) {
	s := openTestStore(t)

	if _, err := s.AcknowledgeAlert("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestGetAlertStats(t *testing.T) {
	s := openTestStore(t)

	now := time.Now().UTC()
	acked := testAlert(AlertTopicSurge, "cluster:1", now.Add(-48*time.Hour))
	open := testAlert(AlertNewActor, "entity:2", now.Add(-time.Hour))
	for _, a := range []Alert{acked, open} {
		if err := s.SaveAlert(a); err != nil {
			t.Fatalf("SaveAlert: %v", err)
		}
	}
	if _, err := s.AcknowledgeAlert(acked.ID); err != nil {
		t.Fatalf("AcknowledgeAlert: %v", err)
	}

	stats, err := s.GetAlertStats(now)
	if err != nil {
		t.Fatalf("GetAlertStats: %v", err)
	}
	if stats.Total != 2 || stats.Unacknowledged != 1 || stats.Recent24h != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}
