package storage

import (
	"errors"
	"testing"
)

func seedStoryline(t *testing.T, s *Store, st Storyline, members []StorylineArticle) {
	t.Helper()
	if err := s.SaveStoryline(st, members); err != nil {
		t.Fatalf("SaveStoryline(%d): %v", st.ID, err)
	}
}

func TestSaveStorylineRoundTrip(t *testing.T) {
	s := openTestStore(t)

	for i, d := range []string{"2025-03-01", "2025-03-03"} {
		if err := s.SaveArticle(Article{ID: int64(i + 1), Title: "article", Date: day(t, d)}); err != nil {
			t.Fatalf("SaveArticle: %v", err)
		}
	}

	st := Storyline{
		ID:           1,
		Label:        "Port strike",
		Status:       StatusActive,
		FirstDate:    day(t, "2025-03-01"),
		LastDate:     day(t, "2025-03-03"),
		ArticleCount: 2,
	}
	members := []StorylineArticle{
		{StorylineID: 1, ArticleID: 1, Tier: "tier1", SequenceOrder: 0},
		{StorylineID: 1, ArticleID: 2, Tier: "tier1", SequenceOrder: 1},
	}
	seedStoryline(t, s, st, members)

	got, err := s.GetStoryline(1)
	if err != nil {
		t.Fatalf("GetStoryline: %v", err)
	}
	if got.Label != st.Label || got.ArticleCount != 2 || !got.FirstDate.Equal(st.FirstDate) {
		t.Errorf("round-trip mismatch: got %+v", got)
	}

	gotMembers, err := s.ListStorylineMembers(1)
	if err != nil {
		t.Fatalf("ListStorylineMembers: %v", err)
	}
	if len(gotMembers) != 2 {
		t.Fatalf("expected 2 members, got %d", len(gotMembers))
	}
	for i, m := range gotMembers {
		if m.SequenceOrder != i {
			t.Errorf("members not in sequence order: %+v", gotMembers)
		}
	}

	// Article back-references updated in the same transaction.
	a, err := s.GetArticle(1)
	if err != nil {
		t.Fatalf("GetArticle: %v", err)
	}
	if a.StorylineID != 1 {
		t.Errorf("article 1 not assigned to storyline, got %d", a.StorylineID)
	}
}

func TestGetStorylineNotFound(t *testing.T) {
	s := openTestStore(t)

	if _, err := s.GetStoryline(77); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListStorylinesFilterAndOrder(t *testing.T) {
	s := openTestStore(t)

	seedStoryline(t, s, Storyline{
		ID: 1, Label: "low", Status: StatusDormant, MomentumScore: 0.2,
		FirstDate: day(t, "2025-01-01"), LastDate: day(t, "2025-01-05"), ArticleCount: 2,
	}, nil)
	seedStoryline(t, s, Storyline{
		ID: 2, Label: "high", Status: StatusActive, MomentumScore: 1.4,
		FirstDate: day(t, "2025-03-01"), LastDate: day(t, "2025-03-08"), ArticleCount: 4,
	}, nil)
	seedStoryline(t, s, Storyline{
		ID: 3, Label: "mid", Status: StatusActive, MomentumScore: 0.8,
		FirstDate: day(t, "2025-02-01"), LastDate: day(t, "2025-02-20"), ArticleCount: 3,
	}, nil)

	all, err := s.ListStorylines(StorylineFilter{})
	if err != nil {
		t.Fatalf("ListStorylines: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 storylines, got %d", len(all))
	}
	// Momentum descending.
	if all[0].ID != 2 || all[1].ID != 3 || all[2].ID != 1 {
		t.Errorf("wrong ordering: %d, %d, %d", all[0].ID, all[1].ID, all[2].ID)
	}

	active, err := s.ListStorylines(StorylineFilter{Status: StatusActive})
	if err != nil {
		t.Fatalf("ListStorylines(active): %v", err)
	}
	if len(active) != 2 {
		t.Errorf("expected 2 active storylines, got %d", len(active))
	}

	strong, err := s.ListStorylines(StorylineFilter{MinMomentum: 0.8, HasMinMomentum: true})
	if err != nil {
		t.Fatalf("ListStorylines(min momentum): %v", err)
	}
	if len(strong) != 2 {
		t.Errorf("expected 2 storylines at momentum >= 0.8, got %d", len(strong))
	}

	ranged, err := s.ListStorylines(StorylineFilter{From: day(t, "2025-02-01"), To: day(t, "2025-02-28")})
	if err != nil {
		t.Fatalf("ListStorylines(range): %v", err)
	}
	if len(ranged) != 1 || ranged[0].ID != 3 {
		t.Errorf("expected only storyline 3 in February, got %+v", ranged)
	}
}

func TestUpdateStorylineScore(t *testing.T) {
	s := openTestStore(t)

	seedStoryline(t, s, Storyline{
		ID: 1, Label: "x", Status: StatusActive,
		FirstDate: day(t, "2025-03-01"), LastDate: day(t, "2025-03-01"), ArticleCount: 1,
	}, nil)

	if err := s.UpdateStorylineScore(1, 0.75, StatusDormant); err != nil {
		t.Fatalf("UpdateStorylineScore: %v", err)
	}
	got, err := s.GetStoryline(1)
	if err != nil {
		t.Fatalf("GetStoryline: %v", err)
	}
	if got.MomentumScore != 0.75 || got.Status != StatusDormant {
		t.Errorf("score not updated: %+v", got)
	}

	if err := s.UpdateStorylineScore(99, 1, StatusActive); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing storyline, got %v", err)
	}
}

func TestClearStorylines(t *testing.T) {
	s := openTestStore(t)

	if err := s.SaveArticle(Article{ID: 1, Title: "a", Date: day(t, "2025-03-01")}); err != nil {
		t.Fatalf("SaveArticle: %v", err)
	}
	seedStoryline(t, s, Storyline{
		ID: 1, Label: "x", Status: StatusActive,
		FirstDate: day(t, "2025-03-01"), LastDate: day(t, "2025-03-01"), ArticleCount: 1,
	}, []StorylineArticle{{StorylineID: 1, ArticleID: 1, Tier: "tier1"}})

	if err := s.ClearStorylines(); err != nil {
		t.Fatalf("ClearStorylines: %v", err)
	}

	all, err := s.ListStorylines(StorylineFilter{})
	if err != nil {
		t.Fatalf("ListStorylines: %v", err)
	}
	if len(all) != 0 {
		t.Errorf("expected no storylines after clear, got %d", len(all))
	}
	a, err := s.GetArticle(1)
	if err != nil {
		t.Fatalf("GetArticle: %v", err)
	}
	if a.StorylineID != 0 {
		t.Errorf("article back-reference not reset, got %d", a.StorylineID)
	}
}

func TestExistingAssignmentAndTiers(t *testing.T) {
	s := openTestStore(t)

	for i, d := range []string{"2025-03-01", "2025-03-02"} {
		if err := s.SaveArticle(Article{ID: int64(i + 1), Title: "a", Date: day(t, d)}); err != nil {
			t.Fatalf("SaveArticle: %v", err)
		}
	}
	seedStoryline(t, s, Storyline{
		ID: 5, Label: "x", Status: StatusActive,
		FirstDate: day(t, "2025-03-01"), LastDate: day(t, "2025-03-02"), ArticleCount: 2,
	}, []StorylineArticle{
		{StorylineID: 5, ArticleID: 1, Tier: "tier1", SequenceOrder: 0},
		{StorylineID: 5, ArticleID: 2, Tier: "tier2", SequenceOrder: 1},
	})

	assignment, err := s.ExistingAssignment()
	if err != nil {
		t.Fatalf("ExistingAssignment: %v", err)
	}
	if assignment[1] != 5 || assignment[2] != 5 {
		t.Errorf("unexpected assignment: %v", assignment)
	}

	tiers, err := s.ExistingMemberTiers()
	if err != nil {
		t.Fatalf("ExistingMemberTiers: %v", err)
	}
	if tiers[1] != "tier1" || tiers[2] != "tier2" {
		t.Errorf("unexpected tiers: %v", tiers)
	}
}

func TestStorylineStatusCounts(t *testing.T) {
	s := openTestStore(t)

	for i, status := range []string{StatusActive, StatusActive, StatusDormant} {
		seedStoryline(t, s, Storyline{
			ID: int64(i + 1), Label: "x", Status: status,
			FirstDate: day(t, "2025-03-01"), LastDate: day(t, "2025-03-01"), ArticleCount: 1,
		}, nil)
	}

	counts, err := s.StorylineStatusCounts()
	if err != nil {
		t.Fatalf("StorylineStatusCounts: %v", err)
	}
	if counts[StatusActive] != 2 || counts[StatusDormant] != 1 {
		t.Errorf("unexpected counts: %v", counts)
	}
}
