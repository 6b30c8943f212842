package storage

import (
	"errors"
	"testing"
	"time"
)

func day(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		t.Fatalf("parsing date %q: %v", s, err)
	}
	return d
}

func TestSaveAndGetArticle(t *testing.T) {
	s := openTestStore(t)

	want := Article{
		ID:        42,
		Title:     "Port strike enters second week",
		Date:      day(t, "2025-03-10"),
		ClusterID: 7,
	}
	if err := s.SaveArticle(want); err != nil {
		t.Fatalf("SaveArticle: %v", err)
	}

	got, err := s.GetArticle(42)
	if err != nil {
		t.Fatalf("GetArticle: %v", err)
	}
	if got.Title != want.Title || !got.Date.Equal(want.Date) || got.ClusterID != want.ClusterID {
		t.Errorf("round-trip mismatch: got %+v, want %+v", got, want)
	}
	if got.StorylineID != 0 {
		t.Errorf("new article should be unassigned, got storyline %d", got.StorylineID)
	}
}

func TestGetArticleNotFound(t *testing.T) {
	s := openTestStore(t)

	if _, err := s.GetArticle(999); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListSimilarities(t *testing.T) {
	s := openTestStore(t)

	edges := []SimilarityEdge{
		{SrcID: 1, DstID: 2, Cosine: 0.91, SharedEntities: "[3, 4]"},
		{SrcID: 2, DstID: 3, Cosine: 0.55},
	}
	for _, e := range edges {
		if err := s.SaveSimilarity(e); err != nil {
			t.Fatalf("SaveSimilarity: %v", err)
		}
	}

	got, err := s.ListSimilarities()
	if err != nil {
		t.Fatalf("ListSimilarities: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 edges, got %d", len(got))
	}
	for _, e := range got {
		if e.SrcID == 1 && e.SharedEntities != "[3, 4]" {
			t.Errorf("shared entities not preserved: %q", e.SharedEntities)
		}
	}
}

func TestCountClusterArticles(t *testing.T) {
	s := openTestStore(t)

	for i, date := range []string{"2025-03-01", "2025-03-05", "2025-03-08"} {
		a := Article{ID: int64(i + 1), Title: "article", Date: day(t, date), ClusterID: 9}
		if err := s.SaveArticle(a); err != nil {
			t.Fatalf("SaveArticle: %v", err)
		}
	}
	// Different cluster, must not be counted.
	if err := s.SaveArticle(Article{ID: 10, Title: "other", Date: day(t, "2025-03-05"), ClusterID: 2}); err != nil {
		t.Fatalf("SaveArticle: %v", err)
	}

	clusters, err := s.ClusterIDs()
	if err != nil {
		t.Fatalf("ClusterIDs: %v", err)
	}
	if len(clusters) != 2 {
		t.Errorf("expected 2 clusters, got %v", clusters)
	}

	// [from, to) window: includes 03-01 and 03-05, excludes 03-08.
	n, err := s.CountClusterArticles(9, day(t, "2025-03-01"), day(t, "2025-03-08"))
	if err != nil {
		t.Fatalf("CountClusterArticles: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 articles in window, got %d", n)
	}
}

func TestEntityMentionWindows(t *testing.T) {
	s := openTestStore(t)

	if err := s.SaveEntity(Entity{ID: 1, Name: "Acme Corp", Type: "ORG"}); err != nil {
		t.Fatalf("SaveEntity: %v", err)
	}

	// Two recent articles mention the entity, one historical.
	dates := []string{"2025-03-01", "2025-03-10", "2025-03-11"}
	for i, d := range dates {
		a := Article{ID: int64(i + 1), Title: "article", Date: day(t, d)}
		if err := s.SaveArticle(a); err != nil {
			t.Fatalf("SaveArticle: %v", err)
		}
		if err := s.SaveEntityMention(EntityMention{ArticleID: a.ID, EntityID: 1, Weight: 1}); err != nil {
			t.Fatalf("SaveEntityMention: %v", err)
		}
	}

	since := day(t, "2025-03-09")
	recent, err := s.EntityMentionsSince(since)
	if err != nil {
		t.Fatalf("EntityMentionsSince: %v", err)
	}
	if len(recent) != 1 || recent[0].EntityID != 1 || recent[0].Articles != 2 {
		t.Fatalf("expected entity 1 with 2 recent articles, got %+v", recent)
	}
	if recent[0].Name != "Acme Corp" || recent[0].Type != "ORG" {
		t.Errorf("entity fields not carried: %+v", recent[0])
	}

	historical, err := s.CountEntityMentionsBefore(1, since)
	if err != nil {
		t.Fatalf("CountEntityMentionsBefore: %v", err)
	}
	if historical != 1 {
		t.Errorf("expected 1 historical mention, got %d", historical)
	}
}
