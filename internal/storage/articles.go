package storage

import (
	"database/sql"
	"fmt"
	"time"
)

// SaveArticle inserts or replaces an article record. Articles are normally
// written by the upstream ingestion layer; this is used by tests and by the
// seed tooling.
func (s *Store) SaveArticle(a Article) error {
	var clusterID, storylineID any
	if a.ClusterID != 0 {
		clusterID = a.ClusterID
	}
	if a.StorylineID != 0 {
		storylineID = a.StorylineID
	}
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO articles (id, title, date, cluster_id, storyline_id)
		VALUES (?, ?, ?, ?, ?)`,
		a.ID, a.Title, a.Date.Format(DateLayout), clusterID, storylineID,
	)
	return err
}

// GetArticle returns one article by id.
func (s *Store) GetArticle(id int64) (Article, error) {
	var a Article
	var date string
	var clusterID, storylineID sql.NullInt64
	err := s.db.QueryRow(`
		SELECT id, title, date, cluster_id, storyline_id FROM articles WHERE id = ?`, id,
	).Scan(&a.ID, &a.Title, &date, &clusterID, &storylineID)
	if err == sql.ErrNoRows {
		return Article{}, ErrNotFound
	}
	if err != nil {
		return Article{}, err
	}
	t, err := time.Parse(DateLayout, date)
	if err != nil {
		return Article{}, fmt.Errorf("parsing date for article %d: %w", a.ID, err)
	}
	a.Date = t
	a.ClusterID = clusterID.Int64
	a.StorylineID = storylineID.Int64
	return a, nil
}

// ListArticles returns all articles keyed by id.
func (s *Store) ListArticles() (map[int64]Article, error) {
	rows, err := s.db.Query(`SELECT id, title, date, cluster_id, storyline_id FROM articles`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	articles := make(map[int64]Article)
	for rows.Next() {
		var a Article
		var date string
		var clusterID, storylineID sql.NullInt64
		if err := rows.Scan(&a.ID, &a.Title, &date, &clusterID, &storylineID); err != nil {
			return nil, err
		}
		t, err := time.Parse(DateLayout, date)
		if err != nil {
			return nil, fmt.Errorf("parsing date for article %d: %w", a.ID, err)
		}
		a.Date = t
		a.ClusterID = clusterID.Int64
		a.StorylineID = storylineID.Int64
		articles[a.ID] = a
	}
	return articles, rows.Err()
}

// SaveSimilarity inserts or replaces one similarity edge.
func (s *Store) SaveSimilarity(e SimilarityEdge) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO similarities (src_id, dst_id, cosine, shared_entities)
		VALUES (?, ?, ?, ?)`,
		e.SrcID, e.DstID, e.Cosine, e.SharedEntities,
	)
	return err
}

// ListSimilarities returns every similarity edge.
func (s *Store) ListSimilarities() ([]SimilarityEdge, error) {
	rows, err := s.db.Query(`SELECT src_id, dst_id, cosine, shared_entities FROM similarities`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var edges []SimilarityEdge
	for rows.Next() {
		var e SimilarityEdge
		var shared sql.NullString
		if err := rows.Scan(&e.SrcID, &e.DstID, &e.Cosine, &shared); err != nil {
			return nil, err
		}
		e.SharedEntities = shared.String
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

// SaveEntity inserts or replaces an entity record.
func (s *Store) SaveEntity(e Entity) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO entities (id, name, type) VALUES (?, ?, ?)`,
		e.ID, e.Name, e.Type)
	return err
}

// SaveEntityMention links an entity to an article.
func (s *Store) SaveEntityMention(m EntityMention) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO article_entities (article_id, entity_id, weight)
		VALUES (?, ?, ?)`,
		m.ArticleID, m.EntityID, m.Weight)
	return err
}

// ClusterIDs returns the distinct cluster ids present on articles.
func (s *Store) ClusterIDs() ([]int64, error) {
	rows, err := s.db.Query(`
		SELECT DISTINCT cluster_id FROM articles
		WHERE cluster_id IS NOT NULL ORDER BY cluster_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CountClusterArticles counts articles in a cluster dated within [from, to).
func (s *Store) CountClusterArticles(clusterID int64, from, to time.Time) (int, error) {
	var count int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM articles
		WHERE cluster_id = ? AND date >= ? AND date < ?`,
		clusterID, from.Format(DateLayout), to.Format(DateLayout),
	).Scan(&count)
	return count, err
}

// RecentEntityMention is an entity with its distinct-article mention count in
// a window.
type RecentEntityMention struct {
	EntityID int64
	Name     string
	Type     string
	Articles int
}

// EntityMentionsSince returns, per entity, the number of distinct articles
// dated on or after `since` that mention it.
func (s *Store) EntityMentionsSince(since time.Time) ([]RecentEntityMention, error) {
	rows, err := s.db.Query(`
		SELECT e.id, e.name, COALESCE(e.type, ''), COUNT(DISTINCT ae.article_id)
		FROM entities e
		JOIN article_entities ae ON e.id = ae.entity_id
		JOIN articles a ON ae.article_id = a.id
		WHERE a.date >= ?
		GROUP BY e.id, e.name, e.type
		ORDER BY e.id`, since.Format(DateLayout))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var mentions []RecentEntityMention
	for rows.Next() {
		var m RecentEntityMention
		if err := rows.Scan(&m.EntityID, &m.Name, &m.Type, &m.Articles); err != nil {
			return nil, err
		}
		mentions = append(mentions, m)
	}
	return mentions, rows.Err()
}

// CountEntityMentionsBefore counts mentions of an entity in articles dated
// strictly before the given day.
func (s *Store) CountEntityMentionsBefore(entityID int64, before time.Time) (int, error) {
	var count int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM article_entities ae
		JOIN articles a ON ae.article_id = a.id
		WHERE ae.entity_id = ? AND a.date < ?`,
		entityID, before.Format(DateLayout),
	).Scan(&count)
	return count, err
}
