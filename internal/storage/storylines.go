package storage

import (
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

// StorylineFilter narrows ListStorylines results. Zero values mean "no
// constraint".
type StorylineFilter struct {
	Status         string
	MinMomentum    float64
	HasMinMomentum bool
	From           time.Time
	To             time.Time
}

// ListStorylines returns storylines matching the filter, ordered by momentum
// descending then recency descending.
func (s *Store) ListStorylines(f StorylineFilter) ([]Storyline, error) {
	q := sq.Select("id", "label", "status", "momentum_score", "first_date", "last_date", "article_count").
		From("storylines").
		OrderBy("momentum_score DESC", "last_date DESC")

	if f.Status != "" {
		q = q.Where(sq.Eq{"status": f.Status})
	}
	if f.HasMinMomentum {
		q = q.Where(sq.GtOrEq{"momentum_score": f.MinMomentum})
	}
	if !f.From.IsZero() {
		q = q.Where(sq.GtOrEq{"first_date": f.From.Format(DateLayout)})
	}
	if !f.To.IsZero() {
		q = q.Where(sq.LtOrEq{"first_date": f.To.Format(DateLayout)})
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building storyline query: %w", err)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Storyline
	for rows.Next() {
		st, err := scanStoryline(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, st)
	}
	return results, rows.Err()
}

func scanStoryline(rows *sql.Rows) (Storyline, error) {
	var st Storyline
	var firstDate, lastDate string
	if err := rows.Scan(&st.ID, &st.Label, &st.Status, &st.MomentumScore, &firstDate, &lastDate, &st.ArticleCount); err != nil {
		return Storyline{}, err
	}
	var err error
	if st.FirstDate, err = time.Parse(DateLayout, firstDate); err != nil {
		return Storyline{}, fmt.Errorf("parsing first_date for storyline %d: %w", st.ID, err)
	}
	if st.LastDate, err = time.Parse(DateLayout, lastDate); err != nil {
		return Storyline{}, fmt.Errorf("parsing last_date for storyline %d: %w", st.ID, err)
	}
	return st, nil
}

// GetStoryline returns one storyline by id.
func (s *Store) GetStoryline(id int64) (Storyline, error) {
	var st Storyline
	var firstDate, lastDate string
	err := s.db.QueryRow(`
		SELECT id, label, status, momentum_score, first_date, last_date, article_count
		FROM storylines WHERE id = ?`, id,
	).Scan(&st.ID, &st.Label, &st.Status, &st.MomentumScore, &firstDate, &lastDate, &st.ArticleCount)
	if err == sql.ErrNoRows {
		return Storyline{}, ErrNotFound
	}
	if err != nil {
		return Storyline{}, err
	}
	if st.FirstDate, err = time.Parse(DateLayout, firstDate); err != nil {
		return Storyline{}, fmt.Errorf("parsing first_date for storyline %d: %w", st.ID, err)
	}
	if st.LastDate, err = time.Parse(DateLayout, lastDate); err != nil {
		return Storyline{}, fmt.Errorf("parsing last_date for storyline %d: %w", st.ID, err)
	}
	return st, nil
}

// StorylineMember is one article inside a storyline with its attachment tier
// and chronological position.
type StorylineMember struct {
	ArticleID     int64
	Title         string
	Date          time.Time
	Tier          string
	SequenceOrder int
}

// ListStorylineMembers returns the member articles of a storyline in
// sequence order.
func (s *Store) ListStorylineMembers(storylineID int64) ([]StorylineMember, error) {
	rows, err := s.db.Query(`
		SELECT a.id, a.title, a.date, sa.tier, sa.sequence_order
		FROM articles a
		JOIN storyline_articles sa ON a.id = sa.article_id
		WHERE sa.storyline_id = ?
		ORDER BY sa.sequence_order`, storylineID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []StorylineMember
	for rows.Next() {
		var m StorylineMember
		var date string
		if err := rows.Scan(&m.ArticleID, &m.Title, &date, &m.Tier, &m.SequenceOrder); err != nil {
			return nil, err
		}
		if m.Date, err = time.Parse(DateLayout, date); err != nil {
			return nil, fmt.Errorf("parsing date for article %d: %w", m.ArticleID, err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// AllMemberDates returns, per storyline, the dates of its member articles.
// Used by the momentum pass to rescore every storyline in one scan.
func (s *Store) AllMemberDates() (map[int64][]time.Time, error) {
	rows, err := s.db.Query(`
		SELECT sa.storyline_id, a.date
		FROM storyline_articles sa
		JOIN articles a ON sa.article_id = a.id
		ORDER BY sa.storyline_id, a.date`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	dates := make(map[int64][]time.Time)
	for rows.Next() {
		var id int64
		var date string
		if err := rows.Scan(&id, &date); err != nil {
			return nil, err
		}
		t, err := time.Parse(DateLayout, date)
		if err != nil {
			return nil, fmt.Errorf("parsing member date for storyline %d: %w", id, err)
		}
		dates[id] = append(dates[id], t)
	}
	return dates, rows.Err()
}

// ClearStorylines removes all storylines and memberships and resets the
// article back-references. Called at the start of a full rebuild.
func (s *Store) ClearStorylines() error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning clear transaction: %w", err)
	}
	for _, stmt := range []string{
		"DELETE FROM storyline_articles",
		"DELETE FROM storylines",
		"UPDATE articles SET storyline_id = NULL",
	} {
		if _, err := tx.Exec(stmt); err != nil {
			tx.Rollback()
			return fmt.Errorf("clearing storylines: %w", err)
		}
	}
	return tx.Commit()
}

// SaveStoryline writes one storyline with its memberships and updates the
// article back-references, all in a single transaction. One storyline is the
// unit of atomic commit: an aborted build leaves previously-committed
// storylines intact.
func (s *Store) SaveStoryline(st Storyline, members []StorylineArticle) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning storyline transaction: %w", err)
	}

	_, err = tx.Exec(`
		INSERT OR REPLACE INTO storylines (id, label, status, momentum_score, first_date, last_date, article_count)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		st.ID, st.Label, st.Status, st.MomentumScore,
		st.FirstDate.Format(DateLayout), st.LastDate.Format(DateLayout), st.ArticleCount,
	)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("inserting storyline %d: %w", st.ID, err)
	}

	if _, err := tx.Exec(`DELETE FROM storyline_articles WHERE storyline_id = ?`, st.ID); err != nil {
		tx.Rollback()
		return fmt.Errorf("clearing memberships for storyline %d: %w", st.ID, err)
	}

	for _, m := range members {
		if _, err := tx.Exec(`
			INSERT INTO storyline_articles (storyline_id, article_id, tier, sequence_order)
			VALUES (?, ?, ?, ?)`,
			st.ID, m.ArticleID, m.Tier, m.SequenceOrder,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("inserting membership %d/%d: %w", st.ID, m.ArticleID, err)
		}
		if _, err := tx.Exec(`UPDATE articles SET storyline_id = ? WHERE id = ?`, st.ID, m.ArticleID); err != nil {
			tx.Rollback()
			return fmt.Errorf("assigning article %d to storyline %d: %w", m.ArticleID, st.ID, err)
		}
	}

	return tx.Commit()
}

// UpdateStorylineScore writes the recomputed momentum score and status for
// one storyline.
func (s *Store) UpdateStorylineScore(id int64, momentum float64, status string) error {
	res, err := s.db.Exec(`UPDATE storylines SET momentum_score = ?, status = ? WHERE id = ?`,
		momentum, status, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// StorylineStatusCounts returns the number of storylines per status.
func (s *Store) StorylineStatusCounts() (map[string]int, error) {
	rows, err := s.db.Query(`SELECT status, COUNT(*) FROM storylines GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// ExistingAssignment returns the current article -> storyline mapping for
// incremental builds.
func (s *Store) ExistingAssignment() (map[int64]int64, error) {
	rows, err := s.db.Query(`SELECT article_id, storyline_id FROM storyline_articles`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	assignment := make(map[int64]int64)
	for rows.Next() {
		var articleID, storylineID int64
		if err := rows.Scan(&articleID, &storylineID); err != nil {
			return nil, err
		}
		assignment[articleID] = storylineID
	}
	return assignment, rows.Err()
}

// ExistingMemberTiers returns the recorded attachment tier per article for
// incremental builds, so re-saved storylines keep original tiers.
func (s *Store) ExistingMemberTiers() (map[int64]string, error) {
	rows, err := s.db.Query(`SELECT article_id, tier FROM storyline_articles`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tiers := make(map[int64]string)
	for rows.Next() {
		var articleID int64
		var tier string
		if err := rows.Scan(&articleID, &tier); err != nil {
			return nil, err
		}
		tiers[articleID] = tier
	}
	return tiers, rows.Err()
}
