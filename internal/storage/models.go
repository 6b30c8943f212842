package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// DateLayout is the storage format for article and storyline dates.
const DateLayout = "2006-01-02"

// Storyline lifecycle statuses.
const (
	StatusActive    = "active"
	StatusDormant   = "dormant"
	StatusConcluded = "concluded"
)

// Alert kinds.
const (
	AlertTopicSurge        = "topic_surge"
	AlertStoryReactivation = "story_reactivation"
	AlertNewActor          = "new_actor"
	AlertDivergence        = "divergence"
)

// Alert severities.
const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// Article is an ingested document. Everything except StorylineID is owned by
// the upstream ingestion layer and read-only here; StorylineID is written
// exclusively by the storyline builder.
type Article struct {
	ID          int64
	Title       string
	Date        time.Time
	ClusterID   int64 // 0 = no cluster assigned
	StorylineID int64 // 0 = unassigned
}

// SimilarityEdge is one undirected similarity relationship between two
// articles, produced by the external similarity index. SharedEntities is a
// JSON array of entity ids stored as text.
type SimilarityEdge struct {
	SrcID          int64
	DstID          int64
	Cosine         float64
	SharedEntities string
}

// Entity is an extracted named entity.
type Entity struct {
	ID   int64
	Name string
	Type string
}

// EntityMention links an entity to an article with an extraction weight.
type EntityMention struct {
	ArticleID int64
	EntityID  int64
	Weight    float64
}

// Storyline is a group of articles connected by tiered relationships.
type Storyline struct {
	ID            int64
	Label         string
	Status        string
	MomentumScore float64
	FirstDate     time.Time
	LastDate      time.Time
	ArticleCount  int
}

// StorylineArticle records at which tier an article joined a storyline and
// its chronological position within it.
type StorylineArticle struct {
	StorylineID   int64
	ArticleID     int64
	Tier          string
	SequenceOrder int
}

// Alert is an anomaly detection result. Append-only except for Acknowledged.
// ContextKey identifies the triggering subject (e.g. "cluster:42") and is
// used to suppress duplicates against open unacknowledged alerts.
type Alert struct {
	ID           string
	Kind         string
	ContextJSON  string
	ContextKey   string
	TriggeredAt  time.Time
	Description  string
	Severity     string
	Acknowledged bool
}

// Job is one queued background pass.
type Job struct {
	ID          string
	Type        string
	PayloadJSON string
	Status      string // "pending", "running", "completed", "failed"
	Attempts    int
	MaxAttempts int
	RunAfter    time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastError   string
}
