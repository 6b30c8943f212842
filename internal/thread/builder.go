package thread

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/newsloom/newsloom/internal/storage"
)

// maxLabelLen bounds generated storyline labels.
const maxLabelLen = 60

// Member is one article inside a built group.
type Member struct {
	ArticleID     int64
	Date          time.Time
	Tier          Tier
	SequenceOrder int
}

// Group is one storyline produced by a build pass. Members are ordered by
// (date, article id).
type Group struct {
	ID        int64
	Label     string
	FirstDate time.Time
	LastDate  time.Time
	Members   []Member
}

// Stats summarizes a build pass for the caller.
type Stats struct {
	EdgesProcessed  int
	EdgesSkipped    int
	EdgesDiscarded  int // classified below every tier
	ArticlesGrouped int
	Groups          int
}

// Result is the output of a build pass.
type Result struct {
	Groups []Group
	Stats  Stats
}

// Builder turns a similarity edge set into disjoint storyline groups.
type Builder struct {
	thresholds Thresholds
	logger     *slog.Logger
}

// NewBuilder validates the thresholds and returns a Builder.
func NewBuilder(t Thresholds) (*Builder, error) {
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("invalid tier thresholds: %w", err)
	}
	return &Builder{thresholds: t, logger: slog.Default()}, nil
}

// Build partitions articles into storyline groups from scratch. Group ids are
// allocated 1..N in order of each group's smallest member article id, so an
// unchanged input reproduces an identical partition.
func (b *Builder) Build(ctx context.Context, edges []storage.SimilarityEdge, articles map[int64]storage.Article) (*Result, error) {
	return b.build(ctx, edges, articles, nil, nil)
}

// BuildIncremental attaches previously-unassigned articles to existing groups
// without disturbing them: every edge acts attach-only, existing storylines
// keep their ids and never merge, and new groups allocate ids past the
// current maximum.
func (b *Builder) BuildIncremental(ctx context.Context, edges []storage.SimilarityEdge, articles map[int64]storage.Article, assignment map[int64]int64, tiers map[int64]string) (*Result, error) {
	if assignment == nil {
		assignment = map[int64]int64{}
	}
	if tiers == nil {
		tiers = map[int64]string{}
	}
	return b.build(ctx, edges, articles, assignment, tiers)
}

// tieredEdge is an edge with its classification attached.
type tieredEdge struct {
	Edge
	Tier Tier
}

func (b *Builder) build(ctx context.Context, edges []storage.SimilarityEdge, articles map[int64]storage.Article, existing map[int64]int64, existingTiers map[int64]string) (*Result, error) {
	incremental := existing != nil

	candidates, skipped := b.validateEdges(edges, articles)

	tiered, err := b.classifyParallel(ctx, candidates)
	if err != nil {
		return nil, err
	}

	var accepted []tieredEdge
	discarded := 0
	for _, te := range tiered {
		if te.Tier == TierNone {
			discarded++
			continue
		}
		accepted = append(accepted, te)
	}

	// Deterministic merge order: tier priority first, then strongest
	// similarity, then (src, dst). This ordering decides which group wins
	// in ambiguous attachments, so it is a correctness requirement.
	sort.Slice(accepted, func(i, j int) bool {
		a, b := accepted[i], accepted[j]
		if a.Tier != b.Tier {
			return a.Tier < b.Tier
		}
		if a.Similarity != b.Similarity {
			return a.Similarity > b.Similarity
		}
		if a.Src != b.Src {
			return a.Src < b.Src
		}
		return a.Dst < b.Dst
	})

	uf := newUnionFind()
	attachTier := make(map[int64]Tier)

	// Seed existing groups so incremental edges can only attach to them.
	for articleID := range existing {
		uf.add(articleID)
	}
	byStoryline := make(map[int64][]int64)
	for articleID, storylineID := range existing {
		byStoryline[storylineID] = append(byStoryline[storylineID], articleID)
	}
	for _, members := range byStoryline {
		for _, id := range members[1:] {
			uf.union(members[0], id)
		}
	}

	for _, te := range accepted {
		srcIn, dstIn := uf.contains(te.Src), uf.contains(te.Dst)
		switch {
		case srcIn && dstIn:
			// Tier1 evidence is strong enough to merge two groups
			// outright; weaker tiers only ever attach singletons.
			// Incremental mode never merges existing groups.
			if te.Tier == Tier1 && !incremental {
				uf.union(te.Src, te.Dst)
			}
		case srcIn:
			uf.add(te.Dst)
			uf.union(te.Src, te.Dst)
			attachTier[te.Dst] = te.Tier
		case dstIn:
			uf.add(te.Src)
			uf.union(te.Src, te.Dst)
			attachTier[te.Src] = te.Tier
		default:
			uf.add(te.Src)
			uf.add(te.Dst)
			uf.union(te.Src, te.Dst)
			attachTier[te.Src] = te.Tier
			attachTier[te.Dst] = te.Tier
		}
	}

	groups := b.collectGroups(uf, articles, existing, existingTiers, attachTier)

	grouped := 0
	for _, g := range groups {
		grouped += len(g.Members)
	}

	res := &Result{
		Groups: groups,
		Stats: Stats{
			EdgesProcessed:  len(accepted),
			EdgesSkipped:    skipped,
			EdgesDiscarded:  discarded,
			ArticlesGrouped: grouped,
			Groups:          len(groups),
		},
	}
	b.logger.Info("storyline build complete",
		"groups", res.Stats.Groups,
		"articles_grouped", res.Stats.ArticlesGrouped,
		"edges_processed", res.Stats.EdgesProcessed,
		"edges_skipped", res.Stats.EdgesSkipped,
		"edges_discarded", res.Stats.EdgesDiscarded,
		"incremental", incremental,
	)
	return res, nil
}

// validateEdges drops self-loops, duplicate pairs, and edges referencing
// unknown articles, resolving the rest against article dates. Input
// inconsistencies are skipped and counted, never fatal.
func (b *Builder) validateEdges(edges []storage.SimilarityEdge, articles map[int64]storage.Article) ([]Edge, int) {
	seen := make(map[[2]int64]bool, len(edges))
	out := make([]Edge, 0, len(edges))
	skipped := 0

	for _, e := range edges {
		src, dst := e.SrcID, e.DstID
		if src > dst {
			src, dst = dst, src
		}
		if src == dst {
			b.logger.Warn("skipping self-referential edge", "article", src)
			skipped++
			continue
		}
		key := [2]int64{src, dst}
		if seen[key] {
			b.logger.Warn("skipping duplicate edge", "src", src, "dst", dst)
			skipped++
			continue
		}
		seen[key] = true

		srcArt, okSrc := articles[src]
		dstArt, okDst := articles[dst]
		if !okSrc || !okDst {
			b.logger.Warn("skipping edge referencing unknown article", "src", src, "dst", dst)
			skipped++
			continue
		}

		out = append(out, Edge{
			Src:            src,
			Dst:            dst,
			Similarity:     e.Cosine,
			DaysApart:      daysBetween(srcArt.Date, dstArt.Date),
			SharedEntities: countSharedEntities(e.SharedEntities),
		})
	}
	return out, skipped
}

// classifyParallel fans classification out across CPUs. Classification is
// pure and stateless; only the union-find merge needs to be sequential.
func (b *Builder) classifyParallel(ctx context.Context, edges []Edge) ([]tieredEdge, error) {
	out := make([]tieredEdge, len(edges))

	workers := runtime.NumCPU()
	if workers > len(edges) {
		workers = len(edges)
	}
	if workers <= 1 {
		for i, e := range edges {
			out[i] = tieredEdge{Edge: e, Tier: b.thresholds.Classify(e)}
		}
		return out, nil
	}

	g, _ := errgroup.WithContext(ctx)
	chunk := (len(edges) + workers - 1) / workers
	for start := 0; start < len(edges); start += chunk {
		end := start + chunk
		if end > len(edges) {
			end = len(edges)
		}
		g.Go(func() error {
			for i := start; i < end; i++ {
				out[i] = tieredEdge{Edge: edges[i], Tier: b.thresholds.Classify(edges[i])}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (b *Builder) collectGroups(uf *unionFind, articles map[int64]storage.Article, existing map[int64]int64, existingTiers map[int64]string, attachTier map[int64]Tier) []Group {
	memberSets := make(map[int64][]int64)
	for id := range uf.parent {
		root := uf.find(id)
		memberSets[root] = append(memberSets[root], id)
	}

	roots := make([]int64, 0, len(memberSets))
	for root, members := range memberSets {
		sort.Slice(members, func(i, j int) bool { return members[i] < members[j] })
		memberSets[root] = members
		roots = append(roots, root)
	}
	// Order groups by smallest member id for deterministic id allocation.
	sort.Slice(roots, func(i, j int) bool { return memberSets[roots[i]][0] < memberSets[roots[j]][0] })

	nextID := int64(1)
	for _, storylineID := range existing {
		if storylineID >= nextID {
			nextID = storylineID + 1
		}
	}

	var groups []Group
	for _, root := range roots {
		ids := memberSets[root]

		// An existing member pins the group to its storyline id.
		groupID := int64(0)
		for _, id := range ids {
			if sid, ok := existing[id]; ok {
				groupID = sid
				break
			}
		}
		if groupID == 0 {
			groupID = nextID
			nextID++
		}

		members := make([]Member, 0, len(ids))
		for _, id := range ids {
			art := articles[id]
			tier := attachTier[id]
			if s, ok := existingTiers[id]; ok {
				tier = tierFromString(s)
			}
			members = append(members, Member{ArticleID: id, Date: art.Date, Tier: tier})
		}

		// Sequence positions are strictly increasing with date, ties
		// broken by article id.
		sort.Slice(members, func(i, j int) bool {
			if !members[i].Date.Equal(members[j].Date) {
				return members[i].Date.Before(members[j].Date)
			}
			return members[i].ArticleID < members[j].ArticleID
		})
		for i := range members {
			members[i].SequenceOrder = i
		}

		groups = append(groups, Group{
			ID:        groupID,
			Label:     makeLabel(articles[members[0].ArticleID].Title, groupID),
			FirstDate: members[0].Date,
			LastDate:  members[len(members)-1].Date,
			Members:   members,
		})
	}
	return groups
}

// makeLabel derives a short storyline label from the earliest article's
// title.
func makeLabel(title string, id int64) string {
	if title == "" {
		return fmt.Sprintf("Storyline %d", id)
	}
	if utf8.RuneCountInString(title) <= maxLabelLen {
		return title
	}
	runes := []rune(title)
	return string(runes[:maxLabelLen-3]) + "..."
}

// countSharedEntities counts entries in a JSON-array payload. Invalid JSON
// counts as zero so a malformed edge simply cannot qualify for tier3.
func countSharedEntities(raw string) int {
	if raw == "" {
		return 0
	}
	var entries []any
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return 0
	}
	return len(entries)
}

func tierFromString(s string) Tier {
	switch s {
	case "tier1":
		return Tier1
	case "tier2":
		return Tier2
	case "tier3":
		return Tier3
	default:
		return TierNone
	}
}

// daysBetween returns the absolute whole-day distance between two dates.
func daysBetween(a, b time.Time) int {
	d := b.Sub(a)
	if d < 0 {
		d = -d
	}
	return int(d.Hours() / 24)
}
