package suggest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// Sentinel errors mapped to user-facing HTTP statuses by the handler.
var (
	ErrInvalidSeed  = errors.New("invalid seed video id")
	ErrSeedNotFound = errors.New("seed video not found")
	ErrNotFound     = errors.New("not found")
)

const (
	// DefaultLimit is the page size used when the caller does not specify one.
	DefaultLimit = 20
	// MaxLimit caps the page size.
	MaxLimit = 50
	// poolFactor bounds the candidate pools to a multiple of the page size,
	// so work stays independent of corpus size.
	poolFactor = 10
)

// Video is the store's view of a video record, as needed for suggestions.
type Video struct {
	ID              string
	OwnerID         string
	Title           string
	Description     string
	Tags            []string
	ThumbnailKey    string
	DurationSeconds float64
	Views           int64
	Published       bool
	CreatedAt       string // ISO 8601; lexical order equals chronological order
}

// Candidate is a video under consideration for the result, with the number
// of distinct seed tokens that matched its tags. Filler candidates carry
// MatchCount 0.
type Candidate struct {
	Video
	MatchCount int
}

// Owner is the display metadata attached to each returned candidate.
type Owner struct {
	ID          string
	DisplayName string
	AvatarKey   string
}

// Page is one page of suggestions.
type Page struct {
	Items  []Candidate
	Owners map[string]Owner
	Page   int
	Limit  int
}

// Store is the point-in-time read interface the engine needs from the
// video store. All reads exclude unpublished videos and the seed itself.
type Store interface {
	// GetVideo returns the video with the given id, or ErrNotFound.
	GetVideo(ctx context.Context, id string) (*Video, error)
	// FindPublishedExcluding returns published videos other than excludeID
	// whose tag list contains any of tags exactly or any of tokens as a
	// substring. This is a cheap superset; the engine re-checks word
	// boundaries precisely.
	FindPublishedExcluding(ctx context.Context, excludeID string, tags, tokens []string, poolSize int) ([]Video, error)
	// SampleRandomPublishedExcluding returns up to poolSize published videos
	// other than excludeID, sampled uniformly without replacement. Order is
	// not meaningful.
	SampleRandomPublishedExcluding(ctx context.Context, excludeID string, poolSize int) ([]Video, error)
	// ResolveOwners returns display metadata for the given owner ids.
	ResolveOwners(ctx context.Context, ownerIDs []string) (map[string]Owner, error)
}

// Engine computes tag-based video suggestions: lexically matched candidates
// ranked first, random filler after, de-duplicated and paginated.
type Engine struct {
	Store Store

	// matchedCache optionally caches the scored matched pool per seed.
	// Purely an optimization; filler is always drawn fresh.
	matchedCache *lru.LRU[string, []Candidate]
}

// NewEngine creates an Engine. If cacheSize > 0, matched candidate pools are
// cached per seed for cacheTTL.
func NewEngine(store Store, cacheSize int, cacheTTL time.Duration) *Engine {
	e := &Engine{Store: store}
	if cacheSize > 0 {
		e.matchedCache = lru.NewLRU[string, []Candidate](cacheSize, nil, cacheTTL)
	}
	return e
}

// Suggest returns one page of videos similar to the seed. Malformed seed ids
// yield ErrInvalidSeed; missing seeds yield ErrSeedNotFound. An empty page is
// a valid response, not an error.
func (e *Engine) Suggest(ctx context.Context, seedID string, page, limit int) (*Page, error) {
	if _, err := uuid.Parse(seedID); err != nil {
		return nil, ErrInvalidSeed
	}

	seed, err := e.Store.GetVideo(ctx, seedID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrSeedNotFound
		}
		return nil, fmt.Errorf("load seed: %w", err)
	}

	page, limit = clampPage(page, limit)
	poolSize := limit * poolFactor

	tags := NormalizeTags(seed.Tags)
	tokens := TokenizeTags(tags)

	var matched []Candidate
	if len(tokens) > 0 {
		matched, err = e.matchedPool(ctx, seedID, tags, tokens, poolSize)
		if err != nil {
			return nil, fmt.Errorf("match candidates: %w", err)
		}
	}

	filler, err := e.Store.SampleRandomPublishedExcluding(ctx, seedID, poolSize)
	if err != nil {
		return nil, fmt.Errorf("sample filler: %w", err)
	}
	fillerCands := make([]Candidate, len(filler))
	for i, v := range filler {
		fillerCands[i] = Candidate{Video: v}
	}

	merged := mergeDedupe(matched, fillerCands)
	items := paginate(merged, page, limit)

	owners, err := e.resolveOwners(ctx, items)
	if err != nil {
		return nil, fmt.Errorf("resolve owners: %w", err)
	}

	return &Page{Items: items, Owners: owners, Page: page, Limit: limit}, nil
}

// matchedPool fetches a superset of tag-containing candidates, re-checks
// word boundaries, scores, orders and caps the pool.
func (e *Engine) matchedPool(ctx context.Context, seedID string, tags, tokens []string, poolSize int) ([]Candidate, error) {
	if e.matchedCache != nil {
		if cached, ok := e.matchedCache.Get(seedID); ok {
			return capPool(cached, poolSize), nil
		}
	}

	// A cached entry is keyed by seed only and must serve any later limit,
	// so it is always computed at the maximum pool size and capped per
	// request on read.
	fetchSize := poolSize
	if e.matchedCache != nil {
		fetchSize = MaxLimit * poolFactor
	}

	pool, err := e.Store.FindPublishedExcluding(ctx, seedID, tags, tokens, fetchSize)
	if err != nil {
		return nil, err
	}

	matched := scoreCandidates(pool, tokens)
	sortCandidates(matched)
	matched = capPool(matched, fetchSize)

	if e.matchedCache != nil {
		e.matchedCache.Add(seedID, matched)
	}
	return capPool(matched, poolSize), nil
}

// scoreCandidates computes, for each candidate, the number of distinct seed
// tokens that match at least one of its tags as a whole word. A token counts
// once no matter how many tags it matches. Candidates left at zero after the
// word-boundary re-check are discarded.
func scoreCandidates(pool []Video, tokens []string) []Candidate {
	out := make([]Candidate, 0, len(pool))
	for _, v := range pool {
		candTags := NormalizeTags(v.Tags)
		count := 0
		for _, tok := range tokens {
			if tokenMatchesAny(tok, candTags) {
				count++
			}
		}
		if count == 0 {
			continue
		}
		out = append(out, Candidate{Video: v, MatchCount: count})
	}
	return out
}

// sortCandidates orders by match count descending, then creation time
// descending, then id ascending. The id tie-break makes the order total
// and deterministic.
func sortCandidates(cands []Candidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].MatchCount != cands[j].MatchCount {
			return cands[i].MatchCount > cands[j].MatchCount
		}
		if cands[i].CreatedAt != cands[j].CreatedAt {
			return cands[i].CreatedAt > cands[j].CreatedAt
		}
		return cands[i].ID < cands[j].ID
	})
}

func capPool(cands []Candidate, poolSize int) []Candidate {
	if len(cands) > poolSize {
		return cands[:poolSize]
	}
	return cands
}

// mergeDedupe concatenates matched before filler, keeping the first
// occurrence of each video id. A video present in both pools keeps its
// matched position and score.
func mergeDedupe(matched, filler []Candidate) []Candidate {
	seen := make(map[string]struct{}, len(matched)+len(filler))
	out := make([]Candidate, 0, len(matched)+len(filler))
	for _, group := range [][]Candidate{matched, filler} {
		for _, c := range group {
			if _, ok := seen[c.ID]; ok {
				continue
			}
			seen[c.ID] = struct{}{}
			out = append(out, c)
		}
	}
	return out
}

// paginate returns the slice [(page-1)*limit, page*limit), or the remainder
// (possibly empty) when the range runs past the end.
func paginate(cands []Candidate, page, limit int) []Candidate {
	start := (page - 1) * limit
	if start >= len(cands) {
		return []Candidate{}
	}
	end := start + limit
	if end > len(cands) {
		end = len(cands)
	}
	return cands[start:end]
}

func clampPage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 1
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return page, limit
}

func (e *Engine) resolveOwners(ctx context.Context, items []Candidate) (map[string]Owner, error) {
	if len(items) == 0 {
		return map[string]Owner{}, nil
	}
	seen := make(map[string]struct{}, len(items))
	ids := make([]string, 0, len(items))
	for _, c := range items {
		if _, ok := seen[c.OwnerID]; ok {
			continue
		}
		seen[c.OwnerID] = struct{}{}
		ids = append(ids, c.OwnerID)
	}
	return e.Store.ResolveOwners(ctx, ids)
}
