package suggest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

// --- fake store ---

type fakeStore struct {
	videos []Video
	owners map[string]Owner

	getCalls    int
	findCalls   int
	sampleCalls int
}

func (f *fakeStore) GetVideo(_ context.Context, id string) (*Video, error) {
	f.getCalls++
	for _, v := range f.videos {
		if v.ID == id {
			vv := v
			return &vv, nil
		}
	}
	return nil, ErrNotFound
}

// FindPublishedExcluding returns every published video except excludeID: a
// valid (maximal) superset of the containment prefilter. The engine's
// word-boundary pass must do the real filtering.
func (f *fakeStore) FindPublishedExcluding(_ context.Context, excludeID string, _, _ []string, poolSize int) ([]Video, error) {
	f.findCalls++
	var out []Video
	for _, v := range f.videos {
		if v.ID == excludeID || !v.Published {
			continue
		}
		out = append(out, v)
		if len(out) >= poolSize*3 {
			break
		}
	}
	return out, nil
}

func (f *fakeStore) SampleRandomPublishedExcluding(_ context.Context, excludeID string, poolSize int) ([]Video, error) {
	f.sampleCalls++
	var out []Video
	for _, v := range f.videos {
		if v.ID == excludeID || !v.Published {
			continue
		}
		out = append(out, v)
		if len(out) >= poolSize {
			break
		}
	}
	return out, nil
}

func (f *fakeStore) ResolveOwners(_ context.Context, ids []string) (map[string]Owner, error) {
	out := make(map[string]Owner, len(ids))
	for _, id := range ids {
		if o, ok := f.owners[id]; ok {
			out[id] = o
		}
	}
	return out, nil
}

// --- helpers ---

func vid(n int) string { return fmt.Sprintf("00000000-0000-0000-0000-%012d", n) }

func video(n int, tags []string, createdAt string) Video {
	return Video{
		ID:        vid(n),
		OwnerID:   vid(900),
		Title:     fmt.Sprintf("video %d", n),
		Tags:      tags,
		Published: true,
		CreatedAt: createdAt,
	}
}

func newTestEngine(f *fakeStore) *Engine {
	if f.owners == nil {
		f.owners = map[string]Owner{vid(900): {ID: vid(900), DisplayName: "chan"}}
	}
	return NewEngine(f, 0, 0)
}

func ids(items []Candidate) []string {
	out := make([]string, len(items))
	for i, c := range items {
		out[i] = c.ID
	}
	return out
}

// --- orchestration ---

func TestSuggest_InvalidSeed(t *testing.T) {
	f := &fakeStore{}
	e := newTestEngine(f)
	if _, err := e.Suggest(context.Background(), "not-a-uuid", 1, 10); !errors.Is(err, ErrInvalidSeed) {
		t.Fatalf("err = %v, want ErrInvalidSeed", err)
	}
	if f.getCalls != 0 {
		t.Errorf("store queried for malformed seed id")
	}
}

func TestSuggest_SeedNotFound_NoPoolReads(t *testing.T) {
	f := &fakeStore{videos: []Video{video(1, []string{"anime"}, "2024-01-01T00:00:00Z")}}
	e := newTestEngine(f)
	if _, err := e.Suggest(context.Background(), vid(99), 1, 10); !errors.Is(err, ErrSeedNotFound) {
		t.Fatalf("err = %v, want ErrSeedNotFound", err)
	}
	if f.findCalls != 0 || f.sampleCalls != 0 {
		t.Errorf("matcher/filler ran after seed lookup failed: find=%d sample=%d", f.findCalls, f.sampleCalls)
	}
}

func TestSuggest_NoTags_FillerOnly(t *testing.T) {
	f := &fakeStore{videos: []Video{
		video(1, nil, "2024-01-01T00:00:00Z"), // seed, no tags
		video(2, []string{"anime"}, "2024-01-02T00:00:00Z"),
		video(3, nil, "2024-01-03T00:00:00Z"),
		video(4, nil, "2024-01-04T00:00:00Z"),
		video(5, nil, "2024-01-05T00:00:00Z"),
		video(6, nil, "2024-01-06T00:00:00Z"),
	}}
	e := newTestEngine(f)

	page, err := e.Suggest(context.Background(), vid(1), 1, 3)
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}
	if f.findCalls != 0 {
		t.Errorf("matcher invoked for tagless seed")
	}
	if len(page.Items) != 3 {
		t.Fatalf("got %d items, want 3", len(page.Items))
	}
	for _, c := range page.Items {
		if c.ID == vid(1) {
			t.Error("seed returned in its own suggestions")
		}
		if c.MatchCount != 0 {
			t.Errorf("filler candidate %s has match count %d", c.ID, c.MatchCount)
		}
	}
}

func TestSuggest_WhitespaceTags_FillerOnly(t *testing.T) {
	f := &fakeStore{videos: []Video{
		video(1, []string{"  ", "\t", "x"}, "2024-01-01T00:00:00Z"), // nothing tokenizable
		video(2, nil, "2024-01-02T00:00:00Z"),
	}}
	e := newTestEngine(f)
	if _, err := e.Suggest(context.Background(), vid(1), 1, 5); err != nil {
		t.Fatalf("Suggest: %v", err)
	}
	if f.findCalls != 0 {
		t.Error("matcher invoked for seed with only untokenizable tags")
	}
	if f.sampleCalls != 1 {
		t.Errorf("sampleCalls = %d, want 1", f.sampleCalls)
	}
}

func TestSuggest_ScenarioA_MatchedBeforeUnrelated(t *testing.T) {
	f := &fakeStore{videos: []Video{
		video(1, []string{"anime", "gojo saturu"}, "2024-01-01T00:00:00Z"), // seed
		video(2, []string{"anime"}, "2024-01-02T00:00:00Z"),
		video(3, []string{"gojo"}, "2024-01-03T00:00:00Z"),
		video(4, []string{"unrelated"}, "2024-01-04T00:00:00Z"),
	}}
	e := newTestEngine(f)

	page, err := e.Suggest(context.Background(), vid(1), 1, 10)
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}
	got := ids(page.Items)
	// Both matched score 1; tie-break is recency desc, so video 3 precedes
	// video 2, and the unrelated filler comes last.
	want := []string{vid(3), vid(2), vid(4)}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("order = %v, want %v", got, want)
	}
	if page.Items[0].MatchCount != 1 || page.Items[1].MatchCount != 1 {
		t.Errorf("match counts = %d, %d, want 1, 1", page.Items[0].MatchCount, page.Items[1].MatchCount)
	}
	if page.Items[2].MatchCount != 0 {
		t.Errorf("unrelated candidate scored %d, want 0", page.Items[2].MatchCount)
	}
}

func TestSuggest_ScenarioC_MatchedThenFillerNoDuplicates(t *testing.T) {
	videos := []Video{video(1, []string{"jazz"}, "2024-01-01T00:00:00Z")} // seed
	videos = append(videos,
		video(2, []string{"jazz"}, "2024-01-02T00:00:00Z"),
		video(3, []string{"jazz piano"}, "2024-01-03T00:00:00Z"),
	)
	for n := 4; n <= 11; n++ {
		videos = append(videos, video(n, []string{"other"}, fmt.Sprintf("2024-01-%02dT00:00:00Z", n)))
	}
	f := &fakeStore{videos: videos}
	e := newTestEngine(f)

	page, err := e.Suggest(context.Background(), vid(1), 1, 5)
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}
	if len(page.Items) != 5 {
		t.Fatalf("got %d items, want 5", len(page.Items))
	}
	// The two matched candidates lead.
	if page.Items[0].MatchCount == 0 || page.Items[1].MatchCount == 0 {
		t.Errorf("matched candidates not first: %v", ids(page.Items))
	}
	for _, c := range page.Items[2:] {
		if c.MatchCount != 0 {
			t.Errorf("more than two candidates scored: %v", ids(page.Items))
		}
	}
	seen := map[string]bool{}
	for _, c := range page.Items {
		if seen[c.ID] {
			t.Errorf("duplicate id %s in page", c.ID)
		}
		seen[c.ID] = true
	}
}

func TestSuggest_WordBoundary(t *testing.T) {
	f := &fakeStore{videos: []Video{
		video(1, []string{"cat"}, "2024-01-01T00:00:00Z"), // seed
		video(2, []string{"category"}, "2024-01-02T00:00:00Z"),
		video(3, []string{"cat compilations"}, "2024-01-03T00:00:00Z"),
	}}
	e := newTestEngine(f)

	page, err := e.Suggest(context.Background(), vid(1), 1, 10)
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}
	for _, c := range page.Items {
		if c.ID == vid(2) && c.MatchCount != 0 {
			t.Error("'cat' seed matched 'category' candidate")
		}
		if c.ID == vid(3) && c.MatchCount != 1 {
			t.Errorf("'cat' seed should match 'cat compilations', got %d", c.MatchCount)
		}
	}
}

func TestSuggest_CachedPoolServesLargerLimit(t *testing.T) {
	// A small first request must not truncate the cached pool for a later
	// request with a larger limit.
	videos := []Video{video(1, []string{"jazz"}, "2024-01-01T00:00:00Z")} // seed
	for n := 2; n <= 41; n++ {
		videos = append(videos, video(n, []string{"jazz"}, fmt.Sprintf("2024-02-%02dT00:00:00Z", n%28+1)))
	}
	f := &fakeStore{
		videos: videos,
		owners: map[string]Owner{vid(900): {ID: vid(900), DisplayName: "chan"}},
	}
	e := NewEngine(f, 8, time.Minute)

	if _, err := e.Suggest(context.Background(), vid(1), 1, 1); err != nil {
		t.Fatalf("priming Suggest: %v", err)
	}
	if f.findCalls != 1 {
		t.Fatalf("findCalls = %d, want 1", f.findCalls)
	}

	page, err := e.Suggest(context.Background(), vid(1), 1, 30)
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}
	if f.findCalls != 1 {
		t.Errorf("cache miss on second request: findCalls = %d", f.findCalls)
	}
	if len(page.Items) != 30 {
		t.Fatalf("got %d items, want 30", len(page.Items))
	}
	for i, c := range page.Items {
		if c.MatchCount == 0 {
			t.Fatalf("item %d is filler but 40 matched candidates exist", i)
		}
	}
}

func TestSuggest_OwnerMetadataAttached(t *testing.T) {
	f := &fakeStore{videos: []Video{
		video(1, nil, "2024-01-01T00:00:00Z"),
		video(2, nil, "2024-01-02T00:00:00Z"),
	}}
	e := newTestEngine(f)

	page, err := e.Suggest(context.Background(), vid(1), 1, 10)
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}
	if len(page.Items) != 1 {
		t.Fatalf("got %d items", len(page.Items))
	}
	owner, ok := page.Owners[page.Items[0].OwnerID]
	if !ok || owner.DisplayName != "chan" {
		t.Errorf("owner metadata missing: %+v", page.Owners)
	}
}

// --- scoring ---

func TestScoreCandidates_DistinctTokensOnly(t *testing.T) {
	// One token matching two tags still counts once.
	pool := []Video{video(2, []string{"gojo saturu", "gojo fights"}, "2024-01-01T00:00:00Z")}
	got := scoreCandidates(pool, []string{"gojo"})
	if len(got) != 1 || got[0].MatchCount != 1 {
		t.Fatalf("scoreCandidates = %+v, want single candidate with count 1", got)
	}
}

func TestScoreCandidates_MultipleTokens(t *testing.T) {
	pool := []Video{video(2, []string{"gojo saturu", "anime"}, "2024-01-01T00:00:00Z")}
	got := scoreCandidates(pool, []string{"anime", "gojo", "saturu", "absent"})
	if len(got) != 1 || got[0].MatchCount != 3 {
		t.Fatalf("match count = %+v, want 3", got)
	}
}

func TestScoreCandidates_DiscardsZero(t *testing.T) {
	pool := []Video{video(2, []string{"category"}, "2024-01-01T00:00:00Z")}
	if got := scoreCandidates(pool, []string{"cat"}); len(got) != 0 {
		t.Fatalf("zero-score candidate survived: %+v", got)
	}
}

func TestSortCandidates_TotalOrder(t *testing.T) {
	cands := []Candidate{
		{Video: video(3, nil, "2024-01-01T00:00:00Z"), MatchCount: 1},
		{Video: video(2, nil, "2024-01-01T00:00:00Z"), MatchCount: 1},
		{Video: video(4, nil, "2024-01-05T00:00:00Z"), MatchCount: 1},
		{Video: video(5, nil, "2024-01-01T00:00:00Z"), MatchCount: 3},
	}
	sortCandidates(cands)
	want := []string{vid(5), vid(4), vid(2), vid(3)}
	if strings.Join(ids(cands), ",") != strings.Join(want, ",") {
		t.Errorf("order = %v, want %v", ids(cands), want)
	}
}

// --- merge / dedupe ---

func TestMergeDedupe_MatchedWins(t *testing.T) {
	matched := []Candidate{
		{Video: video(2, nil, ""), MatchCount: 2},
		{Video: video(3, nil, ""), MatchCount: 1},
	}
	filler := []Candidate{
		{Video: video(3, nil, "")}, // duplicate of a matched candidate
		{Video: video(4, nil, "")},
	}
	got := mergeDedupe(matched, filler)
	want := []string{vid(2), vid(3), vid(4)}
	if strings.Join(ids(got), ",") != strings.Join(want, ",") {
		t.Fatalf("merged = %v, want %v", ids(got), want)
	}
	// The duplicate keeps its matched score and position.
	if got[1].MatchCount != 1 {
		t.Errorf("matched occurrence overwritten by filler: %+v", got[1])
	}
}

func TestMergeDedupe_Stable(t *testing.T) {
	matched := []Candidate{{Video: video(2, nil, "")}, {Video: video(3, nil, "")}}
	filler := []Candidate{{Video: video(4, nil, "")}, {Video: video(2, nil, "")}}
	a := mergeDedupe(matched, filler)
	b := mergeDedupe(matched, filler)
	if strings.Join(ids(a), ",") != strings.Join(ids(b), ",") {
		t.Errorf("mergeDedupe not stable: %v vs %v", ids(a), ids(b))
	}
}

// --- pagination ---

func TestPaginate_PagesReconstructPrefix(t *testing.T) {
	var all []Candidate
	for n := 1; n <= 7; n++ {
		all = append(all, Candidate{Video: video(n, nil, "")})
	}
	var rebuilt []string
	for page := 1; ; page++ {
		slice := paginate(all, page, 3)
		if len(slice) == 0 {
			break
		}
		if len(slice) > 3 {
			t.Fatalf("page %d has %d items, limit 3", page, len(slice))
		}
		rebuilt = append(rebuilt, ids(slice)...)
	}
	if strings.Join(rebuilt, ",") != strings.Join(ids(all), ",") {
		t.Errorf("concatenated pages = %v, want %v", rebuilt, ids(all))
	}
}

func TestPaginate_PastEnd(t *testing.T) {
	all := []Candidate{{Video: video(1, nil, "")}}
	if got := paginate(all, 5, 10); len(got) != 0 {
		t.Errorf("past-end page = %v, want empty", got)
	}
}

func TestClampPage(t *testing.T) {
	if p, l := clampPage(0, 0); p != 1 || l != 1 {
		t.Errorf("clampPage(0,0) = %d,%d", p, l)
	}
	if p, l := clampPage(-3, 500); p != 1 || l != MaxLimit {
		t.Errorf("clampPage(-3,500) = %d,%d", p, l)
	}
	if p, l := clampPage(2, 25); p != 2 || l != 25 {
		t.Errorf("clampPage(2,25) = %d,%d", p, l)
	}
}
