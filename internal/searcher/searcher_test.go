package searcher

import (
	"context"
	"testing"
	"time"

	"github.com/neoarchlinux/pkgdex/internal/storage"
	"github.com/neoarchlinux/pkgdex/pkg/types"
)

// setupTestSearcher creates a searcher over in-memory storage with
// core preferred over extra.
func setupTestSearcher(t *testing.T) (*Searcher, storage.Storage) {
	t.Helper()

	store, err := storage.Open(":memory:", storage.Options{
		Repositories: []string{"core", "extra"},
	})
	if err != nil {
		t.Fatalf("failed to create test storage: %v", err)
	}

	t.Cleanup(func() {
		_ = store.Close()
	})

	return NewSearcher(store), store
}

func seedPackage(t *testing.T, store storage.Storage, repo, name, version, desc string) {
	t.Helper()

	pkg := &types.Package{Name: name, Version: version, Description: desc, Repo: repo}
	if err := store.UpsertPackage(context.Background(), pkg); err != nil {
		t.Fatalf("failed to seed %s/%s: %v", repo, name, err)
	}
}

// TestNewSearcher verifies searcher creation
func TestNewSearcher(t *testing.T) {
	s, store := setupTestSearcher(t)

	if s == nil {
		t.Fatal("expected non-nil searcher")
	}

	if s.storage != store {
		t.Error("searcher storage not set correctly")
	}

	if s.cache == nil {
		t.Error("searcher cache not initialized")
	}
}

// TestTokenize tests query tokenization
func TestTokenize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "SimpleWords",
			input:    "web browser",
			expected: []string{"web", "browser"},
		},
		{
			name:     "MixedCase",
			input:    "Firefox Browser",
			expected: []string{"firefox", "browser"},
		},
		{
			name:     "PunctuationBoundaries",
			input:    "gtk+ 3.0",
			expected: []string{"gtk", "3", "0"},
		},
		{
			name:     "HyphensAndUnderscores",
			input:    "lib-foo_bar",
			expected: []string{"lib", "foo", "bar"},
		},
		{
			name:     "Empty",
			input:    "",
			expected: []string{},
		},
		{
			name:     "OnlyPunctuation",
			input:    "!!! --- ...",
			expected: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tokenize(tt.input)

			if len(got) != len(tt.expected) {
				t.Fatalf("expected %d tokens %v, got %d tokens %v",
					len(tt.expected), tt.expected, len(got), got)
			}

			for i, want := range tt.expected {
				if got[i] != want {
					t.Errorf("token %d: expected %q, got %q", i, want, got[i])
				}
			}
		})
	}
}

// TestLevenshteinWithin tests the bounded edit distance
func TestLevenshteinWithin(t *testing.T) {
	tests := []struct {
		name       string
		a, b       string
		max        int
		wantDist   int
		wantWithin bool
	}{
		{
			name:       "SingleSubstitution",
			a:          "gcc",
			b:          "gcd",
			max:        2,
			wantDist:   1,
			wantWithin: true,
		},
		{
			name:       "Identical",
			a:          "firefox",
			b:          "firefox",
			max:        2,
			wantDist:   0,
			wantWithin: true,
		},
		{
			name:       "LengthDifferenceRejectsEarly",
			a:          "gcc",
			b:          "zzzzzzzz",
			max:        2,
			wantWithin: false,
		},
		{
			name:       "Typo",
			a:          "firefox",
			b:          "firefix",
			max:        2,
			wantDist:   1,
			wantWithin: true,
		},
		{
			name:       "InsertionAndDeletion",
			a:          "flaw",
			b:          "lawn",
			max:        2,
			wantDist:   2,
			wantWithin: true,
		},
		{
			name:       "DistanceExceedsBound",
			a:          "abc",
			b:          "xyz",
			max:        2,
			wantWithin: false,
		},
		{
			name:       "EmptyAgainstShort",
			a:          "",
			b:          "ab",
			max:        2,
			wantDist:   2,
			wantWithin: true,
		},
		{
			name:       "EmptyAgainstLong",
			a:          "",
			b:          "abc",
			max:        2,
			wantWithin: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dist, within := levenshteinWithin(tt.a, tt.b, tt.max)

			if within != tt.wantWithin {
				t.Fatalf("levenshteinWithin(%q, %q, %d): expected within=%v, got %v",
					tt.a, tt.b, tt.max, tt.wantWithin, within)
			}

			if within && dist != tt.wantDist {
				t.Errorf("levenshteinWithin(%q, %q, %d): expected distance %d, got %d",
					tt.a, tt.b, tt.max, tt.wantDist, dist)
			}
		})
	}
}

// TestScoreCandidates tests the scoring stage directly
func TestScoreCandidates(t *testing.T) {
	tests := []struct {
		name       string
		candidates []types.Package
		tokens     []string
		validate   func(t *testing.T, results []types.SearchResult)
	}{
		{
			name: "NameMatchOutranksDescriptionMatch",
			candidates: []types.Package{
				{Name: "vim", Version: "9.1", Description: "Vi improved editor", Repo: "extra"},
				{Name: "emacs", Version: "30.1", Description: "An editor rivaling vim", Repo: "extra"},
			},
			tokens: []string{"vim"},
			validate: func(t *testing.T, results []types.SearchResult) {
				if len(results) != 2 {
					t.Fatalf("expected 2 results, got %d", len(results))
				}
				if results[0].Package.Name != "vim" {
					t.Errorf("expected vim ranked first, got %s", results[0].Package.Name)
				}
				if results[0].Score <= results[1].Score {
					t.Errorf("expected vim score %f above emacs score %f",
						results[0].Score, results[1].Score)
				}
			},
		},
		{
			name: "SymmetricDescriptionMatchesScoreEqually",
			candidates: []types.Package{
				{Name: "firefox", Version: "130.0", Description: "web browser", Repo: "extra"},
				{Name: "chromium", Version: "128.0", Description: "web browser", Repo: "extra"},
			},
			tokens: []string{"browser"},
			validate: func(t *testing.T, results []types.SearchResult) {
				if len(results) != 2 {
					t.Fatalf("expected 2 results, got %d", len(results))
				}
				if results[0].Score != results[1].Score {
					t.Errorf("expected equal scores, got %f and %f",
						results[0].Score, results[1].Score)
				}
				// Equal scores fall back to name order.
				if results[0].Package.Name != "chromium" || results[1].Package.Name != "firefox" {
					t.Errorf("expected chromium before firefox on tie, got %s before %s",
						results[0].Package.Name, results[1].Package.Name)
				}
			},
		},
		{
			name: "NameQueryBeatsUnrelatedCandidate",
			candidates: []types.Package{
				{Name: "firefox", Version: "130.0", Description: "web browser", Repo: "extra"},
				{Name: "chromium", Version: "128.0", Description: "web browser", Repo: "extra"},
			},
			tokens: []string{"firefox"},
			validate: func(t *testing.T, results []types.SearchResult) {
				if len(results) == 0 {
					t.Fatal("expected at least 1 result")
				}
				if results[0].Package.Name != "firefox" {
					t.Errorf("expected firefox first, got %s", results[0].Package.Name)
				}
				if results[0].Score <= 0 {
					t.Errorf("expected positive score, got %f", results[0].Score)
				}
				for _, r := range results[1:] {
					if r.Package.Name == "chromium" && r.Score >= results[0].Score {
						t.Errorf("chromium score %f not below firefox score %f",
							r.Score, results[0].Score)
					}
				}
			},
		},
		{
			name: "ZeroAffinityCandidateDropped",
			candidates: []types.Package{
				{Name: "firefox-i18n-de", Version: "130.0", Description: "German language pack", Repo: "extra"},
			},
			tokens: []string{"firefix"},
			validate: func(t *testing.T, results []types.SearchResult) {
				if len(results) != 0 {
					t.Fatalf("expected 0 results, got %d", len(results))
				}
			},
		},
		{
			name:       "EmptyCandidates",
			candidates: []types.Package{},
			tokens:     []string{"anything"},
			validate: func(t *testing.T, results []types.SearchResult) {
				if len(results) != 0 {
					t.Fatalf("expected 0 results, got %d", len(results))
				}
			},
		},
		{
			name: "RanksAreSequential",
			candidates: []types.Package{
				{Name: "gcc", Version: "14.2", Description: "GNU Compiler Collection", Repo: "core"},
				{Name: "gcc-libs", Version: "14.2", Description: "Runtime libraries shipped by gcc", Repo: "core"},
				{Name: "gcc-fortran", Version: "14.2", Description: "Fortran front-end for gcc", Repo: "core"},
			},
			tokens: []string{"gcc"},
			validate: func(t *testing.T, results []types.SearchResult) {
				if len(results) != 3 {
					t.Fatalf("expected 3 results, got %d", len(results))
				}
				for i, r := range results {
					if r.Rank != i+1 {
						t.Errorf("result %d has rank %d, expected %d", i, r.Rank, i+1)
					}
				}
				for i := 1; i < len(results); i++ {
					if results[i-1].Score < results[i].Score {
						t.Errorf("results not sorted: result %d score %f below result %d score %f",
							i-1, results[i-1].Score, i, results[i].Score)
					}
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results := scoreCandidates(tt.candidates, tt.tokens)
			tt.validate(t, results)
		})
	}
}

// TestSortRankedResults tests result ordering
func TestSortRankedResults(t *testing.T) {
	tests := []struct {
		name     string
		input    []types.SearchResult
		expected []string // expected package names in order
	}{
		{
			name: "AlreadySorted",
			input: []types.SearchResult{
				{Package: types.Package{Name: "a"}, Score: 0.9},
				{Package: types.Package{Name: "b"}, Score: 0.8},
				{Package: types.Package{Name: "c"}, Score: 0.7},
			},
			expected: []string{"a", "b", "c"},
		},
		{
			name: "ReverseSorted",
			input: []types.SearchResult{
				{Package: types.Package{Name: "a"}, Score: 0.7},
				{Package: types.Package{Name: "b"}, Score: 0.8},
				{Package: types.Package{Name: "c"}, Score: 0.9},
			},
			expected: []string{"c", "b", "a"},
		},
		{
			name: "EqualScoresFallBackToName",
			input: []types.SearchResult{
				{Package: types.Package{Name: "zsh"}, Score: 0.8},
				{Package: types.Package{Name: "bash"}, Score: 0.8},
				{Package: types.Package{Name: "fish"}, Score: 0.8},
			},
			expected: []string{"bash", "fish", "zsh"},
		},
		{
			name: "MixedScores",
			input: []types.SearchResult{
				{Package: types.Package{Name: "d"}, Score: 0.5},
				{Package: types.Package{Name: "a"}, Score: 0.9},
				{Package: types.Package{Name: "c"}, Score: 0.7},
				{Package: types.Package{Name: "b"}, Score: 0.9},
			},
			expected: []string{"a", "b", "c", "d"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results := make([]types.SearchResult, len(tt.input))
			copy(results, tt.input)

			sortRankedResults(results)

			for i, want := range tt.expected {
				if results[i].Package.Name != want {
					t.Errorf("position %d: expected %s, got %s", i, want, results[i].Package.Name)
				}
			}
		})
	}
}

// TestComputeQueryHash tests cache key computation
func TestComputeQueryHash(t *testing.T) {
	tests := []struct {
		name     string
		req1     SearchRequest
		req2     SearchRequest
		shouldEq bool
	}{
		{
			name:     "IdenticalRequests",
			req1:     SearchRequest{Query: "web browser", Limit: 10},
			req2:     SearchRequest{Query: "web browser", Limit: 10},
			shouldEq: true,
		},
		{
			name:     "DifferentQuery",
			req1:     SearchRequest{Query: "browser", Limit: 10},
			req2:     SearchRequest{Query: "editor", Limit: 10},
			shouldEq: false,
		},
		{
			name:     "DifferentLimit",
			req1:     SearchRequest{Query: "browser", Limit: 10},
			req2:     SearchRequest{Query: "browser", Limit: 20},
			shouldEq: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash1 := computeQueryHash(tt.req1)
			hash2 := computeQueryHash(tt.req2)

			equal := hash1 == hash2

			if tt.shouldEq && !equal {
				t.Error("expected hashes to be equal but they differ")
			}

			if !tt.shouldEq && equal {
				t.Error("expected hashes to differ but they are equal")
			}
		})
	}
}

// TestValidateRequest tests request normalization
func TestValidateRequest(t *testing.T) {
	s := &Searcher{}

	req := SearchRequest{Query: "test", Limit: -5}
	if err := s.validateRequest(&req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Limit != 0 {
		t.Errorf("expected negative limit normalized to 0, got %d", req.Limit)
	}
	if req.CacheTTL != defaultCacheTTL {
		t.Errorf("expected default cache TTL %v, got %v", defaultCacheTTL, req.CacheTTL)
	}

	req = SearchRequest{Query: "test", Limit: 5, CacheTTL: time.Minute}
	if err := s.validateRequest(&req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Limit != 5 {
		t.Errorf("expected limit 5 preserved, got %d", req.Limit)
	}
	if req.CacheTTL != time.Minute {
		t.Errorf("expected cache TTL preserved, got %v", req.CacheTTL)
	}
}

// Integration tests with real storage

// TestSearchEmptyQuery verifies that queries without tokens return
// empty results and no error
func TestSearchEmptyQuery(t *testing.T) {
	s, store := setupTestSearcher(t)
	ctx := context.Background()

	seedPackage(t, store, "core", "gcc", "14.2.1-1", "GNU Compiler Collection")

	for _, query := range []string{"", "   ", "!!! --- ..."} {
		resp, err := s.Search(ctx, SearchRequest{Query: query})
		if err != nil {
			t.Fatalf("Search(%q) failed: %v", query, err)
		}
		if len(resp.Results) != 0 {
			t.Errorf("Search(%q): expected 0 results, got %d", query, len(resp.Results))
		}
	}
}

// TestSearchMatchesName verifies a name query ranks its package first
func TestSearchMatchesName(t *testing.T) {
	s, store := setupTestSearcher(t)
	ctx := context.Background()

	seedPackage(t, store, "core", "firefox", "130.0-1", "Standalone web browser")
	seedPackage(t, store, "extra", "firefox-i18n-de", "130.0-1", "German language pack")
	seedPackage(t, store, "extra", "chromium", "128.0-1", "Graphical web browser")

	resp, err := s.Search(ctx, SearchRequest{Query: "firefox"})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	if len(resp.Results) == 0 {
		t.Fatal("expected results")
	}

	if resp.Results[0].Package.Name != "firefox" {
		t.Errorf("expected firefox ranked first, got %s", resp.Results[0].Package.Name)
	}

	if resp.Duration == 0 {
		t.Error("expected non-zero Duration")
	}
}

// TestSearchFuzzyFindsNearMiss verifies a one-letter typo still finds
// the package
func TestSearchFuzzyFindsNearMiss(t *testing.T) {
	s, store := setupTestSearcher(t)
	ctx := context.Background()

	seedPackage(t, store, "core", "firefox", "130.0-1", "Standalone web browser")
	seedPackage(t, store, "extra", "firefox-i18n-de", "130.0-1", "German language pack")

	resp, err := s.Search(ctx, SearchRequest{Query: "firefix"})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	if len(resp.Results) == 0 {
		t.Fatal("expected fuzzy match for firefix")
	}

	if resp.Results[0].Package.Name != "firefox" {
		t.Errorf("expected firefox first, got %s", resp.Results[0].Package.Name)
	}

	if resp.Results[0].Score <= 0 {
		t.Errorf("expected positive score, got %f", resp.Results[0].Score)
	}
}

// TestSearchNoMatch verifies an unrelated query returns nothing
func TestSearchNoMatch(t *testing.T) {
	s, store := setupTestSearcher(t)
	ctx := context.Background()

	seedPackage(t, store, "core", "firefox", "130.0-1", "Standalone web browser")

	resp, err := s.Search(ctx, SearchRequest{Query: "xyzxyz"})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	if len(resp.Results) != 0 {
		t.Errorf("expected 0 results, got %d", len(resp.Results))
	}
}

// TestSearchEmptyIndex verifies searching an empty index succeeds
func TestSearchEmptyIndex(t *testing.T) {
	s, _ := setupTestSearcher(t)

	resp, err := s.Search(context.Background(), SearchRequest{Query: "anything"})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	if len(resp.Results) != 0 {
		t.Errorf("expected 0 results, got %d", len(resp.Results))
	}
}

// TestSearchCollapsesToPriorityRepo verifies duplicate names resolve to
// the preferred repository before scoring
func TestSearchCollapsesToPriorityRepo(t *testing.T) {
	s, store := setupTestSearcher(t)
	ctx := context.Background()

	seedPackage(t, store, "extra", "vim", "9.1.0-2", "Vi improved editor")
	seedPackage(t, store, "core", "vim", "9.1.0-1", "Vi improved editor")

	resp, err := s.Search(ctx, SearchRequest{Query: "vim"})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	if len(resp.Results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(resp.Results))
	}

	got := resp.Results[0].Package
	if got.Repo != "core" {
		t.Errorf("expected core repository to win, got %s", got.Repo)
	}
	if got.Version != "9.1.0-1" {
		t.Errorf("expected core version, got %s", got.Version)
	}
}

// TestSearchLimitTruncates verifies the limit is applied after ranking
func TestSearchLimitTruncates(t *testing.T) {
	s, store := setupTestSearcher(t)
	ctx := context.Background()

	seedPackage(t, store, "core", "gcc", "14.2.1-1", "GNU Compiler Collection")
	seedPackage(t, store, "core", "gcc-libs", "14.2.1-1", "Runtime libraries for the compiler collection")
	seedPackage(t, store, "extra", "gcc-fortran", "14.2.1-1", "Fortran front-end for the compiler collection")

	resp, err := s.Search(ctx, SearchRequest{Query: "gcc", Limit: 2})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	if len(resp.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(resp.Results))
	}

	if resp.TotalResults != 3 {
		t.Errorf("expected TotalResults 3, got %d", resp.TotalResults)
	}

	if resp.Results[0].Package.Name != "gcc" {
		t.Errorf("expected gcc first, got %s", resp.Results[0].Package.Name)
	}
}

// TestSearchCache verifies cache hits, invalidation, and expiry
func TestSearchCache(t *testing.T) {
	s, store := setupTestSearcher(t)
	ctx := context.Background()

	seedPackage(t, store, "core", "gcc", "14.2.1-1", "GNU Compiler Collection")

	req := SearchRequest{Query: "gcc", UseCache: true, CacheTTL: time.Hour}

	first, err := s.Search(ctx, req)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if first.CacheHit {
		t.Error("expected cache miss on first search")
	}

	second, err := s.Search(ctx, req)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if !second.CacheHit {
		t.Error("expected cache hit on second search")
	}
	if len(second.Results) != len(first.Results) {
		t.Errorf("cached results differ: %d vs %d", len(second.Results), len(first.Results))
	}

	s.InvalidateCache()

	third, err := s.Search(ctx, req)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if third.CacheHit {
		t.Error("expected cache miss after invalidation")
	}
}

// TestSearchCacheExpiry verifies expired entries are not served
func TestSearchCacheExpiry(t *testing.T) {
	s, store := setupTestSearcher(t)
	ctx := context.Background()

	seedPackage(t, store, "core", "gcc", "14.2.1-1", "GNU Compiler Collection")

	req := SearchRequest{Query: "gcc", UseCache: true, CacheTTL: time.Nanosecond}

	if _, err := s.Search(ctx, req); err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	time.Sleep(time.Millisecond)

	resp, err := s.Search(ctx, req)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if resp.CacheHit {
		t.Error("expected expired entry to miss")
	}
}
