package searcher

import (
	"context"
	"crypto/sha256"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/neoarchlinux/pkgdex/internal/storage"
	"github.com/neoarchlinux/pkgdex/pkg/types"
)

const (
	// maxEditDistance bounds fuzzy matching: query tokens and index
	// terms further apart than this never match.
	maxEditDistance = 2

	// nameWeight rewards a query token occurring as a substring of the
	// package name.
	nameWeight = 5.0

	// descTokenWeight rewards a query token occurring as a whole word
	// of the package description.
	descTokenWeight = 1.5

	// fuzzyMaxReward is the reward for an exact fuzzy hit; each unit of
	// edit distance subtracts one.
	fuzzyMaxReward = 3

	// searchCacheSize limits the number of cached search responses.
	searchCacheSize = 1000

	// defaultCacheTTL is applied when a request does not set its own TTL.
	defaultCacheTTL = 5 * time.Minute
)

// SearchRequest describes one ranked query against the package index.
type SearchRequest struct {
	Query    string
	Limit    int // maximum results to return; 0 means all
	UseCache bool
	CacheTTL time.Duration
}

// SearchResponse contains ranked results plus query metadata.
type SearchResponse struct {
	Results      []types.SearchResult
	TotalResults int // scored results before the limit was applied
	Candidates   int // candidate set size before scoring
	Duration     time.Duration
	CacheHit     bool
}

// cacheEntry wraps a cached response with its expiry time.
type cacheEntry struct {
	response  *SearchResponse
	expiresAt time.Time
}

// Searcher ranks packages against free-form queries. Responses are
// cached in a bounded LRU keyed by a hash of the request.
type Searcher struct {
	storage storage.Storage
	cache   *lru.Cache[[32]byte, *cacheEntry]
	cacheMu sync.RWMutex
}

// NewSearcher creates a searcher backed by the given storage.
func NewSearcher(store storage.Storage) *Searcher {
	cache, err := lru.New[[32]byte, *cacheEntry](searchCacheSize)
	if err != nil {
		// lru.New only errors on invalid size; this is a programming error
		panic(fmt.Sprintf("failed to create search cache: %v", err))
	}

	return &Searcher{
		storage: store,
		cache:   cache,
	}
}

// Search executes a ranked query and returns scored, ordered results.
//
// The query is tokenized on non-alphanumeric boundaries, expanded with
// package names within edit distance 2 of a token, and matched against
// name and description columns to form a candidate set. Candidates are
// then scored per original query token, weighted by the token's rarity
// across the candidate set, and sorted by score with name as the tie
// break. A query that produces no tokens returns an empty response.
func (s *Searcher) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	start := time.Now()

	if err := s.validateRequest(&req); err != nil {
		return nil, fmt.Errorf("invalid search request: %w", err)
	}

	queryTokens := tokenize(req.Query)
	if len(queryTokens) == 0 {
		return &SearchResponse{
			Results:  []types.SearchResult{},
			Duration: time.Since(start),
		}, nil
	}

	queryHash := computeQueryHash(req)

	if req.UseCache {
		if cached := s.checkCache(queryHash); cached != nil {
			cached.CacheHit = true
			cached.Duration = time.Since(start)
			return cached, nil
		}
	}

	terms, err := s.expandQueryTokens(ctx, queryTokens)
	if err != nil {
		return nil, fmt.Errorf("failed to expand query tokens: %w", err)
	}

	candidates, err := s.storage.SearchCandidates(ctx, terms)
	if err != nil {
		return nil, fmt.Errorf("failed to select candidates: %w", err)
	}

	results := scoreCandidates(candidates, queryTokens)

	total := len(results)
	if req.Limit > 0 && len(results) > req.Limit {
		results = results[:req.Limit]
	}

	response := &SearchResponse{
		Results:      results,
		TotalResults: total,
		Candidates:   len(candidates),
		Duration:     time.Since(start),
	}

	if req.UseCache {
		s.storeInCache(queryHash, response, req.CacheTTL)
	}

	return response, nil
}

// InvalidateCache drops all cached responses. Called after an index
// update so stale rankings never survive a refresh.
func (s *Searcher) InvalidateCache() {
	s.cacheMu.Lock()
	s.cache.Purge()
	s.cacheMu.Unlock()
}

// validateRequest normalizes request fields in place.
func (s *Searcher) validateRequest(req *SearchRequest) error {
	if req.Limit < 0 {
		req.Limit = 0
	}
	if req.CacheTTL <= 0 {
		req.CacheTTL = defaultCacheTTL
	}
	return nil
}

// expandQueryTokens widens the query tokens with every distinct package
// name within edit distance maxEditDistance of a token, so misspelled
// queries still reach candidate selection. The result keeps the
// original tokens first and contains no duplicates.
func (s *Searcher) expandQueryTokens(ctx context.Context, queryTokens []string) ([]string, error) {
	names, err := s.storage.DistinctNames(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(queryTokens))
	terms := make([]string, 0, len(queryTokens))

	for _, tok := range queryTokens {
		if _, ok := seen[tok]; ok {
			continue
		}
		seen[tok] = struct{}{}
		terms = append(terms, tok)
	}

	for _, name := range names {
		if _, ok := seen[name]; ok {
			continue
		}
		for _, tok := range queryTokens {
			if _, ok := levenshteinWithin(name, tok, maxEditDistance); ok {
				seen[name] = struct{}{}
				terms = append(terms, name)
				break
			}
		}
	}

	return terms, nil
}

// scoreCandidates ranks the candidate set against the original query
// tokens. Each token's rewards are weighted by its inverse document
// frequency across the candidates, so a token shared by most of the
// set contributes less than a rare one. Candidates with a non-positive
// total are dropped; survivors are sorted by score descending with
// name ascending as the tie break and assigned 1-based ranks.
func scoreCandidates(candidates []types.Package, queryTokens []string) []types.SearchResult {
	if len(candidates) == 0 {
		return []types.SearchResult{}
	}

	df := documentFrequency(candidates, queryTokens)
	totalDocs := float64(len(candidates))

	results := make([]types.SearchResult, 0, len(candidates))

	for _, pkg := range candidates {
		nameLower := strings.ToLower(pkg.Name)
		descTokens := tokenize(pkg.Description)

		var score float64
		for _, q := range queryTokens {
			// Smoothed idf: the +1 keeps the weight strictly positive
			// even when every candidate contains the token, so a fully
			// symmetric match still ranks instead of scoring zero.
			idf := math.Log((totalDocs + 1) / df[q])

			if strings.Contains(nameLower, q) {
				score += nameWeight * idf
			}

			if containsToken(descTokens, q) {
				score += descTokenWeight * idf
			}

			if d, ok := levenshteinWithin(nameLower, q, maxEditDistance); ok {
				score += fuzzyWeight(d) * idf
			}
			for _, tok := range descTokens {
				if d, ok := levenshteinWithin(tok, q, maxEditDistance); ok {
					score += fuzzyWeight(d) * idf
				}
			}
		}

		if score <= 0 {
			continue
		}

		results = append(results, types.SearchResult{
			Package: pkg,
			Score:   score,
		})
	}

	sortRankedResults(results)

	for i := range results {
		results[i].Rank = i + 1
	}

	return results
}

// documentFrequency counts, per query token, the candidates containing
// the token as a whole word of their tokenized name and description.
// Tokens absent from every candidate count as one so their idf stays
// finite.
func documentFrequency(candidates []types.Package, queryTokens []string) map[string]float64 {
	docs := make([][]string, len(candidates))
	for i, pkg := range candidates {
		docs[i] = tokenize(pkg.Name + " " + pkg.Description)
	}

	df := make(map[string]float64, len(queryTokens))
	for _, q := range queryTokens {
		var n float64
		for i := range docs {
			if containsToken(docs[i], q) {
				n++
			}
		}
		if n < 1 {
			n = 1
		}
		df[q] = n
	}

	return df
}

// fuzzyWeight converts an edit distance into its reward.
func fuzzyWeight(d int) float64 {
	return float64(fuzzyMaxReward - d)
}

// containsToken reports whether want occurs in tokens.
func containsToken(tokens []string, want string) bool {
	for _, tok := range tokens {
		if tok == want {
			return true
		}
	}
	return false
}

// sortRankedResults orders results by score descending, breaking ties
// by package name ascending so equal scores come out deterministically.
func sortRankedResults(results []types.SearchResult) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Package.Name < results[j].Package.Name
	})
}

// tokenize splits s on every non-alphanumeric rune, lowercases the
// pieces and drops empties.
func tokenize(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for i, f := range fields {
		fields[i] = strings.ToLower(f)
	}
	return fields
}

// levenshteinWithin computes the edit distance between a and b unless
// it can prove the distance exceeds max. The second return reports
// whether the distance is within the bound. Pairs whose rune lengths
// already differ by more than max are rejected without touching the
// matrix, and any row whose minimum exceeds max aborts the computation.
func levenshteinWithin(a, b string, max int) (int, bool) {
	ra := []rune(a)
	rb := []rune(b)

	diff := len(ra) - len(rb)
	if diff < 0 {
		diff = -diff
	}
	if diff > max {
		return 0, false
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}

	for i, ca := range ra {
		curr[0] = i + 1
		rowMin := curr[0]

		for j, cb := range rb {
			cost := 1
			if ca == cb {
				cost = 0
			}
			curr[j+1] = min(prev[j+1]+1, curr[j]+1, prev[j]+cost)
			if curr[j+1] < rowMin {
				rowMin = curr[j+1]
			}
		}

		if rowMin > max {
			return 0, false
		}

		prev, curr = curr, prev
	}

	d := prev[len(rb)]
	if d > max {
		return 0, false
	}
	return d, true
}

// computeQueryHash generates a cache key from the request fields that
// influence the response.
func computeQueryHash(req SearchRequest) [32]byte {
	var b strings.Builder
	b.WriteString(req.Query)
	b.WriteString("|")
	b.WriteString(strconv.Itoa(req.Limit))
	return sha256.Sum256([]byte(b.String()))
}

// checkCache returns a copy of the cached response for the hash, or
// nil on a miss. Expired entries are removed on the way out.
func (s *Searcher) checkCache(queryHash [32]byte) *SearchResponse {
	s.cacheMu.RLock()
	entry, ok := s.cache.Get(queryHash)
	s.cacheMu.RUnlock()

	if !ok {
		return nil
	}

	if time.Now().After(entry.expiresAt) {
		s.cacheMu.Lock()
		s.cache.Remove(queryHash)
		s.cacheMu.Unlock()
		return nil
	}

	return copySearchResponse(entry.response)
}

// storeInCache saves a deep copy of the response under the hash.
func (s *Searcher) storeInCache(queryHash [32]byte, response *SearchResponse, ttl time.Duration) {
	entry := &cacheEntry{
		response:  copySearchResponse(response),
		expiresAt: time.Now().Add(ttl),
	}

	s.cacheMu.Lock()
	s.cache.Add(queryHash, entry)
	s.cacheMu.Unlock()
}

// copySearchResponse deep-copies a response so cached entries are never
// aliased by callers.
func copySearchResponse(resp *SearchResponse) *SearchResponse {
	out := *resp
	out.Results = make([]types.SearchResult, len(resp.Results))
	copy(out.Results, resp.Results)
	return &out
}
