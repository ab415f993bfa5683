// Package searcher implements relevance-ranked package search with
// spelling-tolerant query expansion.
//
// # Basic Usage
//
//	s := searcher.NewSearcher(store)
//
//	resp, err := s.Search(ctx, searcher.SearchRequest{
//	    Query: "web browser",
//	    Limit: 10,
//	})
//
//	for _, result := range resp.Results {
//	    fmt.Printf("[%d] %s/%s %s (score: %.2f)\n",
//	        result.Rank, result.Package.Repo, result.Package.Name,
//	        result.Package.Version, result.Score)
//	}
//
// # Query Pipeline
//
// Every search runs the same four stages:
//
//  1. Tokenize: the query is split on non-alphanumeric boundaries,
//     lowercased, and empty pieces are dropped. "gtk+ 3.0" becomes
//     ["gtk", "3", "0"].
//
//  2. Expand: each distinct package name in the index is compared to
//     each query token with a bounded Levenshtein distance; names
//     within distance 2 join the term set. This is what lets "firefix"
//     find firefox. Pairs whose lengths differ by more than 2 are
//     skipped without computing the matrix.
//
//  3. Select: the expanded terms become substring conditions against
//     package names and descriptions, collapsed to one row per name in
//     repository priority order. This bounds scoring to a candidate
//     set instead of the whole index.
//
//  4. Score: candidates are scored against the original query tokens
//     only, see below.
//
// # Scoring
//
// Per candidate, summed over original query tokens q:
//
//	idf = ln((candidates + 1) / df(q))
//
//	+5.0 * idf  if the lowercased name contains q as a substring
//	+1.5 * idf  if any whole description token equals q
//	+(3-d) * idf  for the name and each description token within
//	              edit distance d <= 2 of q
//
// df(q) counts the candidates containing q as a whole word of their
// tokenized name and description, floored to one. Rare tokens thus
// outweigh tokens every candidate shares. Candidates scoring zero or
// below are dropped; the rest sort by score descending, name ascending.
//
// # Caching
//
// Responses are cached in a bounded LRU keyed by a hash of the query
// and limit. Entries expire after the request TTL (5 minutes unless
// set). InvalidateCache drops everything and is called after each
// index update.
package searcher
