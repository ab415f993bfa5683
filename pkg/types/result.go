package types

// SearchResult represents a single ranked search hit.
type SearchResult struct {
	Package Package

	// Score is the accumulated TF-IDF weight. Unnormalized; only the
	// ordering between results of the same query is meaningful.
	Score float64

	// Rank is the 1-based position in the result set, assigned after
	// sorting by score descending with name-ascending tie-break.
	Rank int
}

// Validate checks if the search result is well formed.
func (sr *SearchResult) Validate() error {
	if err := sr.Package.Validate(); err != nil {
		return err
	}
	if sr.Rank < 1 {
		return ErrInvalidRank
	}
	return nil
}

// FileMatch represents one owning package for a looked-up path.
type FileMatch struct {
	Package Package

	// Path is absolute, with exactly one leading separator.
	Path string
}
