package types

// Package represents one repository package descriptor.
//
// A package is keyed by (Repo, Name); the same name may exist in several
// repositories with different versions. Queries that return a single
// package resolve the repository by the configured priority order.
type Package struct {
	Name        string
	Version     string
	Description string
	Repo        string
}

// Identifier returns the "<name>-<version>" string that names this
// package's entry directory inside a sync archive. It is the join key
// between the desc and files members of an archive and the skip key for
// incremental updates.
func (p *Package) Identifier() string {
	return p.Name + "-" + p.Version
}

// Validate checks the fields required for storing the package.
// Description may be empty; the version string is opaque and not parsed.
func (p *Package) Validate() error {
	if p.Name == "" {
		return ErrEmptyName
	}
	if p.Version == "" {
		return ErrEmptyVersion
	}
	if p.Repo == "" {
		return ErrEmptyRepo
	}
	return nil
}
