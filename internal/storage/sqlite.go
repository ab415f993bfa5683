package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/neoarchlinux/pkgdex/pkg/types"
)

var (
	// ErrNotFound is returned when a requested row doesn't exist
	ErrNotFound = errors.New("not found")
)

// unlistedPriority ranks repositories missing from the configured order
// after every listed one.
const unlistedPriority = 1000

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db       *sql.DB
	priority *repoPriority
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1) // SQLite benefits from single writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// Open creates or opens the cache database at dbPath and applies any
// pending migrations. Used by the updater and the server, which are
// allowed to create an empty cache.
func Open(dbPath string, opts Options) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Apply migrations
	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{db: db, priority: newRepoPriority(opts.Repositories)}, nil
}

// OpenExisting opens the cache database only if it has been built
// before. A missing file yields types.ErrCacheMissing so read-only
// callers can tell the user to run an update instead of silently
// serving an empty cache.
func OpenExisting(dbPath string, opts Options) (*SQLiteStorage, error) {
	if dbPath != ":memory:" {
		if _, err := os.Stat(dbPath); err != nil {
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("%w: %s", types.ErrCacheMissing, dbPath)
			}
			return nil, fmt.Errorf("failed to stat database: %w", err)
		}
	}
	return Open(dbPath, opts)
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a new transaction
func (s *SQLiteStorage) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqliteTx{tx: tx, storage: s}, nil
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// sqliteTx wraps a SQL transaction
type sqliteTx struct {
	tx      *sql.Tx
	storage *SQLiteStorage
}

func (t *sqliteTx) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTx) Rollback() error {
	return t.tx.Rollback()
}

// querier returns the transaction querier
func (t *sqliteTx) querier() querier {
	return t.tx
}

// querier returns the DB querier
func (s *SQLiteStorage) querier() querier {
	return s.db
}

// repoPriority orders repositories by their configured position.
//
// The expression is assembled from configuration values only, never from
// user input; quotes are escaped so the generated SQL stays well formed.
// Every user-supplied value in this package is a bound parameter.
type repoPriority struct {
	expr string
}

func newRepoPriority(repos []string) *repoPriority {
	if len(repos) == 0 {
		return &repoPriority{expr: "repo"}
	}
	var b strings.Builder
	b.WriteString("CASE repo")
	for i, repo := range repos {
		fmt.Fprintf(&b, " WHEN '%s' THEN %d", strings.ReplaceAll(repo, "'", "''"), i)
	}
	fmt.Fprintf(&b, " ELSE %d END, repo", unlistedPriority)
	return &repoPriority{expr: b.String()}
}

// orderExpr returns the ORDER BY expression ranking repositories. The
// trailing "repo" term breaks ties between equal priorities so the
// chosen repository is stable across runs.
func (p *repoPriority) orderExpr() string {
	return p.expr
}

// Update operations

// upsertPackageWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) upsertPackageWithQuerier(ctx context.Context, q querier, pkg *types.Package) error {
	if err := pkg.Validate(); err != nil {
		return err
	}
	// files_indexed resets on every upsert: the descriptor pass runs
	// before the file pass, and only a completed file pass marks it.
	query := `
		INSERT INTO packages (name, version, description, repo, files_indexed)
		VALUES (?, ?, ?, ?, 0)
		ON CONFLICT(repo, name) DO UPDATE SET
			version = excluded.version,
			description = excluded.description,
			files_indexed = 0
	`
	if _, err := q.ExecContext(ctx, query, pkg.Name, pkg.Version, pkg.Description, pkg.Repo); err != nil {
		return fmt.Errorf("failed to upsert package %s/%s: %w", pkg.Repo, pkg.Name, err)
	}
	return nil
}

func (s *SQLiteStorage) UpsertPackage(ctx context.Context, pkg *types.Package) error {
	return s.upsertPackageWithQuerier(ctx, s.querier(), pkg)
}

// replaceFilesWithQuerier is the internal implementation that uses a querier.
// The caller is responsible for the transaction boundary.
func (s *SQLiteStorage) replaceFilesWithQuerier(ctx context.Context, q querier, repo, name string, paths []string) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM package_files WHERE repo = ? AND name = ?`, repo, name); err != nil {
		return fmt.Errorf("failed to clear file list for %s/%s: %w", repo, name, err)
	}

	stmt, err := q.PrepareContext(ctx, `INSERT INTO package_files (repo, name, path) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare file insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, path := range paths {
		if _, err := stmt.ExecContext(ctx, repo, name, path); err != nil {
			return fmt.Errorf("failed to insert file %s for %s/%s: %w", path, repo, name, err)
		}
	}

	if _, err := q.ExecContext(ctx, `UPDATE packages SET files_indexed = 1 WHERE repo = ? AND name = ?`, repo, name); err != nil {
		return fmt.Errorf("failed to mark files indexed for %s/%s: %w", repo, name, err)
	}
	return nil
}

// ReplaceFiles swaps the stored file list of a package for paths inside
// a single transaction. Either the whole new list lands and the package
// is marked indexed, or the previous state survives untouched.
func (s *SQLiteStorage) ReplaceFiles(ctx context.Context, repo, name string, paths []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := s.replaceFilesWithQuerier(ctx, tx, repo, name, paths); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// cachedIdentifiersWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) cachedIdentifiersWithQuerier(ctx context.Context, q querier, repo string) (map[string]struct{}, error) {
	query := `SELECT name || '-' || version FROM packages WHERE repo = ? AND files_indexed = 1`
	rows, err := q.QueryContext(ctx, query, repo)
	if err != nil {
		return nil, fmt.Errorf("failed to load cached identifiers for %s: %w", repo, err)
	}
	defer func() { _ = rows.Close() }()

	cached := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		cached[id] = struct{}{}
	}
	return cached, rows.Err()
}

// CachedIdentifiers returns the "<name>-<version>" identifiers of every
// fully indexed package in repo. Packages whose file pass never finished
// are absent, so an interrupted update re-processes them next run.
func (s *SQLiteStorage) CachedIdentifiers(ctx context.Context, repo string) (map[string]struct{}, error) {
	return s.cachedIdentifiersWithQuerier(ctx, s.querier(), repo)
}

// Single-package queries

// packageExistsWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) packageExistsWithQuerier(ctx context.Context, q querier, name string) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM packages WHERE name = ? LIMIT 1`, name).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *SQLiteStorage) PackageExists(ctx context.Context, name string) (bool, error) {
	return s.packageExistsWithQuerier(ctx, s.querier(), name)
}

// resolvePackageWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) resolvePackageWithQuerier(ctx context.Context, q querier, name string) (*types.Package, error) {
	query := `
		SELECT name, version, description, repo
		FROM packages
		WHERE name = ? AND repo = (
			SELECT repo FROM packages WHERE name = ?
			ORDER BY ` + s.priority.orderExpr() + `
			LIMIT 1
		)
	`
	var pkg types.Package
	err := q.QueryRowContext(ctx, query, name, name).Scan(
		&pkg.Name, &pkg.Version, &pkg.Description, &pkg.Repo,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &pkg, nil
}

// ResolvePackage returns the descriptor of name from the highest-priority
// repository holding it.
func (s *SQLiteStorage) ResolvePackage(ctx context.Context, name string) (*types.Package, error) {
	return s.resolvePackageWithQuerier(ctx, s.querier(), name)
}

// packageFilesWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) packageFilesWithQuerier(ctx context.Context, q querier, name string, includeDirs bool) ([]string, error) {
	query := `
		SELECT '/' || path
		FROM package_files
		WHERE name = ? AND repo = (
			SELECT repo FROM packages WHERE name = ?
			ORDER BY ` + s.priority.orderExpr() + `
			LIMIT 1
		)`
	if !includeDirs {
		// Directory entries carry a trailing separator in the archive.
		query += ` AND path NOT LIKE '%/'`
	}
	query += ` ORDER BY path`

	rows, err := q.QueryContext(ctx, query, name, name)
	if err != nil {
		return nil, fmt.Errorf("failed to query files for %s: %w", name, err)
	}
	defer func() { _ = rows.Close() }()

	paths := make([]string, 0)
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Distinguish an unknown package from a known one with no files.
	if len(paths) == 0 {
		exists, err := s.packageExistsWithQuerier(ctx, q, name)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, ErrNotFound
		}
	}
	return paths, nil
}

// PackageFiles returns the absolute paths owned by name in its
// highest-priority repository. Directory entries are filtered out unless
// includeDirs is set.
func (s *SQLiteStorage) PackageFiles(ctx context.Context, name string, includeDirs bool) ([]string, error) {
	return s.packageFilesWithQuerier(ctx, s.querier(), name, includeDirs)
}

// Path ownership

// findByPathWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) findByPathWithQuerier(ctx context.Context, q querier, path string, exact bool) ([]types.FileMatch, error) {
	match := `'/' || f.path LIKE ?`
	arg := "%" + path
	if exact {
		match = `'/' || f.path = ?`
		arg = path
	}
	query := `
		SELECT d.name, d.version, d.description, d.repo, '/' || f.path
		FROM package_files f
		JOIN packages d ON f.repo = d.repo AND f.name = d.name
		WHERE ` + match + ` AND d.repo = (
			SELECT repo FROM packages WHERE name = d.name
			ORDER BY ` + s.priority.orderExpr() + `
			LIMIT 1
		)
		ORDER BY d.name, f.path
	`
	rows, err := q.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to query path owners: %w", err)
	}
	defer func() { _ = rows.Close() }()

	matches := make([]types.FileMatch, 0)
	for rows.Next() {
		var m types.FileMatch
		err := rows.Scan(
			&m.Package.Name, &m.Package.Version, &m.Package.Description,
			&m.Package.Repo, &m.Path,
		)
		if err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// FindByPath returns the packages owning path. The path must already be
// normalized to exactly one leading separator; exact compares the whole
// absolute path, otherwise any path with that suffix matches.
func (s *SQLiteStorage) FindByPath(ctx context.Context, path string, exact bool) ([]types.FileMatch, error) {
	return s.findByPathWithQuerier(ctx, s.querier(), path, exact)
}

// Search support

// distinctNamesWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) distinctNamesWithQuerier(ctx context.Context, q querier) ([]string, error) {
	rows, err := q.QueryContext(ctx, `SELECT DISTINCT LOWER(name) FROM packages`)
	if err != nil {
		return nil, fmt.Errorf("failed to query package names: %w", err)
	}
	defer func() { _ = rows.Close() }()

	names := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// DistinctNames returns every distinct lowercased package name. The
// searcher expands query tokens against this dictionary.
func (s *SQLiteStorage) DistinctNames(ctx context.Context) ([]string, error) {
	return s.distinctNamesWithQuerier(ctx, s.querier())
}

// searchCandidatesWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) searchCandidatesWithQuerier(ctx context.Context, q querier, terms []string) ([]types.Package, error) {
	if len(terms) == 0 {
		return []types.Package{}, nil
	}

	conds := make([]string, 0, len(terms))
	args := make([]interface{}, 0, len(terms)*2)
	for _, term := range terms {
		conds = append(conds, `(LOWER(name) LIKE ? OR LOWER(description) LIKE ?)`)
		pattern := "%" + term + "%"
		args = append(args, pattern, pattern)
	}

	// The CTE restricts duplicates to the highest-priority repository
	// before scoring ever sees them.
	query := `
		WITH matched AS (
			SELECT name, version, description, repo
			FROM packages
			WHERE ` + strings.Join(conds, " OR ") + `
		)
		SELECT name, version, description, repo
		FROM matched m
		WHERE repo = (
			SELECT repo FROM matched WHERE name = m.name
			ORDER BY ` + s.priority.orderExpr() + `
			LIMIT 1
		)
	`
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query search candidates: %w", err)
	}
	defer func() { _ = rows.Close() }()

	candidates := make([]types.Package, 0)
	for rows.Next() {
		var pkg types.Package
		if err := rows.Scan(&pkg.Name, &pkg.Version, &pkg.Description, &pkg.Repo); err != nil {
			return nil, err
		}
		candidates = append(candidates, pkg)
	}
	return candidates, rows.Err()
}

// SearchCandidates returns the packages whose lowercased name or
// description contains any of terms as a substring, one repository per
// name. Terms must already be lowercased.
func (s *SQLiteStorage) SearchCandidates(ctx context.Context, terms []string) ([]types.Package, error) {
	return s.searchCandidatesWithQuerier(ctx, s.querier(), terms)
}

// Status operations

func (s *SQLiteStorage) Stats(ctx context.Context) (*IndexStats, error) {
	stats := &IndexStats{}

	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM packages").Scan(&stats.Packages)
	if err != nil {
		return nil, err
	}

	err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM packages WHERE files_indexed = 1").Scan(&stats.FilesIndexed)
	if err != nil {
		return nil, err
	}

	err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM package_files").Scan(&stats.FileRows)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, "SELECT repo, COUNT(*) FROM packages GROUP BY repo ORDER BY repo")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var rs RepoStats
		if err := rows.Scan(&rs.Repo, &rs.Packages); err != nil {
			return nil, err
		}
		stats.Repositories = append(stats.Repositories, rs)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Calculate database size
	var pageCount, pageSize int
	err = s.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount)
	if err == nil {
		_ = s.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize)
		stats.SizeMB = float64(pageCount*pageSize) / (1024 * 1024)
	}

	var version string
	err = s.db.QueryRowContext(ctx, "SELECT version FROM schema_version ORDER BY applied_at DESC LIMIT 1").Scan(&version)
	if err == nil {
		stats.SchemaVersion = version
	}

	return stats, nil
}

// Transaction implementations

func (t *sqliteTx) UpsertPackage(ctx context.Context, pkg *types.Package) error {
	return t.storage.upsertPackageWithQuerier(ctx, t.querier(), pkg)
}

func (t *sqliteTx) ReplaceFiles(ctx context.Context, repo, name string, paths []string) error {
	// Already inside a transaction; run against it directly.
	return t.storage.replaceFilesWithQuerier(ctx, t.querier(), repo, name, paths)
}

func (t *sqliteTx) CachedIdentifiers(ctx context.Context, repo string) (map[string]struct{}, error) {
	return t.storage.cachedIdentifiersWithQuerier(ctx, t.querier(), repo)
}

func (t *sqliteTx) PackageExists(ctx context.Context, name string) (bool, error) {
	return t.storage.packageExistsWithQuerier(ctx, t.querier(), name)
}

func (t *sqliteTx) ResolvePackage(ctx context.Context, name string) (*types.Package, error) {
	return t.storage.resolvePackageWithQuerier(ctx, t.querier(), name)
}

func (t *sqliteTx) PackageFiles(ctx context.Context, name string, includeDirs bool) ([]string, error) {
	return t.storage.packageFilesWithQuerier(ctx, t.querier(), name, includeDirs)
}

func (t *sqliteTx) FindByPath(ctx context.Context, path string, exact bool) ([]types.FileMatch, error) {
	return t.storage.findByPathWithQuerier(ctx, t.querier(), path, exact)
}

func (t *sqliteTx) DistinctNames(ctx context.Context) ([]string, error) {
	return t.storage.distinctNamesWithQuerier(ctx, t.querier())
}

func (t *sqliteTx) SearchCandidates(ctx context.Context, terms []string) ([]types.Package, error) {
	return t.storage.searchCandidatesWithQuerier(ctx, t.querier(), terms)
}

func (t *sqliteTx) Stats(ctx context.Context) (*IndexStats, error) {
	return t.storage.Stats(ctx)
}

func (t *sqliteTx) Close() error {
	// Transactions don't close the underlying connection
	return nil
}

func (t *sqliteTx) BeginTx(ctx context.Context) (Tx, error) {
	// SQLite does not support true nested transactions
	return nil, errors.New("nested transactions not supported")
}
