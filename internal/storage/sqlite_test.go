package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neoarchlinux/pkgdex/pkg/types"
)

func setupTestDB(t *testing.T) *SQLiteStorage {
	// Use in-memory database for testing
	storage, err := Open(":memory:", Options{Repositories: []string{"core", "extra"}})
	require.NoError(t, err)
	require.NotNil(t, storage)
	return storage
}

func mustUpsert(t *testing.T, s *SQLiteStorage, name, version, desc, repo string) {
	t.Helper()
	err := s.UpsertPackage(context.Background(), &types.Package{
		Name:        name,
		Version:     version,
		Description: desc,
		Repo:        repo,
	})
	require.NoError(t, err)
}

func TestOpen(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()

	assert.NotNil(t, storage)
	assert.NotNil(t, storage.db)
}

func TestClose(t *testing.T) {
	storage := setupTestDB(t)
	err := storage.Close()
	assert.NoError(t, err)
}

func TestOpenExisting_Missing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pkgdex.db")
	_, err := OpenExisting(path, Options{})
	assert.ErrorIs(t, err, types.ErrCacheMissing)
}

func TestOpenExisting_AfterCreate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pkgdex.db")

	storage, err := Open(path, Options{})
	require.NoError(t, err)
	require.NoError(t, storage.Close())

	reopened, err := OpenExisting(path, Options{})
	require.NoError(t, err)
	defer reopened.Close()

	stats, err := reopened.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Packages)
	assert.Equal(t, CurrentSchemaVersion, stats.SchemaVersion)
}

func TestUpsertPackage(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()

	ctx := context.Background()
	mustUpsert(t, storage, "gcc", "13.2.1-3", "The GNU Compiler Collection", "core")

	pkg, err := storage.ResolvePackage(ctx, "gcc")
	require.NoError(t, err)
	assert.Equal(t, "13.2.1-3", pkg.Version)
	assert.Equal(t, "core", pkg.Repo)

	// Upserting a new version replaces the row
	mustUpsert(t, storage, "gcc", "13.2.1-4", "The GNU Compiler Collection", "core")

	pkg, err = storage.ResolvePackage(ctx, "gcc")
	require.NoError(t, err)
	assert.Equal(t, "13.2.1-4", pkg.Version)
}

func TestUpsertPackage_ResetsIndexedFlag(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()

	ctx := context.Background()
	mustUpsert(t, storage, "gcc", "13.2.1-3", "compiler", "core")
	require.NoError(t, storage.ReplaceFiles(ctx, "core", "gcc", []string{"usr/bin/gcc"}))

	cached, err := storage.CachedIdentifiers(ctx, "core")
	require.NoError(t, err)
	assert.Contains(t, cached, "gcc-13.2.1-3")

	// A fresh descriptor pass over the same package clears completeness
	mustUpsert(t, storage, "gcc", "13.2.1-3", "compiler", "core")

	cached, err = storage.CachedIdentifiers(ctx, "core")
	require.NoError(t, err)
	assert.Empty(t, cached)
}

func TestUpsertPackage_Invalid(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()

	ctx := context.Background()
	err := storage.UpsertPackage(ctx, &types.Package{Version: "1.0-1", Repo: "core"})
	assert.ErrorIs(t, err, types.ErrEmptyName)

	err = storage.UpsertPackage(ctx, &types.Package{Name: "gcc", Repo: "core"})
	assert.ErrorIs(t, err, types.ErrEmptyVersion)
}

func TestReplaceFiles(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()

	ctx := context.Background()
	mustUpsert(t, storage, "gcc", "13.2.1-3", "compiler", "core")

	err := storage.ReplaceFiles(ctx, "core", "gcc", []string{
		"usr/bin/gcc",
		"usr/bin/cc",
		"usr/share/man/man1/gcc.1.gz",
	})
	require.NoError(t, err)

	paths, err := storage.PackageFiles(ctx, "gcc", false)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"/usr/bin/cc",
		"/usr/bin/gcc",
		"/usr/share/man/man1/gcc.1.gz",
	}, paths)

	// Replacing swaps the whole list
	err = storage.ReplaceFiles(ctx, "core", "gcc", []string{"usr/bin/gcc"})
	require.NoError(t, err)

	paths, err = storage.PackageFiles(ctx, "gcc", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"/usr/bin/gcc"}, paths)
}

func TestReplaceFiles_Atomic(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()

	ctx := context.Background()
	mustUpsert(t, storage, "gcc", "13.2.1-3", "compiler", "core")
	require.NoError(t, storage.ReplaceFiles(ctx, "core", "gcc", []string{"usr/bin/gcc", "usr/bin/cc"}))

	// Descriptor pass of a new run resets the flag, then the file pass fails
	// mid-batch on the duplicate path.
	mustUpsert(t, storage, "gcc", "13.2.1-3", "compiler", "core")
	err := storage.ReplaceFiles(ctx, "core", "gcc", []string{"usr/bin/gcc", "usr/bin/gcc"})
	require.Error(t, err)

	// Previous complete list survives the rollback
	paths, err := storage.PackageFiles(ctx, "gcc", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"/usr/bin/cc", "/usr/bin/gcc"}, paths)

	// And the package stays unmarked, so the next run re-processes it
	cached, err := storage.CachedIdentifiers(ctx, "core")
	require.NoError(t, err)
	assert.Empty(t, cached)
}

func TestCachedIdentifiers_PerRepo(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()

	ctx := context.Background()
	mustUpsert(t, storage, "gcc", "13.2.1-3", "compiler", "core")
	mustUpsert(t, storage, "firefox", "122.0-1", "browser", "extra")
	require.NoError(t, storage.ReplaceFiles(ctx, "core", "gcc", []string{"usr/bin/gcc"}))
	require.NoError(t, storage.ReplaceFiles(ctx, "extra", "firefox", []string{"usr/bin/firefox"}))

	core, err := storage.CachedIdentifiers(ctx, "core")
	require.NoError(t, err)
	assert.Contains(t, core, "gcc-13.2.1-3")
	assert.NotContains(t, core, "firefox-122.0-1")

	extra, err := storage.CachedIdentifiers(ctx, "extra")
	require.NoError(t, err)
	assert.Contains(t, extra, "firefox-122.0-1")
}

func TestPackageExists(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()

	ctx := context.Background()
	mustUpsert(t, storage, "gcc", "13.2.1-3", "compiler", "core")

	exists, err := storage.PackageExists(ctx, "gcc")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = storage.PackageExists(ctx, "nonexistent")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestResolvePackage_Priority(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()

	ctx := context.Background()
	mustUpsert(t, storage, "vim", "9.1-1", "editor", "extra")
	mustUpsert(t, storage, "vim", "9.0-2", "editor", "core")

	pkg, err := storage.ResolvePackage(ctx, "vim")
	require.NoError(t, err)
	assert.Equal(t, "core", pkg.Repo)
	assert.Equal(t, "9.0-2", pkg.Version)
}

func TestResolvePackage_UnlistedReposRankLast(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()

	ctx := context.Background()
	mustUpsert(t, storage, "vim", "9.1-1", "editor", "zzz-custom")
	mustUpsert(t, storage, "vim", "9.0-2", "editor", "extra")

	pkg, err := storage.ResolvePackage(ctx, "vim")
	require.NoError(t, err)
	assert.Equal(t, "extra", pkg.Repo)

	// Between two unlisted repositories the name decides, so resolution
	// stays stable across runs.
	mustUpsert(t, storage, "tmux", "3.4-1", "multiplexer", "zzz-custom")
	mustUpsert(t, storage, "tmux", "3.4-1", "multiplexer", "aaa-custom")

	pkg, err = storage.ResolvePackage(ctx, "tmux")
	require.NoError(t, err)
	assert.Equal(t, "aaa-custom", pkg.Repo)
}

func TestResolvePackage_NotFound(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()

	_, err := storage.ResolvePackage(context.Background(), "nonexistent")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPackageFiles_Directories(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()

	ctx := context.Background()
	mustUpsert(t, storage, "gcc", "13.2.1-3", "compiler", "core")
	require.NoError(t, storage.ReplaceFiles(ctx, "core", "gcc", []string{
		"usr/",
		"usr/bin/",
		"usr/bin/gcc",
	}))

	paths, err := storage.PackageFiles(ctx, "gcc", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"/usr/bin/gcc"}, paths)

	paths, err = storage.PackageFiles(ctx, "gcc", true)
	require.NoError(t, err)
	assert.Equal(t, []string{"/usr/", "/usr/bin/", "/usr/bin/gcc"}, paths)
}

func TestPackageFiles_PriorityRepo(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()

	ctx := context.Background()
	mustUpsert(t, storage, "vim", "9.0-2", "editor", "core")
	mustUpsert(t, storage, "vim", "9.1-1", "editor", "extra")
	require.NoError(t, storage.ReplaceFiles(ctx, "core", "vim", []string{"usr/bin/vim"}))
	require.NoError(t, storage.ReplaceFiles(ctx, "extra", "vim", []string{"usr/bin/vim-new"}))

	paths, err := storage.PackageFiles(ctx, "vim", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"/usr/bin/vim"}, paths)
}

func TestPackageFiles_NotFound(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()

	ctx := context.Background()
	_, err := storage.PackageFiles(ctx, "nonexistent", false)
	assert.ErrorIs(t, err, ErrNotFound)

	// A known package with no file rows is not an error
	mustUpsert(t, storage, "meta", "1.0-1", "metapackage", "core")
	paths, err := storage.PackageFiles(ctx, "meta", false)
	require.NoError(t, err)
	assert.Empty(t, paths)
}

func TestFindByPath_Exact(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()

	ctx := context.Background()
	mustUpsert(t, storage, "gcc", "13.2.1-3", "compiler", "core")
	require.NoError(t, storage.ReplaceFiles(ctx, "core", "gcc", []string{"usr/bin/gcc"}))

	matches, err := storage.FindByPath(ctx, "/usr/bin/gcc", true)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "gcc", matches[0].Package.Name)
	assert.Equal(t, "/usr/bin/gcc", matches[0].Path)

	matches, err = storage.FindByPath(ctx, "/bin/gcc", true)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestFindByPath_Suffix(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()

	ctx := context.Background()
	mustUpsert(t, storage, "gcc", "13.2.1-3", "compiler", "core")
	mustUpsert(t, storage, "fakeroot", "1.33-1", "fake root env", "extra")
	require.NoError(t, storage.ReplaceFiles(ctx, "core", "gcc", []string{"usr/bin/gcc", "usr/sbin/gcc-helper"}))
	require.NoError(t, storage.ReplaceFiles(ctx, "extra", "fakeroot", []string{"usr/bin/gcc"}))

	matches, err := storage.FindByPath(ctx, "/bin/gcc", false)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	// Ordered by package name, then path
	assert.Equal(t, "fakeroot", matches[0].Package.Name)
	assert.Equal(t, "gcc", matches[1].Package.Name)
	assert.Equal(t, "/usr/bin/gcc", matches[1].Path)
}

func TestFindByPath_SuffixBoundary(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()

	ctx := context.Background()
	mustUpsert(t, storage, "sgcc", "1.0-1", "other", "core")
	require.NoError(t, storage.ReplaceFiles(ctx, "core", "sgcc", []string{"sbin/gcc"}))

	// "/sbin/gcc" does not end in "/bin/gcc"
	matches, err := storage.FindByPath(ctx, "/bin/gcc", false)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestFindByPath_PriorityRepo(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()

	ctx := context.Background()
	mustUpsert(t, storage, "vim", "9.0-2", "editor", "core")
	mustUpsert(t, storage, "vim", "9.1-1", "editor", "extra")
	require.NoError(t, storage.ReplaceFiles(ctx, "core", "vim", []string{"usr/bin/vim"}))
	require.NoError(t, storage.ReplaceFiles(ctx, "extra", "vim", []string{"usr/bin/vim"}))

	matches, err := storage.FindByPath(ctx, "/usr/bin/vim", true)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "core", matches[0].Package.Repo)
}

func TestSearchCandidates(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()

	ctx := context.Background()
	mustUpsert(t, storage, "firefox", "122.0-1", "Standalone web browser", "extra")
	mustUpsert(t, storage, "chromium", "121.0-1", "Web browser", "extra")
	mustUpsert(t, storage, "gcc", "13.2.1-3", "The GNU Compiler Collection", "core")

	candidates, err := storage.SearchCandidates(ctx, []string{"browser"})
	require.NoError(t, err)
	assert.Len(t, candidates, 2)

	candidates, err = storage.SearchCandidates(ctx, []string{"firefox"})
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "firefox", candidates[0].Name)

	candidates, err = storage.SearchCandidates(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestSearchCandidates_CollapsesRepos(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()

	ctx := context.Background()
	mustUpsert(t, storage, "vim", "9.1-1", "Vi improved", "extra")
	mustUpsert(t, storage, "vim", "9.0-2", "Vi improved", "core")

	candidates, err := storage.SearchCandidates(ctx, []string{"vim"})
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "core", candidates[0].Repo)
}

func TestDistinctNames(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()

	ctx := context.Background()
	mustUpsert(t, storage, "Vim", "9.0-2", "editor", "core")
	mustUpsert(t, storage, "vim", "9.1-1", "editor", "extra")
	mustUpsert(t, storage, "gcc", "13.2.1-3", "compiler", "core")

	names, err := storage.DistinctNames(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"vim", "gcc"}, names)
}

func TestStats(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()

	ctx := context.Background()
	mustUpsert(t, storage, "gcc", "13.2.1-3", "compiler", "core")
	mustUpsert(t, storage, "firefox", "122.0-1", "browser", "extra")
	mustUpsert(t, storage, "vim", "9.1-1", "editor", "extra")
	require.NoError(t, storage.ReplaceFiles(ctx, "core", "gcc", []string{"usr/bin/gcc", "usr/bin/cc"}))

	stats, err := storage.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Packages)
	assert.Equal(t, 1, stats.FilesIndexed)
	assert.Equal(t, int64(2), stats.FileRows)
	assert.Equal(t, CurrentSchemaVersion, stats.SchemaVersion)
	require.Len(t, stats.Repositories, 2)
	assert.Equal(t, "core", stats.Repositories[0].Repo)
	assert.Equal(t, 1, stats.Repositories[0].Packages)
	assert.Equal(t, "extra", stats.Repositories[1].Repo)
	assert.Equal(t, 2, stats.Repositories[1].Packages)
}

func TestBeginTx_Commit(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()

	ctx := context.Background()
	tx, err := storage.BeginTx(ctx)
	require.NoError(t, err)

	err = tx.UpsertPackage(ctx, &types.Package{Name: "gcc", Version: "13.2.1-3", Repo: "core"})
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	exists, err := storage.PackageExists(ctx, "gcc")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestBeginTx_Rollback(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()

	ctx := context.Background()
	tx, err := storage.BeginTx(ctx)
	require.NoError(t, err)

	err = tx.UpsertPackage(ctx, &types.Package{Name: "gcc", Version: "13.2.1-3", Repo: "core"})
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())

	exists, err := storage.PackageExists(ctx, "gcc")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestBeginTx_NestedFails(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()

	ctx := context.Background()
	tx, err := storage.BeginTx(ctx)
	require.NoError(t, err)
	defer func() { _ = tx.Rollback() }()

	_, err = tx.BeginTx(ctx)
	assert.Error(t, err)
}
