package locator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/neoarchlinux/pkgdex/internal/logging"
	"github.com/neoarchlinux/pkgdex/internal/storage"
	"github.com/neoarchlinux/pkgdex/pkg/types"
)

// usrMergedDirs are top-level directories that are symlinks into /usr
// on merged-usr systems. File databases only carry the /usr spelling,
// so exact lookups through the symlink are rewritten.
var usrMergedDirs = []string{"bin", "lib", "lib64", "sbin"}

// Locator answers file-ownership queries and package metadata lookups
// against the index.
type Locator struct {
	storage storage.Storage
	logger  logging.Logger
}

// New creates a locator. A nil logger suppresses rewrite warnings.
func New(store storage.Storage, logger logging.Logger) *Locator {
	if logger == nil {
		logger = logging.Nop{}
	}
	return &Locator{
		storage: store,
		logger:  logger,
	}
}

// Describe returns the descriptor for name from the highest-priority
// repository that carries it.
func (l *Locator) Describe(ctx context.Context, name string) (*types.Package, error) {
	pkg, err := l.storage.ResolvePackage(ctx, name)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", types.ErrPackageNotFound, name)
		}
		return nil, err
	}
	return pkg, nil
}

// Files returns the absolute paths owned by name. Archives record
// directories with a trailing separator; those entries are excluded
// unless includeDirs is set.
func (l *Locator) Files(ctx context.Context, name string, includeDirs bool) ([]string, error) {
	paths, err := l.storage.PackageFiles(ctx, name, includeDirs)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", types.ErrPackageNotFound, name)
		}
		return nil, err
	}
	return paths, nil
}

// OwnersOf returns every (package, path) pair whose indexed path
// matches fragment, restricted to the priority-resolved repository per
// package name. With exact set the full path must equal the fragment;
// otherwise any path ending in the fragment matches.
//
// The fragment is normalized to exactly one leading separator before
// matching. Exact lookups under merged-usr symlink directories are
// rewritten to their /usr spelling, since that is the only form the
// file databases store.
func (l *Locator) OwnersOf(ctx context.Context, fragment string, exact bool) ([]types.FileMatch, error) {
	fragment = "/" + strings.TrimLeft(fragment, "/")

	if exact {
		for _, dir := range usrMergedDirs {
			if strings.HasPrefix(fragment, "/"+dir+"/") {
				fragment = "/usr" + fragment
				l.logger.Warn(ctx, "path is under a /usr symlink, looking up the target instead",
					"symlink", "/"+dir, "path", fragment)
				break
			}
		}
	}

	return l.storage.FindByPath(ctx, fragment, exact)
}
