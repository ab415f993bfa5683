package archive

import (
	"archive/tar"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Entry kinds found in repository sync archives.
const (
	KindDesc  = "desc"
	KindFiles = "files"
)

var (
	// ErrOpen indicates the archive file could not be opened or is not a
	// valid gzip stream.
	ErrOpen = errors.New("cannot open archive")

	// ErrCorrupt indicates the archive failed to decode mid-stream or an
	// entry does not follow the <name>-<version>/<kind> layout.
	ErrCorrupt = errors.New("corrupt archive")
)

// Entry is one regular-file member of a sync archive. It reads the
// member body; the body is only valid until the next call to Next.
type Entry struct {
	// Identifier is the "<name>-<version>" directory component.
	Identifier string

	// Kind is the member basename, normally "desc" or "files".
	Kind string

	r io.Reader
}

func (e *Entry) Read(p []byte) (int, error) {
	n, err := e.r.Read(p)
	if err != nil && err != io.EOF {
		err = fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return n, err
}

// Reader streams the regular-file entries of a gzip-compressed tar
// archive in order. Directory and other non-file members are skipped.
type Reader struct {
	f  *os.File
	gz *gzip.Reader
	tr *tar.Reader
}

// Open opens the sync archive at path for streaming.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrOpen, path, err)
	}
	gz, err := gzip.NewReader(f)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%w: %s: %v", ErrOpen, path, err)
	}
	return &Reader{f: f, gz: gz, tr: tar.NewReader(gz)}, nil
}

// Next advances to the next regular-file entry. It returns io.EOF when
// the archive is exhausted.
func (r *Reader) Next() (*Entry, error) {
	for {
		hdr, err := r.tr.Next()
		if err == io.EOF {
			return nil, io.EOF
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		identifier, kind, ok := splitEntryPath(hdr.Name)
		if !ok {
			return nil, fmt.Errorf("%w: unexpected entry path %q", ErrCorrupt, hdr.Name)
		}
		return &Entry{Identifier: identifier, Kind: kind, r: r.tr}, nil
	}
}

// Close releases the underlying file.
func (r *Reader) Close() error {
	gzErr := r.gz.Close()
	fErr := r.f.Close()
	if gzErr != nil {
		return gzErr
	}
	return fErr
}

// splitEntryPath splits "<identifier>/<kind>" member names. Regular
// files always sit one level below their package directory.
func splitEntryPath(name string) (identifier, kind string, ok bool) {
	name = strings.TrimPrefix(name, "./")
	name = strings.Trim(name, "/")
	i := strings.IndexByte(name, '/')
	if i <= 0 || i == len(name)-1 {
		return "", "", false
	}
	return name[:i], name[i+1:], true
}

// CountEntries returns the number of regular-file entries in the
// archive at path. The updater makes two passes per archive, so
// progress totals are twice this count.
func CountEntries(path string) (int, error) {
	r, err := Open(path)
	if err != nil {
		return 0, err
	}
	defer func() { _ = r.Close() }()

	n := 0
	for {
		_, err := r.Next()
		if err == io.EOF {
			return n, nil
		}
		if err != nil {
			return 0, err
		}
		n++
	}
}
