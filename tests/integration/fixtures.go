// Package integration exercises the full update and query pipeline over
// generated repository sync archives.
package integration

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// fixturePkg describes one synthetic package inside a generated sync
// archive.
type fixturePkg struct {
	Name    string
	Version string
	Desc    string
	Files   []string

	// RawDesc replaces the generated desc record verbatim; used to
	// produce malformed descriptors.
	RawDesc string

	// NoDesc drops the desc member entirely, leaving an orphaned files
	// record.
	NoDesc bool
}

// descRecord renders the desc member for p the way repo-add lays it out.
func descRecord(p fixturePkg) string {
	return fmt.Sprintf(
		"%%FILENAME%%\n%s-%s-x86_64.pkg.tar.zst\n\n%%NAME%%\n%s\n\n%%VERSION%%\n%s\n\n%%DESC%%\n%s\n",
		p.Name, p.Version, p.Name, p.Version, p.Desc)
}

// filesRecord renders the files member listing the given relative paths.
func filesRecord(paths []string) string {
	var b strings.Builder
	b.WriteString("%FILES%\n")
	for _, p := range paths {
		b.WriteString(p)
		b.WriteByte('\n')
	}
	return b.String()
}

// buildSyncArchive writes "<repo>.files" into dir and returns its path.
func buildSyncArchive(dir, repo string, pkgs []fixturePkg) (string, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	for _, p := range pkgs {
		id := p.Name + "-" + p.Version
		if err := tw.WriteHeader(&tar.Header{Name: id + "/", Typeflag: tar.TypeDir, Mode: 0o755}); err != nil {
			return "", err
		}
		if !p.NoDesc {
			desc := p.RawDesc
			if desc == "" {
				desc = descRecord(p)
			}
			if err := writeTarFile(tw, id+"/desc", desc); err != nil {
				return "", err
			}
		}
		if p.Files != nil {
			if err := writeTarFile(tw, id+"/files", filesRecord(p.Files)); err != nil {
				return "", err
			}
		}
	}

	if err := tw.Close(); err != nil {
		return "", err
	}
	if err := gz.Close(); err != nil {
		return "", err
	}

	path := filepath.Join(dir, repo+".files")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func writeTarFile(tw *tar.Writer, name, body string) error {
	hdr := &tar.Header{Name: name, Typeflag: tar.TypeReg, Mode: 0o644, Size: int64(len(body))}
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	_, err := tw.Write([]byte(body))
	return err
}

// writeCorruptArchive writes a "<repo>.files" that is not a valid gzip
// stream.
func writeCorruptArchive(dir, repo string) (string, error) {
	path := filepath.Join(dir, repo+".files")
	if err := os.WriteFile(path, []byte("this is not a gzip stream"), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// coreFixtures is a small core repository: a compiler, its neighbor one
// edit away, and a runtime library.
func coreFixtures() []fixturePkg {
	return []fixturePkg{
		{
			Name: "gcc", Version: "13.2.1-3",
			Desc:  "The GNU Compiler Collection - C and C++ frontends",
			Files: []string{"usr/", "usr/bin/", "usr/bin/gcc", "usr/bin/g++", "usr/lib/gcc/"},
		},
		{
			Name: "gcd", Version: "1.4-2",
			Desc:  "Greatest common divisor calculator",
			Files: []string{"usr/", "usr/bin/", "usr/bin/gcd"},
		},
		{
			Name: "glibc", Version: "2.39-4",
			Desc:  "GNU C Library",
			Files: []string{"usr/", "usr/lib/", "usr/lib/libc.so.6"},
		},
	}
}

// extraFixtures is a small extra repository with the two browsers the
// ranking tests rely on.
func extraFixtures() []fixturePkg {
	return []fixturePkg{
		{
			Name: "firefox", Version: "128.0-1",
			Desc:  "Fast, Private & Safe Web Browser",
			Files: []string{"usr/", "usr/bin/", "usr/bin/firefox", "usr/lib/firefox/"},
		},
		{
			Name: "chromium", Version: "126.0.6478.126-1",
			Desc:  "A web browser built for speed, simplicity, and security",
			Files: []string{"usr/", "usr/bin/", "usr/bin/chromium"},
		},
		{
			Name: "vim", Version: "9.1.0-1",
			Desc:  "Vi Improved, a highly configurable text editor",
			Files: []string{"usr/", "usr/bin/", "usr/bin/vim"},
		},
	}
}
