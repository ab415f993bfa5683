package parser

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

var (
	// ErrMissingName indicates a desc record without a %NAME% value.
	ErrMissingName = errors.New("desc record missing %NAME%")

	// ErrMissingVersion indicates a desc record without a %VERSION%
	// value. Incremental-update identifiers embed the version, so a
	// record without one cannot be cached soundly.
	ErrMissingVersion = errors.New("desc record missing %VERSION%")
)

// Descriptor holds the fields extracted from a desc record.
type Descriptor struct {
	Name        string
	Version     string
	Description string
}

// maxLineSize bounds a single record line. Description lines in real
// repositories stay far below this.
const maxLineSize = 1024 * 1024

// ParseDesc reads a desc record: %TAG% lines each followed by a single
// value line. Unknown tags and blank lines are ignored. NAME and
// VERSION are required; the description may be absent and defaults to
// empty. Malformed records return an error, they never panic.
func ParseDesc(r io.Reader) (*Descriptor, error) {
	var d Descriptor
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for sc.Scan() {
		switch sc.Text() {
		case "%NAME%":
			d.Name = nextValue(sc)
		case "%VERSION%":
			d.Version = nextValue(sc)
		case "%DESC%":
			d.Description = nextValue(sc)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading desc record: %w", err)
	}
	if d.Name == "" {
		return nil, ErrMissingName
	}
	if d.Version == "" {
		return nil, ErrMissingVersion
	}
	return &d, nil
}

// nextValue returns the line following a tag, or empty at end of input.
func nextValue(sc *bufio.Scanner) string {
	if sc.Scan() {
		return sc.Text()
	}
	return ""
}

// ParseFiles reads a files record. The first line is the %FILES% header
// and is skipped unconditionally; every following non-blank line not
// starting with % is a relative path. Order is preserved.
func ParseFiles(r io.Reader) ([]string, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var paths []string
	first := true
	for sc.Scan() {
		line := sc.Text()
		if first {
			first = false
			continue
		}
		if line == "" || strings.HasPrefix(line, "%") {
			continue
		}
		paths = append(paths, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading files record: %w", err)
	}
	return paths, nil
}
