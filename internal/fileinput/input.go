// Package fileinput loads a compiler's source file into a single buffer,
// bounded by a size limit, and names lines within it for diagnostics.
package fileinput

import (
	"fmt"
	"io"
	"os"
)

// Location names a line within a loaded source file, used to format
// "<line>: <message>" diagnostics.
type Location struct {
	Name string
	Line int
}

func (loc Location) String() string { return fmt.Sprintf("%v:%v", loc.Name, loc.Line) }

// TooLargeError indicates a source file exceeded the configured Limit.
type TooLargeError struct {
	Name  string
	Limit int64
}

func (e TooLargeError) Error() string {
	return fmt.Sprintf("%v exceeds size limit of %v bytes", e.Name, e.Limit)
}

// Load reads the named file into a single buffer, rejecting files larger
// than limit bytes (the reference bounds this on the order of its pool
// size, e.g. 256KiB). A limit of 0 means unbounded.
func Load(name string, limit int64) ([]byte, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if limit > 0 {
		if fi, err := f.Stat(); err == nil && fi.Size() > limit {
			return nil, TooLargeError{name, limit}
		}
	}

	r := io.Reader(f)
	if limit > 0 {
		r = io.LimitReader(f, limit+1)
	}
	buf, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if limit > 0 && int64(len(buf)) > limit {
		return nil, TooLargeError{name, limit}
	}
	return buf, nil
}
