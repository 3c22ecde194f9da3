package catalog

import (
	"fmt"
	"path"
	"strings"
)

// LogicalPath is an absolute catalog path: collection + data name.
// Example: /tempZone/home/alice/a.txt
type LogicalPath string

// ParsePath cleans p and validates that it names a data object.
func ParsePath(p string) (LogicalPath, error) {
	lp := LogicalPath(path.Clean(p))
	if err := lp.Validate(); err != nil {
		return "", err
	}
	return lp, nil
}

// MustParsePath is ParsePath for literals in tests and examples.
func MustParsePath(p string) LogicalPath {
	lp, err := ParsePath(p)
	if err != nil {
		panic(err)
	}
	return lp
}

// Validate checks that the path is absolute and has both a collection and a name.
func (p LogicalPath) Validate() error {
	s := string(p)
	if s == "" {
		return fmt.Errorf("logical path is required")
	}
	if !strings.HasPrefix(s, "/") {
		return fmt.Errorf("logical path must be absolute: %s", s)
	}
	if s == "/" || p.Name() == "" {
		return fmt.Errorf("logical path has no data name: %s", s)
	}
	return nil
}

// Collection returns the parent collection of the path.
func (p LogicalPath) Collection() string {
	return path.Dir(string(p))
}

// Name returns the data object name (last path element).
func (p LogicalPath) Name() string {
	return path.Base(string(p))
}

// Join builds a logical path from a collection and a data name.
func Join(collection, name string) LogicalPath {
	return LogicalPath(path.Join(collection, name))
}

func (p LogicalPath) String() string {
	return string(p)
}
