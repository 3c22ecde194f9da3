package hardlink

import (
	"errors"
	"fmt"

	"github.com/Mschirtzinger/hardlinks/internal/catalog"
)

var (
	// ErrNotYetSupported is returned by operations that are recognized but
	// have no implementation.
	ErrNotYetSupported = errors.New("operation not yet supported")

	// ErrSourceNotFound is returned when the source of a new link has no
	// catalog record.
	ErrSourceNotFound = errors.New("source logical path not found")
)

// CatalogError is a failed catalog primitive seen from the engine.
type CatalogError struct {
	Op     string
	Path   catalog.LogicalPath
	Status catalog.Status
	Err    error
}

func (e *CatalogError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *CatalogError) Unwrap() error {
	return e.Err
}

// CatalogStatus exposes the underlying status to catalog.StatusOf.
func (e *CatalogError) CatalogStatus() catalog.Status {
	return e.Status
}

func catalogErr(op string, p catalog.LogicalPath, err error) error {
	if err == nil {
		return nil
	}
	var ce *CatalogError
	if errors.As(err, &ce) {
		return err
	}
	return &CatalogError{Op: op, Path: p, Status: catalog.StatusOf(err), Err: err}
}
