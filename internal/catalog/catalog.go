package catalog

import (
	"context"
	"time"
)

// HardLinkAttribute is the metadata attribute that tags hard-link group members.
const HardLinkAttribute = "irods::hard_link"

// AVU is a metadata triple attached to a data object.
type AVU struct {
	Attribute string `json:"attribute" yaml:"attribute"`
	Value     string `json:"value" yaml:"value"`
	Unit      string `json:"unit,omitempty" yaml:"unit,omitempty"`
}

// DataObject is one catalog record.
type DataObject struct {
	ID           int64
	Path         LogicalPath
	PhysicalPath string
	ResourceID   string
	Size         int64
	CreatedAt    time.Time
	ModifiedAt   time.Time
}

// Querier runs catalog queries.
type Querier interface {
	// Submit runs q and returns every matching row. An empty result is not an error.
	Submit(ctx context.Context, q *Query) ([]Row, error)
}

// Mutator is the set of catalog mutation primitives the hard-link engine consumes.
//
// Every primitive reports failure as an error carrying a Status (see StatusOf).
type Mutator interface {
	// RegisterPhysicalPath creates a record for p pointing at an existing
	// payload. No bytes are copied or moved.
	RegisterPhysicalPath(ctx context.Context, sess *Session, p LogicalPath, physicalPath string) error

	// SetPhysicalPath rewrites the recorded physical path of p.
	// Requires an elevated session.
	SetPhysicalPath(ctx context.Context, sess *Session, p LogicalPath, physicalPath string) error

	// ForceUnregister removes the record of p and its metadata, leaving the
	// payload untouched. Requires an elevated session.
	ForceUnregister(ctx context.Context, sess *Session, p LogicalPath) error

	// SetMetadata replaces any AVUs of p having avu.Attribute with avu.
	SetMetadata(ctx context.Context, sess *Session, p LogicalPath, avu AVU) error
}

// Catalog is a Querier and a Mutator.
type Catalog interface {
	Querier
	Mutator
}
