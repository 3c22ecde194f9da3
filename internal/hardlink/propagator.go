package hardlink

import (
	"context"
	"errors"
	"fmt"

	"github.com/Mschirtzinger/hardlinks/internal/catalog"
	"github.com/Mschirtzinger/hardlinks/internal/metrics"
	"github.com/rs/zerolog"
)

// ModreplHint tells operators how to repair members left behind.
const ModreplHint = "Use iadmin modrepl to update remaining data objects."

// PropagationFailure is one sibling whose physical path could not be updated.
type PropagationFailure struct {
	Path catalog.LogicalPath
	Err  error
}

// PropagationReport is the outcome of one propagation.
type PropagationReport struct {
	Destination  catalog.LogicalPath
	PhysicalPath string
	Updated      []catalog.LogicalPath
	Failed       []PropagationFailure
}

// Partial reports whether some siblings were left behind.
func (r *PropagationReport) Partial() bool {
	return r != nil && len(r.Failed) > 0
}

// Err joins the per-sibling failures, nil when there are none.
func (r *PropagationReport) Err() error {
	if !r.Partial() {
		return nil
	}
	errs := make([]error, 0, len(r.Failed))
	for _, f := range r.Failed {
		errs = append(errs, fmt.Errorf("%s: %w", f.Path, f.Err))
	}
	return errors.Join(errs...)
}

// Propagator pushes a member's physical path onto its siblings.
type Propagator struct {
	resolver *Resolver
	mut      catalog.Mutator
	logger   zerolog.Logger
	metrics  *metrics.Metrics
}

// Propagate copies destination's physical path onto every sibling.
//
// Each sibling update is independent: a failed update is recorded in the
// report and the loop goes on. Errors are returned only when the work
// cannot start (destination lookup or sibling resolution).
func (p *Propagator) Propagate(ctx context.Context, sess *catalog.Session, destination catalog.LogicalPath) (*PropagationReport, error) {
	physicalPath, ok, err := p.resolver.PhysicalPathOf(ctx, destination)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &CatalogError{
			Op:     "look up physical path",
			Path:   destination,
			Status: catalog.StatusNoRowsFound,
			Err:    fmt.Errorf("could not retrieve physical path for [%s]", destination),
		}
	}

	siblings, err := p.resolver.SiblingsOf(ctx, destination)
	if err != nil {
		return nil, err
	}

	report := &PropagationReport{Destination: destination, PhysicalPath: physicalPath}
	for _, sibling := range siblings {
		err := sess.Sudo(func() error {
			return p.mut.SetPhysicalPath(ctx, sess, sibling, physicalPath)
		})
		if err != nil {
			p.logger.Error().
				Err(err).
				Str("logical_path", destination.String()).
				Str("sibling", sibling.String()).
				Msgf("Could not update physical path of [%s] to [%s]. %s", sibling, physicalPath, ModreplHint)
			report.Failed = append(report.Failed, PropagationFailure{Path: sibling, Err: err})
			continue
		}

		p.logger.Trace().
			Str("sibling", sibling.String()).
			Str("physical_path", physicalPath).
			Msg("Updated physical path of sibling")
		report.Updated = append(report.Updated, sibling)
	}

	p.metrics.PropagationResult(len(report.Updated), len(report.Failed))
	return report, nil
}
