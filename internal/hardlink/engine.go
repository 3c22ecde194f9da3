package hardlink

import (
	"context"

	"github.com/Mschirtzinger/hardlinks/internal/catalog"
	"github.com/Mschirtzinger/hardlinks/internal/metrics"
	"github.com/rs/zerolog"
)

// Config wires an Engine.
type Config struct {
	// Catalog is queried and mutated by every component. Required.
	Catalog catalog.Catalog

	// Logger receives engine logs. Zero value discards them.
	Logger zerolog.Logger

	// Metrics is optional.
	Metrics *metrics.Metrics

	// NewID overrides the group id generator (tests).
	NewID func() string
}

// Engine bundles the hard-link components over one catalog.
type Engine struct {
	*Resolver

	allocator  *Allocator
	creator    *Creator
	propagator *Propagator
	guard      *Guard
}

// New builds an Engine.
func New(cfg Config) *Engine {
	resolver := NewResolver(cfg.Catalog)
	allocator := NewAllocator(cfg.Catalog, cfg.Logger, cfg.Metrics)
	if cfg.NewID != nil {
		allocator.newID = cfg.NewID
	}

	return &Engine{
		Resolver:  resolver,
		allocator: allocator,
		creator: &Creator{
			resolver:  resolver,
			allocator: allocator,
			mut:       cfg.Catalog,
			logger:    cfg.Logger,
			metrics:   cfg.Metrics,
		},
		propagator: &Propagator{
			resolver: resolver,
			mut:      cfg.Catalog,
			logger:   cfg.Logger,
			metrics:  cfg.Metrics,
		},
		guard: &Guard{
			resolver: resolver,
			mut:      cfg.Catalog,
			logger:   cfg.Logger,
			metrics:  cfg.Metrics,
		},
	}
}

// Allocate mints an unused group id.
func (e *Engine) Allocate(ctx context.Context) (GroupID, error) {
	return e.allocator.Allocate(ctx)
}

// CreateLink see Creator.CreateLink.
func (e *Engine) CreateLink(ctx context.Context, sess *catalog.Session, source, link catalog.LogicalPath) error {
	return e.creator.CreateLink(ctx, sess, source, link)
}

// Propagate see Propagator.Propagate.
func (e *Engine) Propagate(ctx context.Context, sess *catalog.Session, destination catalog.LogicalPath) (*PropagationReport, error) {
	return e.propagator.Propagate(ctx, sess, destination)
}

// Check see Guard.Check.
func (e *Engine) Check(ctx context.Context, sess *catalog.Session, p catalog.LogicalPath) (Verdict, error) {
	return e.guard.Check(ctx, sess, p)
}

// CountLinks is declared but not implemented.
func (e *Engine) CountLinks(ctx context.Context, g GroupID) (int, error) {
	return 0, ErrNotYetSupported
}

// ListDataObjects is declared but not implemented.
func (e *Engine) ListDataObjects(ctx context.Context, g GroupID) ([]catalog.LogicalPath, error) {
	return nil, ErrNotYetSupported
}
