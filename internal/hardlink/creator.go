package hardlink

import (
	"context"
	"fmt"

	"github.com/Mschirtzinger/hardlinks/internal/catalog"
	"github.com/Mschirtzinger/hardlinks/internal/metrics"
	"github.com/rs/zerolog"
)

// Creator makes new hard links.
type Creator struct {
	resolver  *Resolver
	allocator *Allocator
	mut       catalog.Mutator
	logger    zerolog.Logger
	metrics   *metrics.Metrics
}

// CreateLink registers link over source's payload and puts both in one group.
//
// Registration of link is best effort: a failure is logged and tagging
// still proceeds. A tagging failure returns a *CatalogError; nothing done
// before it is rolled back.
func (c *Creator) CreateLink(ctx context.Context, sess *catalog.Session, source, link catalog.LogicalPath) error {
	physicalPath, ok, err := c.resolver.PhysicalPathOf(ctx, source)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrSourceNotFound, source)
	}

	if err := c.mut.RegisterPhysicalPath(ctx, sess, link, physicalPath); err != nil {
		c.logger.Error().
			Err(err).
			Str("physical_path", physicalPath).
			Str("link_name", link.String()).
			Int("status", int(catalog.StatusOf(err))).
			Msg("Could not make hard-link")
	} else {
		c.logger.Trace().
			Str("logical_path", link.String()).
			Str("physical_path", physicalPath).
			Msg("Successfully registered data object")
	}

	group, tagged, err := c.resolver.Resolve(ctx, source)
	if err != nil {
		return err
	}
	fresh := !tagged
	if fresh {
		if group, err = c.allocator.Allocate(ctx); err != nil {
			return err
		}
	}

	resource, ok, err := c.resolver.ResourceOf(ctx, source)
	if err != nil {
		return err
	}
	if !ok {
		return &CatalogError{
			Op:     "look up resource",
			Path:   source,
			Status: catalog.StatusSysInternal,
			Err:    fmt.Errorf("could not get resource id for source logical path"),
		}
	}

	avu := catalog.AVU{Attribute: catalog.HardLinkAttribute, Value: string(group), Unit: resource}

	if err := c.mut.SetMetadata(ctx, sess, link, avu); err != nil {
		c.logTagFailure(link, err)
		return catalogErr("set hard-link metadata", link, err)
	}

	if fresh {
		if err := c.mut.SetMetadata(ctx, sess, source, avu); err != nil {
			c.logTagFailure(source, err)
			return catalogErr("set hard-link metadata", source, err)
		}
	}

	c.logger.Debug().
		Str("logical_path", source.String()).
		Str("link_name", link.String()).
		Str("group_id", string(group)).
		Bool("new_group", fresh).
		Msg("Created hard-link")
	c.metrics.LinkCreated()
	return nil
}

func (c *Creator) logTagFailure(p catalog.LogicalPath, err error) {
	c.logger.Error().
		Err(err).
		Str("logical_path", p.String()).
		Int("ec", int(catalog.StatusOf(err))).
		Msg("Could not set hard-link metadata")
}
