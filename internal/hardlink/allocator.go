package hardlink

import (
	"context"

	"github.com/Mschirtzinger/hardlinks/internal/catalog"
	"github.com/Mschirtzinger/hardlinks/internal/metrics"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Allocator mints group ids that no existing group carries.
type Allocator struct {
	q       catalog.Querier
	newID   func() string
	logger  zerolog.Logger
	metrics *metrics.Metrics
}

// NewAllocator returns an allocator drawing random UUIDs.
func NewAllocator(q catalog.Querier, logger zerolog.Logger, m *metrics.Metrics) *Allocator {
	return &Allocator{q: q, newID: uuid.NewString, logger: logger, metrics: m}
}

// Allocate draws candidates until one is unused. There is no retry cap.
// Query failures are returned, never treated as collisions.
func (a *Allocator) Allocate(ctx context.Context) (GroupID, error) {
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		candidate := a.newID()
		q := catalog.NewQuery(catalog.ColDataName).
			Where(catalog.ColMetaAttrName, catalog.HardLinkAttribute).
			Where(catalog.ColMetaAttrValue, candidate)

		rows, err := a.q.Submit(ctx, q)
		if err != nil {
			return "", catalogErr("allocate group id", "", err)
		}
		if len(rows) == 0 {
			return GroupID(candidate), nil
		}

		a.logger.Trace().Str("group_id", candidate).Msg("Group id already in use, generating a new one")
		a.metrics.AllocatorCollision()
	}
}
