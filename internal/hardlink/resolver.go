package hardlink

import (
	"context"

	"github.com/Mschirtzinger/hardlinks/internal/catalog"
)

// GroupID identifies a hard-link group. Canonical UUID text.
type GroupID string

func (g GroupID) String() string {
	return string(g)
}

// Resolver answers group membership questions with catalog queries.
//
// A path that is not registered, or not tagged, simply has no group.
// Only catalog failures are errors.
type Resolver struct {
	q catalog.Querier
}

// NewResolver returns a resolver over q.
func NewResolver(q catalog.Querier) *Resolver {
	return &Resolver{q: q}
}

// Resolve returns the group id tagged on p. When p carries more than one
// tag the first row in catalog order wins.
func (r *Resolver) Resolve(ctx context.Context, p catalog.LogicalPath) (GroupID, bool, error) {
	q := catalog.NewQuery(catalog.ColMetaAttrValue).
		WherePath(p).
		Where(catalog.ColMetaAttrName, catalog.HardLinkAttribute)

	rows, err := r.q.Submit(ctx, q)
	if err != nil {
		return "", false, catalogErr("resolve group", p, err)
	}
	if len(rows) == 0 {
		return "", false, nil
	}
	return GroupID(rows[0].Col(0)), true, nil
}

// MembersOf returns every logical path tagged with g, in catalog order.
func (r *Resolver) MembersOf(ctx context.Context, g GroupID) ([]catalog.LogicalPath, error) {
	q := catalog.NewQuery(catalog.ColCollName, catalog.ColDataName).
		Where(catalog.ColMetaAttrName, catalog.HardLinkAttribute).
		Where(catalog.ColMetaAttrValue, string(g))

	rows, err := r.q.Submit(ctx, q)
	if err != nil {
		return nil, catalogErr("list group members", "", err)
	}

	members := make([]catalog.LogicalPath, 0, len(rows))
	for _, row := range rows {
		members = append(members, catalog.Join(row.Col(0), row.Col(1)))
	}
	return members, nil
}

// SiblingsOf returns the other members of p's group. Empty when p is untagged.
func (r *Resolver) SiblingsOf(ctx context.Context, p catalog.LogicalPath) ([]catalog.LogicalPath, error) {
	g, ok, err := r.Resolve(ctx, p)
	if err != nil || !ok {
		return nil, err
	}

	members, err := r.MembersOf(ctx, g)
	if err != nil {
		return nil, err
	}

	siblings := members[:0]
	for _, m := range members {
		if m != p {
			siblings = append(siblings, m)
		}
	}
	return siblings, nil
}

// PhysicalPathOf returns the recorded physical path of p.
func (r *Resolver) PhysicalPathOf(ctx context.Context, p catalog.LogicalPath) (string, bool, error) {
	return r.lookupOne(ctx, "look up physical path", p, catalog.ColDataPath)
}

// ResourceOf returns the resource id backing p.
func (r *Resolver) ResourceOf(ctx context.Context, p catalog.LogicalPath) (string, bool, error) {
	return r.lookupOne(ctx, "look up resource", p, catalog.ColRescID)
}

func (r *Resolver) lookupOne(ctx context.Context, op string, p catalog.LogicalPath, col catalog.Column) (string, bool, error) {
	rows, err := r.q.Submit(ctx, catalog.NewQuery(col).WherePath(p))
	if err != nil {
		return "", false, catalogErr(op, p, err)
	}
	if len(rows) == 0 {
		return "", false, nil
	}
	return rows[0].Col(0), true, nil
}
