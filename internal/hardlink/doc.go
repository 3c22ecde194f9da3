// Package hardlink keeps hard-link groups consistent on top of a catalog.
//
// Overview
//
// A hard link is a set of logical paths whose catalog records point at the
// same physical payload. Members of a set carry the same group id in an
// "irods::hard_link" metadata triple (value = group id, unit = resource id).
//
//	/z/home/u/a.txt ─┐
//	                 ├── data_path = /vault/0001
//	/z/home/u/b.txt ─┘   irods::hard_link = 5f0c...  (unit 10014)
//
// Components
//
//   - Resolver: path -> group id, group id -> members, path -> siblings
//   - Allocator: mints a group id no existing group carries
//   - Creator: registers a new path over an existing payload and tags both ends
//   - Propagator: copies a member's new physical path onto its siblings
//   - Guard: decides whether a deletion may destroy the payload
//
// Engine wires them together over one catalog.Catalog.
//
// Usage
//
//	engine := hardlink.New(hardlink.Config{Catalog: cat, Logger: logger})
//
//	sess := catalog.NewSession("alice")
//	if err := engine.CreateLink(ctx, sess, src, link); err != nil {
//	    return err
//	}
//
//	verdict, err := engine.Check(ctx, sess, link)
//	if verdict.Action == hardlink.ActionSkip {
//	    // record detached, payload still referenced by src
//	}
//
// Consistency
//
// Nothing here is transactional across members. A rename that fails to
// update some siblings leaves the group split across two physical paths;
// PropagationReport lists the stragglers so an operator can fix them.
package hardlink
