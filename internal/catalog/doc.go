// Package catalog defines the vocabulary shared by the hard-link engine and
// the catalog that backs it.
//
// # Overview
//
// A catalog stores one record per logical path (collection + data name).
// Each record points at a physical path: the location of the payload bytes
// inside a storage resource. Several records may point at the same
// physical path; that is how hard links are represented.
//
// Records carry metadata triples (attribute, value, unit), called AVUs.
// Hard-link groups are tagged with the attribute HardLinkAttribute:
//
//	attribute: irods::hard_link
//	value:     6f0a3b1e-5b1c-4b8e-9a52-0c7d7f0e8d11
//	unit:      <resource id of the member>
//
// # Queries
//
// The engine never speaks SQL. It submits projections over logical
// columns with equality predicates:
//
//	q := catalog.NewQuery(catalog.ColDataPath).
//	    Where(catalog.ColCollName, "/tempZone/home/alice").
//	    Where(catalog.ColDataName, "a.txt")
//	rows, err := cat.Submit(ctx, q)
//
// # Sessions
//
// Every mutation is issued on behalf of a Session. Some primitives
// (SetPhysicalPath, ForceUnregister) require an elevated session; callers
// use Session.Sudo to elevate for exactly one call and restore the prior
// level afterwards.
package catalog
