package catalog

import (
	"fmt"
	"strings"
)

// Column is a logical catalog column. Implementations map columns onto
// their physical schema.
type Column string

const (
	ColMetaAttrName  Column = "META_DATA_ATTR_NAME"
	ColMetaAttrValue Column = "META_DATA_ATTR_VALUE"
	ColMetaAttrUnits Column = "META_DATA_ATTR_UNITS"
	ColCollName      Column = "COLL_NAME"
	ColDataName      Column = "DATA_NAME"
	ColDataPath      Column = "DATA_PATH"
	ColRescID        Column = "RESC_ID"
)

// IsMetadata reports whether the column lives on the metadata side of the catalog.
func (c Column) IsMetadata() bool {
	switch c {
	case ColMetaAttrName, ColMetaAttrValue, ColMetaAttrUnits:
		return true
	}
	return false
}

// Condition is an equality predicate on a column.
type Condition struct {
	Column Column
	Value  string
}

// Query is a projection over logical columns filtered by equality predicates.
// All conditions are combined with AND.
type Query struct {
	Select     []Column
	Conditions []Condition
}

// NewQuery starts a query selecting the given columns.
func NewQuery(cols ...Column) *Query {
	return &Query{Select: cols}
}

// Where appends an equality predicate and returns the query for chaining.
func (q *Query) Where(col Column, value string) *Query {
	q.Conditions = append(q.Conditions, Condition{Column: col, Value: value})
	return q
}

// WherePath adds the collection and data name predicates for p.
func (q *Query) WherePath(p LogicalPath) *Query {
	return q.Where(ColCollName, p.Collection()).Where(ColDataName, p.Name())
}

// Validate checks that the query selects at least one column.
func (q *Query) Validate() error {
	if len(q.Select) == 0 {
		return fmt.Errorf("query selects no columns")
	}
	return nil
}

// String renders the query in the catalog's textual query form. Used for logs.
func (q *Query) String() string {
	cols := make([]string, len(q.Select))
	for i, c := range q.Select {
		cols[i] = string(c)
	}
	s := "select " + strings.Join(cols, ", ")
	if len(q.Conditions) > 0 {
		conds := make([]string, len(q.Conditions))
		for i, c := range q.Conditions {
			conds[i] = fmt.Sprintf("%s = '%s'", c.Column, c.Value)
		}
		s += " where " + strings.Join(conds, " and ")
	}
	return s
}

// Row is one result row; values are indexed in Select order.
type Row []string

// Col returns the i-th column or "" when out of range.
func (r Row) Col(i int) string {
	if i < 0 || i >= len(r) {
		return ""
	}
	return r[i]
}
