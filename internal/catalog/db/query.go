package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/Mschirtzinger/hardlinks/internal/catalog"
)

// columnSQL maps logical catalog columns onto the physical schema.
var columnSQL = map[catalog.Column]string{
	catalog.ColMetaAttrName:  "m.attr_name",
	catalog.ColMetaAttrValue: "m.attr_value",
	catalog.ColMetaAttrUnits: "m.attr_unit",
	catalog.ColCollName:      "d.coll_name",
	catalog.ColDataName:      "d.data_name",
	catalog.ColDataPath:      "d.data_path",
	catalog.ColRescID:        "d.resc_id",
}

// Submit implements catalog.Querier.
//
// Rows come back in catalog insertion order (data object first, then
// metadata row), which keeps "first match" lookups deterministic.
func (db *DB) Submit(ctx context.Context, q *catalog.Query) ([]catalog.Row, error) {
	stmt, args, err := buildQuery(q)
	if err != nil {
		return nil, catalog.Errorf(catalog.StatusSysInternal, err, "invalid query")
	}

	rows, err := db.conn.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, catalog.Errorf(catalog.StatusSysInternal, err, "failed to run query [%s]", q)
	}
	defer rows.Close()

	var out []catalog.Row
	for rows.Next() {
		values := make([]string, len(q.Select))
		dest := make([]any, len(values))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, catalog.Errorf(catalog.StatusSysInternal, err, "failed to scan row")
		}
		out = append(out, catalog.Row(values))
	}

	if err := rows.Err(); err != nil {
		return nil, catalog.Errorf(catalog.StatusSysInternal, err, "error iterating rows")
	}

	return out, nil
}

// buildQuery translates a logical query into SQL with bound parameters.
func buildQuery(q *catalog.Query) (string, []any, error) {
	if q == nil {
		return "", nil, fmt.Errorf("query is nil")
	}
	if err := q.Validate(); err != nil {
		return "", nil, err
	}

	needsMeta := false
	selects := make([]string, 0, len(q.Select))
	for _, col := range q.Select {
		expr, ok := columnSQL[col]
		if !ok {
			return "", nil, fmt.Errorf("unknown column %s", col)
		}
		if col.IsMetadata() {
			needsMeta = true
		}
		selects = append(selects, expr)
	}

	var conditions []string
	var args []any
	for _, cond := range q.Conditions {
		expr, ok := columnSQL[cond.Column]
		if !ok {
			return "", nil, fmt.Errorf("unknown column %s", cond.Column)
		}
		if cond.Column.IsMetadata() {
			needsMeta = true
		}
		conditions = append(conditions, expr+" = ?")
		args = append(args, cond.Value)
	}

	stmt := "SELECT " + strings.Join(selects, ", ") + " FROM data_objects d"
	order := " ORDER BY d.data_id"
	if needsMeta {
		stmt += " JOIN metadata m ON m.data_id = d.data_id"
		order += ", m.meta_id"
	}
	if len(conditions) > 0 {
		stmt += " WHERE " + strings.Join(conditions, " AND ")
	}
	stmt += order

	return stmt, args, nil
}
