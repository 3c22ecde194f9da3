package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Mschirtzinger/hardlinks/internal/catalog"
)

// RegisterOptions configures RegisterObject.
type RegisterOptions struct {
	// ResourceID overrides the default resource (empty = default).
	ResourceID string
	// Size is the payload size in bytes.
	Size int64
}

// RegisterObject creates a catalog record for p pointing at physicalPath.
// Returns catalog.ErrExists if p is already registered.
func (db *DB) RegisterObject(ctx context.Context, sess *catalog.Session, p catalog.LogicalPath, physicalPath string, opts RegisterOptions) error {
	if err := requireSession(sess); err != nil {
		return err
	}
	if err := p.Validate(); err != nil {
		return catalog.Errorf(catalog.StatusUserInputFormat, err, "invalid logical path")
	}
	if physicalPath == "" {
		return catalog.Errorf(catalog.StatusUserInputFormat, nil, "physical path is required for %s", p)
	}

	resc := opts.ResourceID
	if resc == "" {
		resc = db.config.DefaultResourceID
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return catalog.Errorf(catalog.StatusSysInternal, err, "failed to begin transaction")
	}
	defer tx.Rollback()

	if _, err := lookupID(ctx, tx, p); err == nil {
		return catalog.Errorf(catalog.StatusNameExists, nil, "logical path already exists: %s", p)
	} else if !errors.Is(err, catalog.ErrNotFound) {
		return err
	}

	ts := now()
	_, err = tx.ExecContext(ctx, `
	INSERT INTO data_objects (coll_name, data_name, data_path, resc_id, data_size, owner_name, create_ts, modify_ts)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, p.Collection(), p.Name(), physicalPath, resc, opts.Size, sess.User, ts, ts)
	if err != nil {
		return catalog.Errorf(catalog.StatusSysInternal, err, "failed to register %s", p)
	}

	if err := tx.Commit(); err != nil {
		return catalog.Errorf(catalog.StatusSysInternal, err, "failed to commit registration of %s", p)
	}
	return nil
}

// RegisterPhysicalPath implements catalog.Mutator. The record lands on the
// default resource.
func (db *DB) RegisterPhysicalPath(ctx context.Context, sess *catalog.Session, p catalog.LogicalPath, physicalPath string) error {
	return db.RegisterObject(ctx, sess, p, physicalPath, RegisterOptions{})
}

// SetPhysicalPath implements catalog.Mutator.
func (db *DB) SetPhysicalPath(ctx context.Context, sess *catalog.Session, p catalog.LogicalPath, physicalPath string) error {
	if err := requirePrivilege(sess, "set physical path"); err != nil {
		return err
	}
	if physicalPath == "" {
		return catalog.Errorf(catalog.StatusUserInputFormat, nil, "physical path is required for %s", p)
	}

	res, err := db.conn.ExecContext(ctx,
		`UPDATE data_objects SET data_path = ?, modify_ts = ? WHERE coll_name = ? AND data_name = ?`,
		physicalPath, now(), p.Collection(), p.Name())
	if err != nil {
		return catalog.Errorf(catalog.StatusSysInternal, err, "failed to set physical path of %s", p)
	}
	return expectOneRow(res, p)
}

// ForceUnregister implements catalog.Mutator.
func (db *DB) ForceUnregister(ctx context.Context, sess *catalog.Session, p catalog.LogicalPath) error {
	if err := requirePrivilege(sess, "force unregister"); err != nil {
		return err
	}
	return db.deleteObject(ctx, p)
}

// UnregisterObject removes the record of p and its metadata on behalf of
// an ordinary session. The payload is the caller's business.
func (db *DB) UnregisterObject(ctx context.Context, sess *catalog.Session, p catalog.LogicalPath) error {
	if err := requireSession(sess); err != nil {
		return err
	}
	return db.deleteObject(ctx, p)
}

func (db *DB) deleteObject(ctx context.Context, p catalog.LogicalPath) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return catalog.Errorf(catalog.StatusSysInternal, err, "failed to begin transaction")
	}
	defer tx.Rollback()

	id, err := lookupID(ctx, tx, p)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM metadata WHERE data_id = ?`, id); err != nil {
		return catalog.Errorf(catalog.StatusSysInternal, err, "failed to remove metadata of %s", p)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM data_objects WHERE data_id = ?`, id); err != nil {
		return catalog.Errorf(catalog.StatusSysInternal, err, "failed to remove %s", p)
	}

	if err := tx.Commit(); err != nil {
		return catalog.Errorf(catalog.StatusSysInternal, err, "failed to commit removal of %s", p)
	}
	return nil
}

// RenameObject moves the record of src to dst and records its new physical path.
func (db *DB) RenameObject(ctx context.Context, sess *catalog.Session, src, dst catalog.LogicalPath, physicalPath string) error {
	if err := requireSession(sess); err != nil {
		return err
	}
	if err := dst.Validate(); err != nil {
		return catalog.Errorf(catalog.StatusUserInputFormat, err, "invalid destination")
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return catalog.Errorf(catalog.StatusSysInternal, err, "failed to begin transaction")
	}
	defer tx.Rollback()

	id, err := lookupID(ctx, tx, src)
	if err != nil {
		return err
	}
	if _, err := lookupID(ctx, tx, dst); err == nil {
		return catalog.Errorf(catalog.StatusNameExists, nil, "destination already exists: %s", dst)
	} else if !errors.Is(err, catalog.ErrNotFound) {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE data_objects SET coll_name = ?, data_name = ?, data_path = ?, modify_ts = ? WHERE data_id = ?`,
		dst.Collection(), dst.Name(), physicalPath, now(), id)
	if err != nil {
		return catalog.Errorf(catalog.StatusSysInternal, err, "failed to rename %s to %s", src, dst)
	}

	if err := tx.Commit(); err != nil {
		return catalog.Errorf(catalog.StatusSysInternal, err, "failed to commit rename of %s", src)
	}
	return nil
}

// SetMetadata implements catalog.Mutator. Any existing AVUs of p with the
// same attribute are replaced.
func (db *DB) SetMetadata(ctx context.Context, sess *catalog.Session, p catalog.LogicalPath, avu catalog.AVU) error {
	if err := requireSession(sess); err != nil {
		return err
	}
	if avu.Attribute == "" || avu.Value == "" {
		return catalog.Errorf(catalog.StatusUserInputFormat, nil, "metadata attribute and value are required")
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return catalog.Errorf(catalog.StatusSysInternal, err, "failed to begin transaction")
	}
	defer tx.Rollback()

	id, err := lookupID(ctx, tx, p)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM metadata WHERE data_id = ? AND attr_name = ?`, id, avu.Attribute); err != nil {
		return catalog.Errorf(catalog.StatusSysInternal, err, "failed to clear metadata of %s", p)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO metadata (data_id, attr_name, attr_value, attr_unit, create_ts) VALUES (?, ?, ?, ?, ?)`,
		id, avu.Attribute, avu.Value, avu.Unit, now())
	if err != nil {
		return catalog.Errorf(catalog.StatusSysInternal, err, "failed to set metadata on %s", p)
	}

	if err := tx.Commit(); err != nil {
		return catalog.Errorf(catalog.StatusSysInternal, err, "failed to commit metadata of %s", p)
	}
	return nil
}

// AddMetadata appends an AVU to p without touching existing ones.
func (db *DB) AddMetadata(ctx context.Context, p catalog.LogicalPath, avu catalog.AVU) error {
	id, err := lookupID(ctx, db.conn, p)
	if err != nil {
		return err
	}
	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO metadata (data_id, attr_name, attr_value, attr_unit, create_ts) VALUES (?, ?, ?, ?, ?)`,
		id, avu.Attribute, avu.Value, avu.Unit, now())
	if err != nil {
		return catalog.Errorf(catalog.StatusSysInternal, err, "failed to add metadata on %s", p)
	}
	return nil
}

// GetObject retrieves the record of p.
// Returns catalog.ErrNotFound if p is not registered.
func (db *DB) GetObject(ctx context.Context, p catalog.LogicalPath) (*catalog.DataObject, error) {
	row := db.conn.QueryRowContext(ctx, `
	SELECT data_id, coll_name, data_name, data_path, resc_id, data_size, create_ts, modify_ts
	FROM data_objects
	WHERE coll_name = ? AND data_name = ?
	`, p.Collection(), p.Name())

	var obj catalog.DataObject
	var coll, name, createdAt, modifiedAt string
	err := row.Scan(&obj.ID, &coll, &name, &obj.PhysicalPath, &obj.ResourceID, &obj.Size, &createdAt, &modifiedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, catalog.Errorf(catalog.StatusNoRowsFound, nil, "no data object at %s", p)
	}
	if err != nil {
		return nil, catalog.Errorf(catalog.StatusSysInternal, err, "failed to read %s", p)
	}

	obj.Path = catalog.Join(coll, name)
	obj.CreatedAt = parseTime(createdAt)
	obj.ModifiedAt = parseTime(modifiedAt)
	return &obj, nil
}

// ListMetadata returns every AVU attached to p in insertion order.
func (db *DB) ListMetadata(ctx context.Context, p catalog.LogicalPath) ([]catalog.AVU, error) {
	rows, err := db.conn.QueryContext(ctx, `
	SELECT m.attr_name, m.attr_value, m.attr_unit
	FROM metadata m
	JOIN data_objects d ON d.data_id = m.data_id
	WHERE d.coll_name = ? AND d.data_name = ?
	ORDER BY m.meta_id
	`, p.Collection(), p.Name())
	if err != nil {
		return nil, catalog.Errorf(catalog.StatusSysInternal, err, "failed to list metadata of %s", p)
	}
	defer rows.Close()

	var avus []catalog.AVU
	for rows.Next() {
		var avu catalog.AVU
		if err := rows.Scan(&avu.Attribute, &avu.Value, &avu.Unit); err != nil {
			return nil, catalog.Errorf(catalog.StatusSysInternal, err, "failed to scan metadata")
		}
		avus = append(avus, avu)
	}
	if err := rows.Err(); err != nil {
		return nil, catalog.Errorf(catalog.StatusSysInternal, err, "error iterating metadata")
	}
	return avus, nil
}

// CountPhysicalPathRefs returns how many data objects record physicalPath.
func (db *DB) CountPhysicalPathRefs(ctx context.Context, physicalPath string) (int, error) {
	var count int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM data_objects WHERE data_path = ?`, physicalPath).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count references to %s: %w", physicalPath, err)
	}
	return count, nil
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func lookupID(ctx context.Context, q queryRower, p catalog.LogicalPath) (int64, error) {
	var id int64
	err := q.QueryRowContext(ctx,
		`SELECT data_id FROM data_objects WHERE coll_name = ? AND data_name = ?`,
		p.Collection(), p.Name()).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, catalog.Errorf(catalog.StatusNoRowsFound, nil, "no data object at %s", p)
	}
	if err != nil {
		return 0, catalog.Errorf(catalog.StatusSysInternal, err, "failed to look up %s", p)
	}
	return id, nil
}

func expectOneRow(res sql.Result, p catalog.LogicalPath) error {
	n, err := res.RowsAffected()
	if err != nil {
		return catalog.Errorf(catalog.StatusSysInternal, err, "failed to read affected rows")
	}
	if n == 0 {
		return catalog.Errorf(catalog.StatusNoRowsFound, nil, "no data object at %s", p)
	}
	return nil
}

func requireSession(sess *catalog.Session) error {
	if sess == nil {
		return catalog.Errorf(catalog.StatusSysInternal, nil, "session is required")
	}
	return nil
}

func requirePrivilege(sess *catalog.Session, op string) error {
	if err := requireSession(sess); err != nil {
		return err
	}
	if !sess.Privileged() {
		return catalog.Errorf(catalog.StatusNoAccessPermission, nil, "%s requires elevated session (user %s)", op, sess.User)
	}
	return nil
}
