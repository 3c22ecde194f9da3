// Package catalogtest provides an in-memory catalog for tests.
package catalogtest

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/Mschirtzinger/hardlinks/internal/catalog"
)

type object struct {
	id       int64
	path     catalog.LogicalPath
	physical string
	resource string
}

type avuRow struct {
	id     int64
	dataID int64
	avu    catalog.AVU
}

// Memory is a catalog.Catalog kept in maps. Rows come back in insertion
// order like the SQLite catalog. Failures can be injected per primitive
// and path with Fail.
type Memory struct {
	DefaultResource string

	mu       sync.Mutex
	nextID   int64
	objects  map[catalog.LogicalPath]*object
	metadata []avuRow
	faults   map[string]error
	queries  int
}

var _ catalog.Catalog = (*Memory)(nil)

// NewMemory returns an empty catalog registering on resource "10014".
func NewMemory() *Memory {
	return &Memory{
		DefaultResource: "10014",
		objects:         make(map[catalog.LogicalPath]*object),
		faults:          make(map[string]error),
	}
}

// Primitive names accepted by Fail.
const (
	OpSubmit          = "submit"
	OpRegister        = "register"
	OpSetPhysicalPath = "set_physical_path"
	OpForceUnregister = "force_unregister"
	OpSetMetadata     = "set_metadata"
)

// Fail makes primitive op fail with err for path p. An empty p matches any path.
func (m *Memory) Fail(op string, p catalog.LogicalPath, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.faults[op+"|"+string(p)] = err
}

// Add registers p at physical on resource without any privilege checks.
func (m *Memory) Add(p catalog.LogicalPath, physical, resource string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addLocked(p, physical, resource)
}

// Tag attaches an AVU to p without replacing existing ones.
func (m *Memory) Tag(p catalog.LogicalPath, avu catalog.AVU) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[p]
	if !ok {
		panic(fmt.Sprintf("catalogtest: tag on unknown path %s", p))
	}
	m.nextID++
	m.metadata = append(m.metadata, avuRow{id: m.nextID, dataID: obj.id, avu: avu})
}

// PhysicalPath returns the physical path recorded for p.
func (m *Memory) PhysicalPath(p catalog.LogicalPath) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[p]
	if !ok {
		return "", false
	}
	return obj.physical, true
}

// Exists reports whether p is registered.
func (m *Memory) Exists(p catalog.LogicalPath) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[p]
	return ok
}

// Metadata returns the AVUs of p in insertion order.
func (m *Memory) Metadata(p catalog.LogicalPath) []catalog.AVU {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[p]
	if !ok {
		return nil
	}
	var out []catalog.AVU
	for _, row := range m.metadata {
		if row.dataID == obj.id {
			out = append(out, row.avu)
		}
	}
	return out
}

// Queries returns how many queries were submitted.
func (m *Memory) Queries() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queries
}

// Submit implements catalog.Querier.
func (m *Memory) Submit(ctx context.Context, q *catalog.Query) ([]catalog.Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries++

	if err := m.fault(OpSubmit, ""); err != nil {
		return nil, err
	}
	if err := q.Validate(); err != nil {
		return nil, catalog.Errorf(catalog.StatusSysInternal, err, "invalid query")
	}

	needsMeta := false
	for _, c := range q.Select {
		needsMeta = needsMeta || c.IsMetadata()
	}
	for _, c := range q.Conditions {
		needsMeta = needsMeta || c.Column.IsMetadata()
	}

	var rows []catalog.Row
	emit := func(obj *object, avu *catalog.AVU) {
		get := func(col catalog.Column) string {
			switch col {
			case catalog.ColCollName:
				return obj.path.Collection()
			case catalog.ColDataName:
				return obj.path.Name()
			case catalog.ColDataPath:
				return obj.physical
			case catalog.ColRescID:
				return obj.resource
			case catalog.ColMetaAttrName:
				return avu.Attribute
			case catalog.ColMetaAttrValue:
				return avu.Value
			case catalog.ColMetaAttrUnits:
				return avu.Unit
			}
			return ""
		}
		for _, c := range q.Conditions {
			if get(c.Column) != c.Value {
				return
			}
		}
		row := make(catalog.Row, len(q.Select))
		for i, col := range q.Select {
			row[i] = get(col)
		}
		rows = append(rows, row)
	}

	for _, obj := range m.orderedObjects() {
		if !needsMeta {
			emit(obj, nil)
			continue
		}
		for i := range m.metadata {
			if m.metadata[i].dataID == obj.id {
				emit(obj, &m.metadata[i].avu)
			}
		}
	}
	return rows, nil
}

// RegisterPhysicalPath implements catalog.Mutator.
func (m *Memory) RegisterPhysicalPath(ctx context.Context, sess *catalog.Session, p catalog.LogicalPath, physicalPath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fault(OpRegister, p); err != nil {
		return err
	}
	if _, ok := m.objects[p]; ok {
		return catalog.Errorf(catalog.StatusNameExists, nil, "logical path already exists: %s", p)
	}
	m.addLocked(p, physicalPath, m.DefaultResource)
	return nil
}

// SetPhysicalPath implements catalog.Mutator.
func (m *Memory) SetPhysicalPath(ctx context.Context, sess *catalog.Session, p catalog.LogicalPath, physicalPath string) error {
	if !sess.Privileged() {
		return catalog.ErrPermissionDenied
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fault(OpSetPhysicalPath, p); err != nil {
		return err
	}
	obj, ok := m.objects[p]
	if !ok {
		return catalog.ErrNotFound
	}
	obj.physical = physicalPath
	return nil
}

// ForceUnregister implements catalog.Mutator.
func (m *Memory) ForceUnregister(ctx context.Context, sess *catalog.Session, p catalog.LogicalPath) error {
	if !sess.Privileged() {
		return catalog.ErrPermissionDenied
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fault(OpForceUnregister, p); err != nil {
		return err
	}
	obj, ok := m.objects[p]
	if !ok {
		return catalog.ErrNotFound
	}
	m.dropMetadata(obj.id, "")
	delete(m.objects, p)
	return nil
}

// SetMetadata implements catalog.Mutator.
func (m *Memory) SetMetadata(ctx context.Context, sess *catalog.Session, p catalog.LogicalPath, avu catalog.AVU) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fault(OpSetMetadata, p); err != nil {
		return err
	}
	obj, ok := m.objects[p]
	if !ok {
		return catalog.ErrNotFound
	}
	m.dropMetadata(obj.id, avu.Attribute)
	m.nextID++
	m.metadata = append(m.metadata, avuRow{id: m.nextID, dataID: obj.id, avu: avu})
	return nil
}

func (m *Memory) addLocked(p catalog.LogicalPath, physical, resource string) {
	m.nextID++
	m.objects[p] = &object{id: m.nextID, path: p, physical: physical, resource: resource}
}

// dropMetadata removes rows of dataID; an empty attribute drops them all.
func (m *Memory) dropMetadata(dataID int64, attribute string) {
	kept := m.metadata[:0]
	for _, row := range m.metadata {
		if row.dataID == dataID && (attribute == "" || row.avu.Attribute == attribute) {
			continue
		}
		kept = append(kept, row)
	}
	m.metadata = kept
}

func (m *Memory) orderedObjects() []*object {
	out := make([]*object, 0, len(m.objects))
	for _, obj := range m.objects {
		out = append(out, obj)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

func (m *Memory) fault(op string, p catalog.LogicalPath) error {
	if err, ok := m.faults[op+"|"+string(p)]; ok {
		return err
	}
	if err, ok := m.faults[op+"|"]; ok {
		return err
	}
	return nil
}
