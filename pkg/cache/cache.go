// Package cache memoizes small reference rows, the named lookup tables that
// queries join against constantly and that almost never change.
//
// One Table per entity type, process-wide. Rows are cached by (field,
// value); a whole type can be filled eagerly in one query. The cache never
// invalidates itself: callers that write reference rows are responsible for
// calling Clear afterwards.
package cache

import (
	"context"
	"sync"

	"github.com/aperture-array/obsdb/pkg/errorx"
)

// Field names every cached entity can be looked up by.
const (
	FieldID   = "id"
	FieldName = "name"
)

// Record - one resolved reference row. Implementations are immutable.
type Record interface {
	// EntityID - primary key.
	EntityID() int64
	// EntityName - unique human-readable name.
	EntityName() string
}

// Fetcher - issues the underlying queries for one entity type.
type Fetcher interface {
	// FetchBy returns the row whose field equals value, or NotFoundError
	// when no row matches.
	FetchBy(ctx context.Context, field string, value any) (Record, error)
	// FetchAll returns every row of the type.
	FetchAll(ctx context.Context) ([]Record, error)
}

// Table - the memoized rows of one entity type.
//
// The mutex guards the maps, never the queries: concurrent misses on the
// same key may each fetch and overwrite redundantly, which is harmless
// because the same key always resolves to the same row.
type Table struct {
	fetch Fetcher

	mu      sync.Mutex
	byField map[string]map[any]Record
	filled  bool
}

// NewTable - Table constructor.
func NewTable(f Fetcher) *Table {
	return &Table{fetch: f, byField: make(map[string]map[any]Record)}
}

// Lookup - resolve the row whose field equals value.
//
// A nil value short-circuits to (nil, nil) without touching the database.
// A cache miss issues exactly one query; its result is cached on success
// only. NotFoundError is returned to the caller and deliberately not
// cached, so a lookup of a truly-absent value queries again every time.
func (t *Table) Lookup(ctx context.Context, field string, value any) (Record, error) {
	if value == nil {
		return nil, nil
	}

	t.mu.Lock()
	if rec, ok := t.byField[field][value]; ok {
		t.mu.Unlock()

		return rec, nil
	}
	t.mu.Unlock()

	rec, err := t.fetch.FetchBy(ctx, field, value)
	if err != nil {
		return nil, err
	}

	t.store(field, value, rec)

	return rec, nil
}

// FromID - Lookup by primary key.
func (t *Table) FromID(ctx context.Context, id any) (Record, error) {
	return t.Lookup(ctx, FieldID, id)
}

// FromName - Lookup by unique name.
func (t *Table) FromName(ctx context.Context, name string) (Record, error) {
	return t.Lookup(ctx, FieldName, name)
}

// FillAll - load every row of the type in one query, populating both the id
// and the name views. Idempotent: once a table is filled, further FillAll
// calls return immediately.
func (t *Table) FillAll(ctx context.Context) error {
	t.mu.Lock()
	if t.filled {
		t.mu.Unlock()

		return nil
	}
	t.mu.Unlock()

	records, err := t.fetch.FetchAll(ctx)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	for _, rec := range records {
		t.storeLocked(FieldID, rec.EntityID(), rec)
		t.storeLocked(FieldName, rec.EntityName(), rec)
	}

	t.filled = true

	return nil
}

// Clear - drop every cached row of this type and reset the filled marker.
// Other types are unaffected.
func (t *Table) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.byField = make(map[string]map[any]Record)
	t.filled = false
}

func (t *Table) store(field string, value any, rec Record) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.storeLocked(field, value, rec)
}

func (t *Table) storeLocked(field string, value any, rec Record) {
	view, ok := t.byField[field]
	if !ok {
		view = make(map[any]Record)
		t.byField[field] = view
	}

	view[value] = rec
}

// REGISTRY:

var (
	regMu  sync.Mutex
	tables = make(map[string]*Table)
)

// Register - create (or replace) the process-wide Table for an entity type.
func Register(entityType string, f Fetcher) *Table {
	regMu.Lock()
	defer regMu.Unlock()

	t := NewTable(f)
	tables[entityType] = t

	return t
}

// For - the registered Table for an entity type, nil if none.
func For(entityType string) *Table {
	regMu.Lock()
	defer regMu.Unlock()

	return tables[entityType]
}

// Lookup - resolve (entityType, field, value) through the registry.
func Lookup(ctx context.Context, entityType, field string, value any) (Record, error) {
	t := For(entityType)
	if t == nil {
		return nil, errorx.NewInconsistencyError("no cache registered for entity type %q", entityType)
	}

	return t.Lookup(ctx, field, value)
}

// Clear - drop the cached rows of one registered entity type.
func Clear(entityType string) {
	if t := For(entityType); t != nil {
		t.Clear()
	}
}
