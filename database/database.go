// Package database implements ArrowDB's Database (spec.md §4.3): a named
// registry mapping table names to Tables, with per-table fine-grained
// locking rather than a single database-wide lock, so that both the
// single-threaded sandbox host and a multithreaded server host can share
// the same code path (spec.md §5).
package database

import (
	"sync"

	"github.com/arrowdb/arrowdb/table"
	"github.com/arrowdb/arrowdb/types"
)

// entry pairs a Table with the lock that serializes access to it and the
// dirty flag the query engine adapter consults on refresh.
type entry struct {
	mu    sync.RWMutex
	tbl   *table.Table
	dirty bool
}

// Database is a concurrent map from table name to Table. The map itself is
// guarded by mapMu (held briefly, only across add/remove/lookup); each
// entry's own RWMutex guards the Table it wraps, so readers and writers of
// different tables never contend with each other.
type Database struct {
	name string

	mapMu   sync.RWMutex
	entries map[string]*entry
}

// New constructs an empty registry.
func New(name string) *Database {
	return &Database{name: name, entries: make(map[string]*entry)}
}

// Name returns the database's name.
func (d *Database) Name() string { return d.name }

// AddTable registers tbl under its own name. Fails with ErrDuplicateTable
// if a table by that name is already registered. The newly added table
// starts dirty, since the query engine has never seen it.
func (d *Database) AddTable(tbl *table.Table) error {
	d.mapMu.Lock()
	defer d.mapMu.Unlock()

	if _, exists := d.entries[tbl.Name()]; exists {
		return ErrDuplicateTable
	}
	d.entries[tbl.Name()] = &entry{tbl: tbl, dirty: true}
	return nil
}

// RemoveTable removes name if present and releases its backing memory.
// Absence is not an error: this is the idempotent variant spec.md §4.3
// describes for hosts that do not need to distinguish "already gone" from
// "just removed". Use RemoveTableStrict when that distinction matters.
func (d *Database) RemoveTable(name string) {
	d.mapMu.Lock()
	defer d.mapMu.Unlock()

	e, exists := d.entries[name]
	if !exists {
		return
	}
	delete(d.entries, name)
	e.mu.Lock()
	e.tbl.Release()
	e.mu.Unlock()
}

// RemoveTableStrict removes name, returning ErrNotFound if it was not
// registered. This is the strict variant spec.md §4.3 describes for hosts
// that must surface a missing-table error to their caller.
func (d *Database) RemoveTableStrict(name string) error {
	d.mapMu.Lock()
	e, exists := d.entries[name]
	if !exists {
		d.mapMu.Unlock()
		return ErrNotFound
	}
	delete(d.entries, name)
	d.mapMu.Unlock()

	e.mu.Lock()
	e.tbl.Release()
	e.mu.Unlock()
	return nil
}

// Ref is a scoped read reference to a registered Table. Release must be
// called exactly once, on every exit path, to drop the table's read lock.
type Ref struct {
	e   *entry
	tbl *table.Table
}

// Table returns the referenced Table. Valid only until Release is called.
func (r *Ref) Table() *table.Table { return r.tbl }

// Release drops the read lock acquired by Get.
func (r *Ref) Release() { r.e.mu.RUnlock() }

// Get acquires a scoped read reference to name's Table. While the returned
// Ref is live, no writer of the same table may proceed; readers and
// writers of other tables are unaffected.
func (d *Database) Get(name string) (*Ref, error) {
	d.mapMu.RLock()
	e, exists := d.entries[name]
	d.mapMu.RUnlock()
	if !exists {
		return nil, ErrNotFound
	}
	e.mu.RLock()
	return &Ref{e: e, tbl: e.tbl}, nil
}

// MutRef is a scoped exclusive reference to a registered Table. Release
// must be called exactly once, on every exit path. Acquiring a MutRef
// always marks the table dirty: the registry has no way to know whether
// the caller's eventual mutation actually changed anything, and a false
// positive on the dirty flag costs only an extra, harmless refresh.
type MutRef struct {
	e   *entry
	tbl *table.Table
}

// Table returns the referenced Table. Valid only until Release is called.
func (r *MutRef) Table() *table.Table { return r.tbl }

// Release drops the exclusive lock acquired by GetMut.
func (r *MutRef) Release() { r.e.mu.Unlock() }

// GetMut acquires a scoped exclusive reference to name's Table. While the
// returned MutRef is live, no other reader or writer of the same table may
// proceed.
func (d *Database) GetMut(name string) (*MutRef, error) {
	d.mapMu.RLock()
	e, exists := d.entries[name]
	d.mapMu.RUnlock()
	if !exists {
		return nil, ErrNotFound
	}
	e.mu.Lock()
	e.dirty = true
	return &MutRef{e: e, tbl: e.tbl}, nil
}

// ListTables returns a consistent snapshot of registered table names.
func (d *Database) ListTables() []string {
	d.mapMu.RLock()
	defer d.mapMu.RUnlock()

	names := make([]string, 0, len(d.entries))
	for name := range d.entries {
		names = append(names, name)
	}
	return names
}

// TableSchema pairs a table name with its column field list, as returned
// by Schemas().
type TableSchema struct {
	Name   string
	Fields []types.Field
}

// Schemas returns a consistent snapshot of (name, field list) pairs for
// every registered table. Field nullability and type are read from each
// column; this does not require any table to be in the Consistent state,
// since it never compares row counts.
func (d *Database) Schemas() []TableSchema {
	d.mapMu.RLock()
	names := make([]string, 0, len(d.entries))
	es := make([]*entry, 0, len(d.entries))
	for name, e := range d.entries {
		names = append(names, name)
		es = append(es, e)
	}
	d.mapMu.RUnlock()

	out := make([]TableSchema, len(names))
	for i, name := range names {
		e := es[i]
		e.mu.RLock()
		tbl := e.tbl
		fields := make([]types.Field, tbl.NumColumns())
		for j := 0; j < tbl.NumColumns(); j++ {
			col, _ := tbl.Column(j)
			fields[j] = types.Field{Name: col.Name(), Type: col.TypeTag(), Nullable: col.Nullable()}
		}
		e.mu.RUnlock()
		out[i] = TableSchema{Name: name, Fields: fields}
	}
	return out
}

// DirtyTables returns the names of every table whose dirty flag is set,
// for query.Adapter.refresh to re-register (spec.md §5.1). It does not
// clear the flags; ClearDirty does that once registration succeeds.
func (d *Database) DirtyTables() []string {
	d.mapMu.RLock()
	defer d.mapMu.RUnlock()

	var dirty []string
	for name, e := range d.entries {
		e.mu.RLock()
		if e.dirty {
			dirty = append(dirty, name)
		}
		e.mu.RUnlock()
	}
	return dirty
}

// ClearDirty resets name's dirty flag after the query engine adapter has
// successfully re-registered it. A no-op if name is no longer registered
// (it was removed concurrently with the refresh that was clearing it).
func (d *Database) ClearDirty(name string) {
	d.mapMu.RLock()
	e, exists := d.entries[name]
	d.mapMu.RUnlock()
	if !exists {
		return
	}
	e.mu.Lock()
	e.dirty = false
	e.mu.Unlock()
}
