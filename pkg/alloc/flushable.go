package alloc

import (
	"sync"
)

// MapStore persists a map to its on-disk region.
type MapStore interface {
	PutMap(*Map) error
}

// Flushable tracks whether the wrapped map has changed since it was last
// written to its store.
type Flushable struct {
	m     *Map
	store MapStore
	mutex sync.Mutex
	dirty bool
}

func NewFlushable(m *Map, store MapStore) *Flushable {
	return &Flushable{m: m, store: store}
}

// Map returns the live map. Mutations made directly on it are not tracked;
// call Touch afterwards.
func (f *Flushable) Map() *Map {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.m
}

func (f *Flushable) Touch() {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.dirty = true
}

func (f *Flushable) Dirty() bool {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.dirty
}

// Snapshot returns a copy suitable for a later Restore.
func (f *Flushable) Snapshot() *Map {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.m.Clone()
}

func (f *Flushable) Restore(snapshot *Map) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.m = snapshot.Clone()
	f.dirty = true
}

// Replace swaps in a freshly loaded map without marking it dirty.
func (f *Flushable) Replace(m *Map) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.m = m
	f.dirty = false
}

// AllocFrom claims the first free AU at or after `hint` and marks the map
// dirty.
func (f *Flushable) AllocFrom(hint uint32) (uint32, bool) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	unit, ok := f.m.AllocFrom(hint)
	if ok {
		f.dirty = true
	}
	return unit, ok
}

func (f *Flushable) Alloc() (uint32, bool) { return f.AllocFrom(0) }

func (f *Flushable) Free(unit uint32) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.m.Deallocate(unit)
	f.dirty = true
}

func (f *Flushable) Flush() error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	if f.dirty {
		if err := f.store.PutMap(f.m); err != nil {
			return err
		}
		f.dirty = false
	}
	return nil
}
