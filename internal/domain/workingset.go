package domain

import (
	"slices"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultViewCacheSize bounds the number of memoized views per working set.
const DefaultViewCacheSize = 64

type viewKey struct {
	version uint64
	search  string
	filter  StatusFilter
}

// Observer is told about every working-set mutation and view cache lookup.
// Calls happen while the set is locked and must not call back into it.
type Observer interface {
	WorkingSetChanged(size int, version uint64)
	ViewLookup(hit bool)
}

type nopObserver struct{}

func (nopObserver) WorkingSetChanged(int, uint64) {}
func (nopObserver) ViewLookup(bool)               {}

// WorkingSet owns the session's activities. Every mutation replaces the whole
// slice under the lock and bumps the version, so readers never observe a
// partially applied change.
type WorkingSet struct {
	mu         sync.RWMutex
	activities []Activity
	version    uint64
	views      *lru.Cache[viewKey, []Group]
	observer   Observer
}

// NewWorkingSet seeds a working set. A non-positive cacheSize falls back to
// DefaultViewCacheSize.
func NewWorkingSet(seed []Activity, cacheSize int) *WorkingSet {
	if cacheSize <= 0 {
		cacheSize = DefaultViewCacheSize
	}
	views, err := lru.New[viewKey, []Group](cacheSize)
	if err != nil {
		// Only reachable with a non-positive size.
		panic(err)
	}
	ws := &WorkingSet{views: views, observer: nopObserver{}}
	ws.swap(Dedupe(seed))
	return ws
}

// Observe installs o and reports the current size to it. A nil o stops
// reporting.
func (w *WorkingSet) Observe(o Observer) {
	if o == nil {
		o = nopObserver{}
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.observer = o
	o.WorkingSetChanged(len(w.activities), w.version)
}

// Snapshot returns a copy of the current activities.
func (w *WorkingSet) Snapshot() []Activity {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return slices.Clone(w.activities)
}

// Version increases by one on every mutation.
func (w *WorkingSet) Version() uint64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.version
}

// Len returns the number of activities held.
func (w *WorkingSet) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.activities)
}

// Replace discards the current contents in favour of activities.
func (w *WorkingSet) Replace(activities []Activity) {
	next := Dedupe(activities)
	w.mu.Lock()
	defer w.mu.Unlock()
	w.swap(next)
}

// Merge appends activities to the current contents; for repeated ids the
// incoming record wins.
func (w *WorkingSet) Merge(activities []Activity) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.merge(activities)
}

// Upsert inserts a or replaces the record sharing its id. It reports whether
// the id was new, decided under the same lock as the write.
func (w *WorkingSet) Upsert(a Activity) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	existed := slices.ContainsFunc(w.activities, func(x Activity) bool { return x.ID == a.ID })
	w.merge([]Activity{a})
	return !existed
}

func (w *WorkingSet) merge(activities []Activity) {
	merged := make([]Activity, 0, len(w.activities)+len(activities))
	merged = append(merged, w.activities...)
	merged = append(merged, activities...)
	w.swap(Dedupe(merged))
}

// Get looks an activity up by id.
func (w *WorkingSet) Get(id string) (Activity, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	for _, a := range w.activities {
		if a.ID == id {
			return a, true
		}
	}
	return Activity{}, false
}

// Delete removes the activity with the given id and reports whether it was
// present. Deleting an unknown id leaves the set and its version untouched.
func (w *WorkingSet) Delete(id string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	idx := slices.IndexFunc(w.activities, func(a Activity) bool { return a.ID == id })
	if idx < 0 {
		return false
	}
	w.swap(slices.Delete(slices.Clone(w.activities), idx, idx+1))
	return true
}

// View returns the grouped view for q, memoized per working-set version. The
// returned groups are shared with the cache and must not be modified.
func (w *WorkingSet) View(q Query) []Group {
	if q.Filter == "" {
		q.Filter = FilterAll
	}
	w.mu.RLock()
	key := viewKey{version: w.version, search: q.Search, filter: q.Filter}
	current := w.activities
	observer := w.observer
	w.mu.RUnlock()

	if groups, ok := w.views.Get(key); ok {
		observer.ViewLookup(true)
		return groups
	}
	observer.ViewLookup(false)
	groups := BuildView(current, q)
	w.views.Add(key, groups)
	return groups
}

// Stats summarises the current contents.
func (w *WorkingSet) Stats() Stats {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return Summarize(w.activities)
}

// swap installs next as the current slice. Callers hold the write lock.
func (w *WorkingSet) swap(next []Activity) {
	w.activities = next
	w.version++
	w.views.Purge()
	w.observer.WorkingSetChanged(len(next), w.version)
}
