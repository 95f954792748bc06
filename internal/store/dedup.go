// Package store holds the key-value token stores and the playlist dedup set.
package store

import (
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	lru "github.com/hashicorp/golang-lru/v2"
)

// DedupStore remembers which track ids a playlist already holds. The Bloom
// filter answers most negative lookups without touching the map; the LRU keeps
// the set bounded on very large playlists.
type DedupStore struct {
	ids          map[string]struct{}
	bloom        *bloom.BloomFilter
	lru          *lru.Cache[string, struct{}]
	mutex        sync.RWMutex
	capacity     int
	falsePosRate float64
}

// NewDedupStore creates a dedup set holding at most capacity ids.
func NewDedupStore(capacity int, falsePosRate float64) *DedupStore {
	if capacity <= 0 {
		capacity = 1
	}
	ds := &DedupStore{
		ids:          make(map[string]struct{}),
		bloom:        bloom.NewWithEstimates(uint(capacity), falsePosRate),
		capacity:     capacity,
		falsePosRate: falsePosRate,
	}
	// evictions run under ds.mutex, from add or reset
	ds.lru, _ = lru.NewWithEvict(capacity, func(id string, _ struct{}) {
		delete(ds.ids, id)
	})
	return ds
}

// Has reports whether id has been added.
func (ds *DedupStore) Has(id string) bool {
	ds.mutex.RLock()
	defer ds.mutex.RUnlock()

	if !ds.bloom.TestString(id) {
		return false
	}

	_, exists := ds.ids[id]
	return exists
}

// Add records id.
func (ds *DedupStore) Add(id string) {
	ds.mutex.Lock()
	defer ds.mutex.Unlock()
	ds.add(id)
}

// Load clears the set and records every non-empty id.
func (ds *DedupStore) Load(ids []string) {
	ds.mutex.Lock()
	defer ds.mutex.Unlock()

	ds.reset()
	for _, id := range ids {
		ds.add(id)
	}
}

// Filter returns the ids that are not yet in the set, in input order, and
// records them. Duplicates inside ids are returned once.
func (ds *DedupStore) Filter(ids []string) []string {
	ds.mutex.Lock()
	defer ds.mutex.Unlock()

	fresh := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if ds.bloom.TestString(id) {
			if _, exists := ds.ids[id]; exists {
				continue
			}
		}
		ds.add(id)
		fresh = append(fresh, id)
	}
	return fresh
}

// Size returns the number of ids currently held.
func (ds *DedupStore) Size() int {
	ds.mutex.RLock()
	defer ds.mutex.RUnlock()
	return len(ds.ids)
}

// Clear empties the set.
func (ds *DedupStore) Clear() {
	ds.mutex.Lock()
	defer ds.mutex.Unlock()
	ds.reset()
}

func (ds *DedupStore) add(id string) {
	if id == "" {
		return
	}
	if _, exists := ds.ids[id]; exists {
		return
	}

	ds.ids[id] = struct{}{}
	ds.bloom.AddString(id)
	ds.lru.Add(id, struct{}{})
}

func (ds *DedupStore) reset() {
	ds.lru.Purge()
	ds.ids = make(map[string]struct{})
	ds.bloom = bloom.NewWithEstimates(uint(ds.capacity), ds.falsePosRate)
}
