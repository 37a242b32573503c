package hostapi

import (
	"errors"
	"sort"
	"strings"
	"sync"
)

// DefaultCollection is used when a collection name is empty.
const DefaultCollection = "favorites"

// MemoryFavorites is a Favorites kept in memory.
type MemoryFavorites struct {
	mu          sync.RWMutex
	collections map[string][]string
}

// NewMemoryFavorites creates an empty store.
func NewMemoryFavorites() *MemoryFavorites {
	return &MemoryFavorites{collections: make(map[string][]string)}
}

func collectionName(c string) string {
	if c = strings.TrimSpace(c); c == "" {
		return DefaultCollection
	}
	return c
}

// AddFavorite appends ref to collection. Duplicates are ignored.
func (f *MemoryFavorites) AddFavorite(collection, ref string) error {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return errors.New("empty verse reference")
	}
	collection = collectionName(collection)

	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.collections[collection] {
		if existing == ref {
			return nil
		}
	}
	f.collections[collection] = append(f.collections[collection], ref)
	return nil
}

// RemoveFavorite removes ref from collection.
func (f *MemoryFavorites) RemoveFavorite(collection, ref string) error {
	collection = collectionName(collection)

	f.mu.Lock()
	defer f.mu.Unlock()
	refs := f.collections[collection]
	for i, existing := range refs {
		if existing == ref {
			f.collections[collection] = append(refs[:i], refs[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

// Favorites returns the references in collection in insertion order.
func (f *MemoryFavorites) Favorites(collection string) []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]string(nil), f.collections[collectionName(collection)]...)
}

// Collections returns the non-empty collection names, sorted.
func (f *MemoryFavorites) Collections() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	names := make([]string, 0, len(f.collections))
	for name, refs := range f.collections {
		if len(refs) > 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
