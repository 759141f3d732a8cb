package dataloader

import (
	"container/list"
	"fmt"
	"sync"
)

// CacheManager keeps decoded images in memory with LRU eviction so repeated
// epochs do not re-decode the whole dataset.
type CacheManager struct {
	mu       sync.Mutex
	maxItems int
	items    map[string]*list.Element
	order    *list.List

	hits   int
	misses int
}

type cacheEntry struct {
	key  string
	data []float32
}

// NewCacheManager creates a cache holding at most maxItems decoded images.
func NewCacheManager(maxItems int) *CacheManager {
	if maxItems <= 0 {
		maxItems = 1000
	}
	return &CacheManager{
		maxItems: maxItems,
		items:    make(map[string]*list.Element),
		order:    list.New(),
	}
}

// Get returns the cached data for key, if present.
func (cm *CacheManager) Get(key string) ([]float32, bool) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	elem, ok := cm.items[key]
	if !ok {
		cm.misses++
		return nil, false
	}
	cm.order.MoveToFront(elem)
	cm.hits++
	return elem.Value.(*cacheEntry).data, true
}

// Put stores data for key, evicting the least recently used entry if the
// cache is full.
func (cm *CacheManager) Put(key string, data []float32) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if elem, ok := cm.items[key]; ok {
		cm.order.MoveToFront(elem)
		elem.Value.(*cacheEntry).data = data
		return
	}

	if cm.order.Len() >= cm.maxItems {
		oldest := cm.order.Back()
		if oldest != nil {
			cm.order.Remove(oldest)
			delete(cm.items, oldest.Value.(*cacheEntry).key)
		}
	}

	cm.items[key] = cm.order.PushFront(&cacheEntry{key: key, data: data})
}

// Len returns the number of cached images.
func (cm *CacheManager) Len() int {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return cm.order.Len()
}

// Stats returns a human-readable hit/miss summary.
func (cm *CacheManager) Stats() string {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	total := cm.hits + cm.misses
	if total == 0 {
		return "cache: empty"
	}
	return fmt.Sprintf("cache: %d items, %d hits, %d misses (%.1f%% hit rate)",
		cm.order.Len(), cm.hits, cm.misses, float64(cm.hits)/float64(total)*100.0)
}
