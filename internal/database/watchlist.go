package database

import (
	"slices"
	"sync"

	"moviebox/internal/metrics"
)

// WatchlistRepository keeps per-user watchlists in process memory. Entries are
// lost on restart.
type WatchlistRepository struct {
	mu    sync.RWMutex
	items map[string][]string
}

func NewWatchlistRepository() *WatchlistRepository {
	return &WatchlistRepository{items: make(map[string][]string)}
}

// Get returns a copy of the user's items; unknown users get an empty list.
func (r *WatchlistRepository) Get(userID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	items := r.items[userID]
	out := make([]string, len(items))
	copy(out, items)
	return out
}

// Add appends itemID unless the user already has it and returns the
// resulting list. The membership check and append happen under one lock.
func (r *WatchlistRepository) Add(userID, itemID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	items, exists := r.items[userID]
	if !slices.Contains(items, itemID) {
		items = append(items, itemID)
		r.items[userID] = items
	}
	if !exists {
		metrics.WatchlistUsers.Set(float64(len(r.items)))
	}

	out := make([]string, len(items))
	copy(out, items)
	return out
}

// Users returns the number of users with a watchlist.
func (r *WatchlistRepository) Users() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}
