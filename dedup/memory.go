package dedup

import (
	"context"
	"sync"
)

// MemoryMarker keeps the markers in process memory behind a mutex.
// Meant for tests and single node runs where redis isnt available -
// the marker then does not survive a restart, redeliveries after a
// restart will be processed again.
type MemoryMarker struct {
	mu     sync.Mutex
	latest map[string]int64
}

func NewMemoryMarker() *MemoryMarker {
	return &MemoryMarker{latest: map[string]int64{}}
}

func (mm *MemoryMarker) ShouldProcess(_ context.Context, bot string, updateID int64) (bool, error) {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	cur, ok := mm.latest[bot]
	if !ok {
		cur = -1 // missing record behaves as the first ever update, same as the redis script
	}
	if updateID > cur {
		mm.latest[bot] = updateID
		return true, nil
	}
	return false, nil
}

// Latest : current marker value of the bot, second return is false when no update was seen yet
func (mm *MemoryMarker) Latest(bot string) (int64, bool) {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	cur, ok := mm.latest[bot]
	return cur, ok
}
