package services

import "sync"

type blockKey struct {
	siteID  string
	blockID string
}

type blockLock struct {
	mu   sync.Mutex
	refs int
}

// BlockLocks serializes work per (site, block). Different blocks never contend,
// and entries are dropped once no caller holds or waits on them.
type BlockLocks struct {
	mu    sync.Mutex
	locks map[blockKey]*blockLock
}

// NewBlockLocks creates an empty lock table
func NewBlockLocks() *BlockLocks {
	return &BlockLocks{locks: make(map[blockKey]*blockLock)}
}

// Lock blocks until the caller owns (siteID, blockID) and returns the release func.
func (l *BlockLocks) Lock(siteID, blockID string) (unlock func()) {
	key := blockKey{siteID: siteID, blockID: blockID}

	l.mu.Lock()
	bl, ok := l.locks[key]
	if !ok {
		bl = &blockLock{}
		l.locks[key] = bl
	}
	bl.refs++
	l.mu.Unlock()

	bl.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			bl.mu.Unlock()

			l.mu.Lock()
			bl.refs--
			if bl.refs == 0 {
				delete(l.locks, key)
			}
			l.mu.Unlock()
		})
	}
}

// Len reports how many blocks currently have a holder or waiter
func (l *BlockLocks) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
