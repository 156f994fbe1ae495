package handler

import "sync"

const lockShards = 64

// userLocks serializes state-changing commands per user. Commands run on
// their own goroutines, so without this a double-clicked move could
// interleave its interrupt with the new walk. Sharded so the footprint
// stays flat no matter how many users are online; a collision just
// serializes two unrelated users for a moment.
type userLocks struct {
	shards [lockShards]sync.Mutex
}

// lock takes the user's shard and returns the unlock.
func (l *userLocks) lock(userID int64) func() {
	m := &l.shards[uint64(userID)%lockShards]
	m.Lock()
	return m.Unlock
}
