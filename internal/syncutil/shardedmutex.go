package syncutil

import (
	"encoding/binary"
	"hash/fnv"
	"sync"
)

// ShardedMutex provides a fixed-size pool of mutexes keyed by int64 id.
// Unlike sync.Map-based per-key locks, this uses bounded memory regardless
// of how many ids are seen, at the cost of occasional false sharing between
// ids that hash to the same shard.
type ShardedMutex struct {
	shards [256]sync.Mutex
}

// Lock acquires the mutex for the given id and returns an unlock function.
func (s *ShardedMutex) Lock(id int64) func() {
	mu := s.shard(id)
	mu.Lock()
	return mu.Unlock
}

func (s *ShardedMutex) shard(id int64) *sync.Mutex {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(id))
	h := fnv.New32a()
	_, _ = h.Write(buf[:])
	return &s.shards[h.Sum32()%256]
}
