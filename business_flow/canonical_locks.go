package businessflow

import (
	"hash/fnv"
	"sync"
)

// Striped locks serializing writes per canonical id. Concurrent ingest of the
// same product must not interleave its upsert and observation append.
const canonicalLockStripes = 64

var canonicalLocks [canonicalLockStripes]sync.Mutex

func lockCanonical(canonicalID string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(canonicalID))
	m := &canonicalLocks[h.Sum32()%canonicalLockStripes]
	m.Lock()
	return m
}
