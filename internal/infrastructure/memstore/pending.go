// Package memstore holds pending payment intents in memory. The process is
// the system of record for the window between prompt and callback; anything
// the user never confirms is reclaimed by the TTL sweep.
package memstore

import (
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jmwangi/pesalink-gateway/internal/domain"
)

const shardCount = 32

type shard struct {
	mu      sync.Mutex
	intents map[string]*domain.PaymentIntent
}

// Stats are cumulative operation counters, read by the sweep worker's
// periodic log line.
type Stats struct {
	Put     uint64
	Rekeyed uint64
	Taken   uint64
	Swept   uint64
}

// PendingStore is a sharded in-memory map from correlation key to payment
// intent. Keys hash to shards so unrelated keys never contend on one lock.
type PendingStore struct {
	shards [shardCount]*shard

	put     atomic.Uint64
	rekeyed atomic.Uint64
	taken   atomic.Uint64
	swept   atomic.Uint64
}

func NewPendingStore() *PendingStore {
	s := &PendingStore{}
	for i := range s.shards {
		s.shards[i] = &shard{intents: make(map[string]*domain.PaymentIntent)}
	}
	return s
}

func (s *PendingStore) shardIndex(key string) int {
	h := fnv.New32a()
	h.Write([]byte(key))
	return int(h.Sum32() % shardCount)
}

// Put records an intent under key, replacing any record already there.
func (s *PendingStore) Put(key string, intent *domain.PaymentIntent) {
	sh := s.shards[s.shardIndex(key)]
	sh.mu.Lock()
	sh.intents[key] = intent
	sh.mu.Unlock()
	s.put.Add(1)
}

// Rekey atomically retires oldKey and rebinds the record under newKey with
// its state advanced to AwaitingCallback. A callback racing this call finds
// the record under exactly one of the two keys, never both and never
// neither. Returns false if oldKey held nothing (already taken or swept).
func (s *PendingStore) Rekey(oldKey, newKey string) bool {
	oldIdx, newIdx := s.shardIndex(oldKey), s.shardIndex(newKey)

	// Lock in index order so concurrent cross-shard moves cannot deadlock.
	if oldIdx == newIdx {
		sh := s.shards[oldIdx]
		sh.mu.Lock()
		defer sh.mu.Unlock()
	} else if oldIdx < newIdx {
		s.shards[oldIdx].mu.Lock()
		defer s.shards[oldIdx].mu.Unlock()
		s.shards[newIdx].mu.Lock()
		defer s.shards[newIdx].mu.Unlock()
	} else {
		s.shards[newIdx].mu.Lock()
		defer s.shards[newIdx].mu.Unlock()
		s.shards[oldIdx].mu.Lock()
		defer s.shards[oldIdx].mu.Unlock()
	}

	intent, ok := s.shards[oldIdx].intents[oldKey]
	if !ok {
		return false
	}
	delete(s.shards[oldIdx].intents, oldKey)

	intent.CorrelationKey = newKey
	intent.State = domain.StateAwaitingCallback
	s.shards[newIdx].intents[newKey] = intent

	s.rekeyed.Add(1)
	return true
}

// TakeIfPresent removes and returns the record under key. Reading and
// removing under one lock is what makes downstream processing at-most-once:
// a duplicate callback finds nothing.
func (s *PendingStore) TakeIfPresent(key string) (*domain.PaymentIntent, bool) {
	sh := s.shards[s.shardIndex(key)]
	sh.mu.Lock()
	intent, ok := sh.intents[key]
	if ok {
		delete(sh.intents, key)
	}
	sh.mu.Unlock()

	if !ok {
		return nil, false
	}
	s.taken.Add(1)
	return intent, true
}

// SweepExpired silently reclaims records older than maxAge and returns how
// many were removed. Expiry is housekeeping only; no caller ever sees it as
// an error.
func (s *PendingStore) SweepExpired(maxAge time.Duration) int {
	now := time.Now()
	removed := 0

	for _, sh := range s.shards {
		sh.mu.Lock()
		for key, intent := range sh.intents {
			if intent.ExpiredAt(now, maxAge) {
				delete(sh.intents, key)
				removed++
			}
		}
		sh.mu.Unlock()
	}

	s.swept.Add(uint64(removed))
	return removed
}

// Len returns the number of live records across all shards.
func (s *PendingStore) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		n += len(sh.intents)
		sh.mu.Unlock()
	}
	return n
}

func (s *PendingStore) Stats() Stats {
	return Stats{
		Put:     s.put.Load(),
		Rekeyed: s.rekeyed.Load(),
		Taken:   s.taken.Load(),
		Swept:   s.swept.Load(),
	}
}
