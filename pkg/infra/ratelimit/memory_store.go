package ratelimit

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/cinescope/aiguard/pkg/common"
	domain "github.com/cinescope/aiguard/pkg/domain/ratelimit"
	"github.com/sirupsen/logrus"
)

type memoryEntry struct {
	key     string
	count   int
	resetAt time.Time
	elem    *list.Element
}

// MemoryStore is a process-local fixed-window counter. Counts are never
// shared across instances, so it is only suitable for single-instance
// deployments; multi-instance setups must use the Redis store.
type MemoryStore struct {
	logger *logrus.Logger

	mu      sync.Mutex
	entries map[string]*memoryEntry
	lru     *list.List // front = most recently accessed

	maxEntries    int
	sweepInterval time.Duration

	startOnce sync.Once
	stopOnce  sync.Once
	done      chan struct{}
}

type MemoryStoreOpts struct {
	MaxEntries    int
	SweepInterval time.Duration
}

func NewMemoryStore(logger *logrus.Logger, opts *MemoryStoreOpts) *MemoryStore {
	maxEntries := common.DefaultMaxEntries
	sweepInterval := common.DefaultSweepInterval
	if opts != nil {
		if opts.MaxEntries > 0 {
			maxEntries = opts.MaxEntries
		}
		if opts.SweepInterval > 0 {
			sweepInterval = opts.SweepInterval
		}
	}
	return &MemoryStore{
		logger:        logger,
		entries:       make(map[string]*memoryEntry),
		lru:           list.New(),
		maxEntries:    maxEntries,
		sweepInterval: sweepInterval,
		done:          make(chan struct{}),
	}
}

func (s *MemoryStore) CheckAndIncrement(
	_ context.Context,
	key string,
	quota domain.Quota,
	now time.Time,
) (domain.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if ok && now.After(entry.resetAt) {
		s.removeLocked(entry)
		ok = false
	}

	if !ok {
		if len(s.entries) >= s.maxEntries {
			s.evictOldestLocked()
		}
		entry = &memoryEntry{
			key:     key,
			count:   1,
			resetAt: now.Add(quota.Window),
		}
		entry.elem = s.lru.PushFront(entry)
		s.entries[key] = entry
		return domain.Result{
			Allowed:   true,
			Limit:     quota.Limit,
			Remaining: quota.Limit - 1,
			ResetAt:   entry.resetAt,
		}, nil
	}

	s.lru.MoveToFront(entry.elem)

	if entry.count >= quota.Limit {
		return domain.Result{
			Allowed:   false,
			Limit:     quota.Limit,
			Remaining: 0,
			ResetAt:   entry.resetAt,
		}, nil
	}

	entry.count++
	return domain.Result{
		Allowed:   true,
		Limit:     quota.Limit,
		Remaining: quota.Limit - entry.count,
		ResetAt:   entry.resetAt,
	}, nil
}

// Start launches the periodic sweep that bounds memory growth from
// abandoned identities between accesses.
func (s *MemoryStore) Start() {
	s.startOnce.Do(func() {
		go s.sweepLoop()
	})
}

func (s *MemoryStore) Stop() error {
	s.stopOnce.Do(func() {
		close(s.done)
	})
	return nil
}

func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *MemoryStore) sweepLoop() {
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			removed := s.sweep(time.Now())
			if removed > 0 {
				s.logger.WithField("removed", removed).Debug("rate limit sweep evicted expired entries")
			}
		case <-s.done:
			return
		}
	}
}

func (s *MemoryStore) sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for _, entry := range s.entries {
		if now.After(entry.resetAt) {
			s.removeLocked(entry)
			removed++
		}
	}
	return removed
}

func (s *MemoryStore) removeLocked(entry *memoryEntry) {
	s.lru.Remove(entry.elem)
	delete(s.entries, entry.key)
}

func (s *MemoryStore) evictOldestLocked() {
	back := s.lru.Back()
	if back == nil {
		return
	}
	entry, ok := back.Value.(*memoryEntry)
	if !ok {
		return
	}
	s.removeLocked(entry)
}
