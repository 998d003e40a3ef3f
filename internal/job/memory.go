package job

import (
	"context"
	"sync"
	"time"
)

// Compile-time check that MemoryRepository implements Repository.
var _ Repository = (*MemoryRepository)(nil)

// MemoryRepository keeps jobs in a process-local map guarded by a RWMutex.
// Jobs are lost on restart; use RedisRepository when they must survive one.
type MemoryRepository struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

type memoryEntry struct {
	job     *Job
	savedAt time.Time
}

// MemoryOption configures a MemoryRepository.
type MemoryOption func(*MemoryRepository)

// WithTTL expires a job once ttl has passed since its last Save, matching
// the key expiry RedisRepository applies. Zero keeps jobs forever.
func WithTTL(ttl time.Duration) MemoryOption {
	return func(r *MemoryRepository) {
		r.ttl = ttl
	}
}

// withClock replaces time.Now in tests.
func withClock(now func() time.Time) MemoryOption {
	return func(r *MemoryRepository) {
		r.now = now
	}
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository(opts ...MemoryOption) *MemoryRepository {
	r := &MemoryRepository{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Save stores a clone of job, resetting its expiry.
func (r *MemoryRepository) Save(_ context.Context, job *Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[job.ID] = memoryEntry{job: job.Clone(), savedAt: r.now()}
	return nil
}

// FindByID returns a clone of the stored job.
func (r *MemoryRepository) FindByID(_ context.Context, id string) (*Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.live(id)
	if !ok {
		return nil, ErrJobNotFound
	}
	return entry.job.Clone(), nil
}

// List returns clones of all live jobs, oldest first.
func (r *MemoryRepository) List(_ context.Context) ([]*Job, error) {
	r.mu.Lock()
	result := make([]*Job, 0, len(r.entries))
	for id := range r.entries {
		if entry, ok := r.live(id); ok {
			result = append(result, entry.job.Clone())
		}
	}
	r.mu.Unlock()

	sortByCreation(result)
	return result, nil
}

// Delete removes a job from storage.
func (r *MemoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.live(id); !ok {
		return ErrJobNotFound
	}
	delete(r.entries, id)
	return nil
}

// live looks up id and evicts it when expired. Callers hold the write lock.
func (r *MemoryRepository) live(id string) (memoryEntry, bool) {
	entry, ok := r.entries[id]
	if !ok {
		return memoryEntry{}, false
	}
	if r.ttl > 0 && r.now().Sub(entry.savedAt) >= r.ttl {
		delete(r.entries, id)
		return memoryEntry{}, false
	}
	return entry, true
}
