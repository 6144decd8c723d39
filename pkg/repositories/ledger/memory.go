package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/mportillo/dealerd/pkg/entities"
)

// MemoryRepository implements Repository using in-memory storage. This
// is the default store; ledger state does not survive process restarts.
type MemoryRepository struct {
	completed map[string]*entities.CompletedEntry
	dedup     map[string]*entities.RewardDedupRecord
	mu        sync.RWMutex
}

// NewMemoryRepository creates a new in-memory ledger repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		completed: make(map[string]*entities.CompletedEntry),
		dedup:     make(map[string]*entities.RewardDedupRecord),
	}
}

// AppendCompleted records a terminal session outcome
func (r *MemoryRepository) AppendCompleted(ctx context.Context, entry *entities.CompletedEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.completed[entry.SessionID]; exists {
		return nil
	}

	entryCopy := *entry
	if entryCopy.CreatedAt.IsZero() {
		entryCopy.CreatedAt = time.Now()
	}
	r.completed[entry.SessionID] = &entryCopy

	return nil
}

// GetCompleted retrieves a completed entry by session ID
func (r *MemoryRepository) GetCompleted(ctx context.Context, sessionID string) (*entities.CompletedEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, exists := r.completed[sessionID]
	if !exists {
		return nil, ErrEntryNotFound
	}

	// Return a copy to prevent concurrent modification
	entryCopy := *entry
	return &entryCopy, nil
}

// SetProcessed updates the processed flag of a completed entry
func (r *MemoryRepository) SetProcessed(ctx context.Context, sessionID string, processed bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, exists := r.completed[sessionID]
	if !exists {
		return ErrEntryNotFound
	}

	entry.Processed = processed
	return nil
}

// InsertDedupIfAbsent atomically inserts a dedup record unless one
// already exists for the key
func (r *MemoryRepository) InsertDedupIfAbsent(ctx context.Context, record *entities.RewardDedupRecord) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := record.Key()
	if _, exists := r.dedup[key]; exists {
		return false, nil
	}

	recordCopy := *record
	if recordCopy.CreatedAt.IsZero() {
		recordCopy.CreatedAt = time.Now()
	}
	r.dedup[key] = &recordCopy

	return true, nil
}

// GetDedup retrieves a dedup record by (player, session) key
func (r *MemoryRepository) GetDedup(ctx context.Context, playerID, sessionID string) (*entities.RewardDedupRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, exists := r.dedup[entities.DedupKey(playerID, sessionID)]
	if !exists {
		return nil, ErrDedupNotFound
	}

	recordCopy := *record
	return &recordCopy, nil
}

// SetDedupStatus updates the status of an existing dedup record
func (r *MemoryRepository) SetDedupStatus(ctx context.Context, playerID, sessionID string, status entities.DedupStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, exists := r.dedup[entities.DedupKey(playerID, sessionID)]
	if !exists {
		return ErrDedupNotFound
	}

	record.Status = status
	return nil
}

// ListCompleted returns all completed entries
func (r *MemoryRepository) ListCompleted(ctx context.Context) ([]*entities.CompletedEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]*entities.CompletedEntry, 0, len(r.completed))
	for _, entry := range r.completed {
		entryCopy := *entry
		entries = append(entries, &entryCopy)
	}
	return entries, nil
}

// ListCompletedBefore returns completed entries created before the cutoff
func (r *MemoryRepository) ListCompletedBefore(ctx context.Context, cutoff time.Time) ([]*entities.CompletedEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]*entities.CompletedEntry, 0)
	for _, entry := range r.completed {
		if entry.CreatedAt.Before(cutoff) {
			entryCopy := *entry
			entries = append(entries, &entryCopy)
		}
	}
	return entries, nil
}

// ListDedup returns all dedup records
func (r *MemoryRepository) ListDedup(ctx context.Context) ([]*entities.RewardDedupRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	records := make([]*entities.RewardDedupRecord, 0, len(r.dedup))
	for _, record := range r.dedup {
		recordCopy := *record
		records = append(records, &recordCopy)
	}
	return records, nil
}

// PurgeCompletedBefore removes completed entries older than the cutoff
func (r *MemoryRepository) PurgeCompletedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	purged := 0
	for sessionID, entry := range r.completed {
		if entry.CreatedAt.Before(cutoff) {
			delete(r.completed, sessionID)
			purged++
		}
	}
	return purged, nil
}

// PurgeDedupBefore removes dedup records older than the cutoff
func (r *MemoryRepository) PurgeDedupBefore(ctx context.Context, cutoff time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	purged := 0
	for key, record := range r.dedup {
		if record.CreatedAt.Before(cutoff) {
			delete(r.dedup, key)
			purged++
		}
	}
	return purged, nil
}
