package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/mportillo/dealerd/pkg/entities"
)

var (
	ErrEntryNotFound = errors.New("completed entry not found")
	ErrDedupNotFound = errors.New("dedup record not found")
)

// Repository defines the interface for ledger and dedup data operations.
// The reward coordinator is the only writer; the retention sweeper is
// the only deleter.
type Repository interface {
	// AppendCompleted records a terminal session outcome. Appending an
	// entry that already exists is a no-op.
	AppendCompleted(ctx context.Context, entry *entities.CompletedEntry) error

	// GetCompleted retrieves a completed entry by session ID
	GetCompleted(ctx context.Context, sessionID string) (*entities.CompletedEntry, error)

	// SetProcessed updates the processed flag of a completed entry
	SetProcessed(ctx context.Context, sessionID string, processed bool) error

	// InsertDedupIfAbsent atomically inserts a dedup record unless one
	// already exists for the same (player, session) key. Returns true
	// only for the caller that performed the insertion.
	InsertDedupIfAbsent(ctx context.Context, record *entities.RewardDedupRecord) (bool, error)

	// GetDedup retrieves a dedup record by (player, session) key
	GetDedup(ctx context.Context, playerID, sessionID string) (*entities.RewardDedupRecord, error)

	// SetDedupStatus updates the status of an existing dedup record
	SetDedupStatus(ctx context.Context, playerID, sessionID string, status entities.DedupStatus) error

	// ListCompleted returns all completed entries, for introspection
	ListCompleted(ctx context.Context) ([]*entities.CompletedEntry, error)

	// ListCompletedBefore returns completed entries created before the cutoff
	ListCompletedBefore(ctx context.Context, cutoff time.Time) ([]*entities.CompletedEntry, error)

	// ListDedup returns all dedup records, for introspection
	ListDedup(ctx context.Context) ([]*entities.RewardDedupRecord, error)

	// PurgeCompletedBefore removes completed entries created before the
	// cutoff, returning the number removed. Age is the only criterion.
	PurgeCompletedBefore(ctx context.Context, cutoff time.Time) (int, error)

	// PurgeDedupBefore removes dedup records created before the cutoff,
	// returning the number removed. Status is not consulted.
	PurgeDedupBefore(ctx context.Context, cutoff time.Time) (int, error)
}
