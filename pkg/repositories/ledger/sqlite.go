package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/mportillo/dealerd/pkg/entities"
)

// SQLite table schemas
const (
	createCompletedTableSQL = `
	CREATE TABLE IF NOT EXISTS completed_sessions (
		session_id TEXT PRIMARY KEY,
		player_id TEXT NOT NULL,
		result TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		processed INTEGER NOT NULL DEFAULT 0
	)`

	createDedupTableSQL = `
	CREATE TABLE IF NOT EXISTS reward_dedup (
		player_id TEXT NOT NULL,
		session_id TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		PRIMARY KEY (player_id, session_id)
	)`

	createLedgerIndexesSQL = `
	CREATE INDEX IF NOT EXISTS idx_completed_created_at ON completed_sessions(created_at);
	CREATE INDEX IF NOT EXISTS idx_dedup_created_at ON reward_dedup(created_at)
	`
)

// SQLiteRepository implements Repository using SQLite
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite ledger repository
func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	// Ensure directory exists
	dbDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return nil, fmt.Errorf("error creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	if _, err := db.Exec(createCompletedTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("error creating completed_sessions table: %w", err)
	}

	if _, err := db.Exec(createDedupTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("error creating reward_dedup table: %w", err)
	}

	if _, err := db.Exec(createLedgerIndexesSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("error creating ledger indexes: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

// Close closes the underlying database
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

// AppendCompleted records a terminal session outcome
func (r *SQLiteRepository) AppendCompleted(ctx context.Context, entry *entities.CompletedEntry) error {
	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	query := `INSERT OR IGNORE INTO completed_sessions (session_id, player_id, result, created_at, processed)
		VALUES (?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query, entry.SessionID, entry.PlayerID, string(entry.Result), createdAt, boolToInt(entry.Processed))
	if err != nil {
		return fmt.Errorf("error inserting completed entry: %w", err)
	}
	return nil
}

// GetCompleted retrieves a completed entry by session ID
func (r *SQLiteRepository) GetCompleted(ctx context.Context, sessionID string) (*entities.CompletedEntry, error) {
	query := `SELECT session_id, player_id, result, created_at, processed FROM completed_sessions WHERE session_id = ?`

	var entry entities.CompletedEntry
	var result string
	var processed int
	err := r.db.QueryRowContext(ctx, query, sessionID).Scan(&entry.SessionID, &entry.PlayerID, &result, &entry.CreatedAt, &processed)
	if err == sql.ErrNoRows {
		return nil, ErrEntryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error querying completed entry: %w", err)
	}

	entry.Result = entities.Result(result)
	entry.Processed = processed != 0
	return &entry, nil
}

// SetProcessed updates the processed flag of a completed entry
func (r *SQLiteRepository) SetProcessed(ctx context.Context, sessionID string, processed bool) error {
	query := `UPDATE completed_sessions SET processed = ? WHERE session_id = ?`
	res, err := r.db.ExecContext(ctx, query, boolToInt(processed), sessionID)
	if err != nil {
		return fmt.Errorf("error updating processed flag: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error reading rows affected: %w", err)
	}
	if affected == 0 {
		return ErrEntryNotFound
	}
	return nil
}

// InsertDedupIfAbsent atomically inserts a dedup record unless one
// already exists for the key
func (r *SQLiteRepository) InsertDedupIfAbsent(ctx context.Context, record *entities.RewardDedupRecord) (bool, error) {
	createdAt := record.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	query := `INSERT OR IGNORE INTO reward_dedup (player_id, session_id, status, created_at)
		VALUES (?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, query, record.PlayerID, record.SessionID, string(record.Status), createdAt)
	if err != nil {
		return false, fmt.Errorf("error inserting dedup record: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("error reading rows affected: %w", err)
	}
	return affected > 0, nil
}

// GetDedup retrieves a dedup record by (player, session) key
func (r *SQLiteRepository) GetDedup(ctx context.Context, playerID, sessionID string) (*entities.RewardDedupRecord, error) {
	query := `SELECT player_id, session_id, status, created_at FROM reward_dedup WHERE player_id = ? AND session_id = ?`

	var record entities.RewardDedupRecord
	var status string
	err := r.db.QueryRowContext(ctx, query, playerID, sessionID).Scan(&record.PlayerID, &record.SessionID, &status, &record.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrDedupNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error querying dedup record: %w", err)
	}

	record.Status = entities.DedupStatus(status)
	return &record, nil
}

// SetDedupStatus updates the status of an existing dedup record
func (r *SQLiteRepository) SetDedupStatus(ctx context.Context, playerID, sessionID string, status entities.DedupStatus) error {
	query := `UPDATE reward_dedup SET status = ? WHERE player_id = ? AND session_id = ?`
	res, err := r.db.ExecContext(ctx, query, string(status), playerID, sessionID)
	if err != nil {
		return fmt.Errorf("error updating dedup status: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error reading rows affected: %w", err)
	}
	if affected == 0 {
		return ErrDedupNotFound
	}
	return nil
}

// ListCompleted returns all completed entries
func (r *SQLiteRepository) ListCompleted(ctx context.Context) ([]*entities.CompletedEntry, error) {
	return r.queryCompleted(ctx, `SELECT session_id, player_id, result, created_at, processed FROM completed_sessions`)
}

// ListCompletedBefore returns completed entries created before the cutoff
func (r *SQLiteRepository) ListCompletedBefore(ctx context.Context, cutoff time.Time) ([]*entities.CompletedEntry, error) {
	return r.queryCompleted(ctx, `SELECT session_id, player_id, result, created_at, processed FROM completed_sessions WHERE created_at < ?`, cutoff)
}

func (r *SQLiteRepository) queryCompleted(ctx context.Context, query string, args ...interface{}) ([]*entities.CompletedEntry, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying completed entries: %w", err)
	}
	defer rows.Close()

	entries := make([]*entities.CompletedEntry, 0)
	for rows.Next() {
		var entry entities.CompletedEntry
		var result string
		var processed int
		if err := rows.Scan(&entry.SessionID, &entry.PlayerID, &result, &entry.CreatedAt, &processed); err != nil {
			return nil, fmt.Errorf("error scanning completed entry: %w", err)
		}
		entry.Result = entities.Result(result)
		entry.Processed = processed != 0
		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}

// ListDedup returns all dedup records
func (r *SQLiteRepository) ListDedup(ctx context.Context) ([]*entities.RewardDedupRecord, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT player_id, session_id, status, created_at FROM reward_dedup`)
	if err != nil {
		return nil, fmt.Errorf("error querying dedup records: %w", err)
	}
	defer rows.Close()

	records := make([]*entities.RewardDedupRecord, 0)
	for rows.Next() {
		var record entities.RewardDedupRecord
		var status string
		if err := rows.Scan(&record.PlayerID, &record.SessionID, &status, &record.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning dedup record: %w", err)
		}
		record.Status = entities.DedupStatus(status)
		records = append(records, &record)
	}
	return records, rows.Err()
}

// PurgeCompletedBefore removes completed entries older than the cutoff
func (r *SQLiteRepository) PurgeCompletedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM completed_sessions WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("error purging completed entries: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("error reading rows affected: %w", err)
	}
	return int(affected), nil
}

// PurgeDedupBefore removes dedup records older than the cutoff
func (r *SQLiteRepository) PurgeDedupBefore(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM reward_dedup WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("error purging dedup records: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("error reading rows affected: %w", err)
	}
	return int(affected), nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
