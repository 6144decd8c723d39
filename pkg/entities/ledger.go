package entities

import "time"

// CompletedEntry records the terminal outcome of a session, keyed by
// session ID. Created exactly once when the session reaches GAME_ENDED.
// Processed is mutated only by the reward coordinator.
type CompletedEntry struct {
	SessionID string
	PlayerID  string
	Result    Result
	CreatedAt time.Time
	Processed bool
}

// DedupStatus represents the lifecycle of a payout attempt
type DedupStatus string

const (
	DedupPending   DedupStatus = "PENDING"
	DedupCompleted DedupStatus = "COMPLETED"
	DedupFailed    DedupStatus = "FAILED"
)

// RewardDedupRecord guards against duplicate payout issuance for a
// (player, session) pair. Created on the first payout attempt and never
// recreated for the same key. Status moves pending->completed or
// pending->failed; a failed record still blocks re-issuance.
type RewardDedupRecord struct {
	PlayerID  string
	SessionID string
	Status    DedupStatus
	CreatedAt time.Time
}

// DedupKey builds the map key for a (player, session) pair
func DedupKey(playerID, sessionID string) string {
	return playerID + ":" + sessionID
}

// Key returns the record's dedup key
func (r *RewardDedupRecord) Key() string {
	return DedupKey(r.PlayerID, r.SessionID)
}
