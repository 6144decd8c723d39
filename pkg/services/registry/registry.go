package registry

import (
	"fmt"
	"sync"
	"time"

	"github.com/mportillo/dealerd/internal/logging"
	"github.com/mportillo/dealerd/internal/types"
	"github.com/mportillo/dealerd/pkg/entities"
	"github.com/mportillo/dealerd/pkg/services/blackjack"
	"github.com/mportillo/dealerd/pkg/token"
)

// Registry maps player identity to session and enforces at most one
// live session per player. It is the single point of session creation,
// replacement, and destruction.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*blackjack.Session
	active   map[string]bool

	sink         blackjack.CompletionSink
	entryFee     int64
	releaseDelay time.Duration
	logger       *logging.Logger
}

// New creates a session registry. Completed sessions are handed to sink
// and their active-marker is released releaseDelay after completion, so
// late in-flight requests against a finished session are rejected
// deterministically instead of racing a fresh create.
func New(sink blackjack.CompletionSink, entryFee int64, releaseDelay time.Duration, logger *logging.Logger) *Registry {
	if logger == nil {
		logger = logging.Default
	}
	return &Registry{
		sessions:     make(map[string]*blackjack.Session),
		active:       make(map[string]bool),
		sink:         sink,
		entryFee:     entryFee,
		releaseDelay: releaseDelay,
		logger:       logger,
	}
}

// Get returns the session for a player, if any
func (r *Registry) Get(playerID string) (*blackjack.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, exists := r.sessions[playerID]
	return session, exists
}

// CreateFor creates a new session for the player. The active-set
// check-and-insert is atomic: of two concurrent creates for the same
// player, exactly one succeeds and the other observes
// SESSION_ALREADY_ACTIVE.
func (r *Registry) CreateFor(playerID string) (*blackjack.Session, error) {
	if !token.ValidAccountID(playerID) {
		return nil, types.NewGameError(types.ErrInvalidIdentity,
			fmt.Sprintf("malformed player identity %q", playerID))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active[playerID] {
		return nil, types.NewGameError(types.ErrSessionAlreadyActive,
			fmt.Sprintf("player %s already has a live session", playerID))
	}

	session := r.createLocked(playerID)
	return session, nil
}

// Replace atomically removes any existing session and active-marker for
// the player and creates a fresh one, so a stuck or abandoned session
// can always be superseded.
func (r *Registry) Replace(playerID string) (*blackjack.Session, error) {
	if !token.ValidAccountID(playerID) {
		return nil, types.NewGameError(types.ErrInvalidIdentity,
			fmt.Sprintf("malformed player identity %q", playerID))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, playerID)
	delete(r.active, playerID)

	session := r.createLocked(playerID)
	return session, nil
}

// createLocked builds the session and installs it under the lock. The
// wrapped sink schedules the delayed release on completion.
func (r *Registry) createLocked(playerID string) *blackjack.Session {
	session := blackjack.NewSession(playerID, r.entryFee, &releaseSink{registry: r, next: r.sink})
	r.sessions[playerID] = session
	r.active[playerID] = true

	r.logger.Info("session %s created for player %s (state=%s)", session.ID, playerID, session.State())
	return session
}

// Release removes the active-marker for the player. The session object
// stays queryable until the next create overwrites it, so late requests
// observe completed=true rather than a missing session.
func (r *Registry) Release(playerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.active, playerID)
}

// releaseIfCurrent removes the active-marker only while the completed
// session is still the installed one. A release scheduled before a
// Replace must not clear the replacement's marker.
func (r *Registry) releaseIfCurrent(playerID, sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if session, exists := r.sessions[playerID]; exists && session.ID == sessionID {
		delete(r.active, playerID)
	}
}

// Summary describes the registry contents for introspection
type Summary struct {
	ActivePlayers int                `json:"active_players"`
	Sessions      []*SessionOverview `json:"sessions"`
}

// SessionOverview is one registry row in the introspection dump
type SessionOverview struct {
	PlayerID  string                `json:"player_id"`
	SessionID string                `json:"session_id"`
	State     entities.SessionState `json:"state"`
	Completed bool                  `json:"completed"`
	Active    bool                  `json:"active"`
}

// Snapshot returns the registry summary for introspection
func (r *Registry) Snapshot() *Summary {
	r.mu.Lock()
	defer r.mu.Unlock()

	summary := &Summary{
		ActivePlayers: len(r.active),
		Sessions:      make([]*SessionOverview, 0, len(r.sessions)),
	}
	for playerID, session := range r.sessions {
		summary.Sessions = append(summary.Sessions, &SessionOverview{
			PlayerID:  playerID,
			SessionID: session.ID,
			State:     session.State(),
			Completed: session.Completed(),
			Active:    r.active[playerID],
		})
	}
	return summary
}

// releaseSink forwards completions downstream and schedules the delayed
// active-marker release
type releaseSink struct {
	registry *Registry
	next     blackjack.CompletionSink
}

func (s *releaseSink) SessionCompleted(playerID, sessionID string, result entities.Result) {
	if s.next != nil {
		s.next.SessionCompleted(playerID, sessionID, result)
	}
	time.AfterFunc(s.registry.releaseDelay, func() {
		s.registry.releaseIfCurrent(playerID, sessionID)
	})
}
