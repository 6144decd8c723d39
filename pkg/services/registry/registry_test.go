package registry

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mportillo/dealerd/internal/types"
	"github.com/mportillo/dealerd/pkg/entities"
	"github.com/mportillo/dealerd/pkg/services/blackjack"
)

// countingSink records downstream completion notifications
type countingSink struct {
	mu    sync.Mutex
	calls int
}

func (c *countingSink) SessionCompleted(playerID, sessionID string, result entities.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
}

func (c *countingSink) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

type RegistryTestSuite struct {
	suite.Suite
	registry *Registry
	sink     *countingSink
}

func TestRegistrySuite(t *testing.T) {
	suite.Run(t, new(RegistryTestSuite))
}

func (s *RegistryTestSuite) SetupTest() {
	s.sink = &countingSink{}
	// A long release delay keeps randomly dealt naturals from clearing
	// the active marker mid-test.
	s.registry = New(s.sink, 10, 5*time.Second, nil)
}

// createLive creates a session that has not already completed via a
// randomly dealt natural
func (s *RegistryTestSuite) createLive(r *Registry, playerID string) *blackjack.Session {
	for i := 0; i < 100; i++ {
		session, err := r.Replace(playerID)
		s.Require().NoError(err)
		if !session.Completed() {
			return session
		}
	}
	s.FailNow("could not deal a non-natural session")
	return nil
}

func (s *RegistryTestSuite) TestCreateFor() {
	// Execute
	session, err := s.registry.CreateFor("0.0.1001")

	// Assert
	s.NoError(err)
	s.NotNil(session)
	s.Equal("0.0.1001", session.PlayerID)
	s.Equal(int64(10), session.BetAmount)

	got, exists := s.registry.Get("0.0.1001")
	s.True(exists)
	s.Equal(session.ID, got.ID)
}

func (s *RegistryTestSuite) TestCreateForMalformedIdentity() {
	testCases := []struct {
		name     string
		playerID string
	}{
		{name: "empty", playerID: ""},
		{name: "free text", playerID: "not-an-account"},
		{name: "missing realm", playerID: "0.1001"},
		{name: "trailing dot", playerID: "0.0.1001."},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			_, err := s.registry.CreateFor(tc.playerID)
			s.True(types.IsGameError(err, types.ErrInvalidIdentity))
		})
	}
}

func (s *RegistryTestSuite) TestCreateForDuplicate() {
	// Setup
	_, err := s.registry.CreateFor("0.0.1001")
	s.Require().NoError(err)

	// Execute
	_, err = s.registry.CreateFor("0.0.1001")

	// Assert
	s.True(types.IsGameError(err, types.ErrSessionAlreadyActive))
}

func (s *RegistryTestSuite) TestConcurrentCreateExactlyOneSucceeds() {
	// Execute: many concurrent creates for the same player
	const attempts = 50
	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0
	conflicts := 0

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.registry.CreateFor("0.0.2002")
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
			} else if types.IsGameError(err, types.ErrSessionAlreadyActive) {
				conflicts++
			}
		}()
	}
	wg.Wait()

	// Assert
	s.Equal(1, successes, "Exactly one concurrent create should succeed")
	s.Equal(attempts-1, conflicts, "All others should observe SESSION_ALREADY_ACTIVE")
}

func (s *RegistryTestSuite) TestReplace() {
	// Setup
	first, err := s.registry.CreateFor("0.0.1001")
	s.Require().NoError(err)

	// Execute
	second, err := s.registry.Replace("0.0.1001")

	// Assert
	s.NoError(err)
	s.NotEqual(first.ID, second.ID, "Replace should produce a fresh session")

	got, exists := s.registry.Get("0.0.1001")
	s.True(exists)
	s.Equal(second.ID, got.ID)
}

func (s *RegistryTestSuite) TestReleaseAllowsNewCreate() {
	// Setup
	_, err := s.registry.CreateFor("0.0.1001")
	s.Require().NoError(err)

	// Execute
	s.registry.Release("0.0.1001")

	// Assert: a new create succeeds once the marker is cleared
	_, err = s.registry.CreateFor("0.0.1001")
	s.NoError(err)
}

func (s *RegistryTestSuite) TestDelayedReleaseAfterCompletion() {
	// Setup: a registry with a short release delay
	sink := &countingSink{}
	registry := New(sink, 10, 20*time.Millisecond, nil)
	session := s.createLive(registry, "0.0.1001")

	// Execute: completing the session schedules the delayed release
	s.Require().NoError(session.ForceComplete(entities.ResultLoss))

	// Immediately after completion the marker still blocks creates, so
	// late requests observe the completed session deterministically.
	_, err := registry.CreateFor("0.0.1001")
	s.True(types.IsGameError(err, types.ErrSessionAlreadyActive))

	got, exists := registry.Get("0.0.1001")
	s.True(exists)
	s.True(got.Completed())

	// After the delay the marker clears and a new create succeeds
	s.Eventually(func() bool {
		_, err := registry.CreateFor("0.0.1001")
		return err == nil
	}, time.Second, 10*time.Millisecond)

	s.GreaterOrEqual(sink.Calls(), 1, "Downstream sink should see the completion")
}

func (s *RegistryTestSuite) TestStaleReleaseDoesNotClearReplacement() {
	// Setup: complete a session, which schedules its delayed release
	sink := &countingSink{}
	registry := New(sink, 10, 20*time.Millisecond, nil)
	first := s.createLive(registry, "0.0.1001")
	s.Require().NoError(first.ForceComplete(entities.ResultLoss))

	// Execute: replace before the release fires, then let it fire
	replacement := s.createLive(registry, "0.0.1001")
	time.Sleep(100 * time.Millisecond)

	// Assert: the stale release belongs to the first session and must
	// not clear the live replacement's marker
	_, err := registry.CreateFor("0.0.1001")
	s.True(types.IsGameError(err, types.ErrSessionAlreadyActive))

	got, exists := registry.Get("0.0.1001")
	s.True(exists)
	s.Equal(replacement.ID, got.ID)
	s.False(got.Completed())
}

func (s *RegistryTestSuite) TestSnapshot() {
	// Setup
	session, err := s.registry.CreateFor("0.0.1001")
	s.Require().NoError(err)

	// Execute
	summary := s.registry.Snapshot()

	// Assert
	s.Equal(1, summary.ActivePlayers)
	s.Require().Len(summary.Sessions, 1)
	s.Equal(session.ID, summary.Sessions[0].SessionID)
	s.True(summary.Sessions[0].Active)
}
