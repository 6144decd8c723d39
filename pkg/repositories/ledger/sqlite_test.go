package ledger

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mportillo/dealerd/pkg/entities"
)

type SQLiteRepositoryTestSuite struct {
	suite.Suite
	ctx  context.Context
	repo *SQLiteRepository
}

func TestSQLiteRepositorySuite(t *testing.T) {
	suite.Run(t, new(SQLiteRepositoryTestSuite))
}

func (s *SQLiteRepositoryTestSuite) SetupTest() {
	s.ctx = context.Background()
	repo, err := NewSQLiteRepository(filepath.Join(s.T().TempDir(), "ledger.db"))
	s.Require().NoError(err)
	s.repo = repo
}

func (s *SQLiteRepositoryTestSuite) TearDownTest() {
	s.Require().NoError(s.repo.Close())
}

func (s *SQLiteRepositoryTestSuite) TestCompletedRoundTrip() {
	// Setup
	err := s.repo.AppendCompleted(s.ctx, &entities.CompletedEntry{
		SessionID: "session-1",
		PlayerID:  "0.0.1001",
		Result:    entities.ResultWin,
		CreatedAt: time.Now(),
	})
	s.Require().NoError(err)

	// Execute
	got, err := s.repo.GetCompleted(s.ctx, "session-1")

	// Assert
	s.Require().NoError(err)
	s.Equal("0.0.1001", got.PlayerID)
	s.Equal(entities.ResultWin, got.Result)
	s.False(got.Processed)

	_, err = s.repo.GetCompleted(s.ctx, "missing")
	s.ErrorIs(err, ErrEntryNotFound)
}

func (s *SQLiteRepositoryTestSuite) TestAppendCompletedIsIdempotent() {
	// Setup
	entry := &entities.CompletedEntry{
		SessionID: "session-1",
		PlayerID:  "0.0.1001",
		Result:    entities.ResultWin,
		CreatedAt: time.Now(),
	}
	s.Require().NoError(s.repo.AppendCompleted(s.ctx, entry))
	s.Require().NoError(s.repo.SetProcessed(s.ctx, "session-1", true))

	// Execute: the duplicate insert is ignored
	err := s.repo.AppendCompleted(s.ctx, entry)

	// Assert
	s.Require().NoError(err)
	got, err := s.repo.GetCompleted(s.ctx, "session-1")
	s.Require().NoError(err)
	s.True(got.Processed)
}

func (s *SQLiteRepositoryTestSuite) TestInsertDedupIfAbsent() {
	// Setup
	record := &entities.RewardDedupRecord{
		PlayerID:  "0.0.1001",
		SessionID: "session-1",
		Status:    entities.DedupPending,
		CreatedAt: time.Now(),
	}

	// Execute
	first, err := s.repo.InsertDedupIfAbsent(s.ctx, record)
	s.Require().NoError(err)
	second, err := s.repo.InsertDedupIfAbsent(s.ctx, record)
	s.Require().NoError(err)

	// Assert
	s.True(first)
	s.False(second)

	got, err := s.repo.GetDedup(s.ctx, "0.0.1001", "session-1")
	s.Require().NoError(err)
	s.Equal(entities.DedupPending, got.Status)
}

func (s *SQLiteRepositoryTestSuite) TestSetDedupStatus() {
	// Setup
	_, err := s.repo.InsertDedupIfAbsent(s.ctx, &entities.RewardDedupRecord{
		PlayerID:  "0.0.1001",
		SessionID: "session-1",
		Status:    entities.DedupPending,
		CreatedAt: time.Now(),
	})
	s.Require().NoError(err)

	// Execute
	err = s.repo.SetDedupStatus(s.ctx, "0.0.1001", "session-1", entities.DedupFailed)

	// Assert
	s.Require().NoError(err)
	got, err := s.repo.GetDedup(s.ctx, "0.0.1001", "session-1")
	s.Require().NoError(err)
	s.Equal(entities.DedupFailed, got.Status)

	s.ErrorIs(s.repo.SetDedupStatus(s.ctx, "0.0.1001", "missing", entities.DedupFailed), ErrDedupNotFound)
}

func (s *SQLiteRepositoryTestSuite) TestPurgeBefore() {
	// Setup
	old := time.Now().Add(-25 * time.Hour)
	s.Require().NoError(s.repo.AppendCompleted(s.ctx, &entities.CompletedEntry{
		SessionID: "session-old",
		PlayerID:  "0.0.1001",
		Result:    entities.ResultLoss,
		CreatedAt: old,
	}))
	s.Require().NoError(s.repo.AppendCompleted(s.ctx, &entities.CompletedEntry{
		SessionID: "session-new",
		PlayerID:  "0.0.1001",
		Result:    entities.ResultLoss,
		CreatedAt: time.Now(),
	}))
	_, err := s.repo.InsertDedupIfAbsent(s.ctx, &entities.RewardDedupRecord{
		PlayerID:  "0.0.1001",
		SessionID: "session-old",
		Status:    entities.DedupCompleted,
		CreatedAt: old,
	})
	s.Require().NoError(err)

	// Execute
	cutoff := time.Now().Add(-24 * time.Hour)
	removedCompleted, err := s.repo.PurgeCompletedBefore(s.ctx, cutoff)
	s.Require().NoError(err)
	removedDedup, err := s.repo.PurgeDedupBefore(s.ctx, cutoff)
	s.Require().NoError(err)

	// Assert
	s.Equal(1, removedCompleted)
	s.Equal(1, removedDedup)
	_, err = s.repo.GetCompleted(s.ctx, "session-new")
	s.NoError(err)
}
