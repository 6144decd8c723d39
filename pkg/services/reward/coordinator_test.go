package reward

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"github.com/mportillo/dealerd/pkg/entities"
	"github.com/mportillo/dealerd/pkg/repositories/ledger"
	"github.com/mportillo/dealerd/pkg/services/blackjack"
	"github.com/mportillo/dealerd/pkg/token"
	mock_token "github.com/mportillo/dealerd/pkg/token/mock"
)

const (
	testTreasury = "0.0.98"
	testPlayer   = "0.0.1001"
	testAmount   = int64(20)
)

// fakeSource serves a single live session
type fakeSource struct {
	session *blackjack.Session
}

func (f *fakeSource) Get(playerID string) (*blackjack.Session, bool) {
	if f.session == nil || f.session.PlayerID != playerID {
		return nil, false
	}
	return f.session, true
}

type CoordinatorTestSuite struct {
	suite.Suite
	ctrl     *gomock.Controller
	repo     *ledger.MemoryRepository
	transfer *mock_token.MockTransferService
	coord    *Coordinator
}

func TestCoordinatorSuite(t *testing.T) {
	suite.Run(t, new(CoordinatorTestSuite))
}

func (s *CoordinatorTestSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.repo = ledger.NewMemoryRepository()
	s.transfer = mock_token.NewMockTransferService(s.ctrl)
	s.coord = NewCoordinator(s.repo, s.transfer, testTreasury, testAmount, nil,
		WithTransferRetries(2, time.Millisecond))
}

func (s *CoordinatorTestSuite) TearDownTest() {
	s.ctrl.Finish()
}

// wonEntry seeds the ledger with an unprocessed winning entry
func (s *CoordinatorTestSuite) wonEntry(sessionID string) {
	err := s.repo.AppendCompleted(context.Background(), &entities.CompletedEntry{
		SessionID: sessionID,
		PlayerID:  testPlayer,
		Result:    entities.ResultWin,
		CreatedAt: time.Now(),
	})
	s.Require().NoError(err)
}

func (s *CoordinatorTestSuite) TestProcessIssuesPayout() {
	// Setup
	s.wonEntry("session-1")
	s.transfer.EXPECT().
		Transfer(gomock.Any(), testTreasury, testPlayer, testAmount).
		Return("tx-1", nil)

	// Execute
	s.coord.process(context.Background(), payoutJob{playerID: testPlayer, sessionID: "session-1"})

	// Assert
	entry, err := s.repo.GetCompleted(context.Background(), "session-1")
	s.Require().NoError(err)
	s.True(entry.Processed)

	record, err := s.repo.GetDedup(context.Background(), testPlayer, "session-1")
	s.Require().NoError(err)
	s.Equal(entities.DedupCompleted, record.Status)
}

func (s *CoordinatorTestSuite) TestDuplicateProcessIssuesOnce() {
	// Setup: the mock tolerates exactly one transfer
	s.wonEntry("session-1")
	s.transfer.EXPECT().
		Transfer(gomock.Any(), testTreasury, testPlayer, testAmount).
		Return("tx-1", nil).
		Times(1)

	// Execute
	job := payoutJob{playerID: testPlayer, sessionID: "session-1"}
	s.coord.process(context.Background(), job)
	s.coord.process(context.Background(), job)
	s.coord.process(context.Background(), job)
}

func (s *CoordinatorTestSuite) TestConcurrentOnSessionWonIssuesOnce() {
	// Setup
	s.wonEntry("session-1")
	s.transfer.EXPECT().
		Transfer(gomock.Any(), testTreasury, testPlayer, testAmount).
		Return("tx-1", nil).
		Times(1)

	ctx := context.Background()
	s.coord.Start(ctx)
	defer s.coord.Stop()

	// Execute: the same won session is reported twice
	s.coord.OnSessionWon(testPlayer, "session-1")
	s.coord.OnSessionWon(testPlayer, "session-1")

	// Assert
	s.Eventually(func() bool {
		record, err := s.repo.GetDedup(ctx, testPlayer, "session-1")
		return err == nil && record.Status == entities.DedupCompleted
	}, time.Second, 5*time.Millisecond)
}

func (s *CoordinatorTestSuite) TestDroppedJobStaysRecoverable() {
	// Setup: a single-slot queue with no worker running, so the second
	// enqueue is dropped
	coord := NewCoordinator(s.repo, s.transfer, testTreasury, testAmount, nil,
		WithQueueSize(1))
	s.wonEntry("session-1")
	s.wonEntry("session-2")

	// Execute
	coord.OnSessionWon(testPlayer, "session-1")
	coord.OnSessionWon(testPlayer, "session-2")

	// Assert: the dropped session left no dedup record and its entry is
	// still unprocessed, so a later submission issues the payout
	_, err := s.repo.GetDedup(context.Background(), testPlayer, "session-2")
	s.ErrorIs(err, ledger.ErrDedupNotFound)
	entry, err := s.repo.GetCompleted(context.Background(), "session-2")
	s.Require().NoError(err)
	s.False(entry.Processed)

	s.transfer.EXPECT().
		Transfer(gomock.Any(), testTreasury, testPlayer, testAmount).
		Return("tx-2", nil)
	coord.process(context.Background(), payoutJob{playerID: testPlayer, sessionID: "session-2"})

	record, err := s.repo.GetDedup(context.Background(), testPlayer, "session-2")
	s.Require().NoError(err)
	s.Equal(entities.DedupCompleted, record.Status)
}

func (s *CoordinatorTestSuite) TestFailedPayoutIsTerminal() {
	// Setup: every attempt is rejected, exhausting the retry budget
	s.wonEntry("session-1")
	s.transfer.EXPECT().
		Transfer(gomock.Any(), testTreasury, testPlayer, testAmount).
		Return("", token.ErrTransferRejected).
		Times(2)

	// Execute
	job := payoutJob{playerID: testPlayer, sessionID: "session-1"}
	s.coord.process(context.Background(), job)

	// Assert: processed is cleared but the failed dedup record remains
	entry, err := s.repo.GetCompleted(context.Background(), "session-1")
	s.Require().NoError(err)
	s.False(entry.Processed)

	record, err := s.repo.GetDedup(context.Background(), testPlayer, "session-1")
	s.Require().NoError(err)
	s.Equal(entities.DedupFailed, record.Status)

	// A later invocation for the same key is blocked by the failed
	// record: no automatic retry.
	s.coord.process(context.Background(), job)
}

func (s *CoordinatorTestSuite) TestMissingReceiverIsNotRetried() {
	// Setup
	s.wonEntry("session-1")
	s.transfer.EXPECT().
		Transfer(gomock.Any(), testTreasury, testPlayer, testAmount).
		Return("", token.ErrReceiverAccountMissing).
		Times(1)

	// Execute
	s.coord.process(context.Background(), payoutJob{playerID: testPlayer, sessionID: "session-1"})

	// Assert
	record, err := s.repo.GetDedup(context.Background(), testPlayer, "session-1")
	s.Require().NoError(err)
	s.Equal(entities.DedupFailed, record.Status)
}

func (s *CoordinatorTestSuite) TestRejectedTransferRetriesWithinBudget() {
	// Setup: first attempt rejected, second lands
	s.wonEntry("session-1")
	gomock.InOrder(
		s.transfer.EXPECT().
			Transfer(gomock.Any(), testTreasury, testPlayer, testAmount).
			Return("", token.ErrTransferRejected),
		s.transfer.EXPECT().
			Transfer(gomock.Any(), testTreasury, testPlayer, testAmount).
			Return("tx-2", nil),
	)

	// Execute
	s.coord.process(context.Background(), payoutJob{playerID: testPlayer, sessionID: "session-1"})

	// Assert
	record, err := s.repo.GetDedup(context.Background(), testPlayer, "session-1")
	s.Require().NoError(err)
	s.Equal(entities.DedupCompleted, record.Status)
}

func (s *CoordinatorTestSuite) TestNoPayoutWithoutLedgerEntry() {
	// Execute: no completed entry exists for the session
	s.coord.process(context.Background(), payoutJob{playerID: testPlayer, sessionID: "missing"})

	// Assert: no dedup record was created and no transfer attempted
	_, err := s.repo.GetDedup(context.Background(), testPlayer, "missing")
	s.ErrorIs(err, ledger.ErrDedupNotFound)
}

func (s *CoordinatorTestSuite) TestNoPayoutWhenAlreadyProcessed() {
	// Setup
	s.wonEntry("session-1")
	s.Require().NoError(s.repo.SetProcessed(context.Background(), "session-1", true))

	// Execute
	s.coord.process(context.Background(), payoutJob{playerID: testPlayer, sessionID: "session-1"})

	// Assert
	_, err := s.repo.GetDedup(context.Background(), testPlayer, "session-1")
	s.ErrorIs(err, ledger.ErrDedupNotFound)
}

func (s *CoordinatorTestSuite) TestSessionCompletedRecordsEntry() {
	// Execute: a loss records the outcome but never reaches the queue
	s.coord.SessionCompleted(testPlayer, "session-loss", entities.ResultLoss)

	// Assert
	entry, err := s.repo.GetCompleted(context.Background(), "session-loss")
	s.Require().NoError(err)
	s.Equal(entities.ResultLoss, entry.Result)
	s.False(entry.Processed)
}

func (s *CoordinatorTestSuite) TestSessionCompletedWinFlowsToPayout() {
	// Setup
	s.transfer.EXPECT().
		Transfer(gomock.Any(), testTreasury, testPlayer, testAmount).
		Return("tx-1", nil).
		Times(1)

	ctx := context.Background()
	s.coord.Start(ctx)
	defer s.coord.Stop()

	// Execute
	s.coord.SessionCompleted(testPlayer, "session-win", entities.ResultWin)

	// Assert
	s.Eventually(func() bool {
		record, err := s.repo.GetDedup(ctx, testPlayer, "session-win")
		return err == nil && record.Status == entities.DedupCompleted
	}, time.Second, 5*time.Millisecond)
}

func (s *CoordinatorTestSuite) TestRewardPaidMarkedBestEffort() {
	// Setup: a live session whose completion seeded the ledger
	session := blackjack.NewSession(testPlayer, 10, nil)
	s.coord.AttachSessions(&fakeSource{session: session})
	s.wonEntry(session.ID)
	s.transfer.EXPECT().
		Transfer(gomock.Any(), testTreasury, testPlayer, testAmount).
		Return("tx-1", nil)

	// Execute
	s.coord.process(context.Background(), payoutJob{playerID: testPlayer, sessionID: session.ID})

	// Assert
	s.True(session.RewardPaid())
}
