package reward

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/mportillo/dealerd/internal/logging"
	"github.com/mportillo/dealerd/pkg/entities"
	"github.com/mportillo/dealerd/pkg/events"
	"github.com/mportillo/dealerd/pkg/repositories/ledger"
	"github.com/mportillo/dealerd/pkg/services/blackjack"
	"github.com/mportillo/dealerd/pkg/token"
)

const (
	defaultQueueSize       = 256
	defaultTransferRetries = 3
	defaultRetryDelay      = 2 * time.Second
)

// SessionSource looks up live sessions for best-effort reward
// bookkeeping. The session may already be gone from the registry, which
// is acceptable: reward state survives independently in the ledger.
type SessionSource interface {
	Get(playerID string) (*blackjack.Session, bool)
}

// Coordinator issues payouts for winning sessions with
// exactly-once-effective semantics. OnSessionWon is fire-and-forget:
// issuance runs on the coordinator's own worker, never on the caller's
// path, and the dedup insert-if-absent is the single serialization
// point that admits at most one issuer per (player, session) key.
type Coordinator struct {
	repo      ledger.Repository
	transfer  token.TransferService
	publisher *events.Publisher
	logger    *logging.Logger

	treasury     string
	rewardAmount int64

	retries    int
	retryDelay time.Duration

	queue    chan payoutJob
	wg       sync.WaitGroup
	cancel   context.CancelFunc
	sessions SessionSource
}

type payoutJob struct {
	playerID  string
	sessionID string
}

// Option configures a Coordinator
type Option func(*Coordinator)

// WithPublisher attaches an event publisher
func WithPublisher(p *events.Publisher) Option {
	return func(c *Coordinator) { c.publisher = p }
}

// WithTransferRetries sets the bounded in-call retry budget for a
// single issuance. Retries never cross the dedup gate: a failed record
// is terminal.
func WithTransferRetries(retries int, delay time.Duration) Option {
	return func(c *Coordinator) {
		c.retries = retries
		c.retryDelay = delay
	}
}

// WithQueueSize sets the payout queue capacity
func WithQueueSize(size int) Option {
	return func(c *Coordinator) {
		c.queue = make(chan payoutJob, size)
	}
}

// NewCoordinator creates a reward coordinator
func NewCoordinator(repo ledger.Repository, transfer token.TransferService, treasury string, rewardAmount int64, logger *logging.Logger, opts ...Option) *Coordinator {
	if logger == nil {
		logger = logging.Default
	}
	c := &Coordinator{
		repo:         repo,
		transfer:     transfer,
		logger:       logger,
		treasury:     treasury,
		rewardAmount: rewardAmount,
		retries:      defaultTransferRetries,
		retryDelay:   defaultRetryDelay,
		queue:        make(chan payoutJob, defaultQueueSize),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AttachSessions wires the live-session lookup. Called once during
// startup, before Start.
func (c *Coordinator) AttachSessions(src SessionSource) {
	c.sessions = src
}

// Start launches the payout worker
func (c *Coordinator) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			select {
			case job := <-c.queue:
				c.process(ctx, job)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop shuts the worker down. A transfer in flight when the process
// exits is unresolved and reconciled operationally via the pending
// dedup record it leaves behind.
func (c *Coordinator) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
}

// SessionCompleted implements blackjack.CompletionSink. It records the
// terminal outcome in the ledger exactly once and, on a win, hands the
// payout to the worker.
func (c *Coordinator) SessionCompleted(playerID, sessionID string, result entities.Result) {
	entry := &entities.CompletedEntry{
		SessionID: sessionID,
		PlayerID:  playerID,
		Result:    result,
		CreatedAt: time.Now(),
	}
	if err := c.repo.AppendCompleted(context.Background(), entry); err != nil {
		c.logger.Error("failed to record completed session %s: %v", sessionID, err)
	}

	c.publisher.Publish(events.SubjectSessionCompleted, map[string]string{
		"session_id": sessionID,
		"player_id":  playerID,
		"result":     result.String(),
	})

	if result.IsWin() {
		c.OnSessionWon(playerID, sessionID)
	}
}

// OnSessionWon enqueues a payout for a winning session. It never blocks
// the caller: if the queue is saturated the job is dropped and logged.
// A dropped job leaves the ledger entry unprocessed with no dedup
// record, so the payout stays visible through introspection and a later
// OnSessionWon for the same key issues it normally.
func (c *Coordinator) OnSessionWon(playerID, sessionID string) {
	select {
	case c.queue <- payoutJob{playerID: playerID, sessionID: sessionID}:
	default:
		c.logger.Error("payout queue full, dropping job for session %s", sessionID)
	}
}

// process runs one payout attempt end to end
func (c *Coordinator) process(ctx context.Context, job payoutJob) {
	// A missing or already-processed entry means this is a duplicate
	// invocation of the same completion event.
	entry, err := c.repo.GetCompleted(ctx, job.sessionID)
	if err != nil {
		if !errors.Is(err, ledger.ErrEntryNotFound) {
			c.logger.Error("ledger lookup failed for session %s: %v", job.sessionID, err)
		}
		return
	}
	if entry.Processed {
		return
	}

	// The dedup insert-if-absent is the at-most-one-issuer gate: only
	// the party that performs the insertion proceeds. An existing
	// record, whatever its status, blocks issuance for this key.
	inserted, err := c.repo.InsertDedupIfAbsent(ctx, &entities.RewardDedupRecord{
		PlayerID:  job.playerID,
		SessionID: job.sessionID,
		Status:    entities.DedupPending,
		CreatedAt: time.Now(),
	})
	if err != nil {
		c.logger.Error("dedup insert failed for session %s: %v", job.sessionID, err)
		return
	}
	if !inserted {
		return
	}

	if err := c.repo.SetProcessed(ctx, job.sessionID, true); err != nil {
		c.logger.Error("failed to mark session %s processed: %v", job.sessionID, err)
	}

	ref, err := c.issueTransfer(ctx, job.playerID)
	if err != nil {
		c.logger.Error("payout failed for session %s player %s: %v", job.sessionID, job.playerID, err)

		// Failures are terminal for this session: processed is cleared
		// but the failed dedup record still gates re-issuance, so no
		// automatic retry happens. Operator intervention only.
		if err := c.repo.SetDedupStatus(ctx, job.playerID, job.sessionID, entities.DedupFailed); err != nil {
			c.logger.Error("failed to mark dedup failed for session %s: %v", job.sessionID, err)
		}
		if err := c.repo.SetProcessed(ctx, job.sessionID, false); err != nil {
			c.logger.Error("failed to clear processed for session %s: %v", job.sessionID, err)
		}

		c.publisher.Publish(events.SubjectRewardFailed, map[string]string{
			"session_id": job.sessionID,
			"player_id":  job.playerID,
		})
		return
	}

	if err := c.repo.SetDedupStatus(ctx, job.playerID, job.sessionID, entities.DedupCompleted); err != nil {
		c.logger.Error("failed to mark dedup completed for session %s: %v", job.sessionID, err)
	}

	// Best effort: the session may already be released or replaced.
	if c.sessions != nil {
		if session, ok := c.sessions.Get(job.playerID); ok && session.ID == job.sessionID {
			session.MarkRewardPaid()
		}
	}

	c.publisher.Publish(events.SubjectRewardPaid, map[string]string{
		"session_id": job.sessionID,
		"player_id":  job.playerID,
		"tx_ref":     ref,
	})
	c.logger.Info("payout of %d to %s settled (session=%s ref=%s)", c.rewardAmount, job.playerID, job.sessionID, ref)
}

// issueTransfer calls the external token service with a bounded retry.
// Malformed or missing receiver accounts are not retried; a rejected
// transfer is retried up to the budget with a fixed delay.
func (c *Coordinator) issueTransfer(ctx context.Context, playerID string) (string, error) {
	var lastErr error
	for attempt := 0; attempt < c.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(c.retryDelay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		ref, err := c.transfer.Transfer(ctx, c.treasury, playerID, c.rewardAmount)
		if err == nil {
			return ref, nil
		}
		lastErr = err

		if errors.Is(err, token.ErrInvalidReceiverAddress) || errors.Is(err, token.ErrReceiverAccountMissing) {
			return "", err
		}
	}
	return "", lastErr
}
