package events

import (
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/mportillo/dealerd/internal/logging"
)

// Event subjects
const (
	SubjectSessionCompleted = "dealerd.session.completed"
	SubjectRewardPaid       = "dealerd.reward.paid"
	SubjectRewardFailed     = "dealerd.reward.failed"
)

// Publisher emits game and payout events to NATS. A nil Publisher is
// valid and publishes nothing, so event emission never becomes a hard
// dependency of the game path.
type Publisher struct {
	nc     *nats.Conn
	logger *logging.Logger
}

// Connect establishes a NATS connection for event publishing
func Connect(url string, logger *logging.Logger) (*Publisher, error) {
	if logger == nil {
		logger = logging.Default
	}

	opts := []nats.Option{
		nats.Name("dealerd"),
		nats.Timeout(10 * time.Second),
		nats.ReconnectWait(2 * time.Second),
		nats.MaxReconnects(5),
	}
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, err
	}

	return &Publisher{nc: nc, logger: logger}, nil
}

// Publish emits a JSON event on the given subject. Failures are logged,
// never propagated: events are advisory.
func (p *Publisher) Publish(subject string, payload interface{}) {
	if p == nil || p.nc == nil {
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		p.logger.Error("failed to marshal event for %s: %v", subject, err)
		return
	}
	if err := p.nc.Publish(subject, data); err != nil {
		p.logger.Error("failed to publish event to %s: %v", subject, err)
	}
}

// Close drains the connection
func (p *Publisher) Close() {
	if p == nil || p.nc == nil {
		return
	}
	p.nc.Close()
}
