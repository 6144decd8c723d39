package token

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/mportillo/dealerd/internal/logging"
)

// DevTransferService is an in-process TransferService used in
// development mode. It validates the receiver and fabricates a
// transaction reference without touching any network.
type DevTransferService struct {
	network string
	logger  *logging.Logger
}

// NewDevTransferService creates a development transfer service
func NewDevTransferService(network string, logger *logging.Logger) *DevTransferService {
	if logger == nil {
		logger = logging.Default
	}
	return &DevTransferService{
		network: network,
		logger:  logger,
	}
}

// Transfer implements TransferService
func (s *DevTransferService) Transfer(ctx context.Context, from, to string, amount int64) (string, error) {
	if !ValidAccountID(to) {
		return "", fmt.Errorf("%w: %q", ErrInvalidReceiverAddress, to)
	}

	ref := fmt.Sprintf("%s-%s", s.network, uuid.New().String())
	s.logger.Info("dev transfer %s -> %s amount=%d ref=%s", from, to, amount, ref)
	return ref, nil
}
