package token

import (
	"context"
	"errors"
)

var (
	// ErrInvalidReceiverAddress means the receiver identity is malformed
	ErrInvalidReceiverAddress = errors.New("invalid receiver address")

	// ErrReceiverAccountMissing means the receiver has no account capable
	// of holding the reward token; accounts are not auto-created
	ErrReceiverAccountMissing = errors.New("receiver account missing")

	// ErrTransferRejected means the external service declined the
	// transfer or the transaction did not land
	ErrTransferRejected = errors.New("transfer rejected")
)

//go:generate mockgen -source=$GOFILE -destination=mock/transfer.go -package=mock_token

// TransferService moves reward tokens between accounts. The external
// service applies a fixed decimal scaling for the reward token.
type TransferService interface {
	// Transfer moves amount from one account to another and returns a
	// transaction reference
	Transfer(ctx context.Context, from, to string, amount int64) (string, error)
}
