// Package chain is the settlement boundary: it turns a winner list into a
// single on-chain distribute call. Everything past the Sink interface is
// an external collaborator.
package chain

import (
	"context"
	"errors"
	"math/big"
)

var (
	// ErrTransient marks recoverable payout failures (timeouts, nonce
	// conflicts, underpriced transactions). The settlement step may be
	// retried after one of these.
	ErrTransient = errors.New("transient settlement failure")
	// ErrFatal marks malformed payout input. Not retried; requires
	// manual intervention.
	ErrFatal = errors.New("fatal settlement failure")
)

// Sink executes one prize distribution and returns the transaction id.
// addresses and amounts are parallel slices; amounts are token base units.
type Sink interface {
	Distribute(ctx context.Context, addresses []string, amounts []*big.Int) (string, error)
}
