package model

import (
	"errors"
	"fmt"
)

// UnavailableError signals ordinary, per-venue unavailability: no offers,
// market closed, account blocked, symbol missing. Quote sources return it
// instead of a quote; it is folded into routing decisions and never aborts
// the overall flow on its own.
type UnavailableError struct {
	Source Source
	Reason string
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s unavailable: %s", e.Source, e.Reason)
}

// Unavailable builds an UnavailableError with a formatted reason.
func Unavailable(source Source, format string, args ...any) *UnavailableError {
	return &UnavailableError{Source: source, Reason: fmt.Sprintf(format, args...)}
}

// AsUnavailable unwraps err to an UnavailableError if it is one.
func AsUnavailable(err error) (*UnavailableError, bool) {
	var ue *UnavailableError
	if errors.As(err, &ue) {
		return ue, true
	}
	return nil, false
}

// TerminalExecutionError marks execution failures that must never trigger a
// venue fallback, because retrying elsewhere would move user funds twice.
type TerminalExecutionError interface {
	error
	Terminal()
}

// OrderSubmissionFailedAfterTransferError is raised when the escrow transfer
// (phase 1) confirmed on-chain but the off-chain order submission (phase 2)
// failed. Funds are stranded in escrow and require manual reconciliation;
// retrying phase 1 would double-transfer, so this error is terminal.
type OrderSubmissionFailedAfterTransferError struct {
	TxHash string
	Symbol string
	Err    error
}

func (e *OrderSubmissionFailedAfterTransferError) Error() string {
	return fmt.Sprintf("order submission failed after escrow transfer %s (%s): funds held in escrow, do not retry transfer: %v",
		e.TxHash, e.Symbol, e.Err)
}

func (e *OrderSubmissionFailedAfterTransferError) Unwrap() error { return e.Err }

func (e *OrderSubmissionFailedAfterTransferError) Terminal() {}

// PartialFillError is raised when a multi-offer settlement failed after one
// or more offers had already filled. The target amount is partially settled;
// re-trading the full amount on another venue would overfill, so this error
// is terminal.
type PartialFillError struct {
	FilledOffers []string
	TxHashes     []string
	Err          error
}

func (e *PartialFillError) Error() string {
	return fmt.Sprintf("settlement failed after %d of the selected offers filled (offers %v): %v",
		len(e.FilledOffers), e.FilledOffers, e.Err)
}

func (e *PartialFillError) Unwrap() error { return e.Err }

func (e *PartialFillError) Terminal() {}

// IsTerminalExecution reports whether err (or anything it wraps) forbids
// falling back to the alternate venue.
func IsTerminalExecution(err error) bool {
	var te TerminalExecutionError
	return errors.As(err, &te)
}
