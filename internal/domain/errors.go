package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Error kinds of the ledger engine. Callers match them with errors.Is; the
// concrete errors wrap these sentinels together with enough context (fund,
// period, asset) to diagnose a failure without re-deriving ledger state.
var (
	// ErrLedgerInvariantViolation marks a corrupt ledger (duplicate open
	// holding, broken period chain). Fatal for the close, never retried.
	ErrLedgerInvariantViolation = errors.New("ledger invariant violation")

	// ErrPriceUnavailable marks a missing listing or FX rate at the
	// requested instant. The close stays open; the caller retries once
	// market data has backfilled.
	ErrPriceUnavailable = errors.New("price unavailable")

	// ErrConcurrentCloseRejected marks a close or rollback attempt while
	// another one is in flight for the same fund.
	ErrConcurrentCloseRejected = errors.New("concurrent close rejected")

	// ErrRollbackNotPermitted marks a rollback of anything but the single
	// most-recently-closed period of a fund.
	ErrRollbackNotPermitted = errors.New("rollback not permitted")

	// ErrDependencyCycleDetected marks funds that invest in each other.
	// Configuration error: the cyclic subset needs manual correction.
	ErrDependencyCycleDetected = errors.New("fund dependency cycle detected")

	// ErrPeriodAlreadyClosed marks a close of a period that already has a
	// period nav, without force recalculation.
	ErrPeriodAlreadyClosed = errors.New("booking period already closed")

	// ErrNotFound marks a missing entity at the persistence boundary.
	ErrNotFound = errors.New("entity not found")

	// ErrNoPeriod marks a fund without any registered booking period, i.e.
	// without holdings to derive one from.
	ErrNoPeriod = errors.New("fund has no registered booking period")
)

// CloseError decorates a failure inside a period close with the identifiers
// needed to diagnose it.
type CloseError struct {
	FundID   uuid.UUID
	Period   Period
	AssetKey string // optional: the asset the failure relates to
	Err      error
}

func (e *CloseError) Error() string {
	if e.AssetKey != "" {
		return fmt.Sprintf("close fund %s period %s asset %s: %v", e.FundID, e.Period, e.AssetKey, e.Err)
	}
	return fmt.Sprintf("close fund %s period %s: %v", e.FundID, e.Period, e.Err)
}

func (e *CloseError) Unwrap() error {
	return e.Err
}

// PriceUnavailableError reports the exact lookup that failed.
type PriceUnavailableError struct {
	AssetKey string
	At       time.Time
}

func (e *PriceUnavailableError) Error() string {
	return fmt.Sprintf("no price for %s at or before %s", e.AssetKey, e.At.Format(time.RFC3339))
}

func (e *PriceUnavailableError) Unwrap() error {
	return ErrPriceUnavailable
}

// DependencyCycleError reports the subset of funds whose share holdings form
// a cycle. Funds outside the subset are still ordered and processed.
type DependencyCycleError struct {
	FundIDs []uuid.UUID
}

func (e *DependencyCycleError) Error() string {
	ids := make([]string, len(e.FundIDs))
	for i, id := range e.FundIDs {
		ids[i] = id.String()
	}
	return fmt.Sprintf("fund dependency cycle detected among: %s", strings.Join(ids, ", "))
}

func (e *DependencyCycleError) Unwrap() error {
	return ErrDependencyCycleDetected
}
