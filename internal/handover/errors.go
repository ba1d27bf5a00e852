package handover

import "github.com/odyssey-erp/depot/internal/shared"

var (
	ErrHandoverNotFound = shared.NewError(shared.ErrNotFound, "handover_not_found", "cash handover not found")
	ErrDriverNotFound   = shared.NewError(shared.ErrNotFound, "driver_not_found", "driver not found")

	// ErrDuplicatePendingHandover guards the one-pending-per-driver rule.
	ErrDuplicatePendingHandover = shared.NewError(shared.ErrIllegalTransition, "duplicate_pending_handover", "driver already has a pending handover")
	// ErrNotPending is returned when cancelling or resolving a settled handover.
	ErrNotPending = shared.NewError(shared.ErrIllegalTransition, "handover_not_pending", "handover is not pending")

	ErrNothingToHandOver = shared.NewError(shared.ErrPreconditionFailed, "nothing_to_hand_over", "driver has no unlinked cash orders or expenses")
	ErrSnapshotChanged   = shared.NewError(shared.ErrConflict, "handover_snapshot_changed", "unlinked items changed during submission")

	ErrInvalidDecision   = shared.NewError(shared.ErrValidation, "handover_invalid_decision", "decision must be VERIFIED, REJECTED or ADJUSTED")
	ErrNegativeCash      = shared.NewError(shared.ErrValidation, "handover_negative_cash", "actual cash cannot be negative")
	ErrInvalidShift      = shared.NewError(shared.ErrValidation, "handover_invalid_shift", "shift end must not be before shift start")
	ErrMissingAdjustment = shared.NewError(shared.ErrValidation, "handover_missing_adjustment", "ADJUSTED requires an adjustment amount")
)
