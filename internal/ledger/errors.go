package ledger

import (
	"errors"

	"github.com/odyssey-erp/depot/internal/shared"
)

var (
	// ErrOwnerNotFound indicates the customer or driver row is missing.
	ErrOwnerNotFound = shared.NewError(shared.ErrNotFound, "ledger_owner_not_found", "ledger owner not found")
	// ErrInvalidScope indicates an unknown scope.
	ErrInvalidScope = shared.NewError(shared.ErrValidation, "ledger_invalid_scope", "invalid ledger scope")

	errNoOwner = errors.New("ledger: owner id required")
)
