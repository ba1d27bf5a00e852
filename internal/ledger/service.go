package ledger

import (
	"context"

	"github.com/shopspring/decimal"
)

// Reader is the read side used by Service.
type Reader interface {
	Balance(ctx context.Context, scope Scope, ownerID int64) (decimal.Decimal, error)
	Entries(ctx context.Context, filter EntryFilter) ([]Entry, error)
	History(ctx context.Context, scope Scope, ownerID int64) ([]Entry, error)
	OwnerIDs(ctx context.Context, scope Scope) ([]int64, error)
}

// Service exposes balances, statements and conservation checks.
type Service struct {
	repo Reader
}

// NewService builds Service.
func NewService(repo Reader) *Service {
	return &Service{repo: repo}
}

// Balance returns the current balance of an owner.
func (s *Service) Balance(ctx context.Context, scope Scope, ownerID int64) (decimal.Decimal, error) {
	if !scope.IsValid() {
		return decimal.Zero, ErrInvalidScope
	}
	return s.repo.Balance(ctx, scope, ownerID)
}

// Statement is a balance plus a page of entries.
type Statement struct {
	Scope   Scope           `json:"scope"`
	OwnerID int64           `json:"owner_id"`
	Balance decimal.Decimal `json:"balance"`
	Entries []Entry         `json:"entries"`
}

// Statement loads the balance and the newest entries.
func (s *Service) Statement(ctx context.Context, filter EntryFilter) (Statement, error) {
	balance, err := s.Balance(ctx, filter.Scope, filter.OwnerID)
	if err != nil {
		return Statement{}, err
	}
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	entries, err := s.repo.Entries(ctx, filter)
	if err != nil {
		return Statement{}, err
	}
	return Statement{Scope: filter.Scope, OwnerID: filter.OwnerID, Balance: balance, Entries: entries}, nil
}

// Verify runs the conservation check for one owner.
func (s *Service) Verify(ctx context.Context, scope Scope, ownerID int64) (Report, error) {
	balance, err := s.Balance(ctx, scope, ownerID)
	if err != nil {
		return Report{}, err
	}
	entries, err := s.repo.History(ctx, scope, ownerID)
	if err != nil {
		return Report{}, err
	}
	return CheckChain(scope, ownerID, balance, entries), nil
}

// VerifyAll checks every owner of scope and returns the inconsistent ones.
func (s *Service) VerifyAll(ctx context.Context, scope Scope) (checked int, broken []Report, err error) {
	ids, err := s.repo.OwnerIDs(ctx, scope)
	if err != nil {
		return 0, nil, err
	}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return checked, broken, err
		}
		report, err := s.Verify(ctx, scope, id)
		if err != nil {
			return checked, broken, err
		}
		checked++
		if !report.Consistent {
			broken = append(broken, report)
		}
	}
	return checked, broken, nil
}
