package handover

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// DriverSummary loads the driver's unlinked pool, ledger balance and
// pending handover concurrently.
func (s *Service) DriverSummary(ctx context.Context, driverID int64) (Summary, error) {
	summary := Summary{DriverID: driverID}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		balance, err := s.repo.DriverBalance(ctx, driverID)
		if err != nil {
			return err
		}
		summary.LedgerBalance = balance
		return nil
	})

	g.Go(func() error {
		snap, err := s.repo.Snapshot(ctx, driverID)
		if err != nil {
			return err
		}
		summary.Snapshot = snap
		return nil
	})

	g.Go(func() error {
		pending, err := s.repo.Pending(ctx, driverID)
		if err != nil {
			return err
		}
		summary.Pending = pending
		return nil
	})

	if err := g.Wait(); err != nil {
		return Summary{}, err
	}
	return summary, nil
}
