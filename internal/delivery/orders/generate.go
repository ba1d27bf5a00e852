package orders

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/depot/internal/gate"
	"github.com/odyssey-erp/depot/internal/notify"
)

// allocatingReader lowers filled stock by what earlier candidates in the
// same batch already claimed.
type allocatingReader struct {
	TxRepository
	allocated map[int64]int
}

func (r allocatingReader) ProductStock(ctx context.Context, productID int64) (int, error) {
	filled, err := r.TxRepository.ProductStock(ctx, productID)
	if err != nil {
		return 0, err
	}
	return filled - r.allocated[productID], nil
}

type generationCandidate struct {
	customerID int64
	driverID   *int64
	lines      []StandingOrder
}

func groupStandingOrders(standing []StandingOrder) []generationCandidate {
	byCustomer := make(map[int64]*generationCandidate)
	for _, so := range standing {
		c, ok := byCustomer[so.CustomerID]
		if !ok {
			c = &generationCandidate{customerID: so.CustomerID}
			byCustomer[so.CustomerID] = c
		}
		if c.driverID == nil && so.DriverID != nil {
			c.driverID = so.DriverID
		}
		c.lines = append(c.lines, so)
	}
	out := make([]generationCandidate, 0, len(byCustomer))
	for _, c := range byCustomer {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].customerID < out[j].customerID })
	return out
}

// Generate creates the day's orders from standing orders. Customers are
// processed in batches, each batch in its own transaction; customers the gate
// denies, or who already have an order that day, are reported as skipped. A
// failing batch stops the run and leaves earlier batches committed.
func (s *Service) Generate(ctx context.Context, req GenerateRequest) (GenerateResult, error) {
	if err := s.validate.Struct(req); err != nil {
		return GenerateResult{}, err
	}
	date := dateOnly(req.Date)
	result := GenerateResult{
		BatchID:  uuid.NewString(),
		Date:     date,
		OrderIDs: []int64{},
		Skipped:  []SkippedCustomer{},
	}

	standing, err := s.repo.StandingOrders(ctx, req.CustomerIDs)
	if err != nil {
		return result, err
	}
	candidates := groupStandingOrders(standing)
	logger := s.logger.With(slog.String("batch_id", result.BatchID), slog.Time("date", date))

	for start := 0; start < len(candidates); start += s.batchSize {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		end := start + s.batchSize
		if end > len(candidates) {
			end = len(candidates)
		}
		batch := candidates[start:end]

		var created []int64
		var skipped []SkippedCustomer
		err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			created, skipped = nil, nil
			reader := allocatingReader{TxRepository: tx, allocated: make(map[int64]int)}
			for _, c := range batch {
				id, reason, err := s.generateOne(ctx, reader, c, date, result.BatchID, req.ActorID)
				if err != nil {
					return fmt.Errorf("customer %d: %w", c.customerID, err)
				}
				if reason != "" {
					skipped = append(skipped, SkippedCustomer{CustomerID: c.customerID, Reason: reason})
					continue
				}
				created = append(created, id)
			}
			return nil
		})
		if err != nil {
			logger.Error("generation batch failed", slog.Int("batch", result.Batches+1), slog.Any("error", err))
			return result, fmt.Errorf("generate batch %d: %w", result.Batches+1, err)
		}
		result.Batches++
		result.OrderIDs = append(result.OrderIDs, created...)
		result.Skipped = append(result.Skipped, skipped...)
		s.metrics.OrdersGenerated("created", len(created))
		s.metrics.OrdersGenerated("skipped", len(skipped))
	}

	logger.Info("orders generated",
		slog.Int("batches", result.Batches),
		slog.Int("created", len(result.OrderIDs)),
		slog.Int("skipped", len(result.Skipped)),
	)
	if s.notifier != nil && len(result.OrderIDs) > 0 {
		s.notifier.Publish(ctx, notify.Event{
			Type:   notify.EventOrdersGenerated,
			Entity: "batch",
			Data:   result,
		})
	}
	return result, nil
}

func (s *Service) generateOne(ctx context.Context, reader allocatingReader, c generationCandidate, date time.Time, batchID string, actorID int64) (int64, string, error) {
	exists, err := reader.HasOrderOn(ctx, c.customerID, date)
	if err != nil {
		return 0, "", err
	}
	if exists {
		return 0, "order already exists for this date", nil
	}

	reqs := make([]ItemReq, 0, len(c.lines))
	for _, line := range c.lines {
		reqs = append(reqs, ItemReq{ProductID: line.ProductID, Quantity: line.Quantity})
	}
	items, err := s.priceItems(ctx, reader, reqs)
	if err != nil {
		return 0, "", err
	}
	batch := batchID
	order := Order{
		CustomerID:      c.customerID,
		DriverID:        c.driverID,
		Status:          StatusPending,
		ScheduledDate:   date,
		PaymentMethod:   PaymentCash,
		GenerationBatch: &batch,
		CreatedBy:       actorID,
		Items:           items,
	}
	if c.driverID != nil {
		order.Status = StatusScheduled
	}
	order.TotalAmount = order.ComputeTotal()

	decision, err := gate.Evaluate(ctx, reader, ToCandidate(order))
	if err != nil {
		return 0, "", err
	}
	if skip, _ := gate.ModeAdvise.Apply(decision); skip {
		return 0, decision.Reason.Error(), nil
	}

	id, err := s.insert(ctx, reader, order)
	if err != nil {
		return 0, "", err
	}
	for _, item := range items {
		reader.allocated[item.ProductID] += item.Quantity
	}
	return id, "", nil
}
