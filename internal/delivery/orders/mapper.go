package orders

import (
	"time"

	"github.com/odyssey-erp/depot/internal/gate"
)

// Mapper functions for converting between layers:
// CreateRequest → Order (domain)
// Order → gate.Candidate

// ToOrder maps CreateRequest to a new Order without items.
func (r CreateRequest) ToOrder() Order {
	method := r.PaymentMethod
	if method == "" {
		method = PaymentCash
	}
	status := StatusPending
	if r.DriverID != nil {
		status = StatusScheduled
	}
	return Order{
		CustomerID:     r.CustomerID,
		DriverID:       r.DriverID,
		Status:         status,
		ScheduledDate:  dateOnly(r.ScheduledDate),
		PaymentMethod:  method,
		DeliveryCharge: r.DeliveryCharge,
		Discount:       r.Discount,
		CreatedBy:      r.ActorID,
	}
}

// ToCandidate maps an order to the gate's view of it.
func ToCandidate(o Order) gate.Candidate {
	lines := make([]gate.Line, 0, len(o.Items))
	for _, item := range o.Items {
		lines = append(lines, gate.Line{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return gate.Candidate{CustomerID: o.CustomerID, Amount: o.TotalAmount, Lines: lines}
}

// ToListResponse maps list results to ListResponse DTO.
func ToListResponse(orders []Order, total, limit, offset int) ListResponse {
	if orders == nil {
		orders = []Order{}
	}
	return ListResponse{
		Orders: orders,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	}
}

// replacementFor copies an order onto a new date with fresh exchange counters.
func replacementFor(o Order, date time.Time, actorID int64) Order {
	next := Order{
		CustomerID:     o.CustomerID,
		DriverID:       o.DriverID,
		Status:         StatusPending,
		ScheduledDate:  dateOnly(date),
		TotalAmount:    o.TotalAmount,
		PaymentMethod:  o.PaymentMethod,
		DeliveryCharge: o.DeliveryCharge,
		Discount:       o.Discount,
		CreatedBy:      actorID,
	}
	if next.DriverID != nil {
		next.Status = StatusScheduled
	}
	for _, item := range o.Items {
		next.Items = append(next.Items, Item{ProductID: item.ProductID, Quantity: item.Quantity, Price: item.Price})
	}
	return next
}
