package orders

import (
	"fmt"

	"github.com/odyssey-erp/depot/internal/shared"
)

// ValidateCreateRequest checks rules the struct tags cannot express.
func ValidateCreateRequest(req CreateRequest) error {
	if req.ScheduledDate.IsZero() {
		return ErrInvalidDate
	}
	if req.PaymentMethod != "" && !req.PaymentMethod.IsValid() {
		return ErrInvalidPaymentMethod
	}
	if req.DeliveryCharge.IsNegative() || req.Discount.IsNegative() {
		return ErrNegativeAmount.Withf("delivery charge and discount cannot be negative")
	}
	if err := shared.CheckMoney("delivery charge", req.DeliveryCharge); err != nil {
		return err
	}
	if err := shared.CheckMoney("discount", req.Discount); err != nil {
		return err
	}
	return validateItems(req.Items)
}

// ValidateUpdateRequest validates update request.
func ValidateUpdateRequest(req UpdateRequest) error {
	if req.ScheduledDate != nil && req.ScheduledDate.IsZero() {
		return ErrInvalidDate
	}
	if req.DeliveryCharge != nil {
		if req.DeliveryCharge.IsNegative() {
			return ErrNegativeAmount.Withf("delivery charge cannot be negative")
		}
		if err := shared.CheckMoney("delivery charge", *req.DeliveryCharge); err != nil {
			return err
		}
	}
	if req.Discount != nil {
		if req.Discount.IsNegative() {
			return ErrNegativeAmount.Withf("discount cannot be negative")
		}
		if err := shared.CheckMoney("discount", *req.Discount); err != nil {
			return err
		}
	}
	if req.Items != nil {
		return validateItems(*req.Items)
	}
	return nil
}

// ValidateCompleteRequest validates the completion payload before any
// transaction starts.
func ValidateCompleteRequest(req CompleteRequest) error {
	if !req.PaymentMethod.IsValid() {
		return ErrInvalidPaymentMethod
	}
	if req.CashCollected.IsNegative() {
		return ErrNegativeAmount.Withf("cash collected cannot be negative")
	}
	if err := shared.CheckMoney("cash collected", req.CashCollected); err != nil {
		return err
	}
	if len(req.Items) == 0 {
		return ErrEmptyItems
	}
	seen := make(map[int64]struct{}, len(req.Items))
	for _, item := range req.Items {
		if _, dup := seen[item.ProductID]; dup {
			return ErrDuplicateProduct.Withf("product %d appears more than once", item.ProductID)
		}
		seen[item.ProductID] = struct{}{}
	}
	return nil
}

func validateItems(items []ItemReq) error {
	if len(items) == 0 {
		return ErrEmptyItems
	}
	seen := make(map[int64]struct{}, len(items))
	for _, item := range items {
		if _, dup := seen[item.ProductID]; dup {
			return ErrDuplicateProduct.Withf("product %d appears more than once", item.ProductID)
		}
		seen[item.ProductID] = struct{}{}
		if item.Price == nil {
			continue
		}
		if item.Price.IsNegative() {
			return ErrNegativeAmount.Withf("price of product %d cannot be negative", item.ProductID)
		}
		if err := shared.CheckMoney(fmt.Sprintf("price of product %d", item.ProductID), *item.Price); err != nil {
			return err
		}
	}
	return nil
}
