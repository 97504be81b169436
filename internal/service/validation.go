package service

import (
	"math"

	"github.com/efreitasn/venue/internal/domain"
	"github.com/efreitasn/venue/internal/engine"
)

// Rejection reasons reported by the validation list.
const (
	MsgInvalidOrderID                = "Invalid order ID"
	MsgInvalidSide                   = "Invalid order side"
	MsgInvalidEntryType              = "Invalid request type"
	MsgInvalidState                  = "Invalid matching state"
	MsgQuantityNotPositive           = "Order quantity is not-positive"
	MsgPriceNotPositive              = "Order price is not-positive"
	MsgMinimumExecutionNegative      = "Order minimum execution quantity is not-positive"
	MsgUnknownSecurity               = "Unknown security ISIN"
	MsgOrderNotFound                 = "Order ID not found in the order book"
	MsgOrderIDTaken                  = "Order ID already exists in the order book"
	MsgInvalidPeakSize               = "Iceberg order peak size is out of range"
	MsgPeakSizeForNonIceberg         = "Cannot specify peak size for a non-iceberg order"
	MsgUnknownBroker                 = "Unknown broker ID"
	MsgUnknownShareholder            = "Unknown shareholder ID"
	MsgQuantityNotMultipleOfLot      = "Quantity is not a multiple of security lot size"
	MsgPriceNotMultipleOfTick        = "Price is not a multiple of security tick size"
	MsgMinimumExecutionAboveQuantity = "Minimum execution quantity is not less than or equal to quantity"
	MsgMinimumExecutionChanged       = "Minimum execution quantity of update order has changed"
	MsgMinimumExecutionInAuction     = "Cannot specify minimum execution quantity in the auction state"
	MsgMinimumExecutionForStopLimit  = "Cannot specify minimum execution quantity for a stop limit order"
	MsgStopLimitIceberg              = "Stop limit order can not be iceberg order"
	MsgStopLimitInAuction            = "Cannot submit or update stop limit order in the auction state"
	MsgStopLimitDeleteInAuction      = "Cannot delete stop limit order in the auction state"
	MsgStopPriceForActivatedOrder    = "Cannot specify stop price for a activated order"
	MsgStopPriceNegative             = "Order stop price is negative"
	MsgOrderValueTooLarge            = "Order value (price times quantity) is too large"
)

// validation accumulates rejection reasons.
type validation struct {
	reasons []string
}

func (v *validation) check(ok bool, reason string) {
	if !ok {
		v.reasons = append(v.reasons, reason)
	}
}

func (v *validation) err() error {
	if len(v.reasons) == 0 {
		return nil
	}
	return domain.NewValidationError(v.reasons...)
}

// validateEnterOrder runs every enter-order check and reports all the
// reasons found. sec may be nil when the isin is unknown; it must be
// locked by the caller otherwise.
func (s *OrderService) validateEnterOrder(req EnterOrderRequest, sec *engine.Security) error {
	v := &validation{}

	v.check(req.OrderID > 0, MsgInvalidOrderID)
	v.check(req.Type == EntryNew || req.Type == EntryUpdate, MsgInvalidEntryType)
	v.check(req.Side.Valid(), MsgInvalidSide)
	v.check(req.Quantity > 0, MsgQuantityNotPositive)
	v.check(req.Price > 0, MsgPriceNotPositive)
	v.check(req.StopPrice >= 0, MsgStopPriceNegative)
	if req.Quantity > 0 && req.Price > 0 {
		v.check(req.Price <= math.MaxInt64/req.Quantity, MsgOrderValueTooLarge)
	}

	v.check(s.brokers.Exists(req.BrokerID), MsgUnknownBroker)
	_, err := s.shareholders.Get(req.ShareholderID)
	v.check(err == nil, MsgUnknownShareholder)

	v.check(req.PeakSize >= 0 && req.PeakSize < req.Quantity, MsgInvalidPeakSize)
	v.check(req.MinimumExecutionQuantity >= 0, MsgMinimumExecutionNegative)
	v.check(req.MinimumExecutionQuantity <= req.Quantity, MsgMinimumExecutionAboveQuantity)

	if req.StopPrice > 0 {
		v.check(req.MinimumExecutionQuantity == 0, MsgMinimumExecutionForStopLimit)
		v.check(req.PeakSize == 0, MsgStopLimitIceberg)
	}

	if sec == nil {
		v.check(false, MsgUnknownSecurity)
		return v.err()
	}

	if req.Quantity > 0 {
		v.check(req.Quantity%sec.LotSize() == 0, MsgQuantityNotMultipleOfLot)
	}
	if req.Price > 0 {
		v.check(req.Price%sec.TickSize() == 0, MsgPriceNotMultipleOfTick)
	}

	auction := sec.State() == domain.StateAuction
	v.check(!auction || req.MinimumExecutionQuantity == 0, MsgMinimumExecutionInAuction)
	v.check(!auction || req.StopPrice == 0, MsgStopLimitInAuction)

	var existing *domain.Order
	if req.Side.Valid() {
		existing = sec.FindOrder(req.Side, req.OrderID)
	}
	switch req.Type {
	case EntryNew:
		v.check(existing == nil, MsgOrderIDTaken)
	case EntryUpdate:
		v.check(existing != nil, MsgOrderNotFound)
	}
	if req.Type == EntryUpdate && existing != nil {
		v.check(existing.MinimumExecutionQuantity == req.MinimumExecutionQuantity, MsgMinimumExecutionChanged)
		if existing.Kind == domain.KindIceberg {
			v.check(req.PeakSize != 0, MsgInvalidPeakSize)
		} else {
			v.check(req.PeakSize == 0, MsgPeakSizeForNonIceberg)
		}
		v.check(existing.Kind == domain.KindStopLimit || req.StopPrice == 0, MsgStopPriceForActivatedOrder)
	}
	return v.err()
}

func (s *OrderService) validateDeleteOrder(req DeleteOrderRequest, sec *engine.Security) error {
	v := &validation{}
	v.check(req.OrderID > 0, MsgInvalidOrderID)
	v.check(req.Side.Valid(), MsgInvalidSide)
	if sec == nil {
		v.check(false, MsgUnknownSecurity)
		return v.err()
	}
	if !req.Side.Valid() {
		return v.err()
	}
	existing := sec.FindOrder(req.Side, req.OrderID)
	v.check(existing != nil, MsgOrderNotFound)
	if existing != nil && existing.Kind == domain.KindStopLimit {
		v.check(sec.State() != domain.StateAuction, MsgStopLimitDeleteInAuction)
	}
	return v.err()
}

func validateChangeMatchingState(req ChangeMatchingStateRequest, sec *engine.Security) error {
	v := &validation{}
	v.check(sec != nil, MsgUnknownSecurity)
	v.check(req.TargetState.Valid(), MsgInvalidState)
	return v.err()
}
