package domain

// MatchingOutcome is the closed set of results of a matching pass.
type MatchingOutcome string

const (
	OutcomeOK                               MatchingOutcome = "OK"
	OutcomeQueuedDuringAuction              MatchingOutcome = "QUEUED_DURING_AUCTION_STATE"
	OutcomeNotActivatable                   MatchingOutcome = "NOT_ACTIVATABLE"
	OutcomeNotEnoughCredit                  MatchingOutcome = "NOT_ENOUGH_CREDIT"
	OutcomeNotEnoughPositions               MatchingOutcome = "NOT_ENOUGH_POSITIONS"
	OutcomeMinimumQuantityNotSatisfied      MatchingOutcome = "MINIMUM_QUANTITY_NOT_SATISFIED"
	OutcomeNotEqualMinimumExecutionQuantity MatchingOutcome = "NOT_EQUAL_MINIMUM_EXECUTION_QUANTITY"
)

// IsError reports whether the outcome rejected the command.
func (o MatchingOutcome) IsError() bool {
	switch o {
	case OutcomeOK, OutcomeQueuedDuringAuction, OutcomeNotActivatable:
		return false
	}
	return true
}

// Reason is the human-readable rejection message for error outcomes.
func (o MatchingOutcome) Reason() string {
	switch o {
	case OutcomeNotEnoughCredit:
		return "Buyer has not enough credit"
	case OutcomeNotEnoughPositions:
		return "Seller has not enough positions"
	case OutcomeMinimumQuantityNotSatisfied:
		return "Order has not executed minimum execution quantity"
	case OutcomeNotEqualMinimumExecutionQuantity:
		return "Minimum execution quantity of update order has changed"
	}
	return ""
}

// MatchResult is what the matching core returns for one command.
type MatchResult struct {
	Outcome   MatchingOutcome
	Remainder *Order
	Trades    []*Trade
}

// Executed builds an OK result.
func Executed(remainder *Order, trades []*Trade) *MatchResult {
	return &MatchResult{Outcome: OutcomeOK, Remainder: remainder, Trades: trades}
}

// Rejected builds a result with no remainder and no trades.
func Rejected(outcome MatchingOutcome) *MatchResult {
	return &MatchResult{Outcome: outcome}
}

// MatchingState is the trading regime of a security.
type MatchingState string

const (
	StateContinuous MatchingState = "CONTINUOUS"
	StateAuction    MatchingState = "AUCTION"
)

// Valid reports whether s is a known state.
func (s MatchingState) Valid() bool {
	return s == StateContinuous || s == StateAuction
}
