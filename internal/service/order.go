package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/efreitasn/venue/internal/domain"
	"github.com/efreitasn/venue/internal/engine"
	"github.com/efreitasn/venue/internal/metrics"
	"github.com/efreitasn/venue/internal/publish"
	"github.com/efreitasn/venue/internal/store"
)

// EntryType tells a new order apart from an update of a queued one.
type EntryType string

const (
	EntryNew    EntryType = "NEW"
	EntryUpdate EntryType = "UPDATE"
)

// EnterOrderRequest is a new order or an update of a queued order.
// PeakSize > 0 makes an iceberg order and StopPrice > 0 a stop-limit
// order.
type EnterOrderRequest struct {
	RequestID                string
	Type                     EntryType
	ISIN                     string
	OrderID                  int64
	Side                     domain.Side
	Quantity                 int64
	Price                    int64
	BrokerID                 int64
	ShareholderID            int64
	PeakSize                 int64
	MinimumExecutionQuantity int64
	StopPrice                int64
}

// DeleteOrderRequest removes a queued order.
type DeleteOrderRequest struct {
	RequestID string
	ISIN      string
	Side      domain.Side
	OrderID   int64
}

// ChangeMatchingStateRequest switches a security's trading regime.
type ChangeMatchingStateRequest struct {
	ISIN        string
	TargetState domain.MatchingState
}

// OrderService validates order commands, runs them against the
// security's matching core, drives the stop-order activation cascade
// and publishes the resulting events.
type OrderService struct {
	securities   *engine.SecurityRegistry
	brokers      *store.BrokerStore
	shareholders *store.ShareholderStore
	tape         *store.TradeTape
	publisher    publish.Publisher
	metrics      *metrics.Metrics
	logger       *slog.Logger
	now          func() time.Time
}

// NewOrderService creates a new OrderService with the given dependencies.
func NewOrderService(
	securities *engine.SecurityRegistry,
	brokers *store.BrokerStore,
	shareholders *store.ShareholderStore,
	tape *store.TradeTape,
	publisher publish.Publisher,
	m *metrics.Metrics,
	logger *slog.Logger,
) *OrderService {
	return &OrderService{
		securities:   securities,
		brokers:      brokers,
		shareholders: shareholders,
		tape:         tape,
		publisher:    publisher,
		metrics:      m,
		logger:       logger,
		now:          time.Now,
	}
}

// lookup returns the security for isin, or nil when it is unknown.
func (s *OrderService) lookup(isin string) *engine.Security {
	sec, err := s.securities.Get(isin)
	if err != nil {
		return nil
	}
	return sec
}

// HandleEnterOrder validates and executes a new order or an order
// update. Validation failures are returned as a *domain.ValidationError;
// matching rejections are reported through the result outcome.
func (s *OrderService) HandleEnterOrder(ctx context.Context, req EnterOrderRequest) (*domain.MatchResult, error) {
	started := s.now()
	if req.RequestID == "" {
		req.RequestID = uuid.New().String()
	}
	command := "enter_new"
	if req.Type == EntryUpdate {
		command = "enter_update"
	}

	sec := s.lookup(req.ISIN)
	if sec == nil {
		err := s.validateEnterOrder(req, nil)
		s.reject(ctx, req.ISIN, req.RequestID, req.OrderID, err)
		s.metrics.ObserveCommand(command, "invalid", started)
		return nil, err
	}

	sec.Lock()
	defer sec.Unlock()

	if err := s.validateEnterOrder(req, sec); err != nil {
		s.reject(ctx, req.ISIN, req.RequestID, req.OrderID, err)
		s.metrics.ObserveCommand(command, "invalid", started)
		return nil, err
	}

	var result *domain.MatchResult
	if req.Type == EntryNew {
		result = sec.NewOrder(s.newOrder(req))
	} else {
		var err error
		result, err = sec.UpdateOrder(domain.OrderUpdate{
			RequestID:                req.RequestID,
			OrderID:                  req.OrderID,
			Side:                     req.Side,
			Quantity:                 req.Quantity,
			Price:                    req.Price,
			PeakSize:                 req.PeakSize,
			MinimumExecutionQuantity: req.MinimumExecutionQuantity,
			StopPrice:                req.StopPrice,
		})
		if err != nil {
			// Validation already checked the order exists under the same lock.
			return nil, err
		}
	}

	s.logger.DebugContext(ctx, "order command handled",
		"isin", req.ISIN,
		"order_id", req.OrderID,
		"type", req.Type,
		"outcome", result.Outcome,
		"trades", len(result.Trades),
	)
	s.publishEnterOrder(ctx, sec, req, result)
	s.metrics.ObserveCommand(command, string(result.Outcome), started)

	if result.Outcome.IsError() {
		return result, nil
	}
	s.recordTrades(req.ISIN, result.Trades)
	s.checkNewActivation(ctx, sec)
	return result, nil
}

// newOrder builds the order variant the request describes. The broker
// and shareholder are known to exist.
func (s *OrderService) newOrder(req EnterOrderRequest) *domain.Order {
	broker, _ := s.brokers.Get(req.BrokerID)
	sh, _ := s.shareholders.Get(req.ShareholderID)

	var o *domain.Order
	switch {
	case req.StopPrice > 0:
		o = domain.NewStopLimitOrder(req.OrderID, req.ISIN, req.Side, req.Quantity, req.Price, broker, sh, req.StopPrice, req.RequestID)
	case req.PeakSize > 0:
		o = domain.NewIcebergOrder(req.OrderID, req.ISIN, req.Side, req.Quantity, req.Price, broker, sh, req.MinimumExecutionQuantity, req.PeakSize)
	default:
		o = domain.NewLimitOrder(req.OrderID, req.ISIN, req.Side, req.Quantity, req.Price, broker, sh, req.MinimumExecutionQuantity)
	}
	o.EntryTime = s.now()
	return o
}

// HandleDeleteOrder validates and removes a queued order.
func (s *OrderService) HandleDeleteOrder(ctx context.Context, req DeleteOrderRequest) error {
	started := s.now()
	if req.RequestID == "" {
		req.RequestID = uuid.New().String()
	}

	sec := s.lookup(req.ISIN)
	if sec == nil {
		err := s.validateDeleteOrder(req, nil)
		s.reject(ctx, req.ISIN, req.RequestID, req.OrderID, err)
		s.metrics.ObserveCommand("delete", "invalid", started)
		return err
	}

	sec.Lock()
	defer sec.Unlock()

	if err := s.validateDeleteOrder(req, sec); err != nil {
		s.reject(ctx, req.ISIN, req.RequestID, req.OrderID, err)
		s.metrics.ObserveCommand("delete", "invalid", started)
		return err
	}
	if err := sec.DeleteOrder(req.Side, req.OrderID); err != nil {
		return err
	}

	s.logger.DebugContext(ctx, "order deleted", "isin", req.ISIN, "order_id", req.OrderID)
	s.emit(ctx, domain.Event{Type: domain.EventOrderDeleted, ISIN: req.ISIN, RequestID: req.RequestID, OrderID: req.OrderID})
	if sec.State() == domain.StateAuction {
		s.publishOpeningPrice(ctx, sec)
	}
	s.metrics.ObserveCommand("delete", "OK", started)
	return nil
}

// HandleChangeMatchingState switches the security to the target state.
// Leaving an auction opens the book; the opening trades are returned.
func (s *OrderService) HandleChangeMatchingState(ctx context.Context, req ChangeMatchingStateRequest) ([]*domain.Trade, error) {
	started := s.now()
	sec := s.lookup(req.ISIN)
	if err := validateChangeMatchingState(req, sec); err != nil {
		s.metrics.ObserveCommand("change_state", "invalid", started)
		return nil, err
	}

	sec.Lock()
	defer sec.Unlock()

	opening := sec.State() == domain.StateAuction
	trades := sec.ChangeMatchingState(req.TargetState)
	if opening {
		s.metrics.Auctions.Inc()
	}
	s.metrics.StateChanges.WithLabelValues(string(req.TargetState)).Inc()
	s.logger.InfoContext(ctx, "matching state changed",
		"isin", req.ISIN,
		"state", req.TargetState,
		"opening_trades", len(trades),
	)

	s.emit(ctx, domain.Event{Type: domain.EventSecurityStateChanged, ISIN: req.ISIN, State: req.TargetState})
	for _, t := range trades {
		s.emit(ctx, domain.Event{
			Type:   domain.EventTradeExecuted,
			ISIN:   req.ISIN,
			Trades: []domain.TradeRecord{domain.NewTradeRecord(t)},
		})
	}
	s.recordTrades(req.ISIN, trades)
	s.checkNewActivation(ctx, sec)
	s.metrics.ObserveCommand("change_state", "OK", started)
	return trades, nil
}

// checkNewActivation runs the stop-order cascade: every order triggered
// by the current market price is activated, then each is executed (or
// queued during an auction), and orders triggered by those executions
// form the next batch. The caller holds the security lock.
func (s *OrderService) checkNewActivation(ctx context.Context, sec *engine.Security) {
	activated := s.activateOrders(ctx, sec)
	for len(activated) > 0 {
		var next []*domain.Order
		if sec.State() != domain.StateContinuous {
			for _, o := range activated {
				sec.EnqueueActivated(o)
			}
			break
		}
		for _, o := range activated {
			result := sec.ExecuteActivated(o)
			if result.Outcome.IsError() {
				s.logger.InfoContext(ctx, "activated order rejected",
					"isin", sec.ISIN(),
					"order_id", o.OrderID,
					"outcome", result.Outcome,
				)
				s.emit(ctx, domain.Event{
					Type:      domain.EventOrderRejected,
					ISIN:      sec.ISIN(),
					RequestID: o.RequestID,
					OrderID:   o.OrderID,
					Reasons:   []string{result.Outcome.Reason()},
				})
			} else if len(result.Trades) > 0 {
				s.emit(ctx, domain.Event{
					Type:      domain.EventOrderExecuted,
					ISIN:      sec.ISIN(),
					RequestID: o.RequestID,
					OrderID:   o.OrderID,
					Trades:    tradeRecords(result.Trades),
				})
				s.recordTrades(sec.ISIN(), result.Trades)
			}
			next = append(next, s.activateOrders(ctx, sec)...)
		}
		activated = next
	}
}

func (s *OrderService) activateOrders(ctx context.Context, sec *engine.Security) []*domain.Order {
	var activated []*domain.Order
	for {
		o := sec.TriggerOrder()
		if o == nil {
			return activated
		}
		s.metrics.Activations.Inc()
		s.emit(ctx, domain.Event{Type: domain.EventOrderActivated, ISIN: sec.ISIN(), RequestID: o.RequestID, OrderID: o.OrderID})
		activated = append(activated, o)
	}
}

// publishEnterOrder emits the events of one handled enter-order command.
func (s *OrderService) publishEnterOrder(ctx context.Context, sec *engine.Security, req EnterOrderRequest, result *domain.MatchResult) {
	base := domain.Event{ISIN: req.ISIN, RequestID: req.RequestID, OrderID: req.OrderID}

	if result.Outcome.IsError() {
		s.logger.InfoContext(ctx, "order rejected",
			"isin", req.ISIN,
			"order_id", req.OrderID,
			"outcome", result.Outcome,
		)
		e := base
		e.Type = domain.EventOrderRejected
		e.Reasons = []string{result.Outcome.Reason()}
		s.emit(ctx, e)
		return
	}

	e := base
	e.Type = domain.EventOrderAccepted
	if req.Type == EntryUpdate {
		e.Type = domain.EventOrderUpdated
	}
	s.emit(ctx, e)

	// An in-place update of a pending stop order leaves it in the stop
	// queue; only an order converted to a limit order was activated.
	stillPending := result.Remainder != nil && result.Remainder.Kind == domain.KindStopLimit
	if req.StopPrice > 0 && result.Outcome != domain.OutcomeNotActivatable && !stillPending {
		e = base
		e.Type = domain.EventOrderActivated
		s.metrics.Activations.Inc()
		s.emit(ctx, e)
	}
	if len(result.Trades) > 0 {
		e = base
		e.Type = domain.EventOrderExecuted
		e.Trades = tradeRecords(result.Trades)
		s.emit(ctx, e)
	}
	if result.Outcome == domain.OutcomeQueuedDuringAuction {
		s.publishOpeningPrice(ctx, sec)
	}
}

func (s *OrderService) publishOpeningPrice(ctx context.Context, sec *engine.Security) {
	price := sec.OpeningPrice()
	tradable := sec.TradableQuantity()
	s.emit(ctx, domain.Event{
		Type:             domain.EventOpeningPrice,
		ISIN:             sec.ISIN(),
		OpeningPrice:     &price,
		TradableQuantity: &tradable,
	})
}

// reject publishes an order.rejected event for a validation failure.
func (s *OrderService) reject(ctx context.Context, isin, requestID string, orderID int64, err error) {
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		return
	}
	s.logger.InfoContext(ctx, "order request invalid",
		"isin", isin,
		"order_id", orderID,
		"reasons", verr.Reasons,
	)
	s.emit(ctx, domain.Event{
		Type:      domain.EventOrderRejected,
		ISIN:      isin,
		RequestID: requestID,
		OrderID:   orderID,
		Reasons:   verr.Reasons,
	})
}

func (s *OrderService) emit(ctx context.Context, e domain.Event) {
	e.OccurredAt = s.now().UTC()
	if err := s.publisher.Publish(ctx, e); err != nil {
		s.logger.WarnContext(ctx, "event publish failed",
			"event", e.Type,
			"isin", e.ISIN,
			"error", err,
		)
	}
}

func (s *OrderService) recordTrades(isin string, trades []*domain.Trade) {
	if len(trades) == 0 {
		return
	}
	s.tape.Append(isin, trades...)
	s.metrics.ObserveTrades(trades)
}

func tradeRecords(trades []*domain.Trade) []domain.TradeRecord {
	out := make([]domain.TradeRecord, len(trades))
	for i, t := range trades {
		out[i] = domain.NewTradeRecord(t)
	}
	return out
}
