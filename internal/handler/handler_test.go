package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/efreitasn/venue/internal/domain"
	"github.com/efreitasn/venue/internal/engine"
	"github.com/efreitasn/venue/internal/metrics"
	"github.com/efreitasn/venue/internal/publish"
	"github.com/efreitasn/venue/internal/service"
	"github.com/efreitasn/venue/internal/store"
)

// testEnv bundles all dependencies for handler integration tests.
type testEnv struct {
	router   http.Handler
	recorder *publish.Recorder
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	securities := engine.NewSecurityRegistry()
	brokers := store.NewBrokerStore()
	shareholders := store.NewShareholderStore()
	tape := store.NewTradeTape(100)
	recorder := publish.NewRecorder()

	reg := prometheus.NewRegistry()
	m := metrics.New()
	if err := m.Register(reg); err != nil {
		t.Fatalf("register metrics: %v", err)
	}

	webhookSvc := service.NewWebhookService(store.NewWebhookStore(), 5*time.Second, logger)
	orderSvc := service.NewOrderService(securities, brokers, shareholders, tape, publish.NewFanout(recorder, webhookSvc), m, logger)
	adminSvc := service.NewAdminService(securities, engine.NewMatcher(), brokers, shareholders, tape, 10)

	return &testEnv{
		router:   NewRouter(orderSvc, adminSvc, webhookSvc, reg, logger),
		recorder: recorder,
	}
}

// doJSON sends a JSON request and returns the recorder.
func (env *testEnv) doJSON(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)
	return rr
}

// doRaw sends a raw request with optional content-type override.
func (env *testEnv) doRaw(t *testing.T, method, path, contentType, rawBody string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(rawBody))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)
	return rr
}

// decodeJSON decodes the response body into v.
func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v (body: %s)", err, rr.Body.String())
	}
}

func expectStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Fatalf("status = %d, want %d: %s", rr.Code, want, rr.Body.String())
	}
}

// setup registers security ABC (tick 10, lot 5, market 15000), brokers
// 1 and 2 and shareholder 1.
func (env *testEnv) setup(t *testing.T) {
	t.Helper()
	expectStatus(t, env.doJSON(t, "POST", "/securities", map[string]any{
		"isin": "ABC", "tick_size": 10, "lot_size": 5, "market_price": 15000,
	}), http.StatusCreated)
	for _, id := range []int{1, 2} {
		expectStatus(t, env.doJSON(t, "POST", "/brokers", map[string]any{
			"broker_id": id, "credit": 10_000_000,
		}), http.StatusCreated)
	}
	expectStatus(t, env.doJSON(t, "POST", "/shareholders", map[string]any{
		"shareholder_id": 1, "positions": map[string]int64{"ABC": 1000},
	}), http.StatusCreated)
}

func order(id int64, side string, qty, price, broker int64) map[string]any {
	return map[string]any{
		"order_id":       id,
		"side":           side,
		"quantity":       qty,
		"price":          price,
		"broker_id":      broker,
		"shareholder_id": 1,
	}
}

func brokerCredit(t *testing.T, env *testEnv, id int) int64 {
	t.Helper()
	rr := env.doJSON(t, "GET", fmt.Sprintf("/brokers/%d", id), nil)
	expectStatus(t, rr, http.StatusOK)
	var resp brokerResponse
	decodeJSON(t, rr, &resp)
	return resp.Credit
}

// --- Infrastructure ---

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)
	rr := env.doJSON(t, "GET", "/healthz", nil)
	expectStatus(t, rr, http.StatusOK)

	var resp map[string]string
	decodeJSON(t, rr, &resp)
	if resp["status"] != "ok" {
		t.Errorf("status = %q, want ok", resp["status"])
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.setup(t)
	expectStatus(t, env.doJSON(t, "POST", "/securities/ABC/orders", order(1, "SELL", 10, 15000, 2)), http.StatusOK)

	rr := env.doJSON(t, "GET", "/metrics", nil)
	expectStatus(t, rr, http.StatusOK)
	if !strings.Contains(rr.Body.String(), `venue_matching_commands_total{command="enter_new",result="OK"} 1`) {
		t.Errorf("metrics output missing command counter:\n%s", rr.Body.String())
	}
}

func TestContentTypeRequired(t *testing.T) {
	env := newTestEnv(t)
	rr := env.doRaw(t, "POST", "/brokers", "text/plain", `{"broker_id":1}`)
	expectStatus(t, rr, http.StatusBadRequest)

	var resp errorResponse
	decodeJSON(t, rr, &resp)
	if resp.Error != "invalid_request" {
		t.Errorf("error = %q, want invalid_request", resp.Error)
	}
}

// --- Reference data ---

func TestSecurityEndpoints(t *testing.T) {
	env := newTestEnv(t)
	env.setup(t)

	rr := env.doJSON(t, "GET", "/securities/ABC", nil)
	expectStatus(t, rr, http.StatusOK)
	var sec securityResponse
	decodeJSON(t, rr, &sec)
	if sec.ISIN != "ABC" || sec.TickSize != 10 || sec.LotSize != 5 || sec.State != "CONTINUOUS" || sec.MarketPrice != 15000 {
		t.Errorf("security = %+v", sec)
	}

	expectStatus(t, env.doJSON(t, "POST", "/securities", map[string]any{"isin": "ABC", "tick_size": 1, "lot_size": 1}), http.StatusConflict)
	expectStatus(t, env.doJSON(t, "GET", "/securities/XYZ", nil), http.StatusNotFound)

	rr = env.doJSON(t, "POST", "/securities", map[string]any{"isin": "", "tick_size": 0, "lot_size": 1})
	expectStatus(t, rr, http.StatusBadRequest)
	var verr errorResponse
	decodeJSON(t, rr, &verr)
	if len(verr.Reasons) != 2 {
		t.Errorf("reasons = %v, want 2", verr.Reasons)
	}

	rr = env.doJSON(t, "GET", "/securities", nil)
	expectStatus(t, rr, http.StatusOK)
	var list securityListResponse
	decodeJSON(t, rr, &list)
	if len(list.Securities) != 1 {
		t.Errorf("got %d securities, want 1", len(list.Securities))
	}
}

func TestBrokerAndShareholderEndpoints(t *testing.T) {
	env := newTestEnv(t)
	env.setup(t)

	if got := brokerCredit(t, env, 1); got != 10_000_000 {
		t.Errorf("credit = %d, want 10000000", got)
	}
	expectStatus(t, env.doJSON(t, "POST", "/brokers", map[string]any{"broker_id": 1, "credit": 5}), http.StatusConflict)
	expectStatus(t, env.doJSON(t, "GET", "/brokers/99", nil), http.StatusNotFound)
	expectStatus(t, env.doJSON(t, "GET", "/brokers/abc", nil), http.StatusBadRequest)

	rr := env.doJSON(t, "GET", "/brokers", nil)
	expectStatus(t, rr, http.StatusOK)
	var brokers brokerListResponse
	decodeJSON(t, rr, &brokers)
	if len(brokers.Brokers) != 2 {
		t.Errorf("got %d brokers, want 2", len(brokers.Brokers))
	}

	rr = env.doJSON(t, "GET", "/shareholders/1", nil)
	expectStatus(t, rr, http.StatusOK)
	var sh shareholderResponse
	decodeJSON(t, rr, &sh)
	if sh.Positions["ABC"] != 1000 {
		t.Errorf("positions = %v", sh.Positions)
	}
	expectStatus(t, env.doJSON(t, "GET", "/shareholders/2", nil), http.StatusNotFound)
}

// --- Orders ---

func TestEnterOrder_MatchesAndUpdatesBook(t *testing.T) {
	env := newTestEnv(t)
	env.setup(t)

	rr := env.doJSON(t, "POST", "/securities/ABC/orders", order(1, "SELL", 100, 15000, 2))
	expectStatus(t, rr, http.StatusOK)
	var resting orderResultResponse
	decodeJSON(t, rr, &resting)
	if resting.Outcome != "OK" || resting.Remainder == nil || resting.Remainder.Quantity != 100 || len(resting.Trades) != 0 {
		t.Fatalf("resting order response = %+v", resting)
	}

	rr = env.doJSON(t, "POST", "/securities/ABC/orders", order(2, "buy", 60, 15100, 1))
	expectStatus(t, rr, http.StatusOK)
	var matched orderResultResponse
	decodeJSON(t, rr, &matched)
	if matched.Side != "BUY" || matched.Remainder != nil || len(matched.Trades) != 1 {
		t.Fatalf("matched response = %+v", matched)
	}
	tr := matched.Trades[0]
	if tr.Price != 15000 || tr.Quantity != 60 || tr.BuyOrderID != 2 || tr.SellOrderID != 1 || tr.TradeID == "" {
		t.Errorf("trade = %+v", tr)
	}
	if got := brokerCredit(t, env, 1); got != 10_000_000-900_000 {
		t.Errorf("buyer credit = %d", got)
	}

	rr = env.doJSON(t, "GET", "/securities/ABC/book?depth=5", nil)
	expectStatus(t, rr, http.StatusOK)
	var book bookResponse
	decodeJSON(t, rr, &book)
	if len(book.Asks) != 1 || book.Asks[0].Quantity != 40 || len(book.Bids) != 0 {
		t.Errorf("book = %+v", book)
	}

	rr = env.doJSON(t, "GET", "/securities/ABC/trades", nil)
	expectStatus(t, rr, http.StatusOK)
	var tape tradeListResponse
	decodeJSON(t, rr, &tape)
	if len(tape.Trades) != 1 || tape.Trades[0].TradeID != tr.TradeID {
		t.Errorf("tape = %+v", tape)
	}
}

func TestEnterOrder_ValidationReasons(t *testing.T) {
	env := newTestEnv(t)
	env.setup(t)

	rr := env.doJSON(t, "POST", "/securities/ABC/orders", order(1, "BUY", 7, 15005, 9))
	expectStatus(t, rr, http.StatusBadRequest)

	var resp errorResponse
	decodeJSON(t, rr, &resp)
	want := []string{service.MsgUnknownBroker, service.MsgQuantityNotMultipleOfLot, service.MsgPriceNotMultipleOfTick}
	if len(resp.Reasons) != len(want) {
		t.Fatalf("reasons = %q, want %q", resp.Reasons, want)
	}
	for i := range want {
		if resp.Reasons[i] != want[i] {
			t.Errorf("reason %d = %q, want %q", i, resp.Reasons[i], want[i])
		}
	}
	if got := env.recorder.ByType(domain.EventOrderRejected); len(got) != 1 {
		t.Errorf("got %d rejected events, want 1", len(got))
	}
}

func TestEnterOrder_OutcomeRejection(t *testing.T) {
	env := newTestEnv(t)
	env.setup(t)
	expectStatus(t, env.doJSON(t, "POST", "/brokers", map[string]any{"broker_id": 3, "credit": 100}), http.StatusCreated)

	body := order(1, "BUY", 100, 15000, 3)
	rr := env.doJSON(t, "POST", "/securities/ABC/orders", body)
	expectStatus(t, rr, http.StatusUnprocessableEntity)

	var resp errorResponse
	decodeJSON(t, rr, &resp)
	if resp.Error != "NOT_ENOUGH_CREDIT" || resp.Message != "Buyer has not enough credit" {
		t.Errorf("response = %+v", resp)
	}
}

func TestEnterOrder_StopOrderNotActivatable(t *testing.T) {
	env := newTestEnv(t)
	env.setup(t)

	body := order(1, "BUY", 100, 16000, 1)
	body["stop_price"] = 15500
	rr := env.doJSON(t, "POST", "/securities/ABC/orders", body)
	expectStatus(t, rr, http.StatusOK)

	var resp orderResultResponse
	decodeJSON(t, rr, &resp)
	if resp.Outcome != "NOT_ACTIVATABLE" {
		t.Errorf("outcome = %q, want NOT_ACTIVATABLE", resp.Outcome)
	}

	rr = env.doJSON(t, "GET", "/securities/ABC", nil)
	var sec securityResponse
	decodeJSON(t, rr, &sec)
	if sec.StopBuyOrders != 1 || sec.BuyOrders != 0 {
		t.Errorf("security = %+v", sec)
	}
}

func TestUpdateAndDeleteOrder(t *testing.T) {
	env := newTestEnv(t)
	env.setup(t)
	expectStatus(t, env.doJSON(t, "POST", "/securities/ABC/orders", order(1, "BUY", 100, 14000, 1)), http.StatusOK)

	rr := env.doJSON(t, "PUT", "/securities/ABC/orders/BUY/1", map[string]any{
		"quantity": 50, "price": 14000, "broker_id": 1, "shareholder_id": 1,
	})
	expectStatus(t, rr, http.StatusOK)
	var updated orderResultResponse
	decodeJSON(t, rr, &updated)
	if updated.Remainder == nil || updated.Remainder.Quantity != 50 {
		t.Errorf("update response = %+v", updated)
	}
	if got := env.recorder.ByType(domain.EventOrderUpdated); len(got) != 1 {
		t.Errorf("got %d updated events, want 1", len(got))
	}

	expectStatus(t, env.doJSON(t, "PUT", "/securities/ABC/orders/HOLD/1", map[string]any{"quantity": 50}), http.StatusBadRequest)
	expectStatus(t, env.doJSON(t, "PUT", "/securities/ABC/orders/BUY/x", map[string]any{"quantity": 50}), http.StatusBadRequest)

	rr = env.doJSON(t, "DELETE", "/securities/ABC/orders/buy/1?request_id=del-1", nil)
	expectStatus(t, rr, http.StatusNoContent)
	deleted := env.recorder.ByType(domain.EventOrderDeleted)
	if len(deleted) != 1 || deleted[0].RequestID != "del-1" {
		t.Errorf("deleted events = %+v", deleted)
	}
	if got := brokerCredit(t, env, 1); got != 10_000_000 {
		t.Errorf("credit = %d after delete, want 10000000", got)
	}

	rr = env.doJSON(t, "DELETE", "/securities/ABC/orders/BUY/1", nil)
	expectStatus(t, rr, http.StatusBadRequest)
	var resp errorResponse
	decodeJSON(t, rr, &resp)
	if len(resp.Reasons) != 1 || resp.Reasons[0] != service.MsgOrderNotFound {
		t.Errorf("reasons = %q", resp.Reasons)
	}
}

// --- Auction ---

func TestAuctionRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	env.setup(t)

	rr := env.doJSON(t, "PUT", "/securities/ABC/state", map[string]any{"state": "AUCTION"})
	expectStatus(t, rr, http.StatusOK)

	rr = env.doJSON(t, "POST", "/securities/ABC/orders", order(1, "SELL", 100, 15000, 2))
	expectStatus(t, rr, http.StatusOK)
	var queued orderResultResponse
	decodeJSON(t, rr, &queued)
	if queued.Outcome != "QUEUED_DURING_AUCTION_STATE" {
		t.Errorf("outcome = %q", queued.Outcome)
	}
	expectStatus(t, env.doJSON(t, "POST", "/securities/ABC/orders", order(2, "BUY", 60, 15100, 1)), http.StatusOK)

	rr = env.doJSON(t, "GET", "/securities/ABC", nil)
	var sec securityResponse
	decodeJSON(t, rr, &sec)
	if sec.State != "AUCTION" || sec.OpeningPrice != 15000 || sec.TradableQuantity != 60 {
		t.Errorf("security during auction = %+v", sec)
	}

	rr = env.doJSON(t, "PUT", "/securities/ABC/state", map[string]any{"state": "CONTINUOUS"})
	expectStatus(t, rr, http.StatusOK)
	var opened changeStateResponse
	decodeJSON(t, rr, &opened)
	if opened.State != "CONTINUOUS" || len(opened.Trades) != 1 || opened.Trades[0].Quantity != 60 {
		t.Errorf("state change response = %+v", opened)
	}
	if got := env.recorder.ByType(domain.EventTradeExecuted); len(got) != 1 {
		t.Errorf("got %d trade events, want 1", len(got))
	}

	rr = env.doJSON(t, "PUT", "/securities/ABC/state", map[string]any{"state": "HALTED"})
	expectStatus(t, rr, http.StatusBadRequest)
}

// --- Webhooks ---

func TestWebhookEndpoints(t *testing.T) {
	env := newTestEnv(t)

	rr := env.doJSON(t, "POST", "/webhooks", map[string]any{
		"url":    "https://example.com/hooks",
		"events": []string{"trade.executed", "order.rejected"},
	})
	expectStatus(t, rr, http.StatusCreated)
	var created webhookListResponse
	decodeJSON(t, rr, &created)
	if len(created.Webhooks) != 2 {
		t.Fatalf("webhooks = %+v", created.Webhooks)
	}

	rr = env.doJSON(t, "POST", "/webhooks", map[string]any{
		"url":    "https://example.com/hooks",
		"events": []string{"trade.executed"},
	})
	expectStatus(t, rr, http.StatusOK)

	rr = env.doJSON(t, "POST", "/webhooks", map[string]any{
		"url":    "http://example.com/hooks",
		"events": []string{"trade.executed"},
	})
	expectStatus(t, rr, http.StatusBadRequest)

	rr = env.doJSON(t, "GET", "/webhooks?event=order.rejected", nil)
	expectStatus(t, rr, http.StatusOK)
	var filtered webhookListResponse
	decodeJSON(t, rr, &filtered)
	if len(filtered.Webhooks) != 1 || filtered.Webhooks[0].Event != "order.rejected" {
		t.Errorf("filtered = %+v", filtered.Webhooks)
	}

	id := created.Webhooks[0].WebhookID
	expectStatus(t, env.doJSON(t, "DELETE", "/webhooks/"+id, nil), http.StatusNoContent)
	expectStatus(t, env.doJSON(t, "DELETE", "/webhooks/"+id, nil), http.StatusNotFound)

	rr = env.doJSON(t, "GET", "/webhooks", nil)
	var all webhookListResponse
	decodeJSON(t, rr, &all)
	if len(all.Webhooks) != 1 {
		t.Errorf("got %d webhooks, want 1", len(all.Webhooks))
	}
}
