package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/efreitasn/venue/internal/metrics"
	"github.com/efreitasn/venue/internal/service"
)

// NewRouter creates a chi router with all routes registered, request logging,
// and Content-Type validation middleware. gatherer backs GET /metrics.
func NewRouter(
	orderSvc *service.OrderService,
	adminSvc *service.AdminService,
	webhookSvc *service.WebhookService,
	gatherer prometheus.Gatherer,
	logger *slog.Logger,
) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogging(logger))
	r.Use(contentTypeJSON)

	securities := NewSecurityHandler(adminSvc, orderSvc)
	orders := NewOrderHandler(orderSvc)
	brokers := NewBrokerHandler(adminSvc)
	shareholders := NewShareholderHandler(adminSvc)
	webhooks := NewWebhookHandler(webhookSvc)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler(gatherer))

	r.Route("/securities", func(r chi.Router) {
		r.Post("/", securities.Register)
		r.Get("/", securities.List)
		r.Route("/{isin}", func(r chi.Router) {
			r.Get("/", securities.Get)
			r.Get("/book", securities.GetBook)
			r.Get("/trades", securities.ListTrades)
			r.Put("/state", securities.ChangeState)

			r.Post("/orders", orders.EnterOrder)
			r.Route("/orders/{side}/{order_id}", func(r chi.Router) {
				r.Put("/", orders.UpdateOrder)
				r.Delete("/", orders.DeleteOrder)
			})
		})
	})

	r.Route("/brokers", func(r chi.Router) {
		r.Post("/", brokers.Register)
		r.Get("/", brokers.List)
		r.Get("/{broker_id}", brokers.Get)
	})

	r.Route("/shareholders", func(r chi.Router) {
		r.Post("/", shareholders.Register)
		r.Get("/{shareholder_id}", shareholders.Get)
	})

	r.Route("/webhooks", func(r chi.Router) {
		r.Post("/", webhooks.Upsert)
		r.Get("/", webhooks.List)
		r.Delete("/{webhook_id}", webhooks.Delete)
	})

	return r
}

// requestLogging logs one line per request with the matched route
// pattern and the id assigned by middleware.RequestID.
func requestLogging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request",
				slog.String("request_id", middleware.GetReqID(r.Context())),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("route", chi.RouteContext(r.Context()).RoutePattern()),
				slog.Int("status", ww.status),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

// contentTypeJSON rejects POST, PUT and PATCH requests whose Content-Type
// is not application/json with 400 before the handler runs.
func contentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			ct := r.Header.Get("Content-Type")
			if ct == "" || !strings.HasPrefix(ct, "application/json") {
				WriteError(w, http.StatusBadRequest, "invalid_request",
					"Content-Type must be application/json")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
