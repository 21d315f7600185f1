// Package handler exposes the services over HTTP under /api.
package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/safar/kitrunner/internal/handler/dto"
	"github.com/safar/kitrunner/internal/idempotency"
	"github.com/safar/kitrunner/internal/observability"
	"github.com/safar/kitrunner/internal/service"
)

const (
	apiPrefix      = "/api"
	requestTimeout = 30 * time.Second
)

// Deps are the collaborators the router dispatches to.
type Deps struct {
	Events    *service.EventService
	Customers *service.CustomerService
	Delivery  *service.DeliveryService
	Orders    *service.OrderService

	// Idempotency guards POST /orders. Nil disables replay.
	Idempotency    idempotency.Store
	IdempotencyTTL time.Duration

	// Ping reports storage health for /healthz. Optional.
	Ping func(ctx context.Context) error

	Logger *zap.Logger
}

type handlers struct {
	events    *service.EventService
	customers *service.CustomerService
	delivery  *service.DeliveryService
	orders    *service.OrderService
	ping      func(ctx context.Context) error
}

func NewRouter(deps Deps) chi.Router {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	h := &handlers{
		events:    deps.Events,
		customers: deps.Customers,
		delivery:  deps.Delivery,
		orders:    deps.Orders,
		ping:      deps.Ping,
	}

	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		observability.RequestLogger(logger),
		middleware.Recoverer,
		middleware.Timeout(requestTimeout),
	)

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		writeError(w, req, dto.ErrorBody{Code: "route_not_found", Message: fmt.Sprintf("no route for %s", req.URL.Path), Status: http.StatusNotFound})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		writeError(w, req, dto.ErrorBody{Code: "method_not_allowed", Message: fmt.Sprintf("method %s not allowed on %s", req.Method, req.URL.Path), Status: http.StatusMethodNotAllowed})
	})

	r.Get("/healthz", h.healthz)

	idem := idempotency.Middleware(deps.Idempotency,
		idempotency.WithTTL(deps.IdempotencyTTL),
		idempotency.WithLogger(observability.NewPrintfAdapter(logger)),
	)

	r.Route(apiPrefix, func(api chi.Router) {
		api.Get("/events", h.listEvents)
		api.Get("/events/{eventID}", h.getEvent)

		api.Post("/customers/identify", h.identifyCustomer)
		api.Post("/customers/register", h.registerCustomer)
		api.Get("/customers/{customerID}/addresses", h.listAddresses)
		api.Post("/customers/{customerID}/addresses", h.createAddress)
		api.Get("/customers/{customerID}/orders", h.listCustomerOrders)

		api.Put("/addresses/{addressID}", h.updateAddress)

		api.Post("/delivery/calculate", h.calculateDelivery)

		api.With(idem).Post("/orders", h.createOrder)
		api.Get("/orders/{orderNumber}", h.getOrder)
	})

	return r
}

func (h *handlers) healthz(w http.ResponseWriter, r *http.Request) {
	if h.ping != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.ping(ctx); err != nil {
			observability.FromContext(r.Context()).Warn("health check failed", zap.Error(err))
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
