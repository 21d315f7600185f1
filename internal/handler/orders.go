package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/safar/kitrunner/internal/handler/dto"
	"github.com/safar/kitrunner/internal/models"
	"github.com/safar/kitrunner/internal/service"
	"github.com/safar/kitrunner/internal/store"
)

func (h *handlers) calculateDelivery(w http.ResponseWriter, r *http.Request) {
	var req service.CalculateInput
	if !decodeJSON(w, r, &req) {
		return
	}

	preview, err := h.delivery.Calculate(r.Context(), req)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, dto.NewPreview(preview))
}

func (h *handlers) createOrder(w http.ResponseWriter, r *http.Request) {
	var req service.CreateOrderInput
	if !decodeJSON(w, r, &req) {
		return
	}

	conf, err := h.orders.CreateOrder(r.Context(), req)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/orders/"+conf.Order.OrderNumber)
	respondJSON(w, http.StatusOK, conf)
}

func (h *handlers) getOrder(w http.ResponseWriter, r *http.Request) {
	conf, err := h.orders.GetOrderByNumber(r.Context(), chi.URLParam(r, "orderNumber"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, conf)
}

func (h *handlers) listCustomerOrders(w http.ResponseWriter, r *http.Request) {
	customerID, ok := pathID(r, "customerID")
	if !ok {
		badRequest(w, r, "invalid_id", "ID do cliente inválido")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	limit = store.ClampLimit(limit)

	page, err := h.orders.ListCustomerOrders(r.Context(), customerID, r.URL.Query().Get("cursor"), limit)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	orders, _ := page.Items.([]models.Order)
	if orders == nil {
		orders = []models.Order{}
	}
	respondJSON(w, http.StatusOK, dto.OrderPage{Items: orders, NextCursor: page.NextCursor, HasMore: page.HasMore})
}
