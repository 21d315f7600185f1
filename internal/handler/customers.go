package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/safar/kitrunner/internal/apperr"
	"github.com/safar/kitrunner/internal/handler/dto"
	"github.com/safar/kitrunner/internal/models"
	"github.com/safar/kitrunner/internal/service"
)

func (h *handlers) identifyCustomer(w http.ResponseWriter, r *http.Request) {
	var req service.IdentifyInput
	if !decodeJSON(w, r, &req) {
		return
	}

	customer, err := h.customers.Identify(r.Context(), req)
	if err != nil {
		// The wizard offers registration when the credentials are unknown.
		var nf *apperr.NotFoundError
		if errors.As(err, &nf) {
			writeError(w, r, dto.ErrorBody{
				Code:        "customer_not_found",
				Message:     nf.Message,
				Status:      http.StatusNotFound,
				CanRegister: true,
			})
			return
		}
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, customer)
}

func (h *handlers) registerCustomer(w http.ResponseWriter, r *http.Request) {
	var req service.RegisterInput
	if !decodeJSON(w, r, &req) {
		return
	}

	reg, err := h.customers.Register(r.Context(), req)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if reg.Addresses == nil {
		reg.Addresses = []models.Address{}
	}
	respondJSON(w, http.StatusOK, reg)
}

func (h *handlers) listAddresses(w http.ResponseWriter, r *http.Request) {
	customerID, ok := pathID(r, "customerID")
	if !ok {
		badRequest(w, r, "invalid_id", "ID do cliente inválido")
		return
	}

	addresses, err := h.customers.ListAddresses(r.Context(), customerID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if addresses == nil {
		addresses = []models.Address{}
	}
	respondJSON(w, http.StatusOK, addresses)
}

func (h *handlers) createAddress(w http.ResponseWriter, r *http.Request) {
	customerID, ok := pathID(r, "customerID")
	if !ok {
		badRequest(w, r, "invalid_id", "ID do cliente inválido")
		return
	}

	var req service.AddressInput
	if !decodeJSON(w, r, &req) {
		return
	}

	address, err := h.customers.CreateAddress(r.Context(), customerID, req)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/addresses/"+strconv.FormatInt(address.ID, 10))
	respondJSON(w, http.StatusCreated, address)
}

func (h *handlers) updateAddress(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "addressID")
	if !ok {
		badRequest(w, r, "invalid_id", "ID do endereço inválido")
		return
	}

	var req service.AddressPatchInput
	if !decodeJSON(w, r, &req) {
		return
	}

	address, err := h.customers.UpdateAddress(r.Context(), id, req)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, address)
}
