package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/safar/kitrunner/internal/apperr"
	"github.com/safar/kitrunner/internal/handler/dto"
	"github.com/safar/kitrunner/internal/observability"
)

const maxBodySize = 1 << 20

var errBodyTooLarge = errors.New("request body too large")

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, r *http.Request, body dto.ErrorBody) {
	if body.Status == 0 {
		body.Status = http.StatusInternalServerError
	}
	body.RequestID = middleware.GetReqID(r.Context())
	respondJSON(w, body.Status, body)
}

func badRequest(w http.ResponseWriter, r *http.Request, code, message string) {
	writeError(w, r, dto.ErrorBody{Code: code, Message: message, Status: http.StatusBadRequest})
}

// respondServiceError maps the apperr kinds to HTTP statuses. Persistence
// causes are logged and never sent to the client.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		verr     *apperr.ValidationError
		notFound *apperr.NotFoundError
		conflict *apperr.ConflictError
		persist  *apperr.PersistenceError
	)

	switch {
	case errors.As(err, &verr):
		writeError(w, r, dto.ErrorBody{
			Code:    "validation_failed",
			Message: "Dados inválidos",
			Status:  http.StatusBadRequest,
			Errors:  verr.Fields,
		})
	case errors.As(err, &notFound):
		writeError(w, r, dto.ErrorBody{
			Code:    notFound.Entity + "_not_found",
			Message: notFound.Message,
			Status:  http.StatusNotFound,
		})
	case errors.As(err, &conflict):
		writeError(w, r, dto.ErrorBody{Code: "conflict", Message: conflict.Message, Status: http.StatusConflict})
	case errors.As(err, &persist):
		observability.FromContext(r.Context()).Error("request failed", zap.String("message", persist.Message), zap.Error(persist.Cause))
		writeError(w, r, dto.ErrorBody{Code: "internal_error", Message: persist.Message, Status: http.StatusInternalServerError})
	default:
		observability.FromContext(r.Context()).Error("unexpected error", zap.Error(err))
		writeError(w, r, dto.ErrorBody{Code: "internal_error", Message: "Erro interno", Status: http.StatusInternalServerError})
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := readJSON(w, r, dst); err != nil {
		if errors.Is(err, errBodyTooLarge) {
			writeError(w, r, dto.ErrorBody{Code: "payload_too_large", Message: "Requisição muito grande", Status: http.StatusRequestEntityTooLarge})
			return false
		}
		badRequest(w, r, "invalid_request", "Corpo da requisição inválido")
		return false
	}
	return true
}

func readJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return errBodyTooLarge
		}
		return fmt.Errorf("decode body: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("body must contain a single JSON value")
	}
	return nil
}

// pathID parses a positive integer URL parameter.
func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(chi.URLParam(r, name)), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
