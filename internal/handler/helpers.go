package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/boddenberg/farma-crm-bfa-go/internal/domain"

	"go.uber.org/zap"
)

// ============================================================
// Shared helper functions
// ============================================================

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// kinded errors carry the name the frontend switches on.
type kinded interface {
	Kind() string
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// decodeJSON decodes the request body into v. An empty body is an error
// unless optional is set.
func decodeJSON(r *http.Request, v any, optional bool) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if optional && errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// handleServiceError maps domain errors to HTTP responses.
func handleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	var notFound *domain.ErrNotFound
	var circuitOpen *domain.ErrCircuitOpen
	var validation *domain.ErrValidation
	var unauthenticated *domain.ErrUnauthenticated
	var duplicateProduct *domain.ErrDuplicateProduct
	var duplicateData *domain.ErrDuplicateData
	var productInUse *domain.ErrProductInUse
	var external *domain.ErrExternalService

	switch {
	case errors.As(err, &notFound):
		logger.Debug("not found", zap.String("error", err.Error()))
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &validation):
		logger.Debug("validation error", zap.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &unauthenticated):
		logger.Warn("unauthenticated", zap.String("error", err.Error()))
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.As(err, &duplicateProduct):
		logger.Debug("duplicate product", zap.String("product", duplicateProduct.ProductName))
		writeKindedError(w, http.StatusConflict, duplicateProduct)
	case errors.As(err, &duplicateData):
		logger.Debug("duplicate data", zap.String("resource", duplicateData.Resource))
		writeKindedError(w, http.StatusConflict, duplicateData)
	case errors.As(err, &productInUse):
		logger.Debug("product in use", zap.String("product_id", productInUse.ProductID))
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error(), Kind: "ProductInUseError"})
	case errors.As(err, &circuitOpen):
		logger.Error("circuit breaker open", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.As(err, &external):
		logger.Error("external service error", zap.String("service", external.Service), zap.Error(err))
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		logger.Error("unhandled error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func writeKindedError(w http.ResponseWriter, status int, err interface {
	error
	kinded
}) {
	writeJSON(w, status, errorResponse{Error: err.Error(), Kind: err.Kind()})
}
