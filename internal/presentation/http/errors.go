package httppresentation

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	appOrder "github.com/Zhima-Mochi/minishop-checkout/internal/application/order"
	appPayment "github.com/Zhima-Mochi/minishop-checkout/internal/application/payment"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/inventory"
	domainPayment "github.com/Zhima-Mochi/minishop-checkout/internal/domain/payment"
)

type errorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func decodeJSON(r io.Reader, dst any) error {
	decoder := json.NewDecoder(r)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Status: "error", Message: err.Error()})
}

func writeDomainError(w http.ResponseWriter, err error) {
	var verr *appOrder.ValidationError
	if errors.As(err, &verr) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Status: "error", Message: verr.Error(), Field: verr.Field})
		return
	}
	writeError(w, statusForError(err), err)
}

func statusForError(err error) int {
	var gerr *domainPayment.GatewayError
	switch {
	case errors.Is(err, inventory.ErrInsufficientStock),
		errors.Is(err, appOrder.ErrOrderNotPayable),
		errors.Is(err, appOrder.ErrOrderSettled),
		errors.Is(err, appOrder.ErrInvalidStateTransition):
		return http.StatusConflict
	case errors.Is(err, appOrder.ErrNotFound),
		errors.Is(err, appOrder.ErrProductNotFound),
		errors.Is(err, appPayment.ErrOrderNotFound),
		errors.Is(err, domainPayment.ErrUnknownGateway):
		return http.StatusNotFound
	case errors.Is(err, appPayment.ErrSignatureInvalid):
		return http.StatusUnauthorized
	case errors.Is(err, appPayment.ErrUnrecognizedPayload):
		return http.StatusBadRequest
	case errors.Is(err, appOrder.ErrInvoiceUnavailable), errors.As(err, &gerr):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
