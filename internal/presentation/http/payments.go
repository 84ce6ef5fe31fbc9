package httppresentation

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	appPayment "github.com/Zhima-Mochi/minishop-checkout/internal/application/payment"
	domainPayment "github.com/Zhima-Mochi/minishop-checkout/internal/domain/payment"
)

type notificationResponse struct {
	Status  string `json:"status"`
	Outcome string `json:"outcome,omitempty"`
	OrderID string `json:"order_id,omitempty"`
	Message string `json:"message,omitempty"`
}

// handleCallback serves the customer's browser redirect back from the gateway.
func (h *Handler) handleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if len(q) == 0 {
		writeError(w, http.StatusBadRequest, errors.New("missing payment reference"))
		return
	}
	res, err := h.uc.HandleNotification.Execute(r.Context(), appPayment.HandleNotificationInput{
		Gateway: r.PathValue("gateway"),
		Notification: domainPayment.Notification{
			Channel: domainPayment.ChannelRedirect,
			Query:   q,
			Header:  r.Header.Clone(),
		},
	})
	h.writeNotification(w, res, err)
}

// handleWebhook serves server-to-server deliveries. Anything short of a bad
// signature is acknowledged so the gateway does not redeliver it.
func (h *Handler) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("read body: %w", err))
		return
	}
	res, err := h.uc.HandleNotification.Execute(r.Context(), appPayment.HandleNotificationInput{
		Gateway: r.PathValue("gateway"),
		Notification: domainPayment.Notification{
			Channel: domainPayment.ChannelWebhook,
			Query:   r.URL.Query(),
			Header:  r.Header.Clone(),
			Body:    body,
		},
	})
	h.writeNotification(w, res, err)
}

func (h *Handler) writeNotification(w http.ResponseWriter, res *appPayment.HandleNotificationResult, err error) {
	if res != nil && res.Ack {
		writeJSON(w, http.StatusOK, notificationResponse{
			Status:  "ok",
			Outcome: string(res.Outcome),
			OrderID: res.OrderID,
		})
		return
	}
	if err == nil {
		err = errors.New("notification rejected")
	}
	resp := notificationResponse{Status: "error", Message: err.Error()}
	if res != nil {
		resp.Outcome, resp.OrderID = string(res.Outcome), res.OrderID
	}
	writeJSON(w, statusForError(err), resp)
}
