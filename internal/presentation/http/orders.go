package httppresentation

import (
	"errors"
	"net/http"
	"time"

	appOrder "github.com/Zhima-Mochi/minishop-checkout/internal/application/order"
	domainOrder "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
)

type placeOrderRequest struct {
	CustomerID        string   `json:"customer_id"`
	CustomerName      string   `json:"customer_name"`
	Products          []string `json:"products"`
	Quantities        []int    `json:"quantities"`
	ShippingAddressID string   `json:"shipping_address_id"`
	CouponCode        string   `json:"coupon_code"`
	Gateway           string   `json:"gateway"`
}

type placeOrderResponse struct {
	Status      string `json:"status"`
	OrderID     string `json:"order_id"`
	Amount      string `json:"amount"`
	AmountMinor int64  `json:"amount_minor,omitempty"`
	Currency    string `json:"currency,omitempty"`
	Gateway     string `json:"gateway,omitempty"`
	InvoiceURL  string `json:"invoice_url,omitempty"`
	Message     string `json:"message,omitempty"`
}

func (h *Handler) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if err := decodeJSON(http.MaxBytesReader(w, r.Body, maxBodyBytes), &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	res, err := h.uc.PlaceOrder.Execute(r.Context(), appOrder.PlaceOrderInput{
		CustomerID:        req.CustomerID,
		CustomerName:      req.CustomerName,
		ProductIDs:        req.Products,
		Quantities:        req.Quantities,
		ShippingAddressID: req.ShippingAddressID,
		CouponCode:        req.CouponCode,
		Gateway:           req.Gateway,
	})
	if err != nil && errors.Is(err, appOrder.ErrInvoiceUnavailable) && res != nil {
		writeJSON(w, http.StatusAccepted, placeOrderResponse{
			Status:      "pending_invoice",
			OrderID:     res.OrderID,
			Amount:      res.Total.StringFixed(2),
			AmountMinor: res.AmountMinor,
			Currency:    res.Currency,
			Gateway:     res.Gateway,
			Message:     "order placed; payment link unavailable, retry via /orders/" + res.OrderID + "/invoice",
		})
		return
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, placeOrderResponse{
		Status:      "success",
		OrderID:     res.OrderID,
		Amount:      res.Total.StringFixed(2),
		AmountMinor: res.AmountMinor,
		Currency:    res.Currency,
		Gateway:     res.Gateway,
		InvoiceURL:  res.InvoiceURL,
	})
}

type invoiceRequest struct {
	CustomerName string `json:"customer_name"`
}

type invoiceResponse struct {
	Status      string `json:"status"`
	OrderID     string `json:"order_id"`
	Gateway     string `json:"gateway"`
	InvoiceURL  string `json:"invoice_url"`
	AmountMinor int64  `json:"amount_minor"`
	Reused      bool   `json:"reused"`
}

func (h *Handler) handleRequestInvoice(w http.ResponseWriter, r *http.Request) {
	var req invoiceRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(http.MaxBytesReader(w, r.Body, maxBodyBytes), &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}

	res, err := h.uc.RequestInvoice.Execute(r.Context(), appOrder.RequestInvoiceInput{
		OrderID:      r.PathValue("id"),
		CustomerName: req.CustomerName,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, invoiceResponse{
		Status:      "success",
		OrderID:     res.OrderID,
		Gateway:     res.Gateway,
		InvoiceURL:  res.InvoiceURL,
		AmountMinor: res.AmountMinor,
		Reused:      res.Reused,
	})
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

type cancelResponse struct {
	Status          string                    `json:"status"`
	OrderID         string                    `json:"order_id"`
	PaymentStatus   domainOrder.PaymentStatus `json:"payment_status"`
	AlreadyCanceled bool                      `json:"already_canceled"`
}

func (h *Handler) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(http.MaxBytesReader(w, r.Body, maxBodyBytes), &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}

	res, err := h.uc.CancelOrder.Execute(r.Context(), appOrder.CancelOrderInput{
		OrderID: r.PathValue("id"),
		Reason:  req.Reason,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cancelResponse{
		Status:          "success",
		OrderID:         res.OrderID,
		PaymentStatus:   res.PaymentStatus,
		AlreadyCanceled: res.AlreadyCanceled,
	})
}

type orderLineView struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	Ready     bool   `json:"ready"`
}

type paymentView struct {
	Gateway       string `json:"gateway"`
	Status        string `json:"status"`
	Amount        string `json:"amount"`
	TransactionID string `json:"transaction_id,omitempty"`
	InvoiceID     string `json:"invoice_id,omitempty"`
	InvoiceURL    string `json:"invoice_url,omitempty"`
}

type orderView struct {
	OrderID           string                    `json:"order_id"`
	CustomerID        string                    `json:"customer_id"`
	PaymentStatus     domainOrder.PaymentStatus `json:"payment_status"`
	Paid              bool                      `json:"paid"`
	Subtotal          string                    `json:"subtotal"`
	Discount          string                    `json:"discount"`
	ShippingFee       string                    `json:"shipping_fee"`
	Tax               string                    `json:"tax"`
	Total             string                    `json:"total"`
	ShippingAddressID string                    `json:"shipping_address_id"`
	CouponCode        string                    `json:"coupon_code,omitempty"`
	Lines             []orderLineView           `json:"lines"`
	Payment           *paymentView              `json:"payment,omitempty"`
	CreatedAt         time.Time                 `json:"created_at"`
	UpdatedAt         time.Time                 `json:"updated_at"`
}

func (h *Handler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	res, err := h.uc.GetOrder.Execute(r.Context(), appOrder.GetOrderInput{OrderID: r.PathValue("id")})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderView(res))
}

func toOrderView(v *appOrder.OrderView) orderView {
	o := v.Order
	out := orderView{
		OrderID:           o.ID,
		CustomerID:        o.CustomerID,
		PaymentStatus:     o.PaymentStatus,
		Paid:              o.Paid,
		Subtotal:          o.Subtotal.StringFixed(2),
		Discount:          o.Discount.StringFixed(2),
		ShippingFee:       o.ShippingFee.StringFixed(2),
		Tax:               o.Tax.StringFixed(2),
		Total:             o.Total.StringFixed(2),
		ShippingAddressID: o.ShippingAddressID,
		CouponCode:        o.CouponCode,
		Lines:             make([]orderLineView, 0, len(o.Lines)),
		CreatedAt:         o.CreatedAt,
		UpdatedAt:         o.UpdatedAt,
	}
	for _, l := range o.Lines {
		out.Lines = append(out.Lines, orderLineView{
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice.StringFixed(2),
			Ready:     l.Ready,
		})
	}
	if p := v.Payment; p != nil {
		out.Payment = &paymentView{
			Gateway:       p.Gateway,
			Status:        string(p.Status),
			Amount:        p.Amount.StringFixed(2),
			TransactionID: p.TransactionID,
			InvoiceID:     p.InvoiceID,
			InvoiceURL:    p.InvoiceURL,
		}
	}
	return out
}
