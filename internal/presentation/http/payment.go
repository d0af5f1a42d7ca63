package httppresentation

import (
	"net/http"

	apppayment "github.com/Zhima-Mochi/minishop-checkout/internal/application/payment"

	"github.com/shopspring/decimal"
)

type createBillRequest struct {
	UserID      int64           `json:"userId"`
	BillingType string          `json:"billingType"`
	Value       decimal.Decimal `json:"value"`
	Description string          `json:"description"`
}

type billResponse struct {
	ID             string `json:"id"`
	CustomerID     string `json:"customerId"`
	DateCreated    string `json:"dateCreated,omitempty"`
	InvoiceURL     string `json:"invoiceUrl,omitempty"`
	PaymentLink    string `json:"paymentLink,omitempty"`
	PixQrCodeImage string `json:"pixQrCodeImage,omitempty"`
	PixCopyPaste   string `json:"pixCopyPaste,omitempty"`
}

func (h *Handler) handleCreateBill(w http.ResponseWriter, r *http.Request) {
	var req createBillRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.charge.Execute(r.Context(), apppayment.CreateChargeInput{
		UserID:      req.UserID,
		Method:      req.BillingType,
		Value:       req.Value,
		Description: req.Description,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	out := billResponse{
		ID:             res.PaymentID,
		CustomerID:     res.CustomerID,
		InvoiceURL:     res.InvoiceURL,
		PaymentLink:    res.PaymentLink,
		PixQrCodeImage: res.PixQrCodeImage,
		PixCopyPaste:   res.PixCopyPaste,
	}
	if !res.DateCreated.IsZero() {
		out.DateCreated = res.DateCreated.Format("2006-01-02")
	}
	writeJSON(w, http.StatusCreated, out)
}

// webhookRequest is the gateway callback; unknown fields are ignored.
type webhookRequest struct {
	Event   string `json:"event"`
	Payment struct {
		ID     string          `json:"id"`
		Status string          `json:"status"`
		Value  decimal.Decimal `json:"value"`
	} `json:"payment"`
}

// handleWebhook answers 200 for applied and ignored callbacks alike;
// only a failure to apply one is reported so the gateway redelivers it.
func (h *Handler) handleWebhook(w http.ResponseWriter, r *http.Request) {
	var req webhookRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	_, err := h.webhook.Execute(r.Context(), apppayment.WebhookInput{
		Event:     req.Event,
		PaymentID: req.Payment.ID,
		Status:    req.Payment.Status,
		Value:     req.Payment.Value,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}
