package httppresentation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	apporder "github.com/Zhima-Mochi/minishop-checkout/internal/application/order"
	"github.com/Zhima-Mochi/minishop-checkout/internal/pkg/auth"

	"github.com/shopspring/decimal"
)

// flexUserID accepts a JSON number or a numeric string.
type flexUserID struct {
	set   bool
	value int64
}

func (f *flexUserID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	s := string(b)
	if strings.HasPrefix(s, `"`) {
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return nil
		}
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("userId must be an integer: %w", err)
	}
	f.set, f.value = true, v
	return nil
}

type checkoutRequest struct {
	UserID        flexUserID      `json:"userId"`
	ProductIDs    []int64         `json:"productIds"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod string          `json:"paymentMethod"`
}

type checkoutResponse struct {
	OrderID        string `json:"orderId"`
	Status         string `json:"status"`
	PaymentLink    string `json:"paymentLink,omitempty"`
	InvoiceURL     string `json:"invoiceUrl,omitempty"`
	PixQrCodeImage string `json:"pixQrCodeImage,omitempty"`
	PixCopyPaste   string `json:"pixCopyPaste,omitempty"`
}

func (h *Handler) handleCheckout(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.RequireUserID(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Missing or invalid Authorization header")
		return
	}
	var req checkoutRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	in := apporder.CheckoutInput{
		AuthenticatedUserID: userID,
		ProductIDs:          req.ProductIDs,
		ClaimedAmount:       req.Amount,
		PaymentMethod:       req.PaymentMethod,
	}
	if req.UserID.set {
		in.RequestedUserID = &req.UserID.value
	}

	result, err := h.checkout.Execute(r.Context(), in)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, checkoutResponse{
		OrderID:        result.OrderID,
		Status:         string(result.Status),
		PaymentLink:    result.PaymentLink,
		InvoiceURL:     result.InvoiceURL,
		PixQrCodeImage: result.PixQrCodeImage,
		PixCopyPaste:   result.PixCopyPaste,
	})
}
