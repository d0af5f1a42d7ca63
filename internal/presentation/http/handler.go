package httppresentation

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Zhima-Mochi/minishop-checkout/internal/application"
	"github.com/Zhima-Mochi/minishop-checkout/internal/application/inventory"
	apporder "github.com/Zhima-Mochi/minishop-checkout/internal/application/order"
	apppayment "github.com/Zhima-Mochi/minishop-checkout/internal/application/payment"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability/logctx"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"
)

const (
	componentHTTPHandler = "http_server"
	maxBodyBytes         = 1 << 20
)

// Deps are the use cases served over HTTP. A nil use case leaves its route unmounted,
// so one router serves whichever services run in the process.
type Deps struct {
	Checkout *apporder.CheckoutUseCase
	Charge   *apppayment.CreateChargeUseCase
	Webhook  *apppayment.ProcessWebhookUseCase
	Product  *inventory.GetProductUseCase

	JWTKey           string
	PaymentAPIKey    string
	WebhookToken     string
	WebhookRateLimit float64 // requests per second; <= 0 disables throttling
	RequestTimeout   time.Duration

	Metrics http.Handler // mounted at /metrics when set
}

type Handler struct {
	checkout *apporder.CheckoutUseCase
	charge   *apppayment.CreateChargeUseCase
	webhook  *apppayment.ProcessWebhookUseCase
	product  *inventory.GetProductUseCase

	jwtKey       string
	apiKey       string
	webhookToken string
	webhookLimit *rate.Limiter
	timeout      time.Duration
	metrics      http.Handler

	log observability.Logger
	tel observability.Observability
}

func NewHandler(deps Deps, tel observability.Observability) *Handler {
	if tel == nil {
		tel = observability.Nop()
	}
	h := &Handler{
		checkout:     deps.Checkout,
		charge:       deps.Charge,
		webhook:      deps.Webhook,
		product:      deps.Product,
		jwtKey:       deps.JWTKey,
		apiKey:       deps.PaymentAPIKey,
		webhookToken: deps.WebhookToken,
		timeout:      deps.RequestTimeout,
		metrics:      deps.Metrics,
		log:          tel.Logger().With(observability.F("component", componentHTTPHandler)),
		tel:          tel,
	}
	if h.timeout <= 0 {
		h.timeout = 30 * time.Second
	}
	if deps.WebhookRateLimit > 0 {
		h.webhookLimit = rate.NewLimiter(rate.Limit(deps.WebhookRateLimit), max(1, int(deps.WebhookRateLimit)))
	}
	return h
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP, middleware.Recoverer, middleware.Timeout(h.timeout))

	h.handle(r, http.MethodGet, "/health", h.handleHealth)
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics)
	}
	if h.checkout != nil {
		h.handle(r, http.MethodPost, "/api/v1/orders/checkout", h.handleCheckout, h.requireJWT)
	}
	if h.charge != nil {
		h.handle(r, http.MethodPost, "/api/v1/bills", h.handleCreateBill, h.requireAPIKey)
	}
	if h.webhook != nil {
		h.handle(r, http.MethodPost, "/api/v1/payments/webhook", h.handleWebhook,
			h.throttleWebhook, h.requireWebhookToken)
	}
	if h.product != nil {
		h.handle(r, http.MethodGet, "/api/v1/products/{id}", h.handleGetProduct)
	}
	return r
}

// handle wires one route as Observability (trace, logger, metrics) → access log → mws → handler.
func (h *Handler) handle(r chi.Router, method, route string, fn http.HandlerFunc, mws ...func(http.Handler) http.Handler) {
	var next http.Handler = fn
	for i := len(mws) - 1; i >= 0; i-- {
		next = mws[i](next)
	}
	r.Method(method, route, ObservabilityMiddleware(route, h.log, h.tel)(h.withAccessLog(next)))
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// decodeJSON reads a single JSON object; strict rejects unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any, strict bool) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if strict {
		decoder.DisallowUnknownFields()
	}
	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeDomainError maps the application error taxonomy onto HTTP statuses.
// Unclassified errors are logged and hidden behind a generic 500.
func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, application.ErrValidation):
		writeError(w, http.StatusBadRequest, application.Message(err))
	case errors.Is(err, application.ErrForbidden):
		writeError(w, http.StatusForbidden, application.Message(err))
	case errors.Is(err, application.ErrNotFound):
		writeError(w, http.StatusNotFound, application.Message(err))
	case errors.Is(err, application.ErrConflict):
		writeError(w, http.StatusConflict, application.Message(err))
	case errors.Is(err, application.ErrUpstream):
		writeError(w, http.StatusBadGateway, application.Message(err))
	default:
		logctx.FromOr(r.Context(), h.log).Error("http_internal_error", observability.F("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}
