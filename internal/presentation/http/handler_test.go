package httppresentation

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Zhima-Mochi/minishop-checkout/internal/application/inventory"
	apporder "github.com/Zhima-Mochi/minishop-checkout/internal/application/order"
	apppayment "github.com/Zhima-Mochi/minishop-checkout/internal/application/payment"
	domcatalog "github.com/Zhima-Mochi/minishop-checkout/internal/domain/catalog"
	domcustomer "github.com/Zhima-Mochi/minishop-checkout/internal/domain/customer"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/gateway"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/id"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/memory"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/peer"

	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testJWTKey  = "test-jwt-key"
	testAPIKey  = "test-api-key"
	testWebhook = "hook-token"
)

type fixture struct {
	srv *httptest.Server
	box *memory.Outbox
}

// recorded lists the names of events written by the served use cases.
func (f *fixture) recorded(t *testing.T) []string {
	t.Helper()
	msgs, err := f.box.Pending(context.Background(), 0)
	require.NoError(t, err)
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Name)
	}
	return out
}

func newFixture(t *testing.T, mutate func(*Deps)) *fixture {
	t.Helper()
	ctx := context.Background()

	products := memory.NewProductRepository()
	for _, p := range []struct {
		id    int64
		price string
		qty   int
	}{{10, "5.00", 5}, {11, "3.50", 1}} {
		prod, err := domcatalog.NewProduct(p.id, "p", "", nil, decimal.RequireFromString(p.price), p.qty)
		require.NoError(t, err)
		require.NoError(t, products.Save(ctx, prod))
	}
	customers := memory.NewCustomerRepository()
	require.NoError(t, customers.Insert(ctx, &domcustomer.Mapping{ID: "m7", ExternalCustomerID: "cus_7", UserID: 7}))

	box := memory.NewOutbox()
	bills := memory.NewBillRepository(box)
	ids := id.NewUUIDGenerator()
	getProduct := inventory.NewGetProductUseCase(products, nil)
	charge := apppayment.NewCreateChargeUseCase(bills, customers, gateway.NewSandbox(), ids, nil)

	deps := Deps{
		Checkout: apporder.NewCheckoutUseCase(memory.NewOrderRepository(box),
			peer.NewLocalCatalog(getProduct), peer.NewLocalPayments(charge), ids, nil),
		Charge:        charge,
		Webhook:       apppayment.NewProcessWebhookUseCase(bills, nil),
		Product:       getProduct,
		JWTKey:        testJWTKey,
		PaymentAPIKey: testAPIKey,
		WebhookToken:  testWebhook,
	}
	if mutate != nil {
		mutate(&deps)
	}
	srv := httptest.NewServer(NewHandler(deps, nil).Router())
	t.Cleanup(srv.Close)
	return &fixture{srv: srv, box: box}
}

func token(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testJWTKey))
	require.NoError(t, err)
	return s
}

func (f *fixture) do(t *testing.T, method, path, body string, header map[string]string) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, f.srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]any{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func TestHealth(t *testing.T) {
	f := newFixture(t, nil)
	resp, err := http.Get(f.srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestCheckoutAuth(t *testing.T) {
	f := newFixture(t, nil)
	body := `{"productIds":[10],"amount":5,"paymentMethod":"PIX"}`

	cases := []struct {
		name   string
		header string
		msg    string
	}{
		{"missing header", "", "Missing or invalid Authorization header"},
		{"bad signature", "Bearer " + token(t, jwt.MapClaims{"userId": 7})[:20] + "x.y", "Invalid or expired token"},
		{"no user id", "Bearer " + token(t, jwt.MapClaims{"sub": "ana"}), "Token does not contain userId"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, out := f.do(t, http.MethodPost, "/api/v1/orders/checkout", body, map[string]string{"Authorization": tc.header})
			assert.Equal(t, http.StatusUnauthorized, status)
			assert.Equal(t, tc.msg, out["error"])
		})
	}
}

func TestCheckoutCreatesOrder(t *testing.T) {
	f := newFixture(t, nil)
	auth := map[string]string{"Authorization": "Bearer " + token(t, jwt.MapClaims{"userId": "7"})}

	status, out := f.do(t, http.MethodPost, "/api/v1/orders/checkout",
		`{"userId":"7","productIds":[10,10,11],"amount":13.50,"paymentMethod":"PIX"}`, auth)
	require.Equal(t, http.StatusCreated, status, out)
	assert.NotEmpty(t, out["orderId"])
	assert.Equal(t, "PENDING", out["status"])
	assert.Contains(t, out["pixQrCodeImage"], "data:image/png;base64,")
	assert.Contains(t, f.recorded(t), "payment.requested")
}

func TestCheckoutErrors(t *testing.T) {
	f := newFixture(t, nil)
	auth := map[string]string{"Authorization": "Bearer " + token(t, jwt.MapClaims{"userId": 7})}

	status, out := f.do(t, http.MethodPost, "/api/v1/orders/checkout",
		`{"productIds":[10,10,11],"amount":13.49,"paymentMethod":"PIX"}`, auth)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Checkout amount does not match products total", out["error"])

	status, _ = f.do(t, http.MethodPost, "/api/v1/orders/checkout",
		`{"userId":8,"productIds":[10],"amount":5,"paymentMethod":"PIX"}`, auth)
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = f.do(t, http.MethodPost, "/api/v1/orders/checkout",
		`{"productIds":[10],"amount":5,"paymentMethod":"PIX","coupon":"x"}`, auth)
	assert.Equal(t, http.StatusBadRequest, status, "unknown fields are rejected")

	assert.Empty(t, f.recorded(t))
}

func TestCreateBillAPIKey(t *testing.T) {
	body := `{"userId":7,"billingType":"BOLETO","value":20}`

	f := newFixture(t, nil)
	status, out := f.do(t, http.MethodPost, "/api/v1/bills", body, map[string]string{"access_token": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Invalid API key", out["error"])

	status, out = f.do(t, http.MethodPost, "/api/v1/bills", body, map[string]string{"access_token": testAPIKey})
	require.Equal(t, http.StatusCreated, status, out)
	assert.Equal(t, "cus_7", out["customerId"])
	assert.NotEmpty(t, out["id"])

	status, out = f.do(t, http.MethodPost, "/api/v1/bills", `{"userId":99,"billingType":"PIX","value":20}`,
		map[string]string{"access_token": testAPIKey})
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "Asaas customer not found", out["error"])

	unconfigured := newFixture(t, func(d *Deps) { d.PaymentAPIKey = "" })
	status, out = unconfigured.do(t, http.MethodPost, "/api/v1/bills", body, map[string]string{"access_token": ""})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Server API key not configured", out["error"])
}

func TestWebhook(t *testing.T) {
	f := newFixture(t, nil)
	hook := map[string]string{"asaas-access-token": testWebhook}

	status, out := f.do(t, http.MethodPost, "/api/v1/bills", `{"userId":7,"billingType":"PIX","value":13.5}`,
		map[string]string{"access_token": testAPIKey})
	require.Equal(t, http.StatusCreated, status)
	paymentID := out["id"].(string)

	status, _ = f.do(t, http.MethodPost, "/api/v1/payments/webhook",
		`{"event":"PAYMENT_RECEIVED","payment":{"id":"`+paymentID+`","status":"RECEIVED"}}`,
		map[string]string{"asaas-access-token": "nope"})
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = f.do(t, http.MethodPost, "/api/v1/payments/webhook", `{"event":"PAYMENT_RECEIVED","payment":{}}`, hook)
	assert.Equal(t, http.StatusOK, status, "blank payment id is acknowledged")

	status, _ = f.do(t, http.MethodPost, "/api/v1/payments/webhook",
		`{"event":"PAYMENT_RECEIVED","payment":{"id":"`+paymentID+`","status":"RECEIVED","value":13.5,"billingType":"PIX"}}`, hook)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, []string{"payment.approved"}, f.recorded(t))
}

func TestWebhookThrottlePacesInsteadOfRejecting(t *testing.T) {
	f := newFixture(t, func(d *Deps) { d.WebhookRateLimit = 2 })
	hook := map[string]string{"asaas-access-token": testWebhook}
	body := `{"event":"PAYMENT_RECEIVED","payment":{}}`

	start := time.Now()
	for range 4 {
		status, _ := f.do(t, http.MethodPost, "/api/v1/payments/webhook", body, hook)
		assert.Equal(t, http.StatusOK, status)
	}
	assert.GreaterOrEqual(t, time.Since(start), 500*time.Millisecond)
}

func TestWebhookThrottleAcknowledgesPastDeadline(t *testing.T) {
	f := newFixture(t, func(d *Deps) {
		d.WebhookRateLimit = 0.01
		d.RequestTimeout = 200 * time.Millisecond
	})
	hook := map[string]string{"asaas-access-token": testWebhook}
	body := `{"event":"PAYMENT_RECEIVED","payment":{}}`

	for range 3 {
		status, _ := f.do(t, http.MethodPost, "/api/v1/payments/webhook", body, hook)
		assert.Equal(t, http.StatusOK, status)
	}
}

func TestGetProduct(t *testing.T) {
	f := newFixture(t, nil)

	status, out := f.do(t, http.MethodGet, "/api/v1/products/11", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.InDelta(t, 3.5, out["price"], 0.0001)
	assert.InDelta(t, 1, out["quantity"], 0)

	status, out = f.do(t, http.MethodGet, "/api/v1/products/99", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "Product 99 not found", out["error"])

	status, _ = f.do(t, http.MethodGet, "/api/v1/products/abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestUnmountedRoutes(t *testing.T) {
	f := newFixture(t, func(d *Deps) { d.Checkout = nil })
	status, _ := f.do(t, http.MethodPost, "/api/v1/orders/checkout", `{}`, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestUserIDClaim(t *testing.T) {
	v, err := userIDClaim(float64(7))
	require.NoError(t, err)
	assert.Equal(t, int64(7), v)

	v, err = userIDClaim(" 12 ")
	require.NoError(t, err)
	assert.Equal(t, int64(12), v)

	_, err = userIDClaim(nil)
	assert.ErrorIs(t, err, errNoUserID)
	_, err = userIDClaim("abc")
	assert.Error(t, err)

	for _, bad := range []float64{1.9, -0.5, 1e300, -1e300, math.NaN(), math.Inf(1)} {
		_, err = userIDClaim(bad)
		assert.ErrorIs(t, err, errInvalidUserID, "%v", bad)
	}
}

func TestCheckoutRejectsFractionalUserID(t *testing.T) {
	f := newFixture(t, nil)
	auth := map[string]string{"Authorization": "Bearer " + token(t, jwt.MapClaims{"userId": 7.9})}

	status, out := f.do(t, http.MethodPost, "/api/v1/orders/checkout",
		`{"productIds":[10],"amount":5,"paymentMethod":"PIX"}`, auth)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Invalid or expired token", out["error"])
	assert.Empty(t, f.recorded(t))
}
