package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	domorder "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
	"github.com/Zhima-Mochi/minishop-checkout/internal/pkg/config"
	httppresentation "github.com/Zhima-Mochi/minishop-checkout/internal/presentation/http"

	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() config.Config {
	return config.Config{
		ServiceName: "minishop-test",
		Env:         "test",
		Services: map[string]bool{
			config.ServiceOrder:        true,
			config.ServicePayment:      true,
			config.ServiceStore:        true,
			config.ServiceNotification: true,
		},
		Bus:         config.BusMemory,
		JWTKey:      "e2e-key",
		SeedCatalog: true,
		PeerTimeout: time.Second,
	}
}

func post(t *testing.T, url, body string, header map[string]string) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url, strings.NewReader(body))
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

// Checkout of [10,10,11] for 13.50, then a RECEIVED webhook, completes the order and decrements stock.
func TestCheckoutSagaEndToEnd(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()

	a, err := build(ctx, cfg, observability.Nop())
	require.NoError(t, err)
	a.start(ctx)
	t.Cleanup(func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		a.stop(stopCtx)
	})

	deps := a.httpDeps
	deps.JWTKey = cfg.JWTKey
	srv := httptest.NewServer(httppresentation.NewHandler(deps, observability.Nop()).Router())
	t.Cleanup(srv.Close)

	require.Eventually(t, func() bool {
		ok, err := a.stores.customers.ExistsByUserID(ctx, 1)
		return err == nil && ok
	}, 2*time.Second, 10*time.Millisecond, "demo customer is provisioned from the seed event")

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"userId": 1}).SignedString([]byte(cfg.JWTKey))
	require.NoError(t, err)

	status, out := post(t, srv.URL+"/api/v1/orders/checkout",
		`{"productIds":[10,10,11],"amount":13.50,"paymentMethod":"BOLETO"}`,
		map[string]string{"Authorization": "Bearer " + token})
	require.Equal(t, http.StatusCreated, status, out)
	orderID, _ := out["orderId"].(string)
	require.NotEmpty(t, orderID)
	assert.Equal(t, "PENDING", out["status"])

	order, err := a.stores.orders.Get(ctx, orderID)
	require.NoError(t, err)
	require.NotEmpty(t, order.PaymentID)
	assert.True(t, order.TotalPrice.Equal(decimal.RequireFromString("13.50")))

	require.Eventually(t, func() bool {
		b, err := a.stores.bills.FindByPaymentID(ctx, order.PaymentID)
		return err == nil && b.OrderID == orderID
	}, 2*time.Second, 10*time.Millisecond, "bill is linked to the order")

	status, _ = post(t, srv.URL+"/api/v1/payments/webhook",
		`{"event":"PAYMENT_RECEIVED","payment":{"id":"`+order.PaymentID+`","status":"RECEIVED","value":13.50}}`, nil)
	require.Equal(t, http.StatusOK, status)

	require.Eventually(t, func() bool {
		o, err := a.stores.orders.Get(ctx, orderID)
		return err == nil && o.Status == domorder.StatusCompleted
	}, 2*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		p10, err10 := a.stores.products.Get(ctx, 10)
		p11, err11 := a.stores.products.Get(ctx, 11)
		return err10 == nil && err11 == nil && p10.Quantity == 3 && p11.Quantity == 0
	}, 2*time.Second, 10*time.Millisecond, "stock is decremented 5->3 and 1->0")

	// A redelivered webhook changes nothing.
	status, _ = post(t, srv.URL+"/api/v1/payments/webhook",
		`{"event":"PAYMENT_RECEIVED","payment":{"id":"`+order.PaymentID+`","status":"RECEIVED"}}`, nil)
	require.Equal(t, http.StatusOK, status)
	time.Sleep(50 * time.Millisecond)
	p10, err := a.stores.products.Get(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 3, p10.Quantity)
}

// A card charge is confirmed before its order is stored. Linking the bill to the order announces
// the approval again, so the order completes without any webhook.
func TestCheckoutCardChargeConfirmedOnCreation(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()

	a, err := build(ctx, cfg, observability.Nop())
	require.NoError(t, err)
	a.start(ctx)
	t.Cleanup(func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		a.stop(stopCtx)
	})

	deps := a.httpDeps
	deps.JWTKey = cfg.JWTKey
	srv := httptest.NewServer(httppresentation.NewHandler(deps, observability.Nop()).Router())
	t.Cleanup(srv.Close)

	require.Eventually(t, func() bool {
		ok, err := a.stores.customers.ExistsByUserID(ctx, 1)
		return err == nil && ok
	}, 2*time.Second, 10*time.Millisecond)

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"userId": 1}).SignedString([]byte(cfg.JWTKey))
	require.NoError(t, err)

	status, out := post(t, srv.URL+"/api/v1/orders/checkout",
		`{"productIds":[10],"amount":5,"paymentMethod":"CREDIT_CARD"}`,
		map[string]string{"Authorization": "Bearer " + token})
	require.Equal(t, http.StatusCreated, status, out)
	orderID, _ := out["orderId"].(string)
	require.NotEmpty(t, orderID)

	require.Eventually(t, func() bool {
		o, err := a.stores.orders.Get(ctx, orderID)
		return err == nil && o.Status == domorder.StatusCompleted
	}, 3*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		p10, err := a.stores.products.Get(ctx, 10)
		return err == nil && p10.Quantity == 4
	}, 2*time.Second, 10*time.Millisecond, "stock is decremented once")

	assert.Eventually(t, func() bool {
		msgs, err := a.stores.outbox.Pending(ctx, 0)
		return err == nil && len(msgs) == 0
	}, 2*time.Second, 10*time.Millisecond, "every recorded event was relayed")
}

func TestBuildWithoutStoreUsesHTTPCatalog(t *testing.T) {
	cfg := testConfig()
	cfg.Services = map[string]bool{config.ServiceOrder: true}

	a, err := build(context.Background(), cfg, observability.Nop())
	require.NoError(t, err)
	assert.Equal(t, []string{config.ServiceOrder}, a.services)
	assert.NotNil(t, a.httpDeps.Checkout)
	assert.Nil(t, a.httpDeps.Product)
	assert.Nil(t, a.httpDeps.Webhook)
}
