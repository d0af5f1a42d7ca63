package peer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Zhima-Mochi/minishop-checkout/internal/application"
	"github.com/Zhima-Mochi/minishop-checkout/internal/application/inventory"
	apporder "github.com/Zhima-Mochi/minishop-checkout/internal/application/order"
	apppayment "github.com/Zhima-Mochi/minishop-checkout/internal/application/payment"
	domcatalog "github.com/Zhima-Mochi/minishop-checkout/internal/domain/catalog"
	domcustomer "github.com/Zhima-Mochi/minishop-checkout/internal/domain/customer"
	domorder "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/gateway"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/id"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/memory"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPCatalog(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/products/1":
			_, _ = w.Write([]byte(`{"id":1,"title":"Mug","price":5.25,"quantity":3}`))
		case "/api/v1/products/2":
			_, _ = w.Write([]byte(`{"id":2,"title":"Pen","price":"1.00"}`))
		case "/api/v1/products/9":
			http.Error(w, `{"error":"Product 9 not found"}`, http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	c := NewHTTPCatalog(srv.URL, time.Second)
	ctx := context.Background()

	p, err := c.GetProduct(ctx, 1)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("5.25").Equal(p.Price))
	assert.Equal(t, 3, p.Quantity)

	p, err = c.GetProduct(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 0, p.Quantity, "absent stock reads as zero")

	_, err = c.GetProduct(ctx, 9)
	assert.ErrorIs(t, err, domcatalog.ErrNotFound)

	_, err = c.GetProduct(ctx, 5)
	require.Error(t, err)
	assert.NotErrorIs(t, err, domcatalog.ErrNotFound)
}

func TestHTTPPayments(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/bills", r.URL.Path)
		assert.Equal(t, "k", r.Header.Get("access_token"))

		var in map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		if in["userId"] == float64(404) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"Asaas customer not found"}`))
			return
		}
		assert.Equal(t, "PIX", in["billingType"])
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"pay_1","customerId":"cus_1","invoiceUrl":"https://i/1"}`))
	}))
	defer srv.Close()

	p := NewHTTPPayments(srv.URL, "k", time.Second)
	ctx := context.Background()

	ch, err := p.CreateCharge(ctx, apporder.ChargeRequest{UserID: 7, Method: domorder.MethodPix, Amount: decimal.NewFromInt(10)})
	require.NoError(t, err)
	assert.Equal(t, "pay_1", ch.PaymentID)
	assert.Equal(t, "https://i/1", ch.Artifacts.InvoiceURL)

	_, err = p.CreateCharge(ctx, apporder.ChargeRequest{UserID: 404, Method: domorder.MethodPix, Amount: decimal.NewFromInt(10)})
	assert.ErrorIs(t, err, application.ErrNotFound)
	assert.Equal(t, "Asaas customer not found", application.Message(err))
}

func TestLocalCatalog(t *testing.T) {
	repo := memory.NewProductRepository()
	p, err := domcatalog.NewProduct(1, "Mug", "", nil, decimal.NewFromInt(5), 2)
	require.NoError(t, err)
	require.NoError(t, repo.Save(context.Background(), p))

	c := NewLocalCatalog(inventory.NewGetProductUseCase(repo, nil))

	got, err := c.GetProduct(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "Mug", got.Title)

	_, err = c.GetProduct(context.Background(), 2)
	assert.ErrorIs(t, err, domcatalog.ErrNotFound)
}

func TestLocalPayments(t *testing.T) {
	customers := memory.NewCustomerRepository()
	require.NoError(t, customers.Insert(context.Background(), &domcustomer.Mapping{
		ID: "m1", ExternalCustomerID: "cus_1", UserID: 7,
	}))
	charge := apppayment.NewCreateChargeUseCase(
		memory.NewBillRepository(nil), customers, gateway.NewSandbox(), id.NewUUIDGenerator(), nil,
	)
	p := NewLocalPayments(charge)

	ch, err := p.CreateCharge(context.Background(), apporder.ChargeRequest{
		UserID: 7, Method: domorder.MethodPix, Amount: decimal.NewFromInt(10), Description: "Pedido do usuario 7",
	})
	require.NoError(t, err)
	assert.Equal(t, "pay_sandbox_000001", ch.PaymentID)
	assert.Equal(t, "cus_1", ch.CustomerID)
	assert.Contains(t, ch.Artifacts.PixQrCodeImage, "data:image/png;base64,")

	_, err = p.CreateCharge(context.Background(), apporder.ChargeRequest{UserID: 8, Method: domorder.MethodPix, Amount: decimal.NewFromInt(10)})
	assert.ErrorIs(t, err, application.ErrNotFound)
}
