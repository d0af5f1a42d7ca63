package peer

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Zhima-Mochi/minishop-checkout/internal/application/inventory"
	apporder "github.com/Zhima-Mochi/minishop-checkout/internal/application/order"
	domcatalog "github.com/Zhima-Mochi/minishop-checkout/internal/domain/catalog"
	"github.com/Zhima-Mochi/minishop-checkout/internal/pkg/httpx"

	"github.com/shopspring/decimal"
)

// LocalCatalog serves quotes from the store service running in the same process.
type LocalCatalog struct {
	products *inventory.GetProductUseCase
}

var _ apporder.Catalog = (*LocalCatalog)(nil)

func NewLocalCatalog(products *inventory.GetProductUseCase) *LocalCatalog {
	return &LocalCatalog{products: products}
}

func (c *LocalCatalog) GetProduct(ctx context.Context, id int64) (*domcatalog.Product, error) {
	return c.products.Execute(ctx, id)
}

type productResponse struct {
	ID          int64           `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Photos      []string        `json:"photos"`
	Price       decimal.Decimal `json:"price"`
	Quantity    *int            `json:"quantity"`
}

// HTTPCatalog reads products from a remote store service.
type HTTPCatalog struct {
	client *httpx.Client
}

var _ apporder.Catalog = (*HTTPCatalog)(nil)

func NewHTTPCatalog(baseURL string, timeout time.Duration) *HTTPCatalog {
	return &HTTPCatalog{client: httpx.New(httpx.Options{Name: "store", BaseURL: baseURL, Timeout: timeout})}
}

func (c *HTTPCatalog) GetProduct(ctx context.Context, id int64) (*domcatalog.Product, error) {
	var out productResponse
	err := c.client.Do(ctx, http.MethodGet, fmt.Sprintf("/api/v1/products/%d", id), nil, &out)
	if httpx.IsStatus(err, http.StatusNotFound) {
		return nil, fmt.Errorf("%w: %d", domcatalog.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get product %d: %w", id, err)
	}
	p := &domcatalog.Product{
		ID:          out.ID,
		Title:       out.Title,
		Description: out.Description,
		Photos:      out.Photos,
		Price:       out.Price,
	}
	if out.Quantity != nil {
		p.Quantity = *out.Quantity
	}
	return p, nil
}
