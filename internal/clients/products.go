package clients

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/kauppa/kauppa-sub000/internal/domain"
)

type ProductClient struct {
	client jsonClient
}

func NewProductClient(baseURL string, client *http.Client) *ProductClient {
	return &ProductClient{client: newJSONClient("products", baseURL, client)}
}

func (c *ProductClient) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	var product domain.Product
	if err := c.client.do(ctx, http.MethodGet, "/products/"+url.PathEscape(id), nil, &product); err != nil {
		return domain.Product{}, err
	}
	return product, nil
}

// AdjustInventory changes the stock of a product by delta. A conflict from
// the products service means the stock would go negative.
func (c *ProductClient) AdjustInventory(ctx context.Context, id string, delta int) error {
	err := c.client.do(ctx, http.MethodPost, "/products/"+url.PathEscape(id)+"/inventory", domain.InventoryAdjustment{Delta: delta}, nil)
	var status *StatusError
	if errors.As(err, &status) && status.Status == http.StatusConflict {
		return &domain.Error{Kind: domain.ErrProductUnavailable, ProductID: id, Quantity: -delta}
	}
	return err
}
