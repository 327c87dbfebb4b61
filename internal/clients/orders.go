package clients

import (
	"context"
	"net/http"
	"net/url"

	"github.com/kauppa/kauppa-sub000/internal/domain"
)

// OrdersClient is used by the worker to feed shipment notifications back
// into the orders service.
type OrdersClient struct {
	client jsonClient
}

func NewOrdersClient(baseURL string, client *http.Client) *OrdersClient {
	return &OrdersClient{client: newJSONClient("orders", baseURL, client)}
}

func (c *OrdersClient) UpdateShipment(ctx context.Context, n domain.ShipmentNotification) error {
	return c.client.do(ctx, http.MethodPost, "/orders/"+url.PathEscape(n.OrderID)+"/shipments", n, nil)
}
