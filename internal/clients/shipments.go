package clients

import (
	"context"
	"net/http"

	"github.com/kauppa/kauppa-sub000/internal/domain"
)

type ShipmentClient struct {
	client jsonClient
}

func NewShipmentClient(baseURL string, client *http.Client) *ShipmentClient {
	return &ShipmentClient{client: newJSONClient("shipments", baseURL, client)}
}

func (c *ShipmentClient) CreateShipment(ctx context.Context, req domain.ShipmentRequest) (domain.Shipment, error) {
	return c.post(ctx, "/shipments", req)
}

func (c *ShipmentClient) SchedulePickup(ctx context.Context, req domain.ShipmentRequest) (domain.Shipment, error) {
	return c.post(ctx, "/pickups", req)
}

func (c *ShipmentClient) post(ctx context.Context, path string, req domain.ShipmentRequest) (domain.Shipment, error) {
	var shipment domain.Shipment
	if err := c.client.do(ctx, http.MethodPost, path, req, &shipment); err != nil {
		return domain.Shipment{}, err
	}
	return shipment, nil
}
