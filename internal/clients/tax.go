package clients

import (
	"context"
	"net/http"
	"net/url"

	"github.com/kauppa/kauppa-sub000/internal/domain"
)

type TaxClient struct {
	client jsonClient
}

func NewTaxClient(baseURL string, client *http.Client) *TaxClient {
	return &TaxClient{client: newJSONClient("tax", baseURL, client)}
}

func (c *TaxClient) GetRate(ctx context.Context, address domain.Address) (domain.TaxRate, error) {
	query := url.Values{}
	query.Set("country", address.Country)
	if address.Region != "" {
		query.Set("region", address.Region)
	}
	if address.PostalCode != "" {
		query.Set("postal_code", address.PostalCode)
	}

	var rate domain.TaxRate
	if err := c.client.do(ctx, http.MethodGet, "/rates?"+query.Encode(), nil, &rate); err != nil {
		return domain.TaxRate{}, err
	}
	return rate, nil
}
