package clients

import (
	"context"
	"net/http"
	"net/url"

	"github.com/kauppa/kauppa-sub000/internal/domain"
)

type AccountClient struct {
	client jsonClient
}

func NewAccountClient(baseURL string, client *http.Client) *AccountClient {
	return &AccountClient{client: newJSONClient("accounts", baseURL, client)}
}

func (c *AccountClient) GetAccount(ctx context.Context, id string) (domain.Account, error) {
	var account domain.Account
	if err := c.client.do(ctx, http.MethodGet, "/accounts/"+url.PathEscape(id), nil, &account); err != nil {
		return domain.Account{}, err
	}
	return account, nil
}
