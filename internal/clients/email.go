package clients

import (
	"context"
	"net/http"

	"github.com/kauppa/kauppa-sub000/internal/domain"
)

type EmailClient struct {
	client jsonClient
}

func NewEmailClient(baseURL string, client *http.Client) *EmailClient {
	return &EmailClient{client: newJSONClient("email", baseURL, client)}
}

func (c *EmailClient) Send(ctx context.Context, msg domain.Email) error {
	return c.client.do(ctx, http.MethodPost, "/send", msg, nil)
}
