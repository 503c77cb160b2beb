package remote

import (
	"context"
	"net/url"
	"strings"

	"github.com/smartsupply/agent/internal/models"
)

// GetCustomers fetches the full customer directory.
func (c *Client) GetCustomers(ctx context.Context) ([]models.CustomerRecord, error) {
	customers := make([]models.CustomerRecord, 0)
	if err := c.get(ctx, "get customers", "/customers", nil, &customers); err != nil {
		return nil, err
	}
	return customers, nil
}

// SearchCustomers runs the server-side customer search for query.
func (c *Client) SearchCustomers(ctx context.Context, query string) ([]models.CustomerRecord, error) {
	params := url.Values{}
	params.Set("q", strings.TrimSpace(query))

	customers := make([]models.CustomerRecord, 0)
	if err := c.get(ctx, "search customers", "/customers/search", params, &customers); err != nil {
		return nil, err
	}
	return customers, nil
}
