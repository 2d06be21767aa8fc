package stockapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// GetStockID returns the stock of an association, or "" when the association
// has none yet. A 404 is not an error here.
func (c *Client) GetStockID(ctx context.Context, associationID string) (string, error) {
	if strings.TrimSpace(associationID) == "" {
		return "", validationError("get_stock_id", "association required")
	}

	// Concurrent lookups for the same association share one request.
	v, err, _ := c.stockIDs.Do(associationID, func() (any, error) {
		body, err := c.do(ctx, "get_stock_id", http.MethodGet, c.routes.stock(associationID), nil)
		if errors.Is(err, ErrNotFound) {
			return "", nil
		}
		if err != nil {
			return "", err
		}
		return decodeID(body)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

type createStockRequest struct {
	AssociationID string `json:"associationId"`
}

// CreateStock creates the stock container of an association.
func (c *Client) CreateStock(ctx context.Context, associationID string) (string, error) {
	if strings.TrimSpace(associationID) == "" {
		return "", validationError("create_stock", "association required")
	}

	body, err := c.do(ctx, "create_stock", http.MethodPost, c.routes.stocks(), createStockRequest{
		AssociationID: associationID,
	})
	if err != nil {
		return "", err
	}
	return decodeID(body)
}
