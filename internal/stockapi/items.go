package stockapi

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/maraudr/console/internal/model"
)

// ItemFilter narrows ListItems. The zero value lists everything.
type ItemFilter struct {
	Category *model.Category
	Name     string
}

// ListItems returns the items of an association in backend order.
func (c *Client) ListItems(ctx context.Context, associationID string, filter ItemFilter) ([]model.StockItem, error) {
	if strings.TrimSpace(associationID) == "" {
		return nil, validationError("list_items", "association required")
	}

	q := url.Values{"associationId": {associationID}}
	if filter.Category != nil {
		q.Set("category", strconv.Itoa(int(*filter.Category)))
	}
	if filter.Name != "" {
		q.Set("name", filter.Name)
	}

	body, err := c.do(ctx, "list_items", http.MethodGet, c.routes.items(q), nil)
	if err != nil {
		return nil, err
	}
	return decodeItems(body)
}

type associationRequest struct {
	AssociationID string `json:"associationId"`
}

// CreateItemFromBarcode clones the catalog entry for barcode into the
// association's stock and returns the new item id. An unknown barcode yields
// ErrBarcodeNotFound.
func (c *Client) CreateItemFromBarcode(ctx context.Context, barcode, associationID string) (string, error) {
	const op = "create_item_from_barcode"
	barcode = strings.TrimSpace(barcode)
	if barcode == "" {
		return "", validationError(op, "barcode required")
	}
	if strings.TrimSpace(associationID) == "" {
		return "", validationError(op, "association required")
	}

	body, err := c.do(ctx, op, http.MethodPost, c.routes.item(nil, barcode), associationRequest{
		AssociationID: associationID,
	})
	if err != nil {
		return "", asBarcodeNotFound(err)
	}
	return decodeID(body)
}

// asBarcodeNotFound reclassifies backend rejections of an unknown barcode. The
// backend answers 404, or a 400/500 whose text says the product is missing.
func asBarcodeNotFound(err error) error {
	var apiErr *Error
	if !errors.As(err, &apiErr) || apiErr.Status == 0 {
		return err
	}
	if apiErr.Status == http.StatusNotFound || barcodeMissing.MatchString(apiErr.Message) {
		apiErr.Kind = ErrBarcodeNotFound
	}
	return apiErr
}

type createItemRequest struct {
	StockID     string         `json:"stockId"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	BarCode     string         `json:"barCode"`
	ItemType    model.Category `json:"itemType"`
	Quantity    int            `json:"quantity"`
}

// CreateItem creates an item from a manual draft. The association must already
// own a stock; otherwise ErrStockNotFound is returned and nothing is created.
// The quantity is always model.InitialQuantity.
func (c *Client) CreateItem(ctx context.Context, draft model.ItemDraft, associationID string) (string, error) {
	const op = "create_item"
	if strings.TrimSpace(draft.Name) == "" {
		return "", validationError(op, "name required")
	}

	stockID, err := c.GetStockID(ctx, associationID)
	if err != nil {
		return "", err
	}
	if stockID == "" {
		return "", &Error{Op: op, Message: "association " + associationID + " has no stock", Kind: ErrStockNotFound}
	}

	draft.Quantity = model.InitialQuantity

	body, err := c.do(ctx, op, http.MethodPost, c.routes.item(nil), createItemRequest{
		StockID:     stockID,
		Name:        strings.TrimSpace(draft.Name),
		Description: draft.Description,
		BarCode:     strings.TrimSpace(draft.BarCode),
		ItemType:    draft.Category,
		Quantity:    draft.Quantity,
	})
	if err != nil {
		return "", err
	}
	return decodeID(body)
}

type updateItemRequest struct {
	ID            string         `json:"id"`
	StockID       string         `json:"stockId"`
	AssociationID string         `json:"associationId"`
	Name          string         `json:"name"`
	Description   string         `json:"description"`
	BarCode       string         `json:"barCode"`
	ItemType      model.Category `json:"itemType"`
	Quantity      int            `json:"quantity"`
}

// UpdateItem replaces an item's mutable fields.
func (c *Client) UpdateItem(ctx context.Context, item model.StockItem, associationID string) error {
	const op = "update_item"
	if item.ID == "" {
		return validationError(op, "item id required")
	}
	if strings.TrimSpace(item.Name) == "" {
		return validationError(op, "name required")
	}
	if item.Quantity < 0 {
		return validationError(op, "quantity must not be negative")
	}

	_, err := c.do(ctx, op, http.MethodPut, c.routes.item(nil), updateItemRequest{
		ID:            item.ID,
		StockID:       item.StockID,
		AssociationID: associationID,
		Name:          item.Name,
		Description:   item.Description,
		BarCode:       item.BarCode,
		ItemType:      item.Category,
		Quantity:      item.Quantity,
	})
	return err
}

type quantityRequest struct {
	AssociationID string `json:"associationId,omitempty"`
	Quantity      int    `json:"quantity"`
}

// UpdateQuantity sets an item's quantity through the configured route.
func (c *Client) UpdateQuantity(ctx context.Context, itemID, associationID string, quantity int) error {
	const op = "update_quantity"
	if itemID == "" {
		return validationError(op, "item id required")
	}
	if quantity < 0 {
		return validationError(op, "quantity must not be negative")
	}

	if c.quantityRoute == QuantityRouteLegacy {
		_, err := c.do(ctx, op, http.MethodPut, c.routes.item(nil, itemID), quantityRequest{Quantity: quantity})
		return err
	}

	if strings.TrimSpace(associationID) == "" {
		return validationError(op, "association required")
	}
	_, err := c.do(ctx, op, http.MethodPut, c.routes.item(nil, "update-quantity", itemID), quantityRequest{
		AssociationID: associationID,
		Quantity:      quantity,
	})
	return err
}

// DeleteItem removes an item from the association's stock. Deleting an item
// that is gone, or that belongs to another association, yields ErrNotFound.
func (c *Client) DeleteItem(ctx context.Context, itemID, associationID string) error {
	const op = "delete_item"
	if itemID == "" {
		return validationError(op, "item id required")
	}
	if strings.TrimSpace(associationID) == "" {
		return validationError(op, "association required")
	}

	_, err := c.do(ctx, op, http.MethodDelete, c.routes.item(url.Values{"associationId": {associationID}}, itemID), nil)
	return err
}

// GetItemByID fetches one item.
func (c *Client) GetItemByID(ctx context.Context, itemID, associationID string) (model.StockItem, error) {
	const op = "get_item"
	if itemID == "" {
		return model.StockItem{}, validationError(op, "item id required")
	}

	var q url.Values
	if associationID != "" {
		q = url.Values{"associationId": {associationID}}
	}
	body, err := c.do(ctx, op, http.MethodGet, c.routes.item(q, itemID), nil)
	if err != nil {
		return model.StockItem{}, err
	}
	return decodeItem(body)
}

// GetItemsByCategory lists the association's items of one category.
func (c *Client) GetItemsByCategory(ctx context.Context, category model.Category, associationID string) ([]model.StockItem, error) {
	var q url.Values
	if associationID != "" {
		q = url.Values{"associationId": {associationID}}
	}
	body, err := c.do(ctx, "get_items_by_category", http.MethodGet, c.routes.item(q, "type", strconv.Itoa(int(category))), nil)
	if err != nil {
		return nil, err
	}
	return decodeItems(body)
}

// GetItemByBarcode lists the items carrying barcode. The backend answers with
// a single record or a list.
func (c *Client) GetItemByBarcode(ctx context.Context, barcode, associationID string) ([]model.StockItem, error) {
	const op = "get_item_by_barcode"
	barcode = strings.TrimSpace(barcode)
	if barcode == "" {
		return nil, validationError(op, "barcode required")
	}

	var q url.Values
	if associationID != "" {
		q = url.Values{"associationId": {associationID}}
	}
	body, err := c.do(ctx, op, http.MethodGet, c.routes.item(q, "barcode", barcode), nil)
	if err != nil {
		return nil, err
	}
	return decodeItems(body)
}

// ReduceItemStock decrements the quantity of the item carrying barcode. Used by
// distribution flows.
func (c *Client) ReduceItemStock(ctx context.Context, barcode, associationID string, quantity int) error {
	const op = "reduce_item_stock"
	barcode = strings.TrimSpace(barcode)
	if barcode == "" {
		return validationError(op, "barcode required")
	}
	if quantity <= 0 {
		return validationError(op, "quantity must be positive")
	}
	if strings.TrimSpace(associationID) == "" {
		return validationError(op, "association required")
	}

	_, err := c.do(ctx, op, http.MethodPut, c.routes.item(nil, "reduce", barcode), quantityRequest{
		AssociationID: associationID,
		Quantity:      quantity,
	})
	return err
}
