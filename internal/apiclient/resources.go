package apiclient

import (
	"context"
	"net/http"
	"net/url"

	"storefront/internal/domain"

	"go.uber.org/zap"
)

func (c *Client) GetProducts(ctx context.Context) ([]domain.Product, error) {
	var products []domain.Product
	if err := c.request(ctx, http.MethodGet, "/products", nil, &products); err != nil {
		return nil, err
	}
	return products, nil
}

func (c *Client) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	var product domain.Product
	if err := c.request(ctx, http.MethodGet, "/products/"+url.PathEscape(id), nil, &product); err != nil {
		return nil, err
	}
	return &product, nil
}

func (c *Client) CreateProduct(ctx context.Context, data domain.ProductInput) (*domain.Product, error) {
	var product domain.Product
	if err := c.request(ctx, http.MethodPost, "/products", data, &product); err != nil {
		return nil, err
	}
	return &product, nil
}

// UpdateProduct replaces a product (PUT)
func (c *Client) UpdateProduct(ctx context.Context, id string, data domain.ProductInput) (*domain.Product, error) {
	var product domain.Product
	if err := c.request(ctx, http.MethodPut, "/products/"+url.PathEscape(id), data, &product); err != nil {
		return nil, err
	}
	return &product, nil
}

func (c *Client) DeleteProduct(ctx context.Context, id string) error {
	return c.request(ctx, http.MethodDelete, "/products/"+url.PathEscape(id), nil, nil)
}

// GetOrders lists orders; the backend scopes them by caller where it applies
func (c *Client) GetOrders(ctx context.Context) ([]domain.Order, error) {
	var orders []domain.Order
	if err := c.request(ctx, http.MethodGet, "/orders", nil, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (c *Client) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	var order domain.Order
	if err := c.request(ctx, http.MethodGet, "/orders/"+url.PathEscape(id), nil, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *Client) CreateOrder(ctx context.Context, data domain.CreateOrderInput) (*domain.Order, error) {
	var order domain.Order
	if err := c.request(ctx, http.MethodPost, "/orders", data, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// PatchOrder sends a partial update; only the fields set in data are transmitted
func (c *Client) PatchOrder(ctx context.Context, id string, data domain.OrderPatch) (*domain.Order, error) {
	c.logger.Debug("Patching order",
		zap.String("order_id", id),
		zap.String("status", string(data.Status)),
	)
	var order domain.Order
	if err := c.request(ctx, http.MethodPatch, "/orders/"+url.PathEscape(id), data, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *Client) DeleteOrder(ctx context.Context, id string) error {
	return c.request(ctx, http.MethodDelete, "/orders/"+url.PathEscape(id), nil, nil)
}
