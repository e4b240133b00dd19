// Package client provides the two OrderClient implementations the cart
// reconciler can drive: an HTTP client against the storefront's cart
// routes, and an in-process adapter over the order service.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"cart-order-service/internal/model"
	"cart-order-service/internal/reconciler"
)

// HTTPOrders talks to the cart contract routes (/cart) of a running
// storefront backend on behalf of one authenticated user session.
type HTTPOrders struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewHTTPOrders(baseURL, token string) *HTTPOrders {
	return &HTTPOrders{
		baseURL: baseURL,
		token:   token,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type syncCartPayload struct {
	Items           []cartItemPayload `json:"items"`
	RequiresInvoice *bool             `json:"requiresInvoice,omitempty"`
}

type cartItemPayload struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Image     string  `json:"image"`
	Quantity  int     `json:"quantity"`
}

func (c *HTTPOrders) do(ctx context.Context, method, path string, body interface{}) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.client.Do(req)
}

func (c *HTTPOrders) GetInCart(ctx context.Context, _ string) (*model.Order, error) {
	resp, err := c.do(ctx, http.MethodGet, "/cart", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, reconciler.ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("get cart: unexpected status %d", resp.StatusCode)
	}

	var order model.Order
	if err := json.NewDecoder(resp.Body).Decode(&order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *HTTPOrders) ReplaceInCart(ctx context.Context, _ string, items []model.OrderItem, requiresInvoice *bool) (*model.Order, error) {
	payload := syncCartPayload{RequiresInvoice: requiresInvoice}
	for _, it := range items {
		payload.Items = append(payload.Items, cartItemPayload{
			ProductID: it.ProductID,
			Name:      it.Name,
			Price:     it.UnitPrice,
			Image:     it.Image,
			Quantity:  it.Quantity,
		})
	}

	resp, err := c.do(ctx, http.MethodPut, "/cart", payload)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("replace cart: unexpected status %d", resp.StatusCode)
	}

	var order model.Order
	if err := json.NewDecoder(resp.Body).Decode(&order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *HTTPOrders) DeleteInCart(ctx context.Context, _ string) error {
	resp, err := c.do(ctx, http.MethodDelete, "/cart", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return reconciler.ErrNotFound
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("delete cart: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// interface check
var _ reconciler.OrderClient = (*HTTPOrders)(nil)

// OrderSyncer is the slice of the order service the local adapter needs.
type OrderSyncer interface {
	GetInCart(ctx context.Context, userID string) (*model.Order, error)
	SyncCart(ctx context.Context, userID string, items []model.OrderItem, requiresInvoice *bool) (*model.Order, error)
	ClearCart(ctx context.Context, userID string) error
}

// LocalOrders adapts the in-process order service to the reconciler,
// translating the repository's not-found sentinel.
type LocalOrders struct {
	svc        OrderSyncer
	isNotFound func(error) bool
}

func NewLocalOrders(svc OrderSyncer, isNotFound func(error) bool) *LocalOrders {
	return &LocalOrders{svc: svc, isNotFound: isNotFound}
}

func (l *LocalOrders) GetInCart(ctx context.Context, userID string) (*model.Order, error) {
	order, err := l.svc.GetInCart(ctx, userID)
	if err != nil && l.isNotFound(err) {
		return nil, reconciler.ErrNotFound
	}
	return order, err
}

func (l *LocalOrders) ReplaceInCart(ctx context.Context, userID string, items []model.OrderItem, requiresInvoice *bool) (*model.Order, error) {
	return l.svc.SyncCart(ctx, userID, items, requiresInvoice)
}

func (l *LocalOrders) DeleteInCart(ctx context.Context, userID string) error {
	err := l.svc.ClearCart(ctx, userID)
	if err != nil && l.isNotFound(err) {
		return reconciler.ErrNotFound
	}
	return err
}

var _ reconciler.OrderClient = (*LocalOrders)(nil)
