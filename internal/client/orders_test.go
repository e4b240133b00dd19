package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"cart-order-service/internal/model"
	"cart-order-service/internal/reconciler"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPOrdersNotFoundMapping(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewHTTPOrders(srv.URL, "tok-1")

	_, err := c.GetInCart(context.Background(), "u1")
	assert.ErrorIs(t, err, reconciler.ErrNotFound)

	err = c.DeleteInCart(context.Background(), "u1")
	assert.ErrorIs(t, err, reconciler.ErrNotFound)
}

func TestHTTPOrdersRoundTrip(t *testing.T) {
	var gotBody syncCartPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPut:
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
			json.NewEncoder(w).Encode(model.Order{
				UserID:   "u1",
				Status:   model.StatusInCart,
				Subtotal: 998,
			})
		case http.MethodGet:
			json.NewEncoder(w).Encode(model.Order{
				UserID: "u1",
				Status: model.StatusInCart,
				Items:  []model.OrderItem{{ProductID: "crystal-1", Quantity: 2}},
			})
		}
	}))
	defer srv.Close()

	c := NewHTTPOrders(srv.URL, "tok-1")

	order, err := c.ReplaceInCart(context.Background(), "u1", []model.OrderItem{
		{ProductID: "crystal-1", Name: "Rose Quartz", UnitPrice: 499, Quantity: 2},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, 998.0, order.Subtotal)
	require.Len(t, gotBody.Items, 1)
	assert.Equal(t, "crystal-1", gotBody.Items[0].ProductID)
	assert.Nil(t, gotBody.RequiresInvoice)

	order, err = c.GetInCart(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, order.Items, 1)
	assert.Equal(t, 2, order.Items[0].Quantity)
}

// fakeSyncer stands in for the order service behind the local adapter.
type fakeSyncer struct {
	order    *model.Order
	notFound error
}

func (f *fakeSyncer) GetInCart(context.Context, string) (*model.Order, error) {
	if f.order == nil {
		return nil, f.notFound
	}
	return f.order, nil
}

func (f *fakeSyncer) SyncCart(_ context.Context, userID string, items []model.OrderItem, _ *bool) (*model.Order, error) {
	f.order = &model.Order{UserID: userID, Status: model.StatusInCart, Items: items}
	return f.order, nil
}

func (f *fakeSyncer) ClearCart(context.Context, string) error {
	if f.order == nil {
		return f.notFound
	}
	f.order = nil
	return nil
}

func TestLocalOrdersTranslatesSentinel(t *testing.T) {
	storeErr := errors.New("order not found")
	syncer := &fakeSyncer{notFound: storeErr}
	local := NewLocalOrders(syncer, func(err error) bool { return errors.Is(err, storeErr) })

	_, err := local.GetInCart(context.Background(), "u1")
	assert.ErrorIs(t, err, reconciler.ErrNotFound)

	assert.ErrorIs(t, local.DeleteInCart(context.Background(), "u1"), reconciler.ErrNotFound)

	order, err := local.ReplaceInCart(context.Background(), "u1",
		[]model.OrderItem{{ProductID: "p", Quantity: 1}}, nil)
	require.NoError(t, err)
	assert.Equal(t, model.StatusInCart, order.Status)

	require.NoError(t, local.DeleteInCart(context.Background(), "u1"))
}
