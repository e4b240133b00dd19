package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"cart-order-service/internal/dto"
	"cart-order-service/internal/membership"
	"cart-order-service/internal/model"
	"cart-order-service/internal/pricing"
	"cart-order-service/internal/repository"
	"cart-order-service/internal/service"
	"cart-order-service/internal/wallet"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// memRepo covers just the repository surface the cart contract touches.
type memRepo struct {
	mu     sync.Mutex
	orders map[primitive.ObjectID]*model.Order
}

func newMemRepo() *memRepo {
	return &memRepo{orders: make(map[primitive.ObjectID]*model.Order)}
}

func (r *memRepo) inCart(userID string) *model.Order {
	for _, o := range r.orders {
		if o.UserID == userID && o.Status == model.StatusInCart {
			return o
		}
	}
	return nil
}

func (r *memRepo) FindInCart(_ context.Context, userID string) (*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o := r.inCart(userID); o != nil {
		cp := *o
		return &cp, nil
	}
	return nil, repository.ErrNotFound
}

func (r *memRepo) UpsertInCart(_ context.Context, userID string, set, _ bson.M) (*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o := r.inCart(userID)
	if o == nil {
		o = &model.Order{ID: primitive.NewObjectID(), UserID: userID, Status: model.StatusInCart}
		r.orders[o.ID] = o
	}
	if v, ok := set["code"]; ok {
		o.Code = v.(string)
	}
	if v, ok := set["items"]; ok {
		o.Items = v.([]model.OrderItem)
	}
	if v, ok := set["subtotal"]; ok {
		o.Subtotal = v.(float64)
	}
	if v, ok := set["total"]; ok {
		o.Total = v.(float64)
	}
	if v, ok := set["coins_used"]; ok {
		o.CoinsUsed = v.(int64)
	}
	if v, ok := set["requires_invoice"]; ok {
		o.RequiresInvoice = v.(bool)
	}
	cp := *o
	return &cp, nil
}

func (r *memRepo) UpdateInCart(_ context.Context, userID string, set bson.M) (*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o := r.inCart(userID)
	if o == nil {
		return nil, repository.ErrNotFound
	}
	if v, ok := set["coins_used"]; ok {
		o.CoinsUsed = v.(int64)
	}
	if v, ok := set["total"]; ok {
		o.Total = v.(float64)
	}
	cp := *o
	return &cp, nil
}

func (r *memRepo) DeleteInCart(_ context.Context, userID string) (*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o := r.inCart(userID)
	if o == nil {
		return nil, repository.ErrNotFound
	}
	delete(r.orders, o.ID)
	return o, nil
}

func (r *memRepo) FindByID(_ context.Context, id primitive.ObjectID) (*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o, ok := r.orders[id]; ok {
		cp := *o
		return &cp, nil
	}
	return nil, repository.ErrNotFound
}

func (r *memRepo) CodeExists(context.Context, string) (bool, error) { return false, nil }

func (r *memRepo) UpdateStatus(_ context.Context, filter bson.M, allowedFrom []string, newStatus string, _ bson.M, record model.StatusRecord) error {
	return repository.ErrNotFound
}

func (r *memRepo) UpdateDeliveryStatus(context.Context, primitive.ObjectID, string) error {
	return repository.ErrNotFound
}

func (r *memRepo) UpdateFields(context.Context, primitive.ObjectID, bson.M) error {
	return repository.ErrNotFound
}

func (r *memRepo) FindByUserID(context.Context, string) ([]*model.Order, error) { return nil, nil }
func (r *memRepo) FindAll(context.Context) ([]*model.Order, error)              { return nil, nil }
func (r *memRepo) FindByStatus(context.Context, string) ([]*model.Order, error) { return nil, nil }

func newTestRouter(t *testing.T) (*gin.Engine, *wallet.MemoryLedger, *membership.Resolver) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ledger := wallet.NewMemoryLedger()
	params := pricing.Params{TaxRate: 0.18, CoinRate: 0.05}
	svc := service.NewOrderService(newMemRepo(), ledger, params, zap.NewNop())
	resolver := membership.NewResolver()
	ctl := NewOrderController(svc, ledger, nil, resolver)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", "u1")
		c.Next()
	})
	r.GET("/cart", ctl.GetCart)
	r.PUT("/cart", ctl.SyncCart)
	r.DELETE("/cart", ctl.ClearCart)
	r.GET("/wallet", ctl.GetWallet)
	r.POST("/checkout/quote", ctl.QuoteCheckout)
	r.POST("/checkout/begin", ctl.BeginCheckout)
	return r, ledger, resolver
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCartContract(t *testing.T) {
	r, _, _ := newTestRouter(t)

	// Empty cart reads as 404, the documented empty state.
	w := doJSON(t, r, http.MethodGet, "/cart", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, r, http.MethodPut, "/cart", dto.SyncCartRequest{
		Items: []dto.CartItemDTO{{ProductID: "crystal-1", Name: "Rose Quartz", Price: 499, Quantity: 2}},
	})
	require.Equal(t, http.StatusOK, w.Code)

	var order model.Order
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &order))
	assert.Equal(t, 998.0, order.Subtotal)

	w = doJSON(t, r, http.MethodGet, "/cart", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodDelete, "/cart", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodDelete, "/cart", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestEmptySyncDeletes(t *testing.T) {
	r, _, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodPut, "/cart", dto.SyncCartRequest{
		Items: []dto.CartItemDTO{{ProductID: "a", Price: 10, Quantity: 1}},
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodPut, "/cart", dto.SyncCartRequest{})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodGet, "/cart", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestWalletAndQuote(t *testing.T) {
	r, ledger, resolver := newTestRouter(t)
	require.NoError(t, ledger.SetBalance(context.Background(), "u1", 1000))
	resolver.Pin("u1", membership.TierGold)

	w := doJSON(t, r, http.MethodGet, "/wallet", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp dto.WalletResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(1000), resp.Balance)

	// No cart yet: quoting finds nothing.
	w = doJSON(t, r, http.MethodPost, "/checkout/quote", dto.QuoteRequest{})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, r, http.MethodPut, "/cart", dto.SyncCartRequest{
		Items: []dto.CartItemDTO{{ProductID: "bowl", Price: 2360, Quantity: 1}},
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodPost, "/checkout/quote", dto.QuoteRequest{Coins: 1000})
	require.Equal(t, http.StatusOK, w.Code)
	var quote pricing.Quote
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &quote))
	assert.Equal(t, int64(1000), quote.MaxRedeemableCoins)
	assert.Equal(t, 2310.0, quote.Total)

	// Over the cap: rejected before any side effect.
	w = doJSON(t, r, http.MethodPost, "/checkout/begin", dto.BeginCheckoutRequest{Coins: 1001})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	balance, _ := ledger.Balance(context.Background(), "u1")
	assert.Equal(t, int64(1000), balance)
}
