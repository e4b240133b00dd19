package controller

import (
	"errors"
	"net/http"

	"cart-order-service/internal/dto"
	"cart-order-service/internal/membership"
	"cart-order-service/internal/model"
	"cart-order-service/internal/pricing"
	"cart-order-service/internal/repository"
	"cart-order-service/internal/service"
	"cart-order-service/internal/wallet"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type OrderController struct {
	Service  *service.OrderService
	Ledger   wallet.Ledger
	Profiles *service.ProfileService
	Tiers    *membership.Resolver
}

func NewOrderController(s *service.OrderService, l wallet.Ledger, p *service.ProfileService, t *membership.Resolver) *OrderController {
	return &OrderController{Service: s, Ledger: l, Profiles: p, Tiers: t}
}

func (ctl *OrderController) tierFor(c *gin.Context, userID string) string {
	var profile *membership.Profile
	if ctl.Profiles != nil {
		profile = ctl.Profiles.Fetch(c.Request.Context(), userID)
	}
	return ctl.Tiers.Resolve(userID, profile)
}

// GET /cart: the user's in-cart order; 404 means an empty cart.
func (ctl *OrderController) GetCart(c *gin.Context) {
	userID := c.GetString("userID")
	order, err := ctl.Service.GetInCart(c.Request.Context(), userID)
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no active cart"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, order)
}

// PUT /cart: replace the in-cart order with a cart snapshot. An empty
// snapshot deletes it.
func (ctl *OrderController) SyncCart(c *gin.Context) {
	var req dto.SyncCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetString("userID")
	order, err := ctl.Service.SyncCart(c.Request.Context(), userID, req.ToItems(), req.RequiresInvoice)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if order == nil {
		c.JSON(http.StatusOK, gin.H{"message": "cart is empty"})
		return
	}
	c.JSON(http.StatusOK, order)
}

// DELETE /cart
func (ctl *OrderController) ClearCart(c *gin.Context) {
	userID := c.GetString("userID")
	err := ctl.Service.ClearCart(c.Request.Context(), userID)
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no active cart"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "cart deleted"})
}

// GET /wallet
func (ctl *OrderController) GetWallet(c *gin.Context) {
	userID := c.GetString("userID")
	balance, err := ctl.Ledger.Balance(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, dto.WalletResponse{Balance: balance})
}

// PUT /admin/wallet/:userId: admin balance replace.
func (ctl *OrderController) SetWallet(c *gin.Context) {
	var req dto.SetBalanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := ctl.Ledger.SetBalance(c.Request.Context(), c.Param("userId"), req.Balance); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "balance updated"})
}

// POST /checkout/quote: price the in-cart order; no side effects.
func (ctl *OrderController) QuoteCheckout(c *gin.Context) {
	var req dto.QuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetString("userID")
	quote, err := ctl.Service.Quote(c.Request.Context(), userID, ctl.tierFor(c, userID), req.Coins)
	if err != nil {
		ctl.checkoutError(c, err)
		return
	}
	c.JSON(http.StatusOK, quote)
}

// POST /checkout/begin: reserve the coin redemption against the order.
func (ctl *OrderController) BeginCheckout(c *gin.Context) {
	var req dto.BeginCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetString("userID")
	order, err := ctl.Service.BeginCheckout(c.Request.Context(), userID, ctl.tierFor(c, userID), req.Coins)
	if err != nil {
		ctl.checkoutError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// POST /checkout/abandon: the user walked away from payment.
func (ctl *OrderController) AbandonCheckout(c *gin.Context) {
	var req dto.AbandonCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetString("userID")
	err := ctl.Service.FailCheckout(c.Request.Context(), userID, true, req.Reason)
	if errors.Is(err, service.ErrNoActiveCart) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no active cart"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "checkout abandoned"})
}

func (ctl *OrderController) checkoutError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "no active cart"})
	case errors.Is(err, pricing.ErrCoinLimitExceeded),
		errors.Is(err, pricing.ErrNegativeCoins),
		errors.Is(err, wallet.ErrInsufficientBalance),
		errors.Is(err, wallet.ErrInvalidAmount):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// GET /orders/mine
func (ctl *OrderController) GetMyOrders(c *gin.Context) {
	orders, err := ctl.Service.ListByUser(c.Request.Context(), c.GetString("userID"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, orders)
}

// GET /admin/orders/all
func (ctl *OrderController) GetAllOrders(c *gin.Context) {
	orders, err := ctl.Service.ListAll(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, orders)
}

// GET /admin/orders/status/:status
func (ctl *OrderController) GetOrdersByStatus(c *gin.Context) {
	orders, err := ctl.Service.ListByStatus(c.Request.Context(), c.Param("status"))
	if errors.Is(err, service.ErrInvalidStatus) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, orders)
}

func orderIDParam(c *gin.Context) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param("orderId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
		return primitive.NilObjectID, false
	}
	return id, true
}

// PATCH /admin/orders/:orderId/status: refunds only. Payment transitions
// arrive from the gateway consumer, never through this endpoint.
func (ctl *OrderController) UpdateStatus(c *gin.Context) {
	id, ok := orderIDParam(c)
	if !ok {
		return
	}

	var req dto.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !model.IsValidStatus(req.Status) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
		return
	}
	if req.Status != model.StatusFullRefund && req.Status != model.StatusPartialRefund {
		c.JSON(http.StatusBadRequest, gin.H{"error": "only refund transitions may be applied here"})
		return
	}

	err := ctl.Service.Refund(c.Request.Context(), id,
		req.Status == model.StatusFullRefund, c.GetString("userID"), req.Reason)
	ctl.transitionResult(c, err, "status updated")
}

// PATCH /admin/orders/:orderId/delivery
func (ctl *OrderController) UpdateDeliveryStatus(c *gin.Context) {
	id, ok := orderIDParam(c)
	if !ok {
		return
	}

	var req dto.UpdateDeliveryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := ctl.Service.UpdateDeliveryStatus(c.Request.Context(), id, req.DeliveryStatus)
	ctl.transitionResult(c, err, "delivery status updated")
}

// PATCH /admin/orders/:orderId: whitelisted field edits.
func (ctl *OrderController) PatchOrder(c *gin.Context) {
	id, ok := orderIDParam(c)
	if !ok {
		return
	}

	var fields map[string]interface{}
	if err := c.ShouldBindJSON(&fields); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := ctl.Service.AdminPatch(c.Request.Context(), id, fields)
	if errors.Is(err, service.ErrFieldNotPatchable) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctl.transitionResult(c, err, "order updated")
}

// POST /admin/users/:userId/tier: pin a membership tier.
func (ctl *OrderController) PinTier(c *gin.Context) {
	var req dto.PinTierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	switch req.Tier {
	case membership.TierNone, membership.TierGold, membership.TierPlatinum, membership.TierDiamond:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tier"})
		return
	}
	ctl.Tiers.Pin(c.Param("userId"), req.Tier)
	c.JSON(http.StatusOK, gin.H{"message": "tier pinned"})
}

// DELETE /admin/users/:userId/tier: clear a pinned tier.
func (ctl *OrderController) ClearTier(c *gin.Context) {
	ctl.Tiers.Clear(c.Param("userId"))
	c.JSON(http.StatusOK, gin.H{"message": "tier override cleared"})
}

func (ctl *OrderController) transitionResult(c *gin.Context, err error, okMessage string) {
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"message": okMessage})
	case errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
	case errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrInvalidDeliveryStatus),
		errors.Is(err, service.ErrInvalidStatus):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
