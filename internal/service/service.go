package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cart-order-service/internal/model"
	"cart-order-service/internal/pricing"
	"cart-order-service/internal/repository"
	"cart-order-service/internal/wallet"

	"github.com/nanorand/nanorand"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// OrderRepository is the document-store contract the service runs against.
type OrderRepository interface {
	FindInCart(ctx context.Context, userID string) (*model.Order, error)
	UpsertInCart(ctx context.Context, userID string, set, setOnInsert bson.M) (*model.Order, error)
	UpdateInCart(ctx context.Context, userID string, set bson.M) (*model.Order, error)
	DeleteInCart(ctx context.Context, userID string) (*model.Order, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (*model.Order, error)
	CodeExists(ctx context.Context, code string) (bool, error)
	UpdateStatus(ctx context.Context, filter bson.M, allowedFrom []string, newStatus string, extra bson.M, record model.StatusRecord) error
	UpdateDeliveryStatus(ctx context.Context, id primitive.ObjectID, deliveryStatus string) error
	UpdateFields(ctx context.Context, id primitive.ObjectID, fields bson.M) error
	FindByUserID(ctx context.Context, userID string) ([]*model.Order, error)
	FindAll(ctx context.Context) ([]*model.Order, error)
	FindByStatus(ctx context.Context, status string) ([]*model.Order, error)
}

var (
	ErrInvalidStatus         = errors.New("invalid order status")
	ErrInvalidDeliveryStatus = errors.New("invalid delivery status")
	ErrInvalidTransition     = errors.New("invalid status transition")
	ErrFieldNotPatchable     = errors.New("field cannot be patched directly")
	ErrNoActiveCart          = errors.New("no active cart order")
	ErrCodeGeneration        = errors.New("could not generate a unique order code")
)

const (
	codeAttempts    = 5
	restoreAttempts = 3
	restoreBackoff  = 50 * time.Millisecond
)

type OrderService struct {
	repo   OrderRepository
	ledger wallet.Ledger
	params pricing.Params
	log    *zap.Logger
}

func NewOrderService(repo OrderRepository, ledger wallet.Ledger, params pricing.Params, log *zap.Logger) *OrderService {
	return &OrderService{repo: repo, ledger: ledger, params: params, log: log}
}

// GetInCart returns the user's current in-cart order.
// repository.ErrNotFound means an empty cart, not a failure.
func (s *OrderService) GetInCart(ctx context.Context, userID string) (*model.Order, error) {
	return s.repo.FindInCart(ctx, userID)
}

// SyncCart pushes a cart snapshot to the in-cart order. Empty snapshot
// deletes the order; otherwise the order is upserted with freshly computed
// totals, since stored totals are never trusted across syncs. Replaying the same
// snapshot yields the same document.
func (s *OrderService) SyncCart(ctx context.Context, userID string, items []model.OrderItem, requiresInvoice *bool) (*model.Order, error) {
	if len(items) == 0 {
		deleted, err := s.repo.DeleteInCart(ctx, userID)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		s.releaseReservation(ctx, userID, deleted.CoinsUsed)
		return nil, nil
	}

	// The order code is assigned lazily on first persist and stable after.
	var code string
	var reserved int64
	existing, err := s.repo.FindInCart(ctx, userID)
	switch {
	case err == nil:
		code = existing.Code
		reserved = existing.CoinsUsed
	case errors.Is(err, repository.ErrNotFound):
		// first sync, fresh document
	default:
		return nil, err
	}
	if code == "" {
		if code, err = s.generateCode(ctx); err != nil {
			return nil, err
		}
	}

	// In-cart totals carry no coin discount; a cart change invalidates any
	// pending reservation, which is restored below.
	quote, err := pricing.Compute(items, "", 0, 0, s.params)
	if err != nil {
		return nil, err
	}

	set := bson.M{
		"code":           code,
		"items":          items,
		"subtotal":       quote.Subtotal,
		"discount":       quote.Discount,
		"coins_used":     int64(0),
		"coins_discount": float64(0),
		"tax":            quote.Tax,
		"shipping":       quote.Shipping,
		"total":          quote.Total,
		"updated_at":     time.Now().UTC(),
	}
	if requiresInvoice != nil {
		set["requires_invoice"] = *requiresInvoice
	}

	order, err := s.repo.UpsertInCart(ctx, userID, set, bson.M{
		"created_at": time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}

	if reserved > 0 {
		s.releaseReservation(ctx, userID, reserved)
	}
	return order, nil
}

// ClearCart deletes the in-cart order. Absence is not an error for the
// reconciler, but the repository sentinel is passed through so the HTTP
// layer can answer 404 per the contract.
func (s *OrderService) ClearCart(ctx context.Context, userID string) error {
	deleted, err := s.repo.DeleteInCart(ctx, userID)
	if err != nil {
		return err
	}
	s.releaseReservation(ctx, userID, deleted.CoinsUsed)
	return nil
}

// Quote prices the current in-cart order with the requested coin spend. No
// side effects.
func (s *OrderService) Quote(ctx context.Context, userID, tier string, coins int64) (pricing.Quote, error) {
	order, err := s.repo.FindInCart(ctx, userID)
	if err != nil {
		return pricing.Quote{}, err
	}
	balance, err := s.ledger.Balance(ctx, userID)
	if err != nil {
		return pricing.Quote{}, err
	}
	return pricing.Compute(order.Items, tier, balance, coins, s.params)
}

// BeginCheckout reserves the coin redemption for the in-cart order: the
// wallet is debited all-or-nothing and the coin fields are recorded on the
// order. If the order write fails after a successful debit, the debit is
// compensated before the error surfaces so the reservation is never leaked.
func (s *OrderService) BeginCheckout(ctx context.Context, userID, tier string, coins int64) (*model.Order, error) {
	order, err := s.repo.FindInCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	// A repeated begin supersedes the previous reservation.
	if order.CoinsUsed > 0 {
		s.releaseReservation(ctx, userID, order.CoinsUsed)
	}

	balance, err := s.ledger.Balance(ctx, userID)
	if err != nil {
		return nil, err
	}
	quote, err := pricing.Compute(order.Items, tier, balance, coins, s.params)
	if err != nil {
		return nil, err
	}

	if coins > 0 {
		if err := s.ledger.Redeem(ctx, userID, coins); err != nil {
			return nil, err
		}
	}

	// The reservation write must never upsert: if a concurrent empty sync
	// deleted the cart after FindInCart above, an upsert would resurrect a
	// skeleton in-cart document carrying the reservation. A plain update
	// misses instead, and the debit is compensated below.
	updated, err := s.repo.UpdateInCart(ctx, userID, bson.M{
		"discount":       quote.Discount,
		"coins_used":     coins,
		"coins_discount": quote.CoinsDiscount,
		"total":          quote.Total,
		"updated_at":     time.Now().UTC(),
	})
	if err != nil {
		s.releaseReservation(ctx, userID, coins)
		return nil, err
	}
	return updated, nil
}

// CompleteCheckout advances in_cart -> paid on payment success, attaching
// the payment details and committing the coin reservation recorded at
// begin. The status filter makes the write a no-op on anything but an
// in-cart order, so a redelivered success event cannot corrupt a terminal
// order.
func (s *OrderService) CompleteCheckout(ctx context.Context, userID string, payment model.PaymentDetails) error {
	if payment.PaidAt.IsZero() {
		payment.PaidAt = time.Now().UTC()
	}
	err := s.repo.UpdateStatus(ctx,
		bson.M{"user_id": userID},
		[]string{model.StatusInCart},
		model.StatusPaid,
		bson.M{
			"payment":         &payment,
			"delivery_status": model.DeliveryReceived,
		},
		model.StatusRecord{
			Status:    model.StatusPaid,
			Reason:    fmt.Sprintf("payment confirmed via %s", payment.Channel),
			ActorID:   userID,
			Timestamp: time.Now().UTC(),
		},
	)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNoActiveCart
	}
	return err
}

// FailCheckout marks the in-cart order failed (gateway decline) or
// abandoned (user walked away) and restores the reserved coins.
func (s *OrderService) FailCheckout(ctx context.Context, userID string, abandoned bool, reason string) error {
	order, err := s.repo.FindInCart(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNoActiveCart
	}
	if err != nil {
		return err
	}

	newStatus := model.StatusFailed
	if abandoned {
		newStatus = model.StatusAbandoned
	}
	if reason == "" {
		reason = "payment " + newStatus
	}

	err = s.repo.UpdateStatus(ctx,
		bson.M{"_id": order.ID},
		[]string{model.StatusInCart},
		newStatus,
		nil,
		model.StatusRecord{
			Status:    newStatus,
			Reason:    reason,
			ActorID:   userID,
			Timestamp: time.Now().UTC(),
		},
	)
	if err != nil {
		return err
	}

	s.releaseReservation(ctx, userID, order.CoinsUsed)
	return nil
}

// Refund moves a paid order to full_refund or partial_refund. Only paid is
// a legal source state.
func (s *OrderService) Refund(ctx context.Context, orderID primitive.ObjectID, full bool, actorID, reason string) error {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Status != model.StatusPaid {
		return ErrInvalidTransition
	}

	newStatus := model.StatusPartialRefund
	if full {
		newStatus = model.StatusFullRefund
	}

	return s.repo.UpdateStatus(ctx,
		bson.M{"_id": orderID},
		[]string{model.StatusPaid},
		newStatus,
		nil,
		model.StatusRecord{
			Status:    newStatus,
			Reason:    reason,
			ActorID:   actorID,
			Timestamp: time.Now().UTC(),
		},
	)
}

// UpdateDeliveryStatus validates the enum and applies it to a paid-derived
// order.
func (s *OrderService) UpdateDeliveryStatus(ctx context.Context, orderID primitive.ObjectID, deliveryStatus string) error {
	if !model.IsValidDeliveryStatus(deliveryStatus) {
		return ErrInvalidDeliveryStatus
	}
	err := s.repo.UpdateDeliveryStatus(ctx, orderID, deliveryStatus)
	if errors.Is(err, repository.ErrNotFound) {
		// Distinguish a missing order from one in the wrong state.
		if _, ferr := s.repo.FindByID(ctx, orderID); ferr == nil {
			return ErrInvalidTransition
		}
		return repository.ErrNotFound
	}
	return err
}

// Fields the admin patch endpoint may touch. Everything driving the status
// machine or the money math goes through its dedicated gated operation.
var patchableFields = map[string]bool{
	"requires_invoice": true,
	"shipping":         true,
}

// AdminPatch applies a partial field update without opening a bypass around
// the state machine.
func (s *OrderService) AdminPatch(ctx context.Context, orderID primitive.ObjectID, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return nil
	}
	set := bson.M{}
	for k, v := range fields {
		if !patchableFields[k] {
			return fmt.Errorf("%w: %s", ErrFieldNotPatchable, k)
		}
		set[k] = v
	}
	return s.repo.UpdateFields(ctx, orderID, set)
}

func (s *OrderService) ListByUser(ctx context.Context, userID string) ([]*model.Order, error) {
	return s.repo.FindByUserID(ctx, userID)
}

func (s *OrderService) ListAll(ctx context.Context) ([]*model.Order, error) {
	return s.repo.FindAll(ctx)
}

func (s *OrderService) ListByStatus(ctx context.Context, status string) ([]*model.Order, error) {
	if !model.IsValidStatus(status) {
		return nil, ErrInvalidStatus
	}
	return s.repo.FindByStatus(ctx, status)
}

// releaseReservation gives reserved coins back to the wallet, retrying
// transient failures. After the attempts run out the failure is logged, never
// fatal: the order write already landed and the journal gives support enough
// to reconcile by hand.
func (s *OrderService) releaseReservation(ctx context.Context, userID string, coins int64) {
	if coins <= 0 {
		return
	}
	var err error
	for attempt := 0; attempt < restoreAttempts; attempt++ {
		if err = s.ledger.Restore(ctx, userID, coins); err == nil {
			return
		}
		time.Sleep(restoreBackoff)
	}
	s.log.Error("failed to restore reserved coins",
		zap.String("user", userID), zap.Int64("coins", coins), zap.Error(err))
}

// generateCode builds a date-stamped order code with a random suffix and
// retries on collision rather than trusting the suffix entropy.
func (s *OrderService) generateCode(ctx context.Context) (string, error) {
	for i := 0; i < codeAttempts; i++ {
		suffix, err := nanorand.Gen(6)
		if err != nil {
			return "", err
		}
		code := fmt.Sprintf("SG%s-%s", time.Now().Format("20060102"), suffix)

		exists, err := s.repo.CodeExists(ctx, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
	return "", ErrCodeGeneration
}
