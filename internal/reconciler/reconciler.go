// Package reconciler keeps the server-side in-cart order in lockstep with a
// client-held cart store. One worker goroutine per user owns every network
// write for that user: bursts of mutations are coalesced behind a quiet
// period, at most one push is ever in flight, and a snapshot taken later can
// never be overwritten by an earlier one completing out of order.
package reconciler

import (
	"context"
	"errors"
	"sync"
	"time"

	"cart-order-service/internal/cart"
	"cart-order-service/internal/model"

	"go.uber.org/zap"
)

// ErrNotFound is returned by an OrderClient when the user has no in-cart
// order. It is a normal outcome, not a failure.
var ErrNotFound = errors.New("no in-cart order")

// DefaultDebounce is the quiet period before a mutation burst is pushed.
const DefaultDebounce = 800 * time.Millisecond

// OrderClient is the server surface the reconciler drives.
type OrderClient interface {
	GetInCart(ctx context.Context, userID string) (*model.Order, error)
	ReplaceInCart(ctx context.Context, userID string, items []model.OrderItem, requiresInvoice *bool) (*model.Order, error)
	DeleteInCart(ctx context.Context, userID string) error
}

type Reconciler struct {
	client   OrderClient
	log      *zap.Logger
	debounce time.Duration

	mu       sync.Mutex
	sessions map[string]*session
}

type session struct {
	userID string
	store  *cart.Store

	// kick has capacity 1: a mutation arriving while a sync is in flight
	// parks here and is coalesced into the next round instead of firing a
	// concurrent request.
	kick    chan struct{}
	flushCh chan chan error

	cancel context.CancelFunc
	done   chan struct{}

	// worker-local; sync never runs before a successful hydration.
	hydrated bool
}

func New(client OrderClient, log *zap.Logger, debounce time.Duration) *Reconciler {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Reconciler{
		client:   client,
		log:      log,
		debounce: debounce,
		sessions: make(map[string]*session),
	}
}

// Attach binds a cart store to its user's worker. The worker hydrates the
// store from the server first (server wins over stale local state at boot),
// then watches for mutations. Attaching an already-attached user is an
// error.
func (r *Reconciler) Attach(ctx context.Context, userID string, store *cart.Store) error {
	r.mu.Lock()
	if _, ok := r.sessions[userID]; ok {
		r.mu.Unlock()
		return errors.New("user already attached")
	}

	ctx, cancel := context.WithCancel(ctx)
	s := &session{
		userID:  userID,
		store:   store,
		kick:    make(chan struct{}, 1),
		flushCh: make(chan chan error),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	r.sessions[userID] = s
	r.mu.Unlock()

	store.SetOnChange(func() {
		select {
		case s.kick <- struct{}{}:
		default: // a resync is already scheduled, this mutation rides along
		}
	})

	go r.worker(ctx, s)
	return nil
}

// Detach stops the user's worker and waits for it to finish. Any pending
// debounce window is abandoned; call Flush first if the last snapshot must
// land.
func (r *Reconciler) Detach(userID string) {
	r.mu.Lock()
	s, ok := r.sessions[userID]
	if ok {
		delete(r.sessions, userID)
	}
	r.mu.Unlock()
	if !ok {
		return
	}
	s.store.SetOnChange(nil)
	s.cancel()
	<-s.done
}

// Flush pushes the current snapshot immediately, bypassing the debounce,
// and reports the sync error the background path would have swallowed.
func (r *Reconciler) Flush(ctx context.Context, userID string) error {
	r.mu.Lock()
	s, ok := r.sessions[userID]
	r.mu.Unlock()
	if !ok {
		return errors.New("user not attached")
	}

	resp := make(chan error, 1)
	select {
	case s.flushCh <- resp:
	case <-s.done:
		return errors.New("worker stopped")
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-resp:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Reconciler) worker(ctx context.Context, s *session) {
	defer close(s.done)

	// Hydration happens before anything else; a failure here is retried
	// before the first sync rather than pushing a half-loaded cart back to
	// the server.
	if err := r.hydrate(ctx, s); err != nil {
		r.log.Warn("cart hydration failed, will retry before first sync",
			zap.String("user", s.userID), zap.Error(err))
	}

	for {
		select {
		case <-ctx.Done():
			return

		case resp := <-s.flushCh:
			resp <- r.syncOnce(ctx, s)

		case <-s.kick:
			timer := time.NewTimer(r.debounce)
		quiet:
			for {
				select {
				case <-ctx.Done():
					timer.Stop()
					return
				case <-s.kick:
					// another mutation in the burst: supersede the stale
					// timer instead of firing early
					if !timer.Stop() {
						<-timer.C
					}
					timer.Reset(r.debounce)
				case resp := <-s.flushCh:
					timer.Stop()
					resp <- r.syncOnce(ctx, s)
					break quiet
				case <-timer.C:
					if err := r.syncOnce(ctx, s); err != nil {
						// swallowed: local state is intact and the next
						// mutation retries
						r.log.Warn("cart sync failed",
							zap.String("user", s.userID), zap.Error(err))
					}
					break quiet
				}
			}
		}
	}
}

// hydrate replaces the local store wholesale from the server's in-cart
// order. Not-found means the user has no active cart and the local store is
// cleared. ReplaceAll does not fire the change hook, so hydration never
// echoes back to the server.
func (r *Reconciler) hydrate(ctx context.Context, s *session) error {
	order, err := r.client.GetInCart(ctx, s.userID)
	if errors.Is(err, ErrNotFound) {
		s.store.ReplaceAll(nil)
		s.hydrated = true
		return nil
	}
	if err != nil {
		return err
	}

	if len(order.Items) == 0 {
		s.store.ReplaceAll(nil)
	} else {
		s.store.ReplaceAll(toCartItems(order.Items))
	}
	s.hydrated = true
	return nil
}

func (r *Reconciler) syncOnce(ctx context.Context, s *session) error {
	if !s.hydrated {
		if err := r.hydrate(ctx, s); err != nil {
			return err
		}
		// the hydrated snapshot already matches the server; the pending
		// local state still syncs below
	}

	items := s.store.Items()
	if len(items) == 0 {
		err := r.client.DeleteInCart(ctx, s.userID)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}

	_, err := r.client.ReplaceInCart(ctx, s.userID, toOrderItems(items), nil)
	return err
}

func toOrderItems(items []cart.Item) []model.OrderItem {
	out := make([]model.OrderItem, 0, len(items))
	for _, it := range items {
		out = append(out, model.OrderItem{
			ProductID: it.ProductID,
			Name:      it.Name,
			UnitPrice: it.Price,
			Image:     it.Image,
			Quantity:  it.Quantity,
		})
	}
	return out
}

func toCartItems(items []model.OrderItem) []cart.Item {
	out := make([]cart.Item, 0, len(items))
	for _, it := range items {
		out = append(out, cart.Item{
			ProductID: it.ProductID,
			Name:      it.Name,
			Price:     it.UnitPrice,
			Image:     it.Image,
			Quantity:  it.Quantity,
		})
	}
	return out
}
