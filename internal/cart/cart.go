package cart

import "sync"

// Item is a single cart line.
type Item struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Image     string  `json:"image"`
	Quantity  int     `json:"quantity"`
}

// Store is the client-held cart: an ordered list of lines keyed by product
// id. It is authoritative for "what the user is buying" until checkout. All
// mutations are mutex-guarded and persisted; user-driven mutations fire the
// change hook so the reconciler can schedule a sync.
type Store struct {
	mu        sync.Mutex
	items     []Item
	persister Persister
	onChange  func()
}

// NewStore builds a store hydrated from the persister, so a reload does not
// lose cart state before the next server hydration completes.
func NewStore(p Persister) *Store {
	if p == nil {
		p = NoopPersister{}
	}
	s := &Store{persister: p}
	if items, err := p.Load(); err == nil {
		s.items = items
	}
	return s
}

// SetOnChange registers the mutation hook. Hydration via ReplaceAll does not
// fire it.
func (s *Store) SetOnChange(fn func()) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// Add upserts a line. Re-adding an existing product sets its quantity to the
// given value rather than incrementing, observed storefront behavior kept
// as is. Quantity floors at 1.
func (s *Store) Add(item Item) {
	if item.Quantity < 1 {
		item.Quantity = 1
	}
	s.mutate(func() {
		for i := range s.items {
			if s.items[i].ProductID == item.ProductID {
				s.items[i] = item
				return
			}
		}
		s.items = append(s.items, item)
	})
}

// UpdateQuantity sets a line's quantity, flooring at 1. Unknown products are
// a no-op.
func (s *Store) UpdateQuantity(productID string, qty int) {
	if qty < 1 {
		qty = 1
	}
	s.mutate(func() {
		for i := range s.items {
			if s.items[i].ProductID == productID {
				s.items[i].Quantity = qty
				return
			}
		}
	})
}

// Remove drops a line.
func (s *Store) Remove(productID string) {
	s.mutate(func() {
		for i := range s.items {
			if s.items[i].ProductID == productID {
				s.items = append(s.items[:i], s.items[i+1:]...)
				return
			}
		}
	})
}

// Clear empties the cart.
func (s *Store) Clear() {
	s.mutate(func() {
		s.items = nil
	})
}

// ReplaceAll swaps the whole cart for the server's item list during
// hydration. The server wins over stale local state at boot, and no change
// hook fires, so hydration cannot echo back to the server.
func (s *Store) ReplaceAll(items []Item) {
	s.mu.Lock()
	s.items = append([]Item(nil), items...)
	s.persist()
	s.mu.Unlock()
}

// Items returns a copy of the lines in order.
func (s *Store) Items() []Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Item(nil), s.items...)
}

// TotalItems is the summed quantity across lines.
func (s *Store) TotalItems() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, it := range s.items {
		n += it.Quantity
	}
	return n
}

func (s *Store) mutate(fn func()) {
	s.mu.Lock()
	fn()
	s.persist()
	hook := s.onChange
	s.mu.Unlock()

	if hook != nil {
		hook()
	}
}

// persist is called with the lock held. Persistence failures are ignored:
// the in-memory cart stays correct and the server copy is synced anyway.
func (s *Store) persist() {
	_ = s.persister.Save(append([]Item(nil), s.items...))
}
