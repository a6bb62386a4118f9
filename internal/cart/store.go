// Package cart implements the in-memory shopping cart and its durable
// per-identity persistence, including the guest-to-user merge on login.
package cart

import (
	"sync"

	"github.com/example/bookshop-client/internal/model"
)

// Subscriber observes cart mutations. Subscribers run synchronously inside
// the mutation, in registration order, and receive a copy of the items, so
// every subscriber sees every state transition exactly once, in mutation
// order.
type Subscriber func(items []model.CartLineItem)

// Store is the authoritative in-memory cart, independent of identity. The
// quantity invariant lives here: no sequence of calls can produce a line item
// with quantity outside [1, MaxQuantity], and an item never sits at zero.
type Store struct {
	mu    sync.Mutex
	items []model.CartLineItem
	subs  []Subscriber
}

// NewStore returns an empty cart.
func NewStore() *Store {
	return &Store{}
}

// Subscribe registers a mutation observer.
func (s *Store) Subscribe(sub Subscriber) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, sub)
}

func (s *Store) notifyLocked() {
	items := copyItems(s.items)
	for _, sub := range s.subs {
		sub(items)
	}
}

func copyItems(items []model.CartLineItem) []model.CartLineItem {
	out := make([]model.CartLineItem, len(items))
	copy(out, items)
	return out
}

// Items returns a copy of the current line items, in insertion order.
func (s *Store) Items() []model.CartLineItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyItems(s.items)
}

// Len returns the number of distinct line items.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// TotalItems returns the summed quantity across line items.
func (s *Store) TotalItems() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, it := range s.items {
		total += it.Quantity
	}
	return total
}

// TotalPrice returns the cart total at effective prices.
func (s *Store) TotalPrice() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0.0
	for _, it := range s.items {
		total += it.EffectivePrice() * float64(it.Quantity)
	}
	return total
}

// AddItem inserts item with quantity clamped to [1, MaxQuantity], or bumps an
// existing line with the same id to min(MaxQuantity, existing+quantity). A
// negative quantity decrements; when the sum drops to zero or below the line
// is removed, same as UpdateQuantity.
func (s *Store) AddItem(item model.CartLineItem, quantity int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.items {
		if s.items[i].ID == item.ID {
			q := s.items[i].Quantity + quantity
			if q <= 0 {
				s.items = append(s.items[:i], s.items[i+1:]...)
				s.notifyLocked()
				return
			}
			if q > model.MaxQuantity {
				q = model.MaxQuantity
			}
			s.items[i].Quantity = q
			s.notifyLocked()
			return
		}
	}

	item.Quantity = model.ClampQuantity(quantity)
	s.items = append(s.items, item)
	s.notifyLocked()
}

// UpdateQuantity sets the line's quantity, clamped to MaxQuantity. A quantity
// of zero or less removes the line. Unknown ids are a no-op.
func (s *Store) UpdateQuantity(id int64, quantity int) {
	if quantity <= 0 {
		s.RemoveItem(id)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].ID == id {
			if quantity > model.MaxQuantity {
				quantity = model.MaxQuantity
			}
			s.items[i].Quantity = quantity
			s.notifyLocked()
			return
		}
	}
}

// RemoveItem removes the line with the given id; absent ids are a no-op.
func (s *Store) RemoveItem(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.items {
		if s.items[i].ID == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			s.notifyLocked()
			return
		}
	}
}

// UpdateItemPrice folds a server-reported price correction into the line.
// With discountCleared the sale price is dropped and price becomes the new
// original price; otherwise price becomes the new sale price. Quantity is
// untouched.
func (s *Store) UpdateItemPrice(id int64, price float64, discountCleared bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.items {
		if s.items[i].ID == id {
			if discountCleared {
				s.items[i].SalePrice = nil
				s.items[i].OriginalPrice = price
			} else {
				p := price
				s.items[i].SalePrice = &p
			}
			s.notifyLocked()
			return
		}
	}
}

// Clear empties the cart, used after a successful order.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = nil
	s.notifyLocked()
}

// SetItems replaces the whole cart. Only the persistence manager calls this
// during identity reconciliation. A nil list installs an empty cart.
func (s *Store) SetItems(items []model.CartLineItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = copyItems(items)
	s.notifyLocked()
}
