package cart

import "github.com/example/bookshop-client/internal/model"

// Merge folds guest line items into user line items for the login
// transition. Shared ids sum quantities capped at MaxQuantity and keep the
// user line's attributes; guest-only items are appended with their quantity
// capped. User-only items pass through unchanged, so merging disjoint carts
// is order-independent in outcome.
func Merge(userItems, guestItems []model.CartLineItem) []model.CartLineItem {
	if len(guestItems) == 0 {
		return copyItems(userItems)
	}

	merged := copyItems(userItems)
	index := make(map[int64]int, len(merged))
	for i, it := range merged {
		index[it.ID] = i
	}

	for _, guest := range guestItems {
		qty := guest.Quantity
		if qty <= 0 {
			continue
		}
		if i, ok := index[guest.ID]; ok {
			q := merged[i].Quantity + qty
			if q > model.MaxQuantity {
				q = model.MaxQuantity
			}
			merged[i].Quantity = q
			continue
		}
		if qty > model.MaxQuantity {
			qty = model.MaxQuantity
		}
		guest.Quantity = qty
		index[guest.ID] = len(merged)
		merged = append(merged, guest)
	}
	return merged
}
