// Package model holds the shared data types of the bookshop client: user
// identity, cart line items and the order wire format.
package model

// User is the authenticated profile returned by GET /users/me.
type User struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	IsAdmin   bool   `json:"is_admin"`
}

// MaxQuantity is the per-line-item quantity cap. The store enforces it on
// every mutation, so no call sequence can produce a quantity outside [1,8].
const MaxQuantity = 8

// CartLineItem is one entry of the shopping cart. SalePrice is nil when the
// item carries no discount. JSON field names match the persisted snapshot
// format, which predates this client.
type CartLineItem struct {
	ID            int64    `json:"id"`
	Title         string   `json:"title"`
	Author        string   `json:"author"`
	Image         string   `json:"image"`
	OriginalPrice float64  `json:"originalPrice"`
	SalePrice     *float64 `json:"salePrice,omitempty"`
	Quantity      int      `json:"quantity"`
}

// EffectivePrice is the price the customer pays: the sale price when a
// discount is active, the original price otherwise.
func (it CartLineItem) EffectivePrice() float64 {
	if it.SalePrice != nil {
		return *it.SalePrice
	}
	return it.OriginalPrice
}

// ClampQuantity bounds q to [1, MaxQuantity].
func ClampQuantity(q int) int {
	if q < 1 {
		return 1
	}
	if q > MaxQuantity {
		return MaxQuantity
	}
	return q
}

// OrderLine is one item of POST /orders {"list_item": [...]}.
type OrderLine struct {
	BookID   int64   `json:"book_id"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

// OrderErrorType tags a per-book correction reported by the order API.
type OrderErrorType string

const (
	OrderErrorBookNotFound    OrderErrorType = "book_not_found"
	OrderErrorPriceChanged    OrderErrorType = "price_changed"
	OrderErrorNewDiscount     OrderErrorType = "new_discount"
	OrderErrorDiscountExpired OrderErrorType = "discount_expired"
)

// OrderItemError is one entry of the order response "errors" map.
// RegularPrice accompanies discount_expired: the price the item reverts to.
type OrderItemError struct {
	Type         OrderErrorType `json:"type"`
	RegularPrice *float64       `json:"regular_price,omitempty"`
}

// OrderResponse is the body of POST /orders. Errors is keyed by book id
// (JSON object keys, so strings). When Errors is non-empty the order was not
// placed and ListItem carries the server's corrected lines.
type OrderResponse struct {
	Errors     map[string]OrderItemError `json:"errors,omitempty"`
	ListItem   []OrderLine               `json:"list_item,omitempty"`
	FinalPrice float64                   `json:"final_price,omitempty"`
}
