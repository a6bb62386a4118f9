// Package checkout submits the cart as an order and reconciles the local
// cart against server-reported corrections. Checkout is optimistic: nothing
// is reserved up front, the server detects stale prices or availability
// after the fact and the client folds its corrections back into the cart.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"

	"go.uber.org/zap"

	"github.com/example/bookshop-client/internal/cart"
	"github.com/example/bookshop-client/internal/model"
)

// priceEpsilon is the largest price difference treated as unchanged,
// matching the server's own staleness check.
const priceEpsilon = 0.01

var ErrEmptyCart = errors.New("checkout: cart is empty")

// OrderAPI is the slice of the backend client checkout needs.
type OrderAPI interface {
	PlaceOrder(ctx context.Context, lines []model.OrderLine) (*model.OrderResponse, error)
}

// Outcome classifies a submission result.
type Outcome string

const (
	// OutcomePlaced: the order went through and the cart was cleared.
	OutcomePlaced Outcome = "placed"
	// OutcomeCorrected: the server rejected the order with per-item
	// corrections; the cart was updated and must be resubmitted.
	OutcomeCorrected Outcome = "corrected"
)

// Correction is one user-facing message about a reconciled line item.
type Correction struct {
	BookID  int64
	Type    model.OrderErrorType
	Message string
}

// Result reports a completed submission.
type Result struct {
	Outcome     Outcome
	FinalPrice  float64
	Corrections []Correction
}

// Reconciler drives order submission for a cart.
type Reconciler struct {
	api    OrderAPI
	cart   *cart.Store
	logger *zap.Logger
}

// NewReconciler wires a reconciler over the cart and order API.
func NewReconciler(api OrderAPI, cartStore *cart.Store, logger *zap.Logger) *Reconciler {
	return &Reconciler{api: api, cart: cartStore, logger: logger}
}

// Submit places the current cart as an order.
//
// An empty cart is rejected before any network call. A transport or API
// failure leaves the cart untouched and returns the error. A response with
// corrections mutates the cart to server truth, reports the corrections and
// does NOT clear the cart: the order was not placed and the caller resubmits
// after review. A clean response clears the cart.
//
// The order lines are snapshotted synchronously at call time; mutations that
// land while the request is in flight are reconciled on the next submit.
func (r *Reconciler) Submit(ctx context.Context) (*Result, error) {
	items := r.cart.Items()
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}

	lines := make([]model.OrderLine, 0, len(items))
	byID := make(map[int64]model.CartLineItem, len(items))
	for _, it := range items {
		lines = append(lines, model.OrderLine{
			BookID:   it.ID,
			Quantity: it.Quantity,
			Price:    it.EffectivePrice(),
		})
		byID[it.ID] = it
	}

	resp, err := r.api.PlaceOrder(ctx, lines)
	if err != nil {
		r.logger.Warn("order submission failed", zap.Error(err))
		return nil, err
	}

	if len(resp.Errors) == 0 {
		r.cart.Clear()
		r.logger.Info("order placed",
			zap.Int("lines", len(lines)),
			zap.Float64("total", resp.FinalPrice))
		return &Result{Outcome: OutcomePlaced, FinalPrice: resp.FinalPrice}, nil
	}

	corrections := r.reconcile(resp, byID)
	r.logger.Info("order rejected with corrections", zap.Int("count", len(corrections)))
	return &Result{Outcome: OutcomeCorrected, Corrections: corrections}, nil
}

// correctedLines indexes the server's corrected order lines by book id.
func correctedLines(resp *model.OrderResponse) map[int64]model.OrderLine {
	lines := make(map[int64]model.OrderLine, len(resp.ListItem))
	for _, line := range resp.ListItem {
		lines[line.BookID] = line
	}
	return lines
}

func (r *Reconciler) reconcile(resp *model.OrderResponse, byID map[int64]model.CartLineItem) []Correction {
	corrected := correctedLines(resp)
	var out []Correction

	// Map iteration order is random; report corrections in book id order.
	bookIDs := make([]int64, 0, len(resp.Errors))
	byBook := make(map[int64]model.OrderItemError, len(resp.Errors))
	for key, itemErr := range resp.Errors {
		bookID, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			r.logger.Warn("unparseable book id in order errors", zap.String("key", key))
			continue
		}
		bookIDs = append(bookIDs, bookID)
		byBook[bookID] = itemErr
	}
	sort.Slice(bookIDs, func(i, j int) bool { return bookIDs[i] < bookIDs[j] })

	for _, bookID := range bookIDs {
		itemErr := byBook[bookID]
		item, inCart := byID[bookID]
		if !inCart {
			continue
		}

		switch itemErr.Type {
		case model.OrderErrorBookNotFound:
			r.cart.RemoveItem(bookID)
			out = append(out, Correction{
				BookID:  bookID,
				Type:    itemErr.Type,
				Message: fmt.Sprintf("%q is no longer available and was removed from your cart", item.Title),
			})

		case model.OrderErrorPriceChanged:
			line, ok := corrected[bookID]
			if !ok {
				continue
			}
			if math.Abs(line.Price-item.EffectivePrice()) <= priceEpsilon {
				continue
			}
			r.cart.UpdateItemPrice(bookID, line.Price, false)
			out = append(out, Correction{
				BookID:  bookID,
				Type:    itemErr.Type,
				Message: fmt.Sprintf("price of %q changed from %.2f to %.2f", item.Title, item.EffectivePrice(), line.Price),
			})

		case model.OrderErrorNewDiscount:
			line, ok := corrected[bookID]
			if !ok {
				continue
			}
			r.cart.UpdateItemPrice(bookID, line.Price, false)
			out = append(out, Correction{
				BookID:  bookID,
				Type:    itemErr.Type,
				Message: fmt.Sprintf("%q is now on sale: %.2f instead of %.2f", item.Title, line.Price, item.EffectivePrice()),
			})

		case model.OrderErrorDiscountExpired:
			price := item.OriginalPrice
			if itemErr.RegularPrice != nil {
				price = *itemErr.RegularPrice
			}
			r.cart.UpdateItemPrice(bookID, price, true)
			out = append(out, Correction{
				BookID:  bookID,
				Type:    itemErr.Type,
				Message: fmt.Sprintf("the discount on %q expired; price is back to %.2f", item.Title, price),
			})

		default:
			r.logger.Warn("unknown order error type",
				zap.Int64("book_id", bookID),
				zap.String("type", string(itemErr.Type)))
		}
	}
	return out
}
