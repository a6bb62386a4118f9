package cart

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/example/bookshop-client/internal/model"
	"github.com/example/bookshop-client/internal/session"
	"github.com/example/bookshop-client/internal/storage"
)

// GuestKey is the snapshot key for the anonymous identity.
const GuestKey = "cart-guest"

const storageTimeout = 2 * time.Second

// StorageKey maps an identity to its durable snapshot key.
func StorageKey(user *model.User) string {
	if user == nil {
		return GuestKey
	}
	return "cart-" + user.ID
}

// PersistenceManager keeps the durable per-identity snapshots consistent with
// the live cart. On session transitions it saves the outgoing identity's
// cart, installs the incoming identity's snapshot, and merges the guest cart
// into the user cart on login. It also persists every cart mutation under the
// active identity's key.
type PersistenceManager struct {
	cart   *Store
	store  storage.Storage
	logger *zap.Logger

	// Guarded by the synchronous, in-order delivery of session and cart
	// notifications: both callbacks run to completion before the next
	// mutation is observed.
	activeKey string
	ready     bool
	lastUser  string
	lastPrev  string
	seen      bool
}

// NewPersistenceManager wires a manager over the live cart and the snapshot
// store. Call Bind to attach it to a session.
func NewPersistenceManager(cart *Store, store storage.Storage, logger *zap.Logger) *PersistenceManager {
	return &PersistenceManager{
		cart:   cart,
		store:  store,
		logger: logger,
	}
}

// Bind subscribes the manager to session transitions and cart mutations.
func (p *PersistenceManager) Bind(sess *session.Manager) {
	sess.Subscribe(p.onSession)
	p.cart.Subscribe(p.onCartMutated)
}

func (p *PersistenceManager) onSession(snap session.Snapshot) {
	// Never act on transient startup states: merge decisions wait for a
	// resolved identity.
	if !snap.IsInitialized || snap.IsLoading {
		return
	}

	userID := ""
	if snap.User != nil {
		userID = snap.User.ID
	}
	prevID := ""
	if snap.PrevUser != nil {
		prevID = snap.PrevUser.ID
	}
	if p.seen && userID == p.lastUser && prevID == p.lastPrev {
		return
	}
	p.seen = true
	p.lastUser = userID
	p.lastPrev = prevID

	switch {
	case snap.User == nil:
		// Logout (or startup resolved anonymous): the previous user's cart
		// survives under their own key, then the guest snapshot takes over.
		if snap.PrevUser != nil {
			p.save(StorageKey(snap.PrevUser), p.cart.Items())
		}
		p.activeKey = GuestKey
		p.ready = true
		p.cart.SetItems(p.load(GuestKey))

	case snap.PrevUser == nil:
		// Fresh login this session: fold any guest cart into the user's
		// snapshot, then clear the guest snapshot so it is never re-merged.
		userKey := StorageKey(snap.User)
		userItems := p.load(userKey)
		guestItems := p.load(GuestKey)

		target := userItems
		if len(guestItems) > 0 {
			target = Merge(userItems, guestItems)
			p.save(userKey, target)
			p.save(GuestKey, nil)
		}
		p.activeKey = userKey
		p.ready = true
		p.cart.SetItems(target)

	default:
		// Same-session user change without a logout between: keep the live
		// cart, just point persistence at the new key.
		p.activeKey = StorageKey(snap.User)
		p.ready = true
	}
}

func (p *PersistenceManager) onCartMutated(items []model.CartLineItem) {
	if !p.ready {
		return
	}
	p.save(p.activeKey, items)
}

// load reads a snapshot. Anything unreadable (missing key, malformed JSON,
// non-list content) degrades to an empty cart, never an error.
func (p *PersistenceManager) load(key string) []model.CartLineItem {
	ctx, cancel := context.WithTimeout(context.Background(), storageTimeout)
	defer cancel()

	data, err := p.store.Load(ctx, key)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			p.logger.Warn("cart snapshot unreadable", zap.String("key", key), zap.Error(err))
		}
		return nil
	}

	var items []model.CartLineItem
	if err := json.Unmarshal(data, &items); err != nil {
		p.logger.Warn("cart snapshot malformed", zap.String("key", key), zap.Error(err))
		return nil
	}
	return items
}

// save writes a snapshot best-effort; failures are logged and swallowed.
func (p *PersistenceManager) save(key string, items []model.CartLineItem) {
	if items == nil {
		items = []model.CartLineItem{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		p.logger.Warn("encode cart snapshot failed", zap.String("key", key), zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), storageTimeout)
	defer cancel()
	if err := p.store.Save(ctx, key, data); err != nil {
		p.logger.Warn("persist cart snapshot failed", zap.String("key", key), zap.Error(err))
	}
}
