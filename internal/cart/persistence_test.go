package cart

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/example/bookshop-client/internal/api"
	"github.com/example/bookshop-client/internal/model"
	"github.com/example/bookshop-client/internal/session"
	"github.com/example/bookshop-client/internal/storage"
	"github.com/example/bookshop-client/internal/token"
)

// fakeAuthAPI satisfies session.API without a network.
type fakeAuthAPI struct {
	user        *model.User
	accessToken string
	loginErr    error
	refreshErr  error
}

func (f *fakeAuthAPI) Login(context.Context, string, string) (*api.TokenPair, error) {
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return &api.TokenPair{AccessToken: f.accessToken, RefreshToken: "refresh-1"}, nil
}

func (f *fakeAuthAPI) Refresh(context.Context, string) (string, error) {
	if f.refreshErr != nil {
		return "", f.refreshErr
	}
	return f.accessToken, nil
}

func (f *fakeAuthAPI) Logout(context.Context, string) error { return nil }

func (f *fakeAuthAPI) CurrentUser(context.Context) (*model.User, error) {
	if f.user == nil {
		return nil, errors.New("not authenticated")
	}
	return f.user, nil
}

func mintAccessToken(t *testing.T) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(15 * time.Minute)),
		Subject:   "u1",
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return signed
}

type fixture struct {
	store   *storage.Memory
	cart    *Store
	session *session.Manager
	api     *fakeAuthAPI
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := storage.NewMemory()
	cartStore := NewStore()
	fake := &fakeAuthAPI{
		user:        &model.User{ID: "u1", FirstName: "Ada"},
		accessToken: mintAccessToken(t),
	}
	sess := session.NewManager(fake, token.NewStore(), store, zap.NewNop())
	NewPersistenceManager(cartStore, store, zap.NewNop()).Bind(sess)
	return &fixture{store: store, cart: cartStore, session: sess, api: fake}
}

func storedItems(t *testing.T, store *storage.Memory, key string) []model.CartLineItem {
	t.Helper()
	data, err := store.Load(context.Background(), key)
	require.NoError(t, err)
	var items []model.CartLineItem
	require.NoError(t, json.Unmarshal(data, &items))
	return items
}

func TestStorageKey(t *testing.T) {
	assert.Equal(t, "cart-guest", StorageKey(nil))
	assert.Equal(t, "cart-u1", StorageKey(&model.User{ID: "u1"}))
}

func TestGuestCartMergesIntoEmptyUserCartOnLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.session.Initialize(ctx) // no stored refresh token: anonymous
	f.cart.AddItem(lineItem(7, 20), 3)

	require.NoError(t, f.session.Login(ctx, "ada@example.com", "pw"))

	items := f.cart.Items()
	require.Len(t, items, 1)
	assert.Equal(t, int64(7), items[0].ID)
	assert.Equal(t, 3, items[0].Quantity)

	assert.Empty(t, storedItems(t, f.store, GuestKey), "guest snapshot is cleared after merge")
	assert.Equal(t, items, storedItems(t, f.store, "cart-u1"))
}

func TestGuestCartMergesIntoExistingUserCartWithClamp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	seed, err := json.Marshal([]model.CartLineItem{itemWithQty(9, 6)})
	require.NoError(t, err)
	require.NoError(t, f.store.Save(ctx, "cart-u1", seed))

	f.session.Initialize(ctx)
	f.cart.AddItem(lineItem(9, 20), 4)

	require.NoError(t, f.session.Login(ctx, "ada@example.com", "pw"))

	items := f.cart.Items()
	require.Len(t, items, 1)
	assert.Equal(t, 8, items[0].Quantity, "6+4 clamps to the quantity cap")
}

func TestEmptyGuestCartInstallsUserSnapshotUnchanged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	seed, err := json.Marshal([]model.CartLineItem{itemWithQty(4, 2)})
	require.NoError(t, err)
	require.NoError(t, f.store.Save(ctx, "cart-u1", seed))

	f.session.Initialize(ctx)
	require.NoError(t, f.session.Login(ctx, "ada@example.com", "pw"))

	items := f.cart.Items()
	require.Len(t, items, 1)
	assert.Equal(t, int64(4), items[0].ID)
	assert.Equal(t, 2, items[0].Quantity)
}

func TestMergeIsIdempotentAcrossRelogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.session.Initialize(ctx)
	f.cart.AddItem(lineItem(7, 20), 3)
	require.NoError(t, f.session.Login(ctx, "ada@example.com", "pw"))

	f.session.Logout(ctx)
	require.NoError(t, f.session.Login(ctx, "ada@example.com", "pw"))

	items := f.cart.Items()
	require.Len(t, items, 1)
	assert.Equal(t, 3, items[0].Quantity, "no guest activity between logins leaves the user cart unchanged")
}

func TestLogoutPersistsUserCartAndRestoresGuestCart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.session.Initialize(ctx)
	f.cart.AddItem(lineItem(1, 10), 1) // guest activity
	require.NoError(t, f.session.Login(ctx, "ada@example.com", "pw"))
	f.cart.AddItem(lineItem(2, 30), 2) // user activity

	f.session.Logout(ctx)

	// The user's cart survived under their own key.
	saved := storedItems(t, f.store, "cart-u1")
	assert.Equal(t, map[int64]int{1: 1, 2: 2}, quantitiesByID(saved))

	// The live cart is now the guest snapshot, emptied by the earlier merge.
	assert.Empty(t, f.cart.Items())
}

func TestGuestMutationsPersistContinuously(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.session.Initialize(ctx)
	f.cart.AddItem(lineItem(5, 12), 2)
	f.cart.UpdateQuantity(5, 4)

	saved := storedItems(t, f.store, GuestKey)
	require.Len(t, saved, 1)
	assert.Equal(t, 4, saved[0].Quantity)
}

func TestGuestCartSurvivesRestart(t *testing.T) {
	store := storage.NewMemory()
	ctx := context.Background()

	seed, err := json.Marshal([]model.CartLineItem{itemWithQty(3, 2)})
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, GuestKey, seed))

	cartStore := NewStore()
	fake := &fakeAuthAPI{accessToken: mintAccessToken(t)}
	sess := session.NewManager(fake, token.NewStore(), store, zap.NewNop())
	NewPersistenceManager(cartStore, store, zap.NewNop()).Bind(sess)

	sess.Initialize(ctx)

	items := cartStore.Items()
	require.Len(t, items, 1)
	assert.Equal(t, int64(3), items[0].ID)
}

func TestMalformedSnapshotDegradesToEmptyCart(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"truncated json", []byte(`[{"id":3,`)},
		{"not a list", []byte(`{"id":3}`)},
		{"wrong scalar", []byte(`42`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			require.NoError(t, f.store.Save(ctx, GuestKey, tt.data))

			f.session.Initialize(ctx)

			assert.Empty(t, f.cart.Items())
		})
	}
}

func TestFailedLoginLeavesGuestCartAlone(t *testing.T) {
	f := newFixture(t)
	f.api.loginErr = errors.New("bad credentials")
	ctx := context.Background()

	f.session.Initialize(ctx)
	f.cart.AddItem(lineItem(7, 20), 3)

	require.Error(t, f.session.Login(ctx, "ada@example.com", "nope"))

	items := f.cart.Items()
	require.Len(t, items, 1)
	assert.Equal(t, 3, items[0].Quantity)
	saved := storedItems(t, f.store, GuestKey)
	require.Len(t, saved, 1)
	assert.Equal(t, 3, saved[0].Quantity)
}
