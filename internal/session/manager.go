// Package session owns the authentication lifecycle: silent refresh at
// startup, login, logout, and the current-identity state the rest of the
// client keys off.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/example/bookshop-client/internal/api"
	"github.com/example/bookshop-client/internal/model"
	"github.com/example/bookshop-client/internal/storage"
	"github.com/example/bookshop-client/internal/token"
)

// RefreshTokenKey is the durable storage key for the long-lived refresh
// credential (the cookie of the browser client).
const RefreshTokenKey = "refresh_token"

var (
	ErrAlreadyInitialized = errors.New("session: already initialized")
	ErrNoRefreshToken     = errors.New("session: no stored refresh token")
)

// State names the lifecycle phase of the session.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateInitializing  State = "initializing"
	StateAuthenticated State = "authenticated"
	StateAnonymous     State = "anonymous"
)

// API is the slice of the backend client the session needs.
type API interface {
	Login(ctx context.Context, email, password string) (*api.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (string, error)
	Logout(ctx context.Context, refreshToken string) error
	CurrentUser(ctx context.Context) (*model.User, error)
}

// Snapshot is the observable session state, delivered to listeners on every
// transition. User is nil for an anonymous identity; PrevUser is the identity
// before the most recent login/logout.
type Snapshot struct {
	State           State
	User            *model.User
	PrevUser        *model.User
	IsAuthenticated bool
	IsLoading       bool
	IsInitialized   bool
	Err             error
}

// Listener observes session transitions. Listeners run synchronously inside
// the transition, in registration order, and must not call back into the
// Manager.
type Listener func(Snapshot)

// Manager drives the session state machine:
//
//	Uninitialized -> Initializing -> {Authenticated, Anonymous}
//
// with Authenticated <-> Anonymous transitions on login/logout. Failures
// never escape half-applied: credential state is fully cleared before an
// error is surfaced.
type Manager struct {
	api    API
	tokens *token.Store
	store  storage.Storage
	logger *zap.Logger

	mu          sync.Mutex
	state       State
	user        *model.User
	prevUser    *model.User
	initialized bool
	loading     bool
	lastErr     error
	listeners   []Listener
}

// NewManager wires a session manager. store holds the refresh token durably;
// tokens holds the access token in memory only.
func NewManager(apiClient API, tokens *token.Store, store storage.Storage, logger *zap.Logger) *Manager {
	return &Manager{
		api:    apiClient,
		tokens: tokens,
		store:  store,
		logger: logger,
		state:  StateUninitialized,
	}
}

// Subscribe registers a listener for session transitions.
func (m *Manager) Subscribe(l Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, l)
}

// snapshotLocked builds the current snapshot. Callers hold m.mu.
func (m *Manager) snapshotLocked() Snapshot {
	return Snapshot{
		State:           m.state,
		User:            m.user,
		PrevUser:        m.prevUser,
		IsAuthenticated: m.state == StateAuthenticated,
		IsLoading:       m.loading,
		IsInitialized:   m.initialized,
		Err:             m.lastErr,
	}
}

func (m *Manager) notifyLocked() {
	snap := m.snapshotLocked()
	for _, l := range m.listeners {
		l(snap)
	}
}

// Snapshot returns the current session state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// Current returns the current user, nil when anonymous or uninitialized.
func (m *Manager) Current() *model.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.user
}

// IsAuthenticated reports whether a user is signed in.
func (m *Manager) IsAuthenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == StateAuthenticated
}

// IsInitialized reports whether Initialize has completed, successfully or not.
func (m *Manager) IsInitialized() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.initialized
}

// LastError returns the error recorded by the most recent operation.
func (m *Manager) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// Initialize attempts a silent refresh with the stored refresh token and
// resolves the session to Authenticated or Anonymous. It is called exactly
// once per process; later calls return ErrAlreadyInitialized. Initialize
// itself never fails past the boundary: any credential or network problem
// resolves to an anonymous, initialized session with the error recorded.
func (m *Manager) Initialize(ctx context.Context) {
	m.mu.Lock()
	if m.state != StateUninitialized {
		m.lastErr = ErrAlreadyInitialized
		m.mu.Unlock()
		return
	}
	m.state = StateInitializing
	m.loading = true
	m.notifyLocked()
	m.mu.Unlock()

	user, err := m.silentRefresh(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.tokens.Clear()
		m.user = nil
		m.state = StateAnonymous
		if !errors.Is(err, ErrNoRefreshToken) {
			m.clearRefreshToken(ctx)
			m.lastErr = err
			m.logger.Info("silent refresh failed, starting anonymous", zap.Error(err))
		}
	} else {
		m.user = user
		m.state = StateAuthenticated
		m.logger.Info("session restored", zap.String("user_id", user.ID))
	}
	m.loading = false
	m.initialized = true
	m.notifyLocked()
}

func (m *Manager) silentRefresh(ctx context.Context) (*model.User, error) {
	refresh, err := m.loadRefreshToken(ctx)
	if err != nil {
		return nil, err
	}

	access, err := m.api.Refresh(ctx, refresh)
	if err != nil {
		return nil, fmt.Errorf("refresh: %w", err)
	}
	expiresAt, err := token.ExpiresAt(access)
	if err != nil {
		return nil, fmt.Errorf("refresh: %w", err)
	}
	m.tokens.Set(access, expiresAt)

	user, err := m.api.CurrentUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch profile: %w", err)
	}
	return user, nil
}

// Login exchanges credentials and transitions to Authenticated. On failure
// all credential state is cleared before the error is returned, so no caller
// observes a half-authenticated session; identity stays anonymous.
func (m *Manager) Login(ctx context.Context, email, password string) error {
	m.mu.Lock()
	m.prevUser = m.user
	m.loading = true
	m.lastErr = nil
	m.notifyLocked()
	m.mu.Unlock()

	user, err := m.exchange(ctx, email, password)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.tokens.Clear()
		m.clearRefreshToken(ctx)
		m.user = nil
		m.state = StateAnonymous
		m.lastErr = err
		m.loading = false
		m.logger.Warn("login failed", zap.Error(err))
		m.notifyLocked()
		return err
	}

	m.user = user
	m.state = StateAuthenticated
	m.loading = false
	m.logger.Info("logged in", zap.String("user_id", user.ID))
	m.notifyLocked()
	return nil
}

func (m *Manager) exchange(ctx context.Context, email, password string) (*model.User, error) {
	pair, err := m.api.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	expiresAt, err := token.ExpiresAt(pair.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	m.tokens.Set(pair.AccessToken, expiresAt)

	if pair.RefreshToken != "" {
		if err := m.store.Save(ctx, RefreshTokenKey, []byte(pair.RefreshToken)); err != nil {
			// Durable persistence is best-effort: the session works until
			// process exit without it.
			m.logger.Warn("persist refresh token failed", zap.Error(err))
		}
	}

	user, err := m.api.CurrentUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch profile: %w", err)
	}
	return user, nil
}

// Logout invalidates the session. The server call is best-effort; local
// cleanup is unconditional.
func (m *Manager) Logout(ctx context.Context) {
	m.mu.Lock()
	m.prevUser = m.user
	m.loading = true
	m.lastErr = nil
	m.notifyLocked()
	m.mu.Unlock()

	if refresh, err := m.loadRefreshToken(ctx); err == nil {
		if err := m.api.Logout(ctx, refresh); err != nil {
			m.logger.Warn("logout call failed, clearing local state anyway", zap.Error(err))
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.clearRefreshToken(ctx)
	m.tokens.Clear()
	m.user = nil
	m.state = StateAnonymous
	m.loading = false
	m.logger.Info("logged out")
	m.notifyLocked()
}

func (m *Manager) loadRefreshToken(ctx context.Context) (string, error) {
	data, err := m.store.Load(ctx, RefreshTokenKey)
	if errors.Is(err, storage.ErrNotFound) || (err == nil && len(data) == 0) {
		return "", ErrNoRefreshToken
	}
	if err != nil {
		return "", ErrNoRefreshToken
	}
	return string(data), nil
}

func (m *Manager) clearRefreshToken(ctx context.Context) {
	if err := m.store.Delete(ctx, RefreshTokenKey); err != nil {
		m.logger.Warn("clear refresh token failed", zap.Error(err))
	}
}
