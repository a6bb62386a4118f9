// Package api implements the HTTP client for the bookshop backend under
// /api: auth, profile, catalog reads and order placement.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/bookshop-client/internal/model"
	"github.com/example/bookshop-client/internal/token"
)

// Client talks to the bookshop REST API. A non-expired access token from the
// token store is attached as a bearer to every request unless the call
// supplies its own bearer (refresh and logout authenticate with the refresh
// token instead).
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     *token.Store
	logger     *zap.Logger
	now        func() time.Time
}

// NewClient creates a client for the API rooted at baseURL (the "/api" prefix
// is appended if missing).
func NewClient(baseURL string, tokens *token.Store, logger *zap.Logger) *Client {
	base := strings.TrimRight(baseURL, "/")
	if !strings.HasSuffix(base, "/api") {
		base += "/api"
	}
	return &Client{
		baseURL: base,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		tokens: tokens,
		logger: logger,
		now:    time.Now,
	}
}

// TokenPair is the body of POST /auth/token.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

type request struct {
	method      string
	path        string
	query       url.Values
	body        io.Reader
	contentType string
	bearer      string // overrides the access token when set
}

func (c *Client) do(ctx context.Context, r request, out any) error {
	u := c.baseURL + r.path
	if len(r.query) > 0 {
		u += "?" + r.query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, r.method, u, r.body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	req.Header.Set("X-Request-ID", uuid.NewString())

	switch {
	case r.bearer != "":
		req.Header.Set("Authorization", "Bearer "+r.bearer)
	default:
		// Expired-or-absent access tokens are never attached.
		if access, ok := c.tokens.Valid(c.now()); ok {
			req.Header.Set("Authorization", "Bearer "+access)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("request failed",
			zap.String("method", r.method),
			zap.String("path", r.path),
			zap.Error(err))
		return fmt.Errorf("%s %s: %w", r.method, r.path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := newError(resp)
		c.logger.Debug("request rejected",
			zap.String("method", r.method),
			zap.String("path", r.path),
			zap.Int("status", resp.StatusCode),
			zap.String("detail", apiErr.Detail))
		return apiErr
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", r.path, err)
	}
	return nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode %s body: %w", path, err)
	}
	return c.do(ctx, request{
		method:      method,
		path:        path,
		body:        bytes.NewReader(payload),
		contentType: "application/json",
	}, out)
}

// Login exchanges credentials for a token pair (form-encoded, OAuth2 password
// flow field names).
func (c *Client) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	form := url.Values{}
	form.Set("username", email)
	form.Set("password", password)

	var pair TokenPair
	err := c.do(ctx, request{
		method:      http.MethodPost,
		path:        "/auth/token",
		body:        strings.NewReader(form.Encode()),
		contentType: "application/x-www-form-urlencoded",
	}, &pair)
	if err != nil {
		return nil, err
	}
	if pair.AccessToken == "" {
		return nil, fmt.Errorf("login: empty access token in response")
	}
	return &pair, nil
}

// Refresh trades the refresh token for a new access token. The backend
// returns either a bare JSON string or an object with an access_token field;
// both shapes are accepted.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (string, error) {
	var raw json.RawMessage
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/auth/token/refresh",
		bearer: refreshToken,
	}, &raw)
	if err != nil {
		return "", err
	}

	var plain string
	if err := json.Unmarshal(raw, &plain); err == nil && plain != "" {
		return plain, nil
	}
	var wrapped struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.AccessToken != "" {
		return wrapped.AccessToken, nil
	}
	return "", fmt.Errorf("refresh: unrecognized response shape")
}

// Logout invalidates the refresh token server-side.
func (c *Client) Logout(ctx context.Context, refreshToken string) error {
	return c.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/logout",
		bearer: refreshToken,
	}, nil)
}

// CurrentUser fetches the profile of the token's owner. The access token must
// already be in the token store.
func (c *Client) CurrentUser(ctx context.Context) (*model.User, error) {
	var user model.User
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/users/me",
	}, &user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// PlaceOrder submits the cart lines. A response with a non-empty Errors map
// means the order was rejected with corrections; see the checkout package.
func (c *Client) PlaceOrder(ctx context.Context, lines []model.OrderLine) (*model.OrderResponse, error) {
	var resp model.OrderResponse
	err := c.doJSON(ctx, http.MethodPost, "/orders", struct {
		ListItem []model.OrderLine `json:"list_item"`
	}{ListItem: lines}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}
