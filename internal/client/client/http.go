package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
)

const (
	maxRetries      = 2
	retryBaseDelay  = 100 * time.Millisecond
	retryMaxBackoff = 2 * time.Second
)

func defaultBackoff() retry.Backoff {
	return retry.WithMaxRetries(maxRetries, retry.WithCappedDuration(retryMaxBackoff, retry.NewExponential(retryBaseDelay)))
}

// HTTPClient talks to the Wayne HTTP API and keeps the session tokens in memory.
type HTTPClient struct {
	baseURL    string
	hc         *http.Client
	newBackoff func() retry.Backoff

	mu           sync.Mutex
	accessToken  string
	refreshToken string
}

var _ Client = (*HTTPClient)(nil)

func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		hc:         &http.Client{Timeout: timeout},
		newBackoff: defaultBackoff,
	}
}

// SetTokens replaces the cached session, e.g. with tokens restored from elsewhere.
func (c *HTTPClient) SetTokens(access, refresh string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessToken = access
	c.refreshToken = refresh
}

func (c *HTTPClient) Tokens() (access, refresh string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accessToken, c.refreshToken
}

func (c *HTTPClient) LoggedIn() bool {
	access, refresh := c.Tokens()
	return access != "" || refresh != ""
}

type call struct {
	method     string
	path       string
	body       any
	out        any
	auth       bool
	idempotent bool
}

// do sends an API call. Authenticated calls rejected with 401 are retried
// once after a token refresh.
func (c *HTTPClient) do(ctx context.Context, cl call) error {
	if cl.auth {
		access, refresh := c.Tokens()
		switch {
		case access == "" && refresh == "":
			return ErrNotLoggedIn
		case access == "":
			if err := c.Refresh(ctx); err != nil {
				return err
			}
		}
	}

	err := c.send(ctx, cl)
	if cl.auth && errors.Is(err, ErrUnauthorized) {
		if _, refresh := c.Tokens(); refresh == "" {
			return err
		}
		if rerr := c.Refresh(ctx); rerr != nil {
			return rerr
		}
		err = c.send(ctx, cl)
	}
	return err
}

func (c *HTTPClient) send(ctx context.Context, cl call) error {
	var payload []byte
	if cl.body != nil {
		var err error
		if payload, err = json.Marshal(cl.body); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}

	attempt := func(ctx context.Context) error {
		err := c.roundTrip(ctx, cl, payload)
		if cl.idempotent && errors.Is(err, ErrUnavailable) && ctx.Err() == nil {
			return retry.RetryableError(err)
		}
		return err
	}

	if !cl.idempotent {
		return attempt(ctx)
	}
	return retry.Do(ctx, c.newBackoff(), attempt)
}

func (c *HTTPClient) roundTrip(ctx context.Context, cl call, payload []byte) error {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, cl.method, c.baseURL+cl.path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cl.auth {
		access, _ := c.Tokens()
		req.Header.Set("Authorization", "Bearer "+access)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp)
	}

	if cl.out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(cl.out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body)

	apiErr := &APIError{Status: resp.StatusCode, Code: body.Error, Message: body.Message}
	if apiErr.Code == "" {
		apiErr.Code = strings.ToLower(strings.ReplaceAll(http.StatusText(resp.StatusCode), " ", "_"))
	}
	return apiErr
}

type credentialsRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RememberMe bool   `json:"remember_me"`
}

type authResponse struct {
	UserID       string  `json:"user_id"`
	AccessToken  string  `json:"access_token"`
	RefreshToken *string `json:"refresh_token"`
	ExpiresIn    int64   `json:"expires_in"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type refreshResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

func (c *HTTPClient) authenticate(ctx context.Context, path, email, password string, remember bool) (*Session, error) {
	var out authResponse
	err := c.do(ctx, call{
		method: http.MethodPost,
		path:   path,
		body:   credentialsRequest{Email: email, Password: password, RememberMe: remember},
		out:    &out,
	})
	if err != nil {
		return nil, err
	}

	s := &Session{UserID: out.UserID, AccessToken: out.AccessToken, ExpiresIn: out.ExpiresIn}
	if out.RefreshToken != nil {
		s.RefreshToken = *out.RefreshToken
	}
	c.SetTokens(s.AccessToken, s.RefreshToken)
	return s, nil
}

func (c *HTTPClient) Register(ctx context.Context, email, password string, remember bool) (*Session, error) {
	return c.authenticate(ctx, "/auth/register", email, password, remember)
}

func (c *HTTPClient) Login(ctx context.Context, email, password string, remember bool) (*Session, error) {
	return c.authenticate(ctx, "/auth/login", email, password, remember)
}

// Refresh exchanges the cached refresh token for a new access token. When the
// server rejects the refresh token the whole session is dropped.
func (c *HTTPClient) Refresh(ctx context.Context) error {
	_, refresh := c.Tokens()
	if refresh == "" {
		return ErrNotLoggedIn
	}

	var out refreshResponse
	err := c.send(ctx, call{
		method:     http.MethodPost,
		path:       "/auth/refresh",
		body:       refreshRequest{RefreshToken: refresh},
		out:        &out,
		idempotent: true,
	})
	if errors.Is(err, ErrUnauthorized) {
		c.SetTokens("", "")
		return err
	}
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.accessToken = out.AccessToken
	c.mu.Unlock()
	return nil
}

// Logout revokes the refresh token on the server and forgets the session.
func (c *HTTPClient) Logout(ctx context.Context) error {
	_, refresh := c.Tokens()
	if refresh == "" {
		c.SetTokens("", "")
		return ErrNotLoggedIn
	}

	err := c.send(ctx, call{
		method:     http.MethodPost,
		path:       "/auth/logout",
		body:       refreshRequest{RefreshToken: refresh},
		idempotent: true,
	})
	if err != nil && !errors.Is(err, ErrUnauthorized) {
		return err
	}
	c.SetTokens("", "")
	return nil
}

type changePasswordRequest struct {
	PasswordType string    `json:"password_type"`
	OldPassword  *string   `json:"old_password,omitempty"`
	NewPassword  *string   `json:"new_password,omitempty"`
	Envelope     *Envelope `json:"envelope,omitempty"`
}

func (c *HTTPClient) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	return c.do(ctx, call{
		method: http.MethodPost,
		path:   "/auth/change-password",
		body:   changePasswordRequest{PasswordType: "wayne", OldPassword: &oldPassword, NewPassword: &newPassword},
		auth:   true,
	})
}

func (c *HTTPClient) RotateMasterSecret(ctx context.Context, envelope Envelope) error {
	return c.do(ctx, call{
		method:     http.MethodPost,
		path:       "/auth/change-password",
		body:       changePasswordRequest{PasswordType: "master", Envelope: &envelope},
		auth:       true,
		idempotent: true,
	})
}

type envelopeRequest struct {
	Envelope Envelope `json:"envelope"`
}

type envelopeResponse struct {
	Envelope   Envelope `json:"envelope"`
	EnvelopeID string   `json:"envelope_id"`
}

func (c *HTTPClient) PutEnvelope(ctx context.Context, envelope Envelope) (string, error) {
	var out envelopeResponse
	err := c.do(ctx, call{
		method:     http.MethodPost,
		path:       "/key-envelopes",
		body:       envelopeRequest{Envelope: envelope},
		out:        &out,
		auth:       true,
		idempotent: true,
	})
	if err != nil {
		return "", err
	}
	return out.EnvelopeID, nil
}

func (c *HTTPClient) GetEnvelope(ctx context.Context) (*Envelope, string, error) {
	var out envelopeResponse
	err := c.do(ctx, call{
		method:     http.MethodGet,
		path:       "/key-envelopes/me",
		out:        &out,
		auth:       true,
		idempotent: true,
	})
	if err != nil {
		return nil, "", err
	}
	return &out.Envelope, out.EnvelopeID, nil
}

func (c *HTTPClient) CreateBucket(ctx context.Context) (*Bucket, error) {
	var out Bucket
	err := c.do(ctx, call{
		method: http.MethodPost,
		path:   "/storj-config/create",
		out:    &out,
		auth:   true,
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) GetBucket(ctx context.Context) (*BucketCredentials, error) {
	var out BucketCredentials
	err := c.do(ctx, call{
		method:     http.MethodGet,
		path:       "/storj-config/me",
		out:        &out,
		auth:       true,
		idempotent: true,
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) Health(ctx context.Context) error {
	return c.do(ctx, call{
		method:     http.MethodGet,
		path:       "/healthz",
		idempotent: true,
	})
}
