// Package session is an HTTP client for the laundry API that keeps a cookie
// session alive. A 401 triggers one shared refresh and a single replay of the request.
package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	accessTokenCookie  = "accessToken"
	refreshTokenCookie = "refreshToken"
	apiPrefix          = "/api/v1"

	defaultRefreshTimeout = 15 * time.Second
)

// ErrSessionExpired means the refresh failed or the replayed request was still
// unauthorized. The local session has been torn down when it is returned.
var ErrSessionExpired = errors.New("session expired")

// ErrNotReplayable is returned for requests whose body cannot be sent twice.
var ErrNotReplayable = errors.New("request body is not replayable (GetBody is nil)")

// noRefreshSuffixes are auth endpoints whose 401 is final.
var noRefreshSuffixes = []string{
	"/users/login",
	"/users/refresh-token",
	"/users/logout",
	"/users/register",
	"/users/me",
}

// User is the account shape returned by the API.
type User struct {
	ID         uint   `json:"id"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	Role       string `json:"role"`
	IsVerified bool   `json:"isVerified"`
	AvatarURL  string `json:"avatarUrl"`
}

// APIError is a non-2xx response decoded from {"error","error_type"}.
type APIError struct {
	Status  int
	Type    string `json:"error_type"`
	Message string `json:"error"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d (%s): %s", e.Status, e.Type, e.Message)
}

type Client struct {
	base *url.URL
	http *http.Client

	group          singleflight.Group
	refreshTimeout time.Duration

	mu           sync.RWMutex
	accessToken  string
	refreshToken string
	generation   uint64
	logoutHooks  []func()
}

// New wraps httpClient, adding a cookie jar when it has none. A nil client gets defaults.
func New(baseURL string, httpClient *http.Client) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base url must be absolute: %q", baseURL)
	}

	var hc http.Client
	if httpClient != nil {
		hc = *httpClient
	}
	if hc.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, err
		}
		hc.Jar = jar
	}
	return &Client{base: base, http: &hc, refreshTimeout: defaultRefreshTimeout}, nil
}

// OnLogout registers fn to run whenever the session is torn down.
func (c *Client) OnLogout(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logoutHooks = append(c.logoutHooks, fn)
}

// URL resolves an API path such as "/users/me" against the base URL.
func (c *Client) URL(path string) string {
	return c.base.String() + apiPrefix + path
}

// AccessToken prefers the jar cookie and falls back to the last token seen in a response body.
func (c *Client) AccessToken() string {
	for _, ck := range c.http.Jar.Cookies(c.base) {
		if ck.Name == accessTokenCookie && ck.Value != "" {
			return ck.Value
		}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accessToken
}

func (c *Client) currentGeneration() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generation
}

func skipsRefresh(path string) bool {
	for _, suffix := range noRefreshSuffixes {
		if strings.HasSuffix(path, suffix) {
			return true
		}
	}
	return false
}

// Do sends req with the current access token. On a 401 from a protected path it
// waits for the shared refresh and replays req exactly once.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if req.Body != nil && req.Body != http.NoBody && req.GetBody == nil {
		return nil, ErrNotReplayable
	}

	gen := c.currentGeneration()
	resp, err := c.send(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized || skipsRefresh(req.URL.Path) {
		return resp, nil
	}
	drain(resp)

	if err := c.refreshAfter(req.Context(), gen); err != nil {
		return nil, err
	}

	retry, err := cloneRequest(req)
	if err != nil {
		return nil, err
	}
	resp, err = c.send(retry)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		drain(resp)
		log.Printf("[Session] %s %s still unauthorized after refresh, logging out", req.Method, req.URL.Path)
		c.teardown()
		return nil, ErrSessionExpired
	}
	return resp, nil
}

func (c *Client) send(req *http.Request) (*http.Response, error) {
	if token := c.AccessToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	} else {
		req.Header.Del("Authorization")
	}
	return c.http.Do(req)
}

func cloneRequest(req *http.Request) (*http.Request, error) {
	retry := req.Clone(req.Context())
	// The first send left the jar's old cookies on the header; the jar adds the current ones.
	retry.Header.Del("Cookie")
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("replay body: %w", err)
		}
		retry.Body = body
	}
	return retry, nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}

// refreshAfter joins the in-flight refresh, or starts one unless the tokens
// already rotated since gen was observed.
func (c *Client) refreshAfter(ctx context.Context, gen uint64) error {
	return c.sharedRefresh(ctx, func(rctx context.Context) error {
		if c.currentGeneration() != gen {
			return nil
		}
		return c.refresh(rctx)
	})
}

// Refresh rotates the token pair explicitly, sharing any refresh already in flight.
func (c *Client) Refresh(ctx context.Context) error {
	return c.sharedRefresh(ctx, c.refresh)
}

// sharedRefresh runs fn once for all concurrent callers. fn gets a context detached
// from the caller that started it, so one caller giving up cannot fail the others.
// Each caller still stops waiting when its own ctx is done.
func (c *Client) sharedRefresh(ctx context.Context, fn func(context.Context) error) error {
	ch := c.group.DoChan("refresh", func() (interface{}, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.refreshTimeout)
		defer cancel()
		return nil, fn(rctx)
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

type tokenResponse struct {
	User         *User  `json:"user"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

func (c *Client) refresh(ctx context.Context) error {
	c.mu.RLock()
	payload := map[string]string{}
	if c.refreshToken != "" {
		payload["refreshToken"] = c.refreshToken
	}
	c.mu.RUnlock()

	var out tokenResponse
	if err := c.call(ctx, http.MethodPost, "/users/refresh-token", payload, &out); err != nil {
		log.Printf("[Session] refresh failed: %v", err)
		c.teardown()
		return ErrSessionExpired
	}
	c.storeTokens(out.AccessToken, out.RefreshToken)
	return nil
}

func (c *Client) storeTokens(access, refresh string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessToken = access
	c.refreshToken = refresh
	c.generation++
}

// teardown clears both cookies and the remembered tokens, then runs the logout hooks.
func (c *Client) teardown() {
	c.http.Jar.SetCookies(c.base, []*http.Cookie{
		{Name: accessTokenCookie, Value: "", Path: "/", MaxAge: -1},
		{Name: refreshTokenCookie, Value: "", Path: "/", MaxAge: -1},
	})

	c.mu.Lock()
	c.accessToken = ""
	c.refreshToken = ""
	c.generation++
	hooks := append([]func(){}, c.logoutHooks...)
	c.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}
}

// call sends a JSON request through Do and decodes a JSON response into out.
func (c *Client) call(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.URL(path), body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		_ = json.NewDecoder(resp.Body).Decode(apiErr)
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// GetJSON fetches an API path through Do and decodes the response into out.
func (c *Client) GetJSON(ctx context.Context, path string, out interface{}) error {
	return c.call(ctx, http.MethodGet, path, nil, out)
}

// Tokens returns the last token pair seen in a response body.
func (c *Client) Tokens() (access, refresh string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accessToken, c.refreshToken
}

// Resume seeds the client with a pair saved by an earlier process.
func (c *Client) Resume(access, refresh string) {
	c.storeTokens(access, refresh)
}

// Login checks the password; the server emails a verification code.
func (c *Client) Login(ctx context.Context, email, password string) error {
	return c.call(ctx, http.MethodPost, "/users/login", map[string]string{"email": email, "password": password}, nil)
}

func (c *Client) RequestNewCode(ctx context.Context, email string) error {
	return c.call(ctx, http.MethodPost, "/users/request-new-code", map[string]string{"email": email}, nil)
}

// VerifyCode completes sign-in; the server sets both cookies.
func (c *Client) VerifyCode(ctx context.Context, email, code string) (*User, error) {
	var out tokenResponse
	if err := c.call(ctx, http.MethodPost, "/users/verify-code", map[string]string{"email": email, "verifyCode": code}, &out); err != nil {
		return nil, err
	}
	c.storeTokens(out.AccessToken, out.RefreshToken)
	return out.User, nil
}

// Me restores the session from the cookies. A 401 is returned as *APIError, not refreshed.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var out struct {
		User *User `json:"user"`
	}
	if err := c.call(ctx, http.MethodGet, "/users/me", nil, &out); err != nil {
		return nil, err
	}
	if out.User == nil {
		return nil, fmt.Errorf("me response has no user")
	}
	return out.User, nil
}

// Logout revokes the session server-side and always tears down the local one.
func (c *Client) Logout(ctx context.Context) error {
	err := c.call(ctx, http.MethodPost, "/users/logout", nil, nil)
	c.teardown()
	return err
}
