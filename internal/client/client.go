// Package client is a typed client for the AngelMatch API. It validates offers and forms
// before sending, attaches an Idempotency-Key to every mutation and handles 401 in one place.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// DefaultTimeout bounds every request end to end.
const DefaultTimeout = 30 * time.Second

type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenStore
	guard   *AuthGuard
	flight  singleflight.Group
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithUnauthorized registers the callback the guard runs after clearing the token,
// typically sending the user to the login screen.
func WithUnauthorized(fn func()) Option {
	return func(c *Client) { c.guard.onExpired = fn }
}

func New(baseURL string, tokens TokenStore, opts ...Option) *Client {
	if tokens == nil {
		tokens = NewMemoryTokenStore("")
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
		tokens:  tokens,
	}
	c.guard = &AuthGuard{tokens: tokens}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AuthGuard is the single 401 handler for requests that carried a token: it purges the
// token and fires the expiry callback.
type AuthGuard struct {
	tokens    TokenStore
	onExpired func()
}

func (g *AuthGuard) handle() error {
	_ = g.tokens.Clear()
	if g.onExpired != nil {
		g.onExpired()
	}
	return ErrUnauthorized
}

type request struct {
	method      string
	path        string
	body        any
	raw         io.Reader
	contentType string
	out         any
	idemKey     string
	anonymous   bool // no token is sent and a 401 is an ordinary request error
}

func (c *Client) do(ctx context.Context, r request) error {
	var body io.Reader
	contentType := r.contentType
	switch {
	case r.raw != nil:
		body = r.raw
	case r.body != nil:
		buf, err := json.Marshal(r.body)
		if err != nil {
			return err
		}
		body = bytes.NewReader(buf)
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, r.method, c.baseURL+r.path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	authed := false
	if tok := c.tokens.Token(); tok != "" && !r.anonymous {
		req.Header.Set("Authorization", "Bearer "+tok)
		authed = true
	}
	if r.method != http.MethodGet {
		key := r.idemKey
		if key == "" {
			key = uuid.NewString()
		}
		req.Header.Set("Idempotency-Key", key)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &RequestError{Message: FallbackMessage, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized && authed {
		return c.guard.handle()
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}

	if r.out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if raw, ok := r.out.(*[]byte); ok {
		*raw, err = io.ReadAll(resp.Body)
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(r.out); err != nil && !errors.Is(err, io.EOF) {
		return &RequestError{Status: resp.StatusCode, Message: FallbackMessage, Err: err}
	}
	return nil
}

func decodeError(resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	_ = json.Unmarshal(raw, &body)

	msg := body.Error
	if msg == "" {
		msg = FallbackMessage
	}
	return &RequestError{Status: resp.StatusCode, Code: body.Code, Message: msg}
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, request{method: http.MethodGet, path: path, out: out})
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, request{method: http.MethodPost, path: path, body: body, out: out})
}

// once collapses concurrent identical mutations into one request with one key.
// The shared call is detached from the first caller's cancellation and bounded by
// DefaultTimeout; each caller still stops waiting when its own ctx is done.
func (c *Client) once(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, error) {
	ch := c.flight.DoChan(key, func() (any, error) {
		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), DefaultTimeout)
		defer cancel()
		return fn(shared)
	})
	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
