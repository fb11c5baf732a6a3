package accounts

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
)

// DefaultRating is assumed when the account service has no rating for a
// category yet.
const DefaultRating = 1200

// HeaderProvider injects per-request headers (e.g. a service token).
type HeaderProvider func() map[string]string

// Profile is the subset of an account the session core cares about.
type Profile struct {
	UserID   string         `json:"userId"`
	Username string         `json:"username"`
	Ratings  map[string]int `json:"ratings"`
}

// RatingFor returns the player's rating in a category bucket.
func (p *Profile) RatingFor(category string) int {
	if p == nil {
		return DefaultRating
	}
	if r, ok := p.Ratings[strings.ToLower(strings.TrimSpace(category))]; ok && r > 0 {
		return r
	}
	return DefaultRating
}

// Client talks to the account service over HTTP. Profiles are read at
// enqueue time; the service remains the owner of account data.
type Client struct {
	baseURL string
	http    *fasthttp.Client
	headers HeaderProvider

	defaultTimeout time.Duration
	retryMax       int
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.defaultTimeout = d }
}

func WithHeaderProvider(h HeaderProvider) Option {
	return func(c *Client) { c.headers = h }
}

func WithRetry(max int) Option {
	return func(c *Client) { c.retryMax = max }
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http:           &fasthttp.Client{ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second, MaxConnsPerHost: 64},
		defaultTimeout: 10 * time.Second,
		retryMax:       2,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Profile fetches one account's profile.
func (c *Client) Profile(ctx context.Context, userID string) (*Profile, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("invalid user id")
	}
	var p Profile
	if err := c.getJSON(ctx, "/users/"+userID+"/profile", &p); err != nil {
		return nil, err
	}
	if p.UserID == "" {
		p.UserID = userID
	}
	return &p, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.SetRequestURI(c.baseURL + path)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Accept", "application/json")
	if c.headers != nil {
		for k, v := range c.headers() {
			if strings.TrimSpace(k) == "" || strings.TrimSpace(v) == "" {
				continue
			}
			req.Header.Set(k, v)
		}
	}

	timeout := c.defaultTimeout
	if dl, ok := ctx.Deadline(); ok {
		if until := time.Until(dl); until < timeout {
			timeout = until
		}
	}

	var err error
	for attempt := 0; attempt <= c.retryMax; attempt++ {
		if err = c.http.DoTimeout(req, resp, timeout); err == nil {
			break
		}
	}
	if err != nil {
		return fmt.Errorf("accounts request: %w", err)
	}
	if sc := resp.StatusCode(); sc != fasthttp.StatusOK {
		return fmt.Errorf("accounts request: status %d", sc)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("accounts response decode: %w", err)
	}
	return nil
}
