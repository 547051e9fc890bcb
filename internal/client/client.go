// Package client talks to the navistream HTTP API from Go programs and the
// videoctl CLI.
package client

import (
	"alcyxob/navistream/internal/domain"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// DefaultTimeout bounds one request end to end, upload included.
const DefaultTimeout = 5 * time.Minute

type Client struct {
	baseURL string
	token   string
	http    *http.Client
	log     zerolog.Logger
}

type Option func(*Client)

// WithToken sets the bearer token sent on authenticated calls.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) { c.log = logger }
}

// New returns a client for the API served at baseURL, e.g. http://localhost:8080.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Token returns the current bearer token, set by WithToken or Login.
func (c *Client) Token() string { return c.token }

// APIError is a non-2xx response. Message comes from the body's "error"
// field, falling back to "details".
type APIError struct {
	StatusCode int
	Message    string
	Code       string
	Details    []string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (%s, HTTP %d)", e.Message, e.Code, e.StatusCode)
	}
	return fmt.Sprintf("%s (HTTP %d)", e.Message, e.StatusCode)
}

// detailList accepts "details" as either a string or a list of strings.
type detailList []string

func (d *detailList) UnmarshalJSON(data []byte) error {
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		if one != "" {
			*d = detailList{one}
		}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*d = many
	return nil
}

func decodeError(resp *http.Response, fallback string) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	var body struct {
		Error   string `json:"error"`
		Code    string `json:"code"`
		Details detailList `json:"details"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body); err != nil {
		apiErr.Message = fmt.Sprintf("%s with status %d", fallback, resp.StatusCode)
		return apiErr
	}
	apiErr.Code = body.Code
	apiErr.Details = body.Details
	switch {
	case body.Error != "":
		apiErr.Message = body.Error
	case len(body.Details) > 0:
		apiErr.Message = strings.Join(body.Details, "; ")
	default:
		apiErr.Message = fallback
	}
	return apiErr
}

type loginResponse struct {
	Token string       `json:"token"`
	User  *domain.User `json:"user"`
}

// Login exchanges credentials for a token and keeps it for later calls.
func (c *Client) Login(ctx context.Context, email, password string) (*domain.User, error) {
	payload, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/auth/login", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, transportError(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeError(resp, "Login failed")
	}
	var out loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("invalid response from server: %w", err)
	}
	c.token = out.Token
	c.log.Debug().Str("email", email).Msg("logged in")
	return out.User, nil
}

var (
	ErrNetwork = errors.New("network error")
	ErrTimeout = errors.New("request timed out")
)

func transportError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return ctx.Err()
	}
	var netErr interface{ Timeout() bool }
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrNetwork, err)
}
