package api

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"

	"y8u-distributor/internal/domain"
	"y8u-distributor/internal/feed"
	"y8u-distributor/internal/verification"
)

// Default client configuration values.
const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 1 * time.Second
	DefaultMaxDelay    = 10 * time.Second
	DefaultBackoffMult = 2.0
)

// Client calls the distributor HTTP API.
type Client struct {
	endpoint    string
	client      *http.Client
	key         *ecdsa.PrivateKey
	now         func() time.Time
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
}

// ClientOption configures Client.
type ClientOption func(*Client)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) ClientOption {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *Client) {
		c.retryDelay = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.client = client
	}
}

// WithSigner signs state-changing requests with key.
func WithSigner(key *ecdsa.PrivateKey) ClientOption {
	return func(c *Client) {
		c.key = key
	}
}

// NewClient creates a client for the API rooted at endpoint.
func NewClient(endpoint string, opts ...ClientOption) *Client {
	c := &Client{
		endpoint:    strings.TrimRight(endpoint, "/"),
		client:      &http.Client{Timeout: DefaultTimeout},
		now:         time.Now,
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// call performs a request with retries and exponential backoff. Transport
// failures, 429 and 5xx are retried; other API errors are returned at once.
// Signed requests are re-signed per attempt so the timestamp stays fresh.
func (c *Client) call(ctx context.Context, method, path string, in, out interface{}, signed bool) error {
	var body []byte
	if in != nil {
		var err error
		if body, err = json.Marshal(in); err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
	}
	if signed && c.key == nil {
		return errors.New("client has no signing key")
	}

	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if signed {
			if err := c.sign(req, body); err != nil {
				return err
			}
		}

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		if resp.StatusCode != http.StatusOK {
			apiErr := decodeError(resp.StatusCode, respBody)
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				lastErr = apiErr
				continue
			}
			return apiErr
		}

		if out != nil {
			if err := json.Unmarshal(respBody, out); err != nil {
				return fmt.Errorf("unmarshal response: %w", err)
			}
		}
		return nil
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (c *Client) sign(req *http.Request, body []byte) error {
	ts := c.now().Unix()
	sig, err := Sign(c.key, SigningPayload(req.Method, req.URL.Path, ts, body))
	if err != nil {
		return fmt.Errorf("sign request: %w", err)
	}
	req.Header.Set(HeaderTimestamp, strconv.FormatInt(ts, 10))
	req.Header.Set(HeaderSignature, sig)
	return nil
}

func decodeError(status int, body []byte) *APIError {
	var er ErrorResponse
	if err := json.Unmarshal(body, &er); err != nil || er.Code == "" {
		return &APIError{Status: status, Code: CodeInternal, Message: strings.TrimSpace(string(body))}
	}
	return &APIError{Status: status, Code: er.Code, Message: er.Message}
}

func poolPath(pool domain.Pool, suffix string) string {
	return "/v1/pools/" + url.PathEscape(string(pool)) + "/" + suffix
}

// SetTGE starts vesting.
func (c *Client) SetTGE(ctx context.Context) (int64, error) {
	var resp TGEResponse
	if err := c.call(ctx, http.MethodPost, "/v1/tge", nil, &resp, true); err != nil {
		return 0, err
	}
	return resp.TGE, nil
}

// SetRoot installs a sale pool root.
func (c *Client) SetRoot(ctx context.Context, pool domain.Pool, root common.Hash) error {
	return c.call(ctx, http.MethodPut, poolPath(pool, "root"), RootRequest{Root: root.Hex()}, nil, true)
}

// ClaimPool claims a fixed pool as the owner.
func (c *Client) ClaimPool(ctx context.Context, pool domain.Pool) (*domain.ClaimRecord, error) {
	return c.claim(ctx, pool, nil)
}

// ClaimSale claims the signer's share of a sale pool.
func (c *Client) ClaimSale(ctx context.Context, pool domain.Pool, allocation sdkmath.Int, proof []common.Hash) (*domain.ClaimRecord, error) {
	req := &ClaimRequest{Allocation: allocation.String(), Proof: make([]string, len(proof))}
	for i, h := range proof {
		req.Proof[i] = h.Hex()
	}
	return c.claim(ctx, pool, req)
}

func (c *Client) claim(ctx context.Context, pool domain.Pool, req *ClaimRequest) (*domain.ClaimRecord, error) {
	var in interface{}
	if req != nil {
		in = req
	}
	var ev feed.Event
	if err := c.call(ctx, http.MethodPost, poolPath(pool, "claim"), in, &ev, true); err != nil {
		return nil, err
	}
	return ev.Record()
}

// TotalClaimed returns the pool-wide claimed total.
func (c *Client) TotalClaimed(ctx context.Context, pool domain.Pool) (sdkmath.Int, error) {
	var resp AmountResponse
	if err := c.call(ctx, http.MethodGet, poolPath(pool, "claimed"), nil, &resp, false); err != nil {
		return sdkmath.Int{}, err
	}
	return domain.ParseAmount(resp.Amount)
}

// Status fetches every pool's status.
func (c *Client) Status(ctx context.Context) (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.call(ctx, http.MethodGet, "/v1/status", nil, &resp, false); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Audit runs the server-side ledger audit.
func (c *Client) Audit(ctx context.Context) (*verification.Report, error) {
	var resp verification.Report
	if err := c.call(ctx, http.MethodGet, "/v1/audit", nil, &resp, false); err != nil {
		return nil, err
	}
	return &resp, nil
}
