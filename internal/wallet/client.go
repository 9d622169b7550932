// Package wallet talks to the custody service holding participant
// balances. The engine only reads a balance and debits the pack price;
// everything else about the wallet is out of scope.
package wallet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cubixnet/comp/internal/domain"
)

// Service is the narrow wallet interface the engine consumes.
type Service interface {
	Balance(ctx context.Context, address string) (decimal.Decimal, error)
	Debit(ctx context.Context, address string, amount decimal.Decimal, memo string) error
}

// HTTPClient is a wallet Service backed by the custody service's HTTP
// API, with retry on 429 and 5xx responses.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	maxRetries int
	baseDelay  time.Duration
}

// NewHTTPClient creates a new wallet API client.
func NewHTTPClient(baseURL string, maxRetries int, baseDelay time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
	}
}

type balanceResponse struct {
	Address string          `json:"address"`
	Balance decimal.Decimal `json:"balance"`
}

// Balance returns the withdrawable custody balance for an account.
func (c *HTTPClient) Balance(ctx context.Context, address string) (decimal.Decimal, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/v1/accounts/"+address+"/balance", nil)
	if err != nil {
		return decimal.Zero, err
	}

	var resp balanceResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return decimal.Zero, fmt.Errorf("parsing balance response: %w", err)
	}
	return resp.Balance, nil
}

type debitRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Memo   string          `json:"memo"`
}

// Debit withdraws amount from an account's custody balance. A 402
// response maps to domain.ErrInsufficientFunds.
func (c *HTTPClient) Debit(ctx context.Context, address string, amount decimal.Decimal, memo string) error {
	payload, err := json.Marshal(debitRequest{Amount: amount, Memo: memo})
	if err != nil {
		return fmt.Errorf("encoding debit request: %w", err)
	}
	_, err = c.do(ctx, http.MethodPost, "/api/v1/accounts/"+address+"/debit", payload)
	return err
}

func (c *HTTPClient) do(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	url := c.baseURL + path

	var lastErr error
	for attempt := range c.maxRetries + 1 {
		if attempt > 0 {
			delay := c.baseDelay * time.Duration(1<<uint(attempt-1))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		var reqBody io.Reader
		if payload != nil {
			reqBody = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
		if err != nil {
			return nil, fmt.Errorf("creating wallet request: %w", err)
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("wallet request failed: %w", err)
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("reading wallet response: %w", err)
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			return body, nil
		case resp.StatusCode == http.StatusPaymentRequired:
			return nil, fmt.Errorf("wallet debit at %s: %w", url, domain.ErrInsufficientFunds)
		case resp.StatusCode == http.StatusNotFound:
			return nil, fmt.Errorf("wallet account at %s: %w", url, domain.ErrNotFound)
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			lastErr = fmt.Errorf("HTTP %d from %s (attempt %d/%d)", resp.StatusCode, url, attempt+1, c.maxRetries+1)
			continue
		default:
			return nil, fmt.Errorf("HTTP %d from %s: %s", resp.StatusCode, url, string(body))
		}
	}

	return nil, lastErr
}
