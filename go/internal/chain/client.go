package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// ClientConfig holds settings for the distributor relay client. The retry
// policy for transient failures lives here, behind the Sink contract, so
// callers issue a single Distribute and the adapter decides how hard to
// push.
type ClientConfig struct {
	BaseURL     string
	APIKey      string
	Timeout     time.Duration
	MaxAttempts int
	RetryWait   time.Duration
}

// DefaultClientConfig returns the relay defaults. The timeout is the
// explicit bound required on every payout call; hitting it is a transient
// failure.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Timeout:     30 * time.Second,
		MaxAttempts: 3,
		RetryWait:   5 * time.Second,
	}
}

// Client calls the prize distributor relay, which wraps the distribute
// contract call and returns the transaction hash.
type Client struct {
	baseURL     string
	apiKey      string
	client      *http.Client
	maxAttempts int
	retryWait   time.Duration
	clock       clockwork.Clock
}

func NewClient(cfg ClientConfig) *Client {
	return &Client{
		baseURL:     cfg.BaseURL,
		apiKey:      cfg.APIKey,
		client:      &http.Client{Timeout: cfg.Timeout},
		maxAttempts: cfg.MaxAttempts,
		retryWait:   cfg.RetryWait,
		clock:       clockwork.NewRealClock(),
	}
}

type distributeRequest struct {
	Addresses []string `json:"addresses"`
	Amounts   []string `json:"amounts"`
}

type distributeResponse struct {
	TxHash string `json:"txHash"`
	Error  string `json:"error,omitempty"`
}

func (c *Client) Distribute(ctx context.Context, addresses []string, amounts []*big.Int) (string, error) {
	if len(addresses) != len(amounts) {
		return "", fmt.Errorf("%w: %d addresses vs %d amounts", ErrFatal, len(addresses), len(amounts))
	}
	for i, a := range amounts {
		if a == nil || a.Sign() < 0 {
			return "", fmt.Errorf("%w: invalid amount at index %d", ErrFatal, i)
		}
	}

	body := distributeRequest{Addresses: addresses, Amounts: make([]string, len(amounts))}
	for i, a := range amounts {
		body.Amounts[i] = a.String()
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFatal, err)
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		txHash, err := c.submit(ctx, payload, len(addresses))
		if err == nil {
			return txHash, nil
		}
		if errors.Is(err, ErrFatal) {
			return "", err
		}
		lastErr = err
		log.Warn().Err(err).Int("attempt", attempt).Msg("transient distribution failure")
		if attempt < c.maxAttempts {
			timer := c.clock.NewTimer(c.retryWait)
			select {
			case <-timer.Chan():
			case <-ctx.Done():
				timer.Stop()
				return "", ctx.Err()
			}
		}
	}
	return "", lastErr
}

func (c *Client) submit(ctx context.Context, payload []byte, recipients int) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/distribute", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFatal, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		// Network errors and the client timeout are recoverable.
		return "", fmt.Errorf("%w: %v", ErrTransient, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTransient, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := fmt.Errorf("distributor returned %d: %s", resp.StatusCode, string(raw))
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return "", fmt.Errorf("%w: %v", ErrTransient, err)
		}
		return "", fmt.Errorf("%w: %v", ErrFatal, err)
	}

	var out distributeResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("%w: %v", ErrTransient, err)
	}
	if out.Error != "" {
		if isRecoverableChainError(out.Error) {
			return "", fmt.Errorf("%w: %s", ErrTransient, out.Error)
		}
		return "", fmt.Errorf("%w: %s", ErrFatal, out.Error)
	}

	log.Info().Str("tx_hash", out.TxHash).Int("recipients", recipients).Msg("distribution submitted")
	return out.TxHash, nil
}

// isRecoverableChainError matches node errors that clear up on retry.
func isRecoverableChainError(msg string) bool {
	msg = strings.ToLower(msg)
	for _, s := range []string{"nonce", "underpriced", "replacement transaction", "timeout", "connection"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
