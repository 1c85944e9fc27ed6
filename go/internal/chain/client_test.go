package chain

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(url string) *Client {
	cfg := DefaultClientConfig()
	cfg.BaseURL = url
	cfg.APIKey = "secret"
	cfg.RetryWait = time.Millisecond
	return NewClient(cfg)
}

func TestDistributeSubmitsParallelSlices(t *testing.T) {
	var got distributeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/distribute", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(distributeResponse{TxHash: "0xabc"})
	}))
	defer srv.Close()

	txHash, err := newTestClient(srv.URL).Distribute(context.Background(),
		[]string{"0xaaa", "0xbbb"},
		[]*big.Int{big.NewInt(1000), big.NewInt(2000)})
	require.NoError(t, err)

	assert.Equal(t, "0xabc", txHash)
	assert.Equal(t, []string{"0xaaa", "0xbbb"}, got.Addresses)
	assert.Equal(t, []string{"1000", "2000"}, got.Amounts)
}

func TestDistributeRejectsMismatchedSlices(t *testing.T) {
	_, err := newTestClient("http://unused").Distribute(context.Background(),
		[]string{"0xaaa"}, nil)
	assert.ErrorIs(t, err, ErrFatal)
}

func TestDistributeRejectsNegativeAmounts(t *testing.T) {
	_, err := newTestClient("http://unused").Distribute(context.Background(),
		[]string{"0xaaa"}, []*big.Int{big.NewInt(-1)})
	assert.ErrorIs(t, err, ErrFatal)
}

func TestDistributeServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Distribute(context.Background(),
		[]string{"0xaaa"}, []*big.Int{big.NewInt(1)})
	assert.ErrorIs(t, err, ErrTransient)
}

func TestDistributeRetriesTransientFailures(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			http.Error(w, "boom", http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(distributeResponse{TxHash: "0xeventually"})
	}))
	defer srv.Close()

	txHash, err := newTestClient(srv.URL).Distribute(context.Background(),
		[]string{"0xaaa"}, []*big.Int{big.NewInt(1)})
	require.NoError(t, err)

	assert.Equal(t, 3, calls)
	assert.Equal(t, "0xeventually", txHash)
}

func TestDistributeFatalErrorDoesNotRetry(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Distribute(context.Background(),
		[]string{"0xaaa"}, []*big.Int{big.NewInt(1)})

	assert.ErrorIs(t, err, ErrFatal)
	assert.Equal(t, 1, calls)
}

func TestDistributeClientErrorIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Distribute(context.Background(),
		[]string{"0xaaa"}, []*big.Int{big.NewInt(1)})
	assert.ErrorIs(t, err, ErrFatal)
}

func TestDistributeNonceErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(distributeResponse{Error: "replacement transaction underpriced"})
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Distribute(context.Background(),
		[]string{"0xaaa"}, []*big.Int{big.NewInt(1)})
	assert.ErrorIs(t, err, ErrTransient)
}

func TestDistributeTimeoutIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
	}))
	defer srv.Close()

	cfg := DefaultClientConfig()
	cfg.BaseURL = srv.URL
	cfg.Timeout = 10 * time.Millisecond
	cfg.RetryWait = time.Millisecond

	_, err := NewClient(cfg).Distribute(context.Background(),
		[]string{"0xaaa"}, []*big.Int{big.NewInt(1)})
	assert.ErrorIs(t, err, ErrTransient)
}
