package wallet

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cubixnet/comp/internal/domain"
)

func TestBalance(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/accounts/alice/balance" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"address":"alice","balance":"1250.50"}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, 0, time.Millisecond)
	got, err := c.Balance(context.Background(), "alice")
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if !got.Equal(decimal.NewFromFloat(1250.50)) {
		t.Errorf("balance = %s, want 1250.50", got)
	}
}

func TestDebitInsufficientFunds(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, 2, time.Millisecond)
	err := c.Debit(context.Background(), "alice", decimal.NewFromInt(200), "pack purchase")
	if !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Errorf("Debit = %v, want ErrInsufficientFunds", err)
	}
}

func TestDebitRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, 3, time.Millisecond)
	if err := c.Debit(context.Background(), "alice", decimal.NewFromInt(200), "pack purchase"); err != nil {
		t.Fatalf("Debit after retries: %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("call count = %d, want 3", got)
	}
}

func TestBalanceUnknownAccount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, 0, time.Millisecond)
	_, err := c.Balance(context.Background(), "ghost")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Balance(ghost) = %v, want ErrNotFound", err)
	}
}
