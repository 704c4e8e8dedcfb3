package momoclient

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func newTestTokenStore(exchange exchangeFunc) (*TokenStore, *time.Time) {
	store := NewTokenStore(exchange)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	return store, &now
}

func TestTokenStore_ReusesCachedToken(t *testing.T) {
	var exchanges int32
	store, _ := newTestTokenStore(func(ctx context.Context, scope Scope) (string, int64, error) {
		atomic.AddInt32(&exchanges, 1)
		return "token-1", 3600, nil
	})

	for i := 0; i < 3; i++ {
		token, err := store.Token(context.Background(), ScopeCollections)
		if err != nil {
			t.Fatalf("Token returned error: %v", err)
		}
		if token != "token-1" {
			t.Fatalf("expected cached token, got %q", token)
		}
	}

	if got := atomic.LoadInt32(&exchanges); got != 1 {
		t.Fatalf("expected exactly one exchange, got %d", got)
	}
}

func TestTokenStore_ScopesAreIndependent(t *testing.T) {
	store, _ := newTestTokenStore(func(ctx context.Context, scope Scope) (string, int64, error) {
		return "token-" + string(scope), 3600, nil
	})

	collection, err := store.Token(context.Background(), ScopeCollections)
	if err != nil {
		t.Fatalf("Token returned error: %v", err)
	}
	disbursement, err := store.Token(context.Background(), ScopeDisbursements)
	if err != nil {
		t.Fatalf("Token returned error: %v", err)
	}
	if collection == disbursement {
		t.Fatalf("expected scope-specific tokens, got %q for both", collection)
	}
}

func TestTokenStore_RefreshesWithinSafetyMargin(t *testing.T) {
	var exchanges int32
	store, now := newTestTokenStore(func(ctx context.Context, scope Scope) (string, int64, error) {
		n := atomic.AddInt32(&exchanges, 1)
		if n == 1 {
			return "token-1", 3600, nil
		}
		return "token-2", 3600, nil
	})

	if _, err := store.Token(context.Background(), ScopeCollections); err != nil {
		t.Fatalf("Token returned error: %v", err)
	}

	// Just inside the usable window: no refresh.
	*now = now.Add(3600*time.Second - tokenSafetyMargin - time.Second)
	token, err := store.Token(context.Background(), ScopeCollections)
	if err != nil {
		t.Fatalf("Token returned error: %v", err)
	}
	if token != "token-1" {
		t.Fatalf("expected cached token inside safety margin, got %q", token)
	}

	// Into the safety margin: refresh.
	*now = now.Add(2 * time.Second)
	token, err = store.Token(context.Background(), ScopeCollections)
	if err != nil {
		t.Fatalf("Token returned error: %v", err)
	}
	if token != "token-2" {
		t.Fatalf("expected refreshed token within safety margin, got %q", token)
	}
	if got := atomic.LoadInt32(&exchanges); got != 2 {
		t.Fatalf("expected two exchanges, got %d", got)
	}
}

func TestTokenStore_InvalidateForcesExchange(t *testing.T) {
	var exchanges int32
	store, _ := newTestTokenStore(func(ctx context.Context, scope Scope) (string, int64, error) {
		atomic.AddInt32(&exchanges, 1)
		return "token", 3600, nil
	})

	if _, err := store.Token(context.Background(), ScopeCollections); err != nil {
		t.Fatalf("Token returned error: %v", err)
	}
	store.Invalidate(ScopeCollections)
	if _, err := store.Token(context.Background(), ScopeCollections); err != nil {
		t.Fatalf("Token returned error: %v", err)
	}

	if got := atomic.LoadInt32(&exchanges); got != 2 {
		t.Fatalf("expected invalidate to force a second exchange, got %d", got)
	}
}

func TestTokenStore_ExchangeErrorPropagates(t *testing.T) {
	wantErr := errors.New("exchange down")
	store, _ := newTestTokenStore(func(ctx context.Context, scope Scope) (string, int64, error) {
		return "", 0, wantErr
	})

	if _, err := store.Token(context.Background(), ScopeCollections); !errors.Is(err, wantErr) {
		t.Fatalf("expected exchange error, got %v", err)
	}
}

func TestTokenStore_ConcurrentCallersShareOneExchange(t *testing.T) {
	var exchanges int32
	release := make(chan struct{})
	store := NewTokenStore(func(ctx context.Context, scope Scope) (string, int64, error) {
		atomic.AddInt32(&exchanges, 1)
		<-release
		return "shared-token", 3600, nil
	})

	const callers = 10
	var wg sync.WaitGroup
	var started sync.WaitGroup
	errs := make([]error, callers)
	tokens := make([]string, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		started.Add(1)
		go func(i int) {
			defer wg.Done()
			started.Done()
			tokens[i], errs[i] = store.Token(context.Background(), ScopeCollections)
		}(i)
	}

	started.Wait()
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d got error: %v", i, errs[i])
		}
		if tokens[i] != "shared-token" {
			t.Fatalf("caller %d got token %q", i, tokens[i])
		}
	}
	if got := atomic.LoadInt32(&exchanges); got != 1 {
		t.Fatalf("expected a single in-flight exchange, got %d", got)
	}
}
