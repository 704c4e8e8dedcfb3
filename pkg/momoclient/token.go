/**
 * @description
 * In-memory bearer token cache for the two MoMo credential scopes. Tokens are
 * refreshed on demand via the scope's Basic-auth token endpoint and are never
 * persisted; a process restart simply starts with a cold cache.
 *
 * Concurrent callers racing past an expired token are collapsed into a single
 * credential exchange per scope via singleflight, so the gateway sees at most
 * one in-flight refresh regardless of request fan-in.
 */
package momoclient

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// tokenSafetyMargin is subtracted from the issuer-reported expiry; a token is
// never handed out within this window of its real expiry.
const tokenSafetyMargin = 60 * time.Second

type cachedToken struct {
	accessToken string
	expiresAt   time.Time
}

// exchangeFunc performs the blocking credential exchange for one scope and
// returns the bearer token plus its reported time-to-live in seconds.
type exchangeFunc func(ctx context.Context, scope Scope) (accessToken string, expiresIn int64, err error)

// TokenStore caches one live bearer token per scope. Construct it once per
// Client; it is safe for concurrent use.
type TokenStore struct {
	exchange exchangeFunc
	margin   time.Duration
	now      func() time.Time

	mu     sync.Mutex
	tokens map[Scope]cachedToken
	group  singleflight.Group
}

// NewTokenStore creates a token store backed by the given exchange function.
func NewTokenStore(exchange exchangeFunc) *TokenStore {
	return &TokenStore{
		exchange: exchange,
		margin:   tokenSafetyMargin,
		now:      time.Now,
		tokens:   make(map[Scope]cachedToken),
	}
}

// Token returns a currently-valid bearer token for the scope, refreshing it
// through the exchange function when the cache is empty or the cached token is
// within the safety margin of its expiry. Exchange errors propagate verbatim.
func (s *TokenStore) Token(ctx context.Context, scope Scope) (string, error) {
	if token, ok := s.cached(scope); ok {
		return token, nil
	}

	result, err, _ := s.group.Do(string(scope), func() (interface{}, error) {
		// A concurrent caller may have refreshed while we waited on the flight.
		if token, ok := s.cached(scope); ok {
			return token, nil
		}

		accessToken, expiresIn, err := s.exchange(ctx, scope)
		if err != nil {
			return "", err
		}

		s.mu.Lock()
		s.tokens[scope] = cachedToken{
			accessToken: accessToken,
			expiresAt:   s.now().Add(time.Duration(expiresIn) * time.Second),
		}
		s.mu.Unlock()

		return accessToken, nil
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

// Invalidate drops the cached token for a scope. Called after the gateway
// rejects a bearer token so the next call performs a fresh exchange.
func (s *TokenStore) Invalidate(scope Scope) {
	s.mu.Lock()
	delete(s.tokens, scope)
	s.mu.Unlock()
}

func (s *TokenStore) cached(scope Scope) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	token, ok := s.tokens[scope]
	if !ok || !s.now().Before(token.expiresAt.Add(-s.margin)) {
		return "", false
	}
	return token.accessToken, true
}
