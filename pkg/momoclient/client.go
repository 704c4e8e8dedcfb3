/**
 * @description
 * This package provides a client for the MTN MoMo API. It encapsulates the
 * logic for making authenticated HTTP requests against the Collections and
 * Disbursements scopes, including bearer token acquisition and caching.
 *
 * Key features:
 * - Manages the API base URL, per-scope subscription keys and credentials.
 * - Provides methods for request-to-pay, transfers, status polling, balance
 *   and account-holder checks.
 * - Handles JSON serialization/deserialization and error handling for API calls.
 *
 * @dependencies
 * - bytes, context, encoding/json, fmt, io, net/http, time: Standard Go libraries.
 * - github.com/google/uuid: Gateway reference id generation.
 * - The service's internal domain package for MoMo request/response models.
 */
package momoclient

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/careernest/payment-service/internal/domain"
)

// Scope selects which credential set and URL prefix a call runs under.
type Scope string

const (
	// ScopeCollections requests payment from an end user's wallet.
	ScopeCollections Scope = "collection"
	// ScopeDisbursements pushes payment out to an end user's wallet.
	ScopeDisbursements Scope = "disbursement"
)

// ScopeCredentials holds the gateway credentials for one scope.
type ScopeCredentials struct {
	SubscriptionKey string
	UserID          string
	APIKey          string
}

func (c ScopeCredentials) complete() bool {
	return c.SubscriptionKey != "" && c.UserID != "" && c.APIKey != ""
}

// Config holds everything needed to talk to the gateway.
type Config struct {
	BaseURL           string
	TargetEnvironment string // "sandbox" or "live"
	CallbackHost      string
	Collections       ScopeCredentials
	Disbursements     ScopeCredentials
}

// APIError is a non-2xx response from the gateway, with the body preserved
// verbatim for the caller.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("momo API error: status %d, body: %s", e.StatusCode, e.Body)
}

// Client is a client for the MoMo API.
type Client struct {
	cfg        Config
	httpClient *http.Client
	tokens     *TokenStore
}

// NewClient creates a new MoMo API client. Both credential scopes must be
// fully configured.
func NewClient(cfg Config) (*Client, error) {
	if !cfg.Collections.complete() {
		return nil, errors.New("momo collections configuration is incomplete")
	}
	if !cfg.Disbursements.complete() {
		return nil, errors.New("momo disbursements configuration is incomplete")
	}
	if cfg.TargetEnvironment == "" {
		cfg.TargetEnvironment = "sandbox"
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")

	c := &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	c.tokens = NewTokenStore(c.exchangeToken)
	return c, nil
}

// RequestToPay submits a collection request and returns the gateway reference
// id for later status polling. A nil error only means the request was
// accepted; money has not moved until the status reads SUCCESSFUL.
func (c *Client) RequestToPay(ctx context.Context, payment domain.MoMoPayment) (string, error) {
	referenceID := uuid.New().String()
	headers := map[string]string{
		"X-Reference-Id": referenceID,
		"X-Callback-Url": c.cfg.CallbackHost + "/api/payments/collections/callback",
	}
	err := c.doAuthorized(ctx, ScopeCollections, http.MethodPost, "/collection/v1_0/requesttopay", payment, nil, headers)
	if err != nil {
		return "", err
	}
	return referenceID, nil
}

// Transfer submits a disbursement and returns the gateway reference id. Same
// correlation and idempotency discipline as RequestToPay.
func (c *Client) Transfer(ctx context.Context, payment domain.MoMoPayment) (string, error) {
	referenceID := uuid.New().String()
	headers := map[string]string{
		"X-Reference-Id": referenceID,
		"X-Callback-Url": c.cfg.CallbackHost + "/api/payments/disbursements/callback",
	}
	err := c.doAuthorized(ctx, ScopeDisbursements, http.MethodPost, "/disbursement/v1_0/transfer", payment, nil, headers)
	if err != nil {
		return "", err
	}
	return referenceID, nil
}

// GetCollectionStatus returns the gateway's current view of a request-to-pay.
func (c *Client) GetCollectionStatus(ctx context.Context, referenceID string) (*domain.GatewayTransactionStatus, error) {
	var status domain.GatewayTransactionStatus
	path := "/collection/v1_0/requesttopay/" + referenceID
	if err := c.doAuthorized(ctx, ScopeCollections, http.MethodGet, path, nil, &status, nil); err != nil {
		return nil, err
	}
	return &status, nil
}

// GetDisbursementStatus returns the gateway's current view of a transfer.
func (c *Client) GetDisbursementStatus(ctx context.Context, referenceID string) (*domain.GatewayTransactionStatus, error) {
	var status domain.GatewayTransactionStatus
	path := "/disbursement/v1_0/transfer/" + referenceID
	if err := c.doAuthorized(ctx, ScopeDisbursements, http.MethodGet, path, nil, &status, nil); err != nil {
		return nil, err
	}
	return &status, nil
}

// GetAccountBalance returns the balance of the account behind a scope.
func (c *Client) GetAccountBalance(ctx context.Context, scope Scope) (*domain.AccountBalance, error) {
	var balance domain.AccountBalance
	path := fmt.Sprintf("/%s/v1_0/account/balance", scope)
	if err := c.doAuthorized(ctx, scope, http.MethodGet, path, nil, &balance, nil); err != nil {
		return nil, err
	}
	return &balance, nil
}

// ValidateAccountHolder reports whether an MSISDN is an active account holder.
// Gateway-level rejections map to false; transport failures are returned.
func (c *Client) ValidateAccountHolder(ctx context.Context, scope Scope, msisdn string) (bool, error) {
	path := fmt.Sprintf("/%s/v1_0/accountholder/msisdn/%s/active", scope, msisdn)
	err := c.doAuthorized(ctx, scope, http.MethodGet, path, nil, nil, nil)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (c *Client) credentials(scope Scope) ScopeCredentials {
	if scope == ScopeDisbursements {
		return c.cfg.Disbursements
	}
	return c.cfg.Collections
}

// exchangeToken performs the Basic-auth credential exchange for a scope.
func (c *Client) exchangeToken(ctx context.Context, scope Scope) (string, int64, error) {
	creds := c.credentials(scope)
	basic := base64.StdEncoding.EncodeToString([]byte(creds.UserID + ":" + creds.APIKey))

	var token domain.MoMoAccessToken
	headers := map[string]string{"Authorization": "Basic " + basic}
	path := fmt.Sprintf("/%s/token/", scope)
	if err := c.do(ctx, scope, http.MethodPost, path, nil, &token, headers); err != nil {
		return "", 0, err
	}
	return token.AccessToken, token.ExpiresIn, nil
}

// doAuthorized runs a bearer-authenticated call. A 401 response forces exactly
// one token refresh-and-retry.
func (c *Client) doAuthorized(ctx context.Context, scope Scope, method, path string, body, target interface{}, headers map[string]string) error {
	token, err := c.tokens.Token(ctx, scope)
	if err != nil {
		return fmt.Errorf("failed to obtain %s token: %w", scope, err)
	}

	merged := map[string]string{"Authorization": "Bearer " + token}
	for k, v := range headers {
		merged[k] = v
	}

	err = c.do(ctx, scope, method, path, body, target, merged)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized {
		c.tokens.Invalidate(scope)
		token, refreshErr := c.tokens.Token(ctx, scope)
		if refreshErr != nil {
			return fmt.Errorf("failed to refresh %s token after 401: %w", scope, refreshErr)
		}
		merged["Authorization"] = "Bearer " + token
		return c.do(ctx, scope, method, path, body, target, merged)
	}
	return err
}

// do is a helper function to make HTTP requests to the MoMo API.
func (c *Client) do(ctx context.Context, scope Scope, method, path string, body, target interface{}, headers map[string]string) error {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create http request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Ocp-Apim-Subscription-Key", c.credentials(scope).SubscriptionKey)
	req.Header.Set("X-Target-Environment", c.cfg.TargetEnvironment)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	log.Printf("level=debug component=momoclient msg=\"gateway request\" method=%s path=%s scope=%s", method, path, scope)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Printf("level=warn component=momoclient msg=\"gateway returned non-success status\" status=%d path=%s", resp.StatusCode, path)
		return &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	if target != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, target); err != nil {
			return fmt.Errorf("failed to unmarshal response body: %w", err)
		}
	}

	return nil
}
