// Package ies is the HTTP client for the external identity bridges (IES and
// its MyCloud deployment) used to validate tokens and resolve or provision
// accounts during LTI launches.
package ies

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// ErrUserNotFound is returned when the bridge has no record of the pi user.
var ErrUserNotFound = errors.New("ies: user not found")

// APIError carries the bridge's status and raw error body for any other
// non-success response.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ies: bridge returned %d: %s", e.Status, e.Body)
}

// Profile is the identity the bridge holds for a pi user.
type Profile struct {
	PIUserID   string `json:"pi_user_id"`
	Email      string `json:"email"`
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name"`
}

// TokenInfo is the bridge's answer to a token validation call.
type TokenInfo struct {
	Valid    bool   `json:"valid"`
	PIUserID string `json:"pi_user_id,omitempty"`
}

// ProvisionRequest asks the bridge to create or return the account anchor
// for a pi user within a subscription.
type ProvisionRequest struct {
	PIUserID       string `json:"pi_user_id"`
	SubscriptionID string `json:"subscription_id"`
	Email          string `json:"email,omitempty"`
}

// ProvisionResult is the bridge-side identity anchor for a provisioned user.
type ProvisionResult struct {
	IESUserID  string `json:"ies_user_id"`
	Email      string `json:"email"`
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name"`
}

// Client talks to one identity-bridge deployment.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient builds a bridge client. A nil httpClient falls back to
// http.DefaultClient.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{BaseURL: baseURL, HTTPClient: httpClient}
}

func (c *Client) url(path string) string {
	return c.BaseURL + path
}

// ValidateToken asks the bridge whether a session cookie token is valid and
// which pi user it belongs to.
func (c *Client) ValidateToken(ctx context.Context, token string) (TokenInfo, error) {
	var info TokenInfo
	err := c.postJSON(ctx, "/v1/tokens/validate", map[string]string{"token": token}, &info)
	return info, err
}

// GetProfile fetches the identity profile for a pi user.
func (c *Client) GetProfile(ctx context.Context, piUserID string) (Profile, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/v1/users/"+piUserID, nil)
	if err != nil {
		return Profile{}, err
	}

	var p Profile
	if err := decodeJSON(resp, &p, http.StatusOK); err != nil {
		return Profile{}, err
	}
	return p, nil
}

// ProvisionAccount resolves or creates the bridge-side identity for a pi
// user and returns its anchor.
func (c *Client) ProvisionAccount(ctx context.Context, req ProvisionRequest) (ProvisionResult, error) {
	var result ProvisionResult
	err := c.postJSON(ctx, "/v1/users/provision", req, &result)
	return result, err
}

func (c *Client) postJSON(ctx context.Context, path string, payload, target any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("ies: encoding request: %w", err)
	}

	resp, err := c.doRequest(ctx, http.MethodPost, path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	return decodeJSON(resp, target, http.StatusOK)
}

func (c *Client) doRequest(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.url(path), body)
	if err != nil {
		return nil, fmt.Errorf("ies: failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ies: failed to send request: %w", err)
	}
	return resp, nil
}

// decodeJSON decodes a JSON response into the target, mapping 404 to
// ErrUserNotFound and any other unexpected status to a typed APIError.
func decodeJSON(resp *http.Response, target any, expectedStatus int) error {
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("ies: failed to read response body: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return ErrUserNotFound
	}
	if resp.StatusCode != expectedStatus {
		return &APIError{Status: resp.StatusCode, Body: string(bodyBytes)}
	}

	if err := json.Unmarshal(bodyBytes, target); err != nil {
		return fmt.Errorf("ies: failed to decode response: %w", err)
	}
	return nil
}
