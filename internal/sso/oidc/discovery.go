package oidc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

// ErrDiscovery wraps any failure fetching or parsing a provider's discovery
// document.
var ErrDiscovery = errors.New("oidc: discovery document unavailable")

// ProviderMetadata is the subset of the OIDC discovery document this engine
// consumes.
type ProviderMetadata struct {
	Issuer                string `json:"issuer"`
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	RevocationEndpoint    string `json:"revocation_endpoint,omitempty"`
	EndSessionEndpoint    string `json:"end_session_endpoint,omitempty"`
	JWKSURI               string `json:"jwks_uri,omitempty"`
	UserinfoEndpoint      string `json:"userinfo_endpoint,omitempty"`
}

// DiscoveryCache fetches and time-caches provider discovery metadata keyed by
// issuer URL. Entries are loaded lazily and evicted by TTL or LRU pressure.
// Failed fetches are never cached, so the next call retries the network.
type DiscoveryCache struct {
	client *http.Client
	cache  *expirable.LRU[string, ProviderMetadata]
	group  singleflight.Group
}

// NewDiscoveryCache builds a cache with the given capacity and entry TTL.
// A nil client falls back to http.DefaultClient.
func NewDiscoveryCache(client *http.Client, capacity int, ttl time.Duration) *DiscoveryCache {
	if client == nil {
		client = http.DefaultClient
	}
	return &DiscoveryCache{
		client: client,
		cache:  expirable.NewLRU[string, ProviderMetadata](capacity, nil, ttl),
	}
}

// Get returns the discovery metadata for an issuer, fetching it on a miss.
// Concurrent misses for the same issuer collapse into a single fetch.
func (c *DiscoveryCache) Get(ctx context.Context, issuerURL string) (ProviderMetadata, error) {
	if md, ok := c.cache.Get(issuerURL); ok {
		return md, nil
	}

	v, err, _ := c.group.Do(issuerURL, func() (any, error) {
		// A concurrent call may have populated the cache while we waited
		if md, ok := c.cache.Get(issuerURL); ok {
			return md, nil
		}

		md, err := c.fetch(ctx, issuerURL)
		if err != nil {
			return ProviderMetadata{}, err
		}
		c.cache.Add(issuerURL, md)
		return md, nil
	})
	if err != nil {
		return ProviderMetadata{}, err
	}
	return v.(ProviderMetadata), nil
}

func (c *DiscoveryCache) fetch(ctx context.Context, issuerURL string) (ProviderMetadata, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, DiscoveryURL(issuerURL), nil)
	if err != nil {
		return ProviderMetadata{}, fmt.Errorf("%w: %s: %v", ErrDiscovery, issuerURL, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return ProviderMetadata{}, fmt.Errorf("%w: %s: %v", ErrDiscovery, issuerURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ProviderMetadata{}, fmt.Errorf("%w: %s: unexpected status %d", ErrDiscovery, issuerURL, resp.StatusCode)
	}

	var md ProviderMetadata
	if err := json.NewDecoder(resp.Body).Decode(&md); err != nil {
		return ProviderMetadata{}, fmt.Errorf("%w: %s: %v", ErrDiscovery, issuerURL, err)
	}

	if md.AuthorizationEndpoint == "" || md.TokenEndpoint == "" {
		return ProviderMetadata{}, fmt.Errorf("%w: %s: document missing required endpoints", ErrDiscovery, issuerURL)
	}

	return md, nil
}

// DiscoveryURL returns the well-known configuration URL for an issuer.
func DiscoveryURL(issuerURL string) string {
	return strings.TrimSuffix(issuerURL, "/") + "/.well-known/openid-configuration"
}
