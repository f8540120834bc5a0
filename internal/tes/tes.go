// Package tes implements the Token Exchange Service adapter: a loopback HTTP server, reachable by components at
// AWS_CONTAINER_CREDENTIALS_FULL_URI, that exchanges the authorization
// token presented in the request for short-lived AWS credentials fetched
// (and cached) from the IoT credentials provider endpoint.
//
// This package is that credential HTTP client, modeled on the upstream
// Greengrass tesd's role-alias credential fetch and field renaming.
package tes

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	apierrors "github.com/edgecore/edgeagentd/internal/errors"
	"github.com/edgecore/edgeagentd/pkg/logger"
)

// CredentialPath is the path segment of AWS_CONTAINER_CREDENTIALS_FULL_URI
//.
const CredentialPath = "/2016-11-01/credentialprovider/"

// refreshSkew requests a new credential this long before the cached one's
// actual expiration, so a component never observes a credential that
// expires mid-request.
const refreshSkew = 2 * time.Minute

// Credentials is the AWS container-credentials document shape served to
// components over AWS_CONTAINER_CREDENTIALS_FULL_URI.
type Credentials struct {
	AccessKeyID     string    `json:"AccessKeyId"`
	SecretAccessKey string    `json:"SecretAccessKey"`
	Token           string    `json:"Token"`
	Expiration      time.Time `json:"Expiration"`
}

func (c Credentials) expired(now time.Time) bool {
	return c.Expiration.IsZero() || now.Add(refreshSkew).After(c.Expiration)
}

// RoleAliasConfig is the IoT credentials-provider connection material
//.
type RoleAliasConfig struct {
	ThingName       string
	RoleAlias       string
	CredEndpoint    string
	RootCAPath      string
	CertificatePath string
	PrivateKeyPath  string
}

// Fetcher retrieves fresh credentials from the cloud credentials provider.
type Fetcher interface {
	Fetch(ctx context.Context) (Credentials, error)
}

// httpFetcher is the real Fetcher, calling the IoT role-alias credentials
// endpoint over mTLS.
type httpFetcher struct {
	cfg    RoleAliasConfig
	client *http.Client
}

// NewHTTPFetcher builds a Fetcher that calls
// https://<credEndpoint>/role-aliases/<roleAlias>/credentials over mTLS.
func NewHTTPFetcher(cfg RoleAliasConfig) (Fetcher, error) {
	pool := x509.NewCertPool()
	caPEM, err := os.ReadFile(cfg.RootCAPath)
	if err != nil {
		return nil, apierrors.WrapKind(err, apierrors.ErrFailure, "read root CA %s", cfg.RootCAPath)
	}
	if !pool.AppendCertsFromPEM(caPEM) {
		return nil, apierrors.WrapKind(fmt.Errorf("no certificates parsed"), apierrors.ErrInvalid, "parse root CA %s", cfg.RootCAPath)
	}
	cert, err := tls.LoadX509KeyPair(cfg.CertificatePath, cfg.PrivateKeyPath)
	if err != nil {
		return nil, apierrors.WrapKind(err, apierrors.ErrFailure, "load device certificate/key")
	}

	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				RootCAs:      pool,
				Certificates: []tls.Certificate{cert},
				MinVersion:   tls.VersionTLS12,
			},
		},
	}
	return &httpFetcher{cfg: cfg, client: client}, nil
}

type credentialProviderResponse struct {
	Credentials struct {
		AccessKeyID     string    `json:"accessKeyId"`
		SecretAccessKey string    `json:"secretAccessKey"`
		SessionToken    string    `json:"sessionToken"`
		Expiration      time.Time `json:"expiration"`
	} `json:"credentials"`
}

func (f *httpFetcher) Fetch(ctx context.Context) (Credentials, error) {
	url := fmt.Sprintf("https://%s/role-aliases/%s/credentials", f.cfg.CredEndpoint, f.cfg.RoleAlias)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Credentials{}, apierrors.WrapKind(err, apierrors.ErrInvalid, "build credentials request")
	}
	req.Header.Set("x-amzn-iot-thingname", f.cfg.ThingName)

	resp, err := f.client.Do(req)
	if err != nil {
		return Credentials{}, apierrors.WrapKind(err, apierrors.ErrFailure, "call credentials provider")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Credentials{}, apierrors.WrapKind(err, apierrors.ErrFailure, "read credentials response")
	}
	if resp.StatusCode != http.StatusOK {
		return Credentials{}, apierrors.WrapKind(fmt.Errorf("status %d: %s", resp.StatusCode, body), apierrors.ErrFailure, "credentials provider returned error")
	}

	var parsed credentialProviderResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Credentials{}, apierrors.WrapKind(err, apierrors.ErrInvalid, "decode credentials response")
	}

	return Credentials{
		AccessKeyID:     parsed.Credentials.AccessKeyID,
		SecretAccessKey: parsed.Credentials.SecretAccessKey,
		Token:           parsed.Credentials.SessionToken,
		Expiration:      parsed.Credentials.Expiration,
	}, nil
}

// cacheEntry pairs a cached credential with the token that authorizes its
// retrieval.
type cacheEntry struct {
	token string
	creds Credentials
}

// Cache is a TTL-evicting credential cache keyed by SVCUID.
type Cache struct {
	fetcher Fetcher
	log     logger.Logger

	mu      sync.Mutex
	entries map[string]cacheEntry
	nowFunc func() time.Time
}

// NewCache creates a Cache backed by fetcher.
func NewCache(fetcher Fetcher, log logger.Logger) *Cache {
	return &Cache{fetcher: fetcher, log: log, entries: make(map[string]cacheEntry), nowFunc: time.Now}
}

// Get returns cached credentials for svcuid, refreshing them via the
// fetcher if absent, expired, or if the presented token no longer matches
// the one the cache entry was created under.
func (c *Cache) Get(ctx context.Context, svcuid, authToken string) (Credentials, error) {
	c.mu.Lock()
	entry, ok := c.entries[svcuid]
	c.mu.Unlock()

	if ok && entry.token == authToken && !entry.creds.expired(c.nowFunc()) {
		return entry.creds, nil
	}

	creds, err := c.fetcher.Fetch(ctx)
	if err != nil {
		return Credentials{}, err
	}

	c.mu.Lock()
	c.entries[svcuid] = cacheEntry{token: authToken, creds: creds}
	c.mu.Unlock()
	if c.log != nil {
		c.log.Info("refreshed TES credentials", logger.String("svcuid", svcuid))
	}
	return creds, nil
}

// Evict drops any cached credential for svcuid (called on component
// deregistration).
func (c *Cache) Evict(svcuid string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, svcuid)
}
