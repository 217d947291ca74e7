package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	semver "github.com/Masterminds/semver/v3"
	"golang.org/x/sync/singleflight"
)

// TokenEnv is the environment variable carrying the registry Bearer token.
const TokenEnv = "LINGUAL_REGISTRY_TOKEN"

// credentialsFile is the fallback token source, looked up relative to the
// working directory: {"registries": {"<base url>": {"token": "..."}}}.
var credentialsFile = filepath.Join(".lingual", "credentials.json")

// Client is a Registry backed by a remote server. Repeated lookups are
// coalesced through singleflight and cached briefly with ETag revalidation.
type Client struct {
	base  string
	hc    *http.Client
	token string

	mu        sync.RWMutex
	findCache map[string]findEntry
	listCache map[PackageID]listEntry
	ttl       time.Duration
	sf        singleflight.Group
}

type findEntry struct {
	at   time.Time
	cid  CID
	man  Manifest
	etag string
}

type listEntry struct {
	at   time.Time
	mans []Manifest
	etag string
}

// findResult is the /find wire shape, also reused as the singleflight value.
type findResult struct {
	CID      CID      `json:"cid"`
	Manifest Manifest `json:"manifest"`
}

// NewClient creates a client for the registry at baseURL. The Bearer token
// comes from LINGUAL_REGISTRY_TOKEN, falling back to the credentials file.
func NewClient(baseURL string) *Client {
	return newClient(baseURL, lookupToken(baseURL), &http.Client{Transport: newTransport(), Timeout: 30 * time.Second})
}

// NewClientWithAuth creates a client with an explicit Bearer token.
func NewClientWithAuth(baseURL, token string) *Client {
	return newClient(baseURL, strings.TrimSpace(token), &http.Client{Transport: newTransport(), Timeout: 30 * time.Second})
}

func newClient(baseURL, token string, hc *http.Client) *Client {
	return &Client{
		base:      strings.TrimRight(baseURL, "/"),
		hc:        hc,
		token:     token,
		findCache: make(map[string]findEntry),
		listCache: make(map[PackageID]listEntry),
		ttl:       30 * time.Second,
	}
}

func newTransport() *http.Transport {
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          256,
		MaxIdleConnsPerHost:   64,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}

type credentials struct {
	Registries map[string]credentialEntry `json:"registries"`
}

type credentialEntry struct {
	Token string `json:"token"`
}

// lookupToken prefers the environment over the credentials file.
func lookupToken(baseURL string) string {
	if tok := strings.TrimSpace(os.Getenv(TokenEnv)); tok != "" {
		return tok
	}

	data, err := os.ReadFile(credentialsFile)
	if err != nil {
		return ""
	}

	var creds credentials
	if json.Unmarshal(data, &creds) != nil {
		return ""
	}

	for base, entry := range creds.Registries {
		if strings.TrimRight(base, "/") == strings.TrimRight(baseURL, "/") {
			return strings.TrimSpace(entry.Token)
		}
	}

	return ""
}

// SaveCredentials records the token for baseURL in the credentials file,
// keeping entries for other registries. The file is created 0600.
func SaveCredentials(baseURL, token string) error {
	creds := credentials{Registries: map[string]credentialEntry{}}
	if data, err := os.ReadFile(credentialsFile); err == nil {
		_ = json.Unmarshal(data, &creds)
		if creds.Registries == nil {
			creds.Registries = map[string]credentialEntry{}
		}
	}

	creds.Registries[strings.TrimRight(baseURL, "/")] = credentialEntry{Token: strings.TrimSpace(token)}

	if err := os.MkdirAll(filepath.Dir(credentialsFile), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(credentialsFile, data, 0o600)
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

// doRetry retries transport-level failures with backoff (100, 200, 400ms).
// The request is rebuilt per attempt so bodies are always readable.
func (c *Client) doRetry(ctx context.Context, build func() (*http.Request, error)) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt < 3; attempt++ {
		req, err := build()
		if err != nil {
			return nil, err
		}

		resp, err := c.hc.Do(req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(100<<attempt) * time.Millisecond):
		}
	}

	return nil, lastErr
}

// httpError folds the response body into the returned error.
func httpError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	return fmt.Errorf("%s: %s: %s", op, resp.Status, strings.TrimSpace(string(body)))
}

// Ping checks the server's health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.doRetry(ctx, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/healthz", http.NoBody)
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return httpError("ping", resp)
	}

	return nil
}

// Publish uploads the blob and returns the CID the server stored it under.
func (c *Client) Publish(ctx context.Context, blob Blob) (CID, error) {
	body, err := json.Marshal(blob)
	if err != nil {
		return "", err
	}

	resp, err := c.doRetry(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/publish", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		c.authorize(req)

		return req, nil
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", httpError("publish", resp)
	}

	var out struct {
		CID CID `json:"cid"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}

	return out.CID, nil
}

// Fetch downloads the blob stored under id.
func (c *Client) Fetch(ctx context.Context, id CID) (Blob, error) {
	u := c.base + "/fetch?cid=" + url.QueryEscape(string(id))

	resp, err := c.doRetry(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
		if err != nil {
			return nil, err
		}
		c.authorize(req)

		return req, nil
	})
	if err != nil {
		return Blob{}, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return Blob{}, ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return Blob{}, httpError("fetch", resp)
	}

	var blob Blob
	if err := json.NewDecoder(resp.Body).Decode(&blob); err != nil {
		return Blob{}, err
	}

	return blob, nil
}

// Find asks the server for the highest version satisfying the constraint.
func (c *Client) Find(ctx context.Context, name PackageID, constraint *semver.Constraints) (CID, Manifest, error) {
	key := string(name) + "|" + constraintString(constraint)

	c.mu.RLock()
	if e, ok := c.findCache[key]; ok && time.Since(e.at) < c.ttl {
		c.mu.RUnlock()
		return e.cid, e.man, nil
	}
	c.mu.RUnlock()

	v, err, _ := c.sf.Do("find:"+key, func() (any, error) {
		q := url.Values{}
		q.Set("name", string(name))
		if constraint != nil {
			q.Set("constraint", constraint.String())
		}
		u := c.base + "/find?" + q.Encode()

		etag := c.cachedFindETag(key)

		resp, err := c.doRetry(ctx, func() (*http.Request, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
			if err != nil {
				return nil, err
			}
			c.authorize(req)
			if etag != "" {
				req.Header.Set("If-None-Match", etag)
			}

			return req, nil
		})
		if err != nil {
			return findResult{}, err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNotModified:
			c.mu.Lock()
			e := c.findCache[key]
			e.at = time.Now()
			c.findCache[key] = e
			c.mu.Unlock()

			return findResult{CID: e.cid, Manifest: e.man}, nil
		case resp.StatusCode == http.StatusNotFound:
			return findResult{}, ErrNotFound
		case resp.StatusCode != http.StatusOK:
			return findResult{}, httpError("find", resp)
		}

		var out findResult
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return findResult{}, err
		}

		c.mu.Lock()
		c.findCache[key] = findEntry{at: time.Now(), cid: out.CID, man: out.Manifest, etag: resp.Header.Get("ETag")}
		c.mu.Unlock()

		return out, nil
	})
	if err != nil {
		return "", Manifest{}, err
	}

	out := v.(findResult)

	return out.CID, out.Manifest, nil
}

func (c *Client) cachedFindETag(key string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.findCache[key].etag
}

func (c *Client) cachedListETag(name PackageID) string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.listCache[name].etag
}

// List fetches every published version of name, ascending.
func (c *Client) List(ctx context.Context, name PackageID) ([]Manifest, error) {
	c.mu.RLock()
	if e, ok := c.listCache[name]; ok && time.Since(e.at) < c.ttl {
		c.mu.RUnlock()
		return append([]Manifest(nil), e.mans...), nil
	}
	c.mu.RUnlock()

	v, err, _ := c.sf.Do("list:"+string(name), func() (any, error) {
		u := c.base + "/list?name=" + url.QueryEscape(string(name))

		etag := c.cachedListETag(name)

		resp, err := c.doRetry(ctx, func() (*http.Request, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
			if err != nil {
				return nil, err
			}
			c.authorize(req)
			if etag != "" {
				req.Header.Set("If-None-Match", etag)
			}

			return req, nil
		})
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNotModified:
			c.mu.Lock()
			e := c.listCache[name]
			e.at = time.Now()
			c.listCache[name] = e
			c.mu.Unlock()

			return append([]Manifest(nil), e.mans...), nil
		case resp.StatusCode != http.StatusOK:
			return nil, httpError("list", resp)
		}

		var out []Manifest
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.listCache[name] = listEntry{at: time.Now(), mans: append([]Manifest(nil), out...), etag: resp.Header.Get("ETag")}
		c.mu.Unlock()

		return out, nil
	})
	if err != nil {
		return nil, err
	}

	return v.([]Manifest), nil
}

// All fetches every manifest the server knows. Uncached; it is an admin
// surface, not part of resolution.
func (c *Client) All(ctx context.Context) ([]Manifest, error) {
	resp, err := c.doRetry(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/all", http.NoBody)
		if err != nil {
			return nil, err
		}
		c.authorize(req)

		return req, nil
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, httpError("all", resp)
	}

	var out []Manifest
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}

	return out, nil
}
