// Package uitdatabank reads events and places from the UiTdatabank search API.
package uitdatabank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/tidwall/gjson"

	"github.com/cultuurnet/offerbench/pkg/offer"
	"github.com/cultuurnet/offerbench/pkg/source"
)

const (
	// DefaultBaseURL is the public UiTdatabank entry API.
	DefaultBaseURL = "https://io.uitdatabank.be/"

	// DefaultTimeout bounds every request to the API.
	DefaultTimeout = 5 * time.Second
)

// Config contains UiTdatabank client configuration.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration

	// Params are extra query parameters added to every listing request,
	// e.g. a "q" date range or "disableDefaultFilters".
	Params map[string]string

	// HTTPClient overrides the default client. Its timeout is left untouched.
	HTTPClient *http.Client
	Logger     hclog.Logger
}

// Client implements source.Source over HTTP.
type Client struct {
	base   *url.URL
	apiKey string
	params map[string]string
	http   *http.Client
	logger hclog.Logger
}

var _ source.Source = (*Client)(nil)

// New creates a new UiTdatabank client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if !strings.HasSuffix(cfg.BaseURL, "/") {
		cfg.BaseURL += "/"
	}

	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", cfg.BaseURL, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base url %q: scheme and host required", cfg.BaseURL)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	return &Client{
		base:   base,
		apiKey: cfg.APIKey,
		params: cfg.Params,
		http:   httpClient,
		logger: logger.Named("uitdatabank"),
	}, nil
}

// ListingURL returns the listing URL for a page of offers of type t.
func (c *Client) ListingURL(t offer.Type, start, limit int) string {
	u := c.base.ResolveReference(&url.URL{Path: collection(t) + "/"})

	q := url.Values{}
	for k, v := range c.params {
		q.Set(k, v)
	}
	if c.apiKey != "" {
		q.Set("apiKey", c.apiKey)
	}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("start", strconv.Itoa(start))
	u.RawQuery = q.Encode()

	return u.String()
}

// FetchPage fetches one listing page and returns the "@id" of every member.
func (c *Client) FetchPage(ctx context.Context, t offer.Type, start, limit int) ([]string, error) {
	listingURL := c.ListingURL(t, start, limit)

	body, err := c.get(ctx, listingURL)
	if err != nil {
		return nil, err
	}

	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: %s: response is not valid JSON", source.ErrFetchFailed, c.redact(listingURL))
	}

	members := gjson.GetBytes(body, "member")
	if !members.IsArray() {
		return nil, fmt.Errorf("%w: %s: response has no member list", source.ErrFetchFailed, c.redact(listingURL))
	}

	refs := make([]string, 0, len(members.Array()))
	for i, member := range members.Array() {
		ref := member.Map()["@id"].String()
		if ref == "" {
			c.logger.Warn("listing member without @id", "type", t, "start", start, "position", i)
			continue
		}
		refs = append(refs, ref)
	}

	c.logger.Debug("fetched listing page",
		"type", t,
		"start", start,
		"limit", limit,
		"members", len(refs),
		"total_items", gjson.GetBytes(body, "totalItems").Int(),
	)

	return refs, nil
}

// FetchOne dereferences a member reference. The API key is only sent to the
// configured host.
func (c *Client) FetchOne(ctx context.Context, ref string) (map[string]any, error) {
	u, err := c.base.Parse(ref)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid reference %q: %w", source.ErrFetchFailed, ref, err)
	}
	if c.apiKey != "" && u.Host == c.base.Host {
		q := u.Query()
		q.Set("apiKey", c.apiKey)
		u.RawQuery = q.Encode()
	}

	body, err := c.get(ctx, u.String())
	if err != nil {
		return nil, err
	}

	var doc map[string]any
	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", source.ErrFetchFailed, ref, err)
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: %s: empty document", source.ErrFetchFailed, ref)
	}

	return doc, nil
}

func (c *Client) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", source.ErrFetchFailed, err)
	}
	req.Header.Set("Accept", "application/ld+json, application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", source.ErrFetchFailed, c.redact(rawURL), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: reading body: %w", source.ErrFetchFailed, c.redact(rawURL), err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s: unexpected status %d", source.ErrFetchFailed, c.redact(rawURL), resp.StatusCode)
	}

	return body, nil
}

// redact removes the API key from URLs that end up in errors and logs.
func (c *Client) redact(rawURL string) string {
	if c.apiKey == "" {
		return rawURL
	}
	return strings.ReplaceAll(rawURL, c.apiKey, "REDACTED")
}

func collection(t offer.Type) string {
	if t == offer.Place {
		return "places"
	}
	return "events"
}
