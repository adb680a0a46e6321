// Package edgar implements the SEC EDGAR filings-directory client.
// EDGAR provides free access to company filings, submissions metadata,
// and XBRL company facts via REST APIs.
//
// No API key required. Requests must include a User-Agent header per SEC
// policy, and the documented rate budget is 10 requests/second per
// user-agent. All outbound calls from one Client go through a single
// shared gate so concurrent extraction workers stay inside that budget.
//
// Docs: https://www.sec.gov/edgar/sec-api-documentation
package edgar

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/seenimoa/openedgarai/internal/infra"
)

const (
	defaultDataURL     = "https://data.sec.gov"
	defaultArchivesURL = "https://www.sec.gov"

	// SEC requires a User-Agent with product and contact info.
	defaultUserAgent = "openedgarai/1.0 (github.com/seenimoa/openedgarai)"

	// Documented EDGAR budget.
	requestsPerSecond = 10
)

// Client fetches submissions, facts, and filing documents from EDGAR.
// Construct once and share; the embedded gate is the process-wide pace
// against the EDGAR rate budget.
type Client struct {
	dataURL     string
	archivesURL string
	userAgent   string
	http        *http.Client
	gate        *infra.Gate
	cache       *infra.Cache
	log         zerolog.Logger
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithDataURL overrides the data API base URL (used in tests).
func WithDataURL(url string) ClientOption {
	return func(c *Client) { c.dataURL = strings.TrimRight(url, "/") }
}

// WithArchivesURL overrides the document archives base URL (used in tests).
func WithArchivesURL(url string) ClientOption {
	return func(c *Client) { c.archivesURL = strings.TrimRight(url, "/") }
}

// WithUserAgent sets the User-Agent sent on every request.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) { c.userAgent = ua }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) { c.http = h }
}

// WithGate sets a custom request gate (used in tests to disable pacing).
func WithGate(g *infra.Gate) ClientOption {
	return func(c *Client) { c.gate = g }
}

// WithCacheTTL sets how long submissions and facts responses are cached.
func WithCacheTTL(ttl time.Duration) ClientOption {
	return func(c *Client) { c.cache = infra.NewCache(ttl) }
}

// WithLogger sets the client's logger.
func WithLogger(log zerolog.Logger) ClientOption {
	return func(c *Client) { c.log = log.With().Str("component", "edgar").Logger() }
}

// NewClient creates an EDGAR client with a 10-minute metadata cache and the
// shared 10 req/s gate.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		dataURL:     defaultDataURL,
		archivesURL: defaultArchivesURL,
		userAgent:   defaultUserAgent,
		http:        &http.Client{Timeout: 30 * time.Second},
		gate:        infra.NewGate(requestsPerSecond, requestsPerSecond),
		cache:       infra.NewCache(10 * time.Minute),
		log:         zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetSubmissions fetches submissions metadata for a CIK.
func (c *Client) GetSubmissions(ctx context.Context, cik string) (*Submissions, error) {
	padded := PadCIK(cik)
	cacheKey := "submissions:" + padded
	if cached, ok := c.cache.Get(cacheKey); ok {
		return cached.(*Submissions), nil
	}

	url := fmt.Sprintf("%s/submissions/CIK%s.json", c.dataURL, padded)
	var sub Submissions
	if err := c.fetchJSON(ctx, url, &sub); err != nil {
		return nil, fmt.Errorf("edgar submissions for CIK %s: %w", padded, err)
	}

	c.cache.Set(cacheKey, &sub)
	return &sub, nil
}

// GetFacts fetches the XBRL company facts document for a CIK.
func (c *Client) GetFacts(ctx context.Context, cik string) (*CompanyFacts, error) {
	padded := PadCIK(cik)
	cacheKey := "facts:" + padded
	if cached, ok := c.cache.Get(cacheKey); ok {
		return cached.(*CompanyFacts), nil
	}

	url := fmt.Sprintf("%s/api/xbrl/companyfacts/CIK%s.json", c.dataURL, padded)
	var facts CompanyFacts
	if err := c.fetchJSON(ctx, url, &facts); err != nil {
		return nil, fmt.Errorf("edgar company facts for CIK %s: %w", padded, err)
	}

	c.cache.Set(cacheKey, &facts)
	return &facts, nil
}

// GetDocument fetches the raw text of a filing's primary document.
func (c *Client) GetDocument(ctx context.Context, cik, accessionNumber, primaryDocument string) (string, error) {
	cacheKey := "doc:" + accessionNumber + ":" + primaryDocument
	if cached, ok := c.cache.Get(cacheKey); ok {
		return cached.(string), nil
	}

	url := DocumentURLAt(c.archivesURL, cik, accessionNumber, primaryDocument)
	data, err := c.fetchRaw(ctx, url)
	if err != nil {
		return "", fmt.Errorf("edgar document %s/%s: %w", accessionNumber, primaryDocument, err)
	}

	text := string(data)
	c.cache.SetWithTTL(cacheKey, text, time.Hour)
	return text, nil
}

// Ping checks connectivity to EDGAR.
func (c *Client) Ping(ctx context.Context) error {
	url := c.dataURL + "/submissions/CIK0000320193.json" // Apple
	if err := c.gate.Wait(ctx); err != nil {
		return err
	}
	body, _, err := infra.DoGetWith(ctx, c.http, url, c.headers())
	if err != nil {
		return fmt.Errorf("edgar ping: %w", err)
	}
	body.Close()
	return nil
}

// ── Shared helpers ──

func (c *Client) headers() map[string]string {
	return map[string]string{
		"User-Agent": c.userAgent,
		"Accept":     "application/json",
	}
}

func (c *Client) fetchJSON(ctx context.Context, url string, dest any) error {
	data, err := c.fetchRaw(ctx, url)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("parse EDGAR JSON: %w", err)
	}
	return nil
}

func (c *Client) fetchRaw(ctx context.Context, url string) ([]byte, error) {
	if err := c.gate.Wait(ctx); err != nil {
		return nil, err
	}
	c.log.Debug().Str("url", url).Msg("edgar fetch")

	body, _, err := infra.DoGetWith(ctx, c.http, url, c.headers())
	if err != nil {
		return nil, err
	}
	defer body.Close()
	return io.ReadAll(body)
}

// PadCIK pads a CIK number to 10 digits with leading zeros.
func PadCIK(cik string) string {
	for len(cik) < 10 {
		cik = "0" + cik
	}
	return cik
}

// DocumentURL builds the public archives URL for a filing document:
// https://www.sec.gov/Archives/edgar/data/{paddedCIK}/{accessionNoDashes}/{doc}
func DocumentURL(cik, accessionNumber, primaryDocument string) string {
	return DocumentURLAt(defaultArchivesURL, cik, accessionNumber, primaryDocument)
}

// DocumentURLAt is DocumentURL against a custom archives host.
func DocumentURLAt(base, cik, accessionNumber, primaryDocument string) string {
	return fmt.Sprintf("%s/Archives/edgar/data/%s/%s/%s",
		strings.TrimRight(base, "/"),
		PadCIK(cik),
		strings.ReplaceAll(accessionNumber, "-", ""),
		primaryDocument)
}

// BrowseURL builds the public "all filings" browse URL for a CIK.
func BrowseURL(cik string) string {
	return fmt.Sprintf("https://www.sec.gov/cgi-bin/browse-edgar?action=getcompany&CIK=%s&type=&dateb=&owner=include&count=40", PadCIK(cik))
}
