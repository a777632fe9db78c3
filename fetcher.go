package edgar

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	VERSION = "0.1.0"

	// SEC allows at most 10 requests per second per user agent
	requestsPerSecond = 10

	// SecEmailEnvVar is the environment variable name for SEC email
	SecEmailEnvVar = "SEC_EMAIL"

	defaultTickersURL = "https://www.sec.gov/files/company_tickers.json"
	defaultConceptURL = "https://data.sec.gov/api/xbrl/companyconcept"
)

// GetSecEmail retrieves email from environment variable or returns error
func GetSecEmail() (string, error) {
	email := os.Getenv(SecEmailEnvVar)
	if email == "" {
		return "", fmt.Errorf("SEC email required: set %s environment variable or use --email flag", SecEmailEnvVar)
	}

	// Basic email validation
	emailRegex := regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	if !emailRegex.MatchString(email) {
		return "", fmt.Errorf("invalid email format: %s", email)
	}
	if strings.HasSuffix(email, "example.com") {
		return "", fmt.Errorf("Use a real email address, not example.com: %s", email)
	}
	return email, nil
}

// BuildUserAgent creates a proper SEC User-Agent string
func BuildUserAgent(email string) string {
	return fmt.Sprintf("edgar-quarterly/%s (%s)", VERSION, email)
}

// HTTPDoer performs HTTP requests. The standard http.Client implements it.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is a rate-limited HTTP client for the SEC data APIs.
// Email is required by SEC - must be a valid email address.
type Client struct {
	httpClient HTTPDoer
	limiter    *rate.Limiter
	userAgent  string
	log        zerolog.Logger

	tickersURL string
	conceptURL string
}

// ClientOption customizes a Client
type ClientOption func(*Client)

// WithHTTPClient allows custom HTTP client configuration
func WithHTTPClient(httpClient HTTPDoer) ClientOption {
	return func(c *Client) { c.httpClient = httpClient }
}

// WithRateLimiter overrides the default 10 req/sec limiter
func WithRateLimiter(l *rate.Limiter) ClientOption {
	return func(c *Client) { c.limiter = l }
}

// WithLogger attaches a logger; the client only logs at debug level
func WithLogger(log zerolog.Logger) ClientOption {
	return func(c *Client) { c.log = log }
}

// WithTickersURL overrides the company tickers endpoint (tests)
func WithTickersURL(url string) ClientOption {
	return func(c *Client) { c.tickersURL = url }
}

// WithConceptURL overrides the company-concept endpoint base (tests)
func WithConceptURL(url string) ClientOption {
	return func(c *Client) { c.conceptURL = url }
}

// NewClient creates a new SEC data client
func NewClient(email string, opts ...ClientOption) (*Client, error) {
	if email == "" {
		return nil, fmt.Errorf("email is required for SEC requests")
	}

	c := &Client{
		userAgent:  BuildUserAgent(email),
		log:        zerolog.Nop(),
		tickersURL: defaultTickersURL,
		conceptURL: defaultConceptURL,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if c.limiter == nil {
		c.limiter = rate.NewLimiter(requestsPerSecond, requestsPerSecond)
	}

	return c, nil
}

// conceptFactsURL builds the company-concept URL for a CIK and us-gaap tag
func (c *Client) conceptFactsURL(cik, tag string) string {
	return fmt.Sprintf("%s/CIK%s/us-gaap/%s.json", c.conceptURL, PadCIK(cik), tag)
}

// CompanyConcept fetches the full fact history for one company and one tag.
// A non-success status or unparseable body is returned as an error; callers
// in the quarterly pipeline treat it as "no data for this tag".
func (c *Client) CompanyConcept(ctx context.Context, cik, tag string) (*ConceptResponse, error) {
	var resp ConceptResponse
	if err := c.getJSON(ctx, c.conceptFactsURL(cik, tag), &resp); err != nil {
		return nil, fmt.Errorf("company concept %s for CIK %s: %w", tag, cik, err)
	}
	return &resp, nil
}

// ProbeTag checks whether a tag exists for a company. It only inspects the
// response status and discards the body. Success does not guarantee the tag
// carries usable quarterly data, only that the filer reports it at all.
func (c *Client) ProbeTag(ctx context.Context, cik, tag string) bool {
	resp, err := c.get(ctx, c.conceptFactsURL(cik, tag))
	if err != nil {
		c.log.Debug().Str("cik", cik).Str("tag", tag).Err(err).Msg("tag probe failed")
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	return resp.StatusCode == http.StatusOK
}

// get executes a rate-limited GET with the SEC User-Agent header
func (c *Client) get(ctx context.Context, url string) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	return resp, nil
}

// getJSON executes a GET and decodes the JSON body into dest
func (c *Client) getJSON(ctx context.Context, url string, dest any) error {
	resp, err := c.get(ctx, url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("SEC returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("failed to parse response JSON: %w", err)
	}

	return nil
}

// PadCIK pads a CIK number to 10 digits with leading zeros
func PadCIK(cik string) string {
	return fmt.Sprintf("%010s", strings.TrimLeft(cik, "0"))
}
