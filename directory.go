package edgar

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// ErrIdentifierNotFound is returned when a company name or ticker cannot be
// resolved to a CIK. The caller cannot proceed; this is never retried here.
var ErrIdentifierNotFound = errors.New("company identifier not found")

// DirectoryTTL bounds how long the cached company directory is trusted.
// The SEC ticker file changes infrequently, so a generous window is fine.
const DirectoryTTL = 24 * time.Hour

// CompanyRecord is one entry of the SEC company directory
type CompanyRecord struct {
	CIK    string `json:"cik"`
	Name   string `json:"name"`
	Ticker string `json:"ticker"`
}

// tickersFile mirrors company_tickers.json: an object keyed by row index
type tickersFile map[string]struct {
	CIK    int    `json:"cik_str"`
	Ticker string `json:"ticker"`
	Title  string `json:"title"`
}

// Directory resolves company names and tickers to CIK identifiers using the
// SEC company tickers file. The full directory and per-name CIK lookups are
// cached with a TTL so tests and long-running callers can inject a fresh
// instance per run instead of relying on process-global state.
type Directory struct {
	client *Client
	ttl    time.Duration

	mu        sync.Mutex
	companies []CompanyRecord
	fetchedAt time.Time
	cikByName map[string]string
}

// DirectoryOption customizes a Directory
type DirectoryOption func(*Directory)

// WithDirectoryTTL overrides the cache lifetime
func WithDirectoryTTL(ttl time.Duration) DirectoryOption {
	return func(d *Directory) { d.ttl = ttl }
}

// NewDirectory creates a company directory backed by the given client
func NewDirectory(client *Client, opts ...DirectoryOption) *Directory {
	d := &Directory{
		client:    client,
		ttl:       DirectoryTTL,
		cikByName: make(map[string]string),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Companies returns the full directory, sorted by company name.
// The download is cached until the TTL expires.
func (d *Directory) Companies(ctx context.Context) ([]CompanyRecord, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.companiesLocked(ctx)
}

func (d *Directory) companiesLocked(ctx context.Context) ([]CompanyRecord, error) {
	if d.companies != nil && time.Since(d.fetchedAt) < d.ttl {
		return d.companies, nil
	}

	var file tickersFile
	if err := d.client.getJSON(ctx, d.client.tickersURL, &file); err != nil {
		return nil, fmt.Errorf("failed to fetch company directory: %w", err)
	}

	companies := make([]CompanyRecord, 0, len(file))
	for _, entry := range file {
		companies = append(companies, CompanyRecord{
			CIK:    PadCIK(fmt.Sprintf("%d", entry.CIK)),
			Name:   entry.Title,
			Ticker: entry.Ticker,
		})
	}
	sort.Slice(companies, func(i, j int) bool { return companies[i].Name < companies[j].Name })

	d.companies = companies
	d.fetchedAt = time.Now()
	return companies, nil
}

// Search returns all companies whose name contains the search term
// (case-insensitive)
func (d *Directory) Search(ctx context.Context, term string) ([]CompanyRecord, error) {
	companies, err := d.Companies(ctx)
	if err != nil {
		return nil, err
	}

	lowered := strings.ToLower(term)
	var matches []CompanyRecord
	for _, c := range companies {
		if strings.Contains(strings.ToLower(c.Name), lowered) {
			matches = append(matches, c)
		}
	}
	return matches, nil
}

// LookupCIK resolves a company name or ticker to its zero-padded CIK.
// Exact name matches win over ticker matches, which win over the first
// substring match. Returns ErrIdentifierNotFound when nothing matches.
func (d *Directory) LookupCIK(ctx context.Context, nameOrTicker string) (string, error) {
	key := strings.ToLower(strings.TrimSpace(nameOrTicker))
	if key == "" {
		return "", fmt.Errorf("lookup %q: %w", nameOrTicker, ErrIdentifierNotFound)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if cik, ok := d.cikByName[key]; ok {
		return cik, nil
	}

	companies, err := d.companiesLocked(ctx)
	if err != nil {
		return "", err
	}

	var substring string
	for _, c := range companies {
		name := strings.ToLower(c.Name)
		if name == key || strings.EqualFold(c.Ticker, key) {
			d.cikByName[key] = c.CIK
			return c.CIK, nil
		}
		if substring == "" && strings.Contains(name, key) {
			substring = c.CIK
		}
	}
	if substring != "" {
		d.cikByName[key] = substring
		return substring, nil
	}

	return "", fmt.Errorf("lookup %q: %w", nameOrTicker, ErrIdentifierNotFound)
}
