// Package crossref fetches bibliographic records from public catalogs:
// BibTeX by DOI from crossref.org (falling back to doi.org content
// negotiation), the most probable DOI for free text from the crossref works
// search, and book metadata by ISBN from Open Library.
package crossref

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/matsen/bibmerge/internal/export"
	"github.com/matsen/bibmerge/internal/reference"
)

const (
	// WorksURL is the crossref works endpoint.
	WorksURL = "https://api.crossref.org/works"

	// DOIURL resolves DOIs with content negotiation.
	DOIURL = "https://doi.org"

	// OpenLibraryURL is the Open Library base URL.
	OpenLibraryURL = "https://openlibrary.org"

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 120 * time.Second

	// RateLimit is the default request rate, per second, across all services.
	RateLimit = 5.0

	bibtexMediaType = "application/x-bibtex"
	userAgent       = "DOI Importer"
)

var yearPattern = regexp.MustCompile(`\d{4}`)

// Client is a rate-limited HTTP client for the catalog services.
type Client struct {
	httpClient     *http.Client
	limiter        *rate.Limiter
	mailto         string
	worksURL       string
	doiURL         string
	openLibraryURL string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithMailto sets the contact address sent in the User-Agent, which
// crossref uses to route requests to its polite pool.
func WithMailto(addr string) ClientOption {
	return func(c *Client) {
		c.mailto = addr
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithRateLimit sets the request rate in requests per second.
// A non-positive rate disables limiting.
func WithRateLimit(rps float64) ClientOption {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// WithBaseURLs overrides the service endpoints (for testing).
// Empty arguments keep the defaults.
func WithBaseURLs(works, doi, openLibrary string) ClientOption {
	return func(c *Client) {
		if works != "" {
			c.worksURL = works
		}
		if doi != "" {
			c.doiURL = doi
		}
		if openLibrary != "" {
			c.openLibraryURL = openLibrary
		}
	}
}

// NewClient creates a new catalog client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient:     &http.Client{Timeout: DefaultTimeout},
		limiter:        rate.NewLimiter(rate.Limit(RateLimit), 1),
		worksURL:       WorksURL,
		doiURL:         DOIURL,
		openLibraryURL: OpenLibraryURL,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

func (c *Client) userAgent() string {
	if c.mailto == "" {
		return userAgent
	}
	return fmt.Sprintf("%s (mailto:%s)", userAgent, c.mailto)
}

// checkHTTPErrors returns an error if the HTTP response indicates a problem.
func checkHTTPErrors(resp *http.Response, service string) error {
	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %s status %d", ErrRateLimited, service, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return &APIError{
			StatusCode: resp.StatusCode,
			Service:    service,
			Message:    fmt.Sprintf("HTTP %d", resp.StatusCode),
		}
	}
	return nil
}

// get performs a rate-limited GET and returns the response body.
func (c *Client) get(ctx context.Context, rawURL, accept, service string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent())
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetworkError, err)
	}
	defer resp.Body.Close()

	if err := checkHTTPErrors(resp, service); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s response: %v", ErrNetworkError, service, err)
	}
	return body, nil
}

// escapeDOI escapes each path segment of a DOI, keeping its slashes.
func escapeDOI(doi string) string {
	segments := strings.Split(doi, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}

// BibTeX returns the BibTeX record for a DOI. Crossref's transform service
// is tried first, then doi.org content negotiation.
func (c *Client) BibTeX(ctx context.Context, doi string) (string, error) {
	path := escapeDOI(doi)

	body, err := c.get(ctx, c.worksURL+"/"+path+"/transform/"+bibtexMediaType, bibtexMediaType, "crossref")
	if err == nil && len(strings.TrimSpace(string(body))) > 0 {
		return string(body), nil
	}
	if ctx.Err() != nil {
		return "", ctx.Err()
	}

	body, fallbackErr := c.get(ctx, c.doiURL+"/"+path, bibtexMediaType, "doi.org")
	if fallbackErr != nil {
		if IsNotFound(fallbackErr) {
			return "", fmt.Errorf("%w: DOI %s", ErrNotFound, doi)
		}
		return "", fmt.Errorf("fetching BibTeX for %s: %w", doi, fallbackErr)
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return "", fmt.Errorf("%w: DOI %s", ErrNotFound, doi)
	}
	return string(body), nil
}

// worksResponse is the subset of a crossref works query response we read.
type worksResponse struct {
	Message struct {
		Items []struct {
			DOI string `json:"DOI"`
		} `json:"items"`
	} `json:"message"`
}

// FindDOI returns the DOI of the best bibliographic match for free text.
func (c *Client) FindDOI(ctx context.Context, query string) (string, error) {
	params := url.Values{}
	params.Set("rows", "1")
	params.Set("query.bibliographic", query)
	params.Set("select", "DOI")

	body, err := c.get(ctx, c.worksURL+"?"+params.Encode(), "application/json", "crossref")
	if err != nil {
		return "", fmt.Errorf("searching crossref: %w", err)
	}

	var resp worksResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("%w: parsing works response: %v", ErrInvalidResponse, err)
	}
	for _, item := range resp.Message.Items {
		if strings.HasPrefix(item.DOI, "10.") {
			return item.DOI, nil
		}
	}
	return "", fmt.Errorf("%w: no DOI for query", ErrNotFound)
}

// openLibraryBook is the subset of an Open Library jscmd=data record we read.
type openLibraryBook struct {
	Title   string `json:"title"`
	Authors []struct {
		Name string `json:"name"`
	} `json:"authors"`
	Publishers []struct {
		Name string `json:"name"`
	} `json:"publishers"`
	PublishDate string `json:"publish_date"`
}

// ISBN returns a book entry for an ISBN from Open Library.
func (c *Client) ISBN(ctx context.Context, isbn string) (reference.Entry, error) {
	params := url.Values{}
	params.Set("bibkeys", "ISBN:"+isbn)
	params.Set("format", "json")
	params.Set("jscmd", "data")

	body, err := c.get(ctx, c.openLibraryURL+"/api/books?"+params.Encode(), "application/json", "openlibrary")
	if err != nil {
		return reference.Entry{}, fmt.Errorf("looking up ISBN %s: %w", isbn, err)
	}

	var books map[string]openLibraryBook
	if err := json.Unmarshal(body, &books); err != nil {
		return reference.Entry{}, fmt.Errorf("%w: parsing Open Library response: %v", ErrInvalidResponse, err)
	}
	book, ok := books["ISBN:"+isbn]
	if !ok || book.Title == "" {
		return reference.Entry{}, fmt.Errorf("%w: ISBN %s", ErrNotFound, isbn)
	}

	return bookEntry(isbn, book), nil
}

func bookEntry(isbn string, book openLibraryBook) reference.Entry {
	var authors []string
	for _, a := range book.Authors {
		if a.Name != "" {
			authors = append(authors, export.EscapeLaTeX(a.Name))
		}
	}

	e := reference.Entry{
		Type:   "book",
		ID:     isbn,
		Author: strings.Join(authors, " and "),
		Title:  export.EscapeLaTeX(book.Title),
		Year:   yearPattern.FindString(book.PublishDate),
		ISBN:   isbn,
	}
	if len(book.Publishers) > 0 && book.Publishers[0].Name != "" {
		e.Set("publisher", export.EscapeLaTeX(book.Publishers[0].Name))
	}
	return e
}
