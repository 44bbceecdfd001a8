// Package speaker looks up a short public introduction for a talk's speaker.
//
// Lookups are best effort: every failure is reported through Result.Err and
// callers treat it as "no introduction".
package speaker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const (
	DefaultSearchURL = "https://duckduckgo.com/html/"
	QueryContext     = "简介 数学"
	UserAgent        = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/120.0 Safari/537.36"
	Timeout = 12 * time.Second
)

var (
	// ErrNoResult means the search succeeded but returned nothing usable
	ErrNoResult = errors.New("no search result")
	// ErrUpstream means the search endpoint answered with a non-2xx status or unparseable page
	ErrUpstream = errors.New("search upstream error")
	// ErrTransport means the request never completed
	ErrTransport = errors.New("search transport error")
)

// Result is the outcome of one lookup. Intro and URL may each be nil even
// when Err is nil.
type Result struct {
	Intro *string
	URL   *string
	Err   error
}

// Client searches a DuckDuckGo-style HTML endpoint
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	UserAgent  string
	cache      *Cache
}

// NewClient creates a search client. An empty baseURL selects DefaultSearchURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultSearchURL
	}
	if timeout <= 0 {
		timeout = Timeout
	}
	return &Client{
		BaseURL: baseURL,
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
		UserAgent: UserAgent,
	}
}

// NewClientWithCache creates a client that remembers results in cache
func NewClientWithCache(baseURL string, timeout time.Duration, cache *Cache) *Client {
	client := NewClient(baseURL, timeout)
	client.cache = cache
	return client
}

// Lookup searches for name and returns the first organic result's snippet and link.
func (c *Client) Lookup(ctx context.Context, name string) Result {
	name = strings.TrimSpace(name)

	if c.cache != nil {
		if cached, ok := c.cache.Get(name); ok {
			return cached
		}
	}

	result := c.search(ctx, name)

	// transport failures and upstream rejections (rate limits, 5xx) are
	// retried on the next crawl; only answers are cached
	if c.cache != nil && !errors.Is(result.Err, ErrTransport) && !errors.Is(result.Err, ErrUpstream) {
		c.cache.Set(name, result)
	}
	return result
}

func (c *Client) search(ctx context.Context, name string) Result {
	params := url.Values{}
	params.Add("q", fmt.Sprintf("%s %s", name, QueryContext))
	reqURL := fmt.Sprintf("%s?%s", c.BaseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return Result{Err: fmt.Errorf("%w: creating request: %v", ErrTransport, err)}
	}
	req.Header.Set("User-Agent", c.UserAgent)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return Result{Err: fmt.Errorf("%w: %v", ErrTransport, err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Result{Err: fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return Result{Err: fmt.Errorf("%w: parsing response: %v", ErrUpstream, err)}
	}

	return parseResults(doc)
}

// parseResults extracts the first result link and snippet from a results page.
func parseResults(doc *goquery.Document) Result {
	var result Result

	if href, ok := doc.Find("a.result__a").First().Attr("href"); ok {
		if link := resolveRedirect(href); link != "" {
			result.URL = &link
		}
	}

	snippet := strings.Join(strings.Fields(doc.Find(".result__snippet").First().Text()), " ")
	if snippet != "" {
		result.Intro = &snippet
	}

	if result.URL == nil && result.Intro == nil {
		result.Err = ErrNoResult
	}
	return result
}

// resolveRedirect unwraps DuckDuckGo's "/l/?uddg=<target>" redirect links and
// makes protocol-relative links absolute.
func resolveRedirect(href string) string {
	href = strings.TrimSpace(href)
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}

	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	return href
}
