package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
	"unicode/utf8"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding/simplifiedchinese"
)

const (
	UserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/120.0 Safari/537.36"
	Timeout = 12 * time.Second

	maxBodyBytes = 10 << 20
)

// ErrorKind classifies fetch failures
type ErrorKind int

const (
	KindNetwork ErrorKind = iota + 1
	KindStatus
	KindDecode
)

func (k ErrorKind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindStatus:
		return "status"
	case KindDecode:
		return "decode"
	default:
		return "unknown"
	}
}

// FetchError is returned for every failed fetch
type FetchError struct {
	URL        string
	Kind       ErrorKind
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.Kind == KindStatus {
		return fmt.Sprintf("fetching %s: unexpected status code: %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetching %s: %s: %v", e.URL, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// FetchErrorKind returns the kind of a FetchError anywhere in err's chain, or 0.
func FetchErrorKind(err error) ErrorKind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return 0
}

// Page is a fetched HTML document decoded to UTF-8
type Page struct {
	URL  string // final URL after redirects
	HTML string
}

// Fetcher retrieves pages over HTTP
type Fetcher struct {
	client    *http.Client
	userAgent string
}

// NewFetcher creates a Fetcher with the given timeout (Timeout when zero).
func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = Timeout
	}
	return &Fetcher{
		client: &http.Client{
			Timeout: timeout,
		},
		userAgent: UserAgent,
	}
}

// Fetch downloads url and returns its HTML decoded to UTF-8.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{URL: url, Kind: KindNetwork, Err: fmt.Errorf("creating request: %w", err)}
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: url, Kind: KindNetwork, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{URL: url, Kind: KindStatus, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &FetchError{URL: url, Kind: KindNetwork, Err: fmt.Errorf("reading body: %w", err)}
	}

	text, err := decodeBody(body, resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, &FetchError{URL: url, Kind: KindDecode, Err: err}
	}

	return &Page{URL: resp.Request.URL.String(), HTML: text}, nil
}

// decodeBody converts body to UTF-8. A charset from the Content-Type header
// or a BOM is trusted unless it claims UTF-8 and the bytes are not. Anything
// weaker (a <meta> tag, or the windows-1252 guess made when the first 1 KB is
// plain ASCII) gives way to the bytes: valid UTF-8 is kept as is, anything
// else is read as GB18030, the superset used by most Chinese sites.
func decodeBody(body []byte, contentType string) (string, error) {
	enc, name, certain := charset.DetermineEncoding(body, contentType)
	valid := utf8.Valid(body)
	switch {
	case !certain && valid:
		return string(body), nil
	case !certain || (name == "utf-8" && !valid):
		enc, name = simplifiedchinese.GB18030, "gb18030"
	}

	decoded, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		return "", fmt.Errorf("decoding %s: %w", name, err)
	}
	return string(decoded), nil
}
