// Package ingest turns a user submission (an uploaded file or a URL) into
// normalized contract source text plus a display name.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// MaxContentLength is the admission cap for URL-sourced contracts, in bytes.
const MaxContentLength = 1024 * 1024

// DefaultContractName is used when a URL has no usable path segment.
const DefaultContractName = "contract.sol"

var (
	// ErrInvalidInput marks malformed submissions: neither or both of file and
	// URL, wrong file extension, empty content.
	ErrInvalidInput = errors.New("invalid contract input")

	// ErrFetchFailed marks an unsuccessful HTTP fetch of a URL-sourced contract.
	ErrFetchFailed = errors.New("failed to fetch contract")

	// ErrPayloadTooLarge marks a URL response whose size exceeds MaxContentLength.
	ErrPayloadTooLarge = errors.New("contract exceeds size limit")
)

// Input is one contract submission. Exactly one of the file pair or URL must
// be set.
type Input struct {
	FileName string
	FileData []byte
	URL      string
}

// Contract is normalized acquisition output.
type Contract struct {
	Content     string
	DisplayName string
	Origin      string // the URL for fetched contracts, the file name for uploads
}

// Acquirer fetches and normalizes contract submissions.
type Acquirer struct {
	httpClient *http.Client
}

// NewAcquirer creates an acquirer with a bounded HTTP client.
func NewAcquirer() *Acquirer {
	return &Acquirer{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// NewAcquirerWithClient creates an acquirer using the given HTTP client.
// Tests use this to point at stub servers.
func NewAcquirerWithClient(client *http.Client) *Acquirer {
	return &Acquirer{httpClient: client}
}

// Acquire validates the input and produces contract text and a display name.
func (a *Acquirer) Acquire(ctx context.Context, in Input) (*Contract, error) {
	hasFile := in.FileName != "" || len(in.FileData) > 0
	hasURL := in.URL != ""

	switch {
	case hasFile && hasURL:
		return nil, fmt.Errorf("provide either a file or a URL, not both: %w", ErrInvalidInput)
	case !hasFile && !hasURL:
		return nil, fmt.Errorf("either a file or a URL must be provided: %w", ErrInvalidInput)
	case hasFile:
		return a.fromFile(in.FileName, in.FileData)
	default:
		return a.fromURL(ctx, in.URL)
	}
}

func (a *Acquirer) fromFile(name string, data []byte) (*Contract, error) {
	if !strings.HasSuffix(strings.ToLower(name), ".sol") {
		return nil, fmt.Errorf("file %q is not a .sol contract: %w", name, ErrInvalidInput)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("file %q is empty: %w", name, ErrInvalidInput)
	}

	return &Contract{
		Content:     string(data),
		DisplayName: name,
		Origin:      name,
	}, nil
}

func (a *Acquirer) fromURL(ctx context.Context, rawURL string) (*Contract, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return nil, fmt.Errorf("invalid contract URL %q: %w", rawURL, ErrInvalidInput)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: unexpected status %s", ErrFetchFailed, resp.Status)
	}

	// Reject on the advertised length before touching the body.
	if resp.ContentLength > MaxContentLength {
		return nil, fmt.Errorf("advertised content length %d exceeds %d bytes: %w",
			resp.ContentLength, MaxContentLength, ErrPayloadTooLarge)
	}

	// The server may lie or omit Content-Length; cap the actual read too.
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxContentLength+1))
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", ErrFetchFailed, err)
	}
	if len(body) > MaxContentLength {
		return nil, fmt.Errorf("response body exceeds %d bytes: %w", MaxContentLength, ErrPayloadTooLarge)
	}

	content := string(body)
	if strings.Contains(resp.Header.Get("Content-Type"), "text/html") {
		// Block explorers serve contract source inside an HTML page; pull the
		// code out of its <pre> blocks instead of ingesting markup.
		if extracted, ok := extractFromHTML(content); ok {
			content = extracted
		}
	}

	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("fetched contract is empty: %w", ErrInvalidInput)
	}

	return &Contract{
		Content:     content,
		DisplayName: displayNameFromURL(parsed),
		Origin:      rawURL,
	}, nil
}

// displayNameFromURL derives a contract name from the final path segment of
// the URL, defaulting when the path carries nothing usable.
func displayNameFromURL(u *url.URL) string {
	name := path.Base(u.Path)
	if name == "" || name == "/" || name == "." {
		return DefaultContractName
	}
	return name
}

// extractFromHTML returns the text of the largest <pre> block in an HTML
// document. Returns false when the document has no <pre> content.
func extractFromHTML(htmlContent string) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return "", false
	}

	var best string
	doc.Find("pre").Each(func(i int, s *goquery.Selection) {
		if text := s.Text(); len(text) > len(best) {
			best = text
		}
	})

	if strings.TrimSpace(best) == "" {
		return "", false
	}
	return best, true
}
