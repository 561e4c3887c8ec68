// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package search implements a DuckDuckGo web search client.
//
// It queries the HTML endpoint (html.duckduckgo.com/html/) and parses the
// result markup directly; there is no official API. The endpoint wraps
// result hrefs in a /l/?uddg= redirect, which this package decodes back to
// the target URL.
package search

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// =============================================================================
// ERRORS
// =============================================================================

// Sentinel errors for search failures.
var (
	ErrRateLimited = errors.New("search provider rate limited the request")
	ErrBadStatus   = errors.New("search provider returned an error status")
)

// =============================================================================
// CLIENT
// =============================================================================

// DefaultBaseURL is DuckDuckGo's HTML (no-JS) search endpoint.
const DefaultBaseURL = "https://html.duckduckgo.com/html/"

// maxResponseSize caps how much of a search response we read (2MB).
const maxResponseSize = 2 * 1024 * 1024

// Browser-like UA; the HTML endpoint serves a captcha page to obvious bots.
const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"

// Result is a single search hit.
type Result struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

// Client searches DuckDuckGo's HTML endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the search endpoint. Used for local testing.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = baseURL }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a search client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Search runs a query and returns up to maxResults hits.
//
// An empty result page is not an error; callers decide whether no hits is
// a problem for them.
func (c *Client) Search(ctx context.Context, query string, maxResults int) ([]Result, error) {
	if maxResults <= 0 {
		maxResults = 5
	}

	form := url.Values{}
	form.Set("q", query)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("building search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", userAgent)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w (HTTP %d)", ErrRateLimited, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w (HTTP %d)", ErrBadStatus, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("reading search response: %w", err)
	}

	results := parseResults(body, maxResults)
	log.Printf("SEARCH_DONE | query=%q results=%d latency=%dms",
		query, len(results), time.Since(start).Milliseconds())
	return results, nil
}

// =============================================================================
// HTML PARSING
// =============================================================================

// parseResults walks the result page markup. Each hit is a div with class
// "result", holding an <a class="result__a"> title link and an
// <a class="result__snippet"> description.
func parseResults(body []byte, maxResults int) []Result {
	doc, err := html.Parse(strings.NewReader(string(body)))
	if err != nil {
		return nil
	}

	var results []Result
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if len(results) >= maxResults {
			return
		}
		if n.Type == html.ElementNode && n.Data == "div" && hasClass(n, "result") {
			if r, ok := extractResult(n); ok {
				results = append(results, r)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return results
}

// extractResult pulls title, URL, and snippet out of a result div.
func extractResult(div *html.Node) (Result, bool) {
	var r Result

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			switch {
			case hasClass(n, "result__a"):
				r.Title = strings.TrimSpace(textContent(n))
				r.URL = resolveRedirect(attr(n, "href"))
			case hasClass(n, "result__snippet"):
				r.Description = strings.TrimSpace(textContent(n))
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(div)

	if r.Title == "" || r.URL == "" {
		return Result{}, false
	}
	return r, true
}

// resolveRedirect unwraps DuckDuckGo's /l/?uddg=<encoded> redirect URLs.
func resolveRedirect(href string) string {
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if strings.HasSuffix(u.Host, "duckduckgo.com") && strings.HasPrefix(u.Path, "/l/") {
		if target := u.Query().Get("uddg"); target != "" {
			return target
		}
	}
	return href
}

// hasClass reports whether the node's class attribute contains name.
func hasClass(n *html.Node, name string) bool {
	for _, a := range n.Attr {
		if a.Key != "class" {
			continue
		}
		for _, c := range strings.Fields(a.Val) {
			if c == name {
				return true
			}
		}
	}
	return false
}

// attr returns the value of the named attribute, or "".
func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

// textContent concatenates all text nodes under n.
func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}
