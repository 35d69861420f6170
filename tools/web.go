// Web search and fetch tools.
//
// Information Hiding:
// - HTTP client implementation details hidden
// - Search result extraction abstracted
// - Response truncation internalized

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
)

// maxFetchBodyLen truncates fetched page bodies before returning them.
const maxFetchBodyLen = 10000

// defaultSearchResultCount is how many search results are returned.
const defaultSearchResultCount = 5

// userAgent is sent with outgoing requests; some endpoints reject
// requests without one.
const userAgent = "Mozilla/5.0 (compatible; warden/1.0)"

// WebSearchTool searches the web via the DuckDuckGo HTML endpoint.
type WebSearchTool struct {
	BaseTool
	client      *http.Client
	timeoutSecs uint64
}

// NewWebSearchTool creates a new web search tool with the given timeout.
func NewWebSearchTool(timeoutSecs uint64) *WebSearchTool {
	return &WebSearchTool{
		client: &http.Client{
			Timeout: time.Duration(timeoutSecs) * time.Second,
		},
		timeoutSecs: timeoutSecs,
	}
}

// Metadata returns the tool metadata.
func (t *WebSearchTool) Metadata() ToolMetadata {
	return ToolMetadata{
		Name:        "web_search",
		Description: "Search the web and return a short list of result titles, URLs and snippets",
		Parameters: []ToolParameter{
			{Name: "query", ParamType: "string", Description: "The search query", Required: true},
		},
	}
}

type searchToolArgs struct {
	Query string `json:"query"`
}

// Validate validates the arguments.
func (t *WebSearchTool) Validate(args json.RawMessage) error {
	var a searchToolArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	if strings.TrimSpace(a.Query) == "" {
		return fmt.Errorf("query cannot be empty")
	}
	return nil
}

// resultLinkRe matches a result anchor in the DuckDuckGo HTML page.
var resultLinkRe = regexp.MustCompile(`<a[^>]+class="result__a"[^>]+href="([^"]+)"[^>]*>(.*?)</a>`)

// resultSnippetRe matches a result snippet in the DuckDuckGo HTML page.
var resultSnippetRe = regexp.MustCompile(`<a[^>]+class="result__snippet"[^>]*>(.*?)</a>`)

// tagRe strips any remaining markup from extracted fragments.
var tagRe = regexp.MustCompile(`<[^>]+>`)

// Execute runs the search.
func (t *WebSearchTool) Execute(ctx context.Context, args json.RawMessage) (ToolResult, error) {
	var a searchToolArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return FailureResult(fmt.Errorf("invalid arguments: %w", err)), nil
	}

	query := strings.TrimSpace(a.Query)
	if query == "" {
		return FailureResultf("query cannot be empty"), nil
	}

	searchURL := "https://html.duckduckgo.com/html/?q=" + url.QueryEscape(query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return FailureResult(fmt.Errorf("failed to create request: %w", err)), nil
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := t.client.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return FailureResultf("search timed out after %d seconds", t.timeoutSecs), nil
		}
		return FailureResult(fmt.Errorf("search request failed: %w", err)), nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return FailureResultf("search failed: HTTP %s", resp.Status), nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return FailureResult(fmt.Errorf("failed to read search response: %w", err)), nil
	}

	results := extractSearchResults(string(body), defaultSearchResultCount)
	if len(results) == 0 {
		// The page layout may have changed; return a raw excerpt so the
		// caller still gets something to work with.
		excerpt := truncateText(stripTags(string(body)), maxFetchBodyLen)
		if strings.TrimSpace(excerpt) == "" {
			return SuccessResult(fmt.Sprintf("No results found for '%s'", query)), nil
		}
		return SuccessResult(fmt.Sprintf("No structured results for '%s'; raw page excerpt:\n%s", query, excerpt)), nil
	}

	var out strings.Builder
	fmt.Fprintf(&out, "Search results for '%s':\n", query)
	for i, r := range results {
		fmt.Fprintf(&out, "\n%d. %s\n   %s\n", i+1, r.title, r.url)
		if r.snippet != "" {
			fmt.Fprintf(&out, "   %s\n", r.snippet)
		}
	}
	return SuccessResult(out.String()), nil
}

type searchResult struct {
	title   string
	url     string
	snippet string
}

// extractSearchResults pulls up to max results from the HTML page.
func extractSearchResults(page string, max int) []searchResult {
	links := resultLinkRe.FindAllStringSubmatch(page, max)
	snippets := resultSnippetRe.FindAllStringSubmatch(page, max)

	var results []searchResult
	for i, link := range links {
		r := searchResult{
			title: cleanFragment(link[2]),
			url:   resolveRedirect(html.UnescapeString(link[1])),
		}
		if i < len(snippets) {
			r.snippet = cleanFragment(snippets[i][1])
		}
		if r.title == "" || r.url == "" {
			continue
		}
		results = append(results, r)
	}
	return results
}

// resolveRedirect unwraps DuckDuckGo's redirect URLs (//duckduckgo.com/l/?uddg=...).
func resolveRedirect(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	if u.Scheme == "" {
		return "https:" + raw
	}
	return raw
}

func cleanFragment(s string) string {
	return strings.TrimSpace(html.UnescapeString(tagRe.ReplaceAllString(s, "")))
}

func stripTags(s string) string {
	return tagRe.ReplaceAllString(s, " ")
}

func truncateText(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "\n...(truncated)"
}

// WebFetchTool fetches the content of a URL.
type WebFetchTool struct {
	BaseTool
	client         *http.Client
	timeoutSecs    uint64
	allowedDomains []string
}

// NewWebFetchTool creates a new fetch tool with the given timeout.
func NewWebFetchTool(timeoutSecs uint64) *WebFetchTool {
	return &WebFetchTool{
		client: &http.Client{
			Timeout: time.Duration(timeoutSecs) * time.Second,
		},
		timeoutSecs: timeoutSecs,
	}
}

// WithAllowedDomains restricts fetches to the listed domains and their
// subdomains. An empty list allows any domain.
func (t *WebFetchTool) WithAllowedDomains(domains []string) *WebFetchTool {
	t.allowedDomains = domains
	return t
}

// Metadata returns the tool metadata.
func (t *WebFetchTool) Metadata() ToolMetadata {
	return ToolMetadata{
		Name:        "web_fetch",
		Description: fmt.Sprintf("Fetch the content of a URL via HTTP GET. Responses are truncated to %d characters.", maxFetchBodyLen),
		Parameters: []ToolParameter{
			{Name: "url", ParamType: "string", Description: "The URL to fetch (http or https)", Required: true},
		},
	}
}

type fetchArgs struct {
	URL string `json:"url"`
}

// Validate validates the arguments.
func (t *WebFetchTool) Validate(args json.RawMessage) error {
	var a fetchArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	if a.URL == "" {
		return fmt.Errorf("URL cannot be empty")
	}
	u, err := url.Parse(a.URL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("only http and https URLs are supported")
	}
	return nil
}

// Execute fetches the URL.
func (t *WebFetchTool) Execute(ctx context.Context, args json.RawMessage) (ToolResult, error) {
	var a fetchArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return FailureResult(fmt.Errorf("invalid arguments: %w", err)), nil
	}

	if a.URL == "" {
		return FailureResultf("URL cannot be empty"), nil
	}

	if !t.isDomainAllowed(a.URL) {
		return FailureResultf("access to domain in '%s' is not allowed", a.URL), nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.URL, nil)
	if err != nil {
		return FailureResult(fmt.Errorf("failed to create request: %w", err)), nil
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := t.client.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return FailureResultf("request timed out after %d seconds", t.timeoutSecs), nil
		}
		return FailureResult(fmt.Errorf("request failed: %w", err)), nil
	}
	defer resp.Body.Close()

	// Read one byte past the cap to detect truncation without
	// downloading arbitrarily large bodies.
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBodyLen+1))
	if err != nil {
		return FailureResult(fmt.Errorf("failed to read response body: %w", err)), nil
	}

	content := truncateText(string(body), maxFetchBodyLen)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return SuccessResult(fmt.Sprintf("Status: %s\n\n%s", resp.Status, content)), nil
	}
	return FailureResultf("HTTP error: %s\n\n%s", resp.Status, content), nil
}

// isDomainAllowed checks if the URL's domain is in the allowlist.
// Uses proper URL parsing to prevent bypass attacks.
func (t *WebFetchTool) isDomainAllowed(urlStr string) bool {
	if len(t.allowedDomains) == 0 {
		return true
	}

	u, err := url.Parse(urlStr)
	if err != nil {
		return false
	}

	host := u.Hostname()
	for _, domain := range t.allowedDomains {
		// Exact match or subdomain match
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}
