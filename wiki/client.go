// Package wiki looks up articles on the community wiki. The wiki's "Go"
// search either redirects straight to an article or returns a result page
// whose first hit we take; there is no API, so both cases are scraped.
package wiki

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
)

const defaultBaseURL = "https://kol.coldfront.net/thekolwiki"

// ErrNoResults is returned when the search finds nothing.
var ErrNoResults = errors.New("no wiki results")

// Result is one wiki article reference.
type Result struct {
	Title string
	URL   string
}

// Client queries the wiki.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a wiki client.
func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
			// A direct article hit answers with a redirect; capture it
			// instead of following.
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		baseURL: defaultBaseURL,
	}
}

// WithBaseURL points the client at a different wiki root, used by tests.
func (c *Client) WithBaseURL(baseURL string) *Client {
	c.baseURL = strings.TrimSuffix(baseURL, "/")
	return c
}

// Search finds the article matching the query: an exact title match via the
// wiki's redirect, otherwise the first hit of the search result page.
func (c *Client) Search(ctx context.Context, query string) (Result, error) {
	params := url.Values{
		"search": {query},
		"go":     {"Go"},
	}
	searchURL := c.baseURL + "/index.php?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return Result{}, fmt.Errorf("failed to create wiki request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("wiki request failed: %w", err)
	}
	defer resp.Body.Close()

	// Exact title match: the wiki redirects to the article.
	if resp.StatusCode >= 300 && resp.StatusCode <= 399 {
		location := resp.Header.Get("Location")
		if location == "" {
			return Result{}, errors.New("wiki redirect carried no location")
		}
		return Result{
			Title: titleFromArticleURL(location),
			URL:   absoluteURL(c.baseURL, location),
		}, nil
	}

	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("wiki returned status %d", resp.StatusCode)
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("failed to parse wiki search page: %w", err)
	}

	result, found := firstSearchHit(doc)
	if !found {
		return Result{}, ErrNoResults
	}
	result.URL = absoluteURL(c.baseURL, result.URL)
	return result, nil
}

// firstSearchHit walks the result page for the first link inside a search
// result heading.
func firstSearchHit(doc *html.Node) (Result, bool) {
	var find func(n *html.Node, inResult bool) (Result, bool)
	find = func(n *html.Node, inResult bool) (Result, bool) {
		if n.Type == html.ElementNode {
			for _, attr := range n.Attr {
				if attr.Key == "class" && strings.Contains(attr.Val, "mw-search-result") {
					inResult = true
				}
			}
			if inResult && n.Data == "a" {
				var href, title string
				for _, attr := range n.Attr {
					switch attr.Key {
					case "href":
						href = attr.Val
					case "title":
						title = attr.Val
					}
				}
				if href != "" {
					if title == "" {
						title = textContent(n)
					}
					return Result{Title: title, URL: href}, true
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if result, found := find(c, inResult); found {
				return result, true
			}
		}
		return Result{}, false
	}
	return find(doc, false)
}

func textContent(n *html.Node) string {
	var builder strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			builder.WriteString(node.Data)
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(builder.String())
}

// titleFromArticleURL recovers a readable title from an article path like
// "/thekolwiki/index.php/Baa'baa'bu'ran".
func titleFromArticleURL(articleURL string) string {
	parts := strings.Split(articleURL, "/")
	last := parts[len(parts)-1]
	if decoded, err := url.PathUnescape(last); err == nil {
		last = decoded
	}
	return strings.ReplaceAll(last, "_", " ")
}

func absoluteURL(baseURL, href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}
