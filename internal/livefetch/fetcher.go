package livefetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/temoto/robotstxt"
)

const (
	maxBodyBytes  = 2 << 20
	robotsTimeout = 5 * time.Second
	robotsHosts   = 512
)

var (
	ErrDisallowed = errors.New("disallowed by robots.txt")
	ErrNotHTML    = errors.New("response is not HTML")
)

// Fetcher downloads HTML with a bounded body size. Robots rules are cached
// per origin; an origin whose robots.txt cannot be read allows everything.
type Fetcher struct {
	client    *http.Client
	userAgent string
	robots    *lru.Cache[string, *robotstxt.Group]
}

func NewFetcher(userAgent string, timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	robots, _ := lru.New[string, *robotstxt.Group](robotsHosts)
	return &Fetcher{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     30 * time.Second,
			},
		},
		userAgent: userAgent,
		robots:    robots,
	}
}

// Search downloads a search results page. Search endpoints are fetched
// without consulting robots.txt.
func (f *Fetcher) Search(ctx context.Context, searchURL string) ([]byte, error) {
	return f.download(ctx, searchURL)
}

// Page downloads an HTML page the origin's robots.txt allows.
func (f *Fetcher) Page(ctx context.Context, pageURL string) ([]byte, error) {
	u, err := url.Parse(pageURL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid url %q", pageURL)
	}
	if group := f.rules(ctx, u); group != nil && !group.Test(u.EscapedPath()) {
		return nil, ErrDisallowed
	}
	return f.download(ctx, pageURL)
}

func (f *Fetcher) download(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned status %d", target, resp.StatusCode)
	}
	if !isHTML(resp.Header.Get("Content-Type")) {
		return nil, ErrNotHTML
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", target, err)
	}
	return body, nil
}

// rules returns the robots group for u's origin, or nil when there is none.
func (f *Fetcher) rules(ctx context.Context, u *url.URL) *robotstxt.Group {
	origin := u.Scheme + "://" + u.Host
	if group, ok := f.robots.Get(origin); ok {
		return group
	}

	var group *robotstxt.Group
	if data := f.loadRobots(ctx, origin+"/robots.txt"); data != nil {
		group = data.FindGroup(f.userAgent)
	}
	f.robots.Add(origin, group)
	return group
}

func (f *Fetcher) loadRobots(ctx context.Context, robotsURL string) *robotstxt.RobotsData {
	ctx, cancel := context.WithTimeout(ctx, robotsTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()

	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		return nil
	}
	return data
}

// isHTML treats a missing content type as HTML.
func isHTML(contentType string) bool {
	if contentType == "" {
		return true
	}
	media, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return media == "text/html" || media == "application/xhtml+xml"
}
