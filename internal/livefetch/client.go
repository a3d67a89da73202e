package livefetch

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/sync/errgroup"
)

// Result is one live search hit.
type Result struct {
	Title       string
	URL         string
	Content     string
	PublishedAt time.Time
}

type Config struct {
	SearchURL     string        `yaml:"search_url"`
	UserAgent     string        `yaml:"user_agent"`
	MaxResults    int           `yaml:"max_results"`
	Timeout       time.Duration `yaml:"timeout"`
	Enrich        bool          `yaml:"enrich"`
	EnrichWorkers int           `yaml:"enrich_workers"`
	UseBrowser    bool          `yaml:"use_browser"`
	HostInterval  time.Duration `yaml:"host_interval"`
}

func DefaultConfig() Config {
	return Config{
		SearchURL:     "https://html.duckduckgo.com/html/",
		UserAgent:     "LifeLineBot/1.0",
		MaxResults:    10,
		Timeout:       8 * time.Second,
		Enrich:        true,
		EnrichWorkers: 4,
		HostInterval:  500 * time.Millisecond,
	}
}

// Client searches the web and turns hits into plain-text results.
type Client struct {
	config     Config
	fetcher    *Fetcher
	browser    *BrowserFetcher
	politeness *Politeness
	sanitizer  *bluemonday.Policy
	logger     *slog.Logger
}

func New(config Config, logger *slog.Logger) *Client {
	defaults := DefaultConfig()
	if config.SearchURL == "" {
		config.SearchURL = defaults.SearchURL
	}
	if config.UserAgent == "" {
		config.UserAgent = defaults.UserAgent
	}
	if config.MaxResults <= 0 {
		config.MaxResults = defaults.MaxResults
	}
	if config.EnrichWorkers <= 0 {
		config.EnrichWorkers = defaults.EnrichWorkers
	}
	if logger == nil {
		logger = slog.Default()
	}

	c := &Client{
		config:     config,
		fetcher:    NewFetcher(config.UserAgent, config.Timeout),
		politeness: NewPoliteness(config.HostInterval),
		sanitizer:  bluemonday.StrictPolicy(),
		logger:     logger.With("component", "livefetch"),
	}
	if config.UseBrowser {
		c.browser = NewBrowserFetcher(config.UserAgent)
	}
	return c
}

func (c *Client) Fetch(ctx context.Context, query string) ([]Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []Result{}, nil
	}

	searchURL := c.config.SearchURL + "?q=" + url.QueryEscape(query)
	if err := c.politeness.Wait(ctx, ExtractDomain(searchURL)); err != nil {
		return nil, err
	}

	body, err := c.fetcher.Search(ctx, searchURL)
	if err != nil {
		return nil, err
	}

	results, err := ParseResults(bytes.NewReader(body), c.config.MaxResults)
	if err != nil {
		return nil, fmt.Errorf("failed to parse search results: %w", err)
	}

	for i := range results {
		results[i].Title = c.clean(results[i].Title)
		results[i].Content = c.clean(results[i].Content)
	}

	if c.config.Enrich {
		c.enrichAll(ctx, results)
	}

	c.logger.Debug("live fetch complete", "query", query, "results", len(results))
	return results, nil
}

// enrichAll replaces short snippets with page text where the page allows it.
// Failures keep the original snippet.
func (c *Client) enrichAll(ctx context.Context, results []Result) {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.config.EnrichWorkers)

	for i := range results {
		if len(results[i].Content) >= minContentLength {
			continue
		}
		r := &results[i]
		g.Go(func() error {
			if err := c.enrich(ctx, r); err != nil {
				c.logger.Debug("enrichment skipped", "url", r.URL, "err", err)
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (c *Client) enrich(ctx context.Context, r *Result) error {
	if err := c.politeness.Wait(ctx, ExtractDomain(r.URL)); err != nil {
		return err
	}

	page, err := c.fetchPage(ctx, r.URL)
	if err != nil {
		return err
	}

	if !page.HasSufficientContent() && c.browser != nil {
		rendered, err := c.browser.FetchHTML(ctx, r.URL)
		if err != nil {
			return err
		}
		page, err = ParsePage(strings.NewReader(rendered), r.URL)
		if err != nil {
			return err
		}
	}

	if !page.HasSufficientContent() {
		return fmt.Errorf("insufficient content")
	}

	r.Content = c.clean(strings.TrimSpace(page.Description + " " + page.Content))
	if r.Title == "" {
		r.Title = c.clean(page.Title)
	}
	return nil
}

func (c *Client) fetchPage(ctx context.Context, urlStr string) (*Page, error) {
	body, err := c.fetcher.Page(ctx, urlStr)
	if err != nil {
		return nil, err
	}
	return ParsePage(bytes.NewReader(body), urlStr)
}

func (c *Client) clean(s string) string {
	return collapse(html.UnescapeString(c.sanitizer.Sanitize(s)))
}

// Close releases the headless browser, if one was started.
func (c *Client) Close() {
	if c.browser != nil {
		c.browser.Close()
	}
}
