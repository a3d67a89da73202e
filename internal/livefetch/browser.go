package livefetch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
)

// BrowserFetcher renders pages in headless Chrome for sites that build
// their content with JavaScript. One browser process is started on first
// use and shared by every render; each render gets its own tab.
type BrowserFetcher struct {
	userAgent string
	settle    time.Duration
	timeout   time.Duration

	mu          sync.Mutex
	allocCtx    context.Context
	allocCancel context.CancelFunc
	tabs        chan struct{}
}

func NewBrowserFetcher(userAgent string) *BrowserFetcher {
	return &BrowserFetcher{
		userAgent: userAgent,
		settle:    500 * time.Millisecond,
		timeout:   15 * time.Second,
		tabs:      make(chan struct{}, 2),
	}
}

func (bf *BrowserFetcher) allocator() context.Context {
	bf.mu.Lock()
	defer bf.mu.Unlock()

	if bf.allocCtx == nil {
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.UserAgent(bf.userAgent),
			chromedp.Flag("disable-downloads", true),
			chromedp.Flag("disable-plugins", true),
			chromedp.Flag("disable-extensions", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.Flag("disable-background-networking", true),
		)
		bf.allocCtx, bf.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	}
	return bf.allocCtx
}

// FetchHTML waits for a free tab, so at most cap(tabs) pages render at once.
func (bf *BrowserFetcher) FetchHTML(ctx context.Context, urlStr string) (string, error) {
	select {
	case bf.tabs <- struct{}{}:
		defer func() { <-bf.tabs }()
	case <-ctx.Done():
		return "", ctx.Err()
	}

	tabCtx, tabCancel := chromedp.NewContext(bf.allocator())
	defer tabCancel()

	tabCtx, cancel := context.WithTimeout(tabCtx, bf.timeout)
	defer cancel()

	// tie the tab to the caller's deadline as well
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var html string
	err := chromedp.Run(tabCtx,
		chromedp.Navigate(urlStr),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(bf.settle),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", fmt.Errorf("browser fetch failed: %w", err)
	}
	return html, nil
}

// Close shuts the shared browser down.
func (bf *BrowserFetcher) Close() {
	bf.mu.Lock()
	defer bf.mu.Unlock()
	if bf.allocCancel != nil {
		bf.allocCancel()
		bf.allocCtx, bf.allocCancel = nil, nil
	}
}
