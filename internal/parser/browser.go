package parser

import (
	"context"
	"time"

	"github.com/chromedp/chromedp"
)

// BrowserFetcher renders a page in headless Chrome and returns the resulting
// DOM. Needed for sources that populate listing cards client-side; the
// rendered HTML then flows through the same selector extraction as plain
// HTTP fetches.
type BrowserFetcher struct {
	execPath   string
	settleTime time.Duration
}

// NewBrowserFetcher constructs a fetcher using the system Chrome binary.
func NewBrowserFetcher() *BrowserFetcher {
	return &BrowserFetcher{settleTime: 3 * time.Second}
}

func (b *BrowserFetcher) FetchHTML(ctx context.Context, url string) (string, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(userAgents[0]),
	)
	if b.execPath != "" {
		opts = append(opts, chromedp.ExecPath(b.execPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	// Suppress chromedp log noise
	browserCtx, cancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))
	defer cancel()

	var html string
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(url),
		chromedp.Sleep(b.settleTime),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", err
	}
	return html, nil
}
