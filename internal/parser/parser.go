// Package parser implements per-source listing extraction. Each source site
// gets a selector profile; fetching is pluggable (plain HTTP or a headless
// browser for sources that render listings client-side).
package parser

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"flatwatch/internal/model"
)

// FetchError kinds.
const (
	KindHTTP    = "http"
	KindTimeout = "timeout"
	KindParse   = "parse"
)

// FetchError is a source-level fetch failure. The scheduler retries it via
// backoff; it never aborts other sources.
type FetchError struct {
	SourceID string
	Kind     string
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s (%s): %v", e.SourceID, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Parser fetches raw listing data for one source. Fetch respects the
// caller-supplied deadline and has no side effects beyond network I/O, so
// invocations are safely retryable. Partial pages do not fail the fetch:
// whatever can be extracted is returned together with a count of skipped
// (unparseable) entries.
type Parser interface {
	SourceID() string
	Fetch(ctx context.Context) (listings []model.RawListing, skipped int, err error)
}

// PageFetcher retrieves the HTML of a listing page.
type PageFetcher interface {
	FetchHTML(ctx context.Context, url string) (string, error)
}

// SiteParser combines a page fetcher with a site selector profile.
type SiteParser struct {
	cfg     model.SourceConfig
	fetcher PageFetcher
	profile Profile

	limiter *rateLimiter
}

// New builds the parser for a source config, selecting the selector profile
// by kind and the fetcher by the browser flag.
func New(cfg model.SourceConfig) (*SiteParser, error) {
	profile, err := ProfileFor(cfg.Kind)
	if err != nil {
		return nil, err
	}
	var fetcher PageFetcher
	if cfg.Browser {
		fetcher = NewBrowserFetcher()
	} else {
		fetcher = NewHTTPFetcher()
	}
	return NewSiteParser(cfg, fetcher, profile), nil
}

// NewSiteParser builds a parser with an explicit fetcher and profile.
func NewSiteParser(cfg model.SourceConfig, fetcher PageFetcher, profile Profile) *SiteParser {
	return &SiteParser{
		cfg:     cfg,
		fetcher: fetcher,
		profile: profile,
		limiter: newRateLimiter(cfg.MinDelay),
	}
}

func (p *SiteParser) SourceID() string { return p.cfg.ID }

// Fetch retrieves the source page and extracts whatever listings it can.
func (p *SiteParser) Fetch(ctx context.Context) ([]model.RawListing, int, error) {
	if err := p.limiter.wait(ctx); err != nil {
		return nil, 0, &FetchError{SourceID: p.cfg.ID, Kind: KindTimeout, Err: err}
	}

	html, err := p.fetcher.FetchHTML(ctx, p.cfg.URL)
	if err != nil {
		return nil, 0, &FetchError{SourceID: p.cfg.ID, Kind: classify(err), Err: err}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, 0, &FetchError{SourceID: p.cfg.ID, Kind: KindParse, Err: err}
	}

	listings, skipped := Extract(doc, p.cfg.ID, p.profile, p.cfg.MaxItems)
	return listings, skipped, nil
}

func classify(err error) string {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return KindTimeout
	}
	return KindHTTP
}

// rateLimiter enforces a minimum delay between requests to one source,
// with the wait abortable through the context.
type rateLimiter struct {
	minDelay time.Duration
	last     time.Time
}

func newRateLimiter(minDelay time.Duration) *rateLimiter {
	return &rateLimiter{minDelay: minDelay}
}

func (r *rateLimiter) wait(ctx context.Context) error {
	if r.minDelay <= 0 {
		return nil
	}
	elapsed := time.Since(r.last)
	if elapsed < r.minDelay {
		t := time.NewTimer(r.minDelay - elapsed)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
	r.last = time.Now()
	return nil
}
