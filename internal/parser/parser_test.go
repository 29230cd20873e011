package parser_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"flatwatch/internal/model"
	"flatwatch/internal/parser"
)

func newTestParser(url string) *parser.SiteParser {
	cfg := model.SourceConfig{ID: "avito", Kind: "avito", URL: url}
	return parser.NewSiteParser(cfg, parser.NewHTTPFetcher(), parser.AvitoProfile())
}

func TestSiteParser_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(avitoSample))
	}))
	defer srv.Close()

	p := newTestParser(srv.URL)
	listings, skipped, err := p.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(listings) != 1 || skipped != 1 {
		t.Errorf("got %d listings / %d skipped, want 1 / 1", len(listings), skipped)
	}
	if listings[0].SourceID != "avito" {
		t.Errorf("SourceID = %q", listings[0].SourceID)
	}
}

func TestSiteParser_FetchTimeout(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	p := newTestParser(srv.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, _, err := p.Fetch(ctx)
	var ferr *parser.FetchError
	if !errors.As(err, &ferr) {
		t.Fatalf("err = %v, want *FetchError", err)
	}
	if ferr.Kind != parser.KindTimeout {
		t.Errorf("Kind = %q, want %q", ferr.Kind, parser.KindTimeout)
	}
	if ferr.SourceID != "avito" {
		t.Errorf("SourceID = %q", ferr.SourceID)
	}
}

func TestSiteParser_FetchHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	p := newTestParser(srv.URL)
	_, _, err := p.Fetch(context.Background())
	var ferr *parser.FetchError
	if !errors.As(err, &ferr) {
		t.Fatalf("err = %v, want *FetchError", err)
	}
	if ferr.Kind != parser.KindHTTP {
		t.Errorf("Kind = %q, want %q", ferr.Kind, parser.KindHTTP)
	}
}

func TestSiteParser_RetryableAfterFailure(t *testing.T) {
	// Fetch has no side effects, so a failed call can simply be repeated.
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(avitoSample))
	}))
	defer srv.Close()

	p := newTestParser(srv.URL)
	if _, _, err := p.Fetch(context.Background()); err == nil {
		t.Fatal("first Fetch expected error, got nil")
	}
	listings, _, err := p.Fetch(context.Background())
	if err != nil {
		t.Fatalf("second Fetch: %v", err)
	}
	if len(listings) != 1 {
		t.Errorf("second Fetch got %d listings, want 1", len(listings))
	}
}
