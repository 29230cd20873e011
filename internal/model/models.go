// Package model defines shared data structures for the flatwatch pipeline.
package model

import "time"

// RawListing holds unprocessed data as extracted by a source parser.
// Field values are whatever the site page carried; nothing is validated yet.
type RawListing struct {
	SourceID   string
	ExternalID string
	Title      string
	RawPrice   string
	URL        string
	Location   string
	Rooms      int
	Area       string
	Attrs      map[string]string
}

// Listing is the canonical, validated apartment record.
// Fingerprint is the dedup identity key; a listing is notified at most once
// per fingerprint across the lifetime of the store.
type Listing struct {
	Fingerprint string
	SourceID    string
	ExternalID  string
	Title       string
	Price       int64 // monthly rent in whole rubles
	URL         string
	Location    string
	Rooms       int
	Area        string
	Attrs       map[string]string
	FirstSeenAt time.Time // set by the store on first insertion
}

// SourceConfig is the per-source polling configuration.
type SourceConfig struct {
	ID          string
	Kind        string // "avito" or "cian"
	URL         string
	Interval    time.Duration
	Enabled     bool
	Fingerprint string // "external_id" (default) or "content"
	Browser     bool   // fetch through headless Chrome instead of plain HTTP
	MaxItems    int
	MinDelay    time.Duration // polite-crawling floor between requests
}
