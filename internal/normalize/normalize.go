// Package normalize converts raw parsed listings into canonical Listing
// records: it validates required fields, normalizes the price to whole
// rubles, and computes the dedup fingerprint.
package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"flatwatch/internal/model"
)

// Validation failure reasons.
const (
	ReasonMissingIdentity  = "missing_identity"
	ReasonMissingPrice     = "missing_price"
	ReasonPriceUnparseable = "price_unparseable"
	ReasonPriceImplausible = "price_implausible"
)

// Both sources quote monthly rent in whole rubles; anything above this is a
// parsing artifact (e.g. a sale price leaking into a rental page).
const maxPlausiblePrice = 200_000

// ValidationError reports a single malformed listing. The listing is
// skipped and counted; it never reaches the store or the dispatcher.
type ValidationError struct {
	Reason string
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("invalid listing: %s", e.Reason)
	}
	return fmt.Sprintf("invalid listing: %s (%s)", e.Reason, e.Detail)
}

// Strategy selects how the dedup fingerprint is derived.
type Strategy string

const (
	// ByExternalID hashes (source_id, canonical external_id). Default.
	ByExternalID Strategy = "external_id"
	// ByContent hashes (source_id, canonical title, price, canonical area).
	// For sources whose external ids are absent or unstable.
	ByContent Strategy = "content"
)

// StrategyFor maps a source config value to a Strategy, defaulting to
// ByExternalID for the empty string.
func StrategyFor(s string) (Strategy, error) {
	switch s {
	case "", string(ByExternalID):
		return ByExternalID, nil
	case string(ByContent):
		return ByContent, nil
	}
	return "", fmt.Errorf("unknown fingerprint strategy %q", s)
}

var digitsRe = regexp.MustCompile(`\d+`)

// Normalize validates raw and returns the canonical Listing.
// FirstSeenAt is left zero; the store sets it on first insertion.
func Normalize(raw model.RawListing, strategy Strategy) (model.Listing, error) {
	price, err := ParsePrice(raw.RawPrice)
	if err != nil {
		return model.Listing{}, err
	}

	switch strategy {
	case ByExternalID:
		if canonical(raw.ExternalID) == "" {
			return model.Listing{}, &ValidationError{Reason: ReasonMissingIdentity, Detail: "external id is empty"}
		}
	case ByContent:
		if canonical(raw.Title) == "" {
			return model.Listing{}, &ValidationError{Reason: ReasonMissingIdentity, Detail: "title is empty"}
		}
	}

	l := model.Listing{
		SourceID:   raw.SourceID,
		ExternalID: raw.ExternalID,
		Title:      strings.TrimSpace(raw.Title),
		Price:      price,
		URL:        strings.TrimSpace(raw.URL),
		Location:   strings.TrimSpace(raw.Location),
		Rooms:      raw.Rooms,
		Area:       strings.TrimSpace(raw.Area),
		Attrs:      raw.Attrs,
	}
	l.Fingerprint = Fingerprint(l, strategy)
	return l, nil
}

// ParsePrice extracts a whole-ruble price from a raw site string such as
// "25 000 ₽/мес.". All digit runs are concatenated, so thousands separators
// (spaces, non-breaking spaces, commas) are tolerated. A string with no
// digits is unparseable, never defaulted to zero.
func ParsePrice(raw string) (int64, error) {
	if strings.TrimSpace(raw) == "" {
		return 0, &ValidationError{Reason: ReasonMissingPrice}
	}
	digits := strings.Join(digitsRe.FindAllString(raw, -1), "")
	if digits == "" {
		return 0, &ValidationError{Reason: ReasonPriceUnparseable, Detail: raw}
	}
	price, err := strconv.ParseInt(digits, 10, 64)
	if err != nil || price > maxPlausiblePrice {
		return 0, &ValidationError{Reason: ReasonPriceImplausible, Detail: raw}
	}
	return price, nil
}

// Fingerprint computes the dedup identity key for l under the given
// strategy. Identity inputs are canonicalized (lowercased, whitespace
// collapsed) so that casing and spacing variants of the same listing
// collapse to one stored record.
func Fingerprint(l model.Listing, strategy Strategy) string {
	h := sha256.New()
	h.Write([]byte(l.SourceID))
	h.Write([]byte{0})
	if strategy == ByContent {
		h.Write([]byte(canonical(l.Title)))
		h.Write([]byte{0})
		h.Write([]byte(strconv.FormatInt(l.Price, 10)))
		h.Write([]byte{0})
		h.Write([]byte(canonical(l.Area)))
	} else {
		h.Write([]byte(canonical(l.ExternalID)))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// canonical lowercases s and collapses all internal whitespace.
func canonical(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
