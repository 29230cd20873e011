package normalize_test

import (
	"errors"
	"testing"

	"flatwatch/internal/model"
	"flatwatch/internal/normalize"
)

func TestParsePrice(t *testing.T) {
	tests := []struct {
		raw  string
		want int64
	}{
		{"25 000 ₽", 25000},
		{"25 000 ₽/мес.", 25000},
		{"1,200", 1200},
		{"30000", 30000},
		{"₽ 18 500 в месяц", 18500},
	}
	for _, tt := range tests {
		got, err := normalize.ParsePrice(tt.raw)
		if err != nil {
			t.Errorf("ParsePrice(%q) returned unexpected error: %v", tt.raw, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParsePrice(%q) = %d, want %d", tt.raw, got, tt.want)
		}
	}
}

func TestParsePrice_Invalid(t *testing.T) {
	tests := []struct {
		raw    string
		reason string
	}{
		{"", normalize.ReasonMissingPrice},
		{"   ", normalize.ReasonMissingPrice},
		{"договорная", normalize.ReasonPriceUnparseable},
		{"free", normalize.ReasonPriceUnparseable},
		{"999 999 999 ₽", normalize.ReasonPriceImplausible},
	}
	for _, tt := range tests {
		_, err := normalize.ParsePrice(tt.raw)
		if err == nil {
			t.Errorf("ParsePrice(%q) expected error, got nil", tt.raw)
			continue
		}
		var verr *normalize.ValidationError
		if !errors.As(err, &verr) {
			t.Errorf("ParsePrice(%q) error is %T, want *ValidationError", tt.raw, err)
			continue
		}
		if verr.Reason != tt.reason {
			t.Errorf("ParsePrice(%q) reason = %q, want %q", tt.raw, verr.Reason, tt.reason)
		}
	}
}

func TestNormalize_RejectsMissingIdentity(t *testing.T) {
	raw := model.RawListing{SourceID: "avito", RawPrice: "20 000 ₽", Title: "Flat"}
	_, err := normalize.Normalize(raw, normalize.ByExternalID)
	var verr *normalize.ValidationError
	if !errors.As(err, &verr) || verr.Reason != normalize.ReasonMissingIdentity {
		t.Fatalf("Normalize without external id: err = %v, want missing_identity", err)
	}
}

func TestNormalize_ContentStrategyRequiresTitle(t *testing.T) {
	raw := model.RawListing{SourceID: "avito", ExternalID: "1", RawPrice: "20 000 ₽"}
	_, err := normalize.Normalize(raw, normalize.ByContent)
	var verr *normalize.ValidationError
	if !errors.As(err, &verr) || verr.Reason != normalize.ReasonMissingIdentity {
		t.Fatalf("content-strategy Normalize without title: err = %v, want missing_identity", err)
	}
}

func TestFingerprint_CollapsesCasingAndWhitespace(t *testing.T) {
	a := model.RawListing{SourceID: "avito", ExternalID: "  ABC 123 ", Title: "Flat", RawPrice: "20 000"}
	b := model.RawListing{SourceID: "avito", ExternalID: "abc  123", Title: "Flat", RawPrice: "20 000"}

	la, err := normalize.Normalize(a, normalize.ByExternalID)
	if err != nil {
		t.Fatalf("Normalize(a): %v", err)
	}
	lb, err := normalize.Normalize(b, normalize.ByExternalID)
	if err != nil {
		t.Fatalf("Normalize(b): %v", err)
	}
	if la.Fingerprint != lb.Fingerprint {
		t.Errorf("fingerprints differ for casing/whitespace variants: %s vs %s", la.Fingerprint, lb.Fingerprint)
	}
}

func TestFingerprint_DistinguishesSourcesAndIDs(t *testing.T) {
	base := model.RawListing{SourceID: "avito", ExternalID: "123", Title: "Flat", RawPrice: "20 000"}
	otherID := base
	otherID.ExternalID = "124"
	otherSource := base
	otherSource.SourceID = "cian"

	lb, _ := normalize.Normalize(base, normalize.ByExternalID)
	li, _ := normalize.Normalize(otherID, normalize.ByExternalID)
	ls, _ := normalize.Normalize(otherSource, normalize.ByExternalID)

	if lb.Fingerprint == li.Fingerprint {
		t.Error("different external ids produced the same fingerprint")
	}
	if lb.Fingerprint == ls.Fingerprint {
		t.Error("different sources produced the same fingerprint")
	}
}

func TestFingerprint_ContentStrategy(t *testing.T) {
	a := model.RawListing{SourceID: "cian", Title: "3-комн. квартира, 65 м²", RawPrice: "28 000", Area: "65 м²"}
	b := model.RawListing{SourceID: "cian", Title: "3-КОМН.  квартира, 65 м²", RawPrice: "28 000", Area: "65  м²"}
	c := model.RawListing{SourceID: "cian", Title: "3-комн. квартира, 65 м²", RawPrice: "29 000", Area: "65 м²"}

	la, _ := normalize.Normalize(a, normalize.ByContent)
	lb, _ := normalize.Normalize(b, normalize.ByContent)
	lc, _ := normalize.Normalize(c, normalize.ByContent)

	if la.Fingerprint != lb.Fingerprint {
		t.Error("content fingerprints differ for equivalent title/price/area")
	}
	if la.Fingerprint == lc.Fingerprint {
		t.Error("content fingerprints equal despite different prices")
	}
}

func TestStrategyFor(t *testing.T) {
	if s, err := normalize.StrategyFor(""); err != nil || s != normalize.ByExternalID {
		t.Errorf("StrategyFor(\"\") = %v, %v; want ByExternalID", s, err)
	}
	if s, err := normalize.StrategyFor("content"); err != nil || s != normalize.ByContent {
		t.Errorf("StrategyFor(\"content\") = %v, %v; want ByContent", s, err)
	}
	if _, err := normalize.StrategyFor("bogus"); err == nil {
		t.Error("StrategyFor(\"bogus\") expected error, got nil")
	}
}
