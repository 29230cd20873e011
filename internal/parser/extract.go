package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"flatwatch/internal/model"
)

// Profile holds the CSS selectors for one listing site. Selector slices are
// ordered fallbacks: sites shuffle their markup often, so older selectors
// stay in the list behind the current ones.
type Profile struct {
	Item    string   // listing container
	Title   []string // title element (usually also the link)
	Link    []string // anchor carrying the listing URL
	Price   []string
	Address []string
	Params  []string // element with area / rooms summary text
	IDAttr  string   // container attribute with the site's listing id, if any
	BaseURL string   // prefix for relative hrefs
}

// ProfileFor returns the selector profile for a source kind.
func ProfileFor(kind string) (Profile, error) {
	switch kind {
	case "avito":
		return AvitoProfile(), nil
	case "cian":
		return CianProfile(), nil
	}
	return Profile{}, fmt.Errorf("unknown source kind %q", kind)
}

// AvitoProfile matches the Avito search results markup.
func AvitoProfile() Profile {
	return Profile{
		Item:    `[data-marker="item"]`,
		Title:   []string{`[data-marker="item-title"]`, `h3 a`},
		Link:    []string{`[data-marker="item-title"]`, `h3 a`, `a[href*="/kvartiry/"]`},
		Price:   []string{`[data-marker="item-price"]`, `.price-text`},
		Address: []string{`[data-marker="item-address"]`, `.item-address`, `.geo-georeferences-item__content`},
		Params:  []string{`[data-marker="item-specific-params"]`, `.item-params`},
		IDAttr:  "data-item-id",
		BaseURL: "https://www.avito.ru",
	}
}

// CianProfile matches the Cian search results markup.
func CianProfile() Profile {
	return Profile{
		Item:    `[data-name="CardComponent"]`,
		Title:   []string{`[data-mark="OfferTitle"]`, `a[href*="/rent/flat/"]`},
		Link:    []string{`a[href*="/rent/flat/"]`},
		Price:   []string{`[data-mark="MainPrice"]`},
		Address: []string{`[data-name="GeoLabel"]`, `[data-mark="GeoLabel"]`, `[data-name="AddressContainer"]`},
		Params:  []string{`[data-mark="OfferSummary"]`},
		BaseURL: "https://www.cian.ru",
	}
}

var (
	// \b is ASCII-only in Go regexps, so the bare "к" form spells out its
	// own right boundary instead.
	roomsPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(\d+)\s*-?\s*комн`),
		regexp.MustCompile(`(\d+)\s*-?\s*к(?:[\s.,]|$)`),
	}
	areaRe    = regexp.MustCompile(`(\d+(?:[.,]\d+)?)\s*(?:м²|кв\.?\s*м)`)
	urlDigits = regexp.MustCompile(`(\d{5,})`)
)

// Extract pulls listings out of a parsed results page. Entries missing a
// title, link, or price are skipped and counted rather than failing the
// page; limit > 0 caps the number of items inspected.
func Extract(doc *goquery.Document, sourceID string, p Profile, limit int) ([]model.RawListing, int) {
	var listings []model.RawListing
	skipped := 0

	doc.Find(p.Item).EachWithBreak(func(i int, item *goquery.Selection) bool {
		if limit > 0 && i >= limit {
			return false
		}

		title := firstText(item, p.Title)
		href := firstAttr(item, p.Link, "href")
		price := firstText(item, p.Price)
		if title == "" || href == "" || price == "" {
			skipped++
			return true
		}

		url := href
		if strings.HasPrefix(url, "/") {
			url = p.BaseURL + url
		}

		externalID := ""
		if p.IDAttr != "" {
			externalID = strings.TrimSpace(item.AttrOr(p.IDAttr, ""))
		}
		if externalID == "" {
			externalID = idFromURL(url)
		}

		text := item.Text()
		listings = append(listings, model.RawListing{
			SourceID:   sourceID,
			ExternalID: externalID,
			Title:      title,
			RawPrice:   price,
			URL:        url,
			Location:   firstText(item, p.Address),
			Rooms:      extractRooms(title + " " + text),
			Area:       extractArea(firstText(item, p.Params), text),
		})
		return true
	})

	return listings, skipped
}

// firstText returns the trimmed text of the first selector that matches.
func firstText(item *goquery.Selection, selectors []string) string {
	for _, sel := range selectors {
		if s := strings.TrimSpace(item.Find(sel).First().Text()); s != "" {
			return s
		}
	}
	return ""
}

// firstAttr returns the named attribute from the first matching selector.
func firstAttr(item *goquery.Selection, selectors []string, attr string) string {
	for _, sel := range selectors {
		if v, ok := item.Find(sel).First().Attr(attr); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// idFromURL extracts the numeric listing id embedded in the URL, falling
// back to the full URL when no id run is present.
func idFromURL(url string) string {
	if m := urlDigits.FindString(url); m != "" {
		return m
	}
	return url
}

// extractRooms pulls the room count from title or card text ("3-комн", "2к").
func extractRooms(text string) int {
	text = strings.ToLower(text)
	for _, re := range roomsPatterns {
		m := re.FindStringSubmatch(text)
		if len(m) < 2 {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err == nil && n >= 1 && n <= 10 {
			return n
		}
	}
	return 0
}

// extractArea finds a plausible floor area, preferring the params element
// over the card's full text. Values outside 10–500 m² are page noise.
func extractArea(params, fullText string) string {
	for _, text := range []string{params, fullText} {
		for _, m := range areaRe.FindAllStringSubmatch(text, -1) {
			v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64)
			if err == nil && v >= 10 && v <= 500 {
				return m[1] + " м²"
			}
		}
	}
	return ""
}
