package rightmove

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"property-monitor/config"
	"property-monitor/models"
	"property-monitor/utils"
)

// ErrNoListings means the document held no property cards: the markup
// changed or the portal served an error or interstitial page.
var ErrNoListings = errors.New("no listing cards found")

const sqFtToSqM = 0.09290304

var (
	numberPattern = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?`)
	sizePattern   = regexp.MustCompile(`(?i)(\d[\d,]*(?:\.\d+)?)\s*(sq\.?\s*ft|sqft|ft²|ft2|sq\.?\s*m|sqm|m²|m2)`)
)

// ParseResult holds the listings recovered from one page and the number
// of cards that lacked a mandatory element.
type ParseResult struct {
	Listings []models.Listing
	Failures int
}

// Parser extracts listings from search result pages.
type Parser struct {
	sel  config.Selectors
	base *url.URL
}

func NewParser(sel config.Selectors, portalURL string) (*Parser, error) {
	base, err := url.Parse(portalURL)
	if err != nil {
		return nil, fmt.Errorf("invalid portal url %q: %w", portalURL, err)
	}
	return &Parser{sel: sel, base: base}, nil
}

// Parse reads one HTML document. A card missing its price or link element
// counts as a failure; a price, room count or size that does not convert
// leaves that field empty instead.
func (p *Parser) Parse(r io.Reader, retrievedAt time.Time) (ParseResult, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return ParseResult{}, fmt.Errorf("parse html: %w", err)
	}

	cards := doc.Find(p.sel.Card)
	if cards.Length() == 0 {
		return ParseResult{}, ErrNoListings
	}

	var result ParseResult
	cards.Each(func(i int, card *goquery.Selection) {
		listing, ok := p.parseCard(card, retrievedAt)
		if !ok {
			result.Failures++
			return
		}
		result.Listings = append(result.Listings, listing)
	})

	return result, nil
}

func (p *Parser) parseCard(card *goquery.Selection, retrievedAt time.Time) (models.Listing, bool) {
	priceEl := card.Find(p.sel.Price).First()
	if priceEl.Length() == 0 {
		utils.Debug("Price element not found for card")
		return models.Listing{}, false
	}

	href, _ := card.Find(p.sel.Link).First().Attr("href")
	link := p.resolve(href)
	if link == "" {
		utils.Debug("Link element not found or invalid for card")
		return models.Listing{}, false
	}

	rawPrice := cleanText(priceEl.Text())
	listing := models.Listing{
		URL:         link,
		RawPrice:    rawPrice,
		Price:       ParsePrice(rawPrice),
		Location:    cleanText(card.Find(p.sel.Address).First().Text()),
		Description: cleanText(card.Find(p.sel.Description).First().Text()),
		RetrievedAt: retrievedAt.UTC(),
	}

	if el := card.Find(p.sel.Bedrooms).First(); el.Length() > 0 {
		listing.Rooms = ParseRooms(el.Text())
	}
	if el := card.Find(p.sel.Size).First(); el.Length() > 0 {
		listing.Size = ParseSize(el.Text())
	}

	return listing, true
}

// resolve makes href absolute against the portal and drops the fragment,
// which the portal uses for tracking only.
func (p *Parser) resolve(href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return ""
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if !u.IsAbs() {
		u = p.base.ResolveReference(u)
	}
	u.Fragment = ""
	return u.String()
}

// ParsePrice returns the first number in raw with currency symbols and
// thousand separators removed, or 0 when there is none.
func ParsePrice(raw string) float64 {
	m := numberPattern.FindString(raw)
	if m == "" {
		return 0
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m, ",", ""), 64)
	if err != nil || v <= 0 {
		return 0
	}
	return v
}

// ParseRooms returns the bedroom count, 0 for studios, nil when unknown.
func ParseRooms(raw string) *int {
	raw = strings.TrimSpace(raw)
	if strings.Contains(strings.ToLower(raw), "studio") {
		return models.IntPtr(0)
	}
	m := numberPattern.FindString(raw)
	if m == "" {
		return nil
	}
	v, err := strconv.Atoi(strings.ReplaceAll(m, ",", ""))
	if err != nil {
		return nil
	}
	return &v
}

// ParseSize returns the floor area in square metres, converting square
// feet, or nil when raw carries no recognised unit.
func ParseSize(raw string) *float64 {
	m := sizePattern.FindStringSubmatch(raw)
	if m == nil {
		return nil
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
	if err != nil || v <= 0 {
		return nil
	}
	unit := strings.ToLower(m[2])
	if strings.Contains(unit, "ft") {
		v *= sqFtToSqM
	}
	return &v
}

// cleanText collapses runs of whitespace.
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
