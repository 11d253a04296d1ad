package services

import (
	"math"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"property-monitor/models"
	"property-monitor/utils"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// CleanResult is the finalized table plus what was dropped on the way.
type CleanResult struct {
	Listings   []models.Listing
	MissingKey int // no URL or no usable price
	Duplicates int
	Invalid    int // failed schema validation after coercion
}

// Rejected counts records dropped as parse or validation failures.
func (r CleanResult) Rejected() int {
	return r.MissingKey + r.Invalid
}

// CleanListings turns raw records into the canonical table:
//  1. drop records without URL or price
//  2. keep the most recently retrieved record per URL
//  3. coerce fields to canonical form
//  4. leave unknown rooms and size nil, never zero
//
// Rows failing validation are dropped and counted. The output is sorted by
// URL so identical input always gives an identical table.
func CleanListings(listings []models.Listing) CleanResult {
	var res CleanResult
	latest := make(map[string]models.Listing, len(listings))

	for _, l := range listings {
		l.URL = normalizeURL(l.URL)
		if l.URL == "" || l.Price <= 0 || math.IsNaN(l.Price) || math.IsInf(l.Price, 0) {
			res.MissingKey++
			continue
		}

		prev, seen := latest[l.URL]
		if seen {
			res.Duplicates++
			if l.RetrievedAt.Before(prev.RetrievedAt) {
				continue
			}
		}
		latest[l.URL] = l
	}

	cleaned := make([]models.Listing, 0, len(latest))
	for _, l := range latest {
		l = coerce(l)
		if err := validate.Struct(l); err != nil {
			utils.Debug("Dropping invalid listing %s: %v", l.URL, err)
			res.Invalid++
			continue
		}
		cleaned = append(cleaned, l)
	}

	sort.Slice(cleaned, func(i, j int) bool {
		return cleaned[i].URL < cleaned[j].URL
	})
	res.Listings = cleaned

	if res.Rejected() > 0 || res.Duplicates > 0 {
		utils.Warn("Cleaner dropped %d records without URL/price, %d invalid, %d duplicates",
			res.MissingKey, res.Invalid, res.Duplicates)
	}
	return res
}

func coerce(l models.Listing) models.Listing {
	l.Price = math.Round(l.Price*100) / 100
	l.RawPrice = collapse(l.RawPrice)
	l.Location = collapse(l.Location)
	l.Description = collapse(l.Description)
	l.RetrievedAt = l.RetrievedAt.UTC().Truncate(time.Second)

	if l.Rooms != nil && *l.Rooms < 0 {
		l.Rooms = nil
	}
	if l.Size != nil {
		if *l.Size <= 0 || math.IsNaN(*l.Size) {
			l.Size = nil
		} else {
			l.Size = models.FloatPtr(math.Round(*l.Size*10) / 10)
		}
	}
	return l
}

// normalizeURL trims the URL, lower-cases scheme and host and drops the
// fragment. Anything that is not an absolute http(s) URL becomes "".
func normalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	return u.String()
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
