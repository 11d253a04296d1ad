package services

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"property-monitor/models"
)

// Bucket is one equal-width price bin; Upper is exclusive except for the
// last bucket.
type Bucket struct {
	Lower float64 `yaml:"lower"`
	Upper float64 `yaml:"upper"`
	Count int     `yaml:"count"`
}

type PropertySummary struct {
	URL      string  `yaml:"url"`
	Price    float64 `yaml:"price"`
	Location string  `yaml:"location"`
	Rooms    *int    `yaml:"rooms,omitempty"`
}

type Report struct {
	RunID              string             `yaml:"run_id,omitempty"`
	TotalListings      int                `yaml:"total_listings"`
	AveragePrice       float64            `yaml:"average_price"`
	MedianPrice        float64            `yaml:"median_price"`
	MinPrice           float64            `yaml:"min_price"`
	MaxPrice           float64            `yaml:"max_price"`
	AveragePricePerSqM float64            `yaml:"average_price_per_sqm"`
	ListingsWithSize   int                `yaml:"listings_with_size"`
	ListingsWithRooms  int                `yaml:"listings_with_rooms"`
	MostExpensive      []PropertySummary  `yaml:"most_expensive"`
	ListingsByLocation map[string]int     `yaml:"listings_by_location"`
	AveragePriceByRoom map[string]float64 `yaml:"average_price_by_rooms"`
	Histogram          []Bucket           `yaml:"price_histogram"`
}

// GenerateReport summarizes a finalized table. It is a pure function of
// its input.
func GenerateReport(listings []models.Listing, bins int) Report {
	report := Report{
		TotalListings:      len(listings),
		ListingsByLocation: make(map[string]int),
		AveragePriceByRoom: make(map[string]float64),
	}
	if len(listings) == 0 {
		return report
	}

	var (
		prices     = make([]float64, 0, len(listings))
		priceSum   float64
		perSqMSum  float64
		roomSums   = make(map[string]float64)
		roomCounts = make(map[string]int)
	)

	for _, l := range listings {
		prices = append(prices, l.Price)
		priceSum += l.Price

		report.ListingsByLocation[townOf(l.Location)]++

		if l.Size != nil && *l.Size > 0 {
			perSqMSum += l.Price / *l.Size
			report.ListingsWithSize++
		}

		key := "unknown"
		if l.Rooms != nil {
			key = strconv.Itoa(*l.Rooms)
			report.ListingsWithRooms++
		}
		roomSums[key] += l.Price
		roomCounts[key]++
	}

	sort.Float64s(prices)
	report.MinPrice = prices[0]
	report.MaxPrice = prices[len(prices)-1]
	report.AveragePrice = priceSum / float64(len(prices))
	report.MedianPrice = median(prices)
	if report.ListingsWithSize > 0 {
		report.AveragePricePerSqM = perSqMSum / float64(report.ListingsWithSize)
	}
	for k, sum := range roomSums {
		report.AveragePriceByRoom[k] = sum / float64(roomCounts[k])
	}
	report.Histogram = Histogram(prices, bins)

	byPrice := make([]models.Listing, len(listings))
	copy(byPrice, listings)
	sort.SliceStable(byPrice, func(i, j int) bool {
		if byPrice[i].Price == byPrice[j].Price {
			return byPrice[i].URL < byPrice[j].URL
		}
		return byPrice[i].Price > byPrice[j].Price
	})
	if len(byPrice) > 5 {
		byPrice = byPrice[:5]
	}
	for _, l := range byPrice {
		report.MostExpensive = append(report.MostExpensive, PropertySummary{
			URL:      l.URL,
			Price:    l.Price,
			Location: l.Location,
			Rooms:    l.Rooms,
		})
	}

	return report
}

// Histogram buckets values into bins of equal width between their minimum
// and maximum. When all values are equal there is a single bucket.
func Histogram(values []float64, bins int) []Bucket {
	if len(values) == 0 || bins < 1 {
		return nil
	}

	lo, hi := values[0], values[0]
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if lo == hi {
		return []Bucket{{Lower: lo, Upper: hi, Count: len(values)}}
	}

	width := (hi - lo) / float64(bins)
	buckets := make([]Bucket, bins)
	for i := range buckets {
		buckets[i].Lower = lo + float64(i)*width
		buckets[i].Upper = lo + float64(i+1)*width
	}
	buckets[bins-1].Upper = hi

	for _, v := range values {
		i := int((v - lo) / width)
		if i >= bins {
			i = bins - 1
		}
		buckets[i].Count++
	}
	return buckets
}

func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// townOf returns the last comma-separated part of an address, which is
// where the portal puts the town.
func townOf(location string) string {
	location = strings.TrimSpace(location)
	if location == "" {
		return "Unknown"
	}
	parts := strings.Split(location, ",")
	town := strings.TrimSpace(parts[len(parts)-1])
	if town == "" {
		return "Unknown"
	}
	return town
}

func PrintReport(w io.Writer, report Report) {
	p := message.NewPrinter(language.BritishEnglish)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "┌──────────────────────────────────────────────────────────────┐")
	fmt.Fprintln(w, "│                  Property Market Insights                    │")
	fmt.Fprintln(w, "├───────────────────────────────┬──────────────────────────────┤")
	fmt.Fprintf(w, "│ %-29s │ %-28d │\n", "Total Listings", report.TotalListings)
	fmt.Fprintf(w, "│ %-29s │ %-28s │\n", "Average Price", p.Sprintf("£%.0f", report.AveragePrice))
	fmt.Fprintf(w, "│ %-29s │ %-28s │\n", "Median Price", p.Sprintf("£%.0f", report.MedianPrice))
	fmt.Fprintf(w, "│ %-29s │ %-28s │\n", "Minimum Price", p.Sprintf("£%.0f", report.MinPrice))
	fmt.Fprintf(w, "│ %-29s │ %-28s │\n", "Maximum Price", p.Sprintf("£%.0f", report.MaxPrice))
	fmt.Fprintf(w, "│ %-29s │ %-28s │\n", "Average Price per m²", p.Sprintf("£%.0f", report.AveragePricePerSqM))
	fmt.Fprintln(w, "└───────────────────────────────┴──────────────────────────────┘")

	if len(report.MostExpensive) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "┌─────┬──────────────────────────────────────────────┬────────────────┐")
		fmt.Fprintln(w, "│ #   │ Most Expensive Properties                    │ Price          │")
		fmt.Fprintln(w, "├─────┼──────────────────────────────────────────────┼────────────────┤")
		for i, l := range report.MostExpensive {
			fmt.Fprintf(w, "│ %-3d │ %-44s │ %-14s │\n", i+1, truncateText(townOf(l.Location)+" "+l.URL, 44), p.Sprintf("£%.0f", l.Price))
		}
		fmt.Fprintln(w, "└─────┴──────────────────────────────────────────────┴────────────────┘")
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "┌──────────────────────────────────────────────┬───────────────┐")
	fmt.Fprintln(w, "│ Listings per Location                        │ Count         │")
	fmt.Fprintln(w, "├──────────────────────────────────────────────┼───────────────┤")
	for _, loc := range sortedKeys(report.ListingsByLocation) {
		fmt.Fprintf(w, "│ %-44s │ %-13d │\n", truncateText(loc, 44), report.ListingsByLocation[loc])
	}
	fmt.Fprintln(w, "└──────────────────────────────────────────────┴───────────────┘")
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func truncateText(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}
