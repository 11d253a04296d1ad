package services

import (
	"reflect"
	"testing"
	"time"

	"property-monitor/models"
)

var t0 = time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)

func TestCleanListings_DropsMissingKeyFields(t *testing.T) {
	res := CleanListings([]models.Listing{
		{URL: "https://www.rightmove.co.uk/properties/1", Price: 250000, RetrievedAt: t0},
		{URL: "", Price: 100000, RetrievedAt: t0},
		{URL: "https://www.rightmove.co.uk/properties/2", Price: 0, RawPrice: "POA", RetrievedAt: t0},
		{URL: "not a url", Price: 100000, RetrievedAt: t0},
	})

	if len(res.Listings) != 1 {
		t.Fatalf("Got %d listings, expected 1", len(res.Listings))
	}
	if res.MissingKey != 3 || res.Rejected() != 3 {
		t.Errorf("Got MissingKey=%d Rejected=%d, expected 3", res.MissingKey, res.Rejected())
	}
}

func TestCleanListings_DedupKeepsMostRecent(t *testing.T) {
	url := "https://www.rightmove.co.uk/properties/1"
	res := CleanListings([]models.Listing{
		{URL: url, Price: 200000, RetrievedAt: t0.Add(time.Minute)},
		{URL: url + "#/?channel=RES_BUY", Price: 250000, RetrievedAt: t0.Add(2 * time.Minute)},
		{URL: "HTTPS://WWW.RIGHTMOVE.CO.UK/properties/1", Price: 150000, RetrievedAt: t0},
	})

	if len(res.Listings) != 1 {
		t.Fatalf("Got %d listings, expected 1 per URL", len(res.Listings))
	}
	if res.Listings[0].Price != 250000 {
		t.Errorf("Got price %v, expected the most recently retrieved 250000", res.Listings[0].Price)
	}
	if res.Duplicates != 2 {
		t.Errorf("Got %d duplicates, expected 2", res.Duplicates)
	}
}

func TestCleanListings_AtMostOneRowPerURL(t *testing.T) {
	var raw []models.Listing
	for i := 0; i < 500; i++ {
		raw = append(raw, models.Listing{
			URL:         "https://example.com/p/" + string(rune('a'+i%7)),
			Price:       float64(100000 + i),
			RetrievedAt: t0.Add(time.Duration(i) * time.Second),
		})
	}

	res := CleanListings(raw)
	seen := make(map[string]bool)
	for _, l := range res.Listings {
		if seen[l.URL] {
			t.Fatalf("duplicate URL %s in output", l.URL)
		}
		seen[l.URL] = true
	}
	if len(res.Listings) != 7 {
		t.Errorf("Got %d listings, expected 7", len(res.Listings))
	}
}

func TestCleanListings_CoercesAndKeepsNulls(t *testing.T) {
	res := CleanListings([]models.Listing{{
		URL:         "  https://www.rightmove.co.uk/properties/9  ",
		Price:       249999.999,
		Location:    "  12   Evergreen Terrace,\n Springfield ",
		Rooms:       nil,
		Size:        models.FloatPtr(79.98953),
		RetrievedAt: time.Date(2026, 10, 18, 10, 0, 0, 123456789, time.FixedZone("BST", 3600)),
	}})

	if len(res.Listings) != 1 {
		t.Fatalf("Got %d listings, expected 1", len(res.Listings))
	}
	l := res.Listings[0]
	if l.URL != "https://www.rightmove.co.uk/properties/9" {
		t.Errorf("Got URL %q", l.URL)
	}
	if l.Price != 250000 {
		t.Errorf("Got price %v, expected 250000", l.Price)
	}
	if l.Location != "12 Evergreen Terrace, Springfield" {
		t.Errorf("Got location %q", l.Location)
	}
	if l.Rooms != nil {
		t.Errorf("unknown rooms should stay nil, got %d", *l.Rooms)
	}
	if l.Size == nil || *l.Size != 80.0 {
		t.Errorf("Got size %v, expected 80.0", l.Size)
	}
	want := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	if !l.RetrievedAt.Equal(want) || l.RetrievedAt.Location() != time.UTC {
		t.Errorf("Got retrieved_at %v, expected %v", l.RetrievedAt, want)
	}
}

func TestCleanListings_ValidationFailuresAreCounted(t *testing.T) {
	res := CleanListings([]models.Listing{
		{URL: "https://example.com/ok", Price: 1000, RetrievedAt: t0},
		{URL: "https://example.com/rooms", Price: 1000, Rooms: models.IntPtr(250), RetrievedAt: t0},
		{URL: "https://example.com/time", Price: 1000},
	})

	if len(res.Listings) != 1 {
		t.Fatalf("Got %d listings, expected 1", len(res.Listings))
	}
	if res.Invalid != 2 {
		t.Errorf("Got %d invalid, expected 2", res.Invalid)
	}
}

func TestCleanListings_Idempotent(t *testing.T) {
	raw := []models.Listing{
		{URL: "https://example.com/b", Price: 300000, Rooms: models.IntPtr(2), RetrievedAt: t0},
		{URL: "https://example.com/a", Price: 200000, Size: models.FloatPtr(55), RetrievedAt: t0},
		{URL: "https://example.com/c", Price: 0, RetrievedAt: t0},
	}

	first := CleanListings(raw)
	second := CleanListings(raw)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("cleaning the same input twice differs:\n%+v\n%+v", first, second)
	}

	again := CleanListings(first.Listings)
	if !reflect.DeepEqual(first.Listings, again.Listings) {
		t.Error("cleaning a clean table should not change it")
	}
	if first.Listings[0].URL != "https://example.com/a" {
		t.Errorf("output should be sorted by URL, got %s first", first.Listings[0].URL)
	}
}

func TestCleanListings_Empty(t *testing.T) {
	res := CleanListings(nil)
	if res.Listings == nil || len(res.Listings) != 0 {
		t.Errorf("expected an empty, non-nil table, got %#v", res.Listings)
	}
}
