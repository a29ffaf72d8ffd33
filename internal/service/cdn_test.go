package service

import (
	"testing"

	"github.com/emedina/gamedepot/internal/model"
)

func testServers() []model.CDNServer {
	return []model.CDNServer{
		{ID: "sa-slow", Region: "south-america", BaseURL: "https://sa-slow", Priority: 2, Active: true, Load: 80},
		{ID: "sa-best", Region: "south-america", BaseURL: "https://sa-best", Priority: 1, Active: true, Load: 40},
		{ID: "sa-idle", Region: "south-america", BaseURL: "https://sa-idle", Priority: 1, Active: true, Load: 10},
		{ID: "sa-down", Region: "south-america", BaseURL: "https://sa-down", Priority: 1, Active: false, Load: 0},
		{ID: "na-1", Region: "north-america", BaseURL: "https://na-1", Priority: 1, Active: true, Load: 5},
	}
}

func TestCDN_ListServers_FilterAndSort(t *testing.T) {
	t.Parallel()
	c := NewCDN(testServers(), "south-america")

	out := c.ListServers("south-america")
	if len(out) != 3 {
		t.Fatalf("want 3 active south-america servers, got %d", len(out))
	}
	wantOrder := []string{"sa-idle", "sa-best", "sa-slow"}
	for i, id := range wantOrder {
		if out[i].ID != id {
			t.Fatalf("position %d: want %s, got %s", i, id, out[i].ID)
		}
	}
	for _, s := range out {
		if !s.Active || s.Region != "south-america" {
			t.Fatalf("filter let through %+v", s)
		}
	}
}

func TestCDN_ListServers_NoRegionReturnsAllActive(t *testing.T) {
	t.Parallel()
	c := NewCDN(testServers(), "south-america")
	out := c.ListServers("")
	if len(out) != 4 {
		t.Fatalf("want 4 active servers, got %d", len(out))
	}
}

func TestCDN_URLsForRegion(t *testing.T) {
	t.Parallel()
	c := NewCDN(testServers(), "south-america")
	urls := c.URLsForRegion("north-america")
	if len(urls) != 1 || urls[0] != "https://na-1" {
		t.Fatalf("unexpected urls: %v", urls)
	}
}

func TestCDN_ResolveRegion(t *testing.T) {
	t.Parallel()
	c := NewCDN(testServers(), "south-america")

	cases := map[string]string{
		"PE": "south-america",
		"BR": "south-america",
		"US": "north-america",
		"MX": "north-america",
		"JP": "south-america", // unknown country falls back
		"":   "south-america",
	}
	for country, want := range cases {
		if got := c.ResolveRegion(country); got != want {
			t.Fatalf("country %q: want %s, got %s", country, want, got)
		}
	}
}
