package service

import (
	"sort"

	"github.com/emedina/gamedepot/internal/model"
)

// regionByCountry is the static country to CDN region table.
var regionByCountry = map[string]string{
	"PE": "south-america",
	"BR": "south-america",
	"AR": "south-america",
	"CL": "south-america",
	"US": "north-america",
	"CA": "north-america",
	"MX": "north-america",
}

// CDN ranks and filters edge servers. Server data is read-mostly and
// treated as immutable after construction, so lookups need no locking.
type CDN struct {
	servers        []model.CDNServer
	fallbackRegion string
}

// NewCDN constructs a selector over the given server set. Countries
// missing from the region table resolve to fallbackRegion.
func NewCDN(servers []model.CDNServer, fallbackRegion string) *CDN {
	return &CDN{
		servers:        append([]model.CDNServer(nil), servers...),
		fallbackRegion: fallbackRegion,
	}
}

// ListServers returns active servers, optionally filtered by region,
// sorted by priority ascending then load ascending.
func (c *CDN) ListServers(region string) []model.CDNServer {
	out := make([]model.CDNServer, 0, len(c.servers))
	for _, s := range c.servers {
		if !s.Active {
			continue
		}
		if region != "" && s.Region != region {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].Load < out[j].Load
	})
	return out
}

// URLsForRegion returns the base URLs of the region's active servers in
// ranking order.
func (c *CDN) URLsForRegion(region string) []string {
	servers := c.ListServers(region)
	urls := make([]string, 0, len(servers))
	for _, s := range servers {
		urls = append(urls, s.BaseURL)
	}
	return urls
}

// ResolveRegion maps a country code to its CDN region.
func (c *CDN) ResolveRegion(country string) string {
	if region, ok := regionByCountry[country]; ok {
		return region
	}
	return c.fallbackRegion
}

// SeedServers returns the reference edge server set.
func SeedServers() []model.CDNServer {
	return []model.CDNServer{
		{
			ID: "cdn-sa-1", Region: "south-america", Country: "BR",
			BaseURL: "https://cdn-sa1.gameplatform.com",
			Priority: 1, Active: true, LatencyMS: 45, Bandwidth: 1000, Load: 25,
		},
		{
			ID: "cdn-sa-2", Region: "south-america", Country: "PE",
			BaseURL: "https://cdn-sa2.gameplatform.com",
			Priority: 2, Active: true, LatencyMS: 38, Bandwidth: 800, Load: 15,
		},
		{
			ID: "cdn-na-1", Region: "north-america", Country: "US",
			BaseURL: "https://cdn-na1.gameplatform.com",
			Priority: 1, Active: true, LatencyMS: 120, Bandwidth: 2000, Load: 45,
		},
	}
}
