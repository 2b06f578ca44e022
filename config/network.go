package config

import (
	"fmt"

	"github.com/ldsn-cm/ldsn/core/route"
)

// LocationSeed declares one corridor network vertex.
type LocationSeed struct {
	Name    string  `json:"name"`
	Region  string  `json:"region"`
	Station bool    `json:"station"`
	Risk    float64 `json:"risk"`
}

// CorridorSeed declares one directed corridor. Region tags the edge for
// seasonal weighting; unpaved tracks carry their region, paved roads are
// left untagged and keep their dry weight year round.
type CorridorSeed struct {
	From       string  `json:"from"`
	To         string  `json:"to"`
	DistanceKM float64 `json:"distance_km"`
	Region     string  `json:"region"`
}

// LinkSeed declares one epidemiological connection between two locations,
// such as a shared water point, a livestock market or a border corridor.
// Linked locations start out in the same outbreak cluster.
type LinkSeed struct {
	A string `json:"a"`
	B string `json:"b"`
}

// NetworkConfig seeds the transhumance corridor network.
type NetworkConfig struct {
	// Seasons maps region names to their rainy-season weight multiplier.
	Seasons   map[string]float64 `json:"seasons"`
	Locations []LocationSeed     `json:"locations"`
	Corridors []CorridorSeed     `json:"corridors"`
	Links     []LinkSeed         `json:"links"`
}

// SetDefaults loads the national corridor network when no seed is given.
func (c *NetworkConfig) SetDefaults() {
	if len(c.Seasons) == 0 {
		c.Seasons = map[string]float64{"Adamawa": 2.5}
	}
	if len(c.Locations) == 0 && len(c.Corridors) == 0 {
		def := DefaultNetwork()
		c.Locations = def.Locations
		c.Corridors = def.Corridors
		if len(c.Links) == 0 {
			c.Links = def.Links
		}
	}
}

// Validate checks corridor weights, seasonal multipliers and link seeds.
func (c NetworkConfig) Validate() error {
	for region, m := range c.Seasons {
		if m <= 0 {
			return fmt.Errorf("seasonal multiplier for %s must be positive", region)
		}
	}
	for _, e := range c.Corridors {
		if e.From == "" || e.To == "" {
			return fmt.Errorf("corridor endpoints are required")
		}
		if e.DistanceKM <= 0 {
			return fmt.Errorf("corridor %s -> %s has non-positive distance", e.From, e.To)
		}
	}
	for _, l := range c.Links {
		if l.A == "" || l.B == "" {
			return fmt.Errorf("link endpoints are required")
		}
	}
	return nil
}

// Build constructs the route network from the seed.
func (c NetworkConfig) Build() *route.Network {
	n := route.NewNetwork(route.SeasonalTable(c.Seasons))
	for _, l := range c.Locations {
		n.AddLocation(l.Name, l.Region, l.Station, l.Risk)
	}
	for _, e := range c.Corridors {
		n.AddEdge(e.From, e.To, e.DistanceKM, e.Region)
	}
	return n
}

// DefaultNetwork is the Cameroon transhumance network: Adamawa herding
// tracks, the Adamawa to Far North migration corridor, West region roads
// and the cross-regional highways. Unpaved Adamawa tracks double as rainy
// season bottlenecks and carry the Adamawa region tag.
func DefaultNetwork() NetworkConfig {
	return NetworkConfig{
		Seasons: map[string]float64{"Adamawa": 2.5},
		Locations: []LocationSeed{
			{Name: "Ngaoundéré", Region: "Adamawa", Station: true},
			{Name: "Tibati", Region: "Adamawa"},
			{Name: "Mbé", Region: "Adamawa"},
			{Name: "Maroua", Region: "Far North", Station: true},
			{Name: "Kousseri", Region: "Far North", Station: true},
			{Name: "Mora", Region: "Far North"},
			{Name: "Logone Floodplain", Region: "Far North"},
			{Name: "Mindif", Region: "Far North"},
			{Name: "Maga", Region: "Far North"},
			{Name: "Bafoussam", Region: "West", Station: true},
			{Name: "Bamenda", Region: "Northwest", Station: true},
			{Name: "Dschang", Region: "West", Station: true},
			{Name: "Bamendjou", Region: "West"},
			{Name: "Yaoundé", Region: "Centre", Station: true},
			{Name: "Edea", Region: "Centre"},
			{Name: "Garoua", Region: "North", Station: true},
			{Name: "Bertoua", Region: "East", Station: true},
		},
		Corridors: []CorridorSeed{
			// Adamawa tracks, unpaved
			{From: "Ngaoundéré", To: "Tibati", DistanceKM: 80, Region: "Adamawa"},
			{From: "Tibati", To: "Mbé", DistanceKM: 60, Region: "Adamawa"},
			{From: "Mbé", To: "Ngaoundéré", DistanceKM: 70, Region: "Adamawa"},
			// Adamawa to Far North migration corridor
			{From: "Ngaoundéré", To: "Maroua", DistanceKM: 150, Region: "Adamawa"},
			{From: "Maroua", To: "Logone Floodplain", DistanceKM: 45},
			{From: "Ngaoundéré", To: "Garoua", DistanceKM: 200, Region: "Adamawa"},
			// Far North
			{From: "Maroua", To: "Kousseri", DistanceKM: 120},
			{From: "Maroua", To: "Mora", DistanceKM: 60},
			{From: "Mora", To: "Mindif", DistanceKM: 30},
			{From: "Mindif", To: "Logone Floodplain", DistanceKM: 40},
			{From: "Maroua", To: "Maga", DistanceKM: 90},
			{From: "Kousseri", To: "Maga", DistanceKM: 70},
			// West region
			{From: "Bafoussam", To: "Bamenda", DistanceKM: 80},
			{From: "Bafoussam", To: "Dschang", DistanceKM: 50},
			{From: "Bamenda", To: "Dschang", DistanceKM: 45},
			{From: "Bafoussam", To: "Bamendjou", DistanceKM: 35},
			{From: "Bamendjou", To: "Dschang", DistanceKM: 40},
			// Cross-regional highways
			{From: "Bafoussam", To: "Yaoundé", DistanceKM: 300},
			{From: "Yaoundé", To: "Ngaoundéré", DistanceKM: 450},
			{From: "Yaoundé", To: "Maroua", DistanceKM: 520},
			{From: "Yaoundé", To: "Bertoua", DistanceKM: 350},
			{From: "Garoua", To: "Maroua", DistanceKM: 180},
			{From: "Bertoua", To: "Ngaoundéré", DistanceKM: 280},
			{From: "Yaoundé", To: "Edea", DistanceKM: 120},
			{From: "Bafoussam", To: "Edea", DistanceKM: 180},
		},
		// Known epidemiological connections: shared water points and
		// grazing grounds within a region, plus the livestock markets
		// linking regions along the migration routes.
		Links: []LinkSeed{
			{A: "Ngaoundéré", B: "Tibati"},
			{A: "Ngaoundéré", B: "Mbé"},
			{A: "Tibati", B: "Mbé"},
			{A: "Maroua", B: "Kousseri"},
			{A: "Maroua", B: "Mora"},
			{A: "Kousseri", B: "Mora"},
			{A: "Mora", B: "Mindif"},
			{A: "Bafoussam", B: "Bamenda"},
			{A: "Bafoussam", B: "Dschang"},
			{A: "Bamenda", B: "Dschang"},
			{A: "Ngaoundéré", B: "Maroua"},
			{A: "Bafoussam", B: "Yaoundé"},
		},
	}
}
