package domain

import "time"

type ScoredProperty struct {
	Rank     int     `json:"rank"`
	Property string  `json:"property"`
	Score    float64 `json:"score"`
}

type Recommendation struct {
	Target    string           `json:"target"`
	Requested string           `json:"requested"`
	Exact     bool             `json:"exact"`
	Weights   []float64        `json:"weights"`
	Results   []ScoredProperty `json:"results"`
}

type NearbyProperty struct {
	Rank           int     `json:"rank"`
	Property       string  `json:"property"`
	DistanceMeters float64 `json:"distance_m"`
	DistanceKM     float64 `json:"distance_km"`
}

type NearbyResult struct {
	Location  string           `json:"location"`
	Requested string           `json:"requested"`
	Exact     bool             `json:"exact"`
	RadiusKM  float64          `json:"radius_km"`
	Results   []NearbyProperty `json:"results"`
}

type SpaceSummary struct {
	Name          string  `json:"name"`
	DefaultWeight float64 `json:"default_weight"`
}

type CatalogSummary struct {
	Properties []string       `json:"properties"`
	Locations  []string       `json:"locations"`
	Spaces     []SpaceSummary `json:"spaces"`
	Size       int            `json:"size"`
	Source     string         `json:"source,omitempty"`
	LoadedAt   time.Time      `json:"loaded_at"`
}
