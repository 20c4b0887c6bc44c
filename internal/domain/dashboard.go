package domain

import "time"

// TrendingGame is a catalog item merged with its live viewer total.
// LiveViewers is never negative; unresolvable games report 0.
type TrendingGame struct {
	ID          int     `json:"id"`
	Name        string  `json:"name"`
	Image       *string `json:"image"`
	LiveViewers int     `json:"liveViewers"`
}

// ChartPoint is a single labelled value on a dashboard chart.
type ChartPoint struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Value int    `json:"value"`
}

type (
	GenreCount   = ChartPoint
	PlatformStat = ChartPoint
)

// Overview bundles all dashboard views for a single round trip.
type Overview struct {
	Trending    []TrendingGame `json:"trending"`
	Genres      []GenreCount   `json:"genres"`
	Platforms   []PlatformStat `json:"platforms"`
	GeneratedAt time.Time      `json:"generatedAt"`
}
