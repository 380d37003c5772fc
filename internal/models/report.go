package models

import "time"

type Group struct {
	Key        string  `json:"key"`
	Label      string  `json:"label"`
	Total      float64 `json:"total"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

type WeekBucket struct {
	WeekStart time.Time `json:"week_start"`
	Total     float64   `json:"total"`
	Count     int       `json:"count"`
}

type PeriodMode string

const (
	PeriodAll   PeriodMode = "ALL"
	PeriodMonth PeriodMode = "MONTH"
	PeriodYear  PeriodMode = "YEAR"
)

// Period selects a time window. Month is 0-indexed (0 = January) and is only
// meaningful in MONTH mode; Year is ignored in ALL mode.
type Period struct {
	Mode  PeriodMode `json:"mode"`
	Month int        `json:"month"`
	Year  int        `json:"year"`
}

// Result is the view-model produced by one pipeline run.
type Result struct {
	Period         Period       `json:"period"`
	Weekly         []WeekBucket `json:"weekly"`
	ByCollaborator []Group      `json:"by_collaborator"`
	ByZone         []Group      `json:"by_zone"`
	GrandTotal     float64      `json:"grand_total"`
	RecordCount    int          `json:"record_count"`
	SkippedCount   int          `json:"skipped_count"`
}
