package models

import "time"

// AccessRecord is one row of the document access log.
type AccessRecord struct {
	ID         string    `json:"id"`
	Mount      string    `json:"mount"`
	Path       string    `json:"path"`
	Method     string    `json:"method"`
	Status     int       `json:"status"`
	Bytes      int64     `json:"bytes"`
	DurationMS int64     `json:"duration_ms"`
	RemoteAddr string    `json:"remote_addr"`
	CreatedAt  time.Time `json:"created_at"`
}

// AccessSummary aggregates the access log over a window.
type AccessSummary struct {
	Since   time.Time `json:"since"`
	Total   int64     `json:"total"`
	Served  int64     `json:"served"`
	Denied  int64     `json:"denied"`
	Failed  int64     `json:"failed"`
	Bytes   int64     `json:"bytes"`
	Dropped int64     `json:"dropped"`
}
