package model

import (
	"strings"
	"time"
)

// FieldReport is a single disease observation submitted from a surveillance
// station or the web form.
type FieldReport struct {
	Disease    string    `json:"disease"`
	Location   string    `json:"location"`
	ReporterID string    `json:"reporter_id"`
	Mortality  int       `json:"mortality"`
	Species    string    `json:"species,omitempty"`
	Notes      string    `json:"notes,omitempty"`
	Coords     *GeoPoint `json:"coords,omitempty"`
	ReceivedAt time.Time `json:"received_at"`
}

// GeoPoint carries optional GPS coordinates attached to a report.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Normalize trims and lower-cases the fields used as lookup keys.
// Location names keep their case; disease names are matched case-insensitively.
func (r *FieldReport) Normalize() {
	r.Disease = strings.ToLower(strings.TrimSpace(r.Disease))
	r.Location = strings.TrimSpace(r.Location)
	r.ReporterID = strings.TrimSpace(r.ReporterID)
}

// ReportState tracks a report through the triage pipeline.
type ReportState int

const (
	StateReceived ReportState = iota
	StateValidated
	StateClassified
	StateClustered
	StateQueued
	StateHandedOff
)

// String returns a human-readable representation of the pipeline state.
func (s ReportState) String() string {
	switch s {
	case StateReceived:
		return "received"
	case StateValidated:
		return "validated"
	case StateClassified:
		return "classified"
	case StateClustered:
		return "clustered"
	case StateQueued:
		return "queued"
	case StateHandedOff:
		return "handed_off"
	default:
		return "unknown"
	}
}

// ConnState is the process-wide connectivity state. Transitions are driven
// by an external signal, never computed internally.
type ConnState int

const (
	Online ConnState = iota
	Offline
)

func (c ConnState) String() string {
	if c == Offline {
		return "offline"
	}
	return "online"
}
