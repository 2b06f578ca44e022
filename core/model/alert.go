package model

import (
	"time"

	"github.com/google/uuid"
)

// PriorityLevel orders alerts from P1 (critical) to P5 (informational).
type PriorityLevel int

const (
	P1Critical PriorityLevel = iota + 1
	P2High
	P3Moderate
	P4Standard
	P5Info
)

// String returns a human-readable representation of the priority level.
func (p PriorityLevel) String() string {
	switch p {
	case P1Critical:
		return "P1_CRITICAL"
	case P2High:
		return "P2_HIGH"
	case P3Moderate:
		return "P3_MODERATE"
	case P4Standard:
		return "P4_STANDARD"
	case P5Info:
		return "P5_INFO"
	default:
		return "unknown"
	}
}

// Valid reports whether the level is within the P1..P5 range.
func (p PriorityLevel) Valid() bool { return p >= P1Critical && p <= P5Info }

// RiskLevel classifies an outbreak cluster by its size.
type RiskLevel int

const (
	RiskLow RiskLevel = iota
	RiskMedium
	RiskHigh
)

func (r RiskLevel) String() string {
	switch r {
	case RiskHigh:
		return "HIGH"
	case RiskMedium:
		return "MEDIUM"
	default:
		return "LOW"
	}
}

// Alert is the classified, prioritized outcome of one field report.
// It is immutable once emitted; status transitions applied downstream are a
// display-layer concern.
type Alert struct {
	ID           string        `json:"id"`
	Disease      string        `json:"disease"`
	Location     string        `json:"location"`
	ReporterID   string        `json:"reporter_id"`
	Mortality    int           `json:"mortality"`
	Priority     PriorityLevel `json:"priority"`
	ClusterBoost bool          `json:"cluster_boost"`
	CreatedAt    time.Time     `json:"created_at"`
}

// NewAlert builds an alert for the given report with a fresh identifier.
func NewAlert(r FieldReport, p PriorityLevel, boosted bool, now time.Time) Alert {
	return Alert{
		ID:           uuid.NewString(),
		Disease:      r.Disease,
		Location:     r.Location,
		ReporterID:   r.ReporterID,
		Mortality:    r.Mortality,
		Priority:     p,
		ClusterBoost: boosted,
		CreatedAt:    now,
	}
}

// IsCritical reports whether the alert requires an immediate response.
func (a Alert) IsCritical() bool { return a.Priority == P1Critical }
