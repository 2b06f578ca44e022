// Package triage scores incoming reports against the national disease
// severity matrix and keeps pending alerts ordered by urgency.
package triage

import (
	"strings"

	"github.com/ldsn-cm/ldsn/core/model"
)

// SeverityTable maps a disease name to its base priority level. Lookups are
// case-insensitive.
type SeverityTable map[string]model.PriorityLevel

// DefaultSeverityTable is the MINEPIA priority matrix for Cameroon's
// priority zoonotic diseases.
func DefaultSeverityTable() SeverityTable {
	return SeverityTable{
		"anthrax":                           model.P1Critical,
		"highly pathogenic avian influenza": model.P1Critical,
		"ebola":                             model.P1Critical,
		"peste des petits ruminants":        model.P2High,
		"foot and mouth disease":            model.P2High,
		"rabies":                            model.P2High,
		"brucellosis":                       model.P2High,
		"contagious bovine pleuropneumonia": model.P3Moderate,
		"newcastle disease":                 model.P3Moderate,
		"african swine fever":               model.P3Moderate,
		"lumpy skin disease":                model.P3Moderate,
		"sheep pox":                         model.P4Standard,
		"goat pox":                          model.P4Standard,
		"helminthosis":                      model.P5Info,
		"tick-borne diseases":               model.P5Info,
	}
}

// BaseLevel returns the table level for a disease, or P3 for diseases the
// table does not know.
func (t SeverityTable) BaseLevel(disease string) model.PriorityLevel {
	if p, ok := t[strings.ToLower(strings.TrimSpace(disease))]; ok && p.Valid() {
		return p
	}
	return model.P3Moderate
}

// Scorer computes alert priorities from the severity table and the
// configured mortality escalation threshold.
type Scorer struct {
	table              SeverityTable
	mortalityThreshold int
}

// NewScorer builds a scorer. A nil table falls back to the default matrix;
// a non-positive threshold disables mortality escalation.
func NewScorer(table SeverityTable, mortalityThreshold int) *Scorer {
	if table == nil {
		table = DefaultSeverityTable()
	}
	return &Scorer{table: table, mortalityThreshold: mortalityThreshold}
}

// ComputePriority applies the scoring rule: severity-table base level,
// escalated one level when mortality exceeds the threshold, and one further
// level when the report's location sits in an active HIGH-risk cluster.
// The level never goes below P1.
func (s *Scorer) ComputePriority(disease string, mortality int, clusterBoost bool) model.PriorityLevel {
	p := s.table.BaseLevel(disease)
	if s.mortalityThreshold > 0 && mortality > s.mortalityThreshold {
		p = escalate(p)
	}
	if clusterBoost {
		p = escalate(p)
	}
	return p
}

func escalate(p model.PriorityLevel) model.PriorityLevel {
	if p > model.P1Critical {
		return p - 1
	}
	return model.P1Critical
}
