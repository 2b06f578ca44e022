package mortality

import "gonum.org/v1/gonum/stat"

// Standard day windows for the Cameroon surveillance calendar.
// Dry season runs February through May, the duumol rains July through
// September. Bounds are inclusive day indices.
const (
	DrySeasonStart   = 31
	DrySeasonEnd     = 151
	RainySeasonStart = 181
	RainySeasonEnd   = 273
)

// SeasonTotals summarizes mortality per season window.
type SeasonTotals struct {
	Dry   int64 `json:"dry"`
	Rainy int64 `json:"rainy"`
	Total int64 `json:"total"`
}

// SeasonTotals returns the dry-season, rainy-season and overall totals.
func (l *Ledger) SeasonTotals() SeasonTotals {
	dry, _ := l.RangeTotal(DrySeasonStart, DrySeasonEnd)
	rainy, _ := l.RangeTotal(RainySeasonStart, RainySeasonEnd)
	return SeasonTotals{Dry: dry, Rainy: rainy, Total: l.Total()}
}

// WindowStats describes the distribution of daily counts inside a window.
type WindowStats struct {
	Days   int     `json:"days"`
	Total  int64   `json:"total"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Peak   int64   `json:"peak"`
}

// WindowStats computes per-day distribution statistics over [start, end].
// The window is scanned once; use it for analytics, not on the hot path.
func (l *Ledger) WindowStats(start, end int) (WindowStats, error) {
	if _, err := l.RangeTotal(start, end); err != nil {
		return WindowStats{}, err
	}
	days := make([]float64, 0, end-start+1)
	var total, peak int64
	for d := start; d <= end; d++ {
		v, _ := l.Day(d)
		days = append(days, float64(v))
		total += v
		if v > peak {
			peak = v
		}
	}
	mean, std := stat.MeanStdDev(days, nil)
	return WindowStats{
		Days:   len(days),
		Total:  total,
		Mean:   mean,
		StdDev: std,
		Peak:   peak,
	}, nil
}
