// Package reports exposes the surveillance engine over HTTP for dashboards
// and district health officers.
package reports

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/ldsn-cm/ldsn/core/faults"
	"github.com/ldsn-cm/ldsn/core/model"
	"github.com/ldsn-cm/ldsn/core/service"
)

// NewMux builds the API routing table around the triage service.
func NewMux(svc *service.Service) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/api/reports", newSubmitHandler(svc))
	mux.Handle("/api/diseases/suggest", newSuggestHandler(svc))
	mux.Handle("/api/mortality/range", newMortalityRangeHandler(svc))
	mux.Handle("/api/mortality/seasons", newMortalitySeasonsHandler(svc))
	mux.Handle("/api/clusters", newClustersHandler(svc))
	mux.Handle("/api/clusters/link", newLinkHandler(svc))
	mux.Handle("/api/alerts", newAlertsHandler(svc))
	mux.Handle("/api/alerts/next", newNextAlertHandler(svc))
	mux.Handle("/api/route", newRouteHandler(svc))
	mux.Handle("/api/route/impact", newImpactHandler(svc))
	mux.Handle("/api/stats", newStatsHandler(svc))
	mux.Handle("/api/health", newHealthHandler(svc))
	return mux
}

// newSubmitHandler accepts a field report via POST /api/reports and returns
// the emitted alert.
func newSubmitHandler(svc *service.Service) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var report model.FieldReport
		if err := json.NewDecoder(r.Body).Decode(&report); err != nil {
			http.Error(w, "invalid payload: "+err.Error(), http.StatusBadRequest)
			return
		}
		alert, err := svc.SubmitReport(r.Context(), report)
		if err != nil {
			writeError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(alert)
	})
}

func newSuggestHandler(svc *service.Service) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		limit := queryInt(r, "limit", 10)
		names := svc.Suggest(r.URL.Query().Get("prefix"), limit)
		if names == nil {
			names = []string{}
		}
		writeJSON(w, names)
	})
}

func newMortalityRangeHandler(svc *service.Service) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		start := queryInt(r, "start", 0)
		end := queryInt(r, "end", -1)
		total, err := svc.MortalityRange(start, end)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, map[string]any{"start": start, "end": end, "total": total})
	})
}

func newMortalitySeasonsHandler(svc *service.Service) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, svc.MortalityBySeason())
	})
}

// newClustersHandler lists all clusters, or the cluster of one location when
// the location query parameter is set.
func newClustersHandler(svc *service.Service) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if loc := r.URL.Query().Get("location"); loc != "" {
			group, err := svc.ClusterOf(loc)
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, group)
			return
		}
		writeJSON(w, svc.Clusters())
	})
}

func newLinkHandler(svc *service.Service) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req struct {
			A string `json:"a"`
			B string `json:"b"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid payload: "+err.Error(), http.StatusBadRequest)
			return
		}
		merged, err := svc.LinkLocations(req.A, req.B)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, map[string]bool{"merged": merged})
	})
}

func newAlertsHandler(svc *service.Service) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		level := model.PriorityLevel(queryInt(r, "level", 0))
		alerts := svc.Alerts(level, queryInt(r, "limit", 0))
		if alerts == nil {
			alerts = []model.Alert{}
		}
		writeJSON(w, alerts)
	})
}

// newNextAlertHandler pops the most urgent pending alert.
func newNextAlertHandler(svc *service.Service) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		alert, err := svc.NextAlert()
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, alert)
	})
}

func newRouteHandler(svc *service.Service) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		q := r.URL.Query()
		rainy, _ := strconv.ParseBool(q.Get("rainy"))
		route, err := svc.RouteBetween(r.Context(), q.Get("start"), q.Get("end"), rainy)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, route)
	})
}

func newImpactHandler(svc *service.Service) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		q := r.URL.Query()
		imp, err := svc.SeasonalImpact(r.Context(), q.Get("start"), q.Get("end"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, imp)
	})
}

func newStatsHandler(svc *service.Service) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, svc.Stats())
	})
}

func newHealthHandler(svc *service.Service) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		status := "ok"
		code := http.StatusOK
		if !svc.Healthy() {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"status":       status,
			"connectivity": svc.Connectivity().String(),
		})
	})
}

// writeError maps domain sentinels to HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, faults.ErrValidation):
		code = http.StatusBadRequest
	case errors.Is(err, faults.ErrNotFound), errors.Is(err, faults.ErrEmptyQueue):
		code = http.StatusNotFound
	case errors.Is(err, faults.ErrUnreachable):
		code = http.StatusUnprocessableEntity
	case errors.Is(err, faults.ErrOffline):
		code = http.StatusServiceUnavailable
	}
	http.Error(w, err.Error(), code)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
