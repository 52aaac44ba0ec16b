package http

import (
	"net/http"
	"strings"

	"leandash/internal/core"
)

type entryRequest struct {
	Horizon string    `json:"horizon"`
	Date    string    `json:"date"`
	Target  FlexFloat `json:"target"`
	Value   FlexFloat `json:"value"`
	Comment string    `json:"comment"`
}

func (s *Server) handleUpdateEntry(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req entryRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	horizon := core.Horizon(strings.TrimSpace(req.Horizon))
	if horizon == "" {
		horizon = core.ShortTerm
	}

	saved, err := s.charts.UpdateEntry(r.Context(), id, horizon, core.ChartEntry{
		Date:    strings.TrimSpace(req.Date),
		Target:  req.Target.Float64(),
		Value:   req.Value.Float64(),
		Comment: sanitizeInput(req.Comment),
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	s.invalidateChart(r.Context(), id)
	writeJSON(w, http.StatusOK, saved)
}

func (s *Server) handleImportEntries(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	horizon, err := queryHorizon(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	defer r.Body.Close()
	report, err := s.charts.ImportEntries(r.Context(), id, horizon, r.Body)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	s.invalidateChart(r.Context(), id)
	writeJSON(w, http.StatusOK, report)
}

type distributeRequest struct {
	Horizon string    `json:"horizon"`
	Month   string    `json:"month"`
	Total   FlexFloat `json:"total"`
}

func (s *Server) handleDistributeTargets(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req distributeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	horizon := core.Horizon(strings.TrimSpace(req.Horizon))
	if horizon == "" {
		horizon = core.ShortTerm
	}

	out, err := s.charts.DistributeTargets(r.Context(), id, horizon, strings.TrimSpace(req.Month), req.Total.Float64())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	s.invalidateChart(r.Context(), id)
	writeJSON(w, http.StatusOK, map[string]any{"entries": out})
}
