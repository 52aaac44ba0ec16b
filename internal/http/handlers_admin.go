package http

import (
	"net/http"

	"leandash/internal/core"
	"leandash/internal/storage"
)

// --- services ---

type serviceRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleListServices(w http.ResponseWriter, r *http.Request) {
	out, err := s.store.ListServices(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateService(w http.ResponseWriter, r *http.Request) {
	var req serviceRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	name := sanitizeInput(req.Name)
	if name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	svc, err := s.store.CreateService(r.Context(), name)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, svc)
}

func (s *Server) handleGetService(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	svc, err := s.store.GetService(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, svc)
}

func (s *Server) handleUpdateService(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req serviceRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	name := sanitizeInput(req.Name)
	if name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	svc, err := s.store.UpdateService(r.Context(), id, name)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, svc)
}

func (s *Server) handleDeleteService(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.store.DeleteService(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- teams ---

type teamRequest struct {
	ServiceID int64  `json:"service_id"`
	Name      string `json:"name"`
}

func (s *Server) handleListTeams(w http.ResponseWriter, r *http.Request) {
	out, err := s.store.ListTeams(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateTeam(w http.ResponseWriter, r *http.Request) {
	var req teamRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	name := sanitizeInput(req.Name)
	if name == "" || req.ServiceID < 1 {
		writeError(w, http.StatusBadRequest, "service_id and name are required")
		return
	}
	team, err := s.store.CreateTeam(r.Context(), req.ServiceID, name)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, team)
}

func (s *Server) handleGetTeam(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	team, err := s.store.GetTeam(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, team)
}

func (s *Server) handleUpdateTeam(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req teamRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	name := sanitizeInput(req.Name)
	if name == "" || req.ServiceID < 1 {
		writeError(w, http.StatusBadRequest, "service_id and name are required")
		return
	}
	team, err := s.store.UpdateTeam(r.Context(), id, req.ServiceID, name)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, team)
}

func (s *Server) handleDeleteTeam(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.store.DeleteTeam(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- users ---

type userRequest struct {
	TeamID *int64 `json:"team_id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Role   string `json:"role"`
}

func (r userRequest) toUser(id int64) (storage.User, bool) {
	name := sanitizeInput(r.Name)
	email := sanitizeInput(r.Email)
	if name == "" || email == "" {
		return storage.User{}, false
	}
	role := sanitizeInput(r.Role)
	if role == "" {
		role = "user"
	}
	return storage.User{ID: id, TeamID: r.TeamID, Name: name, Email: email, Role: role}, true
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	out, err := s.store.ListUsers(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	user, ok := req.toUser(0)
	if !ok {
		writeError(w, http.StatusBadRequest, "name and email are required")
		return
	}
	created, err := s.store.CreateUser(r.Context(), user)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	user, err := s.store.GetUser(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req userRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	user, ok := req.toUser(id)
	if !ok {
		writeError(w, http.StatusBadRequest, "name and email are required")
		return
	}
	updated, err := s.store.UpdateUser(r.Context(), user)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.store.DeleteUser(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- bundles ---

type bundleRequest struct {
	TeamID int64  `json:"team_id"`
	Name   string `json:"name"`
	Icon   string `json:"icon"`
}

func (s *Server) handleListBundles(w http.ResponseWriter, r *http.Request) {
	out, err := s.store.ListBundles(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateBundle(w http.ResponseWriter, r *http.Request) {
	var req bundleRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	name := sanitizeInput(req.Name)
	if name == "" || req.TeamID < 1 {
		writeError(w, http.StatusBadRequest, "team_id and name are required")
		return
	}
	bundle, err := s.store.CreateBundle(r.Context(), req.TeamID, name, sanitizeInput(req.Icon))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, bundle)
}

func (s *Server) handleGetBundle(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	bundle, err := s.store.GetBundle(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bundle)
}

func (s *Server) handleUpdateBundle(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req bundleRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	name := sanitizeInput(req.Name)
	if name == "" || req.TeamID < 1 {
		writeError(w, http.StatusBadRequest, "team_id and name are required")
		return
	}
	bundle, err := s.store.UpdateBundle(r.Context(), storage.Bundle{
		ID: id, TeamID: req.TeamID, Name: name, Icon: sanitizeInput(req.Icon),
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bundle)
}

func (s *Server) handleDeleteBundle(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.store.DeleteBundle(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	s.bundleCache.DeletePrefix(bundleCachePrefix(id))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListBundleCharts(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := s.store.GetBundle(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	charts, err := s.store.ListChartsByBundle(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, charts)
}

// --- charts ---

type chartRequest struct {
	BundleID         int64      `json:"bundle_id"`
	Name             string     `json:"name"`
	UXComponent      string     `json:"ux_component"`
	Periodicity      string     `json:"periodicity"`
	IsCumulative     bool       `json:"is_cumulative"`
	ShortTarget      FlexFloat  `json:"short_target"`
	LongTarget       FlexFloat  `json:"long_target"`
	NbDecimal        int        `json:"nb_decimal"`
	DistributionMode string     `json:"distribution_mode"`
	Min              *FlexFloat `json:"min"`
	Max              *FlexFloat `json:"max"`
}

func (req chartRequest) toChart(id int64) (storage.Chart, error) {
	cfg := core.ChartConfig{
		Periodicity:      core.Periodicity(req.Periodicity),
		IsCumulative:     req.IsCumulative,
		ShortTarget:      req.ShortTarget.Float64(),
		LongTarget:       req.LongTarget.Float64(),
		NbDecimal:        req.NbDecimal,
		DistributionMode: core.DistributionMode(req.DistributionMode),
	}
	if cfg.Periodicity == "" {
		cfg.Periodicity = core.Daily
	}
	if cfg.DistributionMode == "" {
		cfg.DistributionMode = core.Flat
	}
	if req.Min != nil {
		v := req.Min.Float64()
		cfg.Min = &v
	}
	if req.Max != nil {
		v := req.Max.Float64()
		cfg.Max = &v
	}
	if err := cfg.Validate(); err != nil {
		return storage.Chart{}, err
	}

	ux := sanitizeInput(req.UXComponent)
	if ux == "" {
		ux = "StandardChart"
	}
	return storage.Chart{
		ID:          id,
		BundleID:    req.BundleID,
		Name:        sanitizeInput(req.Name),
		UXComponent: ux,
		Config:      cfg,
	}, nil
}

func (s *Server) handleListCharts(w http.ResponseWriter, r *http.Request) {
	out, err := s.store.ListCharts(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateChart(w http.ResponseWriter, r *http.Request) {
	var req chartRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	chart, err := req.toChart(0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if chart.Name == "" || chart.BundleID < 1 {
		writeError(w, http.StatusBadRequest, "bundle_id and name are required")
		return
	}
	created, err := s.store.CreateChart(r.Context(), chart)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetChart(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	chart, err := s.store.GetChart(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, chart)
}

func (s *Server) handleUpdateChart(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req chartRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	chart, err := req.toChart(id)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if chart.Name == "" || chart.BundleID < 1 {
		writeError(w, http.StatusBadRequest, "bundle_id and name are required")
		return
	}
	updated, err := s.store.UpdateChart(r.Context(), chart)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	// Configuration changes alter how series render.
	s.invalidateChart(r.Context(), id)
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteChart(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.invalidateChart(r.Context(), id)
	if err := s.store.DeleteChart(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
