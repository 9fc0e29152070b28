package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"weatherai/internal/dashboard"

	"go.uber.org/zap"
)

// SelectRequest carries a country or state code, or a city name. State
// narrows the city when its name is shared by several options.
type SelectRequest struct {
	Code  string `json:"code"`
	Name  string `json:"name"`
	State string `json:"state"`
}

func (s *Server) handleCountries(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.catalog.ListCountries())
}

func (s *Server) handleStates(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.catalog.ListStates(r.PathValue("code")))
}

// handleCities lists the cities of a country. The special country needs a
// state query parameter, mirroring the picker.
func (s *Server) handleCities(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	state := r.URL.Query().Get("state")
	writeJSON(w, http.StatusOK, s.catalog.ListCities(code, state))
}

func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	lat, err := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "lat must be a number")
		return
	}
	lon, err := strconv.ParseFloat(r.URL.Query().Get("lon"), 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "lon must be a number")
		return
	}

	if lat < -90 || lat > 90 {
		writeError(w, http.StatusBadRequest, "Latitude must be between -90 and 90")
		return
	}

	if lon < -180 || lon > 180 {
		writeError(w, http.StatusBadRequest, "Longitude must be between -180 and 180")
		return
	}

	forecast, err := s.forecasts.FetchForecast(r.Context(), lat, lon)
	if err != nil {
		writeError(w, errorStatus(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, forecast)
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	session := s.sessions.Create()
	writeJSON(w, http.StatusCreated, session.View(viewportWidth(r)))
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, session.View(viewportWidth(r)))
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Delete(r.PathValue("id")); err != nil {
		writeError(w, errorStatus(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSessionCountry(w http.ResponseWriter, r *http.Request) {
	s.applySelection(w, r, func(session *dashboard.Session, req SelectRequest) error {
		return session.SelectCountry(req.Code)
	})
}

func (s *Server) handleSessionState(w http.ResponseWriter, r *http.Request) {
	s.applySelection(w, r, func(session *dashboard.Session, req SelectRequest) error {
		return session.SelectState(req.Code)
	})
}

func (s *Server) handleSessionCity(w http.ResponseWriter, r *http.Request) {
	s.applySelection(w, r, func(session *dashboard.Session, req SelectRequest) error {
		return session.SelectCity(r.Context(), req.Name, req.State)
	})
}

func (s *Server) handleSessionNarrative(w http.ResponseWriter, r *http.Request) {
	session, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, session.Narrative())
}

func (s *Server) applySelection(w http.ResponseWriter, r *http.Request, apply func(*dashboard.Session, SelectRequest) error) {
	session, ok := s.lookupSession(w, r)
	if !ok {
		return
	}

	var req SelectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if err := apply(session, req); err != nil {
		status := errorStatus(err)
		if status >= http.StatusInternalServerError {
			s.logger.Warn("selection failed", zap.String("session", session.ID), zap.Error(err))
		}
		writeError(w, status, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, session.View(viewportWidth(r)))
}

func (s *Server) lookupSession(w http.ResponseWriter, r *http.Request) (*dashboard.Session, bool) {
	session, err := s.sessions.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, errorStatus(err), err.Error())
		return nil, false
	}
	return session, true
}
