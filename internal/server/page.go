package server

import (
	"embed"
	"errors"
	"html/template"
	"net/http"
	"weatherai/internal/dashboard"
	"weatherai/internal/models"

	"go.uber.org/zap"
)

const sessionCookie = "weatherai_session"

// narrativeRefreshSeconds is how often the page reloads while a narrative loads
const narrativeRefreshSeconds = 3

//go:embed templates/*.html
var templateFS embed.FS

var pageTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))

type pageData struct {
	View           dashboard.View
	Countries      []models.GeoOption
	CountryCode    string
	StateCode      string
	CityKey        string
	Loading        bool
	RefreshSeconds int
	Error          string
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	session := s.sessionFromCookie(w, r)
	s.renderPage(w, r, session, http.StatusOK, "")
}

// handleSelect applies a form post and redirects back to the dashboard
func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	session := s.sessionFromCookie(w, r)
	if err := r.ParseForm(); err != nil {
		s.renderPage(w, r, session, http.StatusBadRequest, "Invalid form submission")
		return
	}

	var err error
	switch r.PathValue("step") {
	case "country":
		err = session.SelectCountry(r.PostForm.Get("code"))
	case "state":
		err = session.SelectState(r.PostForm.Get("code"))
	case "city":
		name, stateCode := models.ParseCityKey(r.PostForm.Get("city"))
		err = session.SelectCity(r.Context(), name, stateCode)
	default:
		http.NotFound(w, r)
		return
	}

	if err != nil {
		status := errorStatus(err)
		s.logger.Info("form selection rejected", zap.String("session", session.ID), zap.Int("status", status), zap.Error(err))
		s.renderPage(w, r, session, status, userMessage(err))
		return
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) renderPage(w http.ResponseWriter, r *http.Request, session *dashboard.Session, status int, errMsg string) {
	view := session.View(viewportWidth(r))

	data := pageData{
		View:           view,
		Countries:      view.Selection.Countries,
		Loading:        view.Narrative.Status == dashboard.NarrativeLoading,
		RefreshSeconds: narrativeRefreshSeconds,
		Error:          errMsg,
	}
	if c := view.Selection.Country; c != nil {
		data.CountryCode = c.Value.IsoCode
	}
	if st := view.Selection.Region; st != nil {
		data.StateCode = st.Value.IsoCode
	}
	if city := view.Selection.City; city != nil {
		data.CityKey = city.Value.CityKey()
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.page.Execute(w, data); err != nil {
		s.logger.Error("failed to render page", zap.Error(err))
	}
}

// sessionFromCookie returns the caller's session, starting a new one when the
// cookie is missing or the session has expired.
func (s *Server) sessionFromCookie(w http.ResponseWriter, r *http.Request) *dashboard.Session {
	if c, err := r.Cookie(sessionCookie); err == nil {
		if session, err := s.sessions.Get(c.Value); err == nil {
			return session
		}
	}

	session := s.sessions.Create()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    session.ID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return session
}

func userMessage(err error) string {
	if errorStatus(err) == http.StatusBadGateway {
		return "The weather service is unavailable right now. Please try again."
	}
	unwrapped := err
	for errors.Unwrap(unwrapped) != nil {
		unwrapped = errors.Unwrap(unwrapped)
	}
	return unwrapped.Error()
}
