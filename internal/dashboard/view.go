package dashboard

import (
	"weatherai/internal/presentation"
	"weatherai/internal/selection"
)

type NarrativeView struct {
	Status     NarrativeStatus               `json:"status"`
	Generation uint64                        `json:"generation"`
	Text       string                        `json:"text,omitempty"`
	Blocks     []presentation.NarrativeBlock `json:"blocks,omitempty"`
}

// View is everything the dashboard page renders for a session
type View struct {
	SessionID   string                     `json:"sessionId"`
	Selection   selection.Snapshot         `json:"selection"`
	Generation  uint64                     `json:"generation"`
	HasForecast bool                       `json:"hasForecast"`
	Current     *presentation.CurrentCard  `json:"current,omitempty"`
	Details     *presentation.DetailCard   `json:"details,omitempty"`
	Hourly      []presentation.HourlyPoint `json:"hourly"`
	Daily       []presentation.DailyPoint  `json:"daily"`
	Narrative   NarrativeView              `json:"narrative"`
	Chart       presentation.Dimensions    `json:"chart"`
}

// View derives the page model. viewportWidth only affects chart sizing.
func (s *Session) View(viewportWidth int) View {
	snap := s.pipeline.Snapshot()

	s.mu.Lock()
	forecast, country, city := s.forecast, s.country, s.city
	narrative := s.narrativeLocked()
	gen := s.generation
	s.mu.Unlock()

	v := View{
		SessionID:  s.ID,
		Selection:  snap,
		Generation: gen,
		Hourly:     []presentation.HourlyPoint{},
		Daily:      []presentation.DailyPoint{},
		Narrative:  narrative,
		Chart:      presentation.ChartDimensions(viewportWidth),
	}
	if forecast == nil {
		return v
	}

	current := presentation.NewCurrentCard(forecast.Current, s.deps.Table, country, city)
	details := presentation.NewDetailCard(forecast.Current)
	v.HasForecast = true
	v.Current = &current
	v.Details = &details
	v.Hourly = presentation.HourlySeries(forecast.Hourly, s.deps.Table)
	v.Daily = presentation.DailySeries(forecast.Daily, s.deps.Table)
	return v
}

// Narrative reports the narrative slot of the current generation
func (s *Session) Narrative() NarrativeView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.narrativeLocked()
}

func (s *Session) narrativeLocked() NarrativeView {
	nv := NarrativeView{Status: s.status, Generation: s.generation}
	if s.status == NarrativeReady {
		nv.Text = s.text
		nv.Blocks = presentation.FormatNarrative(s.text)
	}
	return nv
}
