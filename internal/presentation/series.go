// Package presentation turns a forecast payload into the values shown on the
// dashboard: chart series, cards, the animation category and narrative blocks.
// Every function is pure and tolerates short or missing forecast arrays.
package presentation

import (
	"time"
	"weatherai/internal/models"
	"weatherai/internal/weathercode"
)

// HourlyLimit is the number of hourly entries shown on the chart
const HourlyLimit = 24

// Open-Meteo returns local times without an offset when timezone=auto
var timestampLayouts = []string{
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02",
}

type HourlyPoint struct {
	Label       string  `json:"name"`
	Temperature float64 `json:"temperature"`
	Description string  `json:"weatherDescription"`
}

type DailyPoint struct {
	Label          string  `json:"name"`
	TemperatureMax float64 `json:"temperatureMax"`
	TemperatureMin float64 `json:"temperatureMin"`
	Description    string  `json:"weatherDescription"`
	Sunrise        string  `json:"sunrise"`
	Sunset         string  `json:"sunset"`
}

// HourlySeries maps the first HourlyLimit hourly entries to chart points
func HourlySeries(hourly models.Hourly, table *weathercode.Table) []HourlyPoint {
	n := len(hourly.Time)
	if n > HourlyLimit {
		n = HourlyLimit
	}

	points := make([]HourlyPoint, 0, n)
	for i := 0; i < n; i++ {
		points = append(points, HourlyPoint{
			Label:       clockLabel(hourly.Time[i]),
			Temperature: floatAt(hourly.ApparentTemperature, i),
			Description: describeAt(table, hourly.WeatherCode, i),
		})
	}
	return points
}

// DailySeries maps every daily entry to a chart point
func DailySeries(daily models.Daily, table *weathercode.Table) []DailyPoint {
	points := make([]DailyPoint, 0, len(daily.Time))
	for i, day := range daily.Time {
		points = append(points, DailyPoint{
			Label:          weekdayLabel(day),
			TemperatureMax: floatAt(daily.ApparentTemperatureMax, i),
			TemperatureMin: floatAt(daily.ApparentTemperatureMin, i),
			Description:    describeAt(table, daily.WeatherCode, i),
			Sunrise:        clockLabel(stringAt(daily.Sunrise, i)),
			Sunset:         clockLabel(stringAt(daily.Sunset, i)),
		})
	}
	return points
}

func parseTimestamp(s string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// clockLabel formats a timestamp as 24-hour HH:MM
func clockLabel(s string) string {
	t, ok := parseTimestamp(s)
	if !ok {
		return ""
	}
	return t.Format("15:04")
}

func weekdayLabel(s string) string {
	t, ok := parseTimestamp(s)
	if !ok {
		return ""
	}
	return t.Weekday().String()
}

func describeAt(table *weathercode.Table, codes []int, i int) string {
	if i >= len(codes) {
		return weathercode.DefaultDescription
	}
	return table.Describe(codes[i])
}

func floatAt(values []float64, i int) float64 {
	if i >= len(values) {
		return 0
	}
	return values[i]
}

func stringAt(values []string, i int) string {
	if i >= len(values) {
		return ""
	}
	return values[i]
}
