package presentation

import "strings"

type Category string

const (
	CategorySnow         Category = "snow"
	CategoryRain         Category = "rain"
	CategoryThunderstorm Category = "thunderstorm"
	CategoryCloudy       Category = "cloudy"
	CategoryFog          Category = "fog"
	CategorySunny        Category = "sunny"
)

var animations = map[Category]string{
	CategorySnow:         "SnowWeather.json",
	CategoryRain:         "RainnyWeather.json",
	CategoryThunderstorm: "Thunder.json",
	CategoryCloudy:       "CloudyWeather.json",
	CategoryFog:          "foggy.json",
	CategorySunny:        "SunnyWeather.json",
}

// Checked in order, first match wins.
var categoryKeywords = []struct {
	category Category
	keywords []string
}{
	{CategorySnow, []string{"Snow"}},
	{CategoryRain, []string{"Rain", "Drizzle", "Showers"}},
	{CategoryThunderstorm, []string{"Thunderstorm"}},
	{CategoryCloudy, []string{"Cloudy"}},
	{CategoryFog, []string{"Fog", "Foggy"}},
}

// Categorize picks the animation category for a weather description
func Categorize(description string) Category {
	for _, rule := range categoryKeywords {
		for _, kw := range rule.keywords {
			if strings.Contains(description, kw) {
				return rule.category
			}
		}
	}
	return CategorySunny
}

// Animation returns the asset name shown for the category
func (c Category) Animation() string {
	if name, ok := animations[c]; ok {
		return name
	}
	return animations[CategorySunny]
}
