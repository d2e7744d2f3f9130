package forecast

import "strings"

// Icon is the display category for a short forecast text.
type Icon string

const (
	IconStorm        Icon = "storm"
	IconRain         Icon = "rain"
	IconSnow         Icon = "snow"
	IconCloud        Icon = "cloud"
	IconPartlyCloudy Icon = "partly_cloudy"
	IconSun          Icon = "sun"
	IconDefault      Icon = "default"
)

// iconRules are checked in order; the first rule with a matching substring wins.
var iconRules = []struct {
	icon  Icon
	terms []string
}{
	{IconStorm, []string{"thunder", "storm"}},
	{IconRain, []string{"rain", "shower"}},
	{IconSnow, []string{"snow"}},
	{IconCloud, []string{"cloud", "overcast"}},
	{IconPartlyCloudy, []string{"partly", "mostly sunny"}},
	{IconSun, []string{"sunny", "clear"}},
}

// IconFor maps NWS short forecast text such as "Chance Rain Showers" to an Icon.
func IconFor(shortForecast string) Icon {
	s := strings.ToLower(shortForecast)
	for _, r := range iconRules {
		for _, term := range r.terms {
			if strings.Contains(s, term) {
				return r.icon
			}
		}
	}
	return IconDefault
}

// Glyph returns the emoji shown on the dashboard for the icon.
func (i Icon) Glyph() string {
	switch i {
	case IconStorm:
		return "⛈️"
	case IconRain:
		return "🌧️"
	case IconSnow:
		return "❄️"
	case IconCloud:
		return "☁️"
	case IconPartlyCloudy:
		return "⛅"
	case IconSun:
		return "☀️"
	default:
		return "🌤️"
	}
}
