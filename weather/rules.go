package weather

// Rule describes what weather an activity subtype tolerates. Nil bounds are unchecked.
type Rule struct {
	TempRange         *[2]float64
	MaxPrecipMm       *float64
	MaxWindMps        *float64
	Preferred         []string
	Unsuitable        []string
	IndoorAlternative bool
	WeatherDependent  bool
}

func temp(lo, hi float64) *[2]float64 { return &[2]float64{lo, hi} }

func limit(v float64) *float64 { return &v }

var (
	sunny      = []string{"clear", "partly_cloudy"}
	fair       = []string{"clear", "partly_cloudy", "cloudy"}
	anyWeather = []string{}
)

// indoor is the rule shared by venues that do not care about the weather at all.
func indoor(lo float64) Rule {
	return Rule{
		TempRange:   temp(lo, 40),
		MaxPrecipMm: limit(30),
		MaxWindMps:  limit(40),
		Preferred:   anyWeather,
	}
}

// Rules is the static suitability table keyed by activity subtype.
var Rules = map[string]Rule{
	// adventure
	"mountain_biking": {
		TempRange: temp(5, 35), MaxPrecipMm: limit(2), MaxWindMps: limit(15),
		Preferred:        fair,
		Unsuitable:       []string{"rain", "thunderstorm", "snow", "fog"},
		WeatherDependent: true,
	},
	"downhill": {
		TempRange: temp(0, 35), MaxPrecipMm: limit(1), MaxWindMps: limit(20),
		Preferred:        sunny,
		Unsuitable:       []string{"rain", "thunderstorm", "snow", "ice"},
		WeatherDependent: true,
	},
	"via_ferrata": {
		TempRange: temp(5, 30), MaxPrecipMm: limit(0), MaxWindMps: limit(12),
		Preferred:        sunny,
		Unsuitable:       []string{"rain", "thunderstorm", "snow", "fog", "ice"},
		WeatherDependent: true,
	},
	"rock_climbing": {
		TempRange: temp(0, 35), MaxPrecipMm: limit(0), MaxWindMps: limit(15),
		Preferred:         fair,
		Unsuitable:        []string{"rain", "thunderstorm", "snow", "ice"},
		IndoorAlternative: true,
		WeatherDependent:  true,
	},
	"paragliding": {
		TempRange: temp(10, 35), MaxPrecipMm: limit(0), MaxWindMps: limit(8),
		Preferred:        sunny,
		Unsuitable:       []string{"rain", "thunderstorm", "snow", "fog", "strong_wind"},
		WeatherDependent: true,
	},
	"rafting": {
		TempRange: temp(15, 35), MaxPrecipMm: limit(5), MaxWindMps: limit(20),
		Preferred:        fair,
		Unsuitable:       []string{"thunderstorm", "strong_wind"},
		WeatherDependent: true,
	},
	"canyoning": {
		TempRange: temp(15, 30), MaxPrecipMm: limit(0), MaxWindMps: limit(15),
		Preferred:        sunny,
		Unsuitable:       []string{"rain", "thunderstorm", "flash_flood_risk"},
		WeatherDependent: true,
	},
	"ski_alpine": {
		TempRange: temp(-20, 5), MaxPrecipMm: limit(10), MaxWindMps: limit(25),
		Preferred:        []string{"snow", "clear", "partly_cloudy"},
		Unsuitable:       []string{"rain", "fog", "ice_storm"},
		WeatherDependent: true,
	},

	// nature
	"hiking": {
		TempRange: temp(-5, 35), MaxPrecipMm: limit(3), MaxWindMps: limit(20),
		Preferred:        fair,
		Unsuitable:       []string{"thunderstorm", "heavy_rain", "blizzard"},
		WeatherDependent: true,
	},
	"peak_bagging": {
		TempRange: temp(-10, 30), MaxPrecipMm: limit(1), MaxWindMps: limit(15),
		Preferred:        sunny,
		Unsuitable:       []string{"fog", "thunderstorm", "snow", "ice"},
		WeatherDependent: true,
	},
	"national_park": {
		TempRange: temp(-10, 40), MaxPrecipMm: limit(5), MaxWindMps: limit(25),
		Preferred:  fair,
		Unsuitable: []string{"severe_weather"},
	},
	"wildlife_watching": {
		TempRange: temp(-5, 35), MaxPrecipMm: limit(8), MaxWindMps: limit(20),
		Preferred:  []string{"clear", "partly_cloudy", "light_rain"},
		Unsuitable: []string{"thunderstorm", "heavy_rain"},
	},
	"cave_exploration": {
		TempRange: temp(-10, 40), MaxPrecipMm: limit(20), MaxWindMps: limit(30),
		Preferred:  anyWeather,
		Unsuitable: []string{"flash_flood_risk"},
	},
	"waterfall": {
		TempRange: temp(-5, 35), MaxPrecipMm: limit(10), MaxWindMps: limit(25),
		Preferred:  []string{"clear", "partly_cloudy", "cloudy", "light_rain"},
		Unsuitable: []string{"thunderstorm", "flash_flood_risk"},
	},

	// water
	"kayaking": {
		TempRange: temp(15, 35), MaxPrecipMm: limit(3), MaxWindMps: limit(12),
		Preferred:        fair,
		Unsuitable:       []string{"thunderstorm", "strong_wind", "heavy_rain"},
		WeatherDependent: true,
	},
	"sup": {
		TempRange: temp(18, 35), MaxPrecipMm: limit(1), MaxWindMps: limit(8),
		Preferred:        sunny,
		Unsuitable:       []string{"rain", "thunderstorm", "strong_wind"},
		WeatherDependent: true,
	},
	"thermal_baths": {
		TempRange: temp(-20, 40), MaxPrecipMm: limit(20), MaxWindMps: limit(30),
		Preferred: anyWeather,
	},
	"boat_tour": {
		TempRange: temp(10, 35), MaxPrecipMm: limit(5), MaxWindMps: limit(15),
		Preferred:        fair,
		Unsuitable:       []string{"thunderstorm", "strong_wind", "heavy_rain"},
		WeatherDependent: true,
	},

	// culture
	"castle_visit":       {TempRange: temp(-10, 40), MaxPrecipMm: limit(20), MaxWindMps: limit(30)},
	"fortified_churches": {TempRange: temp(-10, 40), MaxPrecipMm: limit(20), MaxWindMps: limit(30)},
	"street_art": {
		TempRange: temp(-5, 35), MaxPrecipMm: limit(5), MaxWindMps: limit(25),
		Preferred:  fair,
		Unsuitable: []string{"heavy_rain", "thunderstorm"},
	},
	"museums": indoor(-20),

	// wellness
	"spa": indoor(-20),
	"yoga": {
		TempRange: temp(5, 35), MaxPrecipMm: limit(15), MaxWindMps: limit(30),
		Preferred:         fair,
		IndoorAlternative: true,
	},
	"wellness_retreat": indoor(-10),

	// nightlife
	"live_music":     indoor(-20),
	"nightclub":      indoor(-20),
	"standup_comedy": indoor(-20),

	// culinary
	"wine_tasting":  {TempRange: temp(-10, 40), MaxPrecipMm: limit(25), MaxWindMps: limit(35)},
	"cooking_class": indoor(-20),
	"fine_dining":   indoor(-20),

	// creative
	"photography": {
		TempRange: temp(-5, 35), MaxPrecipMm: limit(8), MaxWindMps: limit(25),
		Preferred:  []string{"clear", "partly_cloudy", "dramatic_clouds"},
		Unsuitable: []string{"heavy_rain", "fog"},
	},
	"ceramics":    indoor(-10),
	"maker_space": indoor(-10),

	// sports
	"indoor_climbing": indoor(-20),
	"padel": {
		TempRange: temp(5, 35), MaxPrecipMm: limit(2), MaxWindMps: limit(20),
		Preferred:         fair,
		Unsuitable:        []string{"rain", "thunderstorm", "strong_wind"},
		IndoorAlternative: true,
		WeatherDependent:  true,
	},
	"skateboarding": {
		TempRange: temp(0, 35), MaxPrecipMm: limit(0), MaxWindMps: limit(25),
		Preferred:         fair,
		Unsuitable:        []string{"rain", "wet_surfaces", "ice"},
		IndoorAlternative: true,
		WeatherDependent:  true,
	},

	// learning
	"language_exchange": indoor(-20),
	"volunteer": {
		TempRange: temp(-5, 35), MaxPrecipMm: limit(10), MaxWindMps: limit(30),
		Preferred:  fair,
		Unsuitable: []string{"severe_weather"},
	},
	"educational_tour": {
		TempRange: temp(-10, 40), MaxPrecipMm: limit(15), MaxWindMps: limit(30),
		Unsuitable: []string{"severe_weather"},
	},
}
