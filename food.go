package vibeagent

import "strings"

// Food venues are dropped unless the request is explicitly culinary.
var foodTypes = map[string]bool{
	"restaurant":    true,
	"cafe":          true,
	"bar":           true,
	"bakery":        true,
	"meal_takeaway": true,
	"meal_delivery": true,
	"foods":         true, // OpenTripMap kind
}

var culinaryTriggers = []string{
	"michelin", "starred", "tasting menu", "fine dining", "culinary experience",
	"chef", "gourmet", "wine pairing", "degustation", "omakase",
}

const (
	PremiumCulinaryMinPriceLevel = 3
	PremiumCulinaryMinRating     = 4.3
)

func IsFoodType(t string) bool {
	return foodTypes[strings.ToLower(t)]
}

// HasFoodType reports whether any of the venue types or kinds is a food type.
func HasFoodType(types ...[]string) bool {
	for _, list := range types {
		for _, t := range list {
			if IsFoodType(t) {
				return true
			}
		}
	}
	return false
}

// ShouldEnableCulinary reports whether the text asks for a culinary experience.
func ShouldEnableCulinary(text string, keywords ...string) bool {
	all := strings.ToLower(strings.Join(append([]string{text}, keywords...), " "))
	for _, trigger := range culinaryTriggers {
		if strings.Contains(all, trigger) {
			return true
		}
	}
	return false
}
