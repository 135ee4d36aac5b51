package guard

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"vibeagent"
)

const minSpecificRationale = 30

var genericPhrases = []string{"great place", "perfect for"}

// CurationWarnings flags curations that look generic or unsupported. They are
// reported, not rejected.
func CurationWarnings(c vibeagent.ActivityCuration) []string {
	var out []string
	ids := make(map[string]bool, len(c.Recommendations))
	for _, rec := range c.Recommendations {
		ids[rec.Intent.ID] = true

		if len(rec.VerifiedVenues) == 0 {
			out = append(out, fmt.Sprintf("recommendation %s has no verified venues", rec.Intent.ID))
		}
		if isGeneric(rec.Rationale) {
			out = append(out, fmt.Sprintf("recommendation %s has a generic rationale", rec.Intent.ID))
		}
		for _, v := range rec.VerifiedVenues {
			if v.Evidence.VerificationMethod == "" {
				out = append(out, fmt.Sprintf("venue %s lacks verification evidence", v.Name))
			}
		}
	}

	var missing []string
	for _, id := range c.TopFive {
		if !ids[id] {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		out = append(out, fmt.Sprintf("topFive contains ids not in recommendations: %s", strings.Join(missing, ", ")))
	}
	return out
}

func isGeneric(rationale string) bool {
	if utf8.RuneCountInString(rationale) < minSpecificRationale {
		return true
	}
	lower := strings.ToLower(rationale)
	for _, p := range genericPhrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}
