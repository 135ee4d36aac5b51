package vibeagent

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DecodeRequest reads an IntentContext from JSON and attaches the catalog. A bare
// string that is not a JSON object is taken as the vibe.
func DecodeRequest(b []byte, catalog Catalog) (IntentContext, error) {
	var ic IntentContext
	text := strings.TrimSpace(string(b))
	if strings.HasPrefix(text, "{") {
		if err := json.Unmarshal([]byte(text), &ic); err != nil {
			return IntentContext{}, fmt.Errorf("decode request: %w", err)
		}
	} else {
		ic.Vibe = text
	}
	ic.Catalog = catalog
	return NewIntentContext(ic)
}

// ArtifactName is the file name a run's result is stored under.
func ArtifactName(runID string) string {
	return "curation-" + runID + ".json"
}
