package vibeagent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// CatalogEntry is one activity the catalog knows about.
type CatalogEntry struct {
	ID            string   `json:"id"`
	Label         string   `json:"label"`
	Category      Category `json:"category"`
	Subtypes      []string `json:"subtypes"`
	Regions       []string `json:"regions"`
	Energy        string   `json:"energy,omitempty"`
	IndoorOutdoor string   `json:"indoorOutdoor,omitempty"`
	Difficulty    int      `json:"difficulty,omitempty"`
	Seasonality   string   `json:"seasonality,omitempty"`
}

// Catalog is a read-only snapshot of activities.
type Catalog struct {
	Version string         `json:"version,omitempty"`
	Entries []CatalogEntry `json:"activities"`
}

// ByCategory returns entries whose category is in cats, preserving catalog order.
func (c Catalog) ByCategory(cats ...Category) []CatalogEntry {
	want := make(map[Category]bool, len(cats))
	for _, cat := range cats {
		want[cat] = true
	}
	var out []CatalogEntry
	for _, e := range c.Entries {
		if want[e.Category] {
			out = append(out, e)
		}
	}
	return out
}

// Subtypes returns every distinct subtype in catalog order.
func (c Catalog) Subtypes() []string {
	seen := map[string]bool{}
	var out []string
	for _, e := range c.Entries {
		for _, s := range e.Subtypes {
			if !seen[s] {
				seen[s] = true
				out = append(out, s)
			}
		}
	}
	return out
}

type catalogLoader interface {
	Load(ctx context.Context) ([]byte, error)
}

// LoadCatalog reads and decodes a catalog, rejecting entries outside the closed category set.
func LoadCatalog(ctx context.Context, src catalogLoader) (Catalog, error) {
	b, err := src.Load(ctx)
	if err != nil {
		return Catalog{}, fmt.Errorf("read catalog: %w", err)
	}
	return ParseCatalog(b)
}

func ParseCatalog(b []byte) (Catalog, error) {
	var c Catalog
	if err := json.Unmarshal(b, &c); err != nil {
		return Catalog{}, fmt.Errorf("decode catalog: %w", err)
	}

	var problems []string
	for i, e := range c.Entries {
		if strings.TrimSpace(e.ID) == "" {
			problems = append(problems, fmt.Sprintf("activity %d has no id", i))
		}
		if !e.Category.Valid() {
			problems = append(problems, fmt.Sprintf("activity %q has unknown category %q", e.ID, e.Category))
		}
		if len(e.Subtypes) == 0 {
			problems = append(problems, fmt.Sprintf("activity %q has no subtypes", e.ID))
		}
	}
	if len(problems) > 0 {
		return Catalog{}, fmt.Errorf("invalid catalog: %s", strings.Join(problems, "; "))
	}
	return c, nil
}
