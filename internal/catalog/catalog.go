// ABOUTME: Embedded system food catalog seeded into the store on first run
// ABOUTME: Decodes catalog.json into store.SystemFood entries

package catalog

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/ngan-ptn/anlog/internal/store"
)

//go:embed catalog.json
var catalogJSON []byte

type portionEntry struct {
	Kcal    int     `json:"kcal"`
	Protein float64 `json:"protein"`
	Fat     float64 `json:"fat"`
	Carbs   float64 `json:"carbs"`
	Fibre   float64 `json:"fibre,omitempty"`
	Sugar   float64 `json:"sugar,omitempty"`
	Sodium  float64 `json:"sodium,omitempty"`
}

type foodEntry struct {
	ID                 string                  `json:"id"`
	NameVI             string                  `json:"name_vi"`
	NameEN             string                  `json:"name_en"`
	Category           string                  `json:"category"`
	ServingDescription string                  `json:"serving_description"`
	Confidence         float64                 `json:"confidence"`
	Portions           map[string]portionEntry `json:"portions"`
}

// Foods decodes the embedded catalog. Each entry must carry all three S/M/L
// portion variants; a malformed catalog is a build artifact problem and
// fails loudly.
func Foods() ([]store.SystemFood, error) {
	var entries []foodEntry
	if err := json.Unmarshal(catalogJSON, &entries); err != nil {
		return nil, fmt.Errorf("parsing embedded catalog: %w", err)
	}

	foods := make([]store.SystemFood, 0, len(entries))
	for _, e := range entries {
		f := store.SystemFood{
			ID:                 e.ID,
			NameVI:             e.NameVI,
			NameEN:             e.NameEN,
			Category:           e.Category,
			ServingDescription: e.ServingDescription,
			Confidence:         e.Confidence,
			IsActive:           true,
		}
		for _, variant := range []string{"S", "M", "L"} {
			p, ok := e.Portions[variant]
			if !ok {
				return nil, fmt.Errorf("catalog entry %s missing portion %s", e.ID, variant)
			}
			m := store.PortionMacros{
				Kcal: p.Kcal, Protein: p.Protein, Fat: p.Fat, Carbs: p.Carbs,
				Fibre: p.Fibre, Sugar: p.Sugar, Sodium: p.Sodium,
			}
			switch variant {
			case "S":
				f.Small = m
			case "M":
				f.Medium = m
			case "L":
				f.Large = m
			}
		}
		foods = append(foods, f)
	}
	return foods, nil
}
