// internal/workers/grain/fetch-coverage/models.go
package fetchcoverage

import "grain-workers/internal/models"

const (
	SourceBackend = "backend"
	SourceModel   = "model"
	SourceCatalog = "catalog"
)

type Input struct {
	UserID     string            `json:"userId"`
	CategoryID string            `json:"categoryId"`
	APIConfig  *models.APIConfig `json:"apiConfig,omitempty"`
}

// Output lists the countries the user may pick for a category. AllCountries
// is set when a general model answers and any country can be generated.
type Output struct {
	CategoryID       string   `json:"categoryId"`
	CoveredCountries []string `json:"coveredCountries"`
	AllCountries     bool     `json:"allCountries"`
	Source           string   `json:"source"`
	FallbackReason   string   `json:"fallbackReason,omitempty"`
}
