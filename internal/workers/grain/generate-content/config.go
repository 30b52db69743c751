// internal/workers/grain/generate-content/config.go
package generatecontent

import (
	"time"

	"grain-workers/internal/generation"
	"grain-workers/internal/models"
)

type Config struct {
	Timeout         time.Duration
	Locale          string
	DefaultProvider models.APIConfig
	// Attempts drives the general-model path; empty uses
	// generation.DefaultAttempts.
	Attempts []generation.Attempt
}
