// internal/workers/grain/identify-object/config.go
package identifyobject

import (
	"time"

	"grain-workers/internal/models"
)

type Config struct {
	Timeout         time.Duration
	Locale          string
	DefaultProvider models.APIConfig
	// MaxCandidates is sent to the backend when the job does not set one.
	MaxCandidates int
}
