// internal/workers/grain/submit-feedback/config.go
package submitfeedback

import (
	"time"

	"grain-workers/internal/models"
)

type Config struct {
	Timeout         time.Duration
	Locale          string
	DefaultProvider models.APIConfig
}
