// internal/workers/grain/generate-card-image/config.go
package generatecardimage

import (
	"time"

	"grain-workers/internal/models"
)

type Config struct {
	Timeout         time.Duration
	Locale          string
	DefaultProvider models.APIConfig
	// PollInterval and MaxWait bound asynchronous image tasks. Zero keeps
	// the adapter defaults.
	PollInterval time.Duration
	MaxWait      time.Duration
}
