// internal/workers/grain/fetch-coverage/config.go
package fetchcoverage

import (
	"time"

	"grain-workers/internal/models"
)

type Config struct {
	Timeout         time.Duration
	Locale          string
	DefaultProvider models.APIConfig
}
