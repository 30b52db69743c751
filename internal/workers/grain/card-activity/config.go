// internal/workers/grain/card-activity/config.go
package cardactivity

import "time"

type Config struct {
	Timeout time.Duration
	Locale  string
}
