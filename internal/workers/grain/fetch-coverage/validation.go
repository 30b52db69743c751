// internal/workers/grain/fetch-coverage/validation.go
package fetchcoverage

import "grain-workers/internal/common/validation"

var inputSchema = validation.MustCompile(`{
  "type": "object",
  "properties": {
    "userId":     {"type": "string"},
    "categoryId": {"type": "string"},
    "apiConfig":  {"type": ["object", "null"]}
  }
}`)
