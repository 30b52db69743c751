// internal/workers/grain/generate-card-image/validation.go
package generatecardimage

import "grain-workers/internal/common/validation"

var inputSchema = validation.MustCompile(`{
  "type": "object",
  "required": ["cardId"],
  "properties": {
    "userId":          {"type": "string"},
    "cardId":          {"type": "string", "minLength": 1},
    "requestedLocale": {"type": "string", "enum": ["", "zh", "en"]},
    "force":           {"type": "boolean"},
    "apiConfig":       {"type": ["object", "null"]}
  }
}`)
