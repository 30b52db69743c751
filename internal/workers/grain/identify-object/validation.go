// internal/workers/grain/identify-object/validation.go
package identifyobject

import "grain-workers/internal/common/validation"

var inputSchema = validation.MustCompile(`{
  "type": "object",
  "required": ["image"],
  "properties": {
    "userId":          {"type": "string"},
    "image":           {"type": "string", "minLength": 1},
    "fileName":        {"type": "string"},
    "mimeType":        {"type": "string"},
    "photoUri":        {"type": "string"},
    "requestedLocale": {"type": "string", "enum": ["", "zh", "en"]},
    "maxCandidates":   {"type": "integer", "minimum": 0, "maximum": 10},
    "apiConfig":       {"type": ["object", "null"]},
    "updateSession":   {"type": ["boolean", "null"]}
  }
}`)
