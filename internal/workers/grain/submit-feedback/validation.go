// internal/workers/grain/submit-feedback/validation.go
package submitfeedback

import "grain-workers/internal/common/validation"

var inputSchema = validation.MustCompile(`{
  "type": "object",
  "required": ["cardId", "feedbackType"],
  "properties": {
    "userId":            {"type": "string"},
    "cardId":            {"type": "string", "minLength": 1},
    "feedbackType":      {"type": "string", "enum": ["inaccurate", "irrelevant", "other"]},
    "countryId":         {"type": "string"},
    "categoryId":        {"type": "string"},
    "nodeTypeId":        {"type": "string"},
    "factIdsUsed":       {"type": "array", "items": {"type": "string"}},
    "sourceHintIdsUsed": {"type": "array", "items": {"type": "string"}},
    "note":              {"type": "string", "maxLength": 2000},
    "apiConfig":         {"type": ["object", "null"]}
  }
}`)
