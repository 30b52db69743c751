// internal/workers/grain/card-activity/validation.go
package cardactivity

import "grain-workers/internal/common/validation"

var inputSchema = validation.MustCompile(`{
  "type": "object",
  "required": ["userId", "action"],
  "properties": {
    "userId":     {"type": "string", "minLength": 1},
    "action":     {"type": "string", "minLength": 1},
    "cardId":     {"type": "string"},
    "countryId":  {"type": "string"},
    "nodeTypeId": {"type": "string"},
    "session":    {"type": ["object", "null"]},
    "apiConfig":  {"type": ["object", "null"]}
  },
  "allOf": [
    {
      "if":   {"properties": {"action": {"enum": ["collect", "view"]}}},
      "then": {"required": ["cardId"]}
    },
    {
      "if":   {"properties": {"action": {"const": "set-session"}}},
      "then": {"required": ["session"]}
    },
    {
      "if":   {"properties": {"action": {"const": "save-api-config"}}},
      "then": {"required": ["apiConfig"]}
    },
    {
      "if":   {"properties": {"action": {"const": "dialogue"}}},
      "then": {"required": ["countryId", "nodeTypeId"]}
    }
  ]
}`)
