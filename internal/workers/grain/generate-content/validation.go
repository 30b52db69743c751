// internal/workers/grain/generate-content/validation.go
package generatecontent

import "grain-workers/internal/common/validation"

var inputSchema = validation.MustCompile(`{
  "type": "object",
  "properties": {
    "userId":          {"type": "string"},
    "requestedLocale": {"type": "string", "enum": ["", "zh", "en"]},
    "categoryId":      {"type": "string"},
    "objectName":      {"type": "string"},
    "objectGeneric":   {"type": "string"},
    "countryA":        {"type": "string"},
    "countryB":        {"type": "string"},
    "nodeTypeIds": {
      "type": "array",
      "items": {"type": "string", "minLength": 1},
      "uniqueItems": true
    },
    "apiConfig": {"type": ["object", "null"]}
  }
}`)
