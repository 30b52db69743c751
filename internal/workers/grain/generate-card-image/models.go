// internal/workers/grain/generate-card-image/models.go
package generatecardimage

import "grain-workers/internal/models"

// Input names the card to illustrate. Force regenerates even when an image
// is cached.
type Input struct {
	UserID          string            `json:"userId"`
	CardID          string            `json:"cardId"`
	RequestedLocale string            `json:"requestedLocale,omitempty"`
	Force           bool              `json:"force,omitempty"`
	APIConfig       *models.APIConfig `json:"apiConfig,omitempty"`
}

type Output struct {
	CardID   string              `json:"cardId"`
	ImageURI string              `json:"imageUri"`
	Cached   bool                `json:"cached"`
	Provider models.ProviderKind `json:"provider,omitempty"`
}
