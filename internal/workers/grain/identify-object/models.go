// internal/workers/grain/identify-object/models.go
package identifyobject

import (
	"grain-workers/internal/appstate"
	"grain-workers/internal/models"
)

// Input carries the photo as raw base64, a data URL or an http(s) URL.
type Input struct {
	UserID          string            `json:"userId"`
	Image           string            `json:"image"`
	FileName        string            `json:"fileName,omitempty"`
	MimeType        string            `json:"mimeType,omitempty"`
	PhotoURI        string            `json:"photoUri,omitempty"`
	RequestedLocale string            `json:"requestedLocale,omitempty"`
	MaxCandidates   int               `json:"maxCandidates,omitempty"`
	APIConfig       *models.APIConfig `json:"apiConfig,omitempty"`
	// UpdateSession defaults to true.
	UpdateSession *bool `json:"updateSession,omitempty"`
}

type Output struct {
	ObjectName         string                     `json:"objectName"`
	ObjectGeneric      string                     `json:"objectGeneric"`
	CategoryID         string                     `json:"categoryId"`
	CategoryName       string                     `json:"categoryName"`
	CategoryEnabled    bool                       `json:"categoryEnabled"`
	CategoryCandidates []models.CategoryCandidate `json:"categoryCandidates"`
	Provider           models.ProviderKind        `json:"provider"`
	Session            *appstate.Session          `json:"session,omitempty"`
}
