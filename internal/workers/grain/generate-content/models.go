// internal/workers/grain/generate-content/models.go
package generatecontent

import (
	"grain-workers/internal/appstate"
	"grain-workers/internal/catalog"
	"grain-workers/internal/models"
)

const (
	SourceBackend = "backend"
	SourceModel   = "model"
	SourceDemo    = "demo"
)

// Input may override the session before generating. Overrides are written
// to the session so the stored bundle matches what it was generated for.
type Input struct {
	UserID          string            `json:"userId"`
	RequestedLocale string            `json:"requestedLocale,omitempty"`
	CategoryID      string            `json:"categoryId,omitempty"`
	ObjectName      string            `json:"objectName,omitempty"`
	ObjectGeneric   string            `json:"objectGeneric,omitempty"`
	CountryA        string            `json:"countryA,omitempty"`
	CountryB        string            `json:"countryB,omitempty"`
	NodeTypeIDs     []string          `json:"nodeTypeIds,omitempty"`
	APIConfig       *models.APIConfig `json:"apiConfig,omitempty"`
}

// Placeholders counts the slots filled locally because the answer lacked them.
type Placeholders struct {
	Cards     int `json:"cards"`
	Dialogues int `json:"dialogues"`
	Chapters  int `json:"chapters"`
}

type Output struct {
	Source       string                 `json:"source"`
	Session      appstate.Session       `json:"session"`
	SessionID    string                 `json:"sessionId,omitempty"`
	Result       *models.GenerateResult `json:"result,omitempty"`
	SessionCards []catalog.SessionRow   `json:"sessionCards"`
	Attempts     int                    `json:"attempts,omitempty"`
	Complete     bool                   `json:"complete"`
	// Stale is set when the session changed mid-request; Result is not stored.
	Stale        bool                   `json:"stale,omitempty"`
	Placeholders Placeholders           `json:"placeholders"`
}
