// internal/workers/grain/card-activity/models.go
package cardactivity

import (
	"grain-workers/internal/appstate"
	"grain-workers/internal/catalog"
	"grain-workers/internal/models"
)

const (
	ActionCollect        = "collect"
	ActionView           = "view"
	ActionStats          = "stats"
	ActionCollection     = "collection"
	ActionSession        = "session"
	ActionSetSession     = "set-session"
	ActionSwapCountries  = "swap-countries"
	ActionSessionCards   = "session-cards"
	ActionDialogue       = "dialogue"
	ActionSaveAPIConfig  = "save-api-config"
	ActionResetAPIConfig = "reset-api-config"
	ActionFeedbackLog    = "feedback-log"
)

type Input struct {
	UserID     string                 `json:"userId"`
	Action     string                 `json:"action"`
	CardID     string                 `json:"cardId,omitempty"`
	CountryID  string                 `json:"countryId,omitempty"`
	NodeTypeID string                 `json:"nodeTypeId,omitempty"`
	Session    *appstate.SessionPatch `json:"session,omitempty"`
	APIConfig  *models.APIConfig      `json:"apiConfig,omitempty"`
}

// Output carries the fields of whichever action ran.
type Output struct {
	Action       string                    `json:"action"`
	Collected    *bool                     `json:"collected,omitempty"`
	View         *appstate.ViewResult      `json:"view,omitempty"`
	Stats        *appstate.Stats           `json:"stats,omitempty"`
	Collection   []models.KnowledgeCard    `json:"collection,omitempty"`
	Session      *appstate.Session         `json:"session,omitempty"`
	SessionCards []catalog.SessionRow      `json:"sessionCards,omitempty"`
	Dialogue     string                    `json:"dialogue,omitempty"`
	APIConfig    *models.APIConfig         `json:"apiConfig,omitempty"`
	Feedback     []appstate.FeedbackRecord `json:"feedback,omitempty"`
	HasBundle    *bool                     `json:"hasBundle,omitempty"`
}
