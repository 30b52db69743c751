// internal/workers/grain/submit-feedback/models.go
package submitfeedback

import "grain-workers/internal/models"

// Input identifies the card by id; the other card fields are filled from the
// resolved card when the caller leaves them out.
type Input struct {
	UserID            string            `json:"userId"`
	CardID            string            `json:"cardId"`
	FeedbackType      string            `json:"feedbackType"`
	CountryID         string            `json:"countryId,omitempty"`
	CategoryID        string            `json:"categoryId,omitempty"`
	NodeTypeID        string            `json:"nodeTypeId,omitempty"`
	FactIDsUsed       []string          `json:"factIdsUsed,omitempty"`
	SourceHintIDsUsed []string          `json:"sourceHintIdsUsed,omitempty"`
	Note              string            `json:"note,omitempty"`
	APIConfig         *models.APIConfig `json:"apiConfig,omitempty"`
}

type Output struct {
	FeedbackID  string `json:"feedbackId"`
	CreatedAt   int64  `json:"createdAt"`
	Reported    bool   `json:"reported"`
	ReportError string `json:"reportError,omitempty"`
}
