// internal/models/grain.go
package models

import "strings"

// NodeTypeID names one of the five narrative stages.
type NodeTypeID string

const (
	NodeOrigin   NodeTypeID = "ORIGIN"
	NodeSpread   NodeTypeID = "SPREAD"
	NodeRitual   NodeTypeID = "RITUAL"
	NodeIndustry NodeTypeID = "INDUSTRY"
	NodeModern   NodeTypeID = "MODERN"
)

// AllNodeTypes is the fixed stage order used for prompts and completion.
var AllNodeTypes = []NodeTypeID{NodeOrigin, NodeSpread, NodeRitual, NodeIndustry, NodeModern}

// Valid reports whether n is one of the five known stages.
func (n NodeTypeID) Valid() bool {
	for _, known := range AllNodeTypes {
		if n == known {
			return true
		}
	}
	return false
}

// NormalizeNodeTypeID upper-cases and trims a stage id coming from untrusted input.
func NormalizeNodeTypeID(raw string) NodeTypeID {
	return NodeTypeID(strings.ToUpper(strings.TrimSpace(raw)))
}

const (
	SensitivityNone     = "none"
	SensitivityDisputed = "disputed"

	SourceTypeOther = "other"
)

type CategoryCandidate struct {
	CategoryID   string   `json:"categoryId"`
	CategoryName string   `json:"categoryName"`
	Confidence   *float64 `json:"confidence,omitempty"`
}

type IdentifyResult struct {
	ObjectName         string              `json:"objectName"`
	ObjectGeneric      string              `json:"objectGeneric"`
	CategoryCandidates []CategoryCandidate `json:"categoryCandidates"`
}

type YearRange struct {
	StartYear float64 `json:"startYear"`
	EndYear   float64 `json:"endYear"`
}

type ChapterMeta struct {
	CategoryID       string     `json:"categoryId"`
	NodeTypeID       NodeTypeID `json:"nodeTypeId"`
	ChapterTitle     string     `json:"chapterTitle"`
	ChapterSubtitle  string     `json:"chapterSubtitle,omitempty"`
	ChapterTone      string     `json:"chapterTone,omitempty"`
	DisplayTimeLabel string     `json:"displayTimeLabel"`
	TimeRange        *YearRange `json:"timeRange"`
}

type DialogueLine struct {
	NodeTypeID NodeTypeID `json:"nodeTypeId"`
	CountryID  string     `json:"countryId"`
	Text       string     `json:"text"`
}

type SourceHint struct {
	SourceHintID string   `json:"sourceHintId"`
	SourceType   string   `json:"sourceType"`
	SourceName   string   `json:"sourceName"`
	Year         *float64 `json:"year,omitempty"`
	Note         *string  `json:"note,omitempty"`
}

type KnowledgeCard struct {
	CardID     string     `json:"cardId"`
	CountryID  string     `json:"countryId"`
	CategoryID string     `json:"categoryId"`
	NodeTypeID NodeTypeID `json:"nodeTypeId"`

	Title       string       `json:"title"`
	Facts       []string     `json:"facts"`
	Keywords    []string     `json:"keywords"`
	SourceHints []SourceHint `json:"sourceHints"`

	SensitivityTag string `json:"sensitivityTag"`

	FactIDsUsed          []string `json:"factIdsUsed"`
	SourceHintIDsUsed    []string `json:"sourceHintIdsUsed"`
	KnowledgeBaseVersion string   `json:"knowledgeBaseVersion,omitempty"`
	RetrievalQueryHash   string   `json:"retrievalQueryHash,omitempty"`
}

// SlotKey identifies the (stage, country) slot a card or dialogue fills.
func SlotKey(node NodeTypeID, countryID string) string {
	return string(node) + "_" + countryID
}

// CardID is the canonical card id for a slot: country first, then stage.
func CardID(countryID string, node NodeTypeID) string {
	return countryID + "_" + string(node)
}

type GenerateRequest struct {
	RequestedLocale string       `json:"requestedLocale"`
	CategoryID      string       `json:"categoryId"`
	ObjectName      string       `json:"objectName"`
	ObjectGeneric   string       `json:"objectGeneric"`
	CountryA        string       `json:"countryA"`
	CountryB        string       `json:"countryB"`
	NodeTypeIDs     []NodeTypeID `json:"nodeTypeIds"`
}

// Stages returns the requested stages, or all five when none were given.
func (r GenerateRequest) Stages() []NodeTypeID {
	if len(r.NodeTypeIDs) == 0 {
		return AllNodeTypes
	}
	return r.NodeTypeIDs
}

type GenerateResult struct {
	RequestedLocale      string          `json:"requestedLocale"`
	ResolvedLocale       string          `json:"resolvedLocale"`
	IsFallback           bool            `json:"isFallback"`
	FallbackChain        []string        `json:"fallbackChain,omitempty"`
	KnowledgeBaseVersion string          `json:"knowledgeBaseVersion,omitempty"`
	SessionID            string          `json:"sessionId"`
	Chapters             []ChapterMeta   `json:"chapters"`
	Dialogues            []DialogueLine  `json:"dialogues"`
	Cards                []KnowledgeCard `json:"cards"`
}

type CoverageResult struct {
	CategoryID       string   `json:"categoryId"`
	CoveredCountries []string `json:"coveredCountries"`
}

const (
	FeedbackInaccurate = "inaccurate"
	FeedbackIrrelevant = "irrelevant"
	FeedbackOther      = "other"
)

type FeedbackRequest struct {
	CardID            string     `json:"cardId"`
	CountryID         string     `json:"countryId"`
	CategoryID        string     `json:"categoryId"`
	NodeTypeID        NodeTypeID `json:"nodeTypeId"`
	FeedbackType      string     `json:"feedbackType"`
	FactIDsUsed       []string   `json:"factIdsUsed"`
	SourceHintIDsUsed []string   `json:"sourceHintIdsUsed"`
	Note              string     `json:"note,omitempty"`
}

type FeedbackResult struct {
	OK bool `json:"ok"`
}

// ImageRequest describes the card an illustration is generated for.
type ImageRequest struct {
	RequestedLocale  string     `json:"requestedLocale"`
	CategoryID       string     `json:"categoryId"`
	NodeTypeID       NodeTypeID `json:"nodeTypeId"`
	CountryID        string     `json:"countryId"`
	ObjectName       string     `json:"objectName"`
	ObjectGeneric    string     `json:"objectGeneric"`
	ChapterTitle     string     `json:"chapterTitle"`
	DisplayTimeLabel string     `json:"displayTimeLabel"`
	CardTitle        string     `json:"cardTitle"`
	Facts            []string   `json:"facts"`
	Keywords         []string   `json:"keywords"`
}

// ImageResult carries either inline image bytes or a remote URL.
type ImageResult struct {
	ImageBase64 string `json:"imageBase64,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
	ImageURL    string `json:"imageUrl,omitempty"`
}

// URI returns a data URL for inline images, otherwise the remote URL.
func (r ImageResult) URI() string {
	if r.ImageBase64 != "" {
		mime := r.MimeType
		if mime == "" {
			mime = "image/png"
		}
		return "data:" + mime + ";base64," + r.ImageBase64
	}
	return r.ImageURL
}
