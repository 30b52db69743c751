// internal/coerce/generate.go
package coerce

import (
	"fmt"
	"time"

	"grain-workers/internal/models"
)

// now is swapped in tests to pin fallback session ids.
var now = time.Now

// Identify coerces an identify response. Candidates are read from
// "categoryCandidates", falling back to "candidates"; entries without a
// category id are dropped.
func Identify(v interface{}) models.IdentifyResult {
	raw := Field(v, "categoryCandidates")
	if !IsArray(raw) {
		raw = Field(v, "candidates")
	}

	candidates := make([]models.CategoryCandidate, 0)
	for _, item := range AsArray(raw) {
		c := models.CategoryCandidate{
			CategoryID:   AsString(Field(item, "categoryId"), ""),
			CategoryName: AsString(Field(item, "categoryName"), ""),
		}
		if conf, ok := AsNumber(Field(item, "confidence")); ok {
			c.Confidence = &conf
		}
		if c.CategoryID == "" {
			continue
		}
		candidates = append(candidates, c)
	}

	return models.IdentifyResult{
		ObjectName:         AsString(Field(v, "objectName"), ""),
		ObjectGeneric:      AsString(Field(v, "objectGeneric"), ""),
		CategoryCandidates: candidates,
	}
}

// Generate coerces a generate response. requestedLocale is echoed back and
// used as the resolved locale when the payload has none.
func Generate(v interface{}, requestedLocale string) models.GenerateResult {
	out := models.GenerateResult{
		RequestedLocale: requestedLocale,
		ResolvedLocale:  AsString(Field(v, "resolvedLocale"), requestedLocale),
		IsFallback:      AsBool(Field(v, "isFallback"), false),
		SessionID:       AsString(Field(v, "sessionId"), fmt.Sprintf("sess_%d", now().UnixMilli())),
		Chapters:        make([]models.ChapterMeta, 0),
		Dialogues:       make([]models.DialogueLine, 0),
		Cards:           make([]models.KnowledgeCard, 0),
	}
	if chain := Field(v, "fallbackChain"); IsArray(chain) {
		out.FallbackChain = AsStrings(chain)
	}
	if kbv, ok := AsOptionalString(Field(v, "knowledgeBaseVersion")); ok {
		out.KnowledgeBaseVersion = kbv
	}

	for _, c := range AsArray(Field(v, "chapters")) {
		out.Chapters = append(out.Chapters, chapter(c))
	}
	for _, d := range AsArray(Field(v, "dialogues")) {
		out.Dialogues = append(out.Dialogues, models.DialogueLine{
			NodeTypeID: models.NodeTypeID(AsString(Field(d, "nodeTypeId"), "")),
			CountryID:  AsString(Field(d, "countryId"), ""),
			Text:       AsString(Field(d, "text"), ""),
		})
	}
	for _, c := range AsArray(Field(v, "cards")) {
		out.Cards = append(out.Cards, Card(c))
	}
	return out
}

func chapter(c interface{}) models.ChapterMeta {
	ch := models.ChapterMeta{
		CategoryID:       AsString(Field(c, "categoryId"), ""),
		NodeTypeID:       models.NodeTypeID(AsString(Field(c, "nodeTypeId"), "")),
		ChapterTitle:     AsString(Field(c, "chapterTitle"), ""),
		DisplayTimeLabel: AsString(Field(c, "displayTimeLabel"), ""),
		TimeRange:        timeRange(Field(c, "timeRange")),
	}
	if s, ok := AsOptionalString(Field(c, "chapterSubtitle")); ok {
		ch.ChapterSubtitle = s
	}
	if s, ok := AsOptionalString(Field(c, "chapterTone")); ok {
		ch.ChapterTone = s
	}
	return ch
}

func timeRange(v interface{}) *models.YearRange {
	start, okStart := AsNumber(Field(v, "startYear"))
	end, okEnd := AsNumber(Field(v, "endYear"))
	if !okStart && !okEnd {
		return nil
	}
	return &models.YearRange{StartYear: start, EndYear: end}
}

// Card coerces one knowledge card.
func Card(c interface{}) models.KnowledgeCard {
	card := models.KnowledgeCard{
		CardID:            AsString(Field(c, "cardId"), ""),
		CountryID:         AsString(Field(c, "countryId"), ""),
		CategoryID:        AsString(Field(c, "categoryId"), ""),
		NodeTypeID:        models.NodeTypeID(AsString(Field(c, "nodeTypeId"), "")),
		Title:             AsString(Field(c, "title"), ""),
		Facts:             AsStrings(Field(c, "facts")),
		Keywords:          AsStrings(Field(c, "keywords")),
		SourceHints:       SourceHints(Field(c, "sourceHints")),
		SensitivityTag:    AsString(Field(c, "sensitivityTag"), models.SensitivityNone),
		FactIDsUsed:       AsStrings(Field(c, "factIdsUsed")),
		SourceHintIDsUsed: AsStrings(Field(c, "sourceHintIdsUsed")),
	}
	if s, ok := AsOptionalString(Field(c, "knowledgeBaseVersion")); ok {
		card.KnowledgeBaseVersion = s
	}
	if s, ok := AsOptionalString(Field(c, "retrievalQueryHash")); ok {
		card.RetrievalQueryHash = s
	}
	return card
}

// SourceHints coerces a source hint list. Missing ids become sh_<n>, 1-based.
func SourceHints(v interface{}) []models.SourceHint {
	items := AsArray(v)
	out := make([]models.SourceHint, 0, len(items))
	for idx, s := range items {
		hint := models.SourceHint{
			SourceHintID: AsString(Field(s, "sourceHintId"), fmt.Sprintf("sh_%d", idx+1)),
			SourceType:   AsString(Field(s, "sourceType"), models.SourceTypeOther),
			SourceName:   AsString(Field(s, "sourceName"), "unknown"),
		}
		if year, ok := AsNumber(Field(s, "year")); ok {
			hint.Year = &year
		}
		if note, ok := AsOptionalString(Field(s, "note")); ok {
			hint.Note = &note
		}
		out = append(out, hint)
	}
	return out
}

// Coverage coerces a coverage response; categoryID fills a missing category.
func Coverage(v interface{}, categoryID string) models.CoverageResult {
	return models.CoverageResult{
		CategoryID:       AsString(Field(v, "categoryId"), categoryID),
		CoveredCountries: AsStrings(Field(v, "coveredCountries")),
	}
}

// Image coerces an image response carrying base64 data or a URL.
func Image(v interface{}) models.ImageResult {
	return models.ImageResult{
		ImageBase64: AsString(Field(v, "imageBase64"), ""),
		MimeType:    AsString(Field(v, "mimeType"), ""),
		ImageURL:    AsString(Field(v, "imageUrl"), ""),
	}
}
