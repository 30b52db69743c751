// Package completion fills every (stage, country) slot of a generation result
// so callers always get a full grid. Missing cards and dialogue lines become
// placeholders, missing chapters become minimal stand-ins.
package completion

import (
	"strings"

	"grain-workers/internal/catalog"
	"grain-workers/internal/models"
)

// PlaceholderKnowledgeBaseVersion marks cards synthesized here.
const PlaceholderKnowledgeBaseVersion = "placeholder"

const (
	placeholderTitle    = "内容暂未生成"
	placeholderDialogue = "（该国家/节点对话暂未生成，可稍后重试）"
)

var placeholderFacts = []string{
	"云端未返回该国家/节点的知识卡。",
	"建议点击“开始对话”重新生成，或更换模型/国家再试一次。",
}

// Context names the slots a result must cover.
type Context struct {
	CategoryID string
	CountryA   string
	CountryB   string
	// Stages defaults to all five when empty.
	Stages []models.NodeTypeID
}

func (c Context) stages() []models.NodeTypeID {
	if len(c.Stages) == 0 {
		return models.AllNodeTypes
	}
	out := make([]models.NodeTypeID, 0, len(c.Stages))
	for _, s := range c.Stages {
		out = append(out, models.NormalizeNodeTypeID(string(s)))
	}
	return out
}

func (c Context) countries() []string {
	return []string{catalog.NormalizeCountryID(c.CountryA), catalog.NormalizeCountryID(c.CountryB)}
}

// Stats counts what the output holds that did not come from the model.
type Stats struct {
	PlaceholderCards     int
	PlaceholderDialogues int
	PlaceholderChapters  int
}

// PlaceholderCard is the stand-in for a slot the model left empty.
func PlaceholderCard(countryID, categoryID string, node models.NodeTypeID) models.KnowledgeCard {
	cardID := models.CardID(countryID, node)
	note := "auto-filled"
	facts := make([]string, len(placeholderFacts))
	copy(facts, placeholderFacts)
	return models.KnowledgeCard{
		CardID:     cardID,
		CountryID:  countryID,
		CategoryID: categoryID,
		NodeTypeID: node,
		Title:      placeholderTitle,
		Facts:      facts,
		Keywords:   []string{"missing", countryID, string(node)},
		SourceHints: []models.SourceHint{{
			SourceHintID: "sh_" + cardID + "_placeholder",
			SourceType:   models.SourceTypeOther,
			SourceName:   "placeholder",
			Note:         &note,
		}},
		SensitivityTag:       models.SensitivityNone,
		FactIDsUsed:          []string{},
		SourceHintIDsUsed:    []string{},
		KnowledgeBaseVersion: PlaceholderKnowledgeBaseVersion,
	}
}

// IsPlaceholder reports whether card was synthesized by PlaceholderCard.
func IsPlaceholder(card models.KnowledgeCard) bool {
	return card.KnowledgeBaseVersion == PlaceholderKnowledgeBaseVersion
}

// IsPlaceholderDialogue reports whether text is the synthesized line.
func IsPlaceholderDialogue(text string) bool {
	return text == placeholderDialogue
}

func isPlaceholderChapter(ch models.ChapterMeta) bool {
	return ch.ChapterTitle == string(ch.NodeTypeID) && ch.DisplayTimeLabel == ""
}

// Complete returns a copy of result covering every wanted slot. It never
// mutates result and Complete(Complete(r, ctx), ctx) equals Complete(r, ctx).
func Complete(result models.GenerateResult, ctx Context) models.GenerateResult {
	out, _ := CompleteWithStats(result, ctx)
	return out
}

// CompleteWithStats is Complete plus placeholder counts for the output.
func CompleteWithStats(result models.GenerateResult, ctx Context) (models.GenerateResult, Stats) {
	stages := ctx.stages()
	countries := ctx.countries()
	var stats Stats

	chapterByNode := make(map[models.NodeTypeID]models.ChapterMeta, len(result.Chapters))
	for _, ch := range result.Chapters {
		ch.NodeTypeID = models.NormalizeNodeTypeID(string(ch.NodeTypeID))
		ch.CategoryID = ctx.CategoryID
		chapterByNode[ch.NodeTypeID] = ch
	}

	// Later duplicates win, so a malformed country label that normalizes onto
	// an existing slot replaces it instead of adding a second card.
	cardBySlot := make(map[string]models.KnowledgeCard, len(result.Cards))
	for _, c := range result.Cards {
		c.CountryID = catalog.NormalizeCountryID(c.CountryID)
		c.NodeTypeID = models.NormalizeNodeTypeID(string(c.NodeTypeID))
		if strings.TrimSpace(c.CardID) == "" {
			c.CardID = models.CardID(c.CountryID, c.NodeTypeID)
		}
		c.CategoryID = ctx.CategoryID
		cardBySlot[models.SlotKey(c.NodeTypeID, c.CountryID)] = c
	}

	dialogueBySlot := make(map[string]string, len(result.Dialogues))
	for _, d := range result.Dialogues {
		if strings.TrimSpace(d.Text) == "" {
			continue
		}
		node := models.NormalizeNodeTypeID(string(d.NodeTypeID))
		dialogueBySlot[models.SlotKey(node, catalog.NormalizeCountryID(d.CountryID))] = d.Text
	}

	out := result
	if result.FallbackChain != nil {
		out.FallbackChain = append([]string(nil), result.FallbackChain...)
	}
	out.Chapters = make([]models.ChapterMeta, 0, len(stages))
	out.Dialogues = make([]models.DialogueLine, 0, len(stages)*len(countries))
	out.Cards = make([]models.KnowledgeCard, 0, len(stages)*len(countries))

	for _, node := range stages {
		ch, ok := chapterByNode[node]
		if !ok {
			ch = models.ChapterMeta{CategoryID: ctx.CategoryID, NodeTypeID: node, ChapterTitle: string(node)}
		}
		if isPlaceholderChapter(ch) {
			stats.PlaceholderChapters++
		}
		out.Chapters = append(out.Chapters, ch)

		for _, country := range countries {
			slot := models.SlotKey(node, country)

			card, ok := cardBySlot[slot]
			if !ok {
				card = PlaceholderCard(country, ctx.CategoryID, node)
			}
			if IsPlaceholder(card) {
				stats.PlaceholderCards++
			}
			out.Cards = append(out.Cards, card)

			text, ok := dialogueBySlot[slot]
			if !ok {
				text = placeholderDialogue
			}
			if IsPlaceholderDialogue(text) {
				stats.PlaceholderDialogues++
			}
			out.Dialogues = append(out.Dialogues, models.DialogueLine{NodeTypeID: node, CountryID: country, Text: text})
		}
	}
	return out, stats
}
