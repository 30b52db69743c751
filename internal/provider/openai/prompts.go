package openai

import (
	"encoding/json"
	"fmt"

	"grain-workers/internal/catalog"
	"grain-workers/internal/models"
)

const (
	identifySystem = "You are an API and must return strict JSON only."
	generateSystem = "你是一个后端服务，只能返回严格 JSON。"
)

const generateSchemaHint = `返回严格 JSON（不要 Markdown）。必须包含：requestedLocale,resolvedLocale,isFallback,fallbackChain?,knowledgeBaseVersion?,sessionId,chapters[],dialogues[],cards[]。
chapters[]: {categoryId,nodeTypeId,chapterTitle,displayTimeLabel,timeRange?}
dialogues[]: {nodeTypeId,countryId,text}
cards[]: {cardId,countryId,categoryId,nodeTypeId,title,facts[],keywords[],sourceHints[],sensitivityTag,factIdsUsed[],sourceHintIdsUsed[]}
sourceHints[]: {sourceHintId,sourceType,sourceName,year?,note?}
约束：facts>=2; keywords>=3; sourceHints>=1; nodeTypeId 仅允许 ORIGIN/SPREAD/RITUAL/INDUSTRY/MODERN。`

const shortnessHint = `为避免输出被截断：
- dialogue 每条尽量 1 句，<=80 字；
- facts 只写 2 条短句；keywords 3 个；sourceHints 1 条；
- 尽量输出紧凑 JSON（少换行/少空格）。`

const compactHint = `如果需要重试：进一步压缩：
- chapterTitle<=14字；displayTimeLabel<=20字；
- facts=2（每条<=50字）；keywords=3（每个<=10字）；sourceHints=1；
- 输出 minified JSON（不换行/不缩进）。`

type message struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

func system(text string) message {
	return message{Role: "system", Content: text}
}

func identifySchemaHint(locale string) string {
	return fmt.Sprintf(`Return JSON only (no Markdown). Schema:
{ "objectName": string, "objectGeneric": string, "categoryCandidates": [{ "categoryId": string, "categoryName": string, "confidence": number }] }
Rules:
- categoryId MUST be one of the allowed categories below.
- Return up to 3 candidates, sorted by confidence desc (0..1).
- objectName/objectGeneric should be in locale: %s.`, locale)
}

func strictOutputHint(req models.GenerateRequest, chapters, pairs int) string {
	return fmt.Sprintf(`硬规则：
- countryId 只能是 "%s" 或 "%s"（用代码，不要国家中文/英文名）。
- chapters 必须输出 %d 条（每 nodeTypeId 1 条）。
- dialogues 必须输出 %d 条（nodeTypeId × 两国）。
- cards 必须输出 %d 张（nodeTypeId × 两国）。`, req.CountryA, req.CountryB, chapters, pairs, pairs)
}

type allowedCategory struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func identifyMessages(locale, imageURL string, categories []catalog.Category) ([]message, error) {
	allowed := make([]allowedCategory, 0, len(categories))
	for _, c := range categories {
		allowed = append(allowed, allowedCategory{ID: c.ID, Name: c.Name})
	}
	task, err := json.Marshal(map[string]interface{}{
		"task":              "identify_object_and_classify",
		"locale":            locale,
		"allowedCategories": allowed,
	})
	if err != nil {
		return nil, err
	}
	return []message{
		system(identifySystem),
		system(identifySchemaHint(locale)),
		{Role: "user", Content: []interface{}{
			map[string]interface{}{"type": "text", "text": string(task)},
			map[string]interface{}{"type": "image_url", "image_url": map[string]string{"url": imageURL}},
		}},
	}, nil
}

type generateRules struct {
	CardIDFormat              string `json:"cardIdFormat"`
	ChapterTitleSharedPerNode bool   `json:"chapterTitleSharedPerNode"`
	Sources                   string `json:"sources"`
}

type generatePrompt struct {
	RequestedLocale string              `json:"requestedLocale"`
	CategoryID      string              `json:"categoryId"`
	ObjectName      string              `json:"objectName"`
	ObjectGeneric   string              `json:"objectGeneric"`
	CountryA        string              `json:"countryA"`
	CountryB        string              `json:"countryB"`
	NodeTypeIDs     []models.NodeTypeID `json:"nodeTypeIds"`
	Rules           generateRules       `json:"rules"`
}

func generateMessages(req models.GenerateRequest, compact bool) ([]message, error) {
	stages := req.Stages()
	user, err := json.Marshal(generatePrompt{
		RequestedLocale: req.RequestedLocale,
		CategoryID:      req.CategoryID,
		ObjectName:      req.ObjectName,
		ObjectGeneric:   req.ObjectGeneric,
		CountryA:        req.CountryA,
		CountryB:        req.CountryB,
		NodeTypeIDs:     stages,
		Rules: generateRules{
			CardIDFormat:              "{countryId}_{nodeTypeId}",
			ChapterTitleSharedPerNode: true,
			Sources:                   "每卡至少 1 条来源线索；不确定时用弱断言并标记 disputed。",
		},
	})
	if err != nil {
		return nil, err
	}

	msgs := []message{
		system(generateSystem),
		system(generateSchemaHint),
		system(strictOutputHint(req, len(stages), len(stages)*2)),
		system(shortnessHint),
	}
	if compact {
		msgs = append(msgs, system(compactHint))
	}
	return append(msgs, message{Role: "user", Content: string(user)}), nil
}
