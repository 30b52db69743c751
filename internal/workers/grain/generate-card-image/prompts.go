package generatecardimage

import (
	"fmt"
	"strings"

	"grain-workers/internal/appstate"
	"grain-workers/internal/catalog"
	"grain-workers/internal/models"
)

const (
	openAIImageSize    = "512x512"
	dashScopeImageSize = "1024x1024"

	maxRequestFacts    = 3
	maxRequestKeywords = 6
)

func object(sess appstate.Session) string {
	if sess.ObjectGeneric != "" {
		return sess.ObjectGeneric
	}
	return sess.ObjectName
}

// englishPrompt is sent to OpenAI-compatible image models.
func englishPrompt(card models.KnowledgeCard, chapter models.ChapterMeta, sess appstate.Session) string {
	return strings.Join([]string{
		"Create a clean, modern illustration (no text, no logos).",
		fmt.Sprintf("Topic: %s.", card.Title),
		fmt.Sprintf("Object: %s.", object(sess)),
		fmt.Sprintf("Culture/Country: %s.", catalog.CountryName(card.CountryID)),
		fmt.Sprintf("Time: %s.", chapter.DisplayTimeLabel),
		"Style: flat illustration, cinematic lighting, minimal, high quality, no faces, no flags.",
	}, " ")
}

// chinesePrompt is sent to Wanx, which follows Chinese prompts more closely.
func chinesePrompt(card models.KnowledgeCard, chapter models.ChapterMeta, sess appstate.Session) string {
	return strings.Join([]string{
		fmt.Sprintf("生成一张高质量插画：主题=%s。", card.Title),
		fmt.Sprintf("物体=%s。", object(sess)),
		fmt.Sprintf("国家/文化=%s。时间=%s。", catalog.CountryName(card.CountryID), chapter.DisplayTimeLabel),
		"要求：无文字无Logo，尽量不出现人脸，风格统一、现代、干净。",
	}, " ")
}

func backendRequest(locale string, card models.KnowledgeCard, chapter models.ChapterMeta, sess appstate.Session) models.ImageRequest {
	return models.ImageRequest{
		RequestedLocale:  locale,
		CategoryID:       card.CategoryID,
		NodeTypeID:       card.NodeTypeID,
		CountryID:        card.CountryID,
		ObjectName:       sess.ObjectName,
		ObjectGeneric:    sess.ObjectGeneric,
		ChapterTitle:     chapter.ChapterTitle,
		DisplayTimeLabel: chapter.DisplayTimeLabel,
		CardTitle:        card.Title,
		Facts:            head(card.Facts, maxRequestFacts),
		Keywords:         head(card.Keywords, maxRequestKeywords),
	}
}

func head(list []string, n int) []string {
	if len(list) > n {
		list = list[:n]
	}
	return append([]string{}, list...)
}
