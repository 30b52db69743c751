// internal/catalog/demo.go
package catalog

import (
	"fmt"

	"grain-workers/internal/models"
)

// DemoKnowledgeBaseVersion tags every bundled card.
const DemoKnowledgeBaseVersion = "demo-egg-fr-jp-v1"

// MissingDialogue is returned for a slot the bundled dataset does not cover.
const MissingDialogue = "（该国家/节点对话暂未覆盖）"

var chaptersByNode = map[models.NodeTypeID]models.ChapterMeta{
	models.NodeOrigin:   {NodeTypeID: models.NodeOrigin, ChapterTitle: "巨兽与岛屿", DisplayTimeLabel: "7000万年前（白垩纪晚期）"},
	models.NodeSpread:   {NodeTypeID: models.NodeSpread, ChapterTitle: "帝国的开胃菜 vs 泥土中的神物", DisplayTimeLabel: "公元1世纪（约公元50年）"},
	models.NodeRitual:   {NodeTypeID: models.NodeRitual, ChapterTitle: "不朽的色彩 vs 斗争的血脉", DisplayTimeLabel: "15世纪（约1450年）"},
	models.NodeIndustry: {NodeTypeID: models.NodeIndustry, ChapterTitle: "宫廷的奢靡 vs 舶来的珍馐", DisplayTimeLabel: "17世纪中叶（约1650年）"},
	models.NodeModern:   {NodeTypeID: models.NodeModern, ChapterTitle: "极致的烹饪 vs 文明的开化", DisplayTimeLabel: "19世纪末（约1890年）"},
}

var dialogues = map[models.NodeTypeID]map[string]string{
	models.NodeOrigin: {
		"FR": "在普罗旺斯的沙土巢穴里，我是巨鸟的血脉延续，不是食物。",
		"JP": "在远古的列岛边缘，我更像兽脚类的蛋——面对火山与地震，只为活下去。",
	},
	models.NodeSpread: {
		"FR": "在高卢的罗马宴席上，我半熟剥壳、浸鱼酱与葡萄酒：一口开胃的秩序。",
		"JP": "在弥生，我稀有而神圣：可能被当作种蛋守护，或只以符号陪伴祭祀。",
	},
	models.NodeRitual: {
		"FR": "我没上餐桌，而是与矿物颜料混合，把那抹蓝永久固定在木板上。",
		"JP": "我被留作种蛋，在斗鸡的世界里孵化——被期待的是破壳后的力量。",
	},
	models.NodeIndustry: {
		"FR": "在凡尔赛，我被打成蛋白霜：空气被揉进泡沫，甜点成了权力的轻盈。",
		"JP": "在长崎，我与砂糖和面粉相遇：靠打发撑起卡斯特拉，异国甜味被本地化。",
	},
	models.NodeModern: {
		"FR": "在巴黎的铜锅里，我学会了欧姆蛋的规矩：金黄、半流心，像一门手艺课。",
		"JP": "在明治的牛锅旁，我被生打在碗里蘸牛肉：这是拥抱新饮食的另一种勇气。",
	},
}

func hint(id, sourceType, name string, year float64) models.SourceHint {
	return models.SourceHint{SourceHintID: id, SourceType: sourceType, SourceName: name, Year: &year}
}

func demoCard(countryID string, node models.NodeTypeID, title string, facts, keywords []string,
	hints []models.SourceHint, sensitivity string) models.KnowledgeCard {
	cardID := models.CardID(countryID, node)
	factIDs := make([]string, len(facts))
	for i := range facts {
		factIDs[i] = fmt.Sprintf("demo_fact_%s_%d", cardID, i+1)
	}
	hintIDs := make([]string, len(hints))
	for i, h := range hints {
		hintIDs[i] = h.SourceHintID
	}
	return models.KnowledgeCard{
		CardID:               cardID,
		CountryID:            countryID,
		CategoryID:           "food_drink",
		NodeTypeID:           node,
		Title:                title,
		Facts:                facts,
		Keywords:             keywords,
		SourceHints:          hints,
		SensitivityTag:       sensitivity,
		FactIDsUsed:          factIDs,
		SourceHintIDsUsed:    hintIDs,
		KnowledgeBaseVersion: DemoKnowledgeBaseVersion,
	}
}

var cards = indexCards(
	demoCard("FR", models.NodeOrigin, "巨鸟之蛋：白垩纪巢穴与生命延续",
		[]string{
			"白垩纪晚期欧洲存在多种大型鸟类或近鸟类，蛋壳与巢穴化石常用于推断繁殖行为。",
			"远古阶段证据有限，叙事应明确不确定性与推断边界。",
		},
		[]string{"Cretaceous", "eggshell", "nest", "Gargantuavis"},
		[]models.SourceHint{
			hint("sh_fr_origin_1", "journal", "paleontology review（示意）", 2010),
			hint("sh_fr_origin_2", "encyclopedia", "Wikipedia: Gargantuavis（示意）", 2024),
		},
		models.SensitivityDisputed),
	demoCard("JP", models.NodeOrigin, "兽脚类恐龙蛋：在地质剧烈的边缘",
		[]string{
			"兽脚类恐龙的蛋形与巢穴信息可通过蛋壳结构与化石分布进行推测。",
			"火山喷发与地质活动会影响巢穴保存与发现，导致信息存在不确定性。",
		},
		[]string{"Theropod", "dinosaur egg", "Fukuiraptor", "nest"},
		[]models.SourceHint{
			hint("sh_jp_origin_1", "journal", "dinosaur reproduction review（示意）", 2018),
			hint("sh_jp_origin_2", "encyclopedia", "Wikipedia: Fukuiraptor（示意）", 2024),
		},
		models.SensitivityDisputed),
	demoCard("FR", models.NodeSpread, "罗马宴席的开胃顺序：从鸡蛋到苹果",
		[]string{
			"罗马饮食文化中鸡蛋常作为开胃菜出现，体现宴席结构与礼仪。",
			"鱼酱（Garum）是罗马常见调味品之一，常与酒与香料组合使用。",
		},
		[]string{"Roman cuisine", "Garum", "Gallo-Roman", "Apicius"},
		[]models.SourceHint{
			hint("sh_fr_spread_1", "academic_book", "Apicius（示意）", 2006),
			hint("sh_fr_spread_2", "encyclopedia", "Wikipedia: Garum（示意）", 2024),
		},
		models.SensitivityNone),
	demoCard("JP", models.NodeSpread, "弥生的神圣种源：稀有家禽与仪式象征",
		[]string{
			"鸡在日本早期传入与扩散的时间与地区并不一致，资料存在不确定性。",
			"作为报晓的象征，鸡可能被赋予仪式意义，食用并非主流。",
		},
		[]string{"Yayoi", "ritual", "domesticated chicken", "symbol"},
		[]models.SourceHint{
			hint("sh_jp_spread_1", "journal", "archaeology overview（示意）", 2016),
			hint("sh_jp_spread_2", "encyclopedia", "Britannica: chicken（示意）", 2020),
		},
		models.SensitivityDisputed),
	demoCard("FR", models.NodeRitual, "蛋彩画（Tempera）：蛋黄作为颜料粘合剂",
		[]string{
			"蛋彩画常用蛋黄作为粘合剂，与矿物色粉混合后上板成像。",
			"在油画普及前后，蛋彩在宗教画与装饰中长期存在。",
		},
		[]string{"Tempera", "egg yolk binder", "mineral pigments"},
		[]models.SourceHint{
			hint("sh_fr_ritual_1", "encyclopedia", "Britannica: Tempera（示意）", 2020),
			hint("sh_fr_ritual_2", "museum", "Louvre education notes（示意）", 2015),
		},
		models.SensitivityNone),
	demoCard("JP", models.NodeRitual, "斗鸡（Shamo）与孵化：被期待的破壳",
		[]string{
			"斗鸡文化在不同时期与地区有不同形态，其兴盛往往与社会结构与娱乐需求有关。",
			"在这种语境下，鸡蛋可能更被视为孵化“斗鸡”的起点，而非食用。",
		},
		[]string{"Shamo", "cockfighting", "incubation"},
		[]models.SourceHint{
			hint("sh_jp_ritual_1", "reputable_media", "cultural history notes（示意）", 2019),
		},
		models.SensitivityNone),
	demoCard("FR", models.NodeIndustry, "蛋白霜（Meringue）：宫廷甜点的空气感",
		[]string{
			"蛋白在强力打发下能形成泡沫结构，烘烤后成为蛋白霜类甜点。",
			"17世纪法国宫廷饮食文化强调造型与质地，对甜点工艺发展有推动。",
		},
		[]string{"Meringue", "Versailles", "egg white foam"},
		[]models.SourceHint{
			hint("sh_fr_industry_1", "academic_book", "The Oxford Companion to Food（示意）", 2014),
		},
		models.SensitivityNone),
	demoCard("JP", models.NodeIndustry, "卡斯特拉（Castella）：长崎的南蛮甜味",
		[]string{
			"江户初期锁国下长崎是重要对外窗口，葡萄牙甜点技法在此传播并本地化。",
			"卡斯特拉依靠鸡蛋打发来支撑结构，是早期引入的西式蛋糕之一。",
		},
		[]string{"Castella", "Nagasaki", "Nanban"},
		[]models.SourceHint{
			hint("sh_jp_industry_1", "reputable_media", "Nagasaki tourism（示意）", 2020),
			hint("sh_jp_industry_2", "encyclopedia", "Wikipedia: Castella（示意）", 2024),
		},
		models.SensitivityNone),
	demoCard("FR", models.NodeModern, "欧姆蛋的标准化：金黄与半流心的训练题",
		[]string{
			"19世纪末法国餐饮职业化推动了菜式与工序的标准化训练。",
			"法式欧姆蛋常强调外观金黄、内部湿润（半流心）等要点。",
		},
		[]string{"Omelette", "Belle Époque", "haute cuisine", "Escoffier"},
		[]models.SourceHint{
			hint("sh_fr_modern_1", "academic_book", "Larousse Gastronomique（示意）", 2018),
			hint("sh_fr_modern_2", "reputable_media", "Serious Eats: French omelette（示意）", 2022),
		},
		models.SensitivityNone),
	demoCard("JP", models.NodeModern, "牛锅与生蛋蘸料：明治的饮食转向",
		[]string{
			"明治维新后饮食结构变化，牛肉料理常被视为“文明开化”的象征之一。",
			"寿喜烧常用生鸡蛋蘸食以降温并增加滑嫩口感（注意食品安全）。",
		},
		[]string{"Gyunabe", "Sukiyaki", "Meiji era", "raw egg dip"},
		[]models.SourceHint{
			hint("sh_jp_modern_1", "reputable_media", "NHK Food（示意）", 2021),
			hint("sh_jp_modern_2", "encyclopedia", "Wikipedia: Sukiyaki（示意）", 2024),
		},
		models.SensitivityNone),
)

func indexCards(list ...models.KnowledgeCard) map[string]models.KnowledgeCard {
	out := make(map[string]models.KnowledgeCard, len(list))
	for _, c := range list {
		out[c.CardID] = c
	}
	return out
}

// Card looks up a bundled card by id.
func Card(cardID string) (models.KnowledgeCard, bool) {
	c, ok := cards[cardID]
	return c, ok
}

// Dialogue returns the bundled line for a slot, or MissingDialogue.
func Dialogue(node models.NodeTypeID, countryID string) string {
	if text, ok := dialogues[node][countryID]; ok {
		return text
	}
	return MissingDialogue
}

// Chapter returns the bundled chapter for a stage under categoryID.
func Chapter(categoryID string, node models.NodeTypeID) models.ChapterMeta {
	ch, ok := chaptersByNode[node]
	if !ok {
		ch = models.ChapterMeta{NodeTypeID: node, ChapterTitle: string(node)}
	}
	ch.CategoryID = categoryID
	return ch
}

// SessionRow is one stage of the side-by-side comparison.
type SessionRow struct {
	NodeTypeID models.NodeTypeID    `json:"nodeTypeId"`
	A          models.KnowledgeCard `json:"a"`
	B          models.KnowledgeCard `json:"b"`
	Chapter    models.ChapterMeta   `json:"chapter"`
}

// SessionCards builds the five bundled rows for two countries. ok is false
// when either country has no bundled cards.
func SessionCards(categoryID, countryA, countryB string) ([]SessionRow, bool) {
	rows := make([]SessionRow, 0, len(NodeTypes))
	for _, n := range NodeTypes {
		a, okA := Card(models.CardID(countryA, n.ID))
		b, okB := Card(models.CardID(countryB, n.ID))
		if !okA || !okB {
			return nil, false
		}
		rows = append(rows, SessionRow{NodeTypeID: n.ID, A: a, B: b, Chapter: Chapter(categoryID, n.ID)})
	}
	return rows, true
}
