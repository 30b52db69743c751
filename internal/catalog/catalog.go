// Package catalog holds the bundled offline dataset: countries, categories,
// stage labels, category coverage and the demo egg content for FR and JP.
package catalog

import (
	"strings"

	"grain-workers/internal/models"
)

type Country struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Category struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
}

type NodeType struct {
	ID    models.NodeTypeID `json:"id"`
	Label string            `json:"label"`
}

// DemoObject is the object shown before anything has been identified.
var DemoObject = struct {
	ObjectName    string
	ObjectGeneric string
}{ObjectName: "鸡蛋", ObjectGeneric: "蛋"}

var NodeTypes = []NodeType{
	{models.NodeOrigin, "起源"},
	{models.NodeSpread, "传播"},
	{models.NodeRitual, "礼仪"},
	{models.NodeIndustry, "产业"},
	{models.NodeModern, "当代"},
}

var Categories = []Category{
	{ID: "food_drink", Name: "食物饮品（鸡蛋示例）", Enabled: true},
	{ID: "kitchen", Name: "餐厨器具（未开放）", Enabled: false},
	{ID: "materials", Name: "材料工艺（未开放）", Enabled: false},
}

var Countries = []Country{
	{"CN", "中国"},
	{"JP", "日本"},
	{"KR", "韩国"},
	{"VN", "越南"},
	{"TH", "泰国"},
	{"IN", "印度"},
	{"TR", "土耳其"},
	{"EG", "埃及"},
	{"FR", "法国"},
	{"GB", "英国"},
	{"IT", "意大利"},
	{"ES", "西班牙"},
	{"DE", "德国"},
	{"GR", "希腊"},
	{"US", "美国"},
	{"MX", "墨西哥"},
}

var coverageByCategory = map[string][]string{
	"food_drink": {"FR", "JP"},
	"kitchen":    {},
	"materials":  {},
}

var countryIDByEnglish = map[string]string{
	"china":                      "CN",
	"people's republic of china": "CN",
	"japan":                      "JP",
	"korea":                      "KR",
	"south korea":                "KR",
	"vietnam":                    "VN",
	"thailand":                   "TH",
	"india":                      "IN",
	"turkey":                     "TR",
	"egypt":                      "EG",
	"france":                     "FR",
	"united kingdom":             "GB",
	"uk":                         "GB",
	"britain":                    "GB",
	"italy":                      "IT",
	"spain":                      "ES",
	"germany":                    "DE",
	"greece":                     "GR",
	"united states":              "US",
	"usa":                        "US",
	"mexico":                     "MX",
}

// NormalizeCountryID maps a model-supplied country label to a known code.
// It tries the code itself (case-insensitive), then the Chinese display
// name, then English aliases. Unknown labels come back trimmed.
func NormalizeCountryID(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return trimmed
	}
	upper := strings.ToUpper(trimmed)
	for _, c := range Countries {
		if c.ID == upper {
			return c.ID
		}
	}
	for _, c := range Countries {
		if c.Name == trimmed {
			return c.ID
		}
	}
	if id, ok := countryIDByEnglish[strings.ToLower(trimmed)]; ok {
		return id
	}
	return trimmed
}

func GetCountry(id string) (Country, bool) {
	for _, c := range Countries {
		if c.ID == id {
			return c, true
		}
	}
	return Country{}, false
}

func GetCategory(id string) (Category, bool) {
	for _, c := range Categories {
		if c.ID == id {
			return c, true
		}
	}
	return Category{}, false
}

// CountryName returns the display name, or the id itself when unknown.
func CountryName(id string) string {
	if c, ok := GetCountry(id); ok {
		return c.Name
	}
	return id
}

// CategoryName returns the display name, or the id itself when unknown.
func CategoryName(id string) string {
	if c, ok := GetCategory(id); ok {
		return c.Name
	}
	return id
}

func IsCategoryEnabled(id string) bool {
	c, ok := GetCategory(id)
	return ok && c.Enabled
}

// IsCountryCovered reports whether bundled content exists for the pair.
func IsCountryCovered(countryID, categoryID string) bool {
	if !IsCategoryEnabled(categoryID) {
		return false
	}
	for _, id := range coverageByCategory[categoryID] {
		if id == countryID {
			return true
		}
	}
	return false
}

// Coverage is the offline answer to a coverage query.
func Coverage(categoryID string) models.CoverageResult {
	covered := make([]string, 0)
	if IsCategoryEnabled(categoryID) {
		covered = append(covered, coverageByCategory[categoryID]...)
	}
	return models.CoverageResult{CategoryID: categoryID, CoveredCountries: covered}
}

// AllowedCategories lists the categories identification may choose from.
// Disabled categories are still offered so the caller can tell the user
// that the object belongs to a category that is not open yet.
func AllowedCategories() []Category {
	out := make([]Category, len(Categories))
	copy(out, Categories)
	return out
}
