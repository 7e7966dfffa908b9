package services

import "strings"

// categoryRule maps a title fragment to a coarse reporting category
type categoryRule struct {
	fragment string
	category string
}

// Ordered, first match wins. Fragments are matched case-insensitively against
// the raw title, so both Japanese and romanized listings bucket the same way.
var categoryRules = []categoryRule{
	{"イヤホン", "audio"},
	{"ヘッドホン", "audio"},
	{"earbud", "audio"},
	{"headphone", "audio"},
	{"スピーカー", "audio"},
	{"キーボード", "pc_accessories"},
	{"keyboard", "pc_accessories"},
	{"マウス", "pc_accessories"},
	{"mouse", "pc_accessories"},
	{"掃除機", "appliances"},
	{"vacuum", "appliances"},
	{"炊飯器", "kitchen"},
	{"ケトル", "kitchen"},
	{"kettle", "kitchen"},
	{"トースター", "kitchen"},
	{"toaster", "kitchen"},
	{"コーヒー", "kitchen"},
	{"カメラ", "camera"},
	{"camera", "camera"},
	{"ギター", "instruments"},
	{"guitar", "instruments"},
	{"slinky", "instruments"},
	{"バッテリー", "power"},
	{"充電", "power"},
	{"charger", "power"},
	{"powercore", "power"},
}

// CategorizeTitle buckets a listing title into a coarse category for
// reporting. Returns nil when no rule matches; the listing's own category,
// when the platform supplied one, always wins over this heuristic.
func CategorizeTitle(title string) *string {
	lowered := strings.ToLower(title)
	for _, rule := range categoryRules {
		if strings.Contains(lowered, rule.fragment) {
			category := rule.category
			return &category
		}
	}
	return nil
}
