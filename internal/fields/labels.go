package fields

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var labelOverrides = map[string]string{
	"assetId":           "Asset ID",
	"macAddress":        "MAC Address",
	"imageUrl":          "Image",
	"currencyTool":      "Cost",
	"assignedUser":      "Assigned To",
	"assignedUsers":     "Assigned To",
	"assignmentHistory": "History",
	"userHistory":       "Asset History",
	"variantType":       "Variant",
}

// Label returns the display label for a field key, splitting camelCase
// keys into title-cased words.
func Label(key string) string {
	if l, ok := labelOverrides[key]; ok {
		return l
	}
	var b strings.Builder
	for i, r := range key {
		if i > 0 && unicode.IsUpper(r) {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	return cases.Title(language.English).String(b.String())
}
