package resource

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titleCaser = cases.Title(language.English)

// LogicalID builds a deterministic logical identifier from a service
// or stack prefix and name parts. Hyphen- and underscore-separated
// words are title-cased and concatenated, matching the identifier
// style the provisioning engine expects: ("metadata-service",
// "target-group", "8080") becomes "MetadataServiceTargetGroup8080".
func LogicalID(prefix string, parts ...string) string {
	var b strings.Builder
	writeTitled(&b, prefix)
	for _, part := range parts {
		writeTitled(&b, part)
	}
	return b.String()
}

func writeTitled(b *strings.Builder, s string) {
	for _, word := range strings.FieldsFunc(s, func(r rune) bool {
		return r == '-' || r == '_' || r == ' ' || r == '.'
	}) {
		b.WriteString(titleCaser.String(word))
	}
}
