package policy

import (
	"strings"
	"unicode"
)

var codeStopWords = map[string]bool{
	"AND": true,
	"OF":  true,
	"THE": true,
	"FOR": true,
}

// DepartmentCode derives the uppercase code from a department name, e.g.
// "Roads and Transport" -> ROADS_TRANSPORT. It is recomputed whenever the
// name changes.
func DepartmentCode(name string) string {
	words := strings.FieldsFunc(strings.ToUpper(name), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	kept := make([]string, 0, len(words))
	for _, w := range words {
		if codeStopWords[w] {
			continue
		}
		kept = append(kept, w)
	}
	return strings.Join(kept, "_")
}
