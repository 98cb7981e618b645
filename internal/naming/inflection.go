package naming

import (
	"strings"

	"github.com/jinzhu/inflection"
)

// Pluralize converts a singular word to its plural form. Overrides win over
// the inflection rules; only the last snake_case segment is inflected.
func (n *Namer) Pluralize(word string) string {
	if override, ok := n.config.PluralOverrides[word]; ok {
		return override
	}
	head, last := splitLastSegment(word)
	if override, ok := n.config.PluralOverrides[last]; ok {
		return head + override
	}
	return head + inflection.Plural(last)
}

// Singularize converts a plural word to its singular form.
func (n *Namer) Singularize(word string) string {
	if override, ok := n.config.SingularOverrides[word]; ok {
		return override
	}
	head, last := splitLastSegment(word)
	if override, ok := n.config.SingularOverrides[last]; ok {
		return head + override
	}
	return head + inflection.Singular(last)
}

// splitLastSegment splits "order_line_items" into "order_line_" and "items".
func splitLastSegment(word string) (string, string) {
	idx := strings.LastIndex(word, "_")
	if idx < 0 || idx == len(word)-1 {
		return "", word
	}
	return word[:idx+1], word[idx+1:]
}
