package tag

import (
	"regexp"
	"strings"

	"github.com/garyjia/legal-docgen/internal/domain/entity"
)

// tagPattern matches ${category.field}, tolerating inner whitespace
var tagPattern = regexp.MustCompile(`\$\{\s*([A-Za-z_][A-Za-z0-9_]*)\.([A-Za-z0-9_.]+?)\s*\}`)

// Scanner extracts tag references from template text
type Scanner struct {
	catalog *Catalog
}

// NewScanner creates a scanner validating against the given catalog
func NewScanner(catalog *Catalog) *Scanner {
	return &Scanner{catalog: catalog}
}

// Scan returns the ordered, de-duplicated tag manifest for text.
// Tags missing from the catalog are kept and flagged unresolved.
func (s *Scanner) Scan(text string, docType entity.DocumentType) []entity.TagRef {
	matches := tagPattern.FindAllStringSubmatch(text, -1)
	seen := make(map[string]bool, len(matches))
	refs := make([]entity.TagRef, 0, len(matches))

	for _, m := range matches {
		category := strings.ToLower(m[1])
		name := category + "." + strings.ToLower(m[2])
		if seen[name] {
			continue
		}
		seen[name] = true

		ref := entity.TagRef{
			Name:     name,
			Category: category,
			Position: len(refs),
		}
		if def, ok := s.catalog.Lookup(name); ok {
			ref.Type = string(def.Type)
			ref.Required = def.IsRequiredFor(docType)
		} else {
			ref.Unresolved = true
		}
		refs = append(refs, ref)
	}

	return refs
}

// Replace substitutes every tag occurrence in text using lookup.
// Occurrences for which lookup reports false are left untouched.
func Replace(text string, lookup func(name string) (string, bool)) string {
	return tagPattern.ReplaceAllStringFunc(text, func(match string) string {
		m := tagPattern.FindStringSubmatch(match)
		name := strings.ToLower(m[1]) + "." + strings.ToLower(m[2])
		if v, ok := lookup(name); ok {
			return v
		}
		return match
	})
}
