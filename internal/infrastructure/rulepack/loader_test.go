package rulepack

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/legal-docgen/internal/domain/compliance"
	"github.com/garyjia/legal-docgen/internal/domain/entity"
	"github.com/garyjia/legal-docgen/internal/domain/tag"
)

const pack = `
fr:
  mention_weight: 20
  checklists:
    MANDAT:
      mentions:
        - key: signature
          patterns: ["lu et approuvé"]
be:
  mention_weight: 10
  tag_weight: 2
  checklists:
    FACTURE:
      mentions:
        - key: numero
          tag: legal.numero
        - key: tva
          tag: company.tva_intracom
          weight: 30
`

func writePack(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestParse(t *testing.T) {
	rs, err := Parse([]byte(pack))
	require.NoError(t, err)

	require.Contains(t, rs, "FR")
	require.Contains(t, rs, "BE")
	assert.Equal(t, 20, rs["FR"].MentionWeight)

	cl := rs["BE"].Checklists[entity.DocumentTypeFacture]
	require.Len(t, cl.Mentions, 2)
	assert.Equal(t, compliance.Mention{Key: "tva", Tag: "company.tva_intracom", Weight: 30}, cl.Mentions[1])
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"malformed", "fr: [unclosed"},
		{"unknown document type", "fr:\n  checklists:\n    BROCHURE:\n      mentions: []\n"},
		{"mention without key", "fr:\n  checklists:\n    DEVIS:\n      mentions:\n        - tag: legal.numero\n"},
		{"mention without tag or pattern", "fr:\n  checklists:\n    DEVIS:\n      mentions:\n        - key: numero\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}

	_, err := Parse([]byte("fr:\n  checklists:\n    BROCHURE: {}\n"))
	assert.True(t, errors.Is(err, entity.ErrInvalidDocumentType))
}

func TestLoad_MergesOverDefaults(t *testing.T) {
	catalog := tag.DefaultCatalog()

	rules, err := Load(writePack(t, pack), catalog, zap.NewNop())
	require.NoError(t, err)

	mandat, fr, ok := rules.Checklist("FR", entity.DocumentTypeMandat)
	require.True(t, ok)
	assert.Equal(t, "signature", mandat.Mentions[0].Key)
	assert.Equal(t, 20, fr.MentionWeight)
	assert.Equal(t, compliance.DefaultTagWeight, fr.TagWeight)

	// untouched checklists keep the defaults
	facture, _, ok := rules.Checklist("FR", entity.DocumentTypeFacture)
	require.True(t, ok)
	defaults, _, _ := compliance.DefaultRuleSet(catalog).Checklist("FR", entity.DocumentTypeFacture)
	assert.Equal(t, defaults, facture)

	_, _, ok = rules.Checklist("be", entity.DocumentTypeFacture)
	assert.True(t, ok)
}

func TestLoad_NoPathUsesDefaults(t *testing.T) {
	catalog := tag.DefaultCatalog()

	rules, err := Load("", catalog, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, compliance.DefaultRuleSet(catalog), rules)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"), catalog, zap.NewNop())
	assert.Error(t, err)
}
