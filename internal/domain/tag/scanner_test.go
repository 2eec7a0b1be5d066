package tag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/legal-docgen/internal/domain/entity"
)

func TestScanner_Scan(t *testing.T) {
	scanner := NewScanner(DefaultCatalog())

	text := `FACTURE N° ${legal.numero} du ${legal.date_emission}
Client : ${client.nom} ${ client.prenom }
Montant TTC : ${intervention.montant_ttc}
Rappel : ${legal.numero}
Champ libre : ${custom.champ_inconnu}`

	refs := scanner.Scan(text, entity.DocumentTypeFacture)
	require.Len(t, refs, 6)

	names := make([]string, len(refs))
	for i, r := range refs {
		names[i] = r.Name
		assert.Equal(t, i, r.Position)
	}
	assert.Equal(t, []string{
		"legal.numero",
		"legal.date_emission",
		"client.nom",
		"client.prenom",
		"intervention.montant_ttc",
		"custom.champ_inconnu",
	}, names)

	assert.True(t, refs[0].Required)
	assert.Equal(t, "text", refs[0].Type)
	assert.Equal(t, "date", refs[1].Type)
	assert.False(t, refs[3].Required)
	assert.Equal(t, "money", refs[4].Type)

	unknown := refs[5]
	assert.True(t, unknown.Unresolved)
	assert.Equal(t, "custom", unknown.Category)
	assert.Empty(t, unknown.Type)
}

func TestScanner_Scan_RequiredDependsOnDocumentType(t *testing.T) {
	scanner := NewScanner(DefaultCatalog())
	text := "${legal.duree_validite}"

	quote := scanner.Scan(text, entity.DocumentTypeDevis)
	require.Len(t, quote, 1)
	assert.True(t, quote[0].Required)

	mandate := scanner.Scan(text, entity.DocumentTypeMandat)
	require.Len(t, mandate, 1)
	assert.False(t, mandate[0].Required)
}

func TestScanner_Scan_Idempotent(t *testing.T) {
	scanner := NewScanner(DefaultCatalog())
	text := "${client.nom} ${company.siret} ${client.nom}"

	first := scanner.Scan(text, entity.DocumentTypeFacture)
	second := scanner.Scan(text, entity.DocumentTypeFacture)
	assert.Equal(t, first, second)
}

func TestScanner_Scan_IgnoresMalformed(t *testing.T) {
	scanner := NewScanner(DefaultCatalog())

	tests := []struct {
		name string
		text string
	}{
		{"no dot", "${client}"},
		{"no braces", "$client.nom"},
		{"unterminated", "${client.nom"},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Empty(t, scanner.Scan(tt.text, entity.DocumentTypeFacture))
		})
	}
}

func TestReplace(t *testing.T) {
	values := map[string]string{"client.nom": "Dupont", "legal.numero": "FAC-2025-00001"}
	out := Replace("N° ${legal.numero} pour ${ Client.Nom }, ${custom.x}", func(name string) (string, bool) {
		v, ok := values[name]
		return v, ok
	})
	assert.Equal(t, "N° FAC-2025-00001 pour Dupont, ${custom.x}", out)
}

func TestCatalog(t *testing.T) {
	catalog := DefaultCatalog()

	def, ok := catalog.Lookup("LEGAL.NUMERO")
	require.True(t, ok)
	assert.Equal(t, CategoryLegal, def.Category)
	assert.Equal(t, "numero", def.Field)

	_, ok = catalog.Lookup("legal.unknown")
	assert.False(t, ok)

	required := catalog.Required(entity.DocumentTypeFacture)
	assert.Contains(t, required, "legal.conditions_paiement")
	assert.Contains(t, required, "legal.penalites_retard")
	assert.NotContains(t, required, "legal.duree_validite")

	for _, d := range catalog.ByCategory(CategorySystem) {
		assert.Equal(t, CategorySystem, d.Category)
	}
	assert.Len(t, catalog.ByCategory(CategorySystem), 3)

	for _, d := range catalog.Definitions() {
		assert.True(t, d.Category.IsValid(), d.Name)
	}
}
