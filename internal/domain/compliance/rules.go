// Package compliance evaluates templates against per-jurisdiction legal mention checklists.
package compliance

import (
	"strings"

	"github.com/garyjia/legal-docgen/internal/domain/entity"
	"github.com/garyjia/legal-docgen/internal/domain/tag"
)

// DefaultJurisdiction is used when none is configured
const DefaultJurisdiction = "FR"

const (
	DefaultMentionWeight = 15
	DefaultTagWeight     = 5
)

// Mention is a legal statement a document must carry, either as a tag or as static text
type Mention struct {
	Key      string   `yaml:"key"`
	Tag      string   `yaml:"tag"`
	Patterns []string `yaml:"patterns"`
	Weight   int      `yaml:"weight"`
}

// Checklist is the set of rules for one document type
type Checklist struct {
	Mentions []Mention `yaml:"mentions"`
	// Tags are recommended variables whose absence costs TagWeight each
	Tags []string `yaml:"tags"`
}

// Jurisdiction groups the checklists of one legal system
type Jurisdiction struct {
	MentionWeight int                               `yaml:"mention_weight"`
	TagWeight     int                               `yaml:"tag_weight"`
	Checklists    map[entity.DocumentType]Checklist `yaml:"checklists"`
}

// RuleSet maps jurisdiction codes to their rules
type RuleSet map[string]Jurisdiction

// Checklist returns the checklist for a document type in a jurisdiction
func (rs RuleSet) Checklist(jurisdiction string, docType entity.DocumentType) (Checklist, Jurisdiction, bool) {
	j, ok := rs[strings.ToUpper(jurisdiction)]
	if !ok {
		return Checklist{}, Jurisdiction{}, false
	}
	cl, ok := j.Checklists[docType]
	return cl, j, ok
}

// Merge overlays other on rs. Checklists present in other replace those in rs.
func (rs RuleSet) Merge(other RuleSet) RuleSet {
	out := make(RuleSet, len(rs)+len(other))
	for code, j := range rs {
		out[code] = j.clone()
	}
	for code, j := range other {
		code = strings.ToUpper(code)
		base, exists := out[code]
		if !exists {
			out[code] = j.clone()
			continue
		}
		if j.MentionWeight > 0 {
			base.MentionWeight = j.MentionWeight
		}
		if j.TagWeight > 0 {
			base.TagWeight = j.TagWeight
		}
		for dt, cl := range j.Checklists {
			base.Checklists[dt] = cl
		}
		out[code] = base
	}
	return out
}

func (j Jurisdiction) clone() Jurisdiction {
	cp := j
	cp.Checklists = make(map[entity.DocumentType]Checklist, len(j.Checklists))
	for dt, cl := range j.Checklists {
		cp.Checklists[dt] = cl
	}
	return cp
}

var (
	mentionNumero = Mention{Key: "numero", Tag: "legal.numero"}
	mentionDate   = Mention{Key: "date_emission", Tag: "legal.date_emission", Patterns: []string{"date d'émission", "date d’émission"}}
	mentionSiret  = Mention{Key: "siret", Tag: "company.siret", Patterns: []string{"siret"}}
	mentionClient = Mention{Key: "identite_client", Tag: "client.nom"}
)

// DefaultRuleSet returns the built-in French rules. Tags required by the catalog
// and not already covered by a mention become recommended tags.
func DefaultRuleSet(catalog *tag.Catalog) RuleSet {
	checklists := map[entity.DocumentType][]Mention{
		entity.DocumentTypeFacture: {
			mentionNumero,
			mentionDate,
			{Key: "conditions_paiement", Tag: "legal.conditions_paiement", Patterns: []string{"conditions de paiement", "conditions de règlement"}},
			{Key: "penalites_retard", Tag: "legal.penalites_retard", Patterns: []string{"pénalités de retard"}},
			{Key: "indemnite_recouvrement", Tag: "legal.indemnite_recouvrement", Patterns: []string{"indemnité forfaitaire pour frais de recouvrement"}},
			mentionSiret,
			mentionClient,
		},
		entity.DocumentTypeDevis: {
			mentionNumero,
			mentionDate,
			{Key: "duree_validite", Tag: "legal.duree_validite", Patterns: []string{"durée de validité", "valable jusqu"}},
			mentionSiret,
			mentionClient,
		},
		entity.DocumentTypeAvoir: {
			mentionNumero,
			mentionDate,
			{Key: "document_corrige", Tag: "legal.document_corrige", Patterns: []string{"facture d'origine", "facture rectifiée"}},
			mentionSiret,
		},
		entity.DocumentTypeRecuPaiement: {
			mentionNumero,
			mentionDate,
			{Key: "montant_paiement", Tag: "payment.montant"},
			{Key: "date_paiement", Tag: "payment.date"},
		},
		entity.DocumentTypeRecuRemboursement: {
			{Key: "montant_paiement", Tag: "payment.montant", Weight: 10},
		},
		entity.DocumentTypeMandat: {
			{Key: "identite_client", Tag: "client.nom", Weight: 10},
			{Key: "siret", Tag: "company.siret", Patterns: []string{"siret"}, Weight: 10},
		},
		entity.DocumentTypeOrdreTravaux: {
			{Key: "description_travaux", Tag: "intervention.description", Weight: 10},
		},
		entity.DocumentTypeBonTechnique: {
			{Key: "reference_intervention", Tag: "intervention.reference", Weight: 10},
		},
	}

	fr := Jurisdiction{
		MentionWeight: DefaultMentionWeight,
		TagWeight:     DefaultTagWeight,
		Checklists:    make(map[entity.DocumentType]Checklist, len(checklists)),
	}
	for dt, mentions := range checklists {
		covered := make(map[string]bool, len(mentions))
		for _, m := range mentions {
			covered[m.Tag] = true
		}
		var tags []string
		if catalog != nil {
			for _, name := range catalog.Required(dt) {
				if !covered[name] {
					tags = append(tags, name)
				}
			}
		}
		fr.Checklists[dt] = Checklist{Mentions: mentions, Tags: tags}
	}

	return RuleSet{DefaultJurisdiction: fr}
}
