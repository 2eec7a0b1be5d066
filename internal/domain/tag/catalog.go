// Package tag holds the catalog of template variables, the scanner that finds them
// in template text, and the typed values they resolve to.
package tag

import (
	"sort"
	"strings"

	"github.com/garyjia/legal-docgen/internal/domain/entity"
)

// Category groups tags by the data source they are resolved from
type Category string

const (
	CategoryClient         Category = "client"
	CategoryProperty       Category = "property"
	CategoryIntervention   Category = "intervention"
	CategoryServiceRequest Category = "service_request"
	CategoryPayment        Category = "payment"
	CategoryCompany        Category = "company"
	CategorySystem         Category = "system"
	CategoryLegal          Category = "legal"
)

// IsValid reports whether the category is known
func (c Category) IsValid() bool {
	switch c {
	case CategoryClient, CategoryProperty, CategoryIntervention, CategoryServiceRequest,
		CategoryPayment, CategoryCompany, CategorySystem, CategoryLegal:
		return true
	default:
		return false
	}
}

// IsExternal reports whether values of this category come from an entity provider
func (c Category) IsExternal() bool {
	switch c {
	case CategoryClient, CategoryProperty, CategoryIntervention, CategoryServiceRequest, CategoryPayment:
		return true
	default:
		return false
	}
}

// Type is the declared value type of a tag
type Type string

const (
	TypeText        Type = "text"
	TypeDate        Type = "date"
	TypeMoney       Type = "money"
	TypeNumber      Type = "number"
	TypeList        Type = "list"
	TypeConditional Type = "conditional"
	TypeImage       Type = "image"
)

// Definition describes one known tag
type Definition struct {
	Name        string
	Category    Category
	Field       string
	Type        Type
	Description string
	// Label is the text emitted by a conditional tag when its condition holds
	Label       string
	RequiredFor []entity.DocumentType
}

// IsRequiredFor reports whether the tag is mandatory for the document type
func (d Definition) IsRequiredFor(docType entity.DocumentType) bool {
	for _, dt := range d.RequiredFor {
		if dt == docType {
			return true
		}
	}
	return false
}

// Catalog is an immutable registry of tag definitions
type Catalog struct {
	defs  map[string]Definition
	order []string
}

// NewCatalog builds a catalog from definitions. Later duplicates override earlier ones.
func NewCatalog(defs ...Definition) *Catalog {
	c := &Catalog{defs: make(map[string]Definition, len(defs))}
	for _, d := range defs {
		if d.Name == "" {
			d.Name = string(d.Category) + "." + d.Field
		}
		if _, exists := c.defs[d.Name]; !exists {
			c.order = append(c.order, d.Name)
		}
		c.defs[d.Name] = d
	}
	return c
}

// Lookup returns the definition for a dotted tag name
func (c *Catalog) Lookup(name string) (Definition, bool) {
	d, ok := c.defs[strings.ToLower(name)]
	return d, ok
}

// Definitions returns all definitions in registration order
func (c *Catalog) Definitions() []Definition {
	out := make([]Definition, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.defs[name])
	}
	return out
}

// ByCategory returns the definitions of one category
func (c *Catalog) ByCategory(cat Category) []Definition {
	var out []Definition
	for _, name := range c.order {
		if d := c.defs[name]; d.Category == cat {
			out = append(out, d)
		}
	}
	return out
}

// Required returns the sorted names of tags mandatory for a document type
func (c *Catalog) Required(docType entity.DocumentType) []string {
	var names []string
	for _, d := range c.defs {
		if d.IsRequiredFor(docType) {
			names = append(names, d.Name)
		}
	}
	sort.Strings(names)
	return names
}

var (
	regulated  = []entity.DocumentType{entity.DocumentTypeFacture, entity.DocumentTypeDevis, entity.DocumentTypeAvoir, entity.DocumentTypeRecuPaiement}
	invoicing  = []entity.DocumentType{entity.DocumentTypeFacture, entity.DocumentTypeDevis, entity.DocumentTypeAvoir}
	onlyInv    = []entity.DocumentType{entity.DocumentTypeFacture}
	onlyQuote  = []entity.DocumentType{entity.DocumentTypeDevis}
	onlyCredit = []entity.DocumentType{entity.DocumentTypeAvoir}
	receipts   = []entity.DocumentType{entity.DocumentTypeRecuPaiement, entity.DocumentTypeRecuRemboursement}
)

// DefaultCatalog returns the built-in French catalog
func DefaultCatalog() *Catalog {
	return NewCatalog(
		Definition{Category: CategoryClient, Field: "nom", Type: TypeText, Description: "Nom du client", RequiredFor: invoicing},
		Definition{Category: CategoryClient, Field: "prenom", Type: TypeText, Description: "Prénom du client"},
		Definition{Category: CategoryClient, Field: "adresse", Type: TypeText, Description: "Adresse du client", RequiredFor: onlyInv},
		Definition{Category: CategoryClient, Field: "email", Type: TypeText, Description: "Email du client"},
		Definition{Category: CategoryClient, Field: "telephone", Type: TypeText, Description: "Téléphone du client"},

		Definition{Category: CategoryProperty, Field: "adresse", Type: TypeText, Description: "Adresse du bien"},
		Definition{Category: CategoryProperty, Field: "code_postal", Type: TypeText, Description: "Code postal du bien"},
		Definition{Category: CategoryProperty, Field: "ville", Type: TypeText, Description: "Ville du bien"},
		Definition{Category: CategoryProperty, Field: "lot", Type: TypeText, Description: "Numéro de lot"},

		Definition{Category: CategoryIntervention, Field: "reference", Type: TypeText, Description: "Référence de l'intervention"},
		Definition{Category: CategoryIntervention, Field: "date", Type: TypeDate, Description: "Date de l'intervention"},
		Definition{Category: CategoryIntervention, Field: "description", Type: TypeText, Description: "Description des travaux"},
		Definition{Category: CategoryIntervention, Field: "montant_ht", Type: TypeMoney, Description: "Montant hors taxes", RequiredFor: invoicing},
		Definition{Category: CategoryIntervention, Field: "montant_tva", Type: TypeMoney, Description: "Montant de TVA", RequiredFor: invoicing},
		Definition{Category: CategoryIntervention, Field: "montant_ttc", Type: TypeMoney, Description: "Montant toutes taxes comprises", RequiredFor: invoicing},
		Definition{Category: CategoryIntervention, Field: "taux_tva", Type: TypeNumber, Description: "Taux de TVA"},
		Definition{Category: CategoryIntervention, Field: "lignes", Type: TypeList, Description: "Lignes de prestation"},
		Definition{Category: CategoryIntervention, Field: "urgence", Type: TypeConditional, Label: "INTERVENTION URGENTE", Description: "Mention d'urgence"},

		Definition{Category: CategoryServiceRequest, Field: "reference", Type: TypeText, Description: "Référence de la demande"},
		Definition{Category: CategoryServiceRequest, Field: "objet", Type: TypeText, Description: "Objet de la demande"},
		Definition{Category: CategoryServiceRequest, Field: "date_demande", Type: TypeDate, Description: "Date de la demande"},

		Definition{Category: CategoryPayment, Field: "montant", Type: TypeMoney, Description: "Montant réglé", RequiredFor: receipts},
		Definition{Category: CategoryPayment, Field: "date", Type: TypeDate, Description: "Date du règlement", RequiredFor: receipts},
		Definition{Category: CategoryPayment, Field: "mode", Type: TypeText, Description: "Mode de règlement"},
		Definition{Category: CategoryPayment, Field: "reference", Type: TypeText, Description: "Référence du règlement"},

		Definition{Category: CategoryCompany, Field: "nom", Type: TypeText, Description: "Raison sociale", RequiredFor: regulated},
		Definition{Category: CategoryCompany, Field: "siret", Type: TypeText, Description: "Numéro SIRET", RequiredFor: regulated},
		Definition{Category: CategoryCompany, Field: "adresse", Type: TypeText, Description: "Adresse du siège", RequiredFor: invoicing},
		Definition{Category: CategoryCompany, Field: "tva_intracom", Type: TypeText, Description: "Numéro de TVA intracommunautaire", RequiredFor: onlyInv},
		Definition{Category: CategoryCompany, Field: "rcs", Type: TypeText, Description: "Immatriculation RCS"},
		Definition{Category: CategoryCompany, Field: "capital", Type: TypeMoney, Description: "Capital social"},
		Definition{Category: CategoryCompany, Field: "logo", Type: TypeImage, Description: "Logo de l'entreprise"},

		Definition{Category: CategorySystem, Field: "date_jour", Type: TypeDate, Description: "Date du jour"},
		Definition{Category: CategorySystem, Field: "annee", Type: TypeNumber, Description: "Année en cours"},
		Definition{Category: CategorySystem, Field: "token", Type: TypeText, Description: "Jeton unique du document"},

		Definition{Category: CategoryLegal, Field: "numero", Type: TypeText, Description: "Numéro légal séquentiel", RequiredFor: regulated},
		Definition{Category: CategoryLegal, Field: "date_emission", Type: TypeDate, Description: "Date d'émission", RequiredFor: regulated},
		Definition{Category: CategoryLegal, Field: "conditions_paiement", Type: TypeText, Description: "Conditions de paiement", RequiredFor: onlyInv},
		Definition{Category: CategoryLegal, Field: "penalites_retard", Type: TypeText, Description: "Pénalités de retard", RequiredFor: onlyInv},
		Definition{Category: CategoryLegal, Field: "indemnite_recouvrement", Type: TypeText, Description: "Indemnité forfaitaire pour frais de recouvrement", RequiredFor: onlyInv},
		Definition{Category: CategoryLegal, Field: "duree_validite", Type: TypeText, Description: "Durée de validité du devis", RequiredFor: onlyQuote},
		Definition{Category: CategoryLegal, Field: "document_corrige", Type: TypeText, Description: "Numéro du document rectifié", RequiredFor: onlyCredit},
	)
}
