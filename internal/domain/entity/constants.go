package entity

import "strings"

// DocumentType identifies the kind of business document a template produces
type DocumentType string

const (
	DocumentTypeFacture           DocumentType = "FACTURE"            // invoice
	DocumentTypeDevis             DocumentType = "DEVIS"              // quote
	DocumentTypeAvoir             DocumentType = "AVOIR"              // credit note
	DocumentTypeRecuPaiement      DocumentType = "RECU_PAIEMENT"      // payment receipt
	DocumentTypeRecuRemboursement DocumentType = "RECU_REMBOURSEMENT" // refund receipt
	DocumentTypeMandat            DocumentType = "MANDAT"             // mandate
	DocumentTypeOrdreTravaux      DocumentType = "ORDRE_TRAVAUX"      // work authorization
	DocumentTypeBonTechnique      DocumentType = "BON_TECHNIQUE"      // technical voucher
)

type documentTypeInfo struct {
	prefix    string
	regulated bool
}

var documentTypes = map[DocumentType]documentTypeInfo{
	DocumentTypeFacture:           {prefix: "FAC", regulated: true},
	DocumentTypeDevis:             {prefix: "DEV", regulated: true},
	DocumentTypeAvoir:             {prefix: "AV", regulated: true},
	DocumentTypeRecuPaiement:      {prefix: "RP", regulated: true},
	DocumentTypeRecuRemboursement: {prefix: "RR"},
	DocumentTypeMandat:            {prefix: "MAN"},
	DocumentTypeOrdreTravaux:      {prefix: "OT"},
	DocumentTypeBonTechnique:      {prefix: "BT"},
}

// AllDocumentTypes returns every known document type in a stable order
func AllDocumentTypes() []DocumentType {
	return []DocumentType{
		DocumentTypeFacture,
		DocumentTypeDevis,
		DocumentTypeAvoir,
		DocumentTypeRecuPaiement,
		DocumentTypeRecuRemboursement,
		DocumentTypeMandat,
		DocumentTypeOrdreTravaux,
		DocumentTypeBonTechnique,
	}
}

// ParseDocumentType normalizes user input into a DocumentType
func ParseDocumentType(s string) (DocumentType, error) {
	dt := DocumentType(strings.ToUpper(strings.TrimSpace(s)))
	if !dt.IsValid() {
		return "", ErrInvalidDocumentType
	}
	return dt, nil
}

// IsValid reports whether the document type is known
func (d DocumentType) IsValid() bool {
	_, ok := documentTypes[d]
	return ok
}

// Prefix returns the legal number prefix (e.g. FAC)
func (d DocumentType) Prefix() string {
	return documentTypes[d].prefix
}

// IsRegulated reports whether the type is subject to sequential numbering and locking
func (d DocumentType) IsRegulated() bool {
	return documentTypes[d].regulated
}

// CanBeCorrectedBy reports whether a document of type other may correct a document of type d.
// An invoice may be corrected by a new invoice or by a credit note.
func (d DocumentType) CanBeCorrectedBy(other DocumentType) bool {
	if d == DocumentTypeFacture {
		return other == DocumentTypeFacture || other == DocumentTypeAvoir
	}
	return d == other
}

// String returns the string representation of the document type
func (d DocumentType) String() string {
	return string(d)
}

// ReferenceType identifies the kind of entity a generation is built from
type ReferenceType string

const (
	ReferenceTypeIntervention   ReferenceType = "intervention"
	ReferenceTypeServiceRequest ReferenceType = "service_request"
	ReferenceTypeProperty       ReferenceType = "property"
	ReferenceTypeUser           ReferenceType = "user"
)

// IsValid reports whether the reference type is supported
func (r ReferenceType) IsValid() bool {
	switch r {
	case ReferenceTypeIntervention, ReferenceTypeServiceRequest, ReferenceTypeProperty, ReferenceTypeUser:
		return true
	default:
		return false
	}
}

// Generation status constants
const (
	GenerationStatusPending    = "PENDING"
	GenerationStatusGenerating = "GENERATING"
	GenerationStatusCompleted  = "COMPLETED"
	GenerationStatusFailed     = "FAILED"
	GenerationStatusLocked     = "LOCKED"
	GenerationStatusSent       = "SENT"
	GenerationStatusArchived   = "ARCHIVED"
)

// Email delivery status constants
const (
	EmailStatusPending = "PENDING"
	EmailStatusSent    = "SENT"
	EmailStatusFailed  = "FAILED"
)

// Template file formats
const (
	FileFormatDOCX = "docx"
	FileFormatXLSX = "xlsx"
	FileFormatPDF  = "pdf"
	FileFormatTXT  = "txt"
	FileFormatHTML = "html"
)
