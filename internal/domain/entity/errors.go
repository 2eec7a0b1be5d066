package entity

import "errors"

var (
	// ErrReferenceNotFound is returned when the referenced entity does not exist
	ErrReferenceNotFound = errors.New("reference not found")

	// ErrTemplateNotActive is returned when no active template exists for a document type
	ErrTemplateNotActive = errors.New("no active template for document type")

	// ErrRenderingFailed is returned when the rendering engine fails
	ErrRenderingFailed = errors.New("rendering failed")

	// ErrNumberingConflict is returned when a legal number allocation contends with another writer
	ErrNumberingConflict = errors.New("legal numbering conflict")

	// ErrCorrectionTargetInvalid is returned when a correction targets a missing, unlocked or incompatible generation
	ErrCorrectionTargetInvalid = errors.New("correction target invalid")

	ErrTemplateNotFound    = errors.New("template not found")
	ErrGenerationNotFound  = errors.New("generation not found")
	ErrReportNotFound      = errors.New("compliance report not found")
	ErrTemplateInUse       = errors.New("template is active")
	ErrInvalidDocumentType = errors.New("invalid document type")
	ErrGenerationLocked    = errors.New("generation is locked")
	ErrInvalidRequest      = errors.New("invalid request")
)
