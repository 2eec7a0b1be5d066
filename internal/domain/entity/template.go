package entity

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// TagRef is one entry of a template's tag manifest
type TagRef struct {
	Name       string `json:"name"`
	Category   string `json:"category"`
	Type       string `json:"type"`
	Required   bool   `json:"required"`
	Unresolved bool   `json:"unresolved"`
	Position   int    `json:"position"`
}

// Template is a named, versioned document blueprint
type Template struct {
	ID           int64        `json:"id"`
	Name         string       `json:"name"`
	DocumentType DocumentType `json:"document_type"`
	Description  string       `json:"description,omitempty"`
	EventTrigger string       `json:"event_trigger,omitempty"`
	FileKey      string       `json:"file_key"`
	FileName     string       `json:"file_name"`
	FileFormat   string       `json:"file_format"`
	FileSize     int64        `json:"file_size"`
	Version      int          `json:"version"`
	Active       bool         `json:"active"`
	EmailSubject string       `json:"email_subject,omitempty"`
	EmailBody    string       `json:"email_body,omitempty"`
	StaticText   string       `json:"-"`
	CreatedBy    string       `json:"created_by,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
	DeletedAt    *time.Time   `json:"deleted_at,omitempty"`
	Tags         []TagRef     `json:"tags"`
}

// NewTemplate validates the inputs and builds an unsaved template
func NewTemplate(name string, docType DocumentType, fileName string) (*Template, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: template name is required", ErrInvalidRequest)
	}
	if !docType.IsValid() {
		return nil, ErrInvalidDocumentType
	}
	format, err := FileFormatOf(fileName)
	if err != nil {
		return nil, err
	}

	return &Template{
		Name:         name,
		DocumentType: docType,
		FileName:     filepath.Base(fileName),
		FileFormat:   format,
		Version:      1,
	}, nil
}

// FileFormatOf derives the template file format from its extension
func FileFormatOf(fileName string) (string, error) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(fileName)), ".")
	switch ext {
	case FileFormatDOCX, FileFormatXLSX, FileFormatPDF, FileFormatTXT, FileFormatHTML:
		return ext, nil
	case "htm":
		return FileFormatHTML, nil
	default:
		return "", fmt.Errorf("%w: unsupported template format %q", ErrInvalidRequest, ext)
	}
}

// IsDeleted reports whether the template was soft-deleted
func (t *Template) IsDeleted() bool {
	return t.DeletedAt != nil
}

// TagNames returns the manifest tag names in order
func (t *Template) TagNames() []string {
	names := make([]string, 0, len(t.Tags))
	for _, tag := range t.Tags {
		names = append(names, tag.Name)
	}
	return names
}

// HasTag reports whether the manifest contains the given tag
func (t *Template) HasTag(name string) bool {
	for _, tag := range t.Tags {
		if tag.Name == name {
			return true
		}
	}
	return false
}

// UnresolvedTags returns the names of manifest tags unknown to the catalog
func (t *Template) UnresolvedTags() []string {
	var names []string
	for _, tag := range t.Tags {
		if tag.Unresolved {
			names = append(names, tag.Name)
		}
	}
	return names
}

// TemplateFilter narrows template listings
type TemplateFilter struct {
	DocumentType   DocumentType
	IncludeDeleted bool
	Limit          int
	Offset         int
}
