package entity

import "time"

// ComplianceReport is the result of auditing one template against a jurisdiction checklist
type ComplianceReport struct {
	TemplateID      int64        `json:"template_id"`
	DocumentType    DocumentType `json:"document_type"`
	Jurisdiction    string       `json:"jurisdiction"`
	Compliant       bool         `json:"compliant"`
	Score           int          `json:"score"`
	MissingTags     []string     `json:"missing_tags"`
	MissingMentions []string     `json:"missing_mentions"`
	Warnings        []string     `json:"warnings"`
	CheckedBy       string       `json:"checked_by,omitempty"`
	CheckedAt       time.Time    `json:"checked_at"`
}

// ComplianceStats is an aggregate view over templates, generations and reports
type ComplianceStats struct {
	TotalTemplates      int            `json:"total_templates"`
	ActiveTemplates     int            `json:"active_templates"`
	TotalGenerations    int            `json:"total_generations"`
	GenerationsByType   map[string]int `json:"generations_by_type"`
	GenerationsByStatus map[string]int `json:"generations_by_status"`
	LockedGenerations   int            `json:"locked_generations"`
	CheckedTemplates    int            `json:"checked_templates"`
	CompliantTemplates  int            `json:"compliant_templates"`
	AverageScore        float64        `json:"average_score"`
	LastCheckAt         *time.Time     `json:"last_check_at,omitempty"`
}
