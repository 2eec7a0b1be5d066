package compliance

import (
	"fmt"
	"strings"

	"github.com/garyjia/legal-docgen/internal/domain/entity"
)

// Evaluate audits a template against the rules of a jurisdiction.
// The result depends only on the template's manifest, its static text and rs.
func Evaluate(rs RuleSet, jurisdiction string, tpl *entity.Template) (entity.ComplianceReport, error) {
	if jurisdiction == "" {
		jurisdiction = DefaultJurisdiction
	}
	jurisdiction = strings.ToUpper(jurisdiction)

	if _, ok := rs[jurisdiction]; !ok {
		return entity.ComplianceReport{}, fmt.Errorf("no compliance rules for jurisdiction %s", jurisdiction)
	}

	report := entity.ComplianceReport{
		TemplateID:      tpl.ID,
		DocumentType:    tpl.DocumentType,
		Jurisdiction:    jurisdiction,
		MissingTags:     []string{},
		MissingMentions: []string{},
		Warnings:        []string{},
	}

	checklist, j, ok := rs.Checklist(jurisdiction, tpl.DocumentType)
	if !ok {
		report.Warnings = append(report.Warnings, fmt.Sprintf("no checklist for document type %s", tpl.DocumentType))
	}

	resolved := make(map[string]bool, len(tpl.Tags))
	for _, t := range tpl.Tags {
		if t.Unresolved {
			report.Warnings = append(report.Warnings, fmt.Sprintf("unknown tag ${%s}", t.Name))
			continue
		}
		resolved[t.Name] = true
	}

	text := strings.ToLower(tpl.StaticText)
	penalty := 0

	for _, m := range checklist.Mentions {
		if mentionSatisfied(m, resolved, text) {
			continue
		}
		report.MissingMentions = append(report.MissingMentions, m.Key)
		penalty += weightOr(m.Weight, j.MentionWeight, DefaultMentionWeight)
	}

	for _, name := range checklist.Tags {
		if resolved[name] {
			continue
		}
		report.MissingTags = append(report.MissingTags, name)
		penalty += weightOr(0, j.TagWeight, DefaultTagWeight)
	}

	if tpl.DocumentType.IsRegulated() && strings.TrimSpace(tpl.StaticText) == "" {
		report.Warnings = append(report.Warnings, "template has no extractable text")
	}

	report.Score = clamp(100-penalty, 0, 100)
	report.Compliant = report.Score == 100 && len(report.MissingMentions) == 0
	return report, nil
}

func mentionSatisfied(m Mention, tags map[string]bool, lowerText string) bool {
	if m.Tag != "" && tags[m.Tag] {
		return true
	}
	for _, p := range m.Patterns {
		if p != "" && strings.Contains(lowerText, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

func weightOr(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
