// Package rulepack loads compliance rule overrides from YAML files.
package rulepack

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/garyjia/legal-docgen/internal/domain/compliance"
	"github.com/garyjia/legal-docgen/internal/domain/entity"
	"github.com/garyjia/legal-docgen/internal/domain/tag"
)

// Parse decodes a rule pack. Jurisdiction codes are upper-cased and document types validated.
//
//	fr:
//	  mention_weight: 20
//	  checklists:
//	    MANDAT:
//	      mentions:
//	        - key: signature
//	          patterns: ["lu et approuvé"]
func Parse(data []byte) (compliance.RuleSet, error) {
	var raw compliance.RuleSet
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse rule pack: %w", err)
	}

	rs := make(compliance.RuleSet, len(raw))
	for code, j := range raw {
		code = strings.ToUpper(strings.TrimSpace(code))
		if code == "" {
			return nil, fmt.Errorf("rule pack has an empty jurisdiction code")
		}
		for dt, cl := range j.Checklists {
			if !dt.IsValid() {
				return nil, fmt.Errorf("%s: %w: %s", code, entity.ErrInvalidDocumentType, dt)
			}
			for i, m := range cl.Mentions {
				if m.Key == "" {
					return nil, fmt.Errorf("%s/%s: mention %d has no key", code, dt, i)
				}
				if m.Tag == "" && len(m.Patterns) == 0 {
					return nil, fmt.Errorf("%s/%s: mention %s needs a tag or a pattern", code, dt, m.Key)
				}
			}
		}
		if j.Checklists == nil {
			j.Checklists = map[entity.DocumentType]compliance.Checklist{}
		}
		rs[code] = j
	}
	return rs, nil
}

// Load returns the built-in rules, overlaid with the pack at path when path is set
func Load(path string, catalog *tag.Catalog, logger *zap.Logger) (compliance.RuleSet, error) {
	rules := compliance.DefaultRuleSet(catalog)
	if path == "" {
		return rules, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rule pack: %w", err)
	}

	pack, err := Parse(data)
	if err != nil {
		return nil, err
	}

	codes := make([]string, 0, len(pack))
	for code := range pack {
		codes = append(codes, code)
	}
	logger.Info("Compliance rule pack loaded",
		zap.String("path", path),
		zap.Strings("jurisdictions", codes))

	return rules.Merge(pack), nil
}
