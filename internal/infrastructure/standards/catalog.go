package standards

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"

	"github.com/kaptinlin/jsonschema"

	"AccessibilityScanner/internal/domain"
	"AccessibilityScanner/internal/ports"
)

//go:embed schema.json
var schemaJSON []byte

//go:embed kwcag.json
var defaultCatalog []byte

const (
	missingErrorType = "상세 설명 없음"
	missingRule      = "규칙 설명 없음"
)

var ruleCode = regexp.MustCompile(`(?i)Rule\s+(\d+\.\d+)`)

var compiled = sync.OnceValues(func() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	schema, err := compiler.Compile(schemaJSON)
	if err != nil {
		return nil, fmt.Errorf("compile catalog schema: %w", err)
	}
	return schema, nil
})

// Item is the metadata of one guideline.
type Item struct {
	Name                 string            `json:"name"`
	PrincipleID          string            `json:"principle_id"`
	ComplianceCriteria   string            `json:"compliance_criteria"`
	DetailedDescriptions []string          `json:"detailed_descriptions"`
	ErrorTypes           map[string]string `json:"error_types"`
}

// Catalog maps guideline ids to their metadata.
type Catalog struct {
	Version    string            `json:"version"`
	Principles map[string]string `json:"principles"`
	Items      map[string]Item   `json:"items"`
}

var _ ports.StandardsCatalog = (*Catalog)(nil)

// Load reads and validates a catalog file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return c, nil
}

// Default returns the bundled KWCAG 2.2 catalog.
func Default() *Catalog {
	c, err := Parse(defaultCatalog)
	if err != nil {
		panic(fmt.Sprintf("bundled catalog: %v", err))
	}
	return c
}

// Parse validates data against the catalog schema and decodes it.
func Parse(data []byte) (*Catalog, error) {
	schema, err := compiled()
	if err != nil {
		return nil, err
	}
	if result := schema.ValidateJSON(data); !result.IsValid() {
		return nil, fmt.Errorf("schema validation failed: %v", result.Errors)
	}

	var c Catalog
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	return &c, nil
}

// Enrich attaches guideline metadata and resolves rule tags. Findings of guidelines the
// catalog does not know are left untouched.
func (c *Catalog) Enrich(f *domain.Finding) {
	if c == nil || f == nil {
		return
	}
	item, ok := c.Items[f.GuidelineID]
	if !ok {
		return
	}

	principle := c.Principles[item.PrincipleID]
	if principle == "" {
		principle = item.PrincipleID
	}
	f.GuidelineInfo = &domain.GuidelineInfo{
		Name:                 item.Name,
		Principle:            principle,
		ComplianceCriteria:   item.ComplianceCriteria,
		DetailedDescriptions: item.DetailedDescriptions,
	}

	if len(f.Verdict.Rules) == 0 {
		return
	}
	details := make([]domain.DetailedError, 0, len(f.Verdict.Rules))
	for _, rule := range f.Verdict.Rules {
		details = append(details, item.resolve(rule))
	}
	f.Verdict.DetailedErrors = details
}

// resolve turns a tag such as "Rule 1.2 (Decorative)" into error type "1-2".
func (it Item) resolve(rule string) domain.DetailedError {
	m := ruleCode.FindStringSubmatch(rule)
	if m == nil {
		return domain.DetailedError{Code: rule, Description: missingRule}
	}
	code := strings.Replace(m[1], ".", "-", 1)
	desc, ok := it.ErrorTypes[code]
	if !ok || desc == "" {
		desc = missingErrorType
	}
	return domain.DetailedError{Code: code, Description: desc}
}
