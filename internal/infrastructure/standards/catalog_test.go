package standards

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"AccessibilityScanner/internal/domain"
)

const fixture = `{
  "version": "test",
  "principles": {"1": "인식의 용이성"},
  "items": {
    "1.1.1": {
      "name": "적절한 대체 텍스트 제공",
      "principle_id": "1",
      "compliance_criteria": "대체 텍스트를 제공해야 한다.",
      "detailed_descriptions": ["장식 이미지는 빈 alt"],
      "error_types": {"1-1": "대체 텍스트 누락"}
    },
    "2.4.2": {"name": "제목 제공", "principle_id": "9"}
  }
}`

func TestEnrich(t *testing.T) {
	c, err := Parse([]byte(fixture))
	require.NoError(t, err)

	f := domain.Finding{
		GuidelineID: "1.1.1",
		Verdict: domain.Verdict{
			Status: domain.StatusFail,
			Rules:  []string{"Rule 1.1 (Missing Alt)", "rule 1.3 (Other)", "Visual Check"},
		},
	}
	c.Enrich(&f)

	require.NotNil(t, f.GuidelineInfo)
	assert.Equal(t, "적절한 대체 텍스트 제공", f.GuidelineInfo.Name)
	assert.Equal(t, "인식의 용이성", f.GuidelineInfo.Principle)
	assert.Equal(t, []string{"장식 이미지는 빈 alt"}, f.GuidelineInfo.DetailedDescriptions)
	assert.Equal(t, []domain.DetailedError{
		{Code: "1-1", Description: "대체 텍스트 누락"},
		{Code: "1-3", Description: missingErrorType},
		{Code: "Visual Check", Description: missingRule},
	}, f.Verdict.DetailedErrors)

	g := domain.Finding{GuidelineID: "2.4.2"}
	c.Enrich(&g)
	require.NotNil(t, g.GuidelineInfo)
	assert.Equal(t, "9", g.GuidelineInfo.Principle, "unknown principle falls back to its id")
	assert.Nil(t, g.Verdict.DetailedErrors)

	unknown := domain.Finding{GuidelineID: "9.9.9", Verdict: domain.Verdict{Rules: []string{"Rule 1.1"}}}
	c.Enrich(&unknown)
	assert.Nil(t, unknown.GuidelineInfo)
	assert.Nil(t, unknown.Verdict.DetailedErrors)

	var nilCatalog *Catalog
	nilCatalog.Enrich(&f)
}

func TestParseRejectsMalformedCatalogs(t *testing.T) {
	_, err := Parse([]byte(`{"items": {"1.1.1": {"principle_id": "1"}}}`))
	assert.Error(t, err, "name is required")

	_, err = Parse([]byte(`{"items": {"guideline": {"name": "x"}}}`))
	assert.Error(t, err, "ids are dotted triples")

	_, err = Parse([]byte(`{"principles": {}}`))
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	require.NoError(t, os.WriteFile(path, []byte(fixture), 0o600))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "test", c.Version)
	assert.Len(t, c.Items, 2)

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestDefaultCoversEveryGuideline(t *testing.T) {
	c := Default()
	assert.Equal(t, "KWCAG 2.2", c.Version)
	assert.Len(t, c.Items, 33)
	for id, item := range c.Items {
		assert.NotEmpty(t, item.Name, id)
		assert.Contains(t, c.Principles, item.PrincipleID, id)
	}
}
