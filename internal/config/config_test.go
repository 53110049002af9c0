package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validYAML = `project:
  id: acme-site
  kind: client-portal
review:
  default_template: standard
  templates:
    standard:
      steps:
        - name: Internal review
        - name: Client sign-off
          require_signature: true
    quick:
      steps:
        - name: Client sign-off
          require_signature: true
`

func TestFromYAML(t *testing.T) {
	cfg, err := FromYAML([]byte(validYAML))
	require.NoError(t, err)
	assert.Equal(t, "acme-site", cfg.Project.ID)
	assert.Equal(t, "standard", cfg.Review.DefaultTemplate)
	assert.Len(t, cfg.Review.Templates, 2)
}

func TestFromYAMLRejectsInvalid(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"missing project id", "project:\n  kind: client-portal\nreview:\n  templates:\n    a:\n      steps:\n        - name: X\n"},
		{"wrong kind", "project:\n  id: p\n  kind: marketplace\nreview:\n  templates:\n    a:\n      steps:\n        - name: X\n"},
		{"no templates", "project:\n  id: p\n  kind: client-portal\nreview: {}\n"},
		{"template without steps", "project:\n  id: p\n  kind: client-portal\nreview:\n  templates:\n    a:\n      steps: []\n"},
		{"step without name", "project:\n  id: p\n  kind: client-portal\nreview:\n  templates:\n    a:\n      steps:\n        - description: X\n"},
		{"unknown default", "project:\n  id: p\n  kind: client-portal\nreview:\n  default_template: missing\n  templates:\n    a:\n      steps:\n        - name: X\n"},
		{"webhook without url", "project:\n  id: p\n  kind: client-portal\nreview:\n  templates:\n    a:\n      steps:\n        - name: X\nwebhooks:\n  - secret: s\n"},
		{"not yaml", "{{{"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := FromYAML([]byte(tc.yaml))
			assert.Error(t, err)
		})
	}
}

func TestStepTemplates(t *testing.T) {
	cfg, err := FromYAML([]byte(validYAML))
	require.NoError(t, err)

	steps, err := cfg.StepTemplates("standard")
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Equal(t, 1, steps[0].Seq)
	assert.Equal(t, 2, steps[1].Seq)
	assert.False(t, steps[0].RequireSignature)
	assert.True(t, steps[1].RequireSignature)

	// empty name falls back to default_template
	steps, err = cfg.StepTemplates("")
	require.NoError(t, err)
	assert.Equal(t, "Internal review", steps[0].Name)

	_, err = cfg.StepTemplates("missing")
	assert.Error(t, err)

	cfg.Review.DefaultTemplate = ""
	_, err = cfg.StepTemplates("")
	assert.Error(t, err)
}

func TestDefaultConfig(t *testing.T) {
	cfg := Default("proj-1")
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "proj-1", cfg.Project.ID)
	assert.Equal(t, []string{"full", "lightweight", "standard"}, cfg.TemplateNames())

	steps, err := cfg.StepTemplates("")
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.True(t, steps[1].RequireSignature)
}

func TestGenerateDefaultRoundTrip(t *testing.T) {
	cfg, err := FromYAML([]byte(GenerateDefault("proj-1")))
	require.NoError(t, err)
	assert.Equal(t, "proj-1", cfg.Project.ID)
	assert.Equal(t, "standard", cfg.Review.DefaultTemplate)
}

func TestLoadOptional(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadOptional(dir)
	require.NoError(t, err)
	assert.Nil(t, cfg)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "signoff.yml"), []byte(validYAML), 0o644))
	cfg, err = LoadOptional(dir)
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, "acme-site", cfg.Project.ID)
}
