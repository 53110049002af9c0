package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"signoff/internal/domain"
)

// Config models signoff.yml.
type Config struct {
	Project struct {
		ID   string `yaml:"id"`
		Kind string `yaml:"kind"`
	} `yaml:"project"`
	Review struct {
		Templates       map[string]ReviewTemplate `yaml:"templates"`
		DefaultTemplate string                    `yaml:"default_template"`
	} `yaml:"review"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

// ReviewTemplate is a named, ordered list of approval steps a workflow is
// cloned from at submission time.
type ReviewTemplate struct {
	Steps []TemplateStep `yaml:"steps"`
}

type TemplateStep struct {
	Name             string `yaml:"name"`
	Description      string `yaml:"description"`
	RequireSignature bool   `yaml:"require_signature"`
}

type WebhookConfig struct {
	URL            string   `yaml:"url"`
	Secret         string   `yaml:"secret"`
	Events         []string `yaml:"events"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
	Enabled        *bool    `yaml:"enabled"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; import with sf config import --file <path>", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Project.ID == "" {
		return fmt.Errorf("config.project.id is required")
	}
	if c.Project.Kind != "client-portal" {
		return fmt.Errorf("config.project.kind must be 'client-portal'")
	}
	if len(c.Review.Templates) == 0 {
		return fmt.Errorf("config.review.templates is required")
	}
	for name, tpl := range c.Review.Templates {
		if name == "" {
			return fmt.Errorf("config.review.templates contains empty template name")
		}
		if len(tpl.Steps) == 0 {
			return fmt.Errorf("template %s has no steps", name)
		}
		for i, s := range tpl.Steps {
			if s.Name == "" {
				return fmt.Errorf("template %s step %d has empty name", name, i+1)
			}
		}
	}
	if c.Review.DefaultTemplate != "" {
		if _, ok := c.Review.Templates[c.Review.DefaultTemplate]; !ok {
			return fmt.Errorf("default template %s not defined", c.Review.DefaultTemplate)
		}
	}
	for i, hook := range c.Webhooks {
		if hook.URL == "" {
			return fmt.Errorf("webhook %d has empty url", i)
		}
	}
	return nil
}

// StepTemplates resolves a template name into the validated step list the
// engine creates workflows from. Empty name falls back to default_template.
func (c *Config) StepTemplates(name string) ([]domain.StepTemplate, error) {
	if name == "" {
		name = c.Review.DefaultTemplate
	}
	if name == "" {
		return nil, fmt.Errorf("no template specified and no default_template configured")
	}
	tpl, ok := c.Review.Templates[name]
	if !ok {
		return nil, fmt.Errorf("review template %s not found", name)
	}
	steps := make([]domain.StepTemplate, 0, len(tpl.Steps))
	for i, s := range tpl.Steps {
		steps = append(steps, domain.StepTemplate{
			Seq:              i + 1,
			Name:             s.Name,
			Description:      s.Description,
			RequireSignature: s.RequireSignature,
		})
	}
	return steps, nil
}

// TemplateNames returns the configured template names, sorted.
func (c *Config) TemplateNames() []string {
	names := make([]string, 0, len(c.Review.Templates))
	for name := range c.Review.Templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "signoff.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault(projectID string) string {
	return fmt.Sprintf(defaultTemplate, projectID)
}

// LoadOptional returns nil,nil if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the default Config struct for a project.
func Default(projectID string) *Config {
	var cfg Config
	cfg.Project.ID = projectID
	cfg.Project.Kind = "client-portal"
	_ = yaml.NewDecoder(bytes.NewBufferString(fmt.Sprintf(defaultTemplate, projectID))).Decode(&cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `project:
  id: %s
  kind: client-portal

review:
  default_template: standard

  templates:
    standard:
      steps:
        - name: Internal review
          description: "Producer-side check before the client sees it"
        - name: Client sign-off
          description: "Client approves and signs the deliverable"
          require_signature: true

    full:
      steps:
        - name: Design lead
          description: "Design lead approves direction"
        - name: Client sign-off
          description: "Client approves and signs the deliverable"
          require_signature: true
        - name: Final QA
          description: "Final quality pass before delivery"

    lightweight:
      steps:
        - name: Client sign-off
          require_signature: true
`
