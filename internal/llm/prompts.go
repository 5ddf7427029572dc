package llm

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"

	"helios/api/internal/brief"
)

//go:embed prompts.yaml
var defaultPrompts []byte

// Prompt is one rendered chat request.
type Prompt struct {
	System      string
	User        string
	Temperature float64
	MaxTokens   int64
}

type promptSpec struct {
	System      string  `yaml:"system"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int64   `yaml:"max_tokens"`
	User        string  `yaml:"user"`
}

type catalogFile struct {
	Brief     promptSpec `yaml:"brief"`
	Artifacts struct {
		System      string            `yaml:"system"`
		Temperature float64           `yaml:"temperature"`
		MaxTokens   int64             `yaml:"max_tokens"`
		Templates   map[string]string `yaml:"templates"`
	} `yaml:"artifacts"`
}

// Catalog holds the parsed prompt templates.
type Catalog struct {
	brief     promptSpec
	briefTmpl *template.Template
	artifact  promptSpec
	artifacts map[brief.ArtifactType]*template.Template
}

// DefaultCatalog parses the embedded prompt file.
func DefaultCatalog() (*Catalog, error) {
	return ParseCatalog(defaultPrompts)
}

// ParseCatalog parses a YAML prompt catalogue. Every generated artifact type must have a template.
func ParseCatalog(raw []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse prompt catalog: %w", err)
	}
	if strings.TrimSpace(file.Brief.User) == "" {
		return nil, fmt.Errorf("prompt catalog: brief prompt is empty")
	}

	briefTmpl, err := template.New("brief").Option("missingkey=error").Parse(file.Brief.User)
	if err != nil {
		return nil, fmt.Errorf("parse brief prompt: %w", err)
	}
	catalog := &Catalog{
		brief:     file.Brief,
		briefTmpl: briefTmpl,
		artifact: promptSpec{
			System:      file.Artifacts.System,
			Temperature: file.Artifacts.Temperature,
			MaxTokens:   file.Artifacts.MaxTokens,
		},
		artifacts: make(map[brief.ArtifactType]*template.Template, len(brief.GeneratedTypes)),
	}
	for _, kind := range brief.GeneratedTypes {
		text, ok := file.Artifacts.Templates[string(kind)]
		if !ok || strings.TrimSpace(text) == "" {
			return nil, fmt.Errorf("prompt catalog: no template for %s", kind)
		}
		tmpl, err := template.New(string(kind)).Option("missingkey=error").Parse(text)
		if err != nil {
			return nil, fmt.Errorf("parse %s prompt: %w", kind, err)
		}
		catalog.artifacts[kind] = tmpl
	}
	return catalog, nil
}

// BriefPrompt renders the brief drafting request for an intake.
func (c *Catalog) BriefPrompt(intake brief.Intake) (Prompt, error) {
	var user strings.Builder
	if err := c.briefTmpl.Execute(&user, intake); err != nil {
		return Prompt{}, fmt.Errorf("render brief prompt: %w", err)
	}
	return Prompt{
		System:      c.brief.System,
		User:        user.String(),
		Temperature: c.brief.Temperature,
		MaxTokens:   c.brief.MaxTokens,
	}, nil
}

// ArtifactPrompt renders the request for one generated artifact type.
func (c *Catalog) ArtifactPrompt(kind brief.ArtifactType, content brief.Content) (Prompt, error) {
	tmpl, ok := c.artifacts[kind]
	if !ok {
		return Prompt{}, fmt.Errorf("no prompt for artifact type %q", kind)
	}
	briefJSON, err := json.MarshalIndent(content, "", "  ")
	if err != nil {
		return Prompt{}, fmt.Errorf("marshal brief for prompt: %w", err)
	}
	var user strings.Builder
	err = tmpl.Execute(&user, struct {
		BriefJSON string
		Title     string
	}{BriefJSON: string(briefJSON), Title: kind.Title()})
	if err != nil {
		return Prompt{}, fmt.Errorf("render %s prompt: %w", kind, err)
	}
	return Prompt{
		System:      c.artifact.System,
		User:        user.String(),
		Temperature: c.artifact.Temperature,
		MaxTokens:   c.artifact.MaxTokens,
	}, nil
}
