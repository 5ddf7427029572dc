// Package brief defines the website brief, its derived artifact payloads and
// the small enumerations that govern the planning lifecycle.
package brief

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidContent marks generated or stored content that does not match the expected shape.
var ErrInvalidContent = errors.New("invalid content")

type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

func (c Confidence) Valid() bool {
	switch c {
	case ConfidenceLow, ConfidenceMedium, ConfidenceHigh:
		return true
	default:
		return false
	}
}

type Assumption struct {
	Text       string     `json:"text"`
	Confidence Confidence `json:"confidence"`
}

// Intake is the stakeholder input a brief is drafted from.
type Intake struct {
	StakeholderDocuments string `json:"stakeholderDocuments"`
	BoilerplateLanguage  string `json:"boilerplateLanguage"`
}

// Content is the editable body of a brief.
type Content struct {
	Purpose           string       `json:"purpose"`
	PrimaryAudience   string       `json:"primaryAudience"`
	SecondaryAudience string       `json:"secondaryAudience"`
	Tone              string       `json:"tone"`
	Sitemap           []string     `json:"sitemap"`
	Constraints       []string     `json:"constraints"`
	Assumptions       []Assumption `json:"assumptions"`
	OpenQuestions     []string     `json:"openQuestions"`
}

var requiredContentFields = []string{
	"purpose",
	"primaryAudience",
	"tone",
	"sitemap",
	"constraints",
	"assumptions",
	"openQuestions",
}

// ParseContent decodes a generated brief. Every required field must be
// present and non-null; confidence tiers are normalized to lower case.
func ParseContent(raw []byte) (Content, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Content{}, fmt.Errorf("%w: %v", ErrInvalidContent, err)
	}
	var missing []string
	for _, name := range requiredContentFields {
		value, ok := fields[name]
		if !ok || isNull(value) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return Content{}, fmt.Errorf("%w: missing %s", ErrInvalidContent, strings.Join(missing, ", "))
	}

	var content Content
	if err := json.Unmarshal(raw, &content); err != nil {
		return Content{}, fmt.Errorf("%w: %v", ErrInvalidContent, err)
	}
	if err := content.normalize(); err != nil {
		return Content{}, err
	}
	return content, nil
}

// Validate checks content loaded from storage.
func (c *Content) Validate() error {
	if c.Sitemap == nil || c.Constraints == nil || c.Assumptions == nil || c.OpenQuestions == nil {
		return fmt.Errorf("%w: list fields must be present", ErrInvalidContent)
	}
	return c.normalize()
}

func (c *Content) normalize() error {
	for i := range c.Assumptions {
		tier, err := ParseConfidence(string(c.Assumptions[i].Confidence))
		if err != nil {
			return fmt.Errorf("assumption %d: %w", i, err)
		}
		c.Assumptions[i].Confidence = tier
	}
	return nil
}

func ParseConfidence(value string) (Confidence, error) {
	tier := Confidence(strings.ToLower(strings.TrimSpace(value)))
	if !tier.Valid() {
		return "", fmt.Errorf("%w: confidence %q", ErrInvalidContent, value)
	}
	return tier, nil
}

func isNull(raw json.RawMessage) bool {
	return len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// Sections are the titles a comment or change request can point at.
var Sections = []string{
	"Purpose",
	"Target Audiences",
	"Tone & Voice",
	"Sitemap",
	"Constraints",
	"Assumptions",
	"Open Questions",
	"General",
}
