package brief

import (
	"encoding/json"
	"fmt"
	"strings"
)

type ArtifactType string

const (
	ArtifactContent     ArtifactType = "content"
	ArtifactDesign      ArtifactType = "design"
	ArtifactSEO         ArtifactType = "seo"
	ArtifactAssumptions ArtifactType = "assumptions"
	ArtifactHistory     ArtifactType = "history"
)

// GeneratedTypes are produced by the text generator, in pipeline order.
var GeneratedTypes = []ArtifactType{ArtifactContent, ArtifactDesign, ArtifactSEO, ArtifactAssumptions}

// AllTypes is every artifact a fully generated project carries.
var AllTypes = []ArtifactType{ArtifactContent, ArtifactDesign, ArtifactSEO, ArtifactAssumptions, ArtifactHistory}

func ParseArtifactType(value string) (ArtifactType, error) {
	kind := ArtifactType(strings.ToLower(strings.TrimSpace(value)))
	for _, known := range AllTypes {
		if kind == known {
			return kind, nil
		}
	}
	return "", fmt.Errorf("unknown artifact type %q", value)
}

// Title is the heading the generator is asked to use for each type.
func (t ArtifactType) Title() string {
	switch t {
	case ArtifactContent:
		return "Content & Page Planning"
	case ArtifactDesign:
		return "Image & Design Inspiration"
	case ArtifactSEO:
		return "SEO Research"
	case ArtifactAssumptions:
		return "Assumptions & Risk Log"
	case ArtifactHistory:
		return "Change History"
	default:
		return string(t)
	}
}

// Payload is the typed body of an artifact. The set of implementations is closed.
type Payload interface {
	Type() ArtifactType
	validate() error
}

type ContentItem struct {
	Page      string `json:"page"`
	Component string `json:"component"`
	Rationale string `json:"rationale"`
}

type ContentPlan struct {
	Title string        `json:"title"`
	Items []ContentItem `json:"items"`
}

func (ContentPlan) Type() ArtifactType { return ArtifactContent }

func (p *ContentPlan) validate() error {
	if len(p.Items) == 0 {
		return fmt.Errorf("%w: content items missing", ErrInvalidContent)
	}
	for i, item := range p.Items {
		if strings.TrimSpace(item.Page) == "" || strings.TrimSpace(item.Component) == "" {
			return fmt.Errorf("%w: content item %d needs page and component", ErrInvalidContent, i)
		}
	}
	return nil
}

type DesignItem struct {
	Type      string `json:"type"`
	Style     string `json:"style"`
	Reference string `json:"reference"`
}

type DesignGuide struct {
	Title string       `json:"title"`
	Items []DesignItem `json:"items"`
}

func (DesignGuide) Type() ArtifactType { return ArtifactDesign }

func (p *DesignGuide) validate() error {
	if len(p.Items) == 0 {
		return fmt.Errorf("%w: design items missing", ErrInvalidContent)
	}
	for i, item := range p.Items {
		if strings.TrimSpace(item.Type) == "" || strings.TrimSpace(item.Style) == "" {
			return fmt.Errorf("%w: design item %d needs type and style", ErrInvalidContent, i)
		}
	}
	return nil
}

type Keyword struct {
	Term       string `json:"term"`
	Volume     string `json:"volume"`
	Difficulty string `json:"difficulty"`
}

type SEOResearch struct {
	Title    string    `json:"title"`
	Keywords []Keyword `json:"keywords"`
	Metadata string    `json:"metadata"`
}

func (SEOResearch) Type() ArtifactType { return ArtifactSEO }

func (p *SEOResearch) validate() error {
	if len(p.Keywords) == 0 {
		return fmt.Errorf("%w: seo keywords missing", ErrInvalidContent)
	}
	for i := range p.Keywords {
		keyword := &p.Keywords[i]
		if strings.TrimSpace(keyword.Term) == "" {
			return fmt.Errorf("%w: keyword %d has no term", ErrInvalidContent, i)
		}
		switch strings.ToLower(strings.TrimSpace(keyword.Difficulty)) {
		case "low":
			keyword.Difficulty = "Low"
		case "medium":
			keyword.Difficulty = "Medium"
		case "high":
			keyword.Difficulty = "High"
		default:
			return fmt.Errorf("%w: keyword %d difficulty %q", ErrInvalidContent, i, keyword.Difficulty)
		}
	}
	return nil
}

type AssumptionLog struct {
	Title string       `json:"title"`
	Items []Assumption `json:"items"`
}

func (AssumptionLog) Type() ArtifactType { return ArtifactAssumptions }

func (p *AssumptionLog) validate() error {
	if len(p.Items) == 0 {
		return fmt.Errorf("%w: assumption items missing", ErrInvalidContent)
	}
	for i := range p.Items {
		tier, err := ParseConfidence(string(p.Items[i].Confidence))
		if err != nil {
			return fmt.Errorf("assumption item %d: %w", i, err)
		}
		p.Items[i].Confidence = tier
	}
	return nil
}

type HistoryEvent struct {
	Date   string `json:"date"`
	Action string `json:"action"`
	User   string `json:"user"`
}

type ChangeHistory struct {
	Title  string         `json:"title"`
	Events []HistoryEvent `json:"events"`
}

func (ChangeHistory) Type() ArtifactType { return ArtifactHistory }

func (p *ChangeHistory) validate() error {
	if p.Events == nil {
		p.Events = []HistoryEvent{}
	}
	return nil
}

// ParsePayload decodes and validates raw JSON as the payload for kind.
// A missing title is filled with the canonical one for the type.
func ParsePayload(kind ArtifactType, raw []byte) (Payload, error) {
	switch kind {
	case ArtifactContent:
		return decodePayload[ContentPlan](kind, raw)
	case ArtifactDesign:
		return decodePayload[DesignGuide](kind, raw)
	case ArtifactSEO:
		return decodePayload[SEOResearch](kind, raw)
	case ArtifactAssumptions:
		return decodePayload[AssumptionLog](kind, raw)
	case ArtifactHistory:
		return decodePayload[ChangeHistory](kind, raw)
	default:
		return nil, fmt.Errorf("%w: unknown artifact type %q", ErrInvalidContent, kind)
	}
}

type payloadPtr[T any] interface {
	*T
	Payload
}

func decodePayload[T any, P payloadPtr[T]](kind ArtifactType, raw []byte) (Payload, error) {
	var value T
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrInvalidContent, kind, err)
	}
	ptr := P(&value)
	if err := ptr.validate(); err != nil {
		return nil, err
	}
	setDefaultTitle(ptr, kind)
	return ptr, nil
}

func setDefaultTitle(p Payload, kind ArtifactType) {
	switch v := p.(type) {
	case *ContentPlan:
		if strings.TrimSpace(v.Title) == "" {
			v.Title = kind.Title()
		}
	case *DesignGuide:
		if strings.TrimSpace(v.Title) == "" {
			v.Title = kind.Title()
		}
	case *SEOResearch:
		if strings.TrimSpace(v.Title) == "" {
			v.Title = kind.Title()
		}
	case *AssumptionLog:
		if strings.TrimSpace(v.Title) == "" {
			v.Title = kind.Title()
		}
	case *ChangeHistory:
		if strings.TrimSpace(v.Title) == "" {
			v.Title = kind.Title()
		}
	}
}

// MarshalPayload renders a payload in its stored JSON form.
func MarshalPayload(p Payload) (json.RawMessage, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: nil payload", ErrInvalidContent)
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", p.Type(), err)
	}
	return data, nil
}
