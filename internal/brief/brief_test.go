package brief

import (
	"errors"
	"strings"
	"testing"
)

const sampleBrief = `{
	"purpose": "Refresh the Acme marketing site",
	"primaryAudience": "Prospective customers",
	"secondaryAudience": "Investors",
	"tone": "Confident and plain",
	"sitemap": ["Home", "Products", "Contact"],
	"constraints": ["WCAG 2.1 AA"],
	"assumptions": [{"text": "Existing photography is reusable", "confidence": "Medium"}],
	"openQuestions": ["Who owns the blog?"]
}`

func TestParseContent(t *testing.T) {
	content, err := ParseContent([]byte(sampleBrief))
	if err != nil {
		t.Fatalf("ParseContent() error = %v", err)
	}
	if content.Purpose != "Refresh the Acme marketing site" || len(content.Sitemap) != 3 {
		t.Fatalf("unexpected content: %+v", content)
	}
	if content.Assumptions[0].Confidence != ConfidenceMedium {
		t.Fatalf("confidence not normalized: %q", content.Assumptions[0].Confidence)
	}
}

func TestParseContentAllowsMissingSecondaryAudience(t *testing.T) {
	raw := strings.Replace(sampleBrief, `"secondaryAudience": "Investors",`, "", 1)
	content, err := ParseContent([]byte(raw))
	if err != nil {
		t.Fatalf("ParseContent() error = %v", err)
	}
	if content.SecondaryAudience != "" {
		t.Fatalf("expected empty secondary audience, got %q", content.SecondaryAudience)
	}
}

func TestParseContentRejectsIncompleteObjects(t *testing.T) {
	cases := map[string]string{
		"missing tone":        strings.Replace(sampleBrief, `"tone": "Confident and plain",`, "", 1),
		"null sitemap":        strings.Replace(sampleBrief, `["Home", "Products", "Contact"]`, "null", 1),
		"bad confidence":      strings.Replace(sampleBrief, `"Medium"`, `"certain"`, 1),
		"wrong sitemap shape": strings.Replace(sampleBrief, `["Home", "Products", "Contact"]`, `"Home"`, 1),
		"not an object":       `["purpose"]`,
		"not json":            `Sure! Here is your brief`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseContent([]byte(raw))
			if !errors.Is(err, ErrInvalidContent) {
				t.Fatalf("expected ErrInvalidContent, got %v", err)
			}
		})
	}
}

func TestParsePriority(t *testing.T) {
	if p, err := ParsePriority(""); err != nil || p != PriorityNormal {
		t.Fatalf("blank priority = %q, %v", p, err)
	}
	if p, err := ParsePriority("CRITICAL"); err != nil || p != PriorityCritical {
		t.Fatalf("critical priority = %q, %v", p, err)
	}
	if _, err := ParsePriority("urgent"); err == nil {
		t.Fatal("expected error for unknown priority")
	}
}

func TestRequestStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to RequestStatus
		allowed  bool
	}{
		{RequestPending, RequestApproved, true},
		{RequestPending, RequestRejected, true},
		{RequestPending, RequestImplemented, false},
		{RequestApproved, RequestImplemented, true},
		{RequestApproved, RequestRejected, false},
		{RequestRejected, RequestApproved, false},
		{RequestRejected, RequestImplemented, false},
		{RequestImplemented, RequestPending, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransition(tc.to); got != tc.allowed {
			t.Fatalf("%s -> %s = %v, want %v", tc.from, tc.to, got, tc.allowed)
		}
	}
}

func TestActor(t *testing.T) {
	if !User("   ").IsSystem() {
		t.Fatal("blank user should be System")
	}
	if System.Name() != "System" || System.Kind() != "system" {
		t.Fatalf("unexpected system actor %q/%q", System.Name(), System.Kind())
	}
	dana := User(" Dana ")
	if dana.Name() != "Dana" || dana.Kind() != "user" {
		t.Fatalf("unexpected user actor %q/%q", dana.Name(), dana.Kind())
	}
	if ActorFrom("system", "Dana") != System {
		t.Fatal("system kind must ignore name")
	}
	if ActorFrom("user", "Dana") != dana {
		t.Fatal("user kind should round trip")
	}
}
