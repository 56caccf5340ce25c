package triage

import (
	"strings"
	"testing"

	"matatu-feedback/models"
)

func priorityPtr(p models.Priority) *models.Priority {
	return &p
}

func TestClassifyExplicit(t *testing.T) {
	c := NewClassifier(nil)

	testCases := []struct {
		priority models.Priority
		category string
		forward  bool
	}{
		{models.PriorityCritical, "Brake Failure", true},
		{models.PriorityHigh, "Speeding", true},
		{models.PriorityMedium, "Overcharging", false},
		{models.PriorityLow, "Loud Music", false},
	}

	for _, tc := range testCases {
		t.Run(string(tc.priority), func(t *testing.T) {
			// The comment would match a keyword rule; explicit classification must win.
			got := c.Classify(Input{Priority: priorityPtr(tc.priority), Category: tc.category, Text: "the driver was drunk"})
			if got.Priority != tc.priority {
				t.Errorf("priority = %s, want %s", got.Priority, tc.priority)
			}
			if got.Category != tc.category {
				t.Errorf("category = %q, want %q", got.Category, tc.category)
			}
			if got.Forward != tc.forward {
				t.Errorf("forward = %v, want %v", got.Forward, tc.forward)
			}
		})
	}
}

func TestClassifyExplicitPriorityNeedsCategory(t *testing.T) {
	c := NewClassifier(nil)

	got := c.Classify(Input{Priority: priorityPtr(models.PriorityCritical)})
	if got.Priority != models.PriorityLow || got.Forward {
		t.Errorf("priority without category should fall through to default, got %+v", got)
	}
}

func TestClassifyKeywords(t *testing.T) {
	c := NewClassifier(nil)

	testCases := []struct {
		name     string
		text     string
		priority models.Priority
		category string
		forward  bool
	}{
		{"safety", "The matatu was OVERLOADED with 20 people", models.PriorityCritical, "Safety Violation", true},
		{"harassment", "The tout harassed a girl", models.PriorityCritical, "Sexual Harassment", true},
		{"dangerous driving", "driver was speeding on Thika road", models.PriorityHigh, "Dangerous Driving", true},
		{"commercial", "They overcharged me 50 bob", models.PriorityMedium, "Commercial Exploitation", false},
		{"verbal abuse", "conductor was very rude", models.PriorityMedium, "Verbal Abuse", false},
		{"default", "music was ok, seats clean", models.PriorityLow, DefaultCategoryLabel, false},
		{"empty", "", models.PriorityLow, DefaultCategoryLabel, false},
		{"safety beats verbal abuse", "the driver was drunk and rude to everyone", models.PriorityCritical, "Safety Violation", true},
		{"harassment beats verbal abuse", "sexual comments and insults", models.PriorityCritical, "Sexual Harassment", true},
		{"dangerous driving beats commercial", "reckless driver who also overcharged", models.PriorityHigh, "Dangerous Driving", true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := c.Classify(Input{Text: tc.text})
			if got.Priority != tc.priority {
				t.Errorf("Classify(%q) priority = %s, want %s", tc.text, got.Priority, tc.priority)
			}
			if got.Category != tc.category {
				t.Errorf("Classify(%q) category = %q, want %q", tc.text, got.Category, tc.category)
			}
			if got.Forward != tc.forward {
				t.Errorf("Classify(%q) forward = %v, want %v", tc.text, got.Forward, tc.forward)
			}
			if got.Reason == "" {
				t.Errorf("Classify(%q) returned an empty reason", tc.text)
			}
		})
	}
}

func TestClassifyReportUsesCategory(t *testing.T) {
	c := NewClassifier(nil)
	category := "Unsafe Driving"

	got := c.ClassifyReport(&models.Report{ReportType: models.ReportTypeIncident, Category: &category})
	if got.Priority != models.PriorityHigh || !got.Forward {
		t.Errorf("unexpected classification for incident category: %+v", got)
	}
}

func TestClassifyReportKeepsStoredPriority(t *testing.T) {
	c := NewClassifier(nil)
	category := "Loud Music"

	got := c.ClassifyReport(&models.Report{
		ReportType: models.ReportTypeIncident,
		Category:   &category,
		Priority:   priorityPtr(models.PriorityCritical),
	})
	if got.Priority != models.PriorityCritical || got.Category != "Loud Music" || !got.Forward {
		t.Errorf("stored explicit priority ignored: %+v", got)
	}
}

func TestClassifyWithSubstitutePolicy(t *testing.T) {
	policy, err := NewPolicy(Lexicons{RuleVerbalAbuse: {"matusi"}}, nil)
	if err != nil {
		t.Fatalf("NewPolicy: %v", err)
	}
	c := NewClassifier(policy)

	if got := c.Classify(Input{Text: "alitupa MATUSI"}); got.Category != "Verbal Abuse" {
		t.Errorf("custom lexicon not applied: %+v", got)
	}
	if got := c.Classify(Input{Text: "driver was drunk"}); got.Priority != models.PriorityLow {
		t.Errorf("rule without lexicon should never match, got %+v", got)
	}
}

func TestNewPolicyRejectsUnknownRule(t *testing.T) {
	if _, err := NewPolicy(Lexicons{"weather": {"rain"}}, nil); err == nil {
		t.Error("expected error for unknown rule")
	}
	if _, err := NewPolicy(nil, ScoreTable{"Loud Music": 11}); err == nil {
		t.Error("expected error for out of range score")
	}
}

func TestRulesOrder(t *testing.T) {
	rules := DefaultPolicy().Rules()
	want := []RuleKey{RuleSafetyViolation, RuleSexualHarassment, RuleDangerousDriving, RuleCommercialExploitation, RuleVerbalAbuse}
	if len(rules) != len(want) {
		t.Fatalf("got %d rules, want %d", len(rules), len(want))
	}
	for i, rule := range rules {
		if rule.Key != want[i] {
			t.Errorf("rule %d = %s, want %s", i, rule.Key, want[i])
		}
		for _, kw := range rule.Keywords() {
			if kw != strings.ToLower(kw) {
				t.Errorf("keyword %q is not lower case", kw)
			}
		}
	}
}

func TestSummarize(t *testing.T) {
	c := NewClassifier(nil)
	rating := 4
	comment := func(s string) *string { return &s }

	reports := []models.Report{
		{ReportType: models.ReportTypeGeneral, Rating: &rating, Comment: comment("nice ride")},
		{ReportType: models.ReportTypeGeneral, Rating: &rating, Comment: comment("driver was drunk")},
		{ReportType: models.ReportTypeIncident, Category: comment("Overcharging")},
	}

	s := c.Summarize(reports)
	if s.Total != 3 {
		t.Errorf("total = %d, want 3", s.Total)
	}
	if s.Forwarded != 1 || s.Local != 2 {
		t.Errorf("forwarded/local = %d/%d, want 1/2", s.Forwarded, s.Local)
	}
	if s.ByPriority[models.PriorityCritical] != 1 || s.ByPriority[models.PriorityMedium] != 1 || s.ByPriority[models.PriorityLow] != 1 {
		t.Errorf("unexpected priority counts: %v", s.ByPriority)
	}
	if s.ByCategory["Commercial Exploitation"] != 1 {
		t.Errorf("unexpected category counts: %v", s.ByCategory)
	}
}
