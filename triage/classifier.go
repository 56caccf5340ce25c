package triage

import (
	"strings"

	"matatu-feedback/models"
)

// Input is everything the classifier looks at
type Input struct {
	// Priority and Category together form an explicit classification
	Priority *models.Priority
	Category string
	Text     string
}

// InputFromReport builds classifier input from a stored report. The incident
// category is searched together with the comment, and the submitter's
// explicit priority is carried over so a stored report classifies the same
// way it did when it was created.
func InputFromReport(r *models.Report) Input {
	return Input{
		Priority: r.Priority,
		Category: r.CategoryText(),
		Text:     r.CommentText(),
	}
}

// Classifier maps report text onto a priority and regulator-forwarding decision
type Classifier struct {
	policy *Policy
}

// NewClassifier creates a classifier over the given policy
func NewClassifier(policy *Policy) *Classifier {
	if policy == nil {
		policy = DefaultPolicy()
	}
	return &Classifier{policy: policy}
}

// Classify is pure and deterministic. The first matching rule wins.
func (c *Classifier) Classify(in Input) models.Classification {
	category := strings.TrimSpace(in.Category)

	if in.Priority != nil && category != "" {
		return models.Classification{
			Priority: *in.Priority,
			Category: category,
			Forward:  in.Priority.Forwardable(),
			Reason:   "Explicit classification provided by submitter",
		}
	}

	text := strings.ToLower(strings.TrimSpace(in.Text + " " + category))
	if text != "" {
		for _, rule := range c.policy.rules {
			if kw, ok := rule.matches(text); ok {
				return models.Classification{
					Priority: rule.Priority,
					Category: rule.Label,
					Forward:  rule.Forward,
					Reason:   rule.Reason + " (matched \"" + kw + "\")",
				}
			}
		}
	}

	return models.Classification{
		Priority: models.PriorityLow,
		Category: DefaultCategoryLabel,
		Forward:  false,
		Reason:   "No escalation keywords found",
	}
}

// ClassifyReport classifies a stored report
func (c *Classifier) ClassifyReport(r *models.Report) models.Classification {
	return c.Classify(InputFromReport(r))
}
