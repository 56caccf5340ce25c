package triage

import (
	"fmt"
	"os"
	"strings"

	"matatu-feedback/models"

	"gopkg.in/yaml.v3"
)

// RuleKey names a keyword rule. Rules are evaluated in ruleOrder.
type RuleKey string

const (
	RuleSafetyViolation        RuleKey = "safety_violation"
	RuleSexualHarassment       RuleKey = "sexual_harassment"
	RuleDangerousDriving       RuleKey = "dangerous_driving"
	RuleCommercialExploitation RuleKey = "commercial_exploitation"
	RuleVerbalAbuse            RuleKey = "verbal_abuse"
)

// ruleOrder is the precedence of the keyword rules, first match wins.
var ruleOrder = []RuleKey{
	RuleSafetyViolation,
	RuleSexualHarassment,
	RuleDangerousDriving,
	RuleCommercialExploitation,
	RuleVerbalAbuse,
}

const (
	DefaultCategoryLabel = "General Complaint"
	DefaultScore         = 3
	MaxScore             = 10

	// A vehicle with more than RepeatOffenderThreshold prior incidents gets RepeatOffenderBonus.
	RepeatOffenderThreshold = 5
	RepeatOffenderBonus     = 2
)

// Rule is one keyword rule of the classifier
type Rule struct {
	Key      RuleKey
	Label    string
	Priority models.Priority
	Forward  bool
	Reason   string
	keywords []string
}

// Keywords returns a copy of the rule's lexicon
func (r Rule) Keywords() []string {
	return append([]string(nil), r.keywords...)
}

func (r Rule) matches(text string) (string, bool) {
	for _, kw := range r.keywords {
		if strings.Contains(text, kw) {
			return kw, true
		}
	}
	return "", false
}

// Lexicons maps each rule to its keyword list
type Lexicons map[RuleKey][]string

// ScoreTable maps incident categories to base priority scores
type ScoreTable map[string]int

// DefaultLexicons returns the built-in keyword lists
func DefaultLexicons() Lexicons {
	return Lexicons{
		RuleSafetyViolation: {
			"overload", "excess passengers", "no seatbelt", "no seat belt", "without seatbelt",
			"drunk", "intoxicated", "under the influence", "brake failure", "faulty brakes",
			"no brakes", "unroadworthy", "bald tyre", "smoke from engine", "no insurance",
			"expired insurance", "no license", "fake license", "door open", "hanging on the door",
		},
		RuleSexualHarassment: {
			"sexual", "harass", "grope", "touched me", "inappropriate touch",
			"indecent", "molest", "lewd",
		},
		RuleDangerousDriving: {
			"unsafe driving", "reckless", "dangerous driving", "over speeding", "overspeeding",
			"speeding", "overlapping", "overtaking", "red light", "wrong side", "street racing",
			"phone while driving", "texting while driving", "dangerous overtaking",
		},
		RuleCommercialExploitation: {
			"overcharg", "fare hike", "double fare", "extra fare", "hiked fare",
			"refused to give change", "no change", "refused change", "charged twice", "extortion",
		},
		RuleVerbalAbuse: {
			"abuse", "abusive", "insult", "rude", "shout", "yelled", "disrespect",
			"foul language", "threaten", "harsh",
		},
	}
}

// DefaultScoreTable returns the built-in category scores
func DefaultScoreTable() ScoreTable {
	return ScoreTable{
		"Unsafe Driving":  10,
		"Drunk Driving":   10,
		"Harassment":      9,
		"Overloading":     8,
		"Unroadworthy":    8,
		"Overcharging":    5,
		"Route Deviation": 4,
		"Rude Crew":       4,
		"Poor Hygiene":    3,
		"Loud Music":      2,
	}
}

var ruleMeta = map[RuleKey]Rule{
	RuleSafetyViolation: {
		Label: "Safety Violation", Priority: models.PriorityCritical, Forward: true,
		Reason: "Report describes a safety violation",
	},
	RuleSexualHarassment: {
		Label: "Sexual Harassment", Priority: models.PriorityCritical, Forward: true,
		Reason: "Report describes sexual harassment",
	},
	RuleDangerousDriving: {
		Label: "Dangerous Driving", Priority: models.PriorityHigh, Forward: true,
		Reason: "Report describes dangerous driving",
	},
	RuleCommercialExploitation: {
		Label: "Commercial Exploitation", Priority: models.PriorityMedium, Forward: false,
		Reason: "Fare or commercial complaint handled by the sacco",
	},
	RuleVerbalAbuse: {
		Label: "Verbal Abuse", Priority: models.PriorityMedium, Forward: false,
		Reason: "Crew conduct complaint handled by the sacco",
	},
}

// Policy is an immutable set of classification rules and score weights
type Policy struct {
	rules        []Rule
	scores       map[string]int
	defaultScore int
}

// NewPolicy builds a policy from lexicons and a score table. Rules missing
// from lexicons keep an empty keyword list and therefore never match.
func NewPolicy(lex Lexicons, scores ScoreTable) (*Policy, error) {
	p := &Policy{
		scores:       make(map[string]int, len(scores)),
		defaultScore: DefaultScore,
	}

	for key := range lex {
		if _, ok := ruleMeta[key]; !ok {
			return nil, fmt.Errorf("unknown rule %q", key)
		}
	}

	for _, key := range ruleOrder {
		rule := ruleMeta[key]
		rule.Key = key
		for _, kw := range lex[key] {
			if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
				rule.keywords = append(rule.keywords, kw)
			}
		}
		p.rules = append(p.rules, rule)
	}

	for category, score := range scores {
		if score < 0 || score > MaxScore {
			return nil, fmt.Errorf("score for %q out of range: %d", category, score)
		}
		p.scores[normalizeCategory(category)] = score
	}

	return p, nil
}

// DefaultPolicy returns the built-in policy
func DefaultPolicy() *Policy {
	p, err := NewPolicy(DefaultLexicons(), DefaultScoreTable())
	if err != nil {
		panic(err)
	}
	return p
}

// Rules returns the rules in evaluation order
func (p *Policy) Rules() []Rule {
	return append([]Rule(nil), p.rules...)
}

type policyFile struct {
	Lexicons map[string][]string `yaml:"lexicons"`
	Scores   map[string]int      `yaml:"scores"`
}

// LoadPolicy reads a YAML override file on top of the built-in policy.
// Listed lexicons and scores replace the defaults; rule order is fixed.
func LoadPolicy(path string) (*Policy, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open policy file: %w", err)
	}
	defer file.Close()

	var pf policyFile
	if err := yaml.NewDecoder(file).Decode(&pf); err != nil {
		return nil, fmt.Errorf("failed to decode policy file: %w", err)
	}

	lex := DefaultLexicons()
	for key, words := range pf.Lexicons {
		lex[RuleKey(key)] = words
	}

	scores := DefaultScoreTable()
	for category, score := range pf.Scores {
		scores[category] = score
	}

	return NewPolicy(lex, scores)
}

func normalizeCategory(category string) string {
	return strings.ToLower(strings.TrimSpace(category))
}
