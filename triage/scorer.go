package triage

// Scorer computes the urgency of an incident report
type Scorer struct {
	policy *Policy
}

// NewScorer creates a scorer over the given policy
func NewScorer(policy *Policy) *Scorer {
	if policy == nil {
		policy = DefaultPolicy()
	}
	return &Scorer{policy: policy}
}

// Score returns a value in [0, MaxScore]. Unknown categories score DefaultScore.
// Vehicles with more than RepeatOffenderThreshold prior incidents get a bonus.
func (s *Scorer) Score(category string, priorIncidents int) int {
	score, ok := s.policy.scores[normalizeCategory(category)]
	if !ok {
		score = s.policy.defaultScore
	}

	if priorIncidents > RepeatOffenderThreshold {
		score += RepeatOffenderBonus
	}

	if score > MaxScore {
		score = MaxScore
	}
	if score < 0 {
		score = 0
	}
	return score
}
