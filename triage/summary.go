package triage

import "matatu-feedback/models"

// Summarize aggregates classifications over an already loaded report set
func (c *Classifier) Summarize(reports []models.Report) models.ClassificationSummary {
	summary := models.ClassificationSummary{
		ByPriority: map[models.Priority]int{
			models.PriorityCritical: 0,
			models.PriorityHigh:     0,
			models.PriorityMedium:   0,
			models.PriorityLow:      0,
		},
		ByCategory: map[string]int{},
	}

	for i := range reports {
		cls := c.ClassifyReport(&reports[i])
		summary.Total++
		summary.ByPriority[cls.Priority]++
		summary.ByCategory[cls.Category]++
		if cls.Forward {
			summary.Forwarded++
		} else {
			summary.Local++
		}
	}

	return summary
}
