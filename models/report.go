package models

import (
	"time"
)

// ReportType discriminates passenger submissions
type ReportType string

const (
	ReportTypeGeneral  ReportType = "GENERAL"
	ReportTypeIncident ReportType = "INCIDENT"
)

// Priority is the triage priority of a classified report
type Priority string

const (
	PriorityCritical Priority = "CRITICAL"
	PriorityHigh     Priority = "HIGH"
	PriorityMedium   Priority = "MEDIUM"
	PriorityLow      Priority = "LOW"
)

// ParsePriority returns the priority named by s and whether it is known
func ParsePriority(s string) (Priority, bool) {
	switch p := Priority(s); p {
	case PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow:
		return p, true
	}
	return "", false
}

// Forwardable reports whether reports of this priority go to the regulator
func (p Priority) Forwardable() bool {
	return p == PriorityCritical || p == PriorityHigh
}

// Report represents a passenger submission from the feedback_reports table
type Report struct {
	ID         string     `json:"id"`
	UserID     *string    `json:"userId,omitempty"`
	MatatuID   string     `json:"matatuId"`
	ReportType ReportType `json:"reportType"`
	Category   *string    `json:"category,omitempty"`
	Rating     *int       `json:"rating,omitempty"`
	Comment    *string    `json:"comment,omitempty"`
	Evidence   *string    `json:"evidence,omitempty"`
	// Priority is the submitter's explicit priority, if one was given
	Priority   *Priority  `json:"priority,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// CommentText returns the comment or an empty string
func (r *Report) CommentText() string {
	if r.Comment == nil {
		return ""
	}
	return *r.Comment
}

// EvidenceText returns the raw evidence payload or an empty string
func (r *Report) EvidenceText() string {
	if r.Evidence == nil {
		return ""
	}
	return *r.Evidence
}

// CategoryText returns the category or an empty string
func (r *Report) CategoryText() string {
	if r.Category == nil {
		return ""
	}
	return *r.Category
}

// ReportInput is the canonical, validated payload entering the pipeline.
// Priority is only honoured together with Category.
type ReportInput struct {
	MatatuID   string
	ReportType ReportType
	Category   *string
	Rating     *int
	Comment    *string
	UserID     *string
	Priority   *Priority
	Evidence   *string
}

// Classification is derived from a report on demand and never stored
type Classification struct {
	Priority Priority `json:"priority"`
	Category string   `json:"category"`
	Forward  bool     `json:"forwardToNtsa"`
	Reason   string   `json:"reason"`
}

// IncidentOutcome is returned for incident reports only
type IncidentOutcome struct {
	PriorityScore  int  `json:"priorityScore"`
	AlertTriggered bool `json:"alertTriggered"`
}

// CreatedReport is what the store hands back after a committed create
type CreatedReport struct {
	Report         Report
	PriorIncidents int
	PriorityScore  *int
}

// CreateReportResponse is the success body of report creation
type CreateReportResponse struct {
	Success  bool             `json:"success"`
	Data     Report           `json:"data"`
	Incident *IncidentOutcome `json:"incident"`
}

// FieldError is a single validation failure
type FieldError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// MatatuStats aggregates the reports filed against one vehicle
type MatatuStats struct {
	MatatuID           string     `json:"matatuId"`
	TotalReports       int        `json:"totalReports"`
	GeneralReports     int        `json:"generalReports"`
	IncidentReports    int        `json:"incidentReports"`
	AverageRating      *string    `json:"averageRating"`
	IncidentCategories int        `json:"incidentCategories"`
	LastReportAt       *time.Time `json:"lastReportAt"`
}

// ClassificationSummary aggregates classifications over a report set
type ClassificationSummary struct {
	Total      int              `json:"total"`
	ByPriority map[Priority]int `json:"byPriority"`
	ByCategory map[string]int   `json:"byCategory"`
	Forwarded  int              `json:"forwarded"`
	Local      int              `json:"local"`
}

// ChannelMessage is an audit row for an outgoing chat message
type ChannelMessage struct {
	Channel     string    `json:"channel"`
	Direction   string    `json:"direction"`
	Recipient   string    `json:"recipient"`
	Body        string    `json:"body"`
	TransportID string    `json:"transportId"`
	Read        bool      `json:"read"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ReportCreatedEvent is published after a report is committed
type ReportCreatedEvent struct {
	ReportID   string     `json:"report_id"`
	MatatuID   string     `json:"matatu_id"`
	ReportType ReportType `json:"report_type"`
	Priority   Priority   `json:"priority"`
	Category   string     `json:"category"`
	Forward    bool       `json:"forward"`
	Score      *int       `json:"priority_score,omitempty"`
	Timestamp  string     `json:"timestamp"`
}
