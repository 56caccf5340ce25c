package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"matatu-feedback/database"
	"matatu-feedback/dispatch"
	"matatu-feedback/escalation"
	"matatu-feedback/metrics"
	"matatu-feedback/models"
	"matatu-feedback/triage"

	"github.com/apex/log"
)

// ErrPersistence wraps every report store failure on the create path
var ErrPersistence = errors.New("failed to save report")

const (
	DefaultSummaryLimit = 100
	MaxSummaryLimit     = 1000
)

// Store is the report store used by the pipeline
type Store interface {
	CreateReport(ctx context.Context, in models.ReportInput, score database.ScoreFunc) (*models.CreatedReport, error)
	GetReport(ctx context.Context, id string) (*models.Report, error)
	ListRecentReports(ctx context.Context, limit int) ([]models.Report, error)
	GetContactPhone(ctx context.Context, userID string) (string, error)
}

// Runner executes background tasks off the request path
type Runner interface {
	Submit(name string, task dispatch.Task) error
}

// Notifier delivers notifications for a committed report
type Notifier interface {
	Dispatch(ctx context.Context, job dispatch.Job) []dispatch.Attempt
}

// Forwarder submits reports to the regulator
type Forwarder interface {
	Forward(ctx context.Context, report *models.Report, cls models.Classification) escalation.Result
}

// EventPublisher publishes report events to the message bus
type EventPublisher interface {
	Publish(message interface{}) error
}

// Observer receives pipeline events for the live feed
type Observer interface {
	Publish(eventType string, data interface{})
}

// Options tunes the pipeline. Publisher and Observer may be nil.
type Options struct {
	UrgentThreshold int
	Publisher       EventPublisher
	Observer        Observer
}

// Pipeline runs report creation: classify, score and persist on the
// request path, then notify, forward and publish in the background
type Pipeline struct {
	store      Store
	classifier *triage.Classifier
	scorer     *triage.Scorer
	runner     Runner
	notifier   Notifier
	forwarder  Forwarder
	opts       Options
}

// New creates a pipeline
func New(store Store, classifier *triage.Classifier, scorer *triage.Scorer, runner Runner, notifier Notifier, forwarder Forwarder, opts Options) *Pipeline {
	return &Pipeline{
		store:      store,
		classifier: classifier,
		scorer:     scorer,
		runner:     runner,
		notifier:   notifier,
		forwarder:  forwarder,
		opts:       opts,
	}
}

// CreateReport validates, classifies and stores a report. Only validation
// and persistence problems are returned; notification and forwarding run
// after the commit and cannot fail the call.
func (p *Pipeline) CreateReport(ctx context.Context, payload Payload) (*models.CreateReportResponse, error) {
	in, err := Normalize(payload)
	if err != nil {
		return nil, err
	}

	cls := p.classifier.Classify(triage.Input{
		Priority: in.Priority,
		Category: stringValue(in.Category),
		Text:     stringValue(in.Comment),
	})

	created, err := p.store.CreateReport(ctx, in, p.scorer.Score)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	report := created.Report

	metrics.ReportsCreatedTotal.WithLabelValues(string(report.ReportType)).Inc()
	metrics.ClassificationsTotal.WithLabelValues(string(cls.Priority), metrics.BoolLabel(cls.Forward)).Inc()
	log.WithFields(log.Fields{
		"report_id": report.ID,
		"matatu_id": report.MatatuID,
		"priority":  cls.Priority,
		"category":  cls.Category,
		"forward":   cls.Forward,
		"reason":    cls.Reason,
	}).Info("classified report")

	var incident *models.IncidentOutcome
	if report.ReportType == models.ReportTypeIncident && created.PriorityScore != nil {
		incident = &models.IncidentOutcome{
			PriorityScore:  *created.PriorityScore,
			AlertTriggered: *created.PriorityScore > p.opts.UrgentThreshold,
		}
		if incident.AlertTriggered {
			metrics.UrgentAlertsTotal.Inc()
		}
	}

	if p.opts.Observer != nil {
		p.opts.Observer.Publish("classification", classificationEvent{
			ReportID:       report.ID,
			MatatuID:       report.MatatuID,
			ReportType:     report.ReportType,
			Classification: cls,
			Incident:       incident,
		})
	}

	p.schedule(report, cls, created.PriorityScore, incident != nil && incident.AlertTriggered)

	return &models.CreateReportResponse{
		Success:  true,
		Data:     report,
		Incident: incident,
	}, nil
}

type classificationEvent struct {
	ReportID       string                  `json:"reportId"`
	MatatuID       string                  `json:"matatuId"`
	ReportType     models.ReportType       `json:"reportType"`
	Classification models.Classification   `json:"classification"`
	Incident       *models.IncidentOutcome `json:"incident"`
}

// schedule hands the side effects of a committed report to the runner. A
// dropped task is logged and otherwise ignored.
func (p *Pipeline) schedule(report models.Report, cls models.Classification, score *int, urgent bool) {
	submit := func(name string, task dispatch.Task) {
		if err := p.runner.Submit(name, task); err != nil {
			log.WithError(err).WithFields(log.Fields{
				"report_id": report.ID,
				"task":      name,
			}).Warn("background task dropped")
		}
	}

	if p.notifier != nil {
		submit("notify", func(ctx context.Context) error {
			job := dispatch.Job{
				Report:         report,
				Classification: cls,
				Score:          score,
				Urgent:         urgent,
				SubmitterPhone: p.submitterPhone(ctx, report),
			}
			p.notifier.Dispatch(ctx, job)
			return nil
		})
	}

	if cls.Forward && p.forwarder != nil {
		submit("forward", func(ctx context.Context) error {
			res := p.forwarder.Forward(ctx, &report, cls)
			if !res.Success {
				return errors.New(res.Error)
			}
			return nil
		})
	}

	if p.opts.Publisher != nil {
		submit("publish", func(context.Context) error {
			return p.opts.Publisher.Publish(models.ReportCreatedEvent{
				ReportID:   report.ID,
				MatatuID:   report.MatatuID,
				ReportType: report.ReportType,
				Priority:   cls.Priority,
				Category:   cls.Category,
				Forward:    cls.Forward,
				Score:      score,
				Timestamp:  report.CreatedAt.Format(time.RFC3339),
			})
		})
	}
}

func (p *Pipeline) submitterPhone(ctx context.Context, report models.Report) string {
	if report.UserID == nil {
		return ""
	}
	phone, err := p.store.GetContactPhone(ctx, *report.UserID)
	if err != nil {
		if !errors.Is(err, database.ErrNotFound) {
			log.WithError(err).WithField("report_id", report.ID).Warn("failed to look up submitter phone")
		}
		return ""
	}
	return phone
}

// ForwardReport classifies a stored report and forwards it synchronously.
// The caller sees the forwarding result, including failures.
func (p *Pipeline) ForwardReport(ctx context.Context, id string) (*escalation.Result, error) {
	report, err := p.store.GetReport(ctx, id)
	if err != nil {
		return nil, err
	}

	cls := p.classifier.ClassifyReport(report)
	res := p.forwarder.Forward(ctx, report, cls)
	return &res, nil
}

// ClassificationSummary classifies the most recent reports and aggregates them
func (p *Pipeline) ClassificationSummary(ctx context.Context, limit int) (models.ClassificationSummary, error) {
	if limit <= 0 {
		limit = DefaultSummaryLimit
	}
	if limit > MaxSummaryLimit {
		limit = MaxSummaryLimit
	}

	reports, err := p.store.ListRecentReports(ctx, limit)
	if err != nil {
		return models.ClassificationSummary{}, fmt.Errorf("failed to load reports for summary: %w", err)
	}
	return p.classifier.Summarize(reports), nil
}

func stringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
