package dispatch

import (
	"context"
	"time"

	"matatu-feedback/metrics"
	"matatu-feedback/models"
	"matatu-feedback/notify"

	"github.com/apex/log"
)

// Observer receives dispatch events, e.g. the admin live feed
type Observer interface {
	Publish(eventType string, data interface{})
}

// Job is a committed report ready for notification
type Job struct {
	Report         models.Report
	Classification models.Classification
	Score          *int
	Urgent         bool
	SubmitterPhone string
}

// Options configures a Dispatcher
type Options struct {
	// AlertRecipients receive the urgent alert for high-scoring incidents
	AlertRecipients []string
	// JoinCode and WhatsAppNumber build the enrollment instructions sent by SMS
	JoinCode       string
	WhatsAppNumber string
	Observer       Observer
}

// Dispatcher decides who is notified and over which channel. WhatsApp is
// tried first; only a NEEDS_OPT_IN failure falls back to SMS, once.
type Dispatcher struct {
	primary  notify.Adapter
	fallback notify.Adapter
	trail    *Trail
	opts     Options
}

// NewDispatcher creates a dispatcher. fallback may be nil.
func NewDispatcher(primary, fallback notify.Adapter, trail *Trail, opts Options) *Dispatcher {
	if trail == nil {
		trail = NewTrail(DefaultTrailSize)
	}
	return &Dispatcher{
		primary:  primary,
		fallback: fallback,
		trail:    trail,
		opts:     opts,
	}
}

// Trail returns the dispatcher's audit trail
func (d *Dispatcher) Trail() *Trail {
	return d.trail
}

// Dispatch notifies everyone concerned by a committed report. It never
// returns an error: every outcome lands in the audit trail and the logs.
func (d *Dispatcher) Dispatch(ctx context.Context, job Job) []Attempt {
	var attempts []Attempt

	if job.Urgent {
		msg := urgentAlertMessage(job)
		for _, recipient := range d.opts.AlertRecipients {
			attempts = append(attempts, d.Deliver(ctx, job.Report.ID, recipient, msg, notify.KindUrgentAlert)...)
		}
		if len(d.opts.AlertRecipients) == 0 {
			log.WithField("report_id", job.Report.ID).Warn("urgent alert has no configured recipients")
		}
	} else {
		log.WithFields(log.Fields{
			"report_id": job.Report.ID,
			"matatu_id": job.Report.MatatuID,
			"priority":  job.Classification.Priority,
		}).Info("regular notification")
	}

	if job.SubmitterPhone != "" {
		kind := notify.KindRoutine
		msg := routineMessage(job)
		if job.Report.ReportType == models.ReportTypeIncident {
			kind = notify.KindAcknowledgment
			msg = acknowledgmentMessage(job)
		}
		attempts = append(attempts, d.Deliver(ctx, job.Report.ID, job.SubmitterPhone, msg, kind)...)
	}

	return attempts
}

// Deliver sends one message to one recipient with the opt-in fallback and
// returns the attempts made, in order
func (d *Dispatcher) Deliver(ctx context.Context, reportID, recipient, message string, kind notify.MessageKind) []Attempt {
	res := d.primary.Send(ctx, recipient, message, kind)
	attempts := []Attempt{d.record(reportID, kind, res, false)}

	if res.Success || res.FailureKind != notify.FailureNeedsOptIn || d.fallback == nil {
		return attempts
	}

	body := optInFallbackMessage(message, d.opts.JoinCode, d.opts.WhatsAppNumber)
	fb := d.fallback.Send(ctx, recipient, body, notify.KindOptInReminder)
	return append(attempts, d.record(reportID, notify.KindOptInReminder, fb, true))
}

func (d *Dispatcher) record(reportID string, kind notify.MessageKind, res notify.SendResult, fallback bool) Attempt {
	a := Attempt{
		ReportID:    reportID,
		Recipient:   res.Recipient,
		Kind:        kind,
		Channel:     res.Channel,
		Success:     res.Success,
		FailureKind: res.FailureKind,
		TransportID: res.TransportID,
		Error:       res.Error,
		Fallback:    fallback,
		At:          time.Now().UTC(),
	}
	d.trail.Record(a)

	result := "success"
	if !res.Success {
		result = string(res.FailureKind)
	}
	metrics.DispatchAttemptsTotal.WithLabelValues(string(res.Channel), result).Inc()

	entry := log.WithFields(log.Fields{
		"report_id":    reportID,
		"recipient":    res.Recipient,
		"channel":      res.Channel,
		"kind":         kind,
		"success":      res.Success,
		"failure_kind": res.FailureKind,
		"transport_id": res.TransportID,
		"fallback":     fallback,
	})
	if res.Success {
		entry.Info("dispatch attempt")
	} else {
		entry.WithField("error", res.Error).Warn("dispatch attempt")
	}

	if d.opts.Observer != nil {
		d.opts.Observer.Publish("dispatch", a)
	}
	return a
}
