package escalation

import (
	"context"
	"fmt"

	"matatu-feedback/metrics"
	"matatu-feedback/models"

	"github.com/apex/log"
	"github.com/google/uuid"
)

// Mail is one outbound regulator submission
type Mail struct {
	To      string
	Cc      []string
	Subject string
	Body    string
}

// MailTransport delivers a submission and returns the transport message id
type MailTransport interface {
	Send(ctx context.Context, m Mail) (string, error)
}

// ContactLookup resolves a submitter reference to a phone number
type ContactLookup interface {
	GetContactPhone(ctx context.Context, userID string) (string, error)
}

// Observer receives forwarding events
type Observer interface {
	Publish(eventType string, data interface{})
}

// Routing selects the submission mailboxes
type Routing struct {
	Production      bool
	RegulatorEmail  string
	DevEmail        string
	MonitoringEmail string
}

// Result is the outcome of a forward call. Errors are carried here and
// never returned to the caller.
type Result struct {
	ReportID    string `json:"reportId"`
	Success     bool   `json:"success"`
	Forwarded   bool   `json:"forwarded"`
	Destination string `json:"destination,omitempty"`
	TransportID string `json:"transportId,omitempty"`
	Message     string `json:"message"`
	Error       string `json:"error,omitempty"`
	Mock        bool   `json:"mock"`
}

// Forwarder hands classified reports to the regulator mailbox
type Forwarder struct {
	transport MailTransport
	routing   Routing
	contacts  ContactLookup
	observer  Observer
}

// NewForwarder creates a forwarder. A nil transport puts the forwarder in
// mock mode: submissions are logged and reported as sent.
func NewForwarder(transport MailTransport, routing Routing, contacts ContactLookup, observer Observer) *Forwarder {
	if transport == nil {
		log.Warn("Mail transport not configured, regulator forwarding runs in mock mode")
	}
	return &Forwarder{
		transport: transport,
		routing:   routing,
		contacts:  contacts,
		observer:  observer,
	}
}

// MockMode reports whether submissions are only logged
func (f *Forwarder) MockMode() bool {
	return f.transport == nil
}

// Destination returns the mailbox and copy list for the current routing
func (f *Forwarder) Destination() (string, []string) {
	if f.routing.Production {
		var cc []string
		if f.routing.MonitoringEmail != "" {
			cc = []string{f.routing.MonitoringEmail}
		}
		return f.routing.RegulatorEmail, cc
	}
	return f.routing.DevEmail, nil
}

// Forward submits the report when the classification asks for it
func (f *Forwarder) Forward(ctx context.Context, report *models.Report, cls models.Classification) Result {
	res := f.forward(ctx, report, cls)
	res.ReportID = report.ID

	label := "forwarded"
	switch {
	case !res.Success:
		label = "failed"
	case !res.Forwarded:
		label = "skipped"
	case res.Mock:
		label = "mock"
	}
	metrics.ForwardTotal.WithLabelValues(label).Inc()

	entry := log.WithFields(log.Fields{
		"report_id":    report.ID,
		"forwarded":    res.Forwarded,
		"destination":  res.Destination,
		"transport_id": res.TransportID,
		"mock":         res.Mock,
	})
	if res.Success {
		entry.Info("forward outcome")
	} else {
		entry.WithField("error", res.Error).Error("forward outcome")
	}

	if f.observer != nil {
		f.observer.Publish("forward", res)
	}
	return res
}

func (f *Forwarder) forward(ctx context.Context, report *models.Report, cls models.Classification) Result {
	if !cls.Forward {
		return Result{
			Success:   true,
			Forwarded: false,
			Message:   fmt.Sprintf("%s priority report handled locally", cls.Priority),
		}
	}

	to, cc := f.Destination()
	mail := Mail{
		To:      to,
		Cc:      cc,
		Subject: Subject(report, cls),
		Body:    RenderSubmission(report, cls, f.contactPhone(ctx, report)),
	}

	if f.transport == nil {
		id := "mock-" + uuid.NewString()
		log.WithFields(log.Fields{
			"to":      mail.To,
			"cc":      mail.Cc,
			"subject": mail.Subject,
		}).Infof("Mock regulator submission:\n%s", mail.Body)
		return Result{
			Success:     true,
			Forwarded:   true,
			Destination: to,
			TransportID: id,
			Message:     "Submission logged (mock mode)",
			Mock:        true,
		}
	}

	id, err := f.send(ctx, mail)
	if err != nil {
		return Result{
			Success:     false,
			Forwarded:   false,
			Destination: to,
			Message:     "Failed to forward report to NTSA",
			Error:       err.Error(),
		}
	}

	return Result{
		Success:     true,
		Forwarded:   true,
		Destination: to,
		TransportID: id,
		Message:     "Report forwarded to NTSA",
	}
}

// send shields the caller from transport panics as well as errors
func (f *Forwarder) send(ctx context.Context, mail Mail) (id string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("mail transport panicked: %v", r)
		}
	}()
	return f.transport.Send(ctx, mail)
}

func (f *Forwarder) contactPhone(ctx context.Context, report *models.Report) string {
	if f.contacts == nil || report.UserID == nil || *report.UserID == "" {
		return ""
	}
	phone, err := f.contacts.GetContactPhone(ctx, *report.UserID)
	if err != nil {
		log.WithError(err).WithField("report_id", report.ID).Debug("no contact phone for submitter")
		return ""
	}
	return phone
}
