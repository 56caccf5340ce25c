package escalation

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"matatu-feedback/models"
)

type fakeMail struct {
	id    string
	err   error
	panic bool
	sent  []Mail
}

func (f *fakeMail) Send(_ context.Context, m Mail) (string, error) {
	if f.panic {
		panic("smtp exploded")
	}
	f.sent = append(f.sent, m)
	return f.id, f.err
}

type fakeContacts struct {
	phones map[string]string
}

func (f *fakeContacts) GetContactPhone(_ context.Context, userID string) (string, error) {
	if p, ok := f.phones[userID]; ok {
		return p, nil
	}
	return "", errors.New("not found")
}

func strPtr(s string) *string {
	return &s
}

func testReport() *models.Report {
	return &models.Report{
		ID:         "5f0c9a2e-1111-2222-3333-444455556666",
		UserID:     strPtr("user-7"),
		MatatuID:   "KDA 456C",
		ReportType: models.ReportTypeIncident,
		Category:   strPtr("Drunk Driving"),
		Comment:    strPtr("Driver smelled of alcohol and was swerving"),
		CreatedAt:  time.Date(2026, 3, 14, 8, 30, 0, 0, time.UTC),
	}
}

var (
	forwardCls = models.Classification{Priority: models.PriorityCritical, Category: "Safety Violation", Forward: true, Reason: "Report describes a safety violation"}
	localCls   = models.Classification{Priority: models.PriorityMedium, Category: "Verbal Abuse", Forward: false}
	routing    = Routing{RegulatorEmail: "complaints@ntsa.go.ke", DevEmail: "dev@example.com", MonitoringEmail: "monitor@example.com"}
)

func TestForwardNotFlagged(t *testing.T) {
	transport := &fakeMail{id: "msg-1"}
	f := NewForwarder(transport, routing, nil, nil)

	res := f.Forward(context.Background(), testReport(), localCls)
	if !res.Success || res.Forwarded {
		t.Errorf("expected success without forwarding, got %+v", res)
	}
	if len(transport.sent) != 0 {
		t.Errorf("expected zero transport calls, got %d", len(transport.sent))
	}
}

func TestForwardRouting(t *testing.T) {
	testCases := []struct {
		name       string
		production bool
		to         string
		cc         []string
	}{
		{"development", false, "dev@example.com", nil},
		{"production", true, "complaints@ntsa.go.ke", []string{"monitor@example.com"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := routing
			r.Production = tc.production
			transport := &fakeMail{id: "msg-2"}
			f := NewForwarder(transport, r, &fakeContacts{phones: map[string]string{"user-7": "+254711000000"}}, nil)

			res := f.Forward(context.Background(), testReport(), forwardCls)
			if !res.Success || !res.Forwarded || res.TransportID != "msg-2" || res.Destination != tc.to {
				t.Fatalf("unexpected result: %+v", res)
			}
			if len(transport.sent) != 1 {
				t.Fatalf("expected one mail, got %d", len(transport.sent))
			}
			m := transport.sent[0]
			if m.To != tc.to || len(m.Cc) != len(tc.cc) {
				t.Errorf("mail routed to %s cc %v", m.To, m.Cc)
			}
			if m.Subject != "[NTSA] CRITICAL - Safety Violation - Vehicle KDA 456C" {
				t.Errorf("unexpected subject %q", m.Subject)
			}
			if !strings.Contains(m.Body, "+254711000000") {
				t.Errorf("body missing contact phone")
			}
		})
	}
}

func TestForwardTransportError(t *testing.T) {
	f := NewForwarder(&fakeMail{err: errors.New("401 unauthorized")}, routing, nil, nil)

	res := f.Forward(context.Background(), testReport(), forwardCls)
	if res.Success || res.Forwarded || res.Error != "401 unauthorized" {
		t.Errorf("expected structured failure, got %+v", res)
	}
}

func TestForwardTransportPanic(t *testing.T) {
	f := NewForwarder(&fakeMail{panic: true}, routing, nil, nil)

	res := f.Forward(context.Background(), testReport(), forwardCls)
	if res.Success || res.Forwarded || !strings.Contains(res.Error, "panicked") {
		t.Errorf("expected structured failure, got %+v", res)
	}
}

func TestForwardMockMode(t *testing.T) {
	f := NewForwarder(nil, routing, nil, nil)
	if !f.MockMode() {
		t.Fatal("nil transport should select mock mode")
	}

	first := f.Forward(context.Background(), testReport(), forwardCls)
	second := f.Forward(context.Background(), testReport(), forwardCls)
	for _, res := range []Result{first, second} {
		if !res.Success || !res.Forwarded || !res.Mock || !strings.HasPrefix(res.TransportID, "mock-") {
			t.Errorf("unexpected mock result: %+v", res)
		}
	}
	if first.TransportID == second.TransportID {
		t.Error("mock ids should be unique")
	}
}

func TestRenderSubmissionSections(t *testing.T) {
	body := RenderSubmission(testReport(), forwardCls, "")

	for _, want := range []string{
		"Priority:        CRITICAL",
		"Category:        Safety Violation",
		"INCIDENT DETAILS",
		"Driver smelled of alcohol",
		"CREW / PASSENGER CONTACT",
		"Passenger Reference:  user-7",
		"EVIDENCE",
		"No evidence attached.",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("rendered submission missing %q", want)
		}
	}
}

func TestRenderSubmissionEvidence(t *testing.T) {
	testCases := []struct {
		name     string
		evidence string
		want     []string
	}{
		{"malformed json", `{"photo": "http://x/1.jpg"`, []string{`Note: {"photo": "http://x/1.jpg"`}},
		{"plain text", "saw it at Odeon stage", []string{"Note: saw it at Odeon stage"}},
		{"item list", `[{"type":"photo","url":"http://x/1.jpg","description":"front plate"}]`, []string{"1. [photo] front plate (http://x/1.jpg)"}},
		{"object", `{"witness":"Jane","time":"08:10","count":3}`, []string{"count: 3", "time: 08:10", "witness: Jane"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			report := testReport()
			report.Evidence = strPtr(tc.evidence)

			body := RenderSubmission(report, forwardCls, "")
			for _, want := range tc.want {
				if !strings.Contains(body, want) {
					t.Errorf("rendered submission missing %q:\n%s", want, body)
				}
			}
		})
	}
}

func TestRenderSubmissionAnonymous(t *testing.T) {
	report := testReport()
	report.UserID = nil
	report.Comment = nil

	body := RenderSubmission(report, forwardCls, "")
	if !strings.Contains(body, "anonymous") || !strings.Contains(body, "No description provided.") {
		t.Errorf("unexpected anonymous rendering:\n%s", body)
	}
}
