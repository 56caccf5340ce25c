package dispatch

import (
	"fmt"
	"strings"
)

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func urgentAlertMessage(job Job) string {
	var b strings.Builder
	fmt.Fprintf(&b, "URGENT: %s incident on matatu %s\n", job.Classification.Priority, job.Report.MatatuID)
	fmt.Fprintf(&b, "Category: %s\n", job.Classification.Category)
	if job.Score != nil {
		fmt.Fprintf(&b, "Priority score: %d/10\n", *job.Score)
	}
	if c := strings.TrimSpace(job.Report.CommentText()); c != "" {
		fmt.Fprintf(&b, "Details: %s\n", c)
	}
	fmt.Fprintf(&b, "Ref: %s", shortID(job.Report.ID))
	return b.String()
}

func acknowledgmentMessage(job Job) string {
	msg := fmt.Sprintf("Thank you. Your report on matatu %s has been recorded (ref %s).",
		job.Report.MatatuID, shortID(job.Report.ID))
	if job.Classification.Forward {
		msg += " It has been flagged for review by the regulator."
	}
	return msg
}

func routineMessage(job Job) string {
	return fmt.Sprintf("Thank you for your feedback on matatu %s (ref %s). Safe travels!",
		job.Report.MatatuID, shortID(job.Report.ID))
}

// optInFallbackMessage carries the original content over SMS together with
// instructions for joining the WhatsApp service
func optInFallbackMessage(original, joinCode, whatsAppNumber string) string {
	var b strings.Builder
	b.WriteString(original)
	if joinCode != "" && whatsAppNumber != "" {
		fmt.Fprintf(&b, "\n\nTo get updates on WhatsApp, send \"join %s\" to %s.", joinCode, whatsAppNumber)
	} else if whatsAppNumber != "" {
		fmt.Fprintf(&b, "\n\nTo get updates on WhatsApp, send a message to %s.", whatsAppNumber)
	}
	return b.String()
}
