package escalation

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"matatu-feedback/models"
)

const divider = "------------------------------------------------------------"

// EvidenceItem is one entry of an evidence list
type EvidenceItem struct {
	Type        string `json:"type"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

// Evidence is the parsed evidence attached to a report. When the payload
// is not JSON of a known shape, only Note is set and holds the raw payload.
type Evidence struct {
	Items  []EvidenceItem
	Fields map[string]string
	Note   string
}

// ParseEvidence accepts a JSON array of items, a JSON object of key/value
// pairs, or anything else as a raw note. It never fails.
func ParseEvidence(raw string) Evidence {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Evidence{}
	}

	var items []EvidenceItem
	if err := json.Unmarshal([]byte(raw), &items); err == nil {
		return Evidence{Items: items}
	}

	var obj map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &obj); err == nil && obj != nil {
		fields := make(map[string]string, len(obj))
		for k, v := range obj {
			switch val := v.(type) {
			case string:
				fields[k] = val
			case nil:
				fields[k] = ""
			default:
				b, _ := json.Marshal(val)
				fields[k] = string(b)
			}
		}
		return Evidence{Fields: fields}
	}

	return Evidence{Note: raw}
}

// Subject returns the regulator submission subject line
func Subject(report *models.Report, cls models.Classification) string {
	return fmt.Sprintf("[NTSA] %s - %s - Vehicle %s", cls.Priority, cls.Category, report.MatatuID)
}

// RenderSubmission renders the plain-text regulator submission
func RenderSubmission(report *models.Report, cls models.Classification, contactPhone string) string {
	var b strings.Builder

	b.WriteString("PASSENGER SAFETY REPORT - NTSA SUBMISSION\n")
	b.WriteString(divider + "\n")
	fmt.Fprintf(&b, "Priority:        %s\n", cls.Priority)
	fmt.Fprintf(&b, "Category:        %s\n", cls.Category)
	fmt.Fprintf(&b, "Date Reported:   %s\n", report.CreatedAt.UTC().Format(time.RFC1123))
	fmt.Fprintf(&b, "Reference:       %s\n", report.ID)
	b.WriteString("\n")

	b.WriteString("INCIDENT DETAILS\n")
	b.WriteString(divider + "\n")
	fmt.Fprintf(&b, "Vehicle:         %s\n", report.MatatuID)
	fmt.Fprintf(&b, "Report Type:     %s\n", report.ReportType)
	if c := report.CategoryText(); c != "" {
		fmt.Fprintf(&b, "Reported As:     %s\n", c)
	}
	fmt.Fprintf(&b, "Assessment:      %s\n", cls.Reason)
	comment := strings.TrimSpace(report.CommentText())
	if comment == "" {
		comment = "No description provided."
	}
	fmt.Fprintf(&b, "Description:\n%s\n", comment)
	b.WriteString("\n")

	b.WriteString("CREW / PASSENGER CONTACT\n")
	b.WriteString(divider + "\n")
	fmt.Fprintf(&b, "Vehicle Registration: %s\n", report.MatatuID)
	if report.UserID != nil && *report.UserID != "" {
		fmt.Fprintf(&b, "Passenger Reference:  %s\n", *report.UserID)
	} else {
		b.WriteString("Passenger Reference:  anonymous\n")
	}
	if contactPhone != "" {
		fmt.Fprintf(&b, "Passenger Phone:      %s\n", contactPhone)
	}
	b.WriteString("\n")

	b.WriteString("EVIDENCE\n")
	b.WriteString(divider + "\n")
	b.WriteString(renderEvidence(ParseEvidence(report.EvidenceText())))
	b.WriteString("\n")

	b.WriteString(divider + "\n")
	b.WriteString("This report was submitted by a passenger through the Matatu Feedback platform.\n")

	return b.String()
}

func renderEvidence(ev Evidence) string {
	var b strings.Builder
	switch {
	case len(ev.Items) > 0:
		for i, item := range ev.Items {
			kind := item.Type
			if kind == "" {
				kind = "item"
			}
			fmt.Fprintf(&b, "%d. [%s]", i+1, kind)
			if item.Description != "" {
				fmt.Fprintf(&b, " %s", item.Description)
			}
			if item.URL != "" {
				fmt.Fprintf(&b, " (%s)", item.URL)
			}
			b.WriteString("\n")
		}
	case len(ev.Fields) > 0:
		keys := make([]string, 0, len(ev.Fields))
		for k := range ev.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "%s: %s\n", k, ev.Fields[k])
		}
	case ev.Note != "":
		fmt.Fprintf(&b, "Note: %s\n", ev.Note)
	default:
		b.WriteString("No evidence attached.\n")
	}
	return b.String()
}
