package pipeline

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"matatu-feedback/models"
)

// MaxCommentLength bounds the free-text comment, in characters
const MaxCommentLength = 2000

// ErrValidation is matched by every *ValidationError
var ErrValidation = errors.New("validation failed")

// ValidationError carries every field problem found in a payload
type ValidationError struct {
	Errors []models.FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		msgs = append(msgs, fe.Path+": "+fe.Message)
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// flexString accepts a JSON string or number
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number: %w", err)
	}
	*f = flexString(n.String())
	return nil
}

// Payload is the report body as clients send it. Several field names are
// accepted for the same value; Normalize folds them into one.
type Payload struct {
	MatatuID      flexString `json:"matatuId"`
	MatatuIDSnake flexString `json:"matatu_id"`
	VehicleID     flexString `json:"vehicleId"`

	ReportType      string `json:"reportType"`
	ReportTypeSnake string `json:"report_type"`
	Type            string `json:"type"`

	Category *string `json:"category"`
	Rating   *int    `json:"rating"`
	Priority *string `json:"priority"`

	Comment     *string `json:"comment"`
	Details     *string `json:"details"`
	Description *string `json:"description"`

	UserID      flexString `json:"userId"`
	UserIDSnake flexString `json:"user_id"`

	Evidence    json.RawMessage `json:"evidence"`
	Attachments json.RawMessage `json:"attachments"`
}

// Normalize maps the accepted synonyms onto the canonical input and
// validates it. All problems are reported together.
func Normalize(p Payload) (models.ReportInput, error) {
	var (
		in   models.ReportInput
		errs []models.FieldError
	)
	addErr := func(path, msg string) {
		errs = append(errs, models.FieldError{Path: path, Message: msg})
	}

	in.MatatuID = firstNonEmpty(string(p.MatatuID), string(p.MatatuIDSnake), string(p.VehicleID))
	if in.MatatuID == "" {
		addErr("matatuId", "Matatu ID is required")
	}

	in.UserID = optional(firstNonEmpty(string(p.UserID), string(p.UserIDSnake)))
	in.Category = optionalPtr(p.Category)
	in.Comment = optionalPtr(firstPtr(p.Comment, p.Details, p.Description))
	in.Rating = p.Rating
	in.Evidence = evidenceText(p.Evidence, p.Attachments)

	if in.Comment != nil && utf8.RuneCountInString(*in.Comment) > MaxCommentLength {
		addErr("comment", fmt.Sprintf("Comment must be at most %d characters", MaxCommentLength))
	}

	reportType := strings.ToUpper(firstNonEmpty(p.ReportType, p.ReportTypeSnake, p.Type))
	switch models.ReportType(reportType) {
	case models.ReportTypeGeneral:
		in.ReportType = models.ReportTypeGeneral
		if in.Rating == nil {
			addErr("rating", "Rating is required for general feedback")
		} else if *in.Rating < 1 || *in.Rating > 5 {
			addErr("rating", "Rating must be between 1 and 5")
		}
	case models.ReportTypeIncident:
		in.ReportType = models.ReportTypeIncident
		if in.Category == nil {
			addErr("category", "Category is required for incident reports")
		}
		if in.Rating != nil {
			addErr("rating", "Rating is not allowed for incident reports")
		}
	case "":
		addErr("reportType", "Report type is required")
	default:
		addErr("reportType", "Report type must be GENERAL or INCIDENT")
	}

	if p.Priority != nil && strings.TrimSpace(*p.Priority) != "" {
		priority, ok := models.ParsePriority(strings.ToUpper(strings.TrimSpace(*p.Priority)))
		if !ok {
			addErr("priority", "Priority must be CRITICAL, HIGH, MEDIUM or LOW")
		} else {
			in.Priority = &priority
		}
	}

	if len(errs) > 0 {
		return models.ReportInput{}, &ValidationError{Errors: errs}
	}
	return in, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func firstPtr(values ...*string) *string {
	for _, v := range values {
		if v != nil && strings.TrimSpace(*v) != "" {
			return v
		}
	}
	return nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func optionalPtr(s *string) *string {
	if s == nil {
		return nil
	}
	return optional(strings.TrimSpace(*s))
}

// evidenceText keeps a JSON string as its contents and any other JSON
// value as its raw text
func evidenceText(values ...json.RawMessage) *string {
	for _, raw := range values {
		raw = bytes.TrimSpace(raw)
		if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
			continue
		}
		if raw[0] == '"' {
			var s string
			if err := json.Unmarshal(raw, &s); err == nil {
				if s = strings.TrimSpace(s); s != "" {
					return &s
				}
				continue
			}
		}
		s := string(raw)
		return &s
	}
	return nil
}
