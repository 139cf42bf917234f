package notification

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"hirenotify/internal/common"
)

// OfferDetails carries the terms of an extended offer.
type OfferDetails struct {
	Salary    float64  `json:"salary"`
	Benefits  []string `json:"benefits"`
	StartDate string   `json:"startDate"`
}

// HiringEvent is an inbound event from the hiring pipeline.
// Only the fields rendered into a kind's subject and body are mandatory.
type HiringEvent struct {
	EventID        string `json:"eventId,omitempty"`
	Type           string `json:"type" binding:"required"`
	ApplicationID  string `json:"applicationId"`
	CandidateID    string `json:"candidateId"`
	CandidateEmail string `json:"candidateEmail"`
	CandidateName  string `json:"candidateName"`
	Position       string `json:"position"`
	Company        string `json:"company"`

	// INTERVIEW_SCHEDULED
	InterviewDate   string `json:"interviewDate,omitempty"`
	InterviewType   string `json:"interviewType,omitempty"`
	InterviewerName string `json:"interviewerName,omitempty"`

	// OFFER_EXTENDED
	StartDate    string        `json:"startDate,omitempty"`
	OfferDetails *OfferDetails `json:"offerDetails,omitempty"`
}

// eventTypes maps pipeline routing keys onto notification kinds.
var eventTypes = map[string]Kind{
	"application.received": KindApplicationReceived,
	"interview.scheduled":  KindInterviewScheduled,
	"offer.extended":       KindOfferExtended,
}

// KindForEventType maps an event type (routing key or kind name) to a Kind.
func KindForEventType(eventType string) (Kind, bool) {
	t := strings.TrimSpace(eventType)
	if k, ok := eventTypes[strings.ToLower(t)]; ok {
		return k, true
	}
	k := Kind(strings.ToUpper(t))
	return k, IsValidKind(k)
}

// ParseHiringEvent decodes and validates a JSON event.
func ParseHiringEvent(data []byte) (*HiringEvent, error) {
	var e HiringEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, common.NewValidationError(fmt.Sprintf("malformed hiring event: %s", err))
	}
	if _, err := e.Validate(); err != nil {
		return nil, err
	}
	return &e, nil
}

// Validate checks the fields the event's kind requires and returns that kind.
func (e *HiringEvent) Validate() (Kind, error) {
	kind, ok := KindForEventType(e.Type)
	if !ok {
		return "", common.NewValidationError(fmt.Sprintf("unsupported event type: %s", e.Type))
	}

	type field struct{ name, value string }
	required := []field{{"position", e.Position}}
	switch kind {
	case KindApplicationReceived:
		required = append(required, field{"company", e.Company})
	case KindInterviewScheduled:
		required = append(required,
			field{"interviewDate", e.InterviewDate},
			field{"interviewType", e.InterviewType},
			field{"interviewerName", e.InterviewerName},
		)
	case KindOfferExtended:
		required = append(required, field{"company", e.Company})
		if e.OfferDetails == nil {
			required = append(required, field{"offerDetails", ""})
		}
	}

	var missing []string
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return "", common.NewValidationError(fmt.Sprintf("%s event missing fields: %s", kind, strings.Join(missing, ", ")))
	}
	return kind, nil
}

// CorrelationKey is the stable key tying an event to the notification it produces.
// Redeliveries of the same event yield the same key: the event id when the
// pipeline sets one, else a digest of the whole event prefixed by its kind.
// Two events for one application that differ in any field (a rescheduled
// interview, a second round) get different keys.
func (e *HiringEvent) CorrelationKey() string {
	if e.EventID != "" {
		return e.EventID
	}
	kind, _ := KindForEventType(e.Type)
	prefix := strings.ToLower(string(kind)) + ":"
	canonical := *e
	canonical.Type = string(kind)
	data, _ := json.Marshal(canonical)
	sum := sha256.Sum256(data)
	return prefix + hex.EncodeToString(sum[:12])
}

// RecipientID identifies the candidate, falling back to their email address.
func (e *HiringEvent) RecipientID() string {
	if e.CandidateID != "" {
		return e.CandidateID
	}
	return e.CandidateEmail
}

// TemplateData is the rendering input of the fixed per-kind templates.
type TemplateData struct {
	CandidateName   string
	Position        string
	Company         string
	InterviewDate   string
	InterviewType   string
	InterviewerName string
	StartDate       string
	Salary          string
	Benefits        string
}

// TemplateData extracts the template inputs. The offer start date comes from
// the offer details, falling back to the top-level field; an unnamed
// candidate is greeted as "candidate".
func (e *HiringEvent) TemplateData() *TemplateData {
	d := &TemplateData{
		CandidateName:   e.CandidateName,
		Position:        e.Position,
		Company:         e.Company,
		InterviewDate:   e.InterviewDate,
		InterviewType:   e.InterviewType,
		InterviewerName: e.InterviewerName,
		StartDate:       e.StartDate,
	}
	if d.CandidateName == "" {
		d.CandidateName = "candidate"
	}
	if o := e.OfferDetails; o != nil {
		if o.StartDate != "" {
			d.StartDate = o.StartDate
		}
		d.Salary = formatSalary(o.Salary)
		d.Benefits = strings.Join(o.Benefits, ", ")
	}
	return d
}

// Metadata returns the event fields stored alongside the notification.
func (e *HiringEvent) Metadata() map[string]any {
	m := map[string]any{
		"applicationId": e.ApplicationID,
		"candidateName": e.CandidateName,
		"position":      e.Position,
	}
	if e.EventID != "" {
		m["eventId"] = e.EventID
	}
	if e.Company != "" {
		m["company"] = e.Company
	}
	if e.InterviewDate != "" {
		m["interviewDate"] = e.InterviewDate
		m["interviewType"] = e.InterviewType
		m["interviewerName"] = e.InterviewerName
	}
	if e.StartDate != "" {
		m["startDate"] = e.StartDate
	}
	if o := e.OfferDetails; o != nil {
		m["offerDetails"] = map[string]any{
			"salary":    o.Salary,
			"benefits":  o.Benefits,
			"startDate": o.StartDate,
		}
	}
	return m
}

func formatSalary(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
