package notification

import (
	"strings"
	"testing"

	"hirenotify/internal/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindForEventType(t *testing.T) {
	tests := []struct {
		in     string
		want   Kind
		wantOK bool
	}{
		{"application.received", KindApplicationReceived, true},
		{"Interview.Scheduled", KindInterviewScheduled, true},
		{" offer.extended ", KindOfferExtended, true},
		{"OFFER_EXTENDED", KindOfferExtended, true},
		{"application_received", KindApplicationReceived, true},
		{"candidate.rejected", Kind("CANDIDATE.REJECTED"), false},
		{"", Kind(""), false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := KindForEventType(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestHiringEvent_Validate(t *testing.T) {
	tests := []struct {
		name    string
		event   HiringEvent
		want    Kind
		missing string
	}{
		{
			name:  "application",
			event: HiringEvent{Type: "application.received", Position: "Engineer", Company: "Acme"},
			want:  KindApplicationReceived,
		},
		{
			name:    "application without company",
			event:   HiringEvent{Type: "application.received", Position: "Engineer"},
			missing: "company",
		},
		{
			name: "interview",
			event: HiringEvent{Type: "interview.scheduled", Position: "Engineer",
				InterviewDate: "2026-05-01T10:00:00Z", InterviewType: "video", InterviewerName: "Sam"},
			want: KindInterviewScheduled,
		},
		{
			name:    "interview without details",
			event:   HiringEvent{Type: "interview.scheduled", Position: "Engineer"},
			missing: "interviewDate, interviewType, interviewerName",
		},
		{
			name: "offer",
			event: HiringEvent{Type: "offer.extended", Position: "Engineer", Company: "Acme",
				OfferDetails: &OfferDetails{Salary: 120000}},
			want: KindOfferExtended,
		},
		{
			name:    "offer without details",
			event:   HiringEvent{Type: "offer.extended", Position: "Engineer", Company: "Acme"},
			missing: "offerDetails",
		},
		{
			name:    "blank position",
			event:   HiringEvent{Type: "application.received", Position: "  ", Company: "Acme"},
			missing: "position",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, err := tt.event.Validate()
			if tt.missing == "" {
				require.NoError(t, err)
				assert.Equal(t, tt.want, kind)
				return
			}
			var validation *common.ValidationError
			require.ErrorAs(t, err, &validation)
			assert.Contains(t, validation.Message, "missing fields: "+tt.missing)
		})
	}
}

func TestHiringEvent_ValidateUnsupportedType(t *testing.T) {
	_, err := (&HiringEvent{Type: "candidate.rejected", Position: "x"}).Validate()
	var validation *common.ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, "unsupported event type: candidate.rejected", validation.Message)
}

func TestParseHiringEvent(t *testing.T) {
	e, err := ParseHiringEvent([]byte(`{"type":"application.received","applicationId":"a-1",
		"candidateEmail":"jane@example.com","candidateName":"Jane","position":"Engineer","company":"Acme"}`))
	require.NoError(t, err)
	assert.Equal(t, "a-1", e.ApplicationID)

	var validation *common.ValidationError
	_, err = ParseHiringEvent([]byte(`{not json`))
	assert.ErrorAs(t, err, &validation)

	_, err = ParseHiringEvent([]byte(`{"type":"application.received"}`))
	assert.ErrorAs(t, err, &validation)
}

func TestHiringEvent_CorrelationKey(t *testing.T) {
	withID := &HiringEvent{EventID: "evt-1", Type: "offer.extended", ApplicationID: "a-1"}
	assert.Equal(t, "evt-1", withID.CorrelationKey())

	byApp := &HiringEvent{Type: "offer.extended", ApplicationID: "a-1"}
	assert.True(t, strings.HasPrefix(byApp.CorrelationKey(), "offer_extended:"))
	assert.Equal(t, byApp.CorrelationKey(), (&HiringEvent{Type: "offer.extended", ApplicationID: "a-1"}).CorrelationKey())

	// A rescheduled interview for the same application is a different event.
	first := &HiringEvent{Type: "interview.scheduled", ApplicationID: "a-1", InterviewDate: "2026-01-01", InterviewType: "phone"}
	second := &HiringEvent{Type: "interview.scheduled", ApplicationID: "a-1", InterviewDate: "2026-02-01", InterviewType: "onsite"}
	assert.NotEqual(t, first.CorrelationKey(), second.CorrelationKey())

	// Routing key and kind name spellings of the same event agree.
	a := &HiringEvent{Type: "application.received", CandidateEmail: "jane@example.com", Position: "Engineer", Company: "Acme"}
	b := &HiringEvent{Type: "APPLICATION_RECEIVED", CandidateEmail: "jane@example.com", Position: "Engineer", Company: "Acme"}
	assert.Equal(t, a.CorrelationKey(), b.CorrelationKey())
	assert.Contains(t, a.CorrelationKey(), "application_received:")

	c := &HiringEvent{Type: "application.received", CandidateEmail: "john@example.com", Position: "Engineer", Company: "Acme"}
	assert.NotEqual(t, a.CorrelationKey(), c.CorrelationKey())
}

func TestHiringEvent_RecipientID(t *testing.T) {
	assert.Equal(t, "c-1", (&HiringEvent{CandidateID: "c-1", CandidateEmail: "x@example.com"}).RecipientID())
	assert.Equal(t, "x@example.com", (&HiringEvent{CandidateEmail: "x@example.com"}).RecipientID())
}

func TestHiringEvent_TemplateData(t *testing.T) {
	e := &HiringEvent{
		Type:      "offer.extended",
		Position:  "Engineer",
		Company:   "Acme",
		StartDate: "2026-06-01",
		OfferDetails: &OfferDetails{
			Salary:    125000.5,
			Benefits:  []string{"Health", "401k"},
			StartDate: "2026-07-01",
		},
	}
	d := e.TemplateData()

	assert.Equal(t, "candidate", d.CandidateName)
	assert.Equal(t, "2026-07-01", d.StartDate)
	assert.Equal(t, "125000.5", d.Salary)
	assert.Equal(t, "Health, 401k", d.Benefits)

	e.OfferDetails.StartDate = ""
	assert.Equal(t, "2026-06-01", e.TemplateData().StartDate)
}

func TestHiringEvent_Metadata(t *testing.T) {
	e := &HiringEvent{
		EventID:         "evt-1",
		ApplicationID:   "a-1",
		CandidateName:   "Jane",
		Position:        "Engineer",
		InterviewDate:   "2026-05-01",
		InterviewType:   "onsite",
		InterviewerName: "Sam",
	}
	m := e.Metadata()

	assert.Equal(t, "evt-1", m["eventId"])
	assert.Equal(t, "a-1", m["applicationId"])
	assert.Equal(t, "onsite", m["interviewType"])
	assert.NotContains(t, m, "company")
	assert.NotContains(t, m, "offerDetails")
}

func TestStatus(t *testing.T) {
	assert.True(t, StatusSent.IsTerminal())
	assert.True(t, StatusFailedPermanent.IsTerminal())
	assert.False(t, StatusPending.IsTerminal())
	assert.False(t, StatusFailed.IsTerminal())
	assert.True(t, StatusFailed.IsValid())
	assert.False(t, Status("DELIVERED").IsValid())
}

func TestListFilter_Normalize(t *testing.T) {
	f := ListFilter{Page: 0, PageSize: 500}
	f.Normalize()
	assert.Equal(t, 1, f.Page)
	assert.Equal(t, 20, f.PageSize)

	f = ListFilter{Page: 3, PageSize: 10}
	f.Normalize()
	assert.Equal(t, 20, f.Offset())
}
