package template

import (
	"testing"

	"hirenotify/internal/domain/notification"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngine_RenderApplicationReceived(t *testing.T) {
	e, err := NewEngine()
	require.NoError(t, err)

	subject, text, html, err := e.Render(notification.KindApplicationReceived, &notification.TemplateData{
		CandidateName: "Ana",
		Position:      "Engineer",
		Company:       "Acme",
	})
	require.NoError(t, err)

	assert.Equal(t, "Application Received - Engineer at Acme", subject)
	assert.Equal(t, "Dear Ana,\n\nThank you for applying for the Engineer position at Acme. "+
		"We have received your application and our team will review it shortly.\n\n"+
		"Best regards,\nRecruitment Team", text)
	assert.Contains(t, html, "<strong>Engineer</strong>")
}

func TestEngine_RenderInterviewScheduled(t *testing.T) {
	e, err := NewEngine()
	require.NoError(t, err)

	subject, text, _, err := e.Render(notification.KindInterviewScheduled, &notification.TemplateData{
		CandidateName:   "Ana",
		Position:        "Engineer",
		InterviewDate:   "2026-11-02 10:00",
		InterviewType:   "technical",
		InterviewerName: "Sam",
	})
	require.NoError(t, err)

	assert.Equal(t, "Interview Scheduled - Engineer", subject)
	assert.Equal(t, "Dear Ana,\n\nYour technical interview has been scheduled for 2026-11-02 10:00 with Sam.\n\n"+
		"Best regards,\nRecruitment Team", text)
}

func TestEngine_RenderOfferExtended(t *testing.T) {
	e, err := NewEngine()
	require.NoError(t, err)

	event := &notification.HiringEvent{
		Type:          "offer.extended",
		CandidateName: "Ana",
		Position:      "Engineer",
		Company:       "Acme",
		OfferDetails: &notification.OfferDetails{
			Salary:    120000,
			Benefits:  []string{"health", "equity"},
			StartDate: "2027-01-04",
		},
	}

	subject, text, _, err := e.Render(notification.KindOfferExtended, event.TemplateData())
	require.NoError(t, err)

	assert.Equal(t, "Offer Letter - Engineer at Acme", subject)
	assert.Contains(t, text, "Start Date: 2027-01-04\nAnnual Salary: 120000\nBenefits: health, equity\n\n")
	assert.True(t, len(text) > 0 && text[len(text)-7:] == "HR Team")
}

func TestEngine_HTMLEscapesEventFields(t *testing.T) {
	e, err := NewEngine()
	require.NoError(t, err)

	_, text, html, err := e.Render(notification.KindApplicationReceived, &notification.TemplateData{
		CandidateName: "<script>x</script>",
		Position:      "Engineer",
		Company:       "Acme",
	})
	require.NoError(t, err)

	assert.Contains(t, text, "Dear <script>x</script>,")
	assert.NotContains(t, html, "<script>")
	assert.Contains(t, html, "&lt;script&gt;")
}

func TestEngine_UnknownKind(t *testing.T) {
	e, err := NewEngine()
	require.NoError(t, err)

	_, _, _, err = e.Render(notification.Kind("NOPE"), &notification.TemplateData{})
	assert.Error(t, err)
}
