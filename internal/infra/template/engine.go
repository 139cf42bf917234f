package template

import (
	"bytes"
	"embed"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"

	"hirenotify/internal/domain/notification"
)

var _ notification.TemplateRenderer = (*Engine)(nil)

//go:embed templates/*.html
var htmlFS embed.FS

// templateMeta holds the subject, plain-text body and HTML template name for one kind.
type templateMeta struct {
	Subject      string
	Text         string
	TemplateName string
}

// registry maps notification kinds to their templates.
var registry = map[notification.Kind]templateMeta{
	notification.KindApplicationReceived: {
		Subject: "Application Received - {{.Position}} at {{.Company}}",
		Text: "Dear {{.CandidateName}},\n\n" +
			"Thank you for applying for the {{.Position}} position at {{.Company}}. " +
			"We have received your application and our team will review it shortly.\n\n" +
			"Best regards,\nRecruitment Team",
		TemplateName: "application_received",
	},
	notification.KindInterviewScheduled: {
		Subject: "Interview Scheduled - {{.Position}}",
		Text: "Dear {{.CandidateName}},\n\n" +
			"Your {{.InterviewType}} interview has been scheduled for {{.InterviewDate}} with {{.InterviewerName}}.\n\n" +
			"Best regards,\nRecruitment Team",
		TemplateName: "interview_scheduled",
	},
	notification.KindOfferExtended: {
		Subject: "Offer Letter - {{.Position}} at {{.Company}}",
		Text: "Dear {{.CandidateName}},\n\n" +
			"We are pleased to offer you the position of {{.Position}} at {{.Company}}.\n\n" +
			"Start Date: {{.StartDate}}\n" +
			"Annual Salary: {{.Salary}}\n" +
			"Benefits: {{.Benefits}}\n\n" +
			"Please review the attached offer letter for complete details.\n\n" +
			"Best regards,\nHR Team",
		TemplateName: "offer_extended",
	},
}

type compiled struct {
	subject *texttemplate.Template
	text    *texttemplate.Template
	html    string
}

// Engine renders the fixed per-kind templates. Subjects and plain-text bodies
// use text/template; HTML bodies use html/template so event fields are escaped.
type Engine struct {
	html  *htmltemplate.Template
	kinds map[notification.Kind]compiled
}

// NewEngine parses the embedded templates.
func NewEngine() (*Engine, error) {
	html, err := htmltemplate.ParseFS(htmlFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parsing html templates: %w", err)
	}

	e := &Engine{html: html, kinds: make(map[notification.Kind]compiled, len(registry))}
	for kind, meta := range registry {
		subject, err := texttemplate.New(string(kind) + ".subject").Option("missingkey=error").Parse(meta.Subject)
		if err != nil {
			return nil, fmt.Errorf("parsing subject for %s: %w", kind, err)
		}
		text, err := texttemplate.New(string(kind) + ".text").Option("missingkey=error").Parse(meta.Text)
		if err != nil {
			return nil, fmt.Errorf("parsing body for %s: %w", kind, err)
		}
		if html.Lookup(meta.TemplateName+".html") == nil {
			return nil, fmt.Errorf("missing html template %s.html", meta.TemplateName)
		}
		e.kinds[kind] = compiled{subject: subject, text: text, html: meta.TemplateName + ".html"}
	}
	return e, nil
}

// Render produces the subject line, plain-text body and HTML body for kind.
func (e *Engine) Render(kind notification.Kind, data *notification.TemplateData) (subject, text, html string, err error) {
	c, ok := e.kinds[kind]
	if !ok {
		return "", "", "", fmt.Errorf("no template registered for kind: %s", kind)
	}

	var buf bytes.Buffer
	if err := c.subject.Execute(&buf, data); err != nil {
		return "", "", "", fmt.Errorf("executing subject for %s: %w", kind, err)
	}
	subject = strings.TrimSpace(buf.String())

	buf.Reset()
	if err := c.text.Execute(&buf, data); err != nil {
		return "", "", "", fmt.Errorf("executing body for %s: %w", kind, err)
	}
	text = buf.String()

	buf.Reset()
	if err := e.html.ExecuteTemplate(&buf, c.html, data); err != nil {
		return "", "", "", fmt.Errorf("executing html for %s: %w", kind, err)
	}
	html = buf.String()

	return subject, text, html, nil
}
