// Package mail sends templated notifications through the Common Hosted Email
// Service (CHES).
package mail

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
)

// Template names a notification body.
type Template string

const (
	TemplateApproval  Template = "approval"
	TemplateRejection Template = "rejection"
	TemplateMatched   Template = "matched"
	TemplatePending   Template = "pending"
)

// EmailRequest is one notification to send.
type EmailRequest struct {
	Template      Template
	Recipients    []string
	Subject       string
	Variables     map[string]any
	CorrelationID *string
}

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.New("mail").Option("missingkey=zero").ParseFS(templateFS, "templates/*.html"))

// Render executes the named template with vars.
func Render(name Template, vars map[string]any) (string, error) {
	t := templates.Lookup(string(name) + ".html")
	if t == nil {
		return "", fmt.Errorf("unknown mail template %q", name)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, vars); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}
