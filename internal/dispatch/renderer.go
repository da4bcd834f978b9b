// Package dispatch is the email dispatch engine: it renders a template for
// one recipient, applies provider domain policy, sends through the user's
// provider, records history for confirmed sends and aggregates batch
// outcomes into a report.
package dispatch

import (
	"regexp"
	"strings"

	"relaunch/internal/types"
)

// placeholderPattern matches the supported variables in any letter case.
var placeholderPattern = regexp.MustCompile(`(?i)\{(name|project|company)\}`)

// Defaults is the substitution used when a recipient field is empty.
type Defaults struct {
	Name    string
	Project string
	Company string
}

var (
	// DeliveryDefaults reads naturally inside a sent email. All send paths
	// use it.
	DeliveryDefaults = Defaults{Name: "there", Project: "your project", Company: "your company"}

	// FormDefaults marks absent values explicitly, for previews and forms.
	FormDefaults = Defaults{Name: "N/A", Project: "N/A", Company: "N/A"}
)

// Fields are the values substituted into a template.
type Fields struct {
	Name    string
	Project string
	Company string
}

// FieldsOf extracts the substitution fields from a recipient.
func FieldsOf(r types.Recipient) Fields {
	return Fields{Name: r.Name, Project: r.Project, Company: r.Company}
}

// Renderer substitutes {name}, {project} and {company} in a single pass.
// Values are never rescanned, so a name containing "{company}" is inserted
// literally. Unknown tokens pass through unchanged.
type Renderer struct {
	defaults Defaults
}

// NewRenderer returns a Renderer applying d to empty fields.
func NewRenderer(d Defaults) Renderer {
	return Renderer{defaults: d}
}

// Resolve fills empty or whitespace-only fields with the defaults.
func (r Renderer) Resolve(f Fields) Fields {
	return Fields{
		Name:    orDefault(f.Name, r.defaults.Name),
		Project: orDefault(f.Project, r.defaults.Project),
		Company: orDefault(f.Company, r.defaults.Company),
	}
}

// Render produces the message for one template and one recipient.
func (r Renderer) Render(t types.Template, rcpt types.Recipient) types.RenderedMessage {
	return r.RenderText(t.Subject, t.Body, FieldsOf(rcpt))
}

// RenderText renders a raw subject and body against f.
func (r Renderer) RenderText(subject, body string, f Fields) types.RenderedMessage {
	resolved := r.Resolve(f)
	return types.RenderedMessage{
		Subject:  substitute(subject, resolved),
		HTMLBody: substitute(body, resolved),
	}
}

func substitute(text string, f Fields) string {
	return placeholderPattern.ReplaceAllStringFunc(text, func(token string) string {
		switch strings.ToLower(token[1 : len(token)-1]) {
		case "name":
			return f.Name
		case "project":
			return f.Project
		default:
			return f.Company
		}
	})
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
