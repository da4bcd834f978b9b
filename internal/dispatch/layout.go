package dispatch

import (
	"strconv"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
)

// brandedLayout wraps every outgoing fragment. {content} and {year} are
// substituted in one pass over the layout only.
const brandedLayout = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <style>
    body { font-family: 'Helvetica Neue', Arial, sans-serif; line-height: 1.6; color: #2D3748; margin: 0; padding: 0; background-color: #F7FAFC; }
    .container { max-width: 600px; margin: 0 auto; padding: 40px 20px; }
    .logo { text-align: center; margin-bottom: 30px; }
    .logo-content { display: inline-block; padding: 8px 16px; background: #FFFFFF; border-radius: 12px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
    .logo-text { font-size: 24px; font-weight: bold; color: #4A5568; }
    .logo-text span { color: #4299E1; }
    .card { background: #FFFFFF; border-radius: 12px; box-shadow: 0 4px 6px rgba(0,0,0,0.05); padding: 32px; margin-bottom: 30px; }
    .content { color: #4A5568; font-size: 16px; line-height: 1.8; }
    .signature { margin-top: 32px; padding-top: 24px; border-top: 1px solid #E2E8F0; color: #718096; font-style: italic; }
    .footer { text-align: center; color: #A0AEC0; font-size: 12px; margin-top: 30px; }
    @media only screen and (max-width: 600px) { .container { padding: 20px; } .card { padding: 24px; } }
  </style>
</head>
<body>
  <div class="container">
    <div class="logo">
      <div class="logo-content">
        <div class="logo-text"><span>Re</span>Launch</div>
      </div>
    </div>
    <div class="card">
      <div class="content">
        {content}
      </div>
      <div class="signature">
        Best regards,<br>
        The ReLaunch Team
      </div>
    </div>
    <div class="footer">
      <p>This email was sent automatically from the ReLaunch platform.</p>
      <p>&copy; {year} ReLaunch. All rights reserved.</p>
    </div>
  </div>
</body>
</html>
`

// Layout wraps rendered fragments in the branded email shell. Output depends
// only on the fragment and the clock's year, never on the provider.
type Layout struct {
	policy *bluemonday.Policy
	clock  func() time.Time
}

// emailStyleProperties are the inline CSS properties kept by the sanitizer.
// Each value is checked by bluemonday's default handler for the property.
var emailStyleProperties = []string{
	"color", "background-color",
	"font-family", "font-size", "font-style", "font-weight", "line-height",
	"text-align", "text-decoration",
	"padding", "margin", "border", "border-radius",
	"display", "width", "max-width",
}

// NewLayout creates a Layout. With sanitize set, fragments pass through a
// bluemonday UGC policy that also keeps class attributes and inline styles
// limited to emailStyleProperties. A nil clock uses time.Now.
func NewLayout(sanitize bool, clock func() time.Time) *Layout {
	if clock == nil {
		clock = time.Now
	}
	l := &Layout{clock: clock}
	if sanitize {
		l.policy = emailPolicy()
	}
	return l
}

func emailPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("class").Globally()
	p.AllowStyles(emailStyleProperties...).Globally()
	return p
}

// Wrap returns the full HTML document for fragment.
func (l *Layout) Wrap(fragment string) string {
	if l.policy != nil {
		fragment = l.policy.Sanitize(fragment)
	}
	year := strconv.Itoa(l.clock().Year())
	return strings.NewReplacer("{content}", fragment, "{year}", year).Replace(brandedLayout)
}
