package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	texttemplate "text/template"
	"time"

	"github.com/coachhub/coachhub-api/internal/core"
)

type emailTemplate struct {
	subject string
	html    *template.Template
	text    *texttemplate.Template
}

var funcs = map[string]interface{}{
	"date": func(v interface{}) string {
		if t, ok := v.(time.Time); ok {
			return t.Format("January 2, 2006")
		}
		return fmt.Sprint(v)
	},
	"money": func(v interface{}) string {
		if f, ok := v.(float64); ok {
			return fmt.Sprintf("$%.2f", f)
		}
		return fmt.Sprint(v)
	},
}

const layoutHTML = `<html><body style="font-family:Arial,sans-serif;color:#222">
<h2>{{template "title" .}}</h2>
<p>Hi {{.name}},</p>
{{template "body" .}}
{{if .dashboardUrl}}<p><a href="{{.dashboardUrl}}">Open your dashboard</a></p>{{end}}
<p>The CoachHub team</p>
</body></html>`

func mustTemplate(title, body, text string) (*template.Template, *texttemplate.Template) {
	h := template.Must(template.New("layout").Funcs(funcs).Parse(layoutHTML))
	template.Must(h.New("title").Parse(title))
	template.Must(h.New("body").Parse(body))
	t := texttemplate.Must(texttemplate.New("text").Funcs(funcs).Parse(text))
	return h, t
}

var templates = func() map[core.EmailKind]emailTemplate {
	out := map[core.EmailKind]emailTemplate{}

	h, t := mustTemplate(
		`Your subscription expires soon`,
		`<p>Your {{.planLabel}} subscription expires in {{.daysRemaining}} day(s), on {{date .expirationDate}}.</p>
<p>Renew now to keep access for you and your clients.</p>`,
		`Hi {{.name}},

Your {{.planLabel}} subscription expires in {{.daysRemaining}} day(s), on {{date .expirationDate}}.
Renew now to keep access for you and your clients.
{{if .dashboardUrl}}
{{.dashboardUrl}}{{end}}
`)
	out[core.EmailSubscriptionReminder] = emailTemplate{subject: "Your CoachHub subscription expires soon", html: h, text: t}

	h, t = mustTemplate(
		`Your subscription has expired`,
		`<p>Your {{.planLabel}} subscription expired on {{date .expirationDate}} and your account has been paused.</p>
<p>Renew at any time to restore access.</p>`,
		`Hi {{.name}},

Your {{.planLabel}} subscription expired on {{date .expirationDate}} and your account has been paused.
Renew at any time to restore access.
{{if .dashboardUrl}}
{{.dashboardUrl}}{{end}}
`)
	out[core.EmailSubscriptionExpired] = emailTemplate{subject: "Your CoachHub subscription has expired", html: h, text: t}

	h, t = mustTemplate(
		`Subscription renewed`,
		`<p>Thanks! Your {{.planLabel}} subscription ({{money .amount}}) is active until {{date .expirationDate}}.</p>`,
		`Hi {{.name}},

Thanks! Your {{.planLabel}} subscription ({{money .amount}}) is active until {{date .expirationDate}}.
{{if .dashboardUrl}}
{{.dashboardUrl}}{{end}}
`)
	out[core.EmailSubscriptionRenewed] = emailTemplate{subject: "Your CoachHub subscription was renewed", html: h, text: t}

	return out
}()

// Render produces the subject, HTML body and plain-text body of an email.
func Render(kind core.EmailKind, data map[string]interface{}) (subject, html, text string, err error) {
	tpl, ok := templates[kind]
	if !ok {
		return "", "", "", fmt.Errorf("%w: unknown email kind %q", core.ErrValidation, kind)
	}
	var hb, tb bytes.Buffer
	if err := tpl.html.ExecuteTemplate(&hb, "layout", data); err != nil {
		return "", "", "", fmt.Errorf("render %s html: %w", kind, err)
	}
	if err := tpl.text.Execute(&tb, data); err != nil {
		return "", "", "", fmt.Errorf("render %s text: %w", kind, err)
	}
	return tpl.subject, hb.String(), strings.TrimSpace(tb.String()), nil
}
