package app

import (
	"bytes"
	"fmt"
	htmltpl "html/template"
	"strconv"
	"strings"
	texttpl "text/template"

	"realty_site/internal/domain"
)

type emailField struct {
	Label string
	Value string
}

type emailData struct {
	Heading string
	Fields  []emailField
	Message string
}

const leadHTML = `<!doctype html>
<html><body style="font-family:Arial,sans-serif;color:#1f2933">
<h2>{{.Heading}}</h2>
<table cellpadding="6" style="border-collapse:collapse">
{{- range .Fields}}
<tr><td style="font-weight:bold;vertical-align:top">{{.Label}}</td><td>{{.Value}}</td></tr>
{{- end}}
</table>
{{- if .Message}}
<h3>Message</h3>
<p style="white-space:pre-wrap">{{.Message}}</p>
{{- end}}
</body></html>`

const leadText = `{{.Heading}}
{{range .Fields}}
{{.Label}}: {{.Value}}
{{- end}}
{{if .Message}}
Message:
{{.Message}}
{{end}}`

var (
	leadHTMLTpl = htmltpl.Must(htmltpl.New("lead.html").Parse(leadHTML))
	leadTextTpl = texttpl.Must(texttpl.New("lead.txt").Parse(leadText))
)

// fields drops empty values so the email only shows what was submitted.
func fields(kv ...string) []emailField {
	var out []emailField
	for i := 0; i+1 < len(kv); i += 2 {
		if v := strings.TrimSpace(kv[i+1]); v != "" {
			out = append(out, emailField{Label: kv[i], Value: v})
		}
	}
	return out
}

func money(n int64) string {
	if n <= 0 {
		return ""
	}
	s := strconv.FormatInt(n, 10)
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return "$" + b.String()
}

func contactEmail(f domain.ContactForm) (string, emailData) {
	subject := "New enquiry from " + f.Name
	if f.ListingID != "" {
		subject += " (listing " + f.ListingID + ")"
	}
	return subject, emailData{
		Heading: "Website enquiry",
		Fields:  fields("Name", f.Name, "Email", f.Email, "Phone", f.Phone, "Listing", f.ListingID),
		Message: f.Message,
	}
}

func buyerEmail(f domain.BuyerForm) (string, emailData) {
	beds := ""
	if f.Bedrooms > 0 {
		beds = strconv.Itoa(f.Bedrooms) + "+"
	}
	return "New buyer registration: " + f.Name, emailData{
		Heading: "Buyer registration",
		Fields: fields(
			"Name", f.Name, "Email", f.Email, "Phone", f.Phone,
			"Suburbs", strings.Join(f.Suburbs, ", "),
			"Min price", money(f.MinPrice), "Max price", money(f.MaxPrice),
			"Bedrooms", beds, "Property type", f.PropertyType,
		),
		Message: f.Message,
	}
}

func appraisalEmail(f domain.AppraisalForm) (string, emailData) {
	return "Appraisal request: " + f.Address, emailData{
		Heading: "Sell appraisal request",
		Fields: fields(
			"Name", f.Name, "Email", f.Email, "Phone", f.Phone,
			"Address", f.Address, "Suburb", f.Suburb,
			"Property type", f.PropertyType, "Timeframe", f.Timeframe,
		),
		Message: f.Message,
	}
}

// renderLead builds the notification sent to the office inbox.
func renderLead(from, inbox, replyTo, subject string, d emailData) (domain.Email, error) {
	var html, text bytes.Buffer
	if err := leadHTMLTpl.Execute(&html, d); err != nil {
		return domain.Email{}, fmt.Errorf("render html: %w", err)
	}
	if err := leadTextTpl.Execute(&text, d); err != nil {
		return domain.Email{}, fmt.Errorf("render text: %w", err)
	}
	return domain.Email{
		From:    from,
		To:      []string{inbox},
		ReplyTo: replyTo,
		Subject: subject,
		HTML:    html.String(),
		Text:    strings.TrimSpace(text.String()) + "\n",
	}, nil
}
