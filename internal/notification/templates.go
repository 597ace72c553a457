package notification

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
	"time"

	"github.com/Masterminds/sprig/v3"
	"github.com/Payphone-Digital/marketplace-auth/internal/constants"
)

const codeEmailHTML = `<!DOCTYPE html>
<html>
<body style="font-family: sans-serif">
<p>{{ .Intro }}</p>
<p style="font-size: 24px; letter-spacing: 4px"><strong>{{ .Code }}</strong></p>
<p>This code expires in {{ .Minutes }} {{ if eq .Minutes 1 }}minute{{ else }}minutes{{ end }}.</p>
<p>If you did not request it, you can ignore this email.</p>
<p>{{ .Product | default "Marketplace" }}</p>
</body>
</html>`

const codeEmailText = `{{ .Intro }}

{{ .Code }}

This code expires in {{ .Minutes }} {{ if eq .Minutes 1 }}minute{{ else }}minutes{{ end }}.
If you did not request it, you can ignore this email.

{{ .Product | default "Marketplace" }}`

const codeSMSText = `{{ .Product | default "Marketplace" | upper }}: {{ .Code }} is your {{ .Action }} code. Valid for {{ .Minutes }} min.`

// Templates renders one-time code messages.
type Templates struct {
	product   string
	emailHTML *htmltemplate.Template
	emailText *texttemplate.Template
	sms       *texttemplate.Template
}

type codeView struct {
	Product string
	Code    string
	Intro   string
	Action  string
	Minutes int
}

func NewTemplates(product string) (*Templates, error) {
	emailHTML, err := htmltemplate.New("code_email_html").Funcs(sprig.HtmlFuncMap()).Parse(codeEmailHTML)
	if err != nil {
		return nil, fmt.Errorf("parse email html template: %w", err)
	}
	emailText, err := texttemplate.New("code_email_text").Funcs(sprig.TxtFuncMap()).Parse(codeEmailText)
	if err != nil {
		return nil, fmt.Errorf("parse email text template: %w", err)
	}
	sms, err := texttemplate.New("code_sms").Funcs(sprig.TxtFuncMap()).Parse(codeSMSText)
	if err != nil {
		return nil, fmt.Errorf("parse sms template: %w", err)
	}

	return &Templates{
		product:   product,
		emailHTML: emailHTML,
		emailText: emailText,
		sms:       sms,
	}, nil
}

// CodeMail renders the email carrying a one-time code.
func (t *Templates) CodeMail(msg CodeMessage) (Mail, error) {
	view := t.view(msg)

	var html, text bytes.Buffer
	if err := t.emailHTML.Execute(&html, view); err != nil {
		return Mail{}, fmt.Errorf("render email html: %w", err)
	}
	if err := t.emailText.Execute(&text, view); err != nil {
		return Mail{}, fmt.Errorf("render email text: %w", err)
	}

	return Mail{
		To:      msg.To,
		Subject: subjectFor(msg.Purpose),
		HTML:    html.String(),
		Text:    text.String(),
	}, nil
}

// CodeSMS renders the text message body for an OTP.
func (t *Templates) CodeSMS(otp string, purpose constants.OTPPurpose, expiresIn time.Duration) (string, error) {
	var out bytes.Buffer
	if err := t.sms.Execute(&out, t.view(CodeMessage{Code: otp, Purpose: purpose, ExpiresIn: expiresIn})); err != nil {
		return "", fmt.Errorf("render sms: %w", err)
	}
	return strings.TrimSpace(out.String()), nil
}

func (t *Templates) view(msg CodeMessage) codeView {
	minutes := int(msg.ExpiresIn.Round(time.Minute) / time.Minute)
	if minutes < 1 {
		minutes = 1
	}
	return codeView{
		Product: t.product,
		Code:    msg.Code,
		Intro:   introFor(msg.Purpose),
		Action:  actionFor(msg.Purpose),
		Minutes: minutes,
	}
}

func subjectFor(purpose constants.OTPPurpose) string {
	switch purpose {
	case constants.OTPPasswordReset:
		return "Reset your password"
	case constants.OTPTwoFactorEmail, constants.OTPTwoFactorPhone:
		return "Your sign-in code"
	default:
		return "Verify your email address"
	}
}

func introFor(purpose constants.OTPPurpose) string {
	switch purpose {
	case constants.OTPPasswordReset:
		return "Use the code below to reset your password."
	case constants.OTPTwoFactorEmail, constants.OTPTwoFactorPhone:
		return "Use the code below to finish signing in."
	default:
		return "Use the code below to verify your contact details."
	}
}

func actionFor(purpose constants.OTPPurpose) string {
	switch purpose {
	case constants.OTPPasswordReset:
		return "password reset"
	case constants.OTPTwoFactorEmail, constants.OTPTwoFactorPhone:
		return "sign-in"
	default:
		return "verification"
	}
}
