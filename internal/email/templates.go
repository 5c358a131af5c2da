package email

import (
	"bytes"
	"fmt"
	"html/template"
)

const (
	templatePending  = "pending"
	templateApproved = "approved"
	templateRejected = "rejected"
)

const layoutTemplates = `
{{define "head"}}<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body {
            font-family: Arial, sans-serif;
            line-height: 1.6;
            color: #333;
            max-width: 600px;
            margin: 0 auto;
            padding: 20px;
        }
        .notice {
            padding: 15px;
            margin: 20px 0;
        }
        .pending { background-color: #fef3c7; border-left: 4px solid #f59e0b; }
        .rejected { background-color: #fee2e2; border-left: 4px solid #ef4444; }
        .button {
            display: inline-block;
            background-color: #2563eb;
            color: white !important;
            padding: 12px 24px;
            text-decoration: none;
            border-radius: 6px;
            font-weight: bold;
        }
        .footer {
            margin-top: 30px;
            font-size: 14px;
            color: #6b7280;
        }
    </style>
</head>
<body>{{end}}

{{define "foot"}}
    <hr style="border: none; border-top: 1px solid #e5e7eb; margin: 20px 0;"/>
    <p class="footer">
        If you have any questions, please contact us at <a href="mailto:{{.SupportEmail}}">{{.SupportEmail}}</a>
    </p>
    <p>Best regards,<br/><strong>{{.Conference}} Team</strong></p>
</body>
</html>{{end}}
`

const pendingTemplate = `
{{define "pending"}}{{template "head" .}}
    <h2 style="color: #2563eb;">Thank you for registering!</h2>
    <p>Dear {{.FullName}},</p>
    <p>We have received your registration request for <strong>{{.Conference}} {{.Year}}</strong>.</p>
    <div class="notice pending">
        <strong>Your account is currently pending verification.</strong>
        <p style="margin: 10px 0 0 0;">Our team will review your submitted details and documents.</p>
    </div>
    <p>You will receive another email once your account has been approved.</p>
    <p>This process typically takes <strong>1-3 business days</strong>.</p>
{{template "foot" .}}{{end}}
`

const approvedTemplate = `
{{define "approved"}}{{template "head" .}}
    <h2 style="color: #10b981;">Verification Successful!</h2>
    <p>Dear {{.FirstName}},</p>
    <p>Great news! Your documents have been verified and your account is now <strong>active</strong>.</p>
    <p>You can now log in to access your dashboard and complete your registration payment.</p>
    <div style="margin: 30px 0; text-align: center;">
        <a href="{{.LoginURL}}" class="button" style="color: white !important;">Login to Your Account</a>
    </div>
    <p>If the button doesn't work, copy and paste this link into your browser:</p>
    <p style="color: #6b7280; word-break: break-all;">{{.LoginURL}}</p>
{{template "foot" .}}{{end}}
`

const rejectedTemplate = `
{{define "rejected"}}{{template "head" .}}
    <h2 style="color: #ef4444;">Verification Unsuccessful</h2>
    <p>Dear {{.FirstName}},</p>
    <p>We were unable to verify the documents submitted with your {{.Conference}} {{.Year}} registration.</p>
    <div class="notice rejected">
        <strong>Reason: {{.Reason}}</strong>
        {{if .Notes}}<p style="margin: 10px 0 0 0;">{{.Notes}}</p>{{end}}
    </div>
    <p>You are welcome to register again with a valid, clearly readable document.</p>
    <div style="margin: 30px 0; text-align: center;">
        <a href="{{.RegisterURL}}" class="button" style="color: white !important;">Register Again</a>
    </div>
{{template "foot" .}}{{end}}
`

var templates = template.Must(
	template.New("email").Parse(layoutTemplates + pendingTemplate + approvedTemplate + rejectedTemplate),
)

type templateData struct {
	Conference   string
	Year         int
	SupportEmail string
	FirstName    string
	FullName     string
	LoginURL     string
	RegisterURL  string
	Reason       string
	Notes        string
}

func render(name string, data templateData) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("execute template %s: %w", name, err)
	}
	return buf.String(), nil
}
