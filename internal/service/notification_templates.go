package service

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/noah-isme/points-rewards-api/internal/models"
)

var emailTemplates = template.Must(template.New("emails").Parse(`
{{define "layout_start"}}<div style="font-family:Arial,sans-serif;font-size:14px;color:#222">{{end}}
{{define "layout_end"}}<p style="color:#777;font-size:12px">This is an automated message from the rewards portal.</p></div>{{end}}

{{define "request_raised"}}{{template "layout_start"}}
<p>Hello {{.Recipient}},</p>
<p>{{.Actor}} raised a {{.Department}} points request that is waiting for your review.</p>
<table cellpadding="4">
<tr><td><b>Employee</b></td><td>{{.Employee}}</td></tr>
<tr><td><b>Category</b></td><td>{{.Category}}</td></tr>
<tr><td><b>{{.ValueLabel}}</b></td><td>{{.Value}}</td></tr>
<tr><td><b>Event date</b></td><td>{{.EventDate}}</td></tr>
<tr><td><b>Notes</b></td><td>{{.Notes}}</td></tr>
</table>
{{template "layout_end"}}{{end}}

{{define "decision"}}{{template "layout_start"}}
<p>Hello {{.Recipient}},</p>
<p>The points request for <b>{{.Employee}}</b> in <b>{{.Category}}</b> was <b>{{.Status}}</b> by {{.Actor}}.</p>
<table cellpadding="4">
<tr><td><b>{{.ValueLabel}}</b></td><td>{{.Value}}</td></tr>
<tr><td><b>Event date</b></td><td>{{.EventDate}}</td></tr>
<tr><td><b>Validator notes</b></td><td>{{.Notes}}</td></tr>
</table>
{{template "layout_end"}}{{end}}

{{define "manager_forward"}}{{template "layout_start"}}
<p>Hello {{.Recipient}},</p>
<p>Your team member <b>{{.Employee}}</b> has been recognised in <b>{{.Category}}</b> ({{.Department}}).</p>
<p>{{.ValueLabel}}: {{.Value}}<br>Notes: {{.Notes}}</p>
{{template "layout_end"}}{{end}}

{{define "bulk_summary"}}{{template "layout_start"}}
<p>Hello {{.Recipient}},</p>
<p>{{.Actor}} {{.Status}} {{len .Rows}} request(s) you raised.</p>
<table cellpadding="4" border="1" style="border-collapse:collapse">
<tr><th>Employee</th><th>Category</th><th>Points</th><th>Event date</th></tr>
{{range .Rows}}<tr><td>{{.Employee}}</td><td>{{.Category}}</td><td>{{.Value}}</td><td>{{.EventDate}}</td></tr>
{{end}}</table>
<p>Notes: {{.Notes}}</p>
{{template "layout_end"}}{{end}}
`))

type emailData struct {
	Recipient  string
	Actor      string
	Employee   string
	Category   string
	Department models.Department
	Status     string
	ValueLabel string
	Value      string
	EventDate  string
	Notes      string
	Rows       []emailData
}

// requestContext carries the resolved names used by notification templates.
type requestContext struct {
	req       *models.PointsRequest
	category  *models.Category
	employee  *models.User
	validator *models.User
	updater   *models.User
}

func (rc requestContext) data(recipient, actor string, status models.RequestStatus, notes string) emailData {
	data := emailData{
		Recipient:  recipient,
		Actor:      actor,
		Employee:   rc.employee.DisplayName(),
		Category:   models.UnknownName,
		Department: rc.req.CategoryDepartment,
		Status:     strings.ToLower(string(status)),
		ValueLabel: "Points",
		Value:      fmt.Sprintf("%d", rc.req.Points),
		EventDate:  rc.req.EventDate.Format("02 Jan 2006"),
		Notes:      notes,
	}
	if rc.category != nil {
		data.Category = rc.category.Name
	}
	if rc.req.IsUtilization() {
		data.ValueLabel = "Utilization"
		data.Value = FormatUtilizationPercent(rc.req.UtilizationValue.Decimal)
	}
	return data
}

func renderEmail(name string, data emailData) (string, error) {
	var buf bytes.Buffer
	if err := emailTemplates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s email: %w", name, err)
	}
	return buf.String(), nil
}

func requestRaisedEmail(rc requestContext, submitterName string) (models.Email, error) {
	html, err := renderEmail("request_raised", rc.data(rc.validator.DisplayName(), submitterName, models.RequestStatusPending, rc.req.SubmissionNotes))
	if err != nil {
		return models.Email{}, err
	}
	return models.Email{
		To:      []string{rc.validator.Email},
		Subject: fmt.Sprintf("[%s] Points request for %s awaiting review", rc.req.CategoryDepartment, rc.employee.DisplayName()),
		HTML:    html,
	}, nil
}

func decisionEmail(rc requestContext, recipient *models.User, status models.RequestStatus, notes string) (models.Email, error) {
	html, err := renderEmail("decision", rc.data(recipient.DisplayName(), rc.validator.DisplayName(), status, notes))
	if err != nil {
		return models.Email{}, err
	}
	return models.Email{
		To:      []string{recipient.Email},
		Subject: fmt.Sprintf("[%s] Points request %s", rc.req.CategoryDepartment, strings.ToLower(string(status))),
		HTML:    html,
	}, nil
}

func managerForwardEmail(rc requestContext, manager *models.User, notes string) (models.Email, error) {
	html, err := renderEmail("manager_forward", rc.data(manager.DisplayName(), rc.validator.DisplayName(), models.RequestStatusApproved, notes))
	if err != nil {
		return models.Email{}, err
	}
	return models.Email{
		To:      []string{manager.Email},
		Subject: fmt.Sprintf("%s was awarded points", rc.employee.DisplayName()),
		HTML:    html,
	}, nil
}

func bulkSummaryEmail(recipient *models.User, actor string, status models.RequestStatus, notes string, rows []requestContext) (models.Email, error) {
	data := emailData{
		Recipient: recipient.DisplayName(),
		Actor:     actor,
		Status:    strings.ToLower(string(status)),
		Notes:     notes,
	}
	for _, rc := range rows {
		data.Rows = append(data.Rows, rc.data("", actor, status, notes))
	}
	html, err := renderEmail("bulk_summary", data)
	if err != nil {
		return models.Email{}, err
	}
	return models.Email{
		To:      []string{recipient.Email},
		Subject: fmt.Sprintf("%d points request(s) %s", len(rows), strings.ToLower(string(status))),
		HTML:    html,
	}, nil
}
