package notify

import (
	"fmt"
	"html/template"
	"time"
)

var weekdays = [...]string{"zondag", "maandag", "dinsdag", "woensdag", "donderdag", "vrijdag", "zaterdag"}

var months = [...]string{"januari", "februari", "maart", "april", "mei", "juni", "juli",
	"augustus", "september", "oktober", "november", "december"}

// longDate formats t as "dinsdag 10 juni 2025".
func longDate(t time.Time) string {
	return fmt.Sprintf("%s %d %s %d", weekdays[t.Weekday()], t.Day(), months[t.Month()-1], t.Year())
}

// shortDate formats t as "10-6-2025".
func shortDate(t time.Time) string {
	return fmt.Sprintf("%d-%d-%d", t.Day(), int(t.Month()), t.Year())
}

const layoutHTML = `{{define "layout"}}<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<style>
  body { font-family: Montserrat, Arial, sans-serif; color: #25377f; }
  .container { max-width: 600px; margin: 0 auto; padding: 20px; }
  .header { background-color: {{.HeaderColor}}; padding: 20px; text-align: center; }
  .content { background-color: #ffffff; padding: 20px; }
  .button { display: inline-block; padding: 10px 20px; background-color: #a1d9f7; color: #25377f; text-decoration: none; border-radius: 5px; }
</style>
</head>
<body>
<div class="container">
  <div class="header"><h1>{{.Title}}</h1></div>
  <div class="content">
    {{template "body" .}}
    <p>Met vriendelijke groet,<br>IJsselheem</p>
  </div>
</div>
</body>
</html>{{end}}`

const sessionDetailsHTML = `{{define "details"}}<ul>
  <li><strong>Type:</strong> {{.TypeName}}</li>
  <li><strong>Datum:</strong> {{.Date}}</li>
  <li><strong>Tijd:</strong> {{.Time}}</li>
  <li><strong>Locatie:</strong> {{.Location}}</li>
  {{if .TeamsLink}}<li><strong>Teams-link:</strong> <a href="{{.TeamsLink}}">{{.TeamsLink}}</a></li>{{end}}
  {{if .Facilitator}}<li><strong>Begeleider:</strong> {{.Facilitator}}</li>{{end}}
</ul>{{end}}`

const confirmationHTML = `{{define "body"}}<p>Beste {{if .Name}}{{.Name}}{{else}}deelnemer{{end}},</p>
<p>Je inschrijving voor het volgende groeigesprek is bevestigd:</p>
{{template "details" .}}
{{if .Instructions}}<p>{{.Instructions}}</p>{{end}}
<p><a href="{{.CalendarURL}}">Zet in je agenda</a></p>
{{if .CancelURL}}<p><a href="{{.CancelURL}}" class="button">Annuleer inschrijving</a></p>
<p>Annuleren kan tot {{.CutoffHours}} uur voor aanvang.</p>{{end}}{{end}}`

const cancellationHTML = `{{define "body"}}<p>Beste {{if .Name}}{{.Name}}{{else}}deelnemer{{end}},</p>
<p>Je inschrijving voor het volgende groeigesprek is geannuleerd:</p>
{{template "details" .}}{{end}}`

const sessionCancelledHTML = `{{define "body"}}<p>Beste {{if .Name}}{{.Name}}{{else}}deelnemer{{end}},</p>
<p>Het volgende groeigesprek waarvoor je was ingeschreven gaat helaas niet door:</p>
{{template "details" .}}
{{if .Reason}}<p><strong>Reden:</strong> {{.Reason}}</p>{{end}}
<p>Je inschrijving is hiermee vervallen. Je kunt je aanmelden voor een andere sessie.</p>{{end}}`

const individualRequestHTML = `{{define "body"}}<p>Beste {{.ColleagueName}},</p>
<p>Er is een aanvraag binnengekomen voor een individueel gesprek met jou.</p>
<ul>
  <li><strong>Naam:</strong> {{if .RequesterName}}{{.RequesterName}}{{else}}(niet opgegeven){{end}}</li>
  <li><strong>E-mail:</strong> {{if .RequesterEmail}}<a href="mailto:{{.RequesterEmail}}">{{.RequesterEmail}}</a>{{else}}(niet opgegeven){{end}}</li>
</ul>
<p><strong>Bericht:</strong></p>
<p>{{.Message}}</p>{{end}}`

func mustTemplate(body string) *template.Template {
	t := template.Must(template.New("email").Parse(layoutHTML))
	template.Must(t.Parse(sessionDetailsHTML))
	return template.Must(t.Parse(body))
}

var (
	confirmationTmpl      = mustTemplate(confirmationHTML)
	cancellationTmpl      = mustTemplate(cancellationHTML)
	sessionCancelledTmpl  = mustTemplate(sessionCancelledHTML)
	individualRequestTmpl = mustTemplate(individualRequestHTML)
)
