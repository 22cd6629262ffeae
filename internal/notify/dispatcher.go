package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"time"

	"go.uber.org/zap"

	"github.com/groeigesprek/backend/internal/models"
	"github.com/groeigesprek/backend/pkg/queue"
)

const (
	defaultTypeName = "Groeigesprek"
	individualTitle = "Aanvraag individueel gesprek"

	headerConfirm = template.CSS("#a1d9f7")
	headerCancel  = template.CSS("#cbe9fb")
)

// Enqueuer hands a rendered email to the delivery worker.
type Enqueuer interface {
	EnqueueEmail(ctx context.Context, p queue.EmailPayload) (string, error)
}

// FlagReader reports whether a kind of email is switched on.
type FlagReader interface {
	EmailEnabled(ctx context.Context, key string) bool
	CutoffHours(ctx context.Context) int
}

type emailData struct {
	Title       string
	HeaderColor template.CSS

	Name         string
	TypeName     string
	Date         string
	Time         string
	Location     string
	TeamsLink    string
	Facilitator  string
	Instructions string
	Reason       string
	CancelURL    string
	CalendarURL  string
	CutoffHours  int

	ColleagueName  string
	RequesterName  string
	RequesterEmail string
	Message        string
}

// Dispatcher renders notification emails and queues them for delivery.
type Dispatcher struct {
	queue  Enqueuer
	flags  FlagReader
	links  Links
	loc    *time.Location
	logger *zap.Logger
}

// NewDispatcher creates a Dispatcher. loc is the zone session dates are in.
func NewDispatcher(q Enqueuer, flags FlagReader, links Links, loc *time.Location, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.Local
	}
	return &Dispatcher{queue: q, flags: flags, links: links, loc: loc, logger: logger}
}

// RegistrationConfirmed sends the confirmation with cancel and calendar links.
func (d *Dispatcher) RegistrationConfirmed(ctx context.Context, reg *models.Registration, sess *models.Session) error {
	if !d.flags.EmailEnabled(ctx, models.SettingEmailConfirmationEnabled) {
		return nil
	}
	data, day, err := d.sessionData(sess)
	if err != nil {
		return err
	}
	data.Title = "Bevestiging aanmelding"
	data.HeaderColor = headerConfirm
	data.Name = reg.Name
	data.CancelURL = d.links.CancelURL(reg.CancellationToken)
	data.CalendarURL = d.links.CalendarURL(sess.ID)
	data.CutoffHours = d.flags.CutoffHours(ctx)
	if sess.Instructions != nil {
		data.Instructions = *sess.Instructions
	}
	subject := fmt.Sprintf("Bevestiging aanmelding: %s - %s", data.TypeName, shortDate(day))
	return d.send(ctx, confirmationTmpl, data, queue.EmailPayload{
		EmailType:      models.EmailTypeRegistrationConfirmation,
		SessionID:      &sess.ID,
		RegistrationID: &reg.ID,
		RecipientEmail: reg.Email,
		RecipientName:  reg.Name,
		Subject:        subject,
	})
}

// RegistrationCancelled confirms a cancelled registration.
func (d *Dispatcher) RegistrationCancelled(ctx context.Context, reg *models.Registration, sess *models.Session) error {
	if !d.flags.EmailEnabled(ctx, models.SettingEmailCancellationEnabled) {
		return nil
	}
	data, day, err := d.sessionData(sess)
	if err != nil {
		return err
	}
	data.Title = "Inschrijving geannuleerd"
	data.HeaderColor = headerCancel
	data.Name = reg.Name
	data.Facilitator = ""
	subject := fmt.Sprintf("Annulering: %s - %s", data.TypeName, shortDate(day))
	return d.send(ctx, cancellationTmpl, data, queue.EmailPayload{
		EmailType:      models.EmailTypeCancellationConfirmation,
		SessionID:      &sess.ID,
		RegistrationID: &reg.ID,
		RecipientEmail: reg.Email,
		RecipientName:  reg.Name,
		Subject:        subject,
	})
}

// SessionCancelled tells one registrant that their session will not take
// place. It is governed by the cancellation flag.
func (d *Dispatcher) SessionCancelled(ctx context.Context, sess *models.Session, reg *models.Registration) error {
	if !d.flags.EmailEnabled(ctx, models.SettingEmailCancellationEnabled) {
		return nil
	}
	data, day, err := d.sessionData(sess)
	if err != nil {
		return err
	}
	data.Title = "Sessie geannuleerd"
	data.HeaderColor = headerCancel
	data.Name = reg.Name
	if sess.CancellationReason != nil {
		data.Reason = *sess.CancellationReason
	}
	subject := fmt.Sprintf("Geannuleerd: %s - %s", data.TypeName, shortDate(day))
	return d.send(ctx, sessionCancelledTmpl, data, queue.EmailPayload{
		EmailType:      models.EmailTypeSessionCancelled,
		SessionID:      &sess.ID,
		RegistrationID: &reg.ID,
		RecipientEmail: reg.Email,
		RecipientName:  reg.Name,
		Subject:        subject,
	})
}

// IndividualRequest forwards a conversation request to the colleague.
func (d *Dispatcher) IndividualRequest(ctx context.Context, req *models.IndividualRequest, colleague *models.Colleague) error {
	if !d.flags.EmailEnabled(ctx, models.SettingEmailIndividualRequestEnabled) {
		return nil
	}
	data := emailData{
		Title:         individualTitle,
		HeaderColor:   headerConfirm,
		ColleagueName: colleague.Name,
		Message:       req.Message,
	}
	if req.RequesterName != nil {
		data.RequesterName = *req.RequesterName
	}
	if req.RequesterEmail != nil {
		data.RequesterEmail = *req.RequesterEmail
	}
	subject := individualTitle
	if data.RequesterName != "" {
		subject += " van " + data.RequesterName
	}
	return d.send(ctx, individualRequestTmpl, data, queue.EmailPayload{
		EmailType:      models.EmailTypeIndividualRequest,
		RecipientEmail: colleague.Email,
		RecipientName:  colleague.Name,
		Subject:        subject,
	})
}

func (d *Dispatcher) sessionData(sess *models.Session) (emailData, time.Time, error) {
	start, err := sess.StartsAt(d.loc)
	if err != nil {
		return emailData{}, time.Time{}, fmt.Errorf("session %s: %w", sess.ID, err)
	}
	data := emailData{
		TypeName:    sess.TypeName(defaultTypeName),
		Date:        longDate(start),
		Time:        start.Format(models.TimeLayout),
		Location:    sess.DisplayLocation(),
		Facilitator: sess.Facilitator,
	}
	if sess.EndTime != nil {
		data.Time += " - " + *sess.EndTime
	}
	if sess.IsOnline && sess.TeamsLink != nil {
		data.TeamsLink = *sess.TeamsLink
	}
	return data, start, nil
}

func (d *Dispatcher) send(ctx context.Context, tmpl *template.Template, data emailData, p queue.EmailPayload) error {
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		return fmt.Errorf("render %s: %w", p.EmailType, err)
	}
	p.BodyHTML = buf.String()
	jobID, err := d.queue.EnqueueEmail(ctx, p)
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", p.EmailType, err)
	}
	d.logger.Debug("email queued", zap.String("job_id", jobID), zap.String("email_type", p.EmailType))
	return nil
}
