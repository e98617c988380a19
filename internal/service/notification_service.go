package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"

	"go.uber.org/zap"

	"github.com/noah-isme/grievance-api/internal/models"
	appErrors "github.com/noah-isme/grievance-api/pkg/errors"
	"github.com/noah-isme/grievance-api/pkg/jobs"
	"github.com/noah-isme/grievance-api/pkg/notify"
)

// Notification job types.
const (
	jobSubmittedSubmitter = "grievance.submitted.submitter"
	jobSubmittedStaff     = "grievance.submitted.staff"
	jobStaffMember        = "grievance.submitted.staff_member"
	jobSubmittedAlert     = "grievance.submitted.alert"
	jobStatusChanged      = "grievance.status_changed"
	jobCommentAdded       = "grievance.comment_added"
)

type notificationPayload struct {
	Grievance      models.Grievance
	Classification models.Classification
	Previous       models.GrievanceStatus
	Comment        *models.Comment
	Recipient      string
}

type staffDirectory interface {
	ListByRole(ctx context.Context, role models.UserRole) ([]models.User, error)
}

var emailTemplates = template.Must(template.New("emails").Funcs(template.FuncMap{
	"pct": func(f float64) float64 { return f * 100 },
}).Parse(`
{{define "submitted"}}<h2>Grievance received</h2>
<p>Your grievance <strong>{{.Grievance.Title}}</strong> has been recorded.</p>
<p><strong>Department:</strong> {{.Grievance.Department}}<br>
<strong>Priority:</strong> {{.Grievance.Priority}}<br>
<strong>Status:</strong> {{.Grievance.Status}}<br>
<strong>Reference:</strong> {{.Grievance.ID}}</p>
{{end}}
{{define "staff"}}<h2>New {{.Grievance.Priority}} priority grievance</h2>
<p><strong>Title:</strong> {{.Grievance.Title}}</p>
<p><strong>Description:</strong> {{.Grievance.Description}}</p>
<p><strong>Department:</strong> {{.Grievance.Department}}<br>
<strong>Submitted by:</strong> {{if .Grievance.IsAnonymous}}Anonymous{{else}}{{.Grievance.SubmitterName}}{{end}}<br>
<strong>Classification:</strong> {{.Classification.Reason}} ({{printf "%.0f" (pct .Classification.Confidence)}}% confidence)</p>
{{end}}
{{define "status"}}<h2>Grievance status updated</h2>
<p>The status of <strong>{{.Grievance.Title}}</strong> changed from {{.Previous}} to <strong>{{.Grievance.Status}}</strong>.</p>
{{end}}
{{define "comment"}}<h2>New response on your grievance</h2>
<p><strong>{{.Comment.AuthorName}}</strong> ({{.Comment.AuthorRole}}) replied to <strong>{{.Grievance.Title}}</strong>:</p>
<blockquote>{{.Comment.Text}}</blockquote>
{{end}}`))

// NotificationService turns grievance events into email and chat deliveries.
// Every method returns immediately; delivery happens on the queue's workers.
type NotificationService struct {
	mailer  notify.Mailer
	alerter notify.Alerter
	staff   staffDirectory
	metrics *MetricsService
	logger  *zap.Logger
	queue   *jobs.Queue
}

// NewNotificationService constructs the service and its worker queue. Call Start before use.
func NewNotificationService(mailer notify.Mailer, alerter notify.Alerter, staff staffDirectory, metrics *MetricsService, logger *zap.Logger, queueCfg jobs.QueueConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if alerter == nil {
		alerter = notify.NopAlerter{}
	}
	if mailer == nil {
		mailer = notify.NewLogMailer(logger)
	}
	s := &NotificationService{mailer: mailer, alerter: alerter, staff: staff, metrics: metrics, logger: logger}
	queueCfg.Logger = logger
	s.queue = jobs.NewQueue("notifications", s.handle, queueCfg)
	return s
}

// Start launches the delivery workers.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop waits for in-flight deliveries and drops the rest.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

// GrievanceSubmitted notifies the submitter, the staff of the assigned department and the admin chat.
func (s *NotificationService) GrievanceSubmitted(_ context.Context, g models.Grievance, c models.Classification) {
	payload := notificationPayload{Grievance: g, Classification: c}
	if !g.IsAnonymous && g.SubmitterEmail != nil && *g.SubmitterEmail != "" {
		s.enqueue(jobSubmittedSubmitter, ChannelEmail, payload)
	}
	s.enqueue(jobSubmittedStaff, ChannelEmail, payload)
	s.enqueue(jobSubmittedAlert, ChannelTelegram, payload)
}

// StatusChanged emails the submitter unless the grievance is anonymous or has no email.
func (s *NotificationService) StatusChanged(_ context.Context, g models.Grievance, previous models.GrievanceStatus) {
	if g.IsAnonymous || g.SubmitterEmail == nil || *g.SubmitterEmail == "" {
		s.metrics.RecordNotification(ChannelEmail, ResultSkipped)
		return
	}
	s.enqueue(jobStatusChanged, ChannelEmail, notificationPayload{Grievance: g, Previous: previous})
}

// CommentAdded emails the submitter when staff reply.
func (s *NotificationService) CommentAdded(_ context.Context, g models.Grievance, c models.Comment) {
	if !c.IsPrivileged {
		return
	}
	if g.IsAnonymous || g.SubmitterEmail == nil || *g.SubmitterEmail == "" {
		s.metrics.RecordNotification(ChannelEmail, ResultSkipped)
		return
	}
	comment := c
	s.enqueue(jobCommentAdded, ChannelEmail, notificationPayload{Grievance: g, Comment: &comment})
}

func (s *NotificationService) enqueue(jobType, channel string, payload notificationPayload) {
	if err := s.queue.Enqueue(jobs.Job{Type: jobType, Payload: payload}); err != nil {
		s.metrics.RecordNotification(channel, ResultDropped)
		s.logger.Warn("notification not queued",
			zap.String("code", appErrors.ErrNotification.Code),
			zap.String("type", jobType),
			zap.String("grievance_id", payload.Grievance.ID),
			zap.Error(err),
		)
	}
}

func (s *NotificationService) handle(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(notificationPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T", job.Payload)
	}

	var err error
	channel := ChannelEmail
	switch job.Type {
	case jobSubmittedSubmitter:
		err = s.sendTemplate(ctx, []string{*payload.Grievance.SubmitterEmail}, "Grievance received: "+payload.Grievance.Title, "submitted", payload)
	case jobSubmittedStaff:
		var to []string
		to, err = s.staffRecipients(ctx, payload.Grievance.Department)
		if err == nil {
			if len(to) == 0 {
				s.metrics.RecordNotification(channel, ResultSkipped)
			}
			// One message per address.
			for _, addr := range to {
				member := payload
				member.Recipient = addr
				s.enqueue(jobStaffMember, channel, member)
			}
			return nil
		}
	case jobStaffMember:
		subject := fmt.Sprintf("New %s priority grievance for %s", payload.Grievance.Priority, payload.Grievance.Department)
		err = s.sendTemplate(ctx, []string{payload.Recipient}, subject, "staff", payload)
	case jobSubmittedAlert:
		channel = ChannelTelegram
		err = s.alerter.Alert(ctx, alertText(payload))
	case jobStatusChanged:
		err = s.sendTemplate(ctx, []string{*payload.Grievance.SubmitterEmail}, "Grievance status updated: "+string(payload.Grievance.Status), "status", payload)
	case jobCommentAdded:
		err = s.sendTemplate(ctx, []string{*payload.Grievance.SubmitterEmail}, "New response on your grievance", "comment", payload)
	default:
		return fmt.Errorf("unknown notification job %s", job.Type)
	}

	if err != nil {
		if errors.Is(err, notify.ErrNoRecipients) {
			s.metrics.RecordNotification(channel, ResultSkipped)
			return nil
		}
		s.metrics.RecordNotification(channel, ResultFailed)
		return appErrors.Wrap(err, appErrors.ErrNotification.Code, appErrors.ErrNotification.Status, job.Type)
	}
	s.metrics.RecordNotification(channel, ResultSent)
	return nil
}

// staffRecipients returns every admin plus the HODs of department.
func (s *NotificationService) staffRecipients(ctx context.Context, department string) ([]string, error) {
	if s.staff == nil {
		return nil, nil
	}
	admins, err := s.staff.ListByRole(ctx, models.RoleAdmin)
	if err != nil {
		return nil, fmt.Errorf("load admins: %w", err)
	}
	hods, err := s.staff.ListByRole(ctx, models.RoleHOD)
	if err != nil {
		return nil, fmt.Errorf("load hods: %w", err)
	}
	to := make([]string, 0, len(admins)+1)
	for _, u := range admins {
		to = append(to, u.Email)
	}
	for _, u := range hods {
		if u.Department == department {
			to = append(to, u.Email)
		}
	}
	return to, nil
}

func (s *NotificationService) sendTemplate(ctx context.Context, to []string, subject, name string, payload notificationPayload) error {
	var body bytes.Buffer
	if err := emailTemplates.ExecuteTemplate(&body, name, payload); err != nil {
		return fmt.Errorf("render %s email: %w", name, err)
	}
	return s.mailer.Send(ctx, notify.Message{To: to, Subject: subject, HTMLBody: body.String()})
}

func alertText(p notificationPayload) string {
	return fmt.Sprintf("New %s grievance [%s]\n%s\nSource: %s", p.Grievance.Priority, p.Grievance.Department, p.Grievance.Title, p.Classification.Source)
}

// NopNotifier discards grievance events.
type NopNotifier struct{}

func (NopNotifier) GrievanceSubmitted(context.Context, models.Grievance, models.Classification) {}

func (NopNotifier) StatusChanged(context.Context, models.Grievance, models.GrievanceStatus) {}

func (NopNotifier) CommentAdded(context.Context, models.Grievance, models.Comment) {}
