package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/grievance-api/internal/models"
	"github.com/noah-isme/grievance-api/pkg/jobs"
	"github.com/noah-isme/grievance-api/pkg/notify"
)

type fakeMailer struct {
	mu   sync.Mutex
	sent []notify.Message
	err  error
}

func (m *fakeMailer) Send(_ context.Context, msg notify.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return m.err
}

func (m *fakeMailer) messages() []notify.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]notify.Message(nil), m.sent...)
}

type fakeAlerter struct {
	mu     sync.Mutex
	alerts []string
	err    error
}

func (a *fakeAlerter) Alert(_ context.Context, text string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.alerts = append(a.alerts, text)
	return a.err
}

func (a *fakeAlerter) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.alerts)
}

type fakeStaff struct {
	users []models.User
}

func (f fakeStaff) ListByRole(_ context.Context, role models.UserRole) ([]models.User, error) {
	var out []models.User
	for _, u := range f.users {
		if u.Role == role {
			out = append(out, u)
		}
	}
	return out, nil
}

func notificationQueueConfig() jobs.QueueConfig {
	return jobs.QueueConfig{Workers: 2, BufferSize: 16, MaxRetries: 0, RetryDelay: time.Millisecond}
}

func campusStaff() fakeStaff {
	return fakeStaff{users: []models.User{
		{ID: "a1", Email: "admin@college.edu", Role: models.RoleAdmin},
		{ID: "h1", Email: "it.hod@college.edu", Role: models.RoleHOD, Department: "IT Section"},
		{ID: "h2", Email: "sec.hod@college.edu", Role: models.RoleHOD, Department: "Security"},
		{ID: "s1", Email: "student@college.edu", Role: models.RoleStudent},
	}}
}

func sampleGrievance(anonymous bool) models.Grievance {
	email := "asha@college.edu"
	return models.Grievance{
		ID:             "g1",
		Title:          "WiFi <down>",
		Description:    "hostel",
		Department:     "IT Section",
		Priority:       models.PriorityHigh,
		Status:         models.StatusInProgress,
		IsAnonymous:    anonymous,
		SubmitterID:    "u1",
		SubmitterName:  "Asha",
		SubmitterEmail: &email,
	}
}

func TestNotificationSubmittedFansOut(t *testing.T) {
	mailer := &fakeMailer{}
	alerter := &fakeAlerter{}
	metrics := NewMetricsService()
	svc := NewNotificationService(mailer, alerter, campusStaff(), metrics, nil, notificationQueueConfig())
	svc.Start(context.Background())
	defer svc.Stop()

	svc.GrievanceSubmitted(context.Background(), sampleGrievance(false), models.Classification{Reason: "network", Confidence: 0.9, Source: models.SourceAI})
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(metrics.notifications.WithLabelValues(ChannelEmail, ResultSent)) == 3 &&
			testutil.ToFloat64(metrics.notifications.WithLabelValues(ChannelTelegram, ResultSent)) == 1
	}, time.Second, 5*time.Millisecond)

	msgs := mailer.messages()
	require.Len(t, msgs, 3)
	var submitter *notify.Message
	var staffTo []string
	for i := range msgs {
		require.Len(t, msgs[i].To, 1)
		if msgs[i].To[0] == "asha@college.edu" {
			submitter = &msgs[i]
			continue
		}
		staffTo = append(staffTo, msgs[i].To[0])
		assert.Contains(t, msgs[i].HTMLBody, "90% confidence")
		assert.Contains(t, msgs[i].HTMLBody, "Asha")
	}
	require.NotNil(t, submitter)
	assert.Contains(t, submitter.HTMLBody, "WiFi &lt;down&gt;")
	assert.ElementsMatch(t, []string{"admin@college.edu", "it.hod@college.edu"}, staffTo)
	assert.Equal(t, 1, alerter.count())
}

func TestNotificationAnonymousHidesSubmitter(t *testing.T) {
	mailer := &fakeMailer{}
	svc := NewNotificationService(mailer, nil, campusStaff(), nil, nil, notificationQueueConfig())
	svc.Start(context.Background())
	defer svc.Stop()

	svc.GrievanceSubmitted(context.Background(), sampleGrievance(true), models.Classification{})
	svc.StatusChanged(context.Background(), sampleGrievance(true), models.StatusPending)
	require.Eventually(t, func() bool { return len(mailer.messages()) == 2 }, time.Second, 5*time.Millisecond)

	for _, msg := range mailer.messages() {
		assert.NotContains(t, msg.To, "asha@college.edu")
		assert.Contains(t, msg.HTMLBody, "Anonymous")
		assert.NotContains(t, msg.HTMLBody, "Asha")
	}
}

func TestNotificationStatusAndComment(t *testing.T) {
	mailer := &fakeMailer{}
	metrics := NewMetricsService()
	svc := NewNotificationService(mailer, nil, nil, metrics, nil, notificationQueueConfig())
	svc.Start(context.Background())
	defer svc.Stop()

	g := sampleGrievance(false)
	svc.StatusChanged(context.Background(), g, models.StatusPending)
	svc.CommentAdded(context.Background(), g, models.Comment{Text: "me too", AuthorName: "Ravi", AuthorRole: models.RoleStudent})
	svc.CommentAdded(context.Background(), g, models.Comment{Text: "fixed", AuthorName: "Dr. Iyer", AuthorRole: models.RoleHOD, IsPrivileged: true})
	g.SubmitterEmail = nil
	svc.StatusChanged(context.Background(), g, models.StatusPending)
	require.Eventually(t, func() bool { return len(mailer.messages()) == 2 }, time.Second, 5*time.Millisecond)

	msgs := mailer.messages()
	subjects := []string{msgs[0].Subject, msgs[1].Subject}
	assert.Contains(t, subjects, "Grievance status updated: In Progress")
	assert.Contains(t, subjects, "New response on your grievance")
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.notifications.WithLabelValues(ChannelEmail, ResultSkipped)))
}

func TestNotificationFailuresAreCounted(t *testing.T) {
	mailer := &fakeMailer{err: assert.AnError}
	alerter := &fakeAlerter{err: assert.AnError}
	metrics := NewMetricsService()
	svc := NewNotificationService(mailer, alerter, campusStaff(), metrics, nil, notificationQueueConfig())
	svc.Start(context.Background())
	defer svc.Stop()

	svc.GrievanceSubmitted(context.Background(), sampleGrievance(false), models.Classification{})
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(metrics.notifications.WithLabelValues(ChannelEmail, ResultFailed)) == 3 &&
			testutil.ToFloat64(metrics.notifications.WithLabelValues(ChannelTelegram, ResultFailed)) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestNotificationDroppedWhenStopped(t *testing.T) {
	metrics := NewMetricsService()
	svc := NewNotificationService(&fakeMailer{}, nil, nil, metrics, nil, notificationQueueConfig())

	svc.StatusChanged(context.Background(), sampleGrievance(false), models.StatusPending)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.notifications.WithLabelValues(ChannelEmail, ResultDropped)))
}
