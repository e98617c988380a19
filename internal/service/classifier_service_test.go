package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/grievance-api/internal/models"
)

type fakeGenerator struct {
	enabled bool
	reply   string
	err     error
	prompts []string
	delay   time.Duration
}

func (f *fakeGenerator) Enabled() bool { return f.enabled }

func (f *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.reply, f.err
}

func campusDepartments() []models.Department {
	return []models.Department{
		{ID: "d1", Name: "IT Section", Description: "Student accounts, WiFi, lab computers"},
		{ID: "d2", Name: "Housekeeping", Description: "Cleaning of classrooms and hostels"},
		{ID: "d3", Name: "Accounts", Description: "Tuition fees and scholarships"},
		{ID: "d4", Name: "Security", Description: "Campus security, lost and found, CCTV camera coverage"},
	}
}

func TestFallbackClassifyNeverFails(t *testing.T) {
	inputs := []struct{ title, desc string }{
		{"", ""},
		{"???", strings.Repeat("x", 10000)},
		{"URGENT", "MINOR"},
	}
	deptSets := [][]models.Department{nil, {}, campusDepartments()}
	for _, depts := range deptSets {
		for _, in := range inputs {
			c := FallbackClassify(in.title, in.desc, depts)
			assert.NotEmpty(t, c.Department)
			assert.Contains(t, []models.Priority{models.PriorityHigh, models.PriorityMedium, models.PriorityLow}, c.Priority)
			assert.Equal(t, FallbackConfidence, c.Confidence)
			assert.Equal(t, FallbackReason, c.Reason)
			assert.Equal(t, models.SourceFallback, c.Source)
		}
	}
	assert.Equal(t, DefaultDepartment, FallbackClassify("anything", "", nil).Department)
}

func TestFallbackClassifyRouting(t *testing.T) {
	depts := campusDepartments()
	tests := []struct {
		name     string
		title    string
		desc     string
		wantDept string
		wantPrio models.Priority
	}{
		{"wifi urgent", "WiFi down", "urgent, cannot connect in hostel", "IT Section", models.PriorityHigh},
		{"fees by payment", "Payment issue", "my payment was charged twice", "Accounts", models.PriorityMedium},
		{"cleaning", "Dirty washroom", "block B", "Housekeeping", models.PriorityMedium},
		{"lost item", "Lost bag", "left near canteen, minor", "Security", models.PriorityLow},
		{"department name", "security guard", "absent at gate", "Security", models.PriorityMedium},
		{"emergency escalates", "Fire", "emergency near lab", "IT Section", models.PriorityHigh},
		{"no match keeps first", "Canteen", "food quality suggestion", "IT Section", models.PriorityLow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := FallbackClassify(tt.title, tt.desc, depts)
			assert.Equal(t, tt.wantDept, c.Department)
			assert.Equal(t, tt.wantPrio, c.Priority)
		})
	}
}

func TestFallbackUrgencyBeatsMinor(t *testing.T) {
	c := FallbackClassify("minor but urgent", "", campusDepartments())
	assert.Equal(t, models.PriorityHigh, c.Priority)
}

func TestParseClassification(t *testing.T) {
	depts := campusDepartments()

	c, err := ParseClassification("```json\n{\"department\":\"it section\",\"priority\":\"high\",\"reason\":\"network\",\"confidence\":0.91}\n```", depts)
	require.NoError(t, err)
	assert.Equal(t, "IT Section", c.Department)
	assert.Equal(t, models.PriorityHigh, c.Priority)
	assert.Equal(t, 0.91, c.Confidence)
	assert.Equal(t, models.SourceAI, c.Source)

	c, err = ParseClassification(`{"department":"Security","priority":"Low"}`, depts)
	require.NoError(t, err)
	assert.Equal(t, 0.8, c.Confidence)
	assert.Equal(t, "Auto-classified", c.Reason)

	bad := []string{
		`not json`,
		`{"department":"Library","priority":"Low"}`,
		`{"department":"Security","priority":"Critical"}`,
		`{"department":"Security","priority":"Low","confidence":1.5}`,
		`{"priority":"Low"}`,
	}
	for _, reply := range bad {
		_, err := ParseClassification(reply, depts)
		assert.Error(t, err, reply)
	}
}

func TestClassifyUsesModelWhenValid(t *testing.T) {
	gen := &fakeGenerator{enabled: true, reply: `{"department":"Housekeeping","priority":"Low","reason":"cleaning","confidence":0.7}`}
	metrics := NewMetricsService()
	svc := NewClassifierService(gen, time.Second, metrics, nil)

	c := svc.Classify(context.Background(), "Dusty room", "please clean", campusDepartments())
	assert.Equal(t, "Housekeeping", c.Department)
	assert.Equal(t, models.SourceAI, c.Source)
	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "- Security: Campus security, lost and found, CCTV camera coverage")
	assert.Contains(t, gen.prompts[0], "Title: Dusty room")
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.classifications.WithLabelValues("ai")))
}

func TestClassifyFallsBack(t *testing.T) {
	tests := []struct {
		name string
		gen  *fakeGenerator
	}{
		{"disabled", &fakeGenerator{enabled: false}},
		{"upstream error", &fakeGenerator{enabled: true, err: errors.New("503")}},
		{"malformed", &fakeGenerator{enabled: true, reply: "I think IT"}},
		{"unknown department", &fakeGenerator{enabled: true, reply: `{"department":"Library","priority":"High"}`}},
		{"timeout", &fakeGenerator{enabled: true, delay: time.Second, reply: `{"department":"Security","priority":"High"}`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			metrics := NewMetricsService()
			svc := NewClassifierService(tt.gen, 20*time.Millisecond, metrics, nil)
			c := svc.Classify(context.Background(), "WiFi down", "urgent, cannot connect in hostel", campusDepartments())
			assert.Equal(t, "IT Section", c.Department)
			assert.Equal(t, models.PriorityHigh, c.Priority)
			assert.Equal(t, 0.6, c.Confidence)
			assert.Equal(t, 1.0, testutil.ToFloat64(metrics.classifications.WithLabelValues("fallback")))
		})
	}
}

func TestClassifyWithoutDepartmentsSkipsModel(t *testing.T) {
	gen := &fakeGenerator{enabled: true, reply: `{"department":"General","priority":"High"}`}
	c := NewClassifierService(gen, time.Second, nil, nil).Classify(context.Background(), "t", "d", nil)
	assert.Equal(t, DefaultDepartment, c.Department)
	assert.Empty(t, gen.prompts)
}

func TestManualClassification(t *testing.T) {
	c := ManualClassification("Security")
	assert.Equal(t, models.Classification{
		Department: "Security",
		Priority:   models.PriorityMedium,
		Reason:     "Manually selected by user",
		Confidence: 1.0,
		Source:     models.SourceManual,
	}, c)
}
