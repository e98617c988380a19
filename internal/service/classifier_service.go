package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/grievance-api/internal/models"
	"github.com/noah-isme/grievance-api/pkg/ai"
	appErrors "github.com/noah-isme/grievance-api/pkg/errors"
)

// Fixed classification values for the non-AI paths.
const (
	DefaultDepartment    = "General"
	FallbackConfidence   = 0.6
	FallbackReason       = "Fallback keyword-based classification"
	ManualConfidence     = 1.0
	ManualReason         = "Manually selected by user"
	defaultAIConfidence  = 0.8
	defaultAIReason      = "Auto-classified"
	maxPromptFieldLength = 4000
)

// keywordRoute sends text mentioning any textKeyword to the first department whose
// description mentions descKeyword.
type keywordRoute struct {
	descKeyword  string
	textKeywords []string
}

var keywordRoutes = []keywordRoute{
	{descKeyword: "fees", textKeywords: []string{"fees", "payment"}},
	{descKeyword: "account", textKeywords: []string{"account"}},
	{descKeyword: "cleaning", textKeywords: []string{"clean", "dirty"}},
	{descKeyword: "security", textKeywords: []string{"security", "lost"}},
	{descKeyword: "camera", textKeywords: []string{"camera"}},
	{descKeyword: "wifi", textKeywords: []string{"wifi", "internet", "network"}},
}

var (
	urgentKeywords = []string{"urgent", "emergency", "immediately"}
	minorKeywords  = []string{"minor", "suggestion"}
)

type textGenerator interface {
	Enabled() bool
	Generate(ctx context.Context, prompt string) (string, error)
}

// ClassifierService assigns a department and priority to grievance text, using the
// language model when available and keyword rules otherwise. It never fails.
type ClassifierService struct {
	ai      textGenerator
	timeout time.Duration
	metrics *MetricsService
	logger  *zap.Logger
}

// NewClassifierService constructs a ClassifierService. A nil generator always falls back.
func NewClassifierService(generator textGenerator, timeout time.Duration, metrics *MetricsService, logger *zap.Logger) *ClassifierService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &ClassifierService{ai: generator, timeout: timeout, metrics: metrics, logger: logger}
}

// Classify tries the model first and falls back to keyword rules on any failure.
func (s *ClassifierService) Classify(ctx context.Context, title, description string, departments []models.Department) models.Classification {
	start := time.Now()
	result, err := s.classifyWithAI(ctx, title, description, departments)
	if err != nil {
		if errors.Is(err, ai.ErrNotConfigured) {
			s.logger.Debug("ai classification disabled, using fallback")
		} else {
			s.logger.Warn("ai classification failed, using fallback",
				zap.String("code", appErrors.ErrClassification.Code),
				zap.Error(err),
			)
		}
		result = FallbackClassify(title, description, departments)
	}
	s.metrics.RecordClassification(result.Source, time.Since(start))
	return result
}

func (s *ClassifierService) classifyWithAI(ctx context.Context, title, description string, departments []models.Department) (models.Classification, error) {
	if s.ai == nil || !s.ai.Enabled() {
		return models.Classification{}, ai.ErrNotConfigured
	}
	if len(departments) == 0 {
		return models.Classification{}, fmt.Errorf("no departments configured")
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	text, err := s.ai.Generate(callCtx, BuildClassificationPrompt(title, description, departments))
	if err != nil {
		return models.Classification{}, err
	}
	return ParseClassification(text, departments)
}

// BuildClassificationPrompt lists every department with its description and asks for strict JSON.
func BuildClassificationPrompt(title, description string, departments []models.Department) string {
	var b strings.Builder
	b.WriteString("You classify college grievances. Read the grievance and route it to one department.\n\n")
	fmt.Fprintf(&b, "Title: %s\n", clip(title))
	fmt.Fprintf(&b, "Description: %s\n\n", clip(description))
	b.WriteString("Departments:\n")
	names := make([]string, 0, len(departments))
	for _, d := range departments {
		fmt.Fprintf(&b, "- %s: %s\n", d.Name, d.Description)
		names = append(names, d.Name)
	}
	b.WriteString("\nChoose:\n")
	fmt.Fprintf(&b, "- department: exactly one of [%s]\n", strings.Join(names, ", "))
	b.WriteString("- priority: one of [High, Medium, Low] by urgency and severity\n")
	b.WriteString("- reason: one short sentence\n")
	b.WriteString("- confidence: a number between 0 and 1\n\n")
	b.WriteString(`Reply with JSON only, shaped like {"department": "...", "priority": "...", "reason": "...", "confidence": 0.9}`)
	return b.String()
}

type aiClassification struct {
	Department string   `json:"department"`
	Priority   string   `json:"priority"`
	Reason     string   `json:"reason"`
	Confidence *float64 `json:"confidence"`
}

// ParseClassification decodes a model reply and checks it against departments.
func ParseClassification(text string, departments []models.Department) (models.Classification, error) {
	var raw aiClassification
	if err := json.Unmarshal([]byte(ai.StripCodeFences(text)), &raw); err != nil {
		return models.Classification{}, fmt.Errorf("decode model reply: %w", err)
	}

	department, ok := matchDepartment(raw.Department, departments)
	if !ok {
		return models.Classification{}, fmt.Errorf("unknown department %q", raw.Department)
	}
	priority, ok := models.ParsePriority(raw.Priority)
	if !ok {
		return models.Classification{}, fmt.Errorf("invalid priority %q", raw.Priority)
	}
	confidence := defaultAIConfidence
	if raw.Confidence != nil {
		confidence = *raw.Confidence
	}
	if confidence < 0 || confidence > 1 {
		return models.Classification{}, fmt.Errorf("confidence %v out of range", confidence)
	}
	reason := strings.TrimSpace(raw.Reason)
	if reason == "" {
		reason = defaultAIReason
	}

	return models.Classification{
		Department: department,
		Priority:   priority,
		Reason:     reason,
		Confidence: confidence,
		Source:     models.SourceAI,
	}, nil
}

// FallbackClassify applies the keyword rules. The first department whose name appears in the
// text, or whose description pairs with a text keyword, wins; otherwise the first department.
func FallbackClassify(title, description string, departments []models.Department) models.Classification {
	department := DefaultDepartment
	if len(departments) > 0 {
		department = departments[0].Name
	}
	text := strings.ToLower(title + " " + description)

	for _, d := range departments {
		if departmentMatches(d, text) {
			department = d.Name
			break
		}
	}

	priority := models.PriorityMedium
	if containsAny(text, urgentKeywords) {
		priority = models.PriorityHigh
	} else if containsAny(text, minorKeywords) {
		priority = models.PriorityLow
	}

	return models.Classification{
		Department: department,
		Priority:   priority,
		Reason:     FallbackReason,
		Confidence: FallbackConfidence,
		Source:     models.SourceFallback,
	}
}

// ManualClassification is used when the submitter picks the department.
func ManualClassification(department string) models.Classification {
	return models.Classification{
		Department: department,
		Priority:   models.PriorityMedium,
		Reason:     ManualReason,
		Confidence: ManualConfidence,
		Source:     models.SourceManual,
	}
}

func departmentMatches(d models.Department, text string) bool {
	name := strings.ToLower(strings.TrimSpace(d.Name))
	if name != "" && strings.Contains(text, name) {
		return true
	}
	desc := strings.ToLower(d.Description)
	for _, route := range keywordRoutes {
		if strings.Contains(desc, route.descKeyword) && containsAny(text, route.textKeywords) {
			return true
		}
	}
	return false
}

// matchDepartment resolves name case-insensitively to the canonical department name.
func matchDepartment(name string, departments []models.Department) (string, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", false
	}
	for _, d := range departments {
		if strings.EqualFold(d.Name, name) {
			return d.Name, true
		}
	}
	return "", false
}

func containsAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}

func clip(s string) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= maxPromptFieldLength {
		return string(r)
	}
	return string(r[:maxPromptFieldLength])
}
