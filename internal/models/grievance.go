package models

import (
	"encoding/json"
	"strings"
	"time"
)

// Priority ranks how quickly a grievance should be handled.
type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

// ParsePriority matches raw case-insensitively against the known priorities.
func ParsePriority(raw string) (Priority, bool) {
	for _, p := range []Priority{PriorityHigh, PriorityMedium, PriorityLow} {
		if strings.EqualFold(strings.TrimSpace(raw), string(p)) {
			return p, true
		}
	}
	return "", false
}

// GrievanceStatus is the lifecycle state of a grievance.
type GrievanceStatus string

const (
	StatusPending    GrievanceStatus = "Pending"
	StatusInProgress GrievanceStatus = "In Progress"
	StatusResolved   GrievanceStatus = "Resolved"
	StatusRejected   GrievanceStatus = "Rejected"
)

// Valid reports whether s is one of the four canonical statuses. Matching is exact.
func (s GrievanceStatus) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusResolved, StatusRejected:
		return true
	}
	return false
}

// ClassificationSource records which path produced a classification.
type ClassificationSource string

const (
	SourceAI       ClassificationSource = "ai"
	SourceFallback ClassificationSource = "fallback"
	SourceManual   ClassificationSource = "manual"
)

// Classification is the department and priority assigned to a grievance.
type Classification struct {
	Department string               `json:"department"`
	Priority   Priority             `json:"priority"`
	Reason     string               `json:"reason"`
	Confidence float64              `json:"confidence"`
	Source     ClassificationSource `json:"source"`
}

// Comment is an append-only note on a grievance.
type Comment struct {
	ID           string    `json:"id"`
	Text         string    `json:"text"`
	AuthorID     string    `json:"authorId"`
	AuthorName   string    `json:"authorName"`
	AuthorRole   UserRole  `json:"authorRole"`
	IsPrivileged bool      `json:"isPrivileged"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Grievance is a submitted complaint. The stored record always keeps the real submitter.
type Grievance struct {
	ID                 string          `json:"id"`
	Title              string          `json:"title"`
	Description        string          `json:"description"`
	Department         string          `json:"department"`
	Priority           Priority        `json:"priority"`
	Status             GrievanceStatus `json:"status"`
	IsAnonymous        bool            `json:"isAnonymous"`
	SubmitterID        string          `json:"submitterId"`
	SubmitterName      string          `json:"submitterName"`
	SubmitterEmail     *string         `json:"submitterEmail"`
	Attachment         json.RawMessage `json:"attachment"`
	CreatedAt          time.Time       `json:"createdAt"`
	UpdatedAt          time.Time       `json:"updatedAt"`
	Comments           []Comment       `json:"comments"`
	ManuallyClassified bool            `json:"manuallyClassified"`
}

// Identity placeholders used for unauthenticated and redacted submitters.
const (
	AnonymousSubmitterID = "anonymous"
	AnonymousName        = "Anonymous"
	UnknownName          = "Unknown"
)

// RedactedFor returns the grievance as viewer may see it. Anonymous submissions lose
// their identity fields for anyone who is not an admin or HOD.
func (g Grievance) RedactedFor(viewer Viewer) Grievance {
	out := g
	out.Comments = append([]Comment(nil), g.Comments...)
	if out.Comments == nil {
		out.Comments = []Comment{}
	}
	if g.IsAnonymous && !viewer.IsPrivileged() {
		out.SubmitterID = AnonymousSubmitterID
		out.SubmitterName = AnonymousName
		out.SubmitterEmail = nil
	}
	return out
}

// GrievanceFilter narrows list and export queries. Empty or "All" values match everything.
type GrievanceFilter struct {
	UserOnly   bool
	Priority   string
	Status     string
	Department string
}

// FilterAll is the sentinel meaning "no filter".
const FilterAll = "All"

// Matches applies the priority, status and department predicates.
func (f GrievanceFilter) Matches(g Grievance) bool {
	return matchField(f.Priority, string(g.Priority)) &&
		matchField(f.Status, string(g.Status)) &&
		matchField(f.Department, g.Department)
}

func matchField(filter, value string) bool {
	if filter == "" || filter == FilterAll {
		return true
	}
	return filter == value
}
