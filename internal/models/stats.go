package models

// GrievanceStats aggregates the grievances visible to an admin or HOD.
type GrievanceStats struct {
	Total          int            `json:"total"`
	HighPriority   int            `json:"highPriority"`
	MediumPriority int            `json:"mediumPriority"`
	LowPriority    int            `json:"lowPriority"`
	Pending        int            `json:"pending"`
	InProgress     int            `json:"inProgress"`
	Resolved       int            `json:"resolved"`
	Rejected       int            `json:"rejected"`
	ByDepartment   map[string]int `json:"byDepartment"`
}

// Add counts g.
func (s *GrievanceStats) Add(g Grievance) {
	s.Total++
	switch g.Priority {
	case PriorityHigh:
		s.HighPriority++
	case PriorityMedium:
		s.MediumPriority++
	case PriorityLow:
		s.LowPriority++
	}
	switch g.Status {
	case StatusPending:
		s.Pending++
	case StatusInProgress:
		s.InProgress++
	case StatusResolved:
		s.Resolved++
	case StatusRejected:
		s.Rejected++
	}
	if s.ByDepartment == nil {
		s.ByDepartment = make(map[string]int)
	}
	s.ByDepartment[g.Department]++
}

// UserStats aggregates a user's own submissions.
type UserStats struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	InProgress int `json:"inProgress"`
	Resolved   int `json:"resolved"`
	Rejected   int `json:"rejected"`
}

// Add counts g.
func (s *UserStats) Add(g Grievance) {
	s.Total++
	switch g.Status {
	case StatusPending:
		s.Pending++
	case StatusInProgress:
		s.InProgress++
	case StatusResolved:
		s.Resolved++
	case StatusRejected:
		s.Rejected++
	}
}
