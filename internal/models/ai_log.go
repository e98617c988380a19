package models

import "time"

// AILog records one automatic classification decision. Entries are never modified.
type AILog struct {
	ID             string         `json:"id"`
	GrievanceID    string         `json:"grievanceId"`
	Classification Classification `json:"classification"`
	Timestamp      time.Time      `json:"timestamp"`
}

// MaxAILogs caps how many log entries a read returns.
const MaxAILogs = 50
