package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/noah-isme/grievance-api/internal/models"
	"github.com/noah-isme/grievance-api/pkg/kv"
)

const aiLogKeyPrefix = "ai_log:"

// AILogRepository stores write-once classification log entries.
type AILogRepository struct {
	store kv.Store
}

// NewAILogRepository constructs an AILogRepository.
func NewAILogRepository(store kv.Store) *AILogRepository {
	return &AILogRepository{store: store}
}

// Create writes entry under its id.
func (r *AILogRepository) Create(ctx context.Context, entry *models.AILog) error {
	if err := kv.SetJSON(ctx, r.store, aiLogKeyPrefix+entry.ID, entry); err != nil {
		return fmt.Errorf("save ai log %s: %w", entry.ID, err)
	}
	return nil
}

// ListRecent returns every entry ordered newest first.
func (r *AILogRepository) ListRecent(ctx context.Context) ([]models.AILog, error) {
	raws, err := r.store.ScanPrefix(ctx, aiLogKeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("scan ai logs: %w", err)
	}
	logs := make([]models.AILog, 0, len(raws))
	for _, raw := range raws {
		var entry models.AILog
		if err := json.Unmarshal(raw, &entry); err != nil {
			return nil, fmt.Errorf("decode ai log: %w", err)
		}
		logs = append(logs, entry)
	}
	sort.SliceStable(logs, func(i, j int) bool {
		return logs[i].Timestamp.After(logs[j].Timestamp)
	})
	return logs, nil
}
