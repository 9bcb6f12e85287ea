package vulnsync

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// StartRun opens a new run log entry in the started state. The returned
// record is owned by the run that created it; only that run mutates it.
func StartRun(db *gorm.DB, kind string) (*ImportRun, error) {
	run := &ImportRun{
		Kind:      kind,
		Status:    RunStatusStarted,
		StartedAt: time.Now().UTC(),
	}
	if result := db.Create(run); result.Error != nil {
		return nil, fmt.Errorf("could not create import run: %w", result.Error)
	}
	return run, nil
}

// SaveCounters persists the running counters. Importers call this inside
// the same transaction that committed the page or message the counters
// reflect, so a rollback also rolls the counters back.
func (r *ImportRun) SaveCounters(db *gorm.DB) error {
	result := db.Model(&ImportRun{}).Where("run_id = ?", r.RunID).Updates(map[string]any{
		"processed": r.Processed,
		"created":   r.Created,
		"updated":   r.Updated,
	})
	if result.Error != nil {
		return fmt.Errorf("could not save run counters: %w", result.Error)
	}
	return nil
}

// Complete freezes the run in the completed state.
func (r *ImportRun) Complete(db *gorm.DB) error {
	return r.finalize(db, RunStatusCompleted, "")
}

// Fail freezes the run in the failed state and records the cause.
func (r *ImportRun) Fail(db *gorm.DB, cause error) error {
	message := ""
	if cause != nil {
		message = cause.Error()
	}
	return r.finalize(db, RunStatusFailed, message)
}

func (r *ImportRun) finalize(db *gorm.DB, status, errorMessage string) error {
	now := time.Now().UTC()
	r.Status = status
	r.CompletedAt = &now
	r.ErrorMessage = errorMessage
	if result := db.Save(r); result.Error != nil {
		return fmt.Errorf("could not finalize import run: %w", result.Error)
	}
	return nil
}
