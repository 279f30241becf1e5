package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	// SubmissionStatusPending is the initial state set at upload time.
	SubmissionStatusPending = "pending"
	// SubmissionStatusCompleted indicates an Evaluation has been persisted.
	SubmissionStatusCompleted = "completed"
	// SubmissionStatusFailed indicates evaluation could not finish.
	SubmissionStatusFailed = "failed"
)

// Submission represents one uploaded document and its processing status.
// RubricID is a weak reference: the rubric may be deleted independently.
type Submission struct {
	ID            string      `gorm:"type:varchar(36);primaryKey" json:"id"`
	OwnerID       string      `gorm:"size:64;not null;index" json:"owner_id"`
	RubricID      string      `gorm:"type:varchar(36);not null;index" json:"rubric_id"`
	Filename      string      `gorm:"size:255;not null" json:"filename"`
	StoragePath   string      `gorm:"size:512;not null" json:"storage_path"`
	FileType      string      `gorm:"size:128" json:"file_type"`
	Status        string      `gorm:"size:32;not null;index" json:"status"`
	FailureReason string      `gorm:"type:text" json:"failure_reason"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
	Evaluation    *Evaluation `gorm:"foreignKey:SubmissionID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"evaluation,omitempty"`
}

// BeforeCreate assigns an opaque identifier and the initial status.
func (s *Submission) BeforeCreate(*gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.Status == "" {
		s.Status = SubmissionStatusPending
	}
	return nil
}

// IsTerminal reports whether the submission can no longer change status.
func (s Submission) IsTerminal() bool {
	return IsTerminalStatus(s.Status)
}

// EffectiveStatus resolves the status readers should display.
// An existing Evaluation is the authoritative completion signal.
func (s Submission) EffectiveStatus() string {
	return EffectiveStatus(s.Status, s.Evaluation != nil)
}

// IsTerminalStatus reports whether status is completed or failed.
func IsTerminalStatus(status string) bool {
	return status == SubmissionStatusCompleted || status == SubmissionStatusFailed
}

// IsValidStatus reports whether status is one of the lifecycle literals.
func IsValidStatus(status string) bool {
	return status == SubmissionStatusPending || IsTerminalStatus(status)
}

// CanTransition reports whether the lifecycle allows moving from one status to another.
// Only pending may move, and only into a terminal state.
func CanTransition(from, to string) bool {
	return from == SubmissionStatusPending && IsTerminalStatus(to)
}

// EffectiveStatus treats a submission with an evaluation as completed.
func EffectiveStatus(stored string, hasEvaluation bool) string {
	if hasEvaluation {
		return SubmissionStatusCompleted
	}
	return stored
}
