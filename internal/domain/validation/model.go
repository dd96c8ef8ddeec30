// Package validation implements the review lifecycle for AI-produced
// assessments. A record is created pending and moves exactly once to a
// terminal reviewed state under an optimistic-concurrency commit.
package validation

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Status is the review state of a validation record.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusModified Status = "modified"
	StatusRejected Status = "rejected"
)

// Terminal reports whether the status is a reviewed end state.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusModified || s == StatusRejected
}

// Decision reports whether the status is a legal review decision.
func (s Status) Decision() bool {
	return s.Terminal()
}

// RequiresExpertResult reports whether a decision must carry a reviewer
// payload.
func (s Status) RequiresExpertResult() bool {
	return s == StatusApproved || s == StatusModified
}

// ValidationRecord tracks an AI-produced result through human review. The AI
// and expert payloads are opaque here; their shape belongs to the inference
// and presentation layers.
type ValidationRecord struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	SubjectID    string          `db:"subject_id" json:"subject_id"`
	OwnerID      string          `db:"owner_id" json:"owner_id"`
	AIResult     json.RawMessage `db:"ai_result" json:"ai_result"`
	ReviewerID   *string         `db:"reviewer_id" json:"reviewer_id,omitempty"`
	ExpertResult json.RawMessage `db:"expert_result" json:"expert_result,omitempty"`
	Comments     *string         `db:"comments" json:"comments,omitempty"`
	Status       Status          `db:"status" json:"status"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	ReviewedAt   *time.Time      `db:"reviewed_at" json:"reviewed_at,omitempty"`
	Version      int             `db:"version" json:"version"`
}

// GetVersion returns the optimistic-concurrency token.
func (r *ValidationRecord) GetVersion() int { return r.Version }

// SetVersion sets the optimistic-concurrency token.
func (r *ValidationRecord) SetVersion(v int) { r.Version = v }

// Error taxonomy. Callers distinguish these with errors.Is; the HTTP layer
// maps each to its own status code.
var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrNotFound            = errors.New("validation record not found")
	ErrInvalidTransition   = errors.New("record is not pending")
	ErrMissingExpertResult = errors.New("decision requires an expert result")
	ErrConflict            = errors.New("record was reviewed concurrently")
)
