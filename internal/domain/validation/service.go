package validation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dermview/dermview/internal/platform/websocket"
)

// Service enforces the validation lifecycle and announces transitions to the
// notification hub.
type Service struct {
	repo      ValidationRepository
	publisher websocket.EventPublisher
	logger    zerolog.Logger
}

// NewService creates the validation service. publisher may be nil in tests
// that only exercise the state machine.
func NewService(repo ValidationRepository, publisher websocket.EventPublisher, logger zerolog.Logger) *Service {
	return &Service{
		repo:      repo,
		publisher: publisher,
		logger:    logger.With().Str("component", "validation").Logger(),
	}
}

// SubmitForReview creates a pending record for an AI assessment and notifies
// reviewers. The AI payload is stored opaquely.
func (s *Service) SubmitForReview(ctx context.Context, subjectID, ownerID string, aiResult json.RawMessage) (*ValidationRecord, error) {
	if subjectID == "" {
		return nil, fmt.Errorf("%w: subject id is required", ErrInvalidInput)
	}
	if ownerID == "" {
		return nil, fmt.Errorf("%w: owner id is required", ErrInvalidInput)
	}
	if len(aiResult) == 0 || string(aiResult) == "null" {
		return nil, fmt.Errorf("%w: ai result is required", ErrInvalidInput)
	}

	rec := &ValidationRecord{
		SubjectID: subjectID,
		OwnerID:   ownerID,
		AIResult:  aiResult,
		Status:    StatusPending,
	}
	if err := s.repo.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("create validation: %w", err)
	}

	s.publish(ctx, websocket.Event{
		Type:      websocket.EventNewForReview,
		SubjectID: rec.SubjectID,
		OwnerID:   rec.OwnerID,
	})

	s.logger.Info().
		Str("validation_id", rec.ID.String()).
		Str("subject_id", rec.SubjectID).
		Str("owner_id", rec.OwnerID).
		Msg("submitted for review")
	return rec, nil
}

// Review moves a pending record to a terminal state exactly once. The commit
// is conditioned on the version read here; a concurrent reviewer winning the
// race surfaces as ErrConflict with no side effects.
func (s *Service) Review(ctx context.Context, id uuid.UUID, reviewerID string, decision Status, expertResult json.RawMessage, comments *string) (*ValidationRecord, error) {
	if reviewerID == "" {
		return nil, fmt.Errorf("%w: reviewer id is required", ErrInvalidInput)
	}
	if !decision.Decision() {
		return nil, fmt.Errorf("%w: unknown decision %q", ErrInvalidInput, decision)
	}
	if decision.RequiresExpertResult() && (len(expertResult) == 0 || string(expertResult) == "null") {
		return nil, fmt.Errorf("%w: decision %q", ErrMissingExpertResult, decision)
	}

	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.Status != StatusPending {
		return nil, fmt.Errorf("%w: status is %q", ErrInvalidTransition, rec.Status)
	}

	expectedVersion := rec.Version
	rec.Status = decision
	rec.ReviewerID = &reviewerID
	rec.ExpertResult = expertResult
	rec.Comments = comments

	if err := s.repo.CommitReview(ctx, rec, expectedVersion); err != nil {
		return nil, err
	}

	s.publish(ctx, websocket.Event{
		Type:         websocket.EventValidated,
		SubjectID:    rec.SubjectID,
		OwnerID:      rec.OwnerID,
		Decision:     string(rec.Status),
		ExpertResult: rec.ExpertResult,
	})

	s.logger.Info().
		Str("validation_id", rec.ID.String()).
		Str("reviewer_id", reviewerID).
		Str("decision", string(decision)).
		Msg("review committed")
	return rec, nil
}

// GetValidation returns one record, for the reconcile pull path.
func (s *Service) GetValidation(ctx context.Context, id uuid.UUID) (*ValidationRecord, error) {
	return s.repo.GetByID(ctx, id)
}

// ListPending returns pending records oldest-first, for reviewer work queues.
func (s *Service) ListPending(ctx context.Context, limit, offset int) ([]*ValidationRecord, int, error) {
	return s.repo.ListPending(ctx, limit, offset)
}

// ListByOwner returns an owner's records newest-first, for owner refresh.
func (s *Service) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]*ValidationRecord, int, error) {
	return s.repo.ListByOwner(ctx, ownerID, limit, offset)
}

func (s *Service) publish(ctx context.Context, ev websocket.Event) {
	if s.publisher == nil {
		return
	}
	ev.Timestamp = time.Now().UTC()
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.logger.Error().Err(err).Str("event", ev.Type).Msg("failed to publish event")
	}
}
