package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"pivoine.art/gamification/internal/entity"
	gamificationDto "pivoine.art/gamification/internal/modules/gamification/dto"
	"pivoine.art/gamification/pkg/apperror"
	"pivoine.art/gamification/pkg/logger"
)

const (
	EventRecordingPublished = "recording.published"
	EventRecordingFeatured  = "recording.featured"
	EventRecordingPlayed    = "recording.played"
	EventRecordingCompleted = "recording.completed"
	EventCommentCreated     = "comment.created"
)

// Event is a domain action on the platform that may earn points.
type Event struct {
	Type        string
	UserID      uuid.UUID
	RecordingID *uuid.UUID
	Collection  string
}

// EventFromRequest converts a validated request into an Event.
func EventFromRequest(req gamificationDto.EventRequest) (Event, error) {
	ev := Event{Type: req.Type, Collection: req.Collection}
	if req.UserID != "" {
		id, err := uuid.Parse(req.UserID)
		if err != nil {
			return Event{}, fmt.Errorf("%w: user_id", apperror.ErrInvalidInput)
		}
		ev.UserID = id
	}
	if req.RecordingID != "" {
		id, err := uuid.Parse(req.RecordingID)
		if err != nil {
			return Event{}, fmt.Errorf("%w: recording_id", apperror.ErrInvalidInput)
		}
		ev.RecordingID = &id
	}
	return ev, nil
}

// Process runs the whole chain for one event: award, then the event's
// achievement category, then the special category. It stops at the first
// error and returns it.
func (s *gamificationService) Process(ctx context.Context, ev Event) error {
	var (
		userID   uuid.UUID
		action   string
		category string
	)

	switch ev.Type {
	case EventRecordingPublished, EventRecordingFeatured:
		rec, err := s.recordingOf(ctx, ev)
		if err != nil {
			return err
		}
		userID = rec.UserCreated
		if ev.Type == EventRecordingPublished {
			action = ActionRecordingCreate
		} else {
			action = ActionRecordingFeatured
		}
		category = entity.CategoryRecordings

	case EventRecordingPlayed, EventRecordingCompleted:
		if ev.UserID == uuid.Nil {
			return fmt.Errorf("%w: user_id is required", apperror.ErrInvalidInput)
		}
		rec, err := s.recordingOf(ctx, ev)
		if err != nil {
			return err
		}
		userID = ev.UserID
		// plays of one's own recordings earn nothing but still count for completionist
		if rec.UserCreated != ev.UserID {
			if ev.Type == EventRecordingPlayed {
				action = ActionRecordingPlay
			} else {
				action = ActionRecordingComplete
			}
		}
		category = entity.CategoryPlayback

	case EventCommentCreated:
		if ev.UserID == uuid.Nil {
			return fmt.Errorf("%w: user_id is required", apperror.ErrInvalidInput)
		}
		if ev.Collection != entity.CollectionRecordings {
			return nil
		}
		userID = ev.UserID
		action = ActionCommentCreate
		category = entity.CategorySocial

	default:
		return fmt.Errorf("%w: event type %q", apperror.ErrInvalidInput, ev.Type)
	}

	if action != "" {
		if err := s.AwardPoints(ctx, userID, action, ev.RecordingID); err != nil {
			return err
		}
	}

	if err := s.CheckAchievements(ctx, userID, category); err != nil {
		return err
	}
	return s.CheckAchievements(ctx, userID, entity.CategorySpecial)
}

func (s *gamificationService) recordingOf(ctx context.Context, ev Event) (*entity.Recording, error) {
	if ev.RecordingID == nil {
		return nil, fmt.Errorf("%w: recording_id is required", apperror.ErrInvalidInput)
	}
	return s.repo.FindRecording(ctx, *ev.RecordingID)
}

// Dispatch is the fire-and-forget boundary. Failures are logged and counted,
// never returned, so the action that caused the event is never blocked.
func (s *gamificationService) Dispatch(ctx context.Context, ev Event) {
	err := s.Process(ctx, ev)
	if err == nil {
		return
	}

	s.metrics.ChainFailure(StageEvent)
	s.log.Warn("gamification event dropped",
		logger.String("type", ev.Type),
		logger.String("user_id", ev.UserID.String()),
		logger.Err(err))
}
