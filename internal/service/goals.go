package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/benmercer/finboard/internal/domain"
	"github.com/benmercer/finboard/internal/store"
)

// ListGoals returns the user's saved runway goals.
func (s *Service) ListGoals(ctx context.Context, userID string) ([]domain.RunwayGoal, error) {
	settings, err := s.store.GetSettings(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get settings: %w", err)
	}
	if settings.SavedRunwayGoals == nil {
		return []domain.RunwayGoal{}, nil
	}
	return settings.SavedRunwayGoals, nil
}

// SaveGoal creates or updates a runway goal. A goal without an ID gets
// one assigned; an existing ID replaces that goal in place.
func (s *Service) SaveGoal(ctx context.Context, userID string, goal domain.RunwayGoal) (domain.RunwayGoal, error) {
	if goal.Name == "" {
		return domain.RunwayGoal{}, fmt.Errorf("%w: goal name is required", store.ErrValidation)
	}

	settings, err := s.store.GetSettings(ctx, userID)
	if err != nil {
		return domain.RunwayGoal{}, fmt.Errorf("get settings: %w", err)
	}

	goals := settings.SavedRunwayGoals
	if goal.ID == "" {
		goal.ID = uuid.New().String()
		goal.CreatedAt = s.now()
		goals = append(goals, goal)
	} else {
		found := false
		for i, g := range goals {
			if g.ID == goal.ID {
				goal.CreatedAt = g.CreatedAt
				goals[i] = goal
				found = true
				break
			}
		}
		if !found {
			return domain.RunwayGoal{}, fmt.Errorf("%w: goal %s", store.ErrNotFound, goal.ID)
		}
	}

	if _, err := s.store.PutSettings(ctx, userID, store.SettingsPatch{SavedRunwayGoals: goals}); err != nil {
		return domain.RunwayGoal{}, fmt.Errorf("put settings: %w", err)
	}
	return goal, nil
}

// DeleteGoal removes a saved goal by ID.
func (s *Service) DeleteGoal(ctx context.Context, userID, goalID string) error {
	settings, err := s.store.GetSettings(ctx, userID)
	if err != nil {
		return fmt.Errorf("get settings: %w", err)
	}

	goals := make([]domain.RunwayGoal, 0, len(settings.SavedRunwayGoals))
	found := false
	for _, g := range settings.SavedRunwayGoals {
		if g.ID == goalID {
			found = true
			continue
		}
		goals = append(goals, g)
	}
	if !found {
		return fmt.Errorf("%w: goal %s", store.ErrNotFound, goalID)
	}

	if _, err := s.store.PutSettings(ctx, userID, store.SettingsPatch{SavedRunwayGoals: goals}); err != nil {
		return fmt.Errorf("put settings: %w", err)
	}
	return nil
}

// GetSettings returns the user's settings with defaults applied.
func (s *Service) GetSettings(ctx context.Context, userID string) (domain.Settings, error) {
	settings, err := s.store.GetSettings(ctx, userID)
	if err != nil {
		return domain.Settings{}, fmt.Errorf("get settings: %w", err)
	}
	if settings.BucketTargets == nil {
		targets := domain.DefaultBucketTargets()
		settings.BucketTargets = &targets
	}
	return settings, nil
}

// UpdateSettings applies a partial settings update.
func (s *Service) UpdateSettings(ctx context.Context, userID string, patch store.SettingsPatch) (domain.Settings, error) {
	return s.store.PutSettings(ctx, userID, patch)
}
