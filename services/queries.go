package services

import (
	"context"
	"fmt"

	"queueless/internal/status"
	"queueless/models"
)

// GetByID returns the current queue snapshot.
func (s *QueueService) GetByID(ctx context.Context, queueID string) (*models.Queue, error) {
	return s.loadQueue(ctx, queueID)
}

func (s *QueueService) ListByProvider(ctx context.Context, providerID string) ([]*models.Queue, error) {
	queues, err := s.store.FindByProviderID(ctx, providerID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", status.ErrPersistenceUnavailable, err)
	}
	return queues, nil
}

func (s *QueueService) ListByPlace(ctx context.Context, placeID string) ([]*models.Queue, error) {
	queues, err := s.store.FindByPlaceID(ctx, placeID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", status.ErrPersistenceUnavailable, err)
	}
	return queues, nil
}

func (s *QueueService) ListByService(ctx context.Context, serviceID string) ([]*models.Queue, error) {
	queues, err := s.store.FindByServiceID(ctx, serviceID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", status.ErrPersistenceUnavailable, err)
	}
	return queues, nil
}

// ListByUser returns every queue in which the user currently appears,
// including pending emergency requests.
func (s *QueueService) ListByUser(ctx context.Context, userID string) ([]*models.Queue, error) {
	queues, err := s.store.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", status.ErrPersistenceUnavailable, err)
	}

	result := make([]*models.Queue, 0)
	for _, q := range queues {
		if q.HasToken(userID) {
			result = append(result, q)
		}
	}
	return result, nil
}

// ListActive returns all queues currently accepting joins.
func (s *QueueService) ListActive(ctx context.Context) ([]*models.Queue, error) {
	queues, err := s.store.FindActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", status.ErrPersistenceUnavailable, err)
	}
	return queues, nil
}

// TokenDetails is the visibility-filtered view of a token's user details.
type TokenDetails struct {
	UserID         string            `json:"user_id"`
	UserName       string            `json:"user_name,omitempty"`
	DetailsVisible bool              `json:"details_visible"`
	Purpose        string            `json:"purpose,omitempty"`
	Condition      string            `json:"condition,omitempty"`
	Notes          string            `json:"notes,omitempty"`
	CustomFields   map[string]string `json:"custom_fields,omitempty"`
}

// GetTokenDetails returns a token's user details filtered by the caller's
// relationship to the token: admins and the owning provider see what the
// visibility flags allow, the token's owner always sees everything, and
// IsPrivate blanks the free-text fields for everyone but the owner.
func (s *QueueService) GetTokenDetails(ctx context.Context, actor Actor, queueID, tokenID string) (*TokenDetails, error) {
	queue, err := s.loadQueue(ctx, queueID)
	if err != nil {
		return nil, err
	}

	token := queue.FindToken(tokenID)
	if token == nil {
		token = queue.FindPendingToken(tokenID)
	}
	if token == nil {
		return nil, status.ErrTokenNotFound
	}

	isOwner := actor.ID == token.UserID
	canView := isOwner
	if !canView && token.UserDetails == nil {
		canView = actor.Admin || actor.ID == queue.ProviderID
	} else if !canView && token.UserDetails != nil {
		if actor.Admin {
			canView = token.UserDetails.VisibleToAdmin
		} else if actor.ID == queue.ProviderID {
			canView = token.UserDetails.VisibleToProvider
		}
	}

	if !canView {
		return nil, status.ErrAccessDenied
	}

	details := &TokenDetails{
		UserID:         token.UserID,
		UserName:       token.UserName,
		DetailsVisible: true,
	}

	if token.UserDetails != nil && (isOwner || !token.UserDetails.IsPrivate) {
		details.Purpose = token.UserDetails.Purpose
		details.Condition = token.UserDetails.Condition
		details.Notes = token.UserDetails.Notes
		details.CustomFields = token.UserDetails.CustomFields
	}

	return details, nil
}
