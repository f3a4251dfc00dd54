package services

import (
	"context"
	"log"
	"time"

	"queueless/internal/status"
	"queueless/models"
)

// ServeNext completes the token currently in service, if any, and promotes
// the next WAITING token. Selection keeps the first highest-priority token in
// insertion order, so emergency tokens preempt regular ones while join order
// breaks ties within a priority band. An empty queue is not an error.
func (s *QueueService) ServeNext(ctx context.Context, queueID string) (*models.Queue, error) {
	unlock := s.lockQueue(queueID)
	defer unlock()

	queue, err := s.loadQueue(ctx, queueID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	changed := false
	var releasedUser string

	for _, t := range queue.Tokens {
		if t.Status == models.TokenInService {
			completeToken(t, now)
			queue.Statistics.TotalServed++
			queue.Statistics.DailyUsersServed++
			releasedUser = t.UserID
			changed = true
			log.Printf("Completed previous in-service token: %s", t.TokenID)
			break
		}
	}

	var next *models.QueueToken
	for _, t := range queue.Tokens {
		if t.Status != models.TokenWaiting {
			continue
		}
		if next == nil || t.Priority > next.Priority {
			next = t
		}
	}

	if next != nil {
		next.Status = models.TokenInService
		next.ServedAt = &now
		changed = true
	}

	if !changed {
		log.Printf("No waiting tokens in queueId=%s", queueID)
		return queue, nil
	}

	updated, err := s.saveAndBroadcast(ctx, queue)
	if err != nil {
		s.monitor.TrackOperation("serve_next", queueID, "error")
		return nil, err
	}

	if releasedUser != "" {
		s.guard.Release(releasedUser)
	}
	s.monitor.TrackOperation("serve_next", queueID, "success")

	if next != nil {
		log.Printf("Token %s moved to IN_SERVICE", next.TokenID)
	}
	return updated, nil
}

// Complete marks a token COMPLETED and releases its user from the
// participation guard.
func (s *QueueService) Complete(ctx context.Context, queueID, tokenID string) (*models.Queue, error) {
	unlock := s.lockQueue(queueID)
	defer unlock()

	queue, err := s.loadQueue(ctx, queueID)
	if err != nil {
		return nil, err
	}

	token := queue.FindToken(tokenID)
	if token == nil {
		log.Printf("Token not found: %s", tokenID)
		return nil, status.ErrTokenNotFound
	}

	completeToken(token, time.Now())
	queue.Statistics.TotalServed++
	queue.Statistics.DailyUsersServed++

	updated, err := s.saveAndBroadcast(ctx, queue)
	if err != nil {
		s.monitor.TrackOperation("complete", queueID, "error")
		return nil, err
	}

	s.guard.Release(token.UserID)
	s.monitor.TrackOperation("complete", queueID, "success")

	log.Printf("Token %s marked COMPLETED", tokenID)
	return updated, nil
}

// Cancel removes a token from the active list or, failing that, the pending
// emergency list. Cancellation deletes the record; the user is released from
// the guard if the token still held a place in line. A second cancel of the
// same token returns ErrTokenNotFound and changes nothing.
func (s *QueueService) Cancel(ctx context.Context, queueID, tokenID string) (*models.Queue, error) {
	unlock := s.lockQueue(queueID)
	defer unlock()

	queue, err := s.loadQueue(ctx, queueID)
	if err != nil {
		return nil, err
	}

	var cancelled *models.QueueToken
	wasActive := false

	for i, t := range queue.Tokens {
		if t.TokenID == tokenID {
			cancelled = t
			wasActive = t.IsActive()
			queue.Tokens = append(queue.Tokens[:i], queue.Tokens[i+1:]...)
			break
		}
	}
	if cancelled == nil {
		for i, t := range queue.PendingEmergencyTokens {
			if t.TokenID == tokenID {
				cancelled = t
				queue.PendingEmergencyTokens = append(queue.PendingEmergencyTokens[:i], queue.PendingEmergencyTokens[i+1:]...)
				break
			}
		}
	}
	if cancelled == nil {
		log.Printf("Token not found for cancellation: %s", tokenID)
		return nil, status.ErrTokenNotFound
	}

	queue.Statistics.TotalCancelled++

	updated, err := s.saveAndBroadcast(ctx, queue)
	if err != nil {
		s.monitor.TrackOperation("cancel", queueID, "error")
		return nil, err
	}

	if wasActive {
		s.guard.Release(cancelled.UserID)
	}
	s.monitor.TrackOperation("cancel", queueID, "success")

	log.Printf("Token %s cancelled", tokenID)
	return updated, nil
}

// Reorder replaces the active token ordering with a caller-supplied one. The
// new order must be a permutation of the current token ids: nothing invented,
// nothing dropped, no duplicates.
func (s *QueueService) Reorder(ctx context.Context, queueID string, order []string) (*models.Queue, error) {
	unlock := s.lockQueue(queueID)
	defer unlock()

	queue, err := s.loadQueue(ctx, queueID)
	if err != nil {
		return nil, err
	}

	if len(order) != len(queue.Tokens) {
		return nil, status.ErrReorderMismatch
	}

	byID := make(map[string]*models.QueueToken, len(queue.Tokens))
	for _, t := range queue.Tokens {
		byID[t.TokenID] = t
	}

	reordered := make([]*models.QueueToken, 0, len(order))
	for _, tokenID := range order {
		token, ok := byID[tokenID]
		if !ok {
			return nil, status.ErrReorderMismatch
		}
		delete(byID, tokenID) // catches duplicates in the new order
		reordered = append(reordered, token)
	}
	queue.Tokens = reordered

	updated, err := s.saveAndBroadcast(ctx, queue)
	if err != nil {
		s.monitor.TrackOperation("reorder", queueID, "error")
		return nil, err
	}
	s.monitor.TrackOperation("reorder", queueID, "success")

	log.Printf("Queue reordered for queueId=%s", queueID)
	return updated, nil
}

// SetActive opens or closes the queue for new joins.
func (s *QueueService) SetActive(ctx context.Context, queueID string, active bool) (*models.Queue, error) {
	unlock := s.lockQueue(queueID)
	defer unlock()

	queue, err := s.loadQueue(ctx, queueID)
	if err != nil {
		return nil, err
	}

	queue.IsActive = active

	updated, err := s.saveAndBroadcast(ctx, queue)
	if err != nil {
		return nil, err
	}

	log.Printf("Queue %s active status changed to %v", queueID, active)
	return updated, nil
}

// CheckConsistency scans every queue for tokens that violate the single
// in-service invariant and logs what it finds. Serialization makes the
// invariant hold by construction; this is a startup diagnostic only and never
// repairs anything.
func (s *QueueService) CheckConsistency(ctx context.Context) (int, error) {
	queues, err := s.store.FindAll(ctx)
	if err != nil {
		return 0, err
	}

	violations := 0
	for _, queue := range queues {
		inService := 0
		for _, t := range queue.Tokens {
			if t.Status == models.TokenInService {
				inService++
			}
		}
		if inService > 1 {
			violations++
			log.Printf("Queue %s has %d IN_SERVICE tokens", queue.ID, inService)
		}
	}

	if violations == 0 {
		log.Println("Token status consistency check passed")
	}
	return violations, nil
}

func completeToken(token *models.QueueToken, now time.Time) {
	token.Status = models.TokenCompleted
	token.CompletedAt = &now
	if token.ServedAt != nil {
		token.ServiceDurationMinutes = int64(now.Sub(*token.ServedAt).Minutes())
	}
}
