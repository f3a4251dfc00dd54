package services

import (
	"context"
	"log"
	"time"

	"queueless/internal/status"
	"queueless/models"
)

// ApproveEmergency resolves a pending emergency token. Only an admin or the
// queue's own provider may decide. Approval moves the token into the active
// list with the queue's priority weight applied; rejection discards it.
// Either way the token leaves the pending list and the owning user is
// notified on their personal channel.
func (s *QueueService) ApproveEmergency(ctx context.Context, actor Actor, queueID, tokenID string, approve bool, reason string) (*models.Queue, error) {
	unlock := s.lockQueue(queueID)
	defer unlock()

	queue, err := s.loadQueue(ctx, queueID)
	if err != nil {
		return nil, err
	}

	if !actor.Admin && actor.ID != queue.ProviderID {
		return nil, status.ErrAccessDenied
	}

	var token *models.QueueToken
	for i, t := range queue.PendingEmergencyTokens {
		if t.TokenID == tokenID {
			token = t
			queue.PendingEmergencyTokens = append(queue.PendingEmergencyTokens[:i], queue.PendingEmergencyTokens[i+1:]...)
			break
		}
	}
	if token == nil {
		return nil, status.ErrTokenNotFound
	}

	now := time.Now()
	if approve {
		token.Status = models.TokenWaiting
		token.Priority = queue.EmergencyPriorityWeight
		queue.Tokens = append(queue.Tokens, token)
	}

	updated, err := s.saveAndBroadcast(ctx, queue)
	if err != nil {
		s.monitor.TrackOperation("approve_emergency", queueID, "error")
		return nil, err
	}

	if approve {
		s.guard.RecordJoin(token.UserID, now)
		s.notifyEmergencyDecision(queueID, token, true, "Your emergency token has been approved")
	} else {
		message := reason
		if message == "" {
			message = "Your emergency request was rejected"
		}
		s.notifyEmergencyDecision(queueID, token, false, message)
	}
	s.monitor.TrackOperation("approve_emergency", queueID, "success")

	log.Printf("Emergency token %s in queueId=%s decided: approved=%v", tokenID, queueID, approve)
	return updated, nil
}

func (s *QueueService) notifyEmergencyDecision(queueID string, token *models.QueueToken, approved bool, message string) {
	s.publisher.Publish("user-"+token.UserID, map[string]any{
		"type":     "emergency_decision",
		"token_id": token.TokenID,
		"queue_id": queueID,
		"approved": approved,
		"message":  message,
	})
}

// GetPendingEmergency returns the emergency tokens awaiting a decision.
func (s *QueueService) GetPendingEmergency(ctx context.Context, queueID string) ([]*models.QueueToken, error) {
	unlock := s.lockQueue(queueID)
	defer unlock()

	queue, err := s.loadQueue(ctx, queueID)
	if err != nil {
		return nil, err
	}
	return queue.PendingEmergencyTokens, nil
}
