package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"queueless/internal/status"
	"queueless/models"
	"queueless/utils"
)

// ResetOptions controls a queue reset. PreserveData snapshots the queue
// before clearing it; the snapshot is stored through the export cache and
// referenced in the result.
type ResetOptions struct {
	PreserveData bool
}

type ResetResult struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	TokensReset int    `json:"tokens_reset"`
	ExportRef   string `json:"export_ref,omitempty"`
}

// ResetWithOptions clears all tokens and zeroes the counter. Only an admin or
// the owning provider may reset. Every affected user is released from the
// participation guard so they can rejoin immediately.
func (s *QueueService) ResetWithOptions(ctx context.Context, actor Actor, queueID string, opts ResetOptions) (*ResetResult, error) {
	unlock := s.lockQueue(queueID)
	defer unlock()

	queue, err := s.loadQueue(ctx, queueID)
	if err != nil {
		return nil, err
	}

	if !actor.Admin && actor.ID != queue.ProviderID {
		return nil, status.ErrAccessDenied
	}

	result := &ResetResult{}

	if opts.PreserveData && s.exports != nil {
		data, err := json.Marshal(queue)
		if err != nil {
			return nil, fmt.Errorf("export queue %s: %w", queueID, err)
		}
		code, err := utils.GenerateCode(6)
		if err != nil {
			return nil, fmt.Errorf("export queue %s: %w", queueID, err)
		}
		exportID := fmt.Sprintf("export-%s-%s", code, queueID)
		if err := s.exports.SaveExport(ctx, exportID, data); err != nil {
			return nil, fmt.Errorf("export queue %s before reset: %w", queueID, err)
		}
		result.ExportRef = exportID
		log.Printf("Queue data exported for queue %s with ID %s", queueID, exportID)
	}

	result.TokensReset = len(queue.Tokens)

	affectedUsers := make(map[string]struct{})
	for _, t := range queue.Tokens {
		affectedUsers[t.UserID] = struct{}{}
	}
	for _, t := range queue.PendingEmergencyTokens {
		affectedUsers[t.UserID] = struct{}{}
	}

	queue.Tokens = []*models.QueueToken{}
	queue.PendingEmergencyTokens = []*models.QueueToken{}
	queue.TokenCounter = 0
	queue.StartTime = time.Now()
	queue.Statistics.DailyUsersServed = 0

	if _, err := s.saveAndBroadcast(ctx, queue); err != nil {
		s.monitor.TrackOperation("reset", queueID, "error")
		return nil, err
	}

	for userID := range affectedUsers {
		s.guard.Release(userID)
	}
	s.monitor.TrackOperation("reset", queueID, "success")

	result.Success = true
	result.Message = "Queue reset successfully"
	log.Printf("Queue %s reset by %s, %d tokens cleared", queueID, actor.ID, result.TokensReset)
	return result, nil
}

// UpdateStatistics recounts TotalServed from the token list. Normally the
// counters are maintained incrementally; this is the manual recount the
// dashboard can trigger after a reorder or import.
func (s *QueueService) UpdateStatistics(ctx context.Context, queueID string) (*models.Queue, error) {
	unlock := s.lockQueue(queueID)
	defer unlock()

	queue, err := s.loadQueue(ctx, queueID)
	if err != nil {
		return nil, err
	}

	served := 0
	for _, t := range queue.Tokens {
		if t.Status == models.TokenCompleted {
			served++
		}
	}
	queue.Statistics.TotalServed = served

	updated, err := s.saveAndBroadcast(ctx, queue)
	if err != nil {
		return nil, err
	}

	log.Printf("Updated statistics for queue %s", queueID)
	return updated, nil
}
