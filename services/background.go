package services

import (
	"context"
	"log"
	"time"
)

// StartBackground launches the wait-time estimator, the expiry reaper and the
// participation-guard sweep. Each runs on its own ticker until Stop is
// called. Sweeps take the same per-queue locks as foreground requests, so
// they never race a concurrent join or serve.
func (s *QueueService) StartBackground() {
	s.wg.Add(1)
	go s.waitTimeEstimatorLoop()

	s.wg.Add(1)
	go s.expiryReaperLoop()

	s.wg.Add(1)
	go s.guardCleanupLoop()

	log.Printf("Started %d background goroutines", 3)
}

// Stop shuts the background loops down and waits for them to drain.
func (s *QueueService) Stop() {
	close(s.stopChan)
	s.wg.Wait()
}

func (s *QueueService) waitTimeEstimatorLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.WaitEstimatorInterval)
	defer ticker.Stop()

	log.Println("Wait time estimator started")

	for {
		select {
		case <-ticker.C:
			s.updateAllQueueWaitTimes(context.Background())
		case <-s.stopChan:
			log.Println("Wait time estimator stopping")
			return
		}
	}
}

func (s *QueueService) expiryReaperLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.ExpiryReaperInterval)
	defer ticker.Stop()

	log.Println("Expiry reaper started")

	for {
		select {
		case <-ticker.C:
			s.cleanupExpiredTokens(context.Background())
		case <-s.stopChan:
			log.Println("Expiry reaper stopping")
			return
		}
	}
}

func (s *QueueService) guardCleanupLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.GuardCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			removed := s.guard.Cleanup()
			log.Printf("Cleaned up user queue tracking: removed=%d size=%d", removed, s.guard.Size())
		case <-s.stopChan:
			return
		}
	}
}

// updateAllQueueWaitTimes recomputes every queue's estimated wait from its
// waiting-token count. Estimates are always persisted; only active queues are
// broadcast. One queue's failure never aborts the sweep for the rest.
func (s *QueueService) updateAllQueueWaitTimes(ctx context.Context) {
	start := time.Now()

	queues, err := s.store.FindAll(ctx)
	if err != nil {
		log.Printf("Error listing queues for wait time update: %v", err)
		return
	}

	for _, q := range queues {
		if err := s.updateQueueWaitTime(ctx, q.ID); err != nil {
			log.Printf("Error updating wait time for queue %s: %v", q.ID, err)
		}
	}

	s.monitor.TrackSweep("wait_estimator", time.Since(start))
}

func (s *QueueService) updateQueueWaitTime(ctx context.Context, queueID string) error {
	unlock := s.lockQueue(queueID)
	defer unlock()

	// Reload under the lock; the sweep's listing snapshot may be stale.
	queue, err := s.loadQueue(ctx, queueID)
	if err != nil {
		return err
	}

	queue.EstimatedWaitTime = queue.WaitingCount() * s.config.DefaultServiceMinutes

	if _, err := s.store.Save(ctx, queue); err != nil {
		return err
	}

	s.monitor.TrackWaitTime(queueID, queue.EstimatedWaitTime)
	if queue.IsActive {
		s.broadcastQueueUpdate(queue)
	}
	return nil
}

// cleanupExpiredTokens removes tokens older than the TTL, regardless of
// status, from every queue. Pending emergency tokens age out the same way.
// Only modified queues are persisted and broadcast.
func (s *QueueService) cleanupExpiredTokens(ctx context.Context) {
	start := time.Now()

	queues, err := s.store.FindAll(ctx)
	if err != nil {
		log.Printf("Error listing queues for token cleanup: %v", err)
		return
	}

	for _, q := range queues {
		if err := s.reapQueue(ctx, q.ID); err != nil {
			log.Printf("Error cleaning up expired tokens for queue %s: %v", q.ID, err)
		}
	}

	s.monitor.TrackSweep("expiry_reaper", time.Since(start))
}

func (s *QueueService) reapQueue(ctx context.Context, queueID string) error {
	unlock := s.lockQueue(queueID)
	defer unlock()

	queue, err := s.loadQueue(ctx, queueID)
	if err != nil {
		return err
	}

	cutoff := time.Now().Add(-s.config.TokenTTL)
	var expiredUsers []string

	keep := queue.Tokens[:0]
	for _, t := range queue.Tokens {
		if t.IssuedAt.Before(cutoff) {
			log.Printf("Removed expired token: %s", t.TokenID)
			if t.IsActive() {
				expiredUsers = append(expiredUsers, t.UserID)
			}
			continue
		}
		keep = append(keep, t)
	}
	modified := len(keep) != len(queue.Tokens)
	queue.Tokens = keep

	keepPending := queue.PendingEmergencyTokens[:0]
	for _, t := range queue.PendingEmergencyTokens {
		if t.IssuedAt.Before(cutoff) {
			log.Printf("Removed expired pending token: %s", t.TokenID)
			continue
		}
		keepPending = append(keepPending, t)
	}
	modified = modified || len(keepPending) != len(queue.PendingEmergencyTokens)
	queue.PendingEmergencyTokens = keepPending

	if !modified {
		return nil
	}

	if _, err := s.saveAndBroadcast(ctx, queue); err != nil {
		return err
	}

	for _, userID := range expiredUsers {
		s.guard.Release(userID)
	}
	return nil
}
