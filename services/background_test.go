package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"queueless/models"
)

func TestUpdateAllQueueWaitTimes(t *testing.T) {
	svc, st, pub := setupTestEngine()
	ctx := context.Background()

	seedQueue(st, "busy", func(q *models.Queue) {
		q.Tokens = []*models.QueueToken{
			{TokenID: "T-001", UserID: "u1", Status: models.TokenWaiting, IssuedAt: time.Now()},
			{TokenID: "T-002", UserID: "u2", Status: models.TokenWaiting, IssuedAt: time.Now()},
			{TokenID: "T-003", UserID: "u3", Status: models.TokenInService, IssuedAt: time.Now()},
		}
	})
	seedQueue(st, "idle", nil)
	seedQueue(st, "closed", func(q *models.Queue) {
		q.IsActive = false
		q.Tokens = []*models.QueueToken{
			{TokenID: "T-001", UserID: "u4", Status: models.TokenWaiting, IssuedAt: time.Now()},
		}
	})

	svc.updateAllQueueWaitTimes(ctx)

	// 2 waiting x 5 minutes; the in-service token does not count.
	busy, _ := st.Load(ctx, "busy")
	assert.Equal(t, 10, busy.EstimatedWaitTime)

	idle, _ := st.Load(ctx, "idle")
	assert.Equal(t, 0, idle.EstimatedWaitTime)

	// Inactive queues get their estimate persisted but are not broadcast.
	closed, _ := st.Load(ctx, "closed")
	assert.Equal(t, 5, closed.EstimatedWaitTime)
	assert.Equal(t, 1, pub.count("queues-busy"))
	assert.Equal(t, 0, pub.count("queues-closed"))
}

func TestUpdateAllQueueWaitTimes_FailureIsolation(t *testing.T) {
	svc, st, _ := setupTestEngine()
	ctx := context.Background()

	seedQueue(st, "bad", func(q *models.Queue) {
		q.Tokens = []*models.QueueToken{
			{TokenID: "T-001", UserID: "u1", Status: models.TokenWaiting, IssuedAt: time.Now()},
		}
	})
	seedQueue(st, "good", func(q *models.Queue) {
		q.Tokens = []*models.QueueToken{
			{TokenID: "T-001", UserID: "u2", Status: models.TokenWaiting, IssuedAt: time.Now()},
			{TokenID: "T-002", UserID: "u3", Status: models.TokenWaiting, IssuedAt: time.Now()},
		}
	})
	st.failFor["bad"] = true

	svc.updateAllQueueWaitTimes(ctx)

	good, _ := st.Load(ctx, "good")
	assert.Equal(t, 10, good.EstimatedWaitTime, "one queue's failure must not abort the sweep")
}

func TestCleanupExpiredTokens(t *testing.T) {
	svc, st, _ := setupTestEngine()
	ctx := context.Background()

	old := time.Now().Add(-25 * time.Hour)
	seedQueue(st, "q1", func(q *models.Queue) {
		q.Tokens = []*models.QueueToken{
			{TokenID: "T-001", UserID: "expired-user", Status: models.TokenWaiting, IssuedAt: old},
			{TokenID: "T-002", UserID: "fresh-user", Status: models.TokenWaiting, IssuedAt: time.Now()},
			{TokenID: "T-003", UserID: "done-user", Status: models.TokenCompleted, IssuedAt: old},
		}
		q.PendingEmergencyTokens = []*models.QueueToken{
			{TokenID: "E-004", UserID: "pending-user", Status: models.TokenPending, IssuedAt: old},
		}
	})
	svc.guard.RecordJoin("expired-user", old)
	svc.guard.RecordJoin("fresh-user", time.Now())

	svc.cleanupExpiredTokens(ctx)

	saved, err := st.Load(ctx, "q1")
	require.NoError(t, err)
	require.Len(t, saved.Tokens, 1)
	assert.Equal(t, "T-002", saved.Tokens[0].TokenID)
	assert.Empty(t, saved.PendingEmergencyTokens, "pending tokens age out too")

	// Reaping an active token releases its user; fresh users stay tracked.
	assert.True(t, svc.guard.CanJoin("expired-user"))
	assert.False(t, svc.guard.CanJoin("fresh-user"))
}

func TestCleanupExpiredTokens_NoChangesNoSave(t *testing.T) {
	svc, st, pub := setupTestEngine()
	ctx := context.Background()

	seedQueue(st, "q1", func(q *models.Queue) {
		q.Tokens = []*models.QueueToken{
			{TokenID: "T-001", UserID: "u1", Status: models.TokenWaiting, IssuedAt: time.Now()},
		}
	})

	svc.cleanupExpiredTokens(ctx)

	assert.Equal(t, 0, st.saves("q1"), "untouched queues are not re-persisted")
	assert.Equal(t, 0, pub.count("queues-q1"))
}

func TestStartBackgroundAndStop(t *testing.T) {
	st := newMemStore()
	seedQueue(st, "q1", func(q *models.Queue) {
		q.Tokens = []*models.QueueToken{
			{TokenID: "T-001", UserID: "u1", Status: models.TokenWaiting, IssuedAt: time.Now()},
		}
	})

	cfg := testConfig()
	cfg.WaitEstimatorInterval = 10 * time.Millisecond
	cfg.ExpiryReaperInterval = 10 * time.Millisecond
	cfg.GuardCleanupInterval = 10 * time.Millisecond

	svc := NewQueueService(st, newFakePublisher(), newFakeExportCache(), NewParticipationGuard(time.Minute), nil, cfg)
	svc.StartBackground()

	assert.Eventually(t, func() bool {
		q, err := st.Load(context.Background(), "q1")
		return err == nil && q.EstimatedWaitTime == 5
	}, time.Second, 10*time.Millisecond)

	done := make(chan struct{})
	go func() {
		svc.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not drain background goroutines")
	}
}
