package models

import (
	"time"
)

// Queue is one waiting line for one service at one place, owned by a provider.
// Tokens keeps insertion order; join order is the FIFO tiebreaker within a
// priority band. PendingEmergencyTokens holds emergency requests awaiting a
// provider/admin decision and is never counted against capacity.
type Queue struct {
	ID          string `json:"id"`
	ProviderID  string `json:"provider_id"`
	PlaceID     string `json:"place_id"`
	ServiceID   string `json:"service_id"`
	ServiceName string `json:"service_name"`

	IsActive                  bool `json:"is_active"`
	MaxCapacity               *int `json:"max_capacity,omitempty"`
	SupportsGroupToken        bool `json:"supports_group_token"`
	EmergencySupport          bool `json:"emergency_support"`
	EmergencyPriorityWeight   int  `json:"emergency_priority_weight"`
	RequiresEmergencyApproval bool `json:"requires_emergency_approval"`
	AutoApproveEmergency      bool `json:"auto_approve_emergency"`

	TokenCounter           int           `json:"token_counter"`
	Tokens                 []*QueueToken `json:"tokens"`
	PendingEmergencyTokens []*QueueToken `json:"pending_emergency_tokens"`

	// EstimatedWaitTime is in minutes, maintained by the background estimator.
	EstimatedWaitTime int             `json:"estimated_wait_time"`
	Statistics        QueueStatistics `json:"statistics"`
	StartTime         time.Time       `json:"start_time"`
}

type QueueStatistics struct {
	TotalServed      int `json:"total_served"`
	TotalCancelled   int `json:"total_cancelled"`
	DailyUsersServed int `json:"daily_users_served"`
}

// NewQueue returns an active queue with an empty token list.
func NewQueue(id, providerID, serviceName, placeID, serviceID string) *Queue {
	return &Queue{
		ID:                      id,
		ProviderID:              providerID,
		PlaceID:                 placeID,
		ServiceID:               serviceID,
		ServiceName:             serviceName,
		IsActive:                true,
		EmergencyPriorityWeight: 10,
		Tokens:                  []*QueueToken{},
		PendingEmergencyTokens:  []*QueueToken{},
		StartTime:               time.Now(),
	}
}

// ActiveTokenCount counts WAITING and IN_SERVICE tokens, the figure capacity
// checks run against. Pending emergency tokens do not count.
func (q *Queue) ActiveTokenCount() int {
	n := 0
	for _, t := range q.Tokens {
		if t.IsActive() {
			n++
		}
	}
	return n
}

// WaitingCount counts tokens still waiting for dispatch.
func (q *Queue) WaitingCount() int {
	n := 0
	for _, t := range q.Tokens {
		if t.Status == TokenWaiting {
			n++
		}
	}
	return n
}

// FindToken returns the token with the given id from the active list.
func (q *Queue) FindToken(tokenID string) *QueueToken {
	for _, t := range q.Tokens {
		if t.TokenID == tokenID {
			return t
		}
	}
	return nil
}

// FindPendingToken returns the pending emergency token with the given id.
func (q *Queue) FindPendingToken(tokenID string) *QueueToken {
	for _, t := range q.PendingEmergencyTokens {
		if t.TokenID == tokenID {
			return t
		}
	}
	return nil
}

// HasActiveTokenFor reports whether the user already holds a WAITING or
// IN_SERVICE token in this queue.
func (q *Queue) HasActiveTokenFor(userID string) bool {
	for _, t := range q.Tokens {
		if t.UserID == userID && t.IsActive() {
			return true
		}
	}
	return false
}

// HasToken reports whether the user appears anywhere in the queue, including
// the pending emergency list.
func (q *Queue) HasToken(userID string) bool {
	for _, t := range q.Tokens {
		if t.UserID == userID {
			return true
		}
	}
	for _, t := range q.PendingEmergencyTokens {
		if t.UserID == userID {
			return true
		}
	}
	return false
}
