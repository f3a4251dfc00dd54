package models

import (
	"time"
)

type TokenStatus string

const (
	TokenPending   TokenStatus = "PENDING"
	TokenWaiting   TokenStatus = "WAITING"
	TokenInService TokenStatus = "IN_SERVICE"
	TokenCompleted TokenStatus = "COMPLETED"
)

// GroupMember is one person covered by a group token besides the owner.
type GroupMember struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
}

// UserQueueDetails carries optional per-token context supplied by the user.
// Visibility flags control who may read the free-text fields; the engine
// stores them verbatim and filters on read.
type UserQueueDetails struct {
	Purpose           string            `json:"purpose,omitempty"`
	Condition         string            `json:"condition,omitempty"`
	Notes             string            `json:"notes,omitempty"`
	CustomFields      map[string]string `json:"custom_fields,omitempty"`
	IsPrivate         bool              `json:"is_private"`
	VisibleToProvider bool              `json:"visible_to_provider"`
	VisibleToAdmin    bool              `json:"visible_to_admin"`
}

// QueueToken is a single claim on service within a queue.
type QueueToken struct {
	TokenID  string      `json:"token_id"`
	UserID   string      `json:"user_id"`
	UserName string      `json:"user_name,omitempty"`
	Status   TokenStatus `json:"status"`

	// Priority is 0 for regular and group tokens. Emergency tokens carry the
	// queue's priority weight, but only once approved.
	Priority int `json:"priority"`

	IsGroup      bool          `json:"is_group,omitempty"`
	GroupMembers []GroupMember `json:"group_members,omitempty"`
	GroupSize    int           `json:"group_size,omitempty"`

	IsEmergency      bool   `json:"is_emergency,omitempty"`
	EmergencyDetails string `json:"emergency_details,omitempty"`

	IssuedAt               time.Time  `json:"issued_at"`
	ServedAt               *time.Time `json:"served_at,omitempty"`
	CompletedAt            *time.Time `json:"completed_at,omitempty"`
	ServiceDurationMinutes int64      `json:"service_duration_minutes,omitempty"`

	UserDetails *UserQueueDetails `json:"user_details,omitempty"`
}

// IsActive reports whether the token still holds a place in line.
func (t *QueueToken) IsActive() bool {
	return t.Status == TokenWaiting || t.Status == TokenInService
}
