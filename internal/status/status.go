package status

import "errors"

var (
	ErrQueueNotFound          = errors.New("queue: queue not found")
	ErrTokenNotFound          = errors.New("queue: token not found")
	ErrQueueInactive          = errors.New("queue: queue is not accepting joins")
	ErrUserAlreadyActive      = errors.New("queue: user already has an active token")
	ErrCapacityExceeded       = errors.New("queue: queue has reached its maximum capacity")
	ErrUnsupportedTokenClass  = errors.New("queue: token class not supported by this queue")
	ErrInvalidGroupSize       = errors.New("queue: group must have at least 2 members")
	ErrAccessDenied           = errors.New("queue: access denied")
	ErrReorderMismatch        = errors.New("queue: reorder must preserve the existing token set")
	ErrPersistenceUnavailable = errors.New("store: persistence unavailable")
)
