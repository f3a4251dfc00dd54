package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"queueless/config"
	"queueless/internal/status"
	"queueless/models"
	"queueless/monitoring"
	"queueless/utils"
)

// QueueStore is the persistence collaborator. Save is atomic per queue
// document; there are no cross-queue transactions.
type QueueStore interface {
	Load(ctx context.Context, queueID string) (*models.Queue, error)
	Save(ctx context.Context, queue *models.Queue) (*models.Queue, error)
	FindAll(ctx context.Context) ([]*models.Queue, error)
	FindByProviderID(ctx context.Context, providerID string) ([]*models.Queue, error)
	FindByPlaceID(ctx context.Context, placeID string) ([]*models.Queue, error)
	FindByServiceID(ctx context.Context, serviceID string) ([]*models.Queue, error)
	FindActive(ctx context.Context) ([]*models.Queue, error)
}

// Publisher is the broadcast collaborator. Fire-and-forget, no delivery
// guarantee.
type Publisher interface {
	Publish(channel string, message any)
}

// ExportCache stores queue snapshots taken before a reset.
type ExportCache interface {
	SaveExport(ctx context.Context, exportID string, data []byte) error
}

// Actor identifies the caller of operations that require provider or admin
// rights. Authentication itself happens upstream.
type Actor struct {
	ID    string
	Admin bool
}

// TokenRequest carries optional fields for a regular join.
type TokenRequest struct {
	UserName string
	Details  *models.UserQueueDetails
}

// QueueService is the queue admission, ordering and service-state engine.
// Every mutating operation is serialized per queue id: the per-queue mutex is
// held for the whole load-validate-mutate-save-broadcast cycle, so operations
// on the same queue never interleave while operations on different queues run
// in parallel.
type QueueService struct {
	store     QueueStore
	publisher Publisher
	exports   ExportCache
	guard     *ParticipationGuard
	monitor   *monitoring.Monitor
	config    *config.Config

	locks    sync.Map // queueID -> *sync.Mutex
	stopChan chan struct{}
	wg       sync.WaitGroup
}

func NewQueueService(store QueueStore, publisher Publisher, exports ExportCache, guard *ParticipationGuard, monitor *monitoring.Monitor, cfg *config.Config) *QueueService {
	return &QueueService{
		store:     store,
		publisher: publisher,
		exports:   exports,
		guard:     guard,
		monitor:   monitor,
		config:    cfg,
		stopChan:  make(chan struct{}),
	}
}

// lockQueue acquires the per-queue mutex and returns its unlock function.
func (s *QueueService) lockQueue(queueID string) func() {
	v, _ := s.locks.LoadOrStore(queueID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func (s *QueueService) loadQueue(ctx context.Context, queueID string) (*models.Queue, error) {
	queue, err := s.store.Load(ctx, queueID)
	if err != nil {
		if errors.Is(err, status.ErrQueueNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", status.ErrPersistenceUnavailable, err)
	}
	return queue, nil
}

// saveAndBroadcast persists the queue and, on success, fans the snapshot out
// to subscribers. A failed save surfaces as ErrPersistenceUnavailable and the
// in-memory mutation is discarded with it, so no partial state is observable.
func (s *QueueService) saveAndBroadcast(ctx context.Context, queue *models.Queue) (*models.Queue, error) {
	updated, err := s.store.Save(ctx, queue)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", status.ErrPersistenceUnavailable, err)
	}

	s.broadcastQueueUpdate(updated)
	s.trackDepth(updated)
	return updated, nil
}

func (s *QueueService) broadcastQueueUpdate(queue *models.Queue) {
	s.publisher.Publish("queues", queue)
	s.publisher.Publish("queues-"+queue.ID, queue)
	if queue.PlaceID != "" {
		s.publisher.Publish("places-"+queue.PlaceID+"-queues", queue)
	}
}

func (s *QueueService) trackDepth(queue *models.Queue) {
	waiting, inService := 0, 0
	for _, t := range queue.Tokens {
		switch t.Status {
		case models.TokenWaiting:
			waiting++
		case models.TokenInService:
			inService++
		}
	}
	s.monitor.TrackQueueDepth(queue.ID, waiting, inService, len(queue.PendingEmergencyTokens))
}

// CreateQueueRequest carries the provider's queue configuration.
type CreateQueueRequest struct {
	ProviderID  string
	ServiceName string
	PlaceID     string
	ServiceID   string

	MaxCapacity               *int
	SupportsGroupToken        bool
	EmergencySupport          bool
	EmergencyPriorityWeight   int
	RequiresEmergencyApproval bool
	AutoApproveEmergency      bool
}

// CreateQueue registers a new waiting line for a place+service.
func (s *QueueService) CreateQueue(ctx context.Context, req CreateQueueRequest) (*models.Queue, error) {
	code, err := utils.GenerateCode(8)
	if err != nil {
		return nil, fmt.Errorf("generate queue id: %w", err)
	}

	queue := models.NewQueue("q-"+strings.ToLower(code), req.ProviderID, req.ServiceName, req.PlaceID, req.ServiceID)
	queue.MaxCapacity = req.MaxCapacity
	queue.SupportsGroupToken = req.SupportsGroupToken
	queue.EmergencySupport = req.EmergencySupport
	if req.EmergencyPriorityWeight > 0 {
		queue.EmergencyPriorityWeight = req.EmergencyPriorityWeight
	}
	queue.RequiresEmergencyApproval = req.RequiresEmergencyApproval
	queue.AutoApproveEmergency = req.AutoApproveEmergency

	updated, err := s.saveAndBroadcast(ctx, queue)
	if err != nil {
		return nil, err
	}

	log.Printf("Queue %s created for provider %s", updated.ID, req.ProviderID)
	return updated, nil
}

// validateAdmission runs the checks shared by every join variant. The
// already-active policy is global and uniform across token classes: the
// cooldown guard spans all queues, plus a duplicate check within this queue.
func (s *QueueService) validateAdmission(queue *models.Queue, userID string) error {
	if !queue.IsActive {
		log.Printf("Inactive queue join attempt: queueId=%s", queue.ID)
		return status.ErrQueueInactive
	}
	return s.validateParticipation(queue, userID)
}

func (s *QueueService) validateParticipation(queue *models.Queue, userID string) error {
	if !s.guard.CanJoin(userID) {
		return status.ErrUserAlreadyActive
	}
	if queue.HasActiveTokenFor(userID) {
		return status.ErrUserAlreadyActive
	}
	if queue.MaxCapacity != nil && queue.ActiveTokenCount() >= *queue.MaxCapacity {
		return status.ErrCapacityExceeded
	}
	return nil
}

// Join issues a regular token. The token counter only advances when the join
// succeeds and persists, so identifiers stay monotonic and gap-free under
// rejected attempts.
func (s *QueueService) Join(ctx context.Context, queueID, userID string, req *TokenRequest) (*models.QueueToken, error) {
	unlock := s.lockQueue(queueID)
	defer unlock()

	queue, err := s.loadQueue(ctx, queueID)
	if err != nil {
		return nil, err
	}

	if err := s.validateAdmission(queue, userID); err != nil {
		s.monitor.TrackOperation("join", queueID, "rejected")
		return nil, err
	}

	now := time.Now()
	queue.TokenCounter++
	token := &models.QueueToken{
		TokenID:  fmt.Sprintf("T-%03d", queue.TokenCounter),
		UserID:   userID,
		Status:   models.TokenWaiting,
		IssuedAt: now,
	}
	if req != nil {
		token.UserName = req.UserName
		token.UserDetails = req.Details
	}
	queue.Tokens = append(queue.Tokens, token)

	if _, err := s.saveAndBroadcast(ctx, queue); err != nil {
		s.monitor.TrackOperation("join", queueID, "error")
		return nil, err
	}

	// Guard is recorded only after a successful save; a failed persist must
	// leave no trace of the join.
	s.guard.RecordJoin(userID, now)
	s.monitor.TrackOperation("join", queueID, "success")

	log.Printf("Token %s added to queueId=%s", token.TokenID, queueID)
	return token, nil
}

// JoinGroup issues a single token covering multiple co-present members.
func (s *QueueService) JoinGroup(ctx context.Context, queueID, userID, userName string, members []models.GroupMember) (*models.QueueToken, error) {
	unlock := s.lockQueue(queueID)
	defer unlock()

	queue, err := s.loadQueue(ctx, queueID)
	if err != nil {
		return nil, err
	}

	if !queue.IsActive {
		log.Printf("Inactive queue join attempt: queueId=%s", queueID)
		return nil, status.ErrQueueInactive
	}
	if !queue.SupportsGroupToken {
		return nil, status.ErrUnsupportedTokenClass
	}
	if len(members) < 2 {
		return nil, status.ErrInvalidGroupSize
	}
	if err := s.validateParticipation(queue, userID); err != nil {
		s.monitor.TrackOperation("join_group", queueID, "rejected")
		return nil, err
	}

	now := time.Now()
	queue.TokenCounter++
	token := &models.QueueToken{
		TokenID:      fmt.Sprintf("G-%03d", queue.TokenCounter),
		UserID:       userID,
		UserName:     userName,
		Status:       models.TokenWaiting,
		IsGroup:      true,
		GroupMembers: members,
		GroupSize:    len(members),
		IssuedAt:     now,
	}
	queue.Tokens = append(queue.Tokens, token)

	if _, err := s.saveAndBroadcast(ctx, queue); err != nil {
		s.monitor.TrackOperation("join_group", queueID, "error")
		return nil, err
	}

	s.guard.RecordJoin(userID, now)
	s.monitor.TrackOperation("join_group", queueID, "success")

	log.Printf("Group token %s added to queueId=%s with %d members", token.TokenID, queueID, len(members))
	return token, nil
}

// JoinEmergency issues an emergency token. Queues that require approval and
// do not auto-approve park the token in the pending list with status PENDING;
// it gains priority, capacity weight and guard tracking only once approved.
func (s *QueueService) JoinEmergency(ctx context.Context, queueID, userID, userName, emergencyDetails string) (*models.QueueToken, error) {
	unlock := s.lockQueue(queueID)
	defer unlock()

	queue, err := s.loadQueue(ctx, queueID)
	if err != nil {
		return nil, err
	}

	if !queue.IsActive {
		log.Printf("Inactive queue join attempt: queueId=%s", queueID)
		return nil, status.ErrQueueInactive
	}
	if !queue.EmergencySupport {
		return nil, status.ErrUnsupportedTokenClass
	}
	if err := s.validateParticipation(queue, userID); err != nil {
		s.monitor.TrackOperation("join_emergency", queueID, "rejected")
		return nil, err
	}

	now := time.Now()
	queue.TokenCounter++
	token := &models.QueueToken{
		TokenID:          fmt.Sprintf("E-%03d", queue.TokenCounter),
		UserID:           userID,
		UserName:         userName,
		IsEmergency:      true,
		EmergencyDetails: emergencyDetails,
		IssuedAt:         now,
	}

	needsApproval := queue.RequiresEmergencyApproval && !queue.AutoApproveEmergency
	if needsApproval {
		token.Status = models.TokenPending
		queue.PendingEmergencyTokens = append(queue.PendingEmergencyTokens, token)
	} else {
		token.Status = models.TokenWaiting
		token.Priority = queue.EmergencyPriorityWeight
		queue.Tokens = append(queue.Tokens, token)
	}

	if _, err := s.saveAndBroadcast(ctx, queue); err != nil {
		s.monitor.TrackOperation("join_emergency", queueID, "error")
		return nil, err
	}

	if !needsApproval {
		s.guard.RecordJoin(userID, now)
	}
	s.monitor.TrackOperation("join_emergency", queueID, "success")

	log.Printf("Emergency token %s added to queueId=%s (pending=%v)", token.TokenID, queueID, needsApproval)
	return token, nil
}
