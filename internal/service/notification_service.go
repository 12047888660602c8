package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/Astro-67/bookissue-backend/internal/cache"
	"github.com/Astro-67/bookissue-backend/internal/domain"
	"github.com/Astro-67/bookissue-backend/internal/events"
	"github.com/Astro-67/bookissue-backend/internal/fanout"
	"github.com/Astro-67/bookissue-backend/internal/observability"
	"github.com/Astro-67/bookissue-backend/internal/repository"
	apperrors "github.com/Astro-67/bookissue-backend/pkg/util/errorutil"
)

// Enqueuer hands an event to the background queue instead of delivering it inline.
type Enqueuer interface {
	Enqueue(ctx context.Context, event events.Event) error
}

// NotificationService turns domain events into notifications and serves the recipient's inbox.
type NotificationService struct {
	notifications repository.NotificationRepository
	dispatcher    events.Dispatcher
	unread        *cache.UnreadCounter
	enqueuer      Enqueuer
	metrics       *observability.Metrics
	logger        *zap.Logger
}

// NotificationDependencies bundles collaborators. Enqueuer, Unread and Metrics are optional; a nil
// Enqueuer means inline delivery.
type NotificationDependencies struct {
	NotificationRepo repository.NotificationRepository
	Dispatcher       events.Dispatcher
	Unread           *cache.UnreadCounter
	Enqueuer         Enqueuer
	Metrics          *observability.Metrics
	Logger           *zap.Logger
}

// NotificationListFilter narrows an inbox listing.
type NotificationListFilter struct {
	IsRead *bool
	Type   *domain.NotificationType
	Page
}

// NewNotificationService creates the service.
func NewNotificationService(deps NotificationDependencies) *NotificationService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		notifications: deps.NotificationRepo,
		dispatcher:    deps.Dispatcher,
		unread:        deps.Unread,
		enqueuer:      deps.Enqueuer,
		metrics:       deps.Metrics,
		logger:        logger,
	}
}

// RegisterHandlers subscribes the fan-out to every event type.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	events.SubscribeAll(n.dispatcher, n.handleEvent)
}

func (n *NotificationService) handleEvent(ctx context.Context, event events.Event) error {
	if n.enqueuer != nil {
		err := n.enqueuer.Enqueue(ctx, event)
		if err == nil {
			return nil
		}
		n.logger.Warn("enqueue notification fan-out, delivering inline",
			zap.String("event_id", event.Meta().ID),
			zap.String("event_type", string(event.Type())),
			zap.Error(err))
	}
	_, err := n.Deliver(ctx, event)
	return err
}

// Deliver computes the recipients of event and stores their notifications. Delivering the same
// event twice stores nothing the second time.
func (n *NotificationService) Deliver(ctx context.Context, event events.Event) (int, error) {
	eventType := string(event.Type())
	drafts := fanout.ComputeRecipients(event)
	if len(drafts) == 0 {
		n.metrics.RecordDelivery(eventType, 0, nil)
		return 0, nil
	}

	batch := make([]*domain.Notification, len(drafts))
	recipients := make([]string, len(drafts))
	for i, draft := range drafts {
		batch[i] = draft.Notification()
		recipients[i] = draft.RecipientID
	}
	created, err := n.notifications.CreateBatch(ctx, batch)
	n.metrics.RecordDelivery(eventType, created, err)
	if err != nil {
		return created, err
	}

	if err := n.unread.Invalidate(ctx, recipients...); err != nil {
		n.logger.Warn("invalidate unread counters", zap.Strings("user_ids", recipients), zap.Error(err))
	}
	n.logger.Debug("notifications delivered",
		zap.String("event_id", event.Meta().ID),
		zap.String("event_type", eventType),
		zap.Int("created", created),
		zap.Int("recipients", len(drafts)))
	return created, nil
}

// List returns the actor's notifications, newest first.
func (n *NotificationService) List(ctx context.Context, actor *domain.User, filter NotificationListFilter) ([]domain.Notification, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if filter.Type != nil && !filter.Type.Valid() {
		return nil, apperrors.NewValidationError("unknown notification type", map[string]any{"field": "type"})
	}
	return n.notifications.List(ctx, repository.NotificationFilter{
		UserID: actor.ID,
		IsRead: filter.IsRead,
		Type:   filter.Type,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	})
}

// Unread returns the actor's unread notifications.
func (n *NotificationService) Unread(ctx context.Context, actor *domain.User, page Page) ([]domain.Notification, error) {
	unread := false
	return n.List(ctx, actor, NotificationListFilter{IsRead: &unread, Page: page})
}

// Get returns one of the actor's notifications. Other users' notifications are reported missing.
func (n *NotificationService) Get(ctx context.Context, actor *domain.User, id string) (*domain.Notification, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if !validID(id) {
		return nil, apperrors.NewNotFound("notification", map[string]any{"id": id})
	}
	notification, err := n.notifications.GetByID(ctx, actor.ID, id)
	if err != nil {
		return nil, notFound(err, "notification", id)
	}
	return notification, nil
}

// UnreadCount returns the number of unread notifications, served from cache when possible.
func (n *NotificationService) UnreadCount(ctx context.Context, actor *domain.User) (int64, error) {
	if err := requireActor(actor); err != nil {
		return 0, err
	}
	return n.unread.Fetch(ctx, actor.ID, func(ctx context.Context) (int64, error) {
		return n.notifications.CountUnread(ctx, actor.ID)
	})
}

// MarkRead flags ids as read, or every notification when all is set. It returns the number of
// notifications that changed.
func (n *NotificationService) MarkRead(ctx context.Context, actor *domain.User, ids []string, all bool) (int64, error) {
	if err := requireActor(actor); err != nil {
		return 0, err
	}
	if all {
		ids = nil
	} else {
		if len(ids) == 0 {
			return 0, apperrors.NewValidationError("provide notification ids or set all", map[string]any{"field": "ids"})
		}
		for _, id := range ids {
			if !validID(id) {
				return 0, apperrors.NewValidationError("invalid notification id", map[string]any{"field": "ids", "id": id})
			}
		}
	}
	updated, err := n.notifications.MarkRead(ctx, actor.ID, ids)
	if err != nil {
		return 0, err
	}
	if err := n.unread.Invalidate(ctx, actor.ID); err != nil {
		n.logger.Warn("invalidate unread counter", zap.String("user_id", actor.ID), zap.Error(err))
	}
	return updated, nil
}

// MarkAllRead flags every notification of the actor as read.
func (n *NotificationService) MarkAllRead(ctx context.Context, actor *domain.User) (int64, error) {
	return n.MarkRead(ctx, actor, nil, true)
}
