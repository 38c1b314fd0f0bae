package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/artmarket-backend/internal/models"
)

// NotificationStore — минимальный интерфейс хранилища уведомлений.
type NotificationStore interface {
	Create(ctx context.Context, notification *models.Notification) error
	List(ctx context.Context, userID uuid.UUID, limit, offset int, unreadOnly bool) ([]models.Notification, error)
	MarkAsRead(ctx context.Context, id uuid.UUID) error
	MarkAllAsRead(ctx context.Context, userID uuid.UUID) error
	CountUnread(ctx context.Context, userID uuid.UUID) (int, error)
}

// Pusher доставляет событие подключённому пользователю в реальном времени.
type Pusher interface {
	SendToUser(userID uuid.UUID, event string, data interface{}) error
}

// NotificationService сохраняет уведомления и пушит их через WebSocket.
// Ошибки доставки никогда не прерывают бизнес-операцию: они только логируются.
type NotificationService struct {
	store  NotificationStore
	pusher Pusher
}

// NewNotificationService создаёт сервис уведомлений.
// pusher может быть nil — тогда уведомления только сохраняются.
func NewNotificationService(store NotificationStore, pusher Pusher) *NotificationService {
	return &NotificationService{store: store, pusher: pusher}
}

// Notify сохраняет уведомление и пытается доставить его в реальном времени.
// Любая ошибка проглатывается: уведомления не влияют на исход операции.
func (s *NotificationService) Notify(ctx context.Context, userID uuid.UUID, eventType string, data models.NotificationData) {
	payload, err := json.Marshal(data)
	if err != nil {
		logrus.WithError(err).WithField("event_type", eventType).Warn("уведомление: не удалось сериализовать payload")
		return
	}

	notification := &models.Notification{
		UserID:    userID,
		EventType: eventType,
		Payload:   payload,
	}

	if err := s.store.Create(ctx, notification); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"user_id":    userID,
			"event_type": eventType,
		}).Warn("уведомление: не удалось сохранить")
		return
	}

	if s.pusher != nil {
		if err := s.pusher.SendToUser(userID, eventType, notification); err != nil {
			logrus.WithError(err).WithField("user_id", userID).Warn("уведомление: не удалось доставить по WebSocket")
		}
	}
}

// List возвращает уведомления пользователя.
func (s *NotificationService) List(ctx context.Context, userID uuid.UUID, limit, offset int, unreadOnly bool) ([]models.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	notifications, err := s.store.List(ctx, userID, limit, offset, unreadOnly)
	if err != nil {
		return nil, fmt.Errorf("notification service: list %w", err)
	}
	return notifications, nil
}

// MarkAsRead помечает уведомление прочитанным.
func (s *NotificationService) MarkAsRead(ctx context.Context, id uuid.UUID) error {
	if err := s.store.MarkAsRead(ctx, id); err != nil {
		return fmt.Errorf("notification service: mark as read %w", err)
	}
	return nil
}

// MarkAllAsRead помечает все уведомления пользователя прочитанными.
func (s *NotificationService) MarkAllAsRead(ctx context.Context, userID uuid.UUID) error {
	if err := s.store.MarkAllAsRead(ctx, userID); err != nil {
		return fmt.Errorf("notification service: mark all as read %w", err)
	}
	return nil
}

// CountUnread возвращает число непрочитанных уведомлений.
func (s *NotificationService) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	count, err := s.store.CountUnread(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("notification service: count unread %w", err)
	}
	return count, nil
}
