package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/artmarket-backend/internal/fees"
	"github.com/ignatzorin/artmarket-backend/internal/models"
	"github.com/ignatzorin/artmarket-backend/internal/pkg/apperror"
	"github.com/ignatzorin/artmarket-backend/internal/repository"
	"github.com/ignatzorin/artmarket-backend/internal/tracking"
	"github.com/ignatzorin/artmarket-backend/internal/validation"
)

const (
	// BuyerProtectionWindow - окно защиты покупателя после доставки.
	// Ровно 14 суток по 24 часа, без привязки к календарным дням.
	BuyerProtectionWindow = 14 * 24 * time.Hour

	// pendingOrderRetention - срок хранения неоплаченных заказов.
	pendingOrderRetention = 7 * 24 * time.Hour
)

// OrderListingRepo — часть хранилища лотов, нужная заказам.
type OrderListingRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Listing, error)
	MarkSold(ctx context.Context, id uuid.UUID) error
}

// OrderRepo — интерфейс хранилища заказов, используемый сервисом.
type OrderRepo interface {
	Create(ctx context.Context, o *models.Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	GetByListingID(ctx context.Context, listingID uuid.UUID) (*models.Order, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Order, error)
	MarkPaid(ctx context.Context, id uuid.UUID, paymentIntentID string, paidAt, shippingDeadline time.Time) error
	SubmitTracking(ctx context.Context, id uuid.UUID, trackingNumber string) error
	ApproveTracking(ctx context.Context, id uuid.UUID, shippedAt time.Time) error
	RejectTracking(ctx context.Context, id uuid.UUID) error
	MarkDelivered(ctx context.Context, id uuid.UUID, deliveredAt, protectionEndsAt time.Time) error
	DeleteAbandonedPending(ctx context.Context, olderThan time.Time) (int64, error)
}

// TrackingChecker проверяет трек-номер через API перевозчика.
type TrackingChecker interface {
	Check(ctx context.Context, trackingNumber string) (*tracking.CheckResult, error)
}

// OrderService ведёт заказ по жизненному циклу
// pending -> paid -> shipped -> delivered. Каждый переход выполняется
// условным обновлением: заказ, уже переведённый параллельной операцией,
// не переводится повторно.
type OrderService struct {
	orders        OrderRepo
	listings      OrderListingRepo
	carrier       TrackingChecker
	notifications *NotificationService

	now func() time.Time
}

// NewOrderService создаёт сервис заказов.
func NewOrderService(orders OrderRepo, listings OrderListingRepo, carrier TrackingChecker, notifications *NotificationService) *OrderService {
	return &OrderService{
		orders:        orders,
		listings:      listings,
		carrier:       carrier,
		notifications: notifications,
		now:           time.Now,
	}
}

// Create оформляет покупку лота по фиксированной цене.
// Заказ создаётся в статусе pending и ждёт оплаты.
func (s *OrderService) Create(ctx context.Context, buyerID, listingID uuid.UUID) (*models.Order, error) {
	listing, err := s.listings.GetByID(ctx, listingID)
	if err != nil {
		if errors.Is(err, repository.ErrListingNotFound) {
			return nil, apperror.ErrListingNotFound
		}
		return nil, fmt.Errorf("order service: получение лота: %w", err)
	}

	if listing.Status != models.ListingStatusAvailable {
		return nil, apperror.Conflict("лот недоступен для покупки")
	}
	if listing.ListingType == models.ListingTypeAuction {
		return nil, apperror.Conflict("лот продаётся только через аукцион")
	}
	if listing.ArtistID == buyerID {
		return nil, apperror.Forbidden("нельзя покупать собственный лот")
	}

	// Повторное оформление: у покупателя уже есть неоплаченный заказ
	// по этому лоту, возвращаем его вместо создания дубля.
	if existing, err := s.orders.GetByListingID(ctx, listing.ID); err == nil &&
		existing.BuyerID == buyerID && existing.Status == models.OrderStatusPending {
		return existing, nil
	}

	breakdown := fees.Calculate(listing.Price)
	order := &models.Order{
		ID:             uuid.New(),
		ListingID:      listing.ID,
		BuyerID:        buyerID,
		ArtistID:       listing.ArtistID,
		Amount:         listing.Price + listing.ShippingCost,
		SalePrice:      listing.Price,
		ShippingCost:   listing.ShippingCost,
		PlatformFee:    breakdown.PlatformFee,
		ProcessorFee:   breakdown.ProcessorFee,
		ArtistEarnings: breakdown.ArtistEarnings,
		Status:         models.OrderStatusPending,
		EarningsStatus: models.EarningsStatusPending,
	}

	if err := s.orders.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("order service: создание заказа: %w", err)
	}

	s.notifications.Notify(ctx, listing.ArtistID, models.NotificationOrderCreated, models.NotificationData{
		Title:     "Новый заказ",
		Message:   fmt.Sprintf("Лот «%s» ожидает оплаты покупателем", listing.Title),
		OrderID:   &order.ID,
		ListingID: &listing.ID,
	})

	return order, nil
}

// Get возвращает заказ, доступ есть только у покупателя, художника и админа.
func (s *OrderService) Get(ctx context.Context, requesterID uuid.UUID, requesterRole string, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return nil, apperror.ErrOrderNotFound
		}
		return nil, fmt.Errorf("order service: получение заказа: %w", err)
	}

	if requesterRole != models.UserRoleAdmin && order.BuyerID != requesterID && order.ArtistID != requesterID {
		return nil, apperror.ErrForbidden
	}

	return order, nil
}

// ListByUser возвращает заказы, где пользователь покупатель или продавец.
func (s *OrderService) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Order, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	orders, err := s.orders.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("order service: список заказов: %w", err)
	}
	return orders, nil
}

// MarkPaid подтверждает оплату заказа по вебхуку платёжного провайдера.
// Повторная доставка вебхука с тем же intent безопасна: заказ уже оплачен,
// вызов завершается успешно без изменений.
func (s *OrderService) MarkPaid(ctx context.Context, orderID uuid.UUID, paymentIntentID string) error {
	paidAt := s.now()
	deadline := AddBusinessDays(paidAt, ShippingDeadlineBusinessDays)

	err := s.orders.MarkPaid(ctx, orderID, paymentIntentID, paidAt, deadline)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return apperror.ErrOrderNotFound
		}
		if errors.Is(err, repository.ErrOrderStatusConflict) {
			return s.resolvePaidConflict(ctx, orderID, paymentIntentID)
		}
		return fmt.Errorf("order service: подтверждение оплаты: %w", err)
	}

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return fmt.Errorf("order service: чтение оплаченного заказа: %w", err)
	}

	if err := s.listings.MarkSold(ctx, order.ListingID); err != nil {
		logrus.WithError(err).WithField("listing_id", order.ListingID).Error("заказ оплачен, но лот не помечен проданным")
	}

	s.notifications.Notify(ctx, order.ArtistID, models.NotificationOrderPaid, models.NotificationData{
		Title:   "Заказ оплачен",
		Message: fmt.Sprintf("Отправьте заказ до %s", deadline.Format("02.01.2006")),
		OrderID: &order.ID,
	})

	return nil
}

// resolvePaidConflict разбирает конфликт оплаты: повтор того же вебхука
// не ошибка, любая другая причина — конфликт состояния.
func (s *OrderService) resolvePaidConflict(ctx context.Context, orderID uuid.UUID, paymentIntentID string) error {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return fmt.Errorf("order service: чтение заказа при конфликте оплаты: %w", err)
	}

	if order.Status != models.OrderStatusPending &&
		order.PaymentIntentID != nil && *order.PaymentIntentID == paymentIntentID {
		return nil
	}

	return apperror.ErrStatusConflict
}

// SubmitTracking принимает трек-номер от художника по оплаченному заказу.
// Недоступность API перевозчика не блокирует отправку: номер принимается
// и уходит на ручную проверку.
func (s *OrderService) SubmitTracking(ctx context.Context, artistID, orderID uuid.UUID, trackingNumber string) error {
	if err := validation.ValidateTrackingNumber(trackingNumber); err != nil {
		return apperror.Validation(err.Error())
	}

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return apperror.ErrOrderNotFound
		}
		return fmt.Errorf("order service: получение заказа: %w", err)
	}
	if order.ArtistID != artistID {
		return apperror.ErrForbidden
	}

	result, err := s.carrier.Check(ctx, trackingNumber)
	if err != nil {
		logrus.WithError(err).WithField("order_id", orderID).Warn("перевозчик недоступен, трек-номер принят без проверки")
	} else if !result.Valid {
		return apperror.Validation("перевозчик не распознал трек-номер")
	}

	if err := s.orders.SubmitTracking(ctx, orderID, trackingNumber); err != nil {
		if errors.Is(err, repository.ErrOrderStatusConflict) {
			return apperror.Conflict("трек-номер нельзя указать в текущем состоянии заказа")
		}
		return fmt.Errorf("order service: сохранение трек-номера: %w", err)
	}

	return nil
}

// ApproveTracking подтверждает трек-номер и переводит заказ в shipped.
func (s *OrderService) ApproveTracking(ctx context.Context, orderID uuid.UUID) error {
	if err := s.orders.ApproveTracking(ctx, orderID, s.now()); err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return apperror.ErrOrderNotFound
		}
		if errors.Is(err, repository.ErrOrderStatusConflict) {
			return apperror.Conflict("трек-номер нельзя подтвердить в текущем состоянии заказа")
		}
		return fmt.Errorf("order service: подтверждение трек-номера: %w", err)
	}

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return fmt.Errorf("order service: чтение отправленного заказа: %w", err)
	}

	s.notifications.Notify(ctx, order.BuyerID, models.NotificationOrderShipped, models.NotificationData{
		Title:   "Заказ отправлен",
		Message: "Продавец передал заказ в доставку",
		OrderID: &order.ID,
	})

	return nil
}

// RejectTracking отклоняет трек-номер, заказ остаётся в paid и художник
// может указать номер заново.
func (s *OrderService) RejectTracking(ctx context.Context, orderID uuid.UUID) error {
	if err := s.orders.RejectTracking(ctx, orderID); err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return apperror.ErrOrderNotFound
		}
		if errors.Is(err, repository.ErrOrderStatusConflict) {
			return apperror.Conflict("трек-номер нельзя отклонить в текущем состоянии заказа")
		}
		return fmt.Errorf("order service: отклонение трек-номера: %w", err)
	}

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return fmt.Errorf("order service: чтение заказа: %w", err)
	}

	s.notifications.Notify(ctx, order.ArtistID, models.NotificationTrackingRejected, models.NotificationData{
		Title:   "Трек-номер отклонён",
		Message: "Укажите корректный трек-номер, иначе заказ будет отменён по сроку",
		OrderID: &order.ID,
	})

	return nil
}

// MarkDelivered фиксирует доставку и открывает окно защиты покупателя.
func (s *OrderService) MarkDelivered(ctx context.Context, orderID uuid.UUID) error {
	deliveredAt := s.now()
	protectionEndsAt := deliveredAt.Add(BuyerProtectionWindow)

	if err := s.orders.MarkDelivered(ctx, orderID, deliveredAt, protectionEndsAt); err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return apperror.ErrOrderNotFound
		}
		if errors.Is(err, repository.ErrOrderStatusConflict) {
			return apperror.Conflict("заказ нельзя пометить доставленным в текущем состоянии")
		}
		return fmt.Errorf("order service: отметка доставки: %w", err)
	}

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return fmt.Errorf("order service: чтение доставленного заказа: %w", err)
	}

	s.notifications.Notify(ctx, order.BuyerID, models.NotificationOrderDelivered, models.NotificationData{
		Title:   "Заказ доставлен",
		Message: fmt.Sprintf("Если с заказом что-то не так, откройте спор до %s", protectionEndsAt.Format("02.01.2006")),
		OrderID: &order.ID,
	})

	return nil
}

// PurgeAbandoned удаляет неоплаченные заказы старше срока хранения.
func (s *OrderService) PurgeAbandoned(ctx context.Context) (int64, error) {
	deleted, err := s.orders.DeleteAbandonedPending(ctx, s.now().Add(-pendingOrderRetention))
	if err != nil {
		return 0, fmt.Errorf("order service: удаление брошенных заказов: %w", err)
	}
	return deleted, nil
}
