package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/artmarket-backend/internal/models"
	"github.com/ignatzorin/artmarket-backend/internal/repository"
)

const (
	// ShippingDeadlineBusinessDays - срок отгрузки после оплаты.
	ShippingDeadlineBusinessDays = 5
	// shippingReminderAfterDays - через сколько рабочих дней напоминаем.
	shippingReminderAfterDays = 3
	// shippingWarningAfterDays - через сколько рабочих дней предупреждаем.
	shippingWarningAfterDays = 5
	// shippingCancelAfterDays - через сколько рабочих дней отменяем заказ.
	shippingCancelAfterDays = 6

	shippingBatchSize = 200
)

// AddBusinessDays возвращает момент через days рабочих дней после from.
// Выходные (суббота и воскресенье) не считаются, время суток сохраняется.
func AddBusinessDays(from time.Time, days int) time.Time {
	d := from
	for added := 0; added < days; {
		d = d.AddDate(0, 0, 1)
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			added++
		}
	}
	return d
}

// BusinessDaysBetween считает полные рабочие дни между from и to.
func BusinessDaysBetween(from, to time.Time) int {
	if !to.After(from) {
		return 0
	}

	days := 0
	d := from
	for {
		d = d.AddDate(0, 0, 1)
		if d.After(to) {
			break
		}
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			days++
		}
	}
	return days
}

// ShippingOrderRepo — часть хранилища заказов для контроля отгрузки.
type ShippingOrderRepo interface {
	ListPaid(ctx context.Context, limit int) ([]models.Order, error)
	MarkReminderSent(ctx context.Context, id uuid.UUID) error
	MarkWarningSent(ctx context.Context, id uuid.UUID) error
	AutoCancel(ctx context.Context, id uuid.UUID, at time.Time) error
}

// ShippingListingRepo — часть хранилища лотов для возврата лота в продажу.
type ShippingListingRepo interface {
	Reopen(ctx context.Context, id uuid.UUID) error
}

// ShippingService следит за сроками отгрузки оплаченных заказов.
// Эскалация по рабочим дням с момента оплаты: напоминание, предупреждение,
// автоотмена с возвратом лота в продажу. Флаги reminder_sent/warning_sent
// гарантируют, что каждое письмо уходит один раз.
type ShippingService struct {
	orders        ShippingOrderRepo
	listings      ShippingListingRepo
	notifications *NotificationService

	now func() time.Time
}

// NewShippingService создаёт сервис контроля отгрузки.
func NewShippingService(orders ShippingOrderRepo, listings ShippingListingRepo, notifications *NotificationService) *ShippingService {
	return &ShippingService{
		orders:        orders,
		listings:      listings,
		notifications: notifications,
		now:           time.Now,
	}
}

// Sweep проходит по оплаченным заказам и эскалирует просрочку отгрузки.
// Ошибка по одному заказу не прерывает обработку остальных.
func (s *ShippingService) Sweep(ctx context.Context) (SweepReport, error) {
	var report SweepReport

	orders, err := s.orders.ListPaid(ctx, shippingBatchSize)
	if err != nil {
		return report, fmt.Errorf("shipping: выборка оплаченных заказов: %w", err)
	}

	now := s.now()
	for i := range orders {
		order := &orders[i]
		report.Processed++

		if err := s.escalate(ctx, order, now); err != nil {
			report.Failed++
			logrus.WithError(err).WithField("order_id", order.ID).Error("контроль отгрузки: заказ не обработан")
		}
	}

	return report, nil
}

// escalate применяет к заказу следующий шаг эскалации, если срок подошёл.
func (s *ShippingService) escalate(ctx context.Context, order *models.Order, now time.Time) error {
	if order.PaidAt == nil {
		return nil
	}

	elapsed := BusinessDaysBetween(*order.PaidAt, now)

	switch {
	case elapsed >= shippingCancelAfterDays:
		return s.autoCancel(ctx, order, now)
	case elapsed >= shippingWarningAfterDays && !order.WarningSent:
		return s.warn(ctx, order)
	case elapsed >= shippingReminderAfterDays && !order.ReminderSent:
		return s.remind(ctx, order)
	}

	return nil
}

func (s *ShippingService) remind(ctx context.Context, order *models.Order) error {
	if err := s.orders.MarkReminderSent(ctx, order.ID); err != nil {
		// Флаг уже выставлен параллельным проходом.
		if errors.Is(err, repository.ErrOrderStatusConflict) {
			return nil
		}
		return fmt.Errorf("отметка напоминания: %w", err)
	}

	s.notifications.Notify(ctx, order.ArtistID, models.NotificationShippingReminder, models.NotificationData{
		Title:   "Пора отправить заказ",
		Message: "Покупатель ждёт отправку, укажите трек-номер",
		OrderID: &order.ID,
	})
	return nil
}

func (s *ShippingService) warn(ctx context.Context, order *models.Order) error {
	if err := s.orders.MarkWarningSent(ctx, order.ID); err != nil {
		if errors.Is(err, repository.ErrOrderStatusConflict) {
			return nil
		}
		return fmt.Errorf("отметка предупреждения: %w", err)
	}

	s.notifications.Notify(ctx, order.ArtistID, models.NotificationShippingWarning, models.NotificationData{
		Title:   "Срок отгрузки истекает",
		Message: "Если заказ не будет отправлен, он будет отменён автоматически",
		OrderID: &order.ID,
	})
	return nil
}

// autoCancel отменяет просроченный заказ, навсегда блокирует выплату по нему
// и возвращает лот в продажу.
func (s *ShippingService) autoCancel(ctx context.Context, order *models.Order, now time.Time) error {
	if err := s.orders.AutoCancel(ctx, order.ID, now); err != nil {
		if errors.Is(err, repository.ErrOrderStatusConflict) {
			return nil
		}
		return fmt.Errorf("автоотмена: %w", err)
	}

	if err := s.listings.Reopen(ctx, order.ListingID); err != nil {
		logrus.WithError(err).WithField("listing_id", order.ListingID).Error("контроль отгрузки: лот не возвращён в продажу")
	}

	s.notifications.Notify(ctx, order.BuyerID, models.NotificationOrderCancelled, models.NotificationData{
		Title:   "Заказ отменён",
		Message: "Продавец не отправил заказ в срок, средства будут возвращены",
		OrderID: &order.ID,
	})
	s.notifications.Notify(ctx, order.ArtistID, models.NotificationOrderCancelled, models.NotificationData{
		Title:   "Заказ отменён за просрочку отгрузки",
		Message: "Заказ не был отправлен в срок и отменён, выплата по нему не состоится",
		OrderID: &order.ID,
	})
	return nil
}
