package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/artmarket-backend/internal/models"
	"github.com/ignatzorin/artmarket-backend/internal/pkg/apperror"
	"github.com/ignatzorin/artmarket-backend/internal/repository"
)

const earningsBatchSize = 200

// payoutDayOfMonth - день месяца, в который площадка проводит выплаты.
const payoutDayOfMonth = 15

// EarningsOrderRepo — часть хранилища заказов для работы с выручкой.
type EarningsOrderRepo interface {
	ListReleasable(ctx context.Context, now time.Time, limit int) ([]models.Order, error)
	ReleaseEarnings(ctx context.Context, id uuid.UUID) error
	ListForBalance(ctx context.Context, artistID uuid.UUID) ([]models.Order, error)
}

// PayoutRepo — интерфейс хранилища выплат.
type PayoutRepo interface {
	Create(ctx context.Context, artistID uuid.UUID, cardLast4, bankName string) (*models.Payout, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Payout, error)
	ListByArtist(ctx context.Context, artistID uuid.UUID, limit, offset int) ([]models.Payout, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string, rejectionReason *string) error
}

// EarningsService управляет выручкой художников: разблокирует её после
// окончания окна защиты покупателя, считает производный баланс и
// оформляет выплаты.
type EarningsService struct {
	orders        EarningsOrderRepo
	payouts       PayoutRepo
	notifications *NotificationService

	now func() time.Time
}

// NewEarningsService создаёт сервис выручки.
func NewEarningsService(orders EarningsOrderRepo, payouts PayoutRepo, notifications *NotificationService) *EarningsService {
	return &EarningsService{
		orders:        orders,
		payouts:       payouts,
		notifications: notifications,
		now:           time.Now,
	}
}

// ReleaseSweep разблокирует выручку по доставленным заказам, у которых
// окно защиты истекло и нет активного спора. Спор проверяется в момент
// выборки: заказ, по которому спор открыли после доставки, в выборку
// не попадает.
func (s *EarningsService) ReleaseSweep(ctx context.Context) (SweepReport, error) {
	var report SweepReport

	orders, err := s.orders.ListReleasable(ctx, s.now(), earningsBatchSize)
	if err != nil {
		return report, fmt.Errorf("earnings: выборка заказов к разблокировке: %w", err)
	}

	for i := range orders {
		order := &orders[i]
		report.Processed++

		if err := s.orders.ReleaseEarnings(ctx, order.ID); err != nil {
			// Конфликт: выручку разблокировал параллельный проход либо
			// по заказу только что открыли спор.
			if errors.Is(err, repository.ErrOrderStatusConflict) {
				continue
			}
			report.Failed++
			logrus.WithError(err).WithField("order_id", order.ID).Error("разблокировка выручки: заказ не обработан")
			continue
		}

		report.Settled++
		s.notifications.Notify(ctx, order.ArtistID, models.NotificationEarningsReleased, models.NotificationData{
			Title:   "Выручка доступна",
			Message: fmt.Sprintf("%.2f доступно к выплате", order.EarningsAmount()),
			OrderID: &order.ID,
		})
	}

	return report, nil
}

// Balance пересчитывает баланс художника по его заказам. Баланс нигде
// не хранится, источник правды — сами заказы.
func (s *EarningsService) Balance(ctx context.Context, artistID uuid.UUID) (*models.ArtistBalance, error) {
	orders, err := s.orders.ListForBalance(ctx, artistID)
	if err != nil {
		return nil, fmt.Errorf("earnings: выборка заказов для баланса: %w", err)
	}

	balance := &models.ArtistBalance{
		ArtistID:       artistID,
		NextPayoutDate: NextPayoutDate(s.now()),
	}

	for i := range orders {
		order := &orders[i]

		// Неоплаченный заказ — ещё не деньги: до вебхука оплаты он не
		// участвует ни в одной части баланса. Выборка такие заказы не
		// отдаёт, проверка защищает сам пересчёт.
		if order.Status == models.OrderStatusPending || order.Status == models.OrderStatusCancelled {
			continue
		}

		amount := order.EarningsAmount()

		switch order.EarningsStatus {
		case models.EarningsStatusPending:
			balance.Pending += amount
		case models.EarningsStatusAvailable:
			balance.Available += amount
		case models.EarningsStatusPaidOut:
			balance.PaidOut += amount
		}
	}

	return balance, nil
}

// RequestPayout выводит всю доступную выручку художника одной заявкой.
func (s *EarningsService) RequestPayout(ctx context.Context, artistID uuid.UUID, cardLast4, bankName string) (*models.Payout, error) {
	if len(cardLast4) != 4 {
		return nil, apperror.Validation("укажите последние 4 цифры карты")
	}

	payout, err := s.payouts.Create(ctx, artistID, cardLast4, bankName)
	if err != nil {
		if errors.Is(err, repository.ErrNothingToWithdraw) {
			return nil, apperror.Conflict("нет доступной выручки для выплаты")
		}
		if errors.Is(err, repository.ErrBelowMinimumPayout) {
			return nil, apperror.Conflict(fmt.Sprintf("минимальная сумма выплаты — %.2f", repository.MinPayoutAmount))
		}
		return nil, fmt.Errorf("earnings: создание выплаты: %w", err)
	}

	return payout, nil
}

// ProcessPayout закрывает заявку на выплату решением администратора.
// Отклонённая заявка возвращает выручку художника в available.
func (s *EarningsService) ProcessPayout(ctx context.Context, payoutID uuid.UUID, status string, rejectionReason *string) (*models.Payout, error) {
	if status != models.PayoutStatusCompleted && status != models.PayoutStatusRejected {
		return nil, apperror.Validation("недопустимый статус выплаты")
	}
	if status == models.PayoutStatusRejected && (rejectionReason == nil || *rejectionReason == "") {
		return nil, apperror.Validation("укажите причину отклонения выплаты")
	}

	if err := s.payouts.UpdateStatus(ctx, payoutID, status, rejectionReason); err != nil {
		if errors.Is(err, repository.ErrPayoutStatusConflict) {
			return nil, apperror.Conflict("выплата уже обработана или не найдена")
		}
		return nil, fmt.Errorf("earnings: обработка выплаты: %w", err)
	}

	payout, err := s.payouts.GetByID(ctx, payoutID)
	if err != nil {
		return nil, fmt.Errorf("earnings: чтение обработанной выплаты: %w", err)
	}

	event := models.NotificationPayoutCompleted
	message := fmt.Sprintf("Выплата %.2f переведена", payout.Amount)
	if status == models.PayoutStatusRejected {
		event = models.NotificationPayoutRejected
		message = "Выплата отклонена, выручка возвращена на баланс"
	}
	s.notifications.Notify(ctx, payout.ArtistID, event, models.NotificationData{
		Title:   "Выплата обработана",
		Message: message,
	})

	return payout, nil
}

// ListPayouts возвращает историю выплат художника.
func (s *EarningsService) ListPayouts(ctx context.Context, artistID uuid.UUID, limit, offset int) ([]models.Payout, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	payouts, err := s.payouts.ListByArtist(ctx, artistID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("earnings: список выплат: %w", err)
	}
	return payouts, nil
}

// NextPayoutDate возвращает ближайшую дату выплат: 15-е число текущего
// месяца, включая само 15-е, а после него — 15-е следующего.
func NextPayoutDate(now time.Time) time.Time {
	payout := time.Date(now.Year(), now.Month(), payoutDayOfMonth, 0, 0, 0, 0, now.Location())
	if now.Day() > payoutDayOfMonth {
		payout = payout.AddDate(0, 1, 0)
	}
	return payout
}
