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
	"github.com/ignatzorin/artmarket-backend/internal/repository"
)

// settlementBatchSize ограничивает число лотов за один проход.
const settlementBatchSize = 100

// SettlementListingRepo — часть хранилища лотов, нужная расчёту аукционов.
type SettlementListingRepo interface {
	ListEndedAuctions(ctx context.Context, now time.Time, limit int) ([]models.Listing, error)
	ListBids(ctx context.Context, listingID uuid.UUID) ([]models.Bid, error)
	UpdateStatusIf(ctx context.Context, id uuid.UUID, from, to string) error
}

// SettlementOrderRepo — часть хранилища заказов, нужная расчёту аукционов.
type SettlementOrderRepo interface {
	ExistsForListing(ctx context.Context, listingID uuid.UUID) (bool, error)
	Create(ctx context.Context, o *models.Order) error
}

// SweepReport — итоги одного прохода фонового процесса.
type SweepReport struct {
	Processed int
	Settled   int
	NoBids    int
	Failed    int
}

// SettlementService закрывает завершившиеся аукционы: определяет
// победителя, создаёт заказ с разбивкой комиссий и переводит лот
// в конечный статус. Проход идемпотентен: лот, по которому заказ уже
// создан, пропускается.
type SettlementService struct {
	listings      SettlementListingRepo
	orders        SettlementOrderRepo
	notifications *NotificationService

	now func() time.Time
}

// NewSettlementService создаёт сервис расчёта аукционов.
func NewSettlementService(listings SettlementListingRepo, orders SettlementOrderRepo, notifications *NotificationService) *SettlementService {
	return &SettlementService{
		listings:      listings,
		orders:        orders,
		notifications: notifications,
		now:           time.Now,
	}
}

// Sweep обрабатывает все аукционы, чей срок истёк к текущему моменту.
// Ошибка по одному лоту не прерывает обработку остальных.
func (s *SettlementService) Sweep(ctx context.Context) (SweepReport, error) {
	var report SweepReport

	ended, err := s.listings.ListEndedAuctions(ctx, s.now(), settlementBatchSize)
	if err != nil {
		return report, fmt.Errorf("settlement: выборка завершённых аукционов: %w", err)
	}

	for i := range ended {
		listing := &ended[i]
		report.Processed++

		settled, err := s.settleOne(ctx, listing)
		switch {
		case err != nil:
			report.Failed++
			logrus.WithError(err).WithField("listing_id", listing.ID).Error("расчёт аукциона: лот не обработан")
		case settled:
			report.Settled++
		default:
			report.NoBids++
		}
	}

	return report, nil
}

// settleOne закрывает один аукцион. Возвращает true, если создан заказ.
func (s *SettlementService) settleOne(ctx context.Context, listing *models.Listing) (bool, error) {
	// Заказ уже существует: лот был рассчитан предыдущим проходом,
	// который не успел обновить статус.
	exists, err := s.orders.ExistsForListing(ctx, listing.ID)
	if err != nil {
		return false, fmt.Errorf("проверка существующего заказа: %w", err)
	}
	if exists {
		if err := s.finishListing(ctx, listing.ID); err != nil {
			return false, err
		}
		return false, nil
	}

	bids, err := s.listings.ListBids(ctx, listing.ID)
	if err != nil {
		return false, fmt.Errorf("выборка ставок: %w", err)
	}

	// Без ставок аукцион завершается без продажи.
	if len(bids) == 0 {
		if err := s.finishListing(ctx, listing.ID); err != nil {
			return false, err
		}
		s.notifications.Notify(ctx, listing.ArtistID, models.NotificationAuctionEnded, models.NotificationData{
			Title:     "Аукцион завершён",
			Message:   fmt.Sprintf("По лоту «%s» не было ставок", listing.Title),
			ListingID: &listing.ID,
		})
		return false, nil
	}

	// Ставки отсортированы по сумме, при равенстве побеждает более ранняя.
	winner := bids[0]

	breakdown := fees.Calculate(winner.Amount)
	order := &models.Order{
		ID:             uuid.New(),
		ListingID:      listing.ID,
		BuyerID:        winner.BidderID,
		ArtistID:       listing.ArtistID,
		Amount:         winner.Amount + listing.ShippingCost,
		SalePrice:      winner.Amount,
		ShippingCost:   listing.ShippingCost,
		PlatformFee:    breakdown.PlatformFee,
		ProcessorFee:   breakdown.ProcessorFee,
		ArtistEarnings: breakdown.ArtistEarnings,
		Status:         models.OrderStatusPending,
		EarningsStatus: models.EarningsStatusPending,
	}

	if err := s.orders.Create(ctx, order); err != nil {
		return false, fmt.Errorf("создание заказа: %w", err)
	}

	if err := s.finishListing(ctx, listing.ID); err != nil {
		return false, err
	}

	s.notifications.Notify(ctx, winner.BidderID, models.NotificationAuctionWon, models.NotificationData{
		Title:     "Вы выиграли аукцион",
		Message:   fmt.Sprintf("Лот «%s» ваш за %.2f, оплатите заказ", listing.Title, winner.Amount),
		OrderID:   &order.ID,
		ListingID: &listing.ID,
	})
	s.notifications.Notify(ctx, listing.ArtistID, models.NotificationAuctionEnded, models.NotificationData{
		Title:     "Аукцион завершён",
		Message:   fmt.Sprintf("Лот «%s» продан за %.2f", listing.Title, winner.Amount),
		OrderID:   &order.ID,
		ListingID: &listing.ID,
	})

	return true, nil
}

// finishListing переводит лот auction -> ended. Конфликт статуса означает,
// что лот закрыл параллельный проход, это не ошибка.
func (s *SettlementService) finishListing(ctx context.Context, listingID uuid.UUID) error {
	err := s.listings.UpdateStatusIf(ctx, listingID, models.ListingStatusAuction, models.ListingStatusEnded)
	if err != nil && !errors.Is(err, repository.ErrListingStatusConflict) {
		return fmt.Errorf("закрытие лота: %w", err)
	}
	return nil
}
