package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/artmarket-backend/internal/fees"
	"github.com/ignatzorin/artmarket-backend/internal/models"
	"github.com/ignatzorin/artmarket-backend/internal/pkg/apperror"
	"github.com/ignatzorin/artmarket-backend/internal/repository"
	"github.com/ignatzorin/artmarket-backend/internal/repository/common"
	"github.com/ignatzorin/artmarket-backend/internal/validation"
)

// ListingRepo — интерфейс хранилища лотов, используемый сервисом.
type ListingRepo interface {
	Create(ctx context.Context, l *models.Listing) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Listing, error)
	List(ctx context.Context, status, listingType string, limit, offset int) ([]models.Listing, error)
	CreateBid(ctx context.Context, bid *models.Bid) error
	ListBids(ctx context.Context, listingID uuid.UUID) ([]models.Bid, error)
	GetHighestBid(ctx context.Context, listingID uuid.UUID) (*models.Bid, error)
}

// CreateListingInput — данные для публикации лота.
type CreateListingInput struct {
	Title           string
	Description     *string
	Price           float64
	ShippingCost    float64
	ListingType     string
	AuctionEndsAt   *time.Time
	MinBidIncrement float64
	Quantity        int
	CoverMediaID    *uuid.UUID
}

// ListingService управляет лотами и ставками.
type ListingService struct {
	listings      ListingRepo
	notifications *NotificationService

	now func() time.Time
}

// NewListingService создаёт сервис лотов.
func NewListingService(listings ListingRepo, notifications *NotificationService) *ListingService {
	return &ListingService{
		listings:      listings,
		notifications: notifications,
		now:           time.Now,
	}
}

// Create публикует новый лот художника.
func (s *ListingService) Create(ctx context.Context, artistID uuid.UUID, input CreateListingInput) (*models.Listing, error) {
	if err := validation.ValidateLength("title", input.Title, validation.MinListingTitleLength, validation.MaxListingTitleLength); err != nil {
		return nil, apperror.Validation(err.Error())
	}
	if input.Price < fees.MinSalePrice {
		return nil, apperror.Validation(fmt.Sprintf("цена лота не может быть меньше %.2f", fees.MinSalePrice))
	}
	if input.ShippingCost < 0 {
		return nil, apperror.Validation("стоимость доставки не может быть отрицательной")
	}
	if _, ok := models.ValidListingTypes[input.ListingType]; !ok {
		return nil, apperror.Validation("недопустимый тип лота")
	}

	status := models.ListingStatusAvailable
	if input.ListingType == models.ListingTypeAuction || input.ListingType == models.ListingTypeBoth {
		if input.AuctionEndsAt == nil || !input.AuctionEndsAt.After(s.now()) {
			return nil, apperror.Validation("дата окончания аукциона должна быть в будущем")
		}
		if input.MinBidIncrement <= 0 {
			return nil, apperror.Validation("минимальный шаг ставки должен быть положительным")
		}
		status = models.ListingStatusAuction
	}

	quantity := input.Quantity
	if quantity <= 0 {
		quantity = 1
	}

	listing := &models.Listing{
		ID:              uuid.New(),
		ArtistID:        artistID,
		Title:           input.Title,
		Description:     input.Description,
		Price:           input.Price,
		ShippingCost:    input.ShippingCost,
		ListingType:     input.ListingType,
		Status:          status,
		AuctionEndsAt:   input.AuctionEndsAt,
		MinBidIncrement: input.MinBidIncrement,
		Quantity:        quantity,
		CoverMediaID:    input.CoverMediaID,
	}

	if err := s.listings.Create(ctx, listing); err != nil {
		return nil, fmt.Errorf("listing service: создание лота: %w", err)
	}

	return listing, nil
}

// Get возвращает лот по идентификатору.
func (s *ListingService) Get(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	listing, err := s.listings.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrListingNotFound) {
			return nil, apperror.ErrListingNotFound
		}
		return nil, fmt.Errorf("listing service: получение лота: %w", err)
	}
	return listing, nil
}

// List возвращает лоты с фильтрами по статусу и типу.
func (s *ListingService) List(ctx context.Context, status, listingType string, limit, offset int) ([]models.Listing, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	listings, err := s.listings.List(ctx, status, listingType, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing service: список лотов: %w", err)
	}
	return listings, nil
}

// PlaceBid делает ставку на открытый аукционный лот.
// Ставка должна перебивать текущую минимум на min_bid_increment,
// первая ставка — быть не ниже стартовой цены.
func (s *ListingService) PlaceBid(ctx context.Context, bidderID, listingID uuid.UUID, amount float64) (*models.Bid, error) {
	listing, err := s.Get(ctx, listingID)
	if err != nil {
		return nil, err
	}

	if !listing.IsAuction() || listing.Status != models.ListingStatusAuction {
		return nil, apperror.Conflict("торги по лоту не ведутся")
	}
	if listing.AuctionEndsAt == nil || !s.now().Before(*listing.AuctionEndsAt) {
		return nil, apperror.Conflict("торги по лоту завершены")
	}
	if listing.ArtistID == bidderID {
		return nil, apperror.Forbidden("нельзя делать ставки на собственный лот")
	}

	previous, err := s.listings.GetHighestBid(ctx, listingID)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return nil, fmt.Errorf("listing service: текущая ставка: %w", err)
	}

	minAmount := listing.Price
	if previous != nil {
		minAmount = previous.Amount + listing.MinBidIncrement
	}
	if amount < minAmount {
		return nil, apperror.Validation(fmt.Sprintf("ставка должна быть не меньше %.2f", minAmount))
	}

	bid := &models.Bid{
		ID:        uuid.New(),
		ListingID: listingID,
		BidderID:  bidderID,
		Amount:    amount,
	}

	if err := s.listings.CreateBid(ctx, bid); err != nil {
		return nil, fmt.Errorf("listing service: создание ставки: %w", err)
	}

	if previous != nil && previous.BidderID != bidderID {
		s.notifications.Notify(ctx, previous.BidderID, models.NotificationOutbid, models.NotificationData{
			Title:     "Вашу ставку перебили",
			Message:   fmt.Sprintf("По лоту «%s» сделана ставка %.2f", listing.Title, amount),
			ListingID: &listingID,
		})
	}

	return bid, nil
}

// Bids возвращает ставки по лоту, от максимальной к минимальной.
func (s *ListingService) Bids(ctx context.Context, listingID uuid.UUID) ([]models.Bid, error) {
	bids, err := s.listings.ListBids(ctx, listingID)
	if err != nil {
		return nil, fmt.Errorf("listing service: список ставок: %w", err)
	}
	return bids, nil
}
