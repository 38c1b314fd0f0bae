package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/ignatzorin/artmarket-backend/internal/models"
	"github.com/ignatzorin/artmarket-backend/internal/pkg/apperror"
	"github.com/ignatzorin/artmarket-backend/internal/repository/common"
)

type mockListingRepo struct {
	mock.Mock
}

func (m *mockListingRepo) Create(ctx context.Context, l *models.Listing) error {
	args := m.Called(ctx, l)
	return args.Error(0)
}

func (m *mockListingRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Listing), args.Error(1)
}

func (m *mockListingRepo) List(ctx context.Context, status, listingType string, limit, offset int) ([]models.Listing, error) {
	args := m.Called(ctx, status, listingType, limit, offset)
	return args.Get(0).([]models.Listing), args.Error(1)
}

func (m *mockListingRepo) CreateBid(ctx context.Context, bid *models.Bid) error {
	args := m.Called(ctx, bid)
	return args.Error(0)
}

func (m *mockListingRepo) ListBids(ctx context.Context, listingID uuid.UUID) ([]models.Bid, error) {
	args := m.Called(ctx, listingID)
	return args.Get(0).([]models.Bid), args.Error(1)
}

func (m *mockListingRepo) GetHighestBid(ctx context.Context, listingID uuid.UUID) (*models.Bid, error) {
	args := m.Called(ctx, listingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Bid), args.Error(1)
}

func openAuction(price, increment float64) *models.Listing {
	ends := time.Now().Add(24 * time.Hour)
	return &models.Listing{
		ID:              uuid.New(),
		ArtistID:        uuid.New(),
		Title:           "Городской пейзаж",
		Price:           price,
		ListingType:     models.ListingTypeAuction,
		Status:          models.ListingStatusAuction,
		AuctionEndsAt:   &ends,
		MinBidIncrement: increment,
	}
}

func TestListingService_Create_PriceBelowMinimumRejected(t *testing.T) {
	repo := new(mockListingRepo)
	svc := NewListingService(repo, silentNotifications())

	_, err := svc.Create(context.Background(), uuid.New(), CreateListingInput{
		Title:       "Маленький этюд",
		Price:       9.99,
		ListingType: models.ListingTypeFixed,
	})
	assert.True(t, apperror.IsValidation(err))
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestListingService_Create_AuctionRequiresFutureEnd(t *testing.T) {
	repo := new(mockListingRepo)
	svc := NewListingService(repo, silentNotifications())

	past := time.Now().Add(-time.Hour)
	_, err := svc.Create(context.Background(), uuid.New(), CreateListingInput{
		Title:           "Лот с прошедшим сроком",
		Price:           50,
		ListingType:     models.ListingTypeAuction,
		AuctionEndsAt:   &past,
		MinBidIncrement: 5,
	})
	assert.True(t, apperror.IsValidation(err))
}

func TestListingService_Create_AuctionGetsAuctionStatus(t *testing.T) {
	repo := new(mockListingRepo)
	svc := NewListingService(repo, silentNotifications())

	future := time.Now().Add(48 * time.Hour)
	repo.On("Create", mock.Anything, mock.MatchedBy(func(l *models.Listing) bool {
		return l.Status == models.ListingStatusAuction && l.Quantity == 1
	})).Return(nil)

	listing, err := svc.Create(context.Background(), uuid.New(), CreateListingInput{
		Title:           "Вечерний аукционный лот",
		Price:           50,
		ListingType:     models.ListingTypeAuction,
		AuctionEndsAt:   &future,
		MinBidIncrement: 5,
	})
	assert.NoError(t, err)
	assert.Equal(t, models.ListingStatusAuction, listing.Status)
	repo.AssertExpectations(t)
}

func TestListingService_PlaceBid_FirstBidMustMeetStartPrice(t *testing.T) {
	repo := new(mockListingRepo)
	svc := NewListingService(repo, silentNotifications())

	listing := openAuction(50, 5)
	repo.On("GetByID", mock.Anything, listing.ID).Return(listing, nil)
	repo.On("GetHighestBid", mock.Anything, listing.ID).Return(nil, common.ErrNotFound)

	_, err := svc.PlaceBid(context.Background(), uuid.New(), listing.ID, 49)
	assert.True(t, apperror.IsValidation(err))
	repo.AssertNotCalled(t, "CreateBid", mock.Anything, mock.Anything)
}

func TestListingService_PlaceBid_MustBeatCurrentByIncrement(t *testing.T) {
	repo := new(mockListingRepo)
	svc := NewListingService(repo, silentNotifications())

	listing := openAuction(50, 5)
	highest := &models.Bid{ID: uuid.New(), ListingID: listing.ID, BidderID: uuid.New(), Amount: 60}
	repo.On("GetByID", mock.Anything, listing.ID).Return(listing, nil)
	repo.On("GetHighestBid", mock.Anything, listing.ID).Return(highest, nil)

	// 64 < 60 + 5: ставка отклоняется.
	_, err := svc.PlaceBid(context.Background(), uuid.New(), listing.ID, 64)
	assert.True(t, apperror.IsValidation(err))

	repo.On("CreateBid", mock.Anything, mock.MatchedBy(func(b *models.Bid) bool {
		return b.Amount == 65
	})).Return(nil)

	bid, err := svc.PlaceBid(context.Background(), uuid.New(), listing.ID, 65)
	assert.NoError(t, err)
	assert.Equal(t, 65.0, bid.Amount)
}

func TestListingService_PlaceBid_ClosedAuctionRejected(t *testing.T) {
	repo := new(mockListingRepo)
	svc := NewListingService(repo, silentNotifications())

	listing := openAuction(50, 5)
	ended := time.Now().Add(-time.Minute)
	listing.AuctionEndsAt = &ended
	repo.On("GetByID", mock.Anything, listing.ID).Return(listing, nil)

	_, err := svc.PlaceBid(context.Background(), uuid.New(), listing.ID, 100)
	assert.True(t, apperror.IsConflict(err))
}

func TestListingService_PlaceBid_OwnListingRejected(t *testing.T) {
	repo := new(mockListingRepo)
	svc := NewListingService(repo, silentNotifications())

	listing := openAuction(50, 5)
	repo.On("GetByID", mock.Anything, listing.ID).Return(listing, nil)

	_, err := svc.PlaceBid(context.Background(), listing.ArtistID, listing.ID, 100)
	assert.True(t, apperror.IsForbidden(err))
}
