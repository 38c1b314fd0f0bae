package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/ignatzorin/artmarket-backend/internal/models"
)

type mockSettlementListingRepo struct {
	mock.Mock
}

func (m *mockSettlementListingRepo) ListEndedAuctions(ctx context.Context, now time.Time, limit int) ([]models.Listing, error) {
	args := m.Called(ctx, now, limit)
	return args.Get(0).([]models.Listing), args.Error(1)
}

func (m *mockSettlementListingRepo) ListBids(ctx context.Context, listingID uuid.UUID) ([]models.Bid, error) {
	args := m.Called(ctx, listingID)
	return args.Get(0).([]models.Bid), args.Error(1)
}

func (m *mockSettlementListingRepo) UpdateStatusIf(ctx context.Context, id uuid.UUID, from, to string) error {
	args := m.Called(ctx, id, from, to)
	return args.Error(0)
}

type mockSettlementOrderRepo struct {
	mock.Mock
}

func (m *mockSettlementOrderRepo) ExistsForListing(ctx context.Context, listingID uuid.UUID) (bool, error) {
	args := m.Called(ctx, listingID)
	return args.Bool(0), args.Error(1)
}

func (m *mockSettlementOrderRepo) Create(ctx context.Context, o *models.Order) error {
	args := m.Called(ctx, o)
	return args.Error(0)
}

type mockNotificationStore struct {
	mock.Mock
}

func (m *mockNotificationStore) Create(ctx context.Context, n *models.Notification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

func (m *mockNotificationStore) List(ctx context.Context, userID uuid.UUID, limit, offset int, unreadOnly bool) ([]models.Notification, error) {
	args := m.Called(ctx, userID, limit, offset, unreadOnly)
	return args.Get(0).([]models.Notification), args.Error(1)
}

func (m *mockNotificationStore) MarkAsRead(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockNotificationStore) MarkAllAsRead(ctx context.Context, userID uuid.UUID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *mockNotificationStore) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

// silentNotifications возвращает сервис уведомлений, который принимает
// любые события: в тестах бизнес-логики их содержимое не проверяется.
func silentNotifications() *NotificationService {
	store := new(mockNotificationStore)
	store.On("Create", mock.Anything, mock.Anything).Return(nil).Maybe()
	return NewNotificationService(store, nil)
}

func auctionListing(price float64) models.Listing {
	ends := time.Now().Add(-time.Hour)
	return models.Listing{
		ID:            uuid.New(),
		ArtistID:      uuid.New(),
		Title:         "Закат над морем",
		Price:         price,
		ShippingCost:  12,
		ListingType:   models.ListingTypeAuction,
		Status:        models.ListingStatusAuction,
		AuctionEndsAt: &ends,
	}
}

func TestSettlementService_Sweep_WinnerIsHighestBid(t *testing.T) {
	listings := new(mockSettlementListingRepo)
	orders := new(mockSettlementOrderRepo)
	svc := NewSettlementService(listings, orders, silentNotifications())
	ctx := context.Background()

	listing := auctionListing(40)
	base := time.Now()
	bids := []models.Bid{
		{ID: uuid.New(), ListingID: listing.ID, BidderID: uuid.New(), Amount: 25, CreatedAt: base.Add(-time.Minute)},
		{ID: uuid.New(), ListingID: listing.ID, BidderID: uuid.New(), Amount: 17, CreatedAt: base.Add(-2 * time.Minute)},
		{ID: uuid.New(), ListingID: listing.ID, BidderID: uuid.New(), Amount: 10, CreatedAt: base.Add(-3 * time.Minute)},
	}

	listings.On("ListEndedAuctions", ctx, mock.Anything, settlementBatchSize).Return([]models.Listing{listing}, nil)
	orders.On("ExistsForListing", ctx, listing.ID).Return(false, nil)
	listings.On("ListBids", ctx, listing.ID).Return(bids, nil)
	orders.On("Create", ctx, mock.MatchedBy(func(o *models.Order) bool {
		return o.BuyerID == bids[0].BidderID &&
			o.SalePrice == 25 &&
			o.Amount == 25+listing.ShippingCost &&
			o.Status == models.OrderStatusPending
	})).Return(nil)
	listings.On("UpdateStatusIf", ctx, listing.ID, models.ListingStatusAuction, models.ListingStatusEnded).Return(nil)

	report, err := svc.Sweep(ctx)
	assert.NoError(t, err)
	assert.Equal(t, 1, report.Processed)
	assert.Equal(t, 1, report.Settled)
	assert.Equal(t, 0, report.Failed)
	listings.AssertExpectations(t)
	orders.AssertExpectations(t)
}

func TestSettlementService_Sweep_OrderCarriesFeeBreakdown(t *testing.T) {
	listings := new(mockSettlementListingRepo)
	orders := new(mockSettlementOrderRepo)
	svc := NewSettlementService(listings, orders, silentNotifications())
	ctx := context.Background()

	listing := auctionListing(50)
	bids := []models.Bid{
		{ID: uuid.New(), ListingID: listing.ID, BidderID: uuid.New(), Amount: 100},
	}

	listings.On("ListEndedAuctions", ctx, mock.Anything, settlementBatchSize).Return([]models.Listing{listing}, nil)
	orders.On("ExistsForListing", ctx, listing.ID).Return(false, nil)
	listings.On("ListBids", ctx, listing.ID).Return(bids, nil)
	orders.On("Create", ctx, mock.MatchedBy(func(o *models.Order) bool {
		return o.PlatformFee == 10 && o.ProcessorFee == 1.75 && o.ArtistEarnings == 88.25
	})).Return(nil)
	listings.On("UpdateStatusIf", ctx, listing.ID, models.ListingStatusAuction, models.ListingStatusEnded).Return(nil)

	_, err := svc.Sweep(ctx)
	assert.NoError(t, err)
	orders.AssertExpectations(t)
}

func TestSettlementService_Sweep_NoBidsEndsListingWithoutSale(t *testing.T) {
	listings := new(mockSettlementListingRepo)
	orders := new(mockSettlementOrderRepo)
	svc := NewSettlementService(listings, orders, silentNotifications())
	ctx := context.Background()

	listing := auctionListing(40)

	listings.On("ListEndedAuctions", ctx, mock.Anything, settlementBatchSize).Return([]models.Listing{listing}, nil)
	orders.On("ExistsForListing", ctx, listing.ID).Return(false, nil)
	listings.On("ListBids", ctx, listing.ID).Return([]models.Bid{}, nil)
	listings.On("UpdateStatusIf", ctx, listing.ID, models.ListingStatusAuction, models.ListingStatusEnded).Return(nil)

	report, err := svc.Sweep(ctx)
	assert.NoError(t, err)
	assert.Equal(t, 1, report.NoBids)
	assert.Equal(t, 0, report.Settled)
	orders.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestSettlementService_Sweep_SkipsAlreadySettledListing(t *testing.T) {
	listings := new(mockSettlementListingRepo)
	orders := new(mockSettlementOrderRepo)
	svc := NewSettlementService(listings, orders, silentNotifications())
	ctx := context.Background()

	listing := auctionListing(40)

	listings.On("ListEndedAuctions", ctx, mock.Anything, settlementBatchSize).Return([]models.Listing{listing}, nil)
	orders.On("ExistsForListing", ctx, listing.ID).Return(true, nil)
	listings.On("UpdateStatusIf", ctx, listing.ID, models.ListingStatusAuction, models.ListingStatusEnded).Return(nil)

	report, err := svc.Sweep(ctx)
	assert.NoError(t, err)
	assert.Equal(t, 0, report.Settled)
	assert.Equal(t, 0, report.Failed)
	orders.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	listings.AssertNotCalled(t, "ListBids", mock.Anything, mock.Anything)
}

func TestSettlementService_Sweep_FailureDoesNotStopBatch(t *testing.T) {
	listings := new(mockSettlementListingRepo)
	orders := new(mockSettlementOrderRepo)
	svc := NewSettlementService(listings, orders, silentNotifications())
	ctx := context.Background()

	broken := auctionListing(40)
	healthy := auctionListing(40)
	bid := models.Bid{ID: uuid.New(), ListingID: healthy.ID, BidderID: uuid.New(), Amount: 55}

	listings.On("ListEndedAuctions", ctx, mock.Anything, settlementBatchSize).Return([]models.Listing{broken, healthy}, nil)
	orders.On("ExistsForListing", ctx, broken.ID).Return(false, errors.New("db down"))
	orders.On("ExistsForListing", ctx, healthy.ID).Return(false, nil)
	listings.On("ListBids", ctx, healthy.ID).Return([]models.Bid{bid}, nil)
	orders.On("Create", ctx, mock.Anything).Return(nil)
	listings.On("UpdateStatusIf", ctx, healthy.ID, models.ListingStatusAuction, models.ListingStatusEnded).Return(nil)

	report, err := svc.Sweep(ctx)
	assert.NoError(t, err)
	assert.Equal(t, 2, report.Processed)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.Settled)
}
