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
	"github.com/ignatzorin/artmarket-backend/internal/pkg/apperror"
	"github.com/ignatzorin/artmarket-backend/internal/repository"
	"github.com/ignatzorin/artmarket-backend/internal/tracking"
)

type mockOrderRepo struct {
	mock.Mock
}

func (m *mockOrderRepo) Create(ctx context.Context, o *models.Order) error {
	args := m.Called(ctx, o)
	return args.Error(0)
}

func (m *mockOrderRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *mockOrderRepo) GetByListingID(ctx context.Context, listingID uuid.UUID) (*models.Order, error) {
	args := m.Called(ctx, listingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *mockOrderRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Order, error) {
	args := m.Called(ctx, userID, limit, offset)
	return args.Get(0).([]models.Order), args.Error(1)
}

func (m *mockOrderRepo) MarkPaid(ctx context.Context, id uuid.UUID, paymentIntentID string, paidAt, shippingDeadline time.Time) error {
	args := m.Called(ctx, id, paymentIntentID, paidAt, shippingDeadline)
	return args.Error(0)
}

func (m *mockOrderRepo) SubmitTracking(ctx context.Context, id uuid.UUID, trackingNumber string) error {
	args := m.Called(ctx, id, trackingNumber)
	return args.Error(0)
}

func (m *mockOrderRepo) ApproveTracking(ctx context.Context, id uuid.UUID, shippedAt time.Time) error {
	args := m.Called(ctx, id, shippedAt)
	return args.Error(0)
}

func (m *mockOrderRepo) RejectTracking(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockOrderRepo) MarkDelivered(ctx context.Context, id uuid.UUID, deliveredAt, protectionEndsAt time.Time) error {
	args := m.Called(ctx, id, deliveredAt, protectionEndsAt)
	return args.Error(0)
}

func (m *mockOrderRepo) DeleteAbandonedPending(ctx context.Context, olderThan time.Time) (int64, error) {
	args := m.Called(ctx, olderThan)
	return args.Get(0).(int64), args.Error(1)
}

type mockOrderListingRepo struct {
	mock.Mock
}

func (m *mockOrderListingRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Listing), args.Error(1)
}

func (m *mockOrderListingRepo) MarkSold(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type mockTrackingChecker struct {
	mock.Mock
}

func (m *mockTrackingChecker) Check(ctx context.Context, trackingNumber string) (*tracking.CheckResult, error) {
	args := m.Called(ctx, trackingNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*tracking.CheckResult), args.Error(1)
}

func fixedListing(price float64) *models.Listing {
	return &models.Listing{
		ID:           uuid.New(),
		ArtistID:     uuid.New(),
		Title:        "Акварельный этюд",
		Price:        price,
		ShippingCost: 12,
		ListingType:  models.ListingTypeFixed,
		Status:       models.ListingStatusAvailable,
	}
}

func newOrderService(orders *mockOrderRepo, listings *mockOrderListingRepo, carrier *mockTrackingChecker, now time.Time) *OrderService {
	svc := NewOrderService(orders, listings, carrier, silentNotifications())
	svc.now = func() time.Time { return now }
	return svc
}

func TestOrderService_Create_Success(t *testing.T) {
	orders := new(mockOrderRepo)
	listings := new(mockOrderListingRepo)
	carrier := new(mockTrackingChecker)
	svc := newOrderService(orders, listings, carrier, time.Now())

	listing := fixedListing(100)
	buyerID := uuid.New()

	listings.On("GetByID", mock.Anything, listing.ID).Return(listing, nil)
	orders.On("GetByListingID", mock.Anything, listing.ID).Return(nil, repository.ErrOrderNotFound)
	orders.On("Create", mock.Anything, mock.MatchedBy(func(o *models.Order) bool {
		return o.SalePrice == 100 &&
			o.Amount == 112 &&
			o.PlatformFee == 10 &&
			o.ProcessorFee == 1.75 &&
			o.ArtistEarnings == 88.25 &&
			o.Status == models.OrderStatusPending &&
			o.EarningsStatus == models.EarningsStatusPending
	})).Return(nil)

	order, err := svc.Create(context.Background(), buyerID, listing.ID)
	assert.NoError(t, err)
	assert.Equal(t, buyerID, order.BuyerID)
	orders.AssertExpectations(t)
}

func TestOrderService_Create_ReturnsExistingPendingOrder(t *testing.T) {
	orders := new(mockOrderRepo)
	listings := new(mockOrderListingRepo)
	carrier := new(mockTrackingChecker)
	svc := newOrderService(orders, listings, carrier, time.Now())

	listing := fixedListing(100)
	buyerID := uuid.New()
	existing := &models.Order{
		ID:        uuid.New(),
		ListingID: listing.ID,
		BuyerID:   buyerID,
		Status:    models.OrderStatusPending,
	}

	listings.On("GetByID", mock.Anything, listing.ID).Return(listing, nil)
	orders.On("GetByListingID", mock.Anything, listing.ID).Return(existing, nil)

	order, err := svc.Create(context.Background(), buyerID, listing.ID)
	assert.NoError(t, err)
	assert.Equal(t, existing.ID, order.ID)
	orders.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestOrderService_Create_OwnListingRejected(t *testing.T) {
	orders := new(mockOrderRepo)
	listings := new(mockOrderListingRepo)
	carrier := new(mockTrackingChecker)
	svc := newOrderService(orders, listings, carrier, time.Now())

	listing := fixedListing(100)
	listings.On("GetByID", mock.Anything, listing.ID).Return(listing, nil)

	_, err := svc.Create(context.Background(), listing.ArtistID, listing.ID)
	assert.True(t, apperror.IsForbidden(err))
}

func TestOrderService_Create_AuctionOnlyListingRejected(t *testing.T) {
	orders := new(mockOrderRepo)
	listings := new(mockOrderListingRepo)
	carrier := new(mockTrackingChecker)
	svc := newOrderService(orders, listings, carrier, time.Now())

	listing := fixedListing(100)
	listing.ListingType = models.ListingTypeAuction
	listings.On("GetByID", mock.Anything, listing.ID).Return(listing, nil)

	_, err := svc.Create(context.Background(), uuid.New(), listing.ID)
	assert.True(t, apperror.IsConflict(err))
}

func TestOrderService_MarkPaid_SetsBusinessDayDeadline(t *testing.T) {
	orders := new(mockOrderRepo)
	listings := new(mockOrderListingRepo)
	carrier := new(mockTrackingChecker)

	// Оплата в понедельник, дедлайн в следующий понедельник.
	paidAt := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	svc := newOrderService(orders, listings, carrier, paidAt)

	orderID := uuid.New()
	listingID := uuid.New()
	intentID := "pi_12345"
	expectedDeadline := time.Date(2024, 1, 8, 10, 0, 0, 0, time.UTC)

	orders.On("MarkPaid", mock.Anything, orderID, intentID, paidAt, expectedDeadline).Return(nil)
	orders.On("GetByID", mock.Anything, orderID).Return(&models.Order{
		ID:        orderID,
		ListingID: listingID,
		ArtistID:  uuid.New(),
		Status:    models.OrderStatusPaid,
	}, nil)
	listings.On("MarkSold", mock.Anything, listingID).Return(nil)

	err := svc.MarkPaid(context.Background(), orderID, intentID)
	assert.NoError(t, err)
	orders.AssertExpectations(t)
	listings.AssertExpectations(t)
}

func TestOrderService_MarkPaid_DuplicateWebhookIsIdempotent(t *testing.T) {
	orders := new(mockOrderRepo)
	listings := new(mockOrderListingRepo)
	carrier := new(mockTrackingChecker)
	svc := newOrderService(orders, listings, carrier, time.Now())

	orderID := uuid.New()
	intentID := "pi_12345"

	orders.On("MarkPaid", mock.Anything, orderID, intentID, mock.Anything, mock.Anything).Return(repository.ErrOrderStatusConflict)
	orders.On("GetByID", mock.Anything, orderID).Return(&models.Order{
		ID:              orderID,
		Status:          models.OrderStatusPaid,
		PaymentIntentID: &intentID,
	}, nil)

	err := svc.MarkPaid(context.Background(), orderID, intentID)
	assert.NoError(t, err)
}

func TestOrderService_MarkPaid_ForeignIntentIsConflict(t *testing.T) {
	orders := new(mockOrderRepo)
	listings := new(mockOrderListingRepo)
	carrier := new(mockTrackingChecker)
	svc := newOrderService(orders, listings, carrier, time.Now())

	orderID := uuid.New()
	other := "pi_other"

	orders.On("MarkPaid", mock.Anything, orderID, "pi_12345", mock.Anything, mock.Anything).Return(repository.ErrOrderStatusConflict)
	orders.On("GetByID", mock.Anything, orderID).Return(&models.Order{
		ID:              orderID,
		Status:          models.OrderStatusPaid,
		PaymentIntentID: &other,
	}, nil)

	err := svc.MarkPaid(context.Background(), orderID, "pi_12345")
	assert.True(t, apperror.IsConflict(err))
}

func TestOrderService_SubmitTracking_Success(t *testing.T) {
	orders := new(mockOrderRepo)
	listings := new(mockOrderListingRepo)
	carrier := new(mockTrackingChecker)
	svc := newOrderService(orders, listings, carrier, time.Now())

	artistID := uuid.New()
	orderID := uuid.New()
	trackNo := "RA123456789RU"

	orders.On("GetByID", mock.Anything, orderID).Return(&models.Order{
		ID:       orderID,
		ArtistID: artistID,
		Status:   models.OrderStatusPaid,
	}, nil)
	carrier.On("Check", mock.Anything, trackNo).Return(&tracking.CheckResult{Valid: true}, nil)
	orders.On("SubmitTracking", mock.Anything, orderID, trackNo).Return(nil)

	err := svc.SubmitTracking(context.Background(), artistID, orderID, trackNo)
	assert.NoError(t, err)
	orders.AssertExpectations(t)
}

func TestOrderService_SubmitTracking_CarrierDownIsTolerated(t *testing.T) {
	orders := new(mockOrderRepo)
	listings := new(mockOrderListingRepo)
	carrier := new(mockTrackingChecker)
	svc := newOrderService(orders, listings, carrier, time.Now())

	artistID := uuid.New()
	orderID := uuid.New()
	trackNo := "RA123456789RU"

	orders.On("GetByID", mock.Anything, orderID).Return(&models.Order{ID: orderID, ArtistID: artistID}, nil)
	carrier.On("Check", mock.Anything, trackNo).Return(nil, errors.New("timeout"))
	orders.On("SubmitTracking", mock.Anything, orderID, trackNo).Return(nil)

	err := svc.SubmitTracking(context.Background(), artistID, orderID, trackNo)
	assert.NoError(t, err)
	orders.AssertExpectations(t)
}

func TestOrderService_SubmitTracking_InvalidNumberRejected(t *testing.T) {
	orders := new(mockOrderRepo)
	listings := new(mockOrderListingRepo)
	carrier := new(mockTrackingChecker)
	svc := newOrderService(orders, listings, carrier, time.Now())

	artistID := uuid.New()
	orderID := uuid.New()
	trackNo := "RA123456789RU"

	orders.On("GetByID", mock.Anything, orderID).Return(&models.Order{ID: orderID, ArtistID: artistID}, nil)
	carrier.On("Check", mock.Anything, trackNo).Return(&tracking.CheckResult{Valid: false}, nil)

	err := svc.SubmitTracking(context.Background(), artistID, orderID, trackNo)
	assert.True(t, apperror.IsValidation(err))
	orders.AssertNotCalled(t, "SubmitTracking", mock.Anything, mock.Anything, mock.Anything)
}

func TestOrderService_SubmitTracking_ForeignOrderRejected(t *testing.T) {
	orders := new(mockOrderRepo)
	listings := new(mockOrderListingRepo)
	carrier := new(mockTrackingChecker)
	svc := newOrderService(orders, listings, carrier, time.Now())

	orderID := uuid.New()
	orders.On("GetByID", mock.Anything, orderID).Return(&models.Order{ID: orderID, ArtistID: uuid.New()}, nil)

	err := svc.SubmitTracking(context.Background(), uuid.New(), orderID, "RA123456789RU")
	assert.True(t, apperror.IsForbidden(err))
}

func TestOrderService_MarkDelivered_OpensProtectionWindow(t *testing.T) {
	orders := new(mockOrderRepo)
	listings := new(mockOrderListingRepo)
	carrier := new(mockTrackingChecker)

	deliveredAt := time.Date(2024, 2, 1, 15, 0, 0, 0, time.UTC)
	svc := newOrderService(orders, listings, carrier, deliveredAt)

	orderID := uuid.New()
	// Ровно 14 суток по 24 часа.
	expectedEnd := deliveredAt.Add(14 * 24 * time.Hour)

	orders.On("MarkDelivered", mock.Anything, orderID, deliveredAt, expectedEnd).Return(nil)
	orders.On("GetByID", mock.Anything, orderID).Return(&models.Order{ID: orderID, BuyerID: uuid.New()}, nil)

	err := svc.MarkDelivered(context.Background(), orderID)
	assert.NoError(t, err)
	orders.AssertExpectations(t)
}

func TestOrderService_MarkDelivered_WrongStateIsConflict(t *testing.T) {
	orders := new(mockOrderRepo)
	listings := new(mockOrderListingRepo)
	carrier := new(mockTrackingChecker)
	svc := newOrderService(orders, listings, carrier, time.Now())

	orderID := uuid.New()
	orders.On("MarkDelivered", mock.Anything, orderID, mock.Anything, mock.Anything).Return(repository.ErrOrderStatusConflict)

	err := svc.MarkDelivered(context.Background(), orderID)
	assert.True(t, apperror.IsConflict(err))
}

func TestOrderService_Get_AccessControl(t *testing.T) {
	orders := new(mockOrderRepo)
	listings := new(mockOrderListingRepo)
	carrier := new(mockTrackingChecker)
	svc := newOrderService(orders, listings, carrier, time.Now())

	buyerID := uuid.New()
	artistID := uuid.New()
	order := &models.Order{ID: uuid.New(), BuyerID: buyerID, ArtistID: artistID}
	orders.On("GetByID", mock.Anything, order.ID).Return(order, nil)

	_, err := svc.Get(context.Background(), buyerID, models.UserRoleBuyer, order.ID)
	assert.NoError(t, err)

	_, err = svc.Get(context.Background(), artistID, models.UserRoleArtist, order.ID)
	assert.NoError(t, err)

	_, err = svc.Get(context.Background(), uuid.New(), models.UserRoleAdmin, order.ID)
	assert.NoError(t, err)

	_, err = svc.Get(context.Background(), uuid.New(), models.UserRoleBuyer, order.ID)
	assert.True(t, apperror.IsForbidden(err))
}

func TestOrderService_PurgeAbandoned_UsesRetentionCutoff(t *testing.T) {
	orders := new(mockOrderRepo)
	listings := new(mockOrderListingRepo)
	carrier := new(mockTrackingChecker)

	now := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	svc := newOrderService(orders, listings, carrier, now)

	orders.On("DeleteAbandonedPending", mock.Anything, now.AddDate(0, 0, -7)).Return(int64(3), nil)

	deleted, err := svc.PurgeAbandoned(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, int64(3), deleted)
	orders.AssertExpectations(t)
}
