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
	"github.com/ignatzorin/artmarket-backend/internal/repository"
)

type mockDisputeRepo struct {
	mock.Mock
}

func (m *mockDisputeRepo) Create(ctx context.Context, d *models.Dispute) error {
	args := m.Called(ctx, d)
	return args.Error(0)
}

func (m *mockDisputeRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Dispute), args.Error(1)
}

func (m *mockDisputeRepo) GetActiveByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Dispute, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Dispute), args.Error(1)
}

func (m *mockDisputeRepo) HasActiveDispute(ctx context.Context, orderID uuid.UUID) (bool, error) {
	args := m.Called(ctx, orderID)
	return args.Bool(0), args.Error(1)
}

func (m *mockDisputeRepo) Respond(ctx context.Context, id uuid.UUID, response string, evidenceIDs []string) error {
	args := m.Called(ctx, id, response, evidenceIDs)
	return args.Error(0)
}

func (m *mockDisputeRepo) Resolve(ctx context.Context, id uuid.UUID, decision string, refundPercent *int, refundAmount *float64, resolvedBy uuid.UUID) error {
	args := m.Called(ctx, id, decision, refundPercent, refundAmount, resolvedBy)
	return args.Error(0)
}

func (m *mockDisputeRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Dispute, error) {
	args := m.Called(ctx, userID, limit, offset)
	return args.Get(0).([]models.Dispute), args.Error(1)
}

func (m *mockDisputeRepo) ListOpen(ctx context.Context, limit, offset int) ([]models.Dispute, error) {
	args := m.Called(ctx, limit, offset)
	return args.Get(0).([]models.Dispute), args.Error(1)
}

type mockDisputeOrderRepo struct {
	mock.Mock
}

func (m *mockDisputeOrderRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *mockDisputeOrderRepo) SetDisputed(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockDisputeOrderRepo) ApplyDisputeResolution(ctx context.Context, id uuid.UUID, earningsStatus, protectionStatus string, artistEarnings *float64) error {
	args := m.Called(ctx, id, earningsStatus, protectionStatus, artistEarnings)
	return args.Error(0)
}

func deliveredOrder(buyerID uuid.UUID, protectionEndsAt time.Time) *models.Order {
	return &models.Order{
		ID:               uuid.New(),
		BuyerID:          buyerID,
		ArtistID:         uuid.New(),
		Amount:           112,
		SalePrice:        100,
		ShippingCost:     12,
		ArtistEarnings:   88.25,
		Status:           models.OrderStatusDelivered,
		EarningsStatus:   models.EarningsStatusPending,
		ProtectionStatus: models.ProtectionStatusActive,
		ProtectionEndsAt: &protectionEndsAt,
	}
}

func newDisputeService(disputes *mockDisputeRepo, orders *mockDisputeOrderRepo, now time.Time) *DisputeService {
	svc := NewDisputeService(disputes, orders, silentNotifications())
	svc.now = func() time.Time { return now }
	return svc
}

const disputeReason = "Картина пришла с повреждённой рамой и царапиной на холсте"

func TestDisputeService_Open_Success(t *testing.T) {
	disputes := new(mockDisputeRepo)
	orders := new(mockDisputeOrderRepo)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	svc := newDisputeService(disputes, orders, now)

	buyerID := uuid.New()
	order := deliveredOrder(buyerID, now.Add(48*time.Hour))

	orders.On("GetByID", mock.Anything, order.ID).Return(order, nil)
	disputes.On("HasActiveDispute", mock.Anything, order.ID).Return(false, nil)
	disputes.On("Create", mock.Anything, mock.MatchedBy(func(d *models.Dispute) bool {
		return d.OrderID == order.ID && d.Status == models.DisputeStatusOpen && d.BuyerID == buyerID
	})).Return(nil)
	orders.On("SetDisputed", mock.Anything, order.ID).Return(nil)

	dispute, err := svc.Open(context.Background(), buyerID, order.ID, disputeReason, nil)
	assert.NoError(t, err)
	assert.Equal(t, models.DisputeStatusOpen, dispute.Status)
	disputes.AssertExpectations(t)
	orders.AssertExpectations(t)
}

func TestDisputeService_Open_OnlyBuyer(t *testing.T) {
	disputes := new(mockDisputeRepo)
	orders := new(mockDisputeOrderRepo)
	now := time.Now()
	svc := newDisputeService(disputes, orders, now)

	order := deliveredOrder(uuid.New(), now.Add(48*time.Hour))
	orders.On("GetByID", mock.Anything, order.ID).Return(order, nil)

	_, err := svc.Open(context.Background(), uuid.New(), order.ID, disputeReason, nil)
	assert.True(t, apperror.IsForbidden(err))
	disputes.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestDisputeService_Open_RequiresDeliveredOrder(t *testing.T) {
	disputes := new(mockDisputeRepo)
	orders := new(mockDisputeOrderRepo)
	now := time.Now()
	svc := newDisputeService(disputes, orders, now)

	buyerID := uuid.New()
	order := deliveredOrder(buyerID, now.Add(48*time.Hour))
	order.Status = models.OrderStatusShipped
	orders.On("GetByID", mock.Anything, order.ID).Return(order, nil)

	_, err := svc.Open(context.Background(), buyerID, order.ID, disputeReason, nil)
	assert.True(t, apperror.IsConflict(err))
}

func TestDisputeService_Open_ProtectionWindowClosed(t *testing.T) {
	disputes := new(mockDisputeRepo)
	orders := new(mockDisputeOrderRepo)
	now := time.Now()
	svc := newDisputeService(disputes, orders, now)

	buyerID := uuid.New()
	order := deliveredOrder(buyerID, now.Add(-time.Minute))
	orders.On("GetByID", mock.Anything, order.ID).Return(order, nil)

	_, err := svc.Open(context.Background(), buyerID, order.ID, disputeReason, nil)
	assert.True(t, apperror.IsConflict(err))
}

func TestDisputeService_Open_SecondActiveDisputeRejected(t *testing.T) {
	disputes := new(mockDisputeRepo)
	orders := new(mockDisputeOrderRepo)
	now := time.Now()
	svc := newDisputeService(disputes, orders, now)

	buyerID := uuid.New()
	order := deliveredOrder(buyerID, now.Add(48*time.Hour))
	orders.On("GetByID", mock.Anything, order.ID).Return(order, nil)
	disputes.On("HasActiveDispute", mock.Anything, order.ID).Return(true, nil)

	_, err := svc.Open(context.Background(), buyerID, order.ID, disputeReason, nil)
	assert.True(t, apperror.IsConflict(err))
	disputes.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestDisputeService_Open_ConcurrentDuplicateRejected(t *testing.T) {
	disputes := new(mockDisputeRepo)
	orders := new(mockDisputeOrderRepo)
	now := time.Now()
	svc := newDisputeService(disputes, orders, now)

	buyerID := uuid.New()
	order := deliveredOrder(buyerID, now.Add(48*time.Hour))
	orders.On("GetByID", mock.Anything, order.ID).Return(order, nil)
	// Параллельный запрос успел вставить спор между проверкой и вставкой,
	// дубль отбивает уникальный индекс.
	disputes.On("HasActiveDispute", mock.Anything, order.ID).Return(false, nil)
	disputes.On("Create", mock.Anything, mock.Anything).Return(repository.ErrDisputeAlreadyExists)

	_, err := svc.Open(context.Background(), buyerID, order.ID, disputeReason, nil)
	assert.True(t, apperror.IsConflict(err))
}

func TestDisputeService_Respond_MovesUnderReview(t *testing.T) {
	disputes := new(mockDisputeRepo)
	orders := new(mockDisputeOrderRepo)
	svc := newDisputeService(disputes, orders, time.Now())

	artistID := uuid.New()
	dispute := &models.Dispute{
		ID:       uuid.New(),
		OrderID:  uuid.New(),
		BuyerID:  uuid.New(),
		ArtistID: artistID,
		Status:   models.DisputeStatusOpen,
	}

	response := "Работа была упакована в жёсткий короб, прикладываю фото упаковки"
	disputes.On("GetByID", mock.Anything, dispute.ID).Return(dispute, nil)
	disputes.On("Respond", mock.Anything, dispute.ID, response, []string(nil)).Return(nil)

	err := svc.Respond(context.Background(), artistID, dispute.ID, response, nil)
	assert.NoError(t, err)
	disputes.AssertExpectations(t)
}

func TestDisputeService_Respond_SecondResponseRejected(t *testing.T) {
	disputes := new(mockDisputeRepo)
	orders := new(mockDisputeOrderRepo)
	svc := newDisputeService(disputes, orders, time.Now())

	artistID := uuid.New()
	dispute := &models.Dispute{ID: uuid.New(), ArtistID: artistID, Status: models.DisputeStatusUnderReview}

	response := "Повторный ответ по спору, который уже находится на рассмотрении"
	disputes.On("GetByID", mock.Anything, dispute.ID).Return(dispute, nil)
	disputes.On("Respond", mock.Anything, dispute.ID, response, []string(nil)).Return(repository.ErrDisputeStatusConflict)

	err := svc.Respond(context.Background(), artistID, dispute.ID, response, nil)
	assert.True(t, apperror.IsConflict(err))
}

func TestDisputeService_Resolve_BuyerWinsForfeitsEarnings(t *testing.T) {
	disputes := new(mockDisputeRepo)
	orders := new(mockDisputeOrderRepo)
	svc := newDisputeService(disputes, orders, time.Now())

	adminID := uuid.New()
	order := deliveredOrder(uuid.New(), time.Now().Add(48*time.Hour))
	dispute := &models.Dispute{ID: uuid.New(), OrderID: order.ID, BuyerID: order.BuyerID, ArtistID: order.ArtistID, Status: models.DisputeStatusUnderReview}
	resolved := *dispute
	resolved.Status = models.DisputeStatusResolved

	disputes.On("GetByID", mock.Anything, dispute.ID).Return(dispute, nil).Once()
	orders.On("GetByID", mock.Anything, order.ID).Return(order, nil)
	disputes.On("Resolve", mock.Anything, dispute.ID, models.DisputeDecisionBuyerWins, (*int)(nil), mock.MatchedBy(func(amount *float64) bool {
		// Полный возврат включает доставку.
		return amount != nil && *amount == 112
	}), adminID).Return(nil)
	orders.On("ApplyDisputeResolution", mock.Anything, order.ID, models.EarningsStatusForfeited, models.ProtectionStatusRefunded, (*float64)(nil)).Return(nil)
	disputes.On("GetByID", mock.Anything, dispute.ID).Return(&resolved, nil)

	result, err := svc.Resolve(context.Background(), adminID, dispute.ID, models.DisputeDecisionBuyerWins, nil)
	assert.NoError(t, err)
	assert.Equal(t, models.DisputeStatusResolved, result.Status)
	orders.AssertExpectations(t)
}

func TestDisputeService_Resolve_ArtistWinsReleasesEarnings(t *testing.T) {
	disputes := new(mockDisputeRepo)
	orders := new(mockDisputeOrderRepo)
	svc := newDisputeService(disputes, orders, time.Now())

	adminID := uuid.New()
	order := deliveredOrder(uuid.New(), time.Now().Add(48*time.Hour))
	dispute := &models.Dispute{ID: uuid.New(), OrderID: order.ID, BuyerID: order.BuyerID, ArtistID: order.ArtistID, Status: models.DisputeStatusUnderReview}

	disputes.On("GetByID", mock.Anything, dispute.ID).Return(dispute, nil)
	orders.On("GetByID", mock.Anything, order.ID).Return(order, nil)
	disputes.On("Resolve", mock.Anything, dispute.ID, models.DisputeDecisionArtistWins, (*int)(nil), (*float64)(nil), adminID).Return(nil)
	orders.On("ApplyDisputeResolution", mock.Anything, order.ID, models.EarningsStatusAvailable, models.ProtectionStatusExpired, (*float64)(nil)).Return(nil)

	_, err := svc.Resolve(context.Background(), adminID, dispute.ID, models.DisputeDecisionArtistWins, nil)
	assert.NoError(t, err)
	orders.AssertExpectations(t)
}

func TestDisputeService_Resolve_PartialRefundRoundsToCents(t *testing.T) {
	disputes := new(mockDisputeRepo)
	orders := new(mockDisputeOrderRepo)
	svc := newDisputeService(disputes, orders, time.Now())

	adminID := uuid.New()
	order := deliveredOrder(uuid.New(), time.Now().Add(48*time.Hour))
	order.SalePrice = 99.99
	dispute := &models.Dispute{ID: uuid.New(), OrderID: order.ID, BuyerID: order.BuyerID, ArtistID: order.ArtistID, Status: models.DisputeStatusUnderReview}

	pct := 33
	disputes.On("GetByID", mock.Anything, dispute.ID).Return(dispute, nil)
	orders.On("GetByID", mock.Anything, order.ID).Return(order, nil)
	disputes.On("Resolve", mock.Anything, dispute.ID, models.DisputeDecisionPartialRefund, &pct, mock.MatchedBy(func(amount *float64) bool {
		// 99.99 * 0.33 = 32.9967, после округления 33.00.
		return amount != nil && *amount == 33.0
	}), adminID).Return(nil)
	orders.On("ApplyDisputeResolution", mock.Anything, order.ID, models.EarningsStatusAvailable, models.ProtectionStatusRefunded, mock.MatchedBy(func(earnings *float64) bool {
		// Остаток выручки: 88.25 - 33.00.
		return earnings != nil && *earnings == 55.25
	})).Return(nil)

	_, err := svc.Resolve(context.Background(), adminID, dispute.ID, models.DisputeDecisionPartialRefund, &pct)
	assert.NoError(t, err)
	orders.AssertExpectations(t)
}

func TestDisputeService_Resolve_PartialRefundConservesMoney(t *testing.T) {
	disputes := new(mockDisputeRepo)
	orders := new(mockDisputeOrderRepo)
	svc := newDisputeService(disputes, orders, time.Now())

	adminID := uuid.New()
	// Продажа 100: выручка художника 88.25 после комиссий.
	order := deliveredOrder(uuid.New(), time.Now().Add(48*time.Hour))
	dispute := &models.Dispute{ID: uuid.New(), OrderID: order.ID, BuyerID: order.BuyerID, ArtistID: order.ArtistID, Status: models.DisputeStatusUnderReview}

	pct := 50
	var refunded, released float64
	disputes.On("GetByID", mock.Anything, dispute.ID).Return(dispute, nil)
	orders.On("GetByID", mock.Anything, order.ID).Return(order, nil)
	disputes.On("Resolve", mock.Anything, dispute.ID, models.DisputeDecisionPartialRefund, &pct, mock.MatchedBy(func(amount *float64) bool {
		refunded = *amount
		return true
	}), adminID).Return(nil)
	orders.On("ApplyDisputeResolution", mock.Anything, order.ID, models.EarningsStatusAvailable, models.ProtectionStatusRefunded, mock.MatchedBy(func(earnings *float64) bool {
		released = *earnings
		return true
	})).Return(nil)

	_, err := svc.Resolve(context.Background(), adminID, dispute.ID, models.DisputeDecisionPartialRefund, &pct)
	assert.NoError(t, err)
	assert.InDelta(t, 50.0, refunded, 0.001)
	assert.InDelta(t, 38.25, released, 0.001)
	// Возврат плюс остаток выручки не превышают собранное по заказу.
	assert.InDelta(t, order.ArtistEarnings, refunded+released, 0.001)
}

func TestDisputeService_Resolve_PartialRefundEdgePercents(t *testing.T) {
	adminID := uuid.New()

	// 0%: возврата нет, выручка уходит художнику целиком.
	disputes := new(mockDisputeRepo)
	orders := new(mockDisputeOrderRepo)
	svc := newDisputeService(disputes, orders, time.Now())

	order := deliveredOrder(uuid.New(), time.Now().Add(48*time.Hour))
	dispute := &models.Dispute{ID: uuid.New(), OrderID: order.ID, BuyerID: order.BuyerID, ArtistID: order.ArtistID, Status: models.DisputeStatusUnderReview}

	zero := 0
	disputes.On("GetByID", mock.Anything, dispute.ID).Return(dispute, nil)
	orders.On("GetByID", mock.Anything, order.ID).Return(order, nil)
	disputes.On("Resolve", mock.Anything, dispute.ID, models.DisputeDecisionPartialRefund, &zero, mock.Anything, adminID).Return(nil)
	orders.On("ApplyDisputeResolution", mock.Anything, order.ID, models.EarningsStatusAvailable, models.ProtectionStatusExpired, mock.MatchedBy(func(earnings *float64) bool {
		return earnings != nil && *earnings == 88.25
	})).Return(nil)

	_, err := svc.Resolve(context.Background(), adminID, dispute.ID, models.DisputeDecisionPartialRefund, &zero)
	assert.NoError(t, err)
	orders.AssertExpectations(t)

	// 100%: возврат полной цены продажи, остатка выручки нет.
	disputes = new(mockDisputeRepo)
	orders = new(mockDisputeOrderRepo)
	svc = newDisputeService(disputes, orders, time.Now())

	order = deliveredOrder(uuid.New(), time.Now().Add(48*time.Hour))
	dispute = &models.Dispute{ID: uuid.New(), OrderID: order.ID, BuyerID: order.BuyerID, ArtistID: order.ArtistID, Status: models.DisputeStatusUnderReview}

	full := 100
	disputes.On("GetByID", mock.Anything, dispute.ID).Return(dispute, nil)
	orders.On("GetByID", mock.Anything, order.ID).Return(order, nil)
	disputes.On("Resolve", mock.Anything, dispute.ID, models.DisputeDecisionPartialRefund, &full, mock.MatchedBy(func(amount *float64) bool {
		return amount != nil && *amount == 100.0
	}), adminID).Return(nil)
	orders.On("ApplyDisputeResolution", mock.Anything, order.ID, models.EarningsStatusForfeited, models.ProtectionStatusRefunded, mock.MatchedBy(func(earnings *float64) bool {
		return earnings != nil && *earnings == 0.0
	})).Return(nil)

	_, err = svc.Resolve(context.Background(), adminID, dispute.ID, models.DisputeDecisionPartialRefund, &full)
	assert.NoError(t, err)
	orders.AssertExpectations(t)
}

func TestDisputeService_Resolve_PartialRefundRequiresPercent(t *testing.T) {
	disputes := new(mockDisputeRepo)
	orders := new(mockDisputeOrderRepo)
	svc := newDisputeService(disputes, orders, time.Now())

	dispute := &models.Dispute{ID: uuid.New(), OrderID: uuid.New(), Status: models.DisputeStatusUnderReview}
	order := deliveredOrder(uuid.New(), time.Now().Add(48*time.Hour))
	order.ID = dispute.OrderID
	disputes.On("GetByID", mock.Anything, dispute.ID).Return(dispute, nil)
	orders.On("GetByID", mock.Anything, dispute.OrderID).Return(order, nil)

	_, err := svc.Resolve(context.Background(), uuid.New(), dispute.ID, models.DisputeDecisionPartialRefund, nil)
	assert.True(t, apperror.IsValidation(err))

	bad := 150
	_, err = svc.Resolve(context.Background(), uuid.New(), dispute.ID, models.DisputeDecisionPartialRefund, &bad)
	assert.True(t, apperror.IsValidation(err))
}

func TestDisputeService_Resolve_ResolvedDisputeIsImmutable(t *testing.T) {
	disputes := new(mockDisputeRepo)
	orders := new(mockDisputeOrderRepo)
	svc := newDisputeService(disputes, orders, time.Now())

	dispute := &models.Dispute{ID: uuid.New(), Status: models.DisputeStatusResolved}
	disputes.On("GetByID", mock.Anything, dispute.ID).Return(dispute, nil)

	_, err := svc.Resolve(context.Background(), uuid.New(), dispute.ID, models.DisputeDecisionArtistWins, nil)
	assert.True(t, apperror.IsConflict(err))
	disputes.AssertNotCalled(t, "Resolve", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDisputeService_Resolve_UnknownDecision(t *testing.T) {
	disputes := new(mockDisputeRepo)
	orders := new(mockDisputeOrderRepo)
	svc := newDisputeService(disputes, orders, time.Now())

	_, err := svc.Resolve(context.Background(), uuid.New(), uuid.New(), "split_the_difference", nil)
	assert.True(t, apperror.IsValidation(err))
}
