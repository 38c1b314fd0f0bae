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
	"github.com/ignatzorin/artmarket-backend/internal/validation"
)

// DisputeRepo is the dispute storage interface used by the service.
type DisputeRepo interface {
	Create(ctx context.Context, d *models.Dispute) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error)
	GetActiveByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Dispute, error)
	HasActiveDispute(ctx context.Context, orderID uuid.UUID) (bool, error)
	Respond(ctx context.Context, id uuid.UUID, response string, evidenceIDs []string) error
	Resolve(ctx context.Context, id uuid.UUID, decision string, refundPercent *int, refundAmount *float64, resolvedBy uuid.UUID) error
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Dispute, error)
	ListOpen(ctx context.Context, limit, offset int) ([]models.Dispute, error)
}

// DisputeOrderRepo is the slice of order storage the dispute flow needs.
type DisputeOrderRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	SetDisputed(ctx context.Context, id uuid.UUID) error
	ApplyDisputeResolution(ctx context.Context, id uuid.UUID, earningsStatus, protectionStatus string, artistEarnings *float64) error
}

// DisputeService runs the dispute flow: the buyer opens a dispute against
// a delivered order while buyer protection is active, the artist responds
// once, an admin resolves it. A resolved dispute is immutable.
type DisputeService struct {
	disputes      DisputeRepo
	orders        DisputeOrderRepo
	notifications *NotificationService

	now func() time.Time
}

// NewDisputeService создаёт сервис споров.
func NewDisputeService(disputes DisputeRepo, orders DisputeOrderRepo, notifications *NotificationService) *DisputeService {
	return &DisputeService{
		disputes:      disputes,
		orders:        orders,
		notifications: notifications,
		now:           time.Now,
	}
}

// Open creates a dispute. Only the buyer of a delivered order may open
// one, and only while the protection window has not closed yet.
func (s *DisputeService) Open(ctx context.Context, buyerID, orderID uuid.UUID, reason string, evidenceIDs []string) (*models.Dispute, error) {
	if err := validation.ValidateLength("reason", reason, validation.MinDisputeReasonLength, validation.MaxDisputeReasonLength); err != nil {
		return nil, apperror.Validation(err.Error())
	}

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return nil, apperror.ErrOrderNotFound
		}
		return nil, fmt.Errorf("dispute service: load order: %w", err)
	}

	if order.BuyerID != buyerID {
		return nil, apperror.ErrForbidden
	}
	if order.Status != models.OrderStatusDelivered {
		return nil, apperror.Conflict("спор можно открыть только по доставленному заказу")
	}
	if order.ProtectionEndsAt == nil || !s.now().Before(*order.ProtectionEndsAt) {
		return nil, apperror.Conflict("окно защиты покупателя истекло")
	}
	if order.EarningsStatus != models.EarningsStatusPending {
		return nil, apperror.Conflict("выручка по заказу уже разблокирована")
	}

	// Дружелюбная проверка до вставки; гонку двух одновременных
	// открытий закрывает частичный уникальный индекс по order_id.
	if active, err := s.disputes.HasActiveDispute(ctx, order.ID); err != nil {
		return nil, fmt.Errorf("dispute service: check active dispute: %w", err)
	} else if active {
		return nil, apperror.Conflict("по заказу уже открыт спор")
	}

	dispute := &models.Dispute{
		ID:          uuid.New(),
		OrderID:     order.ID,
		BuyerID:     order.BuyerID,
		ArtistID:    order.ArtistID,
		Reason:      reason,
		Status:      models.DisputeStatusOpen,
		EvidenceIDs: evidenceIDs,
	}

	if err := s.disputes.Create(ctx, dispute); err != nil {
		if errors.Is(err, repository.ErrDisputeAlreadyExists) {
			return nil, apperror.Conflict("по заказу уже открыт спор")
		}
		return nil, fmt.Errorf("dispute service: create dispute: %w", err)
	}

	// The releasable query re-checks disputes on its own, so a failure
	// here cannot cause an early release. The flag is for reads.
	if err := s.orders.SetDisputed(ctx, order.ID); err != nil && !errors.Is(err, repository.ErrOrderStatusConflict) {
		return nil, fmt.Errorf("dispute service: mark order disputed: %w", err)
	}

	s.notifications.Notify(ctx, order.ArtistID, models.NotificationDisputeOpened, models.NotificationData{
		Title:   "Открыт спор по заказу",
		Message: "Покупатель открыл спор, ответьте на него в личном кабинете",
		OrderID: &order.ID,
	})

	return dispute, nil
}

// Respond records the artist's single response and moves the dispute
// under review.
func (s *DisputeService) Respond(ctx context.Context, artistID, disputeID uuid.UUID, response string, evidenceIDs []string) error {
	if err := validation.ValidateLength("response", response, validation.MinDisputeReasonLength, validation.MaxDisputeResponseLength); err != nil {
		return apperror.Validation(err.Error())
	}

	dispute, err := s.getDispute(ctx, disputeID)
	if err != nil {
		return err
	}
	if dispute.ArtistID != artistID {
		return apperror.ErrForbidden
	}

	if err := s.disputes.Respond(ctx, disputeID, response, evidenceIDs); err != nil {
		if errors.Is(err, repository.ErrDisputeStatusConflict) {
			return apperror.Conflict("ответ по спору уже дан или спор закрыт")
		}
		return fmt.Errorf("dispute service: respond: %w", err)
	}

	s.notifications.Notify(ctx, dispute.BuyerID, models.NotificationDisputeResponse, models.NotificationData{
		Title:   "Продавец ответил на спор",
		Message: "Спор передан на рассмотрение администратору",
		OrderID: &dispute.OrderID,
	})

	return nil
}

// Resolve closes the dispute with one of three decisions and applies the
// money outcome to the order:
//
//	buyer_wins     - full refund, artist earnings are forfeited
//	artist_wins    - no refund, earnings are released in full
//	partial_refund - refund_percent (0-100) of the sale price goes back
//	                 to the buyer, earnings minus the refund are released
func (s *DisputeService) Resolve(ctx context.Context, adminID, disputeID uuid.UUID, decision string, refundPercent *int) (*models.Dispute, error) {
	if _, ok := models.ValidDisputeDecisions[decision]; !ok {
		return nil, apperror.Validation("недопустимое решение по спору")
	}

	dispute, err := s.getDispute(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	if !dispute.IsActive() {
		return nil, apperror.Conflict("спор уже разрешён")
	}

	order, err := s.orders.GetByID(ctx, dispute.OrderID)
	if err != nil {
		return nil, fmt.Errorf("dispute service: load order: %w", err)
	}

	var (
		refundAmount     *float64
		pct              *int
		adjustedEarnings *float64
		earningsStatus   string
		protectionStatus string
	)

	switch decision {
	case models.DisputeDecisionBuyerWins:
		// Full refund includes shipping.
		amount := order.Amount
		refundAmount = &amount
		earningsStatus = models.EarningsStatusForfeited
		protectionStatus = models.ProtectionStatusRefunded

	case models.DisputeDecisionArtistWins:
		earningsStatus = models.EarningsStatusAvailable
		protectionStatus = models.ProtectionStatusExpired

	case models.DisputeDecisionPartialRefund:
		if refundPercent == nil || *refundPercent < 0 || *refundPercent > 100 {
			return nil, apperror.Validation("процент возврата должен быть от 0 до 100")
		}
		amount := fees.Round2(order.SalePrice * float64(*refundPercent) / 100)
		refundAmount = &amount
		pct = refundPercent

		// Художнику уходит выручка за вычетом возврата: площадка не
		// выплачивает больше, чем собрала по заказу.
		remaining := fees.Round2(order.EarningsAmount() - amount)
		if remaining < 0 {
			remaining = 0
		}
		adjustedEarnings = &remaining

		earningsStatus = models.EarningsStatusAvailable
		protectionStatus = models.ProtectionStatusRefunded
		if remaining == 0 {
			earningsStatus = models.EarningsStatusForfeited
		}
		if amount == 0 {
			protectionStatus = models.ProtectionStatusExpired
		}
	}

	if err := s.disputes.Resolve(ctx, disputeID, decision, pct, refundAmount, adminID); err != nil {
		if errors.Is(err, repository.ErrDisputeStatusConflict) {
			return nil, apperror.Conflict("спор уже разрешён")
		}
		return nil, fmt.Errorf("dispute service: resolve: %w", err)
	}

	if err := s.orders.ApplyDisputeResolution(ctx, order.ID, earningsStatus, protectionStatus, adjustedEarnings); err != nil {
		return nil, fmt.Errorf("dispute service: apply resolution to order: %w", err)
	}

	data := models.NotificationData{
		Title:   "Спор разрешён",
		Message: resolutionMessage(decision, refundAmount),
		OrderID: &order.ID,
	}
	s.notifications.Notify(ctx, dispute.BuyerID, models.NotificationDisputeResolved, data)
	s.notifications.Notify(ctx, dispute.ArtistID, models.NotificationDisputeResolved, data)

	return s.getDispute(ctx, disputeID)
}

// Get returns a dispute visible to its parties and admins.
func (s *DisputeService) Get(ctx context.Context, requesterID uuid.UUID, requesterRole string, disputeID uuid.UUID) (*models.Dispute, error) {
	dispute, err := s.getDispute(ctx, disputeID)
	if err != nil {
		return nil, err
	}

	if requesterRole != models.UserRoleAdmin && dispute.BuyerID != requesterID && dispute.ArtistID != requesterID {
		return nil, apperror.ErrForbidden
	}

	return dispute, nil
}

// GetByOrder returns the active dispute of an order, visible to the
// order's parties and admins.
func (s *DisputeService) GetByOrder(ctx context.Context, requesterID uuid.UUID, requesterRole string, orderID uuid.UUID) (*models.Dispute, error) {
	dispute, err := s.disputes.GetActiveByOrderID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrDisputeNotFound) {
			return nil, apperror.ErrDisputeNotFound
		}
		return nil, fmt.Errorf("dispute service: load active dispute: %w", err)
	}

	if requesterRole != models.UserRoleAdmin && dispute.BuyerID != requesterID && dispute.ArtistID != requesterID {
		return nil, apperror.ErrForbidden
	}

	return dispute, nil
}

// ListByUser returns disputes where the user is a party.
func (s *DisputeService) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Dispute, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	disputes, err := s.disputes.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("dispute service: list by user: %w", err)
	}
	return disputes, nil
}

// ListOpen returns the admin review queue.
func (s *DisputeService) ListOpen(ctx context.Context, limit, offset int) ([]models.Dispute, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	disputes, err := s.disputes.ListOpen(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("dispute service: list open: %w", err)
	}
	return disputes, nil
}

func (s *DisputeService) getDispute(ctx context.Context, disputeID uuid.UUID) (*models.Dispute, error) {
	dispute, err := s.disputes.GetByID(ctx, disputeID)
	if err != nil {
		if errors.Is(err, repository.ErrDisputeNotFound) {
			return nil, apperror.ErrDisputeNotFound
		}
		return nil, fmt.Errorf("dispute service: load dispute: %w", err)
	}
	return dispute, nil
}

func resolutionMessage(decision string, refundAmount *float64) string {
	switch decision {
	case models.DisputeDecisionBuyerWins:
		return fmt.Sprintf("Покупателю возвращается %.2f", *refundAmount)
	case models.DisputeDecisionPartialRefund:
		return fmt.Sprintf("Покупателю возвращается %.2f, остаток выручки разблокирован", *refundAmount)
	default:
		return "Решение в пользу продавца, выручка разблокирована"
	}
}
