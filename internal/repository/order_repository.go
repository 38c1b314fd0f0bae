package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/artmarket-backend/internal/models"
	"github.com/ignatzorin/artmarket-backend/internal/repository/common"
)

var (
	// ErrOrderNotFound возвращается, когда заказ не найден.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderStatusConflict возвращается, когда условный переход статуса
	// не нашёл заказ в ожидаемом состоянии. Это защита от гонки двух
	// параллельных переходов по одному заказу.
	ErrOrderStatusConflict = errors.New("order status conflict")
)

// OrderRepository отвечает за работу с заказами.
type OrderRepository struct {
	db *sqlx.DB
}

// NewOrderRepository создаёт экземпляр репозитория.
func NewOrderRepository(db *sqlx.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create создаёт заказ с зафиксированной разбивкой комиссий.
func (r *OrderRepository) Create(ctx context.Context, o *models.Order) error {
	query := `
		INSERT INTO orders
			(listing_id, buyer_id, artist_id, amount, sale_price, shipping_cost,
			 platform_fee, processor_fee, artist_earnings,
			 status, earnings_status, tracking_status, protection_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRowxContext(
		ctx,
		query,
		o.ListingID,
		o.BuyerID,
		o.ArtistID,
		o.Amount,
		o.SalePrice,
		o.ShippingCost,
		o.PlatformFee,
		o.ProcessorFee,
		o.ArtistEarnings,
		o.Status,
		o.EarningsStatus,
		o.TrackingStatus,
		o.ProtectionStatus,
	).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("order repository: create %w", err)
	}

	return nil
}

// GetByID возвращает заказ по идентификатору.
func (r *OrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return common.GetByID[models.Order](ctx, r.db, "orders", id, ErrOrderNotFound)
}

// GetByListingID возвращает последний заказ по лоту.
func (r *OrderRepository) GetByListingID(ctx context.Context, listingID uuid.UUID) (*models.Order, error) {
	var o models.Order
	err := r.db.GetContext(ctx, &o, `
		SELECT * FROM orders WHERE listing_id = $1 ORDER BY created_at DESC LIMIT 1
	`, listingID)
	if err != nil {
		return nil, ErrOrderNotFound
	}
	return &o, nil
}

// ExistsForListing сообщает, есть ли по лоту неотменённый заказ.
// Используется как страховка идемпотентности расторговки.
func (r *OrderRepository) ExistsForListing(ctx context.Context, listingID uuid.UUID) (bool, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM orders WHERE listing_id = $1 AND status <> $2
	`, listingID, models.OrderStatusCancelled)
	if err != nil {
		return false, fmt.Errorf("order repository: exists for listing %w", err)
	}
	return count > 0, nil
}

// ListByUser возвращает заказы, где пользователь покупатель или художник.
func (r *OrderRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.SelectContext(ctx, &orders, `
		SELECT * FROM orders
		WHERE buyer_id = $1 OR artist_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("order repository: list by user %w", err)
	}
	return orders, nil
}

// MarkPaid переводит заказ pending -> paid: фиксирует paid_at, платёжный
// intent и дедлайн отгрузки, пересчитанный от момента оплаты.
func (r *OrderRepository) MarkPaid(ctx context.Context, id uuid.UUID, paymentIntentID string, paidAt, shippingDeadline time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET status = $2, payment_intent_id = $3, paid_at = $4, shipping_deadline = $5, updated_at = NOW()
		WHERE id = $1 AND status = $6
	`, id, models.OrderStatusPaid, paymentIntentID, paidAt, shippingDeadline, models.OrderStatusPending)
	if err != nil {
		return fmt.Errorf("order repository: mark paid %w", err)
	}
	return requireAffected(res, ErrOrderStatusConflict)
}

// SubmitTracking сохраняет трек-номер оплаченного заказа.
// Повторная отправка после отклонения разрешена.
func (r *OrderRepository) SubmitTracking(ctx context.Context, id uuid.UUID, trackingNumber string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET tracking_number = $2, tracking_status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $4 AND tracking_status IN ($5, $6)
	`, id, trackingNumber, models.TrackingStatusSubmitted,
		models.OrderStatusPaid, models.TrackingStatusNone, models.TrackingStatusRejected)
	if err != nil {
		return fmt.Errorf("order repository: submit tracking %w", err)
	}
	return requireAffected(res, ErrOrderStatusConflict)
}

// ApproveTracking подтверждает трек-номер и переводит заказ paid -> shipped.
func (r *OrderRepository) ApproveTracking(ctx context.Context, id uuid.UUID, shippedAt time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET status = $2, tracking_status = $3, shipped_at = $4, updated_at = NOW()
		WHERE id = $1 AND status = $5 AND tracking_status = $6
	`, id, models.OrderStatusShipped, models.TrackingStatusApproved, shippedAt,
		models.OrderStatusPaid, models.TrackingStatusSubmitted)
	if err != nil {
		return fmt.Errorf("order repository: approve tracking %w", err)
	}
	return requireAffected(res, ErrOrderStatusConflict)
}

// RejectTracking отклоняет трек-номер, заказ остаётся оплаченным.
func (r *OrderRepository) RejectTracking(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE orders SET tracking_status = $2, updated_at = NOW()
		WHERE id = $1 AND tracking_status = $3
	`, id, models.TrackingStatusRejected, models.TrackingStatusSubmitted)
	if err != nil {
		return fmt.Errorf("order repository: reject tracking %w", err)
	}
	return requireAffected(res, ErrOrderStatusConflict)
}

// MarkDelivered переводит заказ shipped -> delivered и открывает окно
// защиты покупателя.
func (r *OrderRepository) MarkDelivered(ctx context.Context, id uuid.UUID, deliveredAt, protectionEndsAt time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET status = $2, delivered_at = $3, protection_ends_at = $4,
		    protection_status = $5, earnings_status = $6, updated_at = NOW()
		WHERE id = $1 AND status = $7
	`, id, models.OrderStatusDelivered, deliveredAt, protectionEndsAt,
		models.ProtectionStatusActive, models.EarningsStatusPending, models.OrderStatusShipped)
	if err != nil {
		return fmt.Errorf("order repository: mark delivered %w", err)
	}
	return requireAffected(res, ErrOrderStatusConflict)
}

// ListPaid возвращает снимок оплаченных заказов для проверки дедлайнов отгрузки.
func (r *OrderRepository) ListPaid(ctx context.Context, limit int) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.SelectContext(ctx, &orders, `
		SELECT * FROM orders WHERE status = $1 ORDER BY paid_at LIMIT $2
	`, models.OrderStatusPaid, limit)
	if err != nil {
		return nil, fmt.Errorf("order repository: list paid %w", err)
	}
	return orders, nil
}

// MarkReminderSent выставляет флаг напоминания. Идемпотентно: повторный
// вызов не находит строку и возвращает конфликт, который batch трактует
// как "уже отправлено".
func (r *OrderRepository) MarkReminderSent(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE orders SET reminder_sent = TRUE, updated_at = NOW()
		WHERE id = $1 AND reminder_sent = FALSE AND status = $2
	`, id, models.OrderStatusPaid)
	if err != nil {
		return fmt.Errorf("order repository: mark reminder sent %w", err)
	}
	return requireAffected(res, ErrOrderStatusConflict)
}

// MarkWarningSent выставляет флаг предупреждения.
func (r *OrderRepository) MarkWarningSent(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE orders SET warning_sent = TRUE, updated_at = NOW()
		WHERE id = $1 AND warning_sent = FALSE AND status = $2
	`, id, models.OrderStatusPaid)
	if err != nil {
		return fmt.Errorf("order repository: mark warning sent %w", err)
	}
	return requireAffected(res, ErrOrderStatusConflict)
}

// AutoCancel отменяет оплаченный заказ за просрочку отгрузки.
func (r *OrderRepository) AutoCancel(ctx context.Context, id uuid.UUID, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET status = $2, auto_cancelled_at = $3, earnings_status = $4, updated_at = NOW()
		WHERE id = $1 AND status = $5 AND auto_cancelled_at IS NULL
	`, id, models.OrderStatusCancelled, at, models.EarningsStatusForfeited, models.OrderStatusPaid)
	if err != nil {
		return fmt.Errorf("order repository: auto cancel %w", err)
	}
	return requireAffected(res, ErrOrderStatusConflict)
}

// ListReleasable возвращает снимок доставленных заказов, у которых окно
// защиты покупателя истекло, выручка ещё удержана и по заказу нет
// активного спора. Спор проверяется join-ом на момент выборки, а не по
// возможно устаревшему protection_status.
func (r *OrderRepository) ListReleasable(ctx context.Context, now time.Time, limit int) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.SelectContext(ctx, &orders, `
		SELECT o.* FROM orders o
		WHERE o.status = $1
		  AND o.earnings_status = $2
		  AND o.protection_ends_at IS NOT NULL
		  AND o.protection_ends_at <= $3
		  AND NOT EXISTS (
			SELECT 1 FROM disputes d
			WHERE d.order_id = o.id AND d.status IN ($4, $5)
		  )
		ORDER BY o.protection_ends_at
		LIMIT $6
	`, models.OrderStatusDelivered, models.EarningsStatusPending, now,
		models.DisputeStatusOpen, models.DisputeStatusUnderReview, limit)
	if err != nil {
		return nil, fmt.Errorf("order repository: list releasable %w", err)
	}
	return orders, nil
}

// ReleaseEarnings переводит выручку pending -> available и закрывает окно защиты.
func (r *OrderRepository) ReleaseEarnings(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET earnings_status = $2, protection_status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $4 AND earnings_status = $5
	`, id, models.EarningsStatusAvailable, models.ProtectionStatusExpired,
		models.OrderStatusDelivered, models.EarningsStatusPending)
	if err != nil {
		return fmt.Errorf("order repository: release earnings %w", err)
	}
	return requireAffected(res, ErrOrderStatusConflict)
}

// SetDisputed помечает заказ спорным, пока спор не разрешён.
func (r *OrderRepository) SetDisputed(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE orders SET protection_status = $2, updated_at = NOW()
		WHERE id = $1 AND status = $3
	`, id, models.ProtectionStatusDisputed, models.OrderStatusDelivered)
	if err != nil {
		return fmt.Errorf("order repository: set disputed %w", err)
	}
	return requireAffected(res, ErrOrderStatusConflict)
}

// ApplyDisputeResolution выставляет итоговые статусы выручки и защиты
// по решению администратора. При частичном возврате artistEarnings
// несёт уменьшенную выручку, иначе он nil и выручка не трогается.
// Статус заказа не откатывается.
func (r *OrderRepository) ApplyDisputeResolution(ctx context.Context, id uuid.UUID, earningsStatus, protectionStatus string, artistEarnings *float64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET earnings_status = $2, protection_status = $3,
		    artist_earnings = COALESCE($4, artist_earnings), updated_at = NOW()
		WHERE id = $1
	`, id, earningsStatus, protectionStatus, artistEarnings)
	if err != nil {
		return fmt.Errorf("order repository: apply dispute resolution %w", err)
	}
	return nil
}

// ListForBalance возвращает заказы художника для пересчёта баланса.
// Неоплаченные и отменённые заказы — ещё (или уже) не деньги, в
// выборку они не входят.
func (r *OrderRepository) ListForBalance(ctx context.Context, artistID uuid.UUID) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.SelectContext(ctx, &orders, `
		SELECT * FROM orders
		WHERE artist_id = $1 AND status NOT IN ($2, $3)
		ORDER BY created_at
	`, artistID, models.OrderStatusPending, models.OrderStatusCancelled)
	if err != nil {
		return nil, fmt.Errorf("order repository: list for balance %w", err)
	}
	return orders, nil
}

// DeleteAbandonedPending удаляет заказы, брошенные в pending дольше
// заданного порога. Оплаты по ним не было, поэтому это чистка, а не возврат.
func (r *OrderRepository) DeleteAbandonedPending(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM orders WHERE status = $1 AND created_at < $2
	`, models.OrderStatusPending, olderThan)
	if err != nil {
		return 0, fmt.Errorf("order repository: delete abandoned pending %w", err)
	}
	return res.RowsAffected()
}

func requireAffected(res interface{ RowsAffected() (int64, error) }, conflictErr error) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("order repository: rows affected %w", err)
	}
	if affected == 0 {
		return conflictErr
	}
	return nil
}
