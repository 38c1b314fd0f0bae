package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/artmarket-backend/internal/models"
)

var (
	ErrPayoutNotFound    = errors.New("payout not found")
	ErrNothingToWithdraw = errors.New("no available earnings to withdraw")
	// ErrPayoutStatusConflict возвращается, когда заявку пытаются
	// обработать повторно или она не найдена.
	ErrPayoutStatusConflict = errors.New("payout status conflict")
	ErrBelowMinimumPayout   = errors.New("available earnings below minimum payout")
)

// MinPayoutAmount — минимальная сумма выплаты.
const MinPayoutAmount = 10.0

type PayoutRepository struct {
	db *sqlx.DB
}

func NewPayoutRepository(db *sqlx.DB) *PayoutRepository {
	return &PayoutRepository{db: db}
}

// Create выводит всю доступную выручку художника. Баланс нигде не
// хранится: в одной транзакции блокируются заказы с available выручкой,
// суммируются и помечаются paid_out со ссылкой на созданную заявку.
// У старых заказов разбивка комиссий не сохранялась, их выручка
// восстанавливается по цене продажи — так же, как при расчёте баланса.
func (r *PayoutRepository) Create(ctx context.Context, artistID uuid.UUID, cardLast4, bankName string) (*models.Payout, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var orders []models.Order
	err = tx.SelectContext(ctx, &orders, `
		SELECT id, artist_earnings, sale_price FROM orders
		WHERE artist_id = $1 AND earnings_status = $2
		ORDER BY delivered_at
		FOR UPDATE
	`, artistID, models.EarningsStatusAvailable)
	if err != nil {
		return nil, fmt.Errorf("payout repository: lock available orders %w", err)
	}
	if len(orders) == 0 {
		return nil, ErrNothingToWithdraw
	}

	var total float64
	for i := range orders {
		total += orders[i].EarningsAmount()
	}
	if total < MinPayoutAmount {
		return nil, ErrBelowMinimumPayout
	}

	var p models.Payout
	err = tx.GetContext(ctx, &p, `
		INSERT INTO payouts (artist_id, amount, status, card_last4, bank_name)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING *
	`, artistID, total, models.PayoutStatusPending, cardLast4, bankName)
	if err != nil {
		return nil, fmt.Errorf("payout repository: create %w", err)
	}

	for i := range orders {
		_, err = tx.ExecContext(ctx, `
			UPDATE orders SET earnings_status = $2, payout_id = $3, updated_at = NOW() WHERE id = $1
		`, orders[i].ID, models.EarningsStatusPaidOut, p.ID)
		if err != nil {
			return nil, fmt.Errorf("payout repository: mark paid out %w", err)
		}
	}

	return &p, tx.Commit()
}

func (r *PayoutRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Payout, error) {
	var p models.Payout
	err := r.db.GetContext(ctx, &p, `SELECT * FROM payouts WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPayoutNotFound
	}
	return &p, err
}

func (r *PayoutRepository) ListByArtist(ctx context.Context, artistID uuid.UUID, limit, offset int) ([]models.Payout, error) {
	var payouts []models.Payout
	err := r.db.SelectContext(ctx, &payouts, `
		SELECT * FROM payouts WHERE artist_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, artistID, limit, offset)
	return payouts, err
}

// UpdateStatus закрывает заявку на выплату: completed фиксирует факт
// перевода, rejected возвращает выручку по заказам заявки в available.
// Обработать можно только заявку в статусе pending.
func (r *PayoutRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string, rejectionReason *string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE payouts SET status = $2, rejection_reason = $3, processed_at = NOW()
		WHERE id = $1 AND status = $4
	`, id, status, rejectionReason, models.PayoutStatusPending)
	if err != nil {
		return fmt.Errorf("payout repository: update status %w", err)
	}
	if err := requireAffected(res, ErrPayoutStatusConflict); err != nil {
		return err
	}

	if status == models.PayoutStatusRejected {
		_, err = tx.ExecContext(ctx, `
			UPDATE orders SET earnings_status = $2, payout_id = NULL, updated_at = NOW()
			WHERE payout_id = $1 AND earnings_status = $3
		`, id, models.EarningsStatusAvailable, models.EarningsStatusPaidOut)
		if err != nil {
			return fmt.Errorf("payout repository: return earnings %w", err)
		}
	}

	return tx.Commit()
}
