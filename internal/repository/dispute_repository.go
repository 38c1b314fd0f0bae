package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ignatzorin/artmarket-backend/internal/models"
	"github.com/ignatzorin/artmarket-backend/internal/repository/common"
)

var (
	ErrDisputeNotFound      = errors.New("dispute not found")
	ErrDisputeAlreadyExists = errors.New("active dispute already exists for this order")
	// ErrDisputeStatusConflict is returned when a guarded status update
	// finds the dispute in an unexpected state.
	ErrDisputeStatusConflict = errors.New("dispute status conflict")
)

type DisputeRepository struct {
	db *sqlx.DB
}

func NewDisputeRepository(db *sqlx.DB) *DisputeRepository {
	return &DisputeRepository{db: db}
}

// Create inserts a new open dispute. The partial unique index on
// (order_id) WHERE status IN ('open','under_review') guarantees at most
// one active dispute per order even under concurrent requests.
func (r *DisputeRepository) Create(ctx context.Context, d *models.Dispute) error {
	query := `
		INSERT INTO disputes (order_id, buyer_id, artist_id, reason, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	err := r.db.QueryRowxContext(ctx, query, d.OrderID, d.BuyerID, d.ArtistID, d.Reason, d.Status).
		Scan(&d.ID, &d.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDisputeAlreadyExists
		}
		return fmt.Errorf("dispute repository: create %w", err)
	}
	return nil
}

func (r *DisputeRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error) {
	return common.GetByID[models.Dispute](ctx, r.db, "disputes", id, ErrDisputeNotFound)
}

// GetActiveByOrderID returns the open/under_review dispute for the order, if any.
func (r *DisputeRepository) GetActiveByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Dispute, error) {
	var d models.Dispute
	err := r.db.GetContext(ctx, &d, `
		SELECT * FROM disputes
		WHERE order_id = $1 AND status IN ($2, $3)
	`, orderID, models.DisputeStatusOpen, models.DisputeStatusUnderReview)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDisputeNotFound
		}
		return nil, fmt.Errorf("dispute repository: get active by order %w", err)
	}
	return &d, nil
}

// HasActiveDispute reports whether the order has an unresolved dispute.
func (r *DisputeRepository) HasActiveDispute(ctx context.Context, orderID uuid.UUID) (bool, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM disputes
		WHERE order_id = $1 AND status IN ($2, $3)
	`, orderID, models.DisputeStatusOpen, models.DisputeStatusUnderReview)
	if err != nil {
		return false, fmt.Errorf("dispute repository: has active dispute %w", err)
	}
	return count > 0, nil
}

// Respond stores the artist's single response and moves the dispute to
// under_review. The status guard makes a second response a conflict.
func (r *DisputeRepository) Respond(ctx context.Context, id uuid.UUID, response string, evidenceIDs []string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE disputes
		SET status = $2, artist_response = $3, evidence_ids = $4, responded_at = NOW()
		WHERE id = $1 AND status = $5
	`, id, models.DisputeStatusUnderReview, response, pq.StringArray(evidenceIDs), models.DisputeStatusOpen)
	if err != nil {
		return fmt.Errorf("dispute repository: respond %w", err)
	}
	return requireAffected(res, ErrDisputeStatusConflict)
}

// Resolve records the admin decision. Resolved disputes are immutable:
// the status guard rejects a second resolution.
func (r *DisputeRepository) Resolve(ctx context.Context, id uuid.UUID, decision string, refundPercent *int, refundAmount *float64, resolvedBy uuid.UUID) error {
	now := time.Now()
	res, err := r.db.ExecContext(ctx, `
		UPDATE disputes
		SET status = $2, decision = $3, refund_percent = $4, refund_amount = $5,
		    resolved_by = $6, resolved_at = $7
		WHERE id = $1 AND status IN ($8, $9)
	`, id, models.DisputeStatusResolved, decision, refundPercent, refundAmount,
		resolvedBy, now, models.DisputeStatusOpen, models.DisputeStatusUnderReview)
	if err != nil {
		return fmt.Errorf("dispute repository: resolve %w", err)
	}
	return requireAffected(res, ErrDisputeStatusConflict)
}

// ListByUser returns disputes where the user is buyer or artist.
func (r *DisputeRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Dispute, error) {
	var disputes []models.Dispute
	err := r.db.SelectContext(ctx, &disputes, `
		SELECT * FROM disputes
		WHERE buyer_id = $1 OR artist_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("dispute repository: list by user %w", err)
	}
	return disputes, nil
}

// ListOpen returns unresolved disputes for the admin queue.
func (r *DisputeRepository) ListOpen(ctx context.Context, limit, offset int) ([]models.Dispute, error) {
	var disputes []models.Dispute
	err := r.db.SelectContext(ctx, &disputes, `
		SELECT * FROM disputes
		WHERE status IN ($1, $2)
		ORDER BY created_at ASC LIMIT $3 OFFSET $4
	`, models.DisputeStatusOpen, models.DisputeStatusUnderReview, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("dispute repository: list open %w", err)
	}
	return disputes, nil
}
