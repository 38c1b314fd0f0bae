package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/artmarket-backend/internal/models"
	"github.com/ignatzorin/artmarket-backend/internal/repository/common"
)

var (
	// ErrListingNotFound возвращается, когда лот не найден.
	ErrListingNotFound = errors.New("listing not found")
	// ErrListingStatusConflict возвращается, когда условное обновление
	// статуса лота не нашло строку в ожидаемом состоянии.
	ErrListingStatusConflict = errors.New("listing status conflict")
)

// ListingRepository отвечает за работу с лотами и ставками.
type ListingRepository struct {
	db *sqlx.DB
}

// NewListingRepository создаёт экземпляр репозитория.
func NewListingRepository(db *sqlx.DB) *ListingRepository {
	return &ListingRepository{db: db}
}

// Create создаёт новый лот.
func (r *ListingRepository) Create(ctx context.Context, l *models.Listing) error {
	query := `
		INSERT INTO listings
			(artist_id, title, description, price, shipping_cost, listing_type,
			 status, auction_ends_at, min_bid_increment, quantity, cover_media_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRowxContext(
		ctx,
		query,
		l.ArtistID,
		l.Title,
		l.Description,
		l.Price,
		l.ShippingCost,
		l.ListingType,
		l.Status,
		l.AuctionEndsAt,
		l.MinBidIncrement,
		l.Quantity,
		l.CoverMediaID,
	).Scan(&l.ID, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return fmt.Errorf("listing repository: create %w", err)
	}

	return nil
}

// GetByID возвращает лот по идентификатору.
func (r *ListingRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	return common.GetByID[models.Listing](ctx, r.db, "listings", id, ErrListingNotFound)
}

// List возвращает лоты по статусу и типу с пагинацией.
func (r *ListingRepository) List(ctx context.Context, status, listingType string, limit, offset int) ([]models.Listing, error) {
	query := `SELECT * FROM listings WHERE 1=1`
	args := []interface{}{}
	argIndex := 1

	if status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIndex)
		args = append(args, status)
		argIndex++
	}
	if listingType != "" {
		query += fmt.Sprintf(" AND listing_type = $%d", argIndex)
		args = append(args, listingType)
		argIndex++
	}

	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argIndex, argIndex+1)
	args = append(args, limit, offset)

	var listings []models.Listing
	if err := r.db.SelectContext(ctx, &listings, query, args...); err != nil {
		return nil, fmt.Errorf("listing repository: list %w", err)
	}
	return listings, nil
}

// ListEndedAuctions возвращает ограниченный срез аукционных лотов,
// чьи торги завершились, но которые ещё не расторгованы. Снимок
// фиксируется на момент запроса: лоты, закончившиеся во время прохода,
// попадут в следующий проход.
func (r *ListingRepository) ListEndedAuctions(ctx context.Context, now time.Time, limit int) ([]models.Listing, error) {
	var listings []models.Listing
	err := r.db.SelectContext(ctx, &listings, `
		SELECT * FROM listings
		WHERE status = $1 AND auction_ends_at IS NOT NULL AND auction_ends_at <= $2
		ORDER BY auction_ends_at
		LIMIT $3
	`, models.ListingStatusAuction, now, limit)
	if err != nil {
		return nil, fmt.Errorf("listing repository: list ended auctions %w", err)
	}
	return listings, nil
}

// UpdateStatusIf переводит лот из ожидаемого статуса в новый.
// Compare-and-swap: если лот уже не в статусе from, возвращается
// ErrListingStatusConflict и ничего не меняется.
func (r *ListingRepository) UpdateStatusIf(ctx context.Context, id uuid.UUID, from, to string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE listings SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
	`, id, from, to)
	if err != nil {
		return fmt.Errorf("listing repository: update status %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("listing repository: update status rows affected %w", err)
	}
	if affected == 0 {
		return ErrListingStatusConflict
	}
	return nil
}

// Reopen возвращает лот в продажу после отмены оплаченного заказа.
// Для аукционных лотов статус остаётся ended: повторные торги не запускаются.
func (r *ListingRepository) Reopen(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE listings
		SET status = CASE WHEN listing_type = $2 THEN $3 ELSE $4 END,
		    updated_at = NOW()
		WHERE id = $1
	`, id, models.ListingTypeAuction, models.ListingStatusEnded, models.ListingStatusAvailable)
	if err != nil {
		return fmt.Errorf("listing repository: reopen %w", err)
	}
	return nil
}

// MarkSold помечает лот проданным после подтверждения оплаты.
func (r *ListingRepository) MarkSold(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE listings SET status = $2, updated_at = NOW() WHERE id = $1
	`, id, models.ListingStatusSold)
	if err != nil {
		return fmt.Errorf("listing repository: mark sold %w", err)
	}
	return nil
}

// CreateBid сохраняет новую ставку и обновляет текущий максимум лота.
// Обе записи идут в одной транзакции: ставка append-only, лот хранит
// только производный максимум.
func (r *ListingRepository) CreateBid(ctx context.Context, bid *models.Bid) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		err := tx.QueryRowxContext(ctx, `
			INSERT INTO bids (listing_id, bidder_id, amount)
			VALUES ($1, $2, $3)
			RETURNING id, created_at
		`, bid.ListingID, bid.BidderID, bid.Amount).Scan(&bid.ID, &bid.CreatedAt)
		if err != nil {
			return fmt.Errorf("listing repository: create bid %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE listings SET current_bid = $2, updated_at = NOW()
			WHERE id = $1 AND (current_bid IS NULL OR current_bid < $2)
		`, bid.ListingID, bid.Amount)
		if err != nil {
			return fmt.Errorf("listing repository: update current bid %w", err)
		}

		return nil
	})
}

// ListBids возвращает все ставки по лоту: по убыванию суммы, при равных
// суммах раньше созданная ставка идёт первой.
func (r *ListingRepository) ListBids(ctx context.Context, listingID uuid.UUID) ([]models.Bid, error) {
	var bids []models.Bid
	err := r.db.SelectContext(ctx, &bids, `
		SELECT * FROM bids
		WHERE listing_id = $1
		ORDER BY amount DESC, created_at ASC
	`, listingID)
	if err != nil {
		return nil, fmt.Errorf("listing repository: list bids %w", err)
	}
	return bids, nil
}

// GetHighestBid возвращает максимальную ставку по лоту.
func (r *ListingRepository) GetHighestBid(ctx context.Context, listingID uuid.UUID) (*models.Bid, error) {
	var bid models.Bid
	err := r.db.GetContext(ctx, &bid, `
		SELECT * FROM bids
		WHERE listing_id = $1
		ORDER BY amount DESC, created_at ASC
		LIMIT 1
	`, listingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("listing repository: get highest bid %w", err)
	}
	return &bid, nil
}
