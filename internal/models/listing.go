package models

import (
	"time"

	"github.com/google/uuid"
)

// Listing описывает выставленную на продажу работу.
// Для аукционных лотов AuctionEndsAt задаёт момент окончания торгов,
// CurrentBid хранит текущую максимальную ставку.
type Listing struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	ArtistID        uuid.UUID  `db:"artist_id" json:"artist_id"`
	Title           string     `db:"title" json:"title"`
	Description     *string    `db:"description" json:"description,omitempty"`
	Price           float64    `db:"price" json:"price"`
	ShippingCost    float64    `db:"shipping_cost" json:"shipping_cost"`
	ListingType     string     `db:"listing_type" json:"listing_type"`
	Status          string     `db:"status" json:"status"`
	AuctionEndsAt   *time.Time `db:"auction_ends_at" json:"auction_ends_at,omitempty"`
	MinBidIncrement float64    `db:"min_bid_increment" json:"min_bid_increment"`
	CurrentBid      *float64   `db:"current_bid" json:"current_bid,omitempty"`
	Quantity        int        `db:"quantity" json:"quantity"`
	CoverMediaID    *uuid.UUID `db:"cover_media_id" json:"cover_media_id,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// IsAuction сообщает, ведутся ли по лоту торги.
func (l *Listing) IsAuction() bool {
	return l.ListingType == ListingTypeAuction || l.ListingType == ListingTypeBoth
}

// Bid представляет ставку на аукционный лот. Ставки неизменяемы:
// их не редактируют, а перебивают более высокой ставкой.
type Bid struct {
	ID        uuid.UUID `db:"id" json:"id"`
	ListingID uuid.UUID `db:"listing_id" json:"listing_id"`
	BidderID  uuid.UUID `db:"bidder_id" json:"bidder_id"`
	Amount    float64   `db:"amount" json:"amount"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
