// Package dto содержит контракты HTTP API: тела запросов и ответов.
package dto

import (
	"time"

	"github.com/google/uuid"
)

// RegisterRequest — тело запроса регистрации.
type RegisterRequest struct {
	Email    string `json:"email" binding:"required"`
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	Role     string `json:"role" binding:"required"`
}

// LoginRequest — тело запроса входа.
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RefreshRequest — тело запроса обновления токенов.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// CreateListingRequest — тело запроса публикации лота.
type CreateListingRequest struct {
	Title           string     `json:"title" binding:"required"`
	Description     *string    `json:"description"`
	Price           float64    `json:"price" binding:"required"`
	ShippingCost    float64    `json:"shipping_cost"`
	ListingType     string     `json:"listing_type" binding:"required"`
	AuctionEndsAt   *time.Time `json:"auction_ends_at"`
	MinBidIncrement float64    `json:"min_bid_increment"`
	Quantity        int        `json:"quantity"`
	CoverMediaID    *uuid.UUID `json:"cover_media_id"`
}

// PlaceBidRequest — тело запроса ставки на аукцион.
type PlaceBidRequest struct {
	Amount float64 `json:"amount" binding:"required"`
}

// CreateOrderRequest — тело запроса покупки по фиксированной цене.
type CreateOrderRequest struct {
	ListingID uuid.UUID `json:"listing_id" binding:"required"`
}

// PaymentWebhookRequest — тело вебхука платёжного провайдера.
type PaymentWebhookRequest struct {
	OrderID         uuid.UUID `json:"order_id" binding:"required"`
	PaymentIntentID string    `json:"payment_intent_id" binding:"required"`
	Status          string    `json:"status" binding:"required"`
}

// SubmitTrackingRequest — тело запроса отправки трек-номера.
type SubmitTrackingRequest struct {
	TrackingNumber string `json:"tracking_number" binding:"required"`
}

// OpenDisputeRequest — тело запроса открытия спора.
type OpenDisputeRequest struct {
	Reason      string   `json:"reason" binding:"required"`
	EvidenceIDs []string `json:"evidence_ids"`
}

// RespondDisputeRequest — тело ответа художника на спор.
type RespondDisputeRequest struct {
	Response    string   `json:"response" binding:"required"`
	EvidenceIDs []string `json:"evidence_ids"`
}

// ResolveDisputeRequest — тело решения администратора по спору.
type ResolveDisputeRequest struct {
	Decision      string `json:"decision" binding:"required"`
	RefundPercent *int   `json:"refund_percent"`
}

// RequestPayoutRequest — тело заявки на выплату.
type RequestPayoutRequest struct {
	CardLast4 string `json:"card_last4" binding:"required"`
	BankName  string `json:"bank_name" binding:"required"`
}

// ProcessPayoutRequest — тело решения администратора по выплате.
type ProcessPayoutRequest struct {
	Status          string  `json:"status" binding:"required"`
	RejectionReason *string `json:"rejection_reason"`
}
