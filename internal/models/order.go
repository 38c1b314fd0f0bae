package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/artmarket-backend/internal/fees"
)

// Order описывает сделку от оформления до доставки.
// Amount = SalePrice + ShippingCost; разбивка комиссий фиксируется при
// создании заказа и больше не пересчитывается.
type Order struct {
	ID           uuid.UUID `db:"id" json:"id"`
	ListingID    uuid.UUID `db:"listing_id" json:"listing_id"`
	BuyerID      uuid.UUID `db:"buyer_id" json:"buyer_id"`
	ArtistID     uuid.UUID `db:"artist_id" json:"artist_id"`
	Amount       float64   `db:"amount" json:"amount"`
	SalePrice    float64   `db:"sale_price" json:"sale_price"`
	ShippingCost float64   `db:"shipping_cost" json:"shipping_cost"`

	PlatformFee    float64 `db:"platform_fee" json:"platform_fee"`
	ProcessorFee   float64 `db:"processor_fee" json:"processor_fee"`
	ArtistEarnings float64 `db:"artist_earnings" json:"artist_earnings"`

	Status         string     `db:"status" json:"status"`
	EarningsStatus string     `db:"earnings_status" json:"earnings_status"`
	PayoutID       *uuid.UUID `db:"payout_id" json:"payout_id,omitempty"`

	PaymentIntentID *string `db:"payment_intent_id" json:"payment_intent_id,omitempty"`

	// Отгрузка: дедлайн считается в рабочих днях от момента оплаты.
	ShippingDeadline *time.Time `db:"shipping_deadline" json:"shipping_deadline,omitempty"`
	TrackingNumber   *string    `db:"tracking_number" json:"tracking_number,omitempty"`
	TrackingStatus   string     `db:"tracking_status" json:"tracking_status"`
	ReminderSent     bool       `db:"reminder_sent" json:"reminder_sent"`
	WarningSent      bool       `db:"warning_sent" json:"warning_sent"`

	// Защита покупателя: окно открывается в момент доставки.
	ProtectionEndsAt *time.Time `db:"protection_ends_at" json:"protection_ends_at,omitempty"`
	ProtectionStatus string     `db:"protection_status" json:"protection_status"`

	PaidAt          *time.Time `db:"paid_at" json:"paid_at,omitempty"`
	ShippedAt       *time.Time `db:"shipped_at" json:"shipped_at,omitempty"`
	DeliveredAt     *time.Time `db:"delivered_at" json:"delivered_at,omitempty"`
	AutoCancelledAt *time.Time `db:"auto_cancelled_at" json:"auto_cancelled_at,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// EarningsAmount возвращает выручку художника по заказу. У старых
// заказов разбивка комиссий не сохранялась, для них она
// восстанавливается по цене продажи.
func (o *Order) EarningsAmount() float64 {
	if o.ArtistEarnings > 0 {
		return o.ArtistEarnings
	}
	return fees.Calculate(o.SalePrice).ArtistEarnings
}

// ArtistBalance представляет производный баланс художника.
// Он не хранится, а каждый раз пересчитывается по заказам.
type ArtistBalance struct {
	ArtistID       uuid.UUID `json:"artist_id"`
	Available      float64   `json:"available"`
	Pending        float64   `json:"pending"`
	PaidOut        float64   `json:"paid_out"`
	NextPayoutDate time.Time `json:"next_payout_date"`
}
