package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Типы событий уведомлений.
const (
	NotificationOrderCreated     = "order_created"
	NotificationOrderPaid        = "order_paid"
	NotificationOrderShipped     = "order_shipped"
	NotificationOrderDelivered   = "order_delivered"
	NotificationOrderCancelled   = "order_cancelled"
	NotificationShippingReminder = "shipping_reminder"
	NotificationShippingWarning  = "shipping_warning"
	NotificationAuctionWon       = "auction_won"
	NotificationAuctionEnded     = "auction_ended"
	NotificationOutbid           = "outbid"
	NotificationEarningsReleased = "earnings_released"
	NotificationPayoutCompleted  = "payout_completed"
	NotificationPayoutRejected   = "payout_rejected"
	NotificationDisputeOpened    = "dispute_opened"
	NotificationDisputeResponse  = "dispute_response"
	NotificationDisputeResolved  = "dispute_resolved"
	NotificationTrackingRejected = "tracking_rejected"
)

// Notification хранит событие для пользователя в виде JSON payload.
type Notification struct {
	ID        uuid.UUID       `db:"id" json:"id"`
	UserID    uuid.UUID       `db:"user_id" json:"user_id"`
	EventType string          `db:"event_type" json:"event_type"`
	Payload   json.RawMessage `db:"payload" json:"payload"`
	IsRead    bool            `db:"is_read" json:"is_read"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

// NotificationData содержит полезную нагрузку события.
type NotificationData struct {
	Title     string     `json:"title"`
	Message   string     `json:"message"`
	OrderID   *uuid.UUID `json:"order_id,omitempty"`
	ListingID *uuid.UUID `json:"listing_id,omitempty"`
	DeepLink  *string    `json:"deep_link,omitempty"`
}
