package models

// ListingStatus константы статусов лотов. Статусы движутся только вперёд
// (available/auction -> ended/sold); возврат в available возможен только
// при отмене оплаченного заказа.
const (
	ListingStatusAvailable = "available"
	ListingStatusAuction   = "auction"
	ListingStatusEnded     = "ended"
	ListingStatusSold      = "sold"
)

// ListingType константы типов продажи
const (
	ListingTypeFixed   = "fixed"
	ListingTypeAuction = "auction"
	ListingTypeBoth    = "both"
)

// OrderStatus константы статусов заказов
const (
	OrderStatusPending   = "pending"
	OrderStatusPaid      = "paid"
	OrderStatusShipped   = "shipped"
	OrderStatusDelivered = "delivered"
	OrderStatusCancelled = "cancelled"
)

// EarningsStatus константы статусов выручки художника по заказу.
// forfeited - терминальный статус после полного возврата покупателю:
// такая выручка никогда не станет available.
const (
	EarningsStatusPending   = "pending"
	EarningsStatusAvailable = "available"
	EarningsStatusPaidOut   = "paid_out"
	EarningsStatusForfeited = "forfeited"
)

// ProtectionStatus константы статусов защиты покупателя
const (
	ProtectionStatusNone     = "none"
	ProtectionStatusActive   = "active"
	ProtectionStatusExpired  = "expired"
	ProtectionStatusDisputed = "disputed"
	ProtectionStatusRefunded = "refunded"
)

// TrackingStatus константы статусов трек-номера
const (
	TrackingStatusNone      = "none"
	TrackingStatusSubmitted = "submitted"
	TrackingStatusApproved  = "approved"
	TrackingStatusRejected  = "rejected"
)

// DisputeStatus константы статусов споров
const (
	DisputeStatusOpen        = "open"
	DisputeStatusUnderReview = "under_review"
	DisputeStatusResolved    = "resolved"
)

// DisputeDecision константы решений администратора по спору
const (
	DisputeDecisionBuyerWins     = "buyer_wins"
	DisputeDecisionArtistWins    = "artist_wins"
	DisputeDecisionPartialRefund = "partial_refund"
)

// PayoutStatus константы статусов выплат
const (
	PayoutStatusPending    = "pending"
	PayoutStatusProcessing = "processing"
	PayoutStatusCompleted  = "completed"
	PayoutStatusRejected   = "rejected"
)

// UserRole константы ролей пользователей
const (
	UserRoleBuyer  = "buyer"
	UserRoleArtist = "artist"
	UserRoleAdmin  = "admin"
)

// ValidListingTypes список валидных типов продажи
var ValidListingTypes = map[string]struct{}{
	ListingTypeFixed:   {},
	ListingTypeAuction: {},
	ListingTypeBoth:    {},
}

// ValidDisputeDecisions список валидных решений по спору
var ValidDisputeDecisions = map[string]struct{}{
	DisputeDecisionBuyerWins:     {},
	DisputeDecisionArtistWins:    {},
	DisputeDecisionPartialRefund: {},
}

// ValidUserRoles список валидных ролей
var ValidUserRoles = map[string]struct{}{
	UserRoleBuyer:  {},
	UserRoleArtist: {},
	UserRoleAdmin:  {},
}
