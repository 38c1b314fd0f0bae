package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Dispute is opened by the buyer against a delivered order.
// At most one open/under_review dispute may exist per order; a resolved
// dispute is immutable.
type Dispute struct {
	ID       uuid.UUID `db:"id" json:"id"`
	OrderID  uuid.UUID `db:"order_id" json:"order_id"`
	BuyerID  uuid.UUID `db:"buyer_id" json:"buyer_id"`
	ArtistID uuid.UUID `db:"artist_id" json:"artist_id"`
	Reason   string    `db:"reason" json:"reason"`
	Status   string    `db:"status" json:"status"`

	ArtistResponse *string        `db:"artist_response" json:"artist_response,omitempty"`
	EvidenceIDs    pq.StringArray `db:"evidence_ids" json:"evidence_ids,omitempty"`

	Decision      *string    `db:"decision" json:"decision,omitempty"`
	RefundPercent *int       `db:"refund_percent" json:"refund_percent,omitempty"`
	RefundAmount  *float64   `db:"refund_amount" json:"refund_amount,omitempty"`
	ResolvedBy    *uuid.UUID `db:"resolved_by" json:"resolved_by,omitempty"`

	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	RespondedAt *time.Time `db:"responded_at" json:"responded_at,omitempty"`
	ResolvedAt  *time.Time `db:"resolved_at" json:"resolved_at,omitempty"`
}

// IsActive reports whether the dispute still blocks earnings release.
func (d *Dispute) IsActive() bool {
	return d.Status == DisputeStatusOpen || d.Status == DisputeStatusUnderReview
}
