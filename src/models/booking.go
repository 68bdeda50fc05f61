package models

import (
	"gigbook/src/types"
	"time"
)

type Booking struct {
	ID            uint               `gorm:"primarykey" json:"id"`
	RequesterID   uint               `json:"requester_id"`
	ProviderID    uint               `json:"provider_id"`
	ScheduledAt   time.Time          `json:"scheduled_at"`
	DurationHours uint               `json:"duration_hours"`
	Activity      types.ActivityKind `json:"activity"`
	Location      string             `json:"location,omitempty"`
	Notes         string             `json:"notes,omitempty"`

	// HourlyRate and TotalPrice are frozen at creation from the provider's
	// rate at that moment. Never recomputed.
	HourlyRate float64 `json:"hourly_rate"`
	TotalPrice float64 `json:"total_price"`

	Status             types.BookingStatus `gorm:"default:'pending'" json:"status"`
	CancellationReason *string             `json:"cancellation_reason,omitempty"`
	CancelledBy        *uint               `json:"cancelled_by,omitempty"`

	// PaymentReference is the external charge id, set exactly once when
	// payment is initiated. TotalPrice is immutable from that point on.
	PaymentReference *string `json:"payment_reference,omitempty"`
	PlatformFee      float64 `json:"platform_fee,omitempty"`

	Requester *User `gorm:"foreignKey:requester_id" json:"requester,omitempty"`
	Provider  *User `gorm:"foreignKey:provider_id" json:"provider,omitempty"`

	types.Timestamps
}
