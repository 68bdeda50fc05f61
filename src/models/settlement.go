package models

import (
	"gigbook/src/types"

	"github.com/google/uuid"
)

// Settlement tracks the external charge lifecycle for a booking. At most one
// non-failed settlement exists per booking; a failed one may be retried under
// a new external charge id.
type Settlement struct {
	ID uuid.UUID `gorm:"primarykey;type:uuid;default:gen_random_uuid()" json:"id"`

	BookingID            uint                   `gorm:"index" json:"booking_id"`
	ExternalChargeID     string                 `gorm:"uniqueIndex" json:"external_charge_id"`
	ClientSecret         string                 `json:"-"`
	Amount               float64                `json:"amount"`
	PlatformFee          float64                `json:"platform_fee"`
	FeeRate              float64                `json:"fee_rate"`
	FeeRateVersion       string                 `json:"fee_rate_version"`
	DestinationAccountID string                 `json:"destination_account_id"`
	Currency             string                 `json:"currency"`
	Status               types.SettlementStatus `gorm:"default:'created'" json:"status"`

	Booking Booking `gorm:"foreignKey:booking_id" json:"-"`

	types.Timestamps
}
