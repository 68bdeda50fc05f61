package models

import (
	"gigbook/src/types"

	"github.com/google/uuid"
)

type PayoutRequest struct {
	ID uuid.UUID `gorm:"primarykey;type:uuid;default:gen_random_uuid()" json:"id"`

	ProviderID       uint               `gorm:"index" json:"provider_id"`
	RequestedAmount  *float64           `json:"requested_amount,omitempty"`
	Amount           float64            `json:"amount"`
	Currency         string             `json:"currency"`
	ExternalPayoutID *string            `json:"external_payout_id,omitempty"`
	Status           types.PayoutStatus `gorm:"default:'initiated'" json:"status"`

	Provider *User `gorm:"foreignKey:provider_id" json:"-"`

	types.Timestamps
}
