package models

import (
	"gigbook/src/types"
	"time"
)

// ConnectedAccount tracks a provider's registration with the payment
// processor. Created lazily on first onboarding request, never deleted.
type ConnectedAccount struct {
	ID               uint       `gorm:"primarykey" json:"id"`
	ProviderID       uint       `gorm:"uniqueIndex" json:"provider_id"`
	AccountID        *string    `json:"account_id,omitempty"`
	DetailsSubmitted bool       `gorm:"default:false" json:"details_submitted"`
	PayoutsEnabled   bool       `gorm:"default:false" json:"payouts_enabled"`
	OnboardingURL    *string    `json:"onboarding_url,omitempty"`
	LastEventAt      *time.Time `json:"last_event_at,omitempty"`

	Provider *User `gorm:"foreignKey:provider_id" json:"-"`

	types.Timestamps
}
