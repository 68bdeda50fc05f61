package models

import (
	"gigbook/src/types"
	"time"
)

// User doubles as the rate/profile record for providers: HourlyRate and Name
// are what the settlement side reads off it.
type User struct {
	ID               uint       `gorm:"primarykey" json:"id"`
	Name             string     `json:"name,omitempty"`
	Email            string     `json:"email,omitempty"`
	Role             string     `json:"role,omitempty"`
	UID              string     `json:"uid,omitempty"`
	HourlyRate       float64    `json:"hourly_rate,omitempty"`
	IdentityVerified bool       `gorm:"default:false" json:"identity_verified,omitempty"`
	VerifiedAt       *time.Time `json:"verified_at,omitempty"`

	RequestedBookings []Booking `gorm:"foreignKey:requester_id" json:"-"`
	ProvidedBookings  []Booking `gorm:"foreignKey:provider_id" json:"-"`

	types.Timestamps
}
