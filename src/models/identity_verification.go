package models

import (
	"gigbook/src/types"
	"time"
)

type IdentityVerification struct {
	ID           uint                     `gorm:"primarykey" json:"id"`
	UserID       uint                     `gorm:"index" json:"user_id"`
	DocumentType string                   `json:"document_type"`
	DocumentURL  string                   `json:"document_url"`
	SelfieURL    string                   `json:"selfie_url,omitempty"`
	VideoURL     string                   `json:"video_url,omitempty"`
	Status       types.VerificationStatus `gorm:"default:'pending';index" json:"status"`
	ReviewedBy   *uint                    `json:"reviewed_by,omitempty"`
	ReviewedAt   *time.Time               `json:"reviewed_at,omitempty"`
	Notes        string                   `json:"notes,omitempty"`

	User *User `gorm:"foreignKey:user_id" json:"-"`

	types.Timestamps
}
