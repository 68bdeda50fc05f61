package types

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
)

type Timestamps struct {
	CreatedAt time.Time      `gorm:"autoCreateTime:nano" json:"created_at,omitempty"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime:nano" json:"updated_at,omitempty"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty,omitnil"`
}

type JSONB map[string]any

func (a JSONB) Value() (driver.Value, error) {
	valueString, err := json.Marshal(a)
	return string(valueString), err
}
func (a *JSONB) Scan(value any) error {
	b, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	return nil
}

type Environment string

const (
	Local      Environment = "local"
	Test       Environment = "test"
	Production Environment = "production"
)

type BookingStatus string

const (
	BOOKING_PENDING   BookingStatus = "pending"
	BOOKING_CONFIRMED BookingStatus = "confirmed"
	BOOKING_PAID      BookingStatus = "paid"
	BOOKING_COMPLETED BookingStatus = "completed"
	BOOKING_CANCELED  BookingStatus = "cancelled"
)

type ActivityKind string

const (
	ACTIVITY_COACHING    ActivityKind = "coaching"
	ACTIVITY_TUTORING    ActivityKind = "tutoring"
	ACTIVITY_FITNESS     ActivityKind = "fitness"
	ACTIVITY_PHOTOGRAPHY ActivityKind = "photography"
	ACTIVITY_GUIDING     ActivityKind = "guiding"
)

// AllowedActivityKinds is the closed set accepted on booking creation.
var AllowedActivityKinds = map[ActivityKind]bool{
	ACTIVITY_COACHING:    true,
	ACTIVITY_TUTORING:    true,
	ACTIVITY_FITNESS:     true,
	ACTIVITY_PHOTOGRAPHY: true,
	ACTIVITY_GUIDING:     true,
}

type SettlementStatus string

const (
	SETTLEMENT_CREATED   SettlementStatus = "created"
	SETTLEMENT_SUCCEEDED SettlementStatus = "succeeded"
	SETTLEMENT_FAILED    SettlementStatus = "failed"
)

type PayoutStatus string

const (
	PAYOUT_INITIATED PayoutStatus = "initiated"
	PAYOUT_SUCCEEDED PayoutStatus = "succeeded"
	PAYOUT_FAILED    PayoutStatus = "failed"
)

type VerificationStatus string

const (
	VERIFICATION_PENDING  VerificationStatus = "pending"
	VERIFICATION_APPROVED VerificationStatus = "approved"
	VERIFICATION_REJECTED VerificationStatus = "rejected"
)

type SimpleRequestParams struct {
	ID uint `uri:"id" binding:"required"`
}

type CreateBookingRequestBody struct {
	ProviderID    uint   `json:"provider_id" binding:"required"`
	ScheduledAt   string `json:"scheduled_at" binding:"required,futuredate" time_format:"2006-01-02T15:04:05Z07:00"`
	DurationHours uint   `json:"duration_hours" binding:"required,min=1"`
	Activity      string `json:"activity" binding:"required"`
	Location      string `json:"location,omitempty"`
	Notes         string `json:"notes,omitempty" binding:"omitempty,max=500"`
}

type CancelBookingRequestBody struct {
	Reason string `json:"reason,omitempty" binding:"omitempty,max=500"`
}

type CreatePayoutRequestBody struct {
	Amount *float64 `json:"amount,omitempty" binding:"omitempty,gt=0"`
}

type SubmitVerificationRequestBody struct {
	DocumentType string `json:"document_type" binding:"required"`
	DocumentURL  string `json:"document_url" binding:"required"`
	SelfieURL    string `json:"selfie_url,omitempty"`
	VideoURL     string `json:"video_url,omitempty"`
}

type PaginationQuery struct {
	Page     int `form:"page,default=1" binding:"omitempty,min=1"`
	PageSize int `form:"page_size,default=20" binding:"omitempty,min=1,max=100"`
}

type EarningsResponse struct {
	TotalEarnings         float64 `json:"total_earnings"`
	PendingPayouts        float64 `json:"pending_payouts"`
	CompletedBookingCount int64   `json:"completed_booking_count"`
}

type EarningsHistoryEntry struct {
	BookingID    uint      `json:"booking_id"`
	NetAmount    float64   `json:"net_amount"`
	Counterparty string    `json:"counterparty"`
	Activity     string    `json:"activity"`
	Timestamp    time.Time `json:"timestamp"`
}

type BalanceResponse struct {
	Available float64 `json:"available"`
	Pending   float64 `json:"pending"`
}

type ConnectStatusResponse struct {
	AccountID        *string `json:"account_id,omitempty"`
	DetailsSubmitted bool    `json:"details_submitted"`
	PayoutsEnabled   bool    `json:"payouts_enabled"`
	Stale            bool    `json:"stale,omitempty"`
}
