package common

import (
	"context"
	"errors"
	"fmt"
	"gigbook/src/config"
	"gigbook/src/db"
	"gigbook/src/lib"
	"gigbook/src/models"
	"gigbook/src/types"
	"log"
	"math"

	"gorm.io/gorm"
)

// ComputePlatformFee rounds to cents. Deterministic and auditable from the
// stored rate, never recomputed from mutable config at read time.
func ComputePlatformFee(amount float64, feeRate float64) float64 {
	return math.Round(amount*feeRate*100) / 100
}

// InitiatePayment creates the split charge for a confirmed booking and
// returns the client secret the requester's payment UI needs. Calling it
// again for the same booking returns the existing secret instead of creating
// a second external charge.
func InitiatePayment(ctx context.Context, requesterId, bookingId uint) (string, error) {
	booking, err := GetBooking(bookingId)
	if err != nil {
		return "", err
	}
	if requesterId != booking.RequesterID {
		return "", fmt.Errorf("%w: only the requester may pay", ErrForbidden)
	}
	if booking.PaymentReference != nil {
		return existingClientSecret(booking)
	}
	if booking.Status != types.BOOKING_CONFIRMED {
		return "", fmt.Errorf("%w: booking %d is %s", ErrInvalidTransition, bookingId, booking.Status)
	}
	if config.RequireVerifiedIdentity() {
		verified, err := IsIdentityVerified(requesterId)
		if err != nil {
			return "", err
		}
		if !verified {
			return "", ErrIdentityNotVerified
		}
	}

	gdb := db.GetDb()
	var acct models.ConnectedAccount
	if err := gdb.
		Model(&models.ConnectedAccount{}).
		Where(&models.ConnectedAccount{ProviderID: booking.ProviderID}).
		First(&acct).
		Error; err != nil {
		return "", fmt.Errorf("%w: provider %d has no connected account", ErrProviderNotPayable, booking.ProviderID)
	}
	if acct.AccountID == nil || !acct.PayoutsEnabled {
		return "", fmt.Errorf("%w: provider %d onboarding incomplete", ErrProviderNotPayable, booking.ProviderID)
	}

	amount := booking.TotalPrice
	fee := ComputePlatformFee(amount, config.PLATFORM_FEE_RATE)

	// The processor call runs outside any database transaction so a slow or
	// hung round-trip never pins a connection.
	pp := lib.GetPaymentProcessor()
	cctx, cancel := context.WithTimeout(ctx, processorTimeout)
	defer cancel()
	intent, err := pp.CreateCharge(cctx, &lib.CreateChargeInput{
		Amount:               amount,
		PlatformFee:          fee,
		Currency:             config.CURRENCY,
		DestinationAccountID: *acct.AccountID,
		Metadata: map[string]string{
			"bookingId": fmt.Sprint(booking.ID),
		},
	})
	if err != nil {
		log.Printf("Error creating charge for booking %d: %s\n", bookingId, err.Error())
		return "", fmt.Errorf("%w: %s", ErrProcessorError, err.Error())
	}

	err = gdb.Transaction(func(tx *gorm.DB) error {
		res := tx.
			Model(&models.Booking{}).
			Where("id = ? AND status = ? AND payment_reference IS NULL", booking.ID, types.BOOKING_CONFIRMED).
			Updates(map[string]any{
				"payment_reference": intent.ID,
				"platform_fee":      fee,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrConflict
		}
		settlement := models.Settlement{
			BookingID:            booking.ID,
			ExternalChargeID:     intent.ID,
			ClientSecret:         intent.ClientSecret,
			Amount:               amount,
			PlatformFee:          fee,
			FeeRate:              config.PLATFORM_FEE_RATE,
			FeeRateVersion:       config.PLATFORM_FEE_RATE_VERSION,
			DestinationAccountID: *acct.AccountID,
			Currency:             config.CURRENCY,
			Status:               types.SETTLEMENT_CREATED,
		}
		if err := tx.Create(&settlement).Error; err != nil {
			return err
		}
		return nil
	})
	if errors.Is(err, ErrConflict) {
		// A concurrent call won the guarded write. Return its secret; the
		// intent created here is never confirmed and expires on its own.
		log.Printf("Concurrent payment initiation for booking %d, abandoning intent %s\n", bookingId, intent.ID)
		booking, err := GetBooking(bookingId)
		if err != nil {
			return "", err
		}
		return existingClientSecret(booking)
	}
	if err != nil {
		return "", err
	}
	log.Printf("[Settlement] booking=%d charge=%s amount=%.2f fee=%.2f dest=%s\n", booking.ID, intent.ID, amount, fee, *acct.AccountID)
	return intent.ClientSecret, nil
}

func existingClientSecret(booking *models.Booking) (string, error) {
	if booking.PaymentReference == nil {
		return "", fmt.Errorf("%w: booking %d has no settlement", ErrInvalidTransition, booking.ID)
	}
	if booking.Status != types.BOOKING_CONFIRMED {
		return "", fmt.Errorf("%w: booking %d is %s", ErrInvalidTransition, booking.ID, booking.Status)
	}
	var settlement models.Settlement
	gdb := db.GetDb()
	if err := gdb.
		Model(&models.Settlement{}).
		Where("external_charge_id = ?", *booking.PaymentReference).
		First(&settlement).
		Error; err != nil {
		return "", fmt.Errorf("%w: settlement %s", ErrNotFound, *booking.PaymentReference)
	}
	return settlement.ClientSecret, nil
}

// MarkSettlementSucceededTx freezes the settlement row once the charge
// succeeds. Succeeded settlements are immutable, so the guarded update skips
// rows already past created.
func MarkSettlementSucceededTx(tx *gorm.DB, externalChargeId string) error {
	res := tx.
		Model(&models.Settlement{}).
		Where("external_charge_id = ? AND status = ?", externalChargeId, types.SETTLEMENT_CREATED).
		Update("status", types.SETTLEMENT_SUCCEEDED)
	return res.Error
}

// MarkSettlementFailedTx records the failure and releases the booking's
// payment reference so a retry creates a fresh charge.
func MarkSettlementFailedTx(tx *gorm.DB, externalChargeId string) error {
	var settlement models.Settlement
	if err := tx.
		Model(&models.Settlement{}).
		Where("external_charge_id = ?", externalChargeId).
		First(&settlement).
		Error; err != nil {
		return fmt.Errorf("%w: settlement %s", ErrNotFound, externalChargeId)
	}
	res := tx.
		Model(&models.Settlement{}).
		Where("external_charge_id = ? AND status = ?", externalChargeId, types.SETTLEMENT_CREATED).
		Update("status", types.SETTLEMENT_FAILED)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return nil
	}
	return tx.
		Model(&models.Booking{}).
		Where("id = ? AND status = ? AND payment_reference = ?", settlement.BookingID, types.BOOKING_CONFIRMED, externalChargeId).
		Update("payment_reference", nil).
		Error
}

// GetEarnings sums the provider's net across paid and completed bookings.
// The pending figure is read live from the processor and degrades to zero on
// failure so the earnings history still renders.
func GetEarnings(ctx context.Context, providerId uint) (*types.EarningsResponse, error) {
	gdb := db.GetDb()
	var total struct {
		Net float64
	}
	if err := gdb.
		Model(&models.Booking{}).
		Where("provider_id = ? AND status IN (?)", providerId, []types.BookingStatus{
			types.BOOKING_PAID,
			types.BOOKING_COMPLETED,
		}).
		Select("COALESCE(SUM(total_price - platform_fee), 0) as net").
		Scan(&total).
		Error; err != nil {
		return nil, err
	}
	var completedCount int64
	if err := gdb.
		Model(&models.Booking{}).
		Where("provider_id = ? AND status = ?", providerId, types.BOOKING_COMPLETED).
		Count(&completedCount).
		Error; err != nil {
		return nil, err
	}

	var pendingPayouts float64
	var acct models.ConnectedAccount
	err := gdb.
		Model(&models.ConnectedAccount{}).
		Where(&models.ConnectedAccount{ProviderID: providerId}).
		First(&acct).
		Error
	if err == nil && acct.AccountID != nil {
		pp := lib.GetPaymentProcessor()
		cctx, cancel := context.WithTimeout(ctx, processorTimeout)
		defer cancel()
		_, pending, err := pp.GetBalance(cctx, *acct.AccountID)
		if err != nil {
			log.Printf("Error retrieving balance for provider %d: %s\n", providerId, err.Error())
		} else {
			pendingPayouts = pending
		}
	}

	return &types.EarningsResponse{
		TotalEarnings:         total.Net,
		PendingPayouts:        pendingPayouts,
		CompletedBookingCount: completedCount,
	}, nil
}

// GetEarningsHistory pages through settled bookings, newest update first.
func GetEarningsHistory(providerId uint, page, pageSize int) ([]types.EarningsHistoryEntry, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	gdb := db.GetDb()
	var bookings []models.Booking
	if err := gdb.
		Model(&models.Booking{}).
		Where("provider_id = ? AND status IN (?)", providerId, []types.BookingStatus{
			types.BOOKING_PAID,
			types.BOOKING_COMPLETED,
		}).
		Preload("Requester").
		Order("updated_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&bookings).
		Error; err != nil {
		return nil, err
	}
	entries := make([]types.EarningsHistoryEntry, 0, len(bookings))
	for _, b := range bookings {
		entry := types.EarningsHistoryEntry{
			BookingID: b.ID,
			NetAmount: b.TotalPrice - b.PlatformFee,
			Activity:  string(b.Activity),
			Timestamp: b.UpdatedAt,
		}
		if b.Requester != nil {
			entry.Counterparty = b.Requester.Name
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
