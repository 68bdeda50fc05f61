package common

import (
	"fmt"
	"gigbook/src/config"
	"gigbook/src/db"
	"gigbook/src/models"
	"gigbook/src/types"
	"log"
	"time"

	"gorm.io/gorm"
)

// allowedTransitions is the full edge set of the booking lifecycle. Cancelled
// and completed are terminal for everything except reviews.
var allowedTransitions = map[types.BookingStatus][]types.BookingStatus{
	types.BOOKING_PENDING:   {types.BOOKING_CONFIRMED, types.BOOKING_CANCELED},
	types.BOOKING_CONFIRMED: {types.BOOKING_PAID, types.BOOKING_CANCELED},
	types.BOOKING_PAID:      {types.BOOKING_COMPLETED},
}

func CanTransition(from, to types.BookingStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ComputeTotalPrice freezes the commercial terms at creation time.
func ComputeTotalPrice(hourlyRate float64, durationHours uint) float64 {
	return hourlyRate * float64(durationHours)
}

func ValidateCreateBooking(requesterId uint, body *types.CreateBookingRequestBody) (time.Time, error) {
	if requesterId == body.ProviderID {
		return time.Time{}, fmt.Errorf("%w: cannot book yourself", ErrValidation)
	}
	if body.DurationHours < 1 {
		return time.Time{}, fmt.Errorf("%w: duration must be positive", ErrValidation)
	}
	if !types.AllowedActivityKinds[types.ActivityKind(body.Activity)] {
		return time.Time{}, fmt.Errorf("%w: unknown activity kind %q", ErrValidation, body.Activity)
	}
	scheduledAt, err := time.Parse(config.TIME_PARSE_FORMAT, body.ScheduledAt)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid scheduled_at", ErrValidation)
	}
	if !scheduledAt.After(time.Now()) {
		return time.Time{}, fmt.Errorf("%w: scheduled_at must be in the future", ErrValidation)
	}
	return scheduledAt, nil
}

func CreateBooking(requesterId uint, body *types.CreateBookingRequestBody) (*models.Booking, error) {
	scheduledAt, err := ValidateCreateBooking(requesterId, body)
	if err != nil {
		return nil, err
	}
	var booking models.Booking
	gdb := db.GetDb()
	err = gdb.Transaction(func(tx *gorm.DB) error {
		var provider models.User
		if err := tx.
			Model(&models.User{}).
			Where(&models.User{ID: body.ProviderID}).
			First(&provider).
			Error; err != nil {
			return fmt.Errorf("%w: provider %d", ErrNotFound, body.ProviderID)
		}
		booking = models.Booking{
			RequesterID:   requesterId,
			ProviderID:    provider.ID,
			ScheduledAt:   scheduledAt,
			DurationHours: body.DurationHours,
			Activity:      types.ActivityKind(body.Activity),
			Location:      body.Location,
			Notes:         body.Notes,
			HourlyRate:    provider.HourlyRate,
			TotalPrice:    ComputeTotalPrice(provider.HourlyRate, body.DurationHours),
			Status:        types.BOOKING_PENDING,
		}
		if err := tx.Create(&booking).Error; err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[Booking] created id=%d requester=%d provider=%d total=%.2f\n", booking.ID, booking.RequesterID, booking.ProviderID, booking.TotalPrice)
	return &booking, nil
}

func GetBooking(bookingId uint) (*models.Booking, error) {
	var booking models.Booking
	gdb := db.GetDb()
	if err := gdb.
		Model(&models.Booking{}).
		Where(&models.Booking{ID: bookingId}).
		First(&booking).
		Error; err != nil {
		return nil, fmt.Errorf("%w: booking %d", ErrNotFound, bookingId)
	}
	return &booking, nil
}

// ConfirmBooking moves pending to confirmed. Only the provider may confirm.
// The guarded update serializes concurrent confirms: the loser sees zero
// affected rows and gets ErrInvalidTransition.
func ConfirmBooking(bookingId, actorId uint) (*models.Booking, error) {
	booking, err := GetBooking(bookingId)
	if err != nil {
		return nil, err
	}
	if actorId != booking.ProviderID {
		return nil, fmt.Errorf("%w: only the provider may confirm", ErrForbidden)
	}
	if !CanTransition(booking.Status, types.BOOKING_CONFIRMED) {
		return nil, fmt.Errorf("%w: booking %d is %s", ErrInvalidTransition, bookingId, booking.Status)
	}
	gdb := db.GetDb()
	res := gdb.
		Model(&models.Booking{}).
		Where("id = ? AND status = ?", bookingId, types.BOOKING_PENDING).
		Update("status", types.BOOKING_CONFIRMED)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: booking %d is %s", ErrInvalidTransition, bookingId, booking.Status)
	}
	log.Printf("[Booking] %d %s -> %s by actor %d\n", bookingId, booking.Status, types.BOOKING_CONFIRMED, actorId)
	booking.Status = types.BOOKING_CONFIRMED
	go NotifyBookingConfirmed(booking)
	return booking, nil
}

// CancelBooking is allowed for either party while the booking is pending or
// confirmed. Cancellation is terminal; the row is never deleted.
func CancelBooking(bookingId, actorId uint, reason string) (*models.Booking, error) {
	booking, err := GetBooking(bookingId)
	if err != nil {
		return nil, err
	}
	if actorId != booking.RequesterID && actorId != booking.ProviderID {
		return nil, fmt.Errorf("%w: not a party to booking %d", ErrForbidden, bookingId)
	}
	if !CanTransition(booking.Status, types.BOOKING_CANCELED) {
		return nil, fmt.Errorf("%w: booking %d is %s", ErrInvalidTransition, bookingId, booking.Status)
	}
	gdb := db.GetDb()
	updates := map[string]any{
		"status":       types.BOOKING_CANCELED,
		"cancelled_by": actorId,
	}
	if reason != "" {
		updates["cancellation_reason"] = reason
	}
	res := gdb.
		Model(&models.Booking{}).
		Where("id = ? AND status IN (?)", bookingId, []types.BookingStatus{
			types.BOOKING_PENDING,
			types.BOOKING_CONFIRMED,
		}).
		Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: booking %d is %s", ErrInvalidTransition, bookingId, booking.Status)
	}
	log.Printf("[Booking] %d %s -> %s by actor %d\n", bookingId, booking.Status, types.BOOKING_CANCELED, actorId)
	booking.Status = types.BOOKING_CANCELED
	booking.CancelledBy = &actorId
	if reason != "" {
		booking.CancellationReason = &reason
	}
	return booking, nil
}

// MarkBookingPaidTx applies the confirmed -> paid transition inside the
// caller's transaction. Invoked only from webhook reconciliation. A booking
// already at paid or completed is a no-op, so event replay and out-of-order
// delivery can never double-apply or regress the status.
func MarkBookingPaidTx(tx *gorm.DB, bookingId uint, chargeRef string) error {
	var booking models.Booking
	if err := tx.
		Model(&models.Booking{}).
		Where(&models.Booking{ID: bookingId}).
		First(&booking).
		Error; err != nil {
		return fmt.Errorf("%w: booking %d", ErrNotFound, bookingId)
	}
	if booking.Status == types.BOOKING_PAID || booking.Status == types.BOOKING_COMPLETED {
		log.Printf("[Booking] %d already %s, skipping markPaid for %s\n", bookingId, booking.Status, chargeRef)
		return nil
	}
	if !CanTransition(booking.Status, types.BOOKING_PAID) {
		return fmt.Errorf("%w: booking %d is %s", ErrInvalidTransition, bookingId, booking.Status)
	}
	res := tx.
		Model(&models.Booking{}).
		Where("id = ? AND status = ?", bookingId, types.BOOKING_CONFIRMED).
		Updates(map[string]any{
			"status":            types.BOOKING_PAID,
			"payment_reference": chargeRef,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: booking %d is %s", ErrInvalidTransition, bookingId, booking.Status)
	}
	log.Printf("[Booking] %d %s -> %s ref=%s\n", bookingId, booking.Status, types.BOOKING_PAID, chargeRef)
	return nil
}

// MarkBookingCompleted moves paid to completed, after which only reviews are
// possible and no further payment actions are allowed.
func MarkBookingCompleted(bookingId, actorId uint) (*models.Booking, error) {
	booking, err := GetBooking(bookingId)
	if err != nil {
		return nil, err
	}
	if actorId != booking.RequesterID && actorId != booking.ProviderID {
		return nil, fmt.Errorf("%w: not a party to booking %d", ErrForbidden, bookingId)
	}
	if !CanTransition(booking.Status, types.BOOKING_COMPLETED) {
		return nil, fmt.Errorf("%w: booking %d is %s", ErrInvalidTransition, bookingId, booking.Status)
	}
	gdb := db.GetDb()
	res := gdb.
		Model(&models.Booking{}).
		Where("id = ? AND status = ?", bookingId, types.BOOKING_PAID).
		Update("status", types.BOOKING_COMPLETED)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: booking %d is %s", ErrInvalidTransition, bookingId, booking.Status)
	}
	log.Printf("[Booking] %d %s -> %s by actor %d\n", bookingId, booking.Status, types.BOOKING_COMPLETED, actorId)
	booking.Status = types.BOOKING_COMPLETED
	return booking, nil
}

// ListBookingsByRole returns the actor's bookings split by which side of the
// engagement they are on.
func ListBookingsByRole(actorId uint) (asRequester []models.Booking, asProvider []models.Booking, err error) {
	gdb := db.GetDb()
	err = gdb.
		Model(&models.Booking{}).
		Where(&models.Booking{RequesterID: actorId}).
		Preload("Provider").
		Order("created_at DESC").
		Limit(100).
		Find(&asRequester).
		Error
	if err != nil {
		return nil, nil, err
	}
	err = gdb.
		Model(&models.Booking{}).
		Where(&models.Booking{ProviderID: actorId}).
		Preload("Requester").
		Order("created_at DESC").
		Limit(100).
		Find(&asProvider).
		Error
	if err != nil {
		return nil, nil, err
	}
	return asRequester, asProvider, nil
}
