package common

import (
	"errors"
	"gigbook/src/config"
	"gigbook/src/db"
	"gigbook/src/types"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func newMockDB(t *testing.T) sqlmock.Sqlmock {
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("An error '%s' was not expected when opening a stub database connection", err)
	}

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: conn}), &gorm.Config{})
	if err != nil {
		t.Fatalf("An error '%s' was not expected when opening gorm database", err)
	}
	db.NewDB(gormDB)
	return mock
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from    types.BookingStatus
		to      types.BookingStatus
		allowed bool
	}{
		{types.BOOKING_PENDING, types.BOOKING_CONFIRMED, true},
		{types.BOOKING_PENDING, types.BOOKING_CANCELED, true},
		{types.BOOKING_PENDING, types.BOOKING_PAID, false},
		{types.BOOKING_PENDING, types.BOOKING_COMPLETED, false},
		{types.BOOKING_CONFIRMED, types.BOOKING_PAID, true},
		{types.BOOKING_CONFIRMED, types.BOOKING_CANCELED, true},
		{types.BOOKING_CONFIRMED, types.BOOKING_COMPLETED, false},
		{types.BOOKING_PAID, types.BOOKING_COMPLETED, true},
		{types.BOOKING_PAID, types.BOOKING_CANCELED, false},
		{types.BOOKING_PAID, types.BOOKING_CONFIRMED, false},
		{types.BOOKING_COMPLETED, types.BOOKING_CANCELED, false},
		{types.BOOKING_COMPLETED, types.BOOKING_PAID, false},
		{types.BOOKING_CANCELED, types.BOOKING_PENDING, false},
		{types.BOOKING_CANCELED, types.BOOKING_CONFIRMED, false},
	}
	for _, c := range cases {
		got := CanTransition(c.from, c.to)
		assert.Equalf(t, c.allowed, got, "%s -> %s", c.from, c.to)
	}
}

func TestComputeTotalPrice(t *testing.T) {
	assert.Equal(t, 160.0, ComputeTotalPrice(80, 2))
	assert.Equal(t, 80.0, ComputeTotalPrice(80, 1))
	assert.Equal(t, 0.0, ComputeTotalPrice(0, 3))
}

func TestValidateCreateBooking(t *testing.T) {
	future := time.Now().Add(48 * time.Hour).Format(config.TIME_PARSE_FORMAT)

	t.Run("rejects booking yourself", func(t *testing.T) {
		_, err := ValidateCreateBooking(7, &types.CreateBookingRequestBody{
			ProviderID:    7,
			ScheduledAt:   future,
			DurationHours: 2,
			Activity:      string(types.ACTIVITY_COACHING),
		})
		assert.True(t, errors.Is(err, ErrValidation))
	})

	t.Run("rejects unknown activity", func(t *testing.T) {
		_, err := ValidateCreateBooking(7, &types.CreateBookingRequestBody{
			ProviderID:    8,
			ScheduledAt:   future,
			DurationHours: 2,
			Activity:      "juggling",
		})
		assert.True(t, errors.Is(err, ErrValidation))
	})

	t.Run("rejects past date", func(t *testing.T) {
		past := time.Now().Add(-1 * time.Hour).Format(config.TIME_PARSE_FORMAT)
		_, err := ValidateCreateBooking(7, &types.CreateBookingRequestBody{
			ProviderID:    8,
			ScheduledAt:   past,
			DurationHours: 2,
			Activity:      string(types.ACTIVITY_TUTORING),
		})
		assert.True(t, errors.Is(err, ErrValidation))
	})

	t.Run("rejects malformed date", func(t *testing.T) {
		_, err := ValidateCreateBooking(7, &types.CreateBookingRequestBody{
			ProviderID:    8,
			ScheduledAt:   "tomorrow at noon",
			DurationHours: 2,
			Activity:      string(types.ACTIVITY_TUTORING),
		})
		assert.True(t, errors.Is(err, ErrValidation))
	})

	t.Run("accepts a valid request", func(t *testing.T) {
		scheduledAt, err := ValidateCreateBooking(7, &types.CreateBookingRequestBody{
			ProviderID:    8,
			ScheduledAt:   future,
			DurationHours: 2,
			Activity:      string(types.ACTIVITY_FITNESS),
		})
		assert.Nil(t, err)
		assert.True(t, scheduledAt.After(time.Now()))
	})
}

var bookingCols = []string{"id", "requester_id", "provider_id", "status"}

func TestConfirmBookingGuards(t *testing.T) {
	t.Run("confirm after cancellation is rejected", func(t *testing.T) {
		mock := newMockDB(t)
		mock.ExpectQuery(`SELECT (.+) FROM "bookings"`).
			WillReturnRows(sqlmock.NewRows(bookingCols).AddRow(1, 1, 8, "cancelled"))

		_, err := ConfirmBooking(1, 8)
		assert.True(t, errors.Is(err, ErrInvalidTransition))
		assert.Nil(t, mock.ExpectationsWereMet())
	})

	t.Run("losing a concurrent confirm is rejected", func(t *testing.T) {
		mock := newMockDB(t)
		mock.ExpectQuery(`SELECT (.+) FROM "bookings"`).
			WillReturnRows(sqlmock.NewRows(bookingCols).AddRow(1, 1, 8, "pending"))
		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE "bookings"`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit()

		_, err := ConfirmBooking(1, 8)
		assert.True(t, errors.Is(err, ErrInvalidTransition))
		assert.Nil(t, mock.ExpectationsWereMet())
	})

	t.Run("only the provider may confirm", func(t *testing.T) {
		mock := newMockDB(t)
		mock.ExpectQuery(`SELECT (.+) FROM "bookings"`).
			WillReturnRows(sqlmock.NewRows(bookingCols).AddRow(1, 1, 8, "pending"))

		_, err := ConfirmBooking(1, 1)
		assert.True(t, errors.Is(err, ErrForbidden))
	})
}

func TestCancelBookingGuards(t *testing.T) {
	t.Run("cancel after payment is rejected", func(t *testing.T) {
		mock := newMockDB(t)
		mock.ExpectQuery(`SELECT (.+) FROM "bookings"`).
			WillReturnRows(sqlmock.NewRows(bookingCols).AddRow(1, 1, 8, "paid"))

		_, err := CancelBooking(1, 1, "changed plans")
		assert.True(t, errors.Is(err, ErrInvalidTransition))
		assert.Nil(t, mock.ExpectationsWereMet())
	})

	t.Run("a stranger may not cancel", func(t *testing.T) {
		mock := newMockDB(t)
		mock.ExpectQuery(`SELECT (.+) FROM "bookings"`).
			WillReturnRows(sqlmock.NewRows(bookingCols).AddRow(1, 1, 8, "pending"))

		_, err := CancelBooking(1, 99, "")
		assert.True(t, errors.Is(err, ErrForbidden))
	})
}

func TestMarkBookingPaidTx(t *testing.T) {
	t.Run("replay on a paid booking is a no-op", func(t *testing.T) {
		mock := newMockDB(t)
		mock.ExpectQuery(`SELECT (.+) FROM "bookings"`).
			WillReturnRows(sqlmock.NewRows(bookingCols).AddRow(1, 1, 8, "paid"))

		err := MarkBookingPaidTx(db.GetDb(), 1, "pi_replayed")
		assert.Nil(t, err)
		assert.Nil(t, mock.ExpectationsWereMet())
	})

	t.Run("payment for a pending booking is rejected", func(t *testing.T) {
		mock := newMockDB(t)
		mock.ExpectQuery(`SELECT (.+) FROM "bookings"`).
			WillReturnRows(sqlmock.NewRows(bookingCols).AddRow(1, 1, 8, "pending"))

		err := MarkBookingPaidTx(db.GetDb(), 1, "pi_early")
		assert.True(t, errors.Is(err, ErrInvalidTransition))
	})
}
