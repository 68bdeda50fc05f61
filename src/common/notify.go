package common

import (
	"fmt"
	"gigbook/src/db"
	"gigbook/src/lib"
	"gigbook/src/models"
	"log"
)

// Lifecycle mails are best-effort: failures are logged, never surfaced.

func NotifyBookingConfirmed(booking *models.Booking) {
	sendBookingMail(booking.RequesterID, "Your booking is confirmed",
		fmt.Sprintf("Booking #%d for %s on %s has been confirmed by the provider.",
			booking.ID, booking.Activity, booking.ScheduledAt.Format("Jan 2, 2006 15:04")))
}

func NotifyBookingPaid(bookingId uint) {
	gdb := db.GetDb()
	var booking models.Booking
	if err := gdb.
		Model(&models.Booking{}).
		Where(&models.Booking{ID: bookingId}).
		First(&booking).
		Error; err != nil {
		log.Printf("Could not load booking %d for notification: %s\n", bookingId, err.Error())
		return
	}
	sendBookingMail(booking.ProviderID, "Payment received",
		fmt.Sprintf("Payment for booking #%d (%s) has been received. Net amount: %.2f.",
			booking.ID, booking.Activity, booking.TotalPrice-booking.PlatformFee))
}

func sendBookingMail(userId uint, subject, body string) {
	gdb := db.GetDb()
	var user models.User
	if err := gdb.
		Model(&models.User{}).
		Where(&models.User{ID: userId}).
		First(&user).
		Error; err != nil {
		log.Printf("Could not load user %d for notification: %s\n", userId, err.Error())
		return
	}
	if user.Email == "" {
		return
	}
	if err := lib.SendMail(&lib.SendMailInput{
		To:      user.Email,
		Subject: subject,
		Body:    body,
	}); err != nil {
		log.Printf("Error sending %q mail to user %d: %s\n", subject, userId, err.Error())
	}
}
