package main

import (
	"encoding/json"
	"errors"
	"gigbook/src/common"
	"gigbook/src/db"
	"gigbook/src/lib"
	"gigbook/src/models"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v82"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// stripeWebhookRoute is the single entry point for asynchronous processor
// events. Signature is verified before any processing; each event is applied
// in one transaction guarded by the webhook_events unique index, so replays
// and concurrent deliveries of the same event id are acked without effect.
func stripeWebhookRoute(g *gin.Engine) *gin.RouterGroup {
	apiv1 := apiv1Group(g)
	apiv1.POST("/webhook/stripe", func(ctx *gin.Context) {
		payload, err := io.ReadAll(ctx.Request.Body)
		if err != nil {
			log.Printf("Error reading request body: %s\n", err.Error())
			ctx.Status(http.StatusServiceUnavailable)
			return
		}
		pp := lib.GetPaymentProcessor()
		event, err := pp.VerifyWebhook(payload, ctx.GetHeader("Stripe-Signature"))
		if err != nil {
			log.Printf("Error verifying webhook signature: %s\n", err.Error())
			ctx.Status(http.StatusBadRequest)
			return
		}
		log.Printf("[StripeEvent] %s %s\n", event.ID, event.Type)

		var paidBookingId uint
		var pushedProviderId uint
		gdb := db.GetDb()
		err = gdb.Transaction(func(tx *gorm.DB) error {
			res := tx.
				Clauses(clause.OnConflict{
					Columns:   []clause.Column{{Name: "event_id"}},
					DoNothing: true,
				}).
				Create(&models.WebhookEvent{
					EventID:     event.ID,
					EventType:   string(event.Type),
					ProcessedAt: time.Now(),
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				log.Printf("[StripeEvent] %s already processed, skipping\n", event.ID)
				return nil
			}

			switch event.Type {
			case "payment_intent.succeeded":
				var pi stripe.PaymentIntent
				if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
					log.Printf("[Stripe] Error parsing PaymentIntent: %s\n", err.Error())
					return nil
				}
				atoi, err := strconv.Atoi(pi.Metadata["bookingId"])
				if err != nil {
					log.Printf("Could not read bookingId from Metadata of %s: %s\n", pi.ID, err.Error())
					return nil
				}
				bookingId := uint(atoi)
				if err := common.MarkBookingPaidTx(tx, bookingId, pi.ID); err != nil {
					// State conflicts are not retryable; ack and move on.
					if errors.Is(err, common.ErrInvalidTransition) || errors.Is(err, common.ErrNotFound) {
						log.Printf("Skipping markPaid for booking %d: %s\n", bookingId, err.Error())
						return nil
					}
					return err
				}
				if err := common.MarkSettlementSucceededTx(tx, pi.ID); err != nil {
					return err
				}
				paidBookingId = bookingId
			case "payment_intent.payment_failed":
				var pi stripe.PaymentIntent
				if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
					log.Printf("[Stripe] Error parsing PaymentIntent: %s\n", err.Error())
					return nil
				}
				if err := common.MarkSettlementFailedTx(tx, pi.ID); err != nil {
					if errors.Is(err, common.ErrNotFound) {
						log.Printf("No settlement for failed charge %s\n", pi.ID)
						return nil
					}
					return err
				}
			case "account.updated":
				var acc stripe.Account
				if err := json.Unmarshal(event.Data.Raw, &acc); err != nil {
					log.Printf("[Stripe] Error parsing Account: %s\n", err.Error())
					return nil
				}
				acct, err := common.ApplyAccountUpdateTx(tx, acc.ID, acc.DetailsSubmitted, acc.PayoutsEnabled)
				if err != nil {
					if errors.Is(err, common.ErrNotFound) {
						log.Printf("No connected account for %s\n", acc.ID)
						return nil
					}
					return err
				}
				pushedProviderId = acct.ProviderID
			default:
				log.Printf("[StripeEvent] %s unhandled, acknowledging\n", event.Type)
			}
			return nil
		})
		if err != nil {
			// A failed transaction means nothing was applied; a non-2xx
			// makes the processor redeliver the event.
			log.Printf("Error processing event %s: %s\n", event.ID, err.Error())
			ctx.Status(http.StatusInternalServerError)
			return
		}

		if paidBookingId != 0 {
			go common.NotifyBookingPaid(paidBookingId)
		}
		if pushedProviderId != 0 {
			common.MarkAccountPushed(ctx.Request.Context(), pushedProviderId)
		}
		ctx.Status(http.StatusNoContent)
	})
	return apiv1
}
