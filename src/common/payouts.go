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

	"gorm.io/gorm"
)

// GetProviderBalance reads the live balance. A provider with no connected
// account gets a zero-value balance, not an error.
func GetProviderBalance(ctx context.Context, providerId uint) (available float64, pending float64, err error) {
	gdb := db.GetDb()
	var acct models.ConnectedAccount
	dberr := gdb.
		Model(&models.ConnectedAccount{}).
		Where(&models.ConnectedAccount{ProviderID: providerId}).
		First(&acct).
		Error
	if dberr != nil {
		if errors.Is(dberr, gorm.ErrRecordNotFound) {
			return 0, 0, nil
		}
		return 0, 0, dberr
	}
	if acct.AccountID == nil {
		return 0, 0, nil
	}
	pp := lib.GetPaymentProcessor()
	cctx, cancel := context.WithTimeout(ctx, processorTimeout)
	defer cancel()
	available, pending, err = pp.GetBalance(cctx, *acct.AccountID)
	if err != nil {
		log.Printf("Error retrieving balance for provider %d: %s\n", providerId, err.Error())
		return 0, 0, fmt.Errorf("%w: %s", ErrProcessorError, err.Error())
	}
	return available, pending, nil
}

// RequestPayout converts available balance into a payout instruction. With a
// nil amount the full available balance is paid out. No PayoutRequest row is
// written unless the processor accepted the payout.
func RequestPayout(ctx context.Context, providerId uint, amount *float64) (*models.PayoutRequest, error) {
	gdb := db.GetDb()
	var acct models.ConnectedAccount
	if err := gdb.
		Model(&models.ConnectedAccount{}).
		Where(&models.ConnectedAccount{ProviderID: providerId}).
		First(&acct).
		Error; err != nil {
		return nil, fmt.Errorf("%w: no connected account for provider %d", ErrAccountNotReady, providerId)
	}
	if acct.AccountID == nil || !acct.PayoutsEnabled {
		return nil, fmt.Errorf("%w: payouts not enabled for provider %d", ErrAccountNotReady, providerId)
	}

	pp := lib.GetPaymentProcessor()
	cctx, cancel := context.WithTimeout(ctx, processorTimeout)
	defer cancel()
	available, _, err := pp.GetBalance(cctx, *acct.AccountID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrProcessorError, err.Error())
	}
	payoutAmount := available
	if amount != nil {
		payoutAmount = *amount
	}
	if payoutAmount <= 0 {
		return nil, fmt.Errorf("%w: nothing to pay out", ErrValidation)
	}
	if payoutAmount > available {
		return nil, fmt.Errorf("%w: requested %.2f, available %.2f", ErrInsufficientBalance, payoutAmount, available)
	}

	externalId, err := pp.CreatePayout(cctx, *acct.AccountID, payoutAmount, config.CURRENCY)
	if err != nil {
		log.Printf("Error creating payout for provider %d: %s\n", providerId, err.Error())
		return nil, fmt.Errorf("%w: %s", ErrProcessorError, err.Error())
	}

	payout := models.PayoutRequest{
		ProviderID:       providerId,
		RequestedAmount:  amount,
		Amount:           payoutAmount,
		Currency:         config.CURRENCY,
		ExternalPayoutID: &externalId,
		Status:           types.PAYOUT_INITIATED,
	}
	if err := gdb.Create(&payout).Error; err != nil {
		log.Printf("Payout %s accepted by processor but row insert failed: %s\n", externalId, err.Error())
		return nil, err
	}
	log.Printf("[Payout] provider=%d amount=%.2f external=%s\n", providerId, payoutAmount, externalId)
	return &payout, nil
}

func ListPayouts(providerId uint, page, pageSize int) ([]models.PayoutRequest, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	gdb := db.GetDb()
	var payouts []models.PayoutRequest
	if err := gdb.
		Model(&models.PayoutRequest{}).
		Where(&models.PayoutRequest{ProviderID: providerId}).
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&payouts).
		Error; err != nil {
		return nil, err
	}
	return payouts, nil
}
