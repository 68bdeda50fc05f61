package common

import (
	"context"
	"errors"
	"fmt"
	"gigbook/src/db"
	"gigbook/src/lib"
	"gigbook/src/models"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const processorTimeout = 10 * time.Second

// Cool-down after a push event during which pull refreshes are skipped, so a
// stale pull can never overwrite what the webhook already applied.
const accountPullCooldown = 2 * time.Minute

func accountCooldownKey(providerId uint) string {
	return fmt.Sprintf("connect:%d:pushed", providerId)
}

// EnsureAccount lazily creates the provider's external account and always
// returns a fresh single-use onboarding link. Safe to call repeatedly.
func EnsureAccount(ctx context.Context, providerId uint) (*models.ConnectedAccount, string, error) {
	gdb := db.GetDb()
	var provider models.User
	if err := gdb.
		Model(&models.User{}).
		Where(&models.User{ID: providerId}).
		First(&provider).
		Error; err != nil {
		return nil, "", fmt.Errorf("%w: provider %d", ErrNotFound, providerId)
	}
	var acct models.ConnectedAccount
	err := gdb.
		Model(&models.ConnectedAccount{}).
		Where(&models.ConnectedAccount{ProviderID: providerId}).
		First(&acct).
		Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", err
		}
		acct = models.ConnectedAccount{ProviderID: providerId}
		if err := gdb.Create(&acct).Error; err != nil {
			return nil, "", err
		}
	}

	pp := lib.GetPaymentProcessor()
	cctx, cancel := context.WithTimeout(ctx, processorTimeout)
	defer cancel()
	if acct.AccountID == nil {
		accountId, err := pp.CreateAccount(cctx, provider.Email, map[string]string{
			"providerId": fmt.Sprint(providerId),
		})
		if err != nil {
			log.Printf("Error creating account for provider %d: %s\n", providerId, err.Error())
			return nil, "", fmt.Errorf("%w: %s", ErrProcessorError, err.Error())
		}
		if err := gdb.
			Model(&models.ConnectedAccount{}).
			Where("id = ?", acct.ID).
			Update("account_id", accountId).
			Error; err != nil {
			return nil, "", err
		}
		acct.AccountID = &accountId
	}

	link, err := pp.CreateAccountLink(cctx, *acct.AccountID)
	if err != nil {
		log.Printf("Error creating onboarding link for provider %d: %s\n", providerId, err.Error())
		return nil, "", fmt.Errorf("%w: %s", ErrProcessorError, err.Error())
	}
	if err := gdb.
		Model(&models.ConnectedAccount{}).
		Where("id = ?", acct.ID).
		Update("onboarding_url", link).
		Error; err != nil {
		return nil, "", err
	}
	acct.OnboardingURL = &link
	return &acct, link, nil
}

// RefreshAccountStatus is the pull path. The webhook push path is
// authoritative: inside the cool-down window after a push, or when the
// processor is unreachable, the cached row is returned (the latter flagged
// stale) instead of failing hard.
func RefreshAccountStatus(ctx context.Context, providerId uint) (*models.ConnectedAccount, bool, error) {
	gdb := db.GetDb()
	var acct models.ConnectedAccount
	if err := gdb.
		Model(&models.ConnectedAccount{}).
		Where(&models.ConnectedAccount{ProviderID: providerId}).
		First(&acct).
		Error; err != nil {
		return nil, false, fmt.Errorf("%w: no connected account for provider %d", ErrNotFound, providerId)
	}
	if acct.AccountID == nil {
		return &acct, false, nil
	}

	if rd := lib.GetRedisClient(); rd != nil {
		_, err := rd.Get(ctx, accountCooldownKey(providerId)).Result()
		if err == nil {
			return &acct, false, nil
		}
		if !errors.Is(err, redis.Nil) {
			log.Printf("Could not read cooldown key from cache: %s\n", err.Error())
		}
	}

	pp := lib.GetPaymentProcessor()
	cctx, cancel := context.WithTimeout(ctx, processorTimeout)
	defer cancel()
	state, err := pp.GetAccount(cctx, *acct.AccountID)
	if err != nil {
		log.Printf("Error retrieving account %s: %s\n", *acct.AccountID, err.Error())
		return &acct, true, nil
	}
	if state.DetailsSubmitted != acct.DetailsSubmitted || state.PayoutsEnabled != acct.PayoutsEnabled {
		if err := gdb.
			Model(&models.ConnectedAccount{}).
			Where("id = ?", acct.ID).
			Updates(map[string]any{
				"details_submitted": state.DetailsSubmitted,
				"payouts_enabled":   state.PayoutsEnabled,
			}).
			Error; err != nil {
			return nil, false, err
		}
		acct.DetailsSubmitted = state.DetailsSubmitted
		acct.PayoutsEnabled = state.PayoutsEnabled
	}
	return &acct, false, nil
}

// ApplyAccountUpdateTx applies a pushed account event inside the caller's
// transaction, matched by external account id since the event does not carry
// the provider id.
func ApplyAccountUpdateTx(tx *gorm.DB, externalAccountId string, detailsSubmitted, payoutsEnabled bool) (*models.ConnectedAccount, error) {
	var acct models.ConnectedAccount
	if err := tx.
		Model(&models.ConnectedAccount{}).
		Where("account_id = ?", externalAccountId).
		First(&acct).
		Error; err != nil {
		return nil, fmt.Errorf("%w: connected account %s", ErrNotFound, externalAccountId)
	}
	now := time.Now()
	if err := tx.
		Model(&models.ConnectedAccount{}).
		Where("id = ?", acct.ID).
		Updates(map[string]any{
			"details_submitted": detailsSubmitted,
			"payouts_enabled":   payoutsEnabled,
			"last_event_at":     now,
		}).
		Error; err != nil {
		return nil, err
	}
	acct.DetailsSubmitted = detailsSubmitted
	acct.PayoutsEnabled = payoutsEnabled
	acct.LastEventAt = &now
	return &acct, nil
}

// MarkAccountPushed arms the pull cool-down after a webhook commit.
func MarkAccountPushed(ctx context.Context, providerId uint) {
	rd := lib.GetRedisClient()
	if rd == nil {
		return
	}
	if err := rd.Set(ctx, accountCooldownKey(providerId), time.Now().Unix(), accountPullCooldown).Err(); err != nil {
		log.Printf("Could not set cooldown key for provider %d: %s\n", providerId, err.Error())
	}
}
