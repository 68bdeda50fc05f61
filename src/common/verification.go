package common

import (
	"errors"
	"fmt"
	"gigbook/src/config"
	"gigbook/src/db"
	"gigbook/src/lib"
	"gigbook/src/models"
	"gigbook/src/types"
	"log"
	"time"

	"gorm.io/gorm"
)

const autoApproveDelay = 30 * time.Second

// SubmitVerification opens (or re-opens after rejection) the identity
// verification workflow for a user. A submission already pending or approved
// is a conflict.
func SubmitVerification(userId uint, body *types.SubmitVerificationRequestBody) (*models.IdentityVerification, error) {
	gdb := db.GetDb()
	var existing models.IdentityVerification
	err := gdb.
		Model(&models.IdentityVerification{}).
		Where("user_id = ? AND status IN (?)", userId, []types.VerificationStatus{
			types.VERIFICATION_PENDING,
			types.VERIFICATION_APPROVED,
		}).
		First(&existing).
		Error
	if err == nil {
		return nil, fmt.Errorf("%w: verification already %s", ErrConflict, existing.Status)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	verification := models.IdentityVerification{
		UserID:       userId,
		DocumentType: body.DocumentType,
		DocumentURL:  body.DocumentURL,
		SelfieURL:    body.SelfieURL,
		VideoURL:     body.VideoURL,
		Status:       types.VERIFICATION_PENDING,
	}
	if err := gdb.Create(&verification).Error; err != nil {
		return nil, err
	}
	log.Printf("[Verification] submitted id=%d user=%d\n", verification.ID, userId)

	// Outside production the review step is simulated with a one-shot
	// scheduled job. The job re-checks status at fire time, so a manual
	// review racing it stays authoritative.
	if !config.IsProduction() {
		if _, err := lib.CreateOneTimeJob(autoApproveDelay, AutoApproveVerification, verification.ID); err != nil {
			log.Printf("Could not schedule auto-approval for verification %d: %s\n", verification.ID, err.Error())
		}
	}
	return &verification, nil
}

func GetVerificationStatus(userId uint) (*models.IdentityVerification, error) {
	gdb := db.GetDb()
	var verification models.IdentityVerification
	if err := gdb.
		Model(&models.IdentityVerification{}).
		Where(&models.IdentityVerification{UserID: userId}).
		Order("created_at DESC").
		First(&verification).
		Error; err != nil {
		return nil, fmt.Errorf("%w: no verification for user %d", ErrNotFound, userId)
	}
	return &verification, nil
}

func IsIdentityVerified(userId uint) (bool, error) {
	gdb := db.GetDb()
	var user models.User
	if err := gdb.
		Model(&models.User{}).
		Where(&models.User{ID: userId}).
		First(&user).
		Error; err != nil {
		return false, fmt.Errorf("%w: user %d", ErrNotFound, userId)
	}
	return user.IdentityVerified, nil
}

func AutoApproveVerification(verificationId uint) {
	if err := ReviewVerification(verificationId, nil, types.VERIFICATION_APPROVED, "auto-approved (non-production)"); err != nil {
		log.Printf("Auto-approval of verification %d failed: %s\n", verificationId, err.Error())
	}
}

// ReviewVerification resolves a pending submission. The guarded update keeps
// a decision from being overwritten by a later (or racing) one.
func ReviewVerification(verificationId uint, reviewerId *uint, status types.VerificationStatus, notes string) error {
	if status != types.VERIFICATION_APPROVED && status != types.VERIFICATION_REJECTED {
		return fmt.Errorf("%w: invalid review status %q", ErrValidation, status)
	}
	gdb := db.GetDb()
	return gdb.Transaction(func(tx *gorm.DB) error {
		var verification models.IdentityVerification
		if err := tx.
			Model(&models.IdentityVerification{}).
			Where(&models.IdentityVerification{ID: verificationId}).
			First(&verification).
			Error; err != nil {
			return fmt.Errorf("%w: verification %d", ErrNotFound, verificationId)
		}
		now := time.Now()
		res := tx.
			Model(&models.IdentityVerification{}).
			Where("id = ? AND status = ?", verificationId, types.VERIFICATION_PENDING).
			Updates(map[string]any{
				"status":      status,
				"reviewed_by": reviewerId,
				"reviewed_at": now,
				"notes":       notes,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: verification %d is %s", ErrInvalidTransition, verificationId, verification.Status)
		}
		if status == types.VERIFICATION_APPROVED {
			if err := tx.
				Model(&models.User{}).
				Where("id = ?", verification.UserID).
				Updates(map[string]any{
					"identity_verified": true,
					"verified_at":       now,
				}).
				Error; err != nil {
				return err
			}
		}
		log.Printf("[Verification] %d -> %s\n", verificationId, status)
		return nil
	})
}
