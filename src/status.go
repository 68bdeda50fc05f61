package main

import (
	"errors"
	"gigbook/src/common"
	"net/http"
)

func errStatus(err error) int {
	switch {
	case errors.Is(err, common.ErrValidation), errors.Is(err, common.ErrInsufficientBalance):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrForbidden), errors.Is(err, common.ErrIdentityNotVerified):
		return http.StatusForbidden
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrInvalidTransition),
		errors.Is(err, common.ErrConflict),
		errors.Is(err, common.ErrProviderNotPayable),
		errors.Is(err, common.ErrAccountNotReady):
		return http.StatusConflict
	case errors.Is(err, common.ErrProcessorError):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
