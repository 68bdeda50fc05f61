package main

import (
	"gigbook/src/common"
	"gigbook/src/types"
	"net/http"

	"github.com/gin-gonic/gin"
)

func paymentHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	payments := g.Group("/payments")
	payments.
		POST("/connect/onboard", func(ctx *gin.Context) {
			providerId := ctx.GetUint("id")
			acct, link, err := common.EnsureAccount(ctx.Request.Context(), providerId)
			if err != nil {
				ctx.JSON(errStatus(err), gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"url": link, "account_id": acct.AccountID})
		}).
		GET("/connect/status", func(ctx *gin.Context) {
			providerId := ctx.GetUint("id")
			acct, stale, err := common.RefreshAccountStatus(ctx.Request.Context(), providerId)
			if err != nil {
				ctx.JSON(errStatus(err), gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, types.ConnectStatusResponse{
				AccountID:        acct.AccountID,
				DetailsSubmitted: acct.DetailsSubmitted,
				PayoutsEnabled:   acct.PayoutsEnabled,
				Stale:            stale,
			})
		}).
		POST("/bookings/:id/pay", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			requesterId := ctx.GetUint("id")
			clientSecret, err := common.InitiatePayment(ctx.Request.Context(), requesterId, params.ID)
			if err != nil {
				ctx.JSON(errStatus(err), gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"client_token": clientSecret})
		}).
		GET("/earnings", func(ctx *gin.Context) {
			providerId := ctx.GetUint("id")
			earnings, err := common.GetEarnings(ctx.Request.Context(), providerId)
			if err != nil {
				ctx.JSON(errStatus(err), gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": earnings})
		}).
		GET("/earnings/history", func(ctx *gin.Context) {
			var query types.PaginationQuery
			if err := ctx.ShouldBindQuery(&query); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			providerId := ctx.GetUint("id")
			entries, err := common.GetEarningsHistory(providerId, query.Page, query.PageSize)
			if err != nil {
				ctx.JSON(errStatus(err), gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": entries, "count": len(entries), "page": query.Page})
		}).
		GET("/payouts/balance", func(ctx *gin.Context) {
			providerId := ctx.GetUint("id")
			available, pending, err := common.GetProviderBalance(ctx.Request.Context(), providerId)
			if err != nil {
				ctx.JSON(errStatus(err), gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, types.BalanceResponse{Available: available, Pending: pending})
		}).
		POST("/payouts/create", func(ctx *gin.Context) {
			var body types.CreatePayoutRequestBody
			if ctx.Request.ContentLength > 0 {
				if err := ctx.ShouldBindJSON(&body); err != nil {
					ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
					return
				}
			}
			providerId := ctx.GetUint("id")
			payout, err := common.RequestPayout(ctx.Request.Context(), providerId, body.Amount)
			if err != nil {
				ctx.JSON(errStatus(err), gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusCreated, gin.H{
				"payout_id": payout.ExternalPayoutID,
				"amount":    payout.Amount,
			})
		}).
		GET("/payouts/history", func(ctx *gin.Context) {
			var query types.PaginationQuery
			if err := ctx.ShouldBindQuery(&query); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			providerId := ctx.GetUint("id")
			payouts, err := common.ListPayouts(providerId, query.Page, query.PageSize)
			if err != nil {
				ctx.JSON(errStatus(err), gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": payouts, "count": len(payouts), "page": query.Page})
		})
	return g
}
