package main

import (
	"gigbook/src/common"
	"gigbook/src/types"
	"net/http"

	"github.com/gin-gonic/gin"
)

func verificationHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	verification := g.Group("/verification")
	verification.
		POST("/submit", func(ctx *gin.Context) {
			var body types.SubmitVerificationRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			userId := ctx.GetUint("id")
			verification, err := common.SubmitVerification(userId, &body)
			if err != nil {
				ctx.JSON(errStatus(err), gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusCreated, gin.H{"data": verification})
		}).
		GET("/status", func(ctx *gin.Context) {
			userId := ctx.GetUint("id")
			verification, err := common.GetVerificationStatus(userId)
			if err != nil {
				ctx.JSON(errStatus(err), gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": verification})
		})
	return g
}
