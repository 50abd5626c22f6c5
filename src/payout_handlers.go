package main

import (
	"net/http"
	"revendiste/src/common"
	"revendiste/src/types"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func payoutHandlers(g *gin.RouterGroup, payouts *common.PayoutService, earnings *common.EarningsService) *gin.RouterGroup {
	g.
		GET("/balance", func(ctx *gin.Context) {
			userId := ctx.GetUint("id")
			data, err := earnings.Balance(userId)
			if err != nil {
				ctx.JSON(statusForError(err), gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": data})
		}).
		GET("/earnings/available", func(ctx *gin.Context) {
			userId := ctx.GetUint("id")
			data, err := earnings.AvailableForSelection(userId)
			if err != nil {
				ctx.JSON(statusForError(err), gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": data, "count": len(data)})
		}).
		POST("/payouts", func(ctx *gin.Context) {
			var body types.RequestPayoutRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			userId := ctx.GetUint("id")
			payout, err := payouts.RequestPayout(userId, body)
			if err != nil {
				ctx.JSON(statusForError(err), gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusCreated, gin.H{"data": payout})
		}).
		GET("/payouts", func(ctx *gin.Context) {
			userId := ctx.GetUint("id")
			data, err := payouts.PayoutHistory(userId)
			if err != nil {
				ctx.JSON(statusForError(err), gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": data, "count": len(data)})
		}).
		PUT("/payouts/:id/cancel", func(ctx *gin.Context) {
			var params types.UUIDRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			payoutId, _ := uuid.Parse(params.ID)
			userId := ctx.GetUint("id")
			if err := payouts.CancelPayout(userId, payoutId); err != nil {
				ctx.JSON(statusForError(err), gin.H{"error": err.Error()})
				return
			}
			ctx.Status(http.StatusNoContent)
		}).
		POST("/payout-methods", func(ctx *gin.Context) {
			var body types.CreatePayoutMethodRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			userId := ctx.GetUint("id")
			method, err := payouts.CreatePayoutMethod(userId, body)
			if err != nil {
				ctx.JSON(statusForError(err), gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusCreated, gin.H{"data": method})
		}).
		GET("/payout-methods", func(ctx *gin.Context) {
			userId := ctx.GetUint("id")
			data, err := payouts.ListPayoutMethods(userId)
			if err != nil {
				ctx.JSON(statusForError(err), gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": data, "count": len(data)})
		})
	return g
}

// operatorPayoutHandlers carries the gateway-driven transitions and
// administrative actions. These are called by the settlement worker
// and back-office tooling, not by sellers.
func operatorPayoutHandlers(g *gin.RouterGroup, payouts *common.PayoutService, earnings *common.EarningsService) *gin.RouterGroup {
	g.
		PUT("/payouts/:id/processing", func(ctx *gin.Context) {
			var params types.UUIDRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			payoutId, _ := uuid.Parse(params.ID)
			if err := payouts.MarkProcessing(payoutId); err != nil {
				ctx.JSON(statusForError(err), gin.H{"error": err.Error()})
				return
			}
			ctx.Status(http.StatusNoContent)
		}).
		PUT("/payouts/:id/complete", func(ctx *gin.Context) {
			var params types.UUIDRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			var body types.JSONB
			if err := ctx.ShouldBindJSON(&body); err != nil {
				body = nil
			}
			payoutId, _ := uuid.Parse(params.ID)
			if err := payouts.CompletePayout(payoutId, body); err != nil {
				ctx.JSON(statusForError(err), gin.H{"error": err.Error()})
				return
			}
			ctx.Status(http.StatusNoContent)
		}).
		PUT("/payouts/:id/fail", func(ctx *gin.Context) {
			var params types.UUIDRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			payoutId, _ := uuid.Parse(params.ID)
			if err := payouts.FailPayout(payoutId); err != nil {
				ctx.JSON(statusForError(err), gin.H{"error": err.Error()})
				return
			}
			ctx.Status(http.StatusNoContent)
		}).
		PUT("/earnings/:id/retain", func(ctx *gin.Context) {
			var params types.UUIDRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			earningId, _ := uuid.Parse(params.ID)
			if err := earnings.Retain(earningId); err != nil {
				ctx.JSON(statusForError(err), gin.H{"error": err.Error()})
				return
			}
			ctx.Status(http.StatusNoContent)
		})
	return g
}
