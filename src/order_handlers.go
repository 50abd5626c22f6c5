package main

import (
	"net/http"
	"revendiste/src/common"
	"revendiste/src/db"
	"revendiste/src/types"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func orderHandlers(g *gin.RouterGroup, orders *common.OrderService, reservations *common.ReservationManager, ttl time.Duration) *gin.RouterGroup {
	g.
		POST("/orders", func(ctx *gin.Context) {
			var body types.CreateOrderRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			userId := ctx.GetUint("id")
			order, err := orders.CreateOrder(userId, body)
			if err != nil {
				ctx.JSON(statusForError(err), gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusCreated, gin.H{"data": order})
		}).
		GET("/orders", func(ctx *gin.Context) {
			userId := ctx.GetUint("id")
			data, err := orders.OrderHistory(userId)
			if err != nil {
				ctx.JSON(statusForError(err), gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": data, "count": len(data)})
		}).
		GET("/orders/:id", func(ctx *gin.Context) {
			var params types.UUIDRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			orderId, _ := uuid.Parse(params.ID)
			userId := ctx.GetUint("id")
			order, err := orders.GetOrder(orderId, userId)
			if err != nil {
				ctx.JSON(statusForError(err), gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": order})
		}).
		PUT("/orders/:id/extend", func(ctx *gin.Context) {
			var params types.UUIDRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			orderId, _ := uuid.Parse(params.ID)
			userId := ctx.GetUint("id")
			if _, err := orders.GetOrder(orderId, userId); err != nil {
				ctx.JSON(statusForError(err), gin.H{"error": err.Error()})
				return
			}
			newUntil := time.Now().UTC().Add(ttl)
			if err := reservations.Extend(db.GetDb(), orderId, newUntil); err != nil {
				ctx.JSON(statusForError(err), gin.H{"error": err.Error()})
				return
			}
			ctx.Status(http.StatusNoContent)
		})
	return g
}

// paymentHandlers is the HTTP variant of the payment-status signal for
// deployments where the gateway integration posts instead of producing
// to kafka. Same contract either way.
func paymentHandlers(g *gin.RouterGroup, orders *common.OrderService) *gin.RouterGroup {
	g.
		POST("/payments/status", func(ctx *gin.Context) {
			var body types.PaymentStatusChangedBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			orderId, _ := uuid.Parse(body.OrderID)
			if err := orders.OnPaymentStatusChanged(orderId, body.Status, types.JSONB{"source": "http"}); err != nil {
				ctx.JSON(statusForError(err), gin.H{"error": err.Error()})
				return
			}
			ctx.Status(http.StatusNoContent)
		})
	return g
}

func statusForError(err error) int {
	switch {
	case types.IsValidation(err):
		return http.StatusBadRequest
	case types.IsNotFound(err):
		return http.StatusNotFound
	case types.IsConflict(err):
		return http.StatusUnprocessableEntity
	case types.IsState(err):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
