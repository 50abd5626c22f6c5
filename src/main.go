package main

import (
	"log"
	"net/http"
	"os"
	"strconv"

	"revendiste/src/common"
	"revendiste/src/config"
	"revendiste/src/db"
	"revendiste/src/lib"
	"revendiste/src/models"
	"revendiste/src/types"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	_ "github.com/joho/godotenv/autoload"
)

const (
	apiPrefix string = "/api/v1"
)

// identityMiddleware trusts the user id resolved by the upstream
// gateway. The engine does not authenticate.
func identityMiddleware(ctx *gin.Context) {
	header := ctx.GetHeader("X-User-ID")
	if header == "" {
		ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing user identity"})
		return
	}
	uid, err := strconv.ParseUint(header, 10, 64)
	if err != nil {
		ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid user identity"})
		return
	}
	ctx.Set("id", uint(uid))
}

// registerValidations teaches the binding validator the payout-method
// metadata union, so a mismatched or incomplete payload is rejected at
// bind time with the other field errors.
func registerValidations() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterStructValidation(func(sl validator.StructLevel) {
			m := sl.Current().Interface().(types.PayoutMethodMetadata)
			if err := m.Validate(); err != nil {
				sl.ReportError(m.Type, "type", "Type", "payoutmetadata", err.Error())
			}
		}, types.PayoutMethodMetadata{})
	}
}

func migrate() {
	conn := db.GetDb()
	err := conn.AutoMigrate(
		&models.Event{},
		&models.TicketWave{},
		&models.Listing{},
		&models.ListingTicket{},
		&models.Order{},
		&models.OrderItem{},
		&models.OrderTicketReservation{},
		&models.SellerEarning{},
		&models.Payout{},
		&models.PayoutMethod{},
		&models.Payment{},
		&models.PaymentEvent{},
	)
	if err != nil {
		log.Fatalf("Error running migrations: %s\n", err.Error())
	}
}

func setupRouter(cfg config.Engine, orders *common.OrderService, reservations *common.ReservationManager, payouts *common.PayoutService, earnings *common.EarningsService) *gin.Engine {
	r := gin.Default()
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AddAllowHeaders("Authorization", "X-User-ID")
	r.Use(cors.New(corsConfig))

	g := r.Group(apiPrefix)
	g.Use(identityMiddleware)
	orderHandlers(g, orders, reservations, cfg.ReservationTTL)
	paymentHandlers(g, orders)
	payoutHandlers(g, payouts, earnings)
	operatorPayoutHandlers(g.Group("/internal"), payouts, earnings)
	return r
}

func main() {
	cfg := config.EngineFromEnv()
	registerValidations()
	migrate()

	var emitter common.Emitter = &common.KafkaEmitter{ClientID: "revendiste_api"}
	if os.Getenv("KAFKA_BROKER") == "" {
		log.Println("KAFKA_BROKER not set, domain events will be dropped")
		emitter = common.NopEmitter{}
	} else {
		if _, err := lib.KafkaCreateTopics(
			common.TopicTicketSold,
			common.TopicOrderConfirmed,
			common.TopicOrderExpired,
			common.TopicOrderCancelled,
			common.TopicPayoutCompleted,
			common.TopicPayoutFailed,
			common.TopicPaymentLinkRequested,
			common.TopicPaymentStatus,
		); err != nil {
			log.Printf("Error creating kafka topics: %s\n", err.Error())
		}
	}

	reservations := common.NewReservationManager()
	earnings := common.NewEarningsService(cfg)
	orders := common.NewOrderService(cfg, &common.GormCatalog{}, reservations, earnings, emitter)
	payouts := common.NewPayoutService(earnings, emitter)
	reaper := common.NewReaper(orders)

	if _, err := lib.CreateCronJob("reservation_reaper", reaper.Sweep, cfg.ReaperInterval); err != nil {
		log.Fatalf("Error scheduling reaper: %s\n", err.Error())
	}
	if _, err := lib.CreateCronJob("earnings_hold_release", earnings.ReleaseMatured, cfg.HoldReleaseInterval); err != nil {
		log.Fatalf("Error scheduling hold release: %s\n", err.Error())
	}
	sched, err := lib.GetScheduler()
	if err != nil {
		log.Fatalf("Error initializing scheduler: %s\n", err.Error())
	}
	sched.Start()
	defer func() {
		if err := sched.Shutdown(); err != nil {
			log.Printf("Error shutting down scheduler: %s\n", err.Error())
		}
	}()

	if os.Getenv("KAFKA_BROKER") != "" {
		common.StartPaymentStatusConsumer(orders)
	}

	r := setupRouter(cfg, orders, reservations, payouts, earnings)
	addr := os.Getenv("API_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	if err := r.Run(addr); err != nil {
		log.Fatalf("Error starting server: %s\n", err.Error())
	}
}
