package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nekogravitycat/locker-booking-backend/internal/auth"
	"github.com/nekogravitycat/locker-booking-backend/internal/booking"
	bookingHttp "github.com/nekogravitycat/locker-booking-backend/internal/booking/http"
	"github.com/nekogravitycat/locker-booking-backend/internal/hub"
	hubHttp "github.com/nekogravitycat/locker-booking-backend/internal/hub/http"
	"github.com/nekogravitycat/locker-booking-backend/internal/locker"
	lockerHttp "github.com/nekogravitycat/locker-booking-backend/internal/locker/http"
	"github.com/nekogravitycat/locker-booking-backend/internal/payment"
	paymentHttp "github.com/nekogravitycat/locker-booking-backend/internal/payment/http"
	"github.com/nekogravitycat/locker-booking-backend/internal/pkg/clock"
	"github.com/nekogravitycat/locker-booking-backend/internal/session"
	sessionHttp "github.com/nekogravitycat/locker-booking-backend/internal/session/http"
	"github.com/nekogravitycat/locker-booking-backend/internal/slot"
	slotHttp "github.com/nekogravitycat/locker-booking-backend/internal/slot/http"
)

// Config holds everything the router needs.
type Config struct {
	IsProduction   bool
	ProdOrigins    string
	WebhookSecret  string
	RateLimitRPS   float64
	RateLimitBurst int
	Clock          clock.Clock
	Location       *time.Location
	JWTManager     *auth.JWTManager

	HubService     hub.Service
	LockerService  locker.Service
	SlotService    slot.Service
	BookingService booking.Service
	SessionService session.Service
	PaymentService payment.Service
}

// NewRouter assembles middleware and registers every module under /v1.
func NewRouter(cfg Config) *gin.Engine {
	if cfg.IsProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(RequestLogger(), Metrics(), gin.Recovery())

	// CORS
	config := cors.DefaultConfig()
	if cfg.IsProduction && cfg.ProdOrigins != "" {
		config.AllowOrigins = strings.Split(cfg.ProdOrigins, ",")
	} else {
		config.AllowAllOrigins = true
	}
	config.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	config.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Webhook-Secret"}
	r.Use(cors.New(config))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authMiddleware := auth.AuthRequired(cfg.JWTManager)
	webhook := auth.WebhookSecret(cfg.WebhookSecret)
	writeLimit := RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst)

	hubHandler := hubHttp.NewHandler(cfg.HubService)
	lockerHandler := lockerHttp.NewHandler(cfg.LockerService)
	slotHandler := slotHttp.NewHandler(cfg.SlotService)
	bookingHandler := bookingHttp.NewHandler(cfg.BookingService, cfg.LockerService, cfg.Clock, cfg.Location)
	sessionHandler := sessionHttp.NewHandler(cfg.SessionService)
	paymentHandler := paymentHttp.NewHandler(cfg.PaymentService)

	v1 := r.Group("/v1")
	{
		hubHttp.RegisterRoutes(v1, hubHandler)
		lockerHttp.RegisterRoutes(v1, lockerHandler)
		slotHttp.RegisterRoutes(v1, slotHandler)
		bookingHttp.RegisterRoutes(v1, bookingHandler, authMiddleware, writeLimit)
		sessionHttp.RegisterRoutes(v1, sessionHandler, authMiddleware, webhook, writeLimit)
		paymentHttp.RegisterRoutes(v1, paymentHandler, webhook)
	}

	return r
}
