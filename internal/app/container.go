package app

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nekogravitycat/locker-booking-backend/internal/api"
	"github.com/nekogravitycat/locker-booking-backend/internal/auth"
	"github.com/nekogravitycat/locker-booking-backend/internal/booking"
	"github.com/nekogravitycat/locker-booking-backend/internal/hub"
	"github.com/nekogravitycat/locker-booking-backend/internal/lock"
	"github.com/nekogravitycat/locker-booking-backend/internal/locker"
	"github.com/nekogravitycat/locker-booking-backend/internal/logger"
	"github.com/nekogravitycat/locker-booking-backend/internal/notify"
	"github.com/nekogravitycat/locker-booking-backend/internal/payment"
	"github.com/nekogravitycat/locker-booking-backend/internal/pkg/clock"
	"github.com/nekogravitycat/locker-booking-backend/internal/session"
	"github.com/nekogravitycat/locker-booking-backend/internal/slot"
	"github.com/nekogravitycat/locker-booking-backend/internal/sweeper"
)

// Config holds the dependencies and settings required to start the application.
type Config struct {
	IsProduction   bool
	ProdOrigins    string
	DBPool         *pgxpool.Pool
	JWTSecret      string
	JWTTTL         time.Duration
	WebhookSecret  string
	RateLimitRPS   float64
	RateLimitBurst int

	Location       *time.Location
	Calendar       slot.CalendarConfig
	SessionGrace   time.Duration
	PaymentTimeout time.Duration
	SweepInterval  time.Duration

	// Optional. Nil values fall back to the wall clock, a lease that is
	// always granted and log-only notifications.
	Clock    clock.Clock
	Locker   lock.Locker
	Notifier notify.Notifier
}

// Container holds the initialized components that are needed externally.
type Container struct {
	Router         *gin.Engine
	JWTManager     *auth.JWTManager
	SlotService    slot.Service
	PaymentService payment.Service
	Sweeper        *sweeper.Sweeper
}

// NewContainer initializes all modules and returns the container.
func NewContainer(cfg Config) *Container {
	clk := cfg.Clock
	if clk == nil {
		clk = clock.System{}
	}
	leases := cfg.Locker
	if leases == nil {
		leases = lock.NewNoopLocker()
	}
	notifier := cfg.Notifier
	if notifier == nil {
		notifier = notify.NewLogNotifier(logger.Log)
	}

	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTTTL)

	// Slot Module
	slotRepo := slot.NewPgxRepository(cfg.DBPool)
	slotService := slot.NewService(slotRepo, cfg.Calendar)

	// Hub Module
	hubRepo := hub.NewPgxRepository(cfg.DBPool)
	hubService := hub.NewService(hubRepo)

	// Locker Module
	lockerRepo := locker.NewPgxRepository(cfg.DBPool)
	lockerService := locker.NewService(lockerRepo, hubService, slotService, clk)

	// Booking Module
	bookingRepo := booking.NewPgxRepository(cfg.DBPool)
	bookingService := booking.NewService(bookingRepo, hubService, lockerService, slotService, notifier, clk, booking.Options{
		Location: cfg.Location,
		Grace:    cfg.SessionGrace,
	})

	// Session Module
	sessionRepo := session.NewPgxRepository(cfg.DBPool)
	sessionService := session.NewService(sessionRepo, lockerService, slotService, notifier, clk, session.Options{
		Location: cfg.Location,
		Grace:    cfg.SessionGrace,
	})

	// Payment Module
	paymentRepo := payment.NewPgxRepository(cfg.DBPool)
	paymentService := payment.NewService(paymentRepo, slotService, notifier, clk, payment.Options{
		Location: cfg.Location,
		Grace:    cfg.SessionGrace,
	})

	// Sweeper
	sweeperRepo := sweeper.NewPgxRepository(cfg.DBPool)
	sw := sweeper.New(sweeperRepo, clk, leases, notifier, sweeper.Options{
		Interval:       cfg.SweepInterval,
		PaymentTimeout: cfg.PaymentTimeout,
		Location:       cfg.Location,
	})

	// Router
	router := api.NewRouter(api.Config{
		IsProduction:   cfg.IsProduction,
		ProdOrigins:    cfg.ProdOrigins,
		WebhookSecret:  cfg.WebhookSecret,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
		Clock:          clk,
		Location:       cfg.Location,
		JWTManager:     jwtManager,
		HubService:     hubService,
		LockerService:  lockerService,
		SlotService:    slotService,
		BookingService: bookingService,
		SessionService: sessionService,
		PaymentService: paymentService,
	})

	return &Container{
		Router:         router,
		JWTManager:     jwtManager,
		SlotService:    slotService,
		PaymentService: paymentService,
		Sweeper:        sw,
	}
}
