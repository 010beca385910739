package slot

import (
	"context"
	"sync"
	"time"

	"github.com/nekogravitycat/locker-booking-backend/internal/logger"
	"github.com/sirupsen/logrus"
)

// CalendarConfig describes how the daily calendar is generated.
type CalendarConfig struct {
	FirstStart time.Duration
	Length     time.Duration
	Gap        time.Duration
	Max        int
}

type Service interface {
	// Seed writes the generated calendar, leaving existing rows untouched.
	Seed(ctx context.Context) error
	// Calendar returns the stored calendar, loading it on first use.
	Calendar(ctx context.Context) (*Calendar, error)
}

type service struct {
	repo Repository
	cfg  CalendarConfig

	mu  sync.RWMutex
	cal *Calendar
}

func NewService(repo Repository, cfg CalendarConfig) Service {
	return &service{repo: repo, cfg: cfg}
}

func (s *service) Seed(ctx context.Context) error {
	slots := Generate(s.cfg.FirstStart, s.cfg.Length, s.cfg.Gap, s.cfg.Max)
	inserted, err := s.repo.Seed(ctx, slots)
	if err != nil {
		return err
	}
	logger.Log.WithFields(logrus.Fields{
		"generated": len(slots),
		"inserted":  inserted,
	}).Info("slot calendar seeded")

	s.mu.Lock()
	s.cal = nil
	s.mu.Unlock()
	return nil
}

func (s *service) Calendar(ctx context.Context) (*Calendar, error) {
	s.mu.RLock()
	cal := s.cal
	s.mu.RUnlock()
	if cal != nil {
		return cal, nil
	}

	slots, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(slots) == 0 {
		return nil, ErrEmptyCalendar
	}

	cal = NewCalendar(slots)
	s.mu.Lock()
	s.cal = cal
	s.mu.Unlock()
	return cal, nil
}
