package locker

import (
	"context"
	"fmt"
	"time"

	"github.com/nekogravitycat/locker-booking-backend/internal/hub"
	"github.com/nekogravitycat/locker-booking-backend/internal/pkg/clock"
	"github.com/nekogravitycat/locker-booking-backend/internal/slot"
)

// Service answers availability questions. It never writes; reservations
// re-check atomically through ReservationConflict.
type Service interface {
	GetByID(ctx context.Context, id string) (*Locker, error)
	// GetMany resolves every id or fails with ErrNotFound.
	GetMany(ctx context.Context, ids []string) (map[string]*Locker, error)
	AvailableBySlot(ctx context.Context, hubID string, date time.Time, slotID int) ([]*Locker, error)
	AvailableByDay(ctx context.Context, hubID string, date time.Time) ([]*Locker, error)
	// IsAvailable checks one locker. A nil slotID checks the full day.
	IsAvailable(ctx context.Context, lockerID string, date time.Time, slotID *int) (bool, error)
	Live(ctx context.Context, hubID string) ([]*LiveLocker, error)
}

type service struct {
	repo  Repository
	hubs  hub.Service
	slots slot.Service
	clock clock.Clock
}

func NewService(repo Repository, hubs hub.Service, slots slot.Service, clk clock.Clock) Service {
	return &service{
		repo:  repo,
		hubs:  hubs,
		slots: slots,
		clock: clk,
	}
}

func (s *service) GetByID(ctx context.Context, id string) (*Locker, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *service) GetMany(ctx context.Context, ids []string) (map[string]*Locker, error) {
	lockers, err := s.repo.ListByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*Locker, len(lockers))
	for _, l := range lockers {
		byID[l.ID] = l
	}
	for _, id := range ids {
		if _, ok := byID[id]; !ok {
			return nil, ErrNotFound.WithErr(fmt.Errorf("locker %s", id))
		}
	}
	return byID, nil
}

func (s *service) AvailableBySlot(ctx context.Context, hubID string, date time.Time, slotID int) ([]*Locker, error) {
	// 1. Validate hub and slot
	if _, err := s.hubs.GetByID(ctx, hubID); err != nil {
		return nil, err
	}
	cal, err := s.slots.Calendar(ctx)
	if err != nil {
		return nil, err
	}
	if _, ok := cal.Get(slotID); !ok {
		return nil, slot.ErrNotFound
	}

	// 2. Query
	return s.repo.ListAvailable(ctx, hubID, date, &slotID)
}

func (s *service) AvailableByDay(ctx context.Context, hubID string, date time.Time) ([]*Locker, error) {
	if _, err := s.hubs.GetByID(ctx, hubID); err != nil {
		return nil, err
	}
	return s.repo.ListAvailable(ctx, hubID, date, nil)
}

func (s *service) IsAvailable(ctx context.Context, lockerID string, date time.Time, slotID *int) (bool, error) {
	if _, err := s.repo.GetByID(ctx, lockerID); err != nil {
		return false, err
	}
	if slotID != nil {
		cal, err := s.slots.Calendar(ctx)
		if err != nil {
			return false, err
		}
		if _, ok := cal.Get(*slotID); !ok {
			return false, slot.ErrNotFound
		}
	}
	return s.repo.IsAvailable(ctx, lockerID, date, slotID)
}

func (s *service) Live(ctx context.Context, hubID string) ([]*LiveLocker, error) {
	if _, err := s.hubs.GetByID(ctx, hubID); err != nil {
		return nil, err
	}
	return s.repo.ListLive(ctx, hubID, s.clock.Now())
}
