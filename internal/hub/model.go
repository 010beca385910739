package hub

import (
	"net/http"
	"time"

	"github.com/nekogravitycat/locker-booking-backend/internal/pkg/apperror"
)

var (
	ErrNotFound = apperror.New(http.StatusNotFound, "hub not found")
)

// Hub is a physical site that contains lockers.
type Hub struct {
	ID        string
	Name      string
	City      string
	Address   string
	Latitude  *float64
	Longitude *float64
	CreatedAt time.Time
}

// Filter defines parameters for listing hubs.
type Filter struct {
	City     string
	Keyword  string // Search in name or address
	Page     int
	PageSize int
}
