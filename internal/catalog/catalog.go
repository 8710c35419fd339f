package catalog

import (
	"context"
	"errors"
)

// ErrNotFound is returned for identifiers the directory does not know.
var ErrNotFound = errors.New("catalog: not found")

// ServiceCategory groups the bookable sub-services of one trade.
type ServiceCategory struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	SubServices []SubService `json:"sub_services"`
}

type SubService struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	BasePrice int64  `json:"base_price"` // minor currency units
}

// Worker is one candidate listing for a sub-service. Immutable per fetch;
// availability is re-checked at confirmation time via IsWorkerAvailable.
type Worker struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Rating       float64 `json:"rating"`
	Price        int64   `json:"price"`
	DistanceKm   float64 `json:"distance_km"`
	Verified     bool    `json:"verified"`
	ResponseTime string  `json:"response_time"`
	JobsDone     int     `json:"jobs_done"`
}

// Directory is the read-only catalog the orchestrator resolves selections against.
type Directory interface {
	ListCategories(ctx context.Context) ([]ServiceCategory, error)
	GetCategory(ctx context.Context, categoryID string) (*ServiceCategory, error)
	ListSubServices(ctx context.Context, categoryID string) ([]SubService, error)
	ListWorkers(ctx context.Context, subServiceID string) ([]Worker, error)
	IsWorkerAvailable(ctx context.Context, workerID string) (bool, error)
}
