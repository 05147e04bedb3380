package repository

import (
	"context"
	"errors"
	"time"

	"github.com/garnizeh/probetas/pkg/models"
)

// ErrDuplicate is returned when a write violates a unique constraint.
var ErrDuplicate = errors.New("duplicate key")

// Repository interfaces for domain entities. These are the public contracts
// consumers should depend on; concrete implementations live under internal/.

type UserRepo interface {
	CreateUser(ctx context.Context, u *models.User) (string, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	UserExists(ctx context.Context, username, email string) (bool, error)
	UpsertUser(ctx context.Context, u *models.User) (string, error)
}

// InsertResult reports the outcome of a best-effort bulk specimen insert.
type InsertResult struct {
	Created int
	Skipped []string
}

type BatchRepo interface {
	// CreateBatchWithSpecimens stores the batch and then its specimens,
	// skipping rows whose orden collides inside the batch.
	CreateBatchWithSpecimens(ctx context.Context, b *models.Batch, specimens []models.Specimen) (InsertResult, error)
	// ReplaceBatch updates the batch fields and, when specimens is non-nil,
	// replaces every specimen of the batch with the given list.
	ReplaceBatch(ctx context.Context, b *models.Batch, specimens []models.Specimen) (InsertResult, error)
	// DeleteBatch removes the batch's specimens and then the batch.
	DeleteBatch(ctx context.Context, id string) (int64, error)
	GetBatch(ctx context.Context, id string) (*models.Batch, error)
	ListBatches(ctx context.Context) ([]models.Batch, error)
}

type SpecimenRepo interface {
	CreateSpecimen(ctx context.Context, s *models.Specimen) (string, error)
	UpdateSpecimen(ctx context.Context, s *models.Specimen) error
	DeleteSpecimen(ctx context.Context, id string) error
	GetSpecimen(ctx context.Context, id string) (*models.Specimen, error)
	ListSpecimensByBatch(ctx context.Context, batchID string) ([]models.Specimen, error)
	OrdenTaken(ctx context.Context, batchID, orden, excludeID string) (bool, error)
	ListSpecimens(ctx context.Context, f models.SpecimenFilter) ([]models.Specimen, int64, error)
}

type ActivityRepo interface {
	Record(ctx context.Context, userID, action, details string) error
	ListActivities(ctx context.Context, userID string, limit, offset int) ([]models.Activity, error)
	CountActivities(ctx context.Context, userID string) (int64, error)
}

type DashboardRepo interface {
	Stats(ctx context.Context, now time.Time) (*models.DashboardStats, error)
	Charts(ctx context.Context, now time.Time) (*models.DashboardCharts, error)
	ReportStats(ctx context.Context, f models.SpecimenFilter) (*models.ReportStats, error)
}

// Repository groups the repositories used by the inventory service.
type Repository struct {
	Batch    BatchRepo
	Specimen SpecimenRepo
}
