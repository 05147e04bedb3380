// Package inventory implements the batch and specimen rules: bulk creation
// that tolerates duplicate ordens, whole-list replacement, cascading delete
// and strict single-specimen writes.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/garnizeh/probetas/pkg/models"
	"github.com/garnizeh/probetas/pkg/repository"
)

// Activity action tags.
const (
	ActionLogin          = "login"
	ActionRegister       = "register"
	ActionCreateBatch    = "create_batch"
	ActionUpdateBatch    = "update_batch"
	ActionDeleteBatch    = "delete_batch"
	ActionCreateSpecimen = "create_specimen"
	ActionUpdateSpecimen = "update_specimen"
	ActionDeleteSpecimen = "delete_specimen"
)

// Listing bounds.
const (
	DefaultLimit = 50
	MaxLimit     = 500
)

// Recorder appends entries to the activity log.
type Recorder interface {
	Record(ctx context.Context, userID, action, details string) error
}

type Service struct {
	batches   repository.BatchRepo
	specimens repository.SpecimenRepo
	audit     Recorder
	logger    *slog.Logger
}

func NewService(repo repository.Repository, audit Recorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Service{batches: repo.Batch, specimens: repo.Specimen, audit: audit, logger: logger}
}

// BatchResult is the outcome of a bulk write. Skipped lists the ordens that
// were dropped because they were already used in the batch.
type BatchResult struct {
	Batch   *models.Batch
	Created int
	Skipped []string
}

// SpecimenPage is one page of a specimen listing.
type SpecimenPage struct {
	Items  []models.Specimen
	Total  int64
	Limit  int
	Offset int
	Pages  int64
}

// Record writes an activity entry without failing the caller.
func (s *Service) Record(ctx context.Context, actorID, action, details string) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, actorID, action, details); err != nil {
		s.logger.Warn("activity not recorded",
			slog.String("action", action),
			slog.String("user_id", actorID),
			slog.Any("err", err),
		)
	}
}

// CreateBatch stores a batch and its specimens. Specimens repeating an orden
// already used in the list are skipped, never rejected.
func (s *Service) CreateBatch(ctx context.Context, actorID string, in BatchInput) (*BatchResult, error) {
	b, err := in.batch()
	if err != nil {
		return nil, err
	}
	specimens, err := in.specimens(b.Date, actorID)
	if err != nil {
		return nil, err
	}
	b.CreatedBy = actorID

	res, err := s.batches.CreateBatchWithSpecimens(ctx, b, specimens)
	if err != nil {
		return nil, fmt.Errorf("create batch: %w", err)
	}

	s.Record(ctx, actorID, ActionCreateBatch, fmt.Sprintf("batch %q created with %d specimens", b.Name, res.Created))
	return newBatchResult(b, res), nil
}

// ReplaceBatch overwrites the batch fields and, when in.Specimens is non-nil,
// replaces every specimen of the batch. Input is fully validated before
// anything is written.
func (s *Service) ReplaceBatch(ctx context.Context, actorID, id string, in BatchInput) (*BatchResult, error) {
	b, err := in.batch()
	if err != nil {
		return nil, err
	}
	specimens, err := in.specimens(b.Date, actorID)
	if err != nil {
		return nil, err
	}

	existing, err := s.batches.GetBatch(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get batch: %w", err)
	}
	if existing == nil {
		return nil, ErrNotFound
	}

	existing.Name, existing.Date, existing.Description = b.Name, b.Date, b.Description
	res, err := s.batches.ReplaceBatch(ctx, existing, specimens)
	if err != nil {
		return nil, fmt.Errorf("replace batch: %w", err)
	}

	if specimens != nil {
		existing.SpecimenCount = int64(res.Created)
	}

	s.Record(ctx, actorID, ActionUpdateBatch, fmt.Sprintf("batch %q updated", existing.Name))
	return newBatchResult(existing, res), nil
}

// DeleteBatch removes the batch and every specimen in it.
func (s *Service) DeleteBatch(ctx context.Context, actorID, id string) error {
	b, err := s.batches.GetBatch(ctx, id)
	if err != nil {
		return fmt.Errorf("get batch: %w", err)
	}
	if b == nil {
		return ErrNotFound
	}

	removed, err := s.batches.DeleteBatch(ctx, id)
	if err != nil {
		return fmt.Errorf("delete batch: %w", err)
	}

	s.Record(ctx, actorID, ActionDeleteBatch, fmt.Sprintf("batch %q deleted with %d specimens", b.Name, removed))
	return nil
}

func (s *Service) GetBatch(ctx context.Context, id string) (*models.BatchDetail, error) {
	b, err := s.batches.GetBatch(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get batch: %w", err)
	}
	if b == nil {
		return nil, ErrNotFound
	}

	specimens, err := s.specimens.ListSpecimensByBatch(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list batch specimens: %w", err)
	}

	return &models.BatchDetail{Batch: *b, Specimens: specimens}, nil
}

func (s *Service) ListBatches(ctx context.Context) ([]models.Batch, error) {
	out, err := s.batches.ListBatches(ctx)
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	return out, nil
}

// CreateSpecimen adds one specimen to an existing batch. A repeated orden is
// rejected with ErrConflict.
func (s *Service) CreateSpecimen(ctx context.Context, actorID string, in SpecimenInput) (*models.Specimen, error) {
	batchID := strings.TrimSpace(in.BatchID)
	if batchID == "" {
		return nil, invalid("batch_id", "is required")
	}
	sp, err := in.specimen("")
	if err != nil {
		return nil, err
	}

	b, err := s.batches.GetBatch(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("get batch: %w", err)
	}
	if b == nil {
		return nil, ErrNotFound
	}

	taken, err := s.specimens.OrdenTaken(ctx, batchID, sp.Orden, "")
	if err != nil {
		return nil, fmt.Errorf("check orden: %w", err)
	}
	if taken {
		return nil, ErrConflict
	}

	sp.BatchID = batchID
	sp.CreatedBy = actorID
	if _, err := s.specimens.CreateSpecimen(ctx, sp); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("create specimen: %w", err)
	}
	sp.BatchName, sp.BatchDescription = b.Name, b.Description

	s.Record(ctx, actorID, ActionCreateSpecimen, fmt.Sprintf("specimen %q created in batch %s", sp.Orden, batchID))
	return sp, nil
}

// UpdateSpecimen applies a partial update. Changing orden to one already used
// in the same batch fails with ErrConflict.
func (s *Service) UpdateSpecimen(ctx context.Context, actorID, id string, patch SpecimenPatch) (*models.Specimen, error) {
	current, err := s.specimens.GetSpecimen(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get specimen: %w", err)
	}
	if current == nil {
		return nil, ErrNotFound
	}

	previousOrden := current.Orden
	if err := patch.apply(current); err != nil {
		return nil, err
	}

	if current.Orden != previousOrden {
		taken, err := s.specimens.OrdenTaken(ctx, current.BatchID, current.Orden, current.ID)
		if err != nil {
			return nil, fmt.Errorf("check orden: %w", err)
		}
		if taken {
			return nil, ErrConflict
		}
	}

	if err := s.specimens.UpdateSpecimen(ctx, current); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("update specimen: %w", err)
	}

	s.Record(ctx, actorID, ActionUpdateSpecimen, fmt.Sprintf("specimen %q updated", current.Orden))
	return current, nil
}

func (s *Service) DeleteSpecimen(ctx context.Context, actorID, id string) error {
	sp, err := s.specimens.GetSpecimen(ctx, id)
	if err != nil {
		return fmt.Errorf("get specimen: %w", err)
	}
	if sp == nil {
		return ErrNotFound
	}

	if err := s.specimens.DeleteSpecimen(ctx, id); err != nil {
		return fmt.Errorf("delete specimen: %w", err)
	}

	s.Record(ctx, actorID, ActionDeleteSpecimen, fmt.Sprintf("specimen %q deleted", sp.Orden))
	return nil
}

func (s *Service) GetSpecimen(ctx context.Context, id string) (*models.Specimen, error) {
	sp, err := s.specimens.GetSpecimen(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get specimen: %w", err)
	}
	if sp == nil {
		return nil, ErrNotFound
	}
	return sp, nil
}

// ListSpecimens returns one page of specimens. Out-of-range limits and
// offsets are coerced, not rejected.
func (s *Service) ListSpecimens(ctx context.Context, f models.SpecimenFilter) (*SpecimenPage, error) {
	switch {
	case f.Limit <= 0:
		f.Limit = DefaultLimit
	case f.Limit > MaxLimit:
		f.Limit = MaxLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	items, total, err := s.specimens.ListSpecimens(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list specimens: %w", err)
	}

	return &SpecimenPage{
		Items:  items,
		Total:  total,
		Limit:  f.Limit,
		Offset: f.Offset,
		Pages:  (total + int64(f.Limit) - 1) / int64(f.Limit),
	}, nil
}

// ExportSpecimens returns every specimen matching f, ignoring paging.
func (s *Service) ExportSpecimens(ctx context.Context, f models.SpecimenFilter) ([]models.Specimen, error) {
	f.Limit, f.Offset = 0, 0
	items, _, err := s.specimens.ListSpecimens(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("export specimens: %w", err)
	}
	return items, nil
}

func newBatchResult(b *models.Batch, res repository.InsertResult) *BatchResult {
	skipped := res.Skipped
	if skipped == nil {
		skipped = []string{}
	}
	return &BatchResult{Batch: b, Created: res.Created, Skipped: skipped}
}
