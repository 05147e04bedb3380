package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/garnizeh/probetas/pkg/models"
	"github.com/garnizeh/probetas/pkg/repository"
)

const batchSelect = `SELECT b.id, b.name, b.date, b.description, b.created_by, b.created, b.updated,
	(SELECT COUNT(*) FROM specimens s WHERE s.batch_id = b.id) AS specimen_count
	FROM batches b`

func scanBatch(row rowScanner) (*models.Batch, error) {
	var (
		b         models.Batch
		createdBy sql.NullString
	)
	if err := row.Scan(&b.ID, &b.Name, &b.Date, &b.Description, &createdBy, &b.Created, &b.Updated, &b.SpecimenCount); err != nil {
		return nil, err
	}
	b.CreatedBy = createdBy.String

	return &b, nil
}

// CreateBatchWithSpecimens stores the batch first and then its specimens in
// the same transaction. Specimens whose orden is already taken inside the
// batch are dropped and listed in the result.
func (r *SQLiteRepo) CreateBatchWithSpecimens(ctx context.Context, b *models.Batch, specimens []models.Specimen) (repository.InsertResult, error) {
	var res repository.InsertResult
	if b == nil {
		return res, fmt.Errorf("batch is nil")
	}

	b.ID = newID()
	b.Created = now()
	b.Updated = b.Created

	err := r.conn.InTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO batches (id, name, date, description, created_by, created, updated) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			b.ID, b.Name, b.Date, b.Description, nullString(b.CreatedBy), b.Created, b.Updated); err != nil {
			return fmt.Errorf("insert batch: %w", err)
		}

		var err error
		res, err = insertSpecimensTx(ctx, tx, b.ID, specimens)
		return err
	})
	if err != nil {
		return repository.InsertResult{}, err
	}

	b.SpecimenCount = int64(res.Created)
	if len(res.Skipped) > 0 {
		r.logger.Info("duplicate specimens skipped", "batch_id", b.ID, "skipped", res.Skipped)
	}

	return res, nil
}

// ReplaceBatch updates the batch fields. When specimens is non-nil every
// existing specimen of the batch is deleted and the list is inserted with new
// ids; a nil slice leaves the specimens untouched.
func (r *SQLiteRepo) ReplaceBatch(ctx context.Context, b *models.Batch, specimens []models.Specimen) (repository.InsertResult, error) {
	var res repository.InsertResult
	if b == nil {
		return res, fmt.Errorf("batch is nil")
	}

	b.Updated = now()
	err := r.conn.InTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `UPDATE batches SET name = ?, date = ?, description = ?, updated = ? WHERE id = ?`,
			b.Name, b.Date, b.Description, b.Updated, b.ID); err != nil {
			return fmt.Errorf("update batch: %w", err)
		}

		if specimens == nil {
			return nil
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM specimens WHERE batch_id = ?`, b.ID); err != nil {
			return fmt.Errorf("delete batch specimens: %w", err)
		}

		var err error
		res, err = insertSpecimensTx(ctx, tx, b.ID, specimens)
		return err
	})
	if err != nil {
		return repository.InsertResult{}, err
	}

	if len(res.Skipped) > 0 {
		r.logger.Info("duplicate specimens skipped", "batch_id", b.ID, "skipped", res.Skipped)
	}

	return res, nil
}

// DeleteBatch removes the batch's specimens and then the batch itself inside
// one transaction. It returns the number of specimens removed.
func (r *SQLiteRepo) DeleteBatch(ctx context.Context, id string) (int64, error) {
	var removed int64
	err := r.conn.InTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM specimens WHERE batch_id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete specimens: %w", err)
		}
		if removed, err = res.RowsAffected(); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM batches WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete batch: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return removed, nil
}

func (r *SQLiteRepo) GetBatch(ctx context.Context, id string) (*models.Batch, error) {
	b, err := scanBatch(r.conn.QueryRow(ctx, batchSelect+` WHERE b.id = ?`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	return b, nil
}

// ListBatches returns every batch with its specimen count, newest first.
func (r *SQLiteRepo) ListBatches(ctx context.Context) ([]models.Batch, error) {
	return r.queryBatches(ctx, batchSelect+` ORDER BY b.created DESC, b.id`)
}

func (r *SQLiteRepo) queryBatches(ctx context.Context, query string, args ...any) ([]models.Batch, error) {
	rows, err := r.conn.QueryRows(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Batch{}
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}

	return out, rows.Err()
}
