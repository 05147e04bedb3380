package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/garnizeh/probetas/pkg/models"
	"github.com/garnizeh/probetas/pkg/repository"
)

const specimenSelect = `SELECT s.id, s.batch_id, s.orden, s.fecha, s.orientacion, s.descripcion, s.ensayo, s.tipo_fibra,
	s.fuerza_maxima, s.modulo_elasticidad, s.tipo_resina, s.curado_temp_hum, s.created_by, s.created, s.updated,
	b.name, b.description
	FROM specimens s JOIN batches b ON b.id = s.batch_id`

const specimenInsert = `INSERT INTO specimens (id, batch_id, orden, fecha, orientacion, descripcion, ensayo, tipo_fibra,
	fuerza_maxima, modulo_elasticidad, tipo_resina, curado_temp_hum, created_by, created, updated)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// sortColumns whitelists the columns a listing may be ordered by.
var sortColumns = map[string]string{
	"fecha":              "s.fecha",
	"orden":              "s.orden",
	"ensayo":             "s.ensayo",
	"fuerza_maxima":      "s.fuerza_maxima",
	"modulo_elasticidad": "s.modulo_elasticidad",
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSpecimen(row rowScanner) (*models.Specimen, error) {
	var (
		s         models.Specimen
		fuerza    sql.NullFloat64
		modulo    sql.NullFloat64
		createdBy sql.NullString
	)
	if err := row.Scan(&s.ID, &s.BatchID, &s.Orden, &s.Fecha, &s.Orientacion, &s.Descripcion, &s.Ensayo, &s.TipoFibra,
		&fuerza, &modulo, &s.TipoResina, &s.CuradoTempHum, &createdBy, &s.Created, &s.Updated,
		&s.BatchName, &s.BatchDescription); err != nil {
		return nil, err
	}
	s.FuerzaMaxima = floatPtr(fuerza)
	s.ModuloElasticidad = floatPtr(modulo)
	s.CreatedBy = createdBy.String

	return &s, nil
}

func specimenArgs(s *models.Specimen) []any {
	return []any{s.ID, s.BatchID, s.Orden, s.Fecha, s.Orientacion, s.Descripcion, s.Ensayo, s.TipoFibra,
		s.FuerzaMaxima, s.ModuloElasticidad, s.TipoResina, s.CuradoTempHum, nullString(s.CreatedBy), s.Created, s.Updated}
}

// CreateSpecimen inserts a single specimen. A (batch, orden) collision is
// reported as repository.ErrDuplicate.
func (r *SQLiteRepo) CreateSpecimen(ctx context.Context, s *models.Specimen) (string, error) {
	if s == nil {
		return "", fmt.Errorf("specimen is nil")
	}

	s.ID = newID()
	s.Created = now()
	s.Updated = s.Created
	if _, err := r.conn.Exec(ctx, specimenInsert, specimenArgs(s)...); err != nil {
		if isUniqueViolation(err) {
			return "", fmt.Errorf("create specimen %q: %w", s.Orden, repository.ErrDuplicate)
		}
		return "", err
	}

	return s.ID, nil
}

// insertSpecimensTx inserts specimens for one batch inside tx, skipping rows
// whose orden is already used in the batch. Each row gets a new id.
func insertSpecimensTx(ctx context.Context, tx *sql.Tx, batchID string, specimens []models.Specimen) (repository.InsertResult, error) {
	var res repository.InsertResult
	if len(specimens) == 0 {
		return res, nil
	}

	stmt, err := tx.PrepareContext(ctx, specimenInsert+` ON CONFLICT(batch_id, orden) DO NOTHING`)
	if err != nil {
		return res, fmt.Errorf("prepare specimen insert: %w", err)
	}
	defer stmt.Close()

	ts := now()
	for i := range specimens {
		s := specimens[i]
		s.ID = newID()
		s.BatchID = batchID
		s.Created, s.Updated = ts, ts

		out, err := stmt.ExecContext(ctx, specimenArgs(&s)...)
		if err != nil {
			return res, fmt.Errorf("insert specimen %q: %w", s.Orden, err)
		}
		n, err := out.RowsAffected()
		if err != nil {
			return res, err
		}
		if n == 0 {
			res.Skipped = append(res.Skipped, s.Orden)
			continue
		}
		res.Created++
	}

	return res, nil
}

func (r *SQLiteRepo) GetSpecimen(ctx context.Context, id string) (*models.Specimen, error) {
	s, err := scanSpecimen(r.conn.QueryRow(ctx, specimenSelect+` WHERE s.id = ?`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	return s, nil
}

// UpdateSpecimen writes every mutable column of s. The batch reference is
// never changed.
func (r *SQLiteRepo) UpdateSpecimen(ctx context.Context, s *models.Specimen) error {
	if s == nil {
		return fmt.Errorf("specimen is nil")
	}

	s.Updated = now()
	_, err := r.conn.Exec(ctx, `UPDATE specimens SET orden = ?, fecha = ?, orientacion = ?, descripcion = ?, ensayo = ?,
		tipo_fibra = ?, fuerza_maxima = ?, modulo_elasticidad = ?, tipo_resina = ?, curado_temp_hum = ?, updated = ?
		WHERE id = ?`,
		s.Orden, s.Fecha, s.Orientacion, s.Descripcion, s.Ensayo, s.TipoFibra, s.FuerzaMaxima, s.ModuloElasticidad,
		s.TipoResina, s.CuradoTempHum, s.Updated, s.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("update specimen %q: %w", s.Orden, repository.ErrDuplicate)
		}
		return err
	}

	return nil
}

func (r *SQLiteRepo) DeleteSpecimen(ctx context.Context, id string) error {
	_, err := r.conn.Exec(ctx, `DELETE FROM specimens WHERE id = ?`, id)
	return err
}

// OrdenTaken reports whether another specimen of the batch already uses orden.
func (r *SQLiteRepo) OrdenTaken(ctx context.Context, batchID, orden, excludeID string) (bool, error) {
	var n int
	row := r.conn.QueryRow(ctx, `SELECT COUNT(1) FROM specimens WHERE batch_id = ? AND orden = ? AND id <> ?`, batchID, orden, excludeID)
	if err := row.Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListSpecimensByBatch returns the specimens of a batch ordered by orden.
func (r *SQLiteRepo) ListSpecimensByBatch(ctx context.Context, batchID string) ([]models.Specimen, error) {
	return r.querySpecimens(ctx, specimenSelect+` WHERE s.batch_id = ? ORDER BY s.orden ASC`, batchID)
}

// ListSpecimens returns one page of specimens matching f and the total number
// of matches. A non-positive Limit returns every match.
func (r *SQLiteRepo) ListSpecimens(ctx context.Context, f models.SpecimenFilter) ([]models.Specimen, int64, error) {
	where, args := specimenWhere(f)

	var total int64
	countQuery := `SELECT COUNT(*) FROM specimens s` + where
	if err := r.conn.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count specimens: %w", err)
	}

	col, ok := sortColumns[f.SortBy]
	if !ok {
		col = sortColumns["fecha"]
	}
	dir := "ASC"
	if f.SortDesc {
		dir = "DESC"
	}

	limit := f.Limit
	if limit <= 0 {
		limit = -1
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	query := specimenSelect + where + ` ORDER BY ` + col + ` ` + dir + `, s.batch_id, s.orden LIMIT ? OFFSET ?`
	out, err := r.querySpecimens(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}

	return out, total, nil
}

func (r *SQLiteRepo) querySpecimens(ctx context.Context, query string, args ...any) ([]models.Specimen, error) {
	rows, err := r.conn.QueryRows(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Specimen{}
	for rows.Next() {
		s, err := scanSpecimen(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}

	return out, rows.Err()
}

// specimenWhere builds the WHERE clause for a filter over the alias s.
func specimenWhere(f models.SpecimenFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.BatchID != "" {
		conds = append(conds, `s.batch_id = ?`)
		args = append(args, f.BatchID)
	}
	if f.Ensayo != "" {
		conds = append(conds, `s.ensayo LIKE ? ESCAPE '\'`)
		args = append(args, likePattern(f.Ensayo))
	}
	if f.TipoFibra != "" {
		conds = append(conds, `s.tipo_fibra LIKE ? ESCAPE '\'`)
		args = append(args, likePattern(f.TipoFibra))
	}
	if f.Search != "" {
		p := likePattern(f.Search)
		conds = append(conds, `(s.orden LIKE ? ESCAPE '\' OR s.descripcion LIKE ? ESCAPE '\' OR s.ensayo LIKE ? ESCAPE '\' OR s.tipo_fibra LIKE ? ESCAPE '\' OR s.tipo_resina LIKE ? ESCAPE '\')`)
		args = append(args, p, p, p, p, p)
	}
	if f.StartDate != "" {
		conds = append(conds, `s.fecha >= ?`)
		args = append(args, f.StartDate)
	}
	if f.EndDate != "" {
		conds = append(conds, `s.fecha <= ?`)
		args = append(args, f.EndDate)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return ` WHERE ` + strings.Join(conds, ` AND `), args
}

// likePattern turns free text into a case-insensitive substring pattern.
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}
