package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/garnizeh/probetas/pkg/models"
)

const dayLayout = "2006-01-02"

// Stats returns the dashboard totals and rollups as of now.
func (r *SQLiteRepo) Stats(ctx context.Context, now time.Time) (*models.DashboardStats, error) {
	out := &models.DashboardStats{}

	since := now.AddDate(0, 0, -30).UTC().Format(dayLayout)
	row := r.conn.QueryRow(ctx, `SELECT
		(SELECT COUNT(*) FROM specimens),
		(SELECT COUNT(*) FROM batches),
		(SELECT COUNT(*) FROM users),
		(SELECT COUNT(*) FROM specimens WHERE fecha >= ?)`, since)
	g := &out.General
	if err := row.Scan(&g.TotalSpecimens, &g.TotalBatches, &g.TotalUsers, &g.RecentTests); err != nil {
		return nil, fmt.Errorf("general stats: %w", err)
	}

	rows, err := r.conn.QueryRows(ctx, `SELECT ensayo, COUNT(*), AVG(fuerza_maxima), AVG(modulo_elasticidad)
		FROM specimens WHERE ensayo <> '' GROUP BY ensayo ORDER BY COUNT(*) DESC, ensayo`)
	if err != nil {
		return nil, fmt.Errorf("ensayo stats: %w", err)
	}
	out.Ensayos = []models.EnsayoStat{}
	for rows.Next() {
		var (
			e              models.EnsayoStat
			fuerza, modulo sql.NullFloat64
		)
		if err := rows.Scan(&e.Ensayo, &e.Count, &fuerza, &modulo); err != nil {
			rows.Close()
			return nil, err
		}
		e.AvgFuerzaMaxima, e.AvgModuloElasticidad = floatPtr(fuerza), floatPtr(modulo)
		out.Ensayos = append(out.Ensayos, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = r.conn.QueryRows(ctx, `SELECT tipo_fibra, COUNT(*) FROM specimens WHERE tipo_fibra <> ''
		GROUP BY tipo_fibra ORDER BY COUNT(*) DESC, tipo_fibra LIMIT 10`)
	if err != nil {
		return nil, fmt.Errorf("fibra stats: %w", err)
	}
	out.Fibras = []models.FibraStat{}
	for rows.Next() {
		var f models.FibraStat
		if err := rows.Scan(&f.TipoFibra, &f.Count); err != nil {
			rows.Close()
			return nil, err
		}
		out.Fibras = append(out.Fibras, f)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if out.RecentSpecimens, err = r.querySpecimens(ctx, specimenSelect+` ORDER BY s.created DESC, s.id LIMIT 5`); err != nil {
		return nil, fmt.Errorf("recent specimens: %w", err)
	}
	if out.RecentBatches, err = r.queryBatches(ctx, batchSelect+` ORDER BY b.created DESC, b.id LIMIT 5`); err != nil {
		return nil, fmt.Errorf("recent batches: %w", err)
	}

	return out, nil
}

// Charts returns monthly counts over the last year and per-ensayo ranges.
func (r *SQLiteRepo) Charts(ctx context.Context, now time.Time) (*models.DashboardCharts, error) {
	yearAgo := now.AddDate(-1, 0, 0).UTC()
	out := &models.DashboardCharts{}

	var err error
	out.SpecimensByMonth, err = r.monthCounts(ctx, `SELECT substr(fecha, 1, 7) || '-01' AS month, COUNT(*)
		FROM specimens WHERE fecha >= ? GROUP BY month ORDER BY month`, yearAgo.Format(dayLayout))
	if err != nil {
		return nil, fmt.Errorf("specimens by month: %w", err)
	}

	out.BatchesByMonth, err = r.monthCounts(ctx, `SELECT strftime('%Y-%m-01', created / 1000, 'unixepoch') AS month, COUNT(*)
		FROM batches WHERE created >= ? GROUP BY month ORDER BY month`, yearAgo.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("batches by month: %w", err)
	}

	out.FuerzaByEnsayo, err = r.rangeStats(ctx, "fuerza_maxima")
	if err != nil {
		return nil, fmt.Errorf("fuerza by ensayo: %w", err)
	}

	out.ModuloByEnsayo, err = r.rangeStats(ctx, "modulo_elasticidad")
	if err != nil {
		return nil, fmt.Errorf("modulo by ensayo: %w", err)
	}

	return out, nil
}

// ReportStats summarizes the specimens matching f.
func (r *SQLiteRepo) ReportStats(ctx context.Context, f models.SpecimenFilter) (*models.ReportStats, error) {
	where, args := specimenWhere(f)
	row := r.conn.QueryRow(ctx, `SELECT COUNT(*), COUNT(DISTINCT s.batch_id), COUNT(DISTINCT NULLIF(s.ensayo, '')),
		AVG(s.fuerza_maxima), AVG(s.modulo_elasticidad) FROM specimens s`+where, args...)

	var (
		out            models.ReportStats
		fuerza, modulo sql.NullFloat64
	)
	if err := row.Scan(&out.TotalSpecimens, &out.TotalBatches, &out.UniqueEnsayos, &fuerza, &modulo); err != nil {
		return nil, err
	}
	out.AvgFuerzaMaxima, out.AvgModuloElasticidad = floatPtr(fuerza), floatPtr(modulo)

	return &out, nil
}

func (r *SQLiteRepo) monthCounts(ctx context.Context, query string, args ...any) ([]models.MonthCount, error) {
	rows, err := r.conn.QueryRows(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.MonthCount{}
	for rows.Next() {
		var m models.MonthCount
		if err := rows.Scan(&m.Month, &m.Count); err != nil {
			return nil, err
		}
		out = append(out, m)
	}

	return out, rows.Err()
}

// rangeStats groups a numeric column by ensayo. column is one of the fixed
// measurement columns, never user input.
func (r *SQLiteRepo) rangeStats(ctx context.Context, column string) ([]models.RangeStat, error) {
	rows, err := r.conn.QueryRows(ctx, `SELECT ensayo, AVG(`+column+`), MIN(`+column+`), MAX(`+column+`)
		FROM specimens WHERE `+column+` IS NOT NULL AND ensayo <> ''
		GROUP BY ensayo ORDER BY AVG(`+column+`) DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.RangeStat{}
	for rows.Next() {
		var s models.RangeStat
		if err := rows.Scan(&s.Ensayo, &s.Avg, &s.Min, &s.Max); err != nil {
			return nil, err
		}
		out = append(out, s)
	}

	return out, rows.Err()
}
