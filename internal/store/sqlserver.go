package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/microsoft/go-mssqldb"

	"tatsoft-analytics/internal/config"
	"tatsoft-analytics/internal/models"
)

type SQLServerSource struct {
	db        *sql.DB
	loc       *time.Location
	closeOnce sync.Once
}

func NewSQLServerSource(ctx context.Context, cfg config.SQLServerConfig) (*SQLServerSource, error) {
	db, err := sql.Open("sqlserver", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("sqlserver: open: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx := ctx
	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlserver: ping: %w", err)
	}

	return &SQLServerSource{db: db}, nil
}

func (s *SQLServerSource) Name() string { return "sqlserver" }

func (s *SQLServerSource) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if s.db != nil {
			err = s.db.Close()
		}
	})
	return err
}

func (s *SQLServerSource) LoadSales(ctx context.Context) ([]models.SaleRecord, LoadReport, error) {
	var report LoadReport

	rows, err := s.db.QueryContext(ctx, mssqlSalesQuery)
	if err != nil {
		return nil, report, fmt.Errorf("sqlserver: query sales: %w", err)
	}
	defer rows.Close()

	records := make([]models.SaleRecord, 0)
	for rows.Next() {
		report.Rows++

		var (
			id, collaboratorID, collaboratorName, zone string
			date                                       sql.NullTime
			amount                                     sql.NullFloat64
		)
		if err := rows.Scan(&id, &date, &collaboratorID, &collaboratorName, &amount, &zone); err != nil {
			report.reject(report.Rows, err)
			continue
		}

		rec, flagged := newSale(id, wallClock(date.Time, s.loc), date.Valid, collaboratorID, collaboratorName, amount.Float64, amount.Valid, zone)
		if flagged != nil {
			report.flag(report.Rows, flagged)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, report, fmt.Errorf("sqlserver: iterate sales: %w", err)
	}
	return records, report, nil
}

func (s *SQLServerSource) LoadProducts(ctx context.Context) ([]models.ProductStat, error) {
	stats, err := s.queryStats(ctx, mssqlProductStatsQuery)
	if err != nil {
		return nil, fmt.Errorf("sqlserver: products: %w", err)
	}
	out := make([]models.ProductStat, len(stats))
	for i, r := range stats {
		out[i] = models.ProductStat(r)
	}
	return out, nil
}

func (s *SQLServerSource) LoadClients(ctx context.Context) ([]models.ClientStat, error) {
	stats, err := s.queryStats(ctx, mssqlClientStatsQuery)
	if err != nil {
		return nil, fmt.Errorf("sqlserver: clients: %w", err)
	}
	out := make([]models.ClientStat, len(stats))
	for i, r := range stats {
		out[i] = models.ClientStat(r)
	}
	return out, nil
}

func (s *SQLServerSource) queryStats(ctx context.Context, query string) ([]statRow, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := make([]statRow, 0)
	for rows.Next() {
		var (
			r   statRow
			qty int64
		)
		if err := rows.Scan(&r.ID, &r.Name, &qty, &r.AmountTotal); err != nil {
			return nil, err
		}
		r.Quantity = int(qty)
		stats = append(stats, r)
	}
	return stats, rows.Err()
}
