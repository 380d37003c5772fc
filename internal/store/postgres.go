package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"tatsoft-analytics/internal/config"
	"tatsoft-analytics/internal/models"
)

type PostgresSource struct {
	pool      *pgxpool.Pool
	closeOnce sync.Once
}

func NewPostgresSource(ctx context.Context, cfg config.PostgresConfig) (*PostgresSource, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("postgres: invalid configuration: %w", err)
	}

	poolConfig.MinConns = cfg.MinConns
	poolConfig.MaxConns = cfg.MaxConns
	poolConfig.HealthCheckPeriod = cfg.HealthCheckPeriod
	poolConfig.ConnConfig.ConnectTimeout = cfg.ConnectTimeout

	connectCtx := ctx
	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		connectCtx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}

	pool, err := pgxpool.NewWithConfig(connectCtx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("postgres: create pool: %w", err)
	}

	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	return &PostgresSource{pool: pool}, nil
}

func (s *PostgresSource) Name() string { return "postgres" }

func (s *PostgresSource) Close() error {
	s.closeOnce.Do(func() {
		if s.pool != nil {
			s.pool.Close()
		}
	})
	return nil
}

func (s *PostgresSource) LoadSales(ctx context.Context) ([]models.SaleRecord, LoadReport, error) {
	var report LoadReport

	rows, err := s.pool.Query(ctx, pgSalesQuery)
	if err != nil {
		return nil, report, fmt.Errorf("postgres: query sales: %w", err)
	}
	defer rows.Close()

	records := make([]models.SaleRecord, 0)
	for rows.Next() {
		report.Rows++

		var (
			id, collaboratorID, collaboratorName, zone string
			date                                       pgtype.Timestamptz
			amount                                     pgtype.Float8
		)
		if err := rows.Scan(&id, &date, &collaboratorID, &collaboratorName, &amount, &zone); err != nil {
			report.reject(report.Rows, err)
			continue
		}

		rec, flagged := newSale(id, date.Time, date.Valid, collaboratorID, collaboratorName, amount.Float64, amount.Valid, zone)
		if flagged != nil {
			report.flag(report.Rows, flagged)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, report, fmt.Errorf("postgres: iterate sales: %w", err)
	}
	return records, report, nil
}

func (s *PostgresSource) LoadProducts(ctx context.Context) ([]models.ProductStat, error) {
	rows, err := s.pool.Query(ctx, pgProductStatsQuery)
	if err != nil {
		return nil, fmt.Errorf("postgres: query products: %w", err)
	}
	stats, err := collectStats(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: products: %w", err)
	}

	out := make([]models.ProductStat, len(stats))
	for i, r := range stats {
		out[i] = models.ProductStat(r)
	}
	return out, nil
}

func (s *PostgresSource) LoadClients(ctx context.Context) ([]models.ClientStat, error) {
	rows, err := s.pool.Query(ctx, pgClientStatsQuery)
	if err != nil {
		return nil, fmt.Errorf("postgres: query clients: %w", err)
	}
	stats, err := collectStats(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: clients: %w", err)
	}

	out := make([]models.ClientStat, len(stats))
	for i, r := range stats {
		out[i] = models.ClientStat(r)
	}
	return out, nil
}

func collectStats(rows pgx.Rows) ([]statRow, error) {
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (statRow, error) {
		var (
			r   statRow
			qty int64
		)
		if err := row.Scan(&r.ID, &r.Name, &qty, &r.AmountTotal); err != nil {
			return statRow{}, err
		}
		r.Quantity = int(qty)
		return r, nil
	})
}
