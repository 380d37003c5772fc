package store

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"tatsoft-analytics/internal/config"
	"tatsoft-analytics/internal/models"
)

const maxReportErrors = 20

// Source supplies the record sets the analytics engine works on. Records are
// returned as loaded; rows with an unusable date or amount are kept with a
// zero date or NaN amount so the engine can count them as skipped.
type Source interface {
	Name() string
	LoadSales(ctx context.Context) ([]models.SaleRecord, LoadReport, error)
	LoadProducts(ctx context.Context) ([]models.ProductStat, error)
	LoadClients(ctx context.Context) ([]models.ClientStat, error)
	Close() error
}

// LoadReport describes what happened to the rows of one sales load.
type LoadReport struct {
	Rows      int      `json:"rows"`
	Rejected  int      `json:"rejected"`
	Malformed int      `json:"malformed"`
	Errors    []string `json:"errors,omitempty"`
}

func (r *LoadReport) reject(line int, err error) {
	r.Rejected++
	r.note(line, err)
}

func (r *LoadReport) flag(line int, err error) {
	r.Malformed++
	r.note(line, err)
}

func (r *LoadReport) note(line int, err error) {
	if len(r.Errors) < maxReportErrors {
		r.Errors = append(r.Errors, fmt.Sprintf("row %d: %v", line, err))
	}
}

// Open builds the source selected by cfg.Driver. Timestamps stored without
// an offset are read as wall-clock times in loc; nil means UTC.
func Open(ctx context.Context, cfg config.SourceConfig, loc *time.Location) (Source, error) {
	switch cfg.Driver {
	case config.DriverCSV:
		src := NewCSVSource(cfg.SalesCSV, cfg.ProductsCSV, cfg.ClientsCSV)
		src.Location = loc
		return src, nil
	case config.DriverPostgres:
		return NewPostgresSource(ctx, cfg.Postgres)
	case config.DriverSQLServer:
		src, err := NewSQLServerSource(ctx, cfg.SQLServer)
		if err != nil {
			return nil, err
		}
		src.loc = loc
		return src, nil
	default:
		return nil, fmt.Errorf("unknown source driver %q", cfg.Driver)
	}
}

// localLayouts carry no offset and are interpreted in the analytics location.
var localLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parseDate(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("missing confirmation date")
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparsable confirmation date %q", s)
}

// wallClock re-reads a driver-supplied UTC time as the same wall clock in
// loc. Times that already carry an offset are returned unchanged.
func wallClock(t time.Time, loc *time.Location) time.Time {
	if loc == nil || t.IsZero() || t.Location() != time.UTC {
		return t
	}
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), loc)
}

// invalidAmount marks a sale whose amount could not be read.
var invalidAmount = math.NaN()

// newSale assembles a record from already-scanned database columns. A NULL
// date or amount keeps the row but returns the reason it is malformed.
func newSale(id string, date time.Time, dateOK bool, collaboratorID, collaboratorName string, amount float64, amountOK bool, zone string) (models.SaleRecord, error) {
	rec := models.SaleRecord{
		ID:               id,
		CollaboratorID:   models.CollaboratorID(collaboratorID),
		CollaboratorName: collaboratorName,
		ZoneName:         models.ZoneName(zone),
		TotalAmount:      amount,
	}

	var flagged error
	if dateOK {
		rec.ConfirmationDate = date
	} else {
		flagged = fmt.Errorf("missing confirmation date")
	}
	if !amountOK {
		rec.TotalAmount = invalidAmount
		if flagged == nil {
			flagged = fmt.Errorf("missing total amount")
		}
	}
	return rec, flagged
}
