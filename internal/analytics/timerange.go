package analytics

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/samber/lo"

	"tatsoft-analytics/internal/models"
)

var ErrInvalidFilter = errors.New("invalid filter parameters")

const (
	minYear = 1
	maxYear = 9999
)

func AllTime() models.Period {
	return models.Period{Mode: models.PeriodAll}
}

func ForYear(year int) models.Period {
	return models.Period{Mode: models.PeriodYear, Year: year}
}

// ForMonth selects one calendar month; month is 0-indexed.
func ForMonth(month, year int) models.Period {
	return models.Period{Mode: models.PeriodMonth, Month: month, Year: year}
}

// ParseMode accepts "all", "month" or "year" in any case. An empty string
// means all-time.
func ParseMode(s string) (models.PeriodMode, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", string(models.PeriodAll):
		return models.PeriodAll, nil
	case string(models.PeriodMonth):
		return models.PeriodMonth, nil
	case string(models.PeriodYear):
		return models.PeriodYear, nil
	default:
		return "", fmt.Errorf("%w: unknown period %q", ErrInvalidFilter, s)
	}
}

func ValidatePeriod(p models.Period) error {
	switch p.Mode {
	case models.PeriodAll:
		return nil
	case models.PeriodYear:
		return validateYear(p.Year)
	case models.PeriodMonth:
		if p.Month < 0 || p.Month > 11 {
			return fmt.Errorf("%w: month %d outside 0-11", ErrInvalidFilter, p.Month)
		}
		return validateYear(p.Year)
	default:
		return fmt.Errorf("%w: unknown period mode %q", ErrInvalidFilter, p.Mode)
	}
}

func validateYear(year int) error {
	if year < minYear || year > maxYear {
		return fmt.Errorf("%w: year %d outside %d-%d", ErrInvalidFilter, year, minYear, maxYear)
	}
	return nil
}

// Filter returns the records that fall inside p, plus the number of malformed
// records that were dropped. The input slice is never modified.
func Filter(records []models.SaleRecord, p models.Period, opts ...Option) ([]models.SaleRecord, int, error) {
	if err := ValidatePeriod(p); err != nil {
		return nil, 0, err
	}

	cfg := applyOptions(opts)
	skipped := 0
	kept := lo.Filter(records, func(r models.SaleRecord, _ int) bool {
		if Malformed(r) {
			skipped++
			return false
		}
		return inPeriod(cfg.local(r.ConfirmationDate), p)
	})

	return kept, skipped, nil
}

// Malformed reports whether a record cannot take part in any aggregation:
// it has no confirmation date, or its amount is not a finite non-negative number.
func Malformed(r models.SaleRecord) bool {
	if r.ConfirmationDate.IsZero() {
		return true
	}
	return math.IsNaN(r.TotalAmount) || math.IsInf(r.TotalAmount, 0) || r.TotalAmount < 0
}

func inPeriod(t time.Time, p models.Period) bool {
	switch p.Mode {
	case models.PeriodYear:
		return t.Year() == p.Year
	case models.PeriodMonth:
		return t.Year() == p.Year && int(t.Month())-1 == p.Month
	default:
		return true
	}
}
