package handlers

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/starfederation/datastar-go/datastar"

	"tatsoft-analytics/internal/analytics"
	"tatsoft-analytics/internal/config"
	"tatsoft-analytics/internal/errors"
	"tatsoft-analytics/internal/models"
)

// paramFunc looks up a named request parameter; "" means absent.
type paramFunc func(name string) string

// parsePeriod reads period, month and year. Month and year default to the
// current calendar month when the mode needs them and they are absent.
func parsePeriod(get paramFunc, now time.Time) (models.Period, error) {
	mode, err := analytics.ParseMode(get("period"))
	if err != nil {
		return models.Period{}, errors.ValidationWrap(err, "Invalid period")
	}

	p := models.Period{Mode: mode}
	if mode == models.PeriodAll {
		return p, nil
	}

	if p.Year, err = intParam(get, "year", now.Year()); err != nil {
		return models.Period{}, err
	}
	if mode == models.PeriodMonth {
		if p.Month, err = intParam(get, "month", int(now.Month())-1); err != nil {
			return models.Period{}, err
		}
	}

	if err := analytics.ValidatePeriod(p); err != nil {
		return models.Period{}, errors.ValidationWrap(err, "Invalid period")
	}
	return p, nil
}

type rankingParams struct {
	n      int
	metric analytics.Metric
	dir    analytics.Direction
}

// parseRanking reads n, order and metric. n is capped at the configured
// maximum; n <= 0 is passed through and yields an empty ranking.
func parseRanking(get paramFunc, limits config.AnalyticsConfig, fallback analytics.Metric) (rankingParams, error) {
	n, err := intParam(get, "n", limits.DefaultTopN)
	if err != nil {
		return rankingParams{}, err
	}
	n = min(n, limits.MaxTopN)

	dir, err := analytics.ParseDirection(get("order"))
	if err != nil {
		return rankingParams{}, errors.ValidationWrap(err, "Invalid ranking order")
	}
	metric, err := analytics.ParseMetric(get("metric"), fallback)
	if err != nil {
		return rankingParams{}, errors.ValidationWrap(err, "Invalid ranking metric")
	}

	return rankingParams{n: n, metric: metric, dir: dir}, nil
}

func intParam(get paramFunc, name string, fallback int) (int, error) {
	raw := strings.TrimSpace(get(name))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.BadRequestWrap(err, fmt.Sprintf("Parameter %q must be an integer", name))
	}
	return v, nil
}

func queryParams(r *http.Request) paramFunc {
	q := r.URL.Query()
	return q.Get
}

// signalParams merges datastar signals over the query string. Signals arrive
// as JSON, so numeric values are formatted back to their text form.
func signalParams(r *http.Request) (paramFunc, error) {
	signals := map[string]any{}
	if err := datastar.ReadSignals(r, &signals); err != nil {
		return nil, errors.BadRequestWrap(err, "Invalid datastar signals")
	}

	query := r.URL.Query()
	return func(name string) string {
		if v, ok := signals[name]; ok && v != nil {
			if s := fmt.Sprint(v); s != "" {
				return s
			}
		}
		return query.Get(name)
	}, nil
}

// toAppError maps engine errors onto the HTTP error taxonomy.
func toAppError(err error, message string) error {
	var appErr *errors.AppError
	switch {
	case stderrors.As(err, &appErr):
		return appErr
	case stderrors.Is(err, analytics.ErrInvalidFilter), stderrors.Is(err, analytics.ErrInvalidRanking):
		return errors.ValidationWrap(err, message)
	default:
		return errors.InternalWrap(err, message)
	}
}
