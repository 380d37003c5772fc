package analytics

import (
	"cmp"
	"slices"
	"time"

	"tatsoft-analytics/internal/models"
)

// WeekStart returns midnight of the Sunday that opens t's week, in t's location.
func WeekStart(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d-int(t.Weekday()), 0, 0, 0, 0, t.Location())
}

type weekKey struct {
	year  int
	month time.Month
	day   int
}

func (k weekKey) compare(o weekKey) int {
	if c := cmp.Compare(k.year, o.year); c != 0 {
		return c
	}
	if c := cmp.Compare(k.month, o.month); c != 0 {
		return c
	}
	return cmp.Compare(k.day, o.day)
}

// BucketByWeek sums TotalAmount per Sunday-anchored week and returns the
// buckets in ascending calendar order. Records without a confirmation date
// are ignored.
func BucketByWeek(records []models.SaleRecord, opts ...Option) []models.WeekBucket {
	cfg := applyOptions(opts)

	starts := make(map[weekKey]time.Time)
	dated := make([]models.SaleRecord, 0, len(records))
	for _, r := range records {
		if !r.ConfirmationDate.IsZero() {
			dated = append(dated, r)
		}
	}

	groups := Aggregate(dated, func(r models.SaleRecord) weekKey {
		start := WeekStart(cfg.local(r.ConfirmationDate))
		k := weekKey{year: start.Year(), month: start.Month(), day: start.Day()}
		if _, ok := starts[k]; !ok {
			starts[k] = start
		}
		return k
	}, nil)

	keys := groups.Keys()
	slices.SortFunc(keys, weekKey.compare)

	buckets := make([]models.WeekBucket, 0, len(keys))
	for _, k := range keys {
		t, _ := groups.Get(k)
		buckets = append(buckets, models.WeekBucket{
			WeekStart: starts[k],
			Total:     t.Total,
			Count:     t.Count,
		})
	}
	return buckets
}
