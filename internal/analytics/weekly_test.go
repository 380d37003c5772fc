package analytics

import (
	"testing"
	"time"

	"tatsoft-analytics/internal/models"
)

func TestWeekStart(t *testing.T) {
	tests := []struct {
		name string
		in   time.Time
		want time.Time
	}{
		{"tuesday", time.Date(2024, time.March, 5, 18, 45, 12, 0, time.UTC), time.Date(2024, time.March, 3, 0, 0, 0, 0, time.UTC)},
		{"sunday is its own start", time.Date(2024, time.March, 31, 23, 59, 0, 0, time.UTC), time.Date(2024, time.March, 31, 0, 0, 0, 0, time.UTC)},
		{"saturday", time.Date(2024, time.March, 9, 1, 0, 0, 0, time.UTC), time.Date(2024, time.March, 3, 0, 0, 0, 0, time.UTC)},
		{"across year boundary", time.Date(2025, time.January, 1, 9, 0, 0, 0, time.UTC), time.Date(2024, time.December, 29, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := WeekStart(tt.in)
			if !got.Equal(tt.want) {
				t.Errorf("WeekStart(%v) = %v, want %v", tt.in, got, tt.want)
			}
			if got.Weekday() != time.Sunday {
				t.Errorf("WeekStart(%v) weekday = %v, want Sunday", tt.in, got.Weekday())
			}
		})
	}
}

func TestBucketByWeek_SameWeekCollapses(t *testing.T) {
	records := []models.SaleRecord{
		sale("tue", day(2024, time.March, 5), "C1", 100, "North"),
		sale("thu", day(2024, time.March, 7), "C2", 50, "South"),
	}

	buckets := BucketByWeek(records)
	if len(buckets) != 1 {
		t.Fatalf("len(buckets) = %d, want 1", len(buckets))
	}
	if buckets[0].Count != 2 {
		t.Errorf("Count = %d, want 2", buckets[0].Count)
	}
	if buckets[0].Total != 150 {
		t.Errorf("Total = %v, want 150", buckets[0].Total)
	}
	if !buckets[0].WeekStart.Equal(time.Date(2024, time.March, 3, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("WeekStart = %v, want 2024-03-03", buckets[0].WeekStart)
	}
}

func TestBucketByWeek_ChronologicalAcrossMonthsAndYears(t *testing.T) {
	// Input is deliberately out of order; a label sort ("03/03" < "12/24")
	// would put March before the previous December.
	records := sampleSales()
	records[0], records[6] = records[6], records[0]

	buckets := BucketByWeek(records)

	want := []struct {
		start time.Time
		total float64
		count int
	}{
		{time.Date(2023, time.December, 24, 0, 0, 0, 0, time.UTC), 120.5, 1},
		{time.Date(2023, time.December, 31, 0, 0, 0, 0, time.UTC), 380, 2},
		{time.Date(2024, time.March, 3, 0, 0, 0, 0, time.UTC), 255.25, 2},
		{time.Date(2024, time.March, 31, 0, 0, 0, 0, time.UTC), 99.99, 1},
		{time.Date(2024, time.December, 29, 0, 0, 0, 0, time.UTC), 500, 1},
	}

	if len(buckets) != len(want) {
		t.Fatalf("len(buckets) = %d, want %d", len(buckets), len(want))
	}
	for i, w := range want {
		b := buckets[i]
		if !b.WeekStart.Equal(w.start) || b.Total != w.total || b.Count != w.count {
			t.Errorf("bucket %d = %+v, want start %v total %v count %d", i, b, w.start, w.total, w.count)
		}
	}

	for i := 1; i < len(buckets); i++ {
		if !buckets[i-1].WeekStart.Before(buckets[i].WeekStart) {
			t.Errorf("buckets not strictly increasing at %d: %v then %v", i, buckets[i-1].WeekStart, buckets[i].WeekStart)
		}
	}
}

func TestBucketByWeek_IgnoresUndated(t *testing.T) {
	records := []models.SaleRecord{
		sale("dated", day(2024, time.March, 5), "C1", 10, "North"),
		sale("undated", time.Time{}, "C1", 10, "North"),
	}
	buckets := BucketByWeek(records)
	if len(buckets) != 1 || buckets[0].Count != 1 {
		t.Errorf("BucketByWeek() = %+v, want one bucket with count 1", buckets)
	}
}

func TestBucketByWeek_Empty(t *testing.T) {
	buckets := BucketByWeek(nil)
	if buckets == nil {
		t.Error("BucketByWeek(nil) should return an empty slice, not nil")
	}
	if len(buckets) != 0 {
		t.Errorf("len(buckets) = %d, want 0", len(buckets))
	}
}

func TestBucketByWeek_WithLocation(t *testing.T) {
	// Sunday 02:00 UTC is still Saturday evening in UTC-5.
	records := []models.SaleRecord{
		sale("S1", time.Date(2024, time.March, 10, 2, 0, 0, 0, time.UTC), "C1", 10, "North"),
	}
	est := time.FixedZone("EST", -5*60*60)

	buckets := BucketByWeek(records, WithLocation(est))
	if len(buckets) != 1 {
		t.Fatalf("len(buckets) = %d, want 1", len(buckets))
	}
	want := time.Date(2024, time.March, 3, 0, 0, 0, 0, est)
	if !buckets[0].WeekStart.Equal(want) {
		t.Errorf("WeekStart = %v, want %v", buckets[0].WeekStart, want)
	}
}
