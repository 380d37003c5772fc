package analytics

import (
	"iter"
	"math"
	"slices"

	"github.com/shopspring/decimal"

	"tatsoft-analytics/internal/models"
)

// Measure extracts the value summed per group.
type Measure func(models.SaleRecord) float64

func TotalAmount(r models.SaleRecord) float64 {
	return r.TotalAmount
}

type Totals struct {
	Total float64
	Count int
}

// Groups is the output of Aggregate. Iteration follows first-seen key order.
type Groups[K comparable] struct {
	order []K
	sums  map[K]*groupSum
}

type groupSum struct {
	total decimal.Decimal
	count int
}

// Aggregate partitions records by key in a single pass, summing measure and
// counting members per group. A nil measure sums TotalAmount. NaN and infinite
// measures count as zero.
func Aggregate[K comparable](records []models.SaleRecord, key func(models.SaleRecord) K, measure Measure) *Groups[K] {
	if measure == nil {
		measure = TotalAmount
	}

	g := &Groups[K]{sums: make(map[K]*groupSum)}
	for _, r := range records {
		k := key(r)
		s, ok := g.sums[k]
		if !ok {
			s = &groupSum{}
			g.sums[k] = s
			g.order = append(g.order, k)
		}
		s.total = s.total.Add(toDecimal(measure(r)))
		s.count++
	}
	return g
}

func (g *Groups[K]) Len() int {
	return len(g.order)
}

// Keys returns a copy of the group keys in first-seen order.
func (g *Groups[K]) Keys() []K {
	return slices.Clone(g.order)
}

func (g *Groups[K]) Get(k K) (Totals, bool) {
	s, ok := g.sums[k]
	if !ok {
		return Totals{}, false
	}
	return s.totals(), true
}

// All yields every group in first-seen order. The sequence can be ranged over
// any number of times.
func (g *Groups[K]) All() iter.Seq2[K, Totals] {
	return func(yield func(K, Totals) bool) {
		for _, k := range g.order {
			if !yield(k, g.sums[k].totals()) {
				return
			}
		}
	}
}

// Total is the sum across all groups.
func (g *Groups[K]) Total() float64 {
	sum := decimal.Zero
	for _, s := range g.sums {
		sum = sum.Add(s.total)
	}
	return sum.InexactFloat64()
}

func (s *groupSum) totals() Totals {
	return Totals{Total: s.total.InexactFloat64(), Count: s.count}
}

func toDecimal(v float64) decimal.Decimal {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(v)
}

func sumAmounts(records []models.SaleRecord) decimal.Decimal {
	sum := decimal.Zero
	for _, r := range records {
		sum = sum.Add(toDecimal(r.TotalAmount))
	}
	return sum
}
