package analytics

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strings"

	"tatsoft-analytics/internal/models"
)

var ErrInvalidRanking = errors.New("invalid ranking parameters")

type Direction string

const (
	Desc Direction = "desc"
	Asc  Direction = "asc"
)

// ParseDirection accepts "desc" or "asc" in any case; empty means Desc.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(Desc):
		return Desc, nil
	case string(Asc):
		return Asc, nil
	default:
		return "", fmt.Errorf("%w: unknown order %q", ErrInvalidRanking, s)
	}
}

type Metric string

const (
	ByQuantity Metric = "quantity"
	ByAmount   Metric = "amount"
)

func ParseMetric(s string, fallback Metric) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return fallback, nil
	case string(ByQuantity):
		return ByQuantity, nil
	case string(ByAmount):
		return ByAmount, nil
	default:
		return "", fmt.Errorf("%w: unknown metric %q", ErrInvalidRanking, s)
	}
}

// Rankable items carry the identifier used to break metric ties.
type Rankable interface {
	RankID() string
}

// TopN returns up to n items ordered by metric in the requested direction.
// Ties are broken by ascending RankID so the result never depends on input
// order. The input slice is left untouched. n <= 0 yields an empty slice.
func TopN[T Rankable](items []T, metric func(T) float64, n int, dir Direction) []T {
	if n <= 0 {
		return []T{}
	}

	ranked := make([]T, len(items))
	copy(ranked, items)
	slices.SortFunc(ranked, func(a, b T) int {
		c := cmp.Compare(metric(a), metric(b))
		if dir != Asc {
			c = -c
		}
		if c != 0 {
			return c
		}
		return strings.Compare(a.RankID(), b.RankID())
	})

	if n < len(ranked) {
		ranked = ranked[:n]
	}
	return ranked
}

func ProductMetric(m Metric) func(models.ProductStat) float64 {
	if m == ByAmount {
		return func(p models.ProductStat) float64 { return p.AmountTotal }
	}
	return func(p models.ProductStat) float64 { return float64(p.Quantity) }
}

func ClientMetric(m Metric) func(models.ClientStat) float64 {
	if m == ByQuantity {
		return func(c models.ClientStat) float64 { return float64(c.Quantity) }
	}
	return func(c models.ClientStat) float64 { return c.AmountTotal }
}
