package analytics

import (
	"github.com/shopspring/decimal"

	"tatsoft-analytics/internal/models"
)

// Percentages are computed in tenths of a percent; a full partition is 1000.
const (
	fullShare      = 1000
	shareTolerance = 1
)

var thousand = decimal.NewFromInt(fullShare)

// Annotate returns a copy of groups with Percentage set to each group's share
// of the partition total, rounded half-up to one decimal. When the partition
// total is zero every percentage is zero.
//
// Rounding many small groups can push the sum past 100 +/- 0.1. In that case
// the groups with the largest rounding error are moved by 0.1 each until the
// sum is back inside the tolerance.
func Annotate(groups []models.Group) []models.Group {
	out := make([]models.Group, len(groups))
	copy(out, groups)

	grand := decimal.Zero
	for _, g := range out {
		grand = grand.Add(toDecimal(g.Total))
	}
	if !grand.IsPositive() {
		for i := range out {
			out[i].Percentage = 0
		}
		return out
	}

	exact := make([]decimal.Decimal, len(out))
	units := make([]int64, len(out))
	var sum int64
	for i, g := range out {
		exact[i] = toDecimal(g.Total).Mul(thousand).Div(grand)
		units[i] = exact[i].Round(0).IntPart()
		sum += units[i]
	}

	for sum > fullShare+shareTolerance {
		i := mostOverRounded(exact, units)
		units[i]--
		sum--
	}
	for sum < fullShare-shareTolerance {
		i := mostUnderRounded(exact, units)
		units[i]++
		sum++
	}

	for i := range out {
		out[i].Percentage = decimal.New(units[i], -1).InexactFloat64()
	}
	return out
}

func mostOverRounded(exact []decimal.Decimal, units []int64) int {
	best := -1
	var bestErr decimal.Decimal
	for i := range units {
		if units[i] == 0 {
			continue
		}
		err := decimal.NewFromInt(units[i]).Sub(exact[i])
		if best < 0 || err.GreaterThan(bestErr) {
			best, bestErr = i, err
		}
	}
	return best
}

func mostUnderRounded(exact []decimal.Decimal, units []int64) int {
	best := 0
	var bestErr decimal.Decimal
	for i := range units {
		err := exact[i].Sub(decimal.NewFromInt(units[i]))
		if i == 0 || err.GreaterThan(bestErr) {
			best, bestErr = i, err
		}
	}
	return best
}
