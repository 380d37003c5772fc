package templates

import (
	"strconv"

	"tatsoft-analytics/internal/models"
)

const (
	SummaryID       = "summary-content"
	WeeklyID        = "weekly-content"
	CollaboratorsID = "collaborators-content"
	ZonesID         = "zones-content"
	ProductsID      = "products-content"
	ClientsID       = "clients-content"
)

// RankingRow is the common shape of ranked products and clients.
type RankingRow struct {
	ID       string
	Name     string
	Quantity int
	Amount   float64
}

func ProductRows(items []models.ProductStat) []RankingRow {
	rows := make([]RankingRow, len(items))
	for i, p := range items {
		rows[i] = RankingRow{ID: p.ID, Name: p.Name, Quantity: p.Quantity, Amount: p.AmountTotal}
	}
	return rows
}

func ClientRows(items []models.ClientStat) []RankingRow {
	rows := make([]RankingRow, len(items))
	for i, c := range items {
		rows[i] = RankingRow{ID: c.ID, Name: c.Name, Quantity: c.Quantity, Amount: c.AmountTotal}
	}
	return rows
}

func periodLabel(p models.Period) string {
	switch p.Mode {
	case models.PeriodMonth:
		return monthNames[p.Month%12] + " " + strconv.Itoa(p.Year)
	case models.PeriodYear:
		return strconv.Itoa(p.Year)
	default:
		return "All time"
	}
}

var monthNames = [12]string{
	"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}

// groupLabel falls back to the key for groups without a display name.
func groupLabel(g models.Group) string {
	if g.Label == "" {
		return g.Key
	}
	return g.Label
}
