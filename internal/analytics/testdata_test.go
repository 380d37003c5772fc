package analytics

import (
	"time"

	"tatsoft-analytics/internal/models"
)

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 15, 30, 0, 0, time.UTC)
}

func sale(id string, date time.Time, collab string, amount float64, zone string) models.SaleRecord {
	return models.SaleRecord{
		ID:               id,
		ConfirmationDate: date,
		CollaboratorID:   models.CollaboratorID(collab),
		CollaboratorName: "Collaborator " + collab,
		TotalAmount:      amount,
		ZoneName:         models.ZoneName(zone),
	}
}

func sampleSales() []models.SaleRecord {
	return []models.SaleRecord{
		sale("S001", day(2023, time.December, 28), "C1", 120.50, "North"),
		sale("S002", day(2024, time.January, 2), "C2", 80, "South"),
		sale("S003", day(2024, time.January, 4), "C1", 300, "North"),
		sale("S004", day(2024, time.March, 5), "C3", 45.25, "East"),
		sale("S005", day(2024, time.March, 7), "C2", 210, "North"),
		sale("S006", day(2024, time.March, 31), "C1", 99.99, "South"),
		sale("S007", day(2025, time.January, 1), "C3", 500, "East"),
	}
}
