// Package analytics turns confirmed sales into the weekly, per-collaborator
// and per-zone view-models, and ranks product and client statistics.
//
// Every function here is pure: no I/O, no shared state, and inputs are never
// modified. Callers must not mutate a record slice while a run is reading it.
package analytics

import (
	"slices"

	"tatsoft-analytics/internal/models"
)

// Run filters records to p and builds the complete view-model. Each partition
// (collaborators, zones) gets its own percentages and is sorted by total,
// largest first; equal totals keep first-seen order.
func Run(records []models.SaleRecord, p models.Period, opts ...Option) (*models.Result, error) {
	filtered, skipped, err := Filter(records, p, opts...)
	if err != nil {
		return nil, err
	}

	return &models.Result{
		Period:         p,
		Weekly:         BucketByWeek(filtered, opts...),
		ByCollaborator: sortBySize(Annotate(collaboratorGroups(filtered))),
		ByZone:         sortBySize(Annotate(zoneGroups(filtered))),
		GrandTotal:     sumAmounts(filtered).InexactFloat64(),
		RecordCount:    len(filtered),
		SkippedCount:   skipped,
	}, nil
}

func collaboratorGroups(records []models.SaleRecord) []models.Group {
	names := make(map[models.CollaboratorID]string)
	groups := Aggregate(records, func(r models.SaleRecord) models.CollaboratorID {
		if _, ok := names[r.CollaboratorID]; !ok {
			names[r.CollaboratorID] = r.CollaboratorName
		}
		return r.CollaboratorID
	}, nil)

	out := make([]models.Group, 0, groups.Len())
	for id, t := range groups.All() {
		out = append(out, models.Group{
			Key:   string(id),
			Label: names[id],
			Total: t.Total,
			Count: t.Count,
		})
	}
	return out
}

func zoneGroups(records []models.SaleRecord) []models.Group {
	groups := Aggregate(records, func(r models.SaleRecord) models.ZoneName {
		return r.ZoneName
	}, nil)

	out := make([]models.Group, 0, groups.Len())
	for zone, t := range groups.All() {
		out = append(out, models.Group{
			Key:   string(zone),
			Label: string(zone),
			Total: t.Total,
			Count: t.Count,
		})
	}
	return out
}

func sortBySize(groups []models.Group) []models.Group {
	slices.SortStableFunc(groups, func(a, b models.Group) int {
		switch {
		case a.Total > b.Total:
			return -1
		case a.Total < b.Total:
			return 1
		default:
			return 0
		}
	})
	return groups
}
