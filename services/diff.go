package services

import (
	"time"

	"car_scrooper/models"
)

// Diff compares the previous snapshot with the current one. An offer is
// reported sold when its id is gone from current. That is only a heuristic:
// a relisted car with a new id also shows up here, and nothing is done to
// tell the two apart.
//
// AllCars is previous overlaid with current, current winning on collisions.
func Diff(previous, current models.Snapshot, now time.Time) models.DiffResult {
	result := models.DiffResult{
		Sold:     SoldOffers(previous, current),
		AllCars:  make(models.Snapshot, len(previous)+len(current)),
		DiffedAt: now.Format(models.TimestampLayout),
	}

	for id, offer := range previous {
		result.AllCars[id] = offer
	}
	for id, offer := range current {
		result.AllCars[id] = offer
	}
	return result
}

// SoldOffers returns previous entries whose ids are absent from current.
func SoldOffers(previous, current models.Snapshot) models.SoldSet {
	sold := make(models.SoldSet)
	for id, offer := range previous {
		if _, ok := current[id]; !ok {
			sold[id] = offer
		}
	}
	return sold
}
