// Package geo ranks located entities by great-circle distance.
package geo

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/carfix-labs/carfix/engine/domain"
	"github.com/carfix-labs/carfix/engine/knowledge"
)

// EarthRadiusKm is the mean Earth radius used by Haversine.
const EarthRadiusKm = 6371.0

// ErrNoEntities is returned when a single nearest entity is requested
// from an empty set.
var ErrNoEntities = errors.New("no entities")

// Haversine returns the great-circle distance in kilometres.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	φ1, φ2 := rad(lat1), rad(lat2)
	dφ := rad(lat2 - lat1)
	dλ := rad(lon2 - lon1)

	a := math.Sin(dφ/2)*math.Sin(dφ/2) + math.Cos(φ1)*math.Cos(φ2)*math.Sin(dλ/2)*math.Sin(dλ/2)
	// Rounding can push a just outside [0, 1] near antipodes.
	a = min(max(a, 0), 1)
	return EarthRadiusKm * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

func rad(deg float64) float64 { return deg * math.Pi / 180 }

// Nearest ranks entities by distance from (lat, lon), nearest first. Ties
// keep input order. k <= 0 returns every entity.
func Nearest(lat, lon float64, entities []domain.LocatedEntity, k int) []domain.RankedLocation {
	out := make([]domain.RankedLocation, len(entities))
	for i, e := range entities {
		out[i] = domain.RankedLocation{
			Entity:     e,
			DistanceKm: Haversine(lat, lon, e.Latitude, e.Longitude),
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DistanceKm < out[j].DistanceKm })
	if k > 0 && k < len(out) {
		out = out[:k]
	}
	return out
}

// Finder answers nearest-entity questions against an EntityStore.
type Finder struct {
	store knowledge.EntityStore
}

// NewFinder creates a Finder.
func NewFinder(store knowledge.EntityStore) *Finder {
	return &Finder{store: store}
}

// NearestCenters returns up to k maintenance centers, nearest first.
func (f *Finder) NearestCenters(ctx context.Context, lat, lon float64, k int) ([]domain.RankedLocation, error) {
	return f.nearest(ctx, domain.KindCenter, lat, lon, k)
}

// NearestTowOperator returns the single closest tow-truck operator.
func (f *Finder) NearestTowOperator(ctx context.Context, lat, lon float64) (domain.RankedLocation, error) {
	ranked, err := f.nearest(ctx, domain.KindTowOperator, lat, lon, 1)
	if err != nil {
		return domain.RankedLocation{}, err
	}
	if len(ranked) == 0 {
		return domain.RankedLocation{}, fmt.Errorf("geo: tow operators: %w", ErrNoEntities)
	}
	return ranked[0], nil
}

func (f *Finder) nearest(ctx context.Context, kind domain.EntityKind, lat, lon float64, k int) ([]domain.RankedLocation, error) {
	if err := domain.ValidateCoordinates(lat, lon); err != nil {
		return nil, err
	}
	entities, err := f.store.Entities(ctx, kind)
	if err != nil {
		return nil, fmt.Errorf("geo: list %s: %w", kind, err)
	}
	return Nearest(lat, lon, entities, k), nil
}

// RoundKm rounds a distance to two decimals for display.
func RoundKm(km float64) float64 {
	return math.Round(km*100) / 100
}
