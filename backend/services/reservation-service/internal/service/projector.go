package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"evslot/backend/libs/cache"
	"evslot/backend/libs/geo"
	"evslot/backend/services/reservation-service/internal/models"
)

// Projector serves the cached station read models.
type Projector struct {
	stations        StationStore
	cache           *cache.Store
	availabilityTTL time.Duration
	searchTTL       time.Duration
	logger          *zap.Logger
}

// ProjectorOptions holds cache TTLs.
type ProjectorOptions struct {
	AvailabilityTTL time.Duration
	SearchTTL       time.Duration
}

// NewProjector builds the availability projector.
func NewProjector(stations StationStore, store *cache.Store, opts ProjectorOptions, logger *zap.Logger) *Projector {
	if opts.AvailabilityTTL <= 0 {
		opts.AvailabilityTTL = 30 * time.Second
	}
	if opts.SearchTTL <= 0 {
		opts.SearchTTL = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Projector{
		stations:        stations,
		cache:           store,
		availabilityTTL: opts.AvailabilityTTL,
		searchTTL:       opts.SearchTTL,
		logger:          logger,
	}
}

// StationAvailability returns the cached charger counts of a station.
func (p *Projector) StationAvailability(ctx context.Context, stationID string) (*models.StationAvailability, error) {
	return cache.RememberVersioned(ctx, p.cache, AvailabilityKey(stationID), AvailabilityKey(stationID), p.availabilityTTL, func(ctx context.Context) (*models.StationAvailability, error) {
		return p.ComputeAvailability(ctx, stationID)
	})
}

// ComputeAvailability counts the chargers of a station from the store, bypassing the cache.
func (p *Projector) ComputeAvailability(ctx context.Context, stationID string) (*models.StationAvailability, error) {
	availability, err := p.stations.Availability(ctx, stationID)
	if err != nil {
		return nil, translateLookup(err, "station")
	}
	return availability, nil
}

// SearchStations returns one page of stations matching filter.
func (p *Projector) SearchStations(ctx context.Context, filter models.StationFilter) (*models.StationPage, error) {
	if (filter.Latitude == nil) != (filter.Longitude == nil) {
		return nil, fmt.Errorf("%w: latitude and longitude must be given together", ErrInvalidInput)
	}
	if filter.Radius != nil && *filter.Radius <= 0 {
		return nil, fmt.Errorf("%w: radius must be positive", ErrInvalidInput)
	}
	filter = filter.Normalized()

	var center geo.Point
	if filter.HasPoint() {
		center = geo.Point{Latitude: *filter.Latitude, Longitude: *filter.Longitude}
		if err := center.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
	}

	key := cache.Key(SearchPrefix, filter.CacheParams())
	return cache.RememberVersioned(ctx, p.cache, SearchScope, key, p.searchTTL, func(ctx context.Context) (*models.StationPage, error) {
		if filter.HasPoint() {
			return p.searchNear(ctx, filter, center, *filter.Radius)
		}
		return p.searchAll(ctx, filter)
	})
}

// InvalidateSearch drops every cached search page.
func (p *Projector) InvalidateSearch(ctx context.Context) {
	p.cache.Bump(ctx, SearchScope)
	p.cache.InvalidatePrefix(ctx, SearchPrefix)
}

func (p *Projector) searchAll(ctx context.Context, filter models.StationFilter) (*models.StationPage, error) {
	stations, total, err := p.stations.Search(ctx, filter)
	if err != nil {
		return nil, err
	}
	views := make([]models.StationView, len(stations))
	for i, st := range stations {
		views[i] = models.StationView{Station: st}
	}
	return newPage(views, filter, total), nil
}

type rankedStation struct {
	id       string
	distance float64
}

func (p *Projector) searchNear(ctx context.Context, filter models.StationFilter, center geo.Point, radius float64) (*models.StationPage, error) {
	candidates, err := p.stations.Candidates(ctx, filter, geo.BoundsAround(center, radius))
	if err != nil {
		return nil, err
	}

	ranked := make([]rankedStation, 0, len(candidates))
	for _, c := range candidates {
		d := geo.Distance(center, geo.Point{Latitude: c.Latitude, Longitude: c.Longitude})
		if d <= radius {
			ranked = append(ranked, rankedStation{id: c.ID, distance: d})
		}
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].distance != ranked[j].distance {
			return ranked[i].distance < ranked[j].distance
		}
		return ranked[i].id < ranked[j].id
	})

	total := len(ranked)
	start := filter.Offset()
	if start > total {
		start = total
	}
	end := start + filter.Limit
	if end > total {
		end = total
	}
	pageIDs := make([]string, 0, end-start)
	distances := make(map[string]float64, end-start)
	for _, r := range ranked[start:end] {
		pageIDs = append(pageIDs, r.id)
		distances[r.id] = r.distance
	}

	stations, err := p.stations.Hydrate(ctx, pageIDs)
	if err != nil {
		return nil, err
	}
	views := make([]models.StationView, 0, len(stations))
	for _, st := range stations {
		d := math.Round(distances[st.ID]*10) / 10
		views = append(views, models.StationView{Station: st, DistanceMeters: &d})
	}
	return newPage(views, filter, total), nil
}

func newPage(views []models.StationView, filter models.StationFilter, total int) *models.StationPage {
	totalPages := 0
	if total > 0 {
		totalPages = (total + filter.Limit - 1) / filter.Limit
	}
	return &models.StationPage{
		Data: views,
		Meta: models.PageMeta{
			Page:       filter.Page,
			Limit:      filter.Limit,
			Total:      total,
			TotalPages: totalPages,
		},
	}
}
