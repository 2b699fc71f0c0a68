package server

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/NERVsystems/ecoroute/pkg/core"
	"github.com/NERVsystems/ecoroute/pkg/detector"
	"github.com/NERVsystems/ecoroute/pkg/geo"
	"github.com/NERVsystems/ecoroute/pkg/mapview"
	"github.com/NERVsystems/ecoroute/pkg/osm"
	"github.com/NERVsystems/ecoroute/pkg/pipeline"
	"github.com/NERVsystems/ecoroute/pkg/store"
	"github.com/NERVsystems/ecoroute/pkg/tools"
	"github.com/NERVsystems/ecoroute/pkg/trip"
)

type stubPlaces map[string]geo.Location

func (s stubPlaces) Resolve(ctx context.Context, address string) (geo.Location, error) {
	loc, ok := s[address]
	if !ok {
		return geo.Location{}, core.NewError(core.ErrAddressNotFound, "no results for "+address).
			WithNotice(core.NoticeAddressNotFound)
	}
	return loc, nil
}

func (s stubPlaces) Lookup(ctx context.Context, address string) (*osm.Place, error) {
	loc, err := s.Resolve(ctx, address)
	if err != nil {
		return nil, err
	}
	return &osm.Place{Query: address, Location: loc, DisplayName: address}, nil
}

type stubFetcher struct {
	route *core.Route
	err   error
}

func (s *stubFetcher) FetchRoute(ctx context.Context, from, to geo.Location, profile string) (*core.Route, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.route, nil
}

type fixture struct {
	deps     tools.Deps
	fetcher  *stubFetcher
	kv       *store.Memory
	sessions *mapview.Sessions
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	places := stubPlaces{
		"MG Road":     {Latitude: 12.9756, Longitude: 77.6066},
		"Indiranagar": {Latitude: 12.9784, Longitude: 77.6408},
	}
	fetcher := &stubFetcher{route: &core.Route{
		Path: []geo.Location{
			{Latitude: 12.9756, Longitude: 77.6066},
			{Latitude: 12.9784, Longitude: 77.6408},
		},
		DistanceMeters:  10000,
		DurationSeconds: 900,
	}}
	kv := store.NewMemory()
	calc := trip.NewCalculator(kv, nil)
	sessions, err := mapview.NewSessions(8, mapview.Options{}, mapview.TileLayer{}, nil)
	require.NoError(t, err)

	return &fixture{
		deps: tools.Deps{
			Planner:    pipeline.NewPlanner(places, fetcher, calc, nil, nil),
			Places:     places,
			Fetcher:    fetcher,
			Calculator: calc,
			Detector:   detector.New(detector.NewRandomClassifier(11), nil, nil),
			Sessions:   sessions,
			Store:      kv,
		},
		fetcher:  fetcher,
		kv:       kv,
		sessions: sessions,
	}
}
