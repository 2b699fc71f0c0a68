package osm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/NERVsystems/ecoroute/pkg/core"
	"github.com/NERVsystems/ecoroute/pkg/geo"
	"github.com/NERVsystems/ecoroute/pkg/tracing"
)

// degrees decodes a coordinate Nominatim may send as a string or a number.
type degrees float64

func (d *degrees) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid coordinate %s: %w", data, err)
	}
	*d = degrees(v)
	return nil
}

type nominatimResult struct {
	Lat         degrees `json:"lat"`
	Lon         degrees `json:"lon"`
	DisplayName string  `json:"display_name"`
	Importance  float64 `json:"importance"`
}

// Place is a geocoded address.
type Place struct {
	Query       string       `json:"query"`
	Location    geo.Location `json:"location"`
	DisplayName string       `json:"display_name,omitempty"`
}

// Resolver turns free-text addresses into coordinates using Nominatim
// search. It makes one request per call and never retries.
type Resolver struct {
	baseURL string
	client  core.Doer
	logger  *slog.Logger
}

// NewResolver creates a resolver for the given Nominatim base URL.
func NewResolver(baseURL string, client core.Doer, logger *slog.Logger) *Resolver {
	if baseURL == "" {
		baseURL = NominatimBaseURL
	}
	if client == nil {
		client = core.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		logger:  logger.With("service", tracing.ServiceNominatim),
	}
}

// Resolve returns the coordinate of the first search result.
func (r *Resolver) Resolve(ctx context.Context, address string) (geo.Location, error) {
	place, err := r.Lookup(ctx, address)
	if err != nil {
		return geo.Location{}, err
	}
	return place.Location, nil
}

// Lookup returns the first search result for address. An empty result list
// yields ADDRESS_NOT_FOUND.
func (r *Resolver) Lookup(ctx context.Context, address string) (*Place, error) {
	ctx, span := tracing.StartSpan(ctx, "nominatim.search",
		trace.WithAttributes(attribute.String(tracing.AttrServiceOperation, "search")),
	)
	defer span.End()

	query := url.Values{}
	query.Set("format", "json")
	query.Set("q", address)
	reqURL := fmt.Sprintf("%s/search?%s", r.baseURL, query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, core.NewError(core.ErrInternalError, fmt.Sprintf("failed to build search request: %v", err))
	}

	resp, err := core.Execute(ctx, r.client, req, "Nominatim")
	if err != nil {
		tracing.Fail(span, err)
		return nil, err
	}
	defer resp.Body.Close()

	var results []nominatimResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		tracing.Fail(span, err)
		return nil, core.NewError(core.ErrParseError, fmt.Sprintf("failed to decode geocoding response: %v", err)).
			WithQuery(address)
	}

	span.SetAttributes(attribute.Int("nominatim.results", len(results)))
	if len(results) == 0 {
		r.logger.Info("address not found", "address", address)
		return nil, core.NewError(core.ErrAddressNotFound, fmt.Sprintf("no results for %q", address)).
			WithQuery(address).
			WithNotice(core.NoticeAddressNotFound).
			WithGuidance("Try a more specific address, include the city or check the spelling.")
	}

	first := results[0]
	loc := geo.Location{Latitude: float64(first.Lat), Longitude: float64(first.Lon)}
	if err := core.ValidateCoords(loc.Latitude, loc.Longitude); err != nil {
		return nil, core.NewError(core.ErrParseError, "geocoding result has invalid coordinates").WithQuery(address)
	}

	return &Place{Query: address, Location: loc, DisplayName: first.DisplayName}, nil
}
