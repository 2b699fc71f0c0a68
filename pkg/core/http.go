package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/NERVsystems/ecoroute/pkg/tracing"
)

// Doer executes a prepared HTTP request. *http.Client satisfies it, as
// does the rate-limited client in pkg/osm.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// DefaultClient provides a pre-configured HTTP client with pooled connections
var DefaultClient = &http.Client{
	Timeout: 30 * time.Second,
	Transport: &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	},
}

// Execute performs exactly one attempt of req against an external service.
// Transport failures become NETWORK_ERROR and statuses other than 200 (or
// one listed in accept) are mapped through ServiceError. On success the
// caller owns the response body.
func Execute(ctx context.Context, doer Doer, req *http.Request, service string, accept ...int) (*http.Response, error) {
	if doer == nil {
		doer = DefaultClient
	}

	spanName := fmt.Sprintf("http.request %s %s", req.Method, req.URL.Host)
	ctx, span := tracing.StartSpan(ctx, spanName,
		trace.WithAttributes(
			attribute.String(tracing.AttrHTTPMethod, req.Method),
			attribute.String(tracing.AttrServiceName, service),
			attribute.String("http.url", req.URL.String()),
		),
	)
	defer span.End()

	logger := slog.Default().With("service", service, "method", req.Method, "url", req.URL.String())

	req = req.Clone(ctx)
	req.Header.Set("Accept", "application/json")

	resp, err := doer.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport failure")
		logger.Error("request failed", "error", err)

		if errors.Is(err, context.DeadlineExceeded) {
			return nil, NewError(ErrServiceTimeout, fmt.Sprintf("%s request timed out", service)).
				WithGuidance("The request timed out. Please try again later.")
		}
		return nil, NewError(ErrNetworkError, fmt.Sprintf("%s request failed: %v", service, err)).
			WithGuidance("Check network connectivity and try again.")
	}

	span.SetAttributes(attribute.Int(tracing.AttrHTTPStatusCode, resp.StatusCode))

	if resp.StatusCode != http.StatusOK && !slices.Contains(accept, resp.StatusCode) {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		if cerr := resp.Body.Close(); cerr != nil {
			logger.Warn("failed to close response body", "error", cerr)
		}
		svcErr := ServiceError(service, resp.StatusCode, fmt.Sprintf("HTTP status %d", resp.StatusCode))
		span.RecordError(svcErr)
		span.SetStatus(codes.Error, svcErr.Message)
		logger.Error("request returned error status",
			"status", resp.StatusCode,
			"body", string(body),
		)
		return nil, svcErr
	}

	span.SetStatus(codes.Ok, "")
	logger.Debug("request successful",
		"status", resp.StatusCode,
		"content_length", resp.ContentLength,
	)
	return resp, nil
}
