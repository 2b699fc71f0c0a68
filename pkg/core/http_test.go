package core

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func TestExecuteSingleAttempt(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
	_, err := Execute(context.Background(), server.Client(), req, "OSRM")
	if err == nil {
		t.Fatal("expected error for 503")
	}

	var mcpErr *MCPError
	if !errors.As(err, &mcpErr) || mcpErr.Code != string(ErrServiceUnavailable) {
		t.Errorf("expected SERVICE_UNAVAILABLE, got %v", err)
	}
	if got := atomic.LoadInt32(&hits); got != 1 {
		t.Errorf("expected exactly one attempt, got %d", got)
	}
}

func TestExecuteSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept") != "application/json" {
			t.Errorf("expected Accept header, got %q", r.Header.Get("Accept"))
		}
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
	resp, err := Execute(context.Background(), server.Client(), req, "Nominatim")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp.Body.Close()
}

type failingDoer struct{ err error }

func (f failingDoer) Do(*http.Request) (*http.Response, error) { return nil, f.err }

func TestExecuteTransportFailure(t *testing.T) {
	req, _ := http.NewRequest(http.MethodGet, "http://example.invalid", nil)

	_, err := Execute(context.Background(), failingDoer{errors.New("connection refused")}, req, "OSRM")
	if Classify(err) != CategoryTransport {
		t.Errorf("expected transport category, got %q (%v)", Classify(err), err)
	}
	mcpErr, _ := AsMCPError(err)
	if mcpErr.Code != string(ErrNetworkError) {
		t.Errorf("expected NETWORK_ERROR, got %s", mcpErr.Code)
	}

	_, err = Execute(context.Background(), failingDoer{context.DeadlineExceeded}, req, "OSRM")
	mcpErr, _ = AsMCPError(err)
	if mcpErr == nil || mcpErr.Code != string(ErrServiceTimeout) {
		t.Errorf("expected SERVICE_TIMEOUT, got %v", err)
	}
}
