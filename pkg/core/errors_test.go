package core

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
)

func TestServiceErrorCodes(t *testing.T) {
	tests := []struct {
		status int
		want   ErrorCode
	}{
		{http.StatusTooManyRequests, ErrRateLimit},
		{http.StatusGatewayTimeout, ErrServiceTimeout},
		{http.StatusBadRequest, ErrInvalidInput},
		{http.StatusInternalServerError, ErrInternalError},
		{http.StatusServiceUnavailable, ErrServiceUnavailable},
		{http.StatusTeapot, ErrServiceUnavailable},
	}

	for _, tc := range tests {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			err := ServiceError("Nominatim", tc.status, "boom")
			if err.Code != string(tc.want) {
				t.Errorf("ServiceError(%d).Code = %s, want %s", tc.status, err.Code, tc.want)
			}
			if err.Guidance == "" {
				t.Error("expected guidance to be set")
			}
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Category
	}{
		{"nil", nil, CategoryNone},
		{"empty address", NewValidationError(ErrEmptyParameter, "x"), CategoryValidation},
		{"missing file", NewValidationError(ErrMissingFile, "x"), CategoryValidation},
		{"not found", NewError(ErrAddressNotFound, "x"), CategoryNotFound},
		{"session not found", NewError(ErrSessionNotFound, "x"), CategoryNotFound},
		{"no route", NewError(ErrRouteNotFound, "x"), CategoryEmptyRoute},
		{"network", NewError(ErrNetworkError, "x"), CategoryTransport},
		{"rate limit", ServiceError("OSRM", http.StatusTooManyRequests, "x"), CategoryTransport},
		{"wrapped not found", fmt.Errorf("resolve start: %w", NewError(ErrAddressNotFound, "x")), CategoryNotFound},
		{"plain error", fmt.Errorf("dial tcp: refused"), CategoryTransport},
		{"storage", NewError(ErrStorageError, "x"), CategoryInternal},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Classify(tc.err); got != tc.want {
				t.Errorf("Classify() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestUserNotice(t *testing.T) {
	notice, ok := UserNotice(NewError(ErrAddressNotFound, "no match").WithNotice(NoticeAddressNotFound))
	if !ok || notice != NoticeAddressNotFound {
		t.Errorf("UserNotice(not found) = %q, %v", notice, ok)
	}

	notice, ok = UserNotice(ValidateAddresses("", "MG Road"))
	if !ok || notice != NoticeMissingAddresses {
		t.Errorf("UserNotice(validation) = %q, %v", notice, ok)
	}

	if _, ok := UserNotice(NewError(ErrNetworkError, "timeout")); ok {
		t.Error("transport failures must not produce a notice")
	}
	if _, ok := UserNotice(NewError(ErrRouteNotFound, "no route")); ok {
		t.Error("empty route must not produce a notice")
	}
}

func TestToMCPResult(t *testing.T) {
	result := NewError(ErrAddressNotFound, "no match").WithQuery("nowhere").ToMCPResult()
	if !result.IsError {
		t.Fatal("expected error result")
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected text content, got %T", result.Content[0])
	}
	var decoded MCPError
	if err := json.Unmarshal([]byte(text.Text), &decoded); err != nil {
		t.Fatalf("failed to decode error JSON: %v", err)
	}
	if decoded.Code != string(ErrAddressNotFound) || decoded.Query != "nowhere" {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestValidateAddresses(t *testing.T) {
	if err := ValidateAddresses("MG Road", "Indiranagar"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	for _, pair := range [][2]string{{"", "x"}, {"x", "  "}, {"", ""}} {
		if err := ValidateAddresses(pair[0], pair[1]); err == nil {
			t.Errorf("ValidateAddresses(%q, %q) should fail", pair[0], pair[1])
		}
	}
}

func TestValidateAddress(t *testing.T) {
	if err := ValidateAddress("MG Road"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	for _, addr := range []string{"", " ", "\t\n"} {
		err := ValidateAddress(addr)
		if err == nil {
			t.Errorf("ValidateAddress(%q) should fail", addr)
			continue
		}
		if notice, ok := UserNotice(err); !ok || notice != NoticeMissingAddress {
			t.Errorf("ValidateAddress(%q) notice = %q", addr, notice)
		}
	}
}

func TestValidateCoords(t *testing.T) {
	if err := ValidateCoords(12.97, 77.59); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := ValidateCoords(91, 0); err == nil {
		t.Error("expected latitude error")
	}
	if err := ValidateCoords(0, -181); err == nil {
		t.Error("expected longitude error")
	}
}
