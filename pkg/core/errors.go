// Package core provides the error model, HTTP execution and route fetching
// shared by the ecoroute pipeline and its MCP tools.
package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
)

// ErrorCode defines standard error codes for ecoroute operations
type ErrorCode string

// Standard error codes
const (
	// Input validation errors
	ErrInvalidInput     ErrorCode = "INVALID_INPUT"
	ErrInvalidLatitude  ErrorCode = "INVALID_LATITUDE"
	ErrInvalidLongitude ErrorCode = "INVALID_LONGITUDE"
	ErrEmptyParameter   ErrorCode = "EMPTY_PARAMETER"
	ErrMissingParameter ErrorCode = "MISSING_PARAMETER"
	ErrInvalidParameter ErrorCode = "INVALID_PARAMETER"
	ErrMissingFile      ErrorCode = "MISSING_FILE"

	// Service errors
	ErrServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	ErrServiceTimeout     ErrorCode = "SERVICE_TIMEOUT"
	ErrRateLimit          ErrorCode = "RATE_LIMIT"
	ErrNetworkError       ErrorCode = "NETWORK_ERROR"

	// Data errors
	ErrAddressNotFound ErrorCode = "ADDRESS_NOT_FOUND"
	ErrRouteNotFound   ErrorCode = "ROUTE_NOT_FOUND"
	ErrSessionNotFound ErrorCode = "SESSION_NOT_FOUND"
	ErrParseError      ErrorCode = "PARSE_ERROR"
	ErrStorageError    ErrorCode = "STORAGE_ERROR"
	ErrInternalError   ErrorCode = "INTERNAL_ERROR"
)

// MCPError represents a detailed error structure for tool and API responses.
// Notice, when set, is the short text shown to the person who triggered the
// operation.
type MCPError struct {
	Code        string   `json:"code"`
	Message     string   `json:"message"`
	Query       string   `json:"query,omitempty"`
	Notice      string   `json:"notice,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
	Guidance    string   `json:"guidance,omitempty"`
}

// Error implements the error interface
func (e MCPError) Error() string {
	if e.Guidance != "" {
		return fmt.Sprintf("%s: %s. %s", e.Code, e.Message, e.Guidance)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewError creates a new MCPError with the given code and message
func NewError(code ErrorCode, message string) *MCPError {
	return &MCPError{
		Code:    string(code),
		Message: message,
	}
}

// WithQuery adds query information to the error
func (e *MCPError) WithQuery(query string) *MCPError {
	e.Query = query
	return e
}

// WithGuidance adds guidance information to the error
func (e *MCPError) WithGuidance(guidance string) *MCPError {
	e.Guidance = guidance
	return e
}

// WithSuggestions adds suggestions to the error
func (e *MCPError) WithSuggestions(suggestions ...string) *MCPError {
	e.Suggestions = append(e.Suggestions, suggestions...)
	return e
}

// WithNotice sets the user-facing notice
func (e *MCPError) WithNotice(notice string) *MCPError {
	e.Notice = notice
	return e
}

// ToMCPResult converts the error to an MCP tool result
func (e *MCPError) ToMCPResult() *mcp.CallToolResult {
	errorJSON, err := json.Marshal(e)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("ERROR: %s - %s", e.Code, e.Message))
	}

	return mcp.NewToolResultError(string(errorJSON))
}

// ServiceError creates an error for external service failures
func ServiceError(service string, statusCode int, message string) *MCPError {
	var code ErrorCode
	var guidance string

	switch statusCode {
	case http.StatusTooManyRequests:
		code = ErrRateLimit
		guidance = "The service is rate-limited. Please try again in a few moments."
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		code = ErrServiceTimeout
		guidance = "The request timed out. Please try again later."
	case http.StatusBadRequest:
		code = ErrInvalidInput
		guidance = "The request was invalid. Check your parameters and try again."
	case http.StatusInternalServerError:
		code = ErrInternalError
		guidance = "The server encountered an error. This is likely temporary, please try again later."
	case http.StatusServiceUnavailable:
		code = ErrServiceUnavailable
		guidance = "The service is temporarily unavailable. Please try again later."
	default:
		code = ErrServiceUnavailable
		guidance = "Please try again later or modify your request parameters."
	}

	return NewError(code, fmt.Sprintf("%s service error: %s", service, message)).
		WithGuidance(guidance)
}

// NewValidationError creates an error for validation failures
func NewValidationError(code ErrorCode, message string) *MCPError {
	return NewError(code, message).
		WithGuidance("Please correct the parameters and try again.")
}

// Category groups error codes by how they are surfaced.
type Category string

const (
	CategoryNone       Category = ""
	CategoryValidation Category = "validation"
	CategoryNotFound   Category = "not_found"
	CategoryTransport  Category = "transport"
	CategoryEmptyRoute Category = "empty_route"
	CategoryInternal   Category = "internal"
)

// AsMCPError unwraps err to an *MCPError if it holds one.
func AsMCPError(err error) (*MCPError, bool) {
	var mcpErr *MCPError
	if errors.As(err, &mcpErr) {
		return mcpErr, true
	}
	return nil, false
}

// Classify maps an error to its category. Errors that are not MCPErrors
// are treated as transport failures.
func Classify(err error) Category {
	if err == nil {
		return CategoryNone
	}
	mcpErr, ok := AsMCPError(err)
	if !ok {
		return CategoryTransport
	}

	switch ErrorCode(mcpErr.Code) {
	case ErrInvalidInput, ErrInvalidLatitude, ErrInvalidLongitude,
		ErrEmptyParameter, ErrMissingParameter, ErrInvalidParameter, ErrMissingFile:
		return CategoryValidation
	case ErrAddressNotFound, ErrSessionNotFound:
		return CategoryNotFound
	case ErrRouteNotFound:
		return CategoryEmptyRoute
	case ErrStorageError, ErrInternalError:
		return CategoryInternal
	default:
		return CategoryTransport
	}
}

// UserNotice returns the text to show the user for validation and
// not-found failures. Transport and empty-route failures are silent and
// return false.
func UserNotice(err error) (string, bool) {
	switch Classify(err) {
	case CategoryValidation, CategoryNotFound:
	default:
		return "", false
	}
	mcpErr, _ := AsMCPError(err)
	if mcpErr.Notice != "" {
		return mcpErr.Notice, true
	}
	return mcpErr.Message, true
}
