// Package tools provides the ecoroute MCP tools: trip planning, its
// individual stages, the map view and the crop-disease detector.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/NERVsystems/ecoroute/pkg/core"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// InputParser decodes the request arguments into T and validates its
// `validate` tags.
func InputParser[T any](req mcp.CallToolRequest) (T, error) {
	var input T

	raw, err := json.Marshal(req.Params.Arguments)
	if err != nil {
		return input, core.NewValidationError(core.ErrInvalidInput, fmt.Sprintf("invalid input format: %v", err))
	}
	if err := json.Unmarshal(raw, &input); err != nil {
		return input, core.NewValidationError(core.ErrInvalidInput, fmt.Sprintf("failed to parse input: %v", err))
	}
	if err := Validate(input); err != nil {
		return input, err
	}
	return input, nil
}

// Validate checks the `validate` tags on v and reports failures as an
// INVALID_PARAMETER MCPError.
func Validate(v any) error {
	if err := validate.Struct(v); err != nil {
		return validationError(err)
	}
	return nil
}

func validationError(err error) *core.MCPError {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return core.NewValidationError(core.ErrInvalidInput, err.Error())
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fe.Field()+" is required")
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param()))
		case "latitude", "longitude":
			msgs = append(msgs, fmt.Sprintf("%s must be a valid %s", fe.Field(), fe.Tag()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		}
	}
	return core.NewValidationError(core.ErrInvalidParameter, strings.Join(msgs, "; "))
}

// WithParsedInput adapts a typed handler to an MCP tool handler. Handler
// errors become error results carrying the JSON-encoded MCPError; the
// returned Go error is always nil.
func WithParsedInput[T any](
	toolName string,
	logger *slog.Logger,
	handler func(ctx context.Context, input T, logger *slog.Logger) (any, error),
) func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	logger = logger.With("tool", toolName)
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		input, err := InputParser[T](req)
		if err != nil {
			logger.Debug("rejected input", "error", err)
			return ErrorResult(err), nil
		}

		result, err := handler(ctx, input, logger)
		if err != nil {
			return ErrorResult(err), nil
		}

		out, err := json.Marshal(result)
		if err != nil {
			logger.Error("failed to marshal result", "error", err)
			return ErrorResult(core.NewError(core.ErrInternalError, "failed to encode result")), nil
		}
		return mcp.NewToolResultText(string(out)), nil
	}
}

// ErrorResult converts err to an MCP error result. Errors that are not
// MCPErrors are reported as internal errors.
func ErrorResult(err error) *mcp.CallToolResult {
	if mcpErr, ok := core.AsMCPError(err); ok {
		return mcpErr.ToMCPResult()
	}
	return core.NewError(core.ErrInternalError, err.Error()).ToMCPResult()
}
