package tools

import (
	"context"
	"encoding/base64"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/NERVsystems/ecoroute/pkg/core"
	"github.com/NERVsystems/ecoroute/pkg/detector"
)

// DetectCropDiseaseTool returns a tool definition for the disease detector
func DetectCropDiseaseTool() mcp.Tool {
	return mcp.NewTool("detect_crop_disease",
		mcp.WithDescription("Predict a crop disease from an uploaded image and return precautions, solution, pesticide type and brand. Known labels: "+strings.Join(detector.Labels(), ", ")),
		mcp.WithString("image_name",
			mcp.Required(),
			mcp.Description("File name of the crop image"),
		),
		mcp.WithString("image_base64",
			mcp.Description("Optional base64-encoded image contents"),
		),
	)
}

type detectInput struct {
	ImageName   string `json:"image_name"`
	ImageBase64 string `json:"image_base64" validate:"omitempty,base64"`
}

// DetectOutput is the detect_crop_disease result.
type DetectOutput struct {
	*detector.Diagnosis
	HTML string `json:"html"`
}

// HandleDetectCropDisease runs the detector.
func (r *Registry) HandleDetectCropDisease() server.ToolHandlerFunc {
	return WithParsedInput("detect_crop_disease", r.logger, func(ctx context.Context, in detectInput, logger *slog.Logger) (any, error) {
		var data []byte
		if in.ImageBase64 != "" {
			decoded, err := base64.StdEncoding.DecodeString(in.ImageBase64)
			if err != nil {
				return nil, core.NewValidationError(core.ErrInvalidParameter, "image_base64 is not valid base64")
			}
			data = decoded
		}

		return Diagnose(ctx, r.deps.Detector, detector.Image{Name: in.ImageName, Data: data})
	})
}

// Diagnose runs d on img and renders the advice block.
func Diagnose(ctx context.Context, d *detector.Detector, img detector.Image) (*DetectOutput, error) {
	diag, err := d.Detect(ctx, img)
	if err != nil {
		return nil, err
	}
	html, err := detector.RenderHTML(diag)
	if err != nil {
		return nil, core.NewError(core.ErrInternalError, err.Error())
	}
	return &DetectOutput{Diagnosis: diag, HTML: html}, nil
}
