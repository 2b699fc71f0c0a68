// Package detector implements the crop-disease detector. The classifier is
// pluggable; the built-in one picks a label at random and never looks at the
// image.
package detector

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/attribute"

	"github.com/NERVsystems/ecoroute/pkg/core"
	"github.com/NERVsystems/ecoroute/pkg/tracing"
)

// Image is an uploaded crop photo. Data may be empty; only the presence of a
// file is required.
type Image struct {
	Name string
	Data []byte
}

// Classifier predicts a disease label for an image.
type Classifier interface {
	Classify(ctx context.Context, img Image) (string, error)
}

// RandomClassifier picks uniformly from the table.
type RandomClassifier struct {
	mu     sync.Mutex
	rng    *rand.Rand
	labels []string
}

// NewRandomClassifier seeds the generator with seed, or from the runtime
// source when seed is zero.
func NewRandomClassifier(seed uint64) *RandomClassifier {
	if seed == 0 {
		seed = rand.Uint64()
	}
	return &RandomClassifier{
		rng:    rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		labels: Labels(),
	}
}

// Classify ignores img.
func (c *RandomClassifier) Classify(ctx context.Context, _ Image) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	c.mu.Lock()
	i := c.rng.IntN(len(c.labels))
	c.mu.Unlock()
	return c.labels[i], nil
}

// Diagnosis is a detector result.
type Diagnosis struct {
	Label  string `json:"label"`
	Advice Advice `json:"advice"`
}

// Recorder is notified of every prediction.
type Recorder interface {
	DiseasePredicted(label string)
}

// Detector turns an upload into a Diagnosis.
type Detector struct {
	classifier Classifier
	recorder   Recorder
	logger     *slog.Logger
}

// New returns a detector. recorder may be nil.
func New(classifier Classifier, recorder Recorder, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{
		classifier: classifier,
		recorder:   recorder,
		logger:     logger.With("component", "detector"),
	}
}

// Detect classifies img. A missing file is a validation error carrying the
// notice "Please select an image.".
func (d *Detector) Detect(ctx context.Context, img Image) (*Diagnosis, error) {
	ctx, span := tracing.StartSpan(ctx, "detector.detect")
	defer span.End()

	if strings.TrimSpace(img.Name) == "" {
		err := core.NewValidationError(core.ErrMissingFile, "no image supplied").
			WithNotice(core.NoticeMissingImage)
		tracing.Fail(span, err)
		return nil, err
	}

	label, err := d.classifier.Classify(ctx, img)
	if err != nil {
		tracing.Fail(span, err)
		return nil, fmt.Errorf("classify %q: %w", img.Name, err)
	}
	advice, ok := Lookup(label)
	if !ok {
		err := core.NewError(core.ErrInternalError, fmt.Sprintf("classifier returned unknown label %q", label))
		tracing.Fail(span, err)
		return nil, err
	}

	span.SetAttributes(attribute.String(tracing.AttrDiseaseLabel, label))
	d.logger.Info("disease predicted", "image", img.Name, "bytes", len(img.Data), "label", label)
	if d.recorder != nil {
		d.recorder.DiseasePredicted(label)
	}
	return &Diagnosis{Label: label, Advice: advice}, nil
}

var adviceTemplate = template.Must(template.New("advice").Parse(`<h2>Predicted disease: {{.Label}}</h2>
<h3>Precautions:</h3>
<ul>
{{- range .Advice.Precautions}}
<li>{{.}}</li>
{{- end}}
</ul>
<h3>Solution:</h3>
<p>{{.Advice.Solution}}</p>
<h3>Type of Pesticide:</h3>
<p>{{.Advice.PesticideType}}</p>
<h3>Brand Name:</h3>
<p>{{.Advice.Brand}}</p>
`))

// RenderHTML renders the advice block for d.
func RenderHTML(d *Diagnosis) (string, error) {
	var buf bytes.Buffer
	if err := adviceTemplate.Execute(&buf, d); err != nil {
		return "", fmt.Errorf("render diagnosis: %w", err)
	}
	return buf.String(), nil
}
