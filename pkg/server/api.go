package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/NERVsystems/ecoroute/pkg/core"
	"github.com/NERVsystems/ecoroute/pkg/detector"
	"github.com/NERVsystems/ecoroute/pkg/pipeline"
	"github.com/NERVsystems/ecoroute/pkg/tools"
)

// maxImageBytes caps the cropImage upload.
const maxImageBytes = 8 << 20

// API serves the browser-facing REST endpoints under /api.
type API struct {
	deps   tools.Deps
	logger *slog.Logger
}

// NewAPI builds the REST handlers over the same services as the MCP tools.
func NewAPI(deps tools.Deps, logger *slog.Logger) *API {
	if logger == nil {
		logger = slog.Default()
	}
	return &API{deps: deps, logger: logger.With("component", "api")}
}

// Register mounts the endpoints on mux. Method-qualified patterns make
// other methods answer 405.
func (a *API) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/route", a.handleRoute)
	mux.HandleFunc("POST /api/detect", a.handleDetect)
	mux.HandleFunc("GET /api/map", a.handleMap)
	mux.HandleFunc("GET /api/emissions", a.handleEmissions)
}

// routeForm is the trip form: JSON body or url-encoded/multipart fields.
type routeForm struct {
	StartAddress string `json:"startAddress"`
	EndAddress   string `json:"endAddress"`
	Vehicle      string `json:"vehicle" validate:"omitempty,oneof=car bus ev cycle"`
}

func decodeRouteForm(r *http.Request) (routeForm, error) {
	var form routeForm

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		if err := json.NewDecoder(r.Body).Decode(&form); err != nil && !errors.Is(err, io.EOF) {
			return form, core.NewValidationError(core.ErrInvalidInput, "request body is not valid JSON")
		}
	} else {
		if err := r.ParseMultipartForm(1 << 20); err != nil && !errors.Is(err, http.ErrNotMultipart) {
			return form, core.NewValidationError(core.ErrInvalidInput, "request form could not be parsed")
		}
		form = routeForm{
			StartAddress: r.FormValue("startAddress"),
			EndAddress:   r.FormValue("endAddress"),
			Vehicle:      r.FormValue("vehicle"),
		}
	}

	form.Vehicle = strings.ToLower(strings.TrimSpace(form.Vehicle))
	if err := tools.Validate(form); err != nil {
		return form, err
	}
	return form, nil
}

func (a *API) handleRoute(w http.ResponseWriter, r *http.Request) {
	form, err := decodeRouteForm(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	session := sessionID(r)
	res, err := a.deps.Planner.Plan(r.Context(), pipeline.Request{
		StartAddress: form.StartAddress,
		EndAddress:   form.EndAddress,
		Mode:         form.Vehicle,
		SessionID:    session,
	}, a.deps.Sessions.Get(session))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tools.NewPlanTripOutput(session, res))
}

func (a *API) handleDetect(w http.ResponseWriter, r *http.Request) {
	img, err := readCropImage(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	out, err := tools.Diagnose(r.Context(), a.deps.Detector, img)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// readCropImage reads the cropImage multipart field. A missing file yields
// an empty Image so the detector reports the missing-file notice.
func readCropImage(r *http.Request) (detector.Image, error) {
	if err := r.ParseMultipartForm(maxImageBytes); err != nil {
		if errors.Is(err, http.ErrNotMultipart) {
			return detector.Image{}, nil
		}
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return detector.Image{}, core.NewValidationError(core.ErrInvalidParameter, "image is too large")
		}
		return detector.Image{}, core.NewValidationError(core.ErrInvalidInput, "upload could not be parsed")
	}

	file, header, err := r.FormFile("cropImage")
	if errors.Is(err, http.ErrMissingFile) {
		return detector.Image{}, nil
	}
	if err != nil {
		return detector.Image{}, core.NewValidationError(core.ErrInvalidInput, "upload could not be read")
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxImageBytes))
	if err != nil {
		return detector.Image{}, core.NewValidationError(core.ErrInvalidInput, "upload could not be read")
	}
	return detector.Image{Name: header.Filename, Data: data}, nil
}

func (a *API) handleMap(w http.ResponseWriter, r *http.Request) {
	id := sessionID(r)
	if q := strings.TrimSpace(r.URL.Query().Get("session")); q != "" {
		id = q
	}

	// reads never create a session
	surface, ok := a.deps.Sessions.Peek(id)
	if !ok {
		a.writeError(w, r, core.NewError(core.ErrSessionNotFound, "no map for session "+id).
			WithNotice("Map session not found"))
		return
	}
	view, err := tools.Snapshot(id, surface)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *API) handleEmissions(w http.ResponseWriter, r *http.Request) {
	out, err := tools.ReadEmissions(r.Context(), a.deps.Store)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// writeError maps err to a status by category. Validation and not-found
// failures carry the user notice as "alert"; transport and empty-route
// failures were already logged by the pipeline and answer with a bare
// aborted status.
func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch core.Classify(err) {
	case core.CategoryValidation:
		notice, _ := core.UserNotice(err)
		writeJSON(w, http.StatusBadRequest, map[string]string{"alert": notice})
	case core.CategoryNotFound:
		notice, _ := core.UserNotice(err)
		writeJSON(w, http.StatusNotFound, map[string]string{"alert": notice})
	case core.CategoryTransport, core.CategoryEmptyRoute:
		writeJSON(w, http.StatusBadGateway, map[string]string{"status": "aborted"})
	default:
		a.logger.Error("request failed",
			"request_id", RequestID(r.Context()),
			"path", r.URL.Path,
			"error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
