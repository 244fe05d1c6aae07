package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/geosoil-inc/geosoil-engine/pkg/adapters/soilsource"
	"github.com/geosoil-inc/geosoil-engine/pkg/apperrors"
	"github.com/geosoil-inc/geosoil-engine/pkg/auth"
	"github.com/geosoil-inc/geosoil-engine/pkg/models"
	"github.com/geosoil-inc/geosoil-engine/pkg/services"
	"github.com/geosoil-inc/geosoil-engine/pkg/tabular"
)

// multipartMemory is how much of an upload is buffered in memory before
// net/http spills it to a temp file.
const multipartMemory = 8 << 20

// IngestionHandler accepts tabular uploads and reports ingestion runs.
type IngestionHandler struct {
	ingestionService services.IngestionService
	maxUploadBytes   int64
	logger           *zap.Logger
}

// NewIngestionHandler creates a new ingestion handler. Request bodies larger
// than maxUploadBytes are rejected with 413.
func NewIngestionHandler(ingestionService services.IngestionService, maxUploadBytes int64, logger *zap.Logger) *IngestionHandler {
	return &IngestionHandler{
		ingestionService: ingestionService,
		maxUploadBytes:   maxUploadBytes,
		logger:           logger,
	}
}

// RegisterRoutes registers the ingestion handler's routes on the given mux.
// Uploads require the admin or editor role.
func (h *IngestionHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	canWrite := auth.RequireRole(auth.RoleAdmin, auth.RoleEditor)

	mux.HandleFunc("POST /api/soil-profiles/create-from-csv",
		authMiddleware.RequireAuth(canWrite(h.UploadProfiles)))
	mux.HandleFunc("POST /api/layers/create-from-csv",
		authMiddleware.RequireAuth(canWrite(h.UploadLayers)))
	mux.HandleFunc("GET /api/ingestion-runs/{id}", h.GetRun)
}

// UploadProfiles handles POST /api/soil-profiles/create-from-csv
// Form fields: file, source, type_location (LT|CT), projection_zone (EPSG),
// encoding (utf-8|latin-1).
func (h *IngestionHandler) UploadProfiles(w http.ResponseWriter, r *http.Request) {
	h.upload(w, r, models.IngestionKindProfiles)
}

// UploadLayers handles POST /api/layers/create-from-csv
// Form fields: file, source, encoding.
func (h *IngestionHandler) UploadLayers(w http.ResponseWriter, r *http.Request) {
	h.upload(w, r, models.IngestionKindLayers)
}

func (h *IngestionHandler) upload(w http.ResponseWriter, r *http.Request, kind string) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(w, http.StatusRequestEntityTooLarge, "file_too_large",
				fmt.Sprintf("Upload exceeds %d bytes", h.maxUploadBytes))
			return
		}
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Expected a multipart form upload")
		return
	}
	defer func() {
		if err := r.MultipartForm.RemoveAll(); err != nil {
			h.logger.Warn("Failed to remove multipart temp files", zap.Error(err))
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "missing_file", "Form field 'file' is required")
		return
	}
	defer file.Close()

	req, err := uploadRequest(r, kind)
	if err != nil {
		writeServiceError(w, h.logger, "Invalid upload parameters", err)
		return
	}
	req.FileName = header.Filename
	req.File = file

	h.logger.Info("Upload received",
		zap.String("kind", kind),
		zap.String("source", req.Source),
		zap.String("file_name", header.Filename),
		zap.Int64("size", header.Size),
		zap.String("user_id", auth.UserIDFromContext(r.Context())))

	var report *models.IngestionReport
	if kind == models.IngestionKindLayers {
		report, err = h.ingestionService.IngestLayers(r.Context(), req)
	} else {
		report, err = h.ingestionService.IngestProfiles(r.Context(), req)
	}
	if err != nil {
		// The service already logged the run outcome.
		writeRunError(w, h.logger, report, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: report}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// uploadRequest reads the non-file form fields. Layers ignore the location
// fields.
func uploadRequest(r *http.Request, kind string) (services.IngestRequest, error) {
	req := services.IngestRequest{Source: strings.TrimSpace(r.FormValue("source"))}

	enc, err := tabular.ParseTextEncoding(r.FormValue("encoding"))
	if err != nil {
		return req, err
	}
	req.Encoding = enc

	if kind == models.IngestionKindLayers {
		return req, nil
	}

	lt, err := soilsource.ParseLocationType(r.FormValue("type_location"))
	if err != nil {
		return req, err
	}
	req.LocationType = lt

	if v := strings.TrimSpace(r.FormValue("projection_zone")); v != "" {
		epsg, err := strconv.Atoi(v)
		if err != nil || epsg < 0 {
			return req, fmt.Errorf("projection_zone must be an EPSG code, got %q: %w", v, apperrors.ErrProjection)
		}
		req.ProjectionEPSG = epsg
	}
	return req, nil
}

// GetRun handles GET /api/ingestion-runs/{id}
func (h *IngestionHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseRunID(w, r, h.logger)
	if !ok {
		return
	}

	run, err := h.ingestionService.GetRun(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, "Failed to get ingestion run", err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: run}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

func (h *IngestionHandler) writeError(w http.ResponseWriter, status int, code, message string) {
	if err := ErrorResponse(w, status, code, message); err != nil {
		h.logger.Error("Failed to write error response", zap.Error(err))
	}
}
