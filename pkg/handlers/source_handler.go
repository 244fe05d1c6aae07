package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/geosoil-inc/geosoil-engine/pkg/adapters/soilsource"
	"github.com/geosoil-inc/geosoil-engine/pkg/auth"
	"github.com/geosoil-inc/geosoil-engine/pkg/models"
	"github.com/geosoil-inc/geosoil-engine/pkg/services"
)

// CreateSourceRequest for POST /api/sources
type CreateSourceRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	URL         *string `json:"url,omitempty"`
}

// SourceListResponse for GET /api/sources
type SourceListResponse struct {
	Sources []*models.Source `json:"sources"`
	Total   int              `json:"total"`
}

// AdapterCatalog lists the registered ingestion adapters.
// *soilsource.Registry implements it.
type AdapterCatalog interface {
	Infos() []soilsource.Info
}

// SourceHandler handles the source catalog.
type SourceHandler struct {
	sourceService services.SourceService
	adapters      AdapterCatalog
	logger        *zap.Logger
}

// NewSourceHandler creates a new source handler.
func NewSourceHandler(sourceService services.SourceService, adapters AdapterCatalog, logger *zap.Logger) *SourceHandler {
	return &SourceHandler{
		sourceService: sourceService,
		adapters:      adapters,
		logger:        logger,
	}
}

// RegisterRoutes registers the source handler's routes on the given mux.
// Creating a source requires the admin role.
func (h *SourceHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	mux.HandleFunc("GET /api/sources", h.List)
	mux.HandleFunc("GET /api/sources/{id}", h.Get)
	mux.HandleFunc("POST /api/sources",
		authMiddleware.RequireAuth(auth.RequireRole(auth.RoleAdmin)(h.Create)))
	mux.HandleFunc("GET /api/source-adapters", h.ListAdapters)
}

// List handles GET /api/sources
func (h *SourceHandler) List(w http.ResponseWriter, r *http.Request) {
	sources, err := h.sourceService.List(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, "Failed to list sources", err)
		return
	}

	response := SourceListResponse{Sources: sources, Total: len(sources)}
	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: response}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Get handles GET /api/sources/{id}
func (h *SourceHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseSourceID(w, r, h.logger)
	if !ok {
		return
	}

	source, err := h.sourceService.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, "Failed to get source", err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: source}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Create handles POST /api/sources
func (h *SourceHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateSourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	source := &models.Source{
		Name:        req.Name,
		Description: req.Description,
		URL:         req.URL,
	}
	if err := h.sourceService.Create(r.Context(), source); err != nil {
		writeServiceError(w, h.logger, "Failed to create source", err)
		return
	}

	h.logger.Info("Source created",
		zap.String("source", source.Name),
		zap.String("user_id", auth.UserIDFromContext(r.Context())))

	if err := WriteJSON(w, http.StatusCreated, ApiResponse{Success: true, Data: source}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// ListAdapters handles GET /api/source-adapters
func (h *SourceHandler) ListAdapters(w http.ResponseWriter, r *http.Request) {
	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: h.adapters.Infos()}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
