package handlers

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/geosoil-inc/geosoil-engine/pkg/models"
	"github.com/geosoil-inc/geosoil-engine/pkg/services"
)

// TotalCountHeader carries the unpaged match count of a profile listing.
const TotalCountHeader = "X-Total-Count"

// LayerListResponse for GET /api/soil-profiles/{id}/layers
type LayerListResponse struct {
	ProfileID int64           `json:"profile_id"`
	Layers    []*models.Layer `json:"layers"`
	Total     int             `json:"total"`
}

// ProfileHandler serves soil profiles as GeoJSON.
type ProfileHandler struct {
	profileService services.ProfileService
	logger         *zap.Logger
}

// NewProfileHandler creates a new profile handler.
func NewProfileHandler(profileService services.ProfileService, logger *zap.Logger) *ProfileHandler {
	return &ProfileHandler{
		profileService: profileService,
		logger:         logger,
	}
}

// RegisterRoutes registers the profile handler's routes on the given mux.
func (h *ProfileHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/soil-profiles", h.List)
	mux.HandleFunc("GET /api/soil-profiles/{id}", h.Get)
	mux.HandleFunc("GET /api/soil-profiles/{id}/layers", h.ListLayers)
}

// List handles GET /api/soil-profiles and answers a FeatureCollection.
func (h *ProfileHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, err := parseProfileFilter(r)
	if err != nil {
		writeServiceError(w, h.logger, "Invalid profile filter", err)
		return
	}

	page, err := h.profileService.ListFeatures(r.Context(), filter)
	if err != nil {
		writeServiceError(w, h.logger, "Failed to list soil profiles", err)
		return
	}

	w.Header().Set(TotalCountHeader, strconv.FormatInt(page.Total, 10))
	if err := writeGeoJSON(w, page.Collection); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Get handles GET /api/soil-profiles/{id} and answers a Feature.
func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseProfileID(w, r, h.logger)
	if !ok {
		return
	}

	feature, err := h.profileService.GetFeature(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, "Failed to get soil profile", err)
		return
	}

	if err := writeGeoJSON(w, feature); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// ListLayers handles GET /api/soil-profiles/{id}/layers
func (h *ProfileHandler) ListLayers(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseProfileID(w, r, h.logger)
	if !ok {
		return
	}

	layers, err := h.profileService.ListLayers(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, "Failed to list layers", err)
		return
	}
	if layers == nil {
		layers = []*models.Layer{}
	}

	response := LayerListResponse{ProfileID: id, Layers: layers, Total: len(layers)}
	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: response}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
