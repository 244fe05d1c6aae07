package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/geosoil-inc/geosoil-engine/pkg/apperrors"
	"github.com/geosoil-inc/geosoil-engine/pkg/geo"
	"github.com/geosoil-inc/geosoil-engine/pkg/models"
)

// DefaultProfilePageSize applies when a listing has no limit parameter.
const DefaultProfilePageSize = 100

// ParseSourceID extracts the numeric source ID from the path parameter id.
func ParseSourceID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (int64, bool) {
	return parseInt64(w, r, "id", "invalid_source_id", "Invalid source ID", logger)
}

// ParseProfileID extracts the numeric profile ID from the path parameter id.
func ParseProfileID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (int64, bool) {
	return parseInt64(w, r, "id", "invalid_profile_id", "Invalid profile ID", logger)
}

// ParseRunID extracts the ingestion run UUID from the path parameter id.
func ParseRunID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_run_id", "Invalid ingestion run ID format"); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return uuid.Nil, false
	}
	return id, true
}

func parseInt64(w http.ResponseWriter, r *http.Request, pathParam, errorCode, errorMessage string, logger *zap.Logger) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(pathParam), 10, 64)
	if err != nil || id <= 0 {
		if err := ErrorResponse(w, http.StatusBadRequest, errorCode, errorMessage); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return 0, false
	}
	return id, true
}

// parseProfileFilter reads source, bbox, limit and offset from the query.
// source may repeat or hold a comma-separated list.
func parseProfileFilter(r *http.Request) (models.ProfileFilter, error) {
	q := r.URL.Query()
	filter := models.ProfileFilter{Limit: DefaultProfilePageSize}

	for _, v := range q["source"] {
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				filter.SourceNames = append(filter.SourceNames, name)
			}
		}
	}

	if v := q.Get("bbox"); v != "" {
		bbox, err := geo.ParseBBox(v)
		if err != nil {
			return filter, err
		}
		filter.BBox = bbox
	}

	var err error
	if filter.Limit, err = queryInt(q.Get("limit"), "limit", DefaultProfilePageSize); err != nil {
		return filter, err
	}
	if filter.Offset, err = queryInt(q.Get("offset"), "offset", 0); err != nil {
		return filter, err
	}
	return filter, nil
}

func queryInt(v, name string, def int) (int, error) {
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer, got %q: %w", name, v, apperrors.ErrInvalidValue)
	}
	return n, nil
}
