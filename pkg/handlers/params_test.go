package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func TestParseProfileID(t *testing.T) {
	logger := zap.NewNop()

	tests := []struct {
		name      string
		pathValue string
		wantOK    bool
		wantID    int64
	}{
		{"valid id", "42", true, 42},
		{"not a number", "abc", false, 0},
		{"zero", "0", false, 0},
		{"negative", "-3", false, 0},
		{"empty", "", false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			req.SetPathValue("id", tt.pathValue)
			rec := httptest.NewRecorder()

			id, ok := ParseProfileID(rec, req, logger)

			if ok != tt.wantOK {
				t.Errorf("ParseProfileID() ok = %v, want %v", ok, tt.wantOK)
			}
			if id != tt.wantID {
				t.Errorf("ParseProfileID() id = %d, want %d", id, tt.wantID)
			}
			if !tt.wantOK {
				if rec.Code != http.StatusBadRequest {
					t.Errorf("expected status 400, got %d", rec.Code)
				}
				var body map[string]string
				if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
					t.Fatalf("failed to decode response: %v", err)
				}
				if body["error"] != "invalid_profile_id" {
					t.Errorf("error = %q, want invalid_profile_id", body["error"])
				}
			}
		})
	}
}

func TestParseRunID(t *testing.T) {
	logger := zap.NewNop()
	id := uuid.New()

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.SetPathValue("id", id.String())
	got, ok := ParseRunID(httptest.NewRecorder(), req, logger)
	if !ok || got != id {
		t.Errorf("ParseRunID() = %v, %v; want %v, true", got, ok, id)
	}

	req.SetPathValue("id", "not-a-uuid")
	rec := httptest.NewRecorder()
	if _, ok := ParseRunID(rec, req, logger); ok {
		t.Error("expected invalid run id to fail")
	}
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rec.Code)
	}
}
