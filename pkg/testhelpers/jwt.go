// Package testhelpers provides utilities for testing geosoil-engine components.
package testhelpers

import (
	"encoding/base64"
	"encoding/json"
)

// GenerateTestJWT creates an unsigned token (alg: none) for servers running
// with verification disabled. The audience is "geosoil".
func GenerateTestJWT(sub string, roles ...string) string {
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"none","typ":"JWT"}`))

	payload := map[string]any{"sub": sub, "aud": "geosoil"}
	if len(roles) > 0 {
		payload["roles"] = roles
	}
	body, _ := json.Marshal(payload)

	return header + "." + base64.RawURLEncoding.EncodeToString(body) + "."
}

// GenerateTestJWTWithBearer returns the token with a "Bearer " prefix for the
// Authorization header.
func GenerateTestJWTWithBearer(sub string, roles ...string) string {
	return "Bearer " + GenerateTestJWT(sub, roles...)
}
