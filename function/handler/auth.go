// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package handler

import "crypto/subtle"

// ForbiddenMessage is the only detail given to callers that fail authorization.
const ForbiddenMessage = "Forbidden."

// AuthConfig holds the shared secret callers must present. A nil config or an
// empty secret means no authorization is required.
type AuthConfig struct {
	Secret string
}

// NewAuthConfig returns nil for an empty secret.
func NewAuthConfig(secret string) *AuthConfig {
	if secret == "" {
		return nil
	}
	return &AuthConfig{Secret: secret}
}

// Required reports whether callers must present a credential.
func (a *AuthConfig) Required() bool {
	return a != nil && a.Secret != ""
}

// Authorize reports whether credential matches the configured secret exactly.
func Authorize(credential string, cfg *AuthConfig) bool {
	if !cfg.Required() {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(credential), []byte(cfg.Secret)) == 1
}
