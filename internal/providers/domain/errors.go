// Package domain holds typed errors for the providers bounded context.
package domain

import "servicesartisans_backend/platform/apperr"

var (
	// ErrProviderNotFound signals a missing provider profile.
	ErrProviderNotFound = apperr.NotFound("provider not found")

	// ErrDuplicateEmail rejects a second profile with the same email.
	ErrDuplicateEmail = apperr.Conflict("a provider with this email already exists")
)
