// Package constants provides shared constants used across the codebase.
// Tunable defaults live in internal/config/defaults.yaml instead.
package constants

// Image constants
const (
	// MaxImageSize is the maximum dimension (width or height) sent to the
	// embedding sidecar; larger uploads are downscaled first
	MaxImageSize = 1920

	// MaxUploadBytes caps multipart image uploads
	MaxUploadBytes = 16 << 20
)

// Auth constants
const (
	// MinPasswordLength is the minimum accepted password length
	MinPasswordLength = 8

	// MinNameLength is the minimum accepted teacher name length
	MinNameLength = 2
)
