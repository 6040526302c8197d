package errors

import (
	"math"
	"strings"
	"unicode"
)

// ValidateBaseName validates a label or image base name.
// Base names are used to build output paths, so they must be plain file
// names: non-empty, no path separators, no control characters and no
// traversal sequences.
func ValidateBaseName(name string) error {
	if name == "" {
		return New(ErrCodeInvalidInput, "base name cannot be empty")
	}

	if len(name) > 256 {
		return New(ErrCodeInvalidInput, "base name too long (max 256 characters)")
	}

	for _, r := range name {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidInput, "base name contains invalid control characters")
		}
	}

	if strings.ContainsAny(name, "/\\") {
		return New(ErrCodeInvalidInput, "base name cannot contain path separators: %q", name)
	}

	if strings.Contains(name, "..") {
		return New(ErrCodeInvalidInput, "base name cannot contain path traversal sequences (..)")
	}

	return nil
}

// ValidateDir validates a directory argument.
// Directories may be absolute or relative but must be non-empty and free of
// null bytes.
func ValidateDir(path string) error {
	if path == "" {
		return New(ErrCodeConfiguration, "directory cannot be empty")
	}

	if strings.ContainsRune(path, '\x00') {
		return New(ErrCodeConfiguration, "directory contains invalid characters")
	}

	return nil
}

// ValidatePixelSize validates a patch or mask size in pixels.
func ValidatePixelSize(name string, w, h int) error {
	if w <= 0 || h <= 0 {
		return New(ErrCodeConfiguration, "%s size must be positive, got %dx%d", name, w, h)
	}
	return nil
}

// ValidateFraction validates a value expressed as a fraction of the image
// size, such as a label width or a minimum distance.
func ValidateFraction(name string, v float64) error {
	if math.IsNaN(v) || v < 0 || v > 1 {
		return New(ErrCodeConfiguration, "%s must be within [0, 1], got %v", name, v)
	}
	return nil
}
