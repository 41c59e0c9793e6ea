package validation

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// PathValidator validates user-provided file paths against a base directory.
// Snapshot directories and plan files are named on the command line, so every
// path crossing that boundary is checked before it reaches the loader.
//
// Validation layers:
//   - Lexical validation (reject absolute paths, .., reserved names)
//   - Path normalization
//   - Symbolic link resolution
//   - Containment verification
//
// Thread-safe for concurrent use.
type PathValidator struct {
	basePath     string
	resolvedBase string
	maxPathLen   int
}

// ValidationError represents a path validation failure with context for logging.
type ValidationError struct {
	UserPath     string    // Original user input that was rejected
	Reason       string    // Human-readable reason for rejection
	ResolvedPath string    // Resolved path if resolution succeeded (may be empty)
	Timestamp    time.Time // When the validation error occurred
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.ResolvedPath != "" {
		return fmt.Sprintf("path validation failed: %s (input: %s, resolved: %s)",
			e.Reason, e.UserPath, e.ResolvedPath)
	}
	return fmt.Sprintf("path validation failed: %s (input: %s)", e.Reason, e.UserPath)
}

// NewPathValidator creates a new path validator for the given base directory.
//
// The base directory must be an absolute path and must exist. All validated
// paths are restricted to this directory and its subdirectories.
func NewPathValidator(basePath string) (*PathValidator, error) {
	if basePath == "" {
		return nil, fmt.Errorf("base path cannot be empty")
	}

	if !filepath.IsAbs(basePath) {
		return nil, fmt.Errorf("base path must be absolute: %s", basePath)
	}

	info, err := os.Stat(basePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("base path does not exist: %s", basePath)
		}
		return nil, fmt.Errorf("cannot access base path: %w", err)
	}

	if !info.IsDir() {
		return nil, fmt.Errorf("base path is not a directory: %s", basePath)
	}

	resolvedBase, err := filepath.EvalSymlinks(basePath)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve symbolic links in base path: %w", err)
	}

	return &PathValidator{
		basePath:     basePath,
		resolvedBase: resolvedBase,
		maxPathLen:   1024,
	}, nil
}

// Validate validates that userPath is safe to access within the base
// directory.
//
// Returns the validated absolute path if safe, or error if the path:
//   - Is empty
//   - Escapes the base directory (via .., absolute paths, or symlinks)
//   - Contains Windows reserved names (CON, PRN, etc.)
//   - Exceeds maximum path length
//   - Cannot be resolved
//
// The returned path is guaranteed to be absolute, within the base directory
// after symlink resolution, and safe to hand to the os package.
func (v *PathValidator) Validate(userPath string) (string, error) {
	if userPath == "" {
		return "", &ValidationError{
			UserPath:  userPath,
			Reason:    "path cannot be empty",
			Timestamp: time.Now(),
		}
	}

	if len(userPath) > v.maxPathLen {
		return "", &ValidationError{
			UserPath:  userPath,
			Reason:    fmt.Sprintf("path length exceeds maximum of %d bytes", v.maxPathLen),
			Timestamp: time.Now(),
		}
	}

	// filepath.IsLocal rejects absolute paths, paths starting with "..",
	// and Windows reserved names.
	if !filepath.IsLocal(userPath) {
		return "", &ValidationError{
			UserPath:  userPath,
			Reason:    "path escapes allowed directory",
			Timestamp: time.Now(),
		}
	}

	cleanPath := filepath.Clean(userPath)
	fullPath := filepath.Join(v.basePath, cleanPath)

	resolvedPath, err := filepath.EvalSymlinks(fullPath)
	if err != nil {
		// The target may not exist yet (plan files about to be written), so
		// fall back to resolving the nearest existing ancestor.
		parent := filepath.Dir(fullPath)
		resolvedParent, parentErr := filepath.EvalSymlinks(parent)
		if parentErr != nil {
			grandParent := filepath.Dir(parent)
			resolvedGrandParent, grandErr := filepath.EvalSymlinks(grandParent)
			if grandErr != nil {
				return "", &ValidationError{
					UserPath:  userPath,
					Reason:    "cannot resolve path",
					Timestamp: time.Now(),
				}
			}
			resolvedPath = filepath.Join(resolvedGrandParent, filepath.Base(parent), filepath.Base(fullPath))
		} else {
			resolvedPath = filepath.Join(resolvedParent, filepath.Base(fullPath))
		}
	}

	relPath, err := filepath.Rel(v.resolvedBase, resolvedPath)
	if err != nil {
		return "", &ValidationError{
			UserPath:     userPath,
			Reason:       "path is not relative to base",
			ResolvedPath: resolvedPath,
			Timestamp:    time.Now(),
		}
	}

	if strings.HasPrefix(relPath, "..") {
		return "", &ValidationError{
			UserPath:     userPath,
			Reason:       "resolved path escapes base directory",
			ResolvedPath: resolvedPath,
			Timestamp:    time.Now(),
		}
	}

	if runtime.GOOS == "windows" {
		if err := v.checkWindowsReservedNames(cleanPath); err != nil {
			return "", err
		}
	}

	return resolvedPath, nil
}

// checkWindowsReservedNames checks if the path contains Windows reserved names.
func (v *PathValidator) checkWindowsReservedNames(path string) error {
	reserved := []string{
		"CON", "PRN", "AUX", "NUL",
		"COM1", "COM2", "COM3", "COM4", "COM5",
		"COM6", "COM7", "COM8", "COM9",
		"LPT1", "LPT2", "LPT3", "LPT4", "LPT5",
		"LPT6", "LPT7", "LPT8", "LPT9",
	}

	parts := strings.Split(filepath.ToSlash(path), "/")
	for _, part := range parts {
		if part == "" {
			continue
		}

		base := strings.ToUpper(part)
		if idx := strings.Index(base, "."); idx != -1 {
			base = base[:idx]
		}

		for _, r := range reserved {
			if base == r {
				return &ValidationError{
					UserPath:  path,
					Reason:    fmt.Sprintf("Windows reserved name not allowed: %s", part),
					Timestamp: time.Now(),
				}
			}
		}
	}

	return nil
}

// ValidateSecurePath is a convenience function that validates a path without
// creating a PathValidator instance. For repeated validations, create a
// PathValidator to avoid re-resolving the base path.
func ValidateSecurePath(basePath, userPath string) (string, error) {
	validator, err := NewPathValidator(basePath)
	if err != nil {
		return "", fmt.Errorf("invalid base path: %w", err)
	}
	return validator.Validate(userPath)
}
