// Package validation provides boundary validation for adsctl.
//
// # Path Validation
//
// Snapshot directories and plan files are named on the command line, which
// makes directory traversal the main input risk. PathValidator confines any
// user-provided path to a base directory before the snapshot loader or plan
// store touches it.
//
// The validator layers several checks:
//
//   - Lexical validation: Rejects absolute paths, ".." components, and Windows reserved names
//   - Path normalization: Cleans and normalizes paths to canonical form
//   - Symbolic link resolution: Resolves all symlinks to their real paths
//   - Containment verification: Ensures the final path is within the base directory
//
// # Usage
//
// For repeated validations (recommended):
//
//	validator, err := validation.NewPathValidator(snapshotRoot)
//	if err != nil {
//	    log.Fatalf("Failed to create validator: %v", err)
//	}
//
//	safePath, err := validator.Validate(userInput)
//	if err != nil {
//	    return fmt.Errorf("invalid snapshot path: %w", err)
//	}
//	snap, err := snapshot.Load(safePath)
//
// For one-off validations:
//
//	safePath, err := validation.ValidateSecurePath(snapshotRoot, userInput)
//
// # Identifier Validation
//
// Plan, apply, and snapshot IDs double as filenames and keyring entries;
// IsValidIdentifier and IsValidRuleID reject anything outside the safe
// character set before an ID is used to build a path.
//
// # Thread Safety
//
// All types in this package are safe for concurrent use by multiple goroutines.
package validation
