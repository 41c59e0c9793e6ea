package validation

import "strings"

// IsValidIdentifierChar checks if a character is valid for identifiers
// (alphanumeric, hyphen, or underscore).
//
// Plan IDs, apply IDs, and snapshot IDs all use this character set; the IDs
// double as filenames, so anything outside it is rejected at the boundary.
func IsValidIdentifierChar(ch rune) bool {
	return (ch >= 'a' && ch <= 'z') ||
		(ch >= 'A' && ch <= 'Z') ||
		(ch >= '0' && ch <= '9') ||
		ch == '-' || ch == '_'
}

// IsValidIdentifier reports whether every character of id is a valid
// identifier character. Empty ids are invalid.
func IsValidIdentifier(id string) bool {
	if id == "" {
		return false
	}
	for _, ch := range id {
		if !IsValidIdentifierChar(ch) {
			return false
		}
	}
	return true
}

// IsValidRuleID reports whether id is a well-formed rule identifier. Rule ids
// are namespaced with at most one slash, "safety/broad-match" or
// "custom/no-competitor-terms".
func IsValidRuleID(id string) bool {
	ns, name, found := strings.Cut(id, "/")
	if !found {
		return IsValidIdentifier(id)
	}
	return IsValidIdentifier(ns) && IsValidIdentifier(name)
}
