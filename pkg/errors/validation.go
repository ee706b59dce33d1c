package errors

import (
	"regexp"
	"strings"
	"unicode"
)

// MaxNodeIDLength bounds declaration names accepted from input graphs.
const MaxNodeIDLength = 1024

// ValidateNodeID validates a declaration ID from an input graph.
//
// Lean names may contain almost any printable character (including
// unicode and guillemets), so the rules only reject what cannot be
// displayed or stored safely:
//   - No empty IDs
//   - No control characters or null bytes
//   - Maximum length of MaxNodeIDLength bytes
func ValidateNodeID(id string) error {
	if id == "" {
		return New(ErrCodeInvalidGraph, "node ID cannot be empty")
	}
	if len(id) > MaxNodeIDLength {
		return New(ErrCodeInvalidGraph, "node ID too long (max %d characters)", MaxNodeIDLength)
	}
	for _, r := range id {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidGraph, "node ID %q contains control characters", id)
		}
	}
	return nil
}

// projectNameRegex matches project names usable as storage keys.
var projectNameRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// ValidateProject validates a project name used to key persisted positions.
// Project names end up in file names, Redis keys and NATS subjects, so
// they are restricted to a conservative character set.
func ValidateProject(name string) error {
	if name == "" {
		return New(ErrCodeInvalidProject, "project name cannot be empty")
	}
	if len(name) > 128 {
		return New(ErrCodeInvalidProject, "project name too long (max 128 characters)")
	}
	if strings.Contains(name, "..") {
		return New(ErrCodeInvalidProject, "project name cannot contain ..")
	}
	if !projectNameRegex.MatchString(name) {
		return New(ErrCodeInvalidProject, "invalid project name: %q", name)
	}
	return nil
}
