/*
errors.go - Centralized error types for the bonus engine

ERROR CATEGORIES:
  1. Configuration errors - unknown role, invalid parameters
  2. Validation errors - person records that break input rules
  3. Store errors - missing or duplicate records

USAGE:
  Callers match with errors.Is / errors.As:

    if errors.Is(err, bonus.ErrUnknownRole) {
        ...
    }

SEE ALSO:
  - validate.go: produces ValidationError
  - store/sqlite/sqlite.go: returns ErrPersonNotFound
*/
package bonus

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrUnknownRole is returned when a role is not in the catalog.
	// Compute never recovers from it: callers validate roles upstream.
	ErrUnknownRole = errors.New("unknown role")

	// ErrInvalidParameters is returned when a parameter set breaks its invariants.
	ErrInvalidParameters = errors.New("invalid parameters")

	// ErrValidation is returned when a person record has validation errors.
	ErrValidation = errors.New("validation failed")

	// ErrPersonNotFound is returned when a referenced person doesn't exist.
	ErrPersonNotFound = errors.New("person not found")

	// ErrDuplicatePerson is returned when creating a person whose ID is taken.
	ErrDuplicatePerson = errors.New("person already exists")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// UnknownRoleError names the offending role.
type UnknownRoleError struct {
	Role Role
}

func (e *UnknownRoleError) Error() string {
	return fmt.Sprintf("unknown role %q", string(e.Role))
}

func (e *UnknownRoleError) Unwrap() error {
	return ErrUnknownRole
}

// Issue is one field-level finding.
type Issue struct {
	Field   string
	Message string
}

func (i Issue) String() string {
	if i.Field == "" {
		return i.Message
	}
	return i.Field + ": " + i.Message
}

// ParametersError lists every broken parameter invariant.
type ParametersError struct {
	Issues []Issue
}

func (e *ParametersError) Error() string {
	return "invalid parameters: " + joinIssues(e.Issues)
}

func (e *ParametersError) Unwrap() error {
	return ErrInvalidParameters
}

// ValidationError wraps the errors found on one person.
type ValidationError struct {
	PersonID string
	Issues   []Issue
}

func (e *ValidationError) Error() string {
	if e.PersonID == "" {
		return "validation failed: " + joinIssues(e.Issues)
	}
	return fmt.Sprintf("validation failed for %s: %s", e.PersonID, joinIssues(e.Issues))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrUnknownRole) ||
		errors.Is(err, ErrInvalidParameters) ||
		errors.Is(err, ErrValidation)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrPersonNotFound)
}

// IsConflict returns true if the error is a uniqueness violation.
func IsConflict(err error) bool {
	return errors.Is(err, ErrDuplicatePerson)
}

func joinIssues(issues []Issue) string {
	parts := make([]string, len(issues))
	for i, is := range issues {
		parts[i] = is.String()
	}
	return strings.Join(parts, "; ")
}
