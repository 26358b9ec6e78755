package errors

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
)

// AppError is the base interface for all application errors
type AppError interface {
	error
	HTTPStatus() int
	Code() string
}

// NotFoundError represents a resource that was not found
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s '%s' not found", e.Resource, e.ID)
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

func (e *NotFoundError) HTTPStatus() int {
	return http.StatusNotFound
}

func (e *NotFoundError) Code() string {
	return "NOT_FOUND"
}

// NewNotFoundError creates a new NotFoundError
func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// ValidationError represents invalid input on a single field
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

func (e *ValidationError) HTTPStatus() int {
	return http.StatusBadRequest
}

func (e *ValidationError) Code() string {
	return "VALIDATION_ERROR"
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// ValidationErrors carries every per-field and composite error of one validation pass.
// FirstField is the first offending field in assembled order.
type ValidationErrors struct {
	Fields     map[string]string
	FirstField string
}

func (e *ValidationErrors) Error() string {
	if len(e.Fields) == 1 {
		for field, msg := range e.Fields {
			return fmt.Sprintf("validation failed: %s: %s", field, msg)
		}
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return fmt.Sprintf("validation failed on %d fields: %v", len(e.Fields), keys)
}

func (e *ValidationErrors) HTTPStatus() int {
	return http.StatusUnprocessableEntity
}

func (e *ValidationErrors) Code() string {
	return "VALIDATION_FAILED"
}

// NewValidationErrors creates a ValidationErrors from a field->message map
func NewValidationErrors(fields map[string]string, first string) *ValidationErrors {
	return &ValidationErrors{Fields: fields, FirstField: first}
}

// RegistryUnavailableError means the field configuration could not be fetched.
// It is never equivalent to an empty configuration.
type RegistryUnavailableError struct {
	TenantID   string
	EntityType string
	Cause      error
}

func (e *RegistryUnavailableError) Error() string {
	return fmt.Sprintf("field registry unavailable for %s/%s: %v", e.TenantID, e.EntityType, e.Cause)
}

func (e *RegistryUnavailableError) HTTPStatus() int {
	return http.StatusServiceUnavailable
}

func (e *RegistryUnavailableError) Code() string {
	return "REGISTRY_UNAVAILABLE"
}

// Retryable tells the caller to offer a retry action
func (e *RegistryUnavailableError) Retryable() bool {
	return true
}

func (e *RegistryUnavailableError) Unwrap() error {
	return e.Cause
}

// NewRegistryUnavailableError creates a new RegistryUnavailableError
func NewRegistryUnavailableError(tenantID, entityType string, cause error) *RegistryUnavailableError {
	return &RegistryUnavailableError{TenantID: tenantID, EntityType: entityType, Cause: cause}
}

// LookupError means a dependent selector's candidate fetch failed
type LookupError struct {
	Field string
	Cause error
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("candidate lookup for field '%s' failed: %v", e.Field, e.Cause)
}

func (e *LookupError) HTTPStatus() int {
	return http.StatusBadGateway
}

func (e *LookupError) Code() string {
	return "LOOKUP_FAILED"
}

func (e *LookupError) Unwrap() error {
	return e.Cause
}

// NewLookupError creates a new LookupError
func NewLookupError(field string, cause error) *LookupError {
	return &LookupError{Field: field, Cause: cause}
}

// Save scopes
const (
	SaveScopeRegistry = "registry"
	SaveScopeRecord   = "record"
)

// SaveError means a registry or record write was rejected.
// In-memory state is left untouched so the caller can retry.
type SaveError struct {
	Scope string
	Cause error
}

func (e *SaveError) Error() string {
	return fmt.Sprintf("%s save failed: %v", e.Scope, e.Cause)
}

func (e *SaveError) HTTPStatus() int {
	return http.StatusBadGateway
}

func (e *SaveError) Code() string {
	return "SAVE_FAILED"
}

func (e *SaveError) Unwrap() error {
	return e.Cause
}

// NewSaveError creates a new SaveError
func NewSaveError(scope string, cause error) *SaveError {
	return &SaveError{Scope: scope, Cause: cause}
}

// ConflictError represents an operation not allowed in the current state
type ConflictError struct {
	Resource string
	Reason   string
}

func (e *ConflictError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s: %s", e.Resource, e.Reason)
	}
	return fmt.Sprintf("%s conflict", e.Resource)
}

func (e *ConflictError) HTTPStatus() int {
	return http.StatusConflict
}

func (e *ConflictError) Code() string {
	return "CONFLICT"
}

// NewConflictError creates a new ConflictError
func NewConflictError(resource, reason string) *ConflictError {
	return &ConflictError{Resource: resource, Reason: reason}
}

// UnauthorizedError represents a missing or invalid tenant scope
type UnauthorizedError struct {
	Reason string
}

func (e *UnauthorizedError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("unauthorized: %s", e.Reason)
	}
	return "unauthorized"
}

func (e *UnauthorizedError) HTTPStatus() int {
	return http.StatusUnauthorized
}

func (e *UnauthorizedError) Code() string {
	return "UNAUTHORIZED"
}

// NewUnauthorizedError creates a new UnauthorizedError
func NewUnauthorizedError(reason string) *UnauthorizedError {
	return &UnauthorizedError{Reason: reason}
}

// InternalError represents unexpected server errors
type InternalError struct {
	Message string
	Cause   error
}

func (e *InternalError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("internal error: %s (caused by: %v)", e.Message, e.Cause)
	}
	return fmt.Sprintf("internal error: %s", e.Message)
}

func (e *InternalError) HTTPStatus() int {
	return http.StatusInternalServerError
}

func (e *InternalError) Code() string {
	return "INTERNAL_ERROR"
}

func (e *InternalError) Unwrap() error {
	return e.Cause
}

// NewInternalError creates a new InternalError
func NewInternalError(message string, cause error) *InternalError {
	return &InternalError{Message: message, Cause: cause}
}

// Helper functions for error checking

// IsNotFound checks if an error is a NotFoundError
func IsNotFound(err error) bool {
	var notFound *NotFoundError
	return errors.As(err, &notFound)
}

// IsValidation checks if an error is a ValidationError or ValidationErrors
func IsValidation(err error) bool {
	var single *ValidationError
	var multi *ValidationErrors
	return errors.As(err, &single) || errors.As(err, &multi)
}

// IsRegistryUnavailable checks if an error is a RegistryUnavailableError
func IsRegistryUnavailable(err error) bool {
	var unavailable *RegistryUnavailableError
	return errors.As(err, &unavailable)
}

// IsLookup checks if an error is a LookupError
func IsLookup(err error) bool {
	var lookup *LookupError
	return errors.As(err, &lookup)
}

// IsSave checks if an error is a SaveError
func IsSave(err error) bool {
	var save *SaveError
	return errors.As(err, &save)
}

// IsConflict checks if an error is a ConflictError
func IsConflict(err error) bool {
	var conflict *ConflictError
	return errors.As(err, &conflict)
}

// GetHTTPStatus returns the HTTP status code for an error
// Returns 500 if the error doesn't implement AppError
func GetHTTPStatus(err error) int {
	var appErr AppError
	if errors.As(err, &appErr) {
		return appErr.HTTPStatus()
	}
	return http.StatusInternalServerError
}

// GetErrorCode returns the error code for an error
// Returns "UNKNOWN_ERROR" if the error doesn't implement AppError
func GetErrorCode(err error) string {
	var appErr AppError
	if errors.As(err, &appErr) {
		return appErr.Code()
	}
	return "UNKNOWN_ERROR"
}

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Retryable bool              `json:"retryable,omitempty"`
	Field     string            `json:"field,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
}

// ToResponse converts an error to an ErrorResponse
func ToResponse(err error) ErrorResponse {
	resp := ErrorResponse{
		Code:    GetErrorCode(err),
		Message: err.Error(),
	}

	var unavailable *RegistryUnavailableError
	if errors.As(err, &unavailable) {
		resp.Retryable = unavailable.Retryable()
	}
	var multi *ValidationErrors
	if errors.As(err, &multi) {
		resp.Field = multi.FirstField
		resp.Details = multi.Fields
	}
	var single *ValidationError
	if errors.As(err, &single) {
		resp.Field = single.Field
	}
	var lookup *LookupError
	if errors.As(err, &lookup) {
		resp.Field = lookup.Field
	}
	return resp
}
