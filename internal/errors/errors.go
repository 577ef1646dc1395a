package errors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
)

// ErrorType classifies an AppError. It decides the HTTP status and how loudly
// the error is logged.
type ErrorType string

const (
	ErrorTypeValidation   ErrorType = "validation"
	ErrorTypeNotFound     ErrorType = "not_found"
	ErrorTypeInvalidState ErrorType = "invalid_state"
	ErrorTypeDatabase     ErrorType = "database"
	ErrorTypeExternal     ErrorType = "external_api"
	ErrorTypeInternal     ErrorType = "internal"
	ErrorTypePermission   ErrorType = "permission"
)

var statusByType = map[ErrorType]int{
	ErrorTypeValidation:   http.StatusBadRequest,
	ErrorTypeNotFound:     http.StatusNotFound,
	ErrorTypeInvalidState: http.StatusConflict,
	ErrorTypePermission:   http.StatusUnauthorized,
	ErrorTypeExternal:     http.StatusBadGateway,
	ErrorTypeDatabase:     http.StatusInternalServerError,
	ErrorTypeInternal:     http.StatusInternalServerError,
}

var levelByType = map[ErrorType]slog.Level{
	ErrorTypeValidation:   slog.LevelWarn,
	ErrorTypeNotFound:     slog.LevelInfo,
	ErrorTypeInvalidState: slog.LevelWarn,
	ErrorTypePermission:   slog.LevelWarn,
}

// AppError is an error with a type, a stable code and a caller-safe message.
type AppError struct {
	Type     ErrorType
	Code     string
	Message  string
	Internal error
	Fields   map[string]any
	Source   string
}

func (e *AppError) Error() string {
	if e.Internal != nil {
		return fmt.Sprintf("%s: %s (internal: %v)", e.Type, e.Message, e.Internal)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Internal
}

// Is matches another AppError by type and code, then falls back to the
// wrapped error.
func (e *AppError) Is(target error) bool {
	if t, ok := target.(*AppError); ok {
		return e.Type == t.Type && e.Code == t.Code
	}
	return errors.Is(e.Internal, target)
}

// With attaches a log field such as a record or user id.
func (e *AppError) With(key string, value any) *AppError {
	if e.Fields == nil {
		e.Fields = make(map[string]any)
	}
	e.Fields[key] = value
	return e
}

func (e *AppError) attrs() []any {
	args := []any{
		"error_type", e.Type,
		"error_code", e.Code,
		"error_message", e.Message,
		"source", e.Source,
	}
	if e.Internal != nil {
		args = append(args, "internal_error", e.Internal.Error())
	}
	for k, v := range e.Fields {
		args = append(args, k, v)
	}
	return args
}

func newAt(skip int, errorType ErrorType, code, message string, internal error) *AppError {
	_, file, line, _ := runtime.Caller(skip + 1)
	return &AppError{
		Type:     errorType,
		Code:     code,
		Message:  message,
		Internal: internal,
		Source:   fmt.Sprintf("%s:%d", file, line),
	}
}

// New creates an AppError recording the caller as its source.
func New(errorType ErrorType, code, message string) *AppError {
	return newAt(1, errorType, code, message, nil)
}

// TypeOf returns the ErrorType of the first AppError in the chain, or
// ErrorTypeInternal for plain errors.
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ErrorTypeInternal
}

// IsType reports whether err carries an AppError of the given type.
func IsType(err error, t ErrorType) bool {
	return err != nil && TypeOf(err) == t
}

// HTTPStatus maps an error to the status code the API answers with.
func HTTPStatus(err error) int {
	if status, ok := statusByType[TypeOf(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// PublicMessage returns the message safe to show to a caller.
func PublicMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Type != ErrorTypeDatabase && appErr.Type != ErrorTypeInternal {
		return appErr.Message
	}
	return "Internal server error"
}

// Handler logs errors at a level chosen by their type.
type Handler struct {
	logger *slog.Logger
}

func NewHandler(logger *slog.Logger) *Handler {
	return &Handler{logger: logger}
}

func (h *Handler) Handle(ctx context.Context, err error) {
	if err == nil {
		return
	}
	var appErr *AppError
	if !errors.As(err, &appErr) {
		h.logger.ErrorContext(ctx, "Unhandled error", "error", err.Error())
		return
	}
	level, ok := levelByType[appErr.Type]
	if !ok {
		level = slog.LevelError
	}
	h.logger.Log(ctx, level, string(appErr.Type)+" error", appErr.attrs()...)
}

// Sentinels for errors.Is checks.
var (
	ErrRecordNotFound = New(ErrorTypeNotFound, "RECORD_NOT_FOUND", "Record not found")
	ErrUserNotFound   = New(ErrorTypeNotFound, "USER_NOT_FOUND", "User not found")
)

func NewValidationError(message string) *AppError {
	return newAt(1, ErrorTypeValidation, "VALIDATION", message, nil)
}

func NewNotFoundError(resource string, id any) *AppError {
	return newAt(1, ErrorTypeNotFound, "RECORD_NOT_FOUND", resource+" not found", nil).With("id", id)
}

func NewInvalidStateError(message string) *AppError {
	return newAt(1, ErrorTypeInvalidState, "INVALID_STATE", message, nil)
}

func NewDatabaseError(err error) *AppError {
	return newAt(1, ErrorTypeDatabase, "DB_ERROR", "Database operation failed", err)
}

func NewExternalAPIError(err error, api string) *AppError {
	return newAt(1, ErrorTypeExternal, "EXTERNAL_API", api+" API error", err).With("api", api)
}

func NewInternalError(err error) *AppError {
	return newAt(1, ErrorTypeInternal, "INTERNAL", "Internal server error", err)
}
