package errors

import (
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// ErrUnauthorized is returned when a guarded operation runs without a valid session
// or when a credential check fails.
var ErrUnauthorized = stderrors.New("unauthorized")

// ValidationError reports required or malformed fields. No write happened.
type ValidationError struct {
	Fields []string
	Reason string
}

func (e *ValidationError) Error() string {
	reason := e.Reason
	if reason == "" {
		reason = "missing required field(s)"
	}
	return fmt.Sprintf("%s: %s", reason, strings.Join(e.Fields, ", "))
}

// Missing builds a ValidationError for absent required fields, or returns nil
// when fields is empty.
func Missing(fields ...string) error {
	if len(fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: fields}
}

// Invalid builds a ValidationError for a field holding an unacceptable value.
func Invalid(field, reason string) error {
	return &ValidationError{Fields: []string{field}, Reason: reason}
}

// ReferenceError reports a relationship field that does not resolve.
type ReferenceError struct {
	Field string
	ID    string
}

func (e *ReferenceError) Error() string {
	return fmt.Sprintf("%s %v does not exist", e.Field, e.ID)
}

// NotFoundError reports an operation on an unknown identifier.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no %s with id %v", e.Kind, e.ID)
}

// ConflictError reports a duplicate value of a unique field.
type ConflictError struct {
	Field string
	Value string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %q is already taken", e.Field, e.Value)
}

func IsNotFound(err error) bool {
	var nf *NotFoundError
	return stderrors.As(err, &nf)
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return stderrors.As(err, &ve)
}

func IsReference(err error) bool {
	var re *ReferenceError
	return stderrors.As(err, &re)
}

func IsConflict(err error) bool {
	var ce *ConflictError
	return stderrors.As(err, &ce)
}

// StatusOf maps an error from the core to an HTTP status code.
func StatusOf(err error) int {
	switch {
	case err == nil:
		return fiber.StatusOK
	case IsValidation(err):
		return fiber.StatusBadRequest
	case IsReference(err):
		return fiber.StatusUnprocessableEntity
	case IsNotFound(err):
		return fiber.StatusNotFound
	case IsConflict(err):
		return fiber.StatusConflict
	case stderrors.Is(err, ErrUnauthorized):
		return fiber.StatusUnauthorized
	default:
		return fiber.StatusInternalServerError
	}
}

// Respond writes the error envelope matching err.
func Respond(context *fiber.Ctx, err error) error {
	switch StatusOf(err) {
	case fiber.StatusBadRequest:
		return RaiseBadRequestError(context, err.Error())
	case fiber.StatusUnprocessableEntity:
		return RaiseError(context, fiber.StatusUnprocessableEntity, "unresolved reference", err.Error())
	case fiber.StatusNotFound:
		return RaiseNotFoundError(context, err.Error())
	case fiber.StatusConflict:
		return RaiseError(context, fiber.StatusConflict, "conflict", err.Error())
	case fiber.StatusUnauthorized:
		return RaisePermissionsError(context, err.Error())
	default:
		return RaiseInternalServerError(context, err.Error())
	}
}

func RaiseError(context *fiber.Ctx, status int, message string, data string) error {
	return context.Status(status).JSON(fiber.Map{
		"status":  "error",
		"message": message,
		"data":    data})
}

func RaisePermissionsError(context *fiber.Ctx, data string) error {
	return RaiseError(context, fiber.StatusUnauthorized, "lack of permissions", data)
}

func RaiseInternalServerError(context *fiber.Ctx, data string) error {
	return RaiseError(context, fiber.StatusInternalServerError, "internal error", data)
}

func RaiseBadRequestError(context *fiber.Ctx, data string) error {
	return RaiseError(context, fiber.StatusBadRequest, "bad request", data)
}

func RaiseNotFoundError(context *fiber.Ctx, data string) error {
	return RaiseError(context, fiber.StatusNotFound, "resource not found", data)
}
