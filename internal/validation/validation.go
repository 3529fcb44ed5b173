// Package validation provides request limits and field checks for the
// editor API.
package validation

import (
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
)

// MaxRequestSize is the default request body limit (1MB)
const MaxRequestSize = 1 << 20

// Field limits for editor input, counted in characters.
const (
	MaxFieldLength    = 500
	MaxFeaturesLength = 20000
)

// RequestSizeMiddleware limits request body size
func RequestSizeMiddleware(maxSize int64) gin.HandlerFunc {
	if maxSize <= 0 {
		maxSize = MaxRequestSize
	}
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxSize {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{
				"error":   "request_too_large",
				"message": "Request body is too large",
			})
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)
		c.Next()
	}
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "validation failed"
	}
	return e[0].Field + ": " + e[0].Message
}

// Validate runs every validator and collects the failures.
func Validate(validators ...func() *ValidationError) ValidationErrors {
	var errors ValidationErrors
	for _, v := range validators {
		if err := v(); err != nil {
			errors = append(errors, *err)
		}
	}
	return errors
}

// MaxLength checks that an optional field does not exceed max characters.
// A nil value is not checked.
func MaxLength(field string, value *string, max int) func() *ValidationError {
	return func() *ValidationError {
		if value == nil {
			return nil
		}
		if utf8.RuneCountInString(*value) > max {
			return &ValidationError{Field: field, Message: "exceeds maximum length"}
		}
		return nil
	}
}

// NoNullBytes rejects values carrying NUL characters.
func NoNullBytes(field string, value *string) func() *ValidationError {
	return func() *ValidationError {
		if value != nil && strings.ContainsRune(*value, 0) {
			return &ValidationError{Field: field, Message: "contains invalid characters"}
		}
		return nil
	}
}

// Abort writes a 400 response describing errs.
func Abort(c *gin.Context, errs ValidationErrors) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
		"error":   "validation_failed",
		"message": errs.Error(),
		"details": errs,
	})
}
