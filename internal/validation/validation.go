// Package validation provides input validation middleware for the Credlens API.
package validation

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
)

// MaxRequestSize is the maximum request body size (5MB, batch transaction
// uploads can be large)
const MaxRequestSize = 5 << 20

// MaxStringLength is the maximum length for free-text string fields
const MaxStringLength = 10000

var (
	// accountNumberRegex validates Indian bank account numbers (9-18 digits)
	accountNumberRegex = regexp.MustCompile(`^[0-9]{9,18}$`)
	// ifscRegex validates IFSC codes: 4 letter bank code, a literal zero,
	// then a 6 character branch code
	ifscRegex = regexp.MustCompile(`^[A-Z]{4}0[A-Z0-9]{6}$`)
	// userIDRegex validates internal user IDs (usr_ + 24 hex chars)
	userIDRegex = regexp.MustCompile(`^usr_[a-f0-9]{24}$`)
)

// RequestSizeMiddleware limits request body size
func RequestSizeMiddleware(maxSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)
		c.Next()
	}
}

// IsValidAccountNumber checks if a string is a plausible bank account number
func IsValidAccountNumber(s string) bool {
	return accountNumberRegex.MatchString(s)
}

// IsValidIFSC checks if a string is a valid IFSC code
func IsValidIFSC(s string) bool {
	return ifscRegex.MatchString(s)
}

// IsValidUserID checks if a string is a well-formed internal user ID
func IsValidUserID(s string) bool {
	return userIDRegex.MatchString(s)
}

// SanitizeString removes dangerous characters and limits length
func SanitizeString(s string, maxLen int) string {
	s = strings.TrimSpace(s)
	if len(s) > maxLen {
		s = s[:maxLen]
	}
	s = strings.ReplaceAll(s, "\x00", "")
	return s
}

// SanitizeIFSC normalizes an IFSC code to the canonical uppercase form
func SanitizeIFSC(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
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

// Validate validates a request and returns errors
func Validate(validators ...func() *ValidationError) ValidationErrors {
	var errors ValidationErrors
	for _, v := range validators {
		if err := v(); err != nil {
			errors = append(errors, *err)
		}
	}
	return errors
}

// Required checks if a field is non-empty
func Required(field, value string) func() *ValidationError {
	return func() *ValidationError {
		if strings.TrimSpace(value) == "" {
			return &ValidationError{Field: field, Message: "is required"}
		}
		return nil
	}
}

// ValidAccountNumber checks if a field is a plausible bank account number
func ValidAccountNumber(field, value string) func() *ValidationError {
	return func() *ValidationError {
		if value == "" {
			return nil // Use Required for required fields
		}
		if !IsValidAccountNumber(value) {
			return &ValidationError{Field: field, Message: "must be 9-18 digits"}
		}
		return nil
	}
}

// ValidIFSC checks if a field is a valid IFSC code
func ValidIFSC(field, value string) func() *ValidationError {
	return func() *ValidationError {
		if value == "" {
			return nil
		}
		if !IsValidIFSC(value) {
			return &ValidationError{Field: field, Message: "must match the IFSC format (e.g. HDFC0001234)"}
		}
		return nil
	}
}

// MaxLength checks if a field exceeds max length
func MaxLength(field, value string, max int) func() *ValidationError {
	return func() *ValidationError {
		if len(value) > max {
			return &ValidationError{Field: field, Message: "exceeds maximum length"}
		}
		return nil
	}
}

// UserIDParamMiddleware validates the :id URL parameter on routes that use it.
// Apply to route groups that include :id params to reject malformed IDs early.
func UserIDParamMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if id != "" && !IsValidUserID(id) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_user_id",
				"message": "user id must look like usr_ followed by 24 hex characters",
			})
			return
		}
		c.Next()
	}
}
