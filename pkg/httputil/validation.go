package httputil

import (
	"fmt"
	"net/mail"
	"strings"
	"unicode/utf8"
)

// Field limits
const (
	MinPasswordBytes = 8
	MaxPasswordBytes = 72
	MaxFullNameChars = 255
	MaxEmailChars    = 255
)

// FieldError describes one invalid input field
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError collects field errors; it maps to a 422 response
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Validator accumulates field errors
type Validator struct {
	fields []FieldError
}

// Add records a field error
func (v *Validator) Add(field, message string) {
	v.fields = append(v.fields, FieldError{Field: field, Message: message})
}

// Required checks that value is not empty
func (v *Validator) Required(field, value string) bool {
	if value == "" {
		v.Add(field, "field required")
		return false
	}
	return true
}

// Email checks that value is a bare address with a dotted domain
func (v *Validator) Email(field, value string) {
	if !v.Required(field, value) {
		return
	}
	if err := ValidateEmail(value); err != nil {
		v.Add(field, err.Error())
	}
}

// Password checks the byte length limits
func (v *Validator) Password(field, value string) {
	if !v.Required(field, value) {
		return
	}
	switch n := len(value); {
	case n < MinPasswordBytes:
		v.Add(field, fmt.Sprintf("ensure this value has at least %d characters", MinPasswordBytes))
	case n > MaxPasswordBytes:
		v.Add(field, fmt.Sprintf("ensure this value has at most %d bytes", MaxPasswordBytes))
	}
}

// MaxChars checks the rune length of an optional value
func (v *Validator) MaxChars(field, value string, max int) {
	if utf8.RuneCountInString(value) > max {
		v.Add(field, fmt.Sprintf("ensure this value has at most %d characters", max))
	}
}

// Err returns a *ValidationError when any field failed, nil otherwise
func (v *Validator) Err() error {
	if len(v.fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: v.fields}
}

// ValidateEmail accepts only a bare address (no display name) whose domain
// contains a dot.
func ValidateEmail(value string) error {
	if utf8.RuneCountInString(value) > MaxEmailChars {
		return fmt.Errorf("value is not a valid email address: too long")
	}
	addr, err := mail.ParseAddress(value)
	if err != nil || addr.Address != value || addr.Name != "" {
		return fmt.Errorf("value is not a valid email address")
	}
	at := strings.LastIndex(value, "@")
	if at <= 0 {
		return fmt.Errorf("value is not a valid email address")
	}
	domain := value[at+1:]
	if !strings.Contains(domain, ".") || strings.HasPrefix(domain, ".") || strings.HasSuffix(domain, ".") {
		return fmt.Errorf("value is not a valid email address: domain must contain a dot")
	}
	return nil
}
