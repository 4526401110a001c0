package validation

import (
	"errors"
	"fmt"
	"net"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"kharazmi/internal/models"
)

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// FieldError is a single finding against a dotted settings.json path.
type FieldError struct {
	Field    string   `json:"field"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

func (f FieldError) String() string {
	return f.Field + ": " + f.Message
}

// Result separates blocking errors from advisory warnings.
type Result struct {
	Errors   []FieldError `json:"errors,omitempty"`
	Warnings []FieldError `json:"warnings,omitempty"`
}

func (r Result) OK() bool {
	return len(r.Errors) == 0
}

// Err returns a *ValidationError when the result has hard failures.
func (r Result) Err() error {
	if r.OK() {
		return nil
	}
	return &ValidationError{Errors: r.Errors}
}

// ValidationError blocks a commit.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		parts = append(parts, fe.String())
	}
	return "invalid settings: " + strings.Join(parts, "; ")
}

// Has reports whether field is among the failures.
func (e *ValidationError) Has(field string) bool {
	for _, fe := range e.Errors {
		if fe.Field == field {
			return true
		}
	}
	return false
}

var numericHost = regexp.MustCompile(`^[0-9.]+$`)

// Validator checks settings documents before they are persisted or applied.
type Validator struct {
	v *validator.Validate
}

func New() *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	val := &Validator{v: v}
	if err := v.RegisterValidation("host", val.isHost); err != nil {
		panic(fmt.Sprintf("register host validation: %v", err))
	}
	return val
}

// Validate runs hard checks on URLs, host, port and enums, then soft checks on
// API key formats. The document is not modified.
func (val *Validator) Validate(doc *models.SettingsDocument) Result {
	var res Result
	if doc == nil {
		res.Errors = append(res.Errors, FieldError{Field: "document", Message: "is required", Severity: SeverityError})
		return res
	}

	res.Errors = append(res.Errors, val.structErrors(doc)...)
	res.Warnings = apiKeyWarnings(doc.AIAPIs)
	return res
}

// ValidateEndpoint checks a host/port pair without a full document.
func (val *Validator) ValidateEndpoint(host string, port int) Result {
	ws := models.WebSocketSettings{ServerIP: strings.TrimSpace(host), ServerPort: port}
	var res Result
	for _, fe := range val.structErrors(&ws) {
		fe.Field = models.SectionWebSocket + "." + fe.Field
		res.Errors = append(res.Errors, fe)
	}
	return res
}

func (val *Validator) structErrors(s any) []FieldError {
	err := val.v.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []FieldError{{Field: "document", Message: err.Error(), Severity: SeverityError}}
	}

	out := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{
			Field:    fieldPath(fe.Namespace()),
			Message:  message(fe),
			Severity: SeverityError,
		})
	}
	return out
}

// isHost accepts IPv4 literals and RFC 1123 host names. IPv6 literals are
// rejected because they cannot be written into ws://host:port unbracketed.
func (val *Validator) isHost(fl validator.FieldLevel) bool {
	host := fl.Field().String()
	if host == "" {
		return false
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.To4() != nil && !strings.Contains(host, ":")
	}
	if numericHost.MatchString(host) {
		return false
	}
	return val.v.Var(host, "hostname_rfc1123") == nil
}

// fieldPath drops the root struct name: "SettingsDocument.websocket.server_port" -> "websocket.server_port".
func fieldPath(namespace string) string {
	if i := strings.Index(namespace, "."); i >= 0 {
		return namespace[i+1:]
	}
	return namespace
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "http_url":
		return "must be an absolute http:// or https:// URL"
	case "host":
		return "must be a valid hostname or IPv4 address"
	case "min", "max":
		return "must be between 1 and 65535"
	case "oneof":
		return "must be one of: " + strings.Join(strings.Fields(fe.Param()), ", ")
	default:
		return fmt.Sprintf("failed %q check", fe.Tag())
	}
}
