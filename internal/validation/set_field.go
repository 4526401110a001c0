package validation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"kharazmi/internal/models"
)

// WithField returns a copy of doc with one settings.json field replaced.
// Unknown paths, the derived client_url and values of the wrong JSON type are
// reported as a *ValidationError.
func WithField(doc *models.SettingsDocument, section, key string, value any) (*models.SettingsDocument, error) {
	path := section + "." + key
	if doc == nil {
		return nil, fieldError("document", "document is missing")
	}
	if section == models.SectionWebSocket && key == "client_url" {
		return nil, fieldError(path, "is derived from server_ip and server_port")
	}

	if value == nil {
		return nil, fieldError(path, "value is required")
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var tree map[string]map[string]json.RawMessage
	if err := json.Unmarshal(raw, &tree); err != nil {
		return nil, err
	}
	fields, ok := tree[section]
	if !ok {
		return nil, fieldError(path, "unknown section")
	}
	if _, ok := fields[key]; !ok {
		return nil, fieldError(path, "unknown setting")
	}

	encoded, err := json.Marshal(value)
	if err != nil {
		return nil, fieldError(path, "value cannot be encoded")
	}
	fields[key] = encoded
	if raw, err = json.Marshal(tree); err != nil {
		return nil, err
	}

	next := &models.SettingsDocument{}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(next); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, fieldError(path, fmt.Sprintf("expects a %s value", typeErr.Type))
		}
		return nil, err
	}
	return next, nil
}

func fieldError(field, msg string) error {
	return &ValidationError{Errors: []FieldError{{Field: field, Message: msg, Severity: SeverityError}}}
}
