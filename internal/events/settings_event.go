package events

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"kharazmi/internal/models"
)

type EventType string

const (
	EventInfo    EventType = "info"
	EventWarn    EventType = "warn"
	EventSuccess EventType = "success"
	EventError   EventType = "error"
)

const (
	ConnectionState   = "events:connection:state"
	ConnectionMessage = "events:connection:message"
	SettingsSaved     = "events:settings:saved"
	SettingsReset     = "events:settings:reset"
	SettingsLoadIssue = "events:settings:load-issue"
)

// SettingsEvent is the payload pushed to the frontend for settings and
// connection changes.
type SettingsEvent struct {
	ID         string                   `json:"id"`
	Type       EventType                `json:"type"`
	Message    string                   `json:"message"`
	Timestamp  time.Time                `json:"timestamp"`
	Revision   uint64                   `json:"revision,omitempty"`
	Connection *models.ConnectionStatus `json:"connection,omitempty"`
	Metadata   map[string]string        `json:"metadata,omitempty"`
}

func CreateSettingsEvent(eventType EventType, message string) SettingsEvent {
	return SettingsEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		Message:   message,
		Timestamp: time.Now(),
	}
}

func NewInfo(message string) SettingsEvent {
	return CreateSettingsEvent(EventInfo, message)
}

func NewWarn(message string) SettingsEvent {
	return CreateSettingsEvent(EventWarn, message)
}

func NewError(message string) SettingsEvent {
	return CreateSettingsEvent(EventError, message)
}

func NewSuccess(message string) SettingsEvent {
	return CreateSettingsEvent(EventSuccess, message)
}

// NewConnectionEvent maps a supervisor transition to an event. Failures are
// errors, a completed connection is a success.
func NewConnectionEvent(status models.ConnectionStatus) SettingsEvent {
	var evt SettingsEvent
	switch status.State {
	case models.StateConnected:
		evt = NewSuccess("connected to " + status.Endpoint)
	case models.StateFailed:
		evt = NewError(status.Reason)
	case models.StateDisconnected:
		msg := "disconnected"
		if status.Reason != "" {
			msg += ": " + status.Reason
		}
		evt = NewInfo(msg)
	default:
		evt = NewInfo(string(status.State) + " " + status.Endpoint)
	}
	evt.Connection = &status
	return evt
}

// NewSavedEvent describes a committed settings revision.
func NewSavedEvent(revision uint64, changed []string, warnings []string, reconnecting bool) SettingsEvent {
	evt := NewSuccess("settings saved")
	evt.Revision = revision
	evt.Metadata = map[string]string{
		"changedSections": strings.Join(changed, ","),
		"reconnecting":    strconv.FormatBool(reconnecting),
	}
	if len(warnings) > 0 {
		evt.Type = EventWarn
		evt.Metadata["warnings"] = strings.Join(warnings, "; ")
	}
	return evt
}

func NewResetEvent(revision uint64) SettingsEvent {
	evt := NewSuccess("settings reset to defaults")
	evt.Revision = revision
	return evt
}

// NewLoadIssueEvent reports a recovered startup problem such as a corrupt file.
func NewLoadIssueEvent(err error) SettingsEvent {
	return NewWarn(err.Error())
}

// NewMessageEvent carries a text frame received from the collaboration server.
func NewMessageEvent(data []byte) SettingsEvent {
	evt := NewInfo(string(data))
	evt.Metadata = map[string]string{"bytes": strconv.Itoa(len(data))}
	return evt
}
