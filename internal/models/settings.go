package models

import (
	"strconv"
	"strings"
)

const (
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	DefaultLocalAIURL    = "http://localhost:11434"
	DefaultServerIP      = "127.0.0.1"
	DefaultServerPort    = 8765
	DefaultLanguage      = "fa"
	DefaultTheme         = "light"
)

// Secret field names as they appear in settings.json.
const (
	FieldOpenAIAPIKey    = "openai_api_key"
	FieldAnthropicAPIKey = "anthropic_api_key"
	FieldGoogleAPIKey    = "google_api_key"
)

// Section names used when reporting which parts of a document changed.
const (
	SectionAIAPIs    = "ai_apis"
	SectionWebSocket = "websocket"
	SectionGeneral   = "general"
)

// AIAPISettings holds provider credentials and endpoints. The core never
// calls the providers, it only stores and validates these values.
type AIAPISettings struct {
	OpenAIAPIKey    string `json:"openai_api_key"`
	OpenAIBaseURL   string `json:"openai_base_url" validate:"required,http_url"`
	AnthropicAPIKey string `json:"anthropic_api_key"`
	GoogleAPIKey    string `json:"google_api_key"`
	LocalAIURL      string `json:"local_ai_url" validate:"required,http_url"`
}

// WebSocketSettings describes the collaboration server endpoint.
// ClientURL is derived and is recomputed by Normalize.
type WebSocketSettings struct {
	ServerIP   string `json:"server_ip" validate:"required,host"`
	ServerPort int    `json:"server_port" validate:"min=1,max=65535"`
	ClientURL  string `json:"client_url"`
}

type GeneralSettings struct {
	Language     string `json:"language" validate:"oneof=fa en"`
	Theme        string `json:"theme" validate:"oneof=light dark"`
	AutoSave     bool   `json:"auto_save"`
	AutoComplete bool   `json:"auto_complete"`
}

// SettingsDocument is the complete configuration persisted in settings.json.
// Secret fields hold plaintext in memory; the store seals them on disk.
type SettingsDocument struct {
	AIAPIs    AIAPISettings     `json:"ai_apis"`
	WebSocket WebSocketSettings `json:"websocket"`
	General   GeneralSettings   `json:"general"`
}

// SecretField points at one of the API key fields of a document.
type SecretField struct {
	Name  string
	Value *string
}

// DefaultSettings returns a fresh copy of the factory configuration.
func DefaultSettings() *SettingsDocument {
	doc := &SettingsDocument{
		AIAPIs: AIAPISettings{
			OpenAIBaseURL: DefaultOpenAIBaseURL,
			LocalAIURL:    DefaultLocalAIURL,
		},
		WebSocket: WebSocketSettings{
			ServerIP:   DefaultServerIP,
			ServerPort: DefaultServerPort,
		},
		General: GeneralSettings{
			Language:     DefaultLanguage,
			Theme:        DefaultTheme,
			AutoSave:     true,
			AutoComplete: true,
		},
	}
	doc.Normalize()
	return doc
}

// ClientURL builds the ws:// URL for a host and port.
func ClientURL(host string, port int) string {
	return "ws://" + host + ":" + strconv.Itoa(port)
}

func (d *SettingsDocument) Clone() *SettingsDocument {
	if d == nil {
		return nil
	}
	c := *d
	return &c
}

// Normalize trims user input and recomputes the derived client URL.
func (d *SettingsDocument) Normalize() {
	d.AIAPIs.OpenAIAPIKey = strings.TrimSpace(d.AIAPIs.OpenAIAPIKey)
	d.AIAPIs.OpenAIBaseURL = strings.TrimSpace(d.AIAPIs.OpenAIBaseURL)
	d.AIAPIs.AnthropicAPIKey = strings.TrimSpace(d.AIAPIs.AnthropicAPIKey)
	d.AIAPIs.GoogleAPIKey = strings.TrimSpace(d.AIAPIs.GoogleAPIKey)
	d.AIAPIs.LocalAIURL = strings.TrimSpace(d.AIAPIs.LocalAIURL)
	d.WebSocket.ServerIP = strings.TrimSpace(d.WebSocket.ServerIP)
	d.General.Language = strings.TrimSpace(d.General.Language)
	d.General.Theme = strings.TrimSpace(d.General.Theme)
	d.WebSocket.ClientURL = ClientURL(d.WebSocket.ServerIP, d.WebSocket.ServerPort)
}

// Secrets returns the API key fields in a stable order.
func (d *SettingsDocument) Secrets() []SecretField {
	return []SecretField{
		{Name: FieldOpenAIAPIKey, Value: &d.AIAPIs.OpenAIAPIKey},
		{Name: FieldAnthropicAPIKey, Value: &d.AIAPIs.AnthropicAPIKey},
		{Name: FieldGoogleAPIKey, Value: &d.AIAPIs.GoogleAPIKey},
	}
}

func (w WebSocketSettings) Endpoint() Endpoint {
	return Endpoint{Host: w.ServerIP, Port: w.ServerPort}
}

// Masked returns a copy that is safe to log or display.
func (d *SettingsDocument) Masked() *SettingsDocument {
	c := d.Clone()
	for _, f := range c.Secrets() {
		*f.Value = MaskSecret(*f.Value)
	}
	return c
}

// MaskSecret keeps the first three and last four characters of a key.
func MaskSecret(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 8 {
		return strings.Repeat("*", len(secret))
	}
	return secret[:3] + "..." + secret[len(secret)-4:]
}

// ChangedSections lists the sections that differ between two documents.
func ChangedSections(prev, next *SettingsDocument) []string {
	if prev == nil || next == nil {
		return []string{SectionAIAPIs, SectionWebSocket, SectionGeneral}
	}
	var changed []string
	if prev.AIAPIs != next.AIAPIs {
		changed = append(changed, SectionAIAPIs)
	}
	if prev.WebSocket != next.WebSocket {
		changed = append(changed, SectionWebSocket)
	}
	if prev.General != next.General {
		changed = append(changed, SectionGeneral)
	}
	return changed
}
