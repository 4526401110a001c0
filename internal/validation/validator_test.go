package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kharazmi/internal/models"
)

func fields(list []FieldError) []string {
	out := make([]string, 0, len(list))
	for _, fe := range list {
		out = append(out, fe.Field)
	}
	return out
}

func TestValidate_DefaultsAreValid(t *testing.T) {
	res := New().Validate(models.DefaultSettings())
	assert.True(t, res.OK())
	assert.Empty(t, res.Warnings)
	assert.NoError(t, res.Err())
}

func TestValidate_NilDocument(t *testing.T) {
	res := New().Validate(nil)
	require.False(t, res.OK())
	assert.Equal(t, []string{"document"}, fields(res.Errors))
}

func TestValidate_Port(t *testing.T) {
	v := New()
	cases := []struct {
		port int
		ok   bool
	}{
		{0, false},
		{1, true},
		{8765, true},
		{65535, true},
		{65536, false},
		{70000, false},
		{-1, false},
	}
	for _, tc := range cases {
		doc := models.DefaultSettings()
		doc.WebSocket.ServerPort = tc.port
		res := v.Validate(doc)
		assert.Equal(t, tc.ok, res.OK(), "port %d", tc.port)
		if !tc.ok {
			assert.Equal(t, []string{"websocket.server_port"}, fields(res.Errors))
		}
	}
}

func TestValidate_Host(t *testing.T) {
	v := New()
	cases := map[string]bool{
		"127.0.0.1":          true,
		"81.161.229.152":     true,
		"localhost":          true,
		"collab.example.org": true,
		"":                   false,
		"999.1.1.1":          false,
		"1.2.3":              false,
		"::1":                false,
		"bad host":           false,
		"-leading.dash":      false,
		"under_score.com":    false,
	}
	for host, ok := range cases {
		doc := models.DefaultSettings()
		doc.WebSocket.ServerIP = host
		res := v.Validate(doc)
		assert.Equal(t, ok, res.OK(), "host %q", host)
		if !ok {
			assert.Contains(t, fields(res.Errors), "websocket.server_ip", "host %q", host)
		}
	}
}

func TestValidate_URLs(t *testing.T) {
	v := New()
	cases := map[string]bool{
		"https://api.openai.com/v1": true,
		"http://localhost:11434":    true,
		"ftp://example.com":         false,
		"api.openai.com/v1":         false,
		"":                          false,
		"http://":                   false,
	}
	for raw, ok := range cases {
		doc := models.DefaultSettings()
		doc.AIAPIs.OpenAIBaseURL = raw
		doc.AIAPIs.LocalAIURL = raw
		res := v.Validate(doc)
		assert.Equal(t, ok, res.OK(), "url %q", raw)
		if !ok {
			assert.ElementsMatch(t, []string{"ai_apis.openai_base_url", "ai_apis.local_ai_url"}, fields(res.Errors), "url %q", raw)
		}
	}
}

func TestValidate_Enums(t *testing.T) {
	v := New()

	doc := models.DefaultSettings()
	doc.General.Language = "de"
	doc.General.Theme = "solarized"
	res := v.Validate(doc)
	require.False(t, res.OK())
	assert.ElementsMatch(t, []string{"general.language", "general.theme"}, fields(res.Errors))
	assert.Contains(t, res.Err().Error(), "must be one of: light, dark")

	doc = models.DefaultSettings()
	doc.General.Language = "en"
	doc.General.Theme = "dark"
	assert.True(t, v.Validate(doc).OK())
}

func TestValidate_APIKeyHeuristicsAreWarnings(t *testing.T) {
	doc := models.DefaultSettings()
	doc.AIAPIs.OpenAIAPIKey = "pk-live-123"
	doc.AIAPIs.AnthropicAPIKey = "sk-123"
	doc.AIAPIs.GoogleAPIKey = "gkey"

	res := New().Validate(doc)
	assert.True(t, res.OK())
	assert.ElementsMatch(t, []string{
		"ai_apis.openai_api_key",
		"ai_apis.anthropic_api_key",
		"ai_apis.google_api_key",
	}, fields(res.Warnings))
	for _, w := range res.Warnings {
		assert.Equal(t, SeverityWarning, w.Severity)
	}
}

func TestValidate_WellFormedKeysHaveNoWarnings(t *testing.T) {
	doc := models.DefaultSettings()
	doc.AIAPIs.OpenAIAPIKey = "sk-proj-abc"
	doc.AIAPIs.AnthropicAPIKey = "sk-ant-api03-abc"
	doc.AIAPIs.GoogleAPIKey = "AIzaSyD-abc"

	res := New().Validate(doc)
	assert.True(t, res.OK())
	assert.Empty(t, res.Warnings)
}

func TestValidate_AnthropicKeyInOpenAISlot(t *testing.T) {
	doc := models.DefaultSettings()
	doc.AIAPIs.OpenAIAPIKey = "sk-ant-api03-abc"

	res := New().Validate(doc)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, "looks like an Anthropic key", res.Warnings[0].Message)
}

func TestValidateEndpoint(t *testing.T) {
	v := New()

	assert.True(t, v.ValidateEndpoint("127.0.0.1", 8765).OK())
	assert.True(t, v.ValidateEndpoint(" localhost ", 80).OK())

	res := v.ValidateEndpoint("999.0.0.1", 0)
	var verr *ValidationError
	require.ErrorAs(t, res.Err(), &verr)
	assert.True(t, verr.Has("websocket.server_ip"))
	assert.True(t, verr.Has("websocket.server_port"))
}
