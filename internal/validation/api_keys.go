package validation

import (
	"strings"

	"kharazmi/internal/models"
)

const (
	openAIKeyPrefix    = "sk-"
	anthropicKeyPrefix = "sk-ant-"
	googleKeyPrefix    = "AIza"
)

// apiKeyWarnings flags keys that do not look like the provider's format.
// Providers rotate formats, so these never block a commit.
func apiKeyWarnings(ai models.AIAPISettings) []FieldError {
	var warnings []FieldError
	warn := func(field, msg string) {
		warnings = append(warnings, FieldError{
			Field:    models.SectionAIAPIs + "." + field,
			Message:  msg,
			Severity: SeverityWarning,
		})
	}

	if key := ai.OpenAIAPIKey; key != "" {
		switch {
		case strings.HasPrefix(key, anthropicKeyPrefix):
			warn(models.FieldOpenAIAPIKey, "looks like an Anthropic key")
		case !strings.HasPrefix(key, openAIKeyPrefix):
			warn(models.FieldOpenAIAPIKey, "OpenAI keys usually start with \"sk-\"")
		}
	}
	if key := ai.AnthropicAPIKey; key != "" && !strings.HasPrefix(key, anthropicKeyPrefix) {
		warn(models.FieldAnthropicAPIKey, "Anthropic keys usually start with \"sk-ant-\"")
	}
	if key := ai.GoogleAPIKey; key != "" && !strings.HasPrefix(key, googleKeyPrefix) {
		warn(models.FieldGoogleAPIKey, "Google keys usually start with \"AIza\"")
	}
	return warnings
}
