package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/wailsapp/wails/v2/pkg/runtime"

	"kharazmi/internal/events"
	"kharazmi/internal/models"
	"kharazmi/internal/services"
)

// App is the frontend's view of the settings subsystem.
type App struct {
	ctx        context.Context
	settings   services.SettingsController
	closeFuncs []func() error
}

// NewApp creates a new App bound to controller. closers run in order on shutdown.
func NewApp(controller services.SettingsController, closers ...func() error) *App {
	return &App{
		ctx:        context.Background(),
		settings:   controller,
		closeFuncs: closers,
	}
}

// startup is called when the app starts. The context is saved
// so we can call the runtime methods
func (a *App) startup(ctx context.Context) {
	a.ctx = ctx
	events.EnableRuntimeEmitter()

	if err := a.settings.Startup(ctx); err != nil {
		runtime.LogWarning(ctx, fmt.Sprintf("settings loaded with issues: %v", err))
		return
	}
	runtime.LogInfo(ctx, "settings loaded")
}

// shutdown is called when the app is closing. Clean up resources here.
func (a *App) shutdown(ctx context.Context) {
	if err := a.settings.Shutdown(ctx); err != nil {
		runtime.LogError(ctx, fmt.Sprintf("failed to stop settings controller: %v", err))
	}
	for _, closeFn := range a.closeFuncs {
		if err := closeFn(); err != nil {
			runtime.LogError(ctx, fmt.Sprintf("shutdown: %v", err))
		}
	}
	a.closeFuncs = nil
}

// GetSettings returns the committed settings with plaintext API keys
// for the settings dialog.
func (a *App) GetSettings() *models.SettingsDocument {
	return a.settings.GetSettings()
}

// GetMaskedSettings returns the committed settings with API keys masked.
func (a *App) GetMaskedSettings() *models.SettingsDocument {
	return a.settings.GetSettings().Masked()
}

// GetSettingsSnapshot returns the settings together with their revision, for
// use with ApplyAndSaveFrom.
func (a *App) GetSettingsSnapshot() services.Snapshot {
	return a.settings.Snapshot()
}

func (a *App) ApplyAndSave(doc models.SettingsDocument) (*services.ApplyResult, error) {
	res, err := a.settings.ApplyAndSave(a.ctx, &doc)
	return res, a.userError("apply settings", err)
}

// ApplyAndSaveFrom commits doc only if no other commit happened since baseRevision.
func (a *App) ApplyAndSaveFrom(baseRevision uint64, doc models.SettingsDocument) (*services.ApplyResult, error) {
	res, err := a.settings.ApplyAndSaveFrom(a.ctx, baseRevision, &doc)
	return res, a.userError("apply settings", err)
}

// SetSetting changes one field, e.g. SetSetting("websocket", "server_port", 9100).
func (a *App) SetSetting(section, key string, value interface{}) (*services.ApplyResult, error) {
	res, err := a.settings.SetSetting(a.ctx, section, key, value)
	return res, a.userError("set "+section+"."+key, err)
}

func (a *App) ResetToDefaults(confirmed bool) (*services.ApplyResult, error) {
	res, err := a.settings.ResetToDefaults(a.ctx, confirmed)
	return res, a.userError("reset settings", err)
}

// TestConnection probes ip:port and returns the handshake latency in milliseconds.
func (a *App) TestConnection(ip string, port int) (int64, error) {
	latency, err := a.settings.TestConnection(a.ctx, ip, port)
	if err != nil {
		return 0, a.userError("test connection", err)
	}
	return latency.Milliseconds(), nil
}

func (a *App) GetConnectionState() models.ConnectionStatus {
	return a.settings.GetConnectionState()
}

// ReconnectNow retries the committed endpoint after a failure.
func (a *App) ReconnectNow() error {
	return a.userError("reconnect", a.settings.Reconnect())
}

// SendMessage writes a text frame to the collaboration server. Replies arrive
// as events:connection:message.
func (a *App) SendMessage(message string) error {
	return a.userError("send message", a.settings.SendMessage([]byte(message)))
}

func (a *App) GetSettingsHistory(limit int) ([]models.SettingsRevision, error) {
	if limit <= 0 {
		limit = 50
	}
	revs, err := a.settings.History(a.ctx, limit)
	return revs, a.userError("settings history", err)
}

// userError logs err and returns a message fit for the settings dialog.
func (a *App) userError(op string, err error) error {
	if err == nil {
		return nil
	}
	if !errors.Is(err, services.ErrConfirmationRequired) {
		runtime.LogError(a.ctx, fmt.Sprintf("%s: %v", op, err))
	}
	return errors.New(services.Describe(err))
}
