package services

import (
	"github.com/99designs/keyring"
	"github.com/wailsapp/wails/v2/pkg/logger"
	"gorm.io/gorm"

	"kharazmi/internal/connection"
	"kharazmi/internal/repositories"
	"kharazmi/internal/secrets"
)

// Services aggregates the settings subsystem for main and the tests.
type Services struct {
	Keyring    *KeyringService
	Supervisor *connection.Supervisor
	Settings   SettingsController
}

type Deps struct {
	DB           *gorm.DB
	Ring         keyring.Keyring
	SettingsFile string
	Connection   connection.Options
	Logger       logger.Logger
}

// NewServices constructs the container. A nil DB disables the revision journal.
func NewServices(d Deps) *Services {
	keys := NewKeyringService(d.Ring)
	store := repositories.NewSettingsFileRepository(d.SettingsFile, secrets.NewCodec(keys))

	var journal repositories.SettingsRevisionRepository
	if d.DB != nil {
		journal = repositories.NewSettingsRevisionRepository(d.DB)
	}

	svc := &Services{Keyring: keys}

	opts := d.Connection
	if opts.Logger == nil {
		opts.Logger = d.Logger
	}
	// Inbound frames go to the frontend unless the caller handles them.
	if opts.OnMessage == nil {
		opts.OnMessage = func(data []byte) { svc.Settings.HandleMessage(data) }
	}
	svc.Supervisor = connection.NewSupervisor(opts)
	svc.Settings = NewSettingsController(store, journal, svc.Supervisor, d.Logger)
	return svc
}

// Close stops the connection supervisor.
func (s *Services) Close() error {
	s.Supervisor.Close()
	return nil
}
