package services

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wailsapp/wails/v2/pkg/logger"

	"kharazmi/internal/events"
	"kharazmi/internal/models"
	"kharazmi/internal/repositories"
	"kharazmi/internal/validation"
)

// ConnectionSupervisor is the part of connection.Supervisor the controller drives.
type ConnectionSupervisor interface {
	Connect(endpoint models.Endpoint) error
	Reconnect(endpoint models.Endpoint) error
	Disconnect()
	TestConnection(ctx context.Context, endpoint models.Endpoint) (time.Duration, error)
	Status() models.ConnectionStatus
	Subscribe(fn func(models.ConnectionStatus)) func()
	Send(data []byte) error
}

// Snapshot is an immutable view of the committed settings.
type Snapshot struct {
	Document *models.SettingsDocument `json:"document"`
	Revision uint64                   `json:"revision"`
}

type ApplyResult struct {
	Revision         uint64                  `json:"revision"`
	PreviousRevision uint64                  `json:"previousRevision"`
	Warnings         []validation.FieldError `json:"warnings,omitempty"`
	ChangedSections  []string                `json:"changedSections,omitempty"`
	Reconnecting     bool                    `json:"reconnecting"`
}

type SettingsController interface {
	Startup(ctx context.Context) error
	Shutdown(ctx context.Context) error
	GetSettings() *models.SettingsDocument
	Snapshot() Snapshot
	SetSetting(ctx context.Context, section, key string, value any) (*ApplyResult, error)
	ApplyAndSave(ctx context.Context, proposed *models.SettingsDocument) (*ApplyResult, error)
	ApplyAndSaveFrom(ctx context.Context, baseRevision uint64, proposed *models.SettingsDocument) (*ApplyResult, error)
	ResetToDefaults(ctx context.Context, confirmed bool) (*ApplyResult, error)
	TestConnection(ctx context.Context, ip string, port int) (time.Duration, error)
	GetConnectionState() models.ConnectionStatus
	SubscribeConnectionState(fn func(models.ConnectionStatus)) func()
	Reconnect() error
	SendMessage(data []byte) error
	HandleMessage(data []byte)
	History(ctx context.Context, limit int) ([]models.SettingsRevision, error)
}

type settingsController struct {
	store      repositories.SettingsFileRepository
	journal    repositories.SettingsRevisionRepository
	supervisor ConnectionSupervisor
	validator  *validation.Validator
	log        logger.Logger

	// mu serializes commits; readers use snap.
	mu     sync.Mutex
	snap   atomic.Pointer[Snapshot]
	closed bool

	context     context.Context
	unsubscribe func()
}

// NewSettingsController wires the store, journal and supervisor. journal may
// be nil, in which case revisions are kept in memory only.
func NewSettingsController(
	store repositories.SettingsFileRepository,
	journal repositories.SettingsRevisionRepository,
	supervisor ConnectionSupervisor,
	log logger.Logger,
) SettingsController {
	if log == nil {
		log = logger.NewDefaultLogger()
	}
	c := &settingsController{
		store:      store,
		journal:    journal,
		supervisor: supervisor,
		validator:  validation.New(),
		log:        log,
		context:    context.Background(),
	}
	c.snap.Store(&Snapshot{Document: models.DefaultSettings()})
	return c
}

func (c *settingsController) Startup(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.context = ctx

	var issues []error

	_, statErr := os.Stat(c.store.Path())
	missing := errors.Is(statErr, fs.ErrNotExist)

	doc, err := c.store.Load(ctx)
	if err != nil {
		issues = append(issues, err)
		c.reportLoadIssue(err)
	}

	var revision uint64
	if c.journal != nil {
		latest, err := c.journal.Latest(ctx)
		if err != nil {
			c.log.Warning("settings journal unavailable: " + err.Error())
		} else if latest != nil {
			revision = latest.Revision
		}
	}

	if missing {
		if err := c.store.Save(ctx, doc); err != nil {
			issues = append(issues, err)
			c.reportLoadIssue(err)
		} else {
			revision++
			c.record(ctx, revision, models.RevisionSourceStartup, models.ChangedSections(nil, doc), doc, false)
			c.log.Info("settings: wrote defaults to " + c.store.Path())
		}
	}

	c.snap.Store(&Snapshot{Document: doc, Revision: revision})
	c.unsubscribe = c.supervisor.Subscribe(c.onConnectionState)

	endpoint := doc.WebSocket.Endpoint()
	if res := c.validator.ValidateEndpoint(endpoint.Host, endpoint.Port); !res.OK() {
		err := res.Err()
		issues = append(issues, err)
		c.reportLoadIssue(err)
		return errors.Join(issues...)
	}
	if err := c.supervisor.Connect(endpoint); err != nil {
		issues = append(issues, err)
	}
	return errors.Join(issues...)
}

// Shutdown waits for an in-flight commit and rejects later ones.
func (c *settingsController) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.mu.Lock()
		c.closed = true
		unsubscribe := c.unsubscribe
		c.unsubscribe = nil
		c.mu.Unlock()
		if unsubscribe != nil {
			unsubscribe()
		}
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *settingsController) GetSettings() *models.SettingsDocument {
	return c.snap.Load().Document.Clone()
}

func (c *settingsController) Snapshot() Snapshot {
	s := c.snap.Load()
	return Snapshot{Document: s.Document.Clone(), Revision: s.Revision}
}

func (c *settingsController) ApplyAndSave(ctx context.Context, proposed *models.SettingsDocument) (*ApplyResult, error) {
	return c.commit(ctx, models.RevisionSourceApply, func(*Snapshot) (*models.SettingsDocument, error) {
		return proposed.Clone(), nil
	})
}

func (c *settingsController) ApplyAndSaveFrom(ctx context.Context, baseRevision uint64, proposed *models.SettingsDocument) (*ApplyResult, error) {
	return c.commit(ctx, models.RevisionSourceApply, func(prev *Snapshot) (*models.SettingsDocument, error) {
		if baseRevision != prev.Revision {
			return nil, &StaleRevisionError{Base: baseRevision, Current: prev.Revision}
		}
		return proposed.Clone(), nil
	})
}

// SetSetting changes a single field, addressed by its settings.json section
// and key, on top of the committed document.
func (c *settingsController) SetSetting(ctx context.Context, section, key string, value any) (*ApplyResult, error) {
	return c.commit(ctx, models.RevisionSourceApply, func(prev *Snapshot) (*models.SettingsDocument, error) {
		return validation.WithField(prev.Document, section, key, value)
	})
}

func (c *settingsController) ResetToDefaults(ctx context.Context, confirmed bool) (*ApplyResult, error) {
	if !confirmed {
		return nil, ErrConfirmationRequired
	}
	return c.commit(ctx, models.RevisionSourceReset, func(*Snapshot) (*models.SettingsDocument, error) {
		return models.DefaultSettings(), nil
	})
}

// commit builds the next document from the committed snapshot, validates and
// persists it, then swaps the snapshot. build runs under the commit lock.
func (c *settingsController) commit(ctx context.Context, source string, build func(prev *Snapshot) (*models.SettingsDocument, error)) (*ApplyResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrControllerClosed
	}

	prev := c.snap.Load()
	doc, err := build(prev)
	if err != nil {
		return nil, err
	}
	if doc != nil {
		doc.Normalize()
	}
	res := c.validator.Validate(doc)
	if err := res.Err(); err != nil {
		return nil, err
	}

	if err := c.store.Save(ctx, doc); err != nil {
		c.log.Error("settings: save failed: " + err.Error())
		return nil, err
	}

	endpoint := doc.WebSocket.Endpoint()
	reconnect := source == models.RevisionSourceReset || endpoint != prev.Document.WebSocket.Endpoint()

	result := &ApplyResult{
		Revision:         prev.Revision + 1,
		PreviousRevision: prev.Revision,
		Warnings:         res.Warnings,
		ChangedSections:  models.ChangedSections(prev.Document, doc),
		Reconnecting:     reconnect,
	}
	c.snap.Store(&Snapshot{Document: doc, Revision: result.Revision})
	c.record(ctx, result.Revision, source, result.ChangedSections, doc, reconnect)

	c.log.Info(fmt.Sprintf("settings: %s revision %d changed [%s]", source, result.Revision,
		strings.Join(result.ChangedSections, ",")))
	for _, w := range res.Warnings {
		c.log.Warning("settings: " + w.String())
	}

	if reconnect {
		if err := c.supervisor.Reconnect(endpoint); err != nil {
			c.log.Error("settings: reconnect to " + endpoint.URL() + ": " + err.Error())
		}
	}

	if source == models.RevisionSourceReset {
		events.Emit(c.context, events.SettingsReset, events.NewResetEvent(result.Revision))
	} else {
		events.Emit(c.context, events.SettingsSaved, events.NewSavedEvent(result.Revision,
			result.ChangedSections, warningStrings(res.Warnings), reconnect))
	}
	return result, nil
}

func (c *settingsController) TestConnection(ctx context.Context, ip string, port int) (time.Duration, error) {
	ip = strings.TrimSpace(ip)
	if err := c.validator.ValidateEndpoint(ip, port).Err(); err != nil {
		return 0, err
	}
	return c.supervisor.TestConnection(ctx, models.Endpoint{Host: ip, Port: port})
}

func (c *settingsController) GetConnectionState() models.ConnectionStatus {
	return c.supervisor.Status()
}

func (c *settingsController) SubscribeConnectionState(fn func(models.ConnectionStatus)) func() {
	return c.supervisor.Subscribe(fn)
}

// Reconnect retries the committed endpoint, for example after a failure.
func (c *settingsController) Reconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrControllerClosed
	}
	return c.supervisor.Reconnect(c.snap.Load().Document.WebSocket.Endpoint())
}

// SendMessage forwards a text frame over the live connection.
func (c *settingsController) SendMessage(data []byte) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrControllerClosed
	}
	return c.supervisor.Send(data)
}

// HandleMessage publishes an inbound frame to the frontend.
func (c *settingsController) HandleMessage(data []byte) {
	c.log.Trace(fmt.Sprintf("websocket: received %d bytes", len(data)))
	events.Emit(c.context, events.ConnectionMessage, events.NewMessageEvent(data))
}

func (c *settingsController) History(ctx context.Context, limit int) ([]models.SettingsRevision, error) {
	if c.journal == nil {
		return nil, nil
	}
	return c.journal.List(ctx, limit, 0)
}

// record journals a commit. The file is already durable, so a journal failure
// is only logged.
func (c *settingsController) record(ctx context.Context, revision uint64, source string, changed []string, doc *models.SettingsDocument, reconnect bool) {
	if c.journal == nil {
		return
	}
	err := c.journal.Create(ctx, &models.SettingsRevision{
		Revision:        revision,
		Source:          source,
		ChangedSections: strings.Join(changed, ","),
		Endpoint:        doc.WebSocket.ClientURL,
		Reconnect:       reconnect,
		CreatedAt:       time.Now(),
	})
	if err != nil {
		c.log.Warning(fmt.Sprintf("settings: journal revision %d: %v", revision, err))
	}
}

func (c *settingsController) onConnectionState(status models.ConnectionStatus) {
	switch status.State {
	case models.StateFailed:
		c.log.Error("websocket: " + status.Reason)
	default:
		c.log.Debug(fmt.Sprintf("websocket: %s %s", status.State, status.Endpoint))
	}
	events.Emit(c.context, events.ConnectionState, events.NewConnectionEvent(status))
}

func (c *settingsController) reportLoadIssue(err error) {
	c.log.Warning("settings: " + err.Error())
	events.Emit(c.context, events.SettingsLoadIssue, events.NewLoadIssueEvent(err))
}

func warningStrings(warnings []validation.FieldError) []string {
	out := make([]string, 0, len(warnings))
	for _, w := range warnings {
		out = append(out, w.String())
	}
	return out
}
