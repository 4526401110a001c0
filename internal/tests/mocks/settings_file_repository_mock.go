package mocks

import (
	"context"
	"sync"

	"kharazmi/internal/models"
)

type SettingsFileRepositoryMock struct {
	LoadFunc func(ctx context.Context) (*models.SettingsDocument, error)
	SaveFunc func(ctx context.Context, doc *models.SettingsDocument) error
	PathFunc func() string

	mu    sync.Mutex
	Saved []*models.SettingsDocument
}

func (m *SettingsFileRepositoryMock) Load(ctx context.Context) (*models.SettingsDocument, error) {
	if m.LoadFunc != nil {
		return m.LoadFunc(ctx)
	}
	return models.DefaultSettings(), nil
}

func (m *SettingsFileRepositoryMock) Save(ctx context.Context, doc *models.SettingsDocument) error {
	if m.SaveFunc != nil {
		if err := m.SaveFunc(ctx, doc); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Saved = append(m.Saved, doc.Clone())
	return nil
}

func (m *SettingsFileRepositoryMock) Path() string {
	if m.PathFunc != nil {
		return m.PathFunc()
	}
	return "settings.json"
}

func (m *SettingsFileRepositoryMock) SaveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Saved)
}
