package mocks

import (
	"context"
	"sync"

	"kharazmi/internal/models"
)

type SettingsRevisionRepositoryMock struct {
	CreateFunc func(ctx context.Context, rev *models.SettingsRevision) error
	LatestFunc func(ctx context.Context) (*models.SettingsRevision, error)

	mu   sync.Mutex
	Rows []models.SettingsRevision
}

func (m *SettingsRevisionRepositoryMock) Create(ctx context.Context, rev *models.SettingsRevision) error {
	if m.CreateFunc != nil {
		if err := m.CreateFunc(ctx, rev); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Rows = append(m.Rows, *rev)
	return nil
}

func (m *SettingsRevisionRepositoryMock) Latest(ctx context.Context) (*models.SettingsRevision, error) {
	if m.LatestFunc != nil {
		return m.LatestFunc(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Rows) == 0 {
		return nil, nil
	}
	last := m.Rows[len(m.Rows)-1]
	return &last, nil
}

func (m *SettingsRevisionRepositoryMock) List(ctx context.Context, limit, offset int) ([]models.SettingsRevision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.SettingsRevision
	for i := len(m.Rows) - 1 - offset; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, m.Rows[i])
	}
	return out, nil
}
