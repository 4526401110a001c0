package repositories

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"kharazmi/internal/models"
)

type SettingsRevisionRepository interface {
	Create(ctx context.Context, rev *models.SettingsRevision) error
	Latest(ctx context.Context) (*models.SettingsRevision, error)
	List(ctx context.Context, limit, offset int) ([]models.SettingsRevision, error)
}

type settingsRevisionRepository struct {
	db *gorm.DB
}

func NewSettingsRevisionRepository(db *gorm.DB) SettingsRevisionRepository {
	return &settingsRevisionRepository{db: db}
}

func (r *settingsRevisionRepository) Create(ctx context.Context, rev *models.SettingsRevision) error {
	return r.db.WithContext(ctx).Create(rev).Error
}

// Latest returns nil without error when the journal is empty.
func (r *settingsRevisionRepository) Latest(ctx context.Context) (*models.SettingsRevision, error) {
	var rev models.SettingsRevision
	if err := r.db.WithContext(ctx).Order("revision DESC").First(&rev).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &rev, nil
}

func (r *settingsRevisionRepository) List(ctx context.Context, limit, offset int) ([]models.SettingsRevision, error) {
	var revs []models.SettingsRevision
	q := r.db.WithContext(ctx).Order("revision DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	if err := q.Find(&revs).Error; err != nil {
		return nil, err
	}
	return revs, nil
}
