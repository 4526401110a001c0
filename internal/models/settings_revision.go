package models

import "time"

const (
	RevisionSourceStartup = "startup"
	RevisionSourceApply   = "apply"
	RevisionSourceReset   = "reset"
)

// SettingsRevision journals every committed settings change. It never holds secrets.
type SettingsRevision struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	Revision        uint64    `gorm:"not null;uniqueIndex" json:"revision"`
	Source          string    `gorm:"size:20;not null" json:"source"`
	ChangedSections string    `gorm:"size:100" json:"changedSections"`
	Endpoint        string    `gorm:"size:300" json:"endpoint"`
	Reconnect       bool      `gorm:"not null;default:false" json:"reconnect"`
	CreatedAt       time.Time `gorm:"not null" json:"createdAt"`
}
