package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"kharazmi/internal/models"
	"kharazmi/internal/secrets"
)

// SecretCodec seals API keys at the file boundary.
type SecretCodec interface {
	Encrypt(field, plaintext string) (string, error)
	Decrypt(field, ciphertext string) (string, error)
}

type SettingsFileRepository interface {
	// Load always returns a usable document. A non-nil error describes what
	// was recovered: *CorruptConfigError, *secrets.DecryptError (joined) or *IoError.
	Load(ctx context.Context) (*models.SettingsDocument, error)
	Save(ctx context.Context, doc *models.SettingsDocument) error
	Path() string
}

// CorruptConfigError means settings.json could not be parsed and defaults were used.
type CorruptConfigError struct {
	Path string
	Err  error
}

func (e *CorruptConfigError) Error() string {
	return fmt.Sprintf("settings file %s is corrupt, defaults loaded: %v", e.Path, e.Err)
}

func (e *CorruptConfigError) Unwrap() error { return e.Err }

// IoError means the settings file could not be read or written. After a failed
// write the previous file is left untouched.
type IoError struct {
	Op   string
	Path string
	Err  error
}

func (e *IoError) Error() string {
	return fmt.Sprintf("settings %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IoError) Unwrap() error { return e.Err }

// sealedValue remembers the ciphertext for a plaintext so unchanged secrets
// are written back byte-for-byte.
type sealedValue struct {
	plain  string
	sealed string
}

type settingsFileRepository struct {
	path  string
	codec SecretCodec

	mu     sync.Mutex
	sealed map[string]sealedValue
}

func NewSettingsFileRepository(path string, codec SecretCodec) SettingsFileRepository {
	return &settingsFileRepository{
		path:   path,
		codec:  codec,
		sealed: make(map[string]sealedValue),
	}
}

func (r *settingsFileRepository) Path() string {
	return r.path
}

func (r *settingsFileRepository) Load(ctx context.Context) (*models.SettingsDocument, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := os.ReadFile(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		return models.DefaultSettings(), nil
	}
	if err != nil {
		return models.DefaultSettings(), &IoError{Op: "read", Path: r.path, Err: err}
	}

	// Unmarshal over the defaults so keys missing from the file keep their default.
	doc := models.DefaultSettings()
	if err := json.Unmarshal(data, doc); err != nil {
		return models.DefaultSettings(), &CorruptConfigError{Path: r.path, Err: err}
	}
	doc.Normalize()

	var (
		issues []error
		legacy bool
	)
	clear(r.sealed)
	for _, f := range doc.Secrets() {
		stored := *f.Value
		plain, err := r.codec.Decrypt(f.Name, stored)
		switch {
		case errors.Is(err, secrets.ErrNotSealed):
			legacy = true
		case err != nil:
			*f.Value = ""
			issues = append(issues, err)
		default:
			*f.Value = plain
			r.sealed[f.Name] = sealedValue{plain: plain, sealed: stored}
		}
	}

	// Migrating would write "" over ciphertext that another key may still open.
	if legacy && len(issues) == 0 {
		if err := r.saveLocked(ctx, doc); err != nil {
			issues = append(issues, err)
		}
	}
	return doc, errors.Join(issues...)
}

func (r *settingsFileRepository) Save(ctx context.Context, doc *models.SettingsDocument) error {
	if doc == nil {
		return errors.New("settings document is nil")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saveLocked(ctx, doc)
}

func (r *settingsFileRepository) saveLocked(ctx context.Context, doc *models.SettingsDocument) error {
	if err := ctx.Err(); err != nil {
		return &IoError{Op: "write", Path: r.path, Err: err}
	}

	out := doc.Clone()
	out.Normalize()

	next := make(map[string]sealedValue, len(r.sealed))
	for _, f := range out.Secrets() {
		plain := *f.Value
		if plain == "" {
			continue
		}
		if prev, ok := r.sealed[f.Name]; ok && prev.plain == plain {
			*f.Value = prev.sealed
		} else {
			sealed, err := r.codec.Encrypt(f.Name, plain)
			if err != nil {
				return &IoError{Op: "encrypt", Path: r.path, Err: err}
			}
			*f.Value = sealed
		}
		next[f.Name] = sealedValue{plain: plain, sealed: *f.Value}
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return &IoError{Op: "encode", Path: r.path, Err: err}
	}
	data = append(data, '\n')

	if err := writeFileAtomic(r.path, data); err != nil {
		return &IoError{Op: "write", Path: r.path, Err: err}
	}
	r.sealed = next
	return nil
}

// writeFileAtomic writes to a temp file in the target directory and renames it
// into place, so a crash leaves either the old or the new file.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".settings-*.json")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
