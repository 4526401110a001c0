package services

import (
	"errors"
	"fmt"
	"strings"

	"kharazmi/internal/connection"
	"kharazmi/internal/repositories"
	"kharazmi/internal/secrets"
	"kharazmi/internal/validation"
)

var (
	ErrConfirmationRequired = errors.New("reset to defaults requires confirmation")
	ErrControllerClosed     = errors.New("settings controller is shut down")
)

// StaleRevisionError rejects a commit built on an outdated snapshot.
type StaleRevisionError struct {
	Base    uint64
	Current uint64
}

func (e *StaleRevisionError) Error() string {
	return fmt.Sprintf("settings changed since revision %d (now %d)", e.Base, e.Current)
}

// Describe turns an error from the controller into a message for the
// settings dialog.
func Describe(err error) string {
	if err == nil {
		return ""
	}

	var (
		valErr     *validation.ValidationError
		staleErr   *StaleRevisionError
		ioErr      *repositories.IoError
		corruptErr *repositories.CorruptConfigError
		decErr     *secrets.DecryptError
		connErr    *connection.ConnectionError
	)
	switch {
	case errors.As(err, &valErr):
		parts := make([]string, 0, len(valErr.Errors))
		for _, fe := range valErr.Errors {
			parts = append(parts, fe.String())
		}
		return "Please correct: " + strings.Join(parts, "; ")
	case errors.As(err, &staleErr):
		return "Settings were changed elsewhere. Reload them and try again."
	case errors.Is(err, ErrConfirmationRequired):
		return "Resetting settings needs your confirmation."
	case errors.Is(err, ErrControllerClosed):
		return "The application is shutting down."
	case errors.As(err, &ioErr):
		return fmt.Sprintf("Could not save settings to %s: %v", ioErr.Path, ioErr.Err)
	case errors.As(err, &corruptErr):
		return fmt.Sprintf("Settings file %s was unreadable; defaults were loaded.", corruptErr.Path)
	case errors.As(err, &decErr):
		return fmt.Sprintf("The stored %s could not be decrypted; please enter it again.", decErr.Field)
	case errors.Is(err, connection.ErrNotConnected):
		return "Not connected to the collaboration server."
	case errors.As(err, &connErr):
		return fmt.Sprintf("Could not reach %s: %v", connErr.Endpoint, connErr.Err)
	}
	return err.Error()
}
